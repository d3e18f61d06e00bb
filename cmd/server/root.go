package main

import (
	"github.com/spf13/cobra"
)

// Execute runs the chatrelay command line.
func Execute() error {
	return newRootCmd().Execute()
}

type globalOptions struct {
	envFile  string
	port     string
	logLevel string
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:           "chatrelay",
		Short:         "Real-time presence and message relay over WebSockets",
		Long:          "chatrelay tracks which identities are connected, broadcasts presence changes, and relays direct messages between online identities.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.envFile, "env-file", ".env", "dotenv file to load before reading the environment")
	flags.StringVar(&opts.port, "port", "", "listen address, overrides SERVER_PORT")
	flags.StringVar(&opts.logLevel, "log-level", "", "debug, info, warn or error, overrides LOG_LEVEL")

	rootCmd.AddCommand(
		newServeCmd(opts),
		newTokenCmd(opts),
		newVersionCmd(),
	)
	return rootCmd
}

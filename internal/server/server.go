package server

import (
	"context"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/Tyrowin/chatrelay/internal/auth"
	"github.com/Tyrowin/chatrelay/internal/metrics"
	"github.com/Tyrowin/chatrelay/internal/presence"
	"github.com/Tyrowin/chatrelay/internal/registry"
	"github.com/Tyrowin/chatrelay/internal/relay"
	"github.com/Tyrowin/chatrelay/internal/router"
)

// Options carries collaborators that are built outside the server.
type Options struct {
	// Authenticator validates upgrade requests. When nil, a JWT authenticator
	// is used if Config.JWTSecret is set and every request is accepted
	// otherwise.
	Authenticator auth.Authenticator
	// Observers are told about every presence transition, in order.
	Observers []presence.Observer
	// Registry receives the relay's collectors. When nil a fresh registry
	// with the Go and process collectors is created.
	Registry *prometheus.Registry
}

// Server owns one relay instance and everything that feeds it.
type Server struct {
	cfg      Config
	log      *zap.Logger
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer
	auth     auth.Authenticator
	origins  originPolicy
	upgrader websocket.Upgrader

	notifier     *presence.Notifier
	stopNotifier context.CancelFunc
	relay        *relay.Relay
	hub          *Hub
	http         *http.Server
	started      bool
}

// New builds a Server from cfg. Collaborators missing from opts are
// derived from cfg.
func New(cfg Config, log *zap.Logger, opts Options) *Server {
	cfg = sanitizeConfig(cfg)

	promReg := opts.Registry
	if promReg == nil {
		promReg = prometheus.NewRegistry()
		promReg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	m := metrics.New(promReg)

	authn := opts.Authenticator
	if authn == nil {
		if cfg.AuthEnabled() {
			authn = auth.NewJWTAuthenticator(cfg.JWTSecret, cfg.JWTIssuer)
		} else {
			authn = auth.Anonymous{}
		}
	}

	reg := registry.New()
	notifier := presence.NewNotifier(log, m, 0, cfg.ObserverTimeout, opts.Observers...)
	tracker := presence.NewTracker(reg, relay.NewBroadcaster(log), log,
		presence.WithNotifier(notifier),
		presence.WithMetrics(m))
	rl := relay.New(tracker, router.New(reg, log, m), log, m)

	s := &Server{
		cfg:      cfg,
		log:      log,
		metrics:  m,
		gatherer: promReg,
		auth:     authn,
		origins:  newOriginPolicy(cfg.AllowedOrigins, log),
		notifier: notifier,
		relay:    rl,
		hub:      NewHub(rl, log, m),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.origins.check,
	}
	s.http = createHTTPServer(cfg.Port, s.routes())
	return s
}

// Handler returns the HTTP handler serving every route.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Hub returns the connection hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start launches the hub and the observer notifier. It must be called
// before connections are accepted.
func (s *Server) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.stopNotifier = cancel
	go s.notifier.Run(ctx)
	go s.hub.Run()
	s.started = true
	s.log.Info("hub started and ready to manage websocket connections")
}

// ListenAndServe blocks serving HTTP until Shutdown is called.
func (s *Server) ListenAndServe() error {
	s.log.Info("server listening", zap.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "http server")
	}
	return nil
}

// Shutdown stops accepting requests, takes every identity offline, closes
// every connection and flushes pending observer notifications.
func (s *Server) Shutdown(ctx context.Context) error {
	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	s.log.Info("shutting down http server")
	keep(errors.Wrap(s.http.Shutdown(ctx), "http shutdown"))

	if !s.started {
		return firstErr
	}

	keep(errors.Wrap(s.hub.Shutdown(s.cfg.ShutdownTimeout), "hub shutdown"))

	s.notifier.Close()
	select {
	case <-s.notifier.Done():
	case <-ctx.Done():
		s.log.Warn("presence observers did not finish before shutdown deadline")
		keep(ctx.Err())
	}
	s.stopNotifier()

	return firstErr
}

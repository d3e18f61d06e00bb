package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNormalizeOrigins(t *testing.T) {
	req := require.New(t)

	normalized, allowAll, invalid := normalizeOrigins([]string{
		"HTTP://Example.COM:8080",
		" https://chat.example ",
		"https://chat.example:443",
		"",
		"not-a-url",
		"*",
	})

	req.Equal([]string{"http://example.com:8080", "https://chat.example"}, normalized)
	req.True(allowAll)
	req.Equal([]string{"not-a-url"}, invalid)
}

func TestOriginPolicy(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		origin  string
		want    bool
	}{
		{"exact match", []string{"http://localhost:8080"}, "http://localhost:8080", true},
		{"case folded", []string{"http://localhost:8080"}, "HTTP://LOCALHOST:8080", true},
		{"other port", []string{"http://localhost:8080"}, "http://localhost:9090", false},
		{"missing header", []string{"http://localhost:8080"}, "", false},
		{"garbage header", []string{"*"}, "::::", false},
		{"wildcard", []string{"*"}, "https://anywhere.example", true},
		{"default https port", []string{"https://chat.example"}, "https://chat.example:443", true},
		{"default http port in config", []string{"http://chat.example:80"}, "http://chat.example", true},
		{"empty policy", nil, "http://localhost:8080", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newOriginPolicy(tt.allowed, zap.NewNop())
			r := httptest.NewRequest(http.MethodGet, "/ws", nil)
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			require.Equal(t, tt.want, p.check(r))
		})
	}
}

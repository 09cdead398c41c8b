package http

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/pulsechat/pulsechat-server/internal/auth"
	"github.com/pulsechat/pulsechat-server/internal/config"
	"github.com/pulsechat/pulsechat-server/internal/core"
	"github.com/pulsechat/pulsechat-server/internal/service/groups"
	"github.com/pulsechat/pulsechat-server/internal/service/messages"
	"github.com/pulsechat/pulsechat-server/internal/service/statuses"
	"github.com/pulsechat/pulsechat-server/internal/store"
	"github.com/pulsechat/pulsechat-server/internal/store/sqlite"
)

// createTestStore creates an in-memory SQLite store with schema applied.
func createTestStore(t *testing.T) store.Store {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

// createTestAuthService creates an auth service for testing.
func createTestAuthService(t *testing.T, st store.Store) *auth.Service {
	t.Helper()

	jwtConfig := &auth.JWTConfig{
		Secret:   []byte("test-secret"),
		Issuer:   "test",
		Audience: "test",
		TTL:      24 * time.Hour,
	}
	return auth.NewService(st, jwtConfig)
}

// startTestServer wires a full server around an in-memory store and a
// running hub.
func startTestServer(t *testing.T) (*httptest.Server, Deps) {
	t.Helper()

	st := createTestStore(t)
	authService := createTestAuthService(t, st)

	hub := core.NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	deps := Deps{
		Hub:      hub,
		Store:    st,
		Auth:     authService,
		Messages: messages.New(st, hub, nil),
		Groups:   groups.New(st, hub, nil),
		Statuses: statuses.New(st, hub, nil),
	}

	logger := zerolog.Nop()
	server := NewServer(deps, config.Config{
		Addr:              ":0",
		ReadHeaderTimeout: time.Second,
		MessageRate:       100,
		MessageBurst:      100,
	}, &logger)

	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	return ts, deps
}

// registerTestUser registers a user and returns an API token.
func registerTestUser(t *testing.T, deps Deps, username string) string {
	t.Helper()

	token, err := deps.Auth.Register(context.Background(), username, "password123")
	if err != nil {
		t.Fatalf("register %s: %v", username, err)
	}
	return token
}

package http

import (
	"context"
	"testing"

	"golang.org/x/time/rate"

	"github.com/pulsechat/pulsechat-server/internal/core"
	"github.com/pulsechat/pulsechat-server/internal/proto"
)

func TestUserLimiterBurstAndIsolation(t *testing.T) {
	l := newUserLimiter(1, 2)

	if !l.allow(1) || !l.allow(1) {
		t.Fatal("burst of 2 must be allowed")
	}
	if l.allow(1) {
		t.Fatal("third request in the same instant must be rejected")
	}

	// Another user has an independent bucket.
	if !l.allow(2) {
		t.Fatal("second user must not share the first user's bucket")
	}
}

func TestUserLimiterDisabledAtZeroRate(t *testing.T) {
	l := newUserLimiter(0, 0)
	for i := 0; i < 100; i++ {
		if !l.allow(1) {
			t.Fatal("zero rate must disable limiting")
		}
	}
}

func TestSessionRateLimitKeepsConnectionAlive(t *testing.T) {
	sess := &wsSession{
		client:  core.NewClient("c1", 1, "alice"),
		limiter: rate.NewLimiter(0, 0),
	}

	// Excess frames come back as error frames, never as a fatal error
	// that would tear the connection down.
	protoErr, err := sess.handle(context.Background(), proto.Inbound{Type: proto.InboundTypeSend})
	if err != nil {
		t.Fatalf("rate limited frame must not kill the session: %v", err)
	}
	if protoErr == nil || protoErr.Code != core.ErrCodeRateLimited {
		t.Fatalf("expected rate_limited error frame, got %+v", protoErr)
	}
}

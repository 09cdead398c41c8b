package http

import (
	"context"
	"net/http"
	"testing"
)

func TestMessageSendHistoryDelete(t *testing.T) {
	ts, deps := startTestServer(t)

	tokenA := registerTestUser(t, deps, "alice")
	tokenB := registerTestUser(t, deps, "bob")

	bob, err := deps.Store.GetUserByUsername(context.Background(), "bob")
	if err != nil {
		t.Fatalf("get bob: %v", err)
	}
	alice, err := deps.Store.GetUserByUsername(context.Background(), "alice")
	if err != nil {
		t.Fatalf("get alice: %v", err)
	}

	scope := "direct:" + itoa(bob.ID)
	resp := doJSON(t, ts, http.MethodPost, "/api/messages", tokenA, SendMessageRequest{
		Scope: scope,
		Text:  "hello bob",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("send: expected 201, got %d", resp.StatusCode)
	}
	sent := decodeJSON[MessageResponse](t, resp)
	if sent.ID == 0 || sent.Scope != scope {
		t.Fatalf("unexpected message: %+v", sent)
	}

	// Bob sees the conversation keyed by his peer.
	resp = doJSON(t, ts, http.MethodGet, "/api/messages?scope=direct:"+itoa(alice.ID), tokenB, nil)
	history := decodeJSON[[]MessageResponse](t, resp)
	if len(history) != 1 || history[0].Text != "hello bob" {
		t.Fatalf("unexpected history: %+v", history)
	}

	resp = doJSON(t, ts, http.MethodDelete, "/api/messages/"+itoa(sent.ID), tokenB, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("peer delete: expected 204, got %d", resp.StatusCode)
	}

	resp = doJSON(t, ts, http.MethodGet, "/api/messages?scope=direct:"+itoa(alice.ID), tokenB, nil)
	if history := decodeJSON[[]MessageResponse](t, resp); len(history) != 0 {
		t.Fatalf("history must be empty after delete, got %+v", history)
	}
}

func TestMessageSendRejectsEmptyAndBadScope(t *testing.T) {
	ts, deps := startTestServer(t)
	token := registerTestUser(t, deps, "alice")

	resp := doJSON(t, ts, http.MethodPost, "/api/messages", token, SendMessageRequest{Scope: "nearby:1", Text: "hi"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad scope: expected 400, got %d", resp.StatusCode)
	}

	resp = doJSON(t, ts, http.MethodPost, "/api/messages", token, SendMessageRequest{Scope: "direct:2"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("empty text: expected 400, got %d", resp.StatusCode)
	}
}

package http

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/pulsechat/pulsechat-server/internal/proto"
)

func dialWS(ctx context.Context, t *testing.T, tsURL, token string) *websocket.Conn {
	t.Helper()

	wsURL := strings.Replace(tsURL, "http", "ws", 1) + "/ws?token=" + token
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "done") })
	return conn
}

// readUntilEvent drains frames until one matches the wanted event name.
func readUntilEvent(ctx context.Context, t *testing.T, conn *websocket.Conn, event string) json.RawMessage {
	t.Helper()

	for {
		var outbound struct {
			Type  string          `json:"type"`
			Event string          `json:"event"`
			Data  json.RawMessage `json:"data"`
			Error *proto.Error    `json:"error"`
		}
		if err := wsjson.Read(ctx, conn, &outbound); err != nil {
			t.Fatalf("read waiting for %s: %v", event, err)
		}
		if outbound.Type == proto.OutboundTypeError {
			t.Fatalf("error frame while waiting for %s: %+v", event, outbound.Error)
		}
		if outbound.Event == event {
			return outbound.Data
		}
	}
}

func sendFrame(ctx context.Context, t *testing.T, conn *websocket.Conn, typ string, data any) {
	t.Helper()

	payload, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal %s: %v", typ, err)
	}
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: typ, Data: payload}); err != nil {
		t.Fatalf("write %s: %v", typ, err)
	}
}

func TestHealthEndpoint(t *testing.T) {
	ts, _ := startTestServer(t)

	resp, err := ts.Client().Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
}

func TestWebSocketRejectsBadToken(t *testing.T) {
	ts, _ := startTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	wsURL := strings.Replace(ts.URL, "http", "ws", 1) + "/ws?token=garbage"
	_, resp, err := websocket.Dial(ctx, wsURL, nil)
	if err == nil {
		t.Fatal("dial must fail without a valid token")
	}
	if resp == nil || resp.StatusCode != 401 {
		t.Fatalf("expected 401 handshake rejection, got %+v", resp)
	}
}

func TestWebSocketSessionReadyAndDirectMessage(t *testing.T) {
	ts, deps := startTestServer(t)

	tokenA := registerTestUser(t, deps, "alice")
	tokenB := registerTestUser(t, deps, "bob")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	connA := dialWS(ctx, t, ts.URL, tokenA)
	connB := dialWS(ctx, t, ts.URL, tokenB)

	var readyA, readyB proto.SessionReadyData
	if err := json.Unmarshal(readUntilEvent(ctx, t, connA, proto.EventSessionReady), &readyA); err != nil {
		t.Fatalf("unmarshal ready A: %v", err)
	}
	if err := json.Unmarshal(readUntilEvent(ctx, t, connB, proto.EventSessionReady), &readyB); err != nil {
		t.Fatalf("unmarshal ready B: %v", err)
	}
	if readyA.ConnectionID == "" || readyA.ConnectionID == readyB.ConnectionID {
		t.Fatalf("connection ids must be distinct and non-empty: %q vs %q", readyA.ConnectionID, readyB.ConnectionID)
	}

	sendFrame(ctx, t, connA, proto.InboundTypeSend, proto.SendData{
		Scope:  "direct:" + itoa(readyB.UserID),
		Text:   "hi there",
		TempID: "tmp-1",
	})

	var event proto.EventMessage
	if err := json.Unmarshal(readUntilEvent(ctx, t, connB, proto.EventMessageNew), &event); err != nil {
		t.Fatalf("unmarshal event data: %v", err)
	}
	if event.SenderName != "alice" || event.Text != "hi there" || event.TempID != "tmp-1" {
		t.Fatalf("unexpected event payload: %+v", event)
	}
	if event.ID == 0 {
		t.Fatal("delivered message must carry a server id")
	}
}

func TestWebSocketRosterBroadcast(t *testing.T) {
	ts, deps := startTestServer(t)

	tokenA := registerTestUser(t, deps, "alice")
	tokenB := registerTestUser(t, deps, "bob")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	connA := dialWS(ctx, t, ts.URL, tokenA)
	var readyA proto.SessionReadyData
	if err := json.Unmarshal(readUntilEvent(ctx, t, connA, proto.EventSessionReady), &readyA); err != nil {
		t.Fatalf("unmarshal ready A: %v", err)
	}

	// Bob coming online must reach Alice as a roster update naming both.
	connB := dialWS(ctx, t, ts.URL, tokenB)
	readUntilEvent(ctx, t, connB, proto.EventSessionReady)

	for {
		var roster proto.EventRoster
		if err := json.Unmarshal(readUntilEvent(ctx, t, connA, proto.EventPresenceRoster), &roster); err != nil {
			t.Fatalf("unmarshal roster: %v", err)
		}
		if len(roster.Online) == 2 {
			return
		}
	}
}

func TestWebSocketGroupScopedDelivery(t *testing.T) {
	ts, deps := startTestServer(t)

	ctxBg := context.Background()
	tokenA := registerTestUser(t, deps, "alice")
	tokenB := registerTestUser(t, deps, "bob")
	tokenC := registerTestUser(t, deps, "carol")

	alice, _ := deps.Store.GetUserByUsername(ctxBg, "alice")
	bob, _ := deps.Store.GetUserByUsername(ctxBg, "bob")

	group, err := deps.Store.CreateGroup(ctxBg, "team", alice.ID, []int64{bob.ID})
	if err != nil {
		t.Fatalf("create group: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	connA := dialWS(ctx, t, ts.URL, tokenA)
	connB := dialWS(ctx, t, ts.URL, tokenB)
	connC := dialWS(ctx, t, ts.URL, tokenC)
	readUntilEvent(ctx, t, connA, proto.EventSessionReady)
	readUntilEvent(ctx, t, connB, proto.EventSessionReady)
	readUntilEvent(ctx, t, connC, proto.EventSessionReady)

	sendFrame(ctx, t, connA, proto.InboundTypeJoin, proto.JoinData{GroupID: group.ID})
	sendFrame(ctx, t, connB, proto.InboundTypeJoin, proto.JoinData{GroupID: group.ID})
	// Frames on one connection are handled in order and the hub drains
	// commands FIFO, so an acknowledged follow-up frame proves the join
	// landed before anything sent afterwards.
	sendFrame(ctx, t, connB, "noop", struct{}{})
	assertErrorFrame(ctx, t, connB, "bad_request")

	// Carol is not a member; her join must produce an error frame.
	sendFrame(ctx, t, connC, proto.InboundTypeJoin, proto.JoinData{GroupID: group.ID})
	assertErrorFrame(ctx, t, connC, "not_member")

	sendFrame(ctx, t, connA, proto.InboundTypeSend, proto.SendData{
		Scope: "group:" + itoa(group.ID),
		Text:  "standup in 5",
	})

	var event proto.EventMessage
	if err := json.Unmarshal(readUntilEvent(ctx, t, connB, proto.EventMessageNew), &event); err != nil {
		t.Fatalf("unmarshal event data: %v", err)
	}
	if event.Text != "standup in 5" || event.Scope != "group:"+itoa(group.ID) {
		t.Fatalf("unexpected event payload: %+v", event)
	}
}

func assertErrorFrame(ctx context.Context, t *testing.T, conn *websocket.Conn, code string) {
	t.Helper()

	for {
		var outbound struct {
			Type  string       `json:"type"`
			Event string       `json:"event"`
			Error *proto.Error `json:"error"`
		}
		if err := wsjson.Read(ctx, conn, &outbound); err != nil {
			t.Fatalf("read waiting for error %s: %v", code, err)
		}
		if outbound.Type != proto.OutboundTypeError {
			continue
		}
		if outbound.Error == nil || outbound.Error.Code != code {
			t.Fatalf("unexpected error frame: %+v", outbound.Error)
		}
		return
	}
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}

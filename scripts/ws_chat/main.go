// Command ws_chat is an interactive terminal client used for manual
// testing. It logs in (or creates a guest), keeps a local reconciled
// view of conversations and presence, and prints events as they land.
//
// Usage:
//
//	go run ./scripts/ws_chat --guest --scope direct:2
//	go run ./scripts/ws_chat --user alice --pass secret --scope group:1
//
// Lines typed at the prompt are sent to --scope. Slash commands:
// /join N, /leave N, /del ID, /who, /history.
package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"

	"github.com/pulsechat/pulsechat-server/internal/core"
	"github.com/pulsechat/pulsechat-server/internal/proto"
	"github.com/pulsechat/pulsechat-server/internal/reconcile"
)

func main() {
	if err := run(); err != nil {
		log.Printf("ws_chat: %v", err)
		os.Exit(1)
	}
}

func run() error {
	server := flag.String("server", "http://localhost:8080", "server base URL")
	user := flag.String("user", "", "username for login")
	pass := flag.String("pass", "", "password for login")
	guest := flag.Bool("guest", false, "use a guest session instead of login")
	scopeKey := flag.String("scope", "", "default send target, e.g. direct:2 or group:1")
	flag.Parse()

	baseCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(baseCtx)
	defer cancel()

	token, err := obtainToken(ctx, *server, *user, *pass, *guest)
	if err != nil {
		return err
	}

	wsURL := strings.Replace(*server, "http", "ws", 1) + "/ws?token=" + token
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	ready, err := awaitReady(ctx, conn)
	if err != nil {
		return err
	}
	fmt.Printf("Connected as user %d (connection %s)\n", ready.UserID, ready.ConnectionID)
	fmt.Println("Type messages and press Enter to send. Ctrl+C to exit.")

	local := reconcile.New(ready.UserID)

	go func() {
		defer cancel()
		readLoop(ctx, conn, local)
	}()

	writeLoop(ctx, conn, local, *scopeKey)

	stop()
	cancel()
	_ = conn.Close(websocket.StatusNormalClosure, "bye")
	return nil
}

func obtainToken(ctx context.Context, server, user, pass string, guest bool) (string, error) {
	path := "/api/guest"
	var body []byte
	if !guest {
		if user == "" || pass == "" {
			return "", errors.New("either --guest or both --user and --pass are required")
		}
		path = "/api/login"
		body, _ = json.Marshal(map[string]string{"username": user, "password": pass})
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, server+path, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("auth request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("auth failed with status %d", resp.StatusCode)
	}

	var auth struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&auth); err != nil {
		return "", fmt.Errorf("decode auth response: %w", err)
	}
	return auth.Token, nil
}

func awaitReady(ctx context.Context, conn *websocket.Conn) (proto.SessionReadyData, error) {
	var ready proto.SessionReadyData
	for {
		var outbound proto.Outbound
		if err := wsjson.Read(ctx, conn, &outbound); err != nil {
			return ready, fmt.Errorf("await session ready: %w", err)
		}
		if outbound.Event != proto.EventSessionReady {
			continue
		}
		raw, _ := json.Marshal(outbound.Data)
		if err := json.Unmarshal(raw, &ready); err != nil {
			return ready, fmt.Errorf("unmarshal session ready: %w", err)
		}
		return ready, nil
	}
}

func readLoop(ctx context.Context, conn *websocket.Conn, local *reconcile.Store) {
	for {
		var outbound proto.Outbound
		if err := wsjson.Read(ctx, conn, &outbound); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return
			}
			log.Printf("read error: %v", err)
			return
		}

		if outbound.Type == proto.OutboundTypeError {
			fmt.Printf("server error: %s (%s)\n", outbound.Error.Msg, outbound.Error.Code)
			continue
		}

		raw, err := json.Marshal(outbound.Data)
		if err != nil {
			log.Printf("marshal outbound data: %v", err)
			continue
		}

		switch outbound.Event {
		case proto.EventMessageNew:
			var evt proto.EventMessage
			if err := json.Unmarshal(raw, &evt); err != nil {
				log.Printf("unmarshal message: %v", err)
				continue
			}
			scope, err := core.ParseScopeKey(evt.Scope)
			if err != nil {
				continue
			}
			local.ApplyDelivery(core.Envelope{
				ID:         evt.ID,
				TempID:     evt.TempID,
				SenderID:   evt.SenderID,
				SenderName: evt.SenderName,
				Scope:      scope,
				Text:       evt.Text,
				Attachment: evt.Attachment,
			})
			fmt.Printf("[%s] %s: %s\n", evt.Scope, evt.SenderName, evt.Text)
		case proto.EventMessageDeleted:
			var evt proto.EventDeleted
			if err := json.Unmarshal(raw, &evt); err != nil {
				log.Printf("unmarshal deletion: %v", err)
				continue
			}
			local.ApplyDeletion(evt.MessageID)
			fmt.Printf("message %d was deleted\n", evt.MessageID)
		case proto.EventPresenceRoster:
			var evt proto.EventRoster
			if err := json.Unmarshal(raw, &evt); err != nil {
				log.Printf("unmarshal roster: %v", err)
				continue
			}
			local.ApplyRoster(evt.Online)
			fmt.Printf("online now: %v\n", evt.Online)
		case proto.EventGroupCreated:
			var evt proto.EventGroup
			if err := json.Unmarshal(raw, &evt); err != nil {
				log.Printf("unmarshal group: %v", err)
				continue
			}
			local.ApplyGroupCreated(core.GroupInfo{
				ID: evt.ID, Name: evt.Name, OwnerID: evt.OwnerID, MemberIDs: evt.Members,
			})
			fmt.Printf("added to group %d (%s)\n", evt.ID, evt.Name)
		case proto.EventGroupDeleted:
			var evt proto.EventGroup
			if err := json.Unmarshal(raw, &evt); err != nil {
				log.Printf("unmarshal group: %v", err)
				continue
			}
			local.ApplyGroupDeleted(evt.ID)
			fmt.Printf("removed from group %d\n", evt.ID)
		default:
			fmt.Printf("event=%s data=%v\n", outbound.Event, outbound.Data)
		}
	}
}

func writeLoop(ctx context.Context, conn *websocket.Conn, local *reconcile.Store, scopeKey string) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	send := func(typ string, v any) {
		payload, err := json.Marshal(v)
		if err != nil {
			log.Printf("marshal %s: %v", typ, err)
			return
		}
		if err := wsjson.Write(ctx, conn, proto.Inbound{Type: typ, Data: payload}); err != nil {
			log.Printf("send error: %v", err)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			text := strings.TrimSpace(line)
			if text == "" {
				continue
			}

			if strings.HasPrefix(text, "/") {
				handleCommand(text, send, local, &scopeKey)
				continue
			}

			if scopeKey == "" {
				fmt.Println("no target: pass --scope or use /join")
				continue
			}
			send(proto.InboundTypeSend, proto.SendData{
				Scope:  scopeKey,
				Text:   text,
				TempID: uuid.NewString(),
			})
		}
	}
}

func handleCommand(text string, send func(string, any), local *reconcile.Store, scopeKey *string) {
	fields := strings.Fields(text)
	switch fields[0] {
	case "/join", "/leave":
		if len(fields) != 2 {
			fmt.Println("usage: /join <group_id>")
			return
		}
		id, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			fmt.Println("bad group id")
			return
		}
		typ := proto.InboundTypeJoin
		if fields[0] == "/leave" {
			typ = proto.InboundTypeLeave
		} else {
			*scopeKey = core.GroupScope(id).Key()
		}
		send(typ, proto.JoinData{GroupID: id})
	case "/del":
		if len(fields) != 2 {
			fmt.Println("usage: /del <message_id>")
			return
		}
		id, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			fmt.Println("bad message id")
			return
		}
		send(proto.InboundTypeDelete, proto.DeleteData{MessageID: id})
	case "/who":
		fmt.Printf("online: %v\n", local.OnlineUserIDs())
	case "/history":
		if *scopeKey == "" {
			fmt.Println("no target scope")
			return
		}
		scope, err := core.ParseScopeKey(*scopeKey)
		if err != nil {
			fmt.Println("bad scope")
			return
		}
		for _, env := range local.Conversation(scope) {
			fmt.Printf("  #%d %s: %s\n", env.ID, env.SenderName, env.Text)
		}
	default:
		fmt.Println("commands: /join /leave /del /who /history")
	}
}

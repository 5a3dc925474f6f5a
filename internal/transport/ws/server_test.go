package ws

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"topper.blackblock.rocks/internal/browse"
	"topper.blackblock.rocks/internal/catalog"
	"topper.blackblock.rocks/internal/hub"
	"topper.blackblock.rocks/internal/permissions"
	"topper.blackblock.rocks/internal/protocol"
	"topper.blackblock.rocks/internal/stats/counters"
	"topper.blackblock.rocks/internal/stats/custom"
)

func startServer(t *testing.T) string {
	t.Helper()
	cat := catalog.New()
	cat.Register(catalog.Entry{ID: "stone", Name: "Stone", Kind: catalog.KindBlock}, 0, catalog.CategoryBuilding)
	h := hub.New(hub.Config{WorldID: "w", TickRateHz: 5}, browse.Deps{
		Catalog:  cat,
		Counters: counters.NewBook(),
		Store:    custom.NewStore(custom.Options{}),
	}, permissions.Nobody{}, log.New(io.Discard, "", 0))

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = h.Run(ctx) }()

	srv := httptest.NewServer(NewServer(h, log.New(io.Discard, "", 0)).Handler())
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMsg(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, b, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return m
}

func TestHandshakeOpenAndReject(t *testing.T) {
	url := startServer(t)
	conn := dial(t, url)

	if err := conn.WriteJSON(protocol.HelloMsg{Type: protocol.TypeHello, ProtocolVersion: protocol.Version, User: "alice"}); err != nil {
		t.Fatal(err)
	}
	if m := readMsg(t, conn); m["type"] != protocol.TypeWelcome || m["user"] != "alice" || m["world_id"] != "w" {
		t.Fatalf("welcome: %v", m)
	}

	_ = conn.WriteJSON(protocol.OpenMsg{Type: protocol.TypeOpen, ProtocolVersion: protocol.Version, Screen: "creative"})
	if m := readMsg(t, conn); m["type"] != protocol.TypeView {
		t.Fatalf("view: %v", m)
	}

	_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"DANCE","protocol_version":"1.0"}`))
	if m := readMsg(t, conn); m["code"] != protocol.ErrProtoBadRequest {
		t.Fatalf("reject: %v", m)
	}

	_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"OPEN","protocol_version":"0.1","screen":"creative"}`))
	if m := readMsg(t, conn); m["code"] != protocol.ErrProtoBadRequest {
		t.Fatalf("version: %v", m)
	}
}

func TestHandshakeRefusesDuplicateUser(t *testing.T) {
	url := startServer(t)
	first := dial(t, url)
	_ = first.WriteJSON(protocol.HelloMsg{Type: protocol.TypeHello, ProtocolVersion: protocol.Version, User: "bob"})
	readMsg(t, first)

	second := dial(t, url)
	_ = second.WriteJSON(protocol.HelloMsg{Type: protocol.TypeHello, ProtocolVersion: protocol.Version, User: "bob"})
	_ = second.SetReadDeadline(time.Now().Add(3 * time.Second))
	if _, _, err := second.ReadMessage(); !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
		t.Fatalf("expected policy close, got %v", err)
	}
}

func TestDecode(t *testing.T) {
	env, reason := decode("alice", []byte(`{"type":"STAT","protocol_version":"1.0","op":"list"}`))
	if reason != "" || env.Stat == nil || env.Stat.Op != "list" || env.User != "alice" {
		t.Fatalf("stat: %#v %q", env, reason)
	}
	if _, reason := decode("alice", []byte(`not json`)); reason == "" {
		t.Fatalf("malformed accepted")
	}
	if _, reason := decode("alice", []byte(`{"type":"HELLO","protocol_version":"1.0","user":"x"}`)); reason == "" {
		t.Fatalf("second HELLO accepted")
	}
}

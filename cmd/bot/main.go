package main

import (
	"encoding/json"
	"flag"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/websocket"

	"topper.blackblock.rocks/internal/protocol"
)

// The bot opens a screen and pokes at it with random events. It is a smoke client for a
// running server.
func main() {
	var (
		url      = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		user     = flag.String("user", "bot", "user name")
		screen   = flag.String("screen", protocol.ScreenCreative, "screen to open: creative or statistics")
		interval = flag.Duration("interval", 500*time.Millisecond, "delay between events")
		create   = flag.String("create", "", "create this custom statistic and score it after joining")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lmicroseconds)
	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(protocol.HelloMsg{Type: protocol.TypeHello, ProtocolVersion: protocol.Version, User: *user}); err != nil {
		logger.Fatalf("send HELLO: %v", err)
	}

	msgs := make(chan []byte, 16)
	go func() {
		defer close(msgs)
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				logger.Printf("read: %v", err)
				return
			}
			msgs <- msg
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	var view *protocol.ViewMsg
	for {
		select {
		case <-stop:
			_ = conn.WriteJSON(protocol.CloseMsg{Type: protocol.TypeClose, ProtocolVersion: protocol.Version})
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			if v := handle(conn, logger, msg, *screen, *create); v != nil {
				view = v
			}
		case <-ticker.C:
			if view == nil {
				continue
			}
			ev := randomEvent(view)
			if err := conn.WriteJSON(ev); err != nil {
				logger.Printf("send EVENT: %v", err)
				return
			}
		}
	}
}

func handle(conn *websocket.Conn, logger *log.Logger, msg []byte, screen, create string) *protocol.ViewMsg {
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		return nil
	}
	switch base.Type {
	case protocol.TypeWelcome:
		var w protocol.WelcomeMsg
		if err := json.Unmarshal(msg, &w); err != nil {
			return nil
		}
		logger.Printf("WELCOME user=%s world=%s entries=%d elevated=%v", w.User, w.WorldID, w.Catalog.Count, w.Elevated)
		if create != "" {
			_ = conn.WriteJSON(protocol.StatMsg{Type: protocol.TypeStat, ProtocolVersion: protocol.Version, ID: "create", Op: "create", Key: create, Name: create})
			_ = conn.WriteJSON(protocol.StatMsg{Type: protocol.TypeStat, ProtocolVersion: protocol.Version, ID: "score", Op: "add_score", Key: create, Value: 1 + rand.Intn(10)})
		}
		_ = conn.WriteJSON(protocol.OpenMsg{Type: protocol.TypeOpen, ProtocolVersion: protocol.Version, Screen: screen})
	case protocol.TypeView:
		var v protocol.ViewMsg
		if err := json.Unmarshal(msg, &v); err != nil {
			return nil
		}
		logger.Printf("VIEW %q criterion=%s order=%s page=%d/%d entries=%d", v.Title, v.Criterion.ID, v.Order.ID, v.Page.Page, v.Page.PageCount, len(v.Entries))
		return &v
	case protocol.TypeResult:
		var r protocol.ResultMsg
		if err := json.Unmarshal(msg, &r); err == nil {
			logger.Printf("RESULT id=%s ok=%v code=%s %s", r.ID, r.OK, r.Code, r.Message)
		}
	case protocol.TypeChat, protocol.TypeGive:
		logger.Printf("%s %s", base.Type, string(msg))
	}
	return nil
}

func randomEvent(v *protocol.ViewMsg) protocol.EventMsg {
	ev := protocol.EventMsg{Type: protocol.TypeEvent, ProtocolVersion: protocol.Version}
	switch rand.Intn(6) {
	case 0:
		if len(v.Tabs) > 0 {
			ev.Action = protocol.ActionSelectTab
			ev.Tab = v.Tabs[rand.Intn(len(v.Tabs))].ID
			return ev
		}
		ev.Action = protocol.ActionNextCriterion
	case 1:
		ev.Action = protocol.ActionNextCriterion
	case 2:
		ev.Action = protocol.ActionNextOrder
	case 3:
		ev.Action = protocol.ActionSetPage
		ev.Page = 1 + rand.Intn(v.Page.PageCount+1)
	case 4:
		ev.Action = protocol.ActionClick
		if n := len(v.Entries); n > 0 {
			ev.Slot = rand.Intn(n)
		}
	default:
		if len(v.Toggles) > 0 {
			ev.Action = protocol.ActionToggleHideEmpty
		} else {
			ev.Action = protocol.ActionPrevCriterion
		}
	}
	return ev
}

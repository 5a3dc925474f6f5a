package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"topper.blackblock.rocks/internal/hub"
	"topper.blackblock.rocks/internal/protocol"
)

const outQueue = 32

// Router is the part of the hub a connection talks to.
type Router interface {
	Join() chan<- hub.JoinRequest
	Leave() chan<- string
	Inbox() chan<- hub.Envelope
}

type Server struct {
	hub Router
	log *log.Logger

	upgrader websocket.Upgrader
}

func NewServer(h Router, logger *log.Logger) *Server {
	return &Server{
		hub: h,
		log: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		user, out := s.handshake(conn)
		if user == "" {
			return
		}

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b, ok := <-out:
					if !ok {
						return
					}
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		for {
			_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				cancel()
				break
			}
			env, perr := decode(user, msg)
			if perr != "" {
				reject(out, perr)
				continue
			}
			s.hub.Inbox() <- env
		}

		s.hub.Leave() <- user
	}
}

// decode turns one client frame into a hub envelope. A non-empty second result is the
// reason the frame was refused.
func decode(user string, msg []byte) (hub.Envelope, string) {
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		return hub.Envelope{}, "malformed json"
	}
	if base.ProtocolVersion != protocol.Version {
		return hub.Envelope{}, "bad protocol_version"
	}
	env := hub.Envelope{User: user}
	switch base.Type {
	case protocol.TypeOpen:
		env.Open = &protocol.OpenMsg{}
		err = json.Unmarshal(msg, env.Open)
	case protocol.TypeEvent:
		env.Event = &protocol.EventMsg{}
		err = json.Unmarshal(msg, env.Event)
	case protocol.TypeStat:
		env.Stat = &protocol.StatMsg{}
		err = json.Unmarshal(msg, env.Stat)
	case protocol.TypeClose:
		env.Close = &protocol.CloseMsg{}
		err = json.Unmarshal(msg, env.Close)
	default:
		return hub.Envelope{}, "unexpected message type " + base.Type
	}
	if err != nil {
		return hub.Envelope{}, "malformed " + base.Type
	}
	return env, ""
}

func reject(out chan []byte, reason string) {
	b, err := json.Marshal(protocol.ResultMsg{
		Type:            protocol.TypeResult,
		ProtocolVersion: protocol.Version,
		Code:            protocol.ErrProtoBadRequest,
		Message:         reason,
	})
	if err != nil {
		return
	}
	select {
	case out <- b:
	default:
	}
}

func (s *Server) handshake(conn *websocket.Conn) (user string, out chan []byte) {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return "", nil
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		closeWith(conn, "expected HELLO")
		return "", nil
	}
	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return "", nil
	}
	if hello.ProtocolVersion != protocol.Version {
		closeWith(conn, "bad protocol_version")
		return "", nil
	}
	hello.User = strings.TrimSpace(hello.User)

	out = make(chan []byte, outQueue)
	respCh := make(chan hub.JoinResponse, 1)
	s.hub.Join() <- hub.JoinRequest{User: hello.User, Out: out, Resp: respCh}
	resp := <-respCh
	if resp.Err != "" {
		if s.log != nil {
			s.log.Printf("join refused user=%q: %s", hello.User, resp.Err)
		}
		closeWith(conn, resp.Err)
		return "", nil
	}

	if err := writeJSON(conn, resp.Welcome); err != nil {
		s.hub.Leave() <- hello.User
		return "", nil
	}
	return hello.User, out
}

func closeWith(conn *websocket.Conn, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason), time.Now().Add(time.Second))
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}

package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"focuscraft.ai/internal/protocol"
	"focuscraft.ai/internal/sim/world"
)

type Config struct {
	// ActRatePerSec and ActBurst bound ACT messages per connection; 0 disables.
	ActRatePerSec float64
	ActBurst      int
}

type Server struct {
	world     *world.World
	log       *log.Logger
	cfg       Config
	validator *protocol.Validator

	upgrader websocket.Upgrader

	sessions  atomic.Int64
	rejected  atomic.Uint64
	rateLimit atomic.Uint64
}

type Stats struct {
	Sessions      int64  `json:"sessions"`
	RejectedTotal uint64 `json:"rejected_total"`
	RateLimited   uint64 `json:"rate_limited_total"`
}

func NewServer(w *world.World, v *protocol.Validator, cfg Config, logger *log.Logger) *Server {
	s := &Server{
		world:     w,
		log:       logger,
		cfg:       cfg,
		validator: v,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
	return s
}

func (s *Server) Stats() Stats {
	return Stats{
		Sessions:      s.sessions.Load(),
		RejectedTotal: s.rejected.Load(),
		RateLimited:   s.rateLimit.Load(),
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		agentID, sessionID, out := s.handshake(conn)
		if agentID == "" {
			return
		}
		s.sessions.Add(1)
		defer s.sessions.Add(-1)
		s.logf("session %s joined as %s", sessionID, agentID)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// ACKs produced here never go through out: the world owns (and may
		// close) that channel.
		local := make(chan []byte, 16)

		// Writer goroutine.
		go func() {
			defer cancel()
			for {
				var b []byte
				select {
				case <-ctx.Done():
					return
				case msg, ok := <-out:
					if !ok {
						// The world dropped us for falling behind.
						_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "outbound queue overflow"), time.Now().Add(time.Second))
						_ = conn.Close()
						return
					}
					b = msg
				case msg := <-local:
					b = msg
				}
				_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
					_ = conn.Close()
					return
				}
			}
		}()

		var limiter *rate.Limiter
		if s.cfg.ActRatePerSec > 0 {
			burst := s.cfg.ActBurst
			if burst <= 0 {
				burst = 1
			}
			limiter = rate.NewLimiter(rate.Limit(s.cfg.ActRatePerSec), burst)
		}
		reject := func(seq uint64, code, msg string) {
			s.rejected.Add(1)
			b, _ := json.Marshal(protocol.NewAck(seq, s.world.CurrentTick(), code, msg))
			select {
			case local <- b:
			default:
			}
		}

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			base, err := protocol.DecodeBase(msg)
			if err != nil {
				reject(0, protocol.ErrProtoBadRequest, "invalid json")
				continue
			}
			if base.Type != protocol.TypeAct {
				reject(0, protocol.ErrProtoBadRequest, "unexpected message type "+base.Type)
				continue
			}
			var act protocol.ActMsg
			if err := json.Unmarshal(msg, &act); err != nil {
				reject(0, protocol.ErrProtoBadRequest, "invalid ACT")
				continue
			}
			if act.ProtocolVersion != protocol.Version {
				reject(act.Seq, protocol.ErrProtoBadRequest, "bad protocol_version")
				continue
			}
			if s.validator != nil {
				if err := s.validator.Validate(protocol.TypeAct, msg); err != nil {
					reject(act.Seq, protocol.ErrProtoBadRequest, err.Error())
					continue
				}
			}
			env := world.ActionEnvelope{AgentID: agentID, Act: act}
			// Interaction intents are never shed: a dropped END would leave
			// the agent holding on the server. Only pose updates are limited.
			if carriesIntent(act.Calls) {
				select {
				case s.world.Inbox() <- env:
				case <-ctx.Done():
				case <-s.world.Done():
				}
				continue
			}
			if limiter != nil && !limiter.Allow() {
				s.rateLimit.Add(1)
				reject(act.Seq, protocol.ErrRateLimit, "too many ACT messages")
				continue
			}
			select {
			case s.world.Inbox() <- env:
			default:
				reject(act.Seq, protocol.ErrWorldBusy, "world inbox full")
			}
		}

		// Cleanup.
		cancel()
		s.world.Leave() <- agentID
		s.logf("session %s (%s) left", sessionID, agentID)
	}
}

func (s *Server) handshake(conn *websocket.Conn) (agentID, sessionID string, out chan []byte) {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return "", "", nil
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		closeWith(conn, websocket.ClosePolicyViolation, "expected HELLO")
		return "", "", nil
	}
	if s.validator != nil {
		if err := s.validator.Validate(protocol.TypeHello, msg); err != nil {
			closeWith(conn, websocket.ClosePolicyViolation, "bad HELLO")
			return "", "", nil
		}
	}

	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return "", "", nil
	}
	if hello.ProtocolVersion != protocol.Version {
		closeWith(conn, websocket.ClosePolicyViolation, "bad protocol_version")
		return "", "", nil
	}

	maxQ := hello.MaxQueue
	if maxQ <= 0 {
		maxQ = 8
	}
	if maxQ > 64 {
		maxQ = 64
	}
	out = make(chan []byte, maxQ)
	sessionID = uuid.NewString()

	respCh := make(chan world.JoinResponse, 1)
	s.world.Join() <- world.JoinRequest{
		Name:      hello.AgentName,
		SessionID: sessionID,
		Out:       out,
		Resp:      respCh,
	}
	resp := <-respCh

	// Send welcome immediately; queued REPL/EVENT follow through out.
	if err := writeJSON(conn, resp.Welcome); err != nil {
		s.world.Leave() <- resp.Welcome.AgentID
		return "", "", nil
	}
	return resp.Welcome.AgentID, sessionID, out
}

func (s *Server) logf(format string, args ...any) {
	if s.log != nil {
		s.log.Printf(format, args...)
	}
}

func closeWith(conn *websocket.Conn, code int, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(time.Second))
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}

func carriesIntent(calls []protocol.Call) bool {
	for _, c := range calls {
		if c.Type != protocol.CallLook {
			return true
		}
	}
	return false
}

package observer

import (
	"context"
	"encoding/json"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"focuscraft.ai/internal/observerproto"
	"focuscraft.ai/internal/sim/world"
)

const maxRecentEvents = 1024

// Server streams the world's published per-tick state to local debugging
// tools. It never touches world state directly: frames are built from
// Views/Objects/Metrics and from events collected by Record.
type Server struct {
	world *world.World
	log   *log.Logger

	upgrader websocket.Upgrader
	poll     time.Duration

	mu     sync.Mutex
	recent []observerproto.EventSummary
}

func NewServer(w *world.World, logger *log.Logger) *Server {
	poll := w.Config().TickDuration()
	return &Server{
		world: w,
		log:   logger,
		poll:  poll,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

// Record is a world event sink. It runs on the world loop and only appends
// to a bounded buffer.
func (s *Server) Record(ev world.EventRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recent = append(s.recent, observerproto.EventSummary{
		Tick:     ev.Tick,
		Kind:     ev.Kind.String(),
		ObjectID: ev.ObjectID,
		AgentID:  ev.AgentID,
	})
	if over := len(s.recent) - maxRecentEvents; over > 0 {
		s.recent = append(s.recent[:0], s.recent[over:]...)
	}
}

// eventsBetween returns recorded events with from <= tick < to.
func (s *Server) eventsBetween(from, to uint64, match func(string) bool) []observerproto.EventSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []observerproto.EventSummary
	for _, e := range s.recent {
		if e.Tick >= from && e.Tick < to && match(e.AgentID) {
			out = append(out, e)
		}
	}
	return out
}

func (s *Server) BootstrapHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		cfg := s.world.Config()
		resp := observerproto.BootstrapResponse{
			ProtocolVersion: observerproto.Version,
			WorldID:         cfg.ID,
			Role:            cfg.Role.String(),
			Tick:            s.world.CurrentTick(),
			TickRateHz:      cfg.TickRateHz,
			Objects:         s.world.Objects(),
		}

		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(resp)
	}
}

func (s *Server) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Handshake: must send SUBSCRIBE first.
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		sub, ok := parseSubscribe(msg)
		if !ok {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected SUBSCRIBE"), time.Now().Add(time.Second))
			return
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		subs := make(chan observerproto.SubscribeMsg, 1)

		// Writer goroutine.
		writeErr := make(chan error, 1)
		go func() {
			ticker := time.NewTicker(s.poll)
			defer ticker.Stop()
			var lastTick, nextFrom uint64
			sent := false
			for {
				select {
				case <-ctx.Done():
					writeErr <- ctx.Err()
					return
				case sub = <-subs:
				case <-ticker.C:
					tick := s.world.CurrentTick()
					if sent && tick < lastTick+uint64(sub.EveryTicks) {
						continue
					}
					frame := s.frame(sub, nextFrom)
					b, err := json.Marshal(frame)
					if err != nil {
						continue
					}
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						writeErr <- err
						return
					}
					sent, lastTick, nextFrom = true, tick, frame.Tick
				}
			}
		}()

		// Reader loop: allow SUBSCRIBE updates.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			next, ok := parseSubscribe(msg)
			if !ok {
				continue
			}
			select {
			case subs <- next:
			default:
				// Drop updates under load; the client may resend.
			}
		}

		cancel()
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))

		// Best-effort wait for the writer to stop so it doesn't outlive conn.
		select {
		case <-writeErr:
		case <-time.After(500 * time.Millisecond):
		}
	}
}

// frame builds one FRAME. It carries the events of completed ticks from
// fromTick on; the next frame starts where this one ended.
func (s *Server) frame(sub observerproto.SubscribeMsg, fromTick uint64) observerproto.FrameMsg {
	match := func(string) bool { return true }
	if len(sub.Agents) > 0 {
		want := make(map[string]bool, len(sub.Agents))
		for _, id := range sub.Agents {
			want[id] = true
		}
		match = func(id string) bool { return want[id] }
	}

	m := s.world.Metrics()
	f := observerproto.FrameMsg{
		Type:            "FRAME",
		ProtocolVersion: observerproto.Version,
		Tick:            m.Tick,
		Focusing:        m.Focusing,
		Interacting:     m.Interacting,
		EventsTotal:     m.EventsTotal,
		StepMS:          m.StepMS,
		Agents:          []observerproto.AgentState{},
	}
	for _, v := range s.world.Views() {
		if !match(v.AgentID) {
			continue
		}
		f.Agents = append(f.Agents, observerproto.AgentState{
			ID:          v.AgentID,
			Pos:         v.Pos.ToArray(),
			Pitch:       v.Rot.Pitch,
			Yaw:         v.Rot.Yaw,
			Target:      v.Target,
			CanInteract: v.CanInteract,
			Held:        v.Held,
			Interacting: v.Interacting,
			RemainingMs: v.Remaining.Milliseconds(),
			Progress:    v.Progress,
		})
	}
	for _, o := range s.world.Objects() {
		f.Objects = append(f.Objects, observerproto.ObjectState{ID: o.ID, Active: o.Active})
	}
	f.Events = s.eventsBetween(fromTick, m.Tick, match)
	return f
}

func parseSubscribe(msg []byte) (observerproto.SubscribeMsg, bool) {
	var sub observerproto.SubscribeMsg
	if err := json.Unmarshal(msg, &sub); err != nil {
		return sub, false
	}
	if sub.Type != "SUBSCRIBE" || sub.ProtocolVersion != observerproto.Version {
		return sub, false
	}
	if sub.EveryTicks <= 0 {
		sub.EveryTicks = 1
	}
	if sub.EveryTicks > 1000 {
		sub.EveryTicks = 1000
	}
	return sub, true
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

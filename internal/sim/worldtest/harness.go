package worldtest

import (
	"encoding/json"
	"testing"

	"focuscraft.ai/internal/client"
	"focuscraft.ai/internal/protocol"
	"focuscraft.ai/internal/sim/catalogs"
	"focuscraft.ai/internal/sim/world"
)

// Harness is a small black-box test helper for driving an authority world via
// exported APIs, optionally paired with per-agent replica worlds:
//   - Join() issues a JoinRequest via StepOnce()
//   - Step()/StepFor() send ACT calls to the authority
//   - Press() applies a call on an agent's replica, which forwards intent to
//     the authority on the next step, as a networked client would
//   - per-agent Out channels are decoded into EVENT/ACK lists and REPL is fed
//     to the replica
//
// It never touches world internals so tests can live outside the world package.
type Harness struct {
	T    *testing.T
	Cats *catalogs.Catalogs
	W    *world.World

	DefaultAgentID string

	sessions map[string]*session
	order    []string
	// forwarded holds replica intents for the next authority step.
	forwarded []world.ActionEnvelope
	digests   []string
}

type session struct {
	AgentID string
	Welcome protocol.WelcomeMsg
	Out     chan []byte
	seq     uint64

	events []protocol.EventMsg
	acks   []protocol.AckMsg

	replica *world.World
	repl    []protocol.ReplMsg
	local   []protocol.Call
}

func NewHarness(t *testing.T, cfg world.WorldConfig, cats *catalogs.Catalogs, agentName string) *Harness {
	t.Helper()

	w, err := world.New(cfg, cats)
	if err != nil {
		t.Fatalf("world.New: %v", err)
	}
	h := &Harness{
		T:        t,
		Cats:     cats,
		W:        w,
		sessions: map[string]*session{},
	}
	h.DefaultAgentID = h.Join(agentName)
	return h
}

func (h *Harness) Join(agentName string) string {
	h.T.Helper()

	out := make(chan []byte, 256)
	resp := make(chan world.JoinResponse, 1)
	h.step(world.StepInput{Joins: []world.JoinRequest{{Name: agentName, Out: out, Resp: resp}}})
	jr := <-resp
	if jr.Welcome.AgentID == "" {
		h.T.Fatalf("join returned empty agent id")
	}
	s := &session{AgentID: jr.Welcome.AgentID, Welcome: jr.Welcome, Out: out}
	h.sessions[s.AgentID] = s
	h.order = append(h.order, s.AgentID)
	h.drain(s)
	return s.AgentID
}

// AttachReplica builds a predicting replica for agentID from its WELCOME, the
// same way a networked client does.
func (h *Harness) AttachReplica(agentID string) *world.World {
	h.T.Helper()
	s := h.session(agentID)
	rw, err := world.New(client.ReplicaConfig(s.Welcome), world.CatalogsFromWelcome(s.Welcome))
	if err != nil {
		h.T.Fatalf("replica: %v", err)
	}
	rw.SetForwarder(forwarder{h: h, s: s})
	rw.SpawnLocal(agentID, "replica", s.Welcome.Spawn, s.Welcome.CanInteract)
	s.replica = rw
	return rw
}

func (h *Harness) Leave(agentID string) {
	h.T.Helper()
	h.step(world.StepInput{Leaves: []string{agentID}})
}

// Step runs one tick with calls from the default agent.
func (h *Harness) Step(calls ...protocol.Call) {
	h.StepFor(h.DefaultAgentID, calls...)
}

func (h *Harness) StepFor(agentID string, calls ...protocol.Call) {
	h.T.Helper()
	var in world.StepInput
	if len(calls) > 0 {
		in.Actions = []world.ActionEnvelope{h.envelope(h.session(agentID), calls)}
	}
	h.step(in)
}

// StepIdle runs n ticks without new input.
func (h *Harness) StepIdle(n int) {
	for i := 0; i < n; i++ {
		h.step(world.StepInput{})
	}
}

// Press queues a call on agentID's replica; it is applied at the replica's
// next tick, which forwards it to the authority.
func (h *Harness) Press(agentID string, call protocol.Call) {
	h.T.Helper()
	s := h.session(agentID)
	if s.replica == nil {
		h.T.Fatalf("Press: no replica for %s", agentID)
	}
	s.local = append(s.local, call)
}

// SetActive toggles an object at the next tick boundary.
func (h *Harness) SetActive(objectID string, active bool) error {
	h.T.Helper()
	errc := make(chan error, 1)
	h.step(world.StepInput{Admin: []world.ObjectActiveRequest{{ObjectID: objectID, Active: active, Resp: errc}}})
	return <-errc
}

func (h *Harness) Events(agentID string) []protocol.EventMsg { return h.session(agentID).events }
func (h *Harness) Acks(agentID string) []protocol.AckMsg     { return h.session(agentID).acks }
func (h *Harness) Digests() []string                         { return h.digests }

// EventKinds lists agentID's events as KIND@object.
func (h *Harness) EventKinds(agentID string) []string {
	var out []string
	for _, ev := range h.Events(agentID) {
		out = append(out, ev.Kind+"@"+ev.ObjectID)
	}
	return out
}

func (h *Harness) View(agentID string) world.AgentView {
	v, _ := h.W.View(agentID)
	return v
}

func (h *Harness) ReplicaView(agentID string) world.AgentView {
	s := h.session(agentID)
	if s.replica == nil {
		h.T.Fatalf("ReplicaView: no replica for %s", agentID)
	}
	v, _ := s.replica.View(agentID)
	return v
}

func (h *Harness) session(agentID string) *session {
	s := h.sessions[agentID]
	if s == nil {
		h.T.Fatalf("unknown agent id: %q", agentID)
	}
	return s
}

func (h *Harness) envelope(s *session, calls []protocol.Call) world.ActionEnvelope {
	s.seq++
	return world.ActionEnvelope{AgentID: s.AgentID, Act: protocol.ActMsg{
		Type:            protocol.TypeAct,
		ProtocolVersion: protocol.Version,
		Seq:             s.seq,
		AgentID:         s.AgentID,
		Calls:           calls,
	}}
}

// step runs the authority tick, routes its output and then ticks every
// replica on what it received.
func (h *Harness) step(in world.StepInput) {
	h.T.Helper()
	in.Actions = append(h.forwarded, in.Actions...)
	h.forwarded = nil

	_, digest := h.W.StepOnce(in)
	h.digests = append(h.digests, digest)

	for _, id := range h.order {
		s := h.sessions[id]
		h.drain(s)
		if s.replica == nil {
			continue
		}
		rin := world.StepInput{Replicated: s.repl}
		if len(s.local) > 0 {
			rin.Actions = []world.ActionEnvelope{{AgentID: id, Act: protocol.ActMsg{
				Type:            protocol.TypeAct,
				ProtocolVersion: protocol.Version,
				Calls:           s.local,
			}}}
		}
		s.repl, s.local = nil, nil
		s.replica.StepOnce(rin)
	}
}

func (h *Harness) drain(s *session) {
	h.T.Helper()
	for {
		select {
		case b, ok := <-s.Out:
			if !ok {
				return
			}
			h.route(s, b)
		default:
			return
		}
	}
}

func (h *Harness) route(s *session, b []byte) {
	h.T.Helper()
	base, err := protocol.DecodeBase(b)
	if err != nil {
		h.T.Fatalf("decode: %v", err)
	}
	switch base.Type {
	case protocol.TypeEvent:
		var ev protocol.EventMsg
		if err := json.Unmarshal(b, &ev); err != nil {
			h.T.Fatalf("EVENT: %v", err)
		}
		s.events = append(s.events, ev)
	case protocol.TypeAck:
		var a protocol.AckMsg
		if err := json.Unmarshal(b, &a); err != nil {
			h.T.Fatalf("ACK: %v", err)
		}
		s.acks = append(s.acks, a)
	case protocol.TypeRepl:
		var m protocol.ReplMsg
		if err := json.Unmarshal(b, &m); err != nil {
			h.T.Fatalf("REPL: %v", err)
		}
		s.repl = append(s.repl, m)
	}
}

// forwarder carries a replica's intents to the authority like the network
// client does.
type forwarder struct {
	h *Harness
	s *session
}

func (f forwarder) ServerLook(_ string, pos [3]float64, pitch, yaw float64) {
	f.send(protocol.Call{Type: protocol.CallLook, Pos: &pos, Pitch: pitch, Yaw: yaw})
}

func (f forwarder) ServerBeginInteract(string) {
	f.send(protocol.Call{Type: protocol.CallBeginInteract})
}

func (f forwarder) ServerEndInteract(string) {
	f.send(protocol.Call{Type: protocol.CallEndInteract})
}

func (f forwarder) ServerSetCanInteract(_ string, value bool) {
	v := value
	f.send(protocol.Call{Type: protocol.CallSetCanInteract, Value: &v})
}

func (f forwarder) send(call protocol.Call) {
	f.h.forwarded = append(f.h.forwarded, f.h.envelope(f.s, []protocol.Call{call}))
}

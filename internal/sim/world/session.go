package world

import (
	"encoding/json"
	"fmt"
	"strings"

	"focuscraft.ai/internal/protocol"
	"focuscraft.ai/internal/sim/geom"
)

// clientState is the outbound side of one connected session. REPL and EVENT
// messages are reliable: they queue in pending and move to Out in order as
// the writer drains it.
type clientState struct {
	Out       chan []byte
	SessionID string

	pending [][]byte
}

func (c *clientState) flush() {
	sent := 0
loop:
	for _, b := range c.pending {
		select {
		case c.Out <- b:
			sent++
		default:
			break loop
		}
	}
	if sent == len(c.pending) {
		c.pending = c.pending[:0]
		return
	}
	c.pending = append(c.pending[:0], c.pending[sent:]...)
}

func (w *World) enqueue(agentID string, msg any) {
	cl := w.clients[agentID]
	if cl == nil {
		return
	}
	b, err := json.Marshal(msg)
	if err != nil {
		return
	}
	cl.pending = append(cl.pending, b)
}

func (w *World) flushClients() {
	for _, id := range w.agentOrder {
		cl := w.clients[id]
		if cl == nil {
			continue
		}
		cl.flush()
		if len(cl.pending) > w.cfg.MaxQueue {
			// The session's writer sees the closed channel and hangs up;
			// its leave arrives at a later tick.
			w.logf("client %s (%s) fell %d messages behind; disconnecting", id, cl.SessionID, len(cl.pending))
			close(cl.Out)
			delete(w.clients, id)
		}
	}
}

func normalizeAgentName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "agent"
	}
	if len(name) > 64 {
		name = name[:64]
	}
	return name
}

func (w *World) joinAgent(req JoinRequest) JoinResponse {
	n := w.nextAgentNum.Add(1)
	agentID := fmt.Sprintf("A%d", n)
	name := normalizeAgentName(req.Name)

	sp := w.spawns.Spawn(int(n - 1))
	a := w.addAgent(agentID, name, geom.FromArray(sp.Pos), geom.Rotator{Yaw: sp.Yaw})
	if req.Out != nil {
		w.clients[agentID] = &clientState{Out: req.Out, SessionID: req.SessionID}
	}

	objects := make([]protocol.ObjectInfo, 0, len(w.objectOrder))
	for _, id := range w.objectOrder {
		objects = append(objects, w.objects[id].Info())
	}
	return JoinResponse{Welcome: protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       req.SessionID,
		AgentID:         agentID,
		WorldParams: protocol.WorldParams{
			WorldID:         w.cfg.ID,
			TickRateHz:      w.cfg.TickRateHz,
			ScanFrequencyMs: int(w.cfg.Interactor.ScanFrequency.Milliseconds()),
			ScanDistance:    w.cfg.Interactor.ScanDistance,
			EyeHeight:       w.cfg.EyeHeight,
		},
		Spawn:         protocol.Pose{Pos: a.Pos.ToArray(), Pitch: a.Rot.Pitch, Yaw: a.Rot.Yaw},
		CanInteract:   a.in.CanInteract(),
		ObjectsDigest: w.objectsDigest,
		Objects:       objects,
	}}
}

// removeAgent ends the agent's focus and interaction before dropping it, so
// no object keeps a reference to an agent that no longer exists.
func (w *World) removeAgent(agentID string) {
	a := w.agents[agentID]
	if a == nil {
		return
	}
	delete(w.clients, agentID)

	a.in.EndPlay()
	for _, id := range w.objectOrder {
		if ia := w.objects[id].ia; ia.HasInteractor(a) {
			ia.EndInteract(a)
		}
	}
	a.Controlled = false

	delete(w.agents, agentID)
	w.agentOrder = removeSorted(w.agentOrder, agentID)
}

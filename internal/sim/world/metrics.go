package world

import (
	"sort"
	"time"

	"focuscraft.ai/internal/protocol"
	"focuscraft.ai/internal/sim/geom"
)

// WorldMetrics is a thread-safe read-only view of key world runtime signals.
// It is updated from the world loop goroutine and read from HTTP handlers/tests.
type WorldMetrics struct {
	Tick uint64 `json:"tick"`
	Role string `json:"role"`

	Agents        int `json:"agents"`
	Clients       int `json:"clients"`
	Objects       int `json:"objects"`
	ActiveObjects int `json:"active_objects"`
	Focusing      int `json:"focusing"`
	Interacting   int `json:"interacting"`

	EventsTotal uint64 `json:"events_total"`
	Timers      int    `json:"timers"`

	QueueDepths QueueDepths `json:"queue_depths"`

	StepMS float64 `json:"step_ms"`
}

type QueueDepths struct {
	Inbox      int `json:"inbox"`
	Join       int `json:"join"`
	Leave      int `json:"leave"`
	Replicated int `json:"replicated"`
	// Outbound is the total REPL/EVENT backlog across clients.
	Outbound int `json:"outbound"`
}

// AgentView is a per-tick snapshot of one agent's interaction state.
type AgentView struct {
	Tick        uint64        `json:"tick"`
	AgentID     string        `json:"agent_id"`
	Pos         geom.Vec3     `json:"pos"`
	Rot         geom.Rotator  `json:"rot"`
	Target      string        `json:"target,omitempty"`
	CanInteract bool          `json:"can_interact"`
	Held        bool          `json:"held"`
	Interacting bool          `json:"interacting"`
	Remaining   time.Duration `json:"remaining"`
	Progress    float64       `json:"progress"`
}

func (w *World) Metrics() WorldMetrics {
	if w == nil {
		return WorldMetrics{}
	}
	m, _ := w.metrics.Load().(WorldMetrics)
	return m
}

// View returns the snapshot of agentID taken at the end of the last tick.
func (w *World) View(agentID string) (AgentView, bool) {
	if w == nil {
		return AgentView{}, false
	}
	views, _ := w.views.Load().(map[string]AgentView)
	v, ok := views[agentID]
	return v, ok
}

// Views returns every agent snapshot of the last tick, ordered by agent id.
func (w *World) Views() []AgentView {
	if w == nil {
		return nil
	}
	views, _ := w.views.Load().(map[string]AgentView)
	out := make([]AgentView, 0, len(views))
	for _, v := range views {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AgentID < out[j].AgentID })
	return out
}

// Objects returns the object descriptions as of the last tick. The slice is
// shared and must not be modified.
func (w *World) Objects() []protocol.ObjectInfo {
	if w == nil {
		return nil
	}
	objs, _ := w.objectInfos.Load().([]protocol.ObjectInfo)
	return objs
}

func (w *World) publish(tick uint64, stepMS float64) {
	views := make(map[string]AgentView, len(w.agents))
	focusing, interacting := 0, 0
	for _, id := range w.agentOrder {
		a := w.agents[id]
		in := a.in
		v := AgentView{
			Tick:        tick,
			AgentID:     id,
			Pos:         a.Pos,
			Rot:         a.Rot,
			Target:      in.CurrentActor(),
			CanInteract: in.CanInteract(),
			Held:        in.InteractHeld(),
			Interacting: in.IsInteracting(),
			Remaining:   in.RemainingInteractTime(),
		}
		if ia := in.Interactable(); ia != nil {
			focusing++
			if ia.InteractionTime() > 0 && v.Interacting {
				v.Progress = 1 - float64(v.Remaining)/float64(ia.InteractionTime())
			}
		}
		if v.Interacting {
			interacting++
		}
		views[id] = v
	}
	w.views.Store(views)

	active := 0
	infos := make([]protocol.ObjectInfo, 0, len(w.objectOrder))
	for _, id := range w.objectOrder {
		o := w.objects[id]
		if o.ia.IsActive() {
			active++
		}
		infos = append(infos, o.Info())
	}
	w.objectInfos.Store(infos)
	outbound := 0
	for _, cl := range w.clients {
		outbound += len(cl.pending)
	}

	w.metrics.Store(WorldMetrics{
		Tick:          tick,
		Role:          w.cfg.Role.String(),
		Agents:        len(w.agents),
		Clients:       len(w.clients),
		Objects:       len(w.objects),
		ActiveObjects: active,
		Focusing:      focusing,
		Interacting:   interacting,
		EventsTotal:   w.eventsTotal,
		Timers:        w.clock.ActiveTimers(),
		QueueDepths: QueueDepths{
			Inbox:      len(w.inbox),
			Join:       len(w.join),
			Leave:      len(w.leave),
			Replicated: len(w.replicated),
			Outbound:   outbound,
		},
		StepMS: stepMS,
	})
}

package world

import (
	"fmt"

	"focuscraft.ai/internal/protocol"
	"focuscraft.ai/internal/sim/interaction"
)

// ReplicateCanInteract pushes the authoritative gate to the owning client.
func (w *World) ReplicateCanInteract(agentID string, value bool) {
	v := value
	w.enqueue(agentID, protocol.ReplMsg{
		Type:            protocol.TypeRepl,
		ProtocolVersion: protocol.Version,
		Tick:            w.tick.Load(),
		AgentID:         agentID,
		CanInteract:     &v,
	})
}

func (w *World) handleEvent(ev interaction.Event) {
	rec := EventRecord{
		Tick:     w.tick.Load(),
		Kind:     ev.Kind,
		ObjectID: ev.Target.ActorID(),
		AgentID:  ev.AgentID(),
	}
	w.eventsThisTick++
	w.eventsTotal++

	if w.auditLogger != nil {
		_ = w.auditLogger.WriteAudit(AuditEntry{
			Tick:   rec.Tick,
			World:  w.cfg.ID,
			Role:   w.cfg.Role.String(),
			Kind:   rec.Kind.String(),
			Object: rec.ObjectID,
			Agent:  rec.AgentID,
		})
	}
	if w.cfg.Role == RoleAuthority && rec.AgentID != "" {
		w.enqueue(rec.AgentID, protocol.EventMsg{
			Type:            protocol.TypeEvent,
			ProtocolVersion: protocol.Version,
			Tick:            rec.Tick,
			Kind:            rec.Kind.String(),
			ObjectID:        rec.ObjectID,
			AgentID:         rec.AgentID,
		})
	}
	if w.eventSink != nil {
		w.eventSink(rec)
	}
}

// applyReplication applies server state on a replica.
func (w *World) applyReplication(m protocol.ReplMsg) {
	if m.CanInteract != nil {
		if a := w.agents[m.AgentID]; a != nil {
			a.in.ApplyReplicatedCanInteract(*m.CanInteract)
		}
	}
	for _, o := range m.Objects {
		_ = w.setObjectActive(o.ID, o.Active)
	}
}

// setObjectActive toggles an object. Agents focused on a deactivated object
// drop it at their next scan. The authority tells every client.
func (w *World) setObjectActive(id string, active bool) error {
	o := w.objects[id]
	if o == nil {
		return fmt.Errorf("unknown object %q", id)
	}
	if o.ia.IsActive() == active {
		return nil
	}
	if active {
		o.ia.Activate()
	} else {
		o.ia.Deactivate()
	}

	if w.cfg.Role != RoleAuthority {
		return nil
	}
	for _, agentID := range w.agentOrder {
		w.enqueue(agentID, protocol.ReplMsg{
			Type:            protocol.TypeRepl,
			ProtocolVersion: protocol.Version,
			Tick:            w.tick.Load(),
			AgentID:         agentID,
			Objects:         []protocol.ObjectActive{{ID: id, Active: active}},
		})
	}
	return nil
}

package world

import (
	"math"

	"focuscraft.ai/internal/protocol"
	"focuscraft.ai/internal/sim/geom"
)

// applyAct runs the calls of one ACT in order and returns what was applied.
// On the authority a replayed sequence number is rejected as stale and any
// malformed call is reported in a single rejection ACK; the well-formed calls
// of the same ACT still run.
func (w *World) applyAct(a *Agent, act protocol.ActMsg, nowTick uint64) []RecordedCall {
	authority := w.cfg.Role == RoleAuthority
	if authority && act.Seq != 0 {
		if act.Seq <= a.lastSeq {
			w.enqueue(a.ID, protocol.NewAck(act.Seq, nowTick, protocol.ErrStale, "sequence already applied"))
			return nil
		}
		a.lastSeq = act.Seq
	}

	recorded := make([]RecordedCall, 0, len(act.Calls))
	var code, msg string
	for _, c := range act.Calls {
		if rc, rm := w.applyCall(a, c); rc != "" {
			if code == "" {
				code, msg = rc, rm
			}
			continue
		}
		recorded = append(recorded, RecordedCall{AgentID: a.ID, Seq: act.Seq, Call: c})
	}
	if code != "" && authority {
		w.enqueue(a.ID, protocol.NewAck(act.Seq, nowTick, code, msg))
	}
	return recorded
}

func (w *World) applyCall(a *Agent, c protocol.Call) (code, msg string) {
	switch c.Type {
	case protocol.CallLook:
		if c.Pos == nil {
			return protocol.ErrBadRequest, "LOOK requires pos"
		}
		p := geom.FromArray(*c.Pos)
		if !finite(p.X) || !finite(p.Y) || !finite(p.Z) || !finite(c.Pitch) || !finite(c.Yaw) {
			return protocol.ErrBadRequest, "LOOK pose must be finite"
		}
		a.Pos = p
		a.Rot = geom.Rotator{Pitch: math.Max(-90, math.Min(90, c.Pitch)), Yaw: c.Yaw}
		if lf, ok := w.forwarder.(LookForwarder); ok && w.cfg.Role == RoleReplica {
			lf.ServerLook(a.ID, *c.Pos, c.Pitch, c.Yaw)
		}
	case protocol.CallBeginInteract:
		a.in.BeginInteract()
	case protocol.CallEndInteract:
		a.in.EndInteract()
	case protocol.CallSetCanInteract:
		if c.Value == nil {
			return protocol.ErrBadRequest, "SET_CAN_INTERACT requires value"
		}
		a.in.SetCanInteract(*c.Value)
	default:
		return protocol.ErrUnknownCall, "unknown call type " + c.Type
	}
	return "", ""
}

func finite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }

package world

import "focuscraft.ai/internal/protocol"

// StepInput rebuilds the input that produced e. Consecutive calls sharing an
// agent and sequence number are regrouped into one ACT.
func (e TickLogEntry) StepInput() StepInput {
	in := StepInput{Leaves: e.Leaves}
	for _, j := range e.Joins {
		in.Joins = append(in.Joins, JoinRequest{Name: j.Name})
	}
	for _, t := range e.Admin {
		in.Admin = append(in.Admin, ObjectActiveRequest{ObjectID: t.ObjectID, Active: t.Active})
	}
	for _, rc := range e.Calls {
		n := len(in.Actions)
		if n > 0 && in.Actions[n-1].AgentID == rc.AgentID && in.Actions[n-1].Act.Seq == rc.Seq {
			in.Actions[n-1].Act.Calls = append(in.Actions[n-1].Act.Calls, rc.Call)
			continue
		}
		in.Actions = append(in.Actions, ActionEnvelope{AgentID: rc.AgentID, Act: protocol.ActMsg{
			Type:            protocol.TypeAct,
			ProtocolVersion: protocol.Version,
			Seq:             rc.Seq,
			AgentID:         rc.AgentID,
			Calls:           []protocol.Call{rc.Call},
		}})
	}
	return in
}

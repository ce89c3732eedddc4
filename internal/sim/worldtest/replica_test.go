package worldtest

import (
	"testing"

	"focuscraft.ai/internal/protocol"
)

func TestReplicaPredictsPressAndServerCompletes(t *testing.T) {
	h := newHarness(t, object("door", [3]float64{300, 0, 0}, 100))
	id := h.DefaultAgentID
	h.AttachReplica(id)
	h.StepIdle(1)

	if v := h.ReplicaView(id); v.Target != "door" {
		t.Fatalf("replica target: %+v", v)
	}
	if v := h.View(id); v.Target != "door" {
		t.Fatalf("authority target: %+v", v)
	}

	h.Press(id, protocol.Call{Type: protocol.CallBeginInteract})
	h.StepIdle(1)
	// The replica has applied the press; the authority sees it next tick.
	if v := h.ReplicaView(id); !v.Held || !v.Interacting {
		t.Fatalf("replica did not predict hold: %+v", v)
	}
	if v := h.View(id); v.Held {
		t.Fatalf("authority held before the forwarded press arrived: %+v", v)
	}

	h.StepIdle(4)
	kinds := h.EventKinds(id)
	if indexOf(kinds, "INTERACT@door") < 0 {
		t.Fatalf("no INTERACT from the authority: %v", kinds)
	}
	if v := h.View(id); !v.Held || v.Interacting {
		t.Fatalf("authority after completion: %+v", v)
	}

	h.Press(id, protocol.Call{Type: protocol.CallEndInteract})
	h.StepIdle(2)
	if v := h.View(id); v.Held {
		t.Fatalf("release not forwarded: %+v", v)
	}
}

func TestReplicaFollowsReplicatedCanInteract(t *testing.T) {
	h := newHarness(t, object("door", [3]float64{300, 0, 0}, 1000))
	id := h.DefaultAgentID
	h.AttachReplica(id)
	h.StepIdle(1)

	h.Press(id, protocol.Call{Type: protocol.CallSetCanInteract, Value: boolp(false)})
	h.StepIdle(1)
	// The replica only asks; the gate stays until the server replicates.
	if v := h.ReplicaView(id); !v.CanInteract {
		t.Fatalf("replica changed the gate on its own: %+v", v)
	}

	h.StepIdle(1)
	if v := h.View(id); v.CanInteract || v.Target != "" {
		t.Fatalf("authority gate: %+v", v)
	}
	if v := h.ReplicaView(id); v.CanInteract || v.Target != "" {
		t.Fatalf("replica did not follow replicated gate: %+v", v)
	}
}

func TestReplicaSeesObjectDeactivation(t *testing.T) {
	h := newHarness(t, object("door", [3]float64{300, 0, 0}, 0))
	id := h.DefaultAgentID
	h.AttachReplica(id)
	h.StepIdle(1)

	if err := h.SetActive("door", false); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	h.StepIdle(1)
	if v := h.ReplicaView(id); v.Target != "" {
		t.Fatalf("replica still focuses inactive door: %+v", v)
	}
	objs := h.sessions[id].replica.Objects()
	if len(objs) != 1 || objs[0].Active {
		t.Fatalf("replica objects: %+v", objs)
	}

	if err := h.SetActive("nope", true); err == nil {
		t.Fatalf("expected error for unknown object")
	}
}

func TestReplicaLookRetargets(t *testing.T) {
	h := newHarness(t,
		object("door", [3]float64{300, 0, 0}, 1000),
		object("lever", [3]float64{0, 0, 300}, 1000),
	)
	id := h.DefaultAgentID
	h.AttachReplica(id)
	h.StepIdle(1)

	h.Press(id, protocol.Call{Type: protocol.CallLook, Pos: vec(0, 0, 0), Yaw: 90})
	h.StepIdle(1)
	if v := h.ReplicaView(id); v.Target != "lever" {
		t.Fatalf("replica target after look: %+v", v)
	}
	// The pose travels with the replica tick like any other intent.
	if v := h.View(id); v.Target != "door" {
		t.Fatalf("authority retargeted before the forwarded look arrived: %+v", v)
	}
	h.StepIdle(1)
	if v := h.View(id); v.Target != "lever" {
		t.Fatalf("authority target after look: %+v", v)
	}
	kinds := h.EventKinds(id)
	if indexOf(kinds, "END_FOCUS@door") < 0 || indexOf(kinds, "BEGIN_FOCUS@lever") < indexOf(kinds, "END_FOCUS@door") {
		t.Fatalf("focus events: %v", kinds)
	}
}

func TestReplicaForwardsInPressOrder(t *testing.T) {
	h := newHarness(t, object("door", [3]float64{300, 0, 0}, 1000))
	id := h.DefaultAgentID
	h.AttachReplica(id)
	h.StepIdle(1)

	h.Press(id, protocol.Call{Type: protocol.CallBeginInteract})
	h.Press(id, protocol.Call{Type: protocol.CallLook, Pos: vec(0, 0, 0), Yaw: 180})
	h.Press(id, protocol.Call{Type: protocol.CallEndInteract})
	h.StepIdle(1)

	var got []string
	var lastSeq uint64
	for _, env := range h.forwarded {
		if env.Act.Seq <= lastSeq {
			t.Fatalf("forwarded seq not increasing: %d after %d", env.Act.Seq, lastSeq)
		}
		lastSeq = env.Act.Seq
		for _, c := range env.Act.Calls {
			got = append(got, c.Type)
		}
	}
	want := []string{protocol.CallBeginInteract, protocol.CallLook, protocol.CallEndInteract}
	if len(got) != len(want) {
		t.Fatalf("forwarded: got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("forwarded: got %v want %v", got, want)
		}
	}
}

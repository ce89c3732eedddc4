package worldtest

import (
	"fmt"
	"testing"

	"focuscraft.ai/internal/protocol"
)

func TestMultipleInteractorsBothComplete(t *testing.T) {
	def := object("crate", [3]float64{300, 0, 0}, 100)
	def.AllowMultipleInteractors = boolp(true)
	h := newHarness(t, def)
	a := h.DefaultAgentID
	b := h.Join("other")

	h.StepFor(a, protocol.Call{Type: protocol.CallBeginInteract})
	h.StepFor(b, protocol.Call{Type: protocol.CallBeginInteract})
	h.StepIdle(3)

	for _, id := range []string{a, b} {
		if indexOf(h.EventKinds(id), "INTERACT@crate") < 0 {
			t.Fatalf("%s did not complete: %v", id, h.EventKinds(id))
		}
	}
}

func TestOutOfRangeObjectIsNotFocused(t *testing.T) {
	def := object("far", [3]float64{900, 0, 0}, 0)
	d := 200.0
	def.InteractionDistance = &d
	h := newHarness(t, def)
	id := h.DefaultAgentID
	h.StepIdle(1)
	if v := h.View(id); v.Target != "" {
		t.Fatalf("focused beyond interaction distance: %+v", v)
	}

	h.Step(protocol.Call{Type: protocol.CallLook, Pos: vec(750, 0, 0)})
	if v := h.View(id); v.Target != "far" {
		t.Fatalf("not focused once in range: %+v", v)
	}
	h.Step(protocol.Call{Type: protocol.CallLook, Pos: vec(0, 0, 0)})
	if v := h.View(id); v.Target != "" {
		t.Fatalf("kept focus after stepping back: %+v", v)
	}
	kinds := h.EventKinds(id)
	if fmt.Sprint(kinds) != fmt.Sprint([]string{"BEGIN_FOCUS@far", "END_FOCUS@far"}) {
		t.Fatalf("events: %v", kinds)
	}
}

func TestLeaveMidHoldEndsInteraction(t *testing.T) {
	h := newHarness(t, object("door", [3]float64{300, 0, 0}, 1000))
	a := h.DefaultAgentID
	b := h.Join("watcher")
	h.StepFor(a, protocol.Call{Type: protocol.CallBeginInteract})
	if v := h.View(a); !v.Interacting {
		t.Fatalf("not interacting: %+v", v)
	}
	h.Leave(a)
	if _, ok := h.W.View(a); ok {
		t.Fatalf("left agent still has a view")
	}
	if m := h.W.Metrics(); m.Interacting != 0 {
		t.Fatalf("interacting after leave: %+v", m)
	}
	h.StepIdle(25)
	if indexOf(h.EventKinds(b), "INTERACT@door") >= 0 {
		t.Fatalf("watcher saw another agent's INTERACT")
	}
}

func TestHarnessDigestsAreDeterministic(t *testing.T) {
	run := func() []string {
		h := newHarness(t,
			object("door", [3]float64{300, 0, 0}, 100),
			object("lever", [3]float64{0, 0, 300}, 0),
		)
		id := h.DefaultAgentID
		h.AttachReplica(id)
		other := h.Join("other")
		h.Press(id, protocol.Call{Type: protocol.CallBeginInteract})
		h.StepIdle(3)
		h.StepFor(other, protocol.Call{Type: protocol.CallLook, Pos: vec(0, 0, 0), Yaw: 90})
		h.StepFor(other, protocol.Call{Type: protocol.CallBeginInteract})
		_ = h.SetActive("door", false)
		h.Press(id, protocol.Call{Type: protocol.CallEndInteract})
		h.StepIdle(2)
		return h.Digests()
	}
	a, b := run(), run()
	if len(a) != len(b) || len(a) == 0 {
		t.Fatalf("digest counts: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("tick %d digest differs: %s vs %s", i, a[i], b[i])
		}
	}
}

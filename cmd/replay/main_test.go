package main

import (
	"strings"
	"testing"

	persistlog "focuscraft.ai/internal/persistence/log"
	"focuscraft.ai/internal/protocol"
	"focuscraft.ai/internal/sim/catalogs"
	"focuscraft.ai/internal/sim/tuning"
	"focuscraft.ai/internal/sim/world"
)

func intp(v int) *int { return &v }

func newWorld(t *testing.T) *world.World {
	t.Helper()
	cats := &catalogs.Catalogs{}
	cats.Objects.Defs = map[string]catalogs.ObjectDef{
		"door": {ID: "door", Pos: [3]float64{300, 0, 0}, Radius: 50, InteractionTimeMs: intp(120)},
	}
	cats.Objects.Order = []string{"door"}
	cfg := world.ConfigFromTuning("w1", world.RoleAuthority, tuning.Defaults())
	cfg.EyeHeight = 0
	cfg.Headless = true
	w, err := world.New(cfg, cats)
	if err != nil {
		t.Fatalf("world.New: %v", err)
	}
	return w
}

func act(agentID string, seq uint64, calls ...protocol.Call) world.ActionEnvelope {
	return world.ActionEnvelope{AgentID: agentID, Act: protocol.ActMsg{
		Type:            protocol.TypeAct,
		ProtocolVersion: protocol.Version,
		Seq:             seq,
		Calls:           calls,
	}}
}

// record runs a short session against a logged world and returns its dir.
func record(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	w := newWorld(t)
	tl := persistlog.NewTickLogger(dir)
	w.SetTickLogger(tl)

	out := make(chan []byte, 256)
	resp := make(chan world.JoinResponse, 1)
	w.StepOnce(world.StepInput{Joins: []world.JoinRequest{{Name: "bot", Out: out, Resp: resp}}})
	id := (<-resp).Welcome.AgentID

	pos := [3]float64{0, 0, 0}
	off := false
	inputs := []world.StepInput{
		{Actions: []world.ActionEnvelope{act(id, 1, protocol.Call{Type: protocol.CallLook, Pos: &pos})}},
		{Actions: []world.ActionEnvelope{act(id, 2, protocol.Call{Type: protocol.CallBeginInteract})}},
		{},
		{},
		{Admin: []world.ObjectActiveRequest{{ObjectID: "door", Active: false}}},
		{Actions: []world.ActionEnvelope{act(id, 3, protocol.Call{Type: protocol.CallEndInteract}, protocol.Call{Type: protocol.CallSetCanInteract, Value: &off})}},
		{Leaves: []string{id}},
	}
	for _, in := range inputs {
		w.StepOnce(in)
	}
	if err := tl.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	return dir
}

func TestReplayMatchesRecordedDigests(t *testing.T) {
	dir := record(t)
	checked, err := replay(newWorld(t), dir, 0)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if checked != 8 {
		t.Fatalf("checked: got %d want 8", checked)
	}
}

func TestReplayStopsAtTick(t *testing.T) {
	dir := record(t)
	checked, err := replay(newWorld(t), dir, 3)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if checked != 4 {
		t.Fatalf("checked: got %d want 4", checked)
	}
}

func TestReplayDetectsDivergence(t *testing.T) {
	dir := t.TempDir()
	tl := persistlog.NewTickLogger(dir)
	_ = tl.WriteTick(world.TickLogEntry{Tick: 0, World: "w1", Digest: "not-a-digest"})
	_ = tl.Close()

	_, err := replay(newWorld(t), dir, 0)
	if err == nil || !strings.Contains(err.Error(), "digest mismatch at tick 0") {
		t.Fatalf("got %v", err)
	}
}

func TestReplayRequiresTicks(t *testing.T) {
	if _, err := replay(newWorld(t), t.TempDir(), 0); err == nil {
		t.Fatalf("expected error for empty log dir")
	}
}

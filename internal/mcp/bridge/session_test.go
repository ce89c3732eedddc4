package bridge

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"focuscraft.ai/internal/protocol"
	"focuscraft.ai/internal/sim/catalogs"
	"focuscraft.ai/internal/sim/tuning"
	"focuscraft.ai/internal/sim/world"
	"focuscraft.ai/internal/transport/ws"
)

func TestDisconnectAndPauseSetsPaused(t *testing.T) {
	s := NewSession(SessionConfig{Key: "t", WorldWSURL: "ws://example.invalid"})

	s.DisconnectAndPause()

	st := s.Status()
	if !st.Paused || st.Connected {
		t.Fatalf("status after pause: %+v", st)
	}
}

func TestResumeReconnectClearsPausedAndSignals(t *testing.T) {
	s := NewSession(SessionConfig{Key: "t", WorldWSURL: "ws://example.invalid"})
	s.DisconnectAndPause()

	s.ResumeReconnect()

	if s.Status().Paused {
		t.Fatalf("expected paused=false after ResumeReconnect")
	}
	select {
	case <-s.resumeNotify:
	default:
		t.Fatalf("expected resumeNotify to be signaled when transitioning paused->running")
	}
}

func TestDisconnectDoesNotPause(t *testing.T) {
	s := NewSession(SessionConfig{Key: "t", WorldWSURL: "ws://example.invalid"})
	s.Disconnect()
	if s.Status().Paused {
		t.Fatalf("expected paused=false after Disconnect")
	}
}

func TestEventBufferCursorAndOverflow(t *testing.T) {
	s := NewSession(SessionConfig{Key: "t", WorldWSURL: "ws://example.invalid", EventBuffer: 3})
	for i := 0; i < 5; i++ {
		s.appendEvent(EventRecord{Tick: uint64(i), Kind: "BEGIN_FOCUS", ObjectID: "door"})
	}
	res, err := s.GetEvents(context.Background(), GetEventsOpts{})
	if err != nil {
		t.Fatalf("GetEvents: %v", err)
	}
	if len(res.Events) != 3 || res.Events[0].Cursor != 3 || res.NextCursor != 5 || res.Dropped != 2 {
		t.Fatalf("events: %+v", res)
	}

	res, _ = s.GetEvents(context.Background(), GetEventsOpts{SinceCursor: 4})
	if len(res.Events) != 1 || res.Events[0].Tick != 4 {
		t.Fatalf("since cursor: %+v", res)
	}
	res, _ = s.GetEvents(context.Background(), GetEventsOpts{SinceCursor: 5})
	if len(res.Events) != 0 || res.NextCursor != 5 {
		t.Fatalf("caught up: %+v", res)
	}
}

func TestGetEventsWaitsForNewEvent(t *testing.T) {
	s := NewSession(SessionConfig{Key: "t", WorldWSURL: "ws://example.invalid"})
	go func() {
		time.Sleep(20 * time.Millisecond)
		s.appendEvent(EventRecord{Kind: "INTERACT", ObjectID: "door"})
	}()
	res, err := s.GetEvents(context.Background(), GetEventsOpts{WaitMS: 2000})
	if err != nil {
		t.Fatalf("GetEvents: %v", err)
	}
	if len(res.Events) != 1 || res.Events[0].Kind != "INTERACT" {
		t.Fatalf("events: %+v", res)
	}
}

func intp(v int) *int { return &v }

// startWorld serves an authority world with a door 300 units down +X.
func startWorld(t *testing.T) string {
	t.Helper()
	wcfg := world.ConfigFromTuning("test", world.RoleAuthority, tuning.Defaults())
	wcfg.EyeHeight = 0
	wcfg.Headless = true
	cats := &catalogs.Catalogs{}
	cats.Objects.Defs = map[string]catalogs.ObjectDef{
		"door": {ID: "door", Kind: "DOOR", Pos: [3]float64{300, 0, 0}, Radius: 50, Parts: 1, InteractionTimeMs: intp(100)},
	}
	cats.Objects.Order = []string{"door"}
	cats.Objects.Digest = "test"

	w, err := world.New(wcfg, cats)
	if err != nil {
		t.Fatalf("world.New: %v", err)
	}
	v, err := protocol.NewValidator()
	if err != nil {
		t.Fatalf("validator: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = w.Run(ctx) }()
	srv := httptest.NewServer(ws.NewServer(w, v, ws.Config{}, nil).Handler())
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestManagerLookAndInteract(t *testing.T) {
	m, err := NewManager(Config{WorldWSURL: startWorld(t)})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	defer m.Close()
	ctx := context.Background()

	objs, err := m.ListObjects(ctx, "agent_1")
	if err != nil {
		t.Fatalf("ListObjects: %v", err)
	}
	if len(objs) != 1 || objs[0].ID != "door" || !objs[0].Active {
		t.Fatalf("objects: %+v", objs)
	}
	if _, err := m.LookAt(ctx, "agent_1", LookArgs{ObjectID: "nope"}); err == nil {
		t.Fatalf("expected error for unknown object")
	}
	if _, err := m.LookAt(ctx, "agent_1", LookArgs{ObjectID: "door"}); err != nil {
		t.Fatalf("LookAt: %v", err)
	}

	waitKind := func(kind string, since uint64) uint64 {
		t.Helper()
		deadline := time.Now().Add(5 * time.Second)
		for time.Now().Before(deadline) {
			res, err := m.GetEvents(ctx, "agent_1", GetEventsOpts{SinceCursor: since, WaitMS: 500})
			if err != nil {
				t.Fatalf("GetEvents: %v", err)
			}
			for _, e := range res.Events {
				if e.Kind == kind && e.ObjectID == "door" {
					return e.Cursor
				}
			}
			since = res.NextCursor
		}
		t.Fatalf("timed out waiting for %s", kind)
		return 0
	}
	cur := waitKind("BEGIN_FOCUS", 0)

	if _, err := m.Interact(ctx, "agent_1", InteractArgs{Action: "hold"}); err == nil {
		t.Fatalf("expected error for bad action")
	}
	if _, err := m.Interact(ctx, "agent_1", InteractArgs{Action: "begin"}); err != nil {
		t.Fatalf("Interact: %v", err)
	}
	waitKind("INTERACT", cur)

	st, _ := m.GetStatus(ctx, "agent_1")
	if !st.Connected || st.AgentID == "" || st.WorldID != "test" || st.ObjectsDigest != "test" {
		t.Fatalf("status: %+v", st)
	}
	if m.Sessions() != 1 {
		t.Fatalf("sessions: got %d want 1", m.Sessions())
	}
}

func TestManagerEvictsLeastRecentlyUsed(t *testing.T) {
	m, err := NewManager(Config{WorldWSURL: "ws://127.0.0.1:1/v1/ws", MaxSessions: 2})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	defer m.Close()
	ctx := context.Background()
	for _, k := range []string{"a", "b", "c"} {
		if _, err := m.GetStatus(ctx, k); err != nil {
			t.Fatalf("GetStatus(%s): %v", k, err)
		}
		time.Sleep(2 * time.Millisecond)
	}
	if m.Sessions() != 2 {
		t.Fatalf("sessions: got %d want 2", m.Sessions())
	}
}

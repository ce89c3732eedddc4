package client

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

func intp(v int) *int { return &v }

// startServer runs an authority world with a door 300 units down +X behind a
// websocket endpoint and returns the ws URL.
func startServer(t *testing.T, cfg ws.Config) (string, *world.World) {
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

	srv := httptest.NewServer(ws.NewServer(w, v, cfg, nil).Handler())
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return "ws" + strings.TrimPrefix(srv.URL, "http"), w
}

func dial(t *testing.T, url string) *Client {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, err := Dial(ctx, Config{URL: url, Name: "tester", MaxQueue: 32})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	runCtx, stop := context.WithCancel(context.Background())
	go func() { _ = c.Run(runCtx) }()
	t.Cleanup(func() {
		stop()
		_ = c.Close()
	})
	return c
}

func waitEvent(t *testing.T, c *Client, kind string) protocol.EventMsg {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev := <-c.Events():
			if ev.Kind == kind {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s event", kind)
		}
	}
}

func waitView(t *testing.T, c *Client, what string, ok func(world.AgentView) bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if v, found := c.View(); found && ok(v) {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	v, _ := c.View()
	t.Fatalf("timed out waiting for %s: view %+v", what, v)
}

func TestDialBuildsReplicaFromWelcome(t *testing.T) {
	url, _ := startServer(t, ws.Config{})
	c := dial(t, url)

	w := c.Welcome()
	if w.AgentID == "" || w.SessionID == "" {
		t.Fatalf("welcome ids: %+v", w)
	}
	if got := c.World().Config().Role; got != world.RoleReplica {
		t.Fatalf("role: got %v want replica", got)
	}
	objs := c.World().Objects()
	if len(objs) != 1 || objs[0].ID != "door" || objs[0].InteractionTimeMs != 100 {
		t.Fatalf("replica objects: %+v", objs)
	}
	waitView(t, c, "local agent", func(v world.AgentView) bool { return v.AgentID == w.AgentID })
}

func TestHoldToInteractEndToEnd(t *testing.T) {
	url, _ := startServer(t, ws.Config{})
	c := dial(t, url)

	c.Look([3]float64{0, 0, 0}, 0, 0)
	if ev := waitEvent(t, c, "BEGIN_FOCUS"); ev.ObjectID != "door" {
		t.Fatalf("focus object: got %q want door", ev.ObjectID)
	}
	waitView(t, c, "predicted focus", func(v world.AgentView) bool { return v.Target == "door" })

	c.BeginInteract()
	ev := waitEvent(t, c, "INTERACT")
	if ev.ObjectID != "door" || ev.AgentID != c.AgentID() {
		t.Fatalf("INTERACT: %+v", ev)
	}
	c.EndInteract()
}

func TestSetCanInteractFollowsServer(t *testing.T) {
	url, _ := startServer(t, ws.Config{})
	c := dial(t, url)

	waitView(t, c, "initial gate", func(v world.AgentView) bool { return v.CanInteract })
	c.SetCanInteract(false)
	waitView(t, c, "replicated gate", func(v world.AgentView) bool { return !v.CanInteract })
	c.SetCanInteract(true)
	waitView(t, c, "gate restored", func(v world.AgentView) bool { return v.CanInteract })
}

func TestRateLimitedActIsAcked(t *testing.T) {
	url, _ := startServer(t, ws.Config{ActRatePerSec: 0.01, ActBurst: 1})
	c := dial(t, url)

	c.Look([3]float64{0, 0, 0}, 0, 0)
	c.Look([3]float64{0, 0, 0}, 0, 10)

	select {
	case ack := <-c.Acks():
		if ack.Accepted || ack.Code != protocol.ErrRateLimit || ack.AckFor != 2 {
			t.Fatalf("ack: %+v", ack)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("no ACK for rate limited ACT")
	}
}

func TestPressesSurviveRateLimit(t *testing.T) {
	url, w := startServer(t, ws.Config{ActRatePerSec: 0.01, ActBurst: 1})
	c := dial(t, url)

	c.Look([3]float64{0, 0, 0}, 0, 0)
	if ev := waitEvent(t, c, "BEGIN_FOCUS"); ev.ObjectID != "door" {
		t.Fatalf("focus object: got %q want door", ev.ObjectID)
	}
	c.BeginInteract()
	if ev := waitEvent(t, c, "INTERACT"); ev.ObjectID != "door" {
		t.Fatalf("INTERACT: %+v", ev)
	}
	c.EndInteract()

	deadline := time.Now().Add(5 * time.Second)
	for {
		v, ok := w.View(c.AgentID())
		if ok && !v.Held {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("release never reached the server: %+v", v)
		}
		time.Sleep(10 * time.Millisecond)
	}
	select {
	case ack := <-c.Acks():
		t.Fatalf("unexpected ACK: %+v", ack)
	default:
	}
}

func TestCloseEndsRun(t *testing.T) {
	url, _ := startServer(t, ws.Config{})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, err := Dial(ctx, Config{URL: url, Name: "closer"})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	errc := make(chan error, 1)
	go func() { errc <- c.Run(context.Background()) }()

	_ = c.Close()
	select {
	case <-errc:
	case <-time.After(5 * time.Second):
		t.Fatalf("Run did not return after Close")
	}
	select {
	case <-c.Done():
	default:
		t.Fatalf("Done not closed")
	}
}

func TestDialRejectsNonWebsocket(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := Dial(ctx, Config{URL: "ws://127.0.0.1:1/v1/ws", Name: "x"}); err == nil {
		t.Fatalf("expected dial error")
	}
}

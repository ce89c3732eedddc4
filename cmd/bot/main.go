// Command bot connects as a predicting client and walks the world's objects:
// it looks at each one, holds interact until the server reports INTERACT (or
// gives up), releases and moves on.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"focuscraft.ai/internal/client"
	"focuscraft.ai/internal/protocol"
	"focuscraft.ai/internal/sim/geom"
)

func main() {
	var (
		url     = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		name    = flag.String("name", "bot", "agent name")
		timeout = flag.Duration("timeout", 5*time.Second, "max hold time per object")
		rounds  = flag.Int("rounds", 1, "passes over the object list (0 = forever)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lmicroseconds)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	c, err := client.Dial(dialCtx, client.Config{URL: *url, Name: *name, MaxQueue: 32, Logger: logger})
	cancel()
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer c.Close()

	w := c.Welcome()
	logger.Printf("WELCOME agent_id=%s world=%s tick_rate=%d objects=%d", w.AgentID, w.WorldParams.WorldID, w.WorldParams.TickRateHz, len(w.Objects))

	go func() {
		if err := c.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Printf("replica stopped: %v", err)
			stop()
		}
	}()

	eye := geom.FromArray(w.Spawn.Pos).Add(geom.Vec3{Y: w.WorldParams.EyeHeight})
	for round := 0; *rounds == 0 || round < *rounds; round++ {
		for _, obj := range w.Objects {
			if ctx.Err() != nil {
				return
			}
			if !obj.Active {
				continue
			}
			ok := tryObject(ctx, c, eye, obj, *timeout)
			logger.Printf("object=%s interacted=%v", obj.ID, ok)
		}
	}
}

func tryObject(ctx context.Context, c *client.Client, eye geom.Vec3, obj protocol.ObjectInfo, timeout time.Duration) bool {
	rot := geom.LookAt(eye, geom.FromArray(obj.Pos))
	c.Look(c.Welcome().Spawn.Pos, rot.Pitch, rot.Yaw)

	// Give the scan a few ticks to land on the target.
	tick := time.Second / time.Duration(max(c.Welcome().WorldParams.TickRateHz, 1))
	if v, _ := c.View(); v.Target != obj.ID && !waitFor(ctx, c, obj.ID, "BEGIN_FOCUS", 10*tick) {
		return false
	}

	c.BeginInteract()
	defer c.EndInteract()
	return waitFor(ctx, c, obj.ID, "INTERACT", timeout)
}

func waitFor(ctx context.Context, c *client.Client, objectID, kind string, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return false
		case <-c.Done():
			return false
		case <-timer.C:
			return false
		case ev := <-c.Events():
			if ev.Kind == kind && ev.ObjectID == objectID {
				return true
			}
		case a := <-c.Acks():
			// Rate limits and a busy inbox clear up; anything else will not.
			if !a.Accepted && !protocol.Retryable(a.Code) {
				return false
			}
		}
	}
}

package world

import (
	"context"
	"errors"
	"time"
)

func (w *World) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.cfg.TickDuration())
	defer ticker.Stop()
	defer w.doneOnce.Do(func() { close(w.done) })

	var in StepInput
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stop:
			return nil
		case req := <-w.join:
			in.Joins = append(in.Joins, req)
		case id := <-w.leave:
			in.Leaves = append(in.Leaves, id)
		case env := <-w.inbox:
			in.Actions = append(in.Actions, env)
		case m := <-w.replicated:
			in.Replicated = append(in.Replicated, m)
		case req := <-w.admin:
			in.Admin = append(in.Admin, req)
		case <-ticker.C:
			w.step(in)
			in.Joins = in.Joins[:0]
			in.Leaves = in.Leaves[:0]
			in.Actions = in.Actions[:0]
			in.Replicated = in.Replicated[:0]
			in.Admin = in.Admin[:0]
		}
	}
}

// Stop ends Run. Safe to call more than once.
func (w *World) Stop() { w.stopOnce.Do(func() { close(w.stop) }) }

// Done is closed once Run has returned.
func (w *World) Done() <-chan struct{} { return w.done }

// StepOnce advances the world by a single tick using the same ordering
// semantics as Run. It is intended for tests and replays.
func (w *World) StepOnce(in StepInput) (tick uint64, digest string) {
	tick = w.tick.Load()
	digest = w.step(in)
	return tick, digest
}

// RequestSetObjectActive toggles an object at the next tick boundary.
func (w *World) RequestSetObjectActive(ctx context.Context, objectID string, active bool) error {
	if w == nil {
		return errors.New("world not available")
	}
	req := ObjectActiveRequest{ObjectID: objectID, Active: active, Resp: make(chan error, 1)}
	select {
	case w.admin <- req:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-req.Resp:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *World) step(in StepInput) string {
	stepStart := time.Now()
	nowTick := w.tick.Load()
	w.eventsThisTick = 0

	// Server state first, so local prediction runs against it.
	for _, m := range in.Replicated {
		w.applyReplication(m)
	}

	// Apply leaves and joins deterministically at tick boundary.
	recordedLeaves := make([]string, 0, len(in.Leaves))
	for _, id := range in.Leaves {
		if _, ok := w.agents[id]; ok {
			w.removeAgent(id)
			recordedLeaves = append(recordedLeaves, id)
		}
	}
	recordedJoins := make([]RecordedJoin, 0, len(in.Joins))
	for _, req := range in.Joins {
		resp := w.joinAgent(req)
		if req.Resp != nil {
			req.Resp <- resp
		}
		recordedJoins = append(recordedJoins, RecordedJoin{AgentID: resp.Welcome.AgentID, Name: req.Name})
	}

	recordedAdmin := make([]RecordedToggle, 0, len(in.Admin))
	for _, req := range in.Admin {
		err := w.setObjectActive(req.ObjectID, req.Active)
		if err == nil {
			recordedAdmin = append(recordedAdmin, RecordedToggle{ObjectID: req.ObjectID, Active: req.Active})
		}
		if req.Resp != nil {
			select {
			case req.Resp <- err:
			default:
			}
		}
	}

	// Calls in server receive order (the inbox order).
	var recorded []RecordedCall
	for _, env := range in.Actions {
		a := w.agents[env.AgentID]
		if a == nil {
			continue
		}
		env.Act.AgentID = env.AgentID // trust session identity
		recorded = append(recorded, w.applyAct(a, env.Act, nowTick)...)
	}

	// Scans, then time: timers started this tick may complete inside the
	// same advance when their duration is shorter than a tick.
	for _, id := range w.agentOrder {
		w.agents[id].in.Tick()
	}
	w.clock.Advance(w.cfg.TickDuration())

	if !w.cfg.Headless {
		for _, id := range w.agentOrder {
			if ia := w.agents[id].in.Interactable(); ia != nil {
				ia.RefreshWidget()
			}
		}
	}

	w.flushClients()

	digest := w.stateDigest(nowTick)
	if w.tickLogger != nil {
		_ = w.tickLogger.WriteTick(TickLogEntry{
			Tick:   nowTick,
			World:  w.cfg.ID,
			Joins:  recordedJoins,
			Leaves: recordedLeaves,
			Admin:  recordedAdmin,
			Calls:  recorded,
			Events: w.eventsThisTick,
			Digest: digest,
		})
	}

	stepMS := float64(time.Since(stepStart).Microseconds()) / 1000.0
	nextTick := w.tick.Add(1)
	w.publish(nextTick, stepMS)
	return digest
}

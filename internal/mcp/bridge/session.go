package bridge

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"focuscraft.ai/internal/client"
	"focuscraft.ai/internal/sim/geom"
)

type SessionConfig struct {
	Key        string
	WorldWSURL string
	// EventBuffer bounds the events kept for get_events.
	EventBuffer int
	Logger      *log.Logger
}

// Session owns one agent connection to the world server. It reconnects with
// backoff until closed or paused.
type Session struct {
	cfg SessionConfig

	mu sync.RWMutex

	startOnce sync.Once
	closeOnce sync.Once
	stop      chan struct{}
	done      chan struct{}

	paused       bool
	resumeNotify chan struct{}

	connected bool
	lastErr   string

	c *client.Client

	events     []EventRecord
	nextCursor uint64
	dropped    uint64
	// changed is closed and replaced whenever the connection or the event
	// buffer changes.
	changed chan struct{}

	lastUsedAt time.Time
}

func NewSession(cfg SessionConfig) *Session {
	if cfg.Key == "" {
		cfg.Key = "default"
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = 256
	}
	return &Session{
		cfg:          cfg,
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
		resumeNotify: make(chan struct{}, 1),
		changed:      make(chan struct{}),
		lastUsedAt:   time.Now(),
	}
}

func (s *Session) Start() {
	s.startOnce.Do(func() {
		go s.run()
	})
}

func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.stop)
		s.Disconnect()
		s.startOnce.Do(func() { close(s.done) })
		<-s.done
	})
}

// Disconnect drops the current connection; the session reconnects.
func (s *Session) Disconnect() {
	s.mu.Lock()
	c := s.c
	s.c = nil
	s.connected = false
	s.broadcastLocked()
	s.mu.Unlock()
	if c != nil {
		_ = c.Close()
	}
}

// DisconnectAndPause drops the connection and holds off reconnecting until
// the next tool call.
func (s *Session) DisconnectAndPause() {
	s.mu.Lock()
	s.paused = true
	s.mu.Unlock()
	s.Disconnect()
}

func (s *Session) ResumeReconnect() {
	s.mu.Lock()
	wasPaused := s.paused
	s.paused = false
	s.mu.Unlock()
	if wasPaused {
		select {
		case s.resumeNotify <- struct{}{}:
		default:
		}
	}
}

func (s *Session) LastUsedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastUsedAt
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastUsedAt = time.Now()
	s.mu.Unlock()
}

func (s *Session) Status() Status {
	s.touch()
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Status{
		Connected:  s.connected,
		Paused:     s.paused,
		WorldWSURL: s.cfg.WorldWSURL,
		LastError:  s.lastErr,
	}
	if s.c != nil {
		w := s.c.Welcome()
		st.AgentID = w.AgentID
		st.WorldID = w.WorldParams.WorldID
		st.ObjectsDigest = w.ObjectsDigest
		st.Tick = s.c.World().CurrentTick()
		st.DroppedEvents = s.dropped + s.c.DroppedEvents()
	}
	return st
}

func (s *Session) GetView(ctx context.Context, opts GetViewOpts) (ViewResult, error) {
	s.touch()
	timeout := time.Duration(opts.TimeoutMS) * time.Millisecond
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	c, err := s.waitClient(ctx, timeout)
	if err != nil {
		return ViewResult{}, err
	}

	v, ok := c.View()
	if opts.WaitNewTick || !ok {
		start := v.Tick
		deadline := time.NewTimer(timeout)
		defer deadline.Stop()
		poll := time.NewTicker(10 * time.Millisecond)
		defer poll.Stop()
		for !ok || (opts.WaitNewTick && v.Tick <= start) {
			select {
			case <-ctx.Done():
				return ViewResult{}, ctx.Err()
			case <-c.Done():
				return ViewResult{}, errors.New("disconnected")
			case <-deadline.C:
				return ViewResult{}, errors.New("timeout waiting for view")
			case <-poll.C:
			}
			v, ok = c.View()
		}
	}
	return ViewResult{Tick: v.Tick, AgentID: c.AgentID(), View: v}, nil
}

func (s *Session) GetEvents(ctx context.Context, opts GetEventsOpts) (EventsResult, error) {
	s.touch()
	limit := opts.Limit
	if limit <= 0 || limit > 256 {
		limit = 64
	}
	var deadline <-chan time.Time
	if opts.WaitMS > 0 {
		t := time.NewTimer(time.Duration(opts.WaitMS) * time.Millisecond)
		defer t.Stop()
		deadline = t.C
	}

	for {
		s.mu.RLock()
		out := EventsResult{NextCursor: s.nextCursor, Dropped: s.dropped}
		for _, e := range s.events {
			if e.Cursor <= opts.SinceCursor {
				continue
			}
			if len(out.Events) == limit {
				break
			}
			out.Events = append(out.Events, e)
		}
		if n := len(out.Events); n > 0 {
			out.NextCursor = out.Events[n-1].Cursor
		} else if opts.SinceCursor > out.NextCursor {
			out.NextCursor = opts.SinceCursor
		}
		ch := s.changed
		s.mu.RUnlock()

		if len(out.Events) > 0 || deadline == nil {
			if out.Events == nil {
				out.Events = []EventRecord{}
			}
			return out, nil
		}
		select {
		case <-ctx.Done():
			return EventsResult{}, ctx.Err()
		case <-deadline:
			deadline = nil
		case <-ch:
		}
	}
}

func (s *Session) ListObjects(ctx context.Context) ([]ObjectView, error) {
	s.touch()
	c, err := s.waitClient(ctx, 2*time.Second)
	if err != nil {
		return nil, err
	}
	objs := c.World().Objects()
	out := make([]ObjectView, 0, len(objs))
	for _, o := range objs {
		out = append(out, ObjectView{ObjectInfo: o})
	}
	if v, ok := c.View(); ok {
		eye := v.Pos.Add(geom.Vec3{Y: c.Welcome().WorldParams.EyeHeight})
		for i := range out {
			out[i].Distance = geom.Dist(eye, geom.FromArray(out[i].Pos))
			out[i].Focused = out[i].ID == v.Target
		}
	}
	return out, nil
}

func (s *Session) LookAt(ctx context.Context, args LookArgs) (LookResult, error) {
	s.touch()
	c, err := s.waitClient(ctx, 2*time.Second)
	if err != nil {
		return LookResult{}, err
	}
	v, _ := c.View()

	var rot geom.Rotator
	switch id := strings.TrimSpace(args.ObjectID); {
	case id != "":
		found := false
		for _, o := range c.World().Objects() {
			if o.ID == id {
				eye := v.Pos.Add(geom.Vec3{Y: c.Welcome().WorldParams.EyeHeight})
				rot = geom.LookAt(eye, geom.FromArray(o.Pos))
				found = true
				break
			}
		}
		if !found {
			return LookResult{}, fmt.Errorf("unknown object: %s", id)
		}
	case args.Pitch != nil && args.Yaw != nil:
		rot = geom.Rotator{Pitch: *args.Pitch, Yaw: *args.Yaw}
	default:
		return LookResult{}, errors.New("need object_id or pitch and yaw")
	}

	c.Look(v.Pos.ToArray(), rot.Pitch, rot.Yaw)
	return LookResult{Pitch: rot.Pitch, Yaw: rot.Yaw, Target: v.Target}, nil
}

func (s *Session) Interact(ctx context.Context, args InteractArgs) (ActionResult, error) {
	s.touch()
	c, err := s.waitClient(ctx, 2*time.Second)
	if err != nil {
		return ActionResult{}, err
	}
	switch strings.ToLower(strings.TrimSpace(args.Action)) {
	case "begin":
		c.BeginInteract()
	case "end":
		c.EndInteract()
	default:
		return ActionResult{}, fmt.Errorf("bad action %q (begin|end)", args.Action)
	}
	return ActionResult{OK: true, AgentID: c.AgentID()}, nil
}

func (s *Session) SetCanInteract(ctx context.Context, value bool) (ActionResult, error) {
	s.touch()
	c, err := s.waitClient(ctx, 2*time.Second)
	if err != nil {
		return ActionResult{}, err
	}
	c.SetCanInteract(value)
	return ActionResult{OK: true, AgentID: c.AgentID()}, nil
}

func (s *Session) waitClient(ctx context.Context, timeout time.Duration) (*client.Client, error) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	for {
		s.mu.RLock()
		c, ch, lastErr := s.c, s.changed, s.lastErr
		s.mu.RUnlock()
		if c != nil {
			return c, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			if lastErr != "" {
				return nil, fmt.Errorf("not connected: %s", lastErr)
			}
			return nil, errors.New("not connected")
		case <-ch:
		}
	}
}

func (s *Session) broadcastLocked() {
	close(s.changed)
	s.changed = make(chan struct{})
}

func (s *Session) appendEvent(ev EventRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextCursor++
	ev.Cursor = s.nextCursor
	s.events = append(s.events, ev)
	if over := len(s.events) - s.cfg.EventBuffer; over > 0 {
		s.dropped += uint64(over)
		s.events = append(s.events[:0:0], s.events[over:]...)
	}
	s.broadcastLocked()
}

func (s *Session) run() {
	defer close(s.done)

	backoff := 200 * time.Millisecond
	for {
		if s.waitWhilePaused() {
			return
		}
		err := s.connectAndPump()
		select {
		case <-s.stop:
			return
		default:
		}
		if err == nil {
			backoff = 200 * time.Millisecond
			continue
		}

		s.mu.Lock()
		s.connected = false
		s.lastErr = err.Error()
		s.mu.Unlock()
		s.logf("session %s: %v (retry in %s)", s.cfg.Key, err, backoff)
		select {
		case <-s.stop:
			return
		case <-time.After(backoff):
		}
		if backoff < 5*time.Second {
			backoff = min(backoff*2, 5*time.Second)
		}
	}
}

// waitWhilePaused blocks while the session is paused and reports whether it
// was closed meanwhile.
func (s *Session) waitWhilePaused() bool {
	for {
		s.mu.RLock()
		paused := s.paused
		s.mu.RUnlock()
		if !paused {
			return false
		}
		select {
		case <-s.stop:
			return true
		case <-s.resumeNotify:
		}
	}
}

// connectAndPump dials, runs the replica and buffers its events until the
// connection ends. A nil error means the drop was asked for.
func (s *Session) connectAndPump() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-s.stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	dialCtx, dialCancel := context.WithTimeout(ctx, 5*time.Second)
	c, err := client.Dial(dialCtx, client.Config{
		URL:      s.cfg.WorldWSURL,
		Name:     s.cfg.Key,
		MaxQueue: 64,
		Logger:   s.cfg.Logger,
	})
	dialCancel()
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.paused {
		s.mu.Unlock()
		_ = c.Close()
		return nil
	}
	s.c = c
	s.connected = true
	s.lastErr = ""
	s.broadcastLocked()
	s.mu.Unlock()

	runErr := make(chan error, 1)
	go func() { runErr <- c.Run(ctx) }()

	for {
		select {
		case ev := <-c.Events():
			s.appendEvent(EventRecord{Tick: ev.Tick, Kind: ev.Kind, ObjectID: ev.ObjectID, AgentID: ev.AgentID})
		case err := <-runErr:
			s.mu.Lock()
			requested := s.c != c
			if !requested {
				s.c = nil
				s.connected = false
				s.broadcastLocked()
			}
			s.mu.Unlock()
			_ = c.Close()
			if requested || ctx.Err() != nil {
				return nil
			}
			if err == nil || errors.Is(err, context.Canceled) {
				err = errors.New("connection closed")
			}
			return err
		}
	}
}

func (s *Session) logf(format string, args ...any) {
	if s.cfg.Logger != nil {
		s.cfg.Logger.Printf(format, args...)
	}
}

package clock

import "time"

// Handle identifies a timer owned by a single caller.
// The zero value refers to no timer.
type Handle struct {
	id uint64
}

func (h Handle) IsValid() bool { return h.id != 0 }

type timer struct {
	id       uint64
	deadline time.Duration
	fn       func()
}

// Clock is the shared per-simulation time source. Time only moves when Advance
// is called (once per tick by the world loop), and due timers fire from inside
// Advance on the caller's goroutine. It is not safe for concurrent use.
type Clock struct {
	now    time.Duration
	nextID uint64
	timers map[uint64]*timer
}

func New() *Clock {
	return &Clock{timers: map[uint64]*timer{}}
}

func (c *Clock) Now() time.Duration { return c.now }

func (c *Clock) TimeSince(t time.Duration) time.Duration { return c.now - t }

// SetTimer binds a one-shot callback to h, replacing whatever h referred to.
func (c *Clock) SetTimer(h *Handle, delay time.Duration, fn func()) {
	if h == nil || fn == nil {
		return
	}
	c.ClearTimer(h)
	if delay < 0 {
		delay = 0
	}
	c.nextID++
	t := &timer{id: c.nextID, deadline: c.now + delay, fn: fn}
	c.timers[t.id] = t
	h.id = t.id
}

func (c *Clock) ClearTimer(h *Handle) {
	if h == nil || h.id == 0 {
		return
	}
	delete(c.timers, h.id)
	h.id = 0
}

func (c *Clock) IsTimerActive(h Handle) bool {
	if h.id == 0 {
		return false
	}
	_, ok := c.timers[h.id]
	return ok
}

// TimerRemaining returns 0 for inactive handles.
func (c *Clock) TimerRemaining(h Handle) time.Duration {
	if h.id == 0 {
		return 0
	}
	t, ok := c.timers[h.id]
	if !ok {
		return 0
	}
	if rem := t.deadline - c.now; rem > 0 {
		return rem
	}
	return 0
}

func (c *Clock) ActiveTimers() int { return len(c.timers) }

// Advance moves time forward by dt and fires every timer whose deadline falls
// inside the window, earliest first. A timer is removed before its callback
// runs, so callbacks may freely set or clear timers (including new ones that
// come due inside the same window).
func (c *Clock) Advance(dt time.Duration) {
	if dt < 0 {
		dt = 0
	}
	target := c.now + dt
	for {
		t := c.nextDue(target)
		if t == nil {
			break
		}
		delete(c.timers, t.id)
		if t.deadline > c.now {
			c.now = t.deadline
		}
		t.fn()
	}
	c.now = target
}

func (c *Clock) nextDue(limit time.Duration) *timer {
	var best *timer
	for _, t := range c.timers {
		if t.deadline > limit {
			continue
		}
		if best == nil || t.deadline < best.deadline || (t.deadline == best.deadline && t.id < best.id) {
			best = t
		}
	}
	return best
}

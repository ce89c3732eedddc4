package interaction

type EventKind int

const (
	EventBeginFocus EventKind = iota + 1
	EventEndFocus
	// EventBeginInteract is never emitted: BeginInteract reports EventEndInteract.
	EventBeginInteract
	EventEndInteract
	EventInteract
)

func (k EventKind) String() string {
	switch k {
	case EventBeginFocus:
		return "BEGIN_FOCUS"
	case EventEndFocus:
		return "END_FOCUS"
	case EventBeginInteract:
		return "BEGIN_INTERACT"
	case EventEndInteract:
		return "END_INTERACT"
	case EventInteract:
		return "INTERACT"
	default:
		return "UNKNOWN"
	}
}

type Event struct {
	Kind   EventKind
	Target *Interactable
	Agent  Agent
}

// AgentID is empty when the event carries no agent.
func (e Event) AgentID() string {
	if e.Agent == nil {
		return ""
	}
	return e.Agent.AgentID()
}

type Listener func(Event)

type listenerEntry struct {
	id int
	fn Listener
}

type listeners struct {
	next    int
	entries []listenerEntry
}

func (l *listeners) add(fn Listener) func() {
	l.next++
	id := l.next
	l.entries = append(l.entries, listenerEntry{id: id, fn: fn})
	return func() {
		for i, e := range l.entries {
			if e.id == id {
				l.entries = append(l.entries[:i:i], l.entries[i+1:]...)
				return
			}
		}
	}
}

func (l *listeners) emit(ev Event) {
	if len(l.entries) == 0 {
		return
	}
	snapshot := append([]listenerEntry(nil), l.entries...)
	for _, e := range snapshot {
		e.fn(ev)
	}
}

package interaction

import (
	"math"
	"time"
)

type InteractableConfig struct {
	// InteractionTime is the continuous hold needed to complete; 0 completes on press.
	InteractionTime time.Duration
	// InteractionDistance is the max distance between eyes and impact point.
	InteractionDistance      float64
	AllowMultipleInteractors bool

	NameText   string
	ActionText string
}

func DefaultInteractableConfig() InteractableConfig {
	return InteractableConfig{
		InteractionTime:          0,
		InteractionDistance:      500,
		AllowMultipleInteractors: true,
		NameText:                 "Interactable Object",
		ActionText:               "Interact",
	}
}

// Interactable tracks which agents are interacting with one world object.
// On the server it holds every interactor; on a client it holds at most the
// local agent.
type Interactable struct {
	owner  Owner
	cfg    InteractableConfig
	widget Widget

	active bool
	hidden bool

	interactors []Agent
	listeners   listeners
}

func NewInteractable(owner Owner, cfg InteractableConfig) *Interactable {
	if cfg.InteractionTime < 0 {
		cfg.InteractionTime = 0
	}
	return &Interactable{
		owner:  owner,
		cfg:    cfg,
		active: true,
		hidden: true,
	}
}

func (ia *Interactable) Owner() Owner                               { return ia.owner }
func (ia *Interactable) Config() InteractableConfig                 { return ia.cfg }
func (ia *Interactable) InteractionTime() time.Duration             { return ia.cfg.InteractionTime }
func (ia *Interactable) InteractionDistance() float64               { return ia.cfg.InteractionDistance }
func (ia *Interactable) AllowMultipleInteractors() bool             { return ia.cfg.AllowMultipleInteractors }
func (ia *Interactable) NameText() string                           { return ia.cfg.NameText }
func (ia *Interactable) ActionText() string                         { return ia.cfg.ActionText }
func (ia *Interactable) IsActive() bool                             { return ia.active }
func (ia *Interactable) Hidden() bool                               { return ia.hidden }
func (ia *Interactable) SetWidget(w Widget)                         { ia.widget = w }
func (ia *Interactable) Subscribe(fn Listener) (unsubscribe func()) { return ia.listeners.add(fn) }

// ActorID is the owner's id, or "" without an owner.
func (ia *Interactable) ActorID() string {
	if ia.owner == nil {
		return ""
	}
	return ia.owner.ActorID()
}

// Interactors returns a copy in insertion order.
func (ia *Interactable) Interactors() []Agent {
	return append([]Agent(nil), ia.interactors...)
}

func (ia *Interactable) HasInteractor(a Agent) bool {
	return a != nil && ia.indexOf(a.AgentID()) >= 0
}

func (ia *Interactable) RefreshWidget() {
	if ia.widget != nil {
		ia.widget.Update(ia)
	}
}

func (ia *Interactable) SetNameText(text string) {
	ia.cfg.NameText = text
	ia.RefreshWidget()
}

func (ia *Interactable) SetActionText(text string) {
	ia.cfg.ActionText = text
	ia.RefreshWidget()
}

// BeginFocus is advisory: it silently does nothing for an inactive or ownerless
// object or a nil agent.
func (ia *Interactable) BeginFocus(a Agent) {
	if !ia.active || ia.owner == nil || a == nil {
		return
	}
	ia.emit(EventBeginFocus, a)
	if !ia.owner.Headless() {
		ia.setPresented(true)
	}
	ia.RefreshWidget()
}

// EndFocus always emits, even for an agent that never focused.
func (ia *Interactable) EndFocus(a Agent) {
	ia.emit(EventEndFocus, a)
	if ia.owner != nil && !ia.owner.Headless() {
		ia.setPresented(false)
	}
}

// CanInteract gates both BeginInteract and Interact. A single interactor
// object refuses once anyone is in the set, the holder included, so its
// Interact never fires while held.
func (ia *Interactable) CanInteract(a Agent) bool {
	if !ia.active || ia.owner == nil || a == nil {
		return false
	}
	return ia.cfg.AllowMultipleInteractors || len(ia.interactors) == 0
}

// BeginInteract adds a to the interactor set. It reports EventEndInteract,
// not EventBeginInteract; listeners rely on that event sequence.
func (ia *Interactable) BeginInteract(a Agent) {
	if !ia.CanInteract(a) {
		return
	}
	if ia.indexOf(a.AgentID()) < 0 {
		ia.interactors = append(ia.interactors, a)
	}
	ia.emit(EventEndInteract, a)
}

// EndInteract removes a if present and always emits.
func (ia *Interactable) EndInteract(a Agent) {
	if a != nil {
		if i := ia.indexOf(a.AgentID()); i >= 0 {
			ia.interactors = append(ia.interactors[:i], ia.interactors[i+1:]...)
		}
	}
	ia.emit(EventEndInteract, a)
}

// Interact reports completion without touching the interactor set.
func (ia *Interactable) Interact(a Agent) {
	if !ia.CanInteract(a) {
		return
	}
	ia.emit(EventInteract, a)
}

// InteractPercentage is the progress (0..1) of the first interactor's timer.
func (ia *Interactable) InteractPercentage() float64 {
	if len(ia.interactors) == 0 || ia.cfg.InteractionTime <= 0 {
		return 0
	}
	first := ia.interactors[0]
	if first == nil {
		return 0
	}
	in := first.Interactor()
	if in == nil || !in.IsInteracting() {
		return 0
	}
	p := 1 - math.Abs(float64(in.RemainingInteractTime())/float64(ia.cfg.InteractionTime))
	return math.Max(0, math.Min(1, p))
}

// Deactivate ejects every interactor (end focus, then end interaction) and
// stops the object from participating until Activate.
func (ia *Interactable) Deactivate() {
	ia.active = false
	current := ia.Interactors()
	for i := len(current) - 1; i >= 0; i-- {
		if a := current[i]; a != nil {
			ia.EndFocus(a)
			ia.EndInteract(a)
		}
	}
	ia.interactors = nil
}

func (ia *Interactable) Activate() { ia.active = true }

func (ia *Interactable) setPresented(on bool) {
	ia.hidden = !on
	if ia.widget != nil {
		ia.widget.SetVisible(on)
	}
	for _, p := range ia.owner.Primitives() {
		if p != nil {
			p.SetHighlighted(on)
		}
	}
}

func (ia *Interactable) indexOf(agentID string) int {
	for i, a := range ia.interactors {
		if a != nil && a.AgentID() == agentID {
			return i
		}
	}
	return -1
}

func (ia *Interactable) emit(kind EventKind, a Agent) {
	ia.listeners.emit(Event{Kind: kind, Target: ia, Agent: a})
}

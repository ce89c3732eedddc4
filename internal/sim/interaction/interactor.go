package interaction

import (
	"time"

	"focuscraft.ai/internal/sim/clock"
	"focuscraft.ai/internal/sim/geom"
)

type InteractorConfig struct {
	// ScanFrequency throttles scans; 0 scans every tick.
	ScanFrequency time.Duration
	ScanDistance  float64
	// CanInteract is the initial value of the replicated gate.
	CanInteract bool
}

func DefaultInteractorConfig() InteractorConfig {
	return InteractorConfig{
		ScanFrequency: 0,
		ScanDistance:  1000,
		CanInteract:   true,
	}
}

// Interactor scans for Interactables along its agent's aim and owns the
// hold-to-interact timer. Every operation is a no-op until BeginPlay has
// resolved an owner.
type Interactor struct {
	env Env
	cfg InteractorConfig

	owner      Pawn
	forwarder  Forwarder
	replicator Replicator
	onTarget   func(actorID string)

	canInteract  bool
	interactHeld bool
	viewed       *Interactable
	currentActor string
	timer        clock.Handle
	lastScan     time.Duration
	scanned      bool
}

func NewInteractor(env Env, cfg InteractorConfig) *Interactor {
	if cfg.ScanFrequency < 0 {
		cfg.ScanFrequency = 0
	}
	return &Interactor{
		env:         env,
		cfg:         cfg,
		canInteract: cfg.CanInteract,
	}
}

func (i *Interactor) SetForwarder(f Forwarder)    { i.forwarder = f }
func (i *Interactor) SetReplicator(r Replicator)  { i.replicator = r }
func (i *Interactor) Config() InteractorConfig    { return i.cfg }
func (i *Interactor) Owner() Pawn                 { return i.owner }
func (i *Interactor) CanInteract() bool           { return i.canInteract }
func (i *Interactor) InteractHeld() bool          { return i.interactHeld }
func (i *Interactor) Interactable() *Interactable { return i.viewed }
func (i *Interactor) LastScanTime() time.Duration { return i.lastScan }

// CurrentActor is the actor id last reported to the target observer.
func (i *Interactor) CurrentActor() string { return i.currentActor }

// OnTargetChanged registers the presentation hook; it receives "" when the
// agent loses its target.
func (i *Interactor) OnTargetChanged(fn func(actorID string)) { i.onTarget = fn }

func (i *Interactor) BeginPlay(owner Pawn) {
	i.owner = owner
}

// EndPlay tears the interactor down: the timer is cancelled and the current
// target loses focus and interaction before the owner is released.
func (i *Interactor) EndPlay() {
	if i.owner == nil {
		return
	}
	i.couldntFindInteractable()
	i.env.Clock().ClearTimer(&i.timer)
	i.owner = nil
}

func (i *Interactor) Tick() {
	if i.owner == nil {
		return
	}
	if i.cfg.ScanFrequency <= 0 || !i.scanned || i.env.Clock().TimeSince(i.lastScan) >= i.cfg.ScanFrequency {
		i.PerformInteractionCheck()
	}
}

// BeginInteract is the interact press. Without authority the intent goes to
// the server and the rest runs locally as prediction; with authority the scan
// is refreshed first so the press acts on the current target.
func (i *Interactor) BeginInteract() {
	if i.owner == nil {
		return
	}
	if !i.owner.HasAuthority() {
		if i.forwarder != nil {
			i.forwarder.ServerBeginInteract(i.owner.AgentID())
		}
	} else {
		i.PerformInteractionCheck()
	}

	i.interactHeld = true

	ia := i.viewed
	if ia == nil || !ia.CanInteract(i.owner) {
		return
	}
	ia.BeginInteract(i.owner)
	if ia.InteractionTime() <= 0 {
		i.interact()
		return
	}
	i.env.Clock().SetTimer(&i.timer, ia.InteractionTime(), i.interact)
}

// EndInteract is the interact release. Local hold state is cleared on every
// instance; only the server's target state is authoritative.
func (i *Interactor) EndInteract() {
	if i.owner == nil {
		return
	}
	if !i.owner.HasAuthority() && i.forwarder != nil {
		i.forwarder.ServerEndInteract(i.owner.AgentID())
	}

	i.interactHeld = false
	i.env.Clock().ClearTimer(&i.timer)

	if ia := i.viewed; ia != nil {
		ia.EndInteract(i.owner)
	}
}

// SetCanInteract changes the gate on the server, or asks the server to.
func (i *Interactor) SetCanInteract(value bool) {
	if i.owner == nil {
		return
	}
	if !i.owner.HasAuthority() {
		if i.forwarder != nil {
			i.forwarder.ServerSetCanInteract(i.owner.AgentID(), value)
		}
		return
	}
	changed := i.canInteract != value
	i.canInteract = value
	if changed && i.replicator != nil {
		i.replicator.ReplicateCanInteract(i.owner.AgentID(), value)
	}
	i.onRepCanInteract()
}

// ApplyReplicatedCanInteract is the client-side observer for the replicated
// gate. The handler only runs on a transition.
func (i *Interactor) ApplyReplicatedCanInteract(value bool) {
	if i.canInteract == value {
		return
	}
	i.canInteract = value
	i.onRepCanInteract()
}

func (i *Interactor) IsInteracting() bool {
	if i.owner == nil {
		return false
	}
	return i.env.Clock().IsTimerActive(i.timer)
}

func (i *Interactor) RemainingInteractTime() time.Duration {
	if i.owner == nil {
		return 0
	}
	return i.env.Clock().TimerRemaining(i.timer)
}

// ClearTarget runs the lost-target sequence; the world uses it when the
// focused object goes away.
func (i *Interactor) ClearTarget() {
	i.couldntFindInteractable()
}

// PerformInteractionCheck traces from the view point along the aim and
// updates focus. It does nothing while the owner has no view point.
func (i *Interactor) PerformInteractionCheck() {
	if i.owner == nil {
		return
	}
	loc, rot, ok := i.owner.ViewPoint()
	if !ok {
		return
	}
	i.lastScan = i.env.Clock().Now()
	i.scanned = true

	end := loc.Add(rot.Vector().Scale(i.cfg.ScanDistance))
	if i.canInteract {
		if hit, ok := i.env.LineTraceSingle(loc, end, i.owner.AgentID()); ok {
			if ia := i.env.InteractableOf(hit.ActorID); ia != nil && ia.IsActive() {
				dist := geom.Dist(loc, hit.ImpactPoint)
				if ia != i.viewed && dist <= ia.InteractionDistance() {
					i.foundNewInteractable(hit.ActorID, ia)
				} else if dist > ia.InteractionDistance() && i.viewed != nil {
					i.couldntFindInteractable()
				}
				return
			}
		}
	}
	i.couldntFindInteractable()
}

func (i *Interactor) interact() {
	if i.owner == nil {
		return
	}
	i.env.Clock().ClearTimer(&i.timer)
	if ia := i.viewed; ia != nil {
		ia.Interact(i.owner)
	}
}

func (i *Interactor) onRepCanInteract() {
	if !i.canInteract {
		i.couldntFindInteractable()
	}
}

func (i *Interactor) couldntFindInteractable() {
	if i.owner == nil {
		return
	}
	c := i.env.Clock()
	if c.IsTimerActive(i.timer) {
		c.ClearTimer(&i.timer)
	}

	if ia := i.viewed; ia != nil {
		ia.EndFocus(i.owner)
		if i.interactHeld {
			i.EndInteract()
		}
	}

	i.viewed = nil
	i.notifyTarget("")
}

func (i *Interactor) foundNewInteractable(actorID string, ia *Interactable) {
	if i.owner == nil {
		return
	}
	// An interaction never carries over to another target.
	i.EndInteract()

	if old := i.viewed; old != nil {
		old.EndFocus(i.owner)
	}

	i.viewed = ia
	ia.BeginFocus(i.owner)

	i.notifyTarget(actorID)
}

func (i *Interactor) notifyTarget(actorID string) {
	if i.onTarget != nil {
		i.onTarget(actorID)
	}
	i.currentActor = actorID
}

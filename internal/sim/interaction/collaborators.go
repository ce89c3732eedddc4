package interaction

import (
	"focuscraft.ai/internal/sim/clock"
	"focuscraft.ai/internal/sim/geom"
	"focuscraft.ai/internal/sim/space"
)

// Agent is a non-owning reference to a controllable entity.
// Two agents are the same agent when their AgentID matches.
type Agent interface {
	AgentID() string
	// Interactor returns the agent's interactor, or nil if it has none.
	Interactor() *Interactor
}

// Pawn is the agent an Interactor is attached to.
type Pawn interface {
	Agent
	HasAuthority() bool
	// ViewPoint reports the eye location and aim; ok is false while the
	// agent has no controller.
	ViewPoint() (loc geom.Vec3, rot geom.Rotator, ok bool)
}

// Owner is the world object an Interactable is attached to.
type Owner interface {
	ActorID() string
	Primitives() []Primitive
	// Headless reports a non-rendering (dedicated server) instance.
	Headless() bool
}

// Primitive is a rendered sub-part of an Owner that can be highlighted.
type Primitive interface {
	SetHighlighted(on bool)
}

// Widget is the presentation layer of one Interactable.
type Widget interface {
	Update(ia *Interactable)
	SetVisible(visible bool)
}

// Env is the slice of the simulation an Interactor needs.
type Env interface {
	Clock() *clock.Clock
	LineTraceSingle(start, end geom.Vec3, ignore ...string) (space.Hit, bool)
	// InteractableOf returns the Interactable attached to actorID, or nil.
	InteractableOf(actorID string) *Interactable
}

// Forwarder carries intents from a non-authoritative instance to the server.
// Calls are fire-and-forget.
type Forwarder interface {
	ServerBeginInteract(agentID string)
	ServerEndInteract(agentID string)
	ServerSetCanInteract(agentID string, value bool)
}

// Replicator pushes the authoritative CanInteract value to the owning client.
type Replicator interface {
	ReplicateCanInteract(agentID string, value bool)
}

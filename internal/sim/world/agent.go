package world

import (
	"focuscraft.ai/internal/sim/geom"
	"focuscraft.ai/internal/sim/interaction"
)

// Agent is a controllable entity carrying one Interactor.
// Pos is the feet position; the view point sits EyeHeight above it.
type Agent struct {
	ID   string
	Name string

	Pos geom.Vec3
	Rot geom.Rotator

	// Controlled is false until the agent has a driver (a connected session
	// or the local player); scans are skipped without one.
	Controlled bool

	world *World
	in    *interaction.Interactor

	lastSeq uint64
}

func (a *Agent) AgentID() string { return a.ID }

func (a *Agent) Interactor() *interaction.Interactor { return a.in }

func (a *Agent) HasAuthority() bool {
	return a.world != nil && a.world.cfg.Role == RoleAuthority
}

func (a *Agent) ViewPoint() (geom.Vec3, geom.Rotator, bool) {
	if !a.Controlled {
		return geom.Vec3{}, geom.Rotator{}, false
	}
	return a.Eye(), a.Rot, true
}

func (a *Agent) Eye() geom.Vec3 {
	eye := a.Pos
	if a.world != nil {
		eye.Y += a.world.cfg.EyeHeight
	}
	return eye
}

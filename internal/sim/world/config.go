package world

import (
	"time"

	"focuscraft.ai/internal/sim/interaction"
	"focuscraft.ai/internal/sim/tuning"
)

type Role int

const (
	// RoleAuthority owns the interaction state and replicates it to clients.
	RoleAuthority Role = iota
	// RoleReplica predicts locally for a single agent and forwards intents.
	RoleReplica
)

func (r Role) String() string {
	if r == RoleReplica {
		return "replica"
	}
	return "authority"
}

type WorldConfig struct {
	ID         string
	Role       Role
	TickRateHz int
	// Headless skips highlight and prompt presentation (dedicated server).
	Headless bool

	Interactor     interaction.InteractorConfig
	EyeHeight      float64
	ObjectDefaults tuning.Interactable

	// MaxQueue bounds a client's undelivered REPL/EVENT backlog; a client
	// that falls further behind is disconnected.
	MaxQueue int
}

func ConfigFromTuning(id string, role Role, t tuning.Tuning) WorldConfig {
	return WorldConfig{
		ID:         id,
		Role:       role,
		TickRateHz: t.TickRateHz,
		Interactor: interaction.InteractorConfig{
			ScanFrequency: t.Interactor.ScanFrequency(),
			ScanDistance:  t.Interactor.ScanDistance,
			CanInteract:   t.Interactor.CanInteract,
		},
		EyeHeight:      t.Interactor.EyeHeight,
		ObjectDefaults: t.Interactable,
		MaxQueue:       t.Net.MaxQueue,
	}
}

func (c WorldConfig) TickDuration() time.Duration {
	if c.TickRateHz <= 0 {
		return 50 * time.Millisecond
	}
	return time.Second / time.Duration(c.TickRateHz)
}

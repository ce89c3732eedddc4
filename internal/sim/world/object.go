package world

import (
	"time"

	"focuscraft.ai/internal/protocol"
	"focuscraft.ai/internal/sim/catalogs"
	"focuscraft.ai/internal/sim/geom"
	"focuscraft.ai/internal/sim/interaction"
	"focuscraft.ai/internal/sim/tuning"
)

// Object is a world object owning one Interactable.
type Object struct {
	ID     string
	Kind   string
	Pos    geom.Vec3
	Radius float64
	Parts  []*Part
	Prompt *Prompt

	world *World
	ia    *interaction.Interactable
}

// Part is one highlightable sub-mesh.
type Part struct {
	Highlighted bool
}

func (p *Part) SetHighlighted(on bool) { p.Highlighted = on }

// Prompt is the on-screen "<name>: <action>" hint for an object.
type Prompt struct {
	Visible  bool
	Name     string
	Action   string
	Progress float64
}

func (p *Prompt) SetVisible(v bool) { p.Visible = v }

func (p *Prompt) Update(ia *interaction.Interactable) {
	p.Name = ia.NameText()
	p.Action = ia.ActionText()
	p.Progress = ia.InteractPercentage()
}

func (o *Object) ActorID() string { return o.ID }

func (o *Object) Headless() bool { return o.world == nil || o.world.cfg.Headless }

func (o *Object) Primitives() []interaction.Primitive {
	out := make([]interaction.Primitive, 0, len(o.Parts))
	for _, p := range o.Parts {
		out = append(out, p)
	}
	return out
}

func (o *Object) Interactable() *interaction.Interactable { return o.ia }

func (o *Object) Highlighted() bool {
	for _, p := range o.Parts {
		if p.Highlighted {
			return true
		}
	}
	return false
}

func (o *Object) Info() protocol.ObjectInfo {
	cfg := o.ia.Config()
	return protocol.ObjectInfo{
		ID:                       o.ID,
		Kind:                     o.Kind,
		Pos:                      o.Pos.ToArray(),
		Radius:                   o.Radius,
		Parts:                    len(o.Parts),
		InteractionTimeMs:        int(cfg.InteractionTime.Milliseconds()),
		InteractionDistance:      cfg.InteractionDistance,
		AllowMultipleInteractors: cfg.AllowMultipleInteractors,
		NameText:                 cfg.NameText,
		ActionText:               cfg.ActionText,
		Active:                   o.ia.IsActive(),
	}
}

// InteractableConfig resolves a catalog entry against the tuning defaults.
func InteractableConfig(def catalogs.ObjectDef, d tuning.Interactable) interaction.InteractableConfig {
	cfg := interaction.InteractableConfig{
		InteractionTime:          d.InteractionTime(),
		InteractionDistance:      d.InteractionDistance,
		AllowMultipleInteractors: d.AllowMultipleInteractors,
		NameText:                 d.NameText,
		ActionText:               d.ActionText,
	}
	if def.InteractionTimeMs != nil {
		cfg.InteractionTime = time.Duration(*def.InteractionTimeMs) * time.Millisecond
	}
	if def.InteractionDistance != nil {
		cfg.InteractionDistance = *def.InteractionDistance
	}
	if def.AllowMultipleInteractors != nil {
		cfg.AllowMultipleInteractors = *def.AllowMultipleInteractors
	}
	if def.NameText != "" {
		cfg.NameText = def.NameText
	}
	if def.ActionText != "" {
		cfg.ActionText = def.ActionText
	}
	return cfg
}

// ObjectDefFromInfo rebuilds a catalog entry from a WELCOME object so a
// replica spawns exactly what the server resolved.
func ObjectDefFromInfo(info protocol.ObjectInfo) catalogs.ObjectDef {
	ms := info.InteractionTimeMs
	dist := info.InteractionDistance
	multi := info.AllowMultipleInteractors
	return catalogs.ObjectDef{
		ID:                       info.ID,
		Kind:                     info.Kind,
		Pos:                      info.Pos,
		Radius:                   info.Radius,
		Parts:                    info.Parts,
		InteractionTimeMs:        &ms,
		InteractionDistance:      &dist,
		AllowMultipleInteractors: &multi,
		NameText:                 info.NameText,
		ActionText:               info.ActionText,
		Inactive:                 !info.Active,
	}
}

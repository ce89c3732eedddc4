package worldtest

import (
	"testing"

	"focuscraft.ai/internal/sim/catalogs"
	"focuscraft.ai/internal/sim/tuning"
	"focuscraft.ai/internal/sim/world"
)

func intp(v int) *int                 { return &v }
func boolp(v bool) *bool              { return &v }
func vec(x, y, z float64) *[3]float64 { return &[3]float64{x, y, z} }

func object(id string, pos [3]float64, timeMs int) catalogs.ObjectDef {
	return catalogs.ObjectDef{
		ID:                id,
		Kind:              "DOOR",
		Pos:               pos,
		Radius:            50,
		Parts:             1,
		InteractionTimeMs: intp(timeMs),
	}
}

func testCatalogs(defs ...catalogs.ObjectDef) *catalogs.Catalogs {
	c := &catalogs.Catalogs{}
	c.Objects.Defs = map[string]catalogs.ObjectDef{}
	for _, d := range defs {
		c.Objects.Defs[d.ID] = d
		c.Objects.Order = append(c.Objects.Order, d.ID)
	}
	c.Objects.Digest = "test"
	return c
}

// newHarness runs at 20 Hz (50ms ticks) with the eye at the feet.
func newHarness(t *testing.T, defs ...catalogs.ObjectDef) *Harness {
	t.Helper()
	cfg := world.ConfigFromTuning("test", world.RoleAuthority, tuning.Defaults())
	cfg.EyeHeight = 0
	cfg.MaxQueue = 256
	cfg.Headless = true
	return NewHarness(t, cfg, testCatalogs(defs...), "bot")
}

func indexOf(list []string, want string) int {
	for i, s := range list {
		if s == want {
			return i
		}
	}
	return -1
}

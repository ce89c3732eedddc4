// Command replay re-runs a world's tick log against a fresh world built from
// the same configs and checks the state digest of every tick.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	persistlog "focuscraft.ai/internal/persistence/log"
	"focuscraft.ai/internal/sim/catalogs"
	"focuscraft.ai/internal/sim/tuning"
	"focuscraft.ai/internal/sim/world"
)

func main() {
	var (
		dataDir    = flag.String("data", "./data", "runtime data directory")
		worldID    = flag.String("world", "world_1", "world id")
		configDir  = flag.String("configs", "./configs", "config directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		toTick     = flag.Uint64("to_tick", 0, "stop at tick (inclusive, optional)")
	)
	flag.Parse()

	cats, err := catalogs.Load(*configDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load catalogs:", err)
		os.Exit(1)
	}
	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintln(os.Stderr, "load tuning:", err)
			os.Exit(1)
		}
		tune = tuning.Defaults()
	}

	cfg := world.ConfigFromTuning(*worldID, world.RoleAuthority, tune)
	cfg.Headless = true
	w, err := world.New(cfg, cats)
	if err != nil {
		fmt.Fprintln(os.Stderr, "world:", err)
		os.Exit(1)
	}

	worldDir := filepath.Join(*dataDir, "worlds", *worldID)
	checked, err := replay(w, worldDir, *toTick)
	if err != nil {
		fmt.Fprintln(os.Stderr, "replay:", err)
		os.Exit(1)
	}
	fmt.Printf("replay ok: world=%s checked=%d ticks objects_digest=%s\n", *worldID, checked, cats.Objects.Digest)
}

// replay steps w through every logged tick up to toTick (0 = all) and returns
// how many digests matched. The log must start at tick 0.
func replay(w *world.World, worldDir string, toTick uint64) (uint64, error) {
	var checked uint64
	err := persistlog.ReadTicks(worldDir, func(entry world.TickLogEntry) error {
		if toTick != 0 && entry.Tick > toTick {
			return persistlog.ErrStop
		}
		if entry.Tick != w.CurrentTick() {
			return fmt.Errorf("tick mismatch: want=%d got=%d", w.CurrentTick(), entry.Tick)
		}
		tick, got := w.StepOnce(entry.StepInput())
		if got != entry.Digest {
			return fmt.Errorf("digest mismatch at tick %d: got=%s want=%s", tick, got, entry.Digest)
		}
		checked++
		return nil
	})
	if err != nil {
		return checked, err
	}
	if checked == 0 {
		return 0, errors.New("no ticks found under " + filepath.Join(worldDir, "ticks"))
	}
	return checked, nil
}

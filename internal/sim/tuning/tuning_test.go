package tuning

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "tuning.yaml")
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return p
}

func TestLoadOverlaysDefaults(t *testing.T) {
	p := writeFile(t, `
tick_rate_hz: 10
interactor:
  scan_frequency_ms: 100
interactable:
  interaction_time_ms: 1500
  name_text: "Lever"
`)
	got, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.TickRateHz != 10 || got.TickDuration() != 100*time.Millisecond {
		t.Fatalf("tick: got %d / %v", got.TickRateHz, got.TickDuration())
	}
	if got.Interactor.ScanFrequency() != 100*time.Millisecond || got.Interactor.ScanDistance != 1000 {
		t.Fatalf("interactor: got %+v", got.Interactor)
	}
	if !got.Interactor.CanInteract {
		t.Fatalf("can_interact default lost")
	}
	ia := got.Interactable
	if ia.InteractionTime() != 1500*time.Millisecond || ia.NameText != "Lever" || ia.ActionText != "Interact" || ia.InteractionDistance != 500 {
		t.Fatalf("interactable: got %+v", ia)
	}
	if got.Net != Defaults().Net {
		t.Fatalf("net: got %+v want %+v", got.Net, Defaults().Net)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"tick":     "tick_rate_hz: 0\n",
		"scan":     "interactor:\n  scan_distance: -1\n",
		"time":     "interactable:\n  interaction_time_ms: -5\n",
		"distance": "interactable:\n  interaction_distance: 0\n",
		"queue":    "net:\n  max_queue: 0\n",
		"yaml":     "tick_rate_hz: [\n",
	}
	for name, body := range cases {
		_, err := Load(writeFile(t, body))
		if err == nil {
			t.Fatalf("%s: expected error", name)
		}
		if !strings.HasPrefix(err.Error(), "tuning.yaml: ") {
			t.Fatalf("%s: error not wrapped: %v", name, err)
		}
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); !os.IsNotExist(err) {
		t.Fatalf("expected not-exist, got %v", err)
	}
}

func TestDefaultsValid(t *testing.T) {
	if err := Defaults().Validate(); err != nil {
		t.Fatalf("defaults: %v", err)
	}
}

package catalogs

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfigs(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return dir
}

func TestLoadObjectsAndSpawns(t *testing.T) {
	dir := writeConfigs(t, map[string]string{
		"objects.json": `[
			{"id":"lever","kind":"LEVER","pos":[0,0,200],"radius":20,"interaction_time_ms":0},
			{"id":"door","kind":"DOOR","pos":[300,0,0],"radius":50,"parts":2,"allow_multiple_interactors":false}
		]`,
		"spawns.json": `{"points":[{"pos":[0,0,0],"yaw":0},{"pos":[10,0,0],"yaw":90}]}`,
	})
	c, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if strings.Join(c.Objects.Order, ",") != "door,lever" {
		t.Fatalf("order: got %v", c.Objects.Order)
	}
	door := c.Objects.Defs["door"]
	if door.Parts != 2 || door.AllowMultipleInteractors == nil || *door.AllowMultipleInteractors {
		t.Fatalf("door: got %+v", door)
	}
	if door.InteractionTimeMs != nil || door.InteractionDistance != nil {
		t.Fatalf("unset fields should stay nil: %+v", door)
	}
	if lever := c.Objects.Defs["lever"]; lever.InteractionTimeMs == nil || *lever.InteractionTimeMs != 0 {
		t.Fatalf("explicit zero time lost: %+v", lever)
	}
	if len(c.Objects.Digest) != 64 || len(c.Spawns.Digest) != 64 {
		t.Fatalf("digests: %q %q", c.Objects.Digest, c.Spawns.Digest)
	}
	if sp := c.Spawns.Spawn(3); sp.Yaw != 90 || sp.Pos[0] != 10 {
		t.Fatalf("spawn cycle: got %+v", sp)
	}
}

func TestSpawnsOptional(t *testing.T) {
	dir := writeConfigs(t, map[string]string{"objects.json": `[]`})
	c, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if sp := c.Spawns.Spawn(7); sp != (SpawnPoint{}) {
		t.Fatalf("expected origin, got %+v", sp)
	}
}

func TestObjectsRequired(t *testing.T) {
	if _, err := Load(t.TempDir()); !os.IsNotExist(err) {
		t.Fatalf("expected not-exist, got %v", err)
	}
}

func TestParseObjectsRejects(t *testing.T) {
	cases := map[string]string{
		"empty id":  `[{"id":"","pos":[0,0,0],"radius":1}]`,
		"duplicate": `[{"id":"a","pos":[0,0,0],"radius":1},{"id":"a","pos":[1,0,0],"radius":1}]`,
		"radius":    `[{"id":"a","pos":[0,0,0],"radius":0}]`,
		"time":      `[{"id":"a","pos":[0,0,0],"radius":1,"interaction_time_ms":-1}]`,
		"json":      `{"id":"a"}`,
	}
	for name, raw := range cases {
		var out ObjectCatalog
		if err := parseObjects([]byte(raw), &out); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestDigestTracksContent(t *testing.T) {
	var a, b ObjectCatalog
	if err := parseObjects([]byte(`[{"id":"a","pos":[0,0,0],"radius":1}]`), &a); err != nil {
		t.Fatalf("a: %v", err)
	}
	if err := parseObjects([]byte(`[{"id":"a","pos":[0,0,0],"radius":2}]`), &b); err != nil {
		t.Fatalf("b: %v", err)
	}
	if a.Digest == b.Digest {
		t.Fatalf("digest did not change")
	}
}

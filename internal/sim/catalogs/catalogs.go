package catalogs

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

type Catalogs struct {
	Objects ObjectCatalog
	Spawns  SpawnCatalog
}

type ObjectCatalog struct {
	// Order lists ids sorted, the order objects are spawned in.
	Order  []string
	Defs   map[string]ObjectDef
	Digest string
}

// ObjectDef describes one interactable world object. Nil pointer fields fall
// back to the interactable defaults from tuning.yaml.
type ObjectDef struct {
	ID     string     `json:"id"`
	Kind   string     `json:"kind,omitempty"` // "DOOR","LEVER","CHEST",...
	Pos    [3]float64 `json:"pos"`
	Radius float64    `json:"radius"`
	// Parts is the number of highlightable sub-meshes.
	Parts int `json:"parts,omitempty"`

	InteractionTimeMs        *int     `json:"interaction_time_ms,omitempty"`
	InteractionDistance      *float64 `json:"interaction_distance,omitempty"`
	AllowMultipleInteractors *bool    `json:"allow_multiple_interactors,omitempty"`
	NameText                 string   `json:"name_text,omitempty"`
	ActionText               string   `json:"action_text,omitempty"`

	Inactive bool `json:"inactive,omitempty"`
}

type SpawnCatalog struct {
	Points []SpawnPoint `json:"points"`
	Digest string       `json:"-"`
}

type SpawnPoint struct {
	Pos [3]float64 `json:"pos"`
	Yaw float64    `json:"yaw"`
}

func Load(configDir string) (*Catalogs, error) {
	var c Catalogs

	if err := loadObjects(filepath.Join(configDir, "objects.json"), &c.Objects); err != nil {
		return nil, err
	}
	if err := loadSpawns(filepath.Join(configDir, "spawns.json"), &c.Spawns); err != nil {
		return nil, err
	}
	return &c, nil
}

// Spawn returns the n-th spawn point, cycling; the origin when none are defined.
func (s SpawnCatalog) Spawn(n int) SpawnPoint {
	if len(s.Points) == 0 {
		return SpawnPoint{}
	}
	if n < 0 {
		n = -n
	}
	return s.Points[n%len(s.Points)]
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func loadObjects(path string, out *ObjectCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return parseObjects(raw, out)
}

func parseObjects(raw []byte, out *ObjectCatalog) error {
	out.Digest = sha256Hex(raw)

	var defs []ObjectDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("objects.json: %w", err)
	}
	out.Defs = map[string]ObjectDef{}
	for _, d := range defs {
		if d.ID == "" {
			return fmt.Errorf("objects.json: empty id")
		}
		if _, dup := out.Defs[d.ID]; dup {
			return fmt.Errorf("objects.json: duplicate id %q", d.ID)
		}
		if d.Radius <= 0 {
			return fmt.Errorf("objects.json: %s: radius must be > 0", d.ID)
		}
		if d.InteractionTimeMs != nil && *d.InteractionTimeMs < 0 {
			return fmt.Errorf("objects.json: %s: negative interaction_time_ms", d.ID)
		}
		out.Defs[d.ID] = d
	}

	out.Order = make([]string, 0, len(out.Defs))
	for id := range out.Defs {
		out.Order = append(out.Order, id)
	}
	sort.Strings(out.Order)
	return nil
}

func loadSpawns(path string, out *SpawnCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		// Optional: agents spawn at the origin.
		if os.IsNotExist(err) {
			out.Digest = sha256Hex(nil)
			return nil
		}
		return err
	}
	out.Digest = sha256Hex(raw)
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("spawns.json: %w", err)
	}
	return nil
}

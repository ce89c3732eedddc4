package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	persistlog "focuscraft.ai/internal/persistence/log"
	"focuscraft.ai/internal/sim/world"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "audit":
			auditCmd(os.Args[2:])
			return
		case "db":
			dbCmd(os.Args[2:])
			return
		case "state":
			stateCmd(os.Args[2:])
			return
		case "object":
			objectCmd(os.Args[2:])
			return
		}
	}
	listCmd(os.Args[1:])
}

func listCmd(args []string) {
	fs := flag.NewFlagSet("admin", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "", "world id (optional)")
	_ = fs.Parse(args)

	base := filepath.Join(*dataDir, "worlds")
	if *worldID != "" {
		base = filepath.Join(base, *worldID)
	}

	entries, err := os.ReadDir(base)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(1)
	}
	for _, e := range entries {
		fmt.Println(e.Name())
	}
}

type auditFilter struct {
	SinceTick uint64
	ToTick    uint64
	ObjectID  string
	AgentID   string
	Kind      string
}

func (f auditFilter) match(e world.AuditEntry) bool {
	if e.Tick < f.SinceTick {
		return false
	}
	if f.ObjectID != "" && e.Object != f.ObjectID {
		return false
	}
	if f.AgentID != "" && e.Agent != f.AgentID {
		return false
	}
	if f.Kind != "" && !strings.EqualFold(e.Kind, f.Kind) {
		return false
	}
	return true
}

func auditCmd(args []string) {
	fs := flag.NewFlagSet("audit", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "", "world id")
	sinceTick := fs.Uint64("since_tick", 0, "first tick (inclusive)")
	toTick := fs.Uint64("to_tick", 0, "last tick (inclusive, optional)")
	objectID := fs.String("object", "", "object_id filter")
	agentID := fs.String("agent", "", "agent_id filter")
	kind := fs.String("kind", "", "event kind filter (e.g. INTERACT)")
	_ = fs.Parse(args)

	if strings.TrimSpace(*worldID) == "" {
		fmt.Fprintln(os.Stderr, "missing -world")
		os.Exit(2)
	}
	worldDir := filepath.Join(*dataDir, "worlds", *worldID)
	n, err := dumpAudit(os.Stdout, worldDir, auditFilter{
		SinceTick: *sinceTick,
		ToTick:    *toTick,
		ObjectID:  strings.TrimSpace(*objectID),
		AgentID:   strings.TrimSpace(*agentID),
		Kind:      strings.TrimSpace(*kind),
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "read audit:", err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stderr, "audit: %d entries\n", n)
}

// dumpAudit writes matching entries from the audit log as JSON lines.
func dumpAudit(out io.Writer, worldDir string, f auditFilter) (int, error) {
	n := 0
	err := persistlog.ReadAudit(worldDir, func(e world.AuditEntry) error {
		if f.ToTick != 0 && e.Tick > f.ToTick {
			return persistlog.ErrStop
		}
		if !f.match(e) {
			return nil
		}
		n++
		return writeJSON(out, e)
	})
	return n, err
}

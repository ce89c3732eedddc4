package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"focuscraft.ai/internal/persistence/indexdb"
)

type dbQuery struct {
	Name      string
	Limit     int
	ObjectID  string
	AgentID   string
	Kind      string
	SinceTick uint64
}

func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "", "world id (required unless -db)")
	dbPath := fs.String("db", "", "sqlite db path (optional)")
	limit := fs.Int("limit", 20, "result limit")
	objectID := fs.String("object", "", "object_id filter (events)")
	agentID := fs.String("agent", "", "agent_id filter (events, calls)")
	kind := fs.String("kind", "", "event kind filter (events)")
	sinceTick := fs.Uint64("since_tick", 0, "first tick (events)")
	_ = fs.Parse(args)

	q := dbQuery{
		Name:      "ticks",
		Limit:     *limit,
		ObjectID:  strings.TrimSpace(*objectID),
		AgentID:   strings.TrimSpace(*agentID),
		Kind:      strings.TrimSpace(*kind),
		SinceTick: *sinceTick,
	}
	if fs.NArg() > 0 {
		q.Name = strings.TrimSpace(fs.Arg(0))
	}

	path := strings.TrimSpace(*dbPath)
	if path == "" {
		if strings.TrimSpace(*worldID) == "" {
			fmt.Fprintln(os.Stderr, "missing -world or -db")
			os.Exit(2)
		}
		path = filepath.Join(*dataDir, "worlds", *worldID, "index", "world.sqlite")
	}
	if _, err := os.Stat(path); err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}

	r, err := indexdb.OpenReader(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer r.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := runDBQuery(ctx, os.Stdout, r, q); err != nil {
		fmt.Fprintln(os.Stderr, "query:", err)
		os.Exit(1)
	}
}

func runDBQuery(ctx context.Context, out io.Writer, r *indexdb.Reader, q dbQuery) error {
	switch q.Name {
	case "ticks":
		rows, err := r.Ticks(ctx, q.Limit)
		if err != nil {
			return err
		}
		for _, row := range rows {
			if err := writeJSON(out, row); err != nil {
				return err
			}
		}

	case "events":
		evs, err := r.Events(ctx, indexdb.EventFilter{
			ObjectID:  q.ObjectID,
			AgentID:   q.AgentID,
			Kind:      q.Kind,
			SinceTick: q.SinceTick,
			Limit:     q.Limit,
		})
		if err != nil {
			return err
		}
		for _, e := range evs {
			if err := writeJSON(out, e); err != nil {
				return err
			}
		}

	case "calls":
		counts, err := r.CallCounts(ctx, q.AgentID)
		if err != nil {
			return err
		}
		types := make([]string, 0, len(counts))
		for t := range counts {
			types = append(types, t)
		}
		sort.Strings(types)
		for _, t := range types {
			row := struct {
				Type  string `json:"call_type"`
				Count int    `json:"count"`
			}{t, counts[t]}
			if err := writeJSON(out, row); err != nil {
				return err
			}
		}

	case "catalogs":
		digests, err := r.CatalogDigests(ctx)
		if err != nil {
			return err
		}
		return writeJSON(out, digests)

	default:
		return fmt.Errorf("unknown query %q (ticks|events|calls|catalogs)", q.Name)
	}
	return nil
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"focuscraft.ai/internal/persistence/indexdb"
	"focuscraft.ai/internal/sim/catalogs"
	"focuscraft.ai/internal/sim/tuning"
	"focuscraft.ai/internal/sim/world"
)

type runtimeIndex interface {
	world.TickLogger
	world.AuditLogger
	Close() error
	UpsertCatalogs(configDir string, cats *catalogs.Catalogs, tune tuning.Tuning) error
}

func openRuntimeIndex(worldDir, worldID string, disableDB bool, logger *log.Logger) (runtimeIndex, error) {
	if disableDB {
		return nil, nil
	}

	backend := strings.ToLower(strings.TrimSpace(os.Getenv("FC_INDEX_BACKEND")))
	if backend == "" {
		backend = "sqlite"
	}

	switch backend {
	case "none", "off", "disabled":
		return nil, nil
	case "sqlite":
		dbPath := filepath.Join(worldDir, "index", "world.sqlite")
		return indexdb.OpenSQLite(dbPath)
	case "d1":
		endpoint := strings.TrimSpace(os.Getenv("FC_INDEX_D1_INGEST_URL"))
		token := strings.TrimSpace(os.Getenv("FC_INDEX_D1_TOKEN"))
		if endpoint == "" {
			return nil, fmt.Errorf("FC_INDEX_BACKEND=d1 but FC_INDEX_D1_INGEST_URL is empty")
		}
		flushMS := envInt("FC_INDEX_D1_FLUSH_MS", 500)
		batchSize := envInt("FC_INDEX_D1_BATCH_SIZE", 128)
		idx, err := indexdb.OpenD1(indexdb.D1Config{
			Endpoint:      endpoint,
			Token:         token,
			WorldID:       worldID,
			BatchSize:     batchSize,
			FlushInterval: time.Duration(flushMS) * time.Millisecond,
			Logger:        logger,
		})
		if err != nil {
			return nil, err
		}
		return idx, nil
	default:
		return nil, fmt.Errorf("unsupported FC_INDEX_BACKEND: %s", backend)
	}
}

func writeIndexMetrics(rw io.Writer, worldID string, idx runtimeIndex) {
	switch x := idx.(type) {
	case *indexdb.SQLiteIndex:
		s := x.Stats()
		fmt.Fprintf(rw, "# HELP focuscraft_index_queue_depth Index write queue backlog.\n")
		fmt.Fprintf(rw, "# TYPE focuscraft_index_queue_depth gauge\n")
		fmt.Fprintf(rw, "focuscraft_index_queue_depth{world=%q,backend=\"sqlite\"} %d\n", worldID, s.QueueDepth)
		fmt.Fprintf(rw, "# HELP focuscraft_index_dropped_total Index writes dropped because the queue was full.\n")
		fmt.Fprintf(rw, "# TYPE focuscraft_index_dropped_total counter\n")
		fmt.Fprintf(rw, "focuscraft_index_dropped_total{world=%q,backend=\"sqlite\",kind=\"tick\"} %d\n", worldID, s.DropTickTotal)
		fmt.Fprintf(rw, "focuscraft_index_dropped_total{world=%q,backend=\"sqlite\",kind=\"audit\"} %d\n", worldID, s.DropAuditTotal)
		fmt.Fprintf(rw, "# HELP focuscraft_index_write_errors_total Failed index transactions.\n")
		fmt.Fprintf(rw, "# TYPE focuscraft_index_write_errors_total counter\n")
		fmt.Fprintf(rw, "focuscraft_index_write_errors_total{world=%q,backend=\"sqlite\"} %d\n", worldID, s.WriteErrTotal)
	case *indexdb.D1Index:
		s := x.Stats()
		fmt.Fprintf(rw, "# HELP focuscraft_index_queue_depth Index write queue backlog.\n")
		fmt.Fprintf(rw, "# TYPE focuscraft_index_queue_depth gauge\n")
		fmt.Fprintf(rw, "focuscraft_index_queue_depth{world=%q,backend=\"d1\"} %d\n", worldID, s.QueueDepth)
		fmt.Fprintf(rw, "# HELP focuscraft_index_dropped_total Index writes dropped because the queue was full.\n")
		fmt.Fprintf(rw, "# TYPE focuscraft_index_dropped_total counter\n")
		fmt.Fprintf(rw, "focuscraft_index_dropped_total{world=%q,backend=\"d1\",kind=\"any\"} %d\n", worldID, s.QueueDroppedTotal)
		fmt.Fprintf(rw, "# HELP focuscraft_index_flush_fail_total Failed D1 ingest flushes.\n")
		fmt.Fprintf(rw, "# TYPE focuscraft_index_flush_fail_total counter\n")
		fmt.Fprintf(rw, "focuscraft_index_flush_fail_total{world=%q} %d\n", worldID, s.FlushFailTotal)
		fmt.Fprintf(rw, "# HELP focuscraft_index_sent_total Events accepted by the D1 ingest worker.\n")
		fmt.Fprintf(rw, "# TYPE focuscraft_index_sent_total counter\n")
		fmt.Fprintf(rw, "focuscraft_index_sent_total{world=%q} %d\n", worldID, s.SentTotal)
	}
}

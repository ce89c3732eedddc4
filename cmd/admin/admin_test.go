package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"focuscraft.ai/internal/persistence/indexdb"
	persistlog "focuscraft.ai/internal/persistence/log"
	"focuscraft.ai/internal/protocol"
	"focuscraft.ai/internal/sim/world"
)

func TestDumpAuditFilters(t *testing.T) {
	dir := t.TempDir()
	al := persistlog.NewAuditLogger(dir)
	for _, e := range []world.AuditEntry{
		{Tick: 1, Kind: "BEGIN_FOCUS", Object: "door", Agent: "A1"},
		{Tick: 2, Kind: "INTERACT", Object: "door", Agent: "A1"},
		{Tick: 3, Kind: "INTERACT", Object: "lever", Agent: "A2"},
		{Tick: 9, Kind: "INTERACT", Object: "door", Agent: "A1"},
	} {
		if err := al.WriteAudit(e); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := al.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	var buf bytes.Buffer
	n, err := dumpAudit(&buf, dir, auditFilter{Kind: "interact", ObjectID: "door", ToTick: 5})
	if err != nil {
		t.Fatalf("dumpAudit: %v", err)
	}
	if n != 1 || !strings.Contains(buf.String(), `"tick":2`) {
		t.Fatalf("got n=%d out=%s", n, buf.String())
	}

	buf.Reset()
	if n, _ := dumpAudit(&buf, dir, auditFilter{SinceTick: 3}); n != 2 {
		t.Fatalf("since: got %d want 2", n)
	}
}

func TestRunDBQuery(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index", "world.sqlite")
	idx, err := indexdb.OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	_ = idx.WriteTick(world.TickLogEntry{Tick: 0, Digest: "d0", Calls: []world.RecordedCall{
		{AgentID: "A1", Seq: 1, Call: protocol.Call{Type: protocol.CallBeginInteract}},
	}})
	_ = idx.WriteAudit(world.AuditEntry{Tick: 0, Role: "authority", Kind: "INTERACT", Object: "door", Agent: "A1"})
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	r, err := indexdb.OpenReader(path)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer r.Close()
	ctx := context.Background()

	var buf bytes.Buffer
	if err := runDBQuery(ctx, &buf, r, dbQuery{Name: "ticks", Limit: 5}); err != nil {
		t.Fatalf("ticks: %v", err)
	}
	if !strings.Contains(buf.String(), `"digest":"d0"`) {
		t.Fatalf("ticks: %s", buf.String())
	}

	buf.Reset()
	if err := runDBQuery(ctx, &buf, r, dbQuery{Name: "events", ObjectID: "door"}); err != nil {
		t.Fatalf("events: %v", err)
	}
	if !strings.Contains(buf.String(), `"kind":"INTERACT"`) {
		t.Fatalf("events: %s", buf.String())
	}

	buf.Reset()
	if err := runDBQuery(ctx, &buf, r, dbQuery{Name: "calls", AgentID: "A1"}); err != nil {
		t.Fatalf("calls: %v", err)
	}
	if !strings.Contains(buf.String(), `"count":1`) {
		t.Fatalf("calls: %s", buf.String())
	}

	if err := runDBQuery(ctx, &buf, r, dbQuery{Name: "snapshots"}); err == nil {
		t.Fatalf("expected error for unknown query")
	}
}

func TestAdminPostReportsStatus(t *testing.T) {
	var gotMethod, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath = r.Method, r.URL.Path
		if strings.HasSuffix(r.URL.Path, "/nope/deactivate") {
			http.Error(w, "unknown object", http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	b, err := adminPost(srv.Client(), srv.URL+"/", "/admin/v1/objects/door/deactivate")
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	if gotMethod != http.MethodPost || gotPath != "/admin/v1/objects/door/deactivate" || string(b) != `{"ok":true}` {
		t.Fatalf("got %s %s body=%s", gotMethod, gotPath, b)
	}

	if _, err := adminPost(srv.Client(), srv.URL, "/admin/v1/objects/nope/deactivate"); err == nil {
		t.Fatalf("expected error on 400")
	}
}

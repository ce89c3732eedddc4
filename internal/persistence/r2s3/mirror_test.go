package r2s3

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

type fakeUploader struct {
	mu   sync.Mutex
	keys []string
	fail int
}

func (f *fakeUploader) PutFile(ctx context.Context, key, localPath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail > 0 {
		f.fail--
		return errors.New("unavailable")
	}
	f.keys = append(f.keys, key)
	return nil
}

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestMirrorUploadsUnderPrefix(t *testing.T) {
	dataDir := t.TempDir()
	seg := filepath.Join(dataDir, "worlds", "w1", "ticks", "ticks-2026-03-01-10.jsonl.zst")
	writeFile(t, seg, "x")
	outside := filepath.Join(t.TempDir(), "outside.zst")
	writeFile(t, outside, "x")

	up := &fakeUploader{fail: 1}
	m := NewMirror(up, MirrorConfig{
		DataDir:       dataDir,
		Prefix:        "/mirror/",
		QueueCapacity: 4,
		Backoff:       func(int) time.Duration { return time.Millisecond },
	})
	m.Enqueue(seg)
	m.Enqueue(outside)
	m.Close()

	if len(up.keys) != 1 || up.keys[0] != "mirror/worlds/w1/ticks/ticks-2026-03-01-10.jsonl.zst" {
		t.Fatalf("keys: got %v", up.keys)
	}
	s := m.Stats()
	if s.EnqueuedTotal != 2 || s.UploadSuccessTotal != 1 || s.UploadFailTotal != 0 || s.SkippedTotal != 1 {
		t.Fatalf("stats: %+v", s)
	}
	if s.LastSuccessUnix == 0 {
		t.Fatalf("last success not recorded")
	}
}

func TestMirrorSkipsEmptySegmentsAndCountsFailures(t *testing.T) {
	dataDir := t.TempDir()
	empty := filepath.Join(dataDir, "worlds", "w1", "audit", "audit-2026-03-01-10-00.jsonl.zst")
	full := filepath.Join(dataDir, "worlds", "w1", "audit", "audit-2026-03-01-10-01.jsonl.zst")
	writeFile(t, empty, "")
	writeFile(t, full, "data")

	up := &fakeUploader{fail: 10}
	m := NewMirror(up, MirrorConfig{
		DataDir:     dataDir,
		MaxAttempts: 2,
		Backoff:     func(int) time.Duration { return 0 },
	})
	m.Enqueue(empty)
	m.Enqueue(full)
	m.Close()

	s := m.Stats()
	if s.SkippedTotal != 1 || s.UploadFailTotal != 1 || s.UploadSuccessTotal != 0 {
		t.Fatalf("stats: %+v", s)
	}
	if up.fail != 8 {
		t.Fatalf("attempts: got %d want 2", 10-up.fail)
	}
	if s.LastErrorUnix == 0 {
		t.Fatalf("last error not recorded")
	}
}

func TestNormalizeObjectKey(t *testing.T) {
	cases := map[string]string{
		"a/b.zst":       "a/b.zst",
		"/a//b.zst":     "a/b.zst",
		`a\b.zst`:       "a/b.zst",
		"../escape.zst": "escape.zst",
		"":              "",
		"/":             "",
	}
	for in, want := range cases {
		if got := normalizeObjectKey(in); got != want {
			t.Fatalf("normalizeObjectKey(%q): got %q want %q", in, got, want)
		}
	}
}

func TestNewRequiresCredentials(t *testing.T) {
	if _, err := New(context.Background(), "r2.example.com", "bucket", "", "secret"); err == nil {
		t.Fatalf("expected error for missing access key")
	}
}

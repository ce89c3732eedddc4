package r2s3

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Uploader stores one local file under an object key.
type Uploader interface {
	PutFile(ctx context.Context, objectKey, localPath string) error
}

type MirrorConfig struct {
	// DataDir is the root that object keys are made relative to.
	DataDir string
	Prefix  string

	Workers       int
	QueueCapacity int
	// EnqueueWait is how long Enqueue blocks on a full queue before dropping.
	EnqueueWait time.Duration
	MaxAttempts int
	// Backoff before attempt n+1; defaults to n*n*200ms.
	Backoff func(attempt int) time.Duration

	Logger *log.Logger
}

type Stats struct {
	QueueDepth          int
	QueueCapacity       int
	EnqueuedTotal       uint64
	QueueSaturatedTotal uint64
	DroppedTotal        uint64
	SkippedTotal        uint64
	UploadSuccessTotal  uint64
	UploadFailTotal     uint64
	LastSuccessUnix     int64
	LastErrorUnix       int64
}

var errEmptySegment = errors.New("empty segment")

// Mirror copies closed log segments to object storage from a bounded queue.
// Keys are the segment's path under DataDir, joined to Prefix.
type Mirror struct {
	client Uploader
	cfg    MirrorConfig

	jobs chan string
	wg   sync.WaitGroup

	enqueued       atomic.Uint64
	saturated      atomic.Uint64
	dropped        atomic.Uint64
	skipped        atomic.Uint64
	uploaded       atomic.Uint64
	failed         atomic.Uint64
	lastSuccessSec atomic.Int64
	lastErrorSec   atomic.Int64
}

func NewMirror(client Uploader, cfg MirrorConfig) *Mirror {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueCapacity <= 0 {
		cfg.QueueCapacity = 2048
	}
	if cfg.EnqueueWait <= 0 {
		cfg.EnqueueWait = 25 * time.Millisecond
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 4
	}
	if cfg.Backoff == nil {
		cfg.Backoff = func(n int) time.Duration { return time.Duration(n*n) * 200 * time.Millisecond }
	}
	cfg.Prefix = strings.Trim(strings.ReplaceAll(cfg.Prefix, "\\", "/"), "/")

	m := &Mirror{client: client, cfg: cfg, jobs: make(chan string, cfg.QueueCapacity)}
	m.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go m.worker()
	}
	return m
}

// Enqueue schedules localPath for upload. It is called from the logger's
// close hook on the world loop, so it never blocks longer than EnqueueWait.
func (m *Mirror) Enqueue(localPath string) {
	if m == nil || m.client == nil {
		return
	}
	m.enqueued.Add(1)
	select {
	case m.jobs <- localPath:
		return
	default:
	}

	m.saturated.Add(1)
	t := time.NewTimer(m.cfg.EnqueueWait)
	defer t.Stop()
	select {
	case m.jobs <- localPath:
	case <-t.C:
		n := m.dropped.Add(1)
		m.printf("r2 mirror: dropped %s (queue full for %s, dropped=%d)", localPath, m.cfg.EnqueueWait, n)
	}
}

// Close uploads whatever is queued and stops the workers.
func (m *Mirror) Close() {
	if m == nil {
		return
	}
	close(m.jobs)
	m.wg.Wait()
}

func (m *Mirror) Stats() Stats {
	if m == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:          len(m.jobs),
		QueueCapacity:       cap(m.jobs),
		EnqueuedTotal:       m.enqueued.Load(),
		QueueSaturatedTotal: m.saturated.Load(),
		DroppedTotal:        m.dropped.Load(),
		SkippedTotal:        m.skipped.Load(),
		UploadSuccessTotal:  m.uploaded.Load(),
		UploadFailTotal:     m.failed.Load(),
		LastSuccessUnix:     m.lastSuccessSec.Load(),
		LastErrorUnix:       m.lastErrorSec.Load(),
	}
}

func (m *Mirror) worker() {
	defer m.wg.Done()
	for p := range m.jobs {
		m.upload(p)
	}
}

func (m *Mirror) upload(localPath string) {
	key, err := m.objectKey(localPath)
	if err != nil {
		m.skipped.Add(1)
		if !errors.Is(err, errEmptySegment) {
			m.printf("r2 mirror: skip %s: %v", localPath, err)
		}
		return
	}

	var lastErr error
	for attempt := 1; attempt <= m.cfg.MaxAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		lastErr = m.client.PutFile(ctx, key, localPath)
		cancel()
		if lastErr == nil {
			m.uploaded.Add(1)
			m.lastSuccessSec.Store(time.Now().Unix())
			return
		}
		if attempt < m.cfg.MaxAttempts {
			time.Sleep(m.cfg.Backoff(attempt))
		}
	}
	m.failed.Add(1)
	m.lastErrorSec.Store(time.Now().Unix())
	m.printf("r2 mirror: upload %s failed after %d attempts: %v", key, m.cfg.MaxAttempts, lastErr)
}

func (m *Mirror) objectKey(localPath string) (string, error) {
	if localPath == "" {
		return "", fmt.Errorf("empty local path")
	}
	fi, err := os.Stat(localPath)
	if err != nil {
		return "", err
	}
	if fi.Size() == 0 {
		return "", errEmptySegment
	}

	base, err := filepath.Abs(m.cfg.DataDir)
	if err != nil {
		return "", err
	}
	abs, err := filepath.Abs(localPath)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(base, abs)
	if err != nil {
		return "", err
	}
	rel = filepath.ToSlash(rel)
	if rel == "." || rel == ".." || strings.HasPrefix(rel, "../") {
		return "", fmt.Errorf("outside data dir %s", base)
	}
	if m.cfg.Prefix == "" {
		return rel, nil
	}
	return path.Join(m.cfg.Prefix, rel), nil
}

func (m *Mirror) printf(format string, args ...any) {
	if m.cfg.Logger != nil {
		m.cfg.Logger.Printf(format, args...)
	}
}

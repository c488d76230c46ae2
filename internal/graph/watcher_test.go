package graph

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/bryclee/taskcheck/internal/host"
	"github.com/bryclee/taskcheck/internal/testutil"
)

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

// batchRecorder collects published change batches behind a mutex.
type batchRecorder struct {
	mu      sync.Mutex
	batches []host.ChangeBatch
}

func (r *batchRecorder) publish(batch host.ChangeBatch) {
	r.mu.Lock()
	r.batches = append(r.batches, batch)
	r.mu.Unlock()
}

func (r *batchRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.batches)
}

func (r *batchRecorder) pageSeen(page string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.batches {
		if b.Page == page {
			return true
		}
	}
	return false
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestWatch_NewPagePublishesBatch(t *testing.T) {
	graphDir, store := testutil.TestGraph(t)
	db := testutil.TestDB(t)
	logger := quietLogger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rec := &batchRecorder{}
	go Watch(ctx, db, store, graphDir, logger, rec.publish)

	time.Sleep(100 * time.Millisecond)

	_ = os.WriteFile(filepath.Join(graphDir, "today.md"), []byte("- DONE task\n"), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		cs, _ := db.PageChecksum("today.md")
		return cs != ""
	}, "new page not indexed by watcher")

	eventually(t, 2*time.Second, 50*time.Millisecond, func() bool {
		return rec.pageSeen("today.md")
	}, "expected change batch for today.md")

	rec.mu.Lock()
	defer rec.mu.Unlock()
	for _, b := range rec.batches {
		if b.Page != "today.md" {
			continue
		}
		if len(b.Blocks) != 1 {
			t.Fatalf("batch blocks = %d, want 1", len(b.Blocks))
		}
		if b.Blocks[0].Marker != "DONE" {
			t.Errorf("batch marker = %q, want %q", b.Blocks[0].Marker, "DONE")
		}
	}
}

func TestWatch_UnchangedRewritePublishesNothing(t *testing.T) {
	graphDir, store := testutil.TestGraph(t)
	db := testutil.TestDB(t)
	logger := quietLogger()

	_ = os.WriteFile(filepath.Join(graphDir, "today.md"), []byte("- DONE task\n"), 0o644)
	if err := Sync(db, store, logger); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rec := &batchRecorder{}
	go Watch(ctx, db, store, graphDir, logger, rec.publish)

	time.Sleep(100 * time.Millisecond)

	// Rewrite with identical content. The checksum matches the index,
	// so no batch should be published.
	_ = os.WriteFile(filepath.Join(graphDir, "today.md"), []byte("- DONE task\n"), 0o644)

	time.Sleep(500 * time.Millisecond)

	if got := rec.count(); got != 0 {
		t.Errorf("published batches = %d, want 0", got)
	}
}

func TestWatch_NewDirWatched(t *testing.T) {
	graphDir, store := testutil.TestGraph(t)
	db := testutil.TestDB(t)
	logger := quietLogger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go Watch(ctx, db, store, graphDir, logger, nil)

	time.Sleep(100 * time.Millisecond)

	subDir := filepath.Join(graphDir, "journals")
	_ = os.MkdirAll(subDir, 0o755)

	time.Sleep(200 * time.Millisecond)

	_ = os.WriteFile(filepath.Join(subDir, "2024_03_04.md"), []byte("- NOW task\n"), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		cs, _ := db.PageChecksum(filepath.Join("journals", "2024_03_04.md"))
		return cs != ""
	}, "page in new subdir not indexed by watcher")
}

func TestWatch_DeleteRemovesFromIndex(t *testing.T) {
	graphDir, store := testutil.TestGraph(t)
	db := testutil.TestDB(t)
	logger := quietLogger()

	_ = os.WriteFile(filepath.Join(graphDir, "gone.md"), []byte("- TODO task\n"), 0o644)
	if err := Sync(db, store, logger); err != nil {
		t.Fatal(err)
	}

	if cs, _ := db.PageChecksum("gone.md"); cs == "" {
		t.Fatal("page not indexed before delete")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go Watch(ctx, db, store, graphDir, logger, nil)

	time.Sleep(100 * time.Millisecond)

	_ = os.Remove(filepath.Join(graphDir, "gone.md"))

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		cs, _ := db.PageChecksum("gone.md")
		return cs == ""
	}, "deleted page still in index")
}

func TestWatch_RenameReconciles(t *testing.T) {
	graphDir, store := testutil.TestGraph(t)
	db := testutil.TestDB(t)
	logger := quietLogger()

	_ = os.WriteFile(filepath.Join(graphDir, "old.md"), []byte("- DOING task\n"), 0o644)
	if err := Sync(db, store, logger); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go Watch(ctx, db, store, graphDir, logger, nil)

	time.Sleep(100 * time.Millisecond)

	_ = os.Rename(filepath.Join(graphDir, "old.md"), filepath.Join(graphDir, "new.md"))

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		oldCS, _ := db.PageChecksum("old.md")
		newCS, _ := db.PageChecksum("new.md")
		return oldCS == "" && newCS != ""
	}, "rename did not move index entry to new path")
}

package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/bryclee/taskcheck/internal/apperr"
	"github.com/bryclee/taskcheck/internal/host"
	"github.com/bryclee/taskcheck/internal/outline"
	"github.com/bryclee/taskcheck/internal/settings"
)

func TestBuild(t *testing.T) {
	got := Build("completed", []string{"2024-03-09", "2024-03-08"})
	want := `{{query (or (property completed "2024-03-09") (property completed "2024-03-08"))}}`
	if got != want {
		t.Errorf("got %q\nwant %q", got, want)
	}
}

func TestBuild_CustomProperty(t *testing.T) {
	got := Build("finished", []string{"Mon, 2024-03-04"})
	if !strings.Contains(got, `(property finished "Mon, 2024-03-04")`) {
		t.Errorf("got %q", got)
	}
}

type insertCall struct {
	refID   string
	content string
	opts    host.InsertOpts
}

type fakeGraph struct {
	blocks  map[string]*outline.Block
	inserts []insertCall
	failAt  int // 1-based insert call that errors; 0 = never
	nextID  int
}

func newFakeGraph(ids ...string) *fakeGraph {
	g := &fakeGraph{blocks: make(map[string]*outline.Block)}
	for _, id := range ids {
		g.blocks[id] = &outline.Block{ID: id, Content: "TODO something"}
	}
	return g
}

func (g *fakeGraph) GetBlock(_ context.Context, id string) (*outline.Block, error) {
	b, ok := g.blocks[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return b, nil
}

func (g *fakeGraph) InsertBlock(_ context.Context, refID, content string, opts host.InsertOpts) (*outline.Block, error) {
	call := len(g.inserts) + 1
	if g.failAt == call {
		return nil, errors.New("insert rejected")
	}
	g.inserts = append(g.inserts, insertCall{refID: refID, content: content, opts: opts})
	g.nextID++
	b := &outline.Block{ID: fmt.Sprintf("new-%d", g.nextID), Content: content}
	g.blocks[b.ID] = b
	return b, nil
}

type staticConfig string

func (c staticConfig) PreferredDateFormat(context.Context) (string, error) {
	return string(c), nil
}

func testWeekly(g *fakeGraph, format string) *Weekly {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	w := NewWeekly(g, g, staticConfig(format), settings.Default, logger)
	return w.WithClock(func() time.Time {
		return time.Date(2024, time.March, 10, 12, 0, 0, 0, time.UTC)
	})
}

func TestWeekly_InsertsThreeBlocks(t *testing.T) {
	g := newFakeGraph("cur")
	w := testWeekly(g, "yyyy-MM-dd")

	if err := w.Run(context.Background(), "cur"); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(g.inserts) != 3 {
		t.Fatalf("inserts = %d, want 3", len(g.inserts))
	}

	heading := g.inserts[0]
	if heading.refID != "cur" || !heading.opts.Before || !heading.opts.Sibling {
		t.Errorf("heading insert = %+v, want before-sibling of cur", heading)
	}
	if heading.content != "## Completed tasks for the past week" {
		t.Errorf("heading content = %q", heading.content)
	}

	queryIns := g.inserts[1]
	if queryIns.refID != "new-1" || queryIns.opts.Sibling || queryIns.opts.Before {
		t.Errorf("query insert = %+v, want child of heading", queryIns)
	}
	for _, label := range []string{"2024-03-09", "2024-03-03"} {
		if !strings.Contains(queryIns.content, label) {
			t.Errorf("query %q missing label %q", queryIns.content, label)
		}
	}
	if strings.Contains(queryIns.content, "2024-03-10") {
		t.Error("query should not include today")
	}

	sep := g.inserts[2]
	if sep.refID != "new-2" || !sep.opts.Sibling || sep.opts.Before {
		t.Errorf("separator insert = %+v, want sibling of query", sep)
	}
	if sep.content != "---" {
		t.Errorf("separator content = %q", sep.content)
	}
}

func TestWeekly_NoActiveBlockAbortsSilently(t *testing.T) {
	g := newFakeGraph()
	w := testWeekly(g, "yyyy-MM-dd")

	if err := w.Run(context.Background(), ""); err != nil {
		t.Fatalf("empty block id should abort silently: %v", err)
	}
	if err := w.Run(context.Background(), "missing"); err != nil {
		t.Fatalf("unknown block should abort silently: %v", err)
	}
	if len(g.inserts) != 0 {
		t.Errorf("inserts = %d, want 0", len(g.inserts))
	}
}

func TestWeekly_InsertFailureAbortsRemaining(t *testing.T) {
	g := newFakeGraph("cur")
	g.failAt = 2
	w := testWeekly(g, "yyyy-MM-dd")

	if err := w.Run(context.Background(), "cur"); err == nil {
		t.Fatal("expected propagated insert error")
	}
	if len(g.inserts) != 1 {
		t.Errorf("inserts = %d, want only the heading before the failure", len(g.inserts))
	}
}

func TestWeekly_WeekdayPatternFixed(t *testing.T) {
	g := newFakeGraph("cur")
	w := testWeekly(g, "EE yyyy-MM-dd")

	if err := w.Run(context.Background(), "cur"); err != nil {
		t.Fatalf("Run: %v", err)
	}
	// 2024-03-09 was a Saturday; EE must render as the three-letter form.
	if !strings.Contains(g.inserts[1].content, "Sat 2024-03-09") {
		t.Errorf("query = %q, want EEE-formatted labels", g.inserts[1].content)
	}
}

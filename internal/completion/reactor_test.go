package completion

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/bryclee/taskcheck/internal/host"
	"github.com/bryclee/taskcheck/internal/settings"
)

type recordedUpdate struct {
	id      string
	content string
	props   map[string]string
}

type fakeUpdater struct {
	updates []recordedUpdate
	err     error
}

func (f *fakeUpdater) UpdateBlock(_ context.Context, id, content string, props map[string]string) error {
	if f.err != nil {
		return f.err
	}
	f.updates = append(f.updates, recordedUpdate{id: id, content: content, props: props})
	return nil
}

type fakeConfig struct {
	format string
	err    error
}

func (f *fakeConfig) PreferredDateFormat(context.Context) (string, error) {
	return f.format, f.err
}

func fixedClock() time.Time {
	return time.Date(2024, time.March, 4, 14, 30, 0, 0, time.UTC)
}

func testReactor(t *testing.T, s settings.Settings) (*Reactor, *fakeUpdater) {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	up := &fakeUpdater{}
	r := New(up, &fakeConfig{format: "yyyy-MM-dd"}, logger, s, WithClock(fixedClock))
	return r, up
}

func batch(blocks ...host.BlockChange) host.ChangeBatch {
	return host.ChangeBatch{Page: "pages/today.md", Blocks: blocks}
}

func TestHandleBatch_UntrackedMarkerIgnored(t *testing.T) {
	r, up := testReactor(t, settings.Default())
	err := r.HandleBatch(context.Background(), batch(host.BlockChange{
		ID: "b1", Marker: "", Content: "plain note", Properties: map[string]string{},
	}, host.BlockChange{
		ID: "b2", Marker: "MAYBE", Content: "MAYBE someday", Properties: map[string]string{},
	}))
	if err != nil {
		t.Fatalf("HandleBatch: %v", err)
	}
	if len(up.updates) != 0 {
		t.Errorf("updates = %d, want 0", len(up.updates))
	}
}

func TestHandleBatch_CompleteMarkerAddsDate(t *testing.T) {
	r, up := testReactor(t, settings.Default())
	err := r.HandleBatch(context.Background(), batch(host.BlockChange{
		ID: "b1", Marker: "DONE", Content: "DONE buy milk", Properties: map[string]string{},
	}))
	if err != nil {
		t.Fatalf("HandleBatch: %v", err)
	}
	if len(up.updates) != 1 {
		t.Fatalf("updates = %d, want 1", len(up.updates))
	}
	u := up.updates[0]
	if u.props["completed"] != "2024-03-04" {
		t.Errorf("completed = %q, want 2024-03-04", u.props["completed"])
	}
	want := "DONE buy milk\ncompleted:: 2024-03-04"
	if u.content != want {
		t.Errorf("content = %q, want %q", u.content, want)
	}
	if _, ok := u.props["time"]; ok {
		t.Error("time property should not be added when includeTime is off")
	}
}

func TestHandleBatch_IncludeTimeAddsBoth(t *testing.T) {
	s := settings.Default()
	s.IncludeTime = true
	r, up := testReactor(t, s)

	err := r.HandleBatch(context.Background(), batch(host.BlockChange{
		ID: "b1", Marker: "DONE", Content: "DONE ship release", Properties: map[string]string{},
	}))
	if err != nil {
		t.Fatalf("HandleBatch: %v", err)
	}
	u := up.updates[0]
	if u.props["completed"] != "2024-03-04" || u.props["time"] != "14:30" {
		t.Errorf("props = %v", u.props)
	}
}

func TestHandleBatch_PropertiesAlreadyPresentNoUpdate(t *testing.T) {
	r, up := testReactor(t, settings.Default())
	err := r.HandleBatch(context.Background(), batch(host.BlockChange{
		ID:         "b1",
		Marker:     "DONE",
		Content:    "DONE buy milk\ncompleted:: 2024-01-01",
		Properties: map[string]string{"completed": "2024-01-01"},
	}))
	if err != nil {
		t.Fatalf("HandleBatch: %v", err)
	}
	if len(up.updates) != 0 {
		t.Errorf("re-delivery should be a no-op, got %d updates", len(up.updates))
	}
}

func TestHandleBatch_ExistingValueNeverOverwritten(t *testing.T) {
	s := settings.Default()
	s.IncludeTime = true
	r, up := testReactor(t, s)

	err := r.HandleBatch(context.Background(), batch(host.BlockChange{
		ID:         "b1",
		Marker:     "DONE",
		Content:    "DONE x\ncompleted:: 2020-12-31",
		Properties: map[string]string{"completed": "2020-12-31"},
	}))
	if err != nil {
		t.Fatalf("HandleBatch: %v", err)
	}
	u := up.updates[0]
	if u.props["completed"] != "2020-12-31" {
		t.Errorf("completed overwritten: %q", u.props["completed"])
	}
	if u.props["time"] != "14:30" {
		t.Errorf("time = %q, want 14:30", u.props["time"])
	}
}

func TestHandleBatch_BothOptionsDisabledNoUpdate(t *testing.T) {
	s := settings.Default()
	s.IncludeDate = false
	r, up := testReactor(t, s)

	err := r.HandleBatch(context.Background(), batch(host.BlockChange{
		ID: "b1", Marker: "DONE", Content: "DONE x", Properties: map[string]string{},
	}))
	if err != nil {
		t.Fatalf("HandleBatch: %v", err)
	}
	if len(up.updates) != 0 {
		t.Errorf("updates = %d, want 0", len(up.updates))
	}
}

func TestHandleBatch_IncompleteMarkerRemovesProperties(t *testing.T) {
	r, up := testReactor(t, settings.Default())
	err := r.HandleBatch(context.Background(), batch(host.BlockChange{
		ID:         "b1",
		Marker:     "TODO",
		Content:    "TODO buy milk\ncompleted:: 2024-01-01\nother:: keep",
		Properties: map[string]string{"completed": "2024-01-01", "other": "keep"},
	}))
	if err != nil {
		t.Fatalf("HandleBatch: %v", err)
	}
	if len(up.updates) != 1 {
		t.Fatalf("updates = %d, want 1", len(up.updates))
	}
	u := up.updates[0]
	if _, ok := u.props["completed"]; ok {
		t.Error("completed should be removed")
	}
	if u.props["other"] != "keep" {
		t.Errorf("unrelated property touched: %v", u.props)
	}
	want := "TODO buy milk\nother:: keep"
	if u.content != want {
		t.Errorf("content = %q, want %q", u.content, want)
	}
}

func TestHandleBatch_IncompleteMarkerNoPropertiesNoAction(t *testing.T) {
	r, up := testReactor(t, settings.Default())
	err := r.HandleBatch(context.Background(), batch(host.BlockChange{
		ID: "b1", Marker: "TODO", Content: "TODO buy milk", Properties: map[string]string{},
	}))
	if err != nil {
		t.Fatalf("HandleBatch: %v", err)
	}
	if len(up.updates) != 0 {
		t.Errorf("updates = %d, want 0", len(up.updates))
	}
}

func TestHandleBatch_OnlyFirstTrackedBlockProcessed(t *testing.T) {
	r, up := testReactor(t, settings.Default())
	err := r.HandleBatch(context.Background(), batch(
		host.BlockChange{ID: "skip", Marker: "", Content: "note", Properties: map[string]string{}},
		host.BlockChange{ID: "first", Marker: "DONE", Content: "DONE a", Properties: map[string]string{}},
		host.BlockChange{ID: "second", Marker: "DONE", Content: "DONE b", Properties: map[string]string{}},
	))
	if err != nil {
		t.Fatalf("HandleBatch: %v", err)
	}
	if len(up.updates) != 1 || up.updates[0].id != "first" {
		t.Errorf("updates = %+v, want exactly one for block 'first'", up.updates)
	}
}

func TestHandleBatch_UpdateErrorPropagates(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	up := &fakeUpdater{err: errors.New("host rejected")}
	r := New(up, &fakeConfig{format: "yyyy-MM-dd"}, logger, settings.Default(), WithClock(fixedClock))

	err := r.HandleBatch(context.Background(), batch(host.BlockChange{
		ID: "b1", Marker: "DONE", Content: "DONE x", Properties: map[string]string{},
	}))
	if err == nil {
		t.Fatal("expected propagated update error")
	}
}

func TestHandleBatch_WeekdayPatternFixed(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	up := &fakeUpdater{}
	r := New(up, &fakeConfig{format: "EE, yyyy-MM-dd"}, logger, settings.Default(), WithClock(fixedClock))

	err := r.HandleBatch(context.Background(), batch(host.BlockChange{
		ID: "b1", Marker: "DONE", Content: "DONE x", Properties: map[string]string{},
	}))
	if err != nil {
		t.Fatalf("HandleBatch: %v", err)
	}
	// 2024-03-04 is a Monday; EE must be widened to EEE before formatting.
	if got := up.updates[0].props["completed"]; got != "Mon, 2024-03-04" {
		t.Errorf("completed = %q, want %q", got, "Mon, 2024-03-04")
	}
}

func TestApplySettings_SwapsMarkerSets(t *testing.T) {
	r, up := testReactor(t, settings.Default())

	s := settings.Default()
	s.TaskMarkers = "CUSTOM"
	s.TaskMarkersComplete = "CUSTOM"
	r.ApplySettings(s)

	err := r.HandleBatch(context.Background(), batch(host.BlockChange{
		ID: "b1", Marker: "DONE", Content: "DONE x", Properties: map[string]string{},
	}))
	if err != nil {
		t.Fatalf("HandleBatch: %v", err)
	}
	if len(up.updates) != 0 {
		t.Error("DONE should no longer be tracked after settings swap")
	}

	err = r.HandleBatch(context.Background(), batch(host.BlockChange{
		ID: "b2", Marker: "CUSTOM", Content: "CUSTOM x", Properties: map[string]string{},
	}))
	if err != nil {
		t.Fatalf("HandleBatch: %v", err)
	}
	if len(up.updates) != 1 {
		t.Errorf("updates = %d, want 1 for the new marker", len(up.updates))
	}
}

func TestApplySettings_EmptyMarkersDisableReactor(t *testing.T) {
	s := settings.Default()
	s.TaskMarkers = ""
	r, up := testReactor(t, s)

	err := r.HandleBatch(context.Background(), batch(host.BlockChange{
		ID: "b1", Marker: "DONE", Content: "DONE x", Properties: map[string]string{},
	}))
	if err != nil {
		t.Fatalf("HandleBatch: %v", err)
	}
	if len(up.updates) != 0 {
		t.Errorf("empty tracked set should take no action, got %d updates", len(up.updates))
	}
}

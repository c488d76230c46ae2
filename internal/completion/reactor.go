// Package completion reacts to block change events and keeps the
// completion date and time properties in sync with a block's task marker.
package completion

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/bryclee/taskcheck/internal/datefmt"
	"github.com/bryclee/taskcheck/internal/host"
	"github.com/bryclee/taskcheck/internal/markers"
	"github.com/bryclee/taskcheck/internal/reconcile"
	"github.com/bryclee/taskcheck/internal/settings"
)

// Clock returns the current time; injectable for tests.
type Clock func() time.Time

// Reactor applies the completion-metadata policy to at most one block per
// change batch. The parsed marker sets are rebuilt wholesale whenever
// settings change; handlers always observe a complete snapshot.
type Reactor struct {
	updater host.BlockUpdater
	config  host.ConfigProvider
	logger  *slog.Logger
	now     Clock

	mu       sync.RWMutex
	tracked  markers.Set
	complete markers.Set
	opts     settings.Settings
}

// Option configures a Reactor.
type Option func(*Reactor)

// WithClock overrides the time source.
func WithClock(c Clock) Option {
	return func(r *Reactor) { r.now = c }
}

// New builds a reactor over the given host collaborators with an initial
// settings snapshot.
func New(updater host.BlockUpdater, config host.ConfigProvider, logger *slog.Logger, initial settings.Settings, opts ...Option) *Reactor {
	r := &Reactor{
		updater: updater,
		config:  config,
		logger:  logger,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.ApplySettings(initial)
	return r
}

// ApplySettings re-parses the marker sets from s and swaps the whole
// snapshot. No incremental diffing: the prior sets are replaced in full.
func (r *Reactor) ApplySettings(s settings.Settings) {
	tracked := markers.Parse(s.TaskMarkers)
	complete := markers.Parse(s.TaskMarkersComplete)

	r.mu.Lock()
	r.tracked = tracked
	r.complete = complete
	r.opts = s
	r.mu.Unlock()
}

func (r *Reactor) snapshot() (markers.Set, markers.Set, settings.Settings) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tracked, r.complete, r.opts
}

// HandleBatch scans the batch in order, selects the first block whose
// marker is in the tracked set, and reconciles its completion properties.
// Only the first matching block is processed even when several tracked
// blocks changed in the same batch. An update rejection propagates to the
// caller; the bus boundary logs and discards it.
func (r *Reactor) HandleBatch(ctx context.Context, batch host.ChangeBatch) error {
	tracked, complete, opts := r.snapshot()

	var target *host.BlockChange
	for i := range batch.Blocks {
		if tracked.Contains(batch.Blocks[i].Marker) {
			target = &batch.Blocks[i]
			break
		}
	}
	if target == nil {
		return nil
	}

	if complete.Contains(target.Marker) {
		return r.addMissing(ctx, target, opts)
	}
	return r.removePresent(ctx, target, opts)
}

// addMissing adds whichever completion properties are enabled and absent.
// Properties already present are never overwritten, so re-delivery of the
// same change is a no-op.
func (r *Reactor) addMissing(ctx context.Context, b *host.BlockChange, opts settings.Settings) error {
	add := make(map[string]string)

	if opts.IncludeDate {
		if _, ok := b.Properties[opts.CompletedDateProperty]; !ok {
			format, err := r.config.PreferredDateFormat(ctx)
			if err != nil {
				return err
			}
			add[opts.CompletedDateProperty] = datefmt.PageLabel(format, r.now())
		}
	}
	if opts.IncludeTime {
		if _, ok := b.Properties[opts.CompletedTimeProperty]; !ok {
			add[opts.CompletedTimeProperty] = datefmt.Format(opts.TimeFormat, r.now())
		}
	}
	if len(add) == 0 {
		return nil
	}

	props := make(map[string]string, len(b.Properties)+len(add))
	for k, v := range b.Properties {
		props[k] = v
	}
	for k, v := range add {
		props[k] = v
	}

	content := reconcile.Apply(b.Content, b.Properties, reconcile.Request{Add: add})
	r.logger.Debug("completion: adding properties",
		slog.String("block", b.ID),
		slog.String("marker", b.Marker),
		slog.Int("count", len(add)))
	return r.updater.UpdateBlock(ctx, b.ID, content, props)
}

// removePresent strips whichever completion properties are present on a
// block whose marker is no longer in the complete subset.
func (r *Reactor) removePresent(ctx context.Context, b *host.BlockChange, opts settings.Settings) error {
	var remove []string
	for _, key := range []string{opts.CompletedDateProperty, opts.CompletedTimeProperty} {
		if _, ok := b.Properties[key]; ok {
			remove = append(remove, key)
		}
	}
	if len(remove) == 0 {
		return nil
	}

	props := make(map[string]string, len(b.Properties))
	for k, v := range b.Properties {
		props[k] = v
	}
	for _, key := range remove {
		delete(props, key)
	}

	content := reconcile.Apply(b.Content, b.Properties, reconcile.Request{Remove: remove})
	r.logger.Debug("completion: removing properties",
		slog.String("block", b.ID),
		slog.String("marker", b.Marker),
		slog.Int("count", len(remove)))
	return r.updater.UpdateBlock(ctx, b.ID, content, props)
}

package query

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/bryclee/taskcheck/internal/apperr"
	"github.com/bryclee/taskcheck/internal/datefmt"
	"github.com/bryclee/taskcheck/internal/host"
	"github.com/bryclee/taskcheck/internal/settings"
)

// CommandName identifies the weekly command in the registry.
const CommandName = "completed-last-week"

// CommandLabel is the user-facing display label.
const CommandLabel = "Completed tasks for the past week"

const (
	headingContent   = "## " + CommandLabel
	separatorContent = "---"
)

// Clock returns the current time; injectable for tests.
type Clock func() time.Time

// Weekly inserts a heading, a query block over the past seven day-page
// labels, and a separator, relative to the invoking block.
type Weekly struct {
	reader   host.BlockReader
	inserter host.BlockInserter
	config   host.ConfigProvider
	settings func() settings.Settings
	logger   *slog.Logger
	now      Clock
}

// NewWeekly builds the weekly-query command. settingsFn yields the active
// settings snapshot at invocation time.
func NewWeekly(reader host.BlockReader, inserter host.BlockInserter, config host.ConfigProvider,
	settingsFn func() settings.Settings, logger *slog.Logger) *Weekly {
	return &Weekly{
		reader:   reader,
		inserter: inserter,
		config:   config,
		settings: settingsFn,
		logger:   logger,
		now:      time.Now,
	}
}

// WithClock overrides the time source.
func (w *Weekly) WithClock(c Clock) *Weekly {
	w.now = c
	return w
}

// Run executes the command against the block identified by blockID.
// A missing or unknown block aborts silently: there is nothing sensible to
// attach the query to, and surfacing an error would only be noise. Any
// insert failure aborts the remaining steps, since each insertion anchors
// on the block returned by the previous one.
func (w *Weekly) Run(ctx context.Context, blockID string) error {
	if blockID == "" {
		return nil
	}
	current, err := w.reader.GetBlock(ctx, blockID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			w.logger.Debug("weekly: no active block, skipping", slog.String("block", blockID))
			return nil
		}
		return err
	}

	format, err := w.config.PreferredDateFormat(ctx)
	if err != nil {
		return err
	}

	labels := datefmt.PastDayLabels(format, w.now(), 7)
	queryContent := Build(w.settings().CompletedDateProperty, labels)

	heading, err := w.inserter.InsertBlock(ctx, current.ID, headingContent,
		host.InsertOpts{Before: true, Sibling: true})
	if err != nil {
		return err
	}
	queryBlock, err := w.inserter.InsertBlock(ctx, heading.ID, queryContent,
		host.InsertOpts{Sibling: false})
	if err != nil {
		return err
	}
	_, err = w.inserter.InsertBlock(ctx, queryBlock.ID, separatorContent,
		host.InsertOpts{Sibling: true})
	return err
}

// Package runner serialises sync runs and fans their outcome out to the
// ledger, metrics and event stream.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/starford/wikisync/internal/apperr"
	"github.com/starford/wikisync/internal/ledger"
	"github.com/starford/wikisync/internal/metrics"
	"github.com/starford/wikisync/internal/publish"
	"github.com/starford/wikisync/internal/runlock"
	"github.com/starford/wikisync/internal/sse"
)

// Triggers recorded with each run.
const (
	TriggerCLI      = "cli"
	TriggerStartup  = "startup"
	TriggerWatch    = "watch"
	TriggerSchedule = "schedule"
	TriggerAPI      = "api"
	TriggerMCP      = "mcp"
)

// Result is the outcome of one successful run.
type Result struct {
	RunID  int64           `json:"run_id,omitempty"`
	Report *publish.Report `json:"report"`
}

// Runner coordinates a Syncer with its side channels. Ledger, metrics and
// events are optional.
type Runner struct {
	syncer     *publish.Syncer
	targetRoot string
	ledger     *ledger.DB
	metrics    *metrics.Recorder
	events     *sse.Broker
	logger     *slog.Logger

	mu sync.Mutex
}

// Option configures a Runner.
type Option func(*Runner)

// WithLedger records every run in db.
func WithLedger(db *ledger.DB) Option { return func(r *Runner) { r.ledger = db } }

// WithMetrics records every run in rec.
func WithMetrics(rec *metrics.Recorder) Option { return func(r *Runner) { r.metrics = rec } }

// WithEvents publishes run events to b.
func WithEvents(b *sse.Broker) Option { return func(r *Runner) { r.events = b } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(r *Runner) { r.logger = l } }

// New creates a Runner. targetRoot is the directory holding the run lock.
func New(syncer *publish.Syncer, targetRoot string, opts ...Option) *Runner {
	r := &Runner{syncer: syncer, targetRoot: targetRoot, logger: slog.Default()}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Trigger performs one run. It returns an error wrapping
// apperr.ErrRunInProgress without waiting when a run is already active in
// this process or another one.
func (r *Runner) Trigger(ctx context.Context, trigger string) (*Result, error) {
	if !r.mu.TryLock() {
		return nil, fmt.Errorf("runner: %w", apperr.ErrRunInProgress)
	}
	defer r.mu.Unlock()

	lock, err := runlock.Acquire(r.targetRoot)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			r.logger.Warn("runner: release lock", slog.String("error", err.Error()))
		}
	}()

	if r.events != nil {
		r.events.PublishRunStarted(trigger)
	}

	started := time.Now()
	rep, runErr := r.syncer.Run(ctx)
	if runErr != nil {
		r.fail(trigger, started, runErr)
		return nil, runErr
	}

	r.metrics.ObserveRun(rep)

	res := &Result{Report: rep}
	if r.ledger != nil {
		id, err := r.ledger.RecordRun(trigger, rep)
		if err != nil {
			// The target is already consistent; a ledger failure only loses history.
			r.logger.Error("runner: record run", slog.String("error", err.Error()))
		}
		res.RunID = id
	}

	if r.events != nil {
		r.events.PublishRun(Summary(res.RunID, trigger, rep))
	}
	return res, nil
}

func (r *Runner) fail(trigger string, started time.Time, runErr error) {
	finished := time.Now()
	r.logger.Error("runner: run failed",
		slog.String("trigger", trigger),
		slog.String("error", runErr.Error()))

	r.metrics.ObserveFailure()

	var id int64
	if r.ledger != nil {
		var err error
		id, err = r.ledger.RecordFailure(trigger, started, finished, runErr)
		if err != nil {
			r.logger.Error("runner: record failure", slog.String("error", err.Error()))
		}
	}
	if r.events != nil {
		r.events.PublishRun(sse.RunSummary{
			RunID:      id,
			Trigger:    trigger,
			DurationMS: float64(finished.Sub(started).Microseconds()) / 1000,
			Error:      runErr.Error(),
		})
	}
}

// Summary condenses a report into an event payload.
func Summary(runID int64, trigger string, rep *publish.Report) sse.RunSummary {
	changed := 0
	for _, p := range rep.Published {
		if p.Changed {
			changed++
		}
	}
	return sse.RunSummary{
		RunID:      runID,
		Trigger:    trigger,
		Published:  len(rep.Published),
		Changed:    changed,
		Skipped:    len(rep.Skipped),
		Failed:     rep.Failures(),
		Assets:     len(rep.Assets),
		Deleted:    len(rep.Deleted),
		Warnings:   len(rep.Warnings),
		DurationMS: float64(rep.Duration().Microseconds()) / 1000,
	}
}

// Runs returns the most recent ledger runs, newest first.
func (r *Runner) Runs(limit int) ([]ledger.RunRow, error) {
	if r.ledger == nil {
		return nil, fmt.Errorf("runner: ledger disabled: %w", apperr.ErrNotFound)
	}
	return r.ledger.Runs(limit)
}

// Published returns the notes recorded by the latest successful run.
func (r *Runner) Published() ([]ledger.PublishedRow, error) {
	if r.ledger == nil {
		return nil, fmt.Errorf("runner: ledger disabled: %w", apperr.ErrNotFound)
	}
	return r.ledger.Published()
}

// SlugOwners returns the vault paths the latest successful run published
// under slug.
func (r *Runner) SlugOwners(slug string) ([]string, error) {
	if r.ledger == nil {
		return nil, fmt.Errorf("runner: ledger disabled: %w", apperr.ErrNotFound)
	}
	return r.ledger.SlugOwners(slug)
}

// Preview evaluates and rewrites one vault note without writing anything.
// It does not take the run lock.
func (r *Runner) Preview(rel string) (*publish.Prepared, error) {
	p, err := r.syncer.Prepare(rel)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("runner: %s: %w", rel, apperr.ErrNotFound)
	}
	return p, err
}

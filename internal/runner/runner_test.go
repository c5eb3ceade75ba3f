package runner

import (
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/wikisync/internal/apperr"
	"github.com/starford/wikisync/internal/ledger"
	"github.com/starford/wikisync/internal/metrics"
	"github.com/starford/wikisync/internal/publish"
	"github.com/starford/wikisync/internal/runlock"
	"github.com/starford/wikisync/internal/sse"
	"github.com/starford/wikisync/internal/testutil"
)

type env struct {
	vault  string
	target string
	db     *ledger.DB
	rec    *metrics.Recorder
	broker *sse.Broker
	runner *Runner
}

func newEnv(t *testing.T) *env {
	t.Helper()
	vaultDir, vault := testutil.TestRoot(t)
	targetDir, target := testutil.TestRoot(t)
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))

	db, err := ledger.Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	broker := sse.NewBroker(time.Second)
	t.Cleanup(broker.Close)

	rec := metrics.NewRecorder(nil)
	syncer := publish.New(vault, target, publish.Settings{
		RequiredType: "sync-docs",
		TargetTags:   []string{"reporty"},
		FlattenPaths: true,
	}, logger)

	return &env{
		vault:  vaultDir,
		target: targetDir,
		db:     db,
		rec:    rec,
		broker: broker,
		runner: New(syncer, targetDir, WithLedger(db), WithMetrics(rec), WithEvents(broker), WithLogger(logger)),
	}
}

func drain(ch chan []byte) []string {
	var out []string
	deadline := time.After(time.Second)
	for {
		select {
		case msg := <-ch:
			out = append(out, string(msg))
			if strings.Contains(string(msg), "sync.completed") || strings.Contains(string(msg), "sync.failed") {
				return out
			}
		case <-deadline:
			return out
		}
	}
}

func TestTrigger_RecordsEverywhere(t *testing.T) {
	e := newEnv(t)
	testutil.WriteNote(t, e.vault, "Trip.md", "type: sync-docs\ntags: [reporty]", "hello\n")
	ch := e.broker.Subscribe()
	defer e.broker.Unsubscribe(ch)

	res, err := e.runner.Trigger(context.Background(), TriggerCLI)
	require.NoError(t, err)
	require.Len(t, res.Report.Published, 1)
	assert.NotZero(t, res.RunID)

	runs, err := e.db.Runs(10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, TriggerCLI, runs[0].Trigger)
	assert.Equal(t, ledger.StatusOK, runs[0].Status)
	assert.Equal(t, 1, runs[0].Published)

	owners, err := e.db.SlugOwners("trip.md")
	require.NoError(t, err)
	assert.Equal(t, []string{"Trip.md"}, owners)

	events := drain(ch)
	require.Len(t, events, 2)
	assert.Contains(t, events[0], "event: sync.started")
	assert.Contains(t, events[1], "event: sync.completed")
	assert.Contains(t, events[1], `"published":1`)

	rec := httptest.NewRecorder()
	e.rec.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Contains(t, rec.Body.String(), `wikisync_runs_total{outcome="ok"} 1`)
}

func TestTrigger_FailureRecorded(t *testing.T) {
	e := newEnv(t)
	testutil.WriteFile(t, e.target, "file_mapping.json", []byte("{broken"))
	ch := e.broker.Subscribe()
	defer e.broker.Unsubscribe(ch)

	_, err := e.runner.Trigger(context.Background(), TriggerWatch)
	require.ErrorIs(t, err, apperr.ErrMappingCorrupt)

	runs, err := e.db.Runs(10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, ledger.StatusFailed, runs[0].Status)
	assert.Equal(t, TriggerWatch, runs[0].Trigger)
	assert.NotEmpty(t, runs[0].Error)

	events := drain(ch)
	require.NotEmpty(t, events)
	assert.Contains(t, events[len(events)-1], "event: sync.failed")
}

func TestTrigger_LockedTarget(t *testing.T) {
	e := newEnv(t)
	lock, err := runlock.Acquire(e.target)
	require.NoError(t, err)
	defer lock.Release()

	_, err = e.runner.Trigger(context.Background(), TriggerAPI)
	require.ErrorIs(t, err, apperr.ErrRunInProgress)

	runs, err := e.db.Runs(10)
	require.NoError(t, err)
	assert.Empty(t, runs, "a refused run is not recorded")
}

func TestTrigger_BusyInProcess(t *testing.T) {
	e := newEnv(t)
	e.runner.mu.Lock()
	defer e.runner.mu.Unlock()

	_, err := e.runner.Trigger(context.Background(), TriggerSchedule)
	require.ErrorIs(t, err, apperr.ErrRunInProgress)
}

func TestTrigger_WithoutOptionalDeps(t *testing.T) {
	vaultDir, vault := testutil.TestRoot(t)
	targetDir, target := testutil.TestRoot(t)
	testutil.WriteNote(t, vaultDir, "a.md", "type: sync-docs\ntags: [reporty]", "x\n")

	r := New(publish.New(vault, target, publish.Settings{RequiredType: "sync-docs", TargetTags: []string{"reporty"}, FlattenPaths: true}, nil), targetDir)
	res, err := r.Trigger(context.Background(), TriggerCLI)
	require.NoError(t, err)
	assert.Zero(t, res.RunID)
	assert.True(t, testutil.Exists(targetDir, "a.md"))
}

func TestSummary(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rep := &publish.Report{
		StartedAt:  start,
		FinishedAt: start.Add(1500 * time.Millisecond),
		Published:  []publish.PublishedNote{{Changed: true}, {Changed: false}},
		Skipped:    []publish.SkippedNote{{Failed: true}, {}},
		Deleted:    []string{"old.md"},
	}
	s := Summary(3, TriggerAPI, rep)
	assert.Equal(t, sse.RunSummary{
		RunID:      3,
		Trigger:    TriggerAPI,
		Published:  2,
		Changed:    1,
		Skipped:    2,
		Failed:     1,
		Deleted:    1,
		DurationMS: 1500,
	}, s)
}

func TestRuns_LedgerDisabled(t *testing.T) {
	_, vault := testutil.TestRoot(t)
	targetDir, target := testutil.TestRoot(t)
	r := New(publish.New(vault, target, publish.Settings{}, nil), targetDir)

	_, err := r.Runs(5)
	require.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = r.Published()
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestPreview(t *testing.T) {
	e := newEnv(t)
	testutil.WriteNote(t, e.vault, "notes/Trip.md", "type: sync-docs\ntags: [reporty]", "see [[Other|the other]]\n")
	testutil.WriteNote(t, e.vault, "draft.md", "type: sync-docs\ntags: [private]", "x\n")

	p, err := e.runner.Preview("notes/Trip.md")
	require.NoError(t, err)
	assert.True(t, p.Eligible)
	assert.Equal(t, "trip.md", p.Slug)
	assert.Contains(t, p.Content, "[the other](./other)")
	assert.False(t, testutil.Exists(e.target, "trip.md"), "preview must not write")

	p, err = e.runner.Preview("draft.md")
	require.NoError(t, err)
	assert.False(t, p.Eligible)
	assert.Equal(t, "no target tag", p.Reason)

	_, err = e.runner.Preview("missing.md")
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

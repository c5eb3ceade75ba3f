package internal

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/starford/wikisync/internal/apperr"
	"github.com/starford/wikisync/internal/runlock"
	"github.com/starford/wikisync/internal/runner"
	"github.com/starford/wikisync/internal/testutil"
)

func testConfig(t *testing.T) *Config {
	t.Helper()
	cfg := NewDefaultConfig()
	cfg.Vault.Path = t.TempDir()
	cfg.Target.Path = filepath.Join(t.TempDir(), "wiki")
	cfg.Ledger.Path = filepath.Join(t.TempDir(), "db", "wikisync.db")
	return cfg
}

func TestRun_OneShotRecordsHistory(t *testing.T) {
	cfg := testConfig(t)
	testutil.WriteNote(t, cfg.Vault.Path, "notes/Trip.md", "type: sync-docs\ntags: [reporty]", "![[Trip.png]]\n")
	testutil.WriteFile(t, cfg.Vault.Path, "static/Trip.png", []byte("PNG"))

	var logs bytes.Buffer
	res, err := Run(context.Background(), WithConfig(cfg), WithLogOutput(&logs))
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Report.Published) != 1 {
		t.Fatalf("published = %+v", res.Report.Published)
	}
	if !testutil.Exists(cfg.Target.Path, "trip.md") || !testutil.Exists(cfg.Target.Path, "trip.png") {
		t.Error("target files missing")
	}
	if !bytes.Contains(logs.Bytes(), []byte(`"msg":"publish: run complete"`)) {
		t.Errorf("expected JSON run log, got %s", logs.String())
	}

	runs, err := History(context.Background(), 10, WithConfig(cfg))
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].Trigger != runner.TriggerCLI || runs[0].Published != 1 {
		t.Errorf("history = %+v", runs)
	}
}

func TestRun_MissingVault(t *testing.T) {
	cfg := testConfig(t)
	cfg.Vault.Path = filepath.Join(t.TempDir(), "absent")
	var logs bytes.Buffer
	if _, err := Run(context.Background(), WithConfig(cfg), WithLogOutput(&logs)); err == nil {
		t.Fatal("expected error for missing vault")
	}
}

func TestRun_TargetIsVault(t *testing.T) {
	cfg := testConfig(t)
	cfg.Target.Path = cfg.Vault.Path
	var logs bytes.Buffer
	if _, err := Run(context.Background(), WithConfig(cfg), WithLogOutput(&logs)); err == nil {
		t.Fatal("expected error when target is the vault")
	}
}

func TestRun_Locked(t *testing.T) {
	cfg := testConfig(t)
	testutil.WriteFile(t, cfg.Target.Path, "Home.md", []byte("home"))
	lock, err := runlock.Acquire(cfg.Target.Path)
	if err != nil {
		t.Fatal(err)
	}
	defer lock.Release()

	var logs bytes.Buffer
	_, err = Run(context.Background(), WithConfig(cfg), WithLogOutput(&logs))
	if !errors.Is(err, apperr.ErrRunInProgress) {
		t.Fatalf("err = %v, want ErrRunInProgress", err)
	}
}

func TestRun_RequiresConfig(t *testing.T) {
	if _, err := Run(context.Background()); err == nil {
		t.Fatal("expected error without config")
	}
}

func TestHistory_LedgerDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Ledger.Path = ""
	if _, err := History(context.Background(), 5, WithConfig(cfg)); err == nil {
		t.Fatal("expected error with the ledger disabled")
	}
}

func TestRun_TargetInsideVault(t *testing.T) {
	cfg := testConfig(t)
	cfg.Target.Path = filepath.Join(cfg.Vault.Path, "wiki")
	var logs bytes.Buffer
	if _, err := Run(context.Background(), WithConfig(cfg), WithLogOutput(&logs)); err == nil {
		t.Fatal("expected error when target is inside the vault")
	}
}

func TestWatchIgnore(t *testing.T) {
	vault := filepath.Join(string(filepath.Separator), "v")
	ledger := filepath.Join(vault, "wikisync.db")
	ignore := watchIgnore(vault, ledger)
	if ignore == nil {
		t.Fatal("ledger inside the vault must be ignored")
	}

	cases := map[string]bool{
		filepath.Join(vault, "note.md"):       false,
		ledger:                                true,
		ledger + "-wal":                       true,
		ledger + "-shm":                       true,
		filepath.Join(vault, "wikisync.md"):   false,
		filepath.Join(vault, "notes", "a.md"): false,
	}
	for p, want := range cases {
		if got := ignore(p); got != want {
			t.Errorf("ignore(%q) = %v, want %v", p, got, want)
		}
	}
}

func TestWatchIgnore_LedgerOutsideVault(t *testing.T) {
	if watchIgnore("/v", "/data/wikisync.db") != nil {
		t.Error("nothing needs ignoring when the ledger is outside the vault")
	}
	if watchIgnore("/v", "") != nil {
		t.Error("nothing needs ignoring without a ledger")
	}
}

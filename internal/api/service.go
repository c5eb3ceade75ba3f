package api

import (
	"context"

	"github.com/starford/wikisync/internal/ledger"
	"github.com/starford/wikisync/internal/publish"
	"github.com/starford/wikisync/internal/runner"
)

// Service is the sync functionality the API exposes. *runner.Runner implements it.
type Service interface {
	Trigger(ctx context.Context, trigger string) (*runner.Result, error)
	Runs(limit int) ([]ledger.RunRow, error)
	Published() ([]ledger.PublishedRow, error)
	SlugOwners(slug string) ([]string, error)
	Preview(rel string) (*publish.Prepared, error)
}

var _ Service = (*runner.Runner)(nil)

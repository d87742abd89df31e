package inspect

import (
	"context"
	"errors"
	"log/slog"

	"github.com/faucetdb/schemagraph/internal/graph"
)

// Options controls how far Expand loads a graph.
type Options struct {
	// Tables loads the columns, indexes and keys of every table as well.
	Tables bool
	// Prefetch loads the columns of each container with one query before
	// its tables are populated. Only used with Tables.
	Prefetch bool
	Logger   *slog.Logger
}

// tableContainer is a database, catalog or schema.
type tableContainer interface {
	graph.Node
	Tables() []*graph.Table
	PrefetchColumns(ctx context.Context) error
}

// Expand populates db and every container below it, and optionally every
// table. A failure is recorded on its node and loading carries on with the
// rest of the graph. The failures are returned joined.
func Expand(ctx context.Context, db *graph.Database, opts Options) error {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	e := &expander{opts: opts}
	if !e.populate(ctx, db) {
		return errors.Join(e.errs...)
	}
	for _, c := range db.Catalogs() {
		if !e.populate(ctx, c) {
			continue
		}
		for _, s := range c.Schemas() {
			e.container(ctx, s)
		}
		e.tables(ctx, c)
	}
	for _, s := range db.Schemas() {
		e.container(ctx, s)
	}
	e.tables(ctx, db)
	return errors.Join(e.errs...)
}

type expander struct {
	opts Options
	errs []error
}

func (e *expander) populate(ctx context.Context, n graph.Node) bool {
	if err := n.Populate(ctx); err != nil {
		e.errs = append(e.errs, err)
		return false
	}
	return true
}

func (e *expander) container(ctx context.Context, c tableContainer) {
	if e.populate(ctx, c) {
		e.tables(ctx, c)
	}
}

func (e *expander) tables(ctx context.Context, c tableContainer) {
	tables := c.Tables()
	if !e.opts.Tables || len(tables) == 0 {
		return
	}
	if e.opts.Prefetch {
		if err := c.PrefetchColumns(ctx); err != nil {
			e.opts.Logger.Warn("prefetch columns failed", "container", c.Name(), "error", err)
			e.errs = append(e.errs, err)
		}
	}
	for _, t := range tables {
		e.populate(ctx, t)
	}
}

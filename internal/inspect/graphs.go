package inspect

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/faucetdb/schemagraph/internal/connector"
	"github.com/faucetdb/schemagraph/internal/graph"
)

// Graphs keeps one schema graph per connected source. A graph is created on
// first use and replaced when its source is reconnected. All graph access
// goes through the env's dispatcher, so callers on different goroutines are
// serialized.
type Graphs struct {
	registry *connector.Registry
	env      graph.Env

	closeDispatcher func()

	mu  sync.Mutex
	dbs map[string]*graph.Database
}

// NewGraphs creates a cache over the sources of registry. When env has no
// dispatcher a Foreground one is started and stopped by Close.
func NewGraphs(registry *connector.Registry, env graph.Env) *Graphs {
	g := &Graphs{
		registry: registry,
		dbs:      make(map[string]*graph.Database),
	}
	if env.Dispatcher == nil {
		f := graph.NewForeground()
		env.Dispatcher = f
		g.closeDispatcher = f.Close
	}
	g.env = env
	return g
}

// Get returns the graph of the named source. The error wraps
// connector.ErrSourceNotFound when the source is not connected.
func (g *Graphs) Get(name string) (*graph.Database, error) {
	conn, err := g.registry.Get(name)
	if err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if db, ok := g.dbs[name]; ok && db.Source() == conn {
		return db, nil
	}
	db := graph.NewDatabase(name, conn, g.env)
	g.dbs[name] = db
	return db, nil
}

// Drop forgets the graph of the named source so the next Get reads fresh
// metadata.
func (g *Graphs) Drop(name string) error {
	if _, err := g.registry.Get(name); err != nil {
		return err
	}
	g.mu.Lock()
	delete(g.dbs, name)
	g.mu.Unlock()
	return nil
}

// Tree expands the named source and returns its view. Load failures are
// logged and reported per node in the view rather than returned.
func (g *Graphs) Tree(ctx context.Context, name string, tables bool, logger *slog.Logger) (DatabaseView, error) {
	db, err := g.Get(name)
	if err != nil {
		return DatabaseView{}, err
	}
	if logger == nil {
		logger = db.Env().Logger
	}
	var view DatabaseView
	err = g.env.Dispatcher.Dispatch(ctx, func(ctx context.Context) {
		opts := Options{Tables: tables, Prefetch: true, Logger: logger}
		if err := Expand(ctx, db, opts); err != nil {
			logger.Warn("tree partially loaded", "source", name, "error", err)
		}
		view = Database(db)
	})
	if err != nil {
		return DatabaseView{}, fmt.Errorf("dispatch: %w", err)
	}
	return view, nil
}

// Table finds, populates and returns one table of the named source. The
// error wraps graph.ErrTableNotFound when no table matches.
func (g *Graphs) Table(ctx context.Context, name, catalog, schema, table string, logger *slog.Logger) (TableView, error) {
	db, err := g.Get(name)
	if err != nil {
		return TableView{}, err
	}
	if logger == nil {
		logger = db.Env().Logger
	}
	var (
		view    TableView
		findErr error
	)
	err = g.env.Dispatcher.Dispatch(ctx, func(ctx context.Context) {
		t, err := db.FindTable(ctx, catalog, schema, table)
		if err != nil {
			findErr = err
			return
		}
		if err := t.Populate(ctx); err != nil {
			logger.Warn("table partially loaded", "source", name, "table", table, "error", err)
		}
		view = Table(t)
	})
	if err != nil {
		return TableView{}, fmt.Errorf("dispatch: %w", err)
	}
	return view, findErr
}

// Tables expands the named source including every table and returns full
// snapshots of its tables.
func (g *Graphs) Tables(ctx context.Context, name string, logger *slog.Logger) ([]TableView, error) {
	db, err := g.Get(name)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = db.Env().Logger
	}
	var views []TableView
	err = g.env.Dispatcher.Dispatch(ctx, func(ctx context.Context) {
		opts := Options{Tables: true, Prefetch: true, Logger: logger}
		if err := Expand(ctx, db, opts); err != nil {
			logger.Warn("tables partially loaded", "source", name, "error", err)
		}
		views = Tables(db)
	})
	if err != nil {
		return nil, fmt.Errorf("dispatch: %w", err)
	}
	return views, nil
}

// Close stops the dispatcher started by NewGraphs, if any.
func (g *Graphs) Close() {
	if g.closeDispatcher != nil {
		g.closeDispatcher()
		g.closeDispatcher = nil
	}
}

package graph

import (
	"context"
	"fmt"
	"slices"

	"github.com/faucetdb/schemagraph/internal/model"
)

// container is the shared part of Database, Catalog and Schema. A container
// holds catalogs, schemas or tables depending on what its source reports.
type container struct {
	nodeCore
	catalogs []*Catalog
	schemas  []*Schema
	tables   []*Table
}

// Children returns the catalogs, then the schemas, then the tables.
func (c *container) Children() []Node {
	out := make([]Node, 0, len(c.catalogs)+len(c.schemas)+len(c.tables))
	for _, x := range c.catalogs {
		out = append(out, x)
	}
	for _, x := range c.schemas {
		out = append(out, x)
	}
	for _, x := range c.tables {
		out = append(out, x)
	}
	return out
}

// Catalogs returns the catalogs directly below this node.
func (c *container) Catalogs() []*Catalog { return slices.Clone(c.catalogs) }

// Schemas returns the schemas directly below this node.
func (c *container) Schemas() []*Schema { return slices.Clone(c.schemas) }

// Tables returns the tables directly below this node.
func (c *container) Tables() []*Table { return slices.Clone(c.tables) }

// CatalogByName returns the catalog with the given name, or nil.
func (c *container) CatalogByName(name string) *Catalog {
	for _, x := range c.catalogs {
		if x.PhysicalName() == name || x.Name() == name {
			return x
		}
	}
	return nil
}

// SchemaByName returns the schema with the given name, or nil.
func (c *container) SchemaByName(name string) *Schema {
	for _, x := range c.schemas {
		if x.PhysicalName() == name || x.Name() == name {
			return x
		}
	}
	return nil
}

// TableByName returns the table with the given name, or nil.
func (c *container) TableByName(name string) *Table {
	for _, x := range c.tables {
		if x.PhysicalName() == name || x.Name() == name {
			return x
		}
	}
	return nil
}

// AddTable attaches a table that has no parent yet.
func (c *container) AddTable(t *Table) error {
	if t.parent != nil {
		return fmt.Errorf("%w: table %q already has a parent", ErrInvariant, t.Name())
	}
	if len(c.catalogs) > 0 || len(c.schemas) > 0 {
		return fmt.Errorf("%w: %q holds catalogs or schemas, not tables", ErrInvariant, c.name)
	}
	t.parent = c.self
	c.tables = append(c.tables, t)
	c.fireChildAdded(t, len(c.tables)-1)
	return nil
}

// RemoveTable detaches every relationship the table takes part in and then
// removes it. A vetoed removal returns false.
func (c *container) RemoveTable(t *Table) (bool, error) {
	i := slices.Index(c.tables, t)
	if i < 0 {
		return false, fmt.Errorf("%w: table %q is not a child of %q", ErrNotMember, t.Name(), c.name)
	}
	if err := c.proposeRemoval(t, i); err != nil {
		vetoed(c.self, t, err)
		return false, nil
	}
	c.Begin("Remove table " + t.Name())
	for _, r := range slices.Clone(t.exported) {
		r.detach()
	}
	for _, ik := range slices.Clone(t.imported) {
		ik.rel.detach()
	}
	i = slices.Index(c.tables, t)
	c.tables = slices.Delete(c.tables, i, i+1)
	t.parent = nil
	c.fireChildRemoved(t, i)
	c.Commit()
	return true, nil
}

func (c *container) addSchema(s *Schema) error {
	if s.parent != nil {
		return fmt.Errorf("%w: schema %q already has a parent", ErrInvariant, s.Name())
	}
	if len(c.catalogs) > 0 || len(c.tables) > 0 {
		return fmt.Errorf("%w: %q holds catalogs or tables, not schemas", ErrInvariant, c.name)
	}
	s.parent = c.self
	c.schemas = append(c.schemas, s)
	c.fireChildAdded(s, len(c.schemas)-1)
	return nil
}

// populateContainer loads the next level below c. Catalogs are only tried
// at the database level and schemas only above schema level; the first level
// the source reports anything for wins.
func (c *container) populateContainer(ctx context.Context, tryCatalogs, trySchemas bool) error {
	return runPopulate(ctx, c.self, CategoryChildren, &c.populated, &c.populating,
		func(ctx context.Context) (applyFunc, error) {
			src := sourceOf(c.self)
			if src == nil {
				return nil, nil
			}
			catalog, schema := qualifiersOf(c.self)

			if tryCatalogs {
				names, err := src.Catalogs(ctx)
				if err != nil {
					return nil, fmt.Errorf("list catalogs: %w", err)
				}
				if len(names) > 0 {
					return c.applyCatalogs(names), nil
				}
			}
			if trySchemas {
				names, err := src.Schemas(ctx, catalog)
				if err != nil {
					return nil, fmt.Errorf("list schemas: %w", err)
				}
				if len(names) > 0 {
					return c.applySchemas(names), nil
				}
			}
			infos, err := src.Tables(ctx, catalog, schema)
			if err != nil {
				return nil, fmt.Errorf("list tables: %w", err)
			}
			return c.applyTables(infos), nil
		})
}

func (c *container) applyCatalogs(names []string) applyFunc {
	return func() ([]func(), error) {
		var events []func()
		for _, name := range names {
			if c.CatalogByName(name) != nil {
				continue
			}
			x := newCatalog(name)
			x.parent = c.self
			c.catalogs = append(c.catalogs, x)
			events = append(events, added(c.self, x, len(c.catalogs)-1))
		}
		return events, nil
	}
}

func (c *container) applySchemas(names []string) applyFunc {
	return func() ([]func(), error) {
		var events []func()
		for _, name := range names {
			if c.SchemaByName(name) != nil {
				continue
			}
			x := newSchema(name)
			x.parent = c.self
			c.schemas = append(c.schemas, x)
			events = append(events, added(c.self, x, len(c.schemas)-1))
		}
		return events, nil
	}
}

func (c *container) applyTables(infos []model.TableInfo) applyFunc {
	return func() ([]func(), error) {
		var events []func()
		for _, info := range infos {
			if c.TableByName(info.Name) != nil {
				continue
			}
			t := newSourceTable(info)
			t.parent = c.self
			c.tables = append(c.tables, t)
			events = append(events, added(c.self, t, len(c.tables)-1))
		}
		return events, nil
	}
}

// PrefetchColumns loads the columns of every table in the container with a
// single source query. Tables whose columns are already loaded are skipped.
func (c *container) PrefetchColumns(ctx context.Context) error {
	if err := c.self.Populate(ctx); err != nil {
		return err
	}
	src := sourceOf(c.self)
	if src == nil || len(c.tables) == 0 {
		return nil
	}
	catalog, schema := qualifiersOf(c.self)
	infos, err := src.Columns(ctx, catalog, schema, "")
	if err != nil {
		return fmt.Errorf("prefetch columns of %q: %w", c.name, err)
	}
	byTable := make(map[string][]model.ColumnInfo)
	for _, info := range infos {
		byTable[info.Table] = append(byTable[info.Table], info)
	}
	for _, t := range c.Tables() {
		rows := byTable[t.PhysicalName()]
		err := runPopulate(ctx, t, CategoryColumns, &t.columnsDone, &t.columnsGuard,
			func(ctx context.Context) (applyFunc, error) {
				return t.columnsFrom(rows)
			})
		if err != nil {
			return err
		}
	}
	return nil
}

// Database is the root of a schema graph.
type Database struct {
	container
	env    *Env
	source MetadataSource
}

// NewDatabase creates the root of a graph. src may be nil for a graph that is
// built entirely by hand.
func NewDatabase(name string, src MetadataSource, env Env) *Database {
	db := &Database{env: env.normalized(), source: src}
	db.init(db, name)
	if src == nil {
		db.populated.Store(true)
	}
	return db
}

// Env returns the environment shared by every node of the database.
func (db *Database) Env() *Env { return db.env }

// Source returns the metadata source the database is loaded from.
func (db *Database) Source() MetadataSource { return db.source }

// Populate loads the catalogs, or the schemas or tables when the source has no
// catalogs.
func (db *Database) Populate(ctx context.Context) error {
	return db.populateContainer(ctx, true, true)
}

// AddCatalog attaches a catalog that has no parent yet.
func (db *Database) AddCatalog(c *Catalog) error {
	if c.parent != nil {
		return fmt.Errorf("%w: catalog %q already has a parent", ErrInvariant, c.Name())
	}
	if len(db.schemas) > 0 || len(db.tables) > 0 {
		return fmt.Errorf("%w: %q holds schemas or tables, not catalogs", ErrInvariant, db.name)
	}
	c.parent = db
	db.catalogs = append(db.catalogs, c)
	db.fireChildAdded(c, len(db.catalogs)-1)
	return nil
}

// AddSchema attaches a schema directly below the database.
func (db *Database) AddSchema(s *Schema) error { return db.addSchema(s) }

// FindTable resolves a table by its qualified name, populating containers on
// the way down. Qualifiers for levels the database does not use are ignored;
// an empty qualifier matches when the level has exactly one entry.
func (db *Database) FindTable(ctx context.Context, catalog, schema, name string) (*Table, error) {
	if err := db.Populate(ctx); err != nil {
		return nil, err
	}
	var cur *container = &db.container

	if len(cur.catalogs) > 0 {
		c, err := pick(cur.catalogs, catalog, (*Catalog).PhysicalName)
		if err != nil {
			return nil, fmt.Errorf("catalog %q: %w", catalog, err)
		}
		if err := c.Populate(ctx); err != nil {
			return nil, err
		}
		cur = &c.container
	}
	if len(cur.schemas) > 0 {
		s, err := pick(cur.schemas, schema, (*Schema).PhysicalName)
		if err != nil {
			return nil, fmt.Errorf("schema %q: %w", schema, err)
		}
		if err := s.Populate(ctx); err != nil {
			return nil, err
		}
		cur = &s.container
	}
	if t := cur.TableByName(name); t != nil {
		return t, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrTableNotFound, qualifiedName(catalog, schema, name))
}

func pick[T any](items []T, name string, nameOf func(T) string) (T, error) {
	var zero T
	if name == "" {
		if len(items) == 1 {
			return items[0], nil
		}
		return zero, fmt.Errorf("%w: qualifier required", ErrTableNotFound)
	}
	for _, it := range items {
		if nameOf(it) == name {
			return it, nil
		}
	}
	return zero, ErrTableNotFound
}

func qualifiedName(parts ...string) string {
	var out string
	for _, p := range parts {
		if p == "" {
			continue
		}
		if out != "" {
			out += "."
		}
		out += p
	}
	return out
}

// Catalog is the first level of qualification below a database.
type Catalog struct {
	container
}

// NewCatalog creates an empty catalog for a hand-built graph.
func NewCatalog(name string) *Catalog {
	c := newCatalog(name)
	c.populated.Store(true)
	return c
}

func newCatalog(name string) *Catalog {
	c := &Catalog{}
	c.init(c, name)
	return c
}

// Populate loads the schemas of the catalog, or its tables when it has none.
func (c *Catalog) Populate(ctx context.Context) error {
	return c.populateContainer(ctx, false, true)
}

// AddSchema attaches a schema to the catalog.
func (c *Catalog) AddSchema(s *Schema) error { return c.addSchema(s) }

// Schema holds tables.
type Schema struct {
	container
}

// NewSchema creates an empty schema for a hand-built graph.
func NewSchema(name string) *Schema {
	s := newSchema(name)
	s.populated.Store(true)
	return s
}

func newSchema(name string) *Schema {
	s := &Schema{}
	s.init(s, name)
	return s
}

// Populate loads the tables of the schema.
func (s *Schema) Populate(ctx context.Context) error {
	return s.populateContainer(ctx, false, false)
}

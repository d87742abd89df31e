package graph

import (
	"context"
	"fmt"
	"slices"
	"sync/atomic"

	"github.com/faucetdb/schemagraph/internal/model"
)

// Table owns its columns, a primary key index that always exists, secondary
// indexes and both ends of the relationships it takes part in. Each of the
// four child categories is populated independently.
//
// The columns referenced by the primary key index are always the leading
// columns of the table, in the same order.
type Table struct {
	nodeCore
	remarks    string
	objectType string

	columns    []*Column
	primaryKey *Index
	indexes    []*Index
	exported   []*Relationship
	imported   []*ImportedKey

	columnsDone, columnsGuard   atomic.Bool
	indexesDone, indexesGuard   atomic.Bool
	exportedDone, exportedGuard atomic.Bool
	importedDone, importedGuard atomic.Bool
}

// NewTable creates a table for a hand-built graph. All of its child
// categories count as populated.
func NewTable(name string) *Table {
	t := newTable(name)
	t.columnsDone.Store(true)
	t.indexesDone.Store(true)
	t.exportedDone.Store(true)
	t.importedDone.Store(true)
	return t
}

func newTable(name string) *Table {
	t := &Table{objectType: "TABLE"}
	t.init(t, name)
	pk := newIndex(name + "_pk")
	pk.primaryKey = true
	pk.unique = true
	pk.parent = t
	t.primaryKey = pk
	return t
}

func newSourceTable(info model.TableInfo) *Table {
	t := newTable(info.Name)
	t.remarks = info.Remarks
	if info.Type != "" {
		t.objectType = info.Type
	}
	return t
}

// Remarks returns the table comment.
func (t *Table) Remarks() string { return t.remarks }

// SetRemarks sets the table comment.
func (t *Table) SetRemarks(s string) { setProp(&t.nodeCore, &t.remarks, s, PropRemarks) }

// ObjectType returns the kind reported by the source, such as TABLE or VIEW.
func (t *Table) ObjectType() string { return t.objectType }

// SetObjectType sets the object kind.
func (t *Table) SetObjectType(s string) { setProp(&t.nodeCore, &t.objectType, s, PropObjectType) }

// PrimaryKey returns the primary key index. It exists even when empty.
func (t *Table) PrimaryKey() *Index { return t.primaryKey }

// Columns returns the columns in position order.
func (t *Table) Columns() []*Column { return slices.Clone(t.columns) }

// Indexes returns the secondary indexes.
func (t *Table) Indexes() []*Index { return slices.Clone(t.indexes) }

// ExportedKeys returns the relationships referencing t.
func (t *Table) ExportedKeys() []*Relationship { return slices.Clone(t.exported) }

// ImportedKeys returns the keys t holds on other tables.
func (t *Table) ImportedKeys() []*ImportedKey { return slices.Clone(t.imported) }

// Qualifiers returns the catalog and schema the table lives in.
func (t *Table) Qualifiers() (catalog, schema string) { return qualifiersOf(t) }

// Children returns the columns, the primary key, the indexes, then both kinds
// of keys.
func (t *Table) Children() []Node {
	out := make([]Node, 0, len(t.columns)+1+len(t.indexes)+len(t.exported)+len(t.imported))
	for _, c := range t.columns {
		out = append(out, c)
	}
	out = append(out, t.primaryKey)
	for _, ix := range t.indexes {
		out = append(out, ix)
	}
	for _, r := range t.exported {
		out = append(out, r)
	}
	for _, ik := range t.imported {
		out = append(out, ik)
	}
	return out
}

// ColumnByName returns the column with the given name, or nil.
func (t *Table) ColumnByName(name string) *Column {
	for _, c := range t.columns {
		if c.Name() == name {
			return c
		}
	}
	return nil
}

func (t *Table) columnByPhysicalName(name string) *Column {
	for _, c := range t.columns {
		if c.PhysicalName() == name {
			return c
		}
	}
	return t.ColumnByName(name)
}

// IndexByName returns the index with the given name, the primary key included,
// or nil.
func (t *Table) IndexByName(name string) *Index {
	if t.primaryKey.Name() == name {
		return t.primaryKey
	}
	for _, ix := range t.indexes {
		if ix.Name() == name {
			return ix
		}
	}
	return nil
}

// PrimaryKeyColumns returns the leading columns that form the primary key.
func (t *Table) PrimaryKeyColumns() []*Column {
	return slices.Clone(t.columns[:t.pkSize()])
}

func (t *Table) pkSize() int { return len(t.primaryKey.columns) }

func (t *Table) columnIndex(c *Column) int { return slices.Index(t.columns, c) }

// IsPopulated reports whether all four child categories are loaded.
func (t *Table) IsPopulated() bool {
	return t.columnsDone.Load() && t.indexesDone.Load() &&
		t.exportedDone.Load() && t.importedDone.Load()
}

// Populate loads every child category, stopping at the first failure.
func (t *Table) Populate(ctx context.Context) error {
	steps := []func(context.Context) error{
		t.PopulateColumns,
		t.PopulateIndexes,
		t.PopulateExportedKeys,
		t.PopulateImportedKeys,
	}
	for _, step := range steps {
		if err := step(ctx); err != nil {
			return err
		}
	}
	return nil
}

// PopulateColumns loads the columns and assigns each an upstream type.
func (t *Table) PopulateColumns(ctx context.Context) error {
	return runPopulate(ctx, t, CategoryColumns, &t.columnsDone, &t.columnsGuard,
		func(ctx context.Context) (applyFunc, error) {
			src := sourceOf(t)
			if src == nil {
				return nil, nil
			}
			catalog, schema := t.Qualifiers()
			rows, err := src.Columns(ctx, catalog, schema, t.PhysicalName())
			if err != nil {
				return nil, fmt.Errorf("list columns: %w", err)
			}
			return t.columnsFrom(rows)
		})
}

// columnsFrom builds the columns described by rows and binds their upstream
// types. Type choice may block on the chooser, so it happens before apply.
func (t *Table) columnsFrom(rows []model.ColumnInfo) (applyFunc, error) {
	rows = slices.Clone(rows)
	slices.SortStableFunc(rows, func(a, b model.ColumnInfo) int { return a.Position - b.Position })

	cols := make([]*Column, 0, len(rows))
	for _, info := range rows {
		cols = append(cols, columnFromInfo(info))
	}
	if err := assignUpstreamTypes(envOf(t), cols); err != nil {
		return nil, err
	}

	return func() ([]func(), error) {
		var events []func()
		for _, c := range cols {
			if t.ColumnByName(c.Name()) != nil {
				continue
			}
			c.parent = t
			t.columns = append(t.columns, c)
			events = append(events, added(t, c, len(t.columns)-1))
		}
		return events, nil
	}, nil
}

func columnFromInfo(info model.ColumnInfo) *Column {
	code := info.TypeCode
	if code == 0 {
		code = model.TypeCodeFor(info.NativeType)
	}
	c := NewColumn(info.Name, code, info.NativeType, info.Precision, info.Scale)
	c.nullable = info.Nullable
	c.defaultValue = info.Default
	c.autoIncrement = info.AutoIncrement
	c.remarks = info.Remarks
	return c
}

// PopulateIndexes loads the primary key and the secondary indexes, populating
// columns first.
func (t *Table) PopulateIndexes(ctx context.Context) error {
	return runPopulate(ctx, t, CategoryIndexes, &t.indexesDone, &t.indexesGuard,
		func(ctx context.Context) (applyFunc, error) {
			if err := t.PopulateColumns(ctx); err != nil {
				return nil, err
			}
			src := sourceOf(t)
			if src == nil {
				return nil, nil
			}
			catalog, schema := t.Qualifiers()
			infos, err := src.Indexes(ctx, catalog, schema, t.PhysicalName())
			if err != nil {
				return nil, fmt.Errorf("list indexes: %w", err)
			}
			return t.indexesFrom(infos), nil
		})
}

// indexesFrom loads the primary key and secondary indexes. Primary key
// columns are moved to the front of the table in key order. A secondary index
// entry naming an unknown column is kept as an expression.
func (t *Table) indexesFrom(infos []model.IndexInfo) applyFunc {
	return func() ([]func(), error) {
		var pkInfo *model.IndexInfo
		for i := range infos {
			if infos[i].PrimaryKey {
				pkInfo = &infos[i]
				break
			}
		}

		var pkCols []*Column
		if pkInfo != nil {
			for _, ic := range sortedIndexColumns(pkInfo.Columns) {
				c := t.columnByPhysicalName(ic.Name)
				if c == nil || ic.Expression {
					return nil, fmt.Errorf("%w: primary key %q of %q names unknown column %q",
						ErrNotMember, pkInfo.Name, t.Name(), ic.Name)
				}
				if t.primaryKey.indexOf(c) < 0 && !slices.Contains(pkCols, c) {
					pkCols = append(pkCols, c)
				}
			}
		}

		var events []func()
		if pkInfo != nil {
			pk := t.primaryKey
			if pkInfo.Name != "" {
				pk.name = pkInfo.Name
			}
			pk.clustered = pkInfo.Clustered
			pk.qualifier = pkInfo.Qualifier
			pk.indexType = pkInfo.Type

			order := make([]*Column, 0, len(t.columns))
			order = append(order, t.columns[:t.pkSize()]...)
			order = append(order, pkCols...)
			for _, c := range t.columns[t.pkSize():] {
				if !slices.Contains(pkCols, c) {
					order = append(order, c)
				}
			}
			if !slices.Equal(order, t.columns) {
				before := columnNames(t.columns)
				t.columns = order
				after := columnNames(order)
				events = append(events, func() { t.firePropertyChange(PropColumnOrder, before, after) })
			}
			orders := make(map[string]model.SortOrder)
			for _, ic := range pkInfo.Columns {
				orders[ic.Name] = ic.Order
			}
			for _, c := range pkCols {
				ic := newIndexColumn(c, orders[c.PhysicalName()])
				ic.parent = pk
				pk.columns = append(pk.columns, ic)
				events = append(events, added(pk, ic, len(pk.columns)-1))
			}
		}

		for _, info := range infos {
			if info.PrimaryKey || t.IndexByName(info.Name) != nil {
				continue
			}
			ix := newIndex(info.Name)
			ix.unique = info.Unique
			ix.clustered = info.Clustered
			ix.qualifier = info.Qualifier
			ix.indexType = info.Type
			ix.filter = info.Filter
			for _, ci := range sortedIndexColumns(info.Columns) {
				var ic *IndexColumn
				if c := t.columnByPhysicalName(ci.Name); c != nil && !ci.Expression {
					ic = newIndexColumn(c, ci.Order)
				} else {
					ic = newExpressionColumn(ci.Name, ci.Order)
				}
				ic.parent = ix
				ix.columns = append(ix.columns, ic)
			}
			if len(ix.columns) == 0 {
				continue
			}
			ix.parent = t
			t.indexes = append(t.indexes, ix)
			events = append(events, added(t, ix, len(t.indexes)-1))
		}
		return events, nil
	}
}

func sortedIndexColumns(cols []model.IndexColumnInfo) []model.IndexColumnInfo {
	out := slices.Clone(cols)
	slices.SortStableFunc(out, func(a, b model.IndexColumnInfo) int { return a.Ordinal - b.Ordinal })
	return out
}

func columnNames(cols []*Column) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = c.Name()
	}
	return out
}

// AddColumn appends c after every existing column, outside the primary key.
func (t *Table) AddColumn(c *Column) error {
	return t.AddColumnAt(c, len(t.columns), false)
}

// AddColumnAt inserts c at pos. A position inside the primary key prefix
// requires joinPK, a position past its end forbids it, and the position right
// at the end of the prefix accepts either.
func (t *Table) AddColumnAt(c *Column, pos int, joinPK bool) error {
	if c.parent != nil {
		return fmt.Errorf("%w: column %q already belongs to a table", ErrInvariant, c.Name())
	}
	if pos < 0 || pos > len(t.columns) {
		return fmt.Errorf("%w: position %d out of range for %q", ErrInvariant, pos, t.Name())
	}
	pk := t.pkSize()
	if pos < pk && !joinPK {
		return fmt.Errorf("%w: position %d is inside the primary key of %q", ErrInvariant, pos, t.Name())
	}
	if pos > pk && joinPK {
		return fmt.Errorf("%w: position %d is outside the primary key of %q", ErrInvariant, pos, t.Name())
	}
	t.Begin("Add column " + c.Name())
	t.insertColumn(c, pos, joinPK)
	return t.Commit()
}

func (t *Table) insertColumn(c *Column, pos int, joinPK bool) {
	if c.refCount < 1 {
		c.refCount = 1
	}
	c.parent = t
	t.columns = slices.Insert(t.columns, pos, c)
	var announceKey func()
	if joinPK {
		announceKey = t.primaryKey.placeEntry(newIndexColumn(c, model.SortUnspecified), pos)
	}
	t.fireChildAdded(c, pos)
	if announceKey != nil {
		announceKey()
	}
}

// RemoveColumn removes c along with its primary key and index entries. It
// fails with a *LockedColumnError while a relationship maps c as a foreign
// key column, and returns false when a listener vetoes the removal.
func (t *Table) RemoveColumn(c *Column) (bool, error) {
	i := t.columnIndex(c)
	if i < 0 {
		return false, fmt.Errorf("%w: column %q, table %q", ErrNotMember, c.Name(), t.Name())
	}
	if rels := t.lockingRelationships(c, nil); len(rels) > 0 {
		return false, &LockedColumnError{Column: c, Relationships: rels}
	}
	if err := t.proposeRemoval(c, i); err != nil {
		vetoed(t, c, err)
		return false, nil
	}
	t.Begin("Remove column " + c.Name())
	t.detachColumn(c)
	return true, t.Commit()
}

// dropColumn removes a column whose reference count reached zero.
func (t *Table) dropColumn(c *Column) {
	i := t.columnIndex(c)
	if i < 0 {
		return
	}
	if err := t.proposeRemoval(c, i); err != nil {
		vetoed(t, c, err)
		return
	}
	t.Begin("Remove column " + c.Name())
	t.detachColumn(c)
	t.Commit()
}

// detachColumn removes c from its indexes and from t. The key entry and the
// column go together, before either removal is announced.
func (t *Table) detachColumn(c *Column) {
	for _, ix := range slices.Clone(t.indexes) {
		for i := ix.indexOf(c); i >= 0; i = ix.indexOf(c) {
			ix.removeAt(i)
		}
		if len(ix.columns) == 0 {
			t.pruneIndex(ix)
		}
	}
	var announceKey func()
	if i := t.primaryKey.indexOf(c); i >= 0 {
		announceKey = t.primaryKey.takeAt(i)
	}
	i := t.columnIndex(c)
	t.columns = slices.Delete(t.columns, i, i+1)
	c.parent = nil
	t.fireChildRemoved(c, i)
	if announceKey != nil {
		announceKey()
	}
}

// lockingRelationships returns the relationships importing into t that map c
// as a foreign key column and satisfy match.
func (t *Table) lockingRelationships(c *Column, match func(*Relationship) bool) []*Relationship {
	var out []*Relationship
	for _, ik := range t.imported {
		r := ik.rel
		if r.MappingForFK(c) != nil && (match == nil || match(r)) {
			out = append(out, r)
		}
	}
	return out
}

// checkLocked rejects changing the key membership of a foreign key column
// against the identifying flag of a relationship that maps it. skip, when not
// nil, is the relationship asking for the change and is not consulted.
func (t *Table) checkLocked(c *Column, willPK bool, skip *Relationship) error {
	wasPK := c.IsPrimaryKey()
	if wasPK == willPK {
		return nil
	}
	rels := t.lockingRelationships(c, func(r *Relationship) bool { return r != skip && r.identifying == wasPK })
	if len(rels) > 0 {
		return &LockedColumnError{Column: c, Relationships: rels}
	}
	return nil
}

// ChangeColumnIndex moves the column at from to to. The column ends up in the
// primary key when to lies inside the key prefix (computed without the
// column), outside of it when to lies past the prefix, and joinPK decides at
// the boundary.
func (t *Table) ChangeColumnIndex(from, to int, joinPK bool) error {
	n := len(t.columns)
	if from < 0 || from >= n || to < 0 || to >= n {
		return fmt.Errorf("%w: cannot move column %d to %d in %q", ErrInvariant, from, to, t.Name())
	}
	c := t.columns[from]
	pk := t.pkSize()
	if from < pk {
		pk--
	}
	willPK := to < pk || (to == pk && joinPK)
	if err := t.checkLocked(c, willPK, nil); err != nil {
		return err
	}
	t.moveColumn(c, to, willPK)
	return nil
}

// moveColumn relocates c and adjusts its key membership. Callers have
// already checked that to and willPK agree. Both the column list and the key
// index are updated before any listener hears of the move, since listeners
// may add or drop columns of t in response.
func (t *Table) moveColumn(c *Column, to int, willPK bool) {
	from := t.columnIndex(c)
	at := t.primaryKey.indexOf(c)
	wasPK := at >= 0
	if from == to && wasPK == willPK {
		return
	}
	t.Begin("Move column " + c.Name())
	defer t.Commit()

	var events []func()
	if from != to {
		t.columns = slices.Delete(t.columns, from, from+1)
		t.columns = slices.Insert(t.columns, to, c)
		events = append(events, func() { c.firePropertyChange(PropPosition, from, to) })
	}
	switch {
	case wasPK && !willPK:
		events = append(events, t.primaryKey.takeAt(at))
	case !wasPK && willPK:
		events = append(events, t.primaryKey.placeEntry(newIndexColumn(c, model.SortUnspecified), to))
	case wasPK && willPK && from != to:
		events = append(events, t.primaryKey.shift(from, to))
	}
	for _, fire := range events {
		fire()
	}
}

// layout records the column order and key size of a table.
type layout struct {
	columns []*Column
	pkSize  int
}

func (t *Table) currentLayout() layout {
	return layout{columns: slices.Clone(t.columns), pkSize: t.pkSize()}
}

// restoreLayout moves the columns recorded in l back to their recorded
// positions and key membership. Key membership is settled first so that every
// later move stays on its own side of the key boundary.
func (t *Table) restoreLayout(l layout) {
	wasPK := make(map[*Column]bool, len(l.columns))
	for i, c := range l.columns {
		wasPK[c] = i < l.pkSize
	}
	for i := len(t.columns) - 1; i >= 0; i-- {
		if c := t.columns[i]; c.IsPrimaryKey() && !wasPK[c] {
			t.moveColumn(c, t.pkSize()-1, false)
		}
	}
	for _, c := range l.columns {
		if wasPK[c] && c.Table() == t && !c.IsPrimaryKey() {
			t.moveColumn(c, t.pkSize(), true)
		}
	}
	for i, c := range l.columns {
		if i < len(t.columns) && c.Table() == t {
			t.moveColumn(c, i, wasPK[c])
		}
	}
}

// AddIndex attaches a secondary index.
func (t *Table) AddIndex(ix *Index) error {
	if ix.primaryKey {
		return ErrPrimaryKeyIndex
	}
	if ix.parent != nil {
		return fmt.Errorf("%w: index %q already belongs to a table", ErrInvariant, ix.Name())
	}
	for _, ic := range ix.columns {
		if ic.column != nil && ic.column.Table() != t {
			return fmt.Errorf("%w: index %q, column %q", ErrNotMember, ix.Name(), ic.column.Name())
		}
	}
	ix.parent = t
	t.indexes = append(t.indexes, ix)
	t.fireChildAdded(ix, len(t.indexes)-1)
	return nil
}

// RemoveIndex removes a secondary index. The primary key index can only be
// emptied.
func (t *Table) RemoveIndex(ix *Index) (bool, error) {
	if ix == t.primaryKey {
		return false, ErrPrimaryKeyIndex
	}
	i := slices.Index(t.indexes, ix)
	if i < 0 {
		return false, fmt.Errorf("%w: index %q, table %q", ErrNotMember, ix.Name(), t.Name())
	}
	if err := t.proposeRemoval(ix, i); err != nil {
		vetoed(t, ix, err)
		return false, nil
	}
	t.removeIndexAt(i)
	return true, nil
}

func (t *Table) pruneIndex(ix *Index) {
	i := slices.Index(t.indexes, ix)
	if i < 0 {
		return
	}
	if err := t.proposeRemoval(ix, i); err != nil {
		vetoed(t, ix, err)
		return
	}
	t.removeIndexAt(i)
}

func (t *Table) removeIndexAt(i int) {
	ix := t.indexes[i]
	for _, ic := range ix.columns {
		ic.stopMirror()
	}
	t.indexes = slices.Delete(t.indexes, i, i+1)
	ix.parent = nil
	t.fireChildRemoved(ix, i)
}

// AddExportedKey attaches r with t as its primary key table.
func (t *Table) AddExportedKey(ctx context.Context, r *Relationship, fkTable *Table, autoGenerateMapping bool) error {
	return r.Attach(ctx, t, fkTable, autoGenerateMapping)
}

// AddImportedKey attaches r with t as its foreign key table.
func (t *Table) AddImportedKey(ctx context.Context, r *Relationship, pkTable *Table, autoGenerateMapping bool) error {
	return r.Attach(ctx, pkTable, t, autoGenerateMapping)
}

// RemoveExportedKey detaches r. It returns false when r is already being
// detached or a listener vetoes the removal.
func (t *Table) RemoveExportedKey(r *Relationship) (bool, error) {
	i := slices.Index(t.exported, r)
	if i < 0 {
		return false, fmt.Errorf("%w: relationship %q, table %q", ErrNotMember, r.Name(), t.Name())
	}
	if r.detaching {
		return false, nil
	}
	if err := t.proposeRemoval(r, i); err != nil {
		vetoed(t, r, err)
		return false, nil
	}
	r.detach()
	return true, nil
}

// RemoveImportedKey detaches the relationship behind ik. The end state is the
// same as removing the relationship from its primary key table.
func (t *Table) RemoveImportedKey(ik *ImportedKey) (bool, error) {
	i := slices.Index(t.imported, ik)
	if i < 0 {
		return false, fmt.Errorf("%w: imported key %q, table %q", ErrNotMember, ik.Name(), t.Name())
	}
	if ik.rel.detaching {
		return false, nil
	}
	if err := t.proposeRemoval(ik, i); err != nil {
		vetoed(t, ik, err)
		return false, nil
	}
	ik.rel.detach()
	return true, nil
}

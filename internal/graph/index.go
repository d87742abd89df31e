package graph

import (
	"fmt"
	"slices"

	"github.com/faucetdb/schemagraph/internal/model"
)

// Index is an ordered list of column references or expressions. Every table
// has exactly one primary key index whose columns are the table's leading
// columns in table order.
type Index struct {
	nodeCore
	primaryKey bool
	unique     bool
	clustered  bool
	qualifier  string
	indexType  string
	filter     string
	columns    []*IndexColumn
}

// NewIndex creates an empty secondary index. Attach it with Table.AddIndex
// before adding columns.
func NewIndex(name string) *Index {
	return newIndex(name)
}

func newIndex(name string) *Index {
	ix := &Index{}
	ix.init(ix, name)
	ix.populated.Store(true)
	return ix
}

// IsPrimaryKey reports whether this is the table's primary key index.
func (ix *Index) IsPrimaryKey() bool { return ix.primaryKey }

// Unique reports whether the index enforces uniqueness.
func (ix *Index) Unique() bool { return ix.unique }

// Clustered reports whether the table is stored in index order.
func (ix *Index) Clustered() bool { return ix.clustered }

// Qualifier returns the catalog qualifier some databases report for indexes.
func (ix *Index) Qualifier() string { return ix.qualifier }

// IndexType returns the access method, such as btree or hash.
func (ix *Index) IndexType() string { return ix.indexType }

// FilterCondition returns the predicate of a partial index.
func (ix *Index) FilterCondition() string { return ix.filter }

// Columns returns the entries in index order.
func (ix *Index) Columns() []*IndexColumn { return slices.Clone(ix.columns) }

// Len returns the number of entries.
func (ix *Index) Len() int { return len(ix.columns) }

// SetUnique sets whether the index enforces uniqueness.
func (ix *Index) SetUnique(v bool) { setProp(&ix.nodeCore, &ix.unique, v, PropUnique) }

// SetClustered sets whether the table is stored in index order.
func (ix *Index) SetClustered(v bool) { setProp(&ix.nodeCore, &ix.clustered, v, PropClustered) }

// SetQualifier sets the index qualifier.
func (ix *Index) SetQualifier(s string) { setProp(&ix.nodeCore, &ix.qualifier, s, PropQualifier) }

// SetIndexType sets the access method.
func (ix *Index) SetIndexType(s string) { setProp(&ix.nodeCore, &ix.indexType, s, PropIndexType) }

// SetFilterCondition sets the predicate of a partial index.
func (ix *Index) SetFilterCondition(s string) { setProp(&ix.nodeCore, &ix.filter, s, PropFilter) }

// Children returns the entries in index order.
func (ix *Index) Children() []Node {
	out := make([]Node, len(ix.columns))
	for i, ic := range ix.columns {
		out[i] = ic
	}
	return out
}

// Table returns the owning table, or nil for a detached index.
func (ix *Index) Table() *Table {
	t, _ := ix.parent.(*Table)
	return t
}

func (ix *Index) indexOf(c *Column) int {
	return slices.IndexFunc(ix.columns, func(ic *IndexColumn) bool { return ic.column == c })
}

// ColumnFor returns the entry referencing c, or nil.
func (ix *Index) ColumnFor(c *Column) *IndexColumn {
	if i := ix.indexOf(c); i >= 0 {
		return ix.columns[i]
	}
	return nil
}

// AddIndexColumn adds c at pos. For the primary key index pos is ignored: c
// joins the key at the end of the key prefix, which moves it there in the
// table.
func (ix *Index) AddIndexColumn(c *Column, pos int) error {
	t := ix.Table()
	if t == nil {
		return fmt.Errorf("%w: index %q is not attached to a table", ErrInvariant, ix.Name())
	}
	if c.Table() != t {
		return fmt.Errorf("%w: column %q, index %q", ErrNotMember, c.Name(), ix.Name())
	}
	if ix.indexOf(c) >= 0 {
		return fmt.Errorf("%w: column %q, index %q", ErrDuplicateColumn, c.Name(), ix.Name())
	}
	if ix.primaryKey {
		if err := t.checkLocked(c, true, nil); err != nil {
			return err
		}
		t.moveColumn(c, t.pkSize(), true)
		return nil
	}
	ix.insertColumn(c, clamp(pos, len(ix.columns)))
	return nil
}

// AddExpression adds an expression entry to a secondary index.
func (ix *Index) AddExpression(expr string, pos int) error {
	if ix.primaryKey {
		return fmt.Errorf("%w: expressions cannot be part of a primary key", ErrInvariant)
	}
	ic := newExpressionColumn(expr, model.SortUnspecified)
	ix.insertEntry(ic, clamp(pos, len(ix.columns)))
	return nil
}

// RemoveIndexColumn removes ic. Removing from the primary key index moves the
// column just past the remaining key prefix; a secondary index left empty is
// removed from its table.
func (ix *Index) RemoveIndexColumn(ic *IndexColumn) (bool, error) {
	i := slices.Index(ix.columns, ic)
	if i < 0 {
		return false, fmt.Errorf("%w: entry %q, index %q", ErrNotMember, ic.Name(), ix.Name())
	}
	t := ix.Table()
	if ix.primaryKey && t != nil {
		if err := t.checkLocked(ic.column, false, nil); err != nil {
			return false, err
		}
	}
	if err := ix.proposeRemoval(ic, i); err != nil {
		vetoed(ix, ic, err)
		return false, nil
	}
	if ix.primaryKey && t != nil {
		t.moveColumn(ic.column, t.pkSize()-1, false)
		return true, nil
	}

	ix.Begin("Remove index column " + ic.Name())
	ix.removeAt(i)
	if len(ix.columns) == 0 && t != nil {
		t.pruneIndex(ix)
	}
	return true, ix.Commit()
}

func (ix *Index) insertColumn(c *Column, pos int) {
	ix.insertEntry(newIndexColumn(c, model.SortUnspecified), pos)
}

func (ix *Index) insertEntry(ic *IndexColumn, pos int) {
	ix.placeEntry(ic, pos)()
}

// placeEntry inserts ic at pos and returns the func that announces it, so
// callers can finish related changes before listeners run.
func (ix *Index) placeEntry(ic *IndexColumn, pos int) func() {
	ic.parent = ix
	ix.columns = slices.Insert(ix.columns, pos, ic)
	return added(ix, ic, pos)
}

func (ix *Index) removeAt(i int) {
	ix.takeAt(i)()
}

// takeAt removes the entry at i and returns the func that announces it.
func (ix *Index) takeAt(i int) func() {
	ic := ix.columns[i]
	ic.stopMirror()
	ix.columns = slices.Delete(ix.columns, i, i+1)
	ic.parent = nil
	return func() { ix.fireChildRemoved(ic, i) }
}

// reorder moves the entry at from to to and reports the new column order.
func (ix *Index) reorder(from, to int) {
	ix.shift(from, to)()
}

// shift moves the entry at from to to and returns the func that reports the
// new column order.
func (ix *Index) shift(from, to int) func() {
	before := ix.entryNames()
	ic := ix.columns[from]
	ix.columns = slices.Delete(ix.columns, from, from+1)
	ix.columns = slices.Insert(ix.columns, to, ic)
	after := ix.entryNames()
	return func() { ix.firePropertyChange(PropColumnOrder, before, after) }
}

func (ix *Index) entryNames() []string {
	out := make([]string, len(ix.columns))
	for i, ic := range ix.columns {
		out[i] = ic.Name()
	}
	return out
}

func clamp(pos, n int) int {
	return max(0, min(pos, n))
}

// IndexColumn is one entry of an index: a column reference or, when Column
// returns nil, an expression held in its name. A column entry keeps its name
// in step with the column.
type IndexColumn struct {
	nodeCore
	column *Column
	order  model.SortOrder
	mirror *ListenerFuncs
}

func newIndexColumn(c *Column, order model.SortOrder) *IndexColumn {
	ic := &IndexColumn{column: c, order: order}
	ic.init(ic, c.Name())
	ic.populated.Store(true)
	if c.physicalName != "" {
		ic.physicalName = c.physicalName
	}
	ic.mirror = &ListenerFuncs{OnPropertyChange: func(e PropertyChange) {
		switch e.Property {
		case PropName:
			ic.SetName(e.New.(string))
		case PropPhysicalName:
			ic.SetPhysicalName(e.New.(string))
		}
	}}
	c.AddListener(ic.mirror)
	return ic
}

func newExpressionColumn(expr string, order model.SortOrder) *IndexColumn {
	ic := &IndexColumn{order: order}
	ic.init(ic, expr)
	ic.populated.Store(true)
	return ic
}

func (ic *IndexColumn) stopMirror() {
	if ic.mirror != nil && ic.column != nil {
		ic.column.RemoveListener(ic.mirror)
	}
}

// Column returns the indexed column, or nil for an expression entry.
func (ic *IndexColumn) Column() *Column { return ic.column }

// IsExpression reports whether the entry is an expression.
func (ic *IndexColumn) IsExpression() bool { return ic.column == nil }

// SortOrder returns the direction of the entry.
func (ic *IndexColumn) SortOrder() model.SortOrder { return ic.order }

// SetSortOrder sets the direction of the entry.
func (ic *IndexColumn) SetSortOrder(o model.SortOrder) {
	setProp(&ic.nodeCore, &ic.order, o, PropSortOrder)
}

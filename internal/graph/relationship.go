package graph

import (
	"context"
	"fmt"
	"slices"

	"github.com/faucetdb/schemagraph/internal/model"
)

// Cardinality is the number of rows one side of a relationship may have for
// a single row on the other side.
type Cardinality int

const (
	CardinalityOne Cardinality = iota
	CardinalityZeroOrOne
	CardinalityOneOrMore
	CardinalityZeroOrMore
)

// String returns the usual diagram notation.
func (c Cardinality) String() string {
	switch c {
	case CardinalityOne:
		return "1"
	case CardinalityZeroOrOne:
		return "0..1"
	case CardinalityOneOrMore:
		return "1..n"
	default:
		return "0..n"
	}
}

// Relationship is one foreign key constraint seen from its primary key table,
// which is its parent. Its twin ImportedKey is the child of the foreign key
// table. The mappings pair each referenced column with the column holding the
// reference.
//
// When identifying is set every mapped foreign key column is part of the
// foreign key table's primary key; otherwise none is.
type Relationship struct {
	nodeCore
	fkTable       *Table
	importedKey   *ImportedKey
	mappings      []*ColumnMapping
	identifying   bool
	updateRule    model.Rule
	deleteRule    model.Rule
	deferrability model.Deferrability
	pkCardinality Cardinality
	fkCardinality Cardinality

	propagator *propagationListener
	attached   bool
	detaching  bool
}

// NewRelationship creates an unattached relationship. An empty name is
// replaced by a generated one on attachment.
func NewRelationship(name string) *Relationship {
	r := &Relationship{
		updateRule:    model.RuleNoAction,
		deleteRule:    model.RuleNoAction,
		deferrability: model.NotDeferrable,
		pkCardinality: CardinalityOne,
		fkCardinality: CardinalityZeroOrMore,
	}
	r.init(r, name)
	r.populated.Store(true)
	r.importedKey = newImportedKey(r)
	return r
}

// PKTable returns the referenced table, or nil while unattached.
func (r *Relationship) PKTable() *Table {
	t, _ := r.parent.(*Table)
	return t
}

// FKTable returns the referencing table, or nil while unattached.
func (r *Relationship) FKTable() *Table { return r.fkTable }

// ImportedKey returns the twin held by the foreign key table.
func (r *Relationship) ImportedKey() *ImportedKey { return r.importedKey }

// Mappings returns the column pairs in primary key order.
func (r *Relationship) Mappings() []*ColumnMapping { return slices.Clone(r.mappings) }

// Identifying reports whether the mapped foreign key columns are part of the
// foreign key table's primary key.
func (r *Relationship) Identifying() bool { return r.identifying }

// UpdateRule returns the ON UPDATE action.
func (r *Relationship) UpdateRule() model.Rule { return r.updateRule }

// DeleteRule returns the ON DELETE action.
func (r *Relationship) DeleteRule() model.Rule { return r.deleteRule }

// Deferrability returns when the constraint is checked.
func (r *Relationship) Deferrability() model.Deferrability { return r.deferrability }

// PKCardinality returns the cardinality of the referenced side.
func (r *Relationship) PKCardinality() Cardinality { return r.pkCardinality }

// FKCardinality returns the cardinality of the referencing side.
func (r *Relationship) FKCardinality() Cardinality { return r.fkCardinality }

// IsAttached reports whether r is linked to both tables.
func (r *Relationship) IsAttached() bool { return r.attached }

// SetUpdateRule sets the ON UPDATE action.
func (r *Relationship) SetUpdateRule(v model.Rule) { setProp(&r.nodeCore, &r.updateRule, v, PropUpdateRule) }

// SetDeleteRule sets the ON DELETE action.
func (r *Relationship) SetDeleteRule(v model.Rule) { setProp(&r.nodeCore, &r.deleteRule, v, PropDeleteRule) }

// SetDeferrability sets when the constraint is checked.
func (r *Relationship) SetDeferrability(v model.Deferrability) {
	setProp(&r.nodeCore, &r.deferrability, v, PropDeferrability)
}

// SetPKCardinality sets the cardinality of the referenced side.
func (r *Relationship) SetPKCardinality(v Cardinality) {
	setProp(&r.nodeCore, &r.pkCardinality, v, PropPKCardinality)
}

// SetFKCardinality sets the cardinality of the referencing side.
func (r *Relationship) SetFKCardinality(v Cardinality) {
	setProp(&r.nodeCore, &r.fkCardinality, v, PropFKCardinality)
}

// Children returns the mappings.
func (r *Relationship) Children() []Node {
	out := make([]Node, len(r.mappings))
	for i, m := range r.mappings {
		out[i] = m
	}
	return out
}

// MappingFor returns the mapping whose primary key column is c, or nil.
func (r *Relationship) MappingFor(c *Column) *ColumnMapping {
	for _, m := range r.mappings {
		if m.pkColumn == c {
			return m
		}
	}
	return nil
}

// MappingForFK returns the mapping whose foreign key column is c, or nil.
func (r *Relationship) MappingForFK(c *Column) *ColumnMapping {
	for _, m := range r.mappings {
		if m.FKColumn() == c {
			return m
		}
	}
	return nil
}

// Attach links r to pkTable and fkTable, creates the missing mappings when
// autoGenerateMapping is set and realizes every mapping. Both tables have
// their columns and indexes populated first. A self-referencing relationship
// is never identifying.
func (r *Relationship) Attach(ctx context.Context, pkTable, fkTable *Table, autoGenerateMapping bool) error {
	if r.attached {
		return fmt.Errorf("%w: %q", ErrAlreadyAttached, r.Name())
	}
	for _, t := range []*Table{pkTable, fkTable} {
		if err := t.PopulateColumns(ctx); err != nil {
			return err
		}
		if err := t.PopulateIndexes(ctx); err != nil {
			return err
		}
	}
	for _, m := range r.mappings {
		if m.pkColumn != nil && m.pkColumn.Table() != pkTable {
			return fmt.Errorf("%w: mapped column %q, table %q", ErrNotMember, m.pkColumn.Name(), pkTable.Name())
		}
	}
	if pkTable == fkTable {
		r.identifying = false
	}
	if r.name == "" {
		r.name = pkTable.Name() + "_" + fkTable.Name() + "_fk"
	}

	label := "Attach relationship " + r.Name()
	pkTable.Begin(label)
	if fkTable != pkTable {
		fkTable.Begin(label)
	}
	explicit := slices.Clone(r.mappings)
	before := fkTable.currentLayout()
	r.link(pkTable, fkTable)
	if err := r.realizeAll(autoGenerateMapping); err != nil {
		r.unlink(explicit)
		fkTable.restoreLayout(before)
		pkTable.Rollback(err.Error())
		fkTable.Rollback(err.Error())
		return fmt.Errorf("attach relationship %q: %w", r.Name(), err)
	}
	r.propagator = newPropagationListener(r)
	r.propagator.attach()
	if fkTable != pkTable {
		fkTable.Commit()
	}
	return pkTable.Commit()
}

func (r *Relationship) link(pk, fk *Table) {
	r.parent = pk
	r.fkTable = fk
	r.attached = true
	pk.exported = append(pk.exported, r)
	pk.fireChildAdded(r, len(pk.exported)-1)

	ik := r.importedKey
	ik.parent = fk
	fk.imported = append(fk.imported, ik)
	fk.fireChildAdded(ik, len(fk.imported)-1)
}

func (r *Relationship) realizeAll(autoGenerateMapping bool) error {
	for _, m := range slices.Clone(r.mappings) {
		if err := r.realize(m); err != nil {
			return err
		}
	}
	if !autoGenerateMapping {
		return nil
	}
	for _, pkCol := range r.PKTable().PrimaryKeyColumns() {
		if r.MappingFor(pkCol) != nil {
			continue
		}
		m := newColumnMapping(pkCol, r.chooseFKColumn(pkCol))
		r.insertMapping(m, len(r.mappings))
		if err := r.realize(m); err != nil {
			return err
		}
	}
	r.sortMappings()
	return nil
}

// chooseFKColumn picks the foreign key column for pkCol: an unmapped column
// of the foreign key table with the same name and type code whose key
// membership already suits the relationship, or can be changed without
// breaking another relationship that maps it. Otherwise it is a fresh clone
// of pkCol under a name not used by the table. A self-referencing
// relationship always gets a fresh column.
func (r *Relationship) chooseFKColumn(pkCol *Column) *Column {
	fk := r.fkTable
	if fk != r.PKTable() {
		for _, c := range fk.columns {
			if c.Name() == pkCol.Name() &&
				c.typeCode == pkCol.typeCode &&
				(r.identifying || !c.IsPrimaryKey()) &&
				r.MappingForFK(c) == nil &&
				fk.checkLocked(c, r.identifying, r) == nil {
				return c
			}
		}
	}
	return pkCol.derive(uniqueColumnName(fk, pkCol.Name()))
}

func uniqueColumnName(t *Table, base string) string {
	if t.ColumnByName(base) == nil {
		return base
	}
	for i := 1; ; i++ {
		name := fmt.Sprintf("%s_%d", base, i)
		if t.ColumnByName(name) == nil {
			return name
		}
	}
}

// realize makes the foreign key column of m exist in the foreign key table
// with the reference and key membership the relationship requires.
func (r *Relationship) realize(m *ColumnMapping) error {
	pkCol, fkCol := m.pkColumn, m.FKColumn()
	if pkCol == nil || fkCol == nil {
		return fmt.Errorf("%w: relationship %q, mapping %q", ErrMissingMappingColumn, r.Name(), m.Name())
	}
	if m.realized {
		return nil
	}
	fk := r.fkTable
	switch owner := fkCol.Table(); owner {
	case nil:
		if r.identifying {
			fk.insertColumn(fkCol, fk.pkSize(), true)
		} else {
			fk.insertColumn(fkCol, len(fk.columns), false)
		}
	case fk:
		if err := fk.checkLocked(fkCol, r.identifying, r); err != nil {
			return err
		}
		fkCol.addReference()
		r.enforceMembership(fkCol)
	default:
		return fmt.Errorf("%w: foreign key column %q, table %q", ErrNotMember, fkCol.Name(), fk.Name())
	}
	m.realized = true
	return nil
}

func (r *Relationship) enforceMembership(c *Column) {
	fk := r.fkTable
	switch inPK := c.IsPrimaryKey(); {
	case r.identifying && !inPK:
		fk.moveColumn(c, fk.pkSize(), true)
	case !r.identifying && inPK:
		fk.moveColumn(c, fk.pkSize()-1, false)
	}
}

// unrealize drops m and gives up its reference on the foreign key column.
func (r *Relationship) unrealize(m *ColumnMapping) {
	i := slices.Index(r.mappings, m)
	if i < 0 {
		return
	}
	r.mappings = slices.Delete(r.mappings, i, i+1)
	m.parent = nil
	r.fireChildRemoved(m, i)
	r.release(m)
}

// release gives up the reference m holds on its foreign key column and leaves
// m in r, unrealized.
func (r *Relationship) release(m *ColumnMapping) {
	if !m.realized {
		return
	}
	m.realized = false
	if c := m.fkColumn; c != nil && c.Table() != nil {
		c.removeReference()
	}
}

func (r *Relationship) insertMapping(m *ColumnMapping, pos int) {
	m.parent = r
	r.mappings = slices.Insert(r.mappings, pos, m)
	r.fireChildAdded(m, pos)
}

// AddMapping maps pkCol onto fkCol. On an attached relationship the mapping
// is realized right away; fkCol may then be a new column that is added to
// the foreign key table.
func (r *Relationship) AddMapping(pkCol, fkCol *Column) (*ColumnMapping, error) {
	if r.MappingFor(pkCol) != nil {
		return nil, fmt.Errorf("%w: column %q is already mapped by %q", ErrInvariant, pkCol.Name(), r.Name())
	}
	m := newColumnMapping(pkCol, fkCol)
	if !r.attached {
		r.insertMapping(m, len(r.mappings))
		return m, nil
	}
	if pkCol.Table() != r.PKTable() {
		return nil, fmt.Errorf("%w: column %q, table %q", ErrNotMember, pkCol.Name(), r.PKTable().Name())
	}
	fk := r.fkTable
	fk.Begin("Add mapping to " + r.Name())
	r.insertMapping(m, len(r.mappings))
	if err := r.realize(m); err != nil {
		r.unrealize(m)
		fk.Rollback(err.Error())
		return nil, err
	}
	return m, fk.Commit()
}

// RemoveMapping removes m and releases its foreign key column.
func (r *Relationship) RemoveMapping(m *ColumnMapping) (bool, error) {
	i := slices.Index(r.mappings, m)
	if i < 0 {
		return false, fmt.Errorf("%w: mapping %q, relationship %q", ErrNotMember, m.Name(), r.Name())
	}
	if err := r.proposeRemoval(m, i); err != nil {
		vetoed(r, m, err)
		return false, nil
	}
	if !r.attached {
		r.unrealize(m)
		return true, nil
	}
	fk := r.fkTable
	fk.Begin("Remove mapping from " + r.Name())
	r.unrealize(m)
	return true, fk.Commit()
}

// SetIdentifying moves the mapped foreign key columns into the foreign key
// table's primary key (true) or just behind it (false), keeping their mapping
// order.
func (r *Relationship) SetIdentifying(v bool) error {
	if v == r.identifying {
		return nil
	}
	if !r.attached {
		setProp(&r.nodeCore, &r.identifying, v, PropIdentifying)
		return nil
	}
	fk := r.fkTable
	if v && fk == r.PKTable() {
		return fmt.Errorf("%w: %q", ErrSelfIdentifying, r.Name())
	}
	for _, m := range r.mappings {
		if c := m.FKColumn(); c != nil && c.Table() == fk {
			if err := fk.checkLocked(c, v, r); err != nil {
				return err
			}
		}
	}

	fk.Begin("Change identifying of " + r.Name())
	setProp(&r.nodeCore, &r.identifying, v, PropIdentifying)
	if v {
		for _, m := range r.mappings {
			if c := m.FKColumn(); c != nil && c.Table() == fk && !c.IsPrimaryKey() {
				fk.moveColumn(c, fk.pkSize(), true)
			}
		}
	} else {
		for i := len(r.mappings) - 1; i >= 0; i-- {
			if c := r.mappings[i].FKColumn(); c != nil && c.Table() == fk && c.IsPrimaryKey() {
				fk.moveColumn(c, fk.pkSize()-1, false)
			}
		}
	}
	return fk.Commit()
}

// ensureInMapping maps a column that just joined the primary key table's key.
func (r *Relationship) ensureInMapping(pkCol *Column) {
	if !r.attached || r.detaching || r.MappingFor(pkCol) != nil {
		return
	}
	fk := r.fkTable
	fk.Begin("Map column " + pkCol.Name())
	defer fk.Commit()

	slot := 0
	pos := pkCol.Position()
	for _, m := range r.mappings {
		if m.pkColumn.Position() < pos {
			slot++
		}
	}
	m := newColumnMapping(pkCol, r.chooseFKColumn(pkCol))
	r.insertMapping(m, slot)
	if err := r.realize(m); err != nil {
		r.unrealize(m)
		envOf(r).Logger.Warn("could not map new key column",
			"relationship", r.Name(), "column", pkCol.Name(), "error", err)
	}
}

// ensureNotInMapping removes the mapping of a column that left the primary
// key table's key.
func (r *Relationship) ensureNotInMapping(pkCol *Column) {
	m := r.MappingFor(pkCol)
	if m == nil || !r.attached {
		return
	}
	fk := r.fkTable
	fk.Begin("Unmap column " + pkCol.Name())
	r.unrealize(m)
	fk.Commit()
}

// sortMappings restores primary key order after the key was reordered.
func (r *Relationship) sortMappings() {
	sorted := slices.Clone(r.mappings)
	slices.SortStableFunc(sorted, func(a, b *ColumnMapping) int {
		return a.pkColumn.Position() - b.pkColumn.Position()
	})
	if slices.Equal(sorted, r.mappings) {
		return
	}
	before := mappingNames(r.mappings)
	r.mappings = sorted
	r.firePropertyChange(PropColumnOrder, before, mappingNames(sorted))
}

func mappingNames(ms []*ColumnMapping) []string {
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = m.Name()
	}
	return out
}

// detach unlinks r from both tables. Mappings are released from the highest
// key position down so that columns dropped from the foreign key table do not
// shift the key columns still to be processed. The detaching flag turns the
// symmetric removal on the other table into a no-op.
func (r *Relationship) detach() {
	r.unlink(nil)
}

// unlink is detach that keeps the mappings in keep, unrealized, so a failed
// attachment leaves r as the caller built it.
func (r *Relationship) unlink(keep []*ColumnMapping) {
	if r.detaching || !r.attached {
		return
	}
	r.detaching = true
	defer func() { r.detaching = false }()

	pk, fk := r.PKTable(), r.fkTable
	label := "Detach relationship " + r.Name()
	pk.Begin(label)
	if fk != pk {
		fk.Begin(label)
	}
	if r.propagator != nil {
		r.propagator.detach()
		r.propagator = nil
	}
	for i := len(r.mappings) - 1; i >= 0; i-- {
		if m := r.mappings[i]; slices.Contains(keep, m) {
			r.release(m)
		} else {
			r.unrealize(m)
		}
	}

	if i := slices.Index(pk.exported, r); i >= 0 {
		pk.exported = slices.Delete(pk.exported, i, i+1)
		pk.fireChildRemoved(r, i)
	}
	ik := r.importedKey
	if i := slices.Index(fk.imported, ik); i >= 0 {
		fk.imported = slices.Delete(fk.imported, i, i+1)
		ik.parent = nil
		fk.fireChildRemoved(ik, i)
	}
	r.parent = nil
	r.fkTable = nil
	r.attached = false

	if fk != pk {
		fk.Commit()
	}
	pk.Commit()
}

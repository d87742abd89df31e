package graph

// ColumnMapping pairs a primary key column with the foreign key column that
// references it. A mapping loaded before its foreign key column is known
// holds the column's name and resolves it on first use.
type ColumnMapping struct {
	nodeCore
	pkColumn     *Column
	fkColumn     *Column
	fkColumnName string
	realized     bool
}

func newColumnMapping(pk, fk *Column) *ColumnMapping {
	m := &ColumnMapping{pkColumn: pk, fkColumn: fk}
	m.init(m, "")
	m.populated.Store(true)
	return m
}

func newPendingMapping(pk *Column, fkColumnName string) *ColumnMapping {
	m := newColumnMapping(pk, nil)
	m.fkColumnName = fkColumnName
	return m
}

// Name reads "pk -> fk".
func (m *ColumnMapping) Name() string {
	var pk, fk string
	if m.pkColumn != nil {
		pk = m.pkColumn.Name()
	}
	if c := m.fkColumn; c != nil {
		fk = c.Name()
	} else {
		fk = m.fkColumnName
	}
	return pk + " -> " + fk
}

// PhysicalName is the same as Name.
func (m *ColumnMapping) PhysicalName() string { return m.Name() }

// Relationship returns the owning relationship, or nil once removed.
func (m *ColumnMapping) Relationship() *Relationship {
	r, _ := m.parent.(*Relationship)
	return r
}

// PKColumn returns the referenced primary key column.
func (m *ColumnMapping) PKColumn() *Column { return m.pkColumn }

// FKColumn returns the foreign key column, resolving a pending name against
// the relationship's foreign key table.
func (m *ColumnMapping) FKColumn() *Column {
	if m.fkColumn == nil && m.fkColumnName != "" {
		if r := m.Relationship(); r != nil && r.fkTable != nil {
			m.fkColumn = r.fkTable.columnByPhysicalName(m.fkColumnName)
		}
	}
	return m.fkColumn
}

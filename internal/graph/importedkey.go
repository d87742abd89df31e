package graph

// ImportedKey is the foreign key table's end of a Relationship. Name and
// populated state live on the relationship; renames are relayed so that
// listeners of either end see them.
type ImportedKey struct {
	nodeCore
	rel *Relationship
}

func newImportedKey(r *Relationship) *ImportedKey {
	ik := &ImportedKey{rel: r}
	ik.init(ik, "")
	r.AddListener(&ListenerFuncs{OnPropertyChange: func(e PropertyChange) {
		switch e.Property {
		case PropName, PropPhysicalName:
			ik.firePropertyChange(e.Property, e.Old, e.New)
		}
	}})
	return ik
}

// Relationship returns the relationship this key mirrors.
func (ik *ImportedKey) Relationship() *Relationship { return ik.rel }

// Name returns the name of the relationship.
func (ik *ImportedKey) Name() string { return ik.rel.Name() }

// SetName renames the relationship.
func (ik *ImportedKey) SetName(name string) { ik.rel.SetName(name) }

// PhysicalName returns the constraint name of the relationship.
func (ik *ImportedKey) PhysicalName() string { return ik.rel.PhysicalName() }

// SetPhysicalName sets the constraint name of the relationship.
func (ik *ImportedKey) SetPhysicalName(name string) { ik.rel.SetPhysicalName(name) }

// IsPopulated reports whether the relationship is populated.
func (ik *ImportedKey) IsPopulated() bool { return ik.rel.IsPopulated() }

// FKTable returns the table holding this key, or nil once detached.
func (ik *ImportedKey) FKTable() *Table {
	t, _ := ik.parent.(*Table)
	return t
}

// PKTable returns the referenced table.
func (ik *ImportedKey) PKTable() *Table { return ik.rel.PKTable() }

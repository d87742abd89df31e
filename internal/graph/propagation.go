package graph

import "log/slog"

// propagationListener keeps one relationship in step with its primary key
// table. It listens on every node below the table, follows the subtree as it
// grows and shrinks, and mirrors changes of mapped key columns onto their
// foreign key columns. Reactions never fail the change that triggered them.
type propagationListener struct {
	rel     *Relationship
	pkTable *Table
	fkTable *Table
	// open counts transactions begun on the FK table on behalf of the PK
	// table and not yet closed.
	open int
}

func newPropagationListener(r *Relationship) *propagationListener {
	return &propagationListener{rel: r, pkTable: r.PKTable(), fkTable: r.fkTable}
}

func (p *propagationListener) attach() {
	Walk(p.pkTable, func(n Node) bool {
		n.AddListener(p)
		return true
	})
}

func (p *propagationListener) detach() {
	Walk(p.pkTable, func(n Node) bool {
		n.RemoveListener(p)
		return true
	})
	for ; p.open > 0; p.open-- {
		p.fkTable.Commit()
	}
}

func (p *propagationListener) logger() *slog.Logger {
	return envOf(p.pkTable).Logger.With("relationship", p.rel.Name())
}

// mappedFK returns the foreign key column c is mapped onto, or nil when c is
// not a mapped column of the primary key table.
func (p *propagationListener) mappedFK(c *Column) *Column {
	if c == nil || c.Table() != p.pkTable {
		return nil
	}
	if m := p.rel.MappingFor(c); m != nil {
		return m.FKColumn()
	}
	return nil
}

// PropertyChanged mirrors property changes of mapped key columns.
func (p *propagationListener) PropertyChanged(e PropertyChange) {
	switch src := e.Source.(type) {
	case *Column:
		p.columnChanged(src, e)
	case *Index:
		if src == p.pkTable.primaryKey && e.Property == PropColumnOrder {
			p.rel.sortMappings()
		}
	case *CheckConstraint:
		p.checkChanged(src, e)
	case *Enumeration:
		p.enumChanged(src, e)
	}
}

func (p *propagationListener) columnChanged(c *Column, e PropertyChange) {
	fk := p.mappedFK(c)
	if fk == nil {
		return
	}
	switch e.Property {
	case PropName:
		if old, _ := e.Old.(string); fk.Name() == old {
			fk.SetName(c.Name())
		}
	case PropPhysicalName:
		if old, _ := e.Old.(string); fk.PhysicalName() == old {
			fk.SetPhysicalName(c.PhysicalName())
		}
	case PropTypeCode:
		fk.SetTypeCode(c.typeCode)
	case PropNativeType:
		fk.SetNativeType(c.nativeType)
	case PropUpstreamType:
		fk.SetUpstreamType(c.upstream)
	case PropPrecision:
		fk.SetPrecision(min(fk.precision, c.precision))
	case PropScale:
		fk.SetScale(min(fk.scale, c.scale))
	case PropNullable:
		fk.SetNullable(c.nullable)
	case PropDefault:
		fk.SetDefault(c.defaultValue)
	case PropAutoIncrement:
		fk.SetAutoIncrement(c.autoIncrement)
	case PropPosition, PropRemarks, PropRefCount, PropSequenceName:
	default:
		p.logger().Warn("ignoring change of unknown column property",
			"table", p.pkTable.Name(), "column", c.Name(), "property", e.Property)
	}
}

// fkTypeProperties returns the foreign key side counterpart of tp, or nil.
func (p *propagationListener) fkTypeProperties(tp *TypeProperties) *TypeProperties {
	if tp == nil {
		return nil
	}
	if fk := p.mappedFK(tp.Column()); fk != nil {
		return fk.TypePropertiesFor(tp.Name())
	}
	return nil
}

func (p *propagationListener) checkChanged(cc *CheckConstraint, e PropertyChange) {
	tp, _ := cc.parent.(*TypeProperties)
	fkTP := p.fkTypeProperties(tp)
	if fkTP == nil {
		return
	}
	old, _ := e.Old.(string)
	switch e.Property {
	case PropName:
		if x := fkTP.CheckConstraintByName(old); x != nil && x.condition == cc.condition {
			x.SetName(cc.Name())
		}
	case PropCondition:
		if x := fkTP.CheckConstraintByName(cc.Name()); x != nil && x.condition == old {
			x.SetCondition(cc.condition)
		}
	}
}

func (p *propagationListener) enumChanged(en *Enumeration, e PropertyChange) {
	if e.Property != PropName {
		return
	}
	tp, _ := en.parent.(*TypeProperties)
	fkTP := p.fkTypeProperties(tp)
	if fkTP == nil {
		return
	}
	old, _ := e.Old.(string)
	if x := fkTP.EnumerationByValue(old); x != nil && fkTP.EnumerationByValue(en.Name()) == nil {
		x.SetName(en.Name())
	}
}

// ChildAdded follows the subtree and maps columns that joined the key.
func (p *propagationListener) ChildAdded(e ChildEvent) {
	Walk(e.Child, func(n Node) bool {
		n.AddListener(p)
		return true
	})

	switch src := e.Source.(type) {
	case *Index:
		if ic, ok := e.Child.(*IndexColumn); ok && src == p.pkTable.primaryKey && ic.column != nil {
			p.rel.ensureInMapping(ic.column)
		}
	case *Column:
		tp, ok := e.Child.(*TypeProperties)
		fk := p.mappedFK(src)
		if !ok || fk == nil || fk.TypePropertiesFor(tp.Name()) != nil {
			return
		}
		if err := fk.AddTypeProperties(tp.clone()); err != nil {
			p.logger().Warn("could not mirror type properties", "column", fk.Name(), "error", err)
		}
	case *TypeProperties:
		fk := p.mappedFK(src.Column())
		if fk == nil {
			return
		}
		fkTP := fk.EnsureTypeProperties(src.Name())
		var err error
		switch x := e.Child.(type) {
		case *CheckConstraint:
			if fkTP.CheckConstraintByName(x.Name()) == nil {
				err = fkTP.AddCheckConstraint(NewCheckConstraint(x.Name(), x.condition))
			}
		case *Enumeration:
			if fkTP.EnumerationByValue(x.Name()) == nil {
				err = fkTP.AddEnumeration(NewEnumeration(x.Name()))
			}
		}
		if err != nil {
			p.logger().Warn("could not mirror type constraint", "column", fk.Name(), "error", err)
		}
	}
}

// ChildRemoved follows the subtree and unmaps columns that left the key.
func (p *propagationListener) ChildRemoved(e ChildEvent) {
	Walk(e.Child, func(n Node) bool {
		n.RemoveListener(p)
		return true
	})

	switch src := e.Source.(type) {
	case *Table:
		if c, ok := e.Child.(*Column); ok && src == p.pkTable {
			p.rel.ensureNotInMapping(c)
		}
	case *Index:
		if ic, ok := e.Child.(*IndexColumn); ok && src == p.pkTable.primaryKey && ic.column != nil {
			p.rel.ensureNotInMapping(ic.column)
		}
	case *Column:
		tp, ok := e.Child.(*TypeProperties)
		fk := p.mappedFK(src)
		if !ok || fk == nil {
			return
		}
		if x := fk.TypePropertiesFor(tp.Name()); x != nil {
			fk.RemoveTypeProperties(x)
		}
	case *TypeProperties:
		fkTP := p.fkTypeProperties(src)
		if fkTP == nil {
			return
		}
		switch x := e.Child.(type) {
		case *CheckConstraint:
			if y := fkTP.CheckConstraintByName(x.Name()); y != nil && y.condition == x.condition {
				fkTP.RemoveCheckConstraint(y)
			}
		case *Enumeration:
			if y := fkTP.EnumerationByValue(x.Name()); y != nil {
				fkTP.RemoveEnumeration(y)
			}
		}
	}
}

// Transactions on the primary key table are mirrored onto the foreign key
// table so that its listeners see the synchronized changes batched too.

// TransactionStarted opens a matching transaction on the foreign key table.
func (p *propagationListener) TransactionStarted(e TransactionEvent) {
	if e.Source != p.pkTable || p.fkTable == p.pkTable {
		return
	}
	p.open++
	p.fkTable.Begin(e.Message)
}

// TransactionEnded closes the matching transaction.
func (p *propagationListener) TransactionEnded(e TransactionEvent) {
	if e.Source != p.pkTable || p.open == 0 {
		return
	}
	p.open--
	if err := p.fkTable.Commit(); err != nil {
		p.logger().Warn("could not close mirrored transaction", "table", p.fkTable.Name(), "error", err)
	}
}

// TransactionRolledBack rolls back the matching transaction.
func (p *propagationListener) TransactionRolledBack(e TransactionEvent) {
	if e.Source != p.pkTable || p.open == 0 {
		return
	}
	p.open = 0
	p.fkTable.Rollback(e.Message)
}

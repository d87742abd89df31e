package graph

import (
	"fmt"
	"slices"
)

// TypeProperties hold the platform specific constraints of a column. The
// node's name is the platform it applies to.
type TypeProperties struct {
	nodeCore
	checks []*CheckConstraint
	enums  []*Enumeration
}

// NewTypeProperties creates empty properties for platform.
func NewTypeProperties(platform string) *TypeProperties {
	tp := &TypeProperties{}
	tp.init(tp, platform)
	tp.populated.Store(true)
	return tp
}

// Column returns the owning column, or nil.
func (tp *TypeProperties) Column() *Column {
	c, _ := tp.parent.(*Column)
	return c
}

// Children returns the check constraints, then the enumerations.
func (tp *TypeProperties) Children() []Node {
	out := make([]Node, 0, len(tp.checks)+len(tp.enums))
	for _, cc := range tp.checks {
		out = append(out, cc)
	}
	for _, e := range tp.enums {
		out = append(out, e)
	}
	return out
}

// CheckConstraints returns the check constraints.
func (tp *TypeProperties) CheckConstraints() []*CheckConstraint { return slices.Clone(tp.checks) }

// Enumerations returns the allowed values.
func (tp *TypeProperties) Enumerations() []*Enumeration { return slices.Clone(tp.enums) }

// CheckConstraintByName returns the named check constraint, or nil.
func (tp *TypeProperties) CheckConstraintByName(name string) *CheckConstraint {
	for _, cc := range tp.checks {
		if cc.Name() == name {
			return cc
		}
	}
	return nil
}

// EnumerationByValue returns the enumeration for value, or nil.
func (tp *TypeProperties) EnumerationByValue(value string) *Enumeration {
	for _, e := range tp.enums {
		if e.Name() == value {
			return e
		}
	}
	return nil
}

// AddCheckConstraint attaches cc, which must not have a parent yet.
func (tp *TypeProperties) AddCheckConstraint(cc *CheckConstraint) error {
	if cc.parent != nil {
		return fmt.Errorf("%w: check constraint %q already has a parent", ErrInvariant, cc.Name())
	}
	cc.parent = tp
	tp.checks = append(tp.checks, cc)
	tp.fireChildAdded(cc, len(tp.checks)-1)
	return nil
}

// RemoveCheckConstraint removes cc. It returns false when a listener vetoes
// the removal.
func (tp *TypeProperties) RemoveCheckConstraint(cc *CheckConstraint) (bool, error) {
	i := slices.Index(tp.checks, cc)
	if i < 0 {
		return false, fmt.Errorf("%w: check constraint %q, platform %q", ErrNotMember, cc.Name(), tp.Name())
	}
	if err := tp.proposeRemoval(cc, i); err != nil {
		vetoed(tp, cc, err)
		return false, nil
	}
	tp.checks = slices.Delete(tp.checks, i, i+1)
	cc.parent = nil
	tp.fireChildRemoved(cc, i)
	return true, nil
}

// AddEnumeration attaches e, which must not have a parent yet.
func (tp *TypeProperties) AddEnumeration(e *Enumeration) error {
	if e.parent != nil {
		return fmt.Errorf("%w: enumeration %q already has a parent", ErrInvariant, e.Name())
	}
	e.parent = tp
	tp.enums = append(tp.enums, e)
	tp.fireChildAdded(e, len(tp.enums)-1)
	return nil
}

// RemoveEnumeration removes e. It returns false when a listener vetoes the
// removal.
func (tp *TypeProperties) RemoveEnumeration(e *Enumeration) (bool, error) {
	i := slices.Index(tp.enums, e)
	if i < 0 {
		return false, fmt.Errorf("%w: enumeration %q, platform %q", ErrNotMember, e.Name(), tp.Name())
	}
	if err := tp.proposeRemoval(e, i); err != nil {
		vetoed(tp, e, err)
		return false, nil
	}
	tp.enums = slices.Delete(tp.enums, i, i+1)
	e.parent = nil
	tp.fireChildRemoved(e, i)
	return true, nil
}

func (tp *TypeProperties) clone() *TypeProperties {
	cp := NewTypeProperties(tp.Name())
	for _, cc := range tp.checks {
		x := NewCheckConstraint(cc.Name(), cc.condition)
		x.parent = cp
		cp.checks = append(cp.checks, x)
	}
	for _, e := range tp.enums {
		x := NewEnumeration(e.Name())
		x.parent = cp
		cp.enums = append(cp.enums, x)
	}
	return cp
}

// CheckConstraint is a named boolean condition on a column's values.
type CheckConstraint struct {
	nodeCore
	condition string
}

// NewCheckConstraint creates a named check constraint.
func NewCheckConstraint(name, condition string) *CheckConstraint {
	cc := &CheckConstraint{condition: condition}
	cc.init(cc, name)
	cc.populated.Store(true)
	return cc
}

// Condition returns the check expression.
func (cc *CheckConstraint) Condition() string { return cc.condition }

// SetCondition sets the check expression.
func (cc *CheckConstraint) SetCondition(s string) {
	setProp(&cc.nodeCore, &cc.condition, s, PropCondition)
}

// Enumeration is one permitted value of a column. Its name is the value.
type Enumeration struct {
	nodeCore
}

// NewEnumeration creates an allowed value. The value is the node name.
func NewEnumeration(value string) *Enumeration {
	e := &Enumeration{}
	e.init(e, value)
	e.populated.Store(true)
	return e
}

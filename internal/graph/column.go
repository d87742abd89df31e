package graph

import (
	"fmt"
	"slices"

	"github.com/faucetdb/schemagraph/internal/model"
)

// Column belongs to exactly one table. Its reference count records why it
// must keep existing: plain membership counts once, every relationship that
// maps onto it as a foreign key column counts once more, and a column
// fabricated for a mapping exists only for that mapping.
type Column struct {
	nodeCore
	typeCode      model.TypeCode
	nativeType    string
	upstream      *SQLType
	precision     int
	scale         int
	nullable      model.Nullability
	defaultValue  *string
	autoIncrement bool
	sequenceName  string
	remarks       string
	refCount      int
	typeProps     []*TypeProperties
}

// NewColumn creates an unattached, nullable column. See ColumnDefaults for
// blank columns.
func NewColumn(name string, code model.TypeCode, nativeType string, precision, scale int) *Column {
	c := &Column{
		typeCode:   code,
		nativeType: nativeType,
		precision:  precision,
		scale:      scale,
		nullable:   model.Nullable,
		refCount:   1,
	}
	c.init(c, name)
	c.populated.Store(true)
	return c
}

// Table returns the owning table, or nil for an unattached column.
func (c *Column) Table() *Table {
	t, _ := c.parent.(*Table)
	return t
}

// Position is the column's index within its table, or -1.
func (c *Column) Position() int {
	if t := c.Table(); t != nil {
		return t.columnIndex(c)
	}
	return -1
}

// IsPrimaryKey reports whether the table's primary key index references c.
func (c *Column) IsPrimaryKey() bool {
	t := c.Table()
	return t != nil && t.primaryKey.indexOf(c) >= 0
}

// TypeCode returns the generic type code of the column.
func (c *Column) TypeCode() model.TypeCode { return c.typeCode }

// NativeType returns the type name the database reports.
func (c *Column) NativeType() string { return c.nativeType }

// Precision returns the length or numeric precision.
func (c *Column) Precision() int { return c.precision }

// Scale returns the number of digits after the decimal point.
func (c *Column) Scale() int { return c.scale }

// Nullable returns whether the column accepts NULL, as far as the source knows.
func (c *Column) Nullable() model.Nullability { return c.nullable }

// AutoIncrement reports whether the database generates values for the column.
func (c *Column) AutoIncrement() bool { return c.autoIncrement }

// AutoIncrementSequenceName returns the sequence feeding an auto-increment
// column, if any.
func (c *Column) AutoIncrementSequenceName() string { return c.sequenceName }

// Remarks returns the column comment.
func (c *Column) Remarks() string { return c.remarks }

// ReferenceCount returns the number of holds on the column: one for a column
// added directly, plus one per mapping using it as a foreign key column. A
// column created for a mapping is held by that mapping alone.
func (c *Column) ReferenceCount() int { return c.refCount }

// UpstreamType returns the platform independent type bound to the column.
func (c *Column) UpstreamType() (SQLType, bool) {
	if c.upstream == nil {
		return SQLType{}, false
	}
	return *c.upstream, true
}

// Default returns the default value expression and whether one is set.
func (c *Column) Default() (string, bool) {
	if c.defaultValue == nil {
		return "", false
	}
	return *c.defaultValue, true
}

// SetTypeCode sets the generic type code.
func (c *Column) SetTypeCode(v model.TypeCode) { setProp(&c.nodeCore, &c.typeCode, v, PropTypeCode) }

// SetNativeType sets the database type name.
func (c *Column) SetNativeType(v string) { setProp(&c.nodeCore, &c.nativeType, v, PropNativeType) }

// SetPrecision sets the length or numeric precision.
func (c *Column) SetPrecision(v int) { setProp(&c.nodeCore, &c.precision, v, PropPrecision) }

// SetScale sets the numeric scale.
func (c *Column) SetScale(v int) { setProp(&c.nodeCore, &c.scale, v, PropScale) }

// SetNullable sets whether the column accepts NULL.
func (c *Column) SetNullable(v model.Nullability) { setProp(&c.nodeCore, &c.nullable, v, PropNullable) }

// SetAutoIncrement marks the column as generated by the database.
func (c *Column) SetAutoIncrement(v bool) { setProp(&c.nodeCore, &c.autoIncrement, v, PropAutoIncrement) }

// SetRemarks sets the column comment.
func (c *Column) SetRemarks(v string) { setProp(&c.nodeCore, &c.remarks, v, PropRemarks) }

// SetAutoIncrementSequenceName sets the sequence feeding the column.
func (c *Column) SetAutoIncrementSequenceName(v string) {
	setProp(&c.nodeCore, &c.sequenceName, v, PropSequenceName)
}

// SetUpstreamType binds t, or clears the binding when t is nil.
func (c *Column) SetUpstreamType(t *SQLType) {
	if c.upstream == nil && t == nil || c.upstream != nil && t != nil && *c.upstream == *t {
		return
	}
	old := c.upstream
	if t != nil {
		cp := *t
		t = &cp
	}
	c.upstream = t
	c.firePropertyChange(PropUpstreamType, old, t)
}

// SetDefault sets the default value expression; nil clears it.
func (c *Column) SetDefault(v *string) {
	if c.defaultValue == nil && v == nil || c.defaultValue != nil && v != nil && *c.defaultValue == *v {
		return
	}
	old := c.defaultValue
	if v != nil {
		s := *v
		v = &s
	}
	c.defaultValue = v
	c.firePropertyChange(PropDefault, old, v)
}

// Children returns the per-platform type properties.
func (c *Column) Children() []Node {
	out := make([]Node, len(c.typeProps))
	for i, tp := range c.typeProps {
		out[i] = tp
	}
	return out
}

// TypeProperties returns the type properties of every platform.
func (c *Column) TypeProperties() []*TypeProperties { return slices.Clone(c.typeProps) }

// TypePropertiesFor returns the properties for platform, or nil.
func (c *Column) TypePropertiesFor(platform string) *TypeProperties {
	for _, tp := range c.typeProps {
		if tp.Name() == platform {
			return tp
		}
	}
	return nil
}

// AddTypeProperties attaches the properties of one platform. A column holds
// at most one set per platform.
func (c *Column) AddTypeProperties(tp *TypeProperties) error {
	if tp.parent != nil {
		return fmt.Errorf("%w: type properties %q already belong to a column", ErrInvariant, tp.Name())
	}
	if c.TypePropertiesFor(tp.Name()) != nil {
		return fmt.Errorf("%w: column %q already has type properties for %q", ErrInvariant, c.Name(), tp.Name())
	}
	tp.parent = c
	c.typeProps = append(c.typeProps, tp)
	c.fireChildAdded(tp, len(c.typeProps)-1)
	return nil
}

// EnsureTypeProperties returns the properties for platform, creating them
// when missing.
func (c *Column) EnsureTypeProperties(platform string) *TypeProperties {
	if tp := c.TypePropertiesFor(platform); tp != nil {
		return tp
	}
	tp := NewTypeProperties(platform)
	c.AddTypeProperties(tp)
	return tp
}

// RemoveTypeProperties removes tp. It returns false when a listener vetoes the
// removal.
func (c *Column) RemoveTypeProperties(tp *TypeProperties) (bool, error) {
	i := slices.Index(c.typeProps, tp)
	if i < 0 {
		return false, fmt.Errorf("%w: type properties %q, column %q", ErrNotMember, tp.Name(), c.Name())
	}
	if err := c.proposeRemoval(tp, i); err != nil {
		vetoed(c, tp, err)
		return false, nil
	}
	c.typeProps = slices.Delete(c.typeProps, i, i+1)
	tp.parent = nil
	c.fireChildRemoved(tp, i)
	return true, nil
}

func (c *Column) addReference() {
	c.refCount++
	c.firePropertyChange(PropRefCount, c.refCount-1, c.refCount)
}

// removeReference drops one reference. The column leaves its table once
// nothing references it anymore.
func (c *Column) removeReference() {
	if c.refCount == 0 {
		envOf(c).Logger.Warn("reference count already zero", "column", c.Name())
		return
	}
	c.refCount--
	c.firePropertyChange(PropRefCount, c.refCount+1, c.refCount)
	if c.refCount == 0 {
		if t := c.Table(); t != nil {
			t.dropColumn(c)
		}
	}
}

// derive clones c under a new name for use as a foreign key column.
func (c *Column) derive(name string) *Column {
	d := NewColumn(name, c.typeCode, c.nativeType, c.precision, c.scale)
	if c.upstream != nil {
		t := *c.upstream
		d.upstream = &t
	}
	d.nullable = c.nullable
	if c.defaultValue != nil {
		s := *c.defaultValue
		d.defaultValue = &s
	}
	d.autoIncrement = c.autoIncrement
	d.sequenceName = c.sequenceName
	d.remarks = c.remarks
	for _, tp := range c.typeProps {
		cp := tp.clone()
		cp.parent = d
		d.typeProps = append(d.typeProps, cp)
	}
	return d
}

// Package inspect turns a schema graph into plain snapshot values that can be
// encoded as JSON or rendered as a text tree. Snapshots only read nodes that
// are already loaded; Expand loads them first.
//
// The graph is not safe for concurrent use, so snapshots must be taken on the
// goroutine that owns it (inside a Dispatcher task when one is in use).
package inspect

import (
	"cmp"

	"github.com/faucetdb/schemagraph/internal/graph"
)

// DatabaseView is the loaded part of a database graph. Exactly one of
// Catalogs, Schemas and Tables is non-empty once the database is populated.
type DatabaseView struct {
	Name         string            `json:"name"`
	Populated    bool              `json:"populated"`
	Inaccessible map[string]string `json:"inaccessible,omitempty"`
	Catalogs     []ContainerView   `json:"catalogs,omitempty"`
	Schemas      []ContainerView   `json:"schemas,omitempty"`
	Tables       []TableView       `json:"tables,omitempty"`
}

// ContainerView is a catalog or schema.
type ContainerView struct {
	Kind         string            `json:"kind"` // "catalog" or "schema"
	Name         string            `json:"name"`
	Populated    bool              `json:"populated"`
	Inaccessible map[string]string `json:"inaccessible,omitempty"`
	Schemas      []ContainerView   `json:"schemas,omitempty"`
	Tables       []TableView       `json:"tables,omitempty"`
}

// TableView describes a table. In a tree snapshot only the summary fields
// are set; Table fills in the rest.
type TableView struct {
	Catalog      string             `json:"catalog,omitempty"`
	Schema       string             `json:"schema,omitempty"`
	Name         string             `json:"name"`
	Type         string             `json:"type,omitempty"`
	Remarks      string             `json:"remarks,omitempty"`
	Populated    bool               `json:"populated"`
	Inaccessible map[string]string  `json:"inaccessible,omitempty"`
	Columns      []ColumnView       `json:"columns,omitempty"`
	PrimaryKey   *IndexView         `json:"primary_key,omitempty"`
	Indexes      []IndexView        `json:"indexes,omitempty"`
	ExportedKeys []RelationshipView `json:"exported_keys,omitempty"`
	ImportedKeys []RelationshipView `json:"imported_keys,omitempty"`
}

// ColumnView describes a column and its per-platform constraints.
type ColumnView struct {
	Name           string            `json:"name"`
	Position       int               `json:"position"`
	NativeType     string            `json:"native_type"`
	TypeCode       string            `json:"type_code"`
	UpstreamType   string            `json:"upstream_type,omitempty"`
	Precision      int               `json:"precision"`
	Scale          int               `json:"scale"`
	Nullable       string            `json:"nullable"`
	Default        *string           `json:"default,omitempty"`
	AutoIncrement  bool              `json:"auto_increment,omitempty"`
	PrimaryKey     bool              `json:"primary_key,omitempty"`
	ReferenceCount int               `json:"reference_count,omitempty"`
	Remarks        string            `json:"remarks,omitempty"`
	Constraints    []ConstraintsView `json:"constraints,omitempty"`
}

// ConstraintsView is the check constraints and enumerations of one platform.
type ConstraintsView struct {
	Platform     string            `json:"platform"`
	Checks       map[string]string `json:"checks,omitempty"`
	Enumerations []string          `json:"enumerations,omitempty"`
}

// IndexView describes an index.
type IndexView struct {
	Name       string            `json:"name"`
	PrimaryKey bool              `json:"primary_key,omitempty"`
	Unique     bool              `json:"unique,omitempty"`
	Clustered  bool              `json:"clustered,omitempty"`
	Type       string            `json:"type,omitempty"`
	Qualifier  string            `json:"qualifier,omitempty"`
	Filter     string            `json:"filter,omitempty"`
	Columns    []IndexColumnView `json:"columns"`
}

// IndexColumnView is one index entry: a column name or an expression.
type IndexColumnView struct {
	Name       string `json:"name"`
	Order      string `json:"order,omitempty"`
	Expression bool   `json:"expression,omitempty"`
}

// RelationshipView describes a foreign key from either end.
type RelationshipView struct {
	Name          string        `json:"name"`
	PKTable       string        `json:"pk_table"`
	FKTable       string        `json:"fk_table"`
	Identifying   bool          `json:"identifying,omitempty"`
	UpdateRule    string        `json:"update_rule"`
	DeleteRule    string        `json:"delete_rule"`
	Deferrability string        `json:"deferrability"`
	PKCardinality string        `json:"pk_cardinality"`
	FKCardinality string        `json:"fk_cardinality"`
	Mappings      []MappingView `json:"mappings"`
}

// MappingView pairs a referenced column with the referencing column.
type MappingView struct {
	PKColumn string `json:"pk_column"`
	FKColumn string `json:"fk_column"`
}

// Database snapshots the loaded containers and table summaries of db.
func Database(db *graph.Database) DatabaseView {
	v := DatabaseView{
		Name:         db.Name(),
		Populated:    db.IsPopulated(),
		Inaccessible: inaccessible(db, graph.CategoryChildren),
	}
	for _, c := range db.Catalogs() {
		v.Catalogs = append(v.Catalogs, catalogView(c))
	}
	for _, s := range db.Schemas() {
		v.Schemas = append(v.Schemas, schemaView(s))
	}
	for _, t := range db.Tables() {
		v.Tables = append(v.Tables, tableSummary(t))
	}
	return v
}

func catalogView(c *graph.Catalog) ContainerView {
	v := ContainerView{
		Kind:         "catalog",
		Name:         c.Name(),
		Populated:    c.IsPopulated(),
		Inaccessible: inaccessible(c, graph.CategoryChildren),
	}
	for _, s := range c.Schemas() {
		v.Schemas = append(v.Schemas, schemaView(s))
	}
	for _, t := range c.Tables() {
		v.Tables = append(v.Tables, tableSummary(t))
	}
	return v
}

func schemaView(s *graph.Schema) ContainerView {
	v := ContainerView{
		Kind:         "schema",
		Name:         s.Name(),
		Populated:    s.IsPopulated(),
		Inaccessible: inaccessible(s, graph.CategoryChildren),
	}
	for _, t := range s.Tables() {
		v.Tables = append(v.Tables, tableSummary(t))
	}
	return v
}

func tableSummary(t *graph.Table) TableView {
	catalog, schema := t.Qualifiers()
	return TableView{
		Catalog:   catalog,
		Schema:    schema,
		Name:      t.Name(),
		Type:      t.ObjectType(),
		Remarks:   t.Remarks(),
		Populated: t.IsPopulated(),
		Inaccessible: inaccessible(t, graph.CategoryColumns, graph.CategoryIndexes,
			graph.CategoryExportedKeys, graph.CategoryImportedKeys),
	}
}

// Table snapshots everything loaded for t.
func Table(t *graph.Table) TableView {
	v := tableSummary(t)
	for _, c := range t.Columns() {
		v.Columns = append(v.Columns, columnView(c))
	}
	if pk := t.PrimaryKey(); pk != nil && pk.Len() > 0 {
		iv := indexView(pk)
		v.PrimaryKey = &iv
	}
	for _, ix := range t.Indexes() {
		if ix.IsPrimaryKey() {
			continue
		}
		v.Indexes = append(v.Indexes, indexView(ix))
	}
	for _, r := range t.ExportedKeys() {
		v.ExportedKeys = append(v.ExportedKeys, relationshipView(r))
	}
	for _, ik := range t.ImportedKeys() {
		v.ImportedKeys = append(v.ImportedKeys, relationshipView(ik.Relationship()))
	}
	return v
}

func columnView(c *graph.Column) ColumnView {
	v := ColumnView{
		Name:           c.Name(),
		Position:       c.Position(),
		NativeType:     c.NativeType(),
		TypeCode:       c.TypeCode().String(),
		Precision:      c.Precision(),
		Scale:          c.Scale(),
		Nullable:       c.Nullable().String(),
		AutoIncrement:  c.AutoIncrement(),
		PrimaryKey:     c.IsPrimaryKey(),
		ReferenceCount: c.ReferenceCount(),
		Remarks:        c.Remarks(),
	}
	if up, ok := c.UpstreamType(); ok {
		v.UpstreamType = up.Name
	}
	if d, ok := c.Default(); ok {
		v.Default = &d
	}
	for _, tp := range c.TypeProperties() {
		cv := ConstraintsView{Platform: tp.Name()}
		for _, cc := range tp.CheckConstraints() {
			if cv.Checks == nil {
				cv.Checks = make(map[string]string)
			}
			cv.Checks[cc.Name()] = cc.Condition()
		}
		for _, e := range tp.Enumerations() {
			cv.Enumerations = append(cv.Enumerations, e.Name())
		}
		v.Constraints = append(v.Constraints, cv)
	}
	return v
}

func indexView(ix *graph.Index) IndexView {
	v := IndexView{
		Name:       ix.Name(),
		PrimaryKey: ix.IsPrimaryKey(),
		Unique:     ix.Unique(),
		Clustered:  ix.Clustered(),
		Type:       ix.IndexType(),
		Qualifier:  ix.Qualifier(),
		Filter:     ix.FilterCondition(),
		Columns:    []IndexColumnView{},
	}
	for _, ic := range ix.Columns() {
		v.Columns = append(v.Columns, IndexColumnView{
			Name:       ic.Name(),
			Order:      ic.SortOrder().String(),
			Expression: ic.IsExpression(),
		})
	}
	return v
}

func relationshipView(r *graph.Relationship) RelationshipView {
	v := RelationshipView{
		Name:          r.Name(),
		PKTable:       qualifiedName(r.PKTable()),
		FKTable:       qualifiedName(r.FKTable()),
		Identifying:   r.Identifying(),
		UpdateRule:    r.UpdateRule().String(),
		DeleteRule:    r.DeleteRule().String(),
		Deferrability: r.Deferrability().String(),
		PKCardinality: r.PKCardinality().String(),
		FKCardinality: r.FKCardinality().String(),
		Mappings:      []MappingView{},
	}
	for _, m := range r.Mappings() {
		mv := MappingView{}
		if pk := m.PKColumn(); pk != nil {
			mv.PKColumn = pk.Name()
		}
		if fk := m.FKColumn(); fk != nil {
			mv.FKColumn = fk.Name()
		}
		v.Mappings = append(v.Mappings, mv)
	}
	return v
}

// qualifiedName joins the non-empty qualifiers of t with dots.
func qualifiedName(t *graph.Table) string {
	if t == nil {
		return ""
	}
	catalog, schema := t.Qualifiers()
	name := t.Name()
	if schema != "" {
		name = schema + "." + name
	}
	if catalog != "" {
		name = catalog + "." + name
	}
	return name
}

// inaccessible collects the recorded load failures of n for the given
// categories, or nil when there are none.
func inaccessible(n graph.Node, categories ...graph.Category) map[string]string {
	var out map[string]string
	for _, cat := range categories {
		err := n.Inaccessible(cat)
		if err == nil {
			continue
		}
		if out == nil {
			out = make(map[string]string)
		}
		out[string(cat)] = cmp.Or(err.Error(), "inaccessible")
	}
	return out
}

// AllTables returns every table of the view in tree order, whatever its
// catalog and schema.
func (v DatabaseView) AllTables() []TableView {
	var out []TableView
	var walk func(cs []ContainerView)
	walk = func(cs []ContainerView) {
		for _, c := range cs {
			walk(c.Schemas)
			out = append(out, c.Tables...)
		}
	}
	walk(v.Catalogs)
	walk(v.Schemas)
	return append(out, v.Tables...)
}

// Tables snapshots every table already created under db, in tree order.
func Tables(db *graph.Database) []TableView {
	var out []TableView
	add := func(ts []*graph.Table) {
		for _, t := range ts {
			out = append(out, Table(t))
		}
	}
	for _, c := range db.Catalogs() {
		for _, s := range c.Schemas() {
			add(s.Tables())
		}
		add(c.Tables())
	}
	for _, s := range db.Schemas() {
		add(s.Tables())
	}
	add(db.Tables())
	return out
}

package openapi

import (
	"fmt"
	"slices"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/faucetdb/schemagraph/internal/inspect"
	"github.com/faucetdb/schemagraph/internal/model"
)

// Generate builds an OpenAPI 3.1 document whose component schemas describe
// the rows of every table in tables. The document has no paths; it exists so
// that code generators and validators can consume the reverse engineered
// structure.
//
// Each table schema carries x-primary-key with its key columns, and every
// column that takes part in an imported foreign key carries x-references
// naming the referenced table and column.
func Generate(source, driver string, tables []inspect.TableView) *openapi3.T {
	doc := &openapi3.T{
		OpenAPI: "3.1.0",
		Info: &openapi3.Info{
			Title:       fmt.Sprintf("%s schema", source),
			Description: fmt.Sprintf("Row schemas reverse engineered from %s (%s).", source, driver),
			Version:     "1.0.0",
		},
		Paths: openapi3.NewPaths(),
	}
	components := openapi3.NewComponents()
	components.Schemas = openapi3.Schemas{}
	doc.Components = &components

	for _, t := range tables {
		doc.Components.Schemas[SchemaName(t)] = tableSchema(t)
	}
	return doc
}

// SchemaName returns the component name of a table: its qualified name in
// PascalCase parts joined by underscores.
func SchemaName(t inspect.TableView) string {
	var parts []string
	for _, p := range []string{t.Catalog, t.Schema, t.Name} {
		if p != "" {
			parts = append(parts, capitalize(p))
		}
	}
	var b strings.Builder
	for _, r := range strings.Join(parts, "_") {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}

func tableSchema(t inspect.TableView) *openapi3.SchemaRef {
	refs := references(t)
	s := &openapi3.Schema{
		Type:        &openapi3.Types{"object"},
		Title:       t.Name,
		Description: t.Remarks,
		Properties:  openapi3.Schemas{},
		Extensions:  map[string]any{},
	}
	for _, c := range t.Columns {
		s.Properties[c.Name] = &openapi3.SchemaRef{Value: columnSchema(c, refs[c.Name])}
		// Columns the database fills in are not required from a writer.
		if c.Nullable == model.NoNulls.String() && c.Default == nil && !c.AutoIncrement {
			s.Required = append(s.Required, c.Name)
		}
	}
	if t.PrimaryKey != nil {
		var cols []string
		for _, c := range t.PrimaryKey.Columns {
			cols = append(cols, c.Name)
		}
		s.Extensions["x-primary-key"] = cols
	}
	if t.Type != "" {
		s.Extensions["x-table-type"] = t.Type
	}
	return &openapi3.SchemaRef{Value: s}
}

func columnSchema(c inspect.ColumnView, refs []string) *openapi3.Schema {
	code := model.ParseTypeCode(c.TypeCode)
	m := MapType(code, c.NativeType)
	s := &openapi3.Schema{
		Type:        &openapi3.Types{m.Type},
		Format:      m.Format,
		Description: c.Remarks,
		Nullable:    c.Nullable != model.NoNulls.String(),
		ReadOnly:    c.AutoIncrement,
	}
	if m.Type == "array" {
		s.Items = &openapi3.SchemaRef{Value: &openapi3.Schema{}}
	}
	if hasLength(code) && c.Precision > 0 {
		ml := uint64(c.Precision)
		s.MaxLength = &ml
	}
	for _, cons := range c.Constraints {
		for _, e := range cons.Enumerations {
			if !slices.Contains(s.Enum, any(e)) {
				s.Enum = append(s.Enum, e)
			}
		}
	}
	s.Extensions = map[string]any{"x-native-type": c.NativeType}
	if len(refs) > 0 {
		s.Extensions["x-references"] = refs
	}
	return s
}

// references maps each foreign key column of t to the "table.column" values
// it references.
func references(t inspect.TableView) map[string][]string {
	refs := make(map[string][]string)
	for _, r := range t.ImportedKeys {
		for _, m := range r.Mappings {
			refs[m.FKColumn] = append(refs[m.FKColumn], r.PKTable+"."+m.PKColumn)
		}
	}
	return refs
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

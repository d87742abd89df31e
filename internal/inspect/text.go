package inspect

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
)

// WriteTree renders a database snapshot as an indented tree.
func WriteTree(w io.Writer, v DatabaseView) error {
	p := &printer{w: w}
	p.line(0, "%s%s", v.Name, stateSuffix(v.Populated, v.Inaccessible))
	for _, c := range v.Catalogs {
		p.container(1, c)
	}
	for _, s := range v.Schemas {
		p.container(1, s)
	}
	for _, t := range v.Tables {
		p.tableLine(1, t)
	}
	return p.err
}

// WriteTable renders a table snapshot with its columns, indexes and keys.
func WriteTable(w io.Writer, v TableView) error {
	p := &printer{w: w}
	p.tableLine(0, v)
	if v.Remarks != "" {
		p.line(1, "-- %s", v.Remarks)
	}
	if len(v.Columns) > 0 {
		p.line(1, "columns:")
		for _, c := range v.Columns {
			p.column(2, c)
		}
	}
	if v.PrimaryKey != nil {
		p.line(1, "primary key %s (%s)", v.PrimaryKey.Name, indexColumns(v.PrimaryKey.Columns))
	}
	if len(v.Indexes) > 0 {
		p.line(1, "indexes:")
		for _, ix := range v.Indexes {
			p.index(2, ix)
		}
	}
	if len(v.ImportedKeys) > 0 {
		p.line(1, "imported keys:")
		for _, r := range v.ImportedKeys {
			p.relationship(2, r, r.PKTable)
		}
	}
	if len(v.ExportedKeys) > 0 {
		p.line(1, "exported keys:")
		for _, r := range v.ExportedKeys {
			p.relationship(2, r, r.FKTable)
		}
	}
	return p.err
}

type printer struct {
	w   io.Writer
	err error
}

func (p *printer) line(depth int, format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, strings.Repeat("  ", depth)+format+"\n", args...)
}

func (p *printer) container(depth int, c ContainerView) {
	p.line(depth, "%s %s%s", c.Kind, c.Name, stateSuffix(c.Populated, c.Inaccessible))
	for _, s := range c.Schemas {
		p.container(depth+1, s)
	}
	for _, t := range c.Tables {
		p.tableLine(depth+1, t)
	}
}

func (p *printer) tableLine(depth int, t TableView) {
	kind := strings.ToLower(t.Type)
	if kind == "" {
		kind = "table"
	}
	p.line(depth, "%s %s%s", kind, t.Name, stateSuffix(t.Populated, t.Inaccessible))
}

func (p *printer) column(depth int, c ColumnView) {
	var b strings.Builder
	fmt.Fprintf(&b, "%-3d %s %s", c.Position, c.Name, columnType(c))
	if c.Nullable == "not null" {
		b.WriteString(" NOT NULL")
	}
	if c.Default != nil {
		fmt.Fprintf(&b, " DEFAULT %s", *c.Default)
	}
	if c.AutoIncrement {
		b.WriteString(" AUTO_INCREMENT")
	}
	if c.PrimaryKey {
		b.WriteString(" [pk]")
	}
	if c.ReferenceCount > 1 {
		fmt.Fprintf(&b, " [refs %d]", c.ReferenceCount)
	}
	if c.UpstreamType != "" {
		fmt.Fprintf(&b, " -> %s", c.UpstreamType)
	}
	if c.Remarks != "" {
		fmt.Fprintf(&b, " -- %s", c.Remarks)
	}
	p.line(depth, "%s", b.String())
	for _, cv := range c.Constraints {
		for _, name := range sortedKeys(cv.Checks) {
			p.line(depth+1, "%s check %s: %s", cv.Platform, name, cv.Checks[name])
		}
		if len(cv.Enumerations) > 0 {
			p.line(depth+1, "%s enum: %s", cv.Platform, strings.Join(cv.Enumerations, ", "))
		}
	}
}

func columnType(c ColumnView) string {
	switch {
	case c.Precision > 0 && c.Scale > 0:
		return fmt.Sprintf("%s(%d,%d)", c.NativeType, c.Precision, c.Scale)
	case c.Precision > 0:
		return fmt.Sprintf("%s(%d)", c.NativeType, c.Precision)
	}
	return c.NativeType
}

func (p *printer) index(depth int, ix IndexView) {
	var flags []string
	if ix.Unique {
		flags = append(flags, "unique")
	}
	if ix.Clustered {
		flags = append(flags, "clustered")
	}
	if ix.Type != "" {
		flags = append(flags, strings.ToLower(ix.Type))
	}
	s := fmt.Sprintf("%s (%s)", ix.Name, indexColumns(ix.Columns))
	if len(flags) > 0 {
		s += " " + strings.Join(flags, " ")
	}
	if ix.Filter != "" {
		s += " WHERE " + ix.Filter
	}
	p.line(depth, "%s", s)
}

func indexColumns(cols []IndexColumnView) string {
	parts := make([]string, 0, len(cols))
	for _, c := range cols {
		s := c.Name
		if c.Order != "" {
			s += " " + c.Order
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, ", ")
}

func (p *printer) relationship(depth int, r RelationshipView, other string) {
	pairs := make([]string, 0, len(r.Mappings))
	for _, m := range r.Mappings {
		pairs = append(pairs, m.PKColumn+" -> "+m.FKColumn)
	}
	ident := ""
	if r.Identifying {
		ident = " identifying"
	}
	p.line(depth, "%s %s (%s) %s:%s on update %s on delete %s%s",
		r.Name, other, strings.Join(pairs, ", "), r.PKCardinality, r.FKCardinality,
		r.UpdateRule, r.DeleteRule, ident)
}

func stateSuffix(populated bool, inaccessible map[string]string) string {
	var s string
	if !populated {
		s = " (not loaded)"
	}
	for _, cat := range sortedKeys(inaccessible) {
		s += fmt.Sprintf(" [%s inaccessible: %s]", cat, inaccessible[cat])
	}
	return s
}

func sortedKeys(m map[string]string) []string {
	return slices.Sorted(maps.Keys(m))
}

package model

import "strings"

// Nullability describes whether a column accepts NULL. Values follow the
// JDBC columnNoNulls / columnNullable / columnNullableUnknown codes.
type Nullability int

const (
	NoNulls         Nullability = 0
	Nullable        Nullability = 1
	NullableUnknown Nullability = 2
)

// ParseNullability interprets the YES/NO/Y/N strings used by
// information_schema style catalogs.
func ParseNullability(s string) Nullability {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "YES", "Y", "TRUE", "1":
		return Nullable
	case "NO", "N", "FALSE", "0":
		return NoNulls
	default:
		return NullableUnknown
	}
}

func (n Nullability) String() string {
	switch n {
	case NoNulls:
		return "not null"
	case Nullable:
		return "null"
	default:
		return "unknown"
	}
}

// Rule is a foreign key update or delete rule. Values follow the JDBC
// importedKey* constants.
type Rule int

const (
	RuleCascade    Rule = 0
	RuleRestrict   Rule = 1
	RuleSetNull    Rule = 2
	RuleNoAction   Rule = 3
	RuleSetDefault Rule = 4
)

// ParseRule maps referential action text ("CASCADE", "SET NULL", ...) to a Rule.
// Unknown text maps to RuleNoAction, the SQL standard default.
func ParseRule(s string) Rule {
	switch strings.ToUpper(strings.TrimSpace(strings.ReplaceAll(s, "_", " "))) {
	case "CASCADE":
		return RuleCascade
	case "RESTRICT":
		return RuleRestrict
	case "SET NULL":
		return RuleSetNull
	case "SET DEFAULT":
		return RuleSetDefault
	default:
		return RuleNoAction
	}
}

func (r Rule) String() string {
	switch r {
	case RuleCascade:
		return "CASCADE"
	case RuleRestrict:
		return "RESTRICT"
	case RuleSetNull:
		return "SET NULL"
	case RuleSetDefault:
		return "SET DEFAULT"
	default:
		return "NO ACTION"
	}
}

// Deferrability is the constraint checking mode of a foreign key. Values
// follow the JDBC importedKey* deferrability constants.
type Deferrability int

const (
	InitiallyDeferred  Deferrability = 5
	InitiallyImmediate Deferrability = 6
	NotDeferrable      Deferrability = 7
)

// ParseDeferrability combines the DEFERRABLE and INITIALLY DEFERRED flags
// reported by most catalogs.
func ParseDeferrability(deferrable, initiallyDeferred string) Deferrability {
	if ParseNullability(deferrable) != Nullable && !strings.EqualFold(strings.TrimSpace(deferrable), "DEFERRABLE") {
		return NotDeferrable
	}
	if ParseNullability(initiallyDeferred) == Nullable || strings.EqualFold(strings.TrimSpace(initiallyDeferred), "DEFERRED") {
		return InitiallyDeferred
	}
	return InitiallyImmediate
}

func (d Deferrability) String() string {
	switch d {
	case InitiallyDeferred:
		return "INITIALLY DEFERRED"
	case InitiallyImmediate:
		return "INITIALLY IMMEDIATE"
	default:
		return "NOT DEFERRABLE"
	}
}

// SortOrder is the direction of a column within an index.
type SortOrder int

const (
	SortUnspecified SortOrder = iota
	SortAscending
	SortDescending
)

// ParseSortOrder understands the A/D and ASC/DESC spellings.
func ParseSortOrder(s string) SortOrder {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "A", "ASC":
		return SortAscending
	case "D", "DESC":
		return SortDescending
	default:
		return SortUnspecified
	}
}

func (o SortOrder) String() string {
	switch o {
	case SortAscending:
		return "ASC"
	case SortDescending:
		return "DESC"
	default:
		return ""
	}
}

// TableInfo describes one table reported by a metadata source.
type TableInfo struct {
	Name    string `db:"table_name" json:"name"`
	Remarks string `db:"remarks" json:"remarks,omitempty"`
	Type    string `db:"table_type" json:"type"` // TABLE, VIEW, ...
}

// ColumnInfo describes one column reported by a metadata source.
type ColumnInfo struct {
	Table         string      `json:"table"`
	Name          string      `json:"name"`
	Position      int         `json:"position"`
	TypeCode      TypeCode    `json:"type_code"`
	NativeType    string      `json:"native_type"`
	Precision     int         `json:"precision"`
	Scale         int         `json:"scale"`
	Nullable      Nullability `json:"nullable"`
	Default       *string     `json:"default,omitempty"`
	AutoIncrement bool        `json:"auto_increment"`
	Remarks       string      `json:"remarks,omitempty"`
}

// IndexColumnInfo is one entry of an index. When Expression is true, Name
// holds the expression text rather than a column name.
type IndexColumnInfo struct {
	Name       string    `json:"name"`
	Ordinal    int       `json:"ordinal"`
	Order      SortOrder `json:"order"`
	Expression bool      `json:"expression,omitempty"`
}

// IndexInfo describes an index reported by a metadata source. At most one
// index per table has PrimaryKey set.
type IndexInfo struct {
	Name       string            `json:"name"`
	Unique     bool              `json:"unique"`
	PrimaryKey bool              `json:"primary_key"`
	Clustered  bool              `json:"clustered"`
	Qualifier  string            `json:"qualifier,omitempty"`
	Type       string            `json:"type,omitempty"`
	Filter     string            `json:"filter,omitempty"`
	Columns    []IndexColumnInfo `json:"columns"`
}

// KeyInfo is one column pair of a foreign key constraint. A multi-column
// key is reported as several KeyInfo values sharing Name, ordered by Seq.
type KeyInfo struct {
	Name          string        `json:"name"`
	PKCatalog     string        `json:"pk_catalog,omitempty"`
	PKSchema      string        `json:"pk_schema,omitempty"`
	PKTable       string        `json:"pk_table"`
	PKColumn      string        `json:"pk_column"`
	FKCatalog     string        `json:"fk_catalog,omitempty"`
	FKSchema      string        `json:"fk_schema,omitempty"`
	FKTable       string        `json:"fk_table"`
	FKColumn      string        `json:"fk_column"`
	Seq           int           `json:"seq"`
	UpdateRule    Rule          `json:"update_rule"`
	DeleteRule    Rule          `json:"delete_rule"`
	Deferrability Deferrability `json:"deferrability"`
}

package graph

import (
	"log/slog"

	"github.com/faucetdb/schemagraph/internal/model"
)

// ColumnDefaults describes the column handed out for a blank "new column"
// request. It is passed explicitly to column factories instead of living in
// package state.
type ColumnDefaults struct {
	NamePrefix    string
	TypeName      string
	TypeCode      model.TypeCode
	Precision     int
	Scale         int
	Nullable      model.Nullability
	AutoIncrement bool
}

// DefaultColumnDefaults returns the built-in defaults: a nullable VARCHAR(10).
func DefaultColumnDefaults() ColumnDefaults {
	return ColumnDefaults{
		NamePrefix: "new_column",
		TypeName:   "VARCHAR",
		TypeCode:   model.TypeVarchar,
		Precision:  10,
		Nullable:   model.Nullable,
	}
}

// NewColumn creates an unattached column using these defaults. An empty name
// falls back to NamePrefix.
func (d ColumnDefaults) NewColumn(name string) *Column {
	if name == "" {
		name = d.NamePrefix
	}
	c := NewColumn(name, d.TypeCode, d.TypeName, d.Precision, d.Scale)
	c.nullable = d.Nullable
	c.autoIncrement = d.AutoIncrement
	return c
}

// Env carries the collaborators shared by every node of one database graph.
type Env struct {
	Logger     *slog.Logger
	Dispatcher Dispatcher
	Defaults   ColumnDefaults
	Types      *TypeRegistry
	Chooser    TypeChooser
}

// normalized fills unset collaborators with their headless defaults.
func (e Env) normalized() *Env {
	if e.Logger == nil {
		e.Logger = slog.Default()
	}
	if e.Dispatcher == nil {
		e.Dispatcher = Inline{}
	}
	if e.Defaults.TypeName == "" {
		e.Defaults = DefaultColumnDefaults()
	}
	if e.Chooser == nil {
		e.Chooser = FirstCandidate{}
	}
	return &e
}

// envOf resolves the Env of the database n belongs to.
func envOf(n Node) *Env {
	if db := databaseOf(n); db != nil {
		return db.env
	}
	return Env{}.normalized()
}

func databaseOf(n Node) *Database {
	for cur := n; cur != nil; cur = cur.Parent() {
		if db, ok := cur.(*Database); ok {
			return db
		}
	}
	return nil
}

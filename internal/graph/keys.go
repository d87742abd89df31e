package graph

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/faucetdb/schemagraph/internal/model"
)

// foreignKey is one constraint assembled from its per-column KeyInfo rows.
type foreignKey struct {
	catalog, schema, table string
	name                   string
	rows                   []model.KeyInfo
}

// groupKeys assembles constraints from the rows a source reports, keeping the
// order in which constraints first appear and sorting columns by key sequence.
// Empty FK qualifiers default to the given ones.
func groupKeys(rows []model.KeyInfo, catalog, schema string) []*foreignKey {
	var out []*foreignKey
	byKey := make(map[[4]string]*foreignKey)
	for _, row := range rows {
		fk := &foreignKey{
			catalog: cmp.Or(row.FKCatalog, catalog),
			schema:  cmp.Or(row.FKSchema, schema),
			table:   row.FKTable,
			name:    row.Name,
		}
		key := [4]string{fk.catalog, fk.schema, fk.table, fk.name}
		if have, ok := byKey[key]; ok {
			fk = have
		} else {
			byKey[key] = fk
			out = append(out, fk)
		}
		fk.rows = append(fk.rows, row)
	}
	for _, fk := range out {
		slices.SortStableFunc(fk.rows, func(a, b model.KeyInfo) int { return a.Seq - b.Seq })
	}
	return out
}

// PopulateExportedKeys loads the relationships that reference t. The foreign
// key tables are looked up in the database and get their columns and indexes
// populated before any relationship is built. Constraints pointing at tables
// outside the graph are skipped.
func (t *Table) PopulateExportedKeys(ctx context.Context) error {
	return runPopulate(ctx, t, CategoryExportedKeys, &t.exportedDone, &t.exportedGuard,
		func(ctx context.Context) (applyFunc, error) {
			if err := t.PopulateIndexes(ctx); err != nil {
				return nil, err
			}
			src := sourceOf(t)
			db := databaseOf(t)
			if src == nil || db == nil {
				return nil, nil
			}
			catalog, schema := t.Qualifiers()
			rows, err := src.ExportedKeys(ctx, catalog, schema, t.PhysicalName())
			if err != nil {
				return nil, fmt.Errorf("list exported keys: %w", err)
			}

			type plan struct {
				fk    *foreignKey
				table *Table
			}
			var plans []plan
			for _, fk := range groupKeys(rows, catalog, schema) {
				fkTable, err := db.FindTable(ctx, fk.catalog, fk.schema, fk.table)
				if errors.Is(err, ErrTableNotFound) {
					envOf(t).Logger.Warn("skipping foreign key to unknown table",
						"relationship", fk.name, "table", t.Name(), "fk_table", fk.table)
					continue
				}
				if err != nil {
					return nil, err
				}
				if err := fkTable.PopulateIndexes(ctx); err != nil {
					return nil, err
				}
				plans = append(plans, plan{fk: fk, table: fkTable})
			}

			return func() ([]func(), error) {
				type built struct {
					r     *Relationship
					table *Table
				}
				var todo []built
				for _, p := range plans {
					r, err := t.relationshipFrom(p.fk, p.table)
					if err != nil {
						return nil, err
					}
					if r != nil {
						todo = append(todo, built{r, p.table})
					}
				}

				var events []func()
				for _, b := range todo {
					r, fkTable := b.r, b.table
					r.parent = t
					r.fkTable = fkTable
					r.attached = true
					for _, m := range r.mappings {
						c := m.FKColumn()
						c.refCount++
						m.realized = true
					}
					inKey := 0
					for _, m := range r.mappings {
						if m.FKColumn().IsPrimaryKey() {
							inKey++
						}
					}
					r.identifying = inKey > 0 && inKey == len(r.mappings) && t != fkTable
					if inKey > 0 && !r.identifying {
						// The database allows a key that only partly overlaps
						// the referencing columns; keep it as loaded.
						envOf(t).Logger.Debug("non-identifying foreign key maps primary key columns",
							"relationship", r.Name(), "fk_table", fkTable.Name(),
							"key_columns", inKey, "columns", len(r.mappings))
					}

					t.exported = append(t.exported, r)
					events = append(events, added(t, r, len(t.exported)-1))
					ik := r.importedKey
					ik.parent = fkTable
					fkTable.imported = append(fkTable.imported, ik)
					events = append(events, added(fkTable, ik, len(fkTable.imported)-1))

					r.propagator = newPropagationListener(r)
					r.propagator.attach()
				}
				return events, nil
			}, nil
		})
}

// relationshipFrom validates a loaded constraint and builds its unattached
// relationship. It returns nil when the relationship is already present.
func (t *Table) relationshipFrom(fk *foreignKey, fkTable *Table) (*Relationship, error) {
	name := fk.name
	if name == "" {
		name = t.Name() + "_" + fkTable.Name() + "_fk"
	}
	for _, r := range t.exported {
		if r.Name() == name && r.fkTable == fkTable {
			return nil, nil
		}
	}

	first := fk.rows[0]
	r := NewRelationship(name)
	r.updateRule = first.UpdateRule
	r.deleteRule = first.DeleteRule
	r.deferrability = first.Deferrability
	for _, row := range fk.rows {
		pkCol := t.columnByPhysicalName(row.PKColumn)
		if pkCol == nil {
			return nil, fmt.Errorf("%w: relationship %q, primary key column %q", ErrMissingMappingColumn, name, row.PKColumn)
		}
		if fkTable.columnByPhysicalName(row.FKColumn) == nil {
			return nil, fmt.Errorf("%w: relationship %q, foreign key column %q", ErrMissingMappingColumn, name, row.FKColumn)
		}
		m := newPendingMapping(pkCol, row.FKColumn)
		m.parent = r
		r.mappings = append(r.mappings, m)
	}
	// Pending names resolve against the FK table once the relationship is
	// linked; resolve now so apply never sees a nil column.
	for _, m := range r.mappings {
		m.fkColumn = fkTable.columnByPhysicalName(m.fkColumnName)
	}
	return r, nil
}

// PopulateImportedKeys loads the keys t holds by populating the exported keys
// of every table t references.
func (t *Table) PopulateImportedKeys(ctx context.Context) error {
	return runPopulate(ctx, t, CategoryImportedKeys, &t.importedDone, &t.importedGuard,
		func(ctx context.Context) (applyFunc, error) {
			if err := t.PopulateIndexes(ctx); err != nil {
				return nil, err
			}
			src := sourceOf(t)
			db := databaseOf(t)
			if src == nil || db == nil {
				return nil, nil
			}
			catalog, schema := t.Qualifiers()
			rows, err := src.ImportedKeys(ctx, catalog, schema, t.PhysicalName())
			if err != nil {
				return nil, fmt.Errorf("list imported keys: %w", err)
			}

			seen := make(map[[3]string]bool)
			for _, row := range rows {
				key := [3]string{cmp.Or(row.PKCatalog, catalog), cmp.Or(row.PKSchema, schema), row.PKTable}
				if seen[key] {
					continue
				}
				seen[key] = true
				pkTable, err := db.FindTable(ctx, key[0], key[1], key[2])
				if errors.Is(err, ErrTableNotFound) {
					envOf(t).Logger.Warn("skipping foreign key from unknown table",
						"table", t.Name(), "pk_table", row.PKTable)
					continue
				}
				if err != nil {
					return nil, err
				}
				if err := pkTable.PopulateExportedKeys(ctx); err != nil {
					return nil, err
				}
			}
			return nil, nil
		})
}

package sqlite

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/faucetdb/schemagraph/internal/model"
)

// tableInfoRow holds a row from pragma_table_info joined with its table name.
type tableInfoRow struct {
	Table   string  `db:"table_name"`
	CID     int     `db:"cid"`
	Name    string  `db:"name"`
	Type    string  `db:"type"`
	NotNull int     `db:"notnull"`
	Default *string `db:"dflt_value"`
	PK      int     `db:"pk"`
}

// foreignKeyRow holds a row from pragma_foreign_key_list joined with the
// name of the table declaring the key.
type foreignKeyRow struct {
	FKTable  string  `db:"fk_table"`
	ID       int     `db:"id"`
	Seq      int     `db:"seq"`
	Table    string  `db:"table"`
	From     string  `db:"from"`
	To       *string `db:"to"`
	OnUpdate string  `db:"on_update"`
	OnDelete string  `db:"on_delete"`
	Match    string  `db:"match"`
}

// indexListRow holds a row from pragma_index_list.
type indexListRow struct {
	Seq     int    `db:"seq"`
	Name    string `db:"name"`
	Unique  int    `db:"unique"`
	Origin  string `db:"origin"`
	Partial int    `db:"partial"`
}

// indexInfoRow holds a key row from pragma_index_xinfo. CID is -2 for an
// expression and -1 for the rowid.
type indexInfoRow struct {
	SeqNo int     `db:"seqno"`
	CID   int     `db:"cid"`
	Name  *string `db:"name"`
	Desc  int     `db:"desc"`
	Key   int     `db:"key"`
}

// Catalogs is always empty for SQLite.
func (c *SQLiteConnector) Catalogs(_ context.Context) ([]string, error) {
	return nil, nil
}

// Schemas is always empty for SQLite; attached databases are not reported.
func (c *SQLiteConnector) Schemas(_ context.Context, _ string) ([]string, error) {
	return nil, nil
}

// Tables lists the tables and views in sqlite_master.
func (c *SQLiteConnector) Tables(ctx context.Context, _, _ string) ([]model.TableInfo, error) {
	const query = `SELECT name AS table_name, '' AS remarks, UPPER(type) AS table_type
		FROM sqlite_master
		WHERE type IN ('table', 'view') AND name NOT LIKE 'sqlite_%'
		ORDER BY name`

	var tables []model.TableInfo
	if err := c.db.SelectContext(ctx, &tables, query); err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	return tables, nil
}

// Columns lists the columns of table, or of every table when table is empty.
func (c *SQLiteConnector) Columns(ctx context.Context, _, _, table string) ([]model.ColumnInfo, error) {
	query := `SELECT m.name AS table_name, p.cid, p.name, p.type, p."notnull", p.dflt_value, p.pk
		FROM sqlite_master m
		JOIN pragma_table_info(m.name) p
		WHERE m.type IN ('table', 'view') AND m.name NOT LIKE 'sqlite_%'`
	var args []any
	if table != "" {
		query += ` AND m.name = ?`
		args = append(args, table)
	}
	query += ` ORDER BY m.name, p.cid`

	var rows []tableInfoRow
	if err := c.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list columns: %w", err)
	}

	// A lone INTEGER PRIMARY KEY aliases the rowid and is assigned automatically.
	pkCount := make(map[string]int)
	for _, r := range rows {
		if r.PK > 0 {
			pkCount[r.Table]++
		}
	}

	out := make([]model.ColumnInfo, len(rows))
	for i, r := range rows {
		native, precision, scale := parseDeclaredType(r.Type)
		info := model.ColumnInfo{
			Table:      r.Table,
			Name:       r.Name,
			Position:   r.CID + 1,
			NativeType: native,
			TypeCode:   affinityType(native),
			Precision:  precision,
			Scale:      scale,
			Nullable:   model.Nullable,
			Default:    r.Default,
		}
		if r.NotNull != 0 {
			info.Nullable = model.NoNulls
		}
		if r.PK > 0 && pkCount[r.Table] == 1 && native == "INTEGER" {
			info.AutoIncrement = true
			info.Nullable = model.NoNulls
		}
		out[i] = info
	}
	return out, nil
}

// Indexes lists the indexes of table. A rowid table whose key is an INTEGER
// PRIMARY KEY has no backing index; one is reported from the key columns so
// that every table with a key has a primary key index.
func (c *SQLiteConnector) Indexes(ctx context.Context, _, _, table string) ([]model.IndexInfo, error) {
	var list []indexListRow
	if err := c.db.SelectContext(ctx, &list,
		`SELECT seq, name, "unique", origin, partial FROM pragma_index_list(?) ORDER BY seq`, table); err != nil {
		return nil, fmt.Errorf("list indexes of %q: %w", table, err)
	}

	var out []model.IndexInfo
	havePK := false
	for _, il := range list {
		info := model.IndexInfo{
			Name:       il.Name,
			Unique:     il.Unique != 0,
			PrimaryKey: il.Origin == "pk",
			Type:       "BTREE",
		}
		havePK = havePK || info.PrimaryKey

		var cols []indexInfoRow
		if err := c.db.SelectContext(ctx, &cols,
			`SELECT seqno, cid, name, "desc", "key" FROM pragma_index_xinfo(?) WHERE "key" = 1 ORDER BY seqno`, il.Name); err != nil {
			return nil, fmt.Errorf("list columns of index %q: %w", il.Name, err)
		}
		for _, ic := range cols {
			col := model.IndexColumnInfo{Ordinal: ic.SeqNo + 1, Order: model.SortAscending}
			if ic.Desc != 0 {
				col.Order = model.SortDescending
			}
			switch {
			case ic.CID == -2:
				col.Expression = true
				col.Name = "<expression>"
			case ic.Name != nil:
				col.Name = *ic.Name
			default:
				col.Name = "rowid"
			}
			info.Columns = append(info.Columns, col)
		}

		if il.Partial != 0 {
			filter, err := c.partialFilter(ctx, il.Name)
			if err != nil {
				return nil, err
			}
			info.Filter = filter
		}
		out = append(out, info)
	}

	if !havePK {
		pk, err := c.declaredKey(ctx, table)
		if err != nil {
			return nil, err
		}
		if pk != nil {
			out = append([]model.IndexInfo{*pk}, out...)
		}
	}
	return out, nil
}

func (c *SQLiteConnector) declaredKey(ctx context.Context, table string) (*model.IndexInfo, error) {
	var cols []tableInfoRow
	if err := c.db.SelectContext(ctx, &cols,
		`SELECT '' AS table_name, cid, name, type, "notnull", dflt_value, pk FROM pragma_table_info(?) WHERE pk > 0 ORDER BY pk`, table); err != nil {
		return nil, fmt.Errorf("list primary key of %q: %w", table, err)
	}
	if len(cols) == 0 {
		return nil, nil
	}
	pk := &model.IndexInfo{Name: table + "_pk", Unique: true, PrimaryKey: true, Clustered: true, Type: "ROWID"}
	for i, col := range cols {
		pk.Columns = append(pk.Columns, model.IndexColumnInfo{Name: col.Name, Ordinal: i + 1, Order: model.SortAscending})
	}
	return pk, nil
}

// partialFilter extracts the WHERE clause of a partial index from its
// CREATE INDEX statement.
func (c *SQLiteConnector) partialFilter(ctx context.Context, index string) (string, error) {
	var createSQL string
	if err := c.db.GetContext(ctx, &createSQL,
		`SELECT sql FROM sqlite_master WHERE type = 'index' AND name = ?`, index); err != nil {
		return "", fmt.Errorf("read definition of index %q: %w", index, err)
	}
	upper := strings.ToUpper(createSQL)
	if i := strings.LastIndex(upper, " WHERE "); i >= 0 {
		return strings.TrimSpace(createSQL[i+len(" WHERE "):]), nil
	}
	return "", nil
}

// ImportedKeys lists the foreign keys declared on table.
func (c *SQLiteConnector) ImportedKeys(ctx context.Context, _, _, table string) ([]model.KeyInfo, error) {
	const query = `SELECT m.name AS fk_table, p.id, p.seq, p."table", p."from", p."to",
			p.on_update, p.on_delete, p."match"
		FROM sqlite_master m
		JOIN pragma_foreign_key_list(m.name) p
		WHERE m.type = 'table' AND m.name = ?
		ORDER BY p."table", p.id, p.seq`
	return c.selectKeys(ctx, query, table)
}

// ExportedKeys lists the foreign keys that reference table. SQLite has no
// reverse index of foreign keys, so every table's key list is scanned.
func (c *SQLiteConnector) ExportedKeys(ctx context.Context, _, _, table string) ([]model.KeyInfo, error) {
	const query = `SELECT m.name AS fk_table, p.id, p.seq, p."table", p."from", p."to",
			p.on_update, p.on_delete, p."match"
		FROM sqlite_master m
		JOIN pragma_foreign_key_list(m.name) p
		WHERE m.type = 'table' AND p."table" = ? COLLATE NOCASE
		ORDER BY m.name, p.id, p.seq`
	return c.selectKeys(ctx, query, table)
}

func (c *SQLiteConnector) selectKeys(ctx context.Context, query, table string) ([]model.KeyInfo, error) {
	var rows []foreignKeyRow
	if err := c.db.SelectContext(ctx, &rows, query, table); err != nil {
		return nil, fmt.Errorf("list foreign keys of %q: %w", table, err)
	}

	// A key declared as REFERENCES parent without columns targets the
	// parent's primary key.
	pkCols := make(map[string][]string)
	out := make([]model.KeyInfo, 0, len(rows))
	for _, r := range rows {
		pkColumn := ""
		if r.To != nil {
			pkColumn = *r.To
		} else {
			cols, ok := pkCols[r.Table]
			if !ok {
				pk, err := c.declaredKey(ctx, r.Table)
				if err != nil {
					return nil, err
				}
				if pk != nil {
					for _, ic := range pk.Columns {
						cols = append(cols, ic.Name)
					}
				}
				pkCols[r.Table] = cols
			}
			if r.Seq < len(cols) {
				pkColumn = cols[r.Seq]
			}
		}
		out = append(out, model.KeyInfo{
			Name:          foreignKeyName(r.FKTable, r.ID),
			PKTable:       r.Table,
			PKColumn:      pkColumn,
			FKTable:       r.FKTable,
			FKColumn:      r.From,
			Seq:           r.Seq + 1,
			UpdateRule:    model.ParseRule(r.OnUpdate),
			DeleteRule:    model.ParseRule(r.OnDelete),
			Deferrability: model.NotDeferrable,
		})
	}
	return out, nil
}

// foreignKeyName names an anonymous SQLite foreign key after its table and
// its id in pragma_foreign_key_list.
func foreignKeyName(fkTable string, id int) string {
	return fkTable + "_fk" + strconv.Itoa(id)
}

// parseDeclaredType splits a declared type such as NUMERIC(12, 2) into its
// upper-cased name and size arguments.
func parseDeclaredType(decl string) (name string, precision, scale int) {
	name = strings.ToUpper(strings.TrimSpace(decl))
	open := strings.IndexByte(name, '(')
	if open < 0 {
		return name, 0, 0
	}
	args := strings.TrimSuffix(strings.TrimSpace(name[open+1:]), ")")
	name = strings.TrimSpace(name[:open])
	parts := strings.Split(args, ",")
	precision, _ = strconv.Atoi(strings.TrimSpace(parts[0]))
	if len(parts) > 1 {
		scale, _ = strconv.Atoi(strings.TrimSpace(parts[1]))
	}
	return name, precision, scale
}

// affinityType maps a declared SQLite type to a type code. Names the generic
// table does not know fall back to SQLite's type affinity rules
// (https://sqlite.org/datatype3.html).
func affinityType(name string) model.TypeCode {
	if code := model.TypeCodeFor(name); code != model.TypeOther {
		return code
	}
	switch {
	case strings.Contains(name, "INT"):
		return model.TypeInteger
	case strings.Contains(name, "CHAR"),
		strings.Contains(name, "CLOB"),
		strings.Contains(name, "TEXT"):
		return model.TypeVarchar
	case strings.Contains(name, "BLOB") || name == "":
		return model.TypeBlob
	case strings.Contains(name, "REAL"),
		strings.Contains(name, "FLOA"),
		strings.Contains(name, "DOUB"):
		return model.TypeDouble
	case strings.Contains(name, "BOOL"):
		return model.TypeBoolean
	case strings.Contains(name, "DATE"),
		strings.Contains(name, "TIME"):
		return model.TypeTimestamp
	default:
		return model.TypeNumeric
	}
}

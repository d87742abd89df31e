package snowflake

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/faucetdb/schemagraph/internal/model"
)

// columnRow holds the result of querying INFORMATION_SCHEMA.COLUMNS.
type columnRow struct {
	TableName        string  `db:"TABLE_NAME"`
	ColumnName       string  `db:"COLUMN_NAME"`
	Position         int     `db:"ORDINAL_POSITION"`
	DataType         string  `db:"DATA_TYPE"`
	IsNullable       string  `db:"IS_NULLABLE"`
	Default          *string `db:"COLUMN_DEFAULT"`
	MaxLength        *int64  `db:"CHARACTER_MAXIMUM_LENGTH"`
	NumericPrecision *int64  `db:"NUMERIC_PRECISION"`
	NumericScale     *int64  `db:"NUMERIC_SCALE"`
	IsIdentity       string  `db:"IS_IDENTITY"`
	Comment          *string `db:"COMMENT"`
}

func (r columnRow) info() model.ColumnInfo {
	native := strings.ToUpper(r.DataType)
	info := model.ColumnInfo{
		Table:         r.TableName,
		Name:          r.ColumnName,
		Position:      r.Position,
		NativeType:    native,
		TypeCode:      model.TypeCodeFor(native),
		Nullable:      model.ParseNullability(r.IsNullable),
		Default:       r.Default,
		AutoIncrement: r.IsIdentity == "YES",
	}
	if native == "TEXT" {
		// Snowflake reports every string column as TEXT.
		info.TypeCode = model.TypeVarchar
	}
	if r.Comment != nil {
		info.Remarks = *r.Comment
	}
	switch {
	case r.MaxLength != nil:
		info.Precision = int(*r.MaxLength)
	case r.NumericPrecision != nil:
		info.Precision = int(*r.NumericPrecision)
	}
	if r.NumericScale != nil {
		info.Scale = int(*r.NumericScale)
	}
	return info
}

// Catalogs is always empty: the connection is bound to one database.
func (c *SnowflakeConnector) Catalogs(_ context.Context) ([]string, error) {
	return nil, nil
}

// Schemas lists the schemas of the current database.
func (c *SnowflakeConnector) Schemas(ctx context.Context, _ string) ([]string, error) {
	if c.schemaName != "" {
		return []string{c.schemaName}, nil
	}
	const query = `SELECT SCHEMA_NAME FROM INFORMATION_SCHEMA.SCHEMATA
		WHERE SCHEMA_NAME <> 'INFORMATION_SCHEMA'
		ORDER BY SCHEMA_NAME`

	var names []string
	if err := c.db.SelectContext(ctx, &names, query); err != nil {
		return nil, fmt.Errorf("list schemas: %w", err)
	}
	return names, nil
}

// Tables lists tables and views in schema.
func (c *SnowflakeConnector) Tables(ctx context.Context, _, schema string) ([]model.TableInfo, error) {
	const query = `SELECT TABLE_NAME AS "table_name",
			COALESCE(COMMENT, '') AS "remarks",
			CASE TABLE_TYPE WHEN 'BASE TABLE' THEN 'TABLE' ELSE TABLE_TYPE END AS "table_type"
		FROM INFORMATION_SCHEMA.TABLES
		WHERE TABLE_SCHEMA = ?
		ORDER BY TABLE_NAME`

	var tables []model.TableInfo
	if err := c.db.SelectContext(ctx, &tables, query, schema); err != nil {
		return nil, fmt.Errorf("list tables in %q: %w", schema, err)
	}
	return tables, nil
}

// Columns lists the columns of table, or of every table in schema when table
// is empty.
func (c *SnowflakeConnector) Columns(ctx context.Context, _, schema, table string) ([]model.ColumnInfo, error) {
	query := `SELECT
			c.TABLE_NAME,
			c.COLUMN_NAME,
			c.ORDINAL_POSITION,
			c.DATA_TYPE,
			c.IS_NULLABLE,
			c.COLUMN_DEFAULT,
			c.CHARACTER_MAXIMUM_LENGTH,
			c.NUMERIC_PRECISION,
			c.NUMERIC_SCALE,
			c.IS_IDENTITY,
			c.COMMENT
		FROM INFORMATION_SCHEMA.COLUMNS c
		WHERE c.TABLE_SCHEMA = ?`
	args := []any{schema}
	if table != "" {
		query += ` AND c.TABLE_NAME = ?`
		args = append(args, table)
	}
	query += ` ORDER BY c.TABLE_NAME, c.ORDINAL_POSITION`

	var rows []columnRow
	if err := c.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list columns: %w", err)
	}
	out := make([]model.ColumnInfo, len(rows))
	for i, r := range rows {
		out[i] = r.info()
	}
	return out, nil
}

// Indexes reports the primary key and unique constraints of table as
// indexes.
func (c *SnowflakeConnector) Indexes(ctx context.Context, _, schema, table string) ([]model.IndexInfo, error) {
	target := quoteIdentifier(schema) + "." + quoteIdentifier(table)

	pkRows, err := c.show(ctx, "SHOW PRIMARY KEYS IN TABLE "+target)
	if err != nil {
		return nil, fmt.Errorf("list primary key of %q: %w", table, err)
	}
	uniqueRows, err := c.show(ctx, "SHOW UNIQUE KEYS IN TABLE "+target)
	if err != nil {
		return nil, fmt.Errorf("list unique keys of %q: %w", table, err)
	}
	return append(constraintIndexes(pkRows, true), constraintIndexes(uniqueRows, false)...), nil
}

// ImportedKeys lists the foreign keys declared on table.
func (c *SnowflakeConnector) ImportedKeys(ctx context.Context, _, schema, table string) ([]model.KeyInfo, error) {
	rows, err := c.show(ctx, "SHOW IMPORTED KEYS IN TABLE "+quoteIdentifier(schema)+"."+quoteIdentifier(table))
	if err != nil {
		return nil, fmt.Errorf("list imported keys of %q: %w", table, err)
	}
	return showKeys(rows), nil
}

// ExportedKeys lists the foreign keys that reference table.
func (c *SnowflakeConnector) ExportedKeys(ctx context.Context, _, schema, table string) ([]model.KeyInfo, error) {
	rows, err := c.show(ctx, "SHOW EXPORTED KEYS IN TABLE "+quoteIdentifier(schema)+"."+quoteIdentifier(table))
	if err != nil {
		return nil, fmt.Errorf("list exported keys of %q: %w", table, err)
	}
	return showKeys(rows), nil
}

// show runs a SHOW command and returns its rows as maps keyed by the
// lower-case column names Snowflake reports.
func (c *SnowflakeConnector) show(ctx context.Context, query string) ([]map[string]any, error) {
	rawRows, err := c.db.QueryxContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rawRows.Close()

	var rows []map[string]any
	for rawRows.Next() {
		row := make(map[string]any)
		if err := rawRows.MapScan(row); err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, rawRows.Err()
}

// constraintIndexes folds SHOW PRIMARY KEYS / SHOW UNIQUE KEYS rows into one
// index per constraint, columns ordered by key_sequence.
func constraintIndexes(rows []map[string]any, primary bool) []model.IndexInfo {
	var out []model.IndexInfo
	pos := make(map[string]int)
	for _, row := range rows {
		name := mapString(row, "constraint_name")
		i, ok := pos[name]
		if !ok {
			i = len(out)
			pos[name] = i
			out = append(out, model.IndexInfo{Name: name, Unique: true, PrimaryKey: primary, Type: "CONSTRAINT"})
		}
		out[i].Columns = append(out[i].Columns, model.IndexColumnInfo{
			Name:    mapString(row, "column_name"),
			Ordinal: mapInt(row, "key_sequence"),
			Order:   model.SortUnspecified,
		})
	}
	for i := range out {
		slices.SortStableFunc(out[i].Columns, func(a, b model.IndexColumnInfo) int { return a.Ordinal - b.Ordinal })
	}
	return out
}

// showKeys converts SHOW IMPORTED/EXPORTED KEYS rows.
func showKeys(rows []map[string]any) []model.KeyInfo {
	out := make([]model.KeyInfo, 0, len(rows))
	for _, row := range rows {
		out = append(out, model.KeyInfo{
			Name:          mapString(row, "fk_name"),
			PKSchema:      mapString(row, "pk_schema_name"),
			PKTable:       mapString(row, "pk_table_name"),
			PKColumn:      mapString(row, "pk_column_name"),
			FKSchema:      mapString(row, "fk_schema_name"),
			FKTable:       mapString(row, "fk_table_name"),
			FKColumn:      mapString(row, "fk_column_name"),
			Seq:           mapInt(row, "key_sequence"),
			UpdateRule:    model.ParseRule(mapString(row, "update_rule")),
			DeleteRule:    model.ParseRule(mapString(row, "delete_rule")),
			Deferrability: parseDeferrability(mapString(row, "deferrability")),
		})
	}
	return out
}

// parseDeferrability reads the single deferrability column of SHOW KEYS,
// e.g. "NOT DEFERRABLE" or "DEFERRABLE INITIALLY DEFERRED".
func parseDeferrability(s string) model.Deferrability {
	upper := strings.ToUpper(s)
	switch {
	case upper == "" || strings.Contains(upper, "NOT DEFERRABLE"):
		return model.NotDeferrable
	case strings.Contains(upper, "DEFERRED"):
		return model.InitiallyDeferred
	default:
		return model.InitiallyImmediate
	}
}

func mapString(row map[string]any, key string) string {
	switch v := row[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return fmt.Sprint(v)
	}
}

func mapInt(row map[string]any, key string) int {
	switch v := row[key].(type) {
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		n, _ := strconv.Atoi(strings.TrimSpace(mapString(row, key)))
		return n
	}
}

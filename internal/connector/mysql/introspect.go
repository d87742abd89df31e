package mysql

import (
	"context"
	"fmt"
	"strings"

	"github.com/faucetdb/schemagraph/internal/connector"
	"github.com/faucetdb/schemagraph/internal/model"
)

// columnRow holds the result of querying INFORMATION_SCHEMA.COLUMNS.
type columnRow struct {
	TableName         string  `db:"TABLE_NAME"`
	ColumnName        string  `db:"COLUMN_NAME"`
	Position          int     `db:"ORDINAL_POSITION"`
	DataType          string  `db:"DATA_TYPE"`
	IsNullable        string  `db:"IS_NULLABLE"`
	Default           *string `db:"COLUMN_DEFAULT"`
	MaxLength         *int64  `db:"CHARACTER_MAXIMUM_LENGTH"`
	NumericPrecision  *int64  `db:"NUMERIC_PRECISION"`
	NumericScale      *int64  `db:"NUMERIC_SCALE"`
	DatetimePrecision *int64  `db:"DATETIME_PRECISION"`
	Extra             string  `db:"EXTRA"`
	Comment           string  `db:"COLUMN_COMMENT"`
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
		AutoIncrement: strings.Contains(strings.ToLower(r.Extra), "auto_increment"),
		Remarks:       r.Comment,
	}
	switch {
	case r.MaxLength != nil:
		info.Precision = int(*r.MaxLength)
	case r.NumericPrecision != nil:
		info.Precision = int(*r.NumericPrecision)
	case r.DatetimePrecision != nil:
		info.Precision = int(*r.DatetimePrecision)
	}
	if r.NumericScale != nil {
		info.Scale = int(*r.NumericScale)
	}
	return info
}

// Catalogs is always empty; MySQL databases are reported as schemas.
func (c *MySQLConnector) Catalogs(_ context.Context) ([]string, error) {
	return nil, nil
}

// Schemas returns the configured database, or every non-system database.
func (c *MySQLConnector) Schemas(ctx context.Context, _ string) ([]string, error) {
	if c.schemaName != "" {
		return []string{c.schemaName}, nil
	}
	const query = `SELECT SCHEMA_NAME FROM INFORMATION_SCHEMA.SCHEMATA
		WHERE SCHEMA_NAME NOT IN ('mysql', 'information_schema', 'performance_schema', 'sys')
		ORDER BY SCHEMA_NAME`

	var names []string
	if err := c.db.SelectContext(ctx, &names, query); err != nil {
		return nil, fmt.Errorf("list schemas: %w", err)
	}
	return names, nil
}

// Tables lists tables and views in schema.
func (c *MySQLConnector) Tables(ctx context.Context, _, schema string) ([]model.TableInfo, error) {
	const query = `SELECT TABLE_NAME AS table_name,
			COALESCE(TABLE_COMMENT, '') AS remarks,
			CASE TABLE_TYPE WHEN 'BASE TABLE' THEN 'TABLE' ELSE TABLE_TYPE END AS table_type
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
func (c *MySQLConnector) Columns(ctx context.Context, _, schema, table string) ([]model.ColumnInfo, error) {
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
			c.DATETIME_PRECISION,
			c.EXTRA,
			c.COLUMN_COMMENT
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

// Indexes lists the indexes of table from INFORMATION_SCHEMA.STATISTICS.
// Functional key parts have no column name and are left out.
func (c *MySQLConnector) Indexes(ctx context.Context, _, schema, table string) ([]model.IndexInfo, error) {
	const query = `SELECT
			INDEX_NAME AS index_name,
			NON_UNIQUE = 0 AS is_unique,
			INDEX_NAME = 'PRIMARY' AS is_primary,
			INDEX_NAME = 'PRIMARY' AS is_clustered,
			INDEX_TYPE AS index_type,
			NULL AS filter_condition,
			COLUMN_NAME AS column_name,
			COLLATION AS sort_order,
			COLUMN_NAME IS NULL AS is_expression
		FROM INFORMATION_SCHEMA.STATISTICS
		WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ?
		ORDER BY INDEX_NAME = 'PRIMARY' DESC, INDEX_NAME, SEQ_IN_INDEX`

	var rows []connector.IndexRow
	if err := c.db.SelectContext(ctx, &rows, query, schema, table); err != nil {
		return nil, fmt.Errorf("list indexes of %q: %w", table, err)
	}
	return connector.GroupIndexRows(rows), nil
}

// keyQuery reads foreign keys from KEY_COLUMN_USAGE. MySQL constraints are
// never deferrable.
const keyQuery = `SELECT
		kcu.CONSTRAINT_NAME AS constraint_name,
		NULL AS pk_catalog,
		kcu.REFERENCED_TABLE_SCHEMA AS pk_schema,
		kcu.REFERENCED_TABLE_NAME AS pk_table,
		kcu.REFERENCED_COLUMN_NAME AS pk_column,
		NULL AS fk_catalog,
		kcu.TABLE_SCHEMA AS fk_schema,
		kcu.TABLE_NAME AS fk_table,
		kcu.COLUMN_NAME AS fk_column,
		kcu.ORDINAL_POSITION AS seq,
		rc.UPDATE_RULE AS update_rule,
		rc.DELETE_RULE AS delete_rule,
		'NO' AS is_deferrable,
		'NO' AS initially_deferred
	FROM INFORMATION_SCHEMA.KEY_COLUMN_USAGE kcu
	JOIN INFORMATION_SCHEMA.REFERENTIAL_CONSTRAINTS rc
		ON kcu.CONSTRAINT_NAME = rc.CONSTRAINT_NAME
		AND kcu.CONSTRAINT_SCHEMA = rc.CONSTRAINT_SCHEMA
		AND kcu.TABLE_NAME = rc.TABLE_NAME
	WHERE kcu.REFERENCED_TABLE_NAME IS NOT NULL AND %s
	ORDER BY %s, kcu.CONSTRAINT_NAME, kcu.ORDINAL_POSITION`

// ImportedKeys lists the foreign keys declared on table.
func (c *MySQLConnector) ImportedKeys(ctx context.Context, _, schema, table string) ([]model.KeyInfo, error) {
	query := fmt.Sprintf(keyQuery, "kcu.TABLE_SCHEMA = ? AND kcu.TABLE_NAME = ?", "kcu.REFERENCED_TABLE_NAME")
	return c.selectKeys(ctx, query, schema, table)
}

// ExportedKeys lists the foreign keys that reference table.
func (c *MySQLConnector) ExportedKeys(ctx context.Context, _, schema, table string) ([]model.KeyInfo, error) {
	query := fmt.Sprintf(keyQuery, "kcu.REFERENCED_TABLE_SCHEMA = ? AND kcu.REFERENCED_TABLE_NAME = ?", "kcu.TABLE_NAME")
	return c.selectKeys(ctx, query, schema, table)
}

func (c *MySQLConnector) selectKeys(ctx context.Context, query, schema, table string) ([]model.KeyInfo, error) {
	var rows []connector.KeyRow
	if err := c.db.SelectContext(ctx, &rows, query, schema, table); err != nil {
		return nil, fmt.Errorf("list foreign keys of %q: %w", table, err)
	}
	return connector.KeyInfos(rows), nil
}

package mssql

import (
	"context"
	"fmt"
	"strings"

	"github.com/faucetdb/schemagraph/internal/connector"
	"github.com/faucetdb/schemagraph/internal/model"
)

// columnRow holds the result of querying INFORMATION_SCHEMA.COLUMNS joined
// with the identity flag and MS_Description extended property.
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
	IsIdentity        *int64  `db:"IS_IDENTITY"`
	Remarks           *string `db:"REMARKS"`
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
		AutoIncrement: r.IsIdentity != nil && *r.IsIdentity == 1,
	}
	if r.Remarks != nil {
		info.Remarks = *r.Remarks
	}
	switch {
	case r.MaxLength != nil && *r.MaxLength > 0:
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

// objectID resolves the object id of a schema-qualified name held in the
// given TABLE_SCHEMA / TABLE_NAME column pair.
func objectID(alias string) string {
	return "OBJECT_ID(QUOTENAME(" + alias + ".TABLE_SCHEMA) + '.' + QUOTENAME(" + alias + ".TABLE_NAME))"
}

// Catalogs is always empty: the connection is bound to one database.
func (c *MSSQLConnector) Catalogs(_ context.Context) ([]string, error) {
	return nil, nil
}

// Schemas lists the schemas that own at least one table or view.
func (c *MSSQLConnector) Schemas(ctx context.Context, _ string) ([]string, error) {
	const query = `SELECT DISTINCT TABLE_SCHEMA FROM INFORMATION_SCHEMA.TABLES
		ORDER BY TABLE_SCHEMA`

	var names []string
	if err := c.db.SelectContext(ctx, &names, query); err != nil {
		return nil, fmt.Errorf("list schemas: %w", err)
	}
	return connector.Only(names, c.schemaName), nil
}

// Tables lists tables and views in schema with their MS_Description.
func (c *MSSQLConnector) Tables(ctx context.Context, _, schema string) ([]model.TableInfo, error) {
	query := `SELECT t.TABLE_NAME AS table_name,
			COALESCE(CAST(ep.value AS NVARCHAR(4000)), '') AS remarks,
			CASE t.TABLE_TYPE WHEN 'BASE TABLE' THEN 'TABLE' ELSE t.TABLE_TYPE END AS table_type
		FROM INFORMATION_SCHEMA.TABLES t
		LEFT JOIN sys.extended_properties ep
			ON ep.major_id = ` + objectID("t") + `
			AND ep.minor_id = 0 AND ep.class = 1 AND ep.name = 'MS_Description'
		WHERE t.TABLE_SCHEMA = @p1
		ORDER BY t.TABLE_NAME`

	var tables []model.TableInfo
	if err := c.db.SelectContext(ctx, &tables, query, schema); err != nil {
		return nil, fmt.Errorf("list tables in %q: %w", schema, err)
	}
	return tables, nil
}

// Columns lists the columns of table, or of every table in schema when table
// is empty.
func (c *MSSQLConnector) Columns(ctx context.Context, _, schema, table string) ([]model.ColumnInfo, error) {
	query := `SELECT
			c.TABLE_NAME,
			c.COLUMN_NAME,
			c.ORDINAL_POSITION,
			c.DATA_TYPE,
			c.IS_NULLABLE,
			c.COLUMN_DEFAULT,
			CAST(c.CHARACTER_MAXIMUM_LENGTH AS BIGINT) AS CHARACTER_MAXIMUM_LENGTH,
			CAST(c.NUMERIC_PRECISION AS BIGINT) AS NUMERIC_PRECISION,
			CAST(c.NUMERIC_SCALE AS BIGINT) AS NUMERIC_SCALE,
			CAST(c.DATETIME_PRECISION AS BIGINT) AS DATETIME_PRECISION,
			CAST(COLUMNPROPERTY(` + objectID("c") + `, c.COLUMN_NAME, 'IsIdentity') AS BIGINT) AS IS_IDENTITY,
			CAST(ep.value AS NVARCHAR(4000)) AS REMARKS
		FROM INFORMATION_SCHEMA.COLUMNS c
		LEFT JOIN sys.extended_properties ep
			ON ep.major_id = ` + objectID("c") + `
			AND ep.minor_id = COLUMNPROPERTY(` + objectID("c") + `, c.COLUMN_NAME, 'ColumnId')
			AND ep.class = 1 AND ep.name = 'MS_Description'
		WHERE c.TABLE_SCHEMA = @p1`
	args := []any{schema}
	if table != "" {
		query += ` AND c.TABLE_NAME = @p2`
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

// Indexes lists the key columns of every index on table. Included columns
// and heaps are skipped.
func (c *MSSQLConnector) Indexes(ctx context.Context, _, schema, table string) ([]model.IndexInfo, error) {
	const query = `SELECT
			i.name AS index_name,
			i.is_unique AS is_unique,
			i.is_primary_key AS is_primary,
			CAST(CASE WHEN i.type = 1 THEN 1 ELSE 0 END AS BIT) AS is_clustered,
			i.type_desc AS index_type,
			i.filter_definition AS filter_condition,
			col.name AS column_name,
			CASE WHEN ic.is_descending_key = 1 THEN 'D' ELSE 'A' END AS sort_order,
			CAST(0 AS BIT) AS is_expression
		FROM sys.indexes i
		JOIN sys.tables t ON i.object_id = t.object_id
		JOIN sys.schemas s ON t.schema_id = s.schema_id
		JOIN sys.index_columns ic
			ON ic.object_id = i.object_id AND ic.index_id = i.index_id AND ic.is_included_column = 0
		JOIN sys.columns col ON col.object_id = ic.object_id AND col.column_id = ic.column_id
		WHERE s.name = @p1 AND t.name = @p2 AND i.type > 0
		ORDER BY i.is_primary_key DESC, i.name, ic.key_ordinal`

	var rows []connector.IndexRow
	if err := c.db.SelectContext(ctx, &rows, query, schema, table); err != nil {
		return nil, fmt.Errorf("list indexes of %q: %w", table, err)
	}
	return connector.GroupIndexRows(rows), nil
}

// keyQuery reads foreign keys from sys.foreign_keys. SQL Server constraints
// are never deferrable.
const keyQuery = `SELECT
		fk.name AS constraint_name,
		NULL AS pk_catalog,
		SCHEMA_NAME(pk_tab.schema_id) AS pk_schema,
		pk_tab.name AS pk_table,
		pk_col.name AS pk_column,
		NULL AS fk_catalog,
		SCHEMA_NAME(fk_tab.schema_id) AS fk_schema,
		fk_tab.name AS fk_table,
		fk_col.name AS fk_column,
		fkc.constraint_column_id AS seq,
		fk.update_referential_action_desc AS update_rule,
		fk.delete_referential_action_desc AS delete_rule,
		'NO' AS is_deferrable,
		'NO' AS initially_deferred
	FROM sys.foreign_keys fk
	JOIN sys.foreign_key_columns fkc ON fk.object_id = fkc.constraint_object_id
	JOIN sys.tables fk_tab ON fkc.parent_object_id = fk_tab.object_id
	JOIN sys.columns fk_col ON fkc.parent_object_id = fk_col.object_id AND fkc.parent_column_id = fk_col.column_id
	JOIN sys.tables pk_tab ON fkc.referenced_object_id = pk_tab.object_id
	JOIN sys.columns pk_col ON fkc.referenced_object_id = pk_col.object_id AND fkc.referenced_column_id = pk_col.column_id
	WHERE %s
	ORDER BY %s, fk.name, fkc.constraint_column_id`

// ImportedKeys lists the foreign keys declared on table.
func (c *MSSQLConnector) ImportedKeys(ctx context.Context, _, schema, table string) ([]model.KeyInfo, error) {
	query := fmt.Sprintf(keyQuery, "SCHEMA_NAME(fk_tab.schema_id) = @p1 AND fk_tab.name = @p2", "pk_tab.name")
	return c.selectKeys(ctx, query, schema, table)
}

// ExportedKeys lists the foreign keys that reference table.
func (c *MSSQLConnector) ExportedKeys(ctx context.Context, _, schema, table string) ([]model.KeyInfo, error) {
	query := fmt.Sprintf(keyQuery, "SCHEMA_NAME(pk_tab.schema_id) = @p1 AND pk_tab.name = @p2", "fk_tab.name")
	return c.selectKeys(ctx, query, schema, table)
}

func (c *MSSQLConnector) selectKeys(ctx context.Context, query, schema, table string) ([]model.KeyInfo, error) {
	var rows []connector.KeyRow
	if err := c.db.SelectContext(ctx, &rows, query, schema, table); err != nil {
		return nil, fmt.Errorf("list foreign keys of %q: %w", table, err)
	}
	return connector.KeyInfos(rows), nil
}

package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/faucetdb/schemagraph/internal/connector"
	"github.com/faucetdb/schemagraph/internal/model"
)

// columnRow holds the result of querying information_schema.columns.
type columnRow struct {
	TableName         string  `db:"table_name"`
	ColumnName        string  `db:"column_name"`
	Position          int     `db:"ordinal_position"`
	DataType          string  `db:"data_type"`
	UDTName           string  `db:"udt_name"`
	IsNullable        string  `db:"is_nullable"`
	Default           *string `db:"column_default"`
	MaxLength         *int    `db:"character_maximum_length"`
	NumericPrecision  *int    `db:"numeric_precision"`
	NumericScale      *int    `db:"numeric_scale"`
	DatetimePrecision *int    `db:"datetime_precision"`
	IsIdentity        string  `db:"is_identity"`
	Remarks           string  `db:"remarks"`
}

func (r columnRow) info() model.ColumnInfo {
	info := model.ColumnInfo{
		Table:      r.TableName,
		Name:       r.ColumnName,
		Position:   r.Position,
		NativeType: r.UDTName,
		TypeCode:   model.TypeCodeFor(r.UDTName),
		Nullable:   model.ParseNullability(r.IsNullable),
		Default:    r.Default,
		Remarks:    r.Remarks,
	}
	switch {
	case r.MaxLength != nil:
		info.Precision = *r.MaxLength
	case r.NumericPrecision != nil:
		info.Precision = *r.NumericPrecision
	case r.DatetimePrecision != nil:
		info.Precision = *r.DatetimePrecision
	}
	if r.NumericScale != nil {
		info.Scale = *r.NumericScale
	}
	info.AutoIncrement = r.IsIdentity == "YES" ||
		(r.Default != nil && strings.HasPrefix(*r.Default, "nextval("))
	return info
}

// Catalogs is always empty: a PostgreSQL connection sees a single database.
func (c *PostgresConnector) Catalogs(_ context.Context) ([]string, error) {
	return nil, nil
}

// Schemas lists the user schemas of the connected database.
func (c *PostgresConnector) Schemas(ctx context.Context, _ string) ([]string, error) {
	const query = `SELECT nspname FROM pg_catalog.pg_namespace
		WHERE nspname NOT IN ('pg_catalog', 'information_schema', 'pg_toast')
		  AND nspname NOT LIKE 'pg_temp_%' AND nspname NOT LIKE 'pg_toast_temp_%'
		ORDER BY nspname`

	var names []string
	if err := c.db.SelectContext(ctx, &names, query); err != nil {
		return nil, fmt.Errorf("list schemas: %w", err)
	}
	return connector.Only(names, c.schemaName), nil
}

// Tables lists tables, views and materialized views in schema.
func (c *PostgresConnector) Tables(ctx context.Context, _, schema string) ([]model.TableInfo, error) {
	const query = `SELECT c.relname AS table_name,
		COALESCE(obj_description(c.oid, 'pg_class'), '') AS remarks,
		CASE c.relkind
			WHEN 'v' THEN 'VIEW'
			WHEN 'm' THEN 'MATERIALIZED VIEW'
			WHEN 'f' THEN 'FOREIGN TABLE'
			ELSE 'TABLE'
		END AS table_type
		FROM pg_catalog.pg_class c
		JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
		WHERE n.nspname = $1 AND c.relkind IN ('r', 'p', 'v', 'm', 'f')
		ORDER BY c.relname`

	var tables []model.TableInfo
	if err := c.db.SelectContext(ctx, &tables, query, schema); err != nil {
		return nil, fmt.Errorf("list tables in %q: %w", schema, err)
	}
	return tables, nil
}

// Columns lists the columns of table, or of every table in schema when table
// is empty.
func (c *PostgresConnector) Columns(ctx context.Context, _, schema, table string) ([]model.ColumnInfo, error) {
	query := `SELECT c.table_name, c.column_name, c.ordinal_position,
		c.data_type, c.udt_name, c.is_nullable, c.column_default,
		c.character_maximum_length, c.numeric_precision, c.numeric_scale,
		c.datetime_precision, c.is_identity,
		COALESCE(col_description(format('%I.%I', c.table_schema, c.table_name)::regclass, c.ordinal_position::int), '') AS remarks
		FROM information_schema.columns c
		WHERE c.table_schema = $1`
	args := []any{schema}
	if table != "" {
		query += ` AND c.table_name = $2`
		args = append(args, table)
	}
	query += ` ORDER BY c.table_name, c.ordinal_position`

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

// Indexes lists every index of table with its key columns in index order.
// Expression entries carry the expression text from pg_get_indexdef.
func (c *PostgresConnector) Indexes(ctx context.Context, _, schema, table string) ([]model.IndexInfo, error) {
	const query = `SELECT i.relname AS index_name,
		ix.indisunique AS is_unique,
		ix.indisprimary AS is_primary,
		ix.indisclustered AS is_clustered,
		am.amname AS index_type,
		pg_get_expr(ix.indpred, ix.indrelid) AS filter_condition,
		CASE WHEN k.attnum = 0
			THEN pg_get_indexdef(ix.indexrelid, k.ord::int, true)
			ELSE a.attname::text
		END AS column_name,
		CASE WHEN am.amname = 'btree'
			THEN CASE WHEN ix.indoption[k.ord - 1] & 1 = 1 THEN 'D' ELSE 'A' END
		END AS sort_order,
		k.attnum = 0 AS is_expression
		FROM pg_catalog.pg_index ix
		JOIN pg_catalog.pg_class t ON t.oid = ix.indrelid
		JOIN pg_catalog.pg_namespace n ON n.oid = t.relnamespace
		JOIN pg_catalog.pg_class i ON i.oid = ix.indexrelid
		JOIN pg_catalog.pg_am am ON am.oid = i.relam
		CROSS JOIN LATERAL unnest(ix.indkey::int2[]) WITH ORDINALITY AS k(attnum, ord)
		LEFT JOIN pg_catalog.pg_attribute a ON a.attrelid = t.oid AND a.attnum = k.attnum
		WHERE n.nspname = $1 AND t.relname = $2 AND k.ord <= ix.indnkeyatts
		ORDER BY ix.indisprimary DESC, i.relname, k.ord`

	var rows []connector.IndexRow
	if err := c.db.SelectContext(ctx, &rows, query, schema, table); err != nil {
		return nil, fmt.Errorf("list indexes of %q: %w", table, err)
	}
	return connector.GroupIndexRows(rows), nil
}

// keyQuery pairs the conkey and confkey arrays of each foreign key so that
// multi-column keys come back one row per column pair, in key order.
const keyQuery = `SELECT con.conname AS constraint_name,
	NULL::text AS pk_catalog, pn.nspname AS pk_schema, pt.relname AS pk_table, pa.attname AS pk_column,
	NULL::text AS fk_catalog, fn.nspname AS fk_schema, ft.relname AS fk_table, fa.attname AS fk_column,
	k.ord::int AS seq,
	%[1]s AS update_rule,
	%[2]s AS delete_rule,
	CASE WHEN con.condeferrable THEN 'YES' ELSE 'NO' END AS is_deferrable,
	CASE WHEN con.condeferred THEN 'YES' ELSE 'NO' END AS initially_deferred
	FROM pg_catalog.pg_constraint con
	JOIN pg_catalog.pg_class ft ON ft.oid = con.conrelid
	JOIN pg_catalog.pg_namespace fn ON fn.oid = ft.relnamespace
	JOIN pg_catalog.pg_class pt ON pt.oid = con.confrelid
	JOIN pg_catalog.pg_namespace pn ON pn.oid = pt.relnamespace
	CROSS JOIN LATERAL unnest(con.conkey, con.confkey) WITH ORDINALITY AS k(fk_attnum, pk_attnum, ord)
	JOIN pg_catalog.pg_attribute fa ON fa.attrelid = ft.oid AND fa.attnum = k.fk_attnum
	JOIN pg_catalog.pg_attribute pa ON pa.attrelid = pt.oid AND pa.attnum = k.pk_attnum
	WHERE con.contype = 'f' AND %[3]s
	ORDER BY %[4]s, con.conname, k.ord`

func ruleCase(col string) string {
	return `CASE ` + col + `
		WHEN 'c' THEN 'CASCADE'
		WHEN 'r' THEN 'RESTRICT'
		WHEN 'n' THEN 'SET NULL'
		WHEN 'd' THEN 'SET DEFAULT'
		ELSE 'NO ACTION'
	END`
}

// ImportedKeys lists the foreign keys declared on table.
func (c *PostgresConnector) ImportedKeys(ctx context.Context, _, schema, table string) ([]model.KeyInfo, error) {
	query := fmt.Sprintf(keyQuery, ruleCase("con.confupdtype"), ruleCase("con.confdeltype"),
		"fn.nspname = $1 AND ft.relname = $2", "pn.nspname, pt.relname")
	return c.selectKeys(ctx, query, schema, table)
}

// ExportedKeys lists the foreign keys that reference table.
func (c *PostgresConnector) ExportedKeys(ctx context.Context, _, schema, table string) ([]model.KeyInfo, error) {
	query := fmt.Sprintf(keyQuery, ruleCase("con.confupdtype"), ruleCase("con.confdeltype"),
		"pn.nspname = $1 AND pt.relname = $2", "fn.nspname, ft.relname")
	return c.selectKeys(ctx, query, schema, table)
}

func (c *PostgresConnector) selectKeys(ctx context.Context, query, schema, table string) ([]model.KeyInfo, error) {
	var rows []connector.KeyRow
	if err := c.db.SelectContext(ctx, &rows, query, schema, table); err != nil {
		return nil, fmt.Errorf("list foreign keys of %q: %w", table, err)
	}
	return connector.KeyInfos(rows), nil
}

package oracle

import (
	"context"
	"fmt"
	"strings"

	"github.com/faucetdb/schemagraph/internal/connector"
	"github.com/faucetdb/schemagraph/internal/model"
)

// tableRow holds a row of ALL_OBJECTS joined with ALL_TAB_COMMENTS. Oracle
// stores empty strings as NULL, so the comment is nullable.
type tableRow struct {
	Name     string  `db:"TABLE_NAME"`
	Comments *string `db:"COMMENTS"`
	Type     string  `db:"OBJECT_TYPE"`
}

// columnRow holds a row of ALL_TAB_COLUMNS joined with ALL_COL_COMMENTS.
type columnRow struct {
	TableName  string  `db:"TABLE_NAME"`
	ColumnName string  `db:"COLUMN_NAME"`
	ColumnID   int     `db:"COLUMN_ID"`
	DataType   string  `db:"DATA_TYPE"`
	Nullable   string  `db:"NULLABLE"`
	Default    *string `db:"DATA_DEFAULT"`
	CharLength *int64  `db:"CHAR_LENGTH"`
	Precision  *int64  `db:"DATA_PRECISION"`
	Scale      *int64  `db:"DATA_SCALE"`
	Identity   *string `db:"IDENTITY_COLUMN"`
	Comments   *string `db:"COMMENTS"`
}

func (r columnRow) info() model.ColumnInfo {
	native := strings.ToUpper(r.DataType)
	info := model.ColumnInfo{
		Table:         r.TableName,
		Name:          r.ColumnName,
		Position:      r.ColumnID,
		NativeType:    native,
		TypeCode:      model.TypeCodeFor(native),
		Nullable:      model.ParseNullability(r.Nullable),
		AutoIncrement: r.Identity != nil && *r.Identity == "YES",
	}
	if r.Default != nil {
		// DATA_DEFAULT keeps the trailing whitespace of the DDL.
		d := strings.TrimSpace(*r.Default)
		info.Default = &d
	}
	if r.Comments != nil {
		info.Remarks = *r.Comments
	}
	switch {
	case r.CharLength != nil && *r.CharLength > 0:
		info.Precision = int(*r.CharLength)
	case r.Precision != nil:
		info.Precision = int(*r.Precision)
	}
	if r.Scale != nil {
		info.Scale = int(*r.Scale)
	}
	return info
}

// Catalogs is always empty for Oracle.
func (c *OracleConnector) Catalogs(_ context.Context) ([]string, error) {
	return nil, nil
}

// Schemas returns the configured or current schema.
func (c *OracleConnector) Schemas(_ context.Context, _ string) ([]string, error) {
	if c.schemaName == "" {
		return nil, nil
	}
	return []string{c.schemaName}, nil
}

// Tables lists tables and views owned by schema, skipping recycle bin
// objects.
func (c *OracleConnector) Tables(ctx context.Context, _, schema string) ([]model.TableInfo, error) {
	const query = `SELECT o.OBJECT_NAME AS TABLE_NAME, tc.COMMENTS, o.OBJECT_TYPE
		FROM ALL_OBJECTS o
		LEFT JOIN ALL_TAB_COMMENTS tc ON tc.OWNER = o.OWNER AND tc.TABLE_NAME = o.OBJECT_NAME
		WHERE o.OWNER = :1 AND o.OBJECT_TYPE IN ('TABLE', 'VIEW')
			AND o.OBJECT_NAME NOT LIKE 'BIN$%'
		ORDER BY o.OBJECT_NAME`

	var rows []tableRow
	if err := c.db.SelectContext(ctx, &rows, query, schema); err != nil {
		return nil, fmt.Errorf("list tables in %q: %w", schema, err)
	}
	out := make([]model.TableInfo, len(rows))
	for i, r := range rows {
		out[i] = model.TableInfo{Name: r.Name, Type: r.Type}
		if r.Comments != nil {
			out[i].Remarks = *r.Comments
		}
	}
	return out, nil
}

// Columns lists the columns of table, or of every table in schema when table
// is empty.
func (c *OracleConnector) Columns(ctx context.Context, _, schema, table string) ([]model.ColumnInfo, error) {
	query := `SELECT col.TABLE_NAME, col.COLUMN_NAME, col.COLUMN_ID, col.DATA_TYPE,
			col.NULLABLE, col.DATA_DEFAULT, col.CHAR_LENGTH, col.DATA_PRECISION,
			col.DATA_SCALE, col.IDENTITY_COLUMN, cc.COMMENTS
		FROM ALL_TAB_COLUMNS col
		LEFT JOIN ALL_COL_COMMENTS cc
			ON cc.OWNER = col.OWNER AND cc.TABLE_NAME = col.TABLE_NAME AND cc.COLUMN_NAME = col.COLUMN_NAME
		WHERE col.OWNER = :1 AND col.TABLE_NAME NOT LIKE 'BIN$%'`
	args := []any{schema}
	if table != "" {
		query += ` AND col.TABLE_NAME = :2`
		args = append(args, table)
	}
	query += ` ORDER BY col.TABLE_NAME, col.COLUMN_ID`

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

// Indexes lists the indexes of table. Function-based index entries appear
// under their hidden SYS_NC column name and are flagged as expressions.
func (c *OracleConnector) Indexes(ctx context.Context, _, schema, table string) ([]model.IndexInfo, error) {
	const query = `SELECT i.INDEX_NAME AS "index_name",
			CASE WHEN i.UNIQUENESS = 'UNIQUE' THEN 1 ELSE 0 END AS "is_unique",
			CASE WHEN pk.CONSTRAINT_NAME IS NOT NULL THEN 1 ELSE 0 END AS "is_primary",
			CASE WHEN i.INDEX_TYPE = 'IOT - TOP' THEN 1 ELSE 0 END AS "is_clustered",
			i.INDEX_TYPE AS "index_type",
			NULL AS "filter_condition",
			ic.COLUMN_NAME AS "column_name",
			ic.DESCEND AS "sort_order",
			CASE WHEN ic.COLUMN_NAME LIKE 'SYS\_NC%$' ESCAPE '\' THEN 1 ELSE 0 END AS "is_expression"
		FROM ALL_INDEXES i
		JOIN ALL_IND_COLUMNS ic ON ic.INDEX_OWNER = i.OWNER AND ic.INDEX_NAME = i.INDEX_NAME
		LEFT JOIN ALL_CONSTRAINTS pk
			ON pk.OWNER = i.TABLE_OWNER AND pk.TABLE_NAME = i.TABLE_NAME
			AND pk.INDEX_NAME = i.INDEX_NAME AND pk.CONSTRAINT_TYPE = 'P'
		WHERE i.TABLE_OWNER = :1 AND i.TABLE_NAME = :2
		ORDER BY CASE WHEN pk.CONSTRAINT_NAME IS NOT NULL THEN 0 ELSE 1 END, i.INDEX_NAME, ic.COLUMN_POSITION`

	var rows []connector.IndexRow
	if err := c.db.SelectContext(ctx, &rows, query, schema, table); err != nil {
		return nil, fmt.Errorf("list indexes of %q: %w", table, err)
	}
	return connector.GroupIndexRows(rows), nil
}

// keyQuery pairs the columns of a referential constraint with the columns of
// the constraint it references by position. Oracle has no ON UPDATE action.
const keyQuery = `SELECT c.CONSTRAINT_NAME AS "constraint_name",
		NULL AS "pk_catalog",
		p.OWNER AS "pk_schema",
		p.TABLE_NAME AS "pk_table",
		pc.COLUMN_NAME AS "pk_column",
		NULL AS "fk_catalog",
		c.OWNER AS "fk_schema",
		c.TABLE_NAME AS "fk_table",
		fc.COLUMN_NAME AS "fk_column",
		fc.POSITION AS "seq",
		'NO ACTION' AS "update_rule",
		c.DELETE_RULE AS "delete_rule",
		c.DEFERRABLE AS "is_deferrable",
		c.DEFERRED AS "initially_deferred"
	FROM ALL_CONSTRAINTS c
	JOIN ALL_CONS_COLUMNS fc ON fc.OWNER = c.OWNER AND fc.CONSTRAINT_NAME = c.CONSTRAINT_NAME
	JOIN ALL_CONSTRAINTS p ON p.OWNER = c.R_OWNER AND p.CONSTRAINT_NAME = c.R_CONSTRAINT_NAME
	JOIN ALL_CONS_COLUMNS pc
		ON pc.OWNER = p.OWNER AND pc.CONSTRAINT_NAME = p.CONSTRAINT_NAME AND pc.POSITION = fc.POSITION
	WHERE c.CONSTRAINT_TYPE = 'R' AND %s
	ORDER BY %s, c.CONSTRAINT_NAME, fc.POSITION`

// ImportedKeys lists the foreign keys declared on table.
func (c *OracleConnector) ImportedKeys(ctx context.Context, _, schema, table string) ([]model.KeyInfo, error) {
	query := fmt.Sprintf(keyQuery, "c.OWNER = :1 AND c.TABLE_NAME = :2", "p.TABLE_NAME")
	return c.selectKeys(ctx, query, schema, table)
}

// ExportedKeys lists the foreign keys that reference table.
func (c *OracleConnector) ExportedKeys(ctx context.Context, _, schema, table string) ([]model.KeyInfo, error) {
	query := fmt.Sprintf(keyQuery, "p.OWNER = :1 AND p.TABLE_NAME = :2", "c.TABLE_NAME")
	return c.selectKeys(ctx, query, schema, table)
}

func (c *OracleConnector) selectKeys(ctx context.Context, query, schema, table string) ([]model.KeyInfo, error) {
	var rows []connector.KeyRow
	if err := c.db.SelectContext(ctx, &rows, query, schema, table); err != nil {
		return nil, fmt.Errorf("list foreign keys of %q: %w", table, err)
	}
	return connector.KeyInfos(rows), nil
}

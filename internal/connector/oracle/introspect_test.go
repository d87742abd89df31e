package oracle

import (
	"testing"

	"github.com/faucetdb/schemagraph/internal/model"
)

func i64(n int64) *int64 { return &n }
func str(s string) *string { return &s }

func TestColumnRowInfo(t *testing.T) {
	tests := []struct {
		name string
		row  columnRow
		want model.ColumnInfo
	}{
		{
			name: "identity number",
			row: columnRow{
				TableName: "ORDERS", ColumnName: "ID", ColumnID: 1, DataType: "NUMBER",
				Nullable: "N", Precision: i64(10), Scale: i64(0), Identity: str("YES"),
			},
			want: model.ColumnInfo{
				Table: "ORDERS", Name: "ID", Position: 1, NativeType: "NUMBER", TypeCode: model.TypeNumeric,
				Precision: 10, Nullable: model.NoNulls, AutoIncrement: true,
			},
		},
		{
			name: "varchar2 with comment and default",
			row: columnRow{
				TableName: "ORDERS", ColumnName: "STATUS", ColumnID: 2, DataType: "VARCHAR2",
				Nullable: "Y", CharLength: i64(20), Default: str("'NEW' \n"), Comments: str("order state"),
			},
			want: model.ColumnInfo{
				Table: "ORDERS", Name: "STATUS", Position: 2, NativeType: "VARCHAR2", TypeCode: model.TypeVarchar,
				Precision: 20, Nullable: model.Nullable, Remarks: "order state",
			},
		},
		{
			name: "timestamp with fraction",
			row: columnRow{
				TableName: "ORDERS", ColumnName: "PLACED_AT", ColumnID: 3, DataType: "TIMESTAMP(6)",
				Nullable: "Y", CharLength: i64(0), Scale: i64(6),
			},
			want: model.ColumnInfo{
				Table: "ORDERS", Name: "PLACED_AT", Position: 3, NativeType: "TIMESTAMP(6)", TypeCode: model.TypeTimestamp,
				Scale: 6, Nullable: model.Nullable,
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.row.info()
			def := got.Default
			got.Default = nil
			if got != tt.want {
				t.Errorf("info() = %+v\nwant     %+v", got, tt.want)
			}
			if tt.row.Default != nil && (def == nil || *def != "'NEW'") {
				t.Errorf("default = %v, want trimmed 'NEW'", def)
			}
		})
	}
}

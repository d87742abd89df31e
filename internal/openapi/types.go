package openapi

import (
	"strings"

	"github.com/faucetdb/schemagraph/internal/model"
)

// TypeMapping is an OpenAPI type/format pair.
type TypeMapping struct {
	Type   string // string, integer, number, boolean, object, array
	Format string // int32, int64, float, double, date, date-time, byte, uuid, ...
}

// nativeOther maps native types that report a vendor or OTHER type code.
var nativeOther = map[string]TypeMapping{
	"uuid":             {"string", "uuid"},
	"uniqueidentifier": {"string", "uuid"},
	"json":             {"object", ""},
	"jsonb":            {"object", ""},
	"inet":             {"string", "ipv4"},
	"money":            {"number", "double"},
	"interval":         {"string", ""},
}

// MapType converts a generic SQL type code to an OpenAPI type. Codes without
// an OpenAPI counterpart fall back to the native type name, then to string.
func MapType(code model.TypeCode, nativeType string) TypeMapping {
	switch code {
	case model.TypeBit, model.TypeBoolean:
		return TypeMapping{"boolean", ""}
	case model.TypeTinyInt, model.TypeSmallInt, model.TypeInteger:
		return TypeMapping{"integer", "int32"}
	case model.TypeBigInt:
		return TypeMapping{"integer", "int64"}
	case model.TypeFloat, model.TypeDouble:
		return TypeMapping{"number", "double"}
	case model.TypeReal:
		return TypeMapping{"number", "float"}
	case model.TypeNumeric, model.TypeDecimal:
		return TypeMapping{"number", ""}
	case model.TypeDate:
		return TypeMapping{"string", "date"}
	case model.TypeTime, model.TypeTimeWithTimezone:
		return TypeMapping{"string", "time"}
	case model.TypeTimestamp, model.TypeTimestampWithTimezone:
		return TypeMapping{"string", "date-time"}
	case model.TypeBinary, model.TypeVarbinary, model.TypeLongVarbinary, model.TypeBlob:
		return TypeMapping{"string", "byte"}
	case model.TypeArray:
		return TypeMapping{"array", ""}
	case model.TypeChar, model.TypeVarchar, model.TypeLongVarchar,
		model.TypeNChar, model.TypeNVarchar, model.TypeClob, model.TypeNClob, model.TypeSQLXML:
		return TypeMapping{"string", ""}
	}

	name := strings.ToLower(strings.TrimSpace(nativeType))
	if i := strings.IndexByte(name, '('); i >= 0 {
		name = strings.TrimSpace(name[:i])
	}
	if strings.HasSuffix(name, "[]") {
		return TypeMapping{"array", ""}
	}
	if m, ok := nativeOther[name]; ok {
		return m
	}
	return TypeMapping{"string", ""}
}

// hasLength reports whether a column precision is a character length.
func hasLength(code model.TypeCode) bool {
	switch code {
	case model.TypeChar, model.TypeVarchar, model.TypeNChar, model.TypeNVarchar:
		return true
	}
	return false
}

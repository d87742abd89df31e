package model

import "strings"

// TypeCode is a generic SQL type code. The numeric values follow the
// java.sql.Types constants so that codes reported by any driver can be
// compared across platforms.
type TypeCode int

const (
	TypeBit                   TypeCode = -7
	TypeTinyInt               TypeCode = -6
	TypeSmallInt              TypeCode = 5
	TypeInteger               TypeCode = 4
	TypeBigInt                TypeCode = -5
	TypeFloat                 TypeCode = 6
	TypeReal                  TypeCode = 7
	TypeDouble                TypeCode = 8
	TypeNumeric               TypeCode = 2
	TypeDecimal               TypeCode = 3
	TypeChar                  TypeCode = 1
	TypeVarchar               TypeCode = 12
	TypeLongVarchar           TypeCode = -1
	TypeNChar                 TypeCode = -15
	TypeNVarchar              TypeCode = -9
	TypeDate                  TypeCode = 91
	TypeTime                  TypeCode = 92
	TypeTimestamp             TypeCode = 93
	TypeTimeWithTimezone      TypeCode = 2013
	TypeTimestampWithTimezone TypeCode = 2014
	TypeBinary                TypeCode = -2
	TypeVarbinary             TypeCode = -3
	TypeLongVarbinary         TypeCode = -4
	TypeBlob                  TypeCode = 2004
	TypeClob                  TypeCode = 2005
	TypeNClob                 TypeCode = 2011
	TypeBoolean               TypeCode = 16
	TypeArray                 TypeCode = 2003
	TypeSQLXML                TypeCode = 2009
	TypeOther                 TypeCode = 1111
)

var typeCodeNames = map[TypeCode]string{
	TypeBit:                   "BIT",
	TypeTinyInt:               "TINYINT",
	TypeSmallInt:              "SMALLINT",
	TypeInteger:               "INTEGER",
	TypeBigInt:                "BIGINT",
	TypeFloat:                 "FLOAT",
	TypeReal:                  "REAL",
	TypeDouble:                "DOUBLE",
	TypeNumeric:               "NUMERIC",
	TypeDecimal:               "DECIMAL",
	TypeChar:                  "CHAR",
	TypeVarchar:               "VARCHAR",
	TypeLongVarchar:           "LONGVARCHAR",
	TypeNChar:                 "NCHAR",
	TypeNVarchar:              "NVARCHAR",
	TypeDate:                  "DATE",
	TypeTime:                  "TIME",
	TypeTimestamp:             "TIMESTAMP",
	TypeTimeWithTimezone:      "TIME_WITH_TIMEZONE",
	TypeTimestampWithTimezone: "TIMESTAMP_WITH_TIMEZONE",
	TypeBinary:                "BINARY",
	TypeVarbinary:             "VARBINARY",
	TypeLongVarbinary:         "LONGVARBINARY",
	TypeBlob:                  "BLOB",
	TypeClob:                  "CLOB",
	TypeNClob:                 "NCLOB",
	TypeBoolean:               "BOOLEAN",
	TypeArray:                 "ARRAY",
	TypeSQLXML:                "SQLXML",
	TypeOther:                 "OTHER",
}

// String returns the generic name of the type code.
func (c TypeCode) String() string {
	if name, ok := typeCodeNames[c]; ok {
		return name
	}
	return "OTHER"
}

// ParseTypeCode is the inverse of TypeCode.String. Names that are not
// generic type names are resolved as native types.
func ParseTypeCode(name string) TypeCode {
	upper := strings.ToUpper(strings.TrimSpace(name))
	for code, n := range typeCodeNames {
		if n == upper {
			return code
		}
	}
	return TypeCodeFor(name)
}

// TypeCodeFor maps a native (driver reported) type name to a generic type
// code. Length and precision suffixes such as VARCHAR(255) are ignored.
func TypeCodeFor(nativeType string) TypeCode {
	upper := strings.ToUpper(strings.TrimSpace(nativeType))
	if idx := strings.IndexByte(upper, '('); idx >= 0 {
		upper = strings.TrimSpace(upper[:idx])
	}
	if strings.HasSuffix(upper, "[]") || strings.HasPrefix(upper, "_") {
		return TypeArray
	}

	switch upper {
	case "BIT":
		return TypeBit
	case "TINYINT":
		return TypeTinyInt
	case "SMALLINT", "INT2", "SMALLSERIAL":
		return TypeSmallInt
	case "INT", "INTEGER", "INT4", "SERIAL", "MEDIUMINT":
		return TypeInteger
	case "BIGINT", "INT8", "BIGSERIAL":
		return TypeBigInt
	case "FLOAT", "BINARY_FLOAT":
		return TypeFloat
	case "REAL", "FLOAT4":
		return TypeReal
	case "DOUBLE", "DOUBLE PRECISION", "FLOAT8", "BINARY_DOUBLE":
		return TypeDouble
	case "NUMERIC", "NUMBER", "MONEY", "SMALLMONEY", "FIXED":
		return TypeNumeric
	case "DECIMAL", "DEC":
		return TypeDecimal
	case "CHAR", "CHARACTER", "BPCHAR":
		return TypeChar
	case "VARCHAR", "CHARACTER VARYING", "VARCHAR2", "STRING", "CITEXT", "NAME":
		return TypeVarchar
	case "TEXT", "LONGTEXT", "MEDIUMTEXT", "TINYTEXT", "LONG":
		return TypeLongVarchar
	case "NCHAR":
		return TypeNChar
	case "NVARCHAR", "NVARCHAR2", "NTEXT":
		return TypeNVarchar
	case "DATE":
		return TypeDate
	case "TIME", "TIME WITHOUT TIME ZONE":
		return TypeTime
	case "TIMETZ", "TIME WITH TIME ZONE":
		return TypeTimeWithTimezone
	case "TIMESTAMP", "DATETIME", "DATETIME2", "SMALLDATETIME", "TIMESTAMP WITHOUT TIME ZONE", "TIMESTAMP_NTZ":
		return TypeTimestamp
	case "TIMESTAMPTZ", "TIMESTAMP WITH TIME ZONE", "DATETIMEOFFSET", "TIMESTAMP_TZ", "TIMESTAMP_LTZ":
		return TypeTimestampWithTimezone
	case "BINARY":
		return TypeBinary
	case "VARBINARY", "RAW":
		return TypeVarbinary
	case "BYTEA", "LONGBLOB", "MEDIUMBLOB", "IMAGE", "LONG RAW":
		return TypeLongVarbinary
	case "BLOB", "TINYBLOB":
		return TypeBlob
	case "CLOB":
		return TypeClob
	case "NCLOB":
		return TypeNClob
	case "BOOL", "BOOLEAN":
		return TypeBoolean
	case "ARRAY":
		return TypeArray
	case "XML", "XMLTYPE":
		return TypeSQLXML
	default:
		return TypeOther
	}
}

// IsNumeric reports whether precision and scale are meaningful for the code.
func (c TypeCode) IsNumeric() bool {
	switch c {
	case TypeNumeric, TypeDecimal, TypeFloat, TypeReal, TypeDouble,
		TypeTinyInt, TypeSmallInt, TypeInteger, TypeBigInt:
		return true
	}
	return false
}

package dataset

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

var (
	ErrUnknownType     = errors.New("unknown type")
	ErrUnknownColumn   = errors.New("unknown column")
	ErrDuplicateColumn = errors.New("duplicate column")
)

// Kind enumerates supported logical types.
type Kind int

const (
	KindInvalid Kind = iota
	KindBool
	KindByte  // 8-bit integer
	KindShort // 16-bit integer
	KindInt   // 32-bit integer
	KindLong  // 64-bit integer
	KindFloat // 64-bit floating point
	KindString
	KindDate
	KindTimestamp
)

// Canonical text layouts for temporal values.
const (
	DateLayout      = "2006-01-02"
	TimestampLayout = "2006-01-02 15:04:05"
)

var kindNames = map[Kind]string{
	KindBool:      "boolean",
	KindByte:      "byte",
	KindShort:     "short",
	KindInt:       "integer",
	KindLong:      "long",
	KindFloat:     "double",
	KindString:    "string",
	KindDate:      "date",
	KindTimestamp: "timestamp",
}

var kindAliases = map[string]Kind{
	"bool":      KindBool,
	"boolean":   KindBool,
	"byte":      KindByte,
	"tinyint":   KindByte,
	"short":     KindShort,
	"smallint":  KindShort,
	"int":       KindInt,
	"integer":   KindInt,
	"long":      KindLong,
	"bigint":    KindLong,
	"float":     KindFloat,
	"double":    KindFloat,
	"real":      KindFloat,
	"string":    KindString,
	"str":       KindString,
	"varchar":   KindString,
	"text":      KindString,
	"date":      KindDate,
	"timestamp": KindTimestamp,
	"datetime":  KindTimestamp,
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return "invalid"
}

// ParseKind resolves a type name such as "integer" or "bigint".
func ParseKind(name string) (Kind, error) {
	k, ok := kindAliases[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return KindInvalid, fmt.Errorf("%w: %q", ErrUnknownType, name)
	}
	return k, nil
}

func (k Kind) IsIntegral() bool {
	return k == KindByte || k == KindShort || k == KindInt || k == KindLong
}

func (k Kind) IsNumeric() bool { return k.IsIntegral() || k == KindFloat }

func (k Kind) IsTemporal() bool { return k == KindDate || k == KindTimestamp }

// IntRange returns the inclusive bounds of an integral kind.
func (k Kind) IntRange() (lo, hi int64) {
	switch k {
	case KindByte:
		return math.MinInt8, math.MaxInt8
	case KindShort:
		return math.MinInt16, math.MaxInt16
	case KindInt:
		return math.MinInt32, math.MaxInt32
	default:
		return math.MinInt64, math.MaxInt64
	}
}

// FormatValue renders a cell value as canonical text. Nil renders as "".
func FormatValue(k Kind, v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case bool:
		return strconv.FormatBool(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	case string:
		return t
	case time.Time:
		if k == KindDate {
			return t.UTC().Format(DateLayout)
		}
		return t.UTC().Format(TimestampLayout)
	default:
		return fmt.Sprint(t)
	}
}

// Compare orders two non-null values produced by Column.Value for the same
// kind. It returns -1, 0 or +1. NaN sorts above every other float.
func Compare(a, b any) int {
	switch x := a.(type) {
	case bool:
		y := b.(bool)
		switch {
		case x == y:
			return 0
		case !x:
			return -1
		default:
			return 1
		}
	case int64:
		y := b.(int64)
		return cmp3(x < y, x > y)
	case float64:
		y := b.(float64)
		xn, yn := math.IsNaN(x), math.IsNaN(y)
		switch {
		case xn && yn:
			return 0
		case xn:
			return 1
		case yn:
			return -1
		}
		return cmp3(x < y, x > y)
	case string:
		return strings.Compare(x, b.(string))
	case time.Time:
		return x.Compare(b.(time.Time))
	}
	panic(fmt.Sprintf("dataset: cannot compare %T", a))
}

// CompareRows orders rows i and j of c with nulls first.
func CompareRows(c Column, i, j int) int {
	in, jn := c.IsNull(i), c.IsNull(j)
	switch {
	case in && jn:
		return 0
	case in:
		return -1
	case jn:
		return 1
	}
	return Compare(c.Value(i), c.Value(j))
}

func cmp3(less, greater bool) int {
	switch {
	case less:
		return -1
	case greater:
		return 1
	}
	return 0
}

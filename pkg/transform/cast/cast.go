package cast

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	ds "github.com/wdm0006/dedupjob/pkg/dataset"
)

var ErrUnsupported = errors.New("unsupported cast")

// Supported reports whether values of kind from can be cast to kind to.
// Temporal and boolean columns only convert to each other through text.
func Supported(from, to ds.Kind) bool {
	switch {
	case from == to, from == ds.KindString, to == ds.KindString:
		return true
	case from == ds.KindDate:
		return to == ds.KindTimestamp
	case to == ds.KindDate:
		return from == ds.KindTimestamp
	case from == ds.KindBool && to.IsTemporal():
		return false
	case from.IsTemporal() && to == ds.KindBool:
		return false
	}
	return true
}

// Column casts every cell of c to kind to. Cells that cannot be converted
// become null and their row indexes are returned as failed.
func Column(c ds.Column, to ds.Kind) (out ds.Column, failed []int, err error) {
	from := c.Kind()
	if !Supported(from, to) {
		return nil, nil, fmt.Errorf("%w: %s from %v to %v", ErrUnsupported, c.Name(), from, to)
	}
	if from == to {
		return c, nil, nil
	}
	out, err = ds.NewColumn(c.Name(), to, c.Len())
	if err != nil {
		return nil, nil, err
	}
	set := setter(out)
	for i := 0; i < c.Len(); i++ {
		v := c.Value(i)
		if v == nil {
			continue
		}
		nv, err := Value(from, v, to)
		if err != nil {
			failed = append(failed, i)
			continue
		}
		set(i, nv)
	}
	return out, failed, nil
}

func setter(c ds.Column) func(int, any) {
	switch col := c.(type) {
	case *ds.BoolColumn:
		return func(i int, v any) { col.Set(i, v.(bool)) }
	case *ds.IntColumn:
		return func(i int, v any) { col.Set(i, v.(int64)) }
	case *ds.FloatColumn:
		return func(i int, v any) { col.Set(i, v.(float64)) }
	case *ds.StringColumn:
		return func(i int, v any) { col.Set(i, v.(string)) }
	case *ds.TimeColumn:
		return func(i int, v any) { col.Set(i, v.(time.Time)) }
	}
	panic(fmt.Sprintf("cast: unknown column type %T", c))
}

// Value converts one non-null value of kind from into kind to.
func Value(from ds.Kind, v any, to ds.Kind) (any, error) {
	if to == ds.KindString {
		return ds.FormatValue(from, v), nil
	}
	switch x := v.(type) {
	case string:
		return fromString(x, to)
	case int64:
		return fromInt(x, to)
	case float64:
		return fromFloat(x, to)
	case bool:
		var n int64
		if x {
			n = 1
		}
		switch {
		case to == ds.KindBool:
			return x, nil
		case to == ds.KindFloat:
			return float64(n), nil
		case to.IsIntegral():
			return n, nil
		}
	case time.Time:
		return fromTime(from, x, to)
	}
	return nil, fmt.Errorf("%w: %T to %v", ErrUnsupported, v, to)
}

func fromString(s string, to ds.Kind) (any, error) {
	switch {
	case to.IsIntegral():
		return ds.ParseIntegral(s, to)
	case to == ds.KindFloat:
		return ds.ParseDouble(s)
	case to == ds.KindBool:
		return ds.ParseBool(s)
	case to == ds.KindDate:
		return ds.ParseDate(s)
	case to == ds.KindTimestamp:
		return ds.ParseTimestamp(s)
	}
	return nil, fmt.Errorf("%w: string to %v", ErrUnsupported, to)
}

func fromInt(n int64, to ds.Kind) (any, error) {
	switch {
	case to.IsIntegral():
		lo, hi := to.IntRange()
		if n < lo || n > hi {
			return nil, &strconv.NumError{Func: "cast", Num: strconv.FormatInt(n, 10), Err: strconv.ErrRange}
		}
		return n, nil
	case to == ds.KindFloat:
		return float64(n), nil
	case to == ds.KindBool:
		return n != 0, nil
	case to == ds.KindTimestamp:
		return time.Unix(n, 0).UTC(), nil
	}
	return nil, fmt.Errorf("%w: integer to %v", ErrUnsupported, to)
}

func fromFloat(f float64, to ds.Kind) (any, error) {
	switch {
	case to.IsIntegral():
		return ds.FloatToIntegral(f, to)
	case to == ds.KindBool:
		return f != 0, nil
	case to == ds.KindTimestamp:
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, &strconv.NumError{Func: "cast", Num: strconv.FormatFloat(f, 'g', -1, 64), Err: strconv.ErrRange}
		}
		sec, frac := math.Modf(f)
		return time.Unix(int64(sec), int64(frac*1e9)).UTC(), nil
	}
	return nil, fmt.Errorf("%w: double to %v", ErrUnsupported, to)
}

func fromTime(from ds.Kind, t time.Time, to ds.Kind) (any, error) {
	switch {
	case to.IsTemporal():
		return t, nil
	case from == ds.KindTimestamp && to.IsIntegral():
		return fromInt(t.Unix(), to)
	case from == ds.KindTimestamp && to == ds.KindFloat:
		return float64(t.UnixMicro()) / 1e6, nil
	}
	return nil, fmt.Errorf("%w: %v to %v", ErrUnsupported, from, to)
}

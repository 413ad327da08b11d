package dataset

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"time"
)

var errSyntax = errors.New("invalid syntax")

// timestampLayouts are tried in order. Offsets are honoured; values without one
// are read as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
}

// ParseTimestamp reads ISO-8601 style text. A bare date means midnight UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if len(s) == len(DateLayout) {
		return time.Parse(DateLayout, s)
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, &strconv.NumError{Func: "ParseTimestamp", Num: s, Err: errSyntax}
}

// ParseDate reads "2006-01-02", ignoring any trailing time part.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if len(s) > len(DateLayout) {
		if c := s[len(DateLayout)]; c != 'T' && c != ' ' {
			return time.Time{}, &strconv.NumError{Func: "ParseDate", Num: s, Err: errSyntax}
		}
		t, err := ParseTimestamp(s)
		if err != nil {
			return time.Time{}, err
		}
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	return time.Parse(DateLayout, s)
}

// IsDateOnly reports whether s is exactly a "2006-01-02" date.
func IsDateOnly(s string) bool {
	if len(s) != len(DateLayout) {
		return false
	}
	_, err := time.Parse(DateLayout, s)
	return err == nil
}

// ParseBool accepts t/true/y/yes/1 and f/false/n/no/0 in any case.
func ParseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "t", "true", "y", "yes", "1":
		return true, nil
	case "f", "false", "n", "no", "0":
		return false, nil
	}
	return false, &strconv.NumError{Func: "ParseBool", Num: s, Err: errSyntax}
}

// ParseIntegral reads integer text for an integral kind. Decimal text is
// truncated toward zero. Values outside the kind's range fail.
func ParseIntegral(s string, k Kind) (int64, error) {
	s = strings.TrimSpace(s)
	lo, hi := k.IntRange()
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) {
			return 0, err
		}
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil || !strings.ContainsAny(s, ".eE") {
			return 0, err
		}
		return FloatToIntegral(f, k)
	}
	if v < lo || v > hi {
		return 0, &strconv.NumError{Func: "ParseIntegral", Num: s, Err: strconv.ErrRange}
	}
	return v, nil
}

// FloatToIntegral truncates f toward zero and range-checks it for k.
func FloatToIntegral(f float64, k Kind) (int64, error) {
	num := strconv.FormatFloat(f, 'g', -1, 64)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, &strconv.NumError{Func: "FloatToIntegral", Num: num, Err: strconv.ErrRange}
	}
	t := math.Trunc(f)
	lo, hi := k.IntRange()
	// float64(MaxInt64) rounds up to 2^63, so compare with >=.
	if t < float64(lo) || t >= float64(hi)+1 {
		return 0, &strconv.NumError{Func: "FloatToIntegral", Num: num, Err: strconv.ErrRange}
	}
	return int64(t), nil
}

// ParseDouble reads finite float text. NaN and infinities are rejected since
// no output format can carry them.
func ParseDouble(s string) (float64, error) {
	s = strings.TrimSpace(s)
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, &strconv.NumError{Func: "ParseDouble", Num: s, Err: strconv.ErrRange}
	}
	return f, nil
}

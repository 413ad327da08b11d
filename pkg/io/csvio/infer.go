package csvio

import (
	"regexp"
	"strconv"
	"strings"

	ds "github.com/wdm0006/dedupjob/pkg/dataset"
)

var (
	intRe   = regexp.MustCompile(`^[-+]?[0-9]+$`)
	floatRe = regexp.MustCompile(`^[-+]?([0-9]+\.?[0-9]*|\.[0-9]+)([eE][-+]?[0-9]+)?$`)
)

// inferKinds picks the narrowest kind that every non-null value of a column
// fits: integer, long, double, boolean, date, timestamp, else string.
func inferKinds(rows [][]string, ncol int, cell func(string) (string, bool)) []ds.Kind {
	kinds := make([]ds.Kind, ncol)
	for c := 0; c < ncol; c++ {
		k := ds.KindInvalid
		for _, row := range rows {
			if c >= len(row) {
				continue
			}
			v, ok := cell(row[c])
			if !ok {
				continue
			}
			k = mergeKinds(k, inferValue(v))
			if k == ds.KindString {
				break
			}
		}
		if k == ds.KindInvalid {
			k = ds.KindString
		}
		kinds[c] = k
	}
	return kinds
}

func inferValue(v string) ds.Kind {
	switch {
	case intRe.MatchString(v):
		if _, err := ds.ParseIntegral(v, ds.KindInt); err == nil {
			return ds.KindInt
		}
		if _, err := strconv.ParseInt(v, 10, 64); err == nil {
			return ds.KindLong
		}
		return ds.KindFloat
	case floatRe.MatchString(v):
		return ds.KindFloat
	}
	lv := strings.ToLower(v)
	if lv == "true" || lv == "false" {
		return ds.KindBool
	}
	if ds.IsDateOnly(v) {
		return ds.KindDate
	}
	if _, err := ds.ParseTimestamp(v); err == nil {
		return ds.KindTimestamp
	}
	return ds.KindString
}

// mergeKinds widens a column's kind to admit another value's kind.
func mergeKinds(a, b ds.Kind) ds.Kind {
	switch {
	case a == ds.KindInvalid:
		return b
	case a == b:
		return a
	case a.IsNumeric() && b.IsNumeric():
		return numericRank[max(rank(a), rank(b))]
	case a.IsTemporal() && b.IsTemporal():
		return ds.KindTimestamp
	}
	return ds.KindString
}

var numericRank = []ds.Kind{ds.KindInt, ds.KindLong, ds.KindFloat}

func rank(k ds.Kind) int {
	for i, n := range numericRank {
		if n == k {
			return i
		}
	}
	return 0
}

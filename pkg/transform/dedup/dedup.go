// Package dedup collapses rows that share a key down to the most recent one.
package dedup

import (
	"context"
	"fmt"
	"sort"

	ds "github.com/wdm0006/dedupjob/pkg/dataset"
)

const (
	DefaultKey     = "id"
	DefaultOrderBy = "update_date"
)

// Latest keeps, for every distinct Key value, the row with the greatest
// OrderBy value and returns the survivors sorted by Key ascending.
//
// A null OrderBy loses to any non-null one. When rows tie on OrderBy the one
// that came first in the input wins. Null keys form a single group that
// sorts before every other key.
type Latest struct {
	Key     string
	OrderBy string
}

func (l Latest) Name() string { return "dedup" }

func (l Latest) keys() (string, string) {
	key, order := l.Key, l.OrderBy
	if key == "" {
		key = DefaultKey
	}
	if order == "" {
		order = DefaultOrderBy
	}
	return key, order
}

func (l Latest) Apply(ctx context.Context, d *ds.Dataset) (*ds.Dataset, error) {
	keyName, orderName := l.keys()
	key, ok := d.ColumnByName(keyName)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ds.ErrUnknownColumn, keyName)
	}
	order, ok := d.ColumnByName(orderName)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ds.ErrUnknownColumn, orderName)
	}

	idx := make([]int, d.Rows())
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return ds.CompareRows(key, idx[a], idx[b]) < 0 })
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	winners := make([]int, 0, len(idx))
	for start := 0; start < len(idx); {
		best := idx[start]
		end := start + 1
		for ; end < len(idx) && ds.CompareRows(key, idx[start], idx[end]) == 0; end++ {
			if ds.CompareRows(order, idx[end], best) > 0 {
				best = idx[end]
			}
		}
		winners = append(winners, best)
		start = end
	}
	return d.Take(winners), nil
}

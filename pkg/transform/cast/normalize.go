// Package cast converts dataset columns to the kinds named by a type mapping.
package cast

import (
	"context"
	"fmt"
	"strings"

	ds "github.com/wdm0006/dedupjob/pkg/dataset"
	"github.com/wdm0006/dedupjob/pkg/typemap"
)

// Policy decides what happens to a cell that cannot be converted.
type Policy string

const (
	PolicyNull Policy = "null"
	PolicyFail Policy = "fail"
)

func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "null":
		return PolicyNull, nil
	case "fail", "error":
		return PolicyFail, nil
	}
	return "", fmt.Errorf("unknown cast error policy %q", s)
}

// CastError reports the first cell that failed under PolicyFail.
type CastError struct {
	Column string
	Row    int
	Value  string
	To     ds.Kind
}

func (e *CastError) Error() string {
	return fmt.Sprintf("cast %s row %d: cannot convert %q to %v", e.Column, e.Row, e.Value, e.To)
}

// Normalize casts each mapped column to its target kind. Columns the mapping
// does not name pass through unchanged, and column order is kept.
type Normalize struct {
	Mapping typemap.Mapping
	OnError Policy

	nulled map[string]int
}

func (n *Normalize) Name() string { return "normalize" }

// Nulled returns, per column, how many cells the last Apply turned null.
func (n *Normalize) Nulled() map[string]int { return n.nulled }

func (n *Normalize) Apply(ctx context.Context, d *ds.Dataset) (*ds.Dataset, error) {
	schema := d.Schema()
	for _, e := range n.Mapping {
		cs, ok := schema.Lookup(e.Column)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ds.ErrUnknownColumn, e.Column)
		}
		if !Supported(cs.Type, e.Kind) {
			return nil, fmt.Errorf("%w: %s from %v to %v", ErrUnsupported, e.Column, cs.Type, e.Kind)
		}
	}
	n.nulled = map[string]int{}
	out := d
	for _, e := range n.Mapping {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		src, _ := d.ColumnByName(e.Column)
		col, failed, err := Column(src, e.Kind)
		if err != nil {
			return nil, err
		}
		if len(failed) > 0 {
			if n.OnError == PolicyFail {
				r := failed[0]
				return nil, &CastError{Column: e.Column, Row: r, Value: ds.FormatValue(src.Kind(), src.Value(r)), To: e.Kind}
			}
			n.nulled[e.Column] = len(failed)
		}
		if out, err = out.WithColumn(col); err != nil {
			return nil, err
		}
	}
	return out, nil
}

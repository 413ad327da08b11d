// Package profile computes per-column summaries of a Dataset for logs and
// the --profile report.
package profile

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	ds "github.com/wdm0006/dedupjob/pkg/dataset"
)

type NumStats struct {
	Count int     `json:"count"`
	Nulls int     `json:"nulls"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Sum   float64 `json:"sum"`
}

type BoolStats struct {
	Count int `json:"count"`
	Nulls int `json:"nulls"`
	True  int `json:"true"`
	False int `json:"false"`
}

type TimeStats struct {
	Count int       `json:"count"`
	Nulls int       `json:"nulls"`
	Min   time.Time `json:"min"`
	Max   time.Time `json:"max"`
}

type StringStats struct {
	Count    int            `json:"count"`
	Nulls    int            `json:"nulls"`
	Distinct int            `json:"distinct"`
	Top      map[string]int `json:"top,omitempty"`

	freqs map[string]int
}

type ColumnProfile struct {
	Name string       `json:"name"`
	Kind string       `json:"kind"`
	Num  *NumStats    `json:"num,omitempty"`
	Bool *BoolStats   `json:"bool,omitempty"`
	Time *TimeStats   `json:"time,omitempty"`
	Str  *StringStats `json:"str,omitempty"`

	kind ds.Kind
}

// Report is the JSON form written by --profile.
type Report struct {
	Rows    int             `json:"rows"`
	Columns []ColumnProfile `json:"columns"`
}

// Collector accumulates statistics over one or more datasets of the same
// schema.
type Collector struct {
	rows  int
	cols  []ColumnProfile
	index map[string]int
	topK  int
}

// NewCollector prepares a collector for schema. topK bounds the string
// frequencies kept in reports; zero disables them.
func NewCollector(schema ds.Schema, topK int) *Collector {
	c := &Collector{index: make(map[string]int), topK: topK}
	c.cols = make([]ColumnProfile, len(schema.Columns))
	for i, cs := range schema.Columns {
		cp := ColumnProfile{Name: cs.Name, Kind: cs.Type.String(), kind: cs.Type}
		switch {
		case cs.Type.IsNumeric():
			cp.Num = &NumStats{Min: math.Inf(1), Max: math.Inf(-1)}
		case cs.Type == ds.KindBool:
			cp.Bool = &BoolStats{}
		case cs.Type.IsTemporal():
			cp.Time = &TimeStats{}
		default:
			cp.Str = &StringStats{freqs: make(map[string]int)}
		}
		c.cols[i] = cp
		c.index[cs.Name] = i
	}
	return c
}

// Consume adds every row of d. Columns unknown to the collector are ignored.
func (c *Collector) Consume(d *ds.Dataset) {
	c.rows += d.Rows()
	for i := 0; i < d.Cols(); i++ {
		col := d.Column(i)
		idx, ok := c.index[col.Name()]
		if !ok {
			continue
		}
		cp := &c.cols[idx]
		for r := 0; r < col.Len(); r++ {
			cp.add(col.Value(r))
		}
	}
}

func (cp *ColumnProfile) add(v any) {
	switch {
	case cp.Num != nil:
		if v == nil {
			cp.Num.Nulls++
			return
		}
		var f float64
		switch x := v.(type) {
		case int64:
			f = float64(x)
		case float64:
			f = x
		}
		cp.Num.Count++
		cp.Num.Min = math.Min(cp.Num.Min, f)
		cp.Num.Max = math.Max(cp.Num.Max, f)
		cp.Num.Sum += f
	case cp.Bool != nil:
		if v == nil {
			cp.Bool.Nulls++
			return
		}
		cp.Bool.Count++
		if v.(bool) {
			cp.Bool.True++
		} else {
			cp.Bool.False++
		}
	case cp.Time != nil:
		if v == nil {
			cp.Time.Nulls++
			return
		}
		t := v.(time.Time)
		if cp.Time.Count == 0 || t.Before(cp.Time.Min) {
			cp.Time.Min = t
		}
		if cp.Time.Count == 0 || t.After(cp.Time.Max) {
			cp.Time.Max = t
		}
		cp.Time.Count++
	case cp.Str != nil:
		if v == nil {
			cp.Str.Nulls++
			return
		}
		cp.Str.Count++
		cp.Str.freqs[ds.FormatValue(cp.kind, v)]++
	}
}

type freq struct {
	val string
	n   int
}

func (s *StringStats) top(k int) []freq {
	arr := make([]freq, 0, len(s.freqs))
	for v, n := range s.freqs {
		arr = append(arr, freq{v, n})
	}
	sort.Slice(arr, func(i, j int) bool {
		if arr[i].n != arr[j].n {
			return arr[i].n > arr[j].n
		}
		return arr[i].val < arr[j].val
	})
	if k < len(arr) {
		arr = arr[:k]
	}
	return arr
}

// Report returns the accumulated statistics.
func (c *Collector) Report() Report {
	out := Report{Rows: c.rows, Columns: make([]ColumnProfile, len(c.cols))}
	for i, cp := range c.cols {
		if cp.Num != nil && cp.Num.Count == 0 {
			n := *cp.Num
			n.Min, n.Max = 0, 0
			cp.Num = &n
		}
		if cp.Str != nil {
			s := *cp.Str
			s.Distinct = len(s.freqs)
			if c.topK > 0 && len(s.freqs) > 0 {
				s.Top = make(map[string]int)
				for _, f := range s.top(c.topK) {
					s.Top[f.val] = f.n
				}
			}
			cp.Str = &s
		}
		out.Columns[i] = cp
	}
	return out
}

// ReportText renders a human readable summary, one line per column.
func (c *Collector) ReportText() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Profile Summary (%d rows)\n", c.rows)
	for _, cp := range c.cols {
		fmt.Fprintf(&b, "- %s (%s): ", cp.Name, cp.Kind)
		switch {
		case cp.Num != nil:
			if cp.Num.Count == 0 {
				fmt.Fprintf(&b, "count=0 nulls=%d\n", cp.Num.Nulls)
				continue
			}
			mean := cp.Num.Sum / float64(cp.Num.Count)
			fmt.Fprintf(&b, "count=%d nulls=%d min=%.6g max=%.6g mean=%.6g\n", cp.Num.Count, cp.Num.Nulls, cp.Num.Min, cp.Num.Max, mean)
		case cp.Bool != nil:
			fmt.Fprintf(&b, "count=%d nulls=%d true=%d false=%d\n", cp.Bool.Count, cp.Bool.Nulls, cp.Bool.True, cp.Bool.False)
		case cp.Time != nil:
			if cp.Time.Count == 0 {
				fmt.Fprintf(&b, "count=0 nulls=%d\n", cp.Time.Nulls)
				continue
			}
			fmt.Fprintf(&b, "count=%d nulls=%d min=%s max=%s\n", cp.Time.Count, cp.Time.Nulls,
				ds.FormatValue(cp.kind, cp.Time.Min), ds.FormatValue(cp.kind, cp.Time.Max))
		case cp.Str != nil:
			fmt.Fprintf(&b, "count=%d nulls=%d distinct=%d\n", cp.Str.Count, cp.Str.Nulls, len(cp.Str.freqs))
			if c.topK > 0 {
				for _, f := range cp.Str.top(c.topK) {
					fmt.Fprintf(&b, "  * %q: %d\n", f.val, f.n)
				}
			}
		}
	}
	return b.String()
}

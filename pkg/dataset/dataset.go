package dataset

import (
	"fmt"
	"time"
)

// Schema describes the logical shape of a dataset.
type Schema struct {
	Columns []ColumnSchema
}

type ColumnSchema struct {
	Name     string
	Type     Kind
	Nullable bool
}

// Names returns the column names in schema order.
func (s Schema) Names() []string {
	out := make([]string, len(s.Columns))
	for i, cs := range s.Columns {
		out[i] = cs.Name
	}
	return out
}

// Lookup returns the schema entry for name.
func (s Schema) Lookup(name string) (ColumnSchema, bool) {
	for _, cs := range s.Columns {
		if cs.Name == name {
			return cs, true
		}
	}
	return ColumnSchema{}, false
}

// Column is a typed, nullable column abstraction.
type Column interface {
	Name() string
	Kind() Kind
	Len() int
	IsNull(i int) bool
	// Value returns the cell as bool, int64, float64, string or time.Time,
	// or nil when the cell is null.
	Value(i int) any
	take(rows []int) Column
}

type BoolColumn struct {
	name  string
	data  []bool
	nulls []bool
}

func NewBoolColumn(name string, n int) *BoolColumn {
	return &BoolColumn{name: name, data: make([]bool, n), nulls: nullMask(n)}
}
func (c *BoolColumn) Name() string           { return c.name }
func (c *BoolColumn) Kind() Kind             { return KindBool }
func (c *BoolColumn) Len() int               { return len(c.data) }
func (c *BoolColumn) IsNull(i int) bool      { return c.nulls[i] }
func (c *BoolColumn) SetNull(i int)          { c.nulls[i] = true }
func (c *BoolColumn) Get(i int) (bool, bool) { return c.data[i], !c.nulls[i] }
func (c *BoolColumn) Set(i int, v bool)      { c.data[i] = v; c.nulls[i] = false }
func (c *BoolColumn) AppendNull()            { c.data = append(c.data, false); c.nulls = append(c.nulls, true) }
func (c *BoolColumn) Append(v bool)          { c.data = append(c.data, v); c.nulls = append(c.nulls, false) }
func (c *BoolColumn) Value(i int) any {
	if c.nulls[i] {
		return nil
	}
	return c.data[i]
}
func (c *BoolColumn) take(rows []int) Column {
	out := &BoolColumn{name: c.name, data: make([]bool, len(rows)), nulls: make([]bool, len(rows))}
	for k, r := range rows {
		out.data[k], out.nulls[k] = c.data[r], c.nulls[r]
	}
	return out
}

// IntColumn stores every integral width as int64. The kind records the
// declared width (KindByte, KindShort, KindInt or KindLong).
type IntColumn struct {
	name  string
	kind  Kind
	data  []int64
	nulls []bool
}

func NewIntColumn(name string, kind Kind, n int) *IntColumn {
	if !kind.IsIntegral() {
		panic("dataset: IntColumn requires an integral kind")
	}
	return &IntColumn{name: name, kind: kind, data: make([]int64, n), nulls: nullMask(n)}
}
func (c *IntColumn) Name() string            { return c.name }
func (c *IntColumn) Kind() Kind              { return c.kind }
func (c *IntColumn) Len() int                { return len(c.data) }
func (c *IntColumn) IsNull(i int) bool       { return c.nulls[i] }
func (c *IntColumn) SetNull(i int)           { c.nulls[i] = true }
func (c *IntColumn) Get(i int) (int64, bool) { return c.data[i], !c.nulls[i] }
func (c *IntColumn) Set(i int, v int64)      { c.data[i] = v; c.nulls[i] = false }
func (c *IntColumn) AppendNull()             { c.data = append(c.data, 0); c.nulls = append(c.nulls, true) }
func (c *IntColumn) Append(v int64)          { c.data = append(c.data, v); c.nulls = append(c.nulls, false) }
func (c *IntColumn) Value(i int) any {
	if c.nulls[i] {
		return nil
	}
	return c.data[i]
}
func (c *IntColumn) take(rows []int) Column {
	out := &IntColumn{name: c.name, kind: c.kind, data: make([]int64, len(rows)), nulls: make([]bool, len(rows))}
	for k, r := range rows {
		out.data[k], out.nulls[k] = c.data[r], c.nulls[r]
	}
	return out
}

type FloatColumn struct {
	name  string
	data  []float64
	nulls []bool
}

func NewFloatColumn(name string, n int) *FloatColumn {
	return &FloatColumn{name: name, data: make([]float64, n), nulls: nullMask(n)}
}
func (c *FloatColumn) Name() string              { return c.name }
func (c *FloatColumn) Kind() Kind                { return KindFloat }
func (c *FloatColumn) Len() int                  { return len(c.data) }
func (c *FloatColumn) IsNull(i int) bool         { return c.nulls[i] }
func (c *FloatColumn) SetNull(i int)             { c.nulls[i] = true }
func (c *FloatColumn) Get(i int) (float64, bool) { return c.data[i], !c.nulls[i] }
func (c *FloatColumn) Set(i int, v float64)      { c.data[i] = v; c.nulls[i] = false }
func (c *FloatColumn) AppendNull()               { c.data = append(c.data, 0); c.nulls = append(c.nulls, true) }
func (c *FloatColumn) Append(v float64)          { c.data = append(c.data, v); c.nulls = append(c.nulls, false) }
func (c *FloatColumn) Value(i int) any {
	if c.nulls[i] {
		return nil
	}
	return c.data[i]
}
func (c *FloatColumn) take(rows []int) Column {
	out := &FloatColumn{name: c.name, data: make([]float64, len(rows)), nulls: make([]bool, len(rows))}
	for k, r := range rows {
		out.data[k], out.nulls[k] = c.data[r], c.nulls[r]
	}
	return out
}

type StringColumn struct {
	name  string
	data  []string
	nulls []bool
}

func NewStringColumn(name string, n int) *StringColumn {
	return &StringColumn{name: name, data: make([]string, n), nulls: nullMask(n)}
}
func (c *StringColumn) Name() string             { return c.name }
func (c *StringColumn) Kind() Kind               { return KindString }
func (c *StringColumn) Len() int                 { return len(c.data) }
func (c *StringColumn) IsNull(i int) bool        { return c.nulls[i] }
func (c *StringColumn) SetNull(i int)            { c.nulls[i] = true }
func (c *StringColumn) Get(i int) (string, bool) { return c.data[i], !c.nulls[i] }
func (c *StringColumn) Set(i int, v string)      { c.data[i] = v; c.nulls[i] = false }
func (c *StringColumn) AppendNull()              { c.data = append(c.data, ""); c.nulls = append(c.nulls, true) }
func (c *StringColumn) Append(v string)          { c.data = append(c.data, v); c.nulls = append(c.nulls, false) }
func (c *StringColumn) Value(i int) any {
	if c.nulls[i] {
		return nil
	}
	return c.data[i]
}
func (c *StringColumn) take(rows []int) Column {
	out := &StringColumn{name: c.name, data: make([]string, len(rows)), nulls: make([]bool, len(rows))}
	for k, r := range rows {
		out.data[k], out.nulls[k] = c.data[r], c.nulls[r]
	}
	return out
}

// TimeColumn holds KindDate or KindTimestamp values. Dates are stored as
// midnight UTC.
type TimeColumn struct {
	name  string
	kind  Kind
	data  []time.Time
	nulls []bool
}

func NewTimeColumn(name string, kind Kind, n int) *TimeColumn {
	if kind != KindDate && kind != KindTimestamp {
		panic("dataset: TimeColumn requires KindDate or KindTimestamp")
	}
	return &TimeColumn{name: name, kind: kind, data: make([]time.Time, n), nulls: nullMask(n)}
}
func (c *TimeColumn) Name() string                { return c.name }
func (c *TimeColumn) Kind() Kind                  { return c.kind }
func (c *TimeColumn) Len() int                    { return len(c.data) }
func (c *TimeColumn) IsNull(i int) bool           { return c.nulls[i] }
func (c *TimeColumn) SetNull(i int)               { c.nulls[i] = true }
func (c *TimeColumn) Get(i int) (time.Time, bool) { return c.data[i], !c.nulls[i] }
func (c *TimeColumn) Set(i int, v time.Time)      { c.data[i] = c.normalize(v); c.nulls[i] = false }
func (c *TimeColumn) AppendNull() {
	c.data = append(c.data, time.Time{})
	c.nulls = append(c.nulls, true)
}
func (c *TimeColumn) Append(v time.Time) {
	c.data = append(c.data, c.normalize(v))
	c.nulls = append(c.nulls, false)
}
func (c *TimeColumn) Value(i int) any {
	if c.nulls[i] {
		return nil
	}
	return c.data[i]
}
func (c *TimeColumn) take(rows []int) Column {
	out := &TimeColumn{name: c.name, kind: c.kind, data: make([]time.Time, len(rows)), nulls: make([]bool, len(rows))}
	for k, r := range rows {
		out.data[k], out.nulls[k] = c.data[r], c.nulls[r]
	}
	return out
}

func (c *TimeColumn) normalize(v time.Time) time.Time {
	v = v.UTC()
	if c.kind == KindDate {
		return time.Date(v.Year(), v.Month(), v.Day(), 0, 0, 0, 0, time.UTC)
	}
	return v
}

// NewColumn allocates an all-null column of n rows for kind.
func NewColumn(name string, kind Kind, n int) (Column, error) {
	switch {
	case kind == KindBool:
		return NewBoolColumn(name, n), nil
	case kind.IsIntegral():
		return NewIntColumn(name, kind, n), nil
	case kind == KindFloat:
		return NewFloatColumn(name, n), nil
	case kind == KindString:
		return NewStringColumn(name, n), nil
	case kind == KindDate, kind == KindTimestamp:
		return NewTimeColumn(name, kind, n), nil
	default:
		return nil, fmt.Errorf("%w: kind %d for column %s", ErrUnknownType, kind, name)
	}
}

func nullMask(n int) []bool {
	m := make([]bool, n)
	for i := range m {
		m[i] = true
	}
	return m
}

// Dataset is a columnar container for tabular data. Once a Dataset has been
// handed to a Stage it is treated as immutable: stages build new Datasets
// with Take and WithColumn instead of writing cells.
type Dataset struct {
	schema Schema
	cols   []Column
	index  map[string]int // name -> col index
	nrows  int
}

func New(s Schema) *Dataset {
	d := &Dataset{schema: s, cols: make([]Column, len(s.Columns)), index: make(map[string]int)}
	for i, cs := range s.Columns {
		c, err := NewColumn(cs.Name, cs.Type, 0)
		if err != nil {
			panic(err)
		}
		d.cols[i] = c
		d.index[cs.Name] = i
	}
	return d
}

// FromColumns assembles a Dataset from equally sized columns.
func FromColumns(cols ...Column) (*Dataset, error) {
	d := &Dataset{cols: make([]Column, 0, len(cols)), index: make(map[string]int, len(cols))}
	for i, c := range cols {
		if _, dup := d.index[c.Name()]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateColumn, c.Name())
		}
		if i == 0 {
			d.nrows = c.Len()
		} else if c.Len() != d.nrows {
			return nil, fmt.Errorf("column %s has %d rows, want %d", c.Name(), c.Len(), d.nrows)
		}
		d.index[c.Name()] = i
		d.cols = append(d.cols, c)
		d.schema.Columns = append(d.schema.Columns, ColumnSchema{Name: c.Name(), Type: c.Kind(), Nullable: true})
	}
	return d, nil
}

func (d *Dataset) Schema() Schema { return d.schema }
func (d *Dataset) Rows() int      { return d.nrows }
func (d *Dataset) Cols() int      { return len(d.cols) }

// Column returns the i-th column in schema order.
func (d *Dataset) Column(i int) Column { return d.cols[i] }

func (d *Dataset) ColumnByName(name string) (Column, bool) {
	i, ok := d.index[name]
	if !ok {
		return nil, false
	}
	return d.cols[i], true
}

// Value returns a single cell, nil when null or when the column is unknown.
func (d *Dataset) Value(row int, name string) any {
	c, ok := d.ColumnByName(name)
	if !ok {
		return nil
	}
	return c.Value(row)
}

// Row returns a copy of a row keyed by column name. Null cells map to nil.
func (d *Dataset) Row(i int) map[string]any {
	m := make(map[string]any, len(d.cols))
	for _, c := range d.cols {
		m[c.Name()] = c.Value(i)
	}
	return m
}

// Take returns a new Dataset holding the given rows in the given order.
func (d *Dataset) Take(rows []int) *Dataset {
	out := &Dataset{schema: d.schema, cols: make([]Column, len(d.cols)), index: d.index, nrows: len(rows)}
	for i, c := range d.cols {
		out.cols[i] = c.take(rows)
	}
	return out
}

// WithColumn returns a new Dataset in which c replaces the column of the
// same name, keeping its position, or is appended when no such column exists.
// Other columns are shared with d.
func (d *Dataset) WithColumn(c Column) (*Dataset, error) {
	if c.Len() != d.nrows {
		return nil, fmt.Errorf("column %s has %d rows, want %d", c.Name(), c.Len(), d.nrows)
	}
	out := &Dataset{
		schema: Schema{Columns: append([]ColumnSchema(nil), d.schema.Columns...)},
		cols:   append([]Column(nil), d.cols...),
		index:  d.index,
		nrows:  d.nrows,
	}
	cs := ColumnSchema{Name: c.Name(), Type: c.Kind(), Nullable: true}
	if i, ok := d.index[c.Name()]; ok {
		out.cols[i] = c
		out.schema.Columns[i] = cs
		return out, nil
	}
	out.index = make(map[string]int, len(d.index)+1)
	for k, v := range d.index {
		out.index[k] = v
	}
	out.index[c.Name()] = len(out.cols)
	out.cols = append(out.cols, c)
	out.schema.Columns = append(out.schema.Columns, cs)
	return out, nil
}

// AppendNullRow appends a row with all-null values.
func (d *Dataset) AppendNullRow() {
	for _, c := range d.cols {
		switch col := c.(type) {
		case *BoolColumn:
			col.AppendNull()
		case *IntColumn:
			col.AppendNull()
		case *FloatColumn:
			col.AppendNull()
		case *StringColumn:
			col.AppendNull()
		case *TimeColumn:
			col.AppendNull()
		default:
			panic("unknown column type")
		}
	}
	d.nrows++
}

// SetCell sets a single cell value by name (row must exist).
func (d *Dataset) SetCell(row int, name string, v any) error {
	i, ok := d.index[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownColumn, name)
	}
	c := d.cols[i]
	switch col := c.(type) {
	case *BoolColumn:
		if v == nil {
			col.SetNull(row)
			return nil
		}
		b, ok := v.(bool)
		if !ok {
			return fmt.Errorf("column %s expects bool", name)
		}
		col.Set(row, b)
	case *IntColumn:
		if v == nil {
			col.SetNull(row)
			return nil
		}
		switch t := v.(type) {
		case int:
			col.Set(row, int64(t))
		case int32:
			col.Set(row, int64(t))
		case int64:
			col.Set(row, t)
		default:
			return fmt.Errorf("column %s expects int/int64", name)
		}
	case *FloatColumn:
		if v == nil {
			col.SetNull(row)
			return nil
		}
		switch t := v.(type) {
		case float32:
			col.Set(row, float64(t))
		case float64:
			col.Set(row, t)
		case int:
			col.Set(row, float64(t))
		case int64:
			col.Set(row, float64(t))
		default:
			return fmt.Errorf("column %s expects float64", name)
		}
	case *StringColumn:
		if v == nil {
			col.SetNull(row)
			return nil
		}
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("column %s expects string", name)
		}
		col.Set(row, s)
	case *TimeColumn:
		if v == nil {
			col.SetNull(row)
			return nil
		}
		t, ok := v.(time.Time)
		if !ok {
			return fmt.Errorf("column %s expects time.Time", name)
		}
		col.Set(row, t)
	default:
		return fmt.Errorf("unknown column kind")
	}
	return nil
}

package parquetio

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	parquet "github.com/segmentio/parquet-go"
	"github.com/segmentio/parquet-go/format"

	ds "github.com/wdm0006/dedupjob/pkg/dataset"
)

// ReadFile loads a flat Parquet file into a Dataset.
func ReadFile(path string) (*ds.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	st, err := f.Stat()
	if err != nil {
		return nil, err
	}
	pf, err := parquet.OpenFile(f, st.Size())
	if err != nil {
		return nil, fmt.Errorf("open parquet %s: %w", path, err)
	}
	schema, err := schemaOf(pf.Schema())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	d := ds.New(schema)
	if err := appendRows(d, pf); err != nil {
		return nil, fmt.Errorf("read parquet %s: %w", path, err)
	}
	return d, nil
}

// ReadDir loads every *.parquet file of an output directory, in name order,
// into one Dataset. Files whose names start with "_" or "." are skipped.
func ReadDir(dir string) (*ds.Dataset, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		n := e.Name()
		if e.IsDir() || strings.HasPrefix(n, "_") || strings.HasPrefix(n, ".") || !strings.HasSuffix(n, ".parquet") {
			continue
		}
		names = append(names, n)
	}
	sort.Strings(names)
	if len(names) == 0 {
		return nil, fmt.Errorf("no parquet files in %s", dir)
	}
	var out *ds.Dataset
	for _, n := range names {
		part, err := ReadFile(filepath.Join(dir, n))
		if err != nil {
			return nil, err
		}
		if out == nil {
			out = part
			continue
		}
		if !sameSchema(out.Schema(), part.Schema()) {
			return nil, fmt.Errorf("%s: schema differs from earlier parts", n)
		}
		for r := 0; r < part.Rows(); r++ {
			out.AppendNullRow()
			row := out.Rows() - 1
			for c, cs := range part.Schema().Columns {
				if err := out.SetCell(row, cs.Name, part.Column(c).Value(r)); err != nil {
					return nil, err
				}
			}
		}
	}
	return out, nil
}

func sameSchema(a, b ds.Schema) bool {
	if len(a.Columns) != len(b.Columns) {
		return false
	}
	for i := range a.Columns {
		if a.Columns[i].Name != b.Columns[i].Name || a.Columns[i].Type != b.Columns[i].Type {
			return false
		}
	}
	return true
}

func schemaOf(s *parquet.Schema) (ds.Schema, error) {
	var out ds.Schema
	for _, f := range s.Fields() {
		if !f.Leaf() {
			return ds.Schema{}, fmt.Errorf("nested column %s is not supported", f.Name())
		}
		k, err := kindOf(f.Type())
		if err != nil {
			return ds.Schema{}, fmt.Errorf("column %s: %w", f.Name(), err)
		}
		out.Columns = append(out.Columns, ds.ColumnSchema{Name: f.Name(), Type: k, Nullable: f.Optional()})
	}
	return out, nil
}

func kindOf(t parquet.Type) (ds.Kind, error) {
	lt := t.LogicalType()
	switch t.Kind() {
	case parquet.Boolean:
		return ds.KindBool, nil
	case parquet.Int32:
		switch {
		case lt != nil && lt.Date != nil:
			return ds.KindDate, nil
		case lt != nil && lt.Integer != nil && lt.Integer.BitWidth == 8:
			return ds.KindByte, nil
		case lt != nil && lt.Integer != nil && lt.Integer.BitWidth == 16:
			return ds.KindShort, nil
		}
		return ds.KindInt, nil
	case parquet.Int64:
		if lt != nil && lt.Timestamp != nil {
			return ds.KindTimestamp, nil
		}
		return ds.KindLong, nil
	case parquet.Float, parquet.Double:
		return ds.KindFloat, nil
	case parquet.ByteArray:
		return ds.KindString, nil
	}
	return ds.KindInvalid, fmt.Errorf("%w: parquet %v", ds.ErrUnknownType, t)
}

func appendRows(d *ds.Dataset, pf *parquet.File) error {
	fields := pf.Schema().Fields()
	units := make([]*format.TimeUnit, len(fields))
	for i, f := range fields {
		if lt := f.Type().LogicalType(); lt != nil && lt.Timestamp != nil {
			units[i] = &lt.Timestamp.Unit
		}
	}
	schema := d.Schema()
	buf := make([]parquet.Row, 256)
	for _, rg := range pf.RowGroups() {
		rows := rg.Rows()
		for {
			n, err := rows.ReadRows(buf)
			for _, pr := range buf[:n] {
				d.AppendNullRow()
				row := d.Rows() - 1
				for _, v := range pr {
					c := v.Column()
					if v.IsNull() || c < 0 || c >= len(schema.Columns) {
						continue
					}
					cs := schema.Columns[c]
					if err := d.SetCell(row, cs.Name, fromParquet(cs.Type, units[c], v)); err != nil {
						_ = rows.Close()
						return err
					}
				}
			}
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				_ = rows.Close()
				return err
			}
		}
		if err := rows.Close(); err != nil {
			return err
		}
	}
	return nil
}

func fromParquet(k ds.Kind, unit *format.TimeUnit, v parquet.Value) any {
	switch k {
	case ds.KindBool:
		return v.Boolean()
	case ds.KindByte, ds.KindShort, ds.KindInt:
		return int64(v.Int32())
	case ds.KindLong:
		return v.Int64()
	case ds.KindFloat:
		if v.Kind() == parquet.Float {
			return float64(v.Float())
		}
		return v.Double()
	case ds.KindString:
		return string(v.ByteArray())
	case ds.KindDate:
		return time.Unix(int64(v.Int32())*86400, 0).UTC()
	case ds.KindTimestamp:
		x := v.Int64()
		switch {
		case unit != nil && unit.Millis != nil:
			return time.UnixMilli(x).UTC()
		case unit != nil && unit.Nanos != nil:
			return time.Unix(0, x).UTC()
		}
		return time.UnixMicro(x).UTC()
	}
	return nil
}

package csvio

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	ds "github.com/wdm0006/dedupjob/pkg/dataset"
	iox "github.com/wdm0006/dedupjob/pkg/io/ioutils"
)

var ErrNoHeader = errors.New("csv: missing header row")

type ReaderOptions struct {
	HasHeader  bool
	Delimiter  rune // 0 = sniff, default ','
	SampleRows int  // rows used for inference; 0 = all rows
	InferTypes bool // false reads every column as string
	TrimSpace  bool
	NullValue  string // cell text read as null; "" always is
	Strict     bool   // if true, error on short/long records
}

type Reader struct {
	r   *csv.Reader
	opt ReaderOptions
	buf [][]string
	// repair/warning counters
	shortRecords int
	longRecords  int
	unparsed     int
}

// Open opens a CSV file (or stdin for "-") and returns a Reader and the
// handle to close when done.
func Open(path string, opt ReaderOptions) (*Reader, io.Closer, error) {
	rc, err := iox.OpenMaybeCompressed(path)
	if err != nil {
		return nil, nil, err
	}
	br := bufio.NewReader(rc)
	lazy := false
	if opt.Delimiter == 0 {
		sample, _ := br.Peek(4096)
		opt.Delimiter, lazy = sniffDelimiter(sample)
	}
	r := NewReaderFrom(br, opt)
	r.r.LazyQuotes = lazy
	return r, rc, nil
}

// NewReaderFrom constructs a Reader from an arbitrary io.Reader (stdin, pipe).
func NewReaderFrom(r io.Reader, opt ReaderOptions) *Reader {
	rr := csv.NewReader(r)
	if opt.Delimiter != 0 {
		rr.Comma = opt.Delimiter
	}
	rr.FieldsPerRecord = -1
	return &Reader{r: rr, opt: opt}
}

// InferSchema reads header (if present) and samples rows to determine column kinds.
func (r *Reader) InferSchema() (ds.Schema, []string, error) {
	rec, err := r.r.Read()
	if err == io.EOF {
		return ds.Schema{}, nil, ErrNoHeader
	}
	if err != nil {
		return ds.Schema{}, nil, err
	}
	names := make([]string, len(rec))
	if r.opt.HasHeader {
		for i := range rec {
			names[i] = strings.ToValidUTF8(rec[i], "?")
			if i == 0 {
				// strip BOM on first header cell if present
				names[i] = strings.TrimPrefix(names[i], "\ufeff")
			}
			if r.opt.TrimSpace {
				names[i] = strings.TrimSpace(names[i])
			}
			if names[i] == "" {
				names[i] = "_c" + strconv.Itoa(i)
			}
		}
	} else {
		for i := range names {
			names[i] = "_c" + strconv.Itoa(i)
		}
		r.buf = append(r.buf, rec)
	}
	seen := make(map[string]struct{}, len(names))
	for _, n := range names {
		if _, dup := seen[n]; dup {
			return ds.Schema{}, nil, fmt.Errorf("%w: %s", ds.ErrDuplicateColumn, n)
		}
		seen[n] = struct{}{}
	}

	max := r.opt.SampleRows
	for max <= 0 || len(r.buf) < max {
		rr, err := r.r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return ds.Schema{}, nil, err
		}
		r.buf = append(r.buf, rr)
	}

	kinds := make([]ds.Kind, len(names))
	for i := range kinds {
		kinds[i] = ds.KindString
	}
	if r.opt.InferTypes {
		kinds = inferKinds(r.buf, len(names), r.cell)
	}
	schema := ds.Schema{Columns: make([]ds.ColumnSchema, len(names))}
	for i := range names {
		schema.Columns[i] = ds.ColumnSchema{Name: names[i], Type: kinds[i], Nullable: true}
	}
	return schema, names, nil
}

// ReadAll loads the buffered records and the rest of the CSV into a Dataset.
func (r *Reader) ReadAll(schema ds.Schema) (*ds.Dataset, error) {
	d := ds.New(schema)
	for len(r.buf) > 0 {
		rec := r.buf[0]
		r.buf = r.buf[1:]
		if err := r.appendRecord(d, schema, rec); err != nil {
			return nil, err
		}
	}
	for {
		rec, err := r.r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if err := r.appendRecord(d, schema, rec); err != nil {
			return nil, err
		}
	}
	return d, nil
}

func (r *Reader) appendRecord(d *ds.Dataset, schema ds.Schema, rec []string) error {
	row := d.Rows()
	switch {
	case len(rec) < len(schema.Columns):
		r.shortRecords++
		if r.opt.Strict {
			return fmt.Errorf("csv short record at row %d: need %d fields, got %d", row+1, len(schema.Columns), len(rec))
		}
	case len(rec) > len(schema.Columns):
		r.longRecords++
		if r.opt.Strict {
			return fmt.Errorf("csv long record at row %d: need %d fields, got %d", row+1, len(schema.Columns), len(rec))
		}
	}
	// append a null row then set non-null values
	d.AppendNullRow()
	for i, cs := range schema.Columns {
		if i >= len(rec) {
			break
		}
		val, ok := r.cell(rec[i])
		if !ok {
			continue
		}
		v, err := parseAs(cs.Type, val)
		if err != nil {
			r.unparsed++
			continue
		}
		if err := d.SetCell(row, cs.Name, v); err != nil {
			return err
		}
	}
	return nil
}

// cell cleans raw text and reports whether it is non-null.
func (r *Reader) cell(raw string) (string, bool) {
	val := strings.ToValidUTF8(raw, "?")
	if r.opt.TrimSpace {
		val = strings.TrimSpace(val)
	}
	if val == "" || (r.opt.NullValue != "" && val == r.opt.NullValue) {
		return "", false
	}
	return val, true
}

func parseAs(k ds.Kind, val string) (any, error) {
	switch {
	case k == ds.KindString:
		return val, nil
	case k.IsIntegral():
		return ds.ParseIntegral(val, k)
	case k == ds.KindFloat:
		return ds.ParseDouble(val)
	case k == ds.KindBool:
		return strconv.ParseBool(strings.ToLower(strings.TrimSpace(val)))
	case k == ds.KindDate:
		return ds.ParseDate(val)
	case k == ds.KindTimestamp:
		return ds.ParseTimestamp(val)
	}
	return nil, fmt.Errorf("%w: %v", ds.ErrUnknownType, k)
}

func sniffDelimiter(sample []byte) (rune, bool) {
	if len(sample) == 0 {
		return ',', false
	}
	// only the first line decides; quoted data often contains other candidates
	line := sample
	if i := bytes.IndexByte(sample, '\n'); i >= 0 {
		line = sample[:i]
	}
	candidates := []byte{',', '\t', ';', '|'}
	best := byte(',')
	bestCount := 0
	for _, c := range candidates {
		cnt := 0
		for _, b := range line {
			if b == c {
				cnt++
			}
		}
		if cnt > bestCount {
			bestCount = cnt
			best = c
		}
	}
	// odd quote count in the sample suggests stray quotes
	quoteCount := 0
	for _, b := range line {
		if b == '"' {
			quoteCount++
		}
	}
	return rune(best), quoteCount%2 != 0
}

// Warnings returns a summary string of any repairs/mismatches encountered.
func (r *Reader) Warnings() string {
	if r.shortRecords == 0 && r.longRecords == 0 && r.unparsed == 0 {
		return ""
	}
	parts := []string{}
	if r.shortRecords > 0 {
		parts = append(parts, fmt.Sprintf("short_records=%d", r.shortRecords))
	}
	if r.longRecords > 0 {
		parts = append(parts, fmt.Sprintf("long_records=%d", r.longRecords))
	}
	if r.unparsed > 0 {
		parts = append(parts, fmt.Sprintf("unparsed_cells=%d", r.unparsed))
	}
	return strings.Join(parts, ", ")
}

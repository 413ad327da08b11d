package csvio

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	ds "github.com/wdm0006/dedupjob/pkg/dataset"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func readAll(t *testing.T, p string, opt ReaderOptions) (*Reader, *ds.Dataset) {
	t.Helper()
	r, f, err := Open(p, opt)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	schema, _, err := r.InferSchema()
	require.NoError(t, err)
	d, err := r.ReadAll(schema)
	require.NoError(t, err)
	return r, d
}

var inferOpts = ReaderOptions{HasHeader: true, InferTypes: true, TrimSpace: true}

func TestInferAndRead(t *testing.T) {
	p := writeFile(t, "users.csv", "\ufeffid,name,amount,score,active,update_date,created_at\n"+
		"1,ana,10,1.5,true,2023-01-01,2023-01-01 10:00:00\n"+
		"2,bo,3000000000,2,False,2023-02-01,2023-02-01T08:30:00Z\n"+
		"3,,,,,,\n")
	_, d := readAll(t, p, inferOpts)

	want := map[string]ds.Kind{
		"id": ds.KindInt, "name": ds.KindString, "amount": ds.KindLong, "score": ds.KindFloat,
		"active": ds.KindBool, "update_date": ds.KindDate, "created_at": ds.KindTimestamp,
	}
	require.Equal(t, []string{"id", "name", "amount", "score", "active", "update_date", "created_at"}, d.Schema().Names())
	for _, cs := range d.Schema().Columns {
		require.Equal(t, want[cs.Name], cs.Type, cs.Name)
	}
	require.Equal(t, 3, d.Rows())
	require.Equal(t, int64(3000000000), d.Value(1, "amount"))
	require.Equal(t, false, d.Value(1, "active"))
	require.Equal(t, time.Date(2023, 2, 1, 8, 30, 0, 0, time.UTC), d.Value(1, "created_at"))
	for _, name := range []string{"name", "amount", "score", "active", "update_date", "created_at"} {
		require.Nil(t, d.Value(2, name), name)
	}
}

func TestInferMixedFallsBackToString(t *testing.T) {
	p := writeFile(t, "m.csv", "a,b,c\n1,2023-01-01,1\nx,2023-01-01 10:00:00,2.5\n")
	_, d := readAll(t, p, inferOpts)
	require.Equal(t, ds.KindString, d.Schema().Columns[0].Type)
	require.Equal(t, ds.KindTimestamp, d.Schema().Columns[1].Type)
	require.Equal(t, ds.KindFloat, d.Schema().Columns[2].Type)
	require.Equal(t, "1", d.Value(0, "a"))
	require.Equal(t, 1.0, d.Value(0, "c"))
}

func TestNoInferReadsStrings(t *testing.T) {
	p := writeFile(t, "s.csv", "id,amount\n1,10\n")
	_, d := readAll(t, p, ReaderOptions{HasHeader: true})
	for _, cs := range d.Schema().Columns {
		require.Equal(t, ds.KindString, cs.Type)
	}
	require.Equal(t, "10", d.Value(0, "amount"))
}

func TestSniffDelimiter(t *testing.T) {
	p := writeFile(t, "semi.csv", "id;name\n1;\"a,b\"\n")
	_, d := readAll(t, p, inferOpts)
	require.Equal(t, []string{"id", "name"}, d.Schema().Names())
	require.Equal(t, "a,b", d.Value(0, "name"))
}

func TestNullValue(t *testing.T) {
	p := writeFile(t, "n.csv", "id,v\n1,NULL\n2,5\n")
	opt := inferOpts
	opt.NullValue = "NULL"
	_, d := readAll(t, p, opt)
	require.Equal(t, ds.KindInt, d.Schema().Columns[1].Type)
	require.Nil(t, d.Value(0, "v"))
	require.Equal(t, int64(5), d.Value(1, "v"))
}

func TestRaggedRecords(t *testing.T) {
	body := "a,b\n1\n2,3,4\n"
	r, d := readAll(t, writeFile(t, "r.csv", body), inferOpts)
	require.Equal(t, 2, d.Rows())
	require.Nil(t, d.Value(0, "b"))
	require.Equal(t, int64(3), d.Value(1, "b"))
	require.Equal(t, "short_records=1, long_records=1", r.Warnings())

	opt := inferOpts
	opt.Strict = true
	sr, f, err := Open(writeFile(t, "r2.csv", body), opt)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	schema, _, err := sr.InferSchema()
	require.NoError(t, err)
	_, err = sr.ReadAll(schema)
	require.Error(t, err)
	require.True(t, strings.Contains(err.Error(), "short record"))
}

func TestSampleRowsLeavesUnparsedNull(t *testing.T) {
	p := writeFile(t, "s.csv", "v\n1\n2\nabc\n")
	opt := inferOpts
	opt.SampleRows = 2
	r, d := readAll(t, p, opt)
	require.Equal(t, ds.KindInt, d.Schema().Columns[0].Type)
	require.Equal(t, 3, d.Rows())
	require.Nil(t, d.Value(2, "v"))
	require.Equal(t, "unparsed_cells=1", r.Warnings())
}

func TestNonFiniteDoublesAreNull(t *testing.T) {
	p := writeFile(t, "f.csv", "score\n1.5\nNaN\n-Inf\n")
	opt := inferOpts
	opt.SampleRows = 1
	r, d := readAll(t, p, opt)
	require.Equal(t, ds.KindFloat, d.Schema().Columns[0].Type)
	require.Equal(t, 1.5, d.Value(0, "score"))
	require.Nil(t, d.Value(1, "score"))
	require.Nil(t, d.Value(2, "score"))
	require.Equal(t, "unparsed_cells=2", r.Warnings())
}

func TestHeaderErrors(t *testing.T) {
	r, f, err := Open(writeFile(t, "e.csv", ""), inferOpts)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	_, _, err = r.InferSchema()
	require.ErrorIs(t, err, ErrNoHeader)

	r2, f2, err := Open(writeFile(t, "d.csv", "id,id\n1,2\n"), inferOpts)
	require.NoError(t, err)
	defer func() { _ = f2.Close() }()
	_, _, err = r2.InferSchema()
	require.ErrorIs(t, err, ds.ErrDuplicateColumn)

	_, _, err = Open(filepath.Join(t.TempDir(), "missing.csv"), inferOpts)
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestHeaderOnly(t *testing.T) {
	_, d := readAll(t, writeFile(t, "h.csv", "id,update_date\n"), inferOpts)
	require.Equal(t, 0, d.Rows())
	require.Equal(t, ds.KindString, d.Schema().Columns[0].Type)
}

func TestNoHeader(t *testing.T) {
	_, d := readAll(t, writeFile(t, "nh.csv", "1,a\n2,b\n"), ReaderOptions{InferTypes: true})
	require.Equal(t, []string{"_c0", "_c1"}, d.Schema().Names())
	require.Equal(t, 2, d.Rows())
}

func TestWriteAllRoundTrip(t *testing.T) {
	_, d := readAll(t, writeFile(t, "in.csv", "id,when,note\n1,2023-01-01,\n2,2023-02-01,x\n"), inferOpts)
	out := filepath.Join(t.TempDir(), "out.csv.gz")
	require.NoError(t, WriteAll(out, d, WriterOptions{}))

	_, back := readAll(t, out, inferOpts)
	require.Equal(t, d.Schema(), back.Schema())
	for i := 0; i < d.Rows(); i++ {
		require.Equal(t, d.Row(i), back.Row(i))
	}
}

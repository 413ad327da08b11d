package dataset

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSetCellAndValue(t *testing.T) {
	d := New(Schema{Columns: []ColumnSchema{
		{Name: "b", Type: KindBool},
		{Name: "i", Type: KindInt},
		{Name: "f", Type: KindFloat},
		{Name: "s", Type: KindString},
		{Name: "d", Type: KindDate},
	}})
	d.AppendNullRow()
	d.AppendNullRow()
	require.NoError(t, d.SetCell(0, "b", true))
	require.NoError(t, d.SetCell(0, "i", 7))
	require.NoError(t, d.SetCell(0, "f", 1.5))
	require.NoError(t, d.SetCell(0, "s", "x"))
	require.NoError(t, d.SetCell(0, "d", time.Date(2023, 2, 1, 13, 30, 0, 0, time.UTC)))
	require.ErrorIs(t, d.SetCell(0, "nope", 1), ErrUnknownColumn)
	require.Error(t, d.SetCell(0, "s", 1))

	row := d.Row(0)
	require.Equal(t, true, row["b"])
	require.Equal(t, int64(7), row["i"])
	require.Equal(t, 1.5, row["f"])
	require.Equal(t, "x", row["s"])
	// dates are truncated to midnight UTC
	require.Equal(t, time.Date(2023, 2, 1, 0, 0, 0, 0, time.UTC), row["d"])

	for name, v := range d.Row(1) {
		require.Nil(t, v, name)
	}
}

func TestTakeCopies(t *testing.T) {
	c := NewIntColumn("id", KindLong, 3)
	c.Set(0, 10)
	c.Set(1, 20)
	d, err := FromColumns(c)
	require.NoError(t, err)

	out := d.Take([]int{2, 0})
	require.Equal(t, 2, out.Rows())
	require.Nil(t, out.Value(0, "id"))
	require.Equal(t, int64(10), out.Value(1, "id"))

	c.Set(0, 99)
	require.Equal(t, int64(10), out.Value(1, "id"))
}

func TestWithColumn(t *testing.T) {
	a := NewStringColumn("a", 2)
	a.Set(0, "1")
	d, err := FromColumns(a, NewStringColumn("b", 2))
	require.NoError(t, err)

	ai := NewIntColumn("a", KindInt, 2)
	ai.Set(0, 1)
	out, err := d.WithColumn(ai)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, out.Schema().Names())
	require.Equal(t, KindInt, out.Schema().Columns[0].Type)
	require.Equal(t, KindString, d.Schema().Columns[0].Type)
	require.Equal(t, "1", d.Value(0, "a"))

	out2, err := out.WithColumn(NewBoolColumn("c", 2))
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b", "c"}, out2.Schema().Names())
	_, ok := out.ColumnByName("c")
	require.False(t, ok)

	_, err = d.WithColumn(NewBoolColumn("c", 5))
	require.Error(t, err)
}

func TestFromColumnsRejects(t *testing.T) {
	_, err := FromColumns(NewStringColumn("a", 1), NewStringColumn("a", 1))
	require.ErrorIs(t, err, ErrDuplicateColumn)
	_, err = FromColumns(NewStringColumn("a", 1), NewStringColumn("b", 2))
	require.Error(t, err)
}

func TestParseKind(t *testing.T) {
	cases := map[string]Kind{
		"integer": KindInt, "INT": KindInt, "bigint": KindLong, "Timestamp": KindTimestamp,
		"date": KindDate, "string": KindString, "boolean": KindBool, "double": KindFloat,
		"smallint": KindShort, "tinyint": KindByte,
	}
	for name, want := range cases {
		got, err := ParseKind(name)
		require.NoError(t, err, name)
		require.Equal(t, want, got, name)
	}
	_, err := ParseKind("decimal(10,2)")
	require.ErrorIs(t, err, ErrUnknownType)
}

func TestCompare(t *testing.T) {
	require.Equal(t, -1, Compare(int64(1), int64(2)))
	require.Equal(t, 1, Compare("b", "a"))
	require.Equal(t, 0, Compare(true, true))
	require.Equal(t, -1, Compare(false, true))
	require.Equal(t, 1, Compare(math.NaN(), 1e300))
	t1 := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	require.Equal(t, -1, Compare(t1, t1.Add(time.Second)))

	c := NewIntColumn("x", KindLong, 2)
	c.Set(1, 5)
	require.Equal(t, -1, CompareRows(c, 0, 1))
	require.Equal(t, 1, CompareRows(c, 1, 0))
}

func TestFormatValue(t *testing.T) {
	ts := time.Date(2023, 2, 1, 8, 9, 10, 0, time.UTC)
	require.Equal(t, "2023-02-01", FormatValue(KindDate, ts))
	require.Equal(t, "2023-02-01 08:09:10", FormatValue(KindTimestamp, ts))
	require.Equal(t, "2.5", FormatValue(KindFloat, 2.5))
	require.Equal(t, "", FormatValue(KindString, nil))
}

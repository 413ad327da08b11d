package ioutils

import (
	"bytes"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRoundTripGzip(t *testing.T) {
	p := filepath.Join(t.TempDir(), "x.csv.gz")
	w, err := CreateMaybeCompressed(p)
	require.NoError(t, err)
	_, err = io.WriteString(w, "id\n1\n")
	require.NoError(t, err)
	require.NoError(t, w.Close())

	r, err := OpenMaybeCompressed(p)
	require.NoError(t, err)
	defer func() { _ = r.Close() }()
	b, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Equal(t, "id\n1\n", string(b))
}

func TestSniffGzipWithoutExtension(t *testing.T) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, _ = zw.Write([]byte("a,b\n"))
	require.NoError(t, zw.Close())
	p := filepath.Join(t.TempDir(), "plain.csv")
	require.NoError(t, os.WriteFile(p, buf.Bytes(), 0o644))

	r, err := OpenMaybeCompressed(p)
	require.NoError(t, err)
	defer func() { _ = r.Close() }()
	b, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Equal(t, "a,b\n", string(b))
}

func TestStdin(t *testing.T) {
	old := Stdin
	t.Cleanup(func() { Stdin = old })
	Stdin = bytes.NewBufferString("id\n")
	r, err := OpenMaybeCompressed("-")
	require.NoError(t, err)
	b, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Equal(t, "id\n", string(b))
}

func TestOpenMissing(t *testing.T) {
	_, err := OpenMaybeCompressed(filepath.Join(t.TempDir(), "nope.csv"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

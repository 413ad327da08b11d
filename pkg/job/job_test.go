package job

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	ds "github.com/wdm0006/dedupjob/pkg/dataset"
	"github.com/wdm0006/dedupjob/pkg/io/outdir"
	"github.com/wdm0006/dedupjob/pkg/io/parquetio"
	"github.com/wdm0006/dedupjob/pkg/transform/cast"
)

const scenarioCSV = `id,update_date,amount
1,2023-01-01,10
1,2023-02-01,20
2,2023-01-01,30
`

func quietSession(t *testing.T) *Session {
	t.Helper()
	s := NewSession(slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func setup(t *testing.T, csv, mapping string) Config {
	t.Helper()
	dir := t.TempDir()
	cfg := Defaults()
	cfg.Input.Path = filepath.Join(dir, "load.csv")
	cfg.Types.Path = filepath.Join(dir, "types_mapping.json")
	cfg.Output.Path = filepath.Join(dir, "output")
	require.NoError(t, os.WriteFile(cfg.Input.Path, []byte(csv), 0o644))
	require.NoError(t, os.WriteFile(cfg.Types.Path, []byte(mapping), 0o644))
	return cfg
}

func parts(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var out []string
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "part-") {
			out = append(out, e.Name())
		}
	}
	return out
}

func TestRunScenario(t *testing.T) {
	cfg := setup(t, scenarioCSV, `{"amount": "integer", "update_date": "timestamp"}`)
	cfg.Output.Verify = true
	res, err := Run(context.Background(), quietSession(t), cfg)
	require.NoError(t, err)
	require.Equal(t, 3, res.RowsIn)
	require.Equal(t, 2, res.RowsOut)
	require.Empty(t, res.Nulled)
	require.NotNil(t, res.Verified)
	require.True(t, strings.HasSuffix(res.Part, ".snappy.parquet"))
	require.FileExists(t, filepath.Join(cfg.Output.Path, outdir.SuccessMarker))

	d, err := parquetio.ReadDir(cfg.Output.Path)
	require.NoError(t, err)
	require.Equal(t, []string{"id", "update_date", "amount"}, d.Schema().Names())
	amount, _ := d.Schema().Lookup("amount")
	require.Equal(t, ds.KindInt, amount.Type)
	require.Equal(t, 2, d.Rows())
	require.Equal(t, int64(1), d.Value(0, "id"))
	require.Equal(t, time.Date(2023, 2, 1, 0, 0, 0, 0, time.UTC), d.Value(0, "update_date"))
	require.Equal(t, int64(20), d.Value(0, "amount"))
	require.Equal(t, int64(2), d.Value(1, "id"))
	require.Equal(t, int64(30), d.Value(1, "amount"))
}

func TestRunUncastableBecomesNull(t *testing.T) {
	cfg := setup(t, "id,update_date,amount\n1,2023-01-01,abc\n2,2023-01-01,5\n", `{"amount": "integer"}`)
	res, err := Run(context.Background(), quietSession(t), cfg)
	require.NoError(t, err)
	require.Equal(t, map[string]int{"amount": 1}, res.Nulled)

	d, err := parquetio.ReadDir(cfg.Output.Path)
	require.NoError(t, err)
	require.Nil(t, d.Value(0, "amount"))
	require.Equal(t, int64(5), d.Value(1, "amount"))
}

func TestRunFailPolicy(t *testing.T) {
	cfg := setup(t, "id,update_date,amount\n1,2023-01-01,abc\n", `{"amount": "integer"}`)
	cfg.Types.OnCastError = "fail"
	_, err := Run(context.Background(), quietSession(t), cfg)
	var ce *cast.CastError
	require.True(t, errors.As(err, &ce))
	var cfgErr *ConfigError
	require.False(t, errors.As(err, &cfgErr))
	require.NoDirExists(t, cfg.Output.Path)
}

func TestRunOverwrites(t *testing.T) {
	cfg := setup(t, scenarioCSV, `{"amount": "integer"}`)
	_, err := Run(context.Background(), quietSession(t), cfg)
	require.NoError(t, err)
	first := parts(t, cfg.Output.Path)
	require.Len(t, first, 1)

	_, err = Run(context.Background(), quietSession(t), cfg)
	require.NoError(t, err)
	second := parts(t, cfg.Output.Path)
	require.Len(t, second, 1)
	require.NotEqual(t, first, second)

	// no staging or backup directories left next to the output
	entries, err := os.ReadDir(filepath.Dir(cfg.Output.Path))
	require.NoError(t, err)
	for _, e := range entries {
		require.False(t, strings.HasPrefix(e.Name(), "."), e.Name())
	}
}

func TestRunFailureKeepsPreviousOutput(t *testing.T) {
	cfg := setup(t, scenarioCSV, `{"amount": "integer"}`)
	_, err := Run(context.Background(), quietSession(t), cfg)
	require.NoError(t, err)
	before := parts(t, cfg.Output.Path)

	require.NoError(t, os.WriteFile(cfg.Types.Path, []byte(`{"missing": "integer"}`), 0o644))
	_, err = Run(context.Background(), quietSession(t), cfg)
	var ce *ConfigError
	require.True(t, errors.As(err, &ce))
	require.ErrorIs(t, err, ds.ErrUnknownColumn)
	require.Equal(t, before, parts(t, cfg.Output.Path))
}

func TestRunConfigErrors(t *testing.T) {
	cfg := setup(t, scenarioCSV, `{"amount": "money"}`)
	_, err := Run(context.Background(), quietSession(t), cfg)
	var ce *ConfigError
	require.True(t, errors.As(err, &ce))
	require.ErrorIs(t, err, ds.ErrUnknownType)

	cfg = setup(t, scenarioCSV, `{}`)
	cfg.Dedup.Key = "nope"
	_, err = Run(context.Background(), quietSession(t), cfg)
	require.True(t, errors.As(err, &ce))

	cfg = setup(t, scenarioCSV, `{}`)
	cfg.Types.Path = filepath.Join(t.TempDir(), "absent.json")
	_, err = Run(context.Background(), quietSession(t), cfg)
	require.True(t, errors.As(err, &ce))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestRunMissingInput(t *testing.T) {
	cfg := setup(t, scenarioCSV, `{}`)
	cfg.Input.Path = filepath.Join(t.TempDir(), "absent.csv")
	_, err := Run(context.Background(), quietSession(t), cfg)
	require.ErrorIs(t, err, os.ErrNotExist)
	var ce *ConfigError
	require.False(t, errors.As(err, &ce))
}

func TestRunHeaderOnly(t *testing.T) {
	cfg := setup(t, "id,update_date\n", `{}`)
	res, err := Run(context.Background(), quietSession(t), cfg)
	require.NoError(t, err)
	require.Equal(t, 0, res.RowsOut)
	require.Len(t, parts(t, cfg.Output.Path), 1)
}

func TestRunCSVOutput(t *testing.T) {
	cfg := setup(t, scenarioCSV, `{"amount": "integer"}`)
	cfg.Output.Format = FormatCSV
	cfg.Output.Compression = "gzip"
	cfg.Output.Verify = true
	res, err := Run(context.Background(), quietSession(t), cfg)
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(res.Part, ".csv.gz"))
	require.Equal(t, 2, res.RowsOut)
}

func TestRunCanceled(t *testing.T) {
	cfg := setup(t, scenarioCSV, `{"amount": "integer"}`)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Run(ctx, quietSession(t), cfg)
	require.ErrorIs(t, err, context.Canceled)
	require.NoDirExists(t, cfg.Output.Path)
}

func TestValidate(t *testing.T) {
	require.NoError(t, Defaults().Validate())

	cfg := Defaults()
	cfg.Input.Path = ""
	cfg.Output.Format = "orc"
	cfg.Output.Compression = "lz4"
	cfg.Dedup.OrderBy = cfg.Dedup.Key
	cfg.Input.Delimiter = ";;"
	err := cfg.Validate()
	var ce *ConfigError
	require.True(t, errors.As(err, &ce))
	for _, want := range []string{"input.path", "orc", "lz4", "dedup.key", "delimiter"} {
		require.Contains(t, err.Error(), want)
	}
}

func TestDelimiter(t *testing.T) {
	cases := map[string]rune{"": 0, ",": ',', `\t`: '\t', "tab": '\t', "|": '|'}
	for in, want := range cases {
		got, err := InputConfig{Delimiter: in}.delimiter()
		require.NoError(t, err, in)
		require.Equal(t, want, got, in)
	}
}

func TestSessionCloseRemovesStaging(t *testing.T) {
	s := NewSession(nil)
	st, err := s.stage(filepath.Join(t.TempDir(), "out"))
	require.NoError(t, err)
	require.DirExists(t, st.Dir())
	require.NoError(t, s.Close())
	require.NoDirExists(t, st.Dir())
	require.NoError(t, s.Close())
	_, err = s.stage(filepath.Join(t.TempDir(), "out"))
	require.Error(t, err)
}

func TestRunJSONLOutput(t *testing.T) {
	cfg := setup(t, scenarioCSV, `{"amount": "integer"}`)
	cfg.Output.Format = FormatJSONL
	cfg.Output.Compression = "none"
	cfg.Output.Verify = true
	res, err := Run(context.Background(), quietSession(t), cfg)
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(res.Part, ".jsonl"))
	require.Equal(t, []string{"amount", "id", "update_date"}, res.Verified.Names())

	b, err := os.ReadFile(filepath.Join(res.Output, res.Part))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	require.Equal(t, []string{
		`{"amount":20,"id":1,"update_date":"2023-02-01"}`,
		`{"amount":30,"id":2,"update_date":"2023-01-01"}`,
	}, lines)
}

func TestRunVerifyFailureKeepsPreviousOutput(t *testing.T) {
	cfg := setup(t, scenarioCSV, `{"amount": "integer"}`)
	_, err := Run(context.Background(), quietSession(t), cfg)
	require.NoError(t, err)
	before := parts(t, cfg.Output.Path)

	verify = func(string, string, OutputConfig) (ds.Schema, int, error) { return ds.Schema{}, 0, nil }
	t.Cleanup(func() { verify = readBack })

	cfg.Output.Verify = true
	_, err = Run(context.Background(), quietSession(t), cfg)
	require.ErrorContains(t, err, "read back 0 rows, wrote 2")
	require.Equal(t, before, parts(t, cfg.Output.Path))

	entries, err := os.ReadDir(filepath.Dir(cfg.Output.Path))
	require.NoError(t, err)
	for _, e := range entries {
		require.False(t, strings.HasPrefix(e.Name(), "."), e.Name())
	}
}

func TestRunVerifiesStagedPart(t *testing.T) {
	cfg := setup(t, scenarioCSV, `{"amount": "integer"}`)
	cfg.Output.Verify = true
	var dirs []string
	verify = func(dir, part string, c OutputConfig) (ds.Schema, int, error) {
		dirs = append(dirs, dir)
		require.NoFileExists(t, filepath.Join(dir, outdir.SuccessMarker))
		return readBack(dir, part, c)
	}
	t.Cleanup(func() { verify = readBack })

	res, err := Run(context.Background(), quietSession(t), cfg)
	require.NoError(t, err)
	require.Len(t, dirs, 1)
	require.NotEqual(t, res.Output, dirs[0])
}

func TestRunLogsMappingCoverage(t *testing.T) {
	var logs strings.Builder
	sess := NewSession(slog.New(slog.NewTextHandler(&logs, nil)))
	t.Cleanup(func() { _ = sess.Close() })

	cfg := setup(t, scenarioCSV, `{"amount": "integer"}`)
	_, err := Run(context.Background(), sess, cfg)
	require.NoError(t, err)
	require.Contains(t, logs.String(), "columns=amount")
	require.Contains(t, logs.String(), "order column has no mapped type")
}

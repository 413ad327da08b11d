// Package job wires the reader, the casting and dedup stages and the writer
// into a single batch run.
package job

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"time"

	ds "github.com/wdm0006/dedupjob/pkg/dataset"
	"github.com/wdm0006/dedupjob/pkg/io/csvio"
	iox "github.com/wdm0006/dedupjob/pkg/io/ioutils"
	"github.com/wdm0006/dedupjob/pkg/io/jsonlio"
	"github.com/wdm0006/dedupjob/pkg/io/outdir"
	"github.com/wdm0006/dedupjob/pkg/io/parquetio"
	"github.com/wdm0006/dedupjob/pkg/profile"
	"github.com/wdm0006/dedupjob/pkg/transform/cast"
	"github.com/wdm0006/dedupjob/pkg/transform/dedup"
	"github.com/wdm0006/dedupjob/pkg/typemap"
)

// Result summarizes a successful run.
type Result struct {
	RowsIn   int
	RowsOut  int
	Nulled   map[string]int // cells turned null by casting, per column
	Warnings string         // reader repairs, empty when none
	Output   string         // committed output directory
	Part     string         // data file name inside Output
	Profile  profile.Report
	Verified *ds.Schema // set when Output.Verify is on
	Elapsed  time.Duration
}

// Run executes one extract, transform, load pass. Configuration problems are
// returned as *ConfigError. The previous output is untouched on any error,
// including a failed read-back when Output.Verify is set.
func Run(ctx context.Context, sess *Session, cfg Config) (*Result, error) {
	start := time.Now()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log := sess.Logger
	mapping, err := typemap.Load(cfg.Types.Path)
	if err != nil {
		return nil, configErr(fmt.Errorf("load type mapping: %w", err))
	}
	policy, _ := cast.ParsePolicy(cfg.Types.OnCastError)
	log.Info("loaded type mapping", "path", cfg.Types.Path, "columns", strings.Join(mapping.Columns(), ","))
	if _, ok := mapping.Lookup(cfg.Dedup.OrderBy); !ok {
		log.Warn("order column has no mapped type; comparing inferred values", "column", cfg.Dedup.OrderBy)
	}

	in, warnings, err := read(cfg.Input)
	if err != nil {
		return nil, err
	}
	log.Info("read input", "path", cfg.Input.Path, "rows", in.Rows(), "columns", in.Cols())
	if warnings != "" {
		log.Warn("input repaired", "path", cfg.Input.Path, "repairs", warnings)
	}

	norm := &cast.Normalize{Mapping: mapping, OnError: policy}
	p := ds.NewPipeline().
		Add(norm).
		Add(dedup.Latest{Key: cfg.Dedup.Key, OrderBy: cfg.Dedup.OrderBy}).
		Observe(func(stage string, before, after *ds.Dataset, elapsed time.Duration) {
			log.Info("stage done", "stage", stage, "rows_in", before.Rows(), "rows_out", after.Rows(), "elapsed", elapsed)
		})
	out, err := p.Run(ctx, in)
	if err != nil {
		if errors.Is(err, ds.ErrUnknownColumn) || errors.Is(err, cast.ErrUnsupported) {
			return nil, configErr(err)
		}
		return nil, err
	}
	for col, n := range norm.Nulled() {
		log.Warn("uncastable values set to null", "column", col, "cells", n)
	}

	st, err := sess.stage(cfg.Output.Path)
	if err != nil {
		return nil, fmt.Errorf("stage output: %w", err)
	}
	part, err := write(ctx, st, out, cfg.Output)
	if err != nil {
		_ = st.Abort()
		return nil, err
	}
	var verified *ds.Schema
	if cfg.Output.Verify {
		schema, err := checkPart(st.Dir(), part, cfg.Output, out.Rows())
		if err != nil {
			_ = st.Abort()
			return nil, fmt.Errorf("verify output: %w", err)
		}
		log.Info("verified output", "rows", out.Rows(), "columns", strings.Join(schema.Names(), ","))
		verified = &schema
	}
	if err := st.Commit(); err != nil {
		_ = st.Abort()
		return nil, err
	}
	if old := st.Leftover(); old != "" {
		log.Warn("previous output could not be removed", "path", old)
	}
	log.Info("wrote output", "path", st.Dest(), "part", part, "rows", out.Rows())

	pc := profile.NewCollector(out.Schema(), 5)
	pc.Consume(out)
	if log.Enabled(ctx, slog.LevelDebug) {
		log.Debug("output profile\n" + pc.ReportText())
	}
	res := &Result{
		RowsIn:   in.Rows(),
		RowsOut:  out.Rows(),
		Nulled:   norm.Nulled(),
		Warnings: warnings,
		Output:   st.Dest(),
		Part:     part,
		Profile:  pc.Report(),
		Verified: verified,
	}
	res.Elapsed = time.Since(start)
	return res, nil
}

func readerOptions(c InputConfig) csvio.ReaderOptions {
	delim, _ := c.delimiter()
	return csvio.ReaderOptions{
		HasHeader:  c.HasHeader,
		Delimiter:  delim,
		SampleRows: c.SampleRows,
		InferTypes: c.InferSchema,
		TrimSpace:  c.TrimSpace,
		NullValue:  c.NullValue,
		Strict:     c.Strict,
	}
}

func read(c InputConfig) (*ds.Dataset, string, error) {
	r, f, err := csvio.Open(c.Path, readerOptions(c))
	if err != nil {
		return nil, "", fmt.Errorf("open input: %w", err)
	}
	defer func() { _ = f.Close() }()
	schema, _, err := r.InferSchema()
	if err != nil {
		return nil, "", fmt.Errorf("read input %s: %w", c.Path, err)
	}
	d, err := r.ReadAll(schema)
	if err != nil {
		return nil, "", fmt.Errorf("read input %s: %w", c.Path, err)
	}
	return d, r.Warnings(), nil
}

// textExtension names csv and jsonl parts; only gzip applies to text output.
func textExtension(format string, c OutputConfig) string {
	ext := "." + format
	if codec, _ := parquetio.ParseCodec(c.Compression); codec == parquetio.CodecGzip {
		ext += ".gz"
	}
	return ext
}

func write(ctx context.Context, st *outdir.Staging, d *ds.Dataset, c OutputConfig) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	switch format := strings.ToLower(c.Format); format {
	case FormatCSV:
		name := st.PartName(0, textExtension(format, c))
		if err := csvio.WriteAll(st.Path(name), d, csvio.WriterOptions{}); err != nil {
			return "", fmt.Errorf("write csv: %w", err)
		}
		return name, nil
	case FormatJSONL:
		name := st.PartName(0, textExtension(format, c))
		if err := jsonlio.WriteAll(st.Path(name), d); err != nil {
			return "", fmt.Errorf("write jsonl: %w", err)
		}
		return name, nil
	}
	codec, _ := parquetio.ParseCodec(c.Compression)
	name := st.PartName(0, codec.Extension())
	if err := parquetio.WriteAll(st.Path(name), d, parquetio.WriterOptions{Codec: codec}); err != nil {
		return "", fmt.Errorf("write parquet: %w", err)
	}
	return name, nil
}

// checkPart reads the staged part back and compares its row count with want.
func checkPart(dir, part string, c OutputConfig, want int) (ds.Schema, error) {
	schema, rows, err := verify(dir, part, c)
	if err != nil {
		return ds.Schema{}, err
	}
	if rows != want {
		return ds.Schema{}, fmt.Errorf("read back %d rows, wrote %d", rows, want)
	}
	return schema, nil
}

// verify is swapped in tests.
var verify = readBack

func readBack(dir, part string, c OutputConfig) (ds.Schema, int, error) {
	switch strings.ToLower(c.Format) {
	case FormatJSONL:
		return verifyJSONL(filepath.Join(dir, part))
	case FormatCSV:
		r, f, err := csvio.Open(filepath.Join(dir, part), csvio.ReaderOptions{HasHeader: true, Delimiter: ','})
		if err != nil {
			return ds.Schema{}, 0, err
		}
		defer func() { _ = f.Close() }()
		schema, _, err := r.InferSchema()
		if err != nil {
			return ds.Schema{}, 0, err
		}
		d, err := r.ReadAll(schema)
		if err != nil {
			return ds.Schema{}, 0, err
		}
		return schema, d.Rows(), nil
	}
	d, err := parquetio.ReadDir(dir)
	if err != nil {
		return ds.Schema{}, 0, err
	}
	return d.Schema(), d.Rows(), nil
}

// verifyJSONL counts the records of a part and collects their keys.
func verifyJSONL(path string) (ds.Schema, int, error) {
	rc, err := iox.OpenMaybeCompressed(path)
	if err != nil {
		return ds.Schema{}, 0, err
	}
	defer func() { _ = rc.Close() }()
	dec := json.NewDecoder(rc)
	seen := map[string]bool{}
	var schema ds.Schema
	rows := 0
	for {
		var m map[string]json.RawMessage
		if err := dec.Decode(&m); errors.Is(err, io.EOF) {
			break
		} else if err != nil {
			return ds.Schema{}, 0, fmt.Errorf("record %d: %w", rows+1, err)
		}
		rows++
		keys := make([]string, 0, len(m))
		for k := range m {
			if !seen[k] {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
		for _, k := range keys {
			seen[k] = true
			schema.Columns = append(schema.Columns, ds.ColumnSchema{Name: k, Type: ds.KindString, Nullable: true})
		}
	}
	return schema, rows, nil
}

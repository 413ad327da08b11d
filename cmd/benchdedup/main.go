// Command benchdedup measures the cast and dedup stages, and optionally the
// Parquet writer, on generated string data shaped like a CSV load.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"github.com/spf13/pflag"

	ds "github.com/wdm0006/dedupjob/pkg/dataset"
	"github.com/wdm0006/dedupjob/pkg/io/parquetio"
	"github.com/wdm0006/dedupjob/pkg/transform/cast"
	"github.com/wdm0006/dedupjob/pkg/transform/dedup"
	"github.com/wdm0006/dedupjob/pkg/typemap"
)

// generate builds rows of (id, update_date, amount, name) as strings, with
// ids drawn from [0, keys) so that most keys repeat.
func generate(rows, keys int, missing float64, rnd *rand.Rand) *ds.Dataset {
	id := ds.NewStringColumn("id", rows)
	upd := ds.NewStringColumn("update_date", rows)
	amount := ds.NewStringColumn("amount", rows)
	name := ds.NewStringColumn("name", rows)
	base := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < rows; i++ {
		id.Set(i, strconv.Itoa(rnd.Intn(keys)))
		if rnd.Float64() >= missing {
			upd.Set(i, base.Add(time.Duration(rnd.Intn(365*24))*time.Hour).Format(ds.TimestampLayout))
		}
		if rnd.Float64() >= missing {
			amount.Set(i, strconv.Itoa(rnd.Intn(10_000)))
		}
		name.Set(i, "user "+strconv.Itoa(i%97))
	}
	d, err := ds.FromColumns(id, upd, amount, name)
	if err != nil {
		panic(err)
	}
	return d
}

func main() {
	var (
		rows    = pflag.Int("rows", 1_000_000, "rows to generate")
		keys    = pflag.Int("keys", 100_000, "distinct ids")
		missp   = pflag.Float64("missing", 0.05, "probability of an empty update_date or amount")
		write   = pflag.Bool("write", false, "also write the result as Parquet to a temp dir")
		jsonOut = pflag.Bool("json", false, "emit JSON summary")
		seed    = pflag.Int64("seed", 42, "random seed")
	)
	pflag.Parse()
	if *keys <= 0 {
		fmt.Fprintln(os.Stderr, "--keys must be positive")
		os.Exit(2)
	}

	mapping, err := typemap.Parse(map[string]string{"id": "long", "update_date": "timestamp", "amount": "integer"})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	in := generate(*rows, *keys, *missp, rand.New(rand.NewSource(*seed)))

	timings := map[string]int64{}
	p := ds.NewPipeline().
		Add(&cast.Normalize{Mapping: mapping}).
		Add(dedup.Latest{}).
		Observe(func(stage string, _, _ *ds.Dataset, elapsed time.Duration) {
			timings[stage] = elapsed.Milliseconds()
		})

	runtime.GC()
	var msBefore, msAfter runtime.MemStats
	runtime.ReadMemStats(&msBefore)
	start := time.Now()
	out, err := p.Run(context.Background(), in)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if *write {
		dir, err := os.MkdirTemp("", "benchdedup")
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		defer func() { _ = os.RemoveAll(dir) }()
		ws := time.Now()
		if err := parquetio.WriteAll(filepath.Join(dir, "part-00000.snappy.parquet"), out, parquetio.WriterOptions{Codec: parquetio.CodecSnappy}); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		timings["write"] = time.Since(ws).Milliseconds()
	}
	elapsed := time.Since(start)
	runtime.ReadMemStats(&msAfter)

	rowsPerSec := float64(*rows) / elapsed.Seconds()
	summary := map[string]any{
		"rows":                  *rows,
		"rows_out":              out.Rows(),
		"keys":                  *keys,
		"elapsed_ms":            elapsed.Milliseconds(),
		"stage_ms":              timings,
		"rows_per_sec":          rowsPerSec,
		"mem_alloc_bytes":       msAfter.Alloc,
		"mem_total_alloc_bytes": msAfter.TotalAlloc - msBefore.TotalAlloc,
		"gc_num":                msAfter.NumGC - msBefore.NumGC,
		"missing_prob":          *missp,
	}

	if *jsonOut {
		b, _ := json.MarshalIndent(summary, "", "  ")
		fmt.Println(string(b))
		return
	}
	fmt.Printf("Rows: %d -> %d\n", *rows, out.Rows())
	fmt.Printf("Elapsed: %s\n", elapsed)
	for _, stage := range append(p.Stages(), "write") {
		if ms, ok := timings[stage]; ok {
			fmt.Printf("  %s: %d ms\n", stage, ms)
		}
	}
	fmt.Printf("Throughput: %.0f rows/s\n", rowsPerSec)
	fmt.Printf("Current Alloc: %d MB\n", msAfter.Alloc/1024/1024)
	fmt.Printf("Total Alloc (delta): %d MB\n", (msAfter.TotalAlloc-msBefore.TotalAlloc)/1024/1024)
	fmt.Printf("GC cycles (delta): %d\n", msAfter.NumGC-msBefore.NumGC)
}

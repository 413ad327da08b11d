// Package jsonlio writes a Dataset as JSON Lines, one object per row.
package jsonlio

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	ds "github.com/wdm0006/dedupjob/pkg/dataset"
	iox "github.com/wdm0006/dedupjob/pkg/io/ioutils"
)

// WriteAll writes d to path. Paths ending in .gz are gzip compressed. Null
// cells are omitted; dates and timestamps use the canonical text layouts.
func WriteAll(path string, d *ds.Dataset) (err error) {
	out, err := iox.CreateMaybeCompressed(path)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, out.Close()) }()
	w := bufio.NewWriter(out)
	enc := json.NewEncoder(w)
	schema := d.Schema()
	for r := 0; r < d.Rows(); r++ {
		m := d.Row(r)
		for name, v := range m {
			switch t := v.(type) {
			case nil:
				delete(m, name)
			case time.Time:
				cs, _ := schema.Lookup(name)
				m[name] = ds.FormatValue(cs.Type, t)
			case float64:
				if math.IsNaN(t) || math.IsInf(t, 0) {
					m[name] = ds.FormatValue(ds.KindFloat, t)
				}
			}
		}
		if err := enc.Encode(m); err != nil {
			return fmt.Errorf("jsonl row %d: %w", r, err)
		}
	}
	return w.Flush()
}

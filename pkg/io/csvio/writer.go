package csvio

import (
	"encoding/csv"
	"errors"

	ds "github.com/wdm0006/dedupjob/pkg/dataset"
	iox "github.com/wdm0006/dedupjob/pkg/io/ioutils"
)

type WriterOptions struct {
	Delimiter rune // default ','
}

// WriteAll writes a Dataset to a CSV file with headers. Paths ending in .gz
// are gzip compressed. Null cells are written empty.
func WriteAll(path string, d *ds.Dataset, opt WriterOptions) (err error) {
	out, err := iox.CreateMaybeCompressed(path)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, out.Close()) }()
	w := csv.NewWriter(out)
	if opt.Delimiter != 0 {
		w.Comma = opt.Delimiter
	}

	schema := d.Schema()
	if err := w.Write(schema.Names()); err != nil {
		return err
	}
	row := make([]string, len(schema.Columns))
	for r := 0; r < d.Rows(); r++ {
		for c, cs := range schema.Columns {
			row[c] = ds.FormatValue(cs.Type, d.Column(c).Value(r))
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

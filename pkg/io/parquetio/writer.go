package parquetio

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	local "github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	pw "github.com/xitongsys/parquet-go/writer"

	ds "github.com/wdm0006/dedupjob/pkg/dataset"
)

// Codec selects page compression.
type Codec string

const (
	CodecSnappy Codec = "snappy"
	CodecGzip   Codec = "gzip"
	CodecNone   Codec = "none"
)

// ParseCodec accepts snappy, gzip, none (or uncompressed); empty means snappy.
func ParseCodec(s string) (Codec, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "snappy":
		return CodecSnappy, nil
	case "gzip", "gz":
		return CodecGzip, nil
	case "none", "uncompressed":
		return CodecNone, nil
	}
	return "", fmt.Errorf("unknown parquet compression %q", s)
}

// Extension is the file suffix for the codec, e.g. ".snappy.parquet".
func (c Codec) Extension() string {
	switch c {
	case CodecSnappy:
		return ".snappy.parquet"
	case CodecGzip:
		return ".gz.parquet"
	}
	return ".parquet"
}

func (c Codec) thrift() parquet.CompressionCodec {
	switch c {
	case CodecGzip:
		return parquet.CompressionCodec_GZIP
	case CodecNone:
		return parquet.CompressionCodec_UNCOMPRESSED
	}
	return parquet.CompressionCodec_SNAPPY
}

type WriterOptions struct {
	Codec       Codec
	Parallelism int64 // marshalling goroutines; default 4
}

func parquetSchemaJSON(s ds.Schema) (string, error) {
	// Build a minimal JSON schema for parquet-go JSONWriter
	type field struct {
		Tag string `json:"Tag"`
	}
	type schema struct {
		Tag    string  `json:"Tag"`
		Fields []field `json:"Fields"`
	}
	sc := schema{Tag: "name=schema, repetitiontype=REQUIRED"}
	for _, cs := range s.Columns {
		if cs.Name == "" || strings.ContainsAny(cs.Name, ",= \t") {
			return "", fmt.Errorf("parquet: column name %q cannot be encoded", cs.Name)
		}
		// converted types go in type= directly; this writer has no convertedtype key
		tag := "name=" + cs.Name + ", repetitiontype=OPTIONAL, type="
		switch cs.Type {
		case ds.KindBool:
			tag += "BOOLEAN"
		case ds.KindByte:
			tag += "INT_8"
		case ds.KindShort:
			tag += "INT_16"
		case ds.KindInt:
			tag += "INT32"
		case ds.KindLong:
			tag += "INT64"
		case ds.KindFloat:
			tag += "DOUBLE"
		case ds.KindString:
			tag += "UTF8"
		case ds.KindDate:
			tag += "DATE"
		case ds.KindTimestamp:
			tag += "TIMESTAMP_MICROS"
		default:
			return "", fmt.Errorf("parquet: %w: %v for column %s", ds.ErrUnknownType, cs.Type, cs.Name)
		}
		sc.Fields = append(sc.Fields, field{Tag: tag})
	}
	b, err := json.Marshal(sc)
	return string(b), err
}

// WriteAll writes a Dataset to a single Parquet file using parquet-go JSONWriter.
// Every column is OPTIONAL; null cells are omitted from the row.
func WriteAll(path string, d *ds.Dataset, opt WriterOptions) (err error) {
	schema, err := parquetSchemaJSON(d.Schema())
	if err != nil {
		return err
	}
	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return err
	}
	np := opt.Parallelism
	if np <= 0 {
		np = 4
	}
	writer, err := pw.NewJSONWriter(schema, fw, np)
	if err != nil {
		_ = fw.Close()
		return fmt.Errorf("parquet writer init: %w", err)
	}
	writer.CompressionType = opt.Codec.thrift()
	stopped := false
	defer func() {
		if !stopped {
			err = errors.Join(err, writer.WriteStop())
		}
		err = errors.Join(err, fw.Close())
	}()

	cols := d.Schema().Columns
	for r := 0; r < d.Rows(); r++ {
		rec := make(map[string]any, len(cols))
		for c, cs := range cols {
			v := d.Column(c).Value(r)
			if v == nil {
				continue
			}
			rec[cs.Name] = toParquet(cs.Type, v)
		}
		line, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("parquet encode row %d: %w", r, err)
		}
		if err := writer.Write(string(line)); err != nil {
			return fmt.Errorf("parquet write row %d: %w", r, err)
		}
	}
	stopped = true
	if err := writer.WriteStop(); err != nil {
		return fmt.Errorf("parquet write footer: %w", err)
	}
	return nil
}

// toParquet maps a cell to its physical representation.
func toParquet(k ds.Kind, v any) any {
	t, ok := v.(time.Time)
	if !ok {
		return v
	}
	if k == ds.KindDate {
		return daysSinceEpoch(t)
	}
	return t.UnixMicro()
}

func daysSinceEpoch(t time.Time) int64 {
	secs := t.UTC().Unix()
	days := secs / 86400
	if secs%86400 < 0 {
		days--
	}
	return days
}

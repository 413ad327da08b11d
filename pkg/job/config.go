package job

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/wdm0006/dedupjob/pkg/io/parquetio"
	"github.com/wdm0006/dedupjob/pkg/transform/cast"
)

// ConfigError marks failures caused by job configuration rather than data.
type ConfigError struct {
	Err error
}

func (e *ConfigError) Error() string { return "config: " + e.Err.Error() }
func (e *ConfigError) Unwrap() error { return e.Err }

func configErr(err error) error {
	var ce *ConfigError
	if err == nil || errors.As(err, &ce) {
		return err
	}
	return &ConfigError{Err: err}
}

type InputConfig struct {
	Path        string `mapstructure:"path"`
	Delimiter   string `mapstructure:"delimiter"` // empty sniffs
	HasHeader   bool   `mapstructure:"has_header"`
	InferSchema bool   `mapstructure:"infer_schema"`
	SampleRows  int    `mapstructure:"sample_rows"` // 0 scans the whole file
	TrimSpace   bool   `mapstructure:"trim_space"`
	Strict      bool   `mapstructure:"strict"`
	NullValue   string `mapstructure:"null_value"`
}

type TypesConfig struct {
	Path        string `mapstructure:"path"`
	OnCastError string `mapstructure:"on_cast_error"`
}

type DedupConfig struct {
	Key     string `mapstructure:"key"`
	OrderBy string `mapstructure:"order_by"`
}

type OutputConfig struct {
	Path        string `mapstructure:"path"`
	Format      string `mapstructure:"format"`      // parquet|csv|jsonl
	Compression string `mapstructure:"compression"` // snappy|gzip|none
	Verify      bool   `mapstructure:"verify"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type Config struct {
	Input  InputConfig  `mapstructure:"input"`
	Types  TypesConfig  `mapstructure:"types"`
	Dedup  DedupConfig  `mapstructure:"dedup"`
	Output OutputConfig `mapstructure:"output"`
	Log    LogConfig    `mapstructure:"log"`
}

// Defaults mirrors the paths and columns the job has always used.
func Defaults() Config {
	return Config{
		Input: InputConfig{
			Path:        "./data/input/users/load.csv",
			Delimiter:   ",",
			HasHeader:   true,
			InferSchema: true,
			TrimSpace:   true,
		},
		Types:  TypesConfig{Path: "./config/types_mapping.json", OnCastError: string(cast.PolicyNull)},
		Dedup:  DedupConfig{Key: "id", OrderBy: "update_date"},
		Output: OutputConfig{Path: "./data/output/", Format: FormatParquet, Compression: string(parquetio.CodecSnappy)},
		Log:    LogConfig{Level: "info", Format: "text"},
	}
}

const (
	FormatParquet = "parquet"
	FormatCSV     = "csv"
	FormatJSONL   = "jsonl"
)

// Validate checks every field that can be checked without touching files.
// Failures are returned as *ConfigError.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Input.Path) == "" {
		errs = append(errs, errors.New("input.path is empty"))
	}
	if strings.TrimSpace(c.Types.Path) == "" {
		errs = append(errs, errors.New("types.path is empty"))
	}
	if strings.TrimSpace(c.Output.Path) == "" {
		errs = append(errs, errors.New("output.path is empty"))
	}
	if _, err := c.Input.delimiter(); err != nil {
		errs = append(errs, err)
	}
	if c.Input.SampleRows < 0 {
		errs = append(errs, fmt.Errorf("input.sample_rows must be >= 0, got %d", c.Input.SampleRows))
	}
	if _, err := cast.ParsePolicy(c.Types.OnCastError); err != nil {
		errs = append(errs, err)
	}
	if c.Dedup.Key == "" || c.Dedup.OrderBy == "" {
		errs = append(errs, errors.New("dedup.key and dedup.order_by are required"))
	} else if c.Dedup.Key == c.Dedup.OrderBy {
		errs = append(errs, fmt.Errorf("dedup.key and dedup.order_by are both %q", c.Dedup.Key))
	}
	switch strings.ToLower(c.Output.Format) {
	case "", FormatParquet, FormatCSV, FormatJSONL:
	default:
		errs = append(errs, fmt.Errorf("unknown output.format %q", c.Output.Format))
	}
	if _, err := parquetio.ParseCodec(c.Output.Compression); err != nil {
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return nil
	}
	return &ConfigError{Err: errors.Join(errs...)}
}

// delimiter resolves the configured delimiter; 0 means sniff.
func (c InputConfig) delimiter() (rune, error) {
	switch c.Delimiter {
	case "":
		return 0, nil
	case `\t`, "tab":
		return '\t', nil
	}
	r, n := utf8.DecodeRuneInString(c.Delimiter)
	if n != len(c.Delimiter) || r == utf8.RuneError || r == '"' || r == '\r' || r == '\n' {
		return 0, fmt.Errorf("input.delimiter %q must be a single character", c.Delimiter)
	}
	return r, nil
}

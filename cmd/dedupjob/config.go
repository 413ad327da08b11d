package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/wdm0006/dedupjob/pkg/job"
)

const envPrefix = "DEDUPJOB"

// flagKeys binds command-line flags to configuration keys.
var flagKeys = map[string]string{
	"input":         "input.path",
	"delimiter":     "input.delimiter",
	"has-header":    "input.has_header",
	"infer-schema":  "input.infer_schema",
	"sample-rows":   "input.sample_rows",
	"trim-space":    "input.trim_space",
	"strict":        "input.strict",
	"null-value":    "input.null_value",
	"types":         "types.path",
	"on-cast-error": "types.on_cast_error",
	"key":           "dedup.key",
	"order-by":      "dedup.order_by",
	"output":        "output.path",
	"format":        "output.format",
	"compression":   "output.compression",
	"verify":        "output.verify",
	"log-level":     "log.level",
	"log-format":    "log.format",
}

type options struct {
	configPath string
	profile    bool
	version    bool
}

func newFlagSet(opts *options) *pflag.FlagSet {
	d := job.Defaults()
	fs := pflag.NewFlagSet("dedupjob", pflag.ContinueOnError)
	fs.StringVar(&opts.configPath, "config", "", "job config file (yaml, toml or json)")
	fs.BoolVar(&opts.profile, "profile", false, "print a JSON column profile of the output to stdout")
	fs.BoolVar(&opts.version, "version", false, "print version and exit")

	fs.String("input", d.Input.Path, "input CSV file, - for stdin")
	fs.String("delimiter", d.Input.Delimiter, "field delimiter; empty sniffs")
	fs.Bool("has-header", d.Input.HasHeader, "first row holds column names")
	fs.Bool("infer-schema", d.Input.InferSchema, "infer column types; off reads strings")
	fs.Int("sample-rows", d.Input.SampleRows, "rows used for type inference, 0 for all")
	fs.Bool("trim-space", d.Input.TrimSpace, "trim whitespace around cells")
	fs.Bool("strict", d.Input.Strict, "fail on rows with the wrong number of fields")
	fs.String("null-value", d.Input.NullValue, "cell text read as null")
	fs.String("types", d.Types.Path, "type mapping file")
	fs.String("on-cast-error", d.Types.OnCastError, "null or fail")
	fs.String("key", d.Dedup.Key, "business key column")
	fs.String("order-by", d.Dedup.OrderBy, "column whose greatest value wins per key")
	fs.String("output", d.Output.Path, "output directory, replaced on success")
	fs.String("format", d.Output.Format, "parquet, csv or jsonl")
	fs.String("compression", d.Output.Compression, "snappy, gzip or none")
	fs.Bool("verify", d.Output.Verify, "read the output back after writing")
	fs.String("log-level", d.Log.Level, "debug, info, warn or error")
	fs.String("log-format", d.Log.Format, "text or json")
	return fs
}

func setDefaults(v *viper.Viper) {
	d := job.Defaults()
	v.SetDefault("input.path", d.Input.Path)
	v.SetDefault("input.delimiter", d.Input.Delimiter)
	v.SetDefault("input.has_header", d.Input.HasHeader)
	v.SetDefault("input.infer_schema", d.Input.InferSchema)
	v.SetDefault("input.sample_rows", d.Input.SampleRows)
	v.SetDefault("input.trim_space", d.Input.TrimSpace)
	v.SetDefault("input.strict", d.Input.Strict)
	v.SetDefault("input.null_value", d.Input.NullValue)
	v.SetDefault("types.path", d.Types.Path)
	v.SetDefault("types.on_cast_error", d.Types.OnCastError)
	v.SetDefault("dedup.key", d.Dedup.Key)
	v.SetDefault("dedup.order_by", d.Dedup.OrderBy)
	v.SetDefault("output.path", d.Output.Path)
	v.SetDefault("output.format", d.Output.Format)
	v.SetDefault("output.compression", d.Output.Compression)
	v.SetDefault("output.verify", d.Output.Verify)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

// loadConfig layers defaults, the optional config file, DEDUPJOB_* environment
// variables and explicitly set flags, in rising precedence.
func loadConfig(fs *pflag.FlagSet, configPath string) (job.Config, error) {
	v := viper.New()
	setDefaults(v)
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return job.Config{}, &job.ConfigError{Err: fmt.Errorf("read config: %w", err)}
		}
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for name, key := range flagKeys {
		if err := v.BindPFlag(key, fs.Lookup(name)); err != nil {
			return job.Config{}, err
		}
	}
	var cfg job.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return job.Config{}, &job.ConfigError{Err: fmt.Errorf("unmarshal config: %w", err)}
	}
	return cfg, nil
}

func newLogger(w io.Writer, c job.LogConfig) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Level)); err != nil {
		return nil, &job.ConfigError{Err: fmt.Errorf("log.level: %w", err)}
	}
	opts := &slog.HandlerOptions{Level: level}
	switch strings.ToLower(c.Format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return nil, &job.ConfigError{Err: fmt.Errorf("unknown log.format %q", c.Format)}
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/wdm0006/dedupjob/pkg/job"
)

var version = "0.1.0-dev"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run returns the process exit code: 0 on success, 2 for configuration
// problems and 1 for anything else.
func run(args []string, stdout, stderr io.Writer) int {
	var opts options
	fs := newFlagSet(&opts)
	fs.SetOutput(stderr)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}
	if opts.version {
		fmt.Fprintln(stdout, "dedupjob", version)
		return 0
	}

	cfg, err := loadConfig(fs, opts.configPath)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitCode(err)
	}
	logger, err := newLogger(stderr, cfg.Log)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitCode(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sess := job.NewSession(logger)
	defer func() {
		if err := sess.Close(); err != nil {
			logger.Error("session cleanup", "err", err)
		}
	}()

	res, err := job.Run(ctx, sess, cfg)
	if err != nil {
		sess.Logger.Error("job failed", "err", err)
		return exitCode(err)
	}
	sess.Logger.Info("job done", "rows_in", res.RowsIn, "rows_out", res.RowsOut, "output", res.Output, "elapsed", res.Elapsed)
	if opts.profile {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res.Profile); err != nil {
			sess.Logger.Error("write profile", "err", err)
			return 1
		}
	}
	return 0
}

func exitCode(err error) int {
	var ce *job.ConfigError
	if errors.As(err, &ce) {
		return 2
	}
	return 1
}

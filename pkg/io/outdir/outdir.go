// Package outdir replaces an output directory only once a run has fully
// written its files. Files are written into a hidden sibling staging
// directory; Commit swaps it into place and Abort discards it.
package outdir

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// SuccessMarker is written into the directory on commit.
const SuccessMarker = "_SUCCESS"

var ErrNotDirectory = errors.New("output path exists and is not a directory")

// Staging is an uncommitted output directory.
type Staging struct {
	dest string
	dir  string
	id   uuid.UUID
	done bool
	old  string // previous output that could not be removed
}

// removeAll is replaced in tests.
var removeAll = os.RemoveAll

// Stage prepares a staging directory next to dest.
func Stage(dest string) (*Staging, error) {
	dest = filepath.Clean(dest)
	if fi, err := os.Stat(dest); err == nil && !fi.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNotDirectory, dest)
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	parent := filepath.Dir(dest)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return nil, fmt.Errorf("create output parent: %w", err)
	}
	id := uuid.New()
	dir := filepath.Join(parent, "."+filepath.Base(dest)+".staging-"+id.String())
	if err := os.Mkdir(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}
	return &Staging{dest: dest, dir: dir, id: id}, nil
}

// Dir is the staging directory files are written into.
func (s *Staging) Dir() string { return s.dir }

// Dest is the final output directory.
func (s *Staging) Dest() string { return s.dest }

// PartName names the i-th data file, e.g. part-00000-<uuid>-c000.snappy.parquet.
func (s *Staging) PartName(i int, ext string) string {
	return fmt.Sprintf("part-%05d-%s-c000%s", i, s.id, ext)
}

// Path joins name onto the staging directory.
func (s *Staging) Path(name string) string { return filepath.Join(s.dir, name) }

// Commit writes the success marker and replaces dest with the staged files.
// If the swap fails the previous output is restored. Once the new output is
// in place Commit succeeds; a previous output it could not delete is
// reported by Leftover.
func (s *Staging) Commit() error {
	if s.done {
		return errors.New("outdir: staging already finished")
	}
	if err := os.WriteFile(s.Path(SuccessMarker), nil, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", SuccessMarker, err)
	}
	old := ""
	if _, err := os.Stat(s.dest); err == nil {
		old = filepath.Join(filepath.Dir(s.dest), "."+filepath.Base(s.dest)+".old-"+s.id.String())
		if err := os.Rename(s.dest, old); err != nil {
			return fmt.Errorf("move previous output aside: %w", err)
		}
	}
	if err := os.Rename(s.dir, s.dest); err != nil {
		if old != "" {
			_ = os.Rename(old, s.dest)
		}
		return fmt.Errorf("publish output: %w", err)
	}
	s.done = true
	if old != "" && removeAll(old) != nil {
		s.old = old
	}
	return nil
}

// Leftover is the moved-aside previous output that Commit failed to remove,
// or "" when there is none.
func (s *Staging) Leftover() string { return s.old }

// Abort removes the staging directory. It is a no-op after Commit.
func (s *Staging) Abort() error {
	if s.done {
		return nil
	}
	s.done = true
	return removeAll(s.dir)
}

package job

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/wdm0006/dedupjob/pkg/io/outdir"
)

// Session holds what a run needs beyond its configuration: the logger, a run
// id and the staging directories still to be cleaned up. Close must be called
// on every exit path.
type Session struct {
	Logger *slog.Logger
	RunID  string

	mu     sync.Mutex
	staged []*outdir.Staging
	closed bool
}

var errSessionClosed = errors.New("job: session closed")

func NewSession(logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	id := uuid.NewString()
	return &Session{Logger: logger.With("run_id", id), RunID: id}
}

func (s *Session) stage(dest string) (*outdir.Staging, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, errSessionClosed
	}
	st, err := outdir.Stage(dest)
	if err != nil {
		return nil, err
	}
	s.staged = append(s.staged, st)
	return st, nil
}

// Close removes staging directories that were never committed. It is safe to
// call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	var errs []error
	for _, st := range s.staged {
		errs = append(errs, st.Abort())
	}
	s.staged = nil
	return errors.Join(errs...)
}

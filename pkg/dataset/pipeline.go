package dataset

import (
	"context"
	"time"
)

// Stage is one step of a job. Apply must not modify its input; it returns a
// new Dataset (which may share unchanged columns with the input).
type Stage interface {
	Name() string
	Apply(ctx context.Context, d *Dataset) (*Dataset, error)
}

// StageFunc adapts a function to Stage.
type StageFunc struct {
	Label string
	Fn    func(ctx context.Context, d *Dataset) (*Dataset, error)
}

func (s StageFunc) Name() string { return s.Label }
func (s StageFunc) Apply(ctx context.Context, d *Dataset) (*Dataset, error) {
	return s.Fn(ctx, d)
}

// Observer is notified after every successful stage.
type Observer func(stage string, in, out *Dataset, elapsed time.Duration)

// Pipeline composes a sequence of Stages.
type Pipeline struct {
	steps    []Stage
	observer Observer
}

func NewPipeline() *Pipeline { return &Pipeline{} }

func (p *Pipeline) Add(s Stage) *Pipeline {
	p.steps = append(p.steps, s)
	return p
}

// Observe installs an Observer.
func (p *Pipeline) Observe(o Observer) *Pipeline {
	p.observer = o
	return p
}

// Stages returns the stage names in run order.
func (p *Pipeline) Stages() []string {
	out := make([]string, len(p.steps))
	for i, s := range p.steps {
		out[i] = s.Name()
	}
	return out
}

func (p *Pipeline) Run(ctx context.Context, d *Dataset) (*Dataset, error) {
	cur := d
	for _, s := range p.steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		start := time.Now()
		next, err := s.Apply(ctx, cur)
		if err != nil {
			return nil, &StageError{Stage: s.Name(), Err: err}
		}
		if p.observer != nil {
			p.observer(s.Name(), cur, next, time.Since(start))
		}
		cur = next
	}
	return cur, nil
}

// StageError records which stage failed.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string { return e.Stage + ": " + e.Err.Error() }
func (e *StageError) Unwrap() error { return e.Err }

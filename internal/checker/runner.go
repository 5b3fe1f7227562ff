package checker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/August26/proxytest-go/internal/analytics"
	"github.com/August26/proxytest-go/internal/model"
)

var (
	// ErrInterrupted is returned when the context is cancelled mid-pass.
	ErrInterrupted = errors.New("run interrupted")
	// ErrUnfinished means attempts were dispatched but never reported back.
	ErrUnfinished = errors.New("attempts left unfinished")
)

// Observer receives the lifecycle of a run. All calls are made from a
// single goroutine, in order, so implementations need no locking of their own.
type Observer interface {
	PassStarted(pass, attempts int)
	AttemptStarted(a model.Attempt)
	AttemptFinished(a model.Attempt)
	PassFinished(v model.Verdict)
	Waiting(d time.Duration)
}

// NopObserver implements Observer with no-ops, for embedding.
type NopObserver struct{}

func (NopObserver) PassStarted(int, int)          {}
func (NopObserver) AttemptStarted(model.Attempt)  {}
func (NopObserver) AttemptFinished(model.Attempt) {}
func (NopObserver) PassFinished(model.Verdict)    {}
func (NopObserver) Waiting(time.Duration)         {}

// Runner repeats passes of the scheduler. With Interval 0 it runs once;
// otherwise each pass starts Interval after the previous one started, or
// immediately if that pass took longer. Passes never overlap.
type Runner struct {
	Scheduler  *Scheduler
	Aggregator *analytics.Aggregator
	Observers  []Observer
	Interval   time.Duration
	Log        *slog.Logger
}

func (r *Runner) logger() *slog.Logger {
	if r.Log == nil {
		return slog.New(slog.DiscardHandler)
	}
	return r.Log
}

// Run executes passes until the single pass ends, or, when repeating, until
// ctx is cancelled. Cancellation during the wait between passes is a normal
// end and returns the last verdict; cancellation during a pass returns the
// partial verdict with ErrInterrupted.
func (r *Runner) Run(ctx context.Context) (model.Verdict, error) {
	if r.Aggregator == nil {
		r.Aggregator = analytics.NewAggregator()
	}
	log := r.logger()

	for pass := 0; ; pass++ {
		v, err := r.RunOnce(ctx, pass)
		if err != nil {
			return v, err
		}
		if r.Interval <= 0 {
			return v, nil
		}

		wait := max(r.Interval-time.Since(v.Started), 0)
		for _, o := range r.Observers {
			o.Waiting(wait)
		}
		log.Debug("waiting before next pass", "pass", pass, "wait", wait)

		if wait == 0 {
			if ctx.Err() != nil {
				return v, nil
			}
			continue
		}
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return v, nil
		case <-t.C:
		}
	}
}

// RunOnce runs a single pass and returns its verdict.
func (r *Runner) RunOnce(ctx context.Context, pass int) (model.Verdict, error) {
	if r.Aggregator == nil {
		r.Aggregator = analytics.NewAggregator()
	}
	s := r.Scheduler
	if s == nil || s.Backend == nil {
		return model.Verdict{Pass: pass}, errNoBackend
	}
	expected := s.Size()

	r.Aggregator.BeginPass(pass, s.Targets, expected, time.Now())
	for _, o := range r.Observers {
		o.PassStarted(pass, expected)
	}
	r.logger().Info("pass started", "pass", pass, "attempts", expected, "backend", s.Backend.Name())

	// Single consumer: every aggregator write and observer call happens here.
	events := make(chan Event, 2*expected)
	type tally struct{ finished, cancelled int }
	consumed := make(chan tally, 1)
	go func() {
		var n tally
		for ev := range events {
			switch ev.Kind {
			case AttemptStarted:
				for _, o := range r.Observers {
					o.AttemptStarted(ev.Attempt)
				}
			case AttemptFinished:
				n.finished++
				if ev.Cancelled {
					n.cancelled++
				}
				r.Aggregator.Record(ev.Attempt)
				for _, o := range r.Observers {
					o.AttemptFinished(ev.Attempt)
				}
			}
		}
		consumed <- n
	}()

	dispatched, err := s.RunPass(ctx, pass, events)
	close(events)
	n := <-consumed
	finished := n.finished

	// A pass whose attempts all ran to the end is complete even if ctx was
	// cancelled afterwards.
	complete := err == nil && finished == expected && n.cancelled == 0
	v := r.Aggregator.EndPass(complete, time.Now())
	for _, o := range r.Observers {
		o.PassFinished(v)
	}

	switch {
	case ctx.Err() != nil && !complete:
		return v, fmt.Errorf("%w: %d of %d attempts finished, %d cancelled", ErrInterrupted, finished, expected, n.cancelled)
	case err != nil:
		return v, fmt.Errorf("pass %d: %w", pass, err)
	case finished != dispatched || dispatched != expected:
		return v, fmt.Errorf("%w: %d of %d attempts finished", ErrUnfinished, finished, expected)
	}
	return v, nil
}

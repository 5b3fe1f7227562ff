package checker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/August26/proxytest-go/internal/backend"
	"github.com/August26/proxytest-go/internal/model"
)

type EventKind int

const (
	AttemptStarted EventKind = iota
	AttemptFinished
)

// Event carries a copy of an attempt at one point of its lifecycle.
// Cancelled marks a finished attempt that was cut short by the run context.
type Event struct {
	Kind      EventKind
	Attempt   model.Attempt
	Cancelled bool
}

var errNoBackend = errors.New("no backend configured")

// Scheduler dispatches the attempts of one pass: every target, Repetitions
// times, with at most Concurrency attempts in flight (0 means unbounded).
type Scheduler struct {
	Backend     backend.Backend
	Targets     []*model.ProxyTarget
	Repetitions int
	Timeout     time.Duration
	Concurrency int
	URL         string
	UserAgent   string // empty picks a random agent per attempt
	Log         *slog.Logger
}

// Size is the number of attempts in one pass.
func (s *Scheduler) Size() int {
	return len(s.Targets) * max(s.Repetitions, 1)
}

func (s *Scheduler) logger() *slog.Logger {
	if s.Log == nil {
		return slog.New(slog.DiscardHandler)
	}
	return s.Log
}

// attempts builds the work set of a pass, repetition-major like the
// command line: all targets once, then all targets again.
func (s *Scheduler) attempts(pass int) []*model.Attempt {
	out := make([]*model.Attempt, 0, s.Size())
	for rep := 0; rep < max(s.Repetitions, 1); rep++ {
		for _, t := range s.Targets {
			ua := s.UserAgent
			if ua == "" {
				ua = RandomUserAgent()
			}
			out = append(out, &model.Attempt{
				Target:     t,
				Pass:       pass,
				Repetition: rep,
				Seq:        len(out),
				URL:        s.URL,
				UserAgent:  ua,
				Timeout:    s.Timeout,
			})
		}
	}
	return out
}

// RunPass dispatches one pass and blocks until every admitted attempt has
// finished. Start and finish events are sent on events as they happen; the
// caller must keep draining it. Once ctx is cancelled no further attempt is
// admitted and the context error is returned with the number dispatched.
func (s *Scheduler) RunPass(ctx context.Context, pass int, events chan<- Event) (int, error) {
	if s.Backend == nil {
		return 0, errNoBackend
	}
	log := s.logger()
	work := s.attempts(pass)

	var sem *semaphore.Weighted
	if s.Concurrency > 0 {
		sem = semaphore.NewWeighted(int64(s.Concurrency))
	}

	wg := &sync.WaitGroup{}
	dispatched := 0
	var err error
	for _, a := range work {
		if err = ctx.Err(); err != nil {
			break
		}
		if sem != nil {
			if err = sem.Acquire(ctx, 1); err != nil {
				break
			}
			// Acquire may succeed on a cancelled context.
			if err = ctx.Err(); err != nil {
				sem.Release(1)
				break
			}
		}

		dispatched++
		wg.Add(1)
		go func() {
			defer wg.Done()
			if sem != nil {
				defer sem.Release(1)
			}
			s.execute(ctx, a, events)
		}()
	}

	if err != nil {
		log.Debug("admission stopped", "pass", pass, "dispatched", dispatched, "total", len(work), "err", err)
	}
	wg.Wait()
	return dispatched, err
}

func (s *Scheduler) execute(ctx context.Context, a *model.Attempt, events chan<- Event) {
	_ = a.Start(time.Now())
	events <- Event{Kind: AttemptStarted, Attempt: *a}

	res := s.fetch(ctx, a)
	cancelled := ctx.Err() != nil

	_ = a.Finish(res, time.Now())
	events <- Event{Kind: AttemptFinished, Attempt: *a, Cancelled: cancelled}
}

// fetch runs the backend under the attempt's own deadline. A backend that
// ignores the deadline is abandoned and the attempt fails with a timeout.
func (s *Scheduler) fetch(ctx context.Context, a *model.Attempt) model.FetchResult {
	var (
		actx   context.Context
		cancel context.CancelFunc
	)
	if a.Timeout > 0 {
		actx, cancel = context.WithTimeout(ctx, a.Timeout)
	} else {
		actx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	req := backend.Request{
		URL:       a.URL,
		Timeout:   a.Timeout,
		UserAgent: a.UserAgent,
	}
	if !a.Target.Direct {
		req.Proxy = a.Target
	}

	done := make(chan model.FetchResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				s.logger().Error("backend panicked", "backend", s.Backend.Name(), "attempt", a.Key(), "panic", r)
				done <- model.Failed(model.ErrOther, "backend %s panicked: %v", s.Backend.Name(), r)
			}
		}()
		done <- s.Backend.Fetch(actx, req)
	}()

	select {
	case res := <-done:
		return normalize(res)
	case <-actx.Done():
	}

	// prefer a result that raced the deadline
	select {
	case res := <-done:
		return normalize(res)
	default:
	}
	if ctx.Err() != nil {
		return model.Failed(model.ErrOther, "cancelled: %v", ctx.Err())
	}
	return model.Failed(model.ErrTimeout, "no response within %s", a.Timeout)
}

func normalize(res model.FetchResult) model.FetchResult {
	if res.Err != nil && res.Err.Kind == "" {
		res.Err = &model.FetchError{Kind: model.ErrOther, Message: res.Err.Message}
	}
	return res
}

// String describes the scheduler for logs.
func (s *Scheduler) String() string {
	ceiling := "unbounded"
	if s.Concurrency > 0 {
		ceiling = fmt.Sprint(s.Concurrency)
	}
	name := "no backend"
	if s.Backend != nil {
		name = s.Backend.Name()
	}
	return fmt.Sprintf("%d targets x %d repetitions via %s (workers: %s)", len(s.Targets), max(s.Repetitions, 1), name, ceiling)
}

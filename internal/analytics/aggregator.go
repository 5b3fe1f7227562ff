package analytics

import (
	"sync"
	"time"

	"github.com/August26/proxytest-go/internal/model"
)

// Tally counts outcomes for one target.
type Tally struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	Succeeded int    `json:"succeeded"`
	Failed    int    `json:"failed"`
}

// Snapshot is a copy of the aggregator state, safe to retain and format
// without further locking.
type Snapshot struct {
	Pass        int            `json:"pass"`
	Running     bool           `json:"running"`
	Expected    int            `json:"expected"`  // attempts scheduled in the current pass
	Completed   int            `json:"completed"` // attempts finished in the current pass
	Succeeded   int            `json:"succeeded"`
	Failed      int            `json:"failed"`
	Current     []Tally        `json:"current"`    // per target, current pass
	Cumulative  []Tally        `json:"cumulative"` // per target, all passes
	Passes      int            `json:"passes"`     // passes completed
	LastVerdict *model.Verdict `json:"last_verdict,omitempty"`
}

// Aggregator folds completed attempts into per-target tallies and produces a
// Verdict at the end of every pass. Record is expected from a single writer;
// Snapshot may be called from anywhere at any time.
type Aggregator struct {
	mu sync.Mutex

	pass     int
	running  bool
	started  time.Time
	expected int
	index    map[*model.ProxyTarget]int

	current    []Tally
	cumulative []Tally
	succeeded  int
	failed     int

	passes int
	last   *model.Verdict
}

func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// BeginPass resets the per-pass tallies. expected is the number of attempts
// the scheduler is about to dispatch.
func (a *Aggregator) BeginPass(pass int, targets []*model.ProxyTarget, expected int, started time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()

	index := make(map[*model.ProxyTarget]int, len(targets))
	for i, t := range targets {
		index[t] = i
	}
	if !sameTargets(a.index, index) {
		a.cumulative = newTallies(targets)
	}
	a.pass = pass
	a.running = true
	a.started = started
	a.expected = expected
	a.index = index
	a.current = newTallies(targets)
	a.succeeded, a.failed = 0, 0
}

// Record adds one completed attempt. Attempts for targets outside the
// current pass, or still pending, are ignored.
func (a *Aggregator) Record(at model.Attempt) {
	a.mu.Lock()
	defer a.mu.Unlock()

	id, ok := a.index[at.Target]
	if !ok {
		return
	}
	switch at.Outcome {
	case model.Success:
		a.current[id].Succeeded++
		a.cumulative[id].Succeeded++
		a.succeeded++
	case model.Failure:
		a.current[id].Failed++
		a.cumulative[id].Failed++
		a.failed++
	}
}

// EndPass closes the current pass and returns its verdict. complete is false
// when the pass was interrupted before every attempt finished.
func (a *Aggregator) EndPass(complete bool, finished time.Time) model.Verdict {
	a.mu.Lock()
	defer a.mu.Unlock()

	v := model.Verdict{
		Pass:      a.pass,
		Total:     a.succeeded + a.failed,
		Succeeded: a.succeeded,
		Failed:    a.failed,
		Targets:   make([]model.TargetVerdict, len(a.current)),
		Overall:   true,
		Complete:  complete,
		Started:   a.started,
		Duration:  finished.Sub(a.started),
	}
	for i, t := range a.current {
		passing := t.Succeeded > 0
		v.Targets[i] = model.TargetVerdict{
			ID:        t.ID,
			Name:      t.Name,
			Succeeded: t.Succeeded,
			Failed:    t.Failed,
			Passing:   passing,
		}
		if !passing {
			v.Overall = false
		}
	}

	a.running = false
	a.passes++
	last := v
	last.Targets = append([]model.TargetVerdict(nil), v.Targets...)
	a.last = &last
	return v
}

// Last returns the most recent verdict.
func (a *Aggregator) Last() (model.Verdict, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.last == nil {
		return model.Verdict{}, false
	}
	v := *a.last
	v.Targets = append([]model.TargetVerdict(nil), a.last.Targets...)
	return v, true
}

// Snapshot copies the current state. The lock is held only for the copy.
func (a *Aggregator) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	s := Snapshot{
		Pass:       a.pass,
		Running:    a.running,
		Expected:   a.expected,
		Completed:  a.succeeded + a.failed,
		Succeeded:  a.succeeded,
		Failed:     a.failed,
		Current:    append([]Tally(nil), a.current...),
		Cumulative: append([]Tally(nil), a.cumulative...),
		Passes:     a.passes,
	}
	if a.last != nil {
		v := *a.last
		v.Targets = append([]model.TargetVerdict(nil), a.last.Targets...)
		s.LastVerdict = &v
	}
	return s
}

func newTallies(targets []*model.ProxyTarget) []Tally {
	out := make([]Tally, len(targets))
	for i, t := range targets {
		out[i] = Tally{ID: t.ID, Name: t.Name()}
	}
	return out
}

func sameTargets(a, b map[*model.ProxyTarget]int) bool {
	if len(a) != len(b) {
		return false
	}
	for t, i := range a {
		if j, ok := b[t]; !ok || i != j {
			return false
		}
	}
	return true
}

package analytics

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/August26/proxytest-go/internal/model"
)

func targets(names ...string) []*model.ProxyTarget {
	out := make([]*model.ProxyTarget, len(names))
	for i, n := range names {
		out[i] = &model.ProxyTarget{ID: i, Scheme: "http", Host: n, Port: 8080}
	}
	return out
}

func finished(t *model.ProxyTarget, rep int, ok bool, d time.Duration) model.Attempt {
	start := time.Unix(1000, 0)
	a := model.Attempt{Target: t, Repetition: rep}
	_ = a.Start(start)
	res := model.Succeeded(200, nil, nil)
	if !ok {
		res = model.Failed(model.ErrTimeout, "timed out")
	}
	_ = a.Finish(res, start.Add(d))
	return a
}

func TestAggregator_AtLeastOneSuccess(t *testing.T) {
	tg := targets("proxy1")
	agg := NewAggregator()
	agg.BeginPass(0, tg, 3, time.Now())

	agg.Record(finished(tg[0], 0, false, 0))
	agg.Record(finished(tg[0], 1, true, 0))
	agg.Record(finished(tg[0], 2, false, 0))

	v := agg.EndPass(true, time.Now())
	require.Len(t, v.Targets, 1)
	assert.True(t, v.Targets[0].Passing)
	assert.Equal(t, 1, v.Targets[0].Succeeded)
	assert.Equal(t, 2, v.Targets[0].Failed)
	assert.True(t, v.Overall)
	assert.Equal(t, 3, v.Total)
}

func TestAggregator_OverallIsAND(t *testing.T) {
	tg := targets("a", "b")
	agg := NewAggregator()
	agg.BeginPass(0, tg, 2, time.Now())
	agg.Record(finished(tg[0], 0, true, 0))
	agg.Record(finished(tg[1], 0, false, 0))

	v := agg.EndPass(true, time.Now())
	assert.False(t, v.Overall)
	failed := v.FailedTargets()
	require.Len(t, failed, 1)
	assert.Equal(t, "b:8080", failed[0].Name)
}

func TestAggregator_ZeroTargetsIsVacuouslyTrue(t *testing.T) {
	agg := NewAggregator()
	agg.BeginPass(0, nil, 0, time.Now())
	v := agg.EndPass(true, time.Now())
	assert.True(t, v.Overall)
	assert.Equal(t, 0, v.Total)
	assert.Equal(t, ExitSuccess, Decide(v, true))
}

func TestAggregator_CumulativeAcrossPasses(t *testing.T) {
	tg := targets("a")
	agg := NewAggregator()

	agg.BeginPass(0, tg, 1, time.Now())
	agg.Record(finished(tg[0], 0, true, 0))
	agg.EndPass(true, time.Now())

	agg.BeginPass(1, tg, 1, time.Now())
	agg.Record(finished(tg[0], 0, false, 0))
	v := agg.EndPass(true, time.Now())

	assert.False(t, v.Overall, "pass verdicts are per pass")
	s := agg.Snapshot()
	assert.Equal(t, 2, s.Passes)
	assert.Equal(t, 1, s.Cumulative[0].Succeeded)
	assert.Equal(t, 1, s.Cumulative[0].Failed)
	require.NotNil(t, s.LastVerdict)
	assert.Equal(t, 1, s.LastVerdict.Pass)

	last, ok := agg.Last()
	require.True(t, ok)
	assert.Equal(t, v.Pass, last.Pass)
}

func TestAggregator_IgnoresForeignAndPending(t *testing.T) {
	tg := targets("a")
	agg := NewAggregator()
	agg.BeginPass(0, tg, 1, time.Now())

	agg.Record(finished(targets("other")[0], 0, true, 0))
	agg.Record(model.Attempt{Target: tg[0]})

	s := agg.Snapshot()
	assert.Equal(t, 0, s.Completed)
}

func TestAggregator_SnapshotIsACopy(t *testing.T) {
	tg := targets("a")
	agg := NewAggregator()
	agg.BeginPass(0, tg, 2, time.Now())
	s := agg.Snapshot()
	agg.Record(finished(tg[0], 0, true, 0))

	assert.Equal(t, 0, s.Current[0].Succeeded)
	assert.Equal(t, 1, agg.Snapshot().Current[0].Succeeded)
	assert.True(t, agg.Snapshot().Running)
}

func TestAggregator_ConcurrentSnapshots(t *testing.T) {
	tg := targets("a", "b", "c")
	agg := NewAggregator()
	agg.BeginPass(0, tg, 300, time.Now())

	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				_ = agg.Snapshot()
			}
		}
	}()

	for i := 0; i < 300; i++ {
		agg.Record(finished(tg[i%3], i/3, i%2 == 0, 0))
	}
	close(stop)
	wg.Wait()

	v := agg.EndPass(true, time.Now())
	assert.Equal(t, 300, v.Total)
	assert.Equal(t, 150, v.Succeeded)
}

func TestDecide(t *testing.T) {
	ok := model.Verdict{Overall: true, Complete: true}
	bad := model.Verdict{Overall: false, Complete: true}
	partial := model.Verdict{Overall: true, Complete: false}

	assert.Equal(t, ExitSuccess, Decide(ok, true))
	assert.Equal(t, ExitFail, Decide(bad, true))
	assert.Equal(t, ExitUnableToTest, Decide(ok, false))
	assert.Equal(t, ExitUnableToTest, Decide(partial, true))
	assert.Equal(t, 2, int(ExitUnableToTest))
}

func TestCompute(t *testing.T) {
	tg := targets("a", "b")
	attempts := []model.Attempt{
		finished(tg[0], 0, true, 100*time.Millisecond),
		finished(tg[0], 1, true, 300*time.Millisecond),
		finished(tg[1], 0, false, 2*time.Second),
	}
	stats := Compute(attempts, 3*time.Second)

	assert.Equal(t, 3, stats.TotalAttempts)
	assert.Equal(t, 2, stats.UniqueTargets)
	assert.Equal(t, 2, stats.Succeeded)
	assert.Equal(t, 1, stats.Failed)
	assert.InDelta(t, 200.0, stats.AvgLatencyMs, 0.001)
	assert.InDelta(t, 66.666, stats.SuccessRatePct, 0.01)
	assert.Equal(t, int64(3000), stats.TotalProcessingTimeMs)
}

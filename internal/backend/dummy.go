package backend

import (
	"context"
	"time"

	"github.com/August26/proxytest-go/internal/model"
)

// Dummy never touches the network: every fetch succeeds, or fails when Fail
// is set, after an optional Delay.
type Dummy struct {
	Fail  bool
	Delay time.Duration
}

func (d *Dummy) Name() string {
	if d.Fail {
		return "dummy-error"
	}
	return "dummy"
}

func (d *Dummy) Fetch(ctx context.Context, req Request) model.FetchResult {
	if d.Delay > 0 {
		t := time.NewTimer(d.Delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return failure(ctx.Err())
		case <-t.C:
		}
	}
	if d.Fail {
		return model.Failed(model.ErrOther, "dummy error")
	}
	return model.Succeeded(200, nil, []byte("dummy success"))
}

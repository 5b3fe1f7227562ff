package output

import (
	"io"
	"strconv"
	"time"

	"github.com/cheggaaa/pb/v3"

	"github.com/August26/proxytest-go/internal/checker"
	"github.com/August26/proxytest-go/internal/model"
)

const progressTemplate = `{{string . "prefix"}}{{counters . }} {{bar . }} {{percent . }} {{string . "failed"}} {{etime . }}`

// Progress draws one progress bar per pass.
type Progress struct {
	checker.NopObserver
	Out io.Writer

	bar    *pb.ProgressBar
	failed int
}

func NewProgress(out io.Writer) *Progress {
	return &Progress{Out: out}
}

func (p *Progress) PassStarted(pass, attempts int) {
	p.failed = 0
	p.bar = pb.New(attempts)
	p.bar.SetWriter(p.Out)
	p.bar.SetTemplate(progressTemplate)
	p.bar.SetRefreshRate(200 * time.Millisecond)
	p.bar.Set("prefix", "pass "+strconv.Itoa(pass)+" ")
	p.bar.Set("failed", "failed: 0")
	p.bar.Start()
}

func (p *Progress) AttemptFinished(a model.Attempt) {
	if p.bar == nil {
		return
	}
	if !a.Succeeded() {
		p.failed++
		p.bar.Set("failed", "failed: "+strconv.Itoa(p.failed))
	}
	p.bar.Increment()
}

func (p *Progress) PassFinished(model.Verdict) {
	if p.bar != nil {
		p.bar.Finish()
		p.bar = nil
	}
}

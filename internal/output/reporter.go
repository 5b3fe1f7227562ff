package output

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"text/template"
	"time"

	"github.com/August26/proxytest-go/internal/checker"
	"github.com/August26/proxytest-go/internal/model"
)

// LogReporter logs the run through slog. Per-attempt lines are Info/Debug so
// they stay hidden at the default level; failures never escalate to Warn.
type LogReporter struct {
	Log *slog.Logger

	ran    int
	failed int
}

func (r *LogReporter) PassStarted(pass, attempts int) {
	r.ran, r.failed = 0, 0
	r.Log.Info(fmt.Sprintf("Starting %d requests.", attempts), "pass", pass)
}

func (r *LogReporter) AttemptStarted(a model.Attempt) {
	r.Log.Debug(fmt.Sprintf("%s: Connecting to %s", a.Key(), a.URL), "proxy", a.Target.String())
}

func (r *LogReporter) AttemptFinished(a model.Attempt) {
	r.ran++
	if !a.Succeeded() {
		r.failed++
		r.Log.Info(fmt.Sprintf("%s: Error connecting to %s: %s (%.2fs)", a.Key(), a.URL, a.Error, a.Duration().Seconds()),
			"kind", a.ErrorKind,
		)
		return
	}
	r.Log.Info(fmt.Sprintf("%s: Success! Got %d characters from %s (%.2fs)", a.Key(), len(a.Body), a.URL, a.Duration().Seconds()),
		"status", a.StatusCode,
	)
}

func (r *LogReporter) PassFinished(v model.Verdict) {
	pct := 0.0
	if r.ran > 0 {
		pct = float64(r.failed) / float64(r.ran) * 100
	}
	r.Log.Info(fmt.Sprintf("SUMMARY: %d/%d requests failed (%.1f%%) in %.2fs.", r.failed, r.ran, pct, v.Duration.Seconds()),
		"pass", v.Pass,
		"overall", v.Overall,
		"complete", v.Complete,
	)
}

func (r *LogReporter) Waiting(d time.Duration) {
	r.Log.Info(fmt.Sprintf("Waiting for %.2fs before repeating. Use CTRL+C to exit.", d.Seconds()))
}

// Printer writes successful responses to Out using a text/template.
// Template fields are those of model.Attempt plus the snippet helper.
type Printer struct {
	checker.NopObserver
	Out  io.Writer
	tmpl *template.Template
}

func NewPrinter(out io.Writer, format string) (*Printer, error) {
	tmpl, err := template.New("print").Funcs(template.FuncMap{
		"snippet": snippet,
	}).Parse(format)
	if err != nil {
		return nil, fmt.Errorf("parse print format: %w", err)
	}
	return &Printer{Out: out, tmpl: tmpl}, nil
}

func (p *Printer) AttemptFinished(a model.Attempt) {
	if !a.Succeeded() {
		return
	}
	if err := p.tmpl.Execute(p.Out, &a); err != nil {
		fmt.Fprintf(p.Out, "print error: %v", err)
	}
	fmt.Fprintln(p.Out)
}

// snippet flattens body to a single line and truncates it to n characters.
func snippet(body []byte, n int) string {
	flat := strings.Join(strings.Fields(string(body)), " ")
	if r := []rune(flat); len(r) > n {
		return string(r[:n])
	}
	return flat
}

// Collector keeps every finished attempt, without bodies, for the results file.
type Collector struct {
	checker.NopObserver
	Attempts []model.Attempt
}

func (c *Collector) AttemptFinished(a model.Attempt) {
	a.Body = nil
	a.Headers = nil
	c.Attempts = append(c.Attempts, a)
}

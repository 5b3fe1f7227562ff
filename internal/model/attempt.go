package model

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrAttemptState is returned when an Attempt is started or finished twice.
var ErrAttemptState = errors.New("invalid attempt state transition")

type Outcome int

const (
	Pending Outcome = iota
	Success
	Failure
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case Failure:
		return "failure"
	default:
		return "pending"
	}
}

func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// ErrorKind classifies why a fetch failed.
type ErrorKind string

const (
	ErrConnectionRefused ErrorKind = "connection_refused"
	ErrTimeout           ErrorKind = "timeout"
	ErrDNS               ErrorKind = "dns"
	ErrProtocol          ErrorKind = "protocol"
	ErrOther             ErrorKind = "other"
)

// FetchError is the failure half of a FetchResult.
type FetchError struct {
	Kind    ErrorKind
	Message string
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// FetchResult is what a backend returns for one fetch: either a response
// (Err == nil) or a classified failure.
type FetchResult struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	Err        *FetchError
}

func (r FetchResult) OK() bool { return r.Err == nil }

// Succeeded builds a successful FetchResult.
func Succeeded(status int, headers http.Header, body []byte) FetchResult {
	return FetchResult{StatusCode: status, Headers: headers, Body: body}
}

// Failed builds a failed FetchResult.
func Failed(kind ErrorKind, format string, args ...any) FetchResult {
	return FetchResult{Err: &FetchError{Kind: kind, Message: fmt.Sprintf(format, args...)}}
}

// Attempt is one fetch through one target for one repetition of a pass.
type Attempt struct {
	Target     *ProxyTarget
	Pass       int
	Repetition int
	Seq        int // dispatch order within the pass
	URL        string
	UserAgent  string
	Timeout    time.Duration

	Started  time.Time
	Finished time.Time
	Outcome  Outcome

	ErrorKind ErrorKind
	Error     string

	StatusCode int
	Headers    http.Header
	Body       []byte
}

// Key identifies the attempt in logs, e.g. "request3 (1.2.3.4:8080)".
func (a *Attempt) Key() string {
	return fmt.Sprintf("request%d (%s)", a.Seq, a.Target.Name())
}

// Start stamps the start time. It fails if the attempt was already started.
func (a *Attempt) Start(now time.Time) error {
	if !a.Started.IsZero() {
		return fmt.Errorf("start %s: %w", a.Key(), ErrAttemptState)
	}
	a.Started = now
	return nil
}

// Finish records the result and moves the attempt out of Pending.
func (a *Attempt) Finish(res FetchResult, now time.Time) error {
	if a.Started.IsZero() || a.Outcome != Pending {
		return fmt.Errorf("finish %s: %w", a.Key(), ErrAttemptState)
	}
	a.Finished = now
	if res.Err != nil {
		a.Outcome = Failure
		a.ErrorKind = res.Err.Kind
		a.Error = res.Err.Message
		return nil
	}
	a.Outcome = Success
	a.StatusCode = res.StatusCode
	a.Headers = res.Headers
	a.Body = res.Body
	return nil
}

func (a *Attempt) Succeeded() bool { return a.Outcome == Success }

// Duration is zero until the attempt has finished.
func (a *Attempt) Duration() time.Duration {
	if a.Finished.IsZero() {
		return 0
	}
	return a.Finished.Sub(a.Started)
}

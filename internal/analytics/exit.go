package analytics

import "github.com/August26/proxytest-go/internal/model"

// ExitCode is the process status reported for a run.
type ExitCode int

const (
	ExitSuccess      ExitCode = 0 // every target passed
	ExitFail         ExitCode = 1 // the run completed and at least one target failed
	ExitUnableToTest ExitCode = 2 // setup failed, or the run could not finish
)

func (c ExitCode) String() string {
	switch c {
	case ExitSuccess:
		return "success"
	case ExitFail:
		return "fail"
	default:
		return "unable to test"
	}
}

// Decide maps a verdict to an exit code. It depends on nothing but its inputs.
func Decide(v model.Verdict, setupOK bool) ExitCode {
	switch {
	case !setupOK || !v.Complete:
		return ExitUnableToTest
	case v.Overall:
		return ExitSuccess
	default:
		return ExitFail
	}
}

package model

import "time"

// TargetVerdict is one target's result within a pass.
type TargetVerdict struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	Succeeded int    `json:"succeeded"`
	Failed    int    `json:"failed"`
	Passing   bool   `json:"passing"`
}

// Verdict is the aggregate result of one pass. A target passes if at least
// one of its repetitions succeeded; Overall is the AND over all targets.
type Verdict struct {
	Pass      int             `json:"pass"`
	Total     int             `json:"total"`
	Succeeded int             `json:"succeeded"`
	Failed    int             `json:"failed"`
	Targets   []TargetVerdict `json:"targets"`
	Overall   bool            `json:"overall"`
	Complete  bool            `json:"complete"`
	Started   time.Time       `json:"started"`
	Duration  time.Duration   `json:"duration"`
}

// FailedTargets lists the targets without a single success.
func (v Verdict) FailedTargets() []TargetVerdict {
	var out []TargetVerdict
	for _, t := range v.Targets {
		if !t.Passing {
			out = append(out, t)
		}
	}
	return out
}

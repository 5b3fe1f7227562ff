package analytics

import (
	"time"

	"github.com/August26/proxytest-go/internal/model"
)

// Compute summarises a set of finished attempts.
func Compute(attempts []model.Attempt, duration time.Duration) model.BatchStats {
	stats := model.BatchStats{
		TotalAttempts:         len(attempts),
		TotalProcessingTimeMs: duration.Milliseconds(),
	}

	seen := make(map[*model.ProxyTarget]struct{})

	var latencySum time.Duration
	var latencyCount int64

	for _, a := range attempts {
		seen[a.Target] = struct{}{}

		switch a.Outcome {
		case model.Success:
			stats.Succeeded++
			if d := a.Duration(); d > 0 {
				latencySum += d
				latencyCount++
			}
		case model.Failure:
			stats.Failed++
		}
	}

	stats.UniqueTargets = len(seen)

	if latencyCount > 0 {
		stats.AvgLatencyMs = float64(latencySum.Milliseconds()) / float64(latencyCount)
	}
	if stats.TotalAttempts > 0 {
		stats.SuccessRatePct = float64(stats.Succeeded) / float64(stats.TotalAttempts) * 100.0
	}
	return stats
}

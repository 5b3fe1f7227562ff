package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/August26/proxytest-go/internal/model"
)

// PrintResultsTable prints a human-readable table of per-target results.
func PrintResultsTable(w io.Writer, v model.Verdict) {
	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)

	// header
	fmt.Fprintln(tw, "TARGET\tPASSING\tOK\tFAILED")

	for _, t := range v.Targets {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\n",
			t.Name,
			boolToYN(t.Passing),
			t.Succeeded,
			t.Failed,
		)
	}

	tw.Flush()
}

// PrintSummary prints the aggregated run stats.
func PrintSummary(w io.Writer, stats model.BatchStats, v model.Verdict) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Summary:")
	fmt.Fprintf(w, "  Attempts:                 %d\n", stats.TotalAttempts)
	fmt.Fprintf(w, "  Unique targets:           %d\n", stats.UniqueTargets)
	fmt.Fprintf(w, "  Succeeded:                %d\n", stats.Succeeded)
	fmt.Fprintf(w, "  Failed:                   %d\n", stats.Failed)
	fmt.Fprintf(w, "  Success rate:             %.1f%%\n", stats.SuccessRatePct)
	fmt.Fprintf(w, "  Avg latency (ok):         %.1f ms\n", stats.AvgLatencyMs)
	fmt.Fprintf(w, "  Run time:                 %.2f s\n", float64(stats.TotalProcessingTimeMs)/1000.0)
	fmt.Fprintf(w, "  Last pass:                %d (%s)\n", v.Pass, verdictWord(v))
}

func verdictWord(v model.Verdict) string {
	switch {
	case !v.Complete:
		return "interrupted"
	case v.Overall:
		return "all passing"
	default:
		return fmt.Sprintf("%d failing", len(v.FailedTargets()))
	}
}

func boolToYN(b bool) string {
	if b {
		return "y"
	}
	return "n"
}

// attemptRecord is the file representation of an attempt; bodies are omitted.
type attemptRecord struct {
	Target     string          `json:"target"`
	Proxy      string          `json:"proxy"`
	Pass       int             `json:"pass"`
	Repetition int             `json:"repetition"`
	URL        string          `json:"url"`
	Outcome    model.Outcome   `json:"outcome"`
	StatusCode int             `json:"status_code,omitempty"`
	ErrorKind  model.ErrorKind `json:"error_kind,omitempty"`
	Error      string          `json:"error,omitempty"`
	Started    time.Time       `json:"started"`
	LatencyMs  int64           `json:"latency_ms"`
}

func toRecord(a model.Attempt) attemptRecord {
	return attemptRecord{
		Target:     a.Target.Name(),
		Proxy:      a.Target.String(),
		Pass:       a.Pass,
		Repetition: a.Repetition,
		URL:        a.URL,
		Outcome:    a.Outcome,
		StatusCode: a.StatusCode,
		ErrorKind:  a.ErrorKind,
		Error:      a.Error,
		Started:    a.Started,
		LatencyMs:  a.Duration().Milliseconds(),
	}
}

// WriteFile writes all attempts + summary stats to a file in json or csv format.
func WriteFile(path string, format string, attempts []model.Attempt, stats model.BatchStats, v model.Verdict) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	switch format {
	case "json":
		return writeJSON(f, attempts, stats, v)
	case "csv":
		return writeCSV(f, attempts)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

// writeJSON writes an object with "attempts", "verdict" and "summary".
func writeJSON(w io.Writer, attempts []model.Attempt, stats model.BatchStats, v model.Verdict) error {
	records := make([]attemptRecord, len(attempts))
	for i, a := range attempts {
		records[i] = toRecord(a)
	}
	payload := struct {
		Attempts []attemptRecord  `json:"attempts"`
		Verdict  model.Verdict    `json:"verdict"`
		Summary  model.BatchStats `json:"summary"`
	}{
		Attempts: records,
		Verdict:  v,
		Summary:  stats,
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}

// writeCSV writes one row per attempt (summary is not included in CSV).
func writeCSV(w io.Writer, attempts []model.Attempt) error {
	cw := csv.NewWriter(w)

	header := []string{
		"target",
		"pass",
		"repetition",
		"outcome",
		"status_code",
		"error_kind",
		"error",
		"latency_ms",
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, a := range attempts {
		r := toRecord(a)
		row := []string{
			r.Target,
			strconv.Itoa(r.Pass),
			strconv.Itoa(r.Repetition),
			r.Outcome.String(),
			strconv.Itoa(r.StatusCode),
			string(r.ErrorKind),
			r.Error,
			strconv.FormatInt(r.LatencyMs, 10),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

package results

import (
	"fmt"
	"time"
)

// Build outcome statuses. Any other raw status string read from a
// descriptor is kept as-is.
const (
	StatusSuccess  = "SUCCESS"
	StatusFailure  = "FAILURE"
	StatusUnstable = "UNSTABLE"
	StatusAborted  = "ABORTED"
	StatusNotRun   = "NOT_RUN"
)

// NoBuildNumber marks a result for which no build was found.
const NoBuildNumber = -1

// shortDateLayout renders run dates as e.g. "Sep 7".
const shortDateLayout = "Jan 2"

// BuildResult is the observed outcome of one project on one
// (platform, runtime) column.
type BuildResult struct {
	Project     string    `json:"project"`
	RunTime     time.Time `json:"run_time"`
	Runtime     string    `json:"runtime"`
	Platform    string    `json:"platform"`
	Status      string    `json:"status"`
	TestsRun    int       `json:"tests_run"`
	TestsFailed int       `json:"tests_failed"`
	DurationMS  int64     `json:"duration_ms"`
	BuildNumber int       `json:"build_number"`
}

// NotRun returns the placeholder used when no qualifying build exists.
func NotRun(project, platform, runtime string) BuildResult {
	return BuildResult{
		Project:     project,
		Runtime:     runtime,
		Platform:    platform,
		Status:      StatusNotRun,
		BuildNumber: NoBuildNumber,
	}
}

// IsNotRun reports whether r is a not-run placeholder.
func (r BuildResult) IsNotRun() bool {
	return r.Status == StatusNotRun
}

// Duration returns the build duration.
func (r BuildResult) Duration() time.Duration {
	return time.Duration(r.DurationMS) * time.Millisecond
}

// FormattedDuration renders the duration as H:MM:SS.
func (r BuildResult) FormattedDuration() string {
	return FormatDuration(r.DurationMS)
}

// ShortRunDate renders the run date as "Jan 2", or an empty string when
// the run time is unknown.
func (r BuildResult) ShortRunDate() string {
	if r.RunTime.IsZero() {
		return ""
	}

	return r.RunTime.Format(shortDateLayout)
}

// String renders the result on one line for debug logging.
func (r BuildResult) String() string {
	return fmt.Sprintf(
		"%s, %s, %s, %s, %s, tests run %d, failed %d, duration %s, build %d",
		r.Project, r.RunTime.Format(time.RFC3339), r.Runtime, r.Platform,
		r.Status, r.TestsRun, r.TestsFailed, r.FormattedDuration(), r.BuildNumber,
	)
}

// FormatDuration renders milliseconds as H:MM:SS. Hours are not capped.
func FormatDuration(ms int64) string {
	if ms < 0 {
		ms = 0
	}

	secs := ms / 1000
	hours := secs / 3600
	minutes := (secs / 60) % 60
	seconds := secs % 60

	return fmt.Sprintf("%d:%02d:%02d", hours, minutes, seconds)
}

// Results maps a project name to its results, at most one per column.
type Results map[string][]BuildResult

// Lookup returns the result of project on the given column.
func (r Results) Lookup(project, platform, runtime string) (BuildResult, bool) {
	for _, br := range r[project] {
		if br.Platform == platform && br.Runtime == runtime {
			return br, true
		}
	}

	return BuildResult{}, false
}

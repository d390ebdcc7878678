package results_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ethpandaops/buildmatrixoor/pkg/results"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		ms   int64
		want string
	}{
		{ms: 0, want: "0:00:00"},
		{ms: 999, want: "0:00:00"},
		{ms: 65000, want: "0:01:05"},
		{ms: 3_600_000, want: "1:00:00"},
		{ms: 3_723_000, want: "1:02:03"},
		{ms: 90_000_000, want: "25:00:00"},
		{ms: -5, want: "0:00:00"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, results.FormatDuration(tt.ms))
		})
	}
}

func TestNotRun(t *testing.T) {
	r := results.NotRun("camel-2.12.0.redhat-6-1-x-stable-platform", "rhel", "jdk7")

	assert.True(t, r.IsNotRun())
	assert.Equal(t, results.NoBuildNumber, r.BuildNumber)
	assert.Zero(t, r.TestsRun)
	assert.Zero(t, r.TestsFailed)
	assert.Zero(t, r.DurationMS)
	assert.Equal(t, "rhel", r.Platform)
	assert.Equal(t, "jdk7", r.Runtime)
	assert.Empty(t, r.ShortRunDate())
}

func TestShortRunDate(t *testing.T) {
	r := results.BuildResult{
		RunTime: time.Date(2013, time.September, 7, 0, 7, 19, 0, time.UTC),
	}

	assert.Equal(t, "Sep 7", r.ShortRunDate())
}

func TestResultsLookup(t *testing.T) {
	res := results.Results{
		"cxf": {
			{Project: "cxf", Platform: "rhel", Runtime: "jdk6", Status: results.StatusSuccess},
			{Project: "cxf", Platform: "rhel", Runtime: "jdk7", Status: results.StatusFailure},
		},
	}

	got, ok := res.Lookup("cxf", "rhel", "jdk7")
	assert.True(t, ok)
	assert.Equal(t, results.StatusFailure, got.Status)

	_, ok = res.Lookup("cxf", "aix", "jdk7")
	assert.False(t, ok)

	_, ok = res.Lookup("karaf", "rhel", "jdk6")
	assert.False(t, ok)
}

func TestString(t *testing.T) {
	r := results.BuildResult{
		Project:     "cxf",
		Runtime:     "jdk6",
		Platform:    "rhel",
		Status:      results.StatusUnstable,
		TestsRun:    5,
		TestsFailed: 2,
		DurationMS:  65000,
		BuildNumber: 21,
	}

	s := r.String()
	assert.Contains(t, s, "cxf")
	assert.Contains(t, s, "UNSTABLE")
	assert.Contains(t, s, "0:01:05")
	assert.Contains(t, s, "build 21")
}

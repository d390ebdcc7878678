package report_test

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethpandaops/buildmatrixoor/pkg/config"
	"github.com/ethpandaops/buildmatrixoor/pkg/jobtree"
	"github.com/ethpandaops/buildmatrixoor/pkg/report"
	"github.com/ethpandaops/buildmatrixoor/pkg/results"
)

func testLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetOutput(io.Discard)

	return log
}

var runTime = time.Date(2013, 9, 7, 0, 7, 19, 0, time.UTC)

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		result results.BuildResult
		want   report.Category
	}{
		{
			name:   "not run wins over numbers",
			result: results.BuildResult{Status: results.StatusNotRun, TestsRun: 10, TestsFailed: 3},
			want:   report.CategoryNotRun,
		},
		{
			name:   "success",
			result: results.BuildResult{Status: "SUCCESS", TestsRun: 42},
			want:   report.CategorySuccess,
		},
		{
			name:   "success is case-insensitive",
			result: results.BuildResult{Status: "Success", TestsRun: 1},
			want:   report.CategorySuccess,
		},
		{
			name:   "success without tests is still success",
			result: results.BuildResult{Status: "SUCCESS"},
			want:   report.CategorySuccess,
		},
		{
			name:   "failure without tests is a build failure",
			result: results.BuildResult{Status: "FAILURE"},
			want:   report.CategoryBuildFailure,
		},
		{
			name:   "aborted without tests is a build failure",
			result: results.BuildResult{Status: "ABORTED"},
			want:   report.CategoryBuildFailure,
		},
		{
			name:   "unstable with tests is a test failure",
			result: results.BuildResult{Status: "UNSTABLE", TestsRun: 5, TestsFailed: 2},
			want:   report.CategoryTestFailure,
		},
		{
			name:   "failure with tests is a test failure",
			result: results.BuildResult{Status: "FAILURE", TestsRun: 5},
			want:   report.CategoryTestFailure,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, report.Classify(tt.result))
		})
	}
}

func testMatrix(t *testing.T) *report.Matrix {
	t.Helper()

	links, err := report.NewLinkBuilder(
		config.DefaultURLTemplate, "https://jenkins.example.com", jobtree.DefaultLayout(),
	)
	require.NoError(t, err)

	axes := jobtree.NewAxisSet([]jobtree.Column{
		{Platform: "rhel", Runtime: "jdk6"},
		{Platform: "rhel", Runtime: "jdk7"},
		{Platform: "aix", Runtime: "jdk6"},
	}, nil)

	res := results.Results{
		"fuse-6.1-platform": {
			{
				Project: "fuse-6.1-platform", RunTime: runTime, Runtime: "jdk6", Platform: "rhel",
				Status: "UNSTABLE", TestsRun: 5, TestsFailed: 2, DurationMS: 3723000, BuildNumber: 21,
			},
			{
				Project: "fuse-6.1-platform", RunTime: runTime, Runtime: "jdk7", Platform: "rhel",
				Status: "SUCCESS", TestsRun: 42, DurationMS: 65000, BuildNumber: 22,
			},
			results.NotRun("fuse-6.1-platform", "aix", "jdk6"),
		},
		"a-6.1-platform": {
			{
				Project: "a-6.1-platform", RunTime: runTime, Runtime: "jdk6", Platform: "aix",
				Status: "FAILURE", BuildNumber: 3,
			},
		},
	}

	return report.Build(res, axes, report.Options{
		Title:       "JBoss Fuse 6.1 Platform Test Results",
		GeneratedAt: runTime,
		Links:       links,
		Log:         testLogger(),
	})
}

func TestBuild(t *testing.T) {
	m := testMatrix(t)

	assert.Equal(t, []string{"aix jdk6", "rhel jdk6", "rhel jdk7"}, m.Headers())
	require.Len(t, m.Rows, 2)
	assert.Equal(t, "a-6.1-platform", m.Rows[0].Project)
	assert.Equal(t, "fuse-6.1-platform", m.Rows[1].Project)

	first := m.Rows[0].Cells
	require.Len(t, first, 3)
	assert.Equal(t, report.CategoryBuildFailure, first[0].Category)
	assert.Equal(t, "0/0", first[0].Text)
	assert.Equal(t, report.CategoryBlank, first[1].Category)
	assert.Equal(t, results.NoBuildNumber, first[1].BuildNumber)
	assert.Equal(t, report.CategoryBlank, first[2].Category)

	cells := m.Rows[1].Cells
	require.Len(t, cells, 3)

	assert.Equal(t, report.CategoryNotRun, cells[0].Category)
	assert.Empty(t, cells[0].Text)
	assert.Empty(t, cells[0].URL)
	assert.Equal(t, results.NoBuildNumber, cells[0].BuildNumber)
	assert.Zero(t, cells[0].TestsRun)

	assert.Equal(t, report.CategoryTestFailure, cells[1].Category)
	assert.Equal(t, "2/5", cells[1].Text)
	assert.Equal(t, "1:02:03", cells[1].Duration)
	assert.Equal(t, "Sep 7", cells[1].RunDate)
	assert.Equal(t,
		"https://jenkins.example.com/job/fuse-6.1-platform/21/jdk=jdk6,label=rhel/",
		cells[1].URL,
	)

	assert.Equal(t, report.CategorySuccess, cells[2].Category)
	assert.Equal(t, "0/42", cells[2].Text)
	assert.Equal(t, "0:01:05", cells[2].Duration)

	assert.Equal(t, map[report.Category]int{
		report.CategoryBlank:        2,
		report.CategoryNotRun:       1,
		report.CategorySuccess:      1,
		report.CategoryBuildFailure: 1,
		report.CategoryTestFailure:  1,
	}, m.Counts())
}

func TestBuild_EmptyProjectRow(t *testing.T) {
	axes := jobtree.NewAxisSet([]jobtree.Column{{Platform: "rhel", Runtime: "jdk6"}}, nil)

	m := report.Build(results.Results{"empty": nil}, axes, report.Options{})

	require.Len(t, m.Rows, 1)
	require.Len(t, m.Rows[0].Cells, 1)
	assert.Equal(t, report.CategoryBlank, m.Rows[0].Cells[0].Category)
	assert.False(t, m.GeneratedAt.IsZero())
}

func TestLinkBuilder_RelativeWithoutRoot(t *testing.T) {
	links, err := report.NewLinkBuilder(config.DefaultURLTemplate, "", jobtree.DefaultLayout())
	require.NoError(t, err)

	url, err := links.URL(results.BuildResult{
		Project: "fuse-6.1-platform", BuildNumber: 21, Runtime: "jdk6", Platform: "rhel",
	})
	require.NoError(t, err)
	assert.Equal(t, "/job/fuse-6.1-platform/21/jdk=jdk6,label=rhel/", url)
}

func TestLinkBuilder_BadTemplate(t *testing.T) {
	_, err := report.NewLinkBuilder("{{.Root", "", jobtree.DefaultLayout())
	require.Error(t, err)

	links, err := report.NewLinkBuilder("{{.Missing}}", "", jobtree.DefaultLayout())
	require.NoError(t, err)

	_, err = links.URL(results.BuildResult{})
	require.Error(t, err)
}

func TestHTMLWriter(t *testing.T) {
	data, w, err := report.Render(testMatrix(t), report.FormatHTML)
	require.NoError(t, err)
	assert.Equal(t, "html", w.Extension())

	html := string(data)

	assert.Contains(t, html, "<caption>JBoss Fuse 6.1 Platform Test Results as of Sat Sep 7 00:07:19 UTC 2013</caption>")
	assert.Contains(t, html, "<th>Platform</th><th>aix jdk6</th><th>rhel jdk6</th><th>rhel jdk7</th>")
	assert.Contains(t, html,
		`<td class="success"><a href="https://jenkins.example.com/job/fuse-6.1-platform/22/jdk=jdk7,label=rhel/">0/42</a><br/><small>(0:01:05 Sep 7)</small></td>`)
	assert.Contains(t, html, `<td class="test-failure">`)
	assert.Contains(t, html, `<td class="build-failure">`)
	assert.Contains(t, html, `<td class="not-run">Not Run</td>`)
	assert.Contains(t, html, "Cell results N/M show N test failures out of M tests run.")

	for _, color := range []string{"#2E8B57", "#ffd700", "#dc143c", "#f5f5dc"} {
		assert.Contains(t, html, color)
	}

	// Project rows follow name order.
	assert.Less(t, strings.Index(html, "a-6.1-platform"), strings.Index(html, "fuse-6.1-platform"))
}

func TestHTMLWriter_EscapesNames(t *testing.T) {
	axes := jobtree.NewAxisSet([]jobtree.Column{{Platform: "rhel", Runtime: "jdk6"}}, nil)
	m := report.Build(results.Results{"<script>": nil}, axes, report.Options{Title: "a & b"})

	data, _, err := report.Render(m, report.FormatHTML)
	require.NoError(t, err)

	assert.NotContains(t, string(data), "<script>")
	assert.Contains(t, string(data), "&lt;script&gt;")
	assert.Contains(t, string(data), "a &amp; b")
}

func TestTextWriter(t *testing.T) {
	data, w, err := report.Render(testMatrix(t), report.FormatText)
	require.NoError(t, err)
	assert.Equal(t, "txt", w.Extension())

	text := string(data)

	assert.Contains(t, text, "JBoss Fuse 6.1 Platform Test Results")
	assert.Contains(t, text, "rhel jdk7")
	assert.Contains(t, text, "0/42 ok")
	assert.Contains(t, text, "2/5 unstable")
	assert.Contains(t, text, "0/0 FAILED")
	assert.Contains(t, text, "not run")
	assert.Contains(t, text, "Total: 2 projects")
}

func TestJSONWriter(t *testing.T) {
	data, w, err := report.Render(testMatrix(t), report.FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, "application/json", w.ContentType())

	var decoded struct {
		Title  string         `json:"title"`
		Rows   []report.Row   `json:"rows"`
		Counts map[string]int `json:"counts"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, "JBoss Fuse 6.1 Platform Test Results", decoded.Title)
	require.Len(t, decoded.Rows, 2)
	assert.Equal(t, "2/5", decoded.Rows[1].Cells[1].Text)
	assert.Equal(t, 21, decoded.Rows[1].Cells[1].BuildNumber)
	assert.Equal(t, results.NoBuildNumber, decoded.Rows[1].Cells[0].BuildNumber)
	assert.Equal(t, 1, decoded.Counts["success"])
}

func TestNewWriter_Unsupported(t *testing.T) {
	_, err := report.NewWriter("pdf")
	require.Error(t, err)
}

func TestWriteFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "results")

	files, err := report.WriteFiles(testLogger(), testMatrix(t), dir, "results",
		[]string{report.FormatHTML, report.FormatJSON}, nil)
	require.NoError(t, err)
	require.Len(t, files, 2)

	assert.Equal(t, filepath.Join(dir, "results.html"), files[0].Path)
	assert.Equal(t, filepath.Join(dir, "results.json"), files[1].Path)

	for _, f := range files {
		info, err := os.Stat(f.Path)
		require.NoError(t, err)
		assert.Equal(t, f.Size, info.Size())
	}
}

func TestWriteFiles_OutputError(t *testing.T) {
	parent := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(parent, []byte("x"), 0o644))

	_, err := report.WriteFiles(testLogger(), testMatrix(t), filepath.Join(parent, "results"), "results",
		[]string{report.FormatHTML}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, report.ErrOutput)

	_, err = report.WriteFiles(testLogger(), testMatrix(t), t.TempDir(), "results",
		[]string{"pdf"}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, report.ErrOutput)
}

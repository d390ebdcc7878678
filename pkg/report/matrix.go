// Package report turns aggregated build results into a project by column
// matrix and renders it as HTML, plain text or JSON.
package report

import (
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/buildmatrixoor/pkg/jobtree"
	"github.com/ethpandaops/buildmatrixoor/pkg/results"
)

// Matrix is a rendered-ready report.
type Matrix struct {
	Title       string           `json:"title"`
	GeneratedAt time.Time        `json:"generated_at"`
	Columns     []jobtree.Column `json:"columns"`
	Rows        []Row            `json:"rows"`
}

// Row is one project.
type Row struct {
	Project string `json:"project"`
	Cells   []Cell `json:"cells"`
}

// Cell is one project on one column. Blank and not-run cells carry
// results.NoBuildNumber.
type Cell struct {
	Category    Category `json:"category"`
	Status      string   `json:"status,omitempty"`
	BuildNumber int      `json:"build_number"`
	TestsRun    int      `json:"tests_run"`
	TestsFailed int      `json:"tests_failed"`
	DurationMS  int64    `json:"duration_ms"`
	// Text is "failed/total".
	Text     string    `json:"text,omitempty"`
	Duration string    `json:"duration,omitempty"`
	RunDate  string    `json:"run_date,omitempty"`
	RunTime  time.Time `json:"run_time,omitzero"`
	URL      string    `json:"url,omitempty"`
}

// Options controls matrix construction.
type Options struct {
	Title       string
	GeneratedAt time.Time
	Links       *LinkBuilder
	Log         logrus.FieldLogger
}

// Build lays out results against the axes. Columns follow the AxisSet order
// and rows are sorted by project name. A column without a result yields a
// blank cell.
func Build(res results.Results, axes *jobtree.AxisSet, opts Options) *Matrix {
	generatedAt := opts.GeneratedAt
	if generatedAt.IsZero() {
		generatedAt = time.Now()
	}

	m := &Matrix{
		Title:       opts.Title,
		GeneratedAt: generatedAt,
		Columns:     axes.Columns(),
		Rows:        make([]Row, 0, len(res)),
	}

	projects := make([]string, 0, len(res))
	for p := range res {
		projects = append(projects, p)
	}

	sort.Strings(projects)

	for _, project := range projects {
		row := Row{
			Project: project,
			Cells:   make([]Cell, 0, len(m.Columns)),
		}

		for _, col := range m.Columns {
			br, ok := res.Lookup(project, col.Platform, col.Runtime)
			if !ok {
				row.Cells = append(row.Cells, Cell{
					Category:    CategoryBlank,
					BuildNumber: results.NoBuildNumber,
				})

				continue
			}

			row.Cells = append(row.Cells, newCell(br, opts))
		}

		m.Rows = append(m.Rows, row)
	}

	return m
}

func newCell(br results.BuildResult, opts Options) Cell {
	category := Classify(br)

	c := Cell{
		Category:    category,
		Status:      br.Status,
		BuildNumber: br.BuildNumber,
	}

	if category == CategoryNotRun {
		return c
	}

	c.TestsRun = br.TestsRun
	c.TestsFailed = br.TestsFailed
	c.DurationMS = br.DurationMS
	c.Text = fmt.Sprintf("%d/%d", br.TestsFailed, br.TestsRun)
	c.Duration = br.FormattedDuration()
	c.RunDate = br.ShortRunDate()
	c.RunTime = br.RunTime

	if opts.Links != nil {
		url, err := opts.Links.URL(br)
		if err != nil && opts.Log != nil {
			opts.Log.WithError(err).WithField("project", br.Project).
				Warn("Failed to render result link")
		}

		c.URL = url
	}

	return c
}

// Headers returns the column header labels.
func (m *Matrix) Headers() []string {
	headers := make([]string, 0, len(m.Columns))
	for _, c := range m.Columns {
		headers = append(headers, c.Label())
	}

	return headers
}

// Counts returns the number of cells per category.
func (m *Matrix) Counts() map[Category]int {
	counts := make(map[Category]int, len(Categories))
	for _, c := range Categories {
		counts[c] = 0
	}

	for _, row := range m.Rows {
		for _, cell := range row.Cells {
			counts[cell.Category]++
		}
	}

	return counts
}

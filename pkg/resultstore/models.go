package resultstore

import (
	"time"

	"github.com/ethpandaops/buildmatrixoor/pkg/report"
)

// Snapshot is one report generation.
type Snapshot struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	GeneratedAt   time.Time `gorm:"index" json:"generated_at"`
	Title         string    `json:"title"`
	Projects      int       `json:"projects"`
	Columns       int       `json:"columns"`
	Success       int       `json:"success"`
	TestFailures  int       `json:"test_failures"`
	BuildFailures int       `json:"build_failures"`
	NotRun        int       `json:"not_run"`
	Blank         int       `json:"blank"`
	ParseErrors   int       `json:"parse_errors"`
}

// CellResult is one non-blank cell of a snapshot.
type CellResult struct {
	ID          uint      `gorm:"primaryKey" json:"-"`
	SnapshotID  uint      `gorm:"not null;index" json:"snapshot_id"`
	Project     string    `gorm:"not null;index" json:"project"`
	Platform    string    `gorm:"not null" json:"platform"`
	Runtime     string    `gorm:"not null" json:"runtime"`
	Category    string    `json:"category"`
	Status      string    `json:"status"`
	BuildNumber int       `json:"build_number"`
	TestsRun    int       `json:"tests_run"`
	TestsFailed int       `json:"tests_failed"`
	DurationMS  int64     `json:"duration_ms"`
	RunTime     time.Time `json:"run_time"`
}

// FromMatrix converts a matrix into a snapshot row and its cell rows.
// Blank cells are counted but not stored.
func FromMatrix(m *report.Matrix, parseErrors int) (*Snapshot, []CellResult) {
	counts := m.Counts()

	snap := &Snapshot{
		GeneratedAt:   m.GeneratedAt.UTC(),
		Title:         m.Title,
		Projects:      len(m.Rows),
		Columns:       len(m.Columns),
		Success:       counts[report.CategorySuccess],
		TestFailures:  counts[report.CategoryTestFailure],
		BuildFailures: counts[report.CategoryBuildFailure],
		NotRun:        counts[report.CategoryNotRun],
		Blank:         counts[report.CategoryBlank],
		ParseErrors:   parseErrors,
	}

	cells := make([]CellResult, 0, len(m.Rows)*len(m.Columns)-snap.Blank)

	for _, row := range m.Rows {
		for i, cell := range row.Cells {
			if cell.Category == report.CategoryBlank {
				continue
			}

			col := m.Columns[i]

			cells = append(cells, CellResult{
				Project:     row.Project,
				Platform:    col.Platform,
				Runtime:     col.Runtime,
				Category:    string(cell.Category),
				Status:      cell.Status,
				BuildNumber: cell.BuildNumber,
				TestsRun:    cell.TestsRun,
				TestsFailed: cell.TestsFailed,
				DurationMS:  cell.DurationMS,
				RunTime:     cell.RunTime.UTC(),
			})
		}
	}

	return snap, cells
}

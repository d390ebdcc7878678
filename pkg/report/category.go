package report

import (
	"strings"

	"github.com/ethpandaops/buildmatrixoor/pkg/results"
)

// Category is the visual class of a matrix cell.
type Category string

const (
	// CategoryBlank is a column without any result, e.g. after a read failure.
	CategoryBlank        Category = "blank"
	CategoryNotRun       Category = "not-run"
	CategorySuccess      Category = "success"
	CategoryBuildFailure Category = "build-failure"
	CategoryTestFailure  Category = "test-failure"
)

// Categories lists every category in legend order.
var Categories = []Category{
	CategoryBuildFailure,
	CategoryTestFailure,
	CategorySuccess,
	CategoryNotRun,
	CategoryBlank,
}

// Classify returns the category of a result. The first matching rule wins:
// not run, success, no tests run, test failures.
func Classify(r results.BuildResult) Category {
	switch {
	case r.IsNotRun():
		return CategoryNotRun
	case strings.EqualFold(r.Status, results.StatusSuccess):
		return CategorySuccess
	case r.TestsRun == 0:
		return CategoryBuildFailure
	default:
		return CategoryTestFailure
	}
}

// Description is the legend text of the category.
func (c Category) Description() string {
	switch c {
	case CategorySuccess:
		return "successful builds"
	case CategoryTestFailure:
		return "builds with test failures"
	case CategoryBuildFailure:
		return "build failures"
	case CategoryNotRun:
		return "configurations not run"
	default:
		return "no readable result"
	}
}

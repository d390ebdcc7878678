// Package aggregator resolves the latest build of every project on every
// column of the build matrix.
package aggregator

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/ethpandaops/buildmatrixoor/pkg/descriptor"
	"github.com/ethpandaops/buildmatrixoor/pkg/jobtree"
	"github.com/ethpandaops/buildmatrixoor/pkg/results"
)

// defaultConcurrency is the number of projects aggregated in parallel when
// no explicit concurrency value is configured.
const defaultConcurrency = 4

// Aggregator builds the results map of a set of projects.
type Aggregator interface {
	Aggregate(ctx context.Context, projects []jobtree.Project, axes *jobtree.AxisSet) (*Aggregation, error)
}

// Aggregation is the outcome of one aggregation pass.
type Aggregation struct {
	Results results.Results
	// Misses counts columns without a finished build.
	Misses int
	// ParseErrors counts columns whose descriptor could not be read.
	ParseErrors int
}

// Compile-time interface check.
var _ Aggregator = (*aggregator)(nil)

type aggregator struct {
	log         logrus.FieldLogger
	layout      jobtree.Layout
	concurrency int
}

// NewAggregator creates a new Aggregator.
func NewAggregator(log logrus.FieldLogger, layout jobtree.Layout, concurrency int) Aggregator {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}

	return &aggregator{
		log:         log.WithField("component", "aggregator"),
		layout:      layout,
		concurrency: concurrency,
	}
}

// projectResult is the private buffer of one worker.
type projectResult struct {
	results     []results.BuildResult
	misses      int
	parseErrors int
}

// Aggregate resolves every column of every project. Per-cell failures are
// logged and leave the cell out; only context cancellation is returned.
func (a *aggregator) Aggregate(
	ctx context.Context,
	projects []jobtree.Project,
	axes *jobtree.AxisSet,
) (*Aggregation, error) {
	start := time.Now()
	columns := axes.Columns()
	buffers := make([]projectResult, len(projects))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)

	var done atomic.Int64

	for i, project := range projects {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}

			buffers[i] = a.aggregateProject(project, columns)
			done.Add(1)

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("aggregating projects: %w", err)
	}

	agg := &Aggregation{
		Results: make(results.Results, len(projects)),
	}

	for i, project := range projects {
		agg.Results[project.Name] = buffers[i].results
		agg.Misses += buffers[i].misses
		agg.ParseErrors += buffers[i].parseErrors
	}

	a.log.WithFields(logrus.Fields{
		"projects":     done.Load(),
		"columns":      len(columns),
		"misses":       agg.Misses,
		"parse_errors": agg.ParseErrors,
		"duration":     time.Since(start).Round(time.Millisecond),
	}).Info("Aggregation complete")

	return agg, nil
}

func (a *aggregator) aggregateProject(project jobtree.Project, columns []jobtree.Column) projectResult {
	out := projectResult{
		results: make([]results.BuildResult, 0, len(columns)),
	}

	for _, col := range columns {
		log := a.log.WithFields(logrus.Fields{
			"project":  project.Name,
			"platform": col.Platform,
			"runtime":  col.Runtime,
		})

		buildsDir := a.layout.BuildsPath(project.Dir, col.Runtime, col.Platform)

		build, err := jobtree.LatestBuild(buildsDir, a.layout)
		if err != nil {
			if errors.Is(err, jobtree.ErrNoBuild) {
				out.results = append(out.results, results.NotRun(project.Name, col.Platform, col.Runtime))
				out.misses++

				continue
			}

			log.WithError(err).WithField("path", buildsDir).
				Warn("Failed to list builds")

			continue
		}

		d, err := descriptor.Read(build.Descriptor)
		if err != nil {
			log.WithError(err).WithField("path", build.Descriptor).
				Warn("Skipping unreadable build descriptor")

			out.parseErrors++

			continue
		}

		br := newBuildResult(project.Name, col, build, d)
		log.WithField("result", br.String()).Debug("Resolved build")

		out.results = append(out.results, br)
	}

	return out
}

func newBuildResult(
	project string,
	col jobtree.Column,
	build *jobtree.Build,
	d *descriptor.Descriptor,
) results.BuildResult {
	runTime := d.StartTime
	if runTime.IsZero() {
		runTime = build.ModTime
	}

	number := d.Number
	if number < 0 {
		number = build.Number()
	}

	return results.BuildResult{
		Project:     project,
		RunTime:     runTime,
		Runtime:     col.Runtime,
		Platform:    col.Platform,
		Status:      d.Result,
		TestsRun:    d.TestsRun,
		TestsFailed: d.TestsFailed,
		DurationMS:  d.DurationMS,
		BuildNumber: number,
	}
}

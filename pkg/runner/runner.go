// Package runner wires discovery, aggregation and rendering into one report
// generation and publishes the result.
package runner

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/buildmatrixoor/pkg/aggregator"
	"github.com/ethpandaops/buildmatrixoor/pkg/config"
	"github.com/ethpandaops/buildmatrixoor/pkg/fsutil"
	"github.com/ethpandaops/buildmatrixoor/pkg/jobtree"
	"github.com/ethpandaops/buildmatrixoor/pkg/metrics"
	"github.com/ethpandaops/buildmatrixoor/pkg/report"
	"github.com/ethpandaops/buildmatrixoor/pkg/resultstore"
	"github.com/ethpandaops/buildmatrixoor/pkg/upload"
)

// Runner generates and publishes build matrix reports.
type Runner interface {
	Start(ctx context.Context) error
	Stop() error

	// DiscoverAxes walks the job tree and returns the discovered and the
	// pruned axis sets.
	DiscoverAxes(ctx context.Context) (discovered, pruned *jobtree.AxisSet, err error)

	// Generate runs one full generation without writing anything.
	Generate(ctx context.Context) (*Snapshot, error)

	// Publish writes the report files and hands them to the optional
	// publisher, result store and metrics.
	Publish(ctx context.Context, snap *Snapshot) (*Publication, error)
}

// Snapshot is the in-memory outcome of one generation.
type Snapshot struct {
	Discovered  *jobtree.AxisSet
	Axes        *jobtree.AxisSet
	Matrix      *report.Matrix
	ParseErrors int
	Misses      int
	Duration    time.Duration
}

// Publication describes where a snapshot went.
type Publication struct {
	Files      []report.File
	Keys       []string
	SnapshotID uint
}

// Deps are the optional collaborators of a Runner. Nil members are skipped.
type Deps struct {
	Publisher upload.Publisher
	Store     resultstore.Store
	Metrics   *metrics.Metrics
}

// NewRunner validates the runtime parts of cfg and creates a runner.
func NewRunner(log logrus.FieldLogger, cfg *config.Config, deps Deps) (Runner, error) {
	selector, err := jobtree.CompileSelector(cfg.Jobs.Match)
	if err != nil {
		return nil, err
	}

	layout := jobtree.NewLayout(cfg.Jobs.Layout)

	links, err := report.NewLinkBuilder(cfg.Report.URLTemplate, cfg.Report.ResolveURLRoot(), layout)
	if err != nil {
		return nil, err
	}

	owner, err := fsutil.ParseOwner(cfg.Report.Owner)
	if err != nil {
		return nil, fmt.Errorf("parsing report owner: %w", err)
	}

	log = log.WithField("component", "runner")

	return &runner{
		log:        log,
		cfg:        cfg,
		deps:       deps,
		selector:   selector,
		layout:     layout,
		filter:     jobtree.NewFilter(cfg.Jobs.Prune),
		links:      links,
		owner:      owner,
		aggregator: aggregator.NewAggregator(log, layout, cfg.Report.Concurrency),
	}, nil
}

type runner struct {
	log        logrus.FieldLogger
	cfg        *config.Config
	deps       Deps
	selector   *regexp.Regexp
	layout     jobtree.Layout
	filter     jobtree.Filter
	links      *report.LinkBuilder
	owner      *fsutil.OwnerConfig
	aggregator aggregator.Aggregator
}

// Ensure interface compliance.
var _ Runner = (*runner)(nil)

// Start connects the result store and checks the publisher.
func (r *runner) Start(ctx context.Context) error {
	if r.deps.Store != nil {
		if err := r.deps.Store.Start(ctx); err != nil {
			return fmt.Errorf("starting result store: %w", err)
		}
	}

	if r.deps.Publisher != nil {
		if err := r.deps.Publisher.Preflight(ctx); err != nil {
			return fmt.Errorf("upload preflight: %w", err)
		}
	}

	r.log.Debug("Runner started")

	return nil
}

// Stop closes the result store.
func (r *runner) Stop() error {
	if r.deps.Store != nil {
		if err := r.deps.Store.Stop(); err != nil {
			return fmt.Errorf("stopping result store: %w", err)
		}
	}

	r.log.Debug("Runner stopped")

	return nil
}

func (r *runner) DiscoverAxes(ctx context.Context) (*jobtree.AxisSet, *jobtree.AxisSet, error) {
	discovered, err := jobtree.Discover(ctx, r.log, r.cfg.Jobs.Root, r.layout, r.selector)
	if err != nil {
		return nil, nil, err
	}

	pruned := r.filter.Apply(discovered)

	if dropped := discovered.Len() - pruned.Len(); dropped > 0 {
		r.log.WithFields(logrus.Fields{
			"dropped_columns":  dropped,
			"pruned_platforms": r.filter.Platforms,
			"pruned_runtimes":  r.filter.Runtimes,
		}).Info("Pruned retired axes")
	}

	return discovered, pruned, nil
}

func (r *runner) Generate(ctx context.Context) (*Snapshot, error) {
	start := time.Now()

	discovered, axes, err := r.DiscoverAxes(ctx)
	if err != nil {
		return nil, fmt.Errorf("discovering axes: %w", err)
	}

	projects, err := jobtree.ListProjects(r.cfg.Jobs.Root, r.selector)
	if err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}

	r.log.WithFields(logrus.Fields{
		"projects": len(projects),
		"columns":  axes.Len(),
	}).Info("Aggregating build results")

	agg, err := r.aggregator.Aggregate(ctx, projects, axes)
	if err != nil {
		return nil, err
	}

	matrix := report.Build(agg.Results, axes, report.Options{
		Title:       r.cfg.Report.Title,
		GeneratedAt: time.Now(),
		Links:       r.links,
		Log:         r.log,
	})

	snap := &Snapshot{
		Discovered:  discovered,
		Axes:        axes,
		Matrix:      matrix,
		ParseErrors: agg.ParseErrors,
		Misses:      agg.Misses,
		Duration:    time.Since(start),
	}

	r.log.WithFields(logrus.Fields{
		"rows":         len(matrix.Rows),
		"columns":      len(matrix.Columns),
		"parse_errors": snap.ParseErrors,
		"duration":     snap.Duration.Round(time.Millisecond),
	}).Info("Report generated")

	return snap, nil
}

// Publish writes the report files. Failures of the optional outputs are
// logged and do not fail the publication.
func (r *runner) Publish(ctx context.Context, snap *Snapshot) (*Publication, error) {
	files, err := report.WriteFiles(
		r.log, snap.Matrix,
		r.cfg.Report.OutputDir, r.cfg.Report.FileName,
		r.cfg.Report.Formats, r.owner,
	)
	if err != nil {
		return nil, err
	}

	pub := &Publication{Files: files}

	if r.deps.Publisher != nil {
		paths := make([]string, 0, len(files))
		for _, f := range files {
			paths = append(paths, f.Path)
		}

		keys, err := r.deps.Publisher.Publish(ctx, paths)
		if err != nil {
			r.log.WithError(err).Warn("Failed to upload report")
		}

		pub.Keys = keys
	}

	if r.deps.Store != nil {
		row, cells := resultstore.FromMatrix(snap.Matrix, snap.ParseErrors)
		if err := r.deps.Store.SaveSnapshot(ctx, row, cells); err != nil {
			r.log.WithError(err).Warn("Failed to export snapshot")
		} else {
			pub.SnapshotID = row.ID
		}
	}

	if r.deps.Metrics != nil {
		r.deps.Metrics.Observe(metrics.Observation{
			Matrix:      snap.Matrix,
			ParseErrors: snap.ParseErrors,
			Misses:      snap.Misses,
			Duration:    snap.Duration,
		})

		if path := r.cfg.Report.Metrics.Textfile; path != "" {
			if err := r.deps.Metrics.WriteTextfile(path); err != nil {
				r.log.WithError(err).WithField("path", path).
					Warn("Failed to write metrics textfile")
			}
		}
	}

	return pub, nil
}

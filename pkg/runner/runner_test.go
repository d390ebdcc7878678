package runner_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethpandaops/buildmatrixoor/pkg/config"
	"github.com/ethpandaops/buildmatrixoor/pkg/jobtree"
	"github.com/ethpandaops/buildmatrixoor/pkg/metrics"
	"github.com/ethpandaops/buildmatrixoor/pkg/report"
	"github.com/ethpandaops/buildmatrixoor/pkg/resultstore"
	"github.com/ethpandaops/buildmatrixoor/pkg/runner"
)

func testLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetOutput(io.Discard)

	return log
}

func writeBuild(t *testing.T, root, project, runtime, platform, name string, total, failed int, result string) {
	t.Helper()

	dir := filepath.Join(
		jobtree.DefaultLayout().BuildsPath(filepath.Join(root, project), runtime, platform), name,
	)
	require.NoError(t, os.MkdirAll(dir, 0o755))

	xml := fmt.Sprintf(`<?xml version='1.0' encoding='UTF-8'?>
<matrix-run>
  <actions>
    <hudson.tasks.junit.TestResultAction>
      <failCount>%d</failCount>
      <totalCount>%d</totalCount>
    </hudson.tasks.junit.TestResultAction>
  </actions>
  <number>%s</number>
  <result>%s</result>
  <duration>65000</duration>
</matrix-run>`, failed, total, name, result)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "build.xml"), []byte(xml), 0o644))
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()

	t.Setenv(config.URLRootEnv, "https://jenkins.example.com/")

	cfg, err := config.Load("")
	require.NoError(t, err)

	root := t.TempDir()
	cfg.Jobs.Root = root
	cfg.Report.OutputDir = filepath.Join(t.TempDir(), "results")
	cfg.Report.Formats = []string{report.FormatHTML, report.FormatJSON}

	writeBuild(t, root, "fuse-6.1-platform", "jdk6", "rhel", "21", 5, 2, "UNSTABLE")
	writeBuild(t, root, "fuse-6.1-platform", "jdk7", "rhel", "4", 42, 0, "SUCCESS")
	writeBuild(t, root, "fuse-6.1-platform", "jdk6", "ubuntu", "3", 1, 0, "SUCCESS")
	writeBuild(t, root, "fuse-6.1-platform", "jdk5", "rhel", "1", 1, 0, "SUCCESS")
	writeBuild(t, root, "other-6.1-platform", "jdk6", "rhel", "7", 0, 0, "FAILURE")
	writeBuild(t, root, "fuse-6.0-platform", "jdk6", "aix", "9", 1, 0, "SUCCESS")

	require.NoError(t, cfg.Validate())

	return cfg
}

func TestGenerate(t *testing.T) {
	cfg := testConfig(t)

	r, err := runner.NewRunner(testLogger(), cfg, runner.Deps{})
	require.NoError(t, err)

	snap, err := r.Generate(context.Background())
	require.NoError(t, err)

	// ubuntu and jdk5 are pruned, aix belongs to a non-matching project.
	assert.Equal(t, []string{"rhel"}, snap.Axes.Platforms())
	assert.Equal(t, []string{"jdk6", "jdk7"}, snap.Axes.Runtimes("rhel"))
	assert.Equal(t, []string{"rhel", "ubuntu"}, snap.Discovered.Platforms())

	m := snap.Matrix
	require.Len(t, m.Rows, 2)
	assert.Equal(t, "fuse-6.1-platform", m.Rows[0].Project)
	assert.Equal(t, "2/5", m.Rows[0].Cells[0].Text)
	assert.Equal(t, report.CategoryTestFailure, m.Rows[0].Cells[0].Category)
	assert.Equal(t, "0/42", m.Rows[0].Cells[1].Text)
	assert.Equal(t, "0:01:05", m.Rows[0].Cells[1].Duration)
	assert.Equal(t,
		"https://jenkins.example.com/job/fuse-6.1-platform/21/jdk=jdk6,label=rhel/",
		m.Rows[0].Cells[0].URL,
	)

	assert.Equal(t, "other-6.1-platform", m.Rows[1].Project)
	assert.Equal(t, report.CategoryBuildFailure, m.Rows[1].Cells[0].Category)
	assert.Equal(t, report.CategoryNotRun, m.Rows[1].Cells[1].Category)
	assert.Equal(t, 1, snap.Misses)
}

func TestGenerate_MissingRoot(t *testing.T) {
	cfg := testConfig(t)
	cfg.Jobs.Root = filepath.Join(t.TempDir(), "missing")

	r, err := runner.NewRunner(testLogger(), cfg, runner.Deps{})
	require.NoError(t, err)

	_, err = r.Generate(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, jobtree.ErrDiscovery))
}

func TestPublish(t *testing.T) {
	cfg := testConfig(t)
	cfg.Report.Metrics.Textfile = filepath.Join(t.TempDir(), "buildmatrixoor.prom")

	store := resultstore.NewStore(testLogger(), &config.DatabaseConfig{
		Driver: "sqlite",
		SQLite: config.SQLiteDatabaseConfig{Path: filepath.Join(t.TempDir(), "export.db")},
	})

	r, err := runner.NewRunner(testLogger(), cfg, runner.Deps{
		Store:   store,
		Metrics: metrics.New(),
	})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, r.Start(ctx))

	t.Cleanup(func() { _ = r.Stop() })

	snap, err := r.Generate(ctx)
	require.NoError(t, err)

	pub, err := r.Publish(ctx, snap)
	require.NoError(t, err)
	require.Len(t, pub.Files, 2)
	assert.NotZero(t, pub.SnapshotID)

	for _, f := range pub.Files {
		_, err := os.Stat(f.Path)
		require.NoError(t, err)
	}

	assert.FileExists(t, filepath.Join(cfg.Report.OutputDir, "results.html"))
	assert.FileExists(t, cfg.Report.Metrics.Textfile)

	snaps, err := store.ListSnapshots(ctx, 10)
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, 2, snaps[0].Projects)
	assert.WithinDuration(t, time.Now(), snaps[0].GeneratedAt, time.Minute)
}

func TestPublish_OutputError(t *testing.T) {
	cfg := testConfig(t)

	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))
	cfg.Report.OutputDir = filepath.Join(blocker, "results")

	r, err := runner.NewRunner(testLogger(), cfg, runner.Deps{})
	require.NoError(t, err)

	snap, err := r.Generate(context.Background())
	require.NoError(t, err)

	_, err = r.Publish(context.Background(), snap)
	assert.ErrorIs(t, err, report.ErrOutput)
}

func TestNewRunner_InvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Jobs.Match = "("

	_, err := runner.NewRunner(testLogger(), cfg, runner.Deps{})
	require.Error(t, err)
}

func TestDepsFromConfig(t *testing.T) {
	cfg := testConfig(t)

	deps, err := runner.DepsFromConfig(testLogger(), cfg)
	require.NoError(t, err)
	assert.NotNil(t, deps.Metrics)
	assert.Nil(t, deps.Publisher)
	assert.Nil(t, deps.Store)

	cfg.Report.Upload.Enabled = true
	cfg.Report.Upload.Bucket = "reports"
	cfg.Report.Export.Enabled = true

	deps, err = runner.DepsFromConfig(testLogger(), cfg)
	require.NoError(t, err)
	assert.NotNil(t, deps.Publisher)
	assert.NotNil(t, deps.Store)
}

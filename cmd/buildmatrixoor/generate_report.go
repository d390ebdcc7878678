package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ethpandaops/buildmatrixoor/pkg/config"
	"github.com/ethpandaops/buildmatrixoor/pkg/runner"
)

var (
	generateJobsRoot  string
	generateMatch     string
	generateTitle     string
	generateOutputDir string
	generateFormats   []string
)

var generateReportCmd = &cobra.Command{
	Use:   "generate-report",
	Short: "Generate the build matrix report once",
	Long: `Discover the matrix axes under the jobs root, select the latest finished
build of every configuration and write the report files.`,
	RunE: runGenerateReport,
}

func init() {
	rootCmd.AddCommand(generateReportCmd)
	generateReportCmd.Flags().StringVar(&generateJobsRoot, "jobs-root", "",
		"Root of the Jenkins jobs tree (overrides jobs.root)")
	generateReportCmd.Flags().StringVar(&generateMatch, "match", "",
		"Regular expression selecting project names (overrides jobs.match)")
	generateReportCmd.Flags().StringVar(&generateTitle, "title", "",
		"Report caption (overrides report.title)")
	generateReportCmd.Flags().StringVar(&generateOutputDir, "output-dir", "",
		"Directory the report is written to (overrides report.output_dir)")
	generateReportCmd.Flags().StringSliceVar(&generateFormats, "format", nil,
		"Report formats: html, text, json (comma-separated or repeated flag)")
}

func runGenerateReport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	applyGenerateFlags(cfg)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	deps, err := runner.DepsFromConfig(log, cfg)
	if err != nil {
		return err
	}

	r, err := runner.NewRunner(log, cfg, deps)
	if err != nil {
		return fmt.Errorf("creating runner: %w", err)
	}

	ctx := cmd.Context()

	if err := r.Start(ctx); err != nil {
		return fmt.Errorf("starting runner: %w", err)
	}

	defer func() {
		if err := r.Stop(); err != nil {
			log.WithError(err).Warn("Failed to stop runner")
		}
	}()

	snap, err := r.Generate(ctx)
	if err != nil {
		return fmt.Errorf("generating report: %w", err)
	}

	pub, err := r.Publish(ctx, snap)
	if err != nil {
		return fmt.Errorf("publishing report: %w", err)
	}

	for _, f := range pub.Files {
		log.WithField("path", f.Path).Info("Report written")
	}

	for _, key := range pub.Keys {
		log.WithField("key", key).Info("Report uploaded")
	}

	if pub.SnapshotID != 0 {
		log.WithField("snapshot_id", pub.SnapshotID).Info("Snapshot exported")
	}

	return nil
}

func applyGenerateFlags(cfg *config.Config) {
	if generateJobsRoot != "" {
		cfg.Jobs.Root = generateJobsRoot
	}

	if generateMatch != "" {
		cfg.Jobs.Match = generateMatch
	}

	if generateTitle != "" {
		cfg.Report.Title = generateTitle
	}

	if generateOutputDir != "" {
		cfg.Report.OutputDir = generateOutputDir
	}

	if len(generateFormats) > 0 {
		cfg.Report.Formats = generateFormats
	}
}

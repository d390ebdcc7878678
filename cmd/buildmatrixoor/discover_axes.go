package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ethpandaops/buildmatrixoor/pkg/jobtree"
	"github.com/ethpandaops/buildmatrixoor/pkg/runner"
)

var (
	discoverOutput   string
	discoverJobsRoot string
	discoverMatch    string
)

var discoverAxesCmd = &cobra.Command{
	Use:   "discover-axes",
	Short: "Print the platforms and runtimes found under the jobs root",
	Long: `Walk the jobs tree and print every platform with its runtimes, before and
after the configured prune lists, plus the suite names seen on the way.`,
	RunE: runDiscoverAxes,
}

func init() {
	rootCmd.AddCommand(discoverAxesCmd)
	discoverAxesCmd.Flags().StringVarP(&discoverOutput, "output", "o", "table",
		"Output format: table, json or yaml")
	discoverAxesCmd.Flags().StringVar(&discoverJobsRoot, "jobs-root", "",
		"Root of the Jenkins jobs tree (overrides jobs.root)")
	discoverAxesCmd.Flags().StringVar(&discoverMatch, "match", "",
		"Regular expression selecting project names (overrides jobs.match)")
}

type axesOutput struct {
	Discovered jobtree.View `json:"discovered" yaml:"discovered"`
	Pruned     jobtree.View `json:"pruned" yaml:"pruned"`
}

func runDiscoverAxes(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if discoverJobsRoot != "" {
		cfg.Jobs.Root = discoverJobsRoot
	}

	if discoverMatch != "" {
		cfg.Jobs.Match = discoverMatch
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	r, err := runner.NewRunner(log, cfg, runner.Deps{})
	if err != nil {
		return fmt.Errorf("creating runner: %w", err)
	}

	discovered, pruned, err := r.DiscoverAxes(cmd.Context())
	if err != nil {
		return fmt.Errorf("discovering axes: %w", err)
	}

	out := axesOutput{Discovered: discovered.View(), Pruned: pruned.View()}

	switch discoverOutput {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		return enc.Encode(out)
	case "yaml":
		enc := yaml.NewEncoder(os.Stdout)
		enc.SetIndent(2)

		if err := enc.Encode(out); err != nil {
			return fmt.Errorf("encoding yaml: %w", err)
		}

		return enc.Close()
	case "table":
		fmt.Println(axesTable(discovered, pruned))

		return nil
	default:
		return fmt.Errorf("unsupported output %q (table, json or yaml)", discoverOutput)
	}
}

func axesTable(discovered, pruned *jobtree.AxisSet) string {
	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.AppendHeader(table.Row{"Platform", "Runtime", "Reported"})

	for _, c := range discovered.Columns() {
		reported := "yes"
		if !pruned.Has(c) {
			reported = "pruned"
		}

		tbl.AppendRow(table.Row{c.Platform, c.Runtime, reported})
	}

	tbl.AppendFooter(table.Row{
		"Columns", fmt.Sprintf("%d/%d", pruned.Len(), discovered.Len()), "",
	})

	suites := discovered.Suites()
	if len(suites) == 0 {
		return tbl.Render()
	}

	return tbl.Render() + "\nSuites: " + strings.Join(suites, ", ")
}

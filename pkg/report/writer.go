package report

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// Supported output formats.
const (
	FormatHTML = "html"
	FormatText = "text"
	FormatJSON = "json"
)

// generatedLayout renders the generation time in the report caption.
const generatedLayout = "Mon Jan 2 15:04:05 MST 2006"

// Writer renders a Matrix in one format.
type Writer interface {
	// Extension is the file extension, without the dot.
	Extension() string
	ContentType() string
	Write(w io.Writer, m *Matrix) error
}

// NewWriter returns the Writer of a format.
func NewWriter(format string) (Writer, error) {
	switch format {
	case FormatHTML:
		return &htmlWriter{}, nil
	case FormatText:
		return &textWriter{}, nil
	case FormatJSON:
		return &jsonWriter{}, nil
	default:
		return nil, fmt.Errorf("unsupported report format %q", format)
	}
}

//go:embed templates/report.html.tmpl
var reportTemplateHTML string

var reportTemplate = template.Must(template.New("report").Parse(reportTemplateHTML))

type legendEntry struct {
	Category    Category
	Description string
}

type htmlData struct {
	*Matrix
	Generated string
	Legend    []legendEntry
}

type htmlWriter struct{}

func (w *htmlWriter) Extension() string   { return "html" }
func (w *htmlWriter) ContentType() string { return "text/html; charset=utf-8" }

func (w *htmlWriter) Write(out io.Writer, m *Matrix) error {
	legend := make([]legendEntry, 0, len(Categories))

	for _, c := range Categories {
		if c == CategoryBlank {
			continue
		}

		legend = append(legend, legendEntry{Category: c, Description: c.Description()})
	}

	if err := reportTemplate.Execute(out, htmlData{
		Matrix:    m,
		Generated: m.GeneratedAt.Format(generatedLayout),
		Legend:    legend,
	}); err != nil {
		return fmt.Errorf("rendering html report: %w", err)
	}

	return nil
}

type textWriter struct{}

func (w *textWriter) Extension() string   { return "txt" }
func (w *textWriter) ContentType() string { return "text/plain; charset=utf-8" }

func (w *textWriter) Write(out io.Writer, m *Matrix) error {
	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Format.Header = text.FormatDefault
	tbl.Style().Format.Footer = text.FormatDefault
	tbl.SetTitle(fmt.Sprintf("%s as of %s", m.Title, m.GeneratedAt.Format(generatedLayout)))

	header := table.Row{"Platform"}
	for _, h := range m.Headers() {
		header = append(header, h)
	}

	tbl.AppendHeader(header)

	configs := make([]table.ColumnConfig, 0, len(m.Columns))
	for i := range m.Columns {
		configs = append(configs, table.ColumnConfig{Number: i + 2, Align: text.AlignCenter})
	}

	tbl.SetColumnConfigs(configs)

	for _, r := range m.Rows {
		row := table.Row{r.Project}
		for _, c := range r.Cells {
			row = append(row, textCell(c))
		}

		tbl.AppendRow(row)
	}

	tbl.AppendFooter(table.Row{fmt.Sprintf("Total: %d projects", len(m.Rows))})

	if _, err := io.WriteString(out, tbl.Render()+"\n"+legendText()+"\n"); err != nil {
		return fmt.Errorf("writing text report: %w", err)
	}

	return nil
}

func textCell(c Cell) string {
	switch c.Category {
	case CategoryBlank:
		return ""
	case CategoryNotRun:
		return "not run"
	}

	marker := map[Category]string{
		CategorySuccess:      "ok",
		CategoryTestFailure:  "unstable",
		CategoryBuildFailure: "FAILED",
	}[c.Category]

	lines := []string{c.Text + " " + marker, c.Duration}
	if c.RunDate != "" {
		lines[1] += " " + c.RunDate
	}

	return strings.Join(lines, "\n")
}

func legendText() string {
	return "ok = successful build, unstable = build with test failures, " +
		"FAILED = build failure, not run = configuration not run.\n" +
		"Cell results N/M show N test failures out of M tests run."
}

type jsonWriter struct{}

func (w *jsonWriter) Extension() string   { return "json" }
func (w *jsonWriter) ContentType() string { return "application/json" }

func (w *jsonWriter) Write(out io.Writer, m *Matrix) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")

	if err := enc.Encode(struct {
		*Matrix
		Counts map[Category]int `json:"counts"`
	}{
		Matrix: m,
		Counts: m.Counts(),
	}); err != nil {
		return fmt.Errorf("encoding json report: %w", err)
	}

	return nil
}

package report

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/ethpandaops/buildmatrixoor/pkg/jobtree"
	"github.com/ethpandaops/buildmatrixoor/pkg/results"
)

// LinkData is the data passed to the cell URL template.
type LinkData struct {
	Root         string
	Project      string
	BuildNumber  int
	Runtime      string
	Platform     string
	RuntimeAxis  string
	PlatformAxis string
}

// LinkBuilder renders the results page URL of a cell.
type LinkBuilder struct {
	tmpl   *template.Template
	root   string
	layout jobtree.Layout
}

// NewLinkBuilder parses the URL template. An empty root yields links
// relative to the current host.
func NewLinkBuilder(urlTemplate, root string, layout jobtree.Layout) (*LinkBuilder, error) {
	tmpl, err := template.New("url").Option("missingkey=error").Parse(urlTemplate)
	if err != nil {
		return nil, fmt.Errorf("parsing url template: %w", err)
	}

	return &LinkBuilder{
		tmpl:   tmpl,
		root:   root,
		layout: layout,
	}, nil
}

// URL returns the link of one result.
func (b *LinkBuilder) URL(r results.BuildResult) (string, error) {
	var buf bytes.Buffer

	if err := b.tmpl.Execute(&buf, LinkData{
		Root:         b.root,
		Project:      r.Project,
		BuildNumber:  r.BuildNumber,
		Runtime:      r.Runtime,
		Platform:     r.Platform,
		RuntimeAxis:  b.layout.RuntimeAxis(),
		PlatformAxis: b.layout.PlatformAxis(),
	}); err != nil {
		return "", fmt.Errorf("rendering url: %w", err)
	}

	return buf.String(), nil
}

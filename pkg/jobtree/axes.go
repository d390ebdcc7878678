package jobtree

import (
	"maps"
	"slices"
	"sort"
)

// Column is one report column: a runtime on a platform.
type Column struct {
	Platform string `json:"platform" yaml:"platform"`
	Runtime  string `json:"runtime" yaml:"runtime"`
}

// Label is the column header text.
func (c Column) Label() string {
	return c.Platform + " " + c.Runtime
}

// AxisSet is the inferred report schema: every platform label with the
// runtimes observed under it, plus the catalogue of suite names seen while
// walking the tree. An AxisSet is not modified after construction.
type AxisSet struct {
	axes   map[string]map[string]struct{}
	suites map[string]struct{}
}

// NewAxisSet builds an AxisSet from explicit columns and suite names.
func NewAxisSet(columns []Column, suites []string) *AxisSet {
	a := &AxisSet{
		axes:   make(map[string]map[string]struct{}, len(columns)),
		suites: make(map[string]struct{}, len(suites)),
	}

	for _, c := range columns {
		a.add(c.Platform, c.Runtime)
	}

	for _, s := range suites {
		a.suites[s] = struct{}{}
	}

	return a
}

func (a *AxisSet) add(platform, runtime string) {
	if platform == "" || runtime == "" {
		return
	}

	runtimes, ok := a.axes[platform]
	if !ok {
		runtimes = make(map[string]struct{}, 4)
		a.axes[platform] = runtimes
	}

	runtimes[runtime] = struct{}{}
}

// Platforms returns the platform labels in lexicographic order.
func (a *AxisSet) Platforms() []string {
	return sortedKeys(a.axes)
}

// Runtimes returns the runtimes of platform in lexicographic order.
func (a *AxisSet) Runtimes(platform string) []string {
	return sortedKeys(a.axes[platform])
}

// Columns returns every (platform, runtime) pair, platforms first, both
// in lexicographic order.
func (a *AxisSet) Columns() []Column {
	columns := make([]Column, 0, a.Len())

	for _, p := range a.Platforms() {
		for _, r := range a.Runtimes(p) {
			columns = append(columns, Column{Platform: p, Runtime: r})
		}
	}

	return columns
}

// Len returns the number of columns.
func (a *AxisSet) Len() int {
	n := 0
	for _, runtimes := range a.axes {
		n += len(runtimes)
	}

	return n
}

// Has reports whether the column is part of the schema.
func (a *AxisSet) Has(c Column) bool {
	_, ok := a.axes[c.Platform][c.Runtime]

	return ok
}

// Suites returns every suite name seen during discovery, selected or not.
func (a *AxisSet) Suites() []string {
	return sortedKeys(a.suites)
}

// View is a serializable snapshot of an AxisSet.
type View struct {
	Axes   map[string][]string `json:"axes" yaml:"axes"`
	Suites []string            `json:"suites,omitempty" yaml:"suites,omitempty"`
}

// View returns the AxisSet as plain sorted maps and slices.
func (a *AxisSet) View() View {
	v := View{
		Axes:   make(map[string][]string, len(a.axes)),
		Suites: a.Suites(),
	}

	for _, p := range a.Platforms() {
		v.Axes[p] = a.Runtimes(p)
	}

	return v
}

// Equal reports whether both sets carry the same axes and suites.
func (a *AxisSet) Equal(b *AxisSet) bool {
	if len(a.axes) != len(b.axes) {
		return false
	}

	for p, runtimes := range a.axes {
		other, ok := b.axes[p]
		if !ok || !maps.Equal(runtimes, other) {
			return false
		}
	}

	return maps.Equal(a.suites, b.suites)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := slices.Collect(maps.Keys(m))
	sort.Strings(keys)

	return keys
}

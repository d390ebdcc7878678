package jobtree

import "github.com/ethpandaops/buildmatrixoor/pkg/config"

// Filter removes retired axis values from a discovered AxisSet.
type Filter struct {
	Platforms []string
	Runtimes  []string
}

// NewFilter builds a Filter from configuration.
func NewFilter(cfg config.PruneConfig) Filter {
	return Filter{
		Platforms: cfg.Platforms,
		Runtimes:  cfg.Runtimes,
	}
}

// Apply returns a new AxisSet without the denied platforms and runtimes.
// Platforms left without any runtime are dropped. Suite names are kept.
func (f Filter) Apply(a *AxisSet) *AxisSet {
	deniedPlatforms := toSet(f.Platforms)
	deniedRuntimes := toSet(f.Runtimes)

	columns := make([]Column, 0, a.Len())

	for _, c := range a.Columns() {
		if _, denied := deniedPlatforms[c.Platform]; denied {
			continue
		}

		if _, denied := deniedRuntimes[c.Runtime]; denied {
			continue
		}

		columns = append(columns, c)
	}

	return NewAxisSet(columns, a.Suites())
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}

	return set
}

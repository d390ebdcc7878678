// Package jobtree infers the build matrix schema from a Jenkins jobs
// directory and locates the newest finished build of each configuration.
package jobtree

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ethpandaops/buildmatrixoor/pkg/config"
)

// Layout declares the path template of a matrix configuration:
//
//	<project>/<ConfigurationsDir>/<RuntimeMarker>/<runtime>/<PlatformMarker>/<platform>/<BuildsDir>/<build>/<Descriptor>
type Layout struct {
	ConfigurationsDir string
	RuntimeMarker     string
	PlatformMarker    string
	BuildsDir         string
	Descriptor        string
	LegacySuffix      string
}

// DefaultLayout is the layout of a Jenkins matrix job with "jdk" and
// "label" axes.
func DefaultLayout() Layout {
	return Layout{
		ConfigurationsDir: "configurations",
		RuntimeMarker:     "axis-jdk",
		PlatformMarker:    "axis-label",
		BuildsDir:         "builds",
		Descriptor:        "build.xml",
		LegacySuffix:      "legacyIds",
	}
}

// NewLayout builds a Layout from configuration.
func NewLayout(cfg config.LayoutConfig) Layout {
	return Layout{
		ConfigurationsDir: cfg.ConfigurationsDir,
		RuntimeMarker:     cfg.RuntimeMarker,
		PlatformMarker:    cfg.PlatformMarker,
		BuildsDir:         cfg.BuildsDir,
		Descriptor:        cfg.Descriptor,
		LegacySuffix:      cfg.LegacySuffix,
	}
}

// Coordinates locate one matrix configuration directory.
type Coordinates struct {
	Suite    string
	Runtime  string
	Platform string
}

// Match tokenizes path against the layout. It succeeds for a directory at
// or below <platform>; the platform marker directory itself and anything
// shallower are containers and do not match.
func (l Layout) Match(path string) (Coordinates, bool) {
	segs := splitPath(path)

	r := indexOf(segs, l.RuntimeMarker)
	// project, configurations, runtime marker, runtime, platform marker, platform
	if r < 2 || len(segs) < r+4 {
		return Coordinates{}, false
	}

	if segs[r-1] != l.ConfigurationsDir || segs[r+2] != l.PlatformMarker {
		return Coordinates{}, false
	}

	c := Coordinates{
		Suite:    segs[r-2],
		Runtime:  segs[r+1],
		Platform: segs[r+3],
	}

	if c.Suite == "" || c.Runtime == "" || c.Platform == "" {
		return Coordinates{}, false
	}

	return c, true
}

// BuildsPath composes the builds directory of one configuration.
func (l Layout) BuildsPath(projectDir, runtime, platform string) string {
	return filepath.Join(
		projectDir, l.ConfigurationsDir,
		l.RuntimeMarker, runtime,
		l.PlatformMarker, platform,
		l.BuildsDir,
	)
}

// RuntimeAxis is the Jenkins axis name behind the runtime marker, e.g.
// "jdk" for "axis-jdk".
func (l Layout) RuntimeAxis() string {
	return strings.TrimPrefix(l.RuntimeMarker, "axis-")
}

// PlatformAxis is the Jenkins axis name behind the platform marker.
func (l Layout) PlatformAxis() string {
	return strings.TrimPrefix(l.PlatformMarker, "axis-")
}

// CompileSelector compiles a selection pattern. Like Java's
// String.matches, the pattern must match the whole name.
func CompileSelector(expr string) (*regexp.Regexp, error) {
	re, err := regexp.Compile("^(?:" + expr + ")$")
	if err != nil {
		return nil, fmt.Errorf("compiling selection pattern %q: %w", expr, err)
	}

	return re, nil
}

func splitPath(path string) []string {
	path = filepath.ToSlash(filepath.Clean(path))

	return strings.Split(strings.Trim(path, "/"), "/")
}

func indexOf(segs []string, s string) int {
	for i, seg := range segs {
		if seg == s {
			return i
		}
	}

	return -1
}

package jobtree

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// ErrNoBuild is returned by LatestBuild when no build directory holds a
// descriptor. It is a selection miss, not a failure.
var ErrNoBuild = errors.New("no completed build")

// Build is one build directory with a descriptor.
type Build struct {
	Name       string
	Dir        string
	Descriptor string
	ModTime    time.Time
}

// Number returns the build number encoded in the directory name, or -1
// for date-named build directories.
func (b *Build) Number() int {
	n, err := strconv.Atoi(b.Name)
	if err != nil {
		return -1
	}

	return n
}

// LatestBuild returns the most recently modified build directory under
// buildsDir that directly contains the layout's descriptor. Symbolic links
// and legacy index entries are ignored. Directories whose descriptor has
// not been written yet are skipped. Ties on modification time go to the
// greater name, compared numerically when both names are integers.
func LatestBuild(buildsDir string, layout Layout) (*Build, error) {
	entries, err := os.ReadDir(buildsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoBuild
		}

		return nil, fmt.Errorf("reading builds directory %s: %w", buildsDir, err)
	}

	var latest *Build

	for _, e := range entries {
		if e.Type()&os.ModeSymlink != 0 || !e.IsDir() {
			continue
		}

		if layout.LegacySuffix != "" && strings.HasSuffix(e.Name(), layout.LegacySuffix) {
			continue
		}

		dir := filepath.Join(buildsDir, e.Name())
		descriptor := filepath.Join(dir, layout.Descriptor)

		if !isRegularFile(descriptor) {
			continue
		}

		info, err := e.Info()
		if err != nil {
			// Removed between listing and stat.
			continue
		}

		candidate := &Build{
			Name:       e.Name(),
			Dir:        dir,
			Descriptor: descriptor,
			ModTime:    info.ModTime(),
		}

		if latest == nil || newer(candidate, latest) {
			latest = candidate
		}
	}

	if latest == nil {
		return nil, ErrNoBuild
	}

	return latest, nil
}

func newer(a, b *Build) bool {
	if !a.ModTime.Equal(b.ModTime) {
		return a.ModTime.After(b.ModTime)
	}

	return compareNames(a.Name, b.Name) > 0
}

func compareNames(a, b string) int {
	na, errA := strconv.Atoi(a)
	nb, errB := strconv.Atoi(b)

	if errA == nil && errB == nil {
		switch {
		case na > nb:
			return 1
		case na < nb:
			return -1
		}
	}

	return strings.Compare(a, b)
}

func isRegularFile(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}

	return info.Mode().IsRegular()
}

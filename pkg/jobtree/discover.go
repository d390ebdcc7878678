package jobtree

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrDiscovery is returned when the job tree root cannot be read.
var ErrDiscovery = errors.New("job tree discovery failed")

// Discover walks the tree under root once and returns the AxisSet of every
// suite whose name matches selector. Suite names are collected whether they
// match or not. Symbolic links to directories are not followed.
func Discover(
	ctx context.Context,
	log logrus.FieldLogger,
	root string,
	layout Layout,
	selector *regexp.Regexp,
) (*AxisSet, error) {
	log = log.WithField("component", "discoverer")
	start := time.Now()

	abs, err := resolveRoot(root)
	if err != nil {
		return nil, err
	}

	axes := NewAxisSet(nil, nil)
	visited := 0

	walkErr := filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == abs {
				return err
			}

			log.WithError(err).WithField("path", path).
				Warn("Skipping unreadable directory")

			if d != nil && d.IsDir() {
				return fs.SkipDir
			}

			return nil
		}

		if !d.IsDir() {
			return nil
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		visited++

		coords, ok := layout.Match(path)
		if !ok {
			return nil
		}

		axes.suites[coords.Suite] = struct{}{}

		if selector.MatchString(coords.Suite) {
			axes.add(coords.Platform, coords.Runtime)
		}

		// Everything below <platform> maps to the same coordinates.
		return fs.SkipDir
	})
	if walkErr != nil {
		if errors.Is(walkErr, context.Canceled) || errors.Is(walkErr, context.DeadlineExceeded) {
			return nil, walkErr
		}

		return nil, fmt.Errorf("%w: walking %s: %v", ErrDiscovery, abs, walkErr)
	}

	log.WithFields(logrus.Fields{
		"root":        abs,
		"directories": visited,
		"platforms":   len(axes.axes),
		"columns":     axes.Len(),
		"suites":      len(axes.suites),
		"duration":    time.Since(start).Round(time.Millisecond),
	}).Info("Discovered build axes")

	return axes, nil
}

// resolveRoot returns the absolute, symlink-free form of root, failing with
// ErrDiscovery when it is missing or not a directory.
func resolveRoot(root string) (string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDiscovery, err)
	}

	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDiscovery, err)
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDiscovery, err)
	}

	if !info.IsDir() {
		return "", fmt.Errorf("%w: %s is not a directory", ErrDiscovery, root)
	}

	return resolved, nil
}

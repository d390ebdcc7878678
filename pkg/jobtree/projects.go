package jobtree

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
)

// Project is a top-level job directory selected for the report.
type Project struct {
	Name string
	Dir  string
}

// ListProjects returns the directories directly under root whose name
// matches selector, sorted by name. Symbolic links to directories are
// included.
func ListProjects(root string, selector *regexp.Regexp) ([]Project, error) {
	abs, err := resolveRoot(root)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("%w: listing %s: %v", ErrDiscovery, abs, err)
	}

	projects := make([]Project, 0, len(entries))

	for _, e := range entries {
		if !selector.MatchString(e.Name()) {
			continue
		}

		dir := filepath.Join(abs, e.Name())

		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			continue
		}

		projects = append(projects, Project{Name: e.Name(), Dir: dir})
	}

	sort.Slice(projects, func(i, j int) bool {
		return projects[i].Name < projects[j].Name
	})

	return projects, nil
}

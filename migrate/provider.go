package migrate

import (
	"embed"
	"fmt"
	"io/fs"
	"regexp"
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/go-extras/go-kit/must"
)

//go:embed migrations/*.sql
var embedded embed.FS

// Embedded returns the blog's own migrations.
func Embedded() fs.FS {
	return must.Must(fs.Sub(embedded, "migrations"))
}

// Migration is one versioned schema change with its rollback.
type Migration struct {
	Version int
	Name    string
	Up      string
	Down    string
}

var fileNamePattern = regexp.MustCompile(`^(\d+)_(.+)\.(up|down)\.sql$`)

// Load reads NNNNNNNNNN_name.up.sql / .down.sql pairs from the root of fsys.
// Every version needs both files. The result is sorted by version.
func Load(fsys fs.FS) ([]*Migration, error) {
	byVersion := make(map[int]*Migration)
	hasUp := make(map[int]bool)
	hasDown := make(map[int]bool)

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := fileNamePattern.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		version, err := strconv.Atoi(m[1])
		if err != nil {
			return nil, fmt.Errorf("parse version of %s: %w", e.Name(), err)
		}
		body, err := fs.ReadFile(fsys, e.Name())
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", e.Name(), err)
		}

		mig, ok := byVersion[version]
		if !ok {
			mig = &Migration{Version: version, Name: m[2]}
			byVersion[version] = mig
		}
		if mig.Name != m[2] {
			return nil, fmt.Errorf("version %d has conflicting names %q and %q", version, mig.Name, m[2])
		}
		if m[3] == "up" {
			mig.Up = string(body)
			hasUp[version] = true
		} else {
			mig.Down = string(body)
			hasDown[version] = true
		}
	}

	var incomplete []string
	out := make([]*Migration, 0, len(byVersion))
	for v, mig := range byVersion {
		if !hasUp[v] || !hasDown[v] {
			incomplete = append(incomplete, fmt.Sprintf("%d_%s", v, mig.Name))
		}
		out = append(out, mig)
	}
	if len(incomplete) > 0 {
		slices.Sort(incomplete)
		return nil, fmt.Errorf("incomplete migrations found: %s", strings.Join(incomplete, ", "))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

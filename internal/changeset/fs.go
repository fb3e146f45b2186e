package changeset

import (
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"strings"
)

// migration files: <id>.up.sql / <id>.down.sql
var fileRegex = regexp.MustCompile(`^([0-9A-Za-z][0-9A-Za-z_\-]*)\.(up|down)\.sql$`)

// NoTxMarker on the first line of an up file runs it outside a transaction.
const NoTxMarker = "-- schoolsys:no-transaction"

// FromFS builds a Registry from the SQL files found directly in dir. Every
// down file needs a matching up file. Files that do not follow the naming
// scheme are ignored.
func FromFS(fsys fs.FS, dir string) (*Registry, error) {
	if dir == "" {
		dir = "."
	}
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read changeset dir %q: %w", dir, err)
	}

	ups := map[string]string{}
	downs := map[string]string{}
	var order []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := fileRegex.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		b, err := fs.ReadFile(fsys, path.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read changeset file %q: %w", e.Name(), err)
		}
		id, direction := m[1], m[2]
		if direction == "up" {
			ups[id] = string(b)
			order = append(order, id)
		} else {
			downs[id] = string(b)
		}
	}

	for id := range downs {
		if _, ok := ups[id]; !ok {
			return nil, &ConfigError{Reason: "reverse file without forward file", IDs: []string{id}}
		}
	}

	reg := NewRegistry()
	for _, id := range order {
		up := ups[id]
		cs := Changeset{
			ID:   id,
			Up:   SQL(up),
			NoTx: hasNoTxMarker(up),
		}
		if down, ok := downs[id]; ok {
			cs.Down = SQL(down)
		}
		reg.Register(cs)
	}
	return reg, nil
}

func hasNoTxMarker(body string) bool {
	first, _, _ := strings.Cut(strings.TrimSpace(body), "\n")
	return strings.TrimSpace(first) == NoTxMarker
}

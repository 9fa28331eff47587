package logstore

import (
	"path"
	"sort"
	"strings"
	"time"

	"github.com/jmgilman/go/dweb/store"
)

// tree is the file system state after applying a prefix of the log.
type tree struct {
	files  map[string]entry
	dirs   map[string]entry
	ctimes map[string]time.Time
}

func buildTree(log []entry) *tree {
	t := &tree{
		files:  make(map[string]entry),
		dirs:   make(map[string]entry),
		ctimes: make(map[string]time.Time),
	}
	for _, e := range log {
		switch {
		case e.Type == store.ChangeDelete:
			delete(t.files, e.Path)
			delete(t.dirs, e.Path)
			delete(t.ctimes, e.Path)
		case e.Dir:
			t.dirs[e.Path] = e
			t.ctimes[e.Path] = e.Mtime
		default:
			if _, ok := t.files[e.Path]; !ok {
				t.ctimes[e.Path] = e.Mtime
			}
			t.files[e.Path] = e
		}
	}
	return t
}

func (t *tree) file(p string) (entry, bool) {
	e, ok := t.files[p]
	return e, ok
}

// isDir reports whether p is the root, an explicit directory, or the
// implicit parent of some entry.
func (t *tree) isDir(p string) bool {
	if p == "/" {
		return true
	}
	if _, ok := t.dirs[p]; ok {
		return true
	}
	prefix := p + "/"
	for k := range t.files {
		if strings.HasPrefix(k, prefix) {
			return true
		}
	}
	for k := range t.dirs {
		if strings.HasPrefix(k, prefix) {
			return true
		}
	}
	return false
}

// fileAncestor returns the first ancestor of p that is a file.
func (t *tree) fileAncestor(p string) (string, bool) {
	for dir := path.Dir(p); dir != "/"; dir = path.Dir(dir) {
		if _, ok := t.files[dir]; ok {
			return dir, true
		}
	}
	return "", false
}

// children returns the sorted names directly below dir.
func (t *tree) children(dir string) []string {
	prefix := dir
	if prefix != "/" {
		prefix += "/"
	}
	seen := make(map[string]struct{})
	add := func(k string) {
		if !strings.HasPrefix(k, prefix) || k == dir {
			return
		}
		name, _, _ := strings.Cut(strings.TrimPrefix(k, prefix), "/")
		if name != "" {
			seen[name] = struct{}{}
		}
	}
	for k := range t.files {
		add(k)
	}
	for k := range t.dirs {
		add(k)
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// filesUnder returns every file at or below p, sorted by path.
func (t *tree) filesUnder(p string) []entry {
	prefix := p
	if prefix != "/" {
		prefix += "/"
	}
	var out []entry
	for k, e := range t.files {
		if k == p || strings.HasPrefix(k, prefix) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// descendants returns every explicit entry strictly below dir, deepest
// first, so deleting them in order never leaves an orphan.
func (t *tree) descendants(dir string) []entry {
	prefix := dir + "/"
	if dir == "/" {
		prefix = "/"
	}
	var out []entry
	for k, e := range t.files {
		if strings.HasPrefix(k, prefix) {
			out = append(out, e)
		}
	}
	for k, e := range t.dirs {
		if strings.HasPrefix(k, prefix) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		di, dj := strings.Count(out[i].Path, "/"), strings.Count(out[j].Path, "/")
		if di != dj {
			return di > dj
		}
		return out[i].Path < out[j].Path
	})
	return out
}

// cleanPath maps any caller path to the canonical absolute form used as a
// log key.
func cleanPath(p string) string {
	return path.Clean("/" + p)
}

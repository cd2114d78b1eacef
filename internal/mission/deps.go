package mission

import (
	"regexp"
	"strings"
)

var missingModuleRe = regexp.MustCompile(`No module named '([\w.]+)'`)

// ResolveMissingModule finds the first "No module named 'X'" in log and
// returns the package to install for it: the alias of X's top-level name
// when one is known, X's top-level name otherwise.
func ResolveMissingModule(log string, aliases map[string]string) (string, bool) {
	m := missingModuleRe.FindStringSubmatch(log)
	if m == nil {
		return "", false
	}
	name, _, _ := strings.Cut(m[1], ".")
	if pkg, ok := aliases[name]; ok && pkg != "" {
		return pkg, true
	}
	return name, true
}

// depSet is the mission-wide record of installed packages, in install order.
type depSet struct {
	seen  map[string]struct{}
	order []string
}

func newDepSet() *depSet {
	return &depSet{seen: make(map[string]struct{})}
}

func (d *depSet) Has(name string) bool {
	_, ok := d.seen[name]
	return ok
}

// Missing returns the names not installed yet, without duplicates.
func (d *depSet) Missing(names []string) []string {
	var out []string
	local := make(map[string]struct{}, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" || d.Has(n) {
			continue
		}
		if _, dup := local[n]; dup {
			continue
		}
		local[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

func (d *depSet) Add(names ...string) {
	for _, n := range names {
		if d.Has(n) {
			continue
		}
		d.seen[n] = struct{}{}
		d.order = append(d.order, n)
	}
}

func (d *depSet) List() []string {
	return append([]string(nil), d.order...)
}

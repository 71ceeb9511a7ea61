package builder

import (
	"sort"
	"strings"

	"github.com/AnjaneyuluBatta505/epydoc/internal/introspect"
)

// Order returns modules in dependency order: a module comes after the
// loaded modules it imports, ties broken alphabetically. When the
// remaining modules import each other in a cycle, the alphabetically
// smallest one is taken next.
func Order(mods []*introspect.ModuleRecord) []*introspect.ModuleRecord {
	sorted := append([]*introspect.ModuleRecord(nil), mods...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	loaded := make(map[string]bool, len(sorted))
	for _, m := range sorted {
		loaded[m.Name] = true
	}
	deps := make(map[*introspect.ModuleRecord]map[string]bool, len(sorted))
	for _, m := range sorted {
		deps[m] = Dependencies(m, loaded)
	}

	done := make(map[string]bool, len(sorted))
	out := make([]*introspect.ModuleRecord, 0, len(sorted))
	used := make([]bool, len(sorted))
	for len(out) < len(sorted) {
		pick := -1
		for i, m := range sorted {
			if used[i] {
				continue
			}
			if pick < 0 {
				pick = i // cycle fallback: smallest remaining
			}
			if ready(deps[m], done) {
				pick = i
				break
			}
		}
		used[pick] = true
		done[sorted[pick].Name] = true
		out = append(out, sorted[pick])
	}
	return out
}

func ready(deps, done map[string]bool) bool {
	for d := range deps {
		if !done[d] {
			return false
		}
	}
	return true
}

// Dependencies returns the loaded modules m imports. An import target
// maps to the longest loaded module name that prefixes it.
func Dependencies(m *introspect.ModuleRecord, loaded map[string]bool) map[string]bool {
	out := map[string]bool{}
	for _, imp := range m.Imports {
		target := imp.Target
		for target != "" {
			if loaded[target] {
				if target != m.Name {
					out[target] = true
				}
				break
			}
			i := strings.LastIndexByte(target, '.')
			if i < 0 {
				break
			}
			target = target[:i]
		}
	}
	return out
}

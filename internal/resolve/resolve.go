// Package resolve resolves docstring cross-references and declared base
// classes against a built documentation model.
package resolve

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/AnjaneyuluBatta505/epydoc/internal/model"
)

// Tie-break names.
const (
	TieCallable = "callable"
	TieClosest  = "closest"
)

// ErrUnknownTieBreak is returned by ParsePolicy for unsupported names.
var ErrUnknownTieBreak = errors.New("unknown tie-break")

// Policy controls how candidates found at one scope level are narrowed.
type Policy struct {
	// TieBreak lists tie-breaks in the order they are applied.
	TieBreak []string
}

// DefaultPolicy prefers callables for references written with "()", then
// the candidates closest to the reference's scope.
func DefaultPolicy() Policy {
	return Policy{TieBreak: []string{TieCallable, TieClosest}}
}

// ParsePolicy builds a policy from configured tie-break names. An empty
// list gives the default policy.
func ParsePolicy(names []string) (Policy, error) {
	if len(names) == 0 {
		return DefaultPolicy(), nil
	}
	var p Policy
	seen := map[string]bool{}
	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		if n == "" || seen[n] {
			continue
		}
		if n != TieCallable && n != TieClosest {
			return Policy{}, fmt.Errorf("%w %q (want %s or %s)", ErrUnknownTieBreak, n, TieCallable, TieClosest)
		}
		seen[n] = true
		p.TieBreak = append(p.TieBreak, n)
	}
	return p, nil
}

// Resolve resets and recomputes the resolution state of every declared
// base and cross-reference in m. Bases are resolved first so that
// reference lookups can walk class ancestors. Running it twice gives the
// same state and the same diagnostics.
func Resolve(m *model.Model, policy Policy) []model.Diagnostic {
	r := &resolver{m: m, policy: policy, byName: map[string][]*model.Entity{}}
	for _, e := range m.Entities() {
		if !e.Collision {
			r.byName[e.Name] = append(r.byName[e.Name], e)
		}
	}

	r.reset()
	r.bases()
	r.chains = map[string][]string{}
	r.references()

	model.SortDiagnostics(r.diags)
	return r.diags
}

type resolver struct {
	m      *model.Model
	policy Policy
	byName map[string][]*model.Entity
	// chains memoizes inheritance chains once every base is resolved.
	chains map[string][]string
	diags  []model.Diagnostic
}

func (r *resolver) reset() {
	for _, e := range r.m.Entities() {
		for i := range e.Bases {
			e.Bases[i].Resolved = ""
		}
	}
	for _, ref := range r.m.References() {
		ref.Reset()
	}
}

func (r *resolver) bases() {
	for _, e := range r.m.Entities() {
		if e.Kind != model.Class {
			continue
		}
		scope := e.Parent
		for i, b := range e.Bases {
			isBase := func(c *model.Entity) bool { return c.Kind == model.Class && c.ID != e.ID }
			cands := r.narrow(r.lookup(scope, b.Text, isBase), scope, false)
			switch len(cands) {
			case 1:
				e.Bases[i].Resolved = cands[0]
			case 0:
				if isBuiltin(b.Text) || r.external(scope, b.Text) {
					continue
				}
				r.warn(e.ID, &model.ReferenceError{Target: b.Text, Scope: e.ID, Note: "base class not found"})
			default:
				r.warn(e.ID, &model.ReferenceError{Target: b.Text, Scope: e.ID, Candidates: cands})
			}
		}
	}
}

func (r *resolver) references() {
	for _, ref := range r.m.References() {
		cands := r.narrow(r.lookup(ref.Scope, ref.Target, nil), ref.Scope, ref.Callable)
		var notCallable []string
		if ref.Callable {
			cands, notCallable = r.callables(cands)
		}
		switch len(cands) {
		case 1:
			ref.Status = model.Resolved
			ref.Resolved = cands[0]
		case 0:
			ref.Status = model.Unresolved
			if len(notCallable) > 0 {
				r.warn(ref.Scope, &model.ReferenceError{Target: ref.Target, Scope: ref.Scope,
					Note: fmt.Sprintf("%s is not callable", strings.Join(notCallable, ", "))})
				continue
			}
			if ref.Implicit && isBuiltin(ref.Target) {
				continue
			}
			r.warn(ref.Scope, &model.ReferenceError{Target: ref.Target, Scope: ref.Scope, Note: r.paramNote(ref)})
		default:
			ref.Status = model.Ambiguous
			ref.Candidates = cands
			r.warn(ref.Scope, &model.ReferenceError{Target: ref.Target, Scope: ref.Scope, Candidates: cands})
		}
	}
}

// callables splits candidates into callable entities and the rest. A
// reference written with "()" only resolves to the former.
func (r *resolver) callables(cands []string) (kept, dropped []string) {
	for _, id := range cands {
		if e, ok := r.m.Entity(id); ok && e.Kind.Callable() {
			kept = append(kept, id)
		} else {
			dropped = append(dropped, id)
		}
	}
	return kept, dropped
}

func (r *resolver) warn(id string, err *model.ReferenceError) {
	r.diags = append(r.diags, model.NewDiagnostic(model.PhaseResolve, id, err))
}

// paramNote explains a reference that names a parameter of the documented
// routine instead of an entity.
func (r *resolver) paramNote(ref *model.CrossRef) string {
	e, ok := r.m.Entity(ref.Scope)
	if !ok {
		return ""
	}
	sig := e
	if e.Kind == model.Class {
		if init, ok := r.m.Child(e.ID, "__init__"); ok {
			sig = init
		}
	}
	if _, ok := sig.Param(strings.TrimLeft(ref.Target, "*")); ok {
		return fmt.Sprintf("names a parameter of %s, not an entity", sig.ID)
	}
	return ""
}

// lookup returns the candidates for target seen from scope. The first
// scope level producing a candidate wins.
func (r *resolver) lookup(scope, target string, keep func(*model.Entity) bool) []string {
	target = strings.ReplaceAll(strings.TrimSpace(target), "#", ".")
	if target == "" {
		return nil
	}
	if keep == nil {
		keep = func(*model.Entity) bool { return true }
	}
	accept := func(ids ...string) []string {
		var out []string
		for _, id := range ids {
			if e, ok := r.m.Entity(id); ok && keep(e) {
				out = append(out, id)
			}
		}
		return dedupe(out)
	}

	if id, ok := r.m.Canonical(target); ok {
		if c := accept(id); len(c) > 0 {
			return c
		}
	}

	first, rest, _ := strings.Cut(target, ".")
	var path []string
	if rest != "" {
		path = strings.Split(rest, ".")
	}
	from := func(start string) (string, bool) { return r.walk(start, path) }

	if cls := r.innermostClass(scope); cls != "" {
		for _, c := range r.chain(cls) {
			if child, ok := r.m.Child(c, first); ok {
				if id, ok := from(child.ID); ok {
					if got := accept(id); len(got) > 0 {
						return got
					}
				}
			}
		}
	}

	if mod := r.enclosingModule(scope); mod != "" {
		if child, ok := r.m.Child(mod, first); ok {
			if id, ok := from(child.ID); ok {
				if got := accept(id); len(got) > 0 {
					return got
				}
			}
		}
		if alias, ok := r.m.Alias(mod + "." + first); ok {
			if start, ok := r.m.Canonical(alias); ok {
				if id, ok := from(start); ok {
					if got := accept(id); len(got) > 0 {
						return got
					}
				}
			}
		}
	}

	var global []string
	for _, e := range r.byName[first] {
		if id, ok := from(e.ID); ok {
			global = append(global, id)
		}
	}
	return accept(global...)
}

// walk follows path down from id through containment, class ancestors and
// module aliases.
func (r *resolver) walk(id string, path []string) (string, bool) {
	cur := id
	for _, name := range path {
		next, ok := r.member(cur, name)
		if !ok {
			return "", false
		}
		cur = next
	}
	return cur, true
}

func (r *resolver) member(id, name string) (string, bool) {
	if c, ok := r.m.Child(id, name); ok {
		return c.ID, true
	}
	e, ok := r.m.Entity(id)
	if !ok {
		return "", false
	}
	switch e.Kind {
	case model.Class:
		for _, anc := range r.chain(id)[1:] {
			if c, ok := r.m.Child(anc, name); ok {
				return c.ID, true
			}
		}
	case model.Module:
		if alias, ok := r.m.Alias(id + "." + name); ok {
			return r.m.Canonical(alias)
		}
	}
	return "", false
}

// chain returns id followed by its ancestors, depth-first and
// left-to-right over resolved bases, each class once.
func (r *resolver) chain(id string) []string {
	if r.chains != nil {
		if c, ok := r.chains[id]; ok {
			return c
		}
	}
	seen := map[string]bool{}
	var out []string
	var visit func(string)
	visit = func(c string) {
		if seen[c] {
			return
		}
		seen[c] = true
		out = append(out, c)
		e, ok := r.m.Entity(c)
		if !ok {
			return
		}
		for _, b := range e.Bases {
			if b.Resolved != "" {
				visit(b.Resolved)
			}
		}
	}
	visit(id)
	if r.chains != nil {
		r.chains[id] = out
	}
	return out
}

func (r *resolver) innermostClass(scope string) string {
	for id := scope; id != ""; {
		e, ok := r.m.Entity(id)
		if !ok {
			return ""
		}
		switch e.Kind {
		case model.Class:
			return id
		case model.Module:
			return ""
		}
		id = e.Parent
	}
	return ""
}

func (r *resolver) enclosingModule(scope string) string {
	for id := scope; id != ""; {
		e, ok := r.m.Entity(id)
		if !ok {
			return ""
		}
		if e.Kind == model.Module {
			return id
		}
		id = e.Parent
	}
	return ""
}

// external reports whether the first component of name is imported into
// the module enclosing scope from outside the model.
func (r *resolver) external(scope, name string) bool {
	mod, ok := r.m.Entity(r.enclosingModule(scope))
	if !ok {
		return false
	}
	first, _, _ := strings.Cut(name, ".")
	for _, imp := range mod.Imports {
		if imp.Name == first {
			_, inModel := r.m.Canonical(mod.ID + "." + first)
			return !inModel
		}
	}
	return false
}

// narrow applies the policy's tie-breaks to ambiguous candidates.
func (r *resolver) narrow(cands []string, scope string, callable bool) []string {
	for _, tb := range r.policy.TieBreak {
		if len(cands) < 2 {
			break
		}
		switch tb {
		case TieCallable:
			if !callable {
				continue
			}
			if kept, _ := r.callables(cands); len(kept) > 0 {
				cands = kept
			}
		case TieClosest:
			best := -1
			var kept []string
			for _, id := range cands {
				n := commonPrefix(id, scope)
				switch {
				case n > best:
					best, kept = n, []string{id}
				case n == best:
					kept = append(kept, id)
				}
			}
			cands = kept
		}
	}
	return cands
}

// commonPrefix counts the leading dotted components a and b share.
func commonPrefix(a, b string) int {
	as, bs := strings.Split(a, "."), strings.Split(b, ".")
	n := 0
	for n < len(as) && n < len(bs) && as[n] == bs[n] {
		n++
	}
	return n
}

func dedupe(ids []string) []string {
	if len(ids) < 2 {
		return ids
	}
	sort.Strings(ids)
	out := ids[:1]
	for _, id := range ids[1:] {
		if id != out[len(out)-1] {
			out = append(out, id)
		}
	}
	return out
}

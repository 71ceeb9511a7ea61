package model

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrNothingToDocument is the only fatal build condition: no module could
// be loaded.
var ErrNothingToDocument = errors.New("no loadable modules")

// Severity of a diagnostic.
type Severity string

const (
	Warning Severity = "warning"
	Error   Severity = "error"
)

// Phase is the pipeline phase that produced a diagnostic.
type Phase string

const (
	PhaseLoad       Phase = "load"
	PhaseIntrospect Phase = "introspect"
	PhaseParse      Phase = "parse"
	PhaseBuild      Phase = "build"
	PhaseResolve    Phase = "resolve"
	PhaseViews      Phase = "views"
)

var phaseOrder = map[Phase]int{
	PhaseLoad:       0,
	PhaseIntrospect: 1,
	PhaseParse:      2,
	PhaseBuild:      3,
	PhaseResolve:    4,
	PhaseViews:      5,
}

// Code names the error taxonomy class of a diagnostic.
type Code string

const (
	CodeLoad      Code = "LoadError"
	CodeMarkup    Code = "MarkupError"
	CodeModel     Code = "ModelError"
	CodeReference Code = "ReferenceError"
)

// Diagnostic is one structured finding handed to the diagnostics sink.
// EntityID is empty when the finding is not tied to an entity.
type Diagnostic struct {
	Severity   Severity `json:"severity" yaml:"severity"`
	Phase      Phase    `json:"phase" yaml:"phase"`
	Code       Code     `json:"code" yaml:"code"`
	EntityID   string   `json:"entity,omitempty" yaml:"entity,omitempty"`
	Message    string   `json:"message" yaml:"message"`
	Candidates []string `json:"candidates,omitempty" yaml:"candidates,omitempty"`
}

func (d Diagnostic) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s [%s/%s]", d.Severity, d.Phase, d.Code)
	if d.EntityID != "" {
		fmt.Fprintf(&b, " %s", d.EntityID)
	}
	fmt.Fprintf(&b, ": %s", d.Message)
	return b.String()
}

// LoadError reports a module that failed to load.
type LoadError struct {
	Module string
	Path   string
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("loading %s (%s): %v", e.Module, e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// MarkupError reports malformed docstring markup. The docstring degrades to
// a literal block.
type MarkupError struct {
	Dialect string
	Pos     Position
	Msg     string
}

func (e *MarkupError) Error() string {
	if e.Pos.Line == 0 {
		return fmt.Sprintf("%s markup error: %s", e.Dialect, e.Msg)
	}
	return fmt.Sprintf("%s markup error at line %d, column %d: %s", e.Dialect, e.Pos.Line, e.Pos.Column, e.Msg)
}

// ModelError reports a structural problem with an entity: an identifier
// collision or an inheritance cycle.
type ModelError struct {
	EntityID string
	Msg      string
}

func (e *ModelError) Error() string {
	return fmt.Sprintf("%s: %s", e.EntityID, e.Msg)
}

// ReferenceError reports a cross-reference that did not resolve to exactly
// one entity.
type ReferenceError struct {
	Target     string
	Scope      string
	Candidates []string
	Note       string
}

func (e *ReferenceError) Error() string {
	switch {
	case len(e.Candidates) > 1:
		return fmt.Sprintf("ambiguous reference %q: candidates %s", e.Target, strings.Join(e.Candidates, ", "))
	case e.Note != "":
		return fmt.Sprintf("unresolved reference %q: %s", e.Target, e.Note)
	default:
		return fmt.Sprintf("unresolved reference %q", e.Target)
	}
}

// NewDiagnostic converts a taxonomy error into a Diagnostic. Errors outside
// the taxonomy are reported as ModelErrors.
func NewDiagnostic(phase Phase, entityID string, err error) Diagnostic {
	d := Diagnostic{Phase: phase, EntityID: entityID, Message: err.Error()}

	var (
		loadErr   *LoadError
		markupErr *MarkupError
		modelErr  *ModelError
		refErr    *ReferenceError
	)
	switch {
	case errors.As(err, &loadErr):
		d.Severity, d.Code = Error, CodeLoad
		if d.EntityID == "" {
			d.EntityID = loadErr.Module
		}
	case errors.As(err, &markupErr):
		d.Severity, d.Code = Warning, CodeMarkup
	case errors.As(err, &modelErr):
		d.Severity, d.Code = Error, CodeModel
		if d.EntityID == "" {
			d.EntityID = modelErr.EntityID
		}
	case errors.As(err, &refErr):
		d.Severity, d.Code = Warning, CodeReference
		if len(refErr.Candidates) > 0 {
			d.Candidates = append([]string(nil), refErr.Candidates...)
		}
	default:
		d.Severity, d.Code = Error, CodeModel
	}
	return d
}

// SortDiagnostics orders diagnostics by phase, entity, code and message so
// output never depends on goroutine scheduling.
func SortDiagnostics(ds []Diagnostic) {
	sort.SliceStable(ds, func(i, j int) bool {
		a, b := ds[i], ds[j]
		if a.Phase != b.Phase {
			return phaseOrder[a.Phase] < phaseOrder[b.Phase]
		}
		if a.EntityID != b.EntityID {
			return a.EntityID < b.EntityID
		}
		if a.Code != b.Code {
			return a.Code < b.Code
		}
		return a.Message < b.Message
	})
}

// CountSeverity returns how many diagnostics have the given severity.
func CountSeverity(ds []Diagnostic, sev Severity) int {
	n := 0
	for _, d := range ds {
		if d.Severity == sev {
			n++
		}
	}
	return n
}

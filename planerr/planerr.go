// Package planerr defines the planner's closed error taxonomy. Errors raised
// by the graph, optimizer and plan packages are *planerr.Error values with a
// Kind drawn from the enumerated set below — callers can switch on Kind
// instead of matching strings. The cache package's storage, hashing and
// inference-engine failures are not mapped into this taxonomy: they are
// fmt.Errorf-wrapped errors, and planner.Plan returns them unchanged.
package planerr

import "fmt"

// Kind enumerates the closed set of planner-level error categories.
type Kind int

const (
	KindUnknownEntity Kind = iota
	KindUnknownColumn
	KindUnknownMeasure
	KindDuplicateEntity
	KindDuplicateColumn
	KindDuplicateMeasure
	KindDuplicateCalendar
	KindFanOutUnsafe
	KindNoJoinPath
	KindGrainMismatch
	KindAmbiguousMeasure
	KindSelectivityRangeInvalid
	KindCacheCorrupt
	KindOptimizerBudgetExceeded
	KindStorageUnavailable
	// KindInternal marks a programmer-error condition (e.g. an
	// unconvertible physical node during SQL emission). It is never part
	// of the taxonomy the planner documents to callers as an expected
	// outcome, but it still flows through the same Error type.
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindUnknownEntity:
		return "UnknownEntity"
	case KindUnknownColumn:
		return "UnknownColumn"
	case KindUnknownMeasure:
		return "UnknownMeasure"
	case KindDuplicateEntity:
		return "DuplicateEntity"
	case KindDuplicateColumn:
		return "DuplicateColumn"
	case KindDuplicateMeasure:
		return "DuplicateMeasure"
	case KindDuplicateCalendar:
		return "DuplicateCalendar"
	case KindFanOutUnsafe:
		return "FanOutUnsafe"
	case KindNoJoinPath:
		return "NoJoinPath"
	case KindGrainMismatch:
		return "GrainMismatch"
	case KindAmbiguousMeasure:
		return "AmbiguousMeasure"
	case KindSelectivityRangeInvalid:
		return "SelectivityRangeInvalid"
	case KindCacheCorrupt:
		return "CacheCorrupt"
	case KindOptimizerBudgetExceeded:
		return "OptimizerBudgetExceeded"
	case KindStorageUnavailable:
		return "StorageUnavailable"
	case KindInternal:
		return "Internal"
	default:
		return "Unknown"
	}
}

// Error is the planner's single error type. Name and Path identify the
// offending entity/column/measure or join path; Suggestions lists nearby
// valid names when available.
type Error struct {
	Kind        Kind
	Message     string
	Name        string
	Path        []string
	Suggestions []string
	Err         error
}

func (e *Error) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Message, e.Name)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an Error of the given kind with a message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf builds an Error of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WithName returns a copy of e with Name set.
func (e *Error) WithName(name string) *Error {
	cp := *e
	cp.Name = name
	return &cp
}

// WithPath returns a copy of e with Path set.
func (e *Error) WithPath(path []string) *Error {
	cp := *e
	cp.Path = path
	return &cp
}

// WithSuggestions returns a copy of e with Suggestions set.
func (e *Error) WithSuggestions(suggestions []string) *Error {
	cp := *e
	cp.Suggestions = suggestions
	return &cp
}

// WithErr returns a copy of e wrapping err.
func (e *Error) WithErr(err error) *Error {
	cp := *e
	cp.Err = err
	return &cp
}

// UnknownEntity builds a KindUnknownEntity error for name, with suggestions
// drawn from known.
func UnknownEntity(name string, known []string) *Error {
	return Newf(KindUnknownEntity, "unknown entity %q", name).WithName(name).WithSuggestions(known)
}

// UnknownColumn builds a KindUnknownColumn error for name.
func UnknownColumn(name string, known []string) *Error {
	return Newf(KindUnknownColumn, "unknown column %q", name).WithName(name).WithSuggestions(known)
}

// UnknownMeasure builds a KindUnknownMeasure error for name.
func UnknownMeasure(name string, known []string) *Error {
	return Newf(KindUnknownMeasure, "unknown measure %q", name).WithName(name).WithSuggestions(known)
}

// FanOutUnsafe builds a KindFanOutUnsafe error identifying the offending
// edge by its "from.to" path segment.
func FanOutUnsafe(from, to string) *Error {
	return Newf(KindFanOutUnsafe, "traversal from %q to %q crosses an unsafe 1:N fan-out", from, to).
		WithPath([]string{from, to})
}

// NoJoinPath builds a KindNoJoinPath error for two disconnected entities.
func NoJoinPath(from, to string) *Error {
	return Newf(KindNoJoinPath, "no join path between %q and %q", from, to).WithPath([]string{from, to})
}

// OptimizerBudgetExceeded builds a KindOptimizerBudgetExceeded error for a
// table count above the DP optimizer's hard cap.
func OptimizerBudgetExceeded(tableCount, limit int) *Error {
	return Newf(KindOptimizerBudgetExceeded,
		"%d tables exceeds the dynamic-programming optimizer's %d-table limit", tableCount, limit)
}

// SelectivityRangeInvalid builds a KindSelectivityRangeInvalid error for a
// computed selectivity outside [0,1].
func SelectivityRangeInvalid(got float64) *Error {
	return Newf(KindSelectivityRangeInvalid, "computed selectivity %g outside [0,1]", got)
}

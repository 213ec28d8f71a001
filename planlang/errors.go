package planlang

import "fmt"

// UnsupportedError marks a plan shape the converter or rewrite engine
// does not (and will not) handle. It is always surfaced to the caller,
// never swallowed (spec.md §4.2, §7 "Unsupported").
type UnsupportedError struct {
	Msg string
}

func (e *UnsupportedError) Error() string { return "unsupported: " + e.Msg }

// ProgrammerError marks a misuse of the e-graph API (e.g. Add with an
// unknown child id, or a node of the wrong arity). These are not meant
// to be caught by callers; they indicate a bug in the caller.
type ProgrammerError struct {
	Msg string
}

func (e *ProgrammerError) Error() string { return fmt.Sprintf("planlang: programmer error: %s", e.Msg) }

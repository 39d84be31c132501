package types

import (
	"fmt"

	"go.lsp.dev/protocol"
)

// Position is a location in a document (0-indexed line, 0-indexed byte column)
type Position struct {
	Line   int
	Column int
}

// Before reports whether p sorts strictly before o
func (p Position) Before(o Position) bool {
	if p.Line != o.Line {
		return p.Line < o.Line
	}
	return p.Column < o.Column
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line+1, p.Column+1)
}

// Range is a caret or selection in document coordinates. End is exclusive.
type Range struct {
	Start Position
	End   Position
}

// NewRange builds a range with ordered endpoints
func NewRange(a, b Position) Range {
	if b.Before(a) {
		a, b = b, a
	}
	return Range{Start: a, End: b}
}

// Caret returns an empty range at p
func Caret(p Position) Range {
	return Range{Start: p, End: p}
}

// IsEmpty reports whether the range is a caret
func (r Range) IsEmpty() bool {
	return r.Start == r.End
}

func (r Range) String() string {
	if r.IsEmpty() {
		return r.Start.String()
	}
	return r.Start.String() + "-" + r.End.String()
}

// ActionFilter narrows the code actions requested for a candidate
type ActionFilter struct {
	Kind               protocol.CodeActionKind // empty means every kind
	Preferred          bool                    // keep only actions flagged isPreferred
	UseCompatSelection bool                    // force the editor selection while querying
}

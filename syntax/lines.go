package syntax

import (
	"sort"
	"unicode/utf16"
	"unicode/utf8"

	"intellirefactor/types"
)

// lineIndex maps between byte offsets and (line, byte column) positions.
type lineIndex struct {
	starts []int // byte offset of the first byte of each line
	size   int
}

func newLineIndex(src []byte) lineIndex {
	starts := []int{0}
	for i, b := range src {
		if b == '\n' {
			starts = append(starts, i+1)
		}
	}
	return lineIndex{starts: starts, size: len(src)}
}

// lineEnd returns the offset of the end of line (before its newline).
func (li lineIndex) lineEnd(line int) int {
	if line+1 < len(li.starts) {
		return li.starts[line+1] - 1
	}
	return li.size
}

// Offset converts a position to a byte offset. Out-of-range lines and
// columns are clamped to the document and the line respectively.
func (t *Tree) Offset(p types.Position) int {
	li := t.lines
	if p.Line < 0 {
		return 0
	}
	if p.Line >= len(li.starts) {
		return li.size
	}
	start := li.starts[p.Line]
	end := li.lineEnd(p.Line)
	off := start + max(p.Column, 0)
	if off > end {
		off = end
	}
	return off
}

// Position converts a byte offset to a position.
func (t *Tree) Position(offset int) types.Position {
	li := t.lines
	offset = min(max(offset, 0), li.size)
	line := sort.Search(len(li.starts), func(i int) bool { return li.starts[i] > offset }) - 1
	return types.Position{Line: line, Column: offset - li.starts[line]}
}

// LineText returns the text of line without its newline.
func (t *Tree) LineText(line int) string {
	if line < 0 || line >= len(t.lines.starts) {
		return ""
	}
	return string(t.src[t.lines.starts[line]:t.lines.lineEnd(line)])
}

// UTF16Column converts a byte column on line to a UTF-16 code unit column,
// the default column unit of the language server protocol.
func (t *Tree) UTF16Column(p types.Position) int {
	return utf16Column(t.LineText(p.Line), p.Column)
}

func utf16Column(line string, byteCol int) int {
	col := 0
	for i := 0; i < len(line) && i < byteCol; {
		r, size := utf8.DecodeRuneInString(line[i:])
		n := utf16.RuneLen(r)
		if n < 0 {
			n = 1
		}
		col += n
		i += size
	}
	return col
}

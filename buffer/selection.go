package buffer

import (
	"strings"
	"unicode/utf8"

	"intellirefactor/types"
)

const blockwiseVisual = "\x16"

// visualRange converts a Vim visual selection to an end-exclusive range.
// anchor and cursor are the two ends as Vim reports them, both inclusive.
// It reports false when mode is not a visual mode.
func visualRange(mode string, anchor, cursor types.Position, lines []string) (types.Range, bool) {
	start, end := anchor, cursor
	if end.Before(start) {
		start, end = end, start
	}

	switch mode {
	case "v", blockwiseVisual:
		return types.Range{Start: clampPosition(lines, start), End: afterRune(lines, end)}, true
	case "V":
		start.Column = 0
		end.Column = len(lineAt(lines, end.Line))
		return types.Range{Start: clampPosition(lines, start), End: end}, true
	default:
		return types.Range{}, false
	}
}

// inclusiveEnd returns the position of the last character inside a range
// ending at end, which is where Vim expects the cursor of a selection.
func inclusiveEnd(lines []string, start, end types.Position) types.Position {
	if !start.Before(end) {
		return start
	}
	if end.Column > 0 {
		line := lineAt(lines, end.Line)
		col := min(end.Column, len(line))
		_, size := utf8.DecodeLastRuneInString(line[:col])
		return types.Position{Line: end.Line, Column: col - max(size, 1)}
	}
	// The range ends at a line start: select through the previous line.
	prev := end.Line - 1
	line := lineAt(lines, prev)
	if line == "" {
		return types.Position{Line: prev}
	}
	_, size := utf8.DecodeLastRuneInString(line)
	return types.Position{Line: prev, Column: len(line) - size}
}

func afterRune(lines []string, p types.Position) types.Position {
	line := lineAt(lines, p.Line)
	if p.Column >= len(line) {
		return types.Position{Line: p.Line, Column: len(line)}
	}
	_, size := utf8.DecodeRuneInString(line[p.Column:])
	return types.Position{Line: p.Line, Column: p.Column + size}
}

func clampPosition(lines []string, p types.Position) types.Position {
	p.Column = min(p.Column, len(lineAt(lines, p.Line)))
	return p
}

func lineAt(lines []string, line int) string {
	if line < 0 || line >= len(lines) {
		return ""
	}
	return lines[line]
}

// JoinLines returns buffer lines as file text, newline terminated.
func JoinLines(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}

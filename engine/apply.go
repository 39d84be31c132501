package engine

import (
	"fmt"
	"slices"

	"github.com/sergi/go-diff/diffmatchpatch"

	"intellirefactor/buffer"
	"intellirefactor/logger"
	"intellirefactor/types"
)

// apply runs the invocation's code action. With a nil selection it runs
// wherever the user is; otherwise the selection is carried over edits made
// since the snapshot and set before the action runs.
func (e *Engine) apply(inv *invocation, sel *types.Range) {
	defer logger.Trace("engine.apply")()

	snap := inv.snap
	current, err := e.editor.IsCurrent(snap.Window, snap.Buffer)
	if err != nil {
		e.report(fmt.Errorf("failed to check editor focus: %w", err))
		return
	}
	if !current {
		logger.Debug("#%d: editor moved on, discarding %s", inv.id, inv.desc.ID)
		return
	}

	req := buffer.ActionRequest{
		Window:    snap.Window,
		Kind:      inv.desc.Kind,
		Preferred: inv.desc.Preferred,
		Apply:     inv.desc.NoPrompt,
		Lines:     snap.Lines,
	}

	if sel != nil {
		lines, err := e.editor.CurrentLines(snap.Buffer)
		if err != nil {
			e.report(fmt.Errorf("failed to read buffer: %w", err))
			return
		}
		target, ok := remapSelection(snap.Lines, lines, *sel)
		if !ok {
			logger.Info("#%d: text under %s changed, discarding %s", inv.id, sel, inv.desc.ID)
			return
		}
		if err := e.editor.SetSelection(snap.Window, target, lines); err != nil {
			e.report(fmt.Errorf("failed to select %s: %w", target, err))
			return
		}
		req.Selection = &target
		req.Lines = lines
	}

	if err := e.editor.ExecuteCodeAction(req); err != nil {
		e.report(err)
	}
}

// remapSelection carries sel from the before text to the after text. It
// fails when the selected text itself was edited.
func remapSelection(before, after []string, sel types.Range) (types.Range, bool) {
	if slices.Equal(before, after) {
		return sel, true
	}

	oldText := buffer.JoinLines(before)
	newText := buffer.JoinLines(after)
	start, end := offsetOf(before, sel.Start), offsetOf(before, sel.End)
	if start > end || end > len(oldText) {
		return types.Range{}, false
	}

	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(oldText, newText, false)
	newStart := dmp.DiffXIndex(diffs, start)
	newEnd := newStart + (end - start)
	if newEnd > len(newText) || newText[newStart:newEnd] != oldText[start:end] {
		return types.Range{}, false
	}
	return types.Range{Start: positionOf(after, newStart), End: positionOf(after, newEnd)}, true
}

func offsetOf(lines []string, p types.Position) int {
	off := 0
	for i := 0; i < p.Line && i < len(lines); i++ {
		off += len(lines[i]) + 1
	}
	if p.Line < len(lines) {
		off += min(p.Column, len(lines[p.Line]))
	}
	return off
}

func positionOf(lines []string, off int) types.Position {
	for i, line := range lines {
		if off <= len(line) {
			return types.Position{Line: i, Column: off}
		}
		off -= len(line) + 1
	}
	return types.Position{Line: len(lines)}
}

package engine

import (
	"fmt"

	"intellirefactor/candidate"
	"intellirefactor/logger"
	"intellirefactor/picker"
	"intellirefactor/types"
)

// previewer shows picker items in the invocation's window.
type previewer struct {
	editor   Editor
	win, buf int
}

func (p previewer) Preview(rng types.Range) error {
	return p.editor.Preview(p.win, p.buf, rng)
}

func pickerItems(cands []*candidate.Candidate) []picker.Item {
	items := make([]picker.Item, len(cands))
	for i, c := range cands {
		items[i] = picker.Item{Label: c.Label(), Detail: c.Detail(), Selection: c.Selection}
	}
	return items
}

func (e *Engine) openPicker(inv *invocation, cands []*candidate.Candidate) {
	snap := inv.snap
	items := pickerItems(cands)

	session, err := picker.NewSession(inv.desc.Placeholder(), items, snap.Range(), previewer{editor: e.editor, win: snap.Window, buf: snap.Buffer})
	if err != nil {
		e.finish()
		e.report(fmt.Errorf("failed to open picker: %w", err))
		return
	}
	if err := e.editor.ShowPicker(session.Placeholder, items, session.Active()); err != nil {
		if cerr := session.Cancel(); cerr != nil {
			logger.Warn("restoring selection: %v", cerr)
		}
		e.finish()
		e.report(fmt.Errorf("failed to open picker: %w", err))
		return
	}

	e.picker = &pickerState{inv: inv, session: session}
	e.state = statePicking
}

func (e *Engine) handlePickerActive(index int) {
	if e.picker == nil {
		return
	}
	if err := e.picker.session.SetActive(index); err != nil {
		logger.Warn("picker preview: %v", err)
	}
}

func (e *Engine) handlePickerAccept(index int) {
	p := e.picker
	if p == nil {
		return
	}
	if err := p.session.SetActive(index); err != nil {
		logger.Warn("picker preview: %v", err)
	}
	item, err := p.session.Accept()
	e.picker = nil
	e.closePickerWindow(p)
	if err != nil {
		logger.Warn("picker accept: %v", err)
		e.finish()
		return
	}

	e.apply(p.inv, &item.Selection)
	e.finish()
}

func (e *Engine) handlePickerCancel() {
	if e.picker == nil {
		return
	}
	e.dismissPicker()
	e.finish()
}

// dismissPicker restores the initial selection and closes the picker.
func (e *Engine) dismissPicker() {
	p := e.picker
	e.picker = nil
	if err := p.session.Cancel(); err != nil {
		logger.Warn("restoring selection: %v", err)
	}
	e.closePickerWindow(p)
}

func (e *Engine) closePickerWindow(p *pickerState) {
	if err := e.editor.ClosePicker(p.inv.snap.Window, p.inv.snap.Buffer); err != nil {
		logger.Warn("closing picker: %v", err)
	}
}

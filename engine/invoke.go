package engine

import (
	"context"
	"errors"
	"fmt"

	"intellirefactor/buffer"
	"intellirefactor/candidate"
	"intellirefactor/commands"
	"intellirefactor/logger"
	"intellirefactor/syntax"
	"intellirefactor/types"
)

const goFiletype = "go"

func (e *Engine) handleInvoke(id string, fromMarks bool) {
	e.cancelCurrent("new invocation")

	desc, ok := commands.Lookup(id)
	if !ok {
		e.report(fmt.Errorf("unknown command %q", id))
		return
	}

	if e.config.UseCompatSelection {
		// Wait for a superseded query to put the user's selection back.
		e.ambient.Settle()
	}

	snap, err := e.editor.Sync(fromMarks)
	if err != nil {
		e.report(fmt.Errorf("failed to read editor state: %w", err))
		return
	}

	e.nextID++
	var ctx context.Context
	var cancel context.CancelFunc
	if e.config.ResolveTimeout > 0 {
		ctx, cancel = context.WithTimeout(e.mainCtx, e.config.ResolveTimeout)
	} else {
		ctx, cancel = context.WithCancel(e.mainCtx)
	}
	inv := &invocation{id: e.nextID, desc: desc, snap: snap, ctx: ctx, cancel: cancel}
	e.current = inv
	e.state = stateResolving
	logger.Info("invoke %s #%d at %s in %s", desc.ID, inv.id, snap.Range(), snap.Path)

	go func() {
		res, err := e.resolve(inv)
		if err != nil {
			e.post(Event{Type: EventResolveError, Data: &resolveFailure{inv: inv, err: err}})
			return
		}
		e.post(Event{Type: EventResolved, Data: res})
	}()
}

// resolve finds the candidates for an invocation. It runs off the event
// loop and must not touch engine state.
func (e *Engine) resolve(inv *invocation) (*resolution, error) {
	defer logger.Trace("engine.resolve")()

	snap := inv.snap
	res := &resolution{inv: inv}
	if snap.Filetype != goFiletype || snap.URI == "" {
		logger.Debug("pass through: filetype %q path %q", snap.Filetype, snap.Path)
		res.passThrough = true
		return res, nil
	}

	tree, err := syntax.Parse(snap.Path, snap.Text())
	if err != nil {
		logger.Debug("pass through: %v", err)
		res.passThrough = true
		return res, nil
	}
	if tree.ParseErr != nil {
		logger.Debug("resolving in a file with syntax errors: %v", tree.ParseErr)
	}

	var ambient *candidate.AmbientSelection
	if e.config.UseCompatSelection {
		ambient = e.ambient.For(&editorSelection{editor: e.editor, snap: snap})
	}
	r := candidate.NewResolver(tree, snap.URI, e.fetcher, inv.desc.Filter(e.config.UseCompatSelection), ambient)

	switch {
	case snap.Selection != nil && !snap.Selection.IsEmpty():
		c, err := r.OnSelection(inv.ctx, *snap.Selection)
		if err != nil {
			return nil, err
		}
		res.candidates = found(c)
	case inv.desc.Family == commands.FamilyNearest:
		c, err := r.Nearest(inv.ctx, syntax.ResolveChain(tree, snap.Range()))
		if err != nil {
			return nil, err
		}
		res.candidates = found(c)
	default:
		cs, err := r.Expressions(inv.ctx, syntax.ResolveChain(tree, snap.Range()), inv.desc.TypeExpression)
		if err != nil {
			return nil, err
		}
		res.candidates = cs
	}
	return res, nil
}

func found(c *candidate.Candidate) []*candidate.Candidate {
	if c == nil {
		return nil
	}
	return []*candidate.Candidate{c}
}

func (e *Engine) handleResolved(res *resolution) {
	if res.inv != e.current {
		logger.Debug("dropping stale resolution #%d", res.inv.id)
		return
	}
	inv := res.inv
	logger.Debug("#%d resolved %d candidates (pass through: %v)", inv.id, len(res.candidates), res.passThrough)

	switch len(res.candidates) {
	case 0:
		e.apply(inv, nil)
	case 1:
		e.apply(inv, &res.candidates[0].Selection)
	default:
		e.openPicker(inv, res.candidates)
		return
	}
	e.finish()
}

func (e *Engine) handleResolveError(f *resolveFailure) {
	if f.inv != e.current {
		logger.Debug("dropping stale failure #%d: %v", f.inv.id, f.err)
		return
	}
	e.finish()

	switch {
	case errors.Is(f.err, context.Canceled):
		logger.Debug("resolution canceled: %v", f.err)
	case errors.Is(f.err, context.DeadlineExceeded):
		e.report(fmt.Errorf("%s: timed out waiting for code actions", f.inv.desc.ID))
	default:
		e.report(fmt.Errorf("%s: %w", f.inv.desc.ID, f.err))
	}
}

func (e *Engine) handleFocusLost() {
	if e.current == nil {
		return
	}
	e.cancelCurrent("focus lost")
}

// cancelCurrent abandons the in-flight invocation and any open picker.
func (e *Engine) cancelCurrent(reason string) {
	if e.picker != nil {
		e.dismissPicker()
	}
	if e.current != nil {
		logger.Debug("cancel invocation #%d: %s", e.current.id, reason)
		e.current.cancel()
		e.current = nil
	}
	e.state = stateIdle
}

// finish ends the current invocation after it was applied or dropped.
func (e *Engine) finish() {
	if e.current != nil {
		e.current.cancel()
		e.current = nil
	}
	e.picker = nil
	e.state = stateIdle
}

// report logs err and shows it to the user once.
func (e *Engine) report(err error) {
	logger.Error("%v", err)
	if rerr := e.editor.ReportError(err.Error()); rerr != nil {
		logger.Warn("failed to report error to editor: %v", rerr)
	}
}

// editorSelection exposes the editor selection of a snapshot's window to
// compatibility-mode queries.
type editorSelection struct {
	editor Editor
	snap   *buffer.Snapshot
}

func (s *editorSelection) ForceSelection(rng types.Range) error {
	return s.editor.SetSelection(s.snap.Window, rng, s.snap.Lines)
}

func (s *editorSelection) RestoreSelection() error {
	return s.editor.SetSelection(s.snap.Window, s.snap.Range(), s.snap.Lines)
}

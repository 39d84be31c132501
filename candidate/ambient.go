package candidate

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"intellirefactor/types"
)

// SelectionState is the editor's ambient selection. Some providers read it
// instead of the range they are given.
type SelectionState interface {
	ForceSelection(rng types.Range) error
	RestoreSelection() error
}

// AmbientSelection is the shared selection cell used in compatibility
// mode. Only one caller at a time may hold the selection forced. Views
// made with For share the cell's lock, so a single cell serializes every
// invocation of an editor even though each one restores its own
// selection.
type AmbientSelection struct {
	mu    *sync.Mutex
	state SelectionState
}

func NewAmbientSelection(state SelectionState) *AmbientSelection {
	return &AmbientSelection{mu: new(sync.Mutex), state: state}
}

// For returns a view of the cell that forces and restores through state.
func (a *AmbientSelection) For(state SelectionState) *AmbientSelection {
	return &AmbientSelection{mu: a.mu, state: state}
}

// With forces the selection to rng, runs fn and restores the previous
// selection, even when fn fails. A ctx that is already done when the lock
// is acquired leaves the selection alone.
func (a *AmbientSelection) With(ctx context.Context, rng types.Range, fn func() error) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if a.state == nil {
		return errors.New("no editor selection to force")
	}
	if err := a.state.ForceSelection(rng); err != nil {
		return fmt.Errorf("force selection %s: %w", rng, err)
	}
	err := fn()
	if rerr := a.state.RestoreSelection(); rerr != nil {
		err = errors.Join(err, fmt.Errorf("restore selection: %w", rerr))
	}
	return err
}

// Settle waits until no caller holds the selection forced. Callers whose
// contexts are canceled before Settle returns never force it again.
func (a *AmbientSelection) Settle() {
	a.mu.Lock()
	a.mu.Unlock()
}

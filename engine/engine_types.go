package engine

import (
	"context"
	"time"

	"intellirefactor/buffer"
	"intellirefactor/candidate"
	"intellirefactor/commands"
	"intellirefactor/picker"
	"intellirefactor/types"
)

// Editor defines the editor operations the engine needs.
// Implemented by buffer.NvimBuffer for Neovim integration.
type Editor interface {
	Sync(fromMarks bool) (*buffer.Snapshot, error)
	CurrentLines(buf int) ([]string, error)
	IsCurrent(win, buf int) (bool, error)
	SetSelection(win int, rng types.Range, lines []string) error
	Preview(win, buf int, rng types.Range) error
	ExecuteCodeAction(req buffer.ActionRequest) error
	ShowPicker(placeholder string, items []picker.Item, active int) error
	ClosePicker(origin, buf int) error
	ReportError(msg string) error
}

type state int

const (
	stateIdle state = iota
	stateResolving
	statePicking
)

func (s state) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateResolving:
		return "resolving"
	case statePicking:
		return "picking"
	}
	return "unknown"
}

type EngineConfig struct {
	ResolveTimeout     time.Duration // bound on candidate resolution per invocation
	UseCompatSelection bool          // force the editor selection while querying
}

// invocation is one run of a command, from snapshot to apply.
type invocation struct {
	id     int
	desc   commands.Descriptor
	snap   *buffer.Snapshot
	ctx    context.Context
	cancel context.CancelFunc
}

// resolution is what a resolve goroutine hands back to the event loop.
type resolution struct {
	inv         *invocation
	candidates  []*candidate.Candidate
	passThrough bool
}

type resolveFailure struct {
	inv *invocation
	err error
}

// pickerState is the open picker of an invocation.
type pickerState struct {
	inv     *invocation
	session *picker.Session
}

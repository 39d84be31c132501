package buffer

import (
	"fmt"
	"strings"

	"github.com/neovim/go-client/nvim"
	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"

	"intellirefactor/logger"
	"intellirefactor/picker"
	"intellirefactor/types"
)

// Snapshot is the editor state captured when a command is invoked.
type Snapshot struct {
	Window    int
	Buffer    int
	Path      string
	URI       protocol.DocumentURI
	Filetype  string
	Lines     []string
	Tick      int
	Cursor    types.Position
	Selection *types.Range // nil when nothing is selected
}

// Text returns the buffer content as a file would hold it.
func (s *Snapshot) Text() []byte {
	return []byte(JoinLines(s.Lines))
}

// Range returns the selection, or a caret at the cursor.
func (s *Snapshot) Range() types.Range {
	if s.Selection != nil {
		return *s.Selection
	}
	return types.Caret(s.Cursor)
}

// ActionRequest describes a code-action invocation in the editor.
type ActionRequest struct {
	Window    int
	Kind      protocol.CodeActionKind
	Preferred bool
	Apply     bool         // apply without a menu when exactly one action remains
	Selection *types.Range // nil runs at the caret or current selection
	Lines     []string     // buffer lines Selection refers to
}

// NvimBuffer talks to the Neovim instance over msgpack-rpc.
type NvimBuffer struct {
	client *nvim.Nvim
	nsID   int
}

func New() *NvimBuffer {
	return &NvimBuffer{}
}

// SetClient stores the nvim client for all buffer operations
func (b *NvimBuffer) SetClient(n *nvim.Nvim) {
	b.client = n
}

func (b *NvimBuffer) batch() (*nvim.Batch, error) {
	if b.client == nil {
		return nil, fmt.Errorf("nvim client not set")
	}
	return b.client.NewBatch(), nil
}

// Setup defines the user command, autocommands and highlight namespace.
// keymapLua, when non-empty, is run afterwards to install key bindings.
func (b *NvimBuffer) Setup(userCommand string, ids []string, keymapLua string) error {
	batch, err := b.batch()
	if err != nil {
		return err
	}
	batch.ExecLua(`return vim.api.nvim_create_namespace("intellirefactor_preview")`, &b.nsID, nil)
	batch.ExecLua(setupLua, nil, b.client.ChannelID(), userCommand, ids)
	if keymapLua != "" {
		batch.ExecLua(keymapLua, nil, nil)
	}
	if err := batch.Execute(); err != nil {
		return fmt.Errorf("failed to set up editor: %w", err)
	}
	return nil
}

// Sync reads the current window, buffer, cursor and selection. With
// fromMarks the selection comes from the '< and '> marks, as for a
// command given a range.
func (b *NvimBuffer) Sync(fromMarks bool) (*Snapshot, error) {
	defer logger.Trace("buffer.Sync")()
	batch, err := b.batch()
	if err != nil {
		return nil, err
	}

	var state map[string]any
	var lines [][]byte
	batch.ExecLua(stateLua, &state, fromMarks)
	batch.BufferLines(nvim.Buffer(0), 0, -1, false, &lines)
	if err := batch.Execute(); err != nil {
		logger.Error("error executing sync batch: %v", err)
		return nil, err
	}

	snap := &Snapshot{
		Window:   getNumber(state, "win"),
		Buffer:   getNumber(state, "buf"),
		Path:     getString(state, "name"),
		Filetype: getString(state, "filetype"),
		Tick:     getNumber(state, "tick"),
		Lines:    toStrings(lines),
		Cursor:   types.Position{Line: getNumber(state, "row"), Column: getNumber(state, "col")},
	}
	if snap.Path != "" {
		snap.URI = uri.File(snap.Path)
	}
	if _, ok := state["anchor_row"]; ok {
		anchor := types.Position{Line: getNumber(state, "anchor_row"), Column: getNumber(state, "anchor_col")}
		if rng, ok := visualRange(getString(state, "mode"), anchor, snap.Cursor, snap.Lines); ok {
			snap.Selection = &rng
		}
	}
	return snap, nil
}

// CurrentLines returns the lines of buf as they are now.
func (b *NvimBuffer) CurrentLines(buf int) ([]string, error) {
	batch, err := b.batch()
	if err != nil {
		return nil, err
	}
	var lines [][]byte
	batch.BufferLines(nvim.Buffer(buf), 0, -1, false, &lines)
	if err := batch.Execute(); err != nil {
		return nil, fmt.Errorf("failed to read buffer %d: %w", buf, err)
	}
	return toStrings(lines), nil
}

// IsCurrent reports whether win is focused and still shows buf.
func (b *NvimBuffer) IsCurrent(win, buf int) (bool, error) {
	batch, err := b.batch()
	if err != nil {
		return false, err
	}
	var current bool
	batch.ExecLua(isCurrentLua, &current, win, buf)
	if err := batch.Execute(); err != nil {
		return false, err
	}
	return current, nil
}

// SetSelection selects rng in win in charwise visual mode, or moves the
// cursor there when rng is empty.
func (b *NvimBuffer) SetSelection(win int, rng types.Range, lines []string) error {
	batch, err := b.batch()
	if err != nil {
		return err
	}
	end := inclusiveEnd(lines, rng.Start, rng.End)
	batch.ExecLua(setSelectionLua, nil, win, !rng.IsEmpty(), rng.Start.Line, rng.Start.Column, end.Line, end.Column)
	return batch.Execute()
}

// Preview highlights rng in buf and moves the cursor of win to its start
// without changing modes, so it works while the picker window has focus.
func (b *NvimBuffer) Preview(win, buf int, rng types.Range) error {
	batch, err := b.batch()
	if err != nil {
		return err
	}
	batch.ExecLua(previewLua, nil, win, buf, b.nsID, rng.Start.Line, rng.Start.Column, rng.End.Line, rng.End.Column)
	return batch.Execute()
}

// ExecuteCodeAction runs vim.lsp.buf.code_action with the request's filters.
func (b *NvimBuffer) ExecuteCodeAction(req ActionRequest) error {
	batch, err := b.batch()
	if err != nil {
		return err
	}
	var srow, scol, erow, ecol int
	hasRange := req.Selection != nil && !req.Selection.IsEmpty()
	if hasRange {
		end := inclusiveEnd(req.Lines, req.Selection.Start, req.Selection.End)
		srow, scol, erow, ecol = req.Selection.Start.Line, req.Selection.Start.Column, end.Line, end.Column
	}
	batch.ExecLua(executeCodeActionLua, nil, req.Window, string(req.Kind), req.Preferred, req.Apply, hasRange, srow, scol, erow, ecol)
	if err := batch.Execute(); err != nil {
		return fmt.Errorf("failed to run code action: %w", err)
	}
	return nil
}

// RequestCodeActions implements codeaction.Requester. The answer is
// delivered to the handler registered with RegisterCodeActionHandler.
func (b *NvimBuffer) RequestCodeActions(reqID int64, docURI protocol.DocumentURI, rng types.Range, kind protocol.CodeActionKind) error {
	batch, err := b.batch()
	if err != nil {
		return err
	}
	batch.ExecLua(requestCodeActionsLua, nil, b.client.ChannelID(), reqID, string(docURI),
		rng.Start.Line, rng.Start.Column, rng.End.Line, rng.End.Column, string(kind))
	return batch.Execute()
}

// ShowPicker opens the floating list. Moves, accepts and cancels come back
// through the handler registered with RegisterPickerHandler.
func (b *NvimBuffer) ShowPicker(placeholder string, items []picker.Item, active int) error {
	batch, err := b.batch()
	if err != nil {
		return err
	}
	labels := make([]string, len(items))
	details := make([]string, len(items))
	for i, item := range items {
		labels[i] = strings.ReplaceAll(item.Label, "\n", " ")
		details[i] = item.Detail
	}
	batch.ExecLua(showPickerLua, nil, b.client.ChannelID(), placeholder, labels, details, active, b.nsID)
	return batch.Execute()
}

// ClosePicker closes the list, clears the preview in buf and focuses origin.
func (b *NvimBuffer) ClosePicker(origin, buf int) error {
	batch, err := b.batch()
	if err != nil {
		return err
	}
	batch.ExecLua(closePickerLua, nil, origin, buf, b.nsID)
	return batch.Execute()
}

// ReportError shows msg to the user at error level.
func (b *NvimBuffer) ReportError(msg string) error {
	batch, err := b.batch()
	if err != nil {
		return err
	}
	batch.ExecLua(notifyLua, nil, msg)
	return batch.Execute()
}

// RegisterInvokeHandler registers the handler run by the user command
func (b *NvimBuffer) RegisterInvokeHandler(handler func(id string, fromMarks bool)) error {
	if b.client == nil {
		return fmt.Errorf("nvim client not set")
	}
	return b.client.RegisterHandler("intellirefactor_invoke", func(_ *nvim.Nvim, id string, fromMarks bool) {
		handler(id, fromMarks)
	})
}

// RegisterEventHandler registers a handler for nvim RPC events
func (b *NvimBuffer) RegisterEventHandler(handler func(event string)) error {
	if b.client == nil {
		return fmt.Errorf("nvim client not set")
	}
	return b.client.RegisterHandler("intellirefactor_event", func(_ *nvim.Nvim, event string) {
		handler(event)
	})
}

// RegisterPickerHandler registers a handler for picker window events
func (b *NvimBuffer) RegisterPickerHandler(handler func(event string, index int)) error {
	if b.client == nil {
		return fmt.Errorf("nvim client not set")
	}
	return b.client.RegisterHandler("intellirefactor_picker", func(_ *nvim.Nvim, event string, index int) {
		handler(event, index)
	})
}

// RegisterCodeActionHandler registers a handler for code action responses
func (b *NvimBuffer) RegisterCodeActionHandler(handler func(reqID int64, actionsJSON string, errMsg string)) error {
	if b.client == nil {
		return fmt.Errorf("nvim client not set")
	}
	return b.client.RegisterHandler("intellirefactor_code_actions", func(_ *nvim.Nvim, reqID int64, actionsJSON string, errMsg string) {
		handler(reqID, actionsJSON, errMsg)
	})
}

func toStrings(lines [][]byte) []string {
	out := make([]string, len(lines))
	for i, line := range lines {
		out[i] = string(line)
	}
	return out
}

// Helper function to safely get string from map
func getString(m map[string]any, key string) string {
	if val, ok := m[key].(string); ok {
		return val
	}
	return ""
}

// Helper function to safely get number from map, handling the integer
// types msgpack may decode to
func getNumber(m map[string]any, key string) int {
	switch val := m[key].(type) {
	case int:
		return val
	case int64:
		return int(val)
	case uint64:
		return int(val)
	case int32:
		return int(val)
	case float64:
		return int(val)
	}
	return -1
}

package engine

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"

	"intellirefactor/buffer"
	"intellirefactor/picker"
	"intellirefactor/types"
)

// --- Mock implementations ---

// mockEditor implements the Editor interface for testing
type mockEditor struct {
	mu       sync.Mutex
	snap     *buffer.Snapshot
	syncErr  error
	lines    []string // current buffer lines; nil means unchanged since the snapshot
	current  bool
	showErr  error
	execErr  error
	fromMark bool

	// Track method calls
	syncCalls    int
	selections   []types.Range
	previews     []types.Range
	executed     []buffer.ActionRequest
	shownItems   []picker.Item
	placeholder  string
	closedPicker int
	errors       []string
	log          []string // "sync" and "select <range>" in call order
}

const testSource = `package p

func f(a, b int) int {
	return g(a + b)
}
`

func newMockEditor() *mockEditor {
	lines := strings.Split(strings.TrimSuffix(testSource, "\n"), "\n")
	return &mockEditor{
		snap: &buffer.Snapshot{
			Window:   1000,
			Buffer:   1,
			Path:     "/src/p/p.go",
			URI:      uri.File("/src/p/p.go"),
			Filetype: "go",
			Lines:    lines,
			Tick:     3,
			Cursor:   types.Position{Line: 3, Column: 10}, // on "a" in g(a + b)
		},
		current: true,
	}
}

func (m *mockEditor) Sync(fromMarks bool) (*buffer.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.syncCalls++
	m.log = append(m.log, "sync")
	m.fromMark = fromMarks
	if m.syncErr != nil {
		return nil, m.syncErr
	}
	snap := *m.snap
	return &snap, nil
}

func (m *mockEditor) CurrentLines(buf int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lines != nil {
		return m.lines, nil
	}
	return m.snap.Lines, nil
}

func (m *mockEditor) IsCurrent(win, buf int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current && win == m.snap.Window && buf == m.snap.Buffer, nil
}

func (m *mockEditor) SetSelection(win int, rng types.Range, lines []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.selections = append(m.selections, rng)
	m.log = append(m.log, "select "+rng.String())
	return nil
}

func (m *mockEditor) Preview(win, buf int, rng types.Range) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.previews = append(m.previews, rng)
	return nil
}

func (m *mockEditor) ExecuteCodeAction(req buffer.ActionRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.executed = append(m.executed, req)
	return m.execErr
}

func (m *mockEditor) ShowPicker(placeholder string, items []picker.Item, active int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.placeholder = placeholder
	m.shownItems = items
	return m.showErr
}

func (m *mockEditor) ClosePicker(origin, buf int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closedPicker++
	return nil
}

func (m *mockEditor) ReportError(msg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, msg)
	return nil
}

// mockFetcher answers code-action queries by the text under the range.
type mockFetcher struct {
	mu      sync.Mutex
	lines   []string
	actions map[string][]protocol.CodeAction
	err     error
	block   bool // wait for cancellation instead of answering
	queried []string

	active    int // queries in flight
	maxActive int
}

func newMockFetcher(lines []string) *mockFetcher {
	return &mockFetcher{lines: lines, actions: make(map[string][]protocol.CodeAction)}
}

func (f *mockFetcher) offer(text string, kind protocol.CodeActionKind) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.actions[text] = append(f.actions[text], protocol.CodeAction{Title: "Extract " + text, Kind: kind})
}

func (f *mockFetcher) CodeActions(ctx context.Context, _ protocol.DocumentURI, rng types.Range, kind protocol.CodeActionKind) ([]protocol.CodeAction, error) {
	text := buffer.JoinLines(f.lines)[offsetOf(f.lines, rng.Start):offsetOf(f.lines, rng.End)]

	f.mu.Lock()
	f.queried = append(f.queried, text)
	f.active++
	f.maxActive = max(f.maxActive, f.active)
	block, err := f.block, f.err
	offered := f.actions[text]
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.active--
		f.mu.Unlock()
	}()

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, err
	}
	var out []protocol.CodeAction
	for _, a := range offered {
		if kind == "" || a.Kind == kind {
			out = append(out, a)
		}
	}
	return out, nil
}

// --- Helper functions ---

func createTestEngine(ed *mockEditor, f *mockFetcher, config EngineConfig) (*Engine, context.CancelFunc) {
	eng := NewEngine(ed, f, config)
	ctx, cancel := context.WithCancel(context.Background())
	eng.mainCtx = ctx
	eng.mainCancel = cancel
	return eng, cancel
}

func (f *mockFetcher) queryCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queried)
}

// nextEvent waits for the event a resolve goroutine posts.
func nextEvent(t *testing.T, eng *Engine) Event {
	t.Helper()
	select {
	case ev := <-eng.eventChan:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for engine event")
		return Event{}
	}
}

// invokeAndResolve runs an invocation through resolution on the test
// goroutine.
func invokeAndResolve(t *testing.T, eng *Engine, id string) {
	t.Helper()
	eng.handleEvent(Event{Type: EventInvoke, Data: invokeRequest{id: id}})
	eng.handleEvent(nextEvent(t, eng))
}

func rangeOf(line, start, end int) types.Range {
	return types.Range{Start: types.Position{Line: line, Column: start}, End: types.Position{Line: line, Column: end}}
}

package candidate

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.lsp.dev/protocol"

	"intellirefactor/syntax"
	"intellirefactor/types"
)

const testURI = protocol.DocumentURI("file:///p.go")

// fakeFetcher offers actions keyed by the source text of the queried range.
type fakeFetcher struct {
	tree    *syntax.Tree
	actions map[string][]protocol.CodeAction
	err     error
	onCall  func(rng types.Range)

	mu    sync.Mutex
	calls []string
	kinds []protocol.CodeActionKind
}

func (f *fakeFetcher) CodeActions(_ context.Context, uri protocol.DocumentURI, rng types.Range, kind protocol.CodeActionKind) ([]protocol.CodeAction, error) {
	if f.onCall != nil {
		f.onCall(rng)
	}
	text := string(f.tree.Source()[f.tree.Offset(rng.Start):f.tree.Offset(rng.End)])

	f.mu.Lock()
	f.calls = append(f.calls, text)
	f.kinds = append(f.kinds, kind)
	f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}
	return f.actions[text], nil
}

func (f *fakeFetcher) called(text string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.calls {
		if c == text {
			return true
		}
	}
	return false
}

func action(title string) []protocol.CodeAction {
	return []protocol.CodeAction{{Title: title, Kind: protocol.RefactorExtract}}
}

func parseBody(t *testing.T, body string) (*syntax.Tree, string) {
	t.Helper()
	src := "package p\n\nfunc f() {\n\t" + body + "\n}\n"
	tree, err := syntax.Parse("p.go", []byte(src))
	require.NoError(t, err)
	require.NoError(t, tree.ParseErr)
	return tree, src
}

func caretAt(t *testing.T, tree *syntax.Tree, src, needle string, delta int) syntax.Chain {
	t.Helper()
	i := strings.Index(src, needle)
	require.GreaterOrEqual(t, i, 0, "needle %q not found", needle)
	return syntax.ResolveChain(tree, types.Caret(tree.Position(i+delta)))
}

func selection(t *testing.T, tree *syntax.Tree, src, needle string, from, to int) types.Range {
	t.Helper()
	i := strings.Index(src, needle)
	require.GreaterOrEqual(t, i, 0, "needle %q not found", needle)
	return types.Range{Start: tree.Position(i + from), End: tree.Position(i + to)}
}

func texts(cs []*Candidate) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Text()
	}
	return out
}

func TestNearest_InnermostWithActions(t *testing.T) {
	tree, src := parseBody(t, "x := g(a + b)")
	fetcher := &fakeFetcher{tree: tree, actions: map[string][]protocol.CodeAction{
		"a + b":         action("extract"),
		"x := g(a + b)": action("inline"),
	}}
	r := NewResolver(tree, testURI, fetcher, types.ActionFilter{Kind: protocol.Refactor}, nil)

	c, err := r.Nearest(context.Background(), caretAt(t, tree, src, "a + b", 0))

	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, "a + b", c.Text())
	assert.Equal(t, "extract", c.Actions[0].Title)
	assert.True(t, fetcher.called("a"))
	assert.False(t, fetcher.called("x := g(a + b)"), "search stops at the first hit")
	assert.Equal(t, protocol.Refactor, fetcher.kinds[0])
}

func TestNearest_SkipsCallee(t *testing.T) {
	tree, src := parseBody(t, "x := g(y)")
	fetcher := &fakeFetcher{tree: tree, actions: map[string][]protocol.CodeAction{
		"g":    action("rename"),
		"g(y)": action("extract"),
	}}
	r := NewResolver(tree, testURI, fetcher, types.ActionFilter{}, nil)

	c, err := r.Nearest(context.Background(), caretAt(t, tree, src, "g(y)", 0))

	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, "g(y)", c.Text())
	assert.False(t, fetcher.called("g"))
}

func TestNearest_SkipsValueSpec(t *testing.T) {
	tree, src := parseBody(t, "var n = 1")
	fetcher := &fakeFetcher{tree: tree, actions: map[string][]protocol.CodeAction{
		"n = 1":     action("binding"),
		"var n = 1": action("decl"),
	}}
	r := NewResolver(tree, testURI, fetcher, types.ActionFilter{}, nil)

	c, err := r.Nearest(context.Background(), caretAt(t, tree, src, "1", 0))

	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, "var n = 1", c.Text())
	assert.False(t, fetcher.called("n = 1"))
}

func TestNearest_DeclarationInBodyQueriedOnce(t *testing.T) {
	tree, src := parseBody(t, "var n = 1")
	fetcher := &fakeFetcher{tree: tree}
	r := NewResolver(tree, testURI, fetcher, types.ActionFilter{}, nil)

	c, err := r.Nearest(context.Background(), caretAt(t, tree, src, "n =", 0))

	require.NoError(t, err)
	assert.Nil(t, c)
	count := 0
	for _, call := range fetcher.calls {
		if call == "var n = 1" {
			count++
		}
	}
	assert.Equal(t, 1, count, "the declaration and its statement share a span")
}

func TestNearest_Absent(t *testing.T) {
	tree, src := parseBody(t, "x := 1")
	fetcher := &fakeFetcher{tree: tree}
	r := NewResolver(tree, testURI, fetcher, types.ActionFilter{}, nil)

	c, err := r.Nearest(context.Background(), caretAt(t, tree, src, "1", 0))

	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestExpressions_CalleeExcluded(t *testing.T) {
	tree, src := parseBody(t, "x := f(y)")
	fetcher := &fakeFetcher{tree: tree, actions: map[string][]protocol.CodeAction{
		"f":    action("a"),
		"f(y)": action("b"),
	}}
	r := NewResolver(tree, testURI, fetcher, types.ActionFilter{}, nil)

	cs, err := r.Expressions(context.Background(), caretAt(t, tree, src, "f(y)", 0), false)

	require.NoError(t, err)
	assert.Equal(t, []string{"f(y)"}, texts(cs))
	assert.False(t, fetcher.called("f"))
}

func TestExpressions_OnlyOutermostParen(t *testing.T) {
	tree, src := parseBody(t, "y := (((x)))")
	fetcher := &fakeFetcher{tree: tree, actions: map[string][]protocol.CodeAction{
		"(((x)))": action("a"),
		"((x))":   action("b"),
		"(x)":     action("c"),
		"x":       action("d"),
	}}
	r := NewResolver(tree, testURI, fetcher, types.ActionFilter{}, nil)

	cs, err := r.Expressions(context.Background(), caretAt(t, tree, src, "x)", 0), false)

	require.NoError(t, err)
	assert.Equal(t, []string{"(((x)))", "x"}, texts(cs))
	assert.False(t, fetcher.called("((x))"))
	assert.False(t, fetcher.called("(x)"))
}

func TestExpressions_ChainOrderAndZeroActionsDropped(t *testing.T) {
	tree, src := parseBody(t, "z := a * (b + c.d)")
	fetcher := &fakeFetcher{tree: tree, actions: map[string][]protocol.CodeAction{
		"a * (b + c.d)": action("outer"),
		"b + c.d":       action("sum"),
		"c.d":           action("sel"),
	}}
	r := NewResolver(tree, testURI, fetcher, types.ActionFilter{}, nil)

	cs, err := r.Expressions(context.Background(), caretAt(t, tree, src, "c.d", 0), false)

	require.NoError(t, err)
	assert.Equal(t, []string{"a * (b + c.d)", "b + c.d", "c.d"}, texts(cs))
	for _, c := range cs {
		assert.NotEmpty(t, c.Actions)
	}
	// The paren is not the first match.
	assert.False(t, fetcher.called("(b + c.d)"))
	assert.True(t, fetcher.called("c"))
}

func TestExpressions_TypePositions(t *testing.T) {
	tree, src := parseBody(t, "var m map[string]*T")
	fetcher := &fakeFetcher{tree: tree, actions: map[string][]protocol.CodeAction{
		"map[string]*T": action("a"),
		"*T":            action("b"),
		"T":             action("c"),
	}}
	r := NewResolver(tree, testURI, fetcher, types.ActionFilter{}, nil)
	chain := caretAt(t, tree, src, "T", 0)

	typesOnly, err := r.Expressions(context.Background(), chain, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"map[string]*T", "*T", "T"}, texts(typesOnly))

	exprs, err := r.Expressions(context.Background(), chain, false)
	require.NoError(t, err)
	assert.Empty(t, exprs)
}

func TestExpressions_GenericTypeArguments(t *testing.T) {
	tree, src := parseBody(t, "x := f[int, string](y)")
	fetcher := &fakeFetcher{tree: tree, actions: map[string][]protocol.CodeAction{
		"f[int, string](y)": action("a"),
		"f[int, string]":    action("b"),
		"int":               action("c"),
	}}
	r := NewResolver(tree, testURI, fetcher, types.ActionFilter{}, nil)
	chain := caretAt(t, tree, src, "int", 0)

	typesOnly, err := r.Expressions(context.Background(), chain, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"int"}, texts(typesOnly))

	exprs, err := r.Expressions(context.Background(), chain, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"f[int, string](y)"}, texts(exprs))
}

func TestExpressions_StructKeyIsNotAnExpression(t *testing.T) {
	tree, src := parseBody(t, "v := T{Name: n}")
	fetcher := &fakeFetcher{tree: tree, actions: map[string][]protocol.CodeAction{
		"T{Name: n}": action("a"),
		"Name":       action("b"),
	}}
	r := NewResolver(tree, testURI, fetcher, types.ActionFilter{}, nil)

	cs, err := r.Expressions(context.Background(), caretAt(t, tree, src, "Name", 0), false)

	require.NoError(t, err)
	assert.Equal(t, []string{"T{Name: n}"}, texts(cs))
}

func TestExpressions_ProviderError(t *testing.T) {
	tree, src := parseBody(t, "x := a + b")
	boom := errors.New("server crashed")
	fetcher := &fakeFetcher{tree: tree, err: boom}
	r := NewResolver(tree, testURI, fetcher, types.ActionFilter{}, nil)

	cs, err := r.Expressions(context.Background(), caretAt(t, tree, src, "a + b", 0), false)

	assert.ErrorIs(t, err, boom)
	assert.Nil(t, cs)
}

func TestResolve_PreferredOnly(t *testing.T) {
	tree, src := parseBody(t, "x := 1 + 2")
	fetcher := &fakeFetcher{tree: tree, actions: map[string][]protocol.CodeAction{
		"1 + 2": {
			{Title: "extract to function"},
			{Title: "extract to variable", IsPreferred: true},
		},
		"x := 1 + 2": {{Title: "inline"}},
	}}
	filter := types.ActionFilter{Kind: protocol.RefactorExtract, Preferred: true}
	r := NewResolver(tree, testURI, fetcher, filter, nil)
	chain := caretAt(t, tree, src, "+", 0)

	c, err := r.Resolve(context.Background(), chain[len(chain)-1])
	require.NoError(t, err)
	require.NotNil(t, c)
	require.Len(t, c.Actions, 1)
	assert.Equal(t, "extract to variable", c.Actions[0].Title)

	c, err = r.Resolve(context.Background(), chain[len(chain)-2])
	require.NoError(t, err)
	assert.Nil(t, c, "no preferred action means no candidate")
}

func TestResolve_SelectionMatchesNode(t *testing.T) {
	tree, src := parseBody(t, "x := g(a,\n\t\tb)")
	fetcher := &fakeFetcher{tree: tree, actions: map[string][]protocol.CodeAction{
		"g(a,\n\t\tb)": action("extract"),
	}}
	r := NewResolver(tree, testURI, fetcher, types.ActionFilter{}, nil)
	chain := caretAt(t, tree, src, ",\n", 1)

	c, err := r.Resolve(context.Background(), chain.Innermost())

	require.NoError(t, err)
	require.NotNil(t, c)
	n := chain.Innermost()
	assert.Equal(t, tree.Position(n.Start()), c.Selection.Start)
	assert.Equal(t, tree.Position(n.End()), c.Selection.End)
	assert.Equal(t, "g(a, b)", c.Label())
}

func TestOnSelection_PartialTokens(t *testing.T) {
	tree, src := parseBody(t, "x := foo + bar")
	fetcher := &fakeFetcher{tree: tree, actions: map[string][]protocol.CodeAction{
		"foo + bar": action("extract"),
	}}
	r := NewResolver(tree, testURI, fetcher, types.ActionFilter{}, nil)

	// fo[o + b]ar
	c, err := r.OnSelection(context.Background(), selection(t, tree, src, "foo + bar", 2, 7))

	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, "foo + bar", c.Text())
}

func TestOnSelection_ExactlyOneChild(t *testing.T) {
	tree, src := parseBody(t, "x := g( a + b )")
	fetcher := &fakeFetcher{tree: tree, actions: map[string][]protocol.CodeAction{
		"a + b": action("extract"),
	}}
	r := NewResolver(tree, testURI, fetcher, types.ActionFilter{}, nil)

	c, err := r.OnSelection(context.Background(), selection(t, tree, src, " a + b ", 0, len(" a + b ")))

	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, "a + b", c.Text())
}

func TestOnSelection_TwoSiblingsIsAmbiguous(t *testing.T) {
	tree, src := parseBody(t, "x := g(a, b)")
	fetcher := &fakeFetcher{tree: tree, actions: map[string][]protocol.CodeAction{
		"a": action("a"),
		"b": action("b"),
	}}
	r := NewResolver(tree, testURI, fetcher, types.ActionFilter{}, nil)

	c, err := r.OnSelection(context.Background(), selection(t, tree, src, "a, b", 0, len("a, b")))

	require.NoError(t, err)
	assert.Nil(t, c)
	assert.Empty(t, fetcher.calls)
}

func TestOnSelection_OutsideAnyNode(t *testing.T) {
	tree, _ := parseBody(t, "x := 1")
	fetcher := &fakeFetcher{tree: tree}
	r := NewResolver(tree, testURI, fetcher, types.ActionFilter{}, nil)

	c, err := r.OnSelection(context.Background(), types.Range{End: types.Position{Column: 3}})

	require.NoError(t, err)
	assert.Nil(t, c)
}

// fakeSelection records forced ranges and concurrent holders.
type fakeSelection struct {
	mu         sync.Mutex
	forced     *types.Range
	active     atomic.Int32
	maxActive  atomic.Int32
	restored   int
	restoreErr error
}

func (s *fakeSelection) ForceSelection(rng types.Range) error {
	n := s.active.Add(1)
	for {
		m := s.maxActive.Load()
		if n <= m || s.maxActive.CompareAndSwap(m, n) {
			break
		}
	}
	s.mu.Lock()
	s.forced = &rng
	s.mu.Unlock()
	return nil
}

func (s *fakeSelection) RestoreSelection() error {
	s.mu.Lock()
	s.forced = nil
	s.restored++
	s.mu.Unlock()
	s.active.Add(-1)
	return s.restoreErr
}

func (s *fakeSelection) current() *types.Range {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.forced
}

func TestExpressions_CompatSelectionIsSerialized(t *testing.T) {
	tree, src := parseBody(t, "z := a * (b + c)")
	state := &fakeSelection{}
	fetcher := &fakeFetcher{tree: tree, actions: map[string][]protocol.CodeAction{
		"a * (b + c)": action("outer"),
		"b + c":       action("sum"),
		"c":           action("c"),
	}}
	fetcher.onCall = func(rng types.Range) {
		forced := state.current()
		if assert.NotNil(t, forced) {
			assert.Equal(t, rng, *forced)
		}
	}
	filter := types.ActionFilter{UseCompatSelection: true}
	r := NewResolver(tree, testURI, fetcher, filter, NewAmbientSelection(state))

	cs, err := r.Expressions(context.Background(), caretAt(t, tree, src, "c)", 0), false)

	require.NoError(t, err)
	assert.Equal(t, []string{"a * (b + c)", "b + c", "c"}, texts(cs))
	assert.Equal(t, int32(1), state.maxActive.Load())
	assert.Equal(t, len(fetcher.calls), state.restored)
	assert.Nil(t, state.current())
}

func TestResolve_CompatWithoutEditor(t *testing.T) {
	tree, src := parseBody(t, "x := 1")
	fetcher := &fakeFetcher{tree: tree, actions: map[string][]protocol.CodeAction{"1": action("a")}}
	r := NewResolver(tree, testURI, fetcher, types.ActionFilter{UseCompatSelection: true}, nil)

	c, err := r.Resolve(context.Background(), caretAt(t, tree, src, "1", 0).Innermost())

	require.NoError(t, err)
	assert.Nil(t, c)
	assert.Empty(t, fetcher.calls)
}

func TestAmbientSelection_RestoreErrorJoined(t *testing.T) {
	queryErr := errors.New("query failed")
	restoreErr := errors.New("window closed")
	state := &fakeSelection{restoreErr: restoreErr}
	ambient := NewAmbientSelection(state)

	err := ambient.With(context.Background(), types.Range{}, func() error { return queryErr })

	assert.ErrorIs(t, err, queryErr)
	assert.ErrorIs(t, err, restoreErr)
	assert.Equal(t, 1, state.restored)
}

func TestAmbientSelection_ViewsShareOneLock(t *testing.T) {
	cell := NewAmbientSelection(nil)
	first, second := &fakeSelection{}, &fakeSelection{}
	views := []*AmbientSelection{cell.For(first), cell.For(second)}

	var holders, maxHolders atomic.Int32
	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := views[i%2].With(context.Background(), types.Range{}, func() error {
				n := holders.Add(1)
				for {
					m := maxHolders.Load()
					if n <= m || maxHolders.CompareAndSwap(m, n) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				holders.Add(-1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxHolders.Load())
	assert.Equal(t, 4, first.restored)
	assert.Equal(t, 4, second.restored)
}

func TestAmbientSelection_CanceledLeavesSelectionAlone(t *testing.T) {
	state := &fakeSelection{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ran := false

	err := NewAmbientSelection(state).With(ctx, types.Range{}, func() error { ran = true; return nil })

	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, ran)
	assert.Zero(t, state.maxActive.Load())
	assert.Zero(t, state.restored)
}

func TestAmbientSelection_SettleWaitsForRestore(t *testing.T) {
	state := &fakeSelection{}
	cell := NewAmbientSelection(state)
	entered, release := make(chan struct{}), make(chan struct{})

	go func() {
		_ = cell.With(context.Background(), types.Range{}, func() error {
			close(entered)
			<-release
			return nil
		})
	}()
	<-entered

	settled := make(chan struct{})
	go func() {
		cell.Settle()
		close(settled)
	}()

	select {
	case <-settled:
		t.Fatal("Settle returned while the selection was forced")
	case <-time.After(20 * time.Millisecond):
	}
	close(release)
	<-settled
	assert.Nil(t, state.current())
}

func TestResolve_CanceledContext(t *testing.T) {
	tree, src := parseBody(t, "x := 1")
	fetcher := &fakeFetcher{tree: tree, actions: map[string][]protocol.CodeAction{"1": action("a")}}
	r := NewResolver(tree, testURI, fetcher, types.ActionFilter{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Resolve(ctx, caretAt(t, tree, src, "1", 0).Innermost())

	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, fetcher.calls)
}

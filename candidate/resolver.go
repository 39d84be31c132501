package candidate

import (
	"context"
	"fmt"
	"regexp"
	"sync"

	"go.lsp.dev/protocol"
	"golang.org/x/tools/go/ast/astutil"

	"intellirefactor/logger"
	"intellirefactor/syntax"
	"intellirefactor/types"
)

// Fetcher asks a code-action provider for the actions available on a range.
type Fetcher interface {
	CodeActions(ctx context.Context, uri protocol.DocumentURI, rng types.Range, kind protocol.CodeActionKind) ([]protocol.CodeAction, error)
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// Candidate is a node that has at least one applicable code action.
type Candidate struct {
	Selection types.Range
	Actions   []protocol.CodeAction
	Node      *syntax.Node

	text func() string
}

// Text returns the source text under the selection.
func (c *Candidate) Text() string {
	return c.text()
}

// Label is Text with every whitespace run collapsed to a single space.
func (c *Candidate) Label() string {
	return whitespaceRun.ReplaceAllString(c.Text(), " ")
}

// Detail names the kind of syntax the candidate covers, such as
// "function call".
func (c *Candidate) Detail() string {
	if c.Node == nil || c.Node.AST() == nil {
		return ""
	}
	return astutil.NodeDescription(c.Node.AST())
}

// Resolver turns syntax nodes of one document into candidates.
type Resolver struct {
	tree    *syntax.Tree
	uri     protocol.DocumentURI
	fetcher Fetcher
	filter  types.ActionFilter
	ambient *AmbientSelection
}

// NewResolver creates a resolver. ambient may be nil when the filter does
// not request compatibility mode.
func NewResolver(tree *syntax.Tree, uri protocol.DocumentURI, fetcher Fetcher, filter types.ActionFilter, ambient *AmbientSelection) *Resolver {
	return &Resolver{
		tree:    tree,
		uri:     uri,
		fetcher: fetcher,
		filter:  filter,
		ambient: ambient,
	}
}

// Resolve returns the candidate for n, or nil when the provider offers no
// matching action for its exact span.
func (r *Resolver) Resolve(ctx context.Context, n *syntax.Node) (*Candidate, error) {
	sel := r.tree.Range(n)

	actions, err := r.fetch(ctx, sel)
	if err != nil {
		return nil, err
	}
	if len(actions) == 0 {
		return nil, nil
	}

	tree := r.tree
	return &Candidate{
		Selection: sel,
		Actions:   actions,
		Node:      n,
		text:      sync.OnceValue(func() string { return tree.Text(n) }),
	}, nil
}

func (r *Resolver) fetch(ctx context.Context, sel types.Range) ([]protocol.CodeAction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var actions []protocol.CodeAction
	query := func() error {
		var err error
		actions, err = r.fetcher.CodeActions(ctx, r.uri, sel, r.filter.Kind)
		if err != nil {
			return fmt.Errorf("code actions at %s: %w", sel, err)
		}
		return nil
	}

	if r.filter.UseCompatSelection {
		if r.ambient == nil {
			logger.Debug("compat selection requested without an editor, skipping %s", sel)
			return nil, nil
		}
		if err := r.ambient.With(ctx, sel, query); err != nil {
			return nil, err
		}
	} else if err := query(); err != nil {
		return nil, err
	}

	if r.filter.Preferred {
		actions = preferredOnly(actions)
	}
	return actions, nil
}

func preferredOnly(actions []protocol.CodeAction) []protocol.CodeAction {
	var out []protocol.CodeAction
	for _, a := range actions {
		if a.IsPreferred {
			out = append(out, a)
		}
	}
	return out
}

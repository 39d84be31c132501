package candidate

import (
	"context"

	"golang.org/x/sync/errgroup"

	"intellirefactor/logger"
	"intellirefactor/syntax"
	"intellirefactor/types"
)

// Nearest walks chain innermost first and returns the first node that has
// actions. Structurally subordinate nodes are skipped without a query.
func (r *Resolver) Nearest(ctx context.Context, chain syntax.Chain) (*Candidate, error) {
	defer logger.Trace("candidate.Nearest")()

	for _, n := range chain.Reversed() {
		if isSubordinate(n) {
			continue
		}
		c, err := r.Resolve(ctx, n)
		if err != nil || c != nil {
			return c, err
		}
	}
	return nil, nil
}

// Expressions returns every whole expression (or type, when typePositions
// is set) in chain that has actions, outermost first.
func (r *Resolver) Expressions(ctx context.Context, chain syntax.Chain, typePositions bool) ([]*Candidate, error) {
	defer logger.Trace("candidate.Expressions")()

	nodes := wholeExpressionNodes(chain, typePositions)
	results := make([]*Candidate, len(nodes))

	if r.filter.UseCompatSelection {
		// The ambient selection is a single cell; queries run one at a time.
		for i, n := range nodes {
			c, err := r.Resolve(ctx, n)
			if err != nil {
				return nil, err
			}
			results[i] = c
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		for i, n := range nodes {
			g.Go(func() error {
				c, err := r.Resolve(gctx, n)
				if err != nil {
					return err
				}
				results[i] = c
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	var out []*Candidate
	for _, c := range results {
		if c != nil {
			out = append(out, c)
		}
	}
	logger.Debug("expressions: %d of %d nodes have actions", len(out), len(nodes))
	return out, nil
}

// OnSelection resolves the node a non-empty selection designates: the
// innermost containing node if the selection reaches into both its first
// and last token, otherwise its single child that does. Several or no such
// children is ambiguous and yields nil.
func (r *Resolver) OnSelection(ctx context.Context, rng types.Range) (*Candidate, error) {
	defer logger.Trace("candidate.OnSelection")()

	rng = types.NewRange(rng.Start, rng.End)
	node := syntax.ResolveChain(r.tree, rng).Innermost()
	if node == nil {
		return nil, nil
	}

	start, end := r.tree.Offset(rng.Start), r.tree.Offset(rng.End)
	if r.intersectsBothEnds(node, start, end) {
		return r.Resolve(ctx, node)
	}

	var selected []*syntax.Node
	for _, c := range node.Children() {
		if r.intersectsBothEnds(c, start, end) {
			selected = append(selected, c)
		}
	}
	if len(selected) != 1 {
		logger.Debug("selection %s matches %d children of %v", rng, len(selected), node)
		return nil, nil
	}
	return r.Resolve(ctx, selected[0])
}

func (r *Resolver) intersectsBothEnds(n *syntax.Node, start, end int) bool {
	return start < r.tree.FirstToken(n).End && r.tree.LastToken(n).Start < end
}

package syntax

import "intellirefactor/types"

// Chain is a root-first path of nodes whose spans contain a range. Each
// node contains the next; the last one is the innermost.
type Chain []*Node

// Innermost returns the last node of the chain, or nil if it is empty.
func (c Chain) Innermost() *Node {
	if len(c) == 0 {
		return nil
	}
	return c[len(c)-1]
}

// Reversed returns a copy of the chain ordered innermost first.
func (c Chain) Reversed() Chain {
	out := make(Chain, len(c))
	for i, n := range c {
		out[len(c)-1-i] = n
	}
	return out
}

// ResolveChain returns the nodes containing rng, outermost first. The walk
// starts at the children of the file root and descends into the first
// containing child at every level, so an earlier sibling wins when a caret
// sits exactly on a shared boundary.
func ResolveChain(t *Tree, rng types.Range) Chain {
	rng = types.NewRange(rng.Start, rng.End)
	start, end := t.Offset(rng.Start), t.Offset(rng.End)

	var chain Chain
	children := t.root.children
	for {
		var next *Node
		for _, c := range children {
			if c.ContainsOffsets(start, end) {
				next = c
				break
			}
		}
		if next == nil {
			return chain
		}
		chain = append(chain, next)
		children = next.children
	}
}

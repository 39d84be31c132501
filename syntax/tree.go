package syntax

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"

	"intellirefactor/types"
)

// Node is a node of a parsed Tree. Nodes are owned by their Tree and never
// mutated after Parse returns.
type Node struct {
	kind     Kind
	role     Role
	start    int // byte offset, inclusive
	end      int // byte offset, exclusive
	parent   *Node
	children []*Node
	node     ast.Node
}

func (n *Node) Kind() Kind { return n.kind }

func (n *Node) Role() Role { return n.role }

func (n *Node) Start() int { return n.start }

func (n *Node) End() int { return n.end }

func (n *Node) Parent() *Node { return n.parent }

func (n *Node) Children() []*Node { return n.children }

// AST returns the underlying go/ast node.
func (n *Node) AST() ast.Node { return n.node }

func (n *Node) String() string {
	return fmt.Sprintf("%s[%d,%d)", n.kind, n.start, n.end)
}

// ContainsOffsets reports whether [start, end] lies within the node's span.
// Both boundaries are inclusive so a caret at the node's end still matches.
func (n *Node) ContainsOffsets(start, end int) bool {
	return n.start <= start && end <= n.end
}

// Tree is an immutable, parent-linked syntax tree for one document.
type Tree struct {
	filename string
	src      []byte
	root     *Node
	lines    lineIndex
	tokens   []Token

	// ParseErr holds the parser's error list when the source had syntax
	// errors. The tree is still usable; broken regions become Bad* nodes.
	ParseErr error
}

// Parse parses Go source text into a Tree. An error is returned only when
// no syntax tree could be produced at all.
func Parse(filename string, src []byte) (*Tree, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, filename, src, parser.ParseComments|parser.SkipObjectResolution)
	if file == nil {
		return nil, fmt.Errorf("parse %s: %w", filename, err)
	}

	tf := fset.File(file.Pos())
	if tf == nil {
		return nil, fmt.Errorf("parse %s: no position information", filename)
	}

	t := &Tree{
		filename: filename,
		src:      src,
		lines:    newLineIndex(src),
		tokens:   scanTokens(src),
		ParseErr: err,
	}

	offset := func(p token.Pos) int {
		if !p.IsValid() {
			return -1
		}
		off := tf.Offset(p)
		if off > len(src) {
			off = len(src)
		}
		return off
	}

	t.root = &Node{kind: KindFile, role: RoleOther, start: 0, end: len(src), node: file}
	t.build(t.root, offset)
	return t, nil
}

func (t *Tree) build(parent *Node, offset func(token.Pos) int) {
	for _, child := range directChildren(parent.node) {
		start, end := offset(child.Pos()), offset(child.End())
		if start < 0 || end < start {
			continue
		}
		n := &Node{
			kind:   kindOf(child),
			role:   roleOf(parent.node, child),
			start:  start,
			end:    end,
			parent: parent,
			node:   child,
		}
		parent.children = append(parent.children, n)
		t.build(n, offset)
	}
}

// directChildren lists the immediate AST children of n in source order.
// Comments are not part of the tree.
func directChildren(n ast.Node) []ast.Node {
	var out []ast.Node
	ast.Inspect(n, func(c ast.Node) bool {
		if c == nil {
			return false
		}
		if c == n {
			return true
		}
		switch c.(type) {
		case *ast.Comment, *ast.CommentGroup:
			return false
		}
		out = append(out, c)
		return false
	})
	return out
}

func (t *Tree) Filename() string { return t.filename }

// Root returns the file node. It is never part of a Chain.
func (t *Tree) Root() *Node { return t.root }

func (t *Tree) Source() []byte { return t.src }

// Text returns the exact source text of n.
func (t *Tree) Text(n *Node) string {
	return string(t.src[n.start:n.end])
}

// Range converts a node's span to document coordinates.
func (t *Tree) Range(n *Node) types.Range {
	return types.Range{Start: t.Position(n.start), End: t.Position(n.end)}
}

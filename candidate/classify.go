package candidate

import "intellirefactor/syntax"

// isSubordinate reports whether nearest-mode search skips n without asking
// for actions. A single binding of a var/const declaration is only a
// fragment of the declaration, and the callee of a call is only a fragment
// of the call. A declaration inside a function body spans exactly the same
// text as its statement, which is queried instead.
func isSubordinate(n *syntax.Node) bool {
	if n.Role() == syntax.RoleCallee {
		return true
	}
	switch n.Kind() {
	case syntax.KindValueSpec:
		return true
	case syntax.KindGenDecl:
		p := n.Parent()
		return p != nil && p.Kind() == syntax.KindDeclStmt
	default:
		return false
	}
}

// isExpressionPosition reports whether n produces a value.
func isExpressionPosition(n *syntax.Node) bool {
	switch n.Kind() {
	case syntax.KindIdent,
		syntax.KindBasicLit,
		syntax.KindCompositeLit,
		syntax.KindFuncLit,
		syntax.KindParenExpr,
		syntax.KindSelectorExpr,
		syntax.KindIndexExpr,
		syntax.KindIndexListExpr,
		syntax.KindSliceExpr,
		syntax.KindTypeAssertExpr,
		syntax.KindCallExpr,
		syntax.KindStarExpr,
		syntax.KindUnaryExpr,
		syntax.KindBinaryExpr:
	default:
		return false
	}

	if isTypePosition(n) {
		return false
	}

	switch n.Role() {
	case syntax.RoleName, syntax.RoleField, syntax.RoleImportPath, syntax.RoleLabel:
		return false
	case syntax.RoleKey:
		// A bare identifier key names a struct field.
		return n.Kind() != syntax.KindIdent
	default:
		return true
	}
}

// isTypePosition reports whether n occupies a type-only syntactic slot.
func isTypePosition(n *syntax.Node) bool {
	switch n.Kind() {
	case syntax.KindArrayType,
		syntax.KindStructType,
		syntax.KindInterfaceType,
		syntax.KindMapType,
		syntax.KindChanType:
		return true
	}

	switch n.Role() {
	case syntax.RoleType:
		return true
	case syntax.RoleOperand:
		p := n.Parent()
		return p != nil && isTypePosition(p)
	default:
		return false
	}
}

// wholeExpressionNodes filters chain, outermost first, to the nodes that
// expression mode (or type mode) proposes. A parenthesized expression is
// kept only when it is the first match: wrapping parentheses carry no
// meaning of their own, but the outermost pair may be exactly what the
// user selected.
func wholeExpressionNodes(chain syntax.Chain, typePositions bool) []*syntax.Node {
	var out []*syntax.Node
	for _, n := range chain {
		if n.Role() == syntax.RoleCallee {
			continue
		}
		match := isExpressionPosition(n)
		if typePositions {
			match = isTypePosition(n)
		}
		if !match {
			continue
		}
		if n.Kind() == syntax.KindParenExpr && len(out) > 0 {
			continue
		}
		out = append(out, n)
	}
	return out
}

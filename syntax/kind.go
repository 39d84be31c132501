package syntax

import (
	"go/ast"
	"go/token"
)

// Kind is the closed set of syntax node kinds the adapter produces.
// Every concrete go/ast node type maps to exactly one Kind.
type Kind int

const (
	KindUnknown Kind = iota

	KindFile

	// Expressions
	KindBadExpr
	KindIdent
	KindEllipsis
	KindBasicLit
	KindCompositeLit
	KindFuncLit
	KindParenExpr
	KindSelectorExpr
	KindIndexExpr
	KindIndexListExpr
	KindSliceExpr
	KindTypeAssertExpr
	KindCallExpr
	KindStarExpr
	KindUnaryExpr
	KindBinaryExpr
	KindKeyValueExpr

	// Types
	KindArrayType
	KindStructType
	KindFuncType
	KindInterfaceType
	KindMapType
	KindChanType
	KindField
	KindFieldList

	// Statements
	KindBadStmt
	KindDeclStmt
	KindEmptyStmt
	KindLabeledStmt
	KindExprStmt
	KindSendStmt
	KindIncDecStmt
	KindAssignStmt
	KindGoStmt
	KindDeferStmt
	KindReturnStmt
	KindBranchStmt
	KindBlockStmt
	KindIfStmt
	KindCaseClause
	KindSwitchStmt
	KindTypeSwitchStmt
	KindCommClause
	KindSelectStmt
	KindForStmt
	KindRangeStmt

	// Specs and declarations
	KindImportSpec
	KindValueSpec
	KindTypeSpec
	KindBadDecl
	KindGenDecl
	KindFuncDecl
)

var kindNames = [...]string{
	KindUnknown:        "Unknown",
	KindFile:           "File",
	KindBadExpr:        "BadExpr",
	KindIdent:          "Ident",
	KindEllipsis:       "Ellipsis",
	KindBasicLit:       "BasicLit",
	KindCompositeLit:   "CompositeLit",
	KindFuncLit:        "FuncLit",
	KindParenExpr:      "ParenExpr",
	KindSelectorExpr:   "SelectorExpr",
	KindIndexExpr:      "IndexExpr",
	KindIndexListExpr:  "IndexListExpr",
	KindSliceExpr:      "SliceExpr",
	KindTypeAssertExpr: "TypeAssertExpr",
	KindCallExpr:       "CallExpr",
	KindStarExpr:       "StarExpr",
	KindUnaryExpr:      "UnaryExpr",
	KindBinaryExpr:     "BinaryExpr",
	KindKeyValueExpr:   "KeyValueExpr",
	KindArrayType:      "ArrayType",
	KindStructType:     "StructType",
	KindFuncType:       "FuncType",
	KindInterfaceType:  "InterfaceType",
	KindMapType:        "MapType",
	KindChanType:       "ChanType",
	KindField:          "Field",
	KindFieldList:      "FieldList",
	KindBadStmt:        "BadStmt",
	KindDeclStmt:       "DeclStmt",
	KindEmptyStmt:      "EmptyStmt",
	KindLabeledStmt:    "LabeledStmt",
	KindExprStmt:       "ExprStmt",
	KindSendStmt:       "SendStmt",
	KindIncDecStmt:     "IncDecStmt",
	KindAssignStmt:     "AssignStmt",
	KindGoStmt:         "GoStmt",
	KindDeferStmt:      "DeferStmt",
	KindReturnStmt:     "ReturnStmt",
	KindBranchStmt:     "BranchStmt",
	KindBlockStmt:      "BlockStmt",
	KindIfStmt:         "IfStmt",
	KindCaseClause:     "CaseClause",
	KindSwitchStmt:     "SwitchStmt",
	KindTypeSwitchStmt: "TypeSwitchStmt",
	KindCommClause:     "CommClause",
	KindSelectStmt:     "SelectStmt",
	KindForStmt:        "ForStmt",
	KindRangeStmt:      "RangeStmt",
	KindImportSpec:     "ImportSpec",
	KindValueSpec:      "ValueSpec",
	KindTypeSpec:       "TypeSpec",
	KindBadDecl:        "BadDecl",
	KindGenDecl:        "GenDecl",
	KindFuncDecl:       "FuncDecl",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "Unknown"
	}
	return kindNames[k]
}

func kindOf(n ast.Node) Kind {
	switch n.(type) {
	case *ast.File:
		return KindFile
	case *ast.BadExpr:
		return KindBadExpr
	case *ast.Ident:
		return KindIdent
	case *ast.Ellipsis:
		return KindEllipsis
	case *ast.BasicLit:
		return KindBasicLit
	case *ast.CompositeLit:
		return KindCompositeLit
	case *ast.FuncLit:
		return KindFuncLit
	case *ast.ParenExpr:
		return KindParenExpr
	case *ast.SelectorExpr:
		return KindSelectorExpr
	case *ast.IndexExpr:
		return KindIndexExpr
	case *ast.IndexListExpr:
		return KindIndexListExpr
	case *ast.SliceExpr:
		return KindSliceExpr
	case *ast.TypeAssertExpr:
		return KindTypeAssertExpr
	case *ast.CallExpr:
		return KindCallExpr
	case *ast.StarExpr:
		return KindStarExpr
	case *ast.UnaryExpr:
		return KindUnaryExpr
	case *ast.BinaryExpr:
		return KindBinaryExpr
	case *ast.KeyValueExpr:
		return KindKeyValueExpr
	case *ast.ArrayType:
		return KindArrayType
	case *ast.StructType:
		return KindStructType
	case *ast.FuncType:
		return KindFuncType
	case *ast.InterfaceType:
		return KindInterfaceType
	case *ast.MapType:
		return KindMapType
	case *ast.ChanType:
		return KindChanType
	case *ast.Field:
		return KindField
	case *ast.FieldList:
		return KindFieldList
	case *ast.BadStmt:
		return KindBadStmt
	case *ast.DeclStmt:
		return KindDeclStmt
	case *ast.EmptyStmt:
		return KindEmptyStmt
	case *ast.LabeledStmt:
		return KindLabeledStmt
	case *ast.ExprStmt:
		return KindExprStmt
	case *ast.SendStmt:
		return KindSendStmt
	case *ast.IncDecStmt:
		return KindIncDecStmt
	case *ast.AssignStmt:
		return KindAssignStmt
	case *ast.GoStmt:
		return KindGoStmt
	case *ast.DeferStmt:
		return KindDeferStmt
	case *ast.ReturnStmt:
		return KindReturnStmt
	case *ast.BranchStmt:
		return KindBranchStmt
	case *ast.BlockStmt:
		return KindBlockStmt
	case *ast.IfStmt:
		return KindIfStmt
	case *ast.CaseClause:
		return KindCaseClause
	case *ast.SwitchStmt:
		return KindSwitchStmt
	case *ast.TypeSwitchStmt:
		return KindTypeSwitchStmt
	case *ast.CommClause:
		return KindCommClause
	case *ast.SelectStmt:
		return KindSelectStmt
	case *ast.ForStmt:
		return KindForStmt
	case *ast.RangeStmt:
		return KindRangeStmt
	case *ast.ImportSpec:
		return KindImportSpec
	case *ast.ValueSpec:
		return KindValueSpec
	case *ast.TypeSpec:
		return KindTypeSpec
	case *ast.BadDecl:
		return KindBadDecl
	case *ast.GenDecl:
		return KindGenDecl
	case *ast.FuncDecl:
		return KindFuncDecl
	default:
		return KindUnknown
	}
}

// Role describes the syntactic slot a node occupies in its parent.
type Role int

const (
	RoleOther      Role = iota
	RoleCallee          // Fun of a call expression
	RoleType            // a type-only slot (field, spec, literal, assertion, element types, type arguments)
	RoleOperand         // operand of star, paren and index expressions; inherits the parent's position
	RoleName            // a name being declared
	RoleField           // Sel of a selector expression
	RoleKey             // key of a composite literal element
	RoleLabel           // statement label
	RoleImportPath      // import path literal
)

var roleNames = [...]string{
	RoleOther:      "Other",
	RoleCallee:     "Callee",
	RoleType:       "Type",
	RoleOperand:    "Operand",
	RoleName:       "Name",
	RoleField:      "Field",
	RoleKey:        "Key",
	RoleLabel:      "Label",
	RoleImportPath: "ImportPath",
}

func (r Role) String() string {
	if r < 0 || int(r) >= len(roleNames) {
		return "Other"
	}
	return roleNames[r]
}

// roleOf reports the role of child within parent.
func roleOf(parent, child ast.Node) Role {
	switch p := parent.(type) {
	case *ast.File:
		if child == p.Name {
			return RoleName
		}
	case *ast.CallExpr:
		if child == p.Fun {
			return RoleCallee
		}
	case *ast.SelectorExpr:
		if child == p.Sel {
			return RoleField
		}
	case *ast.StarExpr, *ast.ParenExpr:
		return RoleOperand
	case *ast.IndexExpr:
		return RoleOperand
	case *ast.IndexListExpr:
		// Several indices only occur in a generic instantiation.
		if child != p.X {
			return RoleType
		}
		return RoleOperand
	case *ast.KeyValueExpr:
		if child == p.Key {
			return RoleKey
		}
	case *ast.CompositeLit:
		if child == p.Type {
			return RoleType
		}
	case *ast.TypeAssertExpr:
		if child == p.Type {
			return RoleType
		}
	case *ast.ArrayType:
		if child == p.Elt {
			return RoleType
		}
	case *ast.MapType:
		return RoleType
	case *ast.ChanType:
		return RoleType
	case *ast.Ellipsis:
		return RoleType
	case *ast.Field:
		if child == p.Type {
			return RoleType
		}
		if containsIdent(p.Names, child) {
			return RoleName
		}
	case *ast.ValueSpec:
		if child == p.Type {
			return RoleType
		}
		if containsIdent(p.Names, child) {
			return RoleName
		}
	case *ast.TypeSpec:
		if child == p.Name {
			return RoleName
		}
		if child == p.Type {
			return RoleType
		}
	case *ast.ImportSpec:
		if child == p.Name {
			return RoleName
		}
		if child == p.Path {
			return RoleImportPath
		}
	case *ast.FuncDecl:
		if child == p.Name {
			return RoleName
		}
	case *ast.AssignStmt:
		if p.Tok == token.DEFINE && containsExpr(p.Lhs, child) {
			return RoleName
		}
	case *ast.RangeStmt:
		if p.Tok == token.DEFINE && (child == p.Key || child == p.Value) {
			return RoleName
		}
	case *ast.LabeledStmt:
		if child == p.Label {
			return RoleLabel
		}
	case *ast.BranchStmt:
		if child == p.Label {
			return RoleLabel
		}
	}
	return RoleOther
}

func containsIdent(idents []*ast.Ident, n ast.Node) bool {
	for _, id := range idents {
		if n == id {
			return true
		}
	}
	return false
}

func containsExpr(exprs []ast.Expr, n ast.Node) bool {
	for _, e := range exprs {
		if n == e {
			return true
		}
	}
	return false
}

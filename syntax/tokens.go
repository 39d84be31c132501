package syntax

import (
	"bytes"
	"go/scanner"
	"go/token"
	"sort"
)

// Token is a lexical token span. Automatically inserted semicolons and
// comments are not tokens.
type Token struct {
	Tok   token.Token
	Start int
	End   int
}

func scanTokens(src []byte) []Token {
	fset := token.NewFileSet()
	file := fset.AddFile("", fset.Base(), len(src))

	var s scanner.Scanner
	s.Init(file, src, nil, 0)

	var tokens []Token
	for {
		pos, tok, lit := s.Scan()
		if tok == token.EOF {
			break
		}
		if tok == token.SEMICOLON && lit == "\n" {
			continue
		}
		start := file.Offset(pos)
		tokens = append(tokens, Token{Tok: tok, Start: start, End: tokenEnd(src, start, tok, lit)})
	}
	return tokens
}

func tokenEnd(src []byte, start int, tok token.Token, lit string) int {
	// Raw strings may contain carriage returns the scanner strips from lit.
	if tok == token.STRING && start < len(src) && src[start] == '`' {
		if i := bytes.IndexByte(src[start+1:], '`'); i >= 0 {
			return start + 1 + i + 1
		}
		return len(src)
	}
	if lit != "" {
		return start + len(lit)
	}
	return start + len(tok.String())
}

// FirstToken returns the first token inside n. When n contains no token the
// node's own span is returned as a pseudo token.
func (t *Tree) FirstToken(n *Node) Token {
	i := sort.Search(len(t.tokens), func(i int) bool { return t.tokens[i].Start >= n.start })
	if i < len(t.tokens) && t.tokens[i].End <= n.end {
		return t.tokens[i]
	}
	return Token{Tok: token.ILLEGAL, Start: n.start, End: n.end}
}

// LastToken returns the last token inside n, or the node's span as a
// pseudo token.
func (t *Tree) LastToken(n *Node) Token {
	i := sort.Search(len(t.tokens), func(i int) bool { return t.tokens[i].End > n.end }) - 1
	if i >= 0 && t.tokens[i].Start >= n.start {
		return t.tokens[i]
	}
	return Token{Tok: token.ILLEGAL, Start: n.start, End: n.end}
}

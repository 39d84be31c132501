package commands

import (
	"fmt"
	"strings"

	"go.lsp.dev/protocol"

	"intellirefactor/types"
)

// Family selects how candidates are searched for.
type Family int

const (
	// FamilyNearest proposes the innermost node that has actions.
	FamilyNearest Family = iota
	// FamilyExpression proposes every whole expression around the caret.
	FamilyExpression
)

func (f Family) String() string {
	switch f {
	case FamilyNearest:
		return "nearest"
	case FamilyExpression:
		return "expression"
	default:
		return "unknown"
	}
}

// Descriptor is a user-invocable command.
type Descriptor struct {
	ID     string
	Family Family
	// Kind restricts the requested code actions. Empty means all kinds.
	Kind protocol.CodeActionKind
	// Preferred keeps only actions the provider marks as preferred.
	Preferred bool
	// NoPrompt applies the action directly when it is the only one.
	NoPrompt bool
	// TypeExpression searches type positions instead of value positions.
	TypeExpression bool
	Key            string
	Mac            string
}

// Filter returns the action filter for an invocation of d.
func (d Descriptor) Filter(useCompatSelection bool) types.ActionFilter {
	return types.ActionFilter{
		Kind:               d.Kind,
		Preferred:          d.Preferred,
		UseCompatSelection: useCompatSelection,
	}
}

// Placeholder is the picker title for d.
func (d Descriptor) Placeholder() string {
	if d.TypeExpression {
		return "Types"
	}
	return "Expressions"
}

var nearest = []Descriptor{
	{ID: "quickFix", Key: "ctrl+.", Mac: "cmd+."},
	{ID: "refactor", Kind: protocol.Refactor, Key: "ctrl+shift+r"},
	{ID: "move", Kind: "refactor.move", Key: "f6"},
	{ID: "rewrite", Kind: protocol.RefactorRewrite},
}

var expression = []Descriptor{
	{ID: "extract", Kind: protocol.RefactorExtract},
	{
		ID:        "extract.localVariable",
		Kind:      "refactor.extract.variable",
		Preferred: true,
		NoPrompt:  true,
		Key:       "ctrl+alt+v",
		Mac:       "cmd+alt+v",
	},
	{ID: "extract.constant", Kind: "refactor.extract.constant", NoPrompt: true, Key: "ctrl+alt+c", Mac: "cmd+alt+c"},
	{ID: "extract.function", Kind: "refactor.extract.function", NoPrompt: true, Key: "ctrl+alt+m", Mac: "cmd+alt+m"},
	{
		ID:             "extract.type",
		Kind:           "refactor.extract.type",
		NoPrompt:       true,
		TypeExpression: true,
		Key:            "ctrl+shift+alt+a",
		Mac:            "cmd+shift+alt+a",
	},
	{ID: "inline", Kind: protocol.RefactorInline, NoPrompt: true, Key: "ctrl+alt+n", Mac: "cmd+alt+n"},
}

func init() {
	for i := range expression {
		expression[i].Family = FamilyExpression
	}
}

// All returns every descriptor, nearest-node commands first.
func All() []Descriptor {
	out := make([]Descriptor, 0, len(nearest)+len(expression))
	out = append(out, nearest...)
	return append(out, expression...)
}

// Lookup finds a descriptor by ID.
func Lookup(id string) (Descriptor, bool) {
	for _, d := range All() {
		if d.ID == id {
			return d, true
		}
	}
	return Descriptor{}, false
}

var modifiers = map[string]string{
	"ctrl":  "C",
	"shift": "S",
	"alt":   "M",
	"cmd":   "D",
}

// VimKey converts a binding such as "ctrl+shift+r" to Neovim notation
// ("<C-S-r>"). It returns "" for an empty binding.
func VimKey(binding string) (string, error) {
	if binding == "" {
		return "", nil
	}
	parts := strings.Split(binding, "+")
	key := parts[len(parts)-1]
	if key == "" {
		return "", fmt.Errorf("binding %q has no key", binding)
	}

	var b strings.Builder
	b.WriteByte('<')
	for _, m := range parts[:len(parts)-1] {
		vm, ok := modifiers[m]
		if !ok {
			return "", fmt.Errorf("binding %q: unknown modifier %q", binding, m)
		}
		b.WriteString(vm)
		b.WriteByte('-')
	}
	if len(key) > 1 {
		key = strings.ToUpper(key[:1]) + key[1:]
	}
	b.WriteString(key)
	b.WriteByte('>')
	return b.String(), nil
}

// KeymapLua emits one vim.keymap.set call per bound descriptor, invoking
// the given user command in normal and visual mode. With mac set the Mac
// binding is preferred when there is one.
func KeymapLua(userCommand string, mac bool) (string, error) {
	var b strings.Builder
	for _, d := range All() {
		binding := d.Key
		if mac && d.Mac != "" {
			binding = d.Mac
		}
		lhs, err := VimKey(binding)
		if err != nil {
			return "", fmt.Errorf("command %s: %w", d.ID, err)
		}
		if lhs == "" {
			continue
		}
		fmt.Fprintf(&b, "vim.keymap.set({'n', 'x'}, %q, '<Cmd>%s %s<CR>', { desc = %q })\n",
			lhs, userCommand, d.ID, "IntelliRefactor: "+d.ID)
	}
	return b.String(), nil
}

package picker

import (
	"errors"

	"intellirefactor/types"
)

// ErrClosed is returned by operations on a session that was already
// accepted or cancelled.
var ErrClosed = errors.New("picker session closed")

// Item is one entry of the picker.
type Item struct {
	Label     string
	Detail    string
	Selection types.Range
}

// Previewer shows a selection in the editor while the user browses.
type Previewer interface {
	Preview(rng types.Range) error
}

// Session tracks the active item of a picker. Moving the active item
// previews its selection; cancelling puts the initial selection back.
// A session is used once.
type Session struct {
	Placeholder string

	items   []Item
	active  int
	initial types.Range
	preview Previewer
	closed  bool
}

// NewSession opens a session and previews the first item.
func NewSession(placeholder string, items []Item, initial types.Range, preview Previewer) (*Session, error) {
	if len(items) == 0 {
		return nil, errors.New("picker needs at least one item")
	}
	s := &Session{
		Placeholder: placeholder,
		items:       items,
		initial:     initial,
		preview:     preview,
	}
	return s, s.show()
}

func (s *Session) Items() []Item { return s.items }

func (s *Session) Active() int { return s.active }

func (s *Session) Closed() bool { return s.closed }

// Move shifts the active item by delta, wrapping around both ends.
func (s *Session) Move(delta int) error {
	n := len(s.items)
	return s.SetActive(((s.active+delta)%n + n) % n)
}

// SetActive makes item i active and previews it.
func (s *Session) SetActive(i int) error {
	if s.closed {
		return ErrClosed
	}
	if i < 0 || i >= len(s.items) {
		return errors.New("picker index out of range")
	}
	if i == s.active {
		return nil
	}
	s.active = i
	return s.show()
}

func (s *Session) show() error {
	if s.preview == nil {
		return nil
	}
	return s.preview.Preview(s.items[s.active].Selection)
}

// Accept closes the session and returns the active item. The previewed
// selection stays in place.
func (s *Session) Accept() (Item, error) {
	if s.closed {
		return Item{}, ErrClosed
	}
	s.closed = true
	return s.items[s.active], nil
}

// Cancel closes the session and restores the initial selection.
func (s *Session) Cancel() error {
	if s.closed {
		return ErrClosed
	}
	s.closed = true
	if s.preview == nil {
		return nil
	}
	return s.preview.Preview(s.initial)
}

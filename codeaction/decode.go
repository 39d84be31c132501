package codeaction

import (
	"bytes"
	"encoding/json"
	"fmt"

	"go.lsp.dev/protocol"
)

// DecodeActions parses a textDocument/codeAction result. Servers may answer
// with bare commands instead of code actions; those are wrapped so callers
// only deal with one type.
func DecodeActions(data []byte) ([]protocol.CodeAction, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("failed to parse code actions: %w", err)
	}

	actions := make([]protocol.CodeAction, 0, len(items))
	for i, item := range items {
		var shape struct {
			Command json.RawMessage `json:"command"`
		}
		if err := json.Unmarshal(item, &shape); err != nil {
			return nil, fmt.Errorf("failed to parse code action %d: %w", i, err)
		}

		if len(shape.Command) > 0 && shape.Command[0] == '"' {
			var cmd protocol.Command
			if err := json.Unmarshal(item, &cmd); err != nil {
				return nil, fmt.Errorf("failed to parse command %d: %w", i, err)
			}
			actions = append(actions, protocol.CodeAction{Title: cmd.Title, Command: &cmd})
			continue
		}

		var action protocol.CodeAction
		if err := json.Unmarshal(item, &action); err != nil {
			return nil, fmt.Errorf("failed to parse code action %d: %w", i, err)
		}
		actions = append(actions, action)
	}
	return actions, nil
}

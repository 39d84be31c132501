package codeaction

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.lsp.dev/protocol"

	"intellirefactor/logger"
	"intellirefactor/types"
)

// Requester sends a code-action request to the language servers attached
// in the editor. The answer arrives later through NvimProvider.HandleResponse
// with the same request id.
type Requester interface {
	RequestCodeActions(reqID int64, uri protocol.DocumentURI, rng types.Range, kind protocol.CodeActionKind) error
}

type response struct {
	actions []protocol.CodeAction
	err     error
}

// NvimProvider asks Neovim's LSP clients for code actions.
type NvimProvider struct {
	requester Requester

	reqIDCounter atomic.Int64

	mu      sync.Mutex
	pending map[int64]chan response
}

func NewNvimProvider(requester Requester) *NvimProvider {
	return &NvimProvider{
		requester: requester,
		pending:   make(map[int64]chan response),
	}
}

// CodeActions implements candidate.Fetcher. Several requests may be in
// flight at once.
func (p *NvimProvider) CodeActions(ctx context.Context, uri protocol.DocumentURI, rng types.Range, kind protocol.CodeActionKind) ([]protocol.CodeAction, error) {
	defer logger.Trace("codeaction.NvimProvider.CodeActions")()

	reqID := p.reqIDCounter.Add(1)
	ch := make(chan response, 1)

	p.mu.Lock()
	p.pending[reqID] = ch
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		delete(p.pending, reqID)
		p.mu.Unlock()
	}()

	logger.Debug("code actions: reqID=%d uri=%s range=%s kind=%q", reqID, uri, rng, kind)
	if err := p.requester.RequestCodeActions(reqID, uri, rng, kind); err != nil {
		return nil, fmt.Errorf("failed to send code action request: %w", err)
	}

	select {
	case <-ctx.Done():
		logger.Debug("code actions: reqID=%d cancelled", reqID)
		return nil, ctx.Err()
	case r := <-ch:
		return r.actions, r.err
	}
}

// HandleResponse is called by the RPC handler when the editor answers. An
// error reported next to usable actions is only logged: one of several
// attached servers failing does not hide the others' actions.
func (p *NvimProvider) HandleResponse(reqID int64, actionsJSON string, errMsg string) {
	p.mu.Lock()
	ch, ok := p.pending[reqID]
	p.mu.Unlock()
	if !ok {
		logger.Debug("code actions: ignoring stale response reqID=%d", reqID)
		return
	}

	var r response
	actions, err := DecodeActions([]byte(actionsJSON))
	switch {
	case err != nil:
		r.err = err
	case errMsg != "" && len(actions) == 0:
		r.err = fmt.Errorf("language server error: %s", errMsg)
	default:
		if errMsg != "" {
			logger.Warn("code actions: reqID=%d partial failure: %s", reqID, errMsg)
		}
		r.actions = actions
	}

	select {
	case ch <- r:
	default:
		logger.Debug("code actions: duplicate response reqID=%d dropped", reqID)
	}
}

package codeaction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/sourcegraph/jsonrpc2"
	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"

	"intellirefactor/logger"
	"intellirefactor/syntax"
	"intellirefactor/types"
)

// ProcessConfig describes a language server to spawn.
type ProcessConfig struct {
	Command    string
	Args       []string
	RootDir    string
	LanguageID string
}

// ProcessProvider talks to a language server it owns over stdio.
type ProcessProvider struct {
	conn   *jsonrpc2.Conn
	cmd    *exec.Cmd
	cancel context.CancelFunc

	mu   sync.Mutex
	docs map[protocol.DocumentURI]*syntax.Tree

	languageID string
}

// StartProcess launches the configured server and performs the LSP
// handshake.
func StartProcess(cfg ProcessConfig) (*ProcessProvider, error) {
	if cfg.Command == "" {
		return nil, errors.New("language server command is required")
	}
	root, err := filepath.Abs(cfg.RootDir)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(ctx, cfg.Command, cfg.Args...)
	cmd.Dir = root
	cmd.Stderr = logger.Writer()

	stdin, err := cmd.StdinPipe()
	if err != nil {
		cancel()
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to start %s: %w", cfg.Command, err)
	}

	p, err := newProcessProvider(ctx, &stdioPipe{reader: stdout, writer: stdin}, root, cfg.LanguageID)
	if err != nil {
		cancel()
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return nil, err
	}
	p.cmd = cmd
	p.cancel = cancel
	logger.Info("language server started: %s (pid %d)", cfg.Command, cmd.Process.Pid)
	return p, nil
}

func newProcessProvider(ctx context.Context, rwc io.ReadWriteCloser, root, languageID string) (*ProcessProvider, error) {
	if languageID == "" {
		languageID = "go"
	}
	p := &ProcessProvider{
		docs:       make(map[protocol.DocumentURI]*syntax.Tree),
		languageID: languageID,
	}
	stream := jsonrpc2.NewBufferedStream(rwc, jsonrpc2.VSCodeObjectCodec{})
	p.conn = jsonrpc2.NewConn(ctx, stream, jsonrpc2.HandlerWithError(handleServerRequest))

	if err := p.initialize(ctx, root); err != nil {
		_ = p.conn.Close()
		return nil, fmt.Errorf("language server handshake: %w", err)
	}
	return p, nil
}

// handleServerRequest answers the requests a server sends to its client.
// Nothing is registered or configured, so every answer is empty.
func handleServerRequest(_ context.Context, _ *jsonrpc2.Conn, req *jsonrpc2.Request) (any, error) {
	if req.Notif {
		return nil, nil
	}
	switch req.Method {
	case "workspace/configuration":
		var params protocol.ConfigurationParams
		if req.Params != nil && json.Unmarshal(*req.Params, &params) == nil {
			return make([]any, len(params.Items)), nil
		}
		return []any{}, nil
	default:
		return nil, nil
	}
}

func (p *ProcessProvider) initialize(ctx context.Context, root string) error {
	params := &protocol.InitializeParams{
		ProcessID: int32(os.Getpid()),
		RootURI:   uri.File(root),
		ClientInfo: &protocol.ClientInfo{
			Name: "intellirefactor",
		},
		Capabilities: protocol.ClientCapabilities{
			TextDocument: &protocol.TextDocumentClientCapabilities{
				CodeAction: &protocol.CodeActionClientCapabilities{
					CodeActionLiteralSupport: &protocol.CodeActionClientCapabilitiesLiteralSupport{
						CodeActionKind: &protocol.CodeActionClientCapabilitiesKind{
							ValueSet: []protocol.CodeActionKind{
								protocol.QuickFix,
								protocol.Refactor,
								protocol.RefactorExtract,
								protocol.RefactorInline,
								protocol.RefactorRewrite,
								protocol.Source,
							},
						},
					},
					IsPreferredSupport: true,
					DisabledSupport:    true,
				},
			},
		},
	}
	var result protocol.InitializeResult
	if err := p.conn.Call(ctx, "initialize", params, &result); err != nil {
		return err
	}
	return p.conn.Notify(ctx, "initialized", &protocol.InitializedParams{})
}

// Open sends the tree's text to the server and returns the document URI.
// Opening a document again replaces its text.
func (p *ProcessProvider) Open(ctx context.Context, tree *syntax.Tree) (protocol.DocumentURI, error) {
	path, err := filepath.Abs(tree.Filename())
	if err != nil {
		return "", err
	}
	docURI := uri.File(path)

	p.mu.Lock()
	_, reopen := p.docs[docURI]
	p.docs[docURI] = tree
	p.mu.Unlock()

	if reopen {
		closeParams := &protocol.DidCloseTextDocumentParams{
			TextDocument: protocol.TextDocumentIdentifier{URI: docURI},
		}
		if err := p.conn.Notify(ctx, "textDocument/didClose", closeParams); err != nil {
			return "", err
		}
	}

	openParams := &protocol.DidOpenTextDocumentParams{
		TextDocument: protocol.TextDocumentItem{
			URI:        docURI,
			LanguageID: protocol.LanguageIdentifier(p.languageID),
			Version:    1,
			Text:       string(tree.Source()),
		},
	}
	if err := p.conn.Notify(ctx, "textDocument/didOpen", openParams); err != nil {
		return "", err
	}
	return docURI, nil
}

// CodeActions implements candidate.Fetcher for documents passed to Open.
func (p *ProcessProvider) CodeActions(ctx context.Context, docURI protocol.DocumentURI, rng types.Range, kind protocol.CodeActionKind) ([]protocol.CodeAction, error) {
	defer logger.Trace("codeaction.ProcessProvider.CodeActions")()

	p.mu.Lock()
	tree, ok := p.docs[docURI]
	p.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("document %s is not open", docURI)
	}

	params := &protocol.CodeActionParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: docURI},
		Range: protocol.Range{
			Start: lspPosition(tree, rng.Start),
			End:   lspPosition(tree, rng.End),
		},
		Context: protocol.CodeActionContext{
			Diagnostics: []protocol.Diagnostic{},
		},
	}
	if kind != "" {
		params.Context.Only = []protocol.CodeActionKind{kind}
	}

	var raw json.RawMessage
	if err := p.conn.Call(ctx, "textDocument/codeAction", params, &raw); err != nil {
		return nil, err
	}
	return DecodeActions(raw)
}

func lspPosition(tree *syntax.Tree, pos types.Position) protocol.Position {
	return protocol.Position{
		Line:      uint32(pos.Line),
		Character: uint32(tree.UTF16Column(pos)),
	}
}

// Close shuts the server down and releases the process.
func (p *ProcessProvider) Close() error {
	if p == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := p.conn.Call(ctx, "shutdown", nil, nil); err != nil {
		logger.Debug("language server shutdown: %v", err)
	} else {
		_ = p.conn.Notify(ctx, "exit", nil)
	}
	_ = p.conn.Close()

	if p.cancel != nil {
		p.cancel()
	}
	if p.cmd != nil && p.cmd.Process != nil {
		_ = p.cmd.Process.Kill()
		_ = p.cmd.Wait()
	}
	return nil
}

type stdioPipe struct {
	reader io.ReadCloser
	writer io.WriteCloser
}

func (s *stdioPipe) Read(p []byte) (int, error)  { return s.reader.Read(p) }
func (s *stdioPipe) Write(p []byte) (int, error) { return s.writer.Write(p) }
func (s *stdioPipe) Close() error {
	_ = s.reader.Close()
	return s.writer.Close()
}

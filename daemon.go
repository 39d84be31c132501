package main

import (
	"context"
	"errors"
	"io"
	"log"
	"net"
	"os"
	"os/signal"
	"strconv"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/neovim/go-client/nvim"

	"intellirefactor/buffer"
	"intellirefactor/codeaction"
	"intellirefactor/commands"
	"intellirefactor/engine"
)

const userCommand = "IntelliRefactor"

type Daemon struct {
	config      Config
	paths       runtimePaths
	listener    net.Listener
	clientCount int64
	ctx         context.Context
	cancel      context.CancelFunc
}

func NewDaemon(config Config, paths runtimePaths) *Daemon {
	ctx, cancel := context.WithCancel(context.Background())
	return &Daemon{
		config: config,
		paths:  paths,
		ctx:    ctx,
		cancel: cancel,
	}
}

func (d *Daemon) Start() error {
	d.writePidFile()
	defer d.removePidFile()

	if err := d.setupSocket(); err != nil {
		return err
	}
	defer d.cleanup()

	log.Printf("daemon listening on socket: %s", d.paths.socket)

	d.setupShutdownHandling()
	go d.acceptConnections()
	go d.monitorIdleShutdown()

	<-d.ctx.Done()
	log.Printf("daemon shutting down...")
	return nil
}

func (d *Daemon) setupSocket() error {
	// Remove a stale socket left by a crashed daemon
	os.Remove(d.paths.socket)

	listener, err := net.Listen("unix", d.paths.socket)
	if err != nil {
		return err
	}
	d.listener = listener
	return nil
}

func (d *Daemon) setupShutdownHandling() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Printf("received shutdown signal")
		d.Stop()
	}()
}

func (d *Daemon) acceptConnections() {
	for {
		conn, err := d.listener.Accept()
		if errors.Is(err, net.ErrClosed) {
			return
		}
		if err != nil {
			log.Printf("accept: %v", err)
			continue
		}

		n := atomic.AddInt64(&d.clientCount, 1)
		log.Printf("editor connected (%d attached)", n)
		go d.handleConnection(conn)
	}
}

// handleConnection serves one Neovim instance. Each connection gets its
// own engine so invocations in different editors never cancel each other.
func (d *Daemon) handleConnection(conn net.Conn) {
	defer conn.Close()
	defer func() {
		n := atomic.AddInt64(&d.clientCount, -1)
		log.Printf("editor detached (%d attached)", n)
	}()

	n, err := nvim.New(conn, conn, conn, log.Printf)
	if err != nil {
		log.Printf("error creating nvim client: %v", err)
		return
	}

	buf := buffer.New()
	buf.SetClient(n)
	provider := codeaction.NewNvimProvider(buf)
	eng := engine.NewEngine(buf, provider, d.config.engineConfig())

	if err := registerHandlers(buf, eng, provider); err != nil {
		log.Printf("error registering handlers: %v", err)
		return
	}

	eng.Start(d.ctx)
	defer eng.Stop()

	// Setup issues requests, which need Serve running to get answers.
	go func() {
		if err := buf.Setup(userCommand, commandIDs(), d.keymapLua()); err != nil {
			log.Printf("error setting up editor: %v", err)
		}
	}()

	if err := n.Serve(); err != nil && !errors.Is(err, io.EOF) {
		log.Printf("serve: %v", err)
	}
}

func registerHandlers(buf *buffer.NvimBuffer, eng *engine.Engine, provider *codeaction.NvimProvider) error {
	if err := buf.RegisterInvokeHandler(eng.Invoke); err != nil {
		return err
	}
	if err := buf.RegisterEventHandler(eng.HandleEditorEvent); err != nil {
		return err
	}
	if err := buf.RegisterPickerHandler(eng.HandlePickerEvent); err != nil {
		return err
	}
	return buf.RegisterCodeActionHandler(provider.HandleResponse)
}

func commandIDs() []string {
	all := commands.All()
	ids := make([]string, len(all))
	for i, d := range all {
		ids[i] = d.ID
	}
	return ids
}

func (d *Daemon) keymapLua() string {
	if !d.config.SetKeymaps {
		return ""
	}
	lua, err := commands.KeymapLua(userCommand, d.config.MacKeys)
	if err != nil {
		log.Printf("error building keymaps: %v", err)
		return ""
	}
	return lua
}

// monitorIdleShutdown stops the daemon once no editor has been attached
// for the idle grace period. Debug mode uses a one second grace.
func (d *Daemon) monitorIdleShutdown() {
	grace := d.config.idleShutdown()
	if d.config.DebugImmediateShutdown {
		grace = time.Second
	}

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	idleSince := time.Now()
	for {
		select {
		case <-d.ctx.Done():
			return
		case now := <-ticker.C:
			if atomic.LoadInt64(&d.clientCount) > 0 {
				idleSince = now
				continue
			}
			if now.Sub(idleSince) >= grace {
				log.Printf("no editor attached for %v, shutting down", grace)
				d.Stop()
				return
			}
		}
	}
}

func (d *Daemon) Stop() {
	if d.listener != nil {
		d.listener.Close()
	}
	d.cancel()
}

func (d *Daemon) cleanup() {
	os.Remove(d.paths.socket)
}

func (d *Daemon) writePidFile() {
	pid := os.Getpid()
	if err := os.WriteFile(d.paths.pid, []byte(strconv.Itoa(pid)), 0644); err != nil {
		log.Printf("warning: could not write PID file: %v", err)
	}
	log.Printf("server started with PID %d", pid)
}

func (d *Daemon) removePidFile() {
	if err := os.Remove(d.paths.pid); err != nil && !os.IsNotExist(err) {
		log.Printf("warning: could not remove PID file: %v", err)
	}
}

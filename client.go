package main

import (
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"intellirefactor/logger"
)

// Client relays the editor's stdio channel to the daemon socket.
type Client struct {
	paths runtimePaths
}

func NewClient(paths runtimePaths) *Client {
	return &Client{paths: paths}
}

func (c *Client) Connect() error {
	conn, err := net.Dial("unix", c.paths.socket)
	if err != nil {
		return err
	}
	defer conn.Close()

	// Relay between stdin/stdout and socket
	go func() {
		io.Copy(conn, os.Stdin)
		conn.Close()
	}()

	io.Copy(os.Stdout, conn)
	return nil
}

func (c *Client) EnsureDaemonRunning() error {
	running, pid := isDaemonRunning(c.paths.pid)
	if running {
		logger.Debug("daemon already running with PID %d", pid)
		return nil
	}

	return c.startDaemon()
}

func (c *Client) startDaemon() error {
	logger.Debug("starting daemon...")

	exe, err := os.Executable()
	if err != nil {
		return err
	}

	// The daemon inherits the environment, including INTELLIREFACTOR_CONFIG
	_, err = os.StartProcess(exe, []string{exe, "--daemon"}, &os.ProcAttr{
		Env: os.Environ(),
		Files: []*os.File{
			nil, // stdin
			nil, // stdout
			nil, // stderr
		},
	})
	if err != nil {
		return err
	}

	return c.waitForDaemon()
}

// waitForDaemon polls until the socket accepts connections. The PID file
// is written before the socket listens, so it alone is not enough.
func (c *Client) waitForDaemon() error {
	for range 50 { // Wait up to 5 seconds
		if running, _ := isDaemonRunning(c.paths.pid); running {
			if conn, err := net.Dial("unix", c.paths.socket); err == nil {
				conn.Close()
				logger.Debug("daemon started successfully")
				return nil
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("daemon failed to start within timeout")
}

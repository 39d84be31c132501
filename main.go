package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"intellirefactor/logger"
)

// runtimePaths are the files the daemon and its clients share. They live
// next to the executable so each install gets its own daemon.
type runtimePaths struct {
	socket string
	pid    string
	log    string
}

func defaultPaths() runtimePaths {
	execPath, err := os.Executable()
	if err != nil {
		log.Fatalf("error getting executable path: %v", err)
	}
	return pathsIn(filepath.Dir(execPath))
}

func pathsIn(dir string) runtimePaths {
	return runtimePaths{
		socket: filepath.Join(dir, "intellirefactor.sock"),
		pid:    filepath.Join(dir, "intellirefactor.pid"),
		log:    filepath.Join(dir, "intellirefactor.log"),
	}
}

// Setup logger to log to a file in the same directory as the executable
// Caller must defer logger.Close()
func setupLogger(path, logLevel string) *logger.LimitedLogger {
	limitedLogger, err := logger.Open(path, logger.ParseLogLevel(logLevel))
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	log.SetOutput(limitedLogger)
	return limitedLogger
}

func isDaemonRunning(pidPath string) (bool, int) {
	data, err := os.ReadFile(pidPath)
	if err != nil {
		return false, 0
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return false, 0
	}

	// Check if process is still running
	process, err := os.FindProcess(pid)
	if err != nil {
		return false, 0
	}

	// On Unix, Signal(0) checks if process exists
	err = process.Signal(syscall.Signal(0))
	return err == nil, pid
}

func runDaemon(paths runtimePaths) error {
	config, err := loadEnvConfig()
	if err != nil {
		return err
	}

	ll := setupLogger(paths.log, config.LogLevel)
	defer ll.Close()
	logger.Info("config: %+v", config)

	return NewDaemon(config, paths).Start()
}

func runClient(paths runtimePaths) error {
	client := NewClient(paths)

	if err := client.EnsureDaemonRunning(); err != nil {
		return err
	}
	return client.Connect()
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

package app

import (
	"os"
	"path/filepath"
	"syscall"
	"time"
)

// HotReloader watches the running binary and fires a callback once a newer
// build appears on disk. Development convenience; not started in release
// builds.
type HotReloader struct {
	execPath string
	baseline time.Time
	interval time.Duration
	stopCh   chan struct{}

	onNewBinary func()
}

// NewHotReloader watches the current executable, resolving symlinks so a
// rebuilt binary at the real path is noticed. Returns nil if the
// executable cannot be determined.
func NewHotReloader(interval time.Duration) *HotReloader {
	execPath, err := os.Executable()
	if err != nil {
		return nil
	}
	if realPath, err := filepath.EvalSymlinks(execPath); err == nil {
		execPath = realPath
	}
	info, err := os.Stat(execPath)
	if err != nil {
		return nil
	}
	return &HotReloader{
		execPath: execPath,
		baseline: info.ModTime(),
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// OnNewBinary sets the callback fired from the watch goroutine when a
// newer binary is detected.
func (h *HotReloader) OnNewBinary(fn func()) { h.onNewBinary = fn }

// ExecPath returns the watched binary path.
func (h *HotReloader) ExecPath() string { return h.execPath }

// Start begins watching in a background goroutine.
func (h *HotReloader) Start() {
	h.stopCh = make(chan struct{})
	go h.watch()
}

// Stop ends the watch goroutine.
func (h *HotReloader) Stop() { close(h.stopCh) }

// ResetBaseline accepts the current binary as up to date, suppressing
// repeat notifications after a declined restart.
func (h *HotReloader) ResetBaseline() {
	if info, err := os.Stat(h.execPath); err == nil {
		h.baseline = info.ModTime()
	}
}

func (h *HotReloader) watch() {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	for {
		select {
		case <-h.stopCh:
			return
		case <-ticker.C:
			info, err := os.Stat(h.execPath)
			if err != nil || !info.ModTime().After(h.baseline) {
				continue
			}
			Logger().Info("newer binary detected", "path", h.execPath)
			if h.onNewBinary != nil {
				h.onNewBinary()
			}
			return
		}
	}
}

// Restart replaces the current process with a fresh instance of the
// binary, preserving arguments and environment. Does not return on
// success.
func (h *HotReloader) Restart() error {
	return syscall.Exec(h.execPath, os.Args, os.Environ())
}

// Package debug provides a process-wide debug log gate, mirroring the
// call-site shape of debug.Logf seen across the teacher codebase: a
// package-level enabled flag plus a Logf that is a no-op unless
// debugging is turned on. When a log file path is configured, output
// rotates through lumberjack instead of growing an unbounded file.
package debug

import (
	"io"
	"log"
	"os"
	"sync"
	"sync/atomic"

	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	enabled int32
	mu      sync.Mutex
	logger  = log.New(os.Stderr, "", log.LstdFlags)
)

// Enable turns on debug logging. Safe to call concurrently.
func Enable() { atomic.StoreInt32(&enabled, 1) }

// Disable turns off debug logging.
func Disable() { atomic.StoreInt32(&enabled, 0) }

// Enabled reports whether debug logging is currently on.
func Enabled() bool { return atomic.LoadInt32(&enabled) == 1 }

// SetOutput redirects debug output, e.g. to a lumberjack rotating
// writer built by UseRotatingFile.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	logger = log.New(w, "", log.LstdFlags)
}

// UseRotatingFile points debug output at a size-rotated log file,
// matching the teacher's lumberjack-backed log rotation for its own
// application logs.
func UseRotatingFile(path string, maxSizeMB, maxBackups, maxAgeDays int) {
	SetOutput(&lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
		MaxAge:     maxAgeDays,
		Compress:   true,
	})
}

// Logf writes a formatted debug line if debugging is enabled. Entirely
// a no-op otherwise, so call sites are safe to sprinkle liberally at
// component suspension points (storage calls, persistence I/O,
// migration steps) without a performance cost when disabled.
func Logf(format string, args ...interface{}) {
	if !Enabled() {
		return
	}
	mu.Lock()
	l := logger
	mu.Unlock()
	l.Printf(format, args...)
}

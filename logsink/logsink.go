// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package logsink defines the logger sink collaborator the core emits
// progress and diagnostics through (spec.md §6). pointkit never depends on
// sink ordering for correctness: a Sink is an append-only, best-effort
// side channel.
package logsink

import (
	"fmt"
	"io"
	"sync"
)

// Level is a log severity, matching the {trace, debug, info, warn, error,
// critical} levels named in spec.md §6.
type Level int

const (
	Trace Level = iota
	Debug
	Info
	Warn
	Error
	Critical
)

func (l Level) String() string {
	switch l {
	case Trace:
		return "trace"
	case Debug:
		return "debug"
	case Info:
		return "info"
	case Warn:
		return "warn"
	case Error:
		return "error"
	case Critical:
		return "critical"
	default:
		return "unknown"
	}
}

// Sink receives structured log messages. Implementations must be safe for
// concurrent use: the worker goroutines in concurrent/pool log from
// multiple goroutines.
type Sink interface {
	Logf(level Level, format string, args ...any)
}

// nopSink discards everything. The zero value of Sink fields should use
// this rather than nil so components never need a nil check before logging.
type nopSink struct{}

func (nopSink) Logf(Level, string, ...any) {}

// Nop is the default no-op sink.
var Nop Sink = nopSink{}

// TextSink writes "LEVEL message" lines to an io.Writer, guarded by a mutex
// since the workers in concurrent/pool log from many goroutines
// concurrently.
type TextSink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewTextSink wraps w as a Sink.
func NewTextSink(w io.Writer) *TextSink {
	return &TextSink{w: w}
}

func (s *TextSink) Logf(level Level, format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.w, "%s %s\n", level, fmt.Sprintf(format, args...))
}

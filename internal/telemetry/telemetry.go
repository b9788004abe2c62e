// Copyright (C) 2024 Tessera Labs, Inc.
// See LICENSE for copying information.

// Package telemetry wires the engine's structured logging and metrics,
// grounded on the teacher's zap + monkit idiom (private/testmonkit,
// private/logging, and the mon.Task()(&ctx)(&err) instrumentation pattern
// used throughout the teacher's service packages).
package telemetry

import (
	"context"

	"github.com/spacemonkeygo/monkit/v3"
	"go.uber.org/zap"
)

var mon = monkit.Package()

// Scope bundles a named logger that a caller passes down to the code it
// drives (cmd/tesseractl hands one to each partition pipeline). It holds no
// metric scope, and neither ExecutorContext nor the streaming contexts
// carry one.
type Scope struct {
	Log *zap.Logger
}

// NewScope returns a Scope backed by log, or a no-op logger if log is nil.
func NewScope(log *zap.Logger) *Scope {
	if log == nil {
		log = zap.NewNop()
	}
	return &Scope{Log: log}
}

// Named returns a child scope with name appended to the logger's name,
// mirroring the teacher's convention of naming loggers after the owning
// component (e.g. zap.L().Named("rangedloop")).
func (s *Scope) Named(name string) *Scope {
	return &Scope{Log: s.Log.Named(name)}
}

// Task starts a monkit task span for the current function, returning a
// completion func that must be deferred with the named error return, e.g.:
//
//	func (c *Context) StreamMore(ctx context.Context) (_ int64, err error) {
//		defer telemetry.Task(&ctx)(&err)
//		...
//	}
func Task(ctx *context.Context) func(*error) {
	return mon.Task()(ctx)
}

// ProgressMonitor counts down a budget every N tuples and invokes report
// with the cumulative count once the budget is exhausted, mirroring spec.md
// §4.9's thread-local tuple-count publication. On Close it flushes any
// residual count below the threshold.
type ProgressMonitor struct {
	every     int64
	remaining int64
	total     int64
	report    func(tuplesProcessed int64)
}

// NewProgressMonitor returns a monitor that calls report every `every`
// tuples (and once more on Close for the residual).
func NewProgressMonitor(every int64, report func(tuplesProcessed int64)) *ProgressMonitor {
	if every <= 0 {
		every = 10000
	}
	return &ProgressMonitor{every: every, remaining: every, report: report}
}

// Advance counts n additional tuples as processed, invoking report once per
// `every`-tuple boundary crossed, with the exact cumulative total at that
// boundary (not just the total after the whole call).
func (p *ProgressMonitor) Advance(n int64) {
	for n > 0 {
		if n < p.remaining {
			p.remaining -= n
			p.total += n
			return
		}
		n -= p.remaining
		p.total += p.remaining
		p.remaining = p.every
		if p.report != nil {
			p.report(p.total)
		}
	}
}

// Close flushes the residual count not yet reported, per spec.md §4.9's
// "on destruction it flushes the residual".
func (p *ProgressMonitor) Close() {
	if p.report != nil {
		p.report(p.total)
	}
}

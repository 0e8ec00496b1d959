// Package queue implements the bounded ring buffer of parsed statements and
// deferred parse errors that decouples statement production (lexer +
// parser, driven by feed calls) from consumption (an external driver
// calling ExecNext at its own pace).
package queue

import (
	"log/slog"

	"github.com/lauckhart/klipper/ast"
	"github.com/lauckhart/klipper/eval"
	"github.com/lauckhart/klipper/host"
)

// entryKind discriminates a queue slot.
type entryKind int

const (
	entryStatement entryKind = iota
	entryError
)

type entry struct {
	kind entryKind
	stmt *ast.Node
	text string
}

// ResultKind discriminates what ExecNext produced.
type ResultKind int

const (
	ResultEmpty ResultKind = iota
	ResultCommand
	ResultError
)

// Result is what ExecNext hands back: exactly one of its fields is
// meaningful, selected by Kind. The strings are owned by the queue/
// evaluator and are only valid until the next ExecNext call, mirroring the
// scratch-buffer lifetime in eval.Evaluator.
type Result struct {
	Kind    ResultKind
	Command eval.Command
	Err     string
}

// initialCapacity matches the source material's ring buffer: it starts
// small and doubles on overflow rather than being sized for a worst case
// up front.
const initialCapacity = 32

// Queue is a bounded ring buffer. Capacity grows by doubling; growth always
// preserves FIFO order even when the occupied region wraps around the end
// of the backing array.
type Queue struct {
	buf   []entry
	head  int
	count int

	eval   *eval.Evaluator
	host   host.Host
	logger *slog.Logger
}

// Option configures a Queue at construction.
type Option func(*Queue)

// WithLogger attaches a structured logger; default discards all output.
func WithLogger(l *slog.Logger) Option {
	return func(q *Queue) { q.logger = l }
}

// New creates a Queue that evaluates drained statements against h.
func New(h host.Host, opts ...Option) *Queue {
	q := &Queue{
		buf:    make([]entry, initialCapacity),
		eval:   eval.New(h),
		host:   h,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, o := range opts {
		o(q)
	}
	return q
}

// Len reports current occupancy.
func (q *Queue) Len() int { return q.count }

func (q *Queue) tailIndex() int {
	return (q.head + q.count) % len(q.buf)
}

// grow doubles capacity, re-linearizing the occupied region so index 0 of
// the new backing array is the current logical head. Per invariant 4 in
// the source material, growth must preserve order when head > 0: the two
// wrapped segments are copied back-to-back rather than just reallocated
// in place.
func (q *Queue) grow() {
	newBuf := make([]entry, len(q.buf)*2)
	for i := 0; i < q.count; i++ {
		newBuf[i] = q.buf[(q.head+i)%len(q.buf)]
	}
	q.buf = newBuf
	q.head = 0
}

// PushStatement enqueues a fully-parsed statement, matching the Statement
// half of the callback a parser.Parser is constructed with.
func (q *Queue) PushStatement(stmt *ast.Node) bool {
	if q.count == len(q.buf) {
		q.grow()
	}
	q.buf[q.tailIndex()] = entry{kind: entryStatement, stmt: stmt}
	q.count++

	// M112 fires immediately on enqueue, before exec_next is ever called
	// for this or any earlier entry, per the emergency-stop priority rule.
	if isEmergencyStop(stmt) {
		q.host.M112()
	}
	return true
}

// PushError enqueues a standalone error entry -- used for both
// lexer/parser-reported errors (relayed by a parser.Parser's Error
// callback) and out-of-band notices the driver wants delivered in queue
// order.
func (q *Queue) PushError(msg string) bool {
	if q.count == len(q.buf) {
		q.grow()
	}
	q.buf[q.tailIndex()] = entry{kind: entryError, text: msg}
	q.count++
	return true
}

// isEmergencyStop reports whether a statement's first field is the literal
// word "M112" -- the only check the queue performs on a statement's
// content, since otherwise it's opaque to the core.
func isEmergencyStop(stmt *ast.Node) bool {
	first := stmt.Children
	return first != nil && first.Kind == ast.KindStr && first.Str == "M112"
}

// ExecNext pops the oldest entry and, for a statement, runs the evaluator
// on it. Whatever it produces -- a Command, an Error, or Empty if the
// queue was already drained -- is released immediately afterward; nothing
// about it is retained by the queue past this call.
func (q *Queue) ExecNext() (Result, int) {
	if q.count == 0 {
		return Result{Kind: ResultEmpty}, 0
	}
	e := q.buf[q.head]
	q.buf[q.head] = entry{} // drop references so the GC can reclaim the node
	q.head = (q.head + 1) % len(q.buf)
	q.count--

	switch e.kind {
	case entryError:
		q.host.Error(e.text)
		return Result{Kind: ResultError, Err: e.text}, q.count
	default:
		cmd, err := q.eval.Exec(e.stmt)
		ast.Delete(e.stmt)
		if err != nil {
			q.host.Error(err.Error())
			return Result{Kind: ResultError, Err: err.Error()}, q.count
		}
		q.host.Exec(cmd.Name, cmd.Fields)
		return Result{Kind: ResultCommand, Command: cmd}, q.count
	}
}

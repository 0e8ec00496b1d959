// Package pipeline wires the lexer, parser and queue into the single
// object a driver actually holds: the external interface described in
// spec §6 (queue_new / queue_feed / queue_feed_finish / queue_exec_next)
// collapsed onto one Go type plus constructor, since Go has no separate
// notion of an "executor" handle distinct from its context.
package pipeline

import (
	"fmt"
	"log/slog"

	"github.com/lauckhart/klipper/host"
	"github.com/lauckhart/klipper/lexer"
	"github.com/lauckhart/klipper/parser"
	"github.com/lauckhart/klipper/queue"
	"github.com/lauckhart/klipper/token"
)

// Pipeline is a single lexer -> parser -> queue instance bound to one host.
// It is not safe for concurrent use: feed and drain calls must be
// serialized by the driver, exactly as the source material specifies for
// the ring buffer they share (spec §5: "not internally synchronized").
type Pipeline struct {
	lex *lexer.Lexer
	par *parser.Parser
	q   *queue.Queue
}

// Option configures a Pipeline's stages at construction.
type Option func(*options)

type options struct {
	logger *slog.Logger
}

// WithLogger attaches a structured logger to every stage (lexer, parser,
// queue). Default discards all output.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// New builds a Pipeline bound to a host capability set. This is
// `queue_new(executor)` and `executor_new(context)` from spec §6
// collapsed into one call: nothing a Go caller could do with a bare
// executor handle that it couldn't already do with the host value itself.
func New(h host.Host, opts ...Option) *Pipeline {
	o := options{logger: slog.New(slog.DiscardHandler)}
	for _, fn := range opts {
		fn(&o)
	}

	q := queue.New(h, queue.WithLogger(o.logger))
	p := parser.New(parser.Callbacks{
		Statement: q.PushStatement,
		Error: func(msg string, span token.Span, suggestions []string) bool {
			return q.PushError(formatQueuedError(msg, span, suggestions))
		},
	}, parser.WithLogger(o.logger))

	l := lexer.New(p.LexerCallbacks(), lexer.WithLogger(o.logger))

	return &Pipeline{lex: l, par: p, q: q}
}

// formatQueuedError renders a lexical/syntactic error to the plain text the
// queue carries. Errors queued this way never get a source-line snippet --
// the core doesn't retain whole-line text once the lexer has scanned past
// it -- only location and, for a plausible keyword typo, a suggestion.
func formatQueuedError(msg string, span token.Span, suggestions []string) string {
	if len(suggestions) == 0 {
		return fmt.Sprintf("%s: %s", span.First, msg)
	}
	return fmt.Sprintf("%s: %s (did you mean %v?)", span.First, msg, suggestions)
}

// Feed runs buf through the lexer (and transitively the parser and
// queue), returning the queue's new occupancy. This is `queue_feed`.
func (p *Pipeline) Feed(buf []byte) (int, error) {
	if err := p.lex.Feed(buf); err != nil {
		return p.q.Len(), err
	}
	return p.q.Len(), nil
}

// FeedFinish flushes the lexer (a synthetic trailing newline if a
// statement is mid-flight) and returns the queue's new occupancy. This is
// `queue_feed_finish`.
func (p *Pipeline) FeedFinish() (int, error) {
	if err := p.lex.Finish(); err != nil {
		return p.q.Len(), err
	}
	return p.q.Len(), nil
}

// ExecNext drains the oldest queue entry. This is `queue_exec_next`.
func (p *Pipeline) ExecNext() (queue.Result, int) {
	return p.q.ExecNext()
}

// Len reports the queue's current occupancy without draining it.
func (p *Pipeline) Len() int { return p.q.Len() }

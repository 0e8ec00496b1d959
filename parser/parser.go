// Package parser implements the push-driven operator-precedence parser: the
// lexer calls into it one token at a time (via the Callbacks it hands to a
// lexer.Lexer), and it in turn calls back with completed statements and
// errors.
//
// Internally the parser buffers the tokens of the statement currently being
// built and runs a conventional recursive-descent precedence climb over
// that buffer once EndOfStatement closes it. This is a pull-style parse
// driven by a push-style feed: design note 9 in the source material calls
// out both shapes as satisfying the incrementality contract, and buffering
// at statement granularity (one line of input, typically a handful of
// tokens) keeps the climb itself ordinary recursive descent instead of an
// explicit shift-reduce machine.
package parser

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/lauckhart/klipper/ast"
	"github.com/lauckhart/klipper/lexer"
	"github.com/lauckhart/klipper/token"
)

// Callbacks is the capability set the parser invokes as it completes
// statements (or fails to).
type Callbacks struct {
	// Statement is called with a fully-built Statement node. A false return
	// has no further effect on this parser (there's nothing left to
	// abort), but is available for callers that want to signal downstream
	// failure, e.g. a queue that could not allocate space for it.
	Statement func(stmt *ast.Node) bool

	// Error is called for both lexical and syntactic failures. suggestions
	// is non-nil only for syntax errors near an unrecognized identifier
	// that closely matches a keyword.
	Error func(msg string, span token.Span, suggestions []string) bool
}

// tok is the parser's own lightweight token record, buffered for the
// duration of one statement.
type tok struct {
	typ   token.Type
	text  string
	i     int64
	f     float64
	span  token.Span
}

// Parser accumulates the tokens of one statement and parses it on
// EndOfStatement. It is not safe for concurrent use; nothing about it needs
// to be, since a pipeline is single-threaded by design (spec §5).
type Parser struct {
	cb     Callbacks
	logger *slog.Logger

	buf []tok

	lexErrored bool
	lexErrMsg  string
	lexErrSpan token.Span
}

// Option configures a Parser at construction.
type Option func(*Parser)

// WithLogger attaches a structured logger; default discards all output.
func WithLogger(l *slog.Logger) Option {
	return func(p *Parser) { p.logger = l }
}

// New creates a Parser. cb.Statement and cb.Error must both be non-nil.
func New(cb Callbacks, opts ...Option) *Parser {
	p := &Parser{
		cb:     cb,
		logger: slog.New(slog.DiscardHandler),
		buf:    make([]tok, 0, 16),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// LexerCallbacks wires this parser up as the consumer of a lexer.Lexer: pass
// the result to lexer.New.
func (p *Parser) LexerCallbacks() lexer.Callbacks {
	return lexer.Callbacks{
		Keyword:        p.onKeyword,
		Identifier:     p.onIdentifier,
		StrLiteral:     p.onStrLiteral,
		IntLiteral:     p.onIntLiteral,
		FloatLiteral:   p.onFloatLiteral,
		Bridge:         p.onBridge,
		EndOfStatement: p.onEndOfStatement,
		Error:          p.onLexError,
	}
}

func (p *Parser) push(t tok) bool {
	p.buf = append(p.buf, t)
	return true
}

func (p *Parser) onKeyword(t token.Type, span token.Span) bool {
	return p.push(tok{typ: t, span: span})
}

func (p *Parser) onIdentifier(text string, span token.Span) bool {
	return p.push(tok{typ: token.IDENTIFIER, text: text, span: span})
}

func (p *Parser) onStrLiteral(text string, span token.Span) bool {
	return p.push(tok{typ: token.STRING, text: text, span: span})
}

func (p *Parser) onIntLiteral(v int64, span token.Span) bool {
	return p.push(tok{typ: token.INT, i: v, span: span})
}

func (p *Parser) onFloatLiteral(v float64, span token.Span) bool {
	return p.push(tok{typ: token.FLOAT, f: v, span: span})
}

func (p *Parser) onBridge(span token.Span) bool {
	return p.push(tok{typ: token.BRIDGE, span: span})
}

// onLexError records a lexer-detected failure. Per the recovery contract,
// the parser must not emit its own syntax-error message for this
// statement; it waits for the matching EndOfStatement and reports the
// lexer's message in its place.
func (p *Parser) onLexError(msg string, span token.Span) bool {
	p.lexErrored = true
	p.lexErrSpan = span
	p.lexErrMsg = msg
	return true
}

func (p *Parser) onEndOfStatement(span token.Span) bool {
	defer func() {
		p.buf = p.buf[:0]
		p.lexErrored = false
	}()

	if p.lexErrored {
		return p.cb.Error(p.lexErrMsg, p.lexErrSpan, nil)
	}
	if len(p.buf) == 0 {
		return true // blank/comment-only line: no statement, no error
	}

	stmt, err := p.parseStatement()
	if err != nil {
		pe := err.(ParseError)
		return p.cb.Error(pe.Message, pe.Span, pe.Suggestions)
	}
	return p.cb.Statement(stmt)
}

// --- statement / field level ---

func (p *Parser) parseStatement() (*ast.Node, error) {
	stmt := ast.NewStatement()

	var pending *ast.Node
	bridging := false
	c := &cursor{toks: p.buf}

	flush := func(next *ast.Node) {
		if bridging && pending != nil {
			pending = ast.NewOp(ast.OpBridge, pending, next)
			bridging = false
			return
		}
		if pending != nil {
			ast.AddChild(stmt, pending)
		}
		pending = next
	}

	for !c.atEnd() {
		switch c.peek().typ {
		case token.BRIDGE:
			c.advance()
			bridging = true
		case token.LBRACE:
			c.advance()
			e, err := p.parseOr(c)
			if err != nil {
				return nil, err
			}
			if err := c.expect(token.RBRACE); err != nil {
				return nil, err
			}
			flush(e)
		case token.STRING:
			flush(ast.NewStr(c.peek().text).WithSpan(c.peek().span))
			c.advance()
		default:
			return nil, c.errorf("unexpected %s in statement", c.peek().typ)
		}
	}
	if pending != nil {
		ast.AddChild(stmt, pending)
	}
	return stmt, nil
}

// --- expression precedence climb, loosest to tightest per the precedence
// table in §3: or < and < = < ~ < +- < */% < comparisons < if/else
// < ** < ! < unary +- < . [] ---

func (p *Parser) parseOr(c *cursor) (*ast.Node, error) {
	left, err := p.parseAnd(c)
	if err != nil {
		return nil, err
	}
	for c.peek().typ == token.OR {
		c.advance()
		right, err := p.parseAnd(c)
		if err != nil {
			return nil, err
		}
		left = ast.NewOp(ast.OpOr, left, right)
	}
	return left, nil
}

func (p *Parser) parseAnd(c *cursor) (*ast.Node, error) {
	left, err := p.parseEq(c)
	if err != nil {
		return nil, err
	}
	for c.peek().typ == token.AND {
		c.advance()
		right, err := p.parseEq(c)
		if err != nil {
			return nil, err
		}
		left = ast.NewOp(ast.OpAnd, left, right)
	}
	return left, nil
}

func (p *Parser) parseEq(c *cursor) (*ast.Node, error) {
	left, err := p.parseConcat(c)
	if err != nil {
		return nil, err
	}
	for c.peek().typ == token.EQ {
		c.advance()
		right, err := p.parseConcat(c)
		if err != nil {
			return nil, err
		}
		left = ast.NewOp(ast.OpEq, left, right)
	}
	return left, nil
}

func (p *Parser) parseConcat(c *cursor) (*ast.Node, error) {
	left, err := p.parseAddSub(c)
	if err != nil {
		return nil, err
	}
	for c.peek().typ == token.CONCAT {
		c.advance()
		right, err := p.parseAddSub(c)
		if err != nil {
			return nil, err
		}
		left = ast.NewOp(ast.OpConcat, left, right)
	}
	return left, nil
}

func (p *Parser) parseAddSub(c *cursor) (*ast.Node, error) {
	left, err := p.parseMulDivMod(c)
	if err != nil {
		return nil, err
	}
	for {
		var op ast.Op
		switch c.peek().typ {
		case token.PLUS:
			op = ast.OpAdd
		case token.MINUS:
			op = ast.OpSub
		default:
			return left, nil
		}
		c.advance()
		right, err := p.parseMulDivMod(c)
		if err != nil {
			return nil, err
		}
		left = ast.NewOp(op, left, right)
	}
}

func (p *Parser) parseMulDivMod(c *cursor) (*ast.Node, error) {
	left, err := p.parseCompare(c)
	if err != nil {
		return nil, err
	}
	for {
		var op ast.Op
		switch c.peek().typ {
		case token.STAR:
			op = ast.OpMul
		case token.SLASH:
			op = ast.OpDiv
		case token.PCT:
			op = ast.OpMod
		default:
			return left, nil
		}
		c.advance()
		right, err := p.parseCompare(c)
		if err != nil {
			return nil, err
		}
		left = ast.NewOp(op, left, right)
	}
}

func (p *Parser) parseCompare(c *cursor) (*ast.Node, error) {
	left, err := p.parseTernary(c)
	if err != nil {
		return nil, err
	}
	for {
		var op ast.Op
		switch c.peek().typ {
		case token.LT:
			op = ast.OpLt
		case token.GT:
			op = ast.OpGt
		case token.LE:
			op = ast.OpLe
		case token.GE:
			op = ast.OpGe
		default:
			return left, nil
		}
		c.advance()
		right, err := p.parseTernary(c)
		if err != nil {
			return nil, err
		}
		left = ast.NewOp(op, left, right)
	}
}

// parseTernary implements `a if b else c`, right-associative: the else
// branch is parsed at this same level so that chained ternaries nest on
// the right (`a if b else c if d else e` == `a if b else (c if d else e)`).
// The condition itself is bounded by the literal "else" keyword rather
// than by precedence, so it is parsed starting at the loosest level.
func (p *Parser) parseTernary(c *cursor) (*ast.Node, error) {
	left, err := p.parsePow(c)
	if err != nil {
		return nil, err
	}
	if c.peek().typ != token.IF {
		return left, nil
	}
	c.advance()
	cond, err := p.parseOr(c)
	if err != nil {
		return nil, err
	}
	if err := c.expect(token.ELSE); err != nil {
		return nil, err
	}
	falseBranch, err := p.parseTernary(c)
	if err != nil {
		return nil, err
	}
	return ast.NewOp(ast.OpTernary, left, cond, falseBranch), nil
}

func (p *Parser) parsePow(c *cursor) (*ast.Node, error) {
	left, err := p.parseNot(c)
	if err != nil {
		return nil, err
	}
	for c.peek().typ == token.POW {
		c.advance()
		right, err := p.parseNot(c)
		if err != nil {
			return nil, err
		}
		left = ast.NewOp(ast.OpPow, left, right)
	}
	return left, nil
}

func (p *Parser) parseNot(c *cursor) (*ast.Node, error) {
	if c.peek().typ == token.NOT {
		c.advance()
		operand, err := p.parseUnaryPM(c)
		if err != nil {
			return nil, err
		}
		return ast.NewOp(ast.OpNot, operand), nil
	}
	return p.parseUnaryPM(c)
}

func (p *Parser) parseUnaryPM(c *cursor) (*ast.Node, error) {
	switch c.peek().typ {
	case token.MINUS:
		c.advance()
		operand, err := p.parseUnaryPM(c)
		if err != nil {
			return nil, err
		}
		return ast.NewOp(ast.OpNeg, operand), nil
	case token.PLUS:
		c.advance()
		operand, err := p.parseUnaryPM(c)
		if err != nil {
			return nil, err
		}
		return ast.NewOp(ast.OpPos, operand), nil
	default:
		return p.parsePostfix(c)
	}
}

func (p *Parser) parsePostfix(c *cursor) (*ast.Node, error) {
	left, err := p.parsePrimary(c)
	if err != nil {
		return nil, err
	}
	for {
		switch c.peek().typ {
		case token.DOT:
			c.advance()
			if c.peek().typ != token.IDENTIFIER {
				return nil, c.errorf("expected a name after '.'")
			}
			name := ast.NewParam(c.peek().text).WithSpan(c.peek().span)
			c.advance()
			left = ast.NewOp(ast.OpMember, left, name)
		case token.LBRACKET:
			c.advance()
			idx, err := p.parseOr(c)
			if err != nil {
				return nil, err
			}
			if err := c.expect(token.RBRACKET); err != nil {
				return nil, err
			}
			left = ast.NewOp(ast.OpIndex, left, idx)
		default:
			return left, nil
		}
	}
}

func (p *Parser) parsePrimary(c *cursor) (*ast.Node, error) {
	t := c.peek()
	switch t.typ {
	case token.LPAREN:
		c.advance()
		e, err := p.parseOr(c)
		if err != nil {
			return nil, err
		}
		if err := c.expect(token.RPAREN); err != nil {
			return nil, err
		}
		return e, nil
	case token.STRING:
		c.advance()
		return ast.NewStr(t.text).WithSpan(t.span), nil
	case token.INT:
		c.advance()
		return ast.NewInt(t.i).WithSpan(t.span), nil
	case token.FLOAT:
		c.advance()
		return ast.NewFloat(t.f).WithSpan(t.span), nil
	case token.TRUE:
		c.advance()
		return ast.NewBool(true).WithSpan(t.span), nil
	case token.FALSE:
		c.advance()
		return ast.NewBool(false).WithSpan(t.span), nil
	case token.INF:
		c.advance()
		return ast.NewFloat(math.Inf(1)).WithSpan(t.span), nil
	case token.NAN:
		c.advance()
		return ast.NewFloat(math.NaN()).WithSpan(t.span), nil
	case token.IDENTIFIER:
		c.advance()
		if c.peek().typ == token.LPAREN {
			c.advance()
			args, err := p.parseArgs(c)
			if err != nil {
				return nil, err
			}
			if err := c.expect(token.RPAREN); err != nil {
				return nil, err
			}
			return ast.NewFunc(t.text, args...).WithSpan(t.span), nil
		}
		return ast.NewParam(t.text).WithSpan(t.span), nil
	default:
		if sug := c.identifierSuggestions(); sug != nil {
			return nil, ParseError{
				Message:     fmt.Sprintf("unexpected %s in expression", t.typ),
				Span:        t.span,
				Suggestions: sug,
			}
		}
		return nil, c.errorf("unexpected %s in expression", t.typ)
	}
}

func (p *Parser) parseArgs(c *cursor) ([]*ast.Node, error) {
	if c.peek().typ == token.RPAREN {
		return nil, nil
	}
	first, err := p.parseOr(c)
	if err != nil {
		return nil, err
	}
	args := []*ast.Node{first}
	for c.peek().typ == token.COMMA {
		c.advance()
		next, err := p.parseOr(c)
		if err != nil {
			return nil, err
		}
		args = append(args, next)
	}
	return args, nil
}

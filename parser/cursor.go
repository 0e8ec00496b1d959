package parser

import (
	"fmt"

	"github.com/lauckhart/klipper/token"
)

// cursor walks a buffered statement's tokens. A synthetic ENDOFSTATEMENT-ish
// sentinel isn't needed: atEnd reports true once the cursor runs past the
// buffered slice, and peek returns a zero-value EOF-typed token past the
// end so callers never index out of range.
type cursor struct {
	toks []tok
	pos  int
}

func (c *cursor) atEnd() bool { return c.pos >= len(c.toks) }

func (c *cursor) peek() tok {
	if c.atEnd() {
		return tok{typ: token.EOF}
	}
	return c.toks[c.pos]
}

func (c *cursor) advance() { c.pos++ }

// expect consumes the current token if it matches want, else produces a
// ParseError (with a keyword suggestion when the offending token is an
// identifier that's a plausible typo).
func (c *cursor) expect(want token.Type) error {
	if c.peek().typ == want {
		c.advance()
		return nil
	}
	return c.errorf("expected %s, got %s", want, c.peek().typ)
}

func (c *cursor) errorf(format string, args ...any) error {
	t := c.peek()
	return ParseError{
		Message:     fmt.Sprintf(format, args...),
		Span:        t.span,
		Suggestions: c.identifierSuggestions(),
	}
}

// identifierSuggestions returns did-you-mean keyword candidates when the
// current token is an identifier that closely resembles a registered
// keyword -- the usual shape of a typo like "adn" for "and".
func (c *cursor) identifierSuggestions() []string {
	t := c.peek()
	if t.typ != token.IDENTIFIER {
		return nil
	}
	return suggestKeywords(t.text)
}

package parser

import (
	"fmt"

	"github.com/lauckhart/klipper/token"
)

// ParseError is a syntactic error: a source location plus an optional set
// of did-you-mean keyword suggestions. It deliberately carries no source
// text and renders no code snippet -- the core is fed incrementally and
// doesn't retain whole-line text once the lexer has scanned past it.
// Pretty-printing with a Rust/Clang-style snippet is the presentation
// layer's job once it has both the span and the original source -- this
// module's reference driver doesn't keep one around, so it renders plain
// location-prefixed text instead.
type ParseError struct {
	Message     string
	Span        token.Span
	Suggestions []string
}

func (e ParseError) Error() string {
	if len(e.Suggestions) == 0 {
		return fmt.Sprintf("%s: %s", e.Span.First, e.Message)
	}
	return fmt.Sprintf("%s: %s (did you mean %v?)", e.Span.First, e.Message, e.Suggestions)
}

package lexer

import (
	"fmt"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lauckhart/klipper/token"
)

// assertSameEvents diffs two event sequences with cmp, the way the source
// material diffs plan trees in its roundtrip tests -- a plain require.Equal
// failure on a 50-event slice just dumps both slices; a diff pinpoints the
// first divergent event instead.
func assertSameEvents(t *testing.T, want, got []event, msgAndArgs ...any) {
	t.Helper()
	if diff := cmp.Diff(want, got, cmp.AllowUnexported(event{})); diff != "" {
		t.Errorf("event sequence mismatch (-want +got):\n%s (%v)", diff, msgAndArgs)
	}
}

// event is a flattened recording of one callback invocation, used so test
// tables can compare against a plain value instead of re-implementing each
// callback's signature per assertion.
type event struct {
	kind string
	typ  token.Type
	text string
	i    int64
	f    float64
}

func (e event) String() string {
	return fmt.Sprintf("%s(%v,%q,%d,%v)", e.kind, e.typ, e.text, e.i, e.f)
}

// newEventLexer wires every callback to append a flattened event to events,
// shared by every harness below that needs a fresh Lexer instance (a plain
// one-shot feed, a split-feed, or a fuzz target).
func newEventLexer(events *[]event) *Lexer {
	return New(Callbacks{
		Keyword: func(typ token.Type, _ token.Span) bool {
			*events = append(*events, event{kind: "keyword", typ: typ})
			return true
		},
		Identifier: func(text string, _ token.Span) bool {
			*events = append(*events, event{kind: "identifier", text: text})
			return true
		},
		StrLiteral: func(text string, _ token.Span) bool {
			*events = append(*events, event{kind: "str", text: text})
			return true
		},
		IntLiteral: func(v int64, _ token.Span) bool {
			*events = append(*events, event{kind: "int", i: v})
			return true
		},
		FloatLiteral: func(v float64, _ token.Span) bool {
			*events = append(*events, event{kind: "float", f: v})
			return true
		},
		Bridge: func(_ token.Span) bool {
			*events = append(*events, event{kind: "bridge"})
			return true
		},
		EndOfStatement: func(_ token.Span) bool {
			*events = append(*events, event{kind: "eos"})
			return true
		},
		Error: func(msg string, _ token.Span) bool {
			*events = append(*events, event{kind: "error", text: msg})
			return true
		},
	})
}

func collect(t *testing.T, input string) []event {
	t.Helper()
	var events []event
	lx := newEventLexer(&events)
	require.NoError(t, lx.Feed([]byte(input)))
	require.NoError(t, lx.Finish())
	return events
}

// collectSplit feeds input in two calls, split at byte offset n, and
// returns the resulting event sequence.
func collectSplit(t *testing.T, input string, n int) []event {
	t.Helper()
	var events []event
	lx := newEventLexer(&events)
	require.NoError(t, lx.Feed([]byte(input[:n])))
	require.NoError(t, lx.Feed([]byte(input[n:])))
	require.NoError(t, lx.Finish())
	return events
}

func TestWordsAreUppercasedAndLineNumberDiscarded(t *testing.T) {
	events := collect(t, "N42 g1 x10\n")
	assert.Equal(t, []event{
		{kind: "str", text: "G1"},
		{kind: "str", text: "X10"},
		{kind: "eos"},
	}, events)
}

func TestBlankAndCommentOnlyLinesProduceNoStatement(t *testing.T) {
	events := collect(t, "; comment only\n\n  ; blank\n")
	assert.Empty(t, events)
}

func TestTrailingCommentEndsStatement(t *testing.T) {
	events := collect(t, "M18 ; stop everything\n")
	assert.Equal(t, []event{
		{kind: "str", text: "M18"},
		{kind: "eos"},
	}, events)
}

func TestExpressionFieldBridgesWithAdjacentWord(t *testing.T) {
	events := collect(t, "G1 X{1}\n")
	assert.Equal(t, []event{
		{kind: "str", text: "G1"},
		{kind: "str", text: "X"},
		{kind: "bridge"},
		{kind: "keyword", typ: token.LBRACE},
		{kind: "int", i: 1},
		{kind: "keyword", typ: token.RBRACE},
		{kind: "eos"},
	}, events)
}

func TestKeywordIdentifierExclusivityInsideExpression(t *testing.T) {
	tests := []struct {
		word string
		want event
	}{
		{"and", event{kind: "keyword", typ: token.AND}},
		{"OR", event{kind: "keyword", typ: token.OR}},
		{"if", event{kind: "keyword", typ: token.IF}},
		{"foo", event{kind: "identifier", text: "FOO"}},
		{"andy", event{kind: "identifier", text: "ANDY"}},
	}
	for _, tt := range tests {
		t.Run(tt.word, func(t *testing.T) {
			events := collect(t, "G1 X{"+tt.word+"}\n")
			// events[0] is the "G1" word, [1] the bridged "X", then bridge,
			// LBRACE, the token under test, RBRACE, EOS.
			require.Len(t, events, 7)
			assert.Equal(t, tt.want, events[4])
		})
	}
}

func TestIntegerLiteralBases(t *testing.T) {
	tests := []struct {
		name string
		expr string
		want int64
	}{
		{"decimal", "10", 10},
		{"binary", "0b101", 5},
		{"octal", "017", 15},
		{"hex", "0x1F", 31},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events := collect(t, "G1 X{"+tt.expr+"}\n")
			require.Len(t, events, 7)
			assert.Equal(t, event{kind: "int", i: tt.want}, events[4])
		})
	}
}

func TestFloatLiteralForms(t *testing.T) {
	tests := []struct {
		name string
		expr string
		want float64
	}{
		{"decimal point", "1.5", 1.5},
		{"leading digit exponent", "1e2", 100},
		{"negative exponent", "1E-2", 0.01},
		{"hex float", "0x1.8p4", 24},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events := collect(t, "G1 X{"+tt.expr+"}\n")
			require.Len(t, events, 7)
			require.Equal(t, "float", events[4].kind)
			assert.InDelta(t, tt.want, events[4].f, 1e-9)
		})
	}
}

func TestInfAndNanAreFloatKeywords(t *testing.T) {
	events := collect(t, "G1 X{INF}\n")
	require.Len(t, events, 7)
	require.Equal(t, "float", events[4].kind)
	assert.True(t, math.IsInf(events[4].f, 1))

	events = collect(t, "G1 X{nan}\n")
	require.Len(t, events, 7)
	require.Equal(t, "float", events[4].kind)
	assert.True(t, math.IsNaN(events[4].f))
}

func TestStringEscapes(t *testing.T) {
	tests := []struct {
		name string
		expr string
		want string
	}{
		{"simple escapes", `"a\tb\n"`, "a\tb\n"},
		{"octal escape", `"\101"`, "A"},
		{"hex escape", `"\x41"`, "A"},
		{"unicode escape", `"\u00e9"`, "é"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events := collect(t, "M117 {"+tt.expr+"}\n")
			require.Len(t, events, 7)
			require.Equal(t, "str", events[4].kind)
			assert.Equal(t, tt.want, events[4].text)
		})
	}
}

func TestUnterminatedStringIsLexicalErrorAndRecovers(t *testing.T) {
	events := collect(t, "G1 X{\"oops\nM18\n")
	assert.Equal(t, []event{
		{kind: "str", text: "G1"},
		{kind: "str", text: "X"},
		{kind: "bridge"},
		{kind: "keyword", typ: token.LBRACE},
		{kind: "error", text: "unterminated string"},
		{kind: "eos"},
		{kind: "str", text: "M18"},
		{kind: "eos"},
	}, events)
}

func TestIncrementalFeedEquivalence(t *testing.T) {
	input := "N10 G1 X{1+2*3} Y{foo.bar}\nM117 {\"hi\" ~ \" there\"}\n"
	whole := collect(t, input)

	for split := 0; split <= len(input); split++ {
		assertSameEvents(t, whole, collectSplit(t, input, split), "split at byte", split)
	}
}

// FuzzIncrementalFeedEquivalence is the fuzzing counterpart of
// TestIncrementalFeedEquivalence, grounded on the teacher's
// runtime/parser/fuzz_test.go: rather than walking every split point of a
// handful of fixed inputs, it lets go test's mutation engine explore both
// the input bytes and the split offset. The invariant under test is
// spec §8.1 -- feeding a statement in two pieces must produce exactly the
// same callback sequence as feeding it whole.
func FuzzIncrementalFeedEquivalence(f *testing.F) {
	f.Add("N10 G1 X{1+2*3} Y{foo.bar}\nM117 {\"hi\" ~ \" there\"}\n", 10)
	f.Add("G1 X{\"oops\nM18\n", 5)
	f.Add("; comment only\n\n  ; blank\n", 1)
	f.Add("G1 X{1 adn 2}\n", 8)
	f.Add("", 0)

	f.Fuzz(func(t *testing.T, input string, split int) {
		n := len(input)
		if n == 0 {
			split = 0
		} else {
			split = ((split % (n + 1)) + (n + 1)) % (n + 1)
		}
		whole := collect(t, input)
		assertSameEvents(t, whole, collectSplit(t, input, split), "split at byte", split)
	})
}

// Package host defines the capability set the core pipeline calls out to:
// value lookups, dict-to-string rendering, statement dispatch, and the
// fatal/M112/error notifications. The core never dereferences a Dict
// handle; it is opaque host-owned data threaded through Value.
package host

import "fmt"

// Kind discriminates the variant a Value holds.
type Kind int

const (
	KindStr Kind = iota
	KindBool
	KindInt
	KindFloat
	KindDict
)

func (k Kind) String() string {
	switch k {
	case KindStr:
		return "str"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindDict:
		return "dict"
	default:
		return "unknown"
	}
}

// rank gives the widening order used by equality/relational coercion:
// Dict < Str < Bool < Int < Float.
func (k Kind) rank() int {
	switch k {
	case KindDict:
		return 0
	case KindStr:
		return 1
	case KindBool:
		return 2
	case KindInt:
		return 3
	case KindFloat:
		return 4
	default:
		return -1
	}
}

// Value is the runtime tagged union: Str, Bool, Int, Float or Dict. Dict is
// an opaque handle owned by the host; the core never inspects it beyond
// passing it back through Lookup/Serialize.
type Value struct {
	Kind  Kind
	Str   string
	Bool  bool
	Int   int64
	Float float64
	Dict  any
}

func Str(s string) Value    { return Value{Kind: KindStr, Str: s} }
func Bool(b bool) Value     { return Value{Kind: KindBool, Bool: b} }
func Int(i int64) Value     { return Value{Kind: KindInt, Int: i} }
func Float(f float64) Value { return Value{Kind: KindFloat, Float: f} }
func Dict(handle any) Value { return Value{Kind: KindDict, Dict: handle} }

func (v Value) String() string {
	return fmt.Sprintf("%s(%v)", v.Kind, v.raw())
}

func (v Value) raw() any {
	switch v.Kind {
	case KindStr:
		return v.Str
	case KindBool:
		return v.Bool
	case KindInt:
		return v.Int
	case KindFloat:
		return v.Float
	default:
		return v.Dict
	}
}

// WidensOver reports whether v's kind is ranked at or above other's, for
// the Dict < Str < Bool < Int < Float widening order used by equality and
// relational operators.
func (v Value) WidensOver(other Value) bool {
	return v.Kind.rank() >= other.Kind.rank()
}

// Host is the capability set a pipeline is constructed with. All methods
// are called synchronously from within Feed/FeedFinish/ExecNext and must
// return promptly; there are no suspension points in the core.
type Host interface {
	// Lookup resolves key against parent (nil for a root Param lookup, or
	// the Dict handle from a preceding member/index operand). ok is false
	// when the key could not be resolved, which the evaluator surfaces as
	// a name-resolution error.
	Lookup(key string, parent *Value) (value Value, ok bool)

	// Serialize renders a Dict handle to its string form for Str
	// coercion. Implementations may return ("", false) to fall back to
	// the literal "<obj>".
	Serialize(handle any) (string, bool)

	// Exec dispatches one flattened statement. The queue calls it from
	// ExecNext and ignores its bool result: false neither aborts the
	// pipeline nor changes the Result that ExecNext returns.
	Exec(command string, fields []string) bool

	// Error reports a recoverable error associated with a statement.
	Error(msg string)

	// Fatal reports an unrecoverable allocation failure. The pipeline is
	// left in an undefined state after this call.
	Fatal(msg string)

	// M112 fires the emergency-stop notification. Delivered on parse,
	// before the statement is ever handed to Exec.
	M112()
}

// Package eval walks a parsed statement, reduces every embedded expression
// tree to a host.Value, serializes the result to text, and flattens the
// statement into a (command, fields[]) pair ready for dispatch.
package eval

import (
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/lauckhart/klipper/ast"
	"github.com/lauckhart/klipper/host"
)

func floatPow(base, exp float64) float64 { return math.Pow(base, exp) }

// Command is the flattened result of a successful exec: the first field is
// the command name, the rest are its arguments, both already serialized to
// text.
type Command struct {
	Name   string
	Fields []string
}

// EvalError reports a failure during expression reduction or statement
// flattening -- unknown name, bad coercion, division by zero, or a host
// callback declining a lookup.
type EvalError struct {
	Message string
}

func (e EvalError) Error() string { return e.Message }

// Evaluator carries a scratch builder that Exec resets at the start of
// every call rather than freeing and reallocating it. Expression
// evaluation builds its field strings as ordinary Go strings, not in this
// builder.
type Evaluator struct {
	host   host.Host
	logger *slog.Logger

	scratch strings.Builder
}

// Option configures an Evaluator at construction.
type Option func(*Evaluator)

// WithLogger attaches a structured logger; default discards all output.
func WithLogger(l *slog.Logger) Option {
	return func(e *Evaluator) { e.logger = l }
}

// New creates an Evaluator bound to a host capability set.
func New(h host.Host, opts ...Option) *Evaluator {
	e := &Evaluator{
		host:   h,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Exec flattens stmt into a Command, or returns an EvalError describing why
// it couldn't. stmt must have at least one field (the parser never builds
// an empty Statement; blank/comment lines never reach here).
func (e *Evaluator) Exec(stmt *ast.Node) (Command, error) {
	e.scratch.Reset()

	var fields []string
	for field := stmt.Children; field != nil; field = field.Next {
		v, err := e.evalNode(field)
		if err != nil {
			return Command{}, err
		}
		text, err := e.toStr(v)
		if err != nil {
			return Command{}, err
		}
		fields = append(fields, text)
	}
	if len(fields) == 0 {
		return Command{}, EvalError{Message: "statement has no fields"}
	}
	return Command{Name: fields[0], Fields: fields[1:]}, nil
}

// evalNode reduces an expression (or literal, or bridge-concatenated
// field) node to a runtime Value. Evaluation is recursive post-order: every
// operand is fully reduced before the operator is applied.
func (e *Evaluator) evalNode(n *ast.Node) (host.Value, error) {
	switch n.Kind {
	case ast.KindStr:
		return host.Str(n.Str), nil
	case ast.KindInt:
		return host.Int(n.Int), nil
	case ast.KindFloat:
		return host.Float(n.Float), nil
	case ast.KindBool:
		return host.Bool(n.Bool), nil
	case ast.KindParam:
		v, ok := e.host.Lookup(n.Str, nil)
		if !ok {
			return host.Value{}, EvalError{Message: fmt.Sprintf("unknown parameter %q", n.Str)}
		}
		return v, nil
	case ast.KindFunc:
		return e.evalFunc(n)
	case ast.KindOp:
		return e.evalOp(n)
	default:
		return host.Value{}, EvalError{Message: fmt.Sprintf("unevaluable node kind %s", n.Kind)}
	}
}

func (e *Evaluator) evalFunc(n *ast.Node) (host.Value, error) {
	if ast.ChildCount(n) != 1 {
		return host.Value{}, EvalError{Message: fmt.Sprintf("%s() takes exactly one argument", n.Str)}
	}
	arg, err := e.evalNode(n.Children)
	if err != nil {
		return host.Value{}, err
	}
	switch n.Str {
	case "STR":
		s, err := e.toStr(arg)
		if err != nil {
			return host.Value{}, err
		}
		return host.Str(s), nil
	case "BOOL":
		return host.Bool(e.toBool(arg)), nil
	case "INT":
		return e.toInt(arg)
	case "FLOAT":
		return e.toFloat(arg)
	default:
		return host.Value{}, EvalError{Message: fmt.Sprintf("unknown function %q", n.Str)}
	}
}

func (e *Evaluator) evalOp(n *ast.Node) (host.Value, error) {
	switch n.Op {
	case ast.OpOr, ast.OpAnd:
		return e.evalBoolOp(n)
	case ast.OpEq:
		return e.evalEq(n)
	case ast.OpLt, ast.OpGt, ast.OpLe, ast.OpGe:
		return e.evalCompare(n)
	case ast.OpConcat:
		return e.evalConcat(n)
	case ast.OpAdd, ast.OpSub, ast.OpMul, ast.OpDiv:
		return e.evalArith(n)
	case ast.OpMod:
		return e.evalMod(n)
	case ast.OpPow:
		return e.evalPow(n)
	case ast.OpNot:
		return e.evalNot(n)
	case ast.OpNeg, ast.OpPos:
		return e.evalUnarySign(n)
	case ast.OpMember, ast.OpIndex:
		return e.evalLookup(n)
	case ast.OpTernary:
		return e.evalTernary(n)
	case ast.OpBridge:
		return e.evalBridge(n)
	default:
		return host.Value{}, EvalError{Message: fmt.Sprintf("unhandled operator %s", n.Op)}
	}
}

func operand(n *ast.Node, i int) *ast.Node {
	c := n.Children
	for ; i > 0 && c != nil; i-- {
		c = c.Next
	}
	return c
}

// evalBoolOp implements `and`/`or`. Per the source material's documented
// (non-short-circuit) semantics, both sides are always evaluated.
func (e *Evaluator) evalBoolOp(n *ast.Node) (host.Value, error) {
	lv, err := e.evalNode(operand(n, 0))
	if err != nil {
		return host.Value{}, err
	}
	rv, err := e.evalNode(operand(n, 1))
	if err != nil {
		return host.Value{}, err
	}
	l, r := e.toBool(lv), e.toBool(rv)
	if n.Op == ast.OpAnd {
		return host.Bool(l && r), nil
	}
	return host.Bool(l || r), nil
}

// widen picks the common type two values must be coerced to for equality
// and relational comparison: Dict < Str < Bool < Int < Float.
func widen(l, r host.Value) host.Kind {
	if l.WidensOver(r) {
		return l.Kind
	}
	return r.Kind
}

func (e *Evaluator) coerceTo(v host.Value, k host.Kind) (host.Value, error) {
	switch k {
	case host.KindStr:
		s, err := e.toStr(v)
		return host.Str(s), err
	case host.KindBool:
		return host.Bool(e.toBool(v)), nil
	case host.KindInt:
		return e.toInt(v)
	case host.KindFloat:
		return e.toFloat(v)
	default:
		return v, nil
	}
}

func (e *Evaluator) evalEq(n *ast.Node) (host.Value, error) {
	lv, err := e.evalNode(operand(n, 0))
	if err != nil {
		return host.Value{}, err
	}
	rv, err := e.evalNode(operand(n, 1))
	if err != nil {
		return host.Value{}, err
	}
	eq, err := e.valuesEqual(lv, rv)
	if err != nil {
		return host.Value{}, err
	}
	return host.Bool(eq), nil
}

func (e *Evaluator) valuesEqual(lv, rv host.Value) (bool, error) {
	k := widen(lv, rv)
	l, err := e.coerceTo(lv, k)
	if err != nil {
		return false, err
	}
	r, err := e.coerceTo(rv, k)
	if err != nil {
		return false, err
	}
	switch k {
	case host.KindStr:
		return l.Str == r.Str, nil
	case host.KindBool:
		return l.Bool == r.Bool, nil
	case host.KindInt:
		return l.Int == r.Int, nil
	case host.KindFloat:
		return l.Float == r.Float, nil
	default:
		return false, EvalError{Message: "dict values are not comparable"}
	}
}

func (e *Evaluator) evalCompare(n *ast.Node) (host.Value, error) {
	lv, err := e.evalNode(operand(n, 0))
	if err != nil {
		return host.Value{}, err
	}
	rv, err := e.evalNode(operand(n, 1))
	if err != nil {
		return host.Value{}, err
	}
	k := widen(lv, rv)
	if k == host.KindDict {
		return host.Value{}, EvalError{Message: "dict values are not ordered"}
	}
	l, err := e.coerceTo(lv, k)
	if err != nil {
		return host.Value{}, err
	}
	r, err := e.coerceTo(rv, k)
	if err != nil {
		return host.Value{}, err
	}
	var less, equal bool
	switch k {
	case host.KindStr:
		less, equal = l.Str < r.Str, l.Str == r.Str
	case host.KindBool:
		less, equal = !l.Bool && r.Bool, l.Bool == r.Bool
	case host.KindInt:
		less, equal = l.Int < r.Int, l.Int == r.Int
	case host.KindFloat:
		less, equal = l.Float < r.Float, l.Float == r.Float
	}
	switch n.Op {
	case ast.OpLt:
		return host.Bool(less), nil
	case ast.OpLe:
		return host.Bool(less || equal), nil
	case ast.OpGt:
		return host.Bool(!less && !equal), nil
	default: // OpGe
		return host.Bool(!less), nil
	}
}

func (e *Evaluator) evalConcat(n *ast.Node) (host.Value, error) {
	lv, err := e.evalNode(operand(n, 0))
	if err != nil {
		return host.Value{}, err
	}
	rv, err := e.evalNode(operand(n, 1))
	if err != nil {
		return host.Value{}, err
	}
	ls, err := e.toStr(lv)
	if err != nil {
		return host.Value{}, err
	}
	rs, err := e.toStr(rv)
	if err != nil {
		return host.Value{}, err
	}
	return host.Str(ls + rs), nil
}

// evalBridge is the synthetic concatenation the lexer inserts between a
// literal word and an adjacent expression (or two adjacent expressions);
// it behaves exactly like `~`.
func (e *Evaluator) evalBridge(n *ast.Node) (host.Value, error) {
	return e.evalConcat(n)
}

func (e *Evaluator) evalArith(n *ast.Node) (host.Value, error) {
	lv, err := e.evalNode(operand(n, 0))
	if err != nil {
		return host.Value{}, err
	}
	rv, err := e.evalNode(operand(n, 1))
	if err != nil {
		return host.Value{}, err
	}
	if lv.Kind == host.KindFloat || rv.Kind == host.KindFloat {
		lf, err := e.toFloatVal(lv)
		if err != nil {
			return host.Value{}, err
		}
		rf, err := e.toFloatVal(rv)
		if err != nil {
			return host.Value{}, err
		}
		switch n.Op {
		case ast.OpAdd:
			return host.Float(lf + rf), nil
		case ast.OpSub:
			return host.Float(lf - rf), nil
		case ast.OpMul:
			return host.Float(lf * rf), nil
		default: // OpDiv: IEEE semantics hand back +-Inf/NaN for a zero divisor.
			return host.Float(lf / rf), nil
		}
	}

	li, err := e.toIntVal(lv)
	if err != nil {
		return host.Value{}, err
	}
	ri, err := e.toIntVal(rv)
	if err != nil {
		return host.Value{}, err
	}
	switch n.Op {
	case ast.OpAdd:
		return host.Int(li + ri), nil
	case ast.OpSub:
		return host.Int(li - ri), nil
	case ast.OpMul:
		// Overflow during arithmetic widens to float, per the reference
		// behavior for multiplicative/exponent ops (source material is
		// silent on arithmetic overflow; literal-accumulation overflow
		// widens the same way, so multiplication follows suit here).
		prod := li * ri
		if li != 0 && prod/li != ri {
			return host.Float(float64(li) * float64(ri)), nil
		}
		return host.Int(prod), nil
	default: // OpDiv
		if ri == 0 {
			return host.Value{}, EvalError{Message: "division by zero"}
		}
		return host.Int(li / ri), nil
	}
}

func (e *Evaluator) evalMod(n *ast.Node) (host.Value, error) {
	lv, err := e.evalNode(operand(n, 0))
	if err != nil {
		return host.Value{}, err
	}
	rv, err := e.evalNode(operand(n, 1))
	if err != nil {
		return host.Value{}, err
	}
	li, err := e.toIntVal(lv)
	if err != nil {
		return host.Value{}, err
	}
	ri, err := e.toIntVal(rv)
	if err != nil {
		return host.Value{}, err
	}
	if ri == 0 {
		return host.Value{}, EvalError{Message: "modulo by zero"}
	}
	return host.Int(li % ri), nil
}

func (e *Evaluator) evalPow(n *ast.Node) (host.Value, error) {
	lv, err := e.evalNode(operand(n, 0))
	if err != nil {
		return host.Value{}, err
	}
	rv, err := e.evalNode(operand(n, 1))
	if err != nil {
		return host.Value{}, err
	}
	if lv.Kind == host.KindFloat || rv.Kind == host.KindFloat || isNegativeExponent(rv) {
		lf, err := e.toFloatVal(lv)
		if err != nil {
			return host.Value{}, err
		}
		rf, err := e.toFloatVal(rv)
		if err != nil {
			return host.Value{}, err
		}
		return host.Float(floatPow(lf, rf)), nil
	}
	li, err := e.toIntVal(lv)
	if err != nil {
		return host.Value{}, err
	}
	ri, err := e.toIntVal(rv)
	if err != nil {
		return host.Value{}, err
	}
	result := int64(1)
	base := li
	for i := int64(0); i < ri; i++ {
		next := result * base
		if base != 0 && next/base != result {
			return host.Float(floatPow(float64(li), float64(ri))), nil
		}
		result = next
	}
	return host.Int(result), nil
}

func isNegativeExponent(v host.Value) bool {
	return v.Kind == host.KindInt && v.Int < 0
}

func (e *Evaluator) evalNot(n *ast.Node) (host.Value, error) {
	v, err := e.evalNode(operand(n, 0))
	if err != nil {
		return host.Value{}, err
	}
	return host.Bool(!e.toBool(v)), nil
}

func (e *Evaluator) evalUnarySign(n *ast.Node) (host.Value, error) {
	v, err := e.evalNode(operand(n, 0))
	if err != nil {
		return host.Value{}, err
	}
	if n.Op == ast.OpPos {
		return v, nil
	}
	switch v.Kind {
	case host.KindFloat:
		return host.Float(-v.Float), nil
	default:
		iv, err := e.toIntVal(v)
		if err != nil {
			return host.Value{}, err
		}
		return host.Int(-iv), nil
	}
}

// evalLookup implements `.` (member access) and `[]` (indexing): the left
// operand must reduce to a Dict handle; the right supplies the string key
// (a bareword Param for `.`, an arbitrary expression for `[]`).
func (e *Evaluator) evalLookup(n *ast.Node) (host.Value, error) {
	lv, err := e.evalNode(operand(n, 0))
	if err != nil {
		return host.Value{}, err
	}
	if lv.Kind != host.KindDict {
		return host.Value{}, EvalError{Message: "left side of '.'/'[]' is not a dict"}
	}

	keyNode := operand(n, 1)
	var key string
	if n.Op == ast.OpMember {
		key = keyNode.Str
	} else {
		kv, err := e.evalNode(keyNode)
		if err != nil {
			return host.Value{}, err
		}
		key, err = e.toStr(kv)
		if err != nil {
			return host.Value{}, err
		}
	}

	v, ok := e.host.Lookup(key, &lv)
	if !ok {
		return host.Value{}, EvalError{Message: fmt.Sprintf("unknown key %q", key)}
	}
	return v, nil
}

func (e *Evaluator) evalTernary(n *ast.Node) (host.Value, error) {
	trueVal := operand(n, 0)
	cond := operand(n, 1)
	falseVal := operand(n, 2)

	cv, err := e.evalNode(cond)
	if err != nil {
		return host.Value{}, err
	}
	if e.toBool(cv) {
		return e.evalNode(trueVal)
	}
	return e.evalNode(falseVal)
}

// --- coercions (§4.5) ---

func (e *Evaluator) toStr(v host.Value) (string, error) {
	switch v.Kind {
	case host.KindStr:
		return v.Str, nil
	case host.KindBool:
		if v.Bool {
			return "true", nil
		}
		return "false", nil
	case host.KindInt:
		return strconv.FormatInt(v.Int, 10), nil
	case host.KindFloat:
		return fmt.Sprintf("%f", v.Float), nil
	case host.KindDict:
		if s, ok := e.host.Serialize(v.Dict); ok {
			return s, nil
		}
		return "<obj>", nil
	default:
		return "", EvalError{Message: "value has no string form"}
	}
}

func (e *Evaluator) toBool(v host.Value) bool {
	switch v.Kind {
	case host.KindBool:
		return v.Bool
	case host.KindInt:
		return v.Int != 0
	case host.KindFloat:
		return v.Float != 0
	case host.KindStr:
		return v.Str != ""
	case host.KindDict:
		return true
	default:
		return false
	}
}

func (e *Evaluator) toInt(v host.Value) (host.Value, error) {
	i, err := e.toIntVal(v)
	if err != nil {
		return host.Value{}, err
	}
	return host.Int(i), nil
}

func (e *Evaluator) toIntVal(v host.Value) (int64, error) {
	switch v.Kind {
	case host.KindInt:
		return v.Int, nil
	case host.KindBool:
		if v.Bool {
			return 1, nil
		}
		return 0, nil
	case host.KindFloat:
		return int64(v.Float), nil
	case host.KindStr:
		i, err := strconv.ParseInt(strings.TrimSpace(v.Str), 10, 64)
		if err != nil {
			return 0, EvalError{Message: fmt.Sprintf("cannot parse %q as int", v.Str)}
		}
		return i, nil
	default:
		return 0, EvalError{Message: "value has no integer form"}
	}
}

func (e *Evaluator) toFloat(v host.Value) (host.Value, error) {
	f, err := e.toFloatVal(v)
	if err != nil {
		return host.Value{}, err
	}
	return host.Float(f), nil
}

func (e *Evaluator) toFloatVal(v host.Value) (float64, error) {
	switch v.Kind {
	case host.KindFloat:
		return v.Float, nil
	case host.KindInt:
		return float64(v.Int), nil
	case host.KindBool:
		if v.Bool {
			return 1, nil
		}
		return 0, nil
	case host.KindStr:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.Str), 64)
		if err != nil {
			return 0, EvalError{Message: fmt.Sprintf("cannot parse %q as float", v.Str)}
		}
		return f, nil
	default:
		return 0, EvalError{Message: "value has no float form"}
	}
}

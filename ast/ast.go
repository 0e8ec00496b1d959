// Package ast defines the value-typed, single-owner expression and
// statement tree built by the parser and walked by the evaluator.
//
// A Node is a tagged variant, not an interface hierarchy: every kind shares
// one struct, discriminated by Kind, with a Next pointer threading it onto
// its parent's child list. A node is exclusively owned by its parent;
// Delete walks children and siblings recursively. There is no sharing and
// no cycles.
package ast

import "github.com/lauckhart/klipper/token"

// Kind discriminates the variant a Node holds.
type Kind int

const (
	KindStatement Kind = iota
	KindStr
	KindInt
	KindFloat
	KindBool
	KindParam
	KindOp
	KindFunc
)

func (k Kind) String() string {
	switch k {
	case KindStatement:
		return "Statement"
	case KindStr:
		return "Str"
	case KindInt:
		return "Int"
	case KindFloat:
		return "Float"
	case KindBool:
		return "Bool"
	case KindParam:
		return "Param"
	case KindOp:
		return "Op"
	case KindFunc:
		return "Func"
	default:
		return "Unknown"
	}
}

// Op enumerates the operators an Op node may carry. Arity is fixed per
// operator: Not, Neg, Pos are unary; Or..Index are binary except Ternary,
// which is the sole ternary form (if/else) and Bridge, which is always
// binary (a synthesized concatenation between adjacent fields).
type Op int

const (
	OpOr Op = iota
	OpAnd
	OpEq
	OpConcat
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpLt
	OpGt
	OpLe
	OpGe
	OpTernary
	OpPow
	OpNot
	OpNeg
	OpPos
	OpMember
	OpIndex
	OpBridge
)

func (o Op) String() string {
	switch o {
	case OpOr:
		return "or"
	case OpAnd:
		return "and"
	case OpEq:
		return "="
	case OpConcat:
		return "~"
	case OpAdd:
		return "+"
	case OpSub:
		return "-"
	case OpMul:
		return "*"
	case OpDiv:
		return "/"
	case OpMod:
		return "%"
	case OpLt:
		return "<"
	case OpGt:
		return ">"
	case OpLe:
		return "<="
	case OpGe:
		return ">="
	case OpTernary:
		return "if/else"
	case OpPow:
		return "**"
	case OpNot:
		return "!"
	case OpNeg:
		return "unary-"
	case OpPos:
		return "unary+"
	case OpMember:
		return "."
	case OpIndex:
		return "[]"
	case OpBridge:
		return "bridge"
	default:
		return "op?"
	}
}

// Arity returns the number of operands Op expects: 1 for the unary
// operators, 3 for OpTernary, 2 for every other operator.
func (o Op) Arity() int {
	switch o {
	case OpNot, OpNeg, OpPos:
		return 1
	case OpTernary:
		return 3
	default:
		return 2
	}
}

// Node is the tagged-variant AST element. Only the fields relevant to Kind
// are meaningful; the rest are zero.
type Node struct {
	Kind Kind
	Next *Node // sibling link within the enclosing parent's child list

	Children *Node // first child, for Statement / Op / Func

	Str   string // KindStr literal text, or KindFunc/KindParam name
	Int   int64  // KindInt literal
	Float float64
	Bool  bool

	Op Op // KindOp operator

	HasSpan bool
	Span    token.Span
}

// NewStatement creates an empty Statement node (the sole root type that
// leaves the parser).
func NewStatement() *Node {
	return &Node{Kind: KindStatement}
}

func NewStr(s string) *Node   { return &Node{Kind: KindStr, Str: s} }
func NewInt(i int64) *Node    { return &Node{Kind: KindInt, Int: i} }
func NewFloat(f float64) *Node { return &Node{Kind: KindFloat, Float: f} }
func NewBool(b bool) *Node    { return &Node{Kind: KindBool, Bool: b} }

// NewParam creates a root environment lookup by name.
func NewParam(name string) *Node { return &Node{Kind: KindParam, Str: name} }

// NewOp creates a unary, binary or ternary operator node. The caller must
// pass exactly op.Arity() operands (3 for OpTernary); AddChild wires them.
func NewOp(op Op, operands ...*Node) *Node {
	n := &Node{Kind: KindOp, Op: op}
	for _, c := range operands {
		AddChild(n, c)
	}
	return n
}

// NewFunc creates a named builtin/coercion call.
func NewFunc(name string, args ...*Node) *Node {
	n := &Node{Kind: KindFunc, Str: name}
	for _, a := range args {
		AddChild(n, a)
	}
	return n
}

// WithSpan attaches a source span to n and returns n, for chaining at
// construction sites.
func (n *Node) WithSpan(s token.Span) *Node {
	n.HasSpan = true
	n.Span = s
	return n
}

// AddNext links b onto the end of a's sibling chain and returns the new
// tail (the last node of b's own chain).
func AddNext(a, b *Node) *Node {
	if a == nil {
		if b == nil {
			return nil
		}
		return AddNext(b, nil)
	}
	tail := a
	for tail.Next != nil {
		tail = tail.Next
	}
	tail.Next = b
	if b == nil {
		return tail
	}
	end := b
	for end.Next != nil {
		end = end.Next
	}
	return end
}

// AddChild appends c to parent's child list. parent must be one of
// Statement, Op or Func.
func AddChild(parent, c *Node) {
	if parent == nil || c == nil {
		return
	}
	if parent.Children == nil {
		parent.Children = c
		return
	}
	AddNext(parent.Children, c)
}

// ChildCount walks parent's child list and counts it; used by parser-side
// arity checks.
func ChildCount(parent *Node) int {
	n := 0
	for c := parent.Children; c != nil; c = c.Next {
		n++
	}
	return n
}

// Delete severs n's links to its children and siblings, recursively. Go's
// garbage collector reclaims the memory; Delete exists so a partially built
// statement can be torn down deterministically (parser error recovery,
// statement-scoped cleanup) without relying on the owning root falling out
// of scope.
func Delete(n *Node) {
	if n == nil {
		return
	}
	Delete(n.Children)
	Delete(n.Next)
	n.Children = nil
	n.Next = nil
}

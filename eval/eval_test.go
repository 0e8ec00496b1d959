package eval

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lauckhart/klipper/ast"
	"github.com/lauckhart/klipper/host"
)

// stubHost is a minimal in-memory host.Host: root lookups come from vars,
// nested lookups from a dict handle that is itself a map[string]host.Value.
type stubHost struct {
	vars      map[string]host.Value
	serialize func(any) (string, bool)
	errors    []string
}

func (h *stubHost) Lookup(key string, parent *host.Value) (host.Value, bool) {
	if parent == nil {
		v, ok := h.vars[key]
		return v, ok
	}
	m, ok := parent.Dict.(map[string]host.Value)
	if !ok {
		return host.Value{}, false
	}
	v, ok := m[key]
	return v, ok
}

func (h *stubHost) Serialize(handle any) (string, bool) {
	if h.serialize != nil {
		return h.serialize(handle)
	}
	return "", false
}

func (h *stubHost) Exec(string, []string) bool { return true }
func (h *stubHost) Error(msg string)           { h.errors = append(h.errors, msg) }
func (h *stubHost) Fatal(string)               {}
func (h *stubHost) M112()                      {}

func newStub() *stubHost {
	return &stubHost{vars: map[string]host.Value{}}
}

func statementOf(fields ...*ast.Node) *ast.Node {
	stmt := ast.NewStatement()
	for _, f := range fields {
		ast.AddChild(stmt, f)
	}
	return stmt
}

func TestExecFlattensFieldsToCommand(t *testing.T) {
	stmt := statementOf(ast.NewStr("G1"), ast.NewStr("X10"), ast.NewInt(20))
	e := New(newStub())
	cmd, err := e.Exec(stmt)
	require.NoError(t, err)
	assert.Equal(t, "G1", cmd.Name)
	assert.Equal(t, []string{"X10", "20"}, cmd.Fields)
}

func TestExecRejectsEmptyStatement(t *testing.T) {
	e := New(newStub())
	_, err := e.Exec(ast.NewStatement())
	assert.Error(t, err)
}

func TestBoolOpsAreNotShortCircuit(t *testing.T) {
	h := newStub()
	h.vars["A"] = host.Bool(false)
	h.vars["B"] = host.Bool(true)

	// "a and b()" would short-circuit in a lazy evaluator and never touch
	// the unknown name; here both operands are always reduced, so an
	// unresolvable right operand must still surface as an error even
	// though the left operand alone determines the AND result.
	n := ast.NewOp(ast.OpAnd, ast.NewParam("A"), ast.NewParam("MISSING"))
	e := New(h)
	_, err := e.evalNode(n)
	assert.Error(t, err)
}

func TestBoolOpResults(t *testing.T) {
	e := New(newStub())
	tests := []struct {
		name string
		op   ast.Op
		l, r bool
		want bool
	}{
		{"and both true", ast.OpAnd, true, true, true},
		{"and one false", ast.OpAnd, true, false, false},
		{"or both false", ast.OpOr, false, false, false},
		{"or one true", ast.OpOr, false, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := ast.NewOp(tt.op, ast.NewBool(tt.l), ast.NewBool(tt.r))
			v, err := e.evalNode(n)
			require.NoError(t, err)
			assert.Equal(t, tt.want, v.Bool)
		})
	}
}

func TestEqualityWidensAcrossKinds(t *testing.T) {
	e := New(newStub())
	tests := []struct {
		name string
		l, r *ast.Node
		want bool
	}{
		{"int eq float", ast.NewInt(2), ast.NewFloat(2.0), true},
		{"bool eq int", ast.NewBool(true), ast.NewInt(1), true},
		{"str eq bool", ast.NewStr("true"), ast.NewBool(true), true},
		{"int neq int", ast.NewInt(2), ast.NewInt(3), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := ast.NewOp(ast.OpEq, tt.l, tt.r)
			v, err := e.evalNode(n)
			require.NoError(t, err)
			assert.Equal(t, tt.want, v.Bool)
		})
	}
}

func TestCompareWidensToFloat(t *testing.T) {
	e := New(newStub())
	n := ast.NewOp(ast.OpLt, ast.NewInt(1), ast.NewFloat(1.5))
	v, err := e.evalNode(n)
	require.NoError(t, err)
	assert.True(t, v.Bool)
}

func TestCompareRejectsDicts(t *testing.T) {
	h := newStub()
	h.vars["D"] = host.Dict(map[string]host.Value{})
	n := ast.NewOp(ast.OpLt, ast.NewParam("D"), ast.NewInt(1))
	e := New(h)
	_, err := e.evalNode(n)
	assert.Error(t, err)
}

func TestConcatCoercesBothSidesToString(t *testing.T) {
	e := New(newStub())
	n := ast.NewOp(ast.OpConcat, ast.NewStr("hello "), ast.NewInt(5))
	v, err := e.evalNode(n)
	require.NoError(t, err)
	assert.Equal(t, "hello 5", v.Str)
}

func TestBridgeBehavesLikeConcat(t *testing.T) {
	e := New(newStub())
	n := ast.NewOp(ast.OpBridge, ast.NewStr("X"), ast.NewInt(10))
	v, err := e.evalNode(n)
	require.NoError(t, err)
	assert.Equal(t, "X10", v.Str)
}

func TestArithStaysIntegerWhenBothOperandsInt(t *testing.T) {
	e := New(newStub())
	n := ast.NewOp(ast.OpAdd, ast.NewInt(2), ast.NewInt(3))
	v, err := e.evalNode(n)
	require.NoError(t, err)
	assert.Equal(t, host.KindInt, v.Kind)
	assert.Equal(t, int64(5), v.Int)
}

func TestArithWidensToFloatWhenEitherOperandIsFloat(t *testing.T) {
	e := New(newStub())
	n := ast.NewOp(ast.OpAdd, ast.NewInt(2), ast.NewFloat(0.5))
	v, err := e.evalNode(n)
	require.NoError(t, err)
	assert.Equal(t, host.KindFloat, v.Kind)
	assert.InDelta(t, 2.5, v.Float, 1e-9)
}

func TestIntMultiplyOverflowPromotesToFloat(t *testing.T) {
	e := New(newStub())
	big := int64(1) << 40
	n := ast.NewOp(ast.OpMul, ast.NewInt(big), ast.NewInt(big))
	v, err := e.evalNode(n)
	require.NoError(t, err)
	assert.Equal(t, host.KindFloat, v.Kind)
	assert.InDelta(t, float64(big)*float64(big), v.Float, 1)
}

func TestIntDivisionByZeroIsError(t *testing.T) {
	e := New(newStub())
	n := ast.NewOp(ast.OpDiv, ast.NewInt(1), ast.NewInt(0))
	_, err := e.evalNode(n)
	assert.Error(t, err)
}

func TestFloatDivisionByZeroProducesIEEEInfinity(t *testing.T) {
	e := New(newStub())
	n := ast.NewOp(ast.OpDiv, ast.NewFloat(1), ast.NewFloat(0))
	v, err := e.evalNode(n)
	require.NoError(t, err)
	assert.Equal(t, host.KindFloat, v.Kind)
	assert.True(t, math.IsInf(v.Float, 1))
}

func TestModuloByZeroIsError(t *testing.T) {
	e := New(newStub())
	n := ast.NewOp(ast.OpMod, ast.NewInt(5), ast.NewInt(0))
	_, err := e.evalNode(n)
	assert.Error(t, err)
}

func TestModuloStaysInteger(t *testing.T) {
	e := New(newStub())
	n := ast.NewOp(ast.OpMod, ast.NewInt(7), ast.NewInt(3))
	v, err := e.evalNode(n)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v.Int)
}

func TestPowIntegerExponentStaysInteger(t *testing.T) {
	e := New(newStub())
	n := ast.NewOp(ast.OpPow, ast.NewInt(2), ast.NewInt(10))
	v, err := e.evalNode(n)
	require.NoError(t, err)
	assert.Equal(t, host.KindInt, v.Kind)
	assert.Equal(t, int64(1024), v.Int)
}

func TestPowOverflowPromotesToFloat(t *testing.T) {
	e := New(newStub())
	n := ast.NewOp(ast.OpPow, ast.NewInt(10), ast.NewInt(30))
	v, err := e.evalNode(n)
	require.NoError(t, err)
	assert.Equal(t, host.KindFloat, v.Kind)
}

func TestPowNegativeExponentPromotesToFloat(t *testing.T) {
	e := New(newStub())
	n := ast.NewOp(ast.OpPow, ast.NewInt(2), ast.NewInt(-1))
	v, err := e.evalNode(n)
	require.NoError(t, err)
	assert.Equal(t, host.KindFloat, v.Kind)
	assert.InDelta(t, 0.5, v.Float, 1e-9)
}

func TestNotInvertsTruthiness(t *testing.T) {
	e := New(newStub())
	n := ast.NewOp(ast.OpNot, ast.NewInt(0))
	v, err := e.evalNode(n)
	require.NoError(t, err)
	assert.True(t, v.Bool)
}

func TestUnaryMinusOnFloatAndInt(t *testing.T) {
	e := New(newStub())
	v, err := e.evalNode(ast.NewOp(ast.OpNeg, ast.NewFloat(1.5)))
	require.NoError(t, err)
	assert.Equal(t, -1.5, v.Float)

	v, err = e.evalNode(ast.NewOp(ast.OpNeg, ast.NewInt(5)))
	require.NoError(t, err)
	assert.Equal(t, int64(-5), v.Int)
}

func TestUnaryPlusIsIdentity(t *testing.T) {
	e := New(newStub())
	v, err := e.evalNode(ast.NewOp(ast.OpPos, ast.NewInt(5)))
	require.NoError(t, err)
	assert.Equal(t, int64(5), v.Int)
}

func TestTernaryShortCircuitsUnchosenBranch(t *testing.T) {
	// The false branch is an unresolvable param; if evaluation were eager
	// about both branches this would error even though the condition
	// selects the true branch.
	n := ast.NewOp(ast.OpTernary, ast.NewInt(1), ast.NewBool(true), ast.NewParam("MISSING"))
	e := New(newStub())
	v, err := e.evalNode(n)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v.Int)
}

func TestTernaryFalseBranch(t *testing.T) {
	n := ast.NewOp(ast.OpTernary, ast.NewParam("MISSING"), ast.NewBool(false), ast.NewInt(2))
	e := New(newStub())
	v, err := e.evalNode(n)
	require.NoError(t, err)
	assert.Equal(t, int64(2), v.Int)
}

func TestMemberLookupWalksDictHandle(t *testing.T) {
	h := newStub()
	h.vars["FOO"] = host.Dict(map[string]host.Value{
		"BAR": host.Int(42),
	})
	n := ast.NewOp(ast.OpMember, ast.NewParam("FOO"), ast.NewParam("BAR"))
	e := New(h)
	v, err := e.evalNode(n)
	require.NoError(t, err)
	assert.Equal(t, int64(42), v.Int)
}

func TestIndexUsesEvaluatedKey(t *testing.T) {
	h := newStub()
	h.vars["FOO"] = host.Dict(map[string]host.Value{
		"X": host.Str("hit"),
	})
	n := ast.NewOp(ast.OpIndex, ast.NewParam("FOO"), ast.NewStr("X"))
	e := New(h)
	v, err := e.evalNode(n)
	require.NoError(t, err)
	assert.Equal(t, "hit", v.Str)
}

func TestLookupOnNonDictIsError(t *testing.T) {
	n := ast.NewOp(ast.OpMember, ast.NewInt(1), ast.NewParam("X"))
	e := New(newStub())
	_, err := e.evalNode(n)
	assert.Error(t, err)
}

func TestUnknownParamIsError(t *testing.T) {
	e := New(newStub())
	_, err := e.evalNode(ast.NewParam("NOPE"))
	assert.Error(t, err)
}

func TestCastFunctions(t *testing.T) {
	e := New(newStub())

	v, err := e.evalNode(ast.NewFunc("INT", ast.NewStr("42")))
	require.NoError(t, err)
	assert.Equal(t, int64(42), v.Int)

	v, err = e.evalNode(ast.NewFunc("FLOAT", ast.NewStr("1.5")))
	require.NoError(t, err)
	assert.InDelta(t, 1.5, v.Float, 1e-9)

	v, err = e.evalNode(ast.NewFunc("STR", ast.NewInt(7)))
	require.NoError(t, err)
	assert.Equal(t, "7", v.Str)

	v, err = e.evalNode(ast.NewFunc("BOOL", ast.NewInt(0)))
	require.NoError(t, err)
	assert.False(t, v.Bool)
}

func TestUnknownFunctionIsError(t *testing.T) {
	e := New(newStub())
	_, err := e.evalNode(ast.NewFunc("NOPE", ast.NewInt(1)))
	assert.Error(t, err)
}

func TestFunctionArityIsExactlyOne(t *testing.T) {
	n := ast.NewFunc("INT")
	e := New(newStub())
	_, err := e.evalNode(n)
	assert.Error(t, err)
}

func TestDictSerializationFallsBackToPlaceholder(t *testing.T) {
	h := newStub()
	h.vars["D"] = host.Dict(map[string]host.Value{})
	e := New(h)
	stmt := statementOf(ast.NewStr("M117"), ast.NewParam("D"))
	cmd, err := e.Exec(stmt)
	require.NoError(t, err)
	assert.Equal(t, "<obj>", cmd.Fields[0])
}

func TestDictSerializationUsesHostHook(t *testing.T) {
	h := newStub()
	h.vars["D"] = host.Dict(map[string]host.Value{})
	h.serialize = func(any) (string, bool) { return "custom", true }
	e := New(h)
	stmt := statementOf(ast.NewStr("M117"), ast.NewParam("D"))
	cmd, err := e.Exec(stmt)
	require.NoError(t, err)
	assert.Equal(t, "custom", cmd.Fields[0])
}

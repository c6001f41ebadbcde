package vm

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

// scriptFunction builds a zero-arity top-level Function whose body is
// exactly the given instructions, ready to pass to (*VM).Run.
func scriptFunction(build func(c *Chunk)) *ObjFunction {
	fn := newFunction()
	build(fn.Chunk)
	return fn
}

func newTestVM() (*VM, *bytes.Buffer, *bytes.Buffer) {
	v := New()
	var out, errOut bytes.Buffer
	v.Stdout = &out
	v.Stderr = &errOut
	return v, &out, &errOut
}

func TestRunConstantArithmeticAndPrint(t *testing.T) {
	v, out, _ := newTestVM()
	fn := scriptFunction(func(c *Chunk) {
		one := c.AddConstant(NumberValue(1))
		two := c.AddConstant(NumberValue(2))
		three := c.AddConstant(NumberValue(3))
		c.WriteOp(OpConstant, 1)
		c.Write(byte(one), 1)
		c.WriteOp(OpConstant, 1)
		c.Write(byte(two), 1)
		c.WriteOp(OpConstant, 1)
		c.Write(byte(three), 1)
		c.WriteOp(OpMultiply, 1)
		c.WriteOp(OpAdd, 1)
		c.WriteOp(OpPrint, 1)
		c.WriteOp(OpNil, 1)
		c.WriteOp(OpReturn, 1)
	})

	result := v.Run(fn)
	require.Equal(t, InterpretOK, result)
	require.Equal(t, "7\n", out.String())
}

func TestRunUndefinedGlobalReadIsRuntimeError(t *testing.T) {
	v, _, errOut := newTestVM()
	fn := scriptFunction(func(c *Chunk) {
		name := c.AddConstant(ObjValue(v.InternString("y")))
		c.WriteOp(OpGetGlobal, 7)
		c.Write(byte(name), 7)
		c.WriteOp(OpReturn, 7)
	})

	result := v.Run(fn)
	require.Equal(t, InterpretRuntimeError, result)
	require.Contains(t, errOut.String(), "Undefined variable 'y'.")
	require.Contains(t, errOut.String(), "[line 7] in script")
}

func TestRunNegateNonNumberIsRuntimeError(t *testing.T) {
	v, _, errOut := newTestVM()
	fn := scriptFunction(func(c *Chunk) {
		idx := c.AddConstant(ObjValue(v.InternString("x")))
		c.WriteOp(OpConstant, 1)
		c.Write(byte(idx), 1)
		c.WriteOp(OpNegate, 1)
		c.WriteOp(OpReturn, 1)
	})

	result := v.Run(fn)
	require.Equal(t, InterpretRuntimeError, result)
	require.Contains(t, errOut.String(), "Operand must be a number.")
}

func TestResetStackAfterRuntimeError(t *testing.T) {
	v, _, _ := newTestVM()
	fn := scriptFunction(func(c *Chunk) {
		name := c.AddConstant(ObjValue(v.InternString("undefined")))
		c.WriteOp(OpGetGlobal, 1)
		c.Write(byte(name), 1)
		c.WriteOp(OpReturn, 1)
	})
	v.Run(fn)

	require.Equal(t, 0, v.stackTop)
	require.Equal(t, 0, v.frameCount)
	require.Nil(t, v.openUpvalues)
}

func TestValuesEqualReflexiveAndMismatchedKinds(t *testing.T) {
	require.True(t, ValuesEqual(NumberValue(1), NumberValue(1)))
	require.True(t, ValuesEqual(NilValue, NilValue))
	require.False(t, ValuesEqual(NumberValue(1), BoolValue(true)))
}

func TestIsFalsey(t *testing.T) {
	require.True(t, IsFalsey(NilValue))
	require.True(t, IsFalsey(BoolValue(false)))
	require.False(t, IsFalsey(BoolValue(true)))
	require.False(t, IsFalsey(NumberValue(0)))
}

func TestCallProtocolStackOverflowAtFramesMax(t *testing.T) {
	v, _, errOut := newTestVM()
	fn := scriptFunction(func(c *Chunk) {
		c.WriteOp(OpNil, 1)
		c.WriteOp(OpReturn, 1)
	})
	closure := v.newClosure(fn)

	for i := 0; i < framesMax; i++ {
		v.push(ObjValue(closure))
		require.True(t, v.call(closure, 0), "call %d should succeed", i+1)
		// Simulate OP_CALL already having been read, the way runtimeError's
		// caller in run() always has by the time a call can fail.
		v.frames[v.frameCount-1].ip = 1
	}
	require.Equal(t, framesMax, v.frameCount)

	v.push(ObjValue(closure))
	require.False(t, v.call(closure, 0), "the 65th call must fail")
	require.Contains(t, errOut.String(), "Stack overflow.")
}

func TestCaptureAndCloseUpvalue(t *testing.T) {
	v, _, _ := newTestVM()
	v.stackTop = 1
	v.stack[0] = NumberValue(5)

	uv := v.captureUpvalue(0)
	require.True(t, uv.isOpen)

	same := v.captureUpvalue(0)
	require.Same(t, uv, same)

	v.closeUpvalues(0)
	require.False(t, uv.isOpen)
	require.Equal(t, 5.0, uv.Closed.Number)
	require.Nil(t, v.openUpvalues)
}

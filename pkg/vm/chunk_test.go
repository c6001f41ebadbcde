package vm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChunkWriteTracksLines(t *testing.T) {
	c := NewChunk()
	c.WriteOp(OpNil, 1)
	c.WriteOp(OpReturn, 2)
	require.Equal(t, []byte{byte(OpNil), byte(OpReturn)}, c.Code)
	require.Equal(t, []int32{1, 2}, c.Lines)
}

func TestChunkAddConstant(t *testing.T) {
	c := NewChunk()
	idx := c.AddConstant(NumberValue(42))
	require.Equal(t, 0, idx)
	require.True(t, c.Constants[idx].IsNumber())
	require.Equal(t, 42.0, c.Constants[idx].Number)
}

func TestOpCodeString(t *testing.T) {
	require.Equal(t, "OP_CONSTANT", OpConstant.String())
	require.Equal(t, "OP_RETURN", OpReturn.String())
	require.Equal(t, "OP_UNKNOWN", OpCode(255).String())
}

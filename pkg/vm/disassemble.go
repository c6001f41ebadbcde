package vm

import (
	"fmt"
	"io"
)

// Disassemble writes a human-readable dump of every instruction in chunk
// to w, labeled with name. This is what the `disassemble` CLI subcommand
// and --trace both build on; there is no persisted bytecode format to
// disassemble from disk, only a freshly compiled in-memory Chunk.
func Disassemble(w io.Writer, chunk *Chunk, name string) {
	fmt.Fprintf(w, "== %s ==\n", name)
	for offset := 0; offset < len(chunk.Code); {
		fmt.Fprintln(w, disassembleAt(chunk, offset))
		offset = nextOffset(chunk, offset)
	}
}

// DisassembleInstruction renders the single instruction at offset,
// without a trailing newline, for use by --trace (mirrors clox's
// disassemble_instruction called from DEBUG_TRACE_EXECUTION).
func DisassembleInstruction(chunk *Chunk, offset int) string {
	return disassembleAt(chunk, offset)
}

func disassembleAt(chunk *Chunk, offset int) string {
	line := fmt.Sprintf("%04d ", offset)
	if offset > 0 && chunk.Lines[offset] == chunk.Lines[offset-1] {
		line += "   | "
	} else {
		line += fmt.Sprintf("%4d ", chunk.Lines[offset])
	}

	op := OpCode(chunk.Code[offset])
	switch op {
	case OpConstant, OpGetGlobal, OpDefineGlobal, OpSetGlobal, OpGetProperty,
		OpSetProperty, OpGetSuper, OpClass, OpMethod:
		return line + constantInstruction(op, chunk, offset)
	case OpGetLocal, OpSetLocal, OpGetUpvalue, OpSetUpvalue, OpCall:
		return line + byteInstruction(op, chunk, offset)
	case OpJump, OpJumpIfFalse:
		return line + jumpInstruction(op, chunk, offset, 1)
	case OpLoop:
		return line + jumpInstruction(op, chunk, offset, -1)
	case OpInvoke, OpSuperInvoke:
		return line + invokeInstruction(op, chunk, offset)
	case OpClosure:
		return line + closureInstruction(chunk, offset)
	default:
		return line + op.String()
	}
}

func nextOffset(chunk *Chunk, offset int) int {
	op := OpCode(chunk.Code[offset])
	switch op {
	case OpConstant, OpGetGlobal, OpDefineGlobal, OpSetGlobal, OpGetProperty,
		OpSetProperty, OpGetSuper, OpClass, OpMethod,
		OpGetLocal, OpSetLocal, OpGetUpvalue, OpSetUpvalue, OpCall:
		return offset + 2
	case OpJump, OpJumpIfFalse, OpLoop:
		return offset + 3
	case OpInvoke, OpSuperInvoke:
		return offset + 3
	case OpClosure:
		end := offset + 2
		fn := chunk.Constants[chunk.Code[offset+1]].AsFunction()
		for i := 0; i < fn.UpvalueCount; i++ {
			end += 2
		}
		return end
	default:
		return offset + 1
	}
}

func constantInstruction(op OpCode, chunk *Chunk, offset int) string {
	constant := chunk.Code[offset+1]
	return fmt.Sprintf("%-16s %4d '%s'", op, constant, ToString(chunk.Constants[constant]))
}

func byteInstruction(op OpCode, chunk *Chunk, offset int) string {
	slot := chunk.Code[offset+1]
	return fmt.Sprintf("%-16s %4d", op, slot)
}

func jumpInstruction(op OpCode, chunk *Chunk, offset int, sign int) string {
	jump := int(uint16(chunk.Code[offset+1])<<8 | uint16(chunk.Code[offset+2]))
	target := offset + 3 + sign*jump
	return fmt.Sprintf("%-16s %4d -> %d", op, offset, target)
}

func invokeInstruction(op OpCode, chunk *Chunk, offset int) string {
	constant := chunk.Code[offset+1]
	argCount := chunk.Code[offset+2]
	return fmt.Sprintf("%-16s (%d args) %4d '%s'", op, argCount, constant, ToString(chunk.Constants[constant]))
}

func closureInstruction(chunk *Chunk, offset int) string {
	constant := chunk.Code[offset+1]
	fn := chunk.Constants[constant].AsFunction()
	s := fmt.Sprintf("%-16s %4d %s", OpClosure, constant, ToString(ObjValue(fn)))
	pos := offset + 2
	for i := 0; i < fn.UpvalueCount; i++ {
		isLocal := chunk.Code[pos]
		index := chunk.Code[pos+1]
		kind := "upvalue"
		if isLocal != 0 {
			kind = "local"
		}
		s += fmt.Sprintf("\n%04d      |                     %s %d", pos, kind, index)
		pos += 2
	}
	return s
}

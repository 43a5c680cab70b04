// Copyright 2022 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package dat

import (
	"fmt"
)

// OpCode is one decoded instruction. Which of the optional operands is
// meaningful depends on the operator; Size is the number of bytes the
// instruction occupied, the amount the program counter advances by.
type OpCode struct {
	Operator Operator
	Address  int32
	Symbol   int32
	Value    int32
	Index    byte
	Size     uint32
}

// String disassembles the instruction.
func (op OpCode) String() string {
	switch op.Operator {
	case OpCall, OpJump, OpJumpIf:
		return fmt.Sprintf("%s %d", op.Operator, op.Address)
	case OpCallExternal, OpPushVar, OpPushInstance, OpSetInstance:
		return fmt.Sprintf("%s sym:%d", op.Operator, op.Symbol)
	case OpPushInt:
		return fmt.Sprintf("%s %d", op.Operator, op.Value)
	case OpPushArrayVar:
		return fmt.Sprintf("%s sym:%d[%d]", op.Operator, op.Symbol, op.Index)
	}
	return op.Operator.String()
}

// CodeSegment is the raw instruction stream that follows the symbol table in
// the file. It stays in place in the mapped image and is decoded on demand;
// program counters are byte offsets relative to the segment start.
type CodeSegment struct {
	f *File

	// Offset is the file offset of the first instruction.
	Offset uint32

	// Size is the byte length of the segment.
	Size uint32
}

// plainOperator reports whether op is a defined operator with no operand
// payload.
func plainOperator(op Operator) bool {
	switch op {
	case OpAdd, OpSubtract, OpMultiply, OpDivide, OpMod, OpBinOr, OpBinAnd,
		OpLess, OpGreater, OpAssign, OpLogOr, OpLogAnd, OpShiftLeft,
		OpShiftRight, OpLessOrEqual, OpEqual, OpNotEqual, OpGreaterOrEqual,
		OpAssignAdd, OpAssignSubtract, OpAssignMultiply, OpAssignDivide,
		OpPlus, OpMinus, OpNot, OpNegate, OpRet, OpAssignString,
		OpAssignStringRef, OpAssignFunc, OpAssignFloat, OpAssignInstance:
		return true
	}
	return false
}

// InstructionAt decodes the instruction at program counter pc. An undefined
// operator byte yields ErrUnknownOperator together with a one-byte OpCode so
// a caller that degrades gracefully can still advance.
func (cs *CodeSegment) InstructionAt(pc uint32) (OpCode, error) {
	if pc >= cs.Size {
		return OpCode{}, fmt.Errorf("%w: pc %#x", ErrOutsideBoundary, pc)
	}

	cur := cursor{f: cs.f}
	cur.seek(cs.Offset + pc)

	opByte, err := cur.u8()
	if err != nil {
		return OpCode{}, err
	}
	operator := Operator(opByte)

	op := OpCode{Operator: operator, Size: 1}
	switch operator {
	case OpCall, OpJump, OpJumpIf:
		op.Address, err = cur.i32()
		op.Size = 5
	case OpCallExternal, OpPushVar, OpPushInstance, OpSetInstance:
		op.Symbol, err = cur.i32()
		op.Size = 5
	case OpPushInt:
		op.Value, err = cur.i32()
		op.Size = 5
	case OpPushArrayVar:
		op.Symbol, err = cur.i32()
		if err == nil {
			op.Index, err = cur.u8()
		}
		op.Size = 6
	default:
		if !plainOperator(operator) {
			return op, fmt.Errorf("%w: %#x at pc %#x", ErrUnknownOperator,
				opByte, pc)
		}
	}
	if err != nil {
		return OpCode{}, fmt.Errorf("truncated instruction at pc %#x: %w",
			pc, err)
	}
	return op, nil
}

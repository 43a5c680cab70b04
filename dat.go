// Copyright 2022 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package dat implements a parser and a virtual machine for compiled Daedalus
// bytecode (.DAT), the script format produced by the toolchain of the Gothic
// game series. A .DAT file carries a tagged symbol catalog followed by a raw
// code segment; the VM interprets the code segment against the catalog and a
// typed game-state store provided by the host.
package dat

// Kind describes what a symbol represents: a scalar variable, a class, a
// prototype, an instance or a function. The numeric values are fixed by the
// on-disk format.
type Kind uint8

// Symbol kinds.
const (
	KindVoid       Kind = 0
	KindFloat      Kind = 1
	KindInt        Kind = 2
	KindCharString Kind = 3
	KindClass      Kind = 4
	KindFunc       Kind = 5
	KindPrototype  Kind = 6
	KindInstance   Kind = 7
)

// String stringify the symbol kind.
func (k Kind) String() string {
	kindMap := map[Kind]string{
		KindVoid:       "Void",
		KindFloat:      "Float",
		KindInt:        "Int",
		KindCharString: "CharString",
		KindClass:      "Class",
		KindFunc:       "Func",
		KindPrototype:  "Prototype",
		KindInstance:   "Instance",
	}

	if value, ok := kindMap[k]; ok {
		return value
	}
	return "?"
}

// SymbolFlag is a bit in the flags field of a symbol's packed element word.
type SymbolFlag uint8

// Symbol flags.
const (
	// SymbolFlagConst marks a compile-time constant.
	SymbolFlagConst SymbolFlag = 1 << 0

	// SymbolFlagReturn marks a function that leaves a result on the stack.
	SymbolFlagReturn SymbolFlag = 1 << 1

	// SymbolFlagClassVar marks a class member variable; its storage lives in
	// the instance record, so the symbol carries no data payload.
	SymbolFlagClassVar SymbolFlag = 1 << 2

	// SymbolFlagExternal marks a function implemented by the host.
	SymbolFlagExternal SymbolFlag = 1 << 3

	// SymbolFlagMerged marks a symbol merged from another unit by the
	// compiler.
	SymbolFlagMerged SymbolFlag = 1 << 4
)

// String stringify the symbol flags.
func (f SymbolFlag) String() string {
	flagMap := map[SymbolFlag]string{
		SymbolFlagConst:    "Const",
		SymbolFlagReturn:   "Return",
		SymbolFlagClassVar: "ClassVar",
		SymbolFlagExternal: "External",
		SymbolFlagMerged:   "Merged",
	}

	str := ""
	for flag, name := range flagMap {
		if f&flag != 0 {
			if str != "" {
				str += "|"
			}
			str += name
		}
	}
	if str == "" {
		return "None"
	}
	return str
}

// Operator is a single-byte instruction opcode. The same numeric space doubles
// as the tag word on the evaluation stack: a cell's trailing word is either
// OpPushInt (immediate value) or OpPushVar (variable reference, also used for
// PushArrayVar, PushInstance and pushed strings).
type Operator uint8

// Instruction operators.
const (
	OpAdd            Operator = 0  // a + b
	OpSubtract       Operator = 1  // a - b
	OpMultiply       Operator = 2  // a * b
	OpDivide         Operator = 3  // a / b
	OpMod            Operator = 4  // a % b
	OpBinOr          Operator = 5  // a | b
	OpBinAnd         Operator = 6  // a & b
	OpLess           Operator = 7  // a < b
	OpGreater        Operator = 8  // a > b
	OpAssign         Operator = 9  // a = b
	OpLogOr          Operator = 11 // a || b
	OpLogAnd         Operator = 12 // a && b
	OpShiftLeft      Operator = 13 // a << b
	OpShiftRight     Operator = 14 // a >> b
	OpLessOrEqual    Operator = 15 // a <= b
	OpEqual          Operator = 16 // a == b
	OpNotEqual       Operator = 17 // a != b
	OpGreaterOrEqual Operator = 18 // a >= b
	OpAssignAdd      Operator = 19 // a += b
	OpAssignSubtract Operator = 20 // a -= b
	OpAssignMultiply Operator = 21 // a *= b
	OpAssignDivide   Operator = 22 // a /= b
	OpPlus           Operator = 30 // +a
	OpMinus          Operator = 31 // -a
	OpNot            Operator = 32 // !a
	OpNegate         Operator = 33 // ~a
	OpRet            Operator = 60
	OpCall           Operator = 61
	OpCallExternal   Operator = 62
	OpPushInt        Operator = 64
	OpPushVar        Operator = 65
	OpPushInstance   Operator = 67
	OpAssignString   Operator = 70
	OpAssignStringRef Operator = 71
	OpAssignFunc     Operator = 72
	OpAssignFloat    Operator = 73
	OpAssignInstance Operator = 74
	OpJump           Operator = 75
	OpJumpIf         Operator = 76
	OpSetInstance    Operator = 80
	OpPushArrayVar   Operator = 245 // PushVar + array subscript byte
)

// String stringify the operator.
func (op Operator) String() string {
	operatorMap := map[Operator]string{
		OpAdd:             "Add",
		OpSubtract:        "Subtract",
		OpMultiply:        "Multiply",
		OpDivide:          "Divide",
		OpMod:             "Mod",
		OpBinOr:           "BinOr",
		OpBinAnd:          "BinAnd",
		OpLess:            "Less",
		OpGreater:         "Greater",
		OpAssign:          "Assign",
		OpLogOr:           "LogOr",
		OpLogAnd:          "LogAnd",
		OpShiftLeft:       "ShiftLeft",
		OpShiftRight:      "ShiftRight",
		OpLessOrEqual:     "LessOrEqual",
		OpEqual:           "Equal",
		OpNotEqual:        "NotEqual",
		OpGreaterOrEqual:  "GreaterOrEqual",
		OpAssignAdd:       "AssignAdd",
		OpAssignSubtract:  "AssignSubtract",
		OpAssignMultiply:  "AssignMultiply",
		OpAssignDivide:    "AssignDivide",
		OpPlus:            "Plus",
		OpMinus:           "Minus",
		OpNot:             "Not",
		OpNegate:          "Negate",
		OpRet:             "Ret",
		OpCall:            "Call",
		OpCallExternal:    "CallExternal",
		OpPushInt:         "PushInt",
		OpPushVar:         "PushVar",
		OpPushInstance:    "PushInstance",
		OpAssignString:    "AssignString",
		OpAssignStringRef: "AssignStringRef",
		OpAssignFunc:      "AssignFunc",
		OpAssignFloat:     "AssignFloat",
		OpAssignInstance:  "AssignInstance",
		OpJump:            "Jump",
		OpJumpIf:          "JumpIf",
		OpSetInstance:     "SetInstance",
		OpPushArrayVar:    "PushArrayVar",
	}

	if value, ok := operatorMap[op]; ok {
		return value
	}
	return "?"
}

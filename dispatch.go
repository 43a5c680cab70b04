// Copyright 2022 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package dat

// doStack executes one instruction and reports whether execution should
// continue. A top-level return pops the run's function frame and ends the
// loop; a malformed instruction degrades to a defined sentinel instead of
// aborting, so a broken script cannot crash the host.
func (vm *VirtualMachine) doStack() bool {
	op, err := vm.file.Code.InstructionAt(vm.pc)
	if err != nil {
		if op.Size == 0 {
			// Ran off the code segment; nothing left to execute.
			vm.logger.Warnf("execution stopped: %v", err)
			return false
		}
		// Unknown operator: advance past it and carry on.
		vm.logger.Debugf("skipping instruction: %v", err)
		vm.pc += op.Size
		return len(vm.callStack) != 0
	}
	vm.pc += op.Size

	switch op.Operator {

	case OpAdd:
		a, b := vm.PopInt(), vm.PopInt()
		vm.PushInt(a + b)
	case OpSubtract:
		a, b := vm.PopInt(), vm.PopInt()
		vm.PushInt(a - b)
	case OpMultiply:
		a, b := vm.PopInt(), vm.PopInt()
		vm.PushInt(a * b)
	case OpDivide:
		a, b := vm.PopInt(), vm.PopInt()
		if b == 0 {
			vm.logger.Warnf("division by zero at pc %#x", vm.pc-op.Size)
			vm.PushInt(0)
			break
		}
		vm.PushInt(a / b)
	case OpMod:
		a, b := vm.PopInt(), vm.PopInt()
		if b == 0 {
			vm.logger.Warnf("modulo by zero at pc %#x", vm.pc-op.Size)
			vm.PushInt(0)
			break
		}
		vm.PushInt(a % b)
	case OpBinOr:
		a, b := vm.PopInt(), vm.PopInt()
		vm.PushInt(a | b)
	case OpBinAnd:
		a, b := vm.PopInt(), vm.PopInt()
		vm.PushInt(a & b)
	case OpShiftLeft:
		a, b := vm.PopInt(), vm.PopInt()
		vm.PushInt(a << uint32(b))
	case OpShiftRight:
		a, b := vm.PopInt(), vm.PopInt()
		vm.PushInt(a >> uint32(b))

	case OpLess:
		a, b := vm.PopInt(), vm.PopInt()
		vm.PushInt(boolToInt(a < b))
	case OpGreater:
		a, b := vm.PopInt(), vm.PopInt()
		vm.PushInt(boolToInt(a > b))
	case OpLessOrEqual:
		a, b := vm.PopInt(), vm.PopInt()
		vm.PushInt(boolToInt(a <= b))
	case OpGreaterOrEqual:
		a, b := vm.PopInt(), vm.PopInt()
		vm.PushInt(boolToInt(a >= b))
	case OpEqual:
		a, b := vm.PopInt(), vm.PopInt()
		vm.PushInt(boolToInt(a == b))
	case OpNotEqual:
		a, b := vm.PopInt(), vm.PopInt()
		vm.PushInt(boolToInt(a != b))

	case OpLogOr:
		a, b := vm.PopInt(), vm.PopInt()
		vm.PushInt(boolToInt(a != 0 || b != 0))
	case OpLogAnd:
		a, b := vm.PopInt(), vm.PopInt()
		vm.PushInt(boolToInt(a != 0 && b != 0))

	case OpPlus:
		vm.PushInt(vm.PopInt())
	case OpMinus:
		vm.PushInt(-vm.PopInt())
	case OpNot:
		vm.PushInt(boolToInt(vm.PopInt() == 0))
	case OpNegate:
		vm.PushInt(^vm.PopInt())

	case OpAssign, OpAssignAdd, OpAssignSubtract, OpAssignMultiply,
		OpAssignDivide:
		vm.assign(op.Operator)

	case OpAssignFunc, OpAssignInstance:
		symIndex, _ := vm.PopVar()
		address := vm.PopInt()
		if sym, err := vm.file.SymTable.GetByIndex(symIndex); err == nil {
			sym.SetAddress(uint32(address))
		}

	case OpAssignFloat:
		symIndex, arrayIndex := vm.PopVar()
		value := vm.PopFloat()
		if sym, err := vm.file.SymTable.GetByIndex(symIndex); err == nil {
			sym.SetFloat(arrayIndex, value)
		}

	case OpAssignString, OpAssignStringRef:
		symIndex, arrayIndex := vm.PopVar()
		value := vm.PopString()
		if sym, err := vm.file.SymTable.GetByIndex(symIndex); err == nil {
			sym.SetStringAt(arrayIndex, value)
		}

	case OpPushInt:
		vm.PushInt(op.Value)
	case OpPushVar:
		vm.PushVar(int(op.Symbol), 0)
	case OpPushArrayVar:
		vm.PushVar(int(op.Symbol), uint32(op.Index))
	case OpPushInstance:
		// Instance references travel as variable cells with subscript 0.
		vm.PushVar(int(op.Symbol), 0)

	case OpJump:
		vm.pc = uint32(op.Address)
	case OpJumpIf:
		if vm.PopInt() == 0 {
			vm.pc = uint32(op.Address)
		}

	case OpSetInstance:
		if err := vm.SetCurrentInstance(int(op.Symbol)); err != nil {
			vm.logger.Warnf("set instance: %v", err)
		}

	case OpCall:
		vm.callStack = append(vm.callStack,
			callFrame{kind: frameAddress, value: vm.pc})
		vm.pc = uint32(op.Address)

	case OpCallExternal:
		fn, ok := vm.externals[int(op.Symbol)]
		if !ok {
			name := ""
			if sym, err := vm.file.SymTable.GetByIndex(int(op.Symbol)); err == nil {
				name = sym.Name()
			}
			vm.logger.Warnf("no external registered for symbol %d %q",
				op.Symbol, name)
			break
		}
		fn(vm)

	case OpRet:
		n := len(vm.callStack)
		if n == 0 {
			return false
		}
		frame := vm.callStack[n-1]
		vm.callStack = vm.callStack[:n-1]
		if frame.kind == frameSymbolIndex {
			// The frame the run started with; the function is complete.
			return false
		}
		vm.pc = frame.value
	}

	return len(vm.callStack) != 0
}

// assign implements the scalar assignment family: the target reference and
// the value are popped, combined per operator and written back into the
// target symbol's data, as int or float depending on the target's kind.
func (vm *VirtualMachine) assign(operator Operator) {
	symIndex, arrayIndex := vm.PopVar()
	sym, err := vm.file.SymTable.GetByIndex(symIndex)
	if err != nil {
		vm.logger.Warnf("assign: %v", err)
		vm.PopInt()
		return
	}

	switch sym.Kind() {
	case KindFunc, KindPrototype, KindInstance:
		// Function-valued targets take a code address, not data.
		sym.SetAddress(uint32(vm.PopInt()))
		return
	}

	if sym.Kind() == KindFloat {
		value := vm.PopFloat()
		old, _ := sym.Float(arrayIndex)
		var out float32
		switch operator {
		case OpAssign:
			out = value
		case OpAssignAdd:
			out = old + value
		case OpAssignSubtract:
			out = old - value
		case OpAssignMultiply:
			out = old * value
		case OpAssignDivide:
			if value != 0 {
				out = old / value
			}
		}
		if err := sym.SetFloat(arrayIndex, out); err != nil {
			vm.logger.Warnf("assign: %v", err)
		}
		return
	}

	value := vm.PopInt()
	old, _ := sym.Int(arrayIndex)
	var out int32
	switch operator {
	case OpAssign:
		out = value
	case OpAssignAdd:
		out = old + value
	case OpAssignSubtract:
		out = old - value
	case OpAssignMultiply:
		out = old * value
	case OpAssignDivide:
		if value != 0 {
			out = old / value
		}
	}
	if err := sym.SetInt(arrayIndex, out); err != nil {
		vm.logger.Warnf("assign: %v", err)
	}
}

func boolToInt(b bool) int32 {
	if b {
		return 1
	}
	return 0
}

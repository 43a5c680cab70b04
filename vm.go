// Copyright 2022 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package dat

import (
	"fmt"
	"math"

	"github.com/go-kratos/kratos/v2/log"
)

// NumFakeStringSymbols is the size of the scratch-symbol ring the VM appends
// at construction. Transient strings pushed by the host cycle through these
// slots instead of allocating script-visible string objects per call; the
// pool size bounds how many pushed strings stay live at once.
const NumFakeStringSymbols = 5

// ExternalFunc is a host-implemented script function. The callback pops its
// arguments from the VM and may push a return value; it may also re-enter the
// VM through RunFunctionBySymbolIndex.
type ExternalFunc func(vm *VirtualMachine)

type frameKind uint8

const (
	frameAddress frameKind = iota
	frameSymbolIndex
)

// callFrame is one call-stack entry: either a raw return address or the
// index of the function symbol a run started at.
type callFrame struct {
	kind  frameKind
	value uint32
}

// vmState is a saved execution context; nested script invocation pushes one
// before entering and pops it on the way out.
type vmState struct {
	currentInstance       int
	currentInstanceHandle Handle
	currentInstanceClass  InstanceClass
	pc                    uint32
	stack                 []uint32
	callStack             []callFrame
}

// VirtualMachine interprets the code segment of a loaded file against its
// symbol table. Execution is single-threaded and cooperative; all mutation of
// symbols goes through table-indexed access.
type VirtualMachine struct {
	file *File

	pc        uint32
	stack     []uint32
	callStack []callFrame

	externals map[int]ExternalFunc

	currentInstance       int
	currentInstanceHandle Handle
	currentInstanceClass  InstanceClass

	registeredInstances map[InstanceClass][]int

	stateStack        []vmState
	fakeStringSymbols []int

	logger *log.Helper
}

// NewVirtualMachine loads the file at path and readies a VM for it.
func NewVirtualMachine(path string, opts *Options) (*VirtualMachine, error) {
	file, err := New(path, opts)
	if err != nil {
		return nil, err
	}
	if err := file.Parse(); err != nil {
		file.Close()
		return nil, err
	}
	return newVirtualMachine(file), nil
}

// NewVirtualMachineBytes readies a VM over an in-memory image.
func NewVirtualMachineBytes(data []byte, opts *Options) (*VirtualMachine, error) {
	file, err := NewBytes(data, opts)
	if err != nil {
		return nil, err
	}
	if err := file.Parse(); err != nil {
		return nil, err
	}
	return newVirtualMachine(file), nil
}

func newVirtualMachine(file *File) *VirtualMachine {
	vm := &VirtualMachine{
		file:                file,
		externals:           make(map[int]ExternalFunc),
		currentInstance:     -1,
		currentInstanceHandle: InvalidHandle,
		registeredInstances: make(map[InstanceClass][]int),
		logger:              file.logger,
	}

	for i := 0; i < NumFakeStringSymbols; i++ {
		sym, _ := NewSymbolBuilder("").SetKind(KindCharString).Build()
		index := vm.file.SymTable.Push(sym)
		vm.fakeStringSymbols = append(vm.fakeStringSymbols, index)
	}
	return vm
}

// File returns the loaded file.
func (vm *VirtualMachine) File() *File {
	return vm.file
}

// RegisterExternalFunction binds a host callback to the named external
// symbol; a later CallExternal of that symbol invokes the callback.
func (vm *VirtualMachine) RegisterExternalFunction(name string,
	fn ExternalFunc) error {

	index, err := vm.file.SymTable.GetIndexByName(name)
	if err != nil {
		return err
	}
	vm.externals[index] = fn
	return nil
}

// CurrentInstruction decodes the instruction at the program counter without
// advancing it.
func (vm *VirtualMachine) CurrentInstruction() (OpCode, error) {
	return vm.file.Code.InstructionAt(vm.pc)
}

// SetProgramCounter jumps execution to the given code offset.
func (vm *VirtualMachine) SetProgramCounter(target uint32) {
	vm.pc = target
}

// push appends one raw word.
func (vm *VirtualMachine) push(word uint32) {
	vm.stack = append(vm.stack, word)
}

// pop removes and returns the top word.
func (vm *VirtualMachine) pop() (uint32, bool) {
	n := len(vm.stack)
	if n == 0 {
		return 0, false
	}
	word := vm.stack[n-1]
	vm.stack = vm.stack[:n-1]
	return word, true
}

// PushInt pushes an immediate integer cell.
func (vm *VirtualMachine) PushInt(value int32) {
	vm.push(uint32(value))
	vm.push(uint32(OpPushInt))
}

// PushVar pushes a variable-reference cell for the symbol at index with the
// given array subscript.
func (vm *VirtualMachine) PushVar(index int, arrayIndex uint32) {
	vm.push(arrayIndex)
	vm.push(uint32(index))
	vm.push(uint32(OpPushVar))
}

// PushVarByName pushes a variable-reference cell for the named symbol.
func (vm *VirtualMachine) PushVarByName(name string) error {
	index, err := vm.file.SymTable.GetIndexByName(name)
	if err != nil {
		return err
	}
	vm.PushVar(index, 0)
	return nil
}

// PushString rewrites the next scratch symbol to s and pushes a reference to
// it. The scratch ring is cycled FIFO.
func (vm *VirtualMachine) PushString(s string) {
	index := vm.fakeStringSymbols[0]
	vm.fakeStringSymbols = append(vm.fakeStringSymbols[1:], index)

	if sym, err := vm.file.SymTable.GetByIndex(index); err == nil {
		sym.SetStringAt(0, s)
	}
	vm.PushVar(index, 0)
}

// PopInt pops one cell and coerces it to an integer. A tag the protocol does
// not allow here yields the 0 sentinel rather than an abort.
func (vm *VirtualMachine) PopInt() int32 {
	tag, ok := vm.pop()
	if !ok {
		return 0
	}
	switch Operator(tag) {
	case OpPushInt:
		value, _ := vm.pop()
		return int32(value)
	case OpPushVar:
		symIndex, _ := vm.pop()
		arrayIndex, _ := vm.pop()
		sym, err := vm.file.SymTable.GetByIndex(int(symIndex))
		if err != nil {
			return 0
		}
		if sym.Kind() == KindFloat {
			f, _ := sym.Float(arrayIndex)
			return int32(f)
		}
		return int32(sym.word(arrayIndex))
	default:
		vm.logger.Warnf("pop int: unexpected stack tag %s", Operator(tag))
		return 0
	}
}

// PopFloat pops one cell and coerces it to a float. Immediate cells carry
// the IEEE bit pattern; integer variables widen.
func (vm *VirtualMachine) PopFloat() float32 {
	tag, ok := vm.pop()
	if !ok {
		return 0
	}
	switch Operator(tag) {
	case OpPushInt:
		value, _ := vm.pop()
		return math.Float32frombits(value)
	case OpPushVar:
		symIndex, _ := vm.pop()
		arrayIndex, _ := vm.pop()
		sym, err := vm.file.SymTable.GetByIndex(int(symIndex))
		if err != nil {
			return 0
		}
		if sym.Kind() == KindInt {
			v, _ := sym.Int(arrayIndex)
			return float32(v)
		}
		f, _ := sym.Float(arrayIndex)
		return f
	default:
		vm.logger.Warnf("pop float: unexpected stack tag %s", Operator(tag))
		return 0
	}
}

// PopVar pops a variable-reference cell and returns (symbolIndex,
// arrayIndex). An immediate cell yields its value as the index; a protocol
// violation yields the (-1, 0) sentinel.
func (vm *VirtualMachine) PopVar() (int, uint32) {
	tag, ok := vm.pop()
	if !ok {
		return -1, 0
	}
	switch Operator(tag) {
	case OpPushInt:
		value, _ := vm.pop()
		return int(int32(value)), 0
	case OpPushVar:
		symIndex, _ := vm.pop()
		arrayIndex, _ := vm.pop()
		return int(int32(symIndex)), arrayIndex
	default:
		vm.logger.Warnf("pop var: unexpected stack tag %s", Operator(tag))
		return -1, 0
	}
}

// PopString pops a variable-reference cell and reads the referenced string
// element.
func (vm *VirtualMachine) PopString() string {
	symIndex, arrayIndex := vm.PopVar()
	if symIndex < 0 {
		return ""
	}
	sym, err := vm.file.SymTable.GetByIndex(symIndex)
	if err != nil {
		return ""
	}
	s, err := sym.StringAt(arrayIndex)
	if err != nil {
		return ""
	}
	return s
}

// IsStackEmpty reports whether the evaluation stack holds no cells.
func (vm *VirtualMachine) IsStackEmpty() bool {
	return len(vm.stack) == 0
}

// PushState saves the execution context: program counter, both stacks and
// the current-instance registers. Every PushState must be paired with a
// PopState on all exits.
func (vm *VirtualMachine) PushState() {
	state := vmState{
		currentInstance:       vm.currentInstance,
		currentInstanceHandle: vm.currentInstanceHandle,
		currentInstanceClass:  vm.currentInstanceClass,
		pc:                    vm.pc,
		stack:                 append([]uint32(nil), vm.stack...),
		callStack:             append([]callFrame(nil), vm.callStack...),
	}
	vm.stateStack = append(vm.stateStack, state)
}

// PopState restores the most recently saved execution context.
func (vm *VirtualMachine) PopState() {
	n := len(vm.stateStack)
	if n == 0 {
		return
	}
	state := vm.stateStack[n-1]
	vm.stateStack = vm.stateStack[:n-1]

	vm.currentInstance = state.currentInstance
	vm.currentInstanceHandle = state.currentInstanceHandle
	vm.currentInstanceClass = state.currentInstanceClass
	vm.pc = state.pc
	vm.stack = state.stack
	vm.callStack = state.callStack
}

// RunFunctionBySymbolIndex executes the function behind the symbol at index
// until its top-level return. When the function symbol carries the Return
// flag the result left on the stack is popped and returned; otherwise the
// result is 0. The caller's execution context is restored on exit.
func (vm *VirtualMachine) RunFunctionBySymbolIndex(index int,
	clearDataStack bool) (int32, error) {

	sym, err := vm.file.SymTable.GetByIndex(index)
	if err != nil {
		return 0, err
	}
	address, err := sym.Address()
	if err != nil {
		return 0, fmt.Errorf("%w: function symbol %q", ErrNoAddress,
			sym.Name())
	}

	vm.PushState()
	defer vm.PopState()

	if clearDataStack {
		vm.stack = vm.stack[:0]
	}
	vm.callStack = append(vm.callStack,
		callFrame{kind: frameSymbolIndex, value: uint32(index)})
	vm.pc = address

	for vm.doStack() {
	}

	var result int32
	if sym.Properties().HasFlag(SymbolFlagReturn) && len(vm.stack) > 0 {
		result = vm.PopInt()
	}
	return result, nil
}

// SetCurrentInstance selects the symbol at index as the current instance and
// propagates its materialized handle and class into the instance registers.
func (vm *VirtualMachine) SetCurrentInstance(index int) error {
	sym, err := vm.file.SymTable.GetByIndex(index)
	if err != nil {
		return err
	}
	handle, class := sym.InstanceData()
	vm.currentInstance = index
	vm.currentInstanceHandle = handle
	vm.currentInstanceClass = class
	return nil
}

// SetInstance attaches a materialized record to the named instance symbol
// and registers the symbol under its class.
func (vm *VirtualMachine) SetInstance(name string, handle Handle,
	class InstanceClass) error {

	index, err := vm.file.SymTable.GetIndexByName(name)
	if err != nil {
		return err
	}
	sym, _ := vm.file.SymTable.GetByIndex(index)
	sym.SetInstanceData(handle, class)
	vm.registerInstance(index, class)
	return nil
}

// InitialiseInstance attaches the record behind handle to the symbol at
// index and runs the symbol's initializer with it as the current instance.
func (vm *VirtualMachine) InitialiseInstance(handle Handle, index int,
	class InstanceClass) error {

	sym, err := vm.file.SymTable.GetByIndex(index)
	if err != nil {
		return err
	}
	address, err := sym.Address()
	if err != nil {
		return fmt.Errorf("%w: instance symbol %q cannot be initialized",
			ErrNoAddress, sym.Name())
	}

	sym.SetInstanceData(handle, class)
	vm.registerInstance(index, class)

	vm.PushState()
	defer vm.PopState()

	vm.currentInstance = index
	vm.currentInstanceHandle = handle
	vm.currentInstanceClass = class

	vm.callStack = append(vm.callStack,
		callFrame{kind: frameSymbolIndex, value: uint32(index)})
	vm.pc = address

	for vm.doStack() {
	}
	return nil
}

func (vm *VirtualMachine) registerInstance(index int, class InstanceClass) {
	if !intInSlice(index, vm.registeredInstances[class]) {
		vm.registeredInstances[class] = append(vm.registeredInstances[class],
			index)
	}
}

// GetRegisteredInstancesOf returns the indices of the instance symbols
// registered under class, in registration order.
func (vm *VirtualMachine) GetRegisteredInstancesOf(class InstanceClass) []int {
	return vm.registeredInstances[class]
}

// GetCurrentInstance returns the symbol index of the current instance, or -1
// when none is set.
func (vm *VirtualMachine) GetCurrentInstance() int {
	return vm.currentInstance
}

// GetCurrentInstanceHandle returns the handle of the current instance
// record.
func (vm *VirtualMachine) GetCurrentInstanceHandle() Handle {
	return vm.currentInstanceHandle
}

// GetCurrentInstanceClass returns the pool class of the current instance.
func (vm *VirtualMachine) GetCurrentInstanceClass() InstanceClass {
	return vm.currentInstanceClass
}

// GetCurrentInstanceData returns the materialized record reference of the
// current instance; the host resolves it through its game-state pools.
func (vm *VirtualMachine) GetCurrentInstanceData() (Handle, InstanceClass, error) {
	if vm.currentInstance < 0 {
		return InvalidHandle, ClassNone, ErrNoCurrentInstance
	}
	return vm.currentInstanceHandle, vm.currentInstanceClass, nil
}

// GetCallStack renders the call stack as a human-readable frame list, the
// innermost frame first.
func (vm *VirtualMachine) GetCallStack() []string {
	frames := make([]string, 0, len(vm.callStack))
	for i := len(vm.callStack) - 1; i >= 0; i-- {
		frame := vm.callStack[i]
		switch frame.kind {
		case frameSymbolIndex:
			if sym, err := vm.file.SymTable.GetByIndex(int(frame.value)); err == nil {
				frames = append(frames, sym.Name())
				continue
			}
			frames = append(frames, fmt.Sprintf("sym:%d", frame.value))
		case frameAddress:
			if index, err := vm.file.SymTable.GetFunctionIndexByAddress(
				frame.value); err == nil {
				if sym, err := vm.file.SymTable.GetByIndex(index); err == nil {
					frames = append(frames, sym.Name())
					continue
				}
			}
			frames = append(frames, fmt.Sprintf("%#x", frame.value))
		}
	}
	return frames
}

// ClearCallStack drops all frames.
func (vm *VirtualMachine) ClearCallStack() {
	vm.callStack = vm.callStack[:0]
}

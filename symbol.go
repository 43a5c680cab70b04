// Copyright 2022 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package dat

import (
	"fmt"
	"math"
)

// Bit layout of the packed element word. The low 12 bits carry the element
// count, the next nibble the kind, then six flag bits and one reserved
// "space" bit; the remainder is unused.
const (
	elementCountMask  = 0xFFF
	elementKindShift  = 12
	elementKindMask   = 0xF
	elementFlagsShift = 16
	elementFlagsMask  = 0x3F
	elementSpaceShift = 22

	// lineInfoMask covers fileIndex, lineStart and lineCount (19 value bits).
	lineInfoMask = 0x7FFFF

	// charInfoMask covers charStart and charCount (24 value bits).
	charInfoMask = 0xFFFFFF
)

// SymbolProperties is the fixed-width portion of an on-disk symbol record:
// the overloaded offset/return word plus the five packed source-position
// words. All accessors decode by shift and mask; the raw words are kept so a
// record can be written back verbatim.
type SymbolProperties struct {
	// OffClsRet is a class-member byte offset when the symbol is a class
	// member, or the return type tag for Func/Prototype symbols.
	OffClsRet int32

	element   uint32
	fileIndex uint32
	lineStart uint32
	lineCount uint32
	charStart uint32
	charCount uint32
}

// NewSymbolProperties assembles properties from the raw on-disk words and
// validates the kind nibble.
func NewSymbolProperties(offClsRet int32, element, fileIndex, lineStart,
	lineCount, charStart, charCount uint32) (SymbolProperties, error) {

	p := SymbolProperties{
		OffClsRet: offClsRet,
		element:   element,
		fileIndex: fileIndex,
		lineStart: lineStart,
		lineCount: lineCount,
		charStart: charStart,
		charCount: charCount,
	}
	if p.Kind() > KindInstance {
		return p, fmt.Errorf("%w: %d", ErrInvalidKind, uint32(p.Kind()))
	}
	return p, nil
}

// Count returns the element count for array-valued symbols (1 for scalars).
func (p *SymbolProperties) Count() uint32 {
	return p.element & elementCountMask
}

// Kind returns the symbol kind stored in the element word.
func (p *SymbolProperties) Kind() Kind {
	return Kind((p.element >> elementKindShift) & elementKindMask)
}

// Flags returns the flag bits stored in the element word.
func (p *SymbolProperties) Flags() SymbolFlag {
	return SymbolFlag((p.element >> elementFlagsShift) & elementFlagsMask)
}

// HasFlag returns true when every bit of flag is set.
func (p *SymbolProperties) HasFlag(flag SymbolFlag) bool {
	return p.Flags()&flag == flag
}

// IsNotFlag returns true when no bit of flag is set.
func (p *SymbolProperties) IsNotFlag(flag SymbolFlag) bool {
	return p.Flags()&flag == 0
}

// SetCount stores the element count in the element word.
func (p *SymbolProperties) SetCount(count uint32) {
	p.element = (p.element &^ uint32(elementCountMask)) | (count & elementCountMask)
}

// SetKind stores the kind nibble in the element word.
func (p *SymbolProperties) SetKind(kind Kind) {
	p.element = (p.element &^ uint32(elementKindMask<<elementKindShift)) |
		(uint32(kind)&elementKindMask)<<elementKindShift
}

// SetFlags stores the flag bits in the element word.
func (p *SymbolProperties) SetFlags(flags SymbolFlag) {
	p.element = (p.element &^ uint32(elementFlagsMask<<elementFlagsShift)) |
		(uint32(flags)&elementFlagsMask)<<elementFlagsShift
}

// Element returns the raw packed element word.
func (p *SymbolProperties) Element() uint32 {
	return p.element
}

// FileIndex returns the source file index.
func (p *SymbolProperties) FileIndex() uint32 {
	return p.fileIndex & lineInfoMask
}

// LineStart returns the first source line of the declaration.
func (p *SymbolProperties) LineStart() uint32 {
	return p.lineStart & lineInfoMask
}

// LineCount returns the number of source lines of the declaration.
func (p *SymbolProperties) LineCount() uint32 {
	return p.lineCount & lineInfoMask
}

// CharStart returns the character offset of the declaration.
func (p *SymbolProperties) CharStart() uint32 {
	return p.charStart & charInfoMask
}

// CharCount returns the character length of the declaration.
func (p *SymbolProperties) CharCount() uint32 {
	return p.charCount & charInfoMask
}

// Symbol is one entry of the symbol table: a script-level variable, constant,
// class, prototype, instance or function. Scalar symbols own their data;
// Func/Prototype/Instance symbols carry a code address instead. Symbols are
// addressed by their stable table index for the life of the VM, so mutation
// goes through table-indexed lookups rather than held references.
type Symbol struct {
	name  string
	props SymbolProperties

	// Valid for classes that write directly into host records; set when the
	// host registers a class field binding.
	classMemberOffset    int32
	classMemberArraySize int32

	// Valid for kind Instance after materialization.
	instanceDataHandle Handle
	instanceDataClass  InstanceClass

	parent  uint32
	address uint32

	floatData  []float32
	intData    []int32
	stringData []string
}

// Name returns the symbol name; the empty string means anonymous.
func (sym *Symbol) Name() string {
	return sym.name
}

// Properties returns the fixed-width record portion.
func (sym *Symbol) Properties() *SymbolProperties {
	return &sym.props
}

// Kind returns the symbol kind.
func (sym *Symbol) Kind() Kind {
	return sym.props.Kind()
}

// Parent returns the parent symbol index; 0 means none.
func (sym *Symbol) Parent() uint32 {
	return sym.parent
}

// Address returns the code offset of a Func/Prototype/Instance symbol.
func (sym *Symbol) Address() (uint32, error) {
	if sym.address == 0 {
		return 0, ErrNoAddress
	}
	return sym.address, nil
}

// SetAddress updates the code offset.
func (sym *Symbol) SetAddress(address uint32) {
	sym.address = address
}

// SetClassMember records the host-struct layout binding.
func (sym *Symbol) SetClassMember(offset, arraySize int32) {
	sym.classMemberOffset = offset
	sym.classMemberArraySize = arraySize
}

// ClassMember returns the host-struct binding recorded for the symbol.
func (sym *Symbol) ClassMember() (offset, arraySize int32) {
	return sym.classMemberOffset, sym.classMemberArraySize
}

// SetInstanceData attaches the materialized instance record to the symbol.
func (sym *Symbol) SetInstanceData(handle Handle, class InstanceClass) {
	sym.instanceDataHandle = handle
	sym.instanceDataClass = class
}

// InstanceData returns the handle and class tag attached to an Instance
// symbol; the handle is invalid before materialization.
func (sym *Symbol) InstanceData() (Handle, InstanceClass) {
	return sym.instanceDataHandle, sym.instanceDataClass
}

// DataLen returns the number of data elements the symbol stores.
func (sym *Symbol) DataLen() int {
	switch sym.props.Kind() {
	case KindFloat:
		return len(sym.floatData)
	case KindInt:
		return len(sym.intData)
	case KindCharString:
		return len(sym.stringData)
	}
	return 0
}

// Int returns the n-th int element.
func (sym *Symbol) Int(n uint32) (int32, error) {
	if int(n) >= len(sym.intData) {
		return 0, fmt.Errorf("%w: %s[%d]", ErrIndexOutOfBounds, sym.name, n)
	}
	return sym.intData[n], nil
}

// SetInt writes the n-th int element.
func (sym *Symbol) SetInt(n uint32, v int32) error {
	if int(n) >= len(sym.intData) {
		return fmt.Errorf("%w: %s[%d]", ErrIndexOutOfBounds, sym.name, n)
	}
	sym.intData[n] = v
	return nil
}

// Float returns the n-th float element.
func (sym *Symbol) Float(n uint32) (float32, error) {
	if int(n) >= len(sym.floatData) {
		return 0, fmt.Errorf("%w: %s[%d]", ErrIndexOutOfBounds, sym.name, n)
	}
	return sym.floatData[n], nil
}

// SetFloat writes the n-th float element.
func (sym *Symbol) SetFloat(n uint32, v float32) error {
	if int(n) >= len(sym.floatData) {
		return fmt.Errorf("%w: %s[%d]", ErrIndexOutOfBounds, sym.name, n)
	}
	sym.floatData[n] = v
	return nil
}

// StringAt returns the n-th string element.
func (sym *Symbol) StringAt(n uint32) (string, error) {
	if int(n) >= len(sym.stringData) {
		return "", fmt.Errorf("%w: %s[%d]", ErrIndexOutOfBounds, sym.name, n)
	}
	return sym.stringData[n], nil
}

// SetStringAt writes the n-th string element.
func (sym *Symbol) SetStringAt(n uint32, v string) error {
	if int(n) >= len(sym.stringData) {
		return fmt.Errorf("%w: %s[%d]", ErrIndexOutOfBounds, sym.name, n)
	}
	sym.stringData[n] = v
	return nil
}

// word returns the n-th data element as a raw machine word, the uniform
// representation the evaluation stack works in. Floats travel as their IEEE
// bit pattern.
func (sym *Symbol) word(n uint32) uint32 {
	switch sym.props.Kind() {
	case KindInt:
		if int(n) < len(sym.intData) {
			return uint32(sym.intData[n])
		}
	case KindFloat:
		if int(n) < len(sym.floatData) {
			return math.Float32bits(sym.floatData[n])
		}
	case KindFunc, KindPrototype, KindInstance:
		return sym.address
	}
	return 0
}

// SymbolBuilder assembles a Symbol from loader reads or host code. Build
// fails when a data-carrying kind ends up without its payload.
type SymbolBuilder struct {
	name       string
	props      SymbolProperties
	hasProps   bool
	classOff   int32
	classSize  int32
	parent     uint32
	address    uint32
	floatData  []float32
	intData    []int32
	stringData []string
}

// NewSymbolBuilder returns a builder for a symbol with the given name; the
// empty string builds an anonymous symbol.
func NewSymbolBuilder(name string) *SymbolBuilder {
	return &SymbolBuilder{name: name}
}

// WithProperties sets the fixed-width record portion.
func (b *SymbolBuilder) WithProperties(props SymbolProperties) *SymbolBuilder {
	b.props = props
	b.hasProps = true
	return b
}

// SetKind sets the kind on the builder's properties and, for scalar kinds
// with no payload yet, installs a single zero element so the symbol is usable
// immediately. Used for the scratch symbols the VM appends at construction.
func (b *SymbolBuilder) SetKind(kind Kind) *SymbolBuilder {
	b.props.SetKind(kind)
	if b.props.Count() == 0 {
		b.props.SetCount(1)
	}
	b.hasProps = true
	switch kind {
	case KindCharString:
		if b.stringData == nil {
			b.stringData = []string{""}
		}
	case KindFloat:
		if b.floatData == nil {
			b.floatData = []float32{0}
		}
	case KindInt:
		if b.intData == nil {
			b.intData = []int32{0}
		}
	}
	return b
}

// WithClassOffset records the class-member byte offset payload.
func (b *SymbolBuilder) WithClassOffset(offset int32) *SymbolBuilder {
	b.classOff = offset
	return b
}

// WithClassArraySize records the class-member array size.
func (b *SymbolBuilder) WithClassArraySize(size int32) *SymbolBuilder {
	b.classSize = size
	return b
}

// WithParent records the parent symbol index (0 means none).
func (b *SymbolBuilder) WithParent(parent uint32) *SymbolBuilder {
	b.parent = parent
	return b
}

// WithAddress records the code offset.
func (b *SymbolBuilder) WithAddress(address uint32) *SymbolBuilder {
	b.address = address
	return b
}

// WithFloatData sets the float payload.
func (b *SymbolBuilder) WithFloatData(data []float32) *SymbolBuilder {
	b.floatData = data
	return b
}

// WithIntData sets the int payload.
func (b *SymbolBuilder) WithIntData(data []int32) *SymbolBuilder {
	b.intData = data
	return b
}

// WithStringData sets the string payload.
func (b *SymbolBuilder) WithStringData(data []string) *SymbolBuilder {
	b.stringData = data
	return b
}

// Build validates and produces the symbol.
func (b *SymbolBuilder) Build() (*Symbol, error) {
	if !b.hasProps {
		return nil, fmt.Errorf("cannot build symbol %q: properties are missing",
			b.name)
	}
	if b.props.IsNotFlag(SymbolFlagClassVar) {
		switch b.props.Kind() {
		case KindFloat:
			if b.floatData == nil {
				return nil, fmt.Errorf("%w: %q is of kind %s", ErrMissingData,
					b.name, b.props.Kind())
			}
		case KindInt:
			if b.intData == nil {
				return nil, fmt.Errorf("%w: %q is of kind %s", ErrMissingData,
					b.name, b.props.Kind())
			}
		case KindCharString:
			if b.stringData == nil {
				return nil, fmt.Errorf("%w: %q is of kind %s", ErrMissingData,
					b.name, b.props.Kind())
			}
		}
	}
	return &Symbol{
		name:                 b.name,
		props:                b.props,
		classMemberOffset:    b.classOff,
		classMemberArraySize: b.classSize,
		instanceDataHandle:   InvalidHandle,
		parent:               b.parent,
		address:              b.address,
		floatData:            b.floatData,
		intData:              b.intData,
		stringData:           b.stringData,
	}, nil
}

// Copyright 2022 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package dat

import (
	"bytes"
	"encoding/binary"
	"math"
)

// packElement assembles the packed element word of a symbol record.
func packElement(count uint32, kind Kind, flags SymbolFlag) uint32 {
	return (count & elementCountMask) |
		(uint32(kind)&elementKindMask)<<elementKindShift |
		(uint32(flags)&elementFlagsMask)<<elementFlagsShift
}

// symSpec describes one symbol record of a test image.
type symSpec struct {
	anonymous bool
	name      string
	offClsRet int32
	count     uint32
	kind      Kind
	flags     SymbolFlag
	parent    uint32

	intData     []int32
	floatData   []float32
	stringData  []string
	classOffset int32
	address     uint32

	// rawElement overrides the packed element word when nonzero; used to
	// smuggle invalid kind codes past the pack helper.
	rawElement uint32
}

// buildDAT assembles a little-endian in-memory image from symbol specs and a
// raw code segment.
func buildDAT(syms []symSpec, code []byte) []byte {
	buf := new(bytes.Buffer)
	le := binary.LittleEndian

	u32 := func(v uint32) {
		var w [4]byte
		le.PutUint32(w[:], v)
		buf.Write(w[:])
	}

	buf.WriteByte(0x32) // toolchain version
	u32(uint32(len(syms)))
	for i := range syms {
		u32(uint32(i)) // sort table, identity order
	}

	for _, s := range syms {
		if s.anonymous {
			u32(0)
		} else {
			u32(1)
			buf.WriteString(s.name)
			buf.WriteByte(stringTerminator)
		}

		u32(uint32(s.offClsRet))
		element := s.rawElement
		if element == 0 {
			element = packElement(s.count, s.kind, s.flags)
		}
		u32(element)
		u32(0) // fileIndex
		u32(0) // lineStart
		u32(0) // lineCount
		u32(0) // charStart
		u32(0) // charCount

		if s.flags&SymbolFlagClassVar == 0 {
			switch s.kind {
			case KindFloat:
				for _, f := range s.floatData {
					u32(math.Float32bits(f))
				}
			case KindInt:
				for _, v := range s.intData {
					u32(uint32(v))
				}
			case KindCharString:
				for _, str := range s.stringData {
					buf.WriteString(str)
					buf.WriteByte(stringTerminator)
				}
			case KindClass:
				u32(uint32(s.classOffset))
			case KindFunc, KindPrototype, KindInstance:
				u32(s.address)
			}
		}

		u32(s.parent)
	}

	u32(uint32(len(code)))
	buf.Write(code)
	return buf.Bytes()
}

// codeBuf assembles a code segment instruction by instruction.
type codeBuf struct {
	b []byte
}

func (c *codeBuf) pos() uint32 {
	return uint32(len(c.b))
}

func (c *codeBuf) emit(op Operator) *codeBuf {
	c.b = append(c.b, byte(op))
	return c
}

func (c *codeBuf) emitI32(op Operator, v int32) *codeBuf {
	c.b = append(c.b, byte(op))
	var w [4]byte
	binary.LittleEndian.PutUint32(w[:], uint32(v))
	c.b = append(c.b, w[:]...)
	return c
}

func (c *codeBuf) emitArrayVar(symbol int32, index byte) *codeBuf {
	c.b = append(c.b, byte(OpPushArrayVar))
	var w [4]byte
	binary.LittleEndian.PutUint32(w[:], uint32(symbol))
	c.b = append(c.b, w[:]...)
	c.b = append(c.b, index)
	return c
}

// mustParse builds and parses an image, failing the test on error.
func mustParse(t testingT, syms []symSpec, code []byte) *File {
	t.Helper()
	f, err := NewBytes(buildDAT(syms, code), &Options{})
	if err != nil {
		t.Fatalf("NewBytes failed, reason: %v", err)
	}
	if err := f.Parse(); err != nil {
		t.Fatalf("Parse failed, reason: %v", err)
	}
	return f
}

// testingT is the subset of *testing.T the fixture helpers use.
type testingT interface {
	Helper()
	Fatalf(format string, args ...interface{})
}

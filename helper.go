// Copyright 2022 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package dat

import (
	"encoding/binary"
	"errors"
	"math"

	"golang.org/x/text/encoding/charmap"
)

const (
	// TinyDATSize is the smallest loadable .DAT image: a version byte, a zero
	// symbol count and a zero code-segment size.
	TinyDATSize = 9

	// MaxDefaultSymbolsCount represents the default maximum number of symbols
	// to parse. A corrupt file can declare a fake huge count that would cause
	// an OOM exception.
	MaxDefaultSymbolsCount = 0x10000

	// stringTerminator ends every on-disk character sequence.
	stringTerminator = 0x0A

	// stringSkipByte is the scripts' reserved-string prefix; it acts as a soft
	// delimiter and is dropped while reading.
	stringSkipByte = 0xFF
)

// Errors
var (
	// ErrInvalidDATSize is returned when the image is smaller than the
	// smallest possible .DAT file.
	ErrInvalidDATSize = errors.New("not a DAT file, smaller than tiny DAT")

	// ErrOutsideBoundary is reported when attempting to read beyond the file
	// image limits.
	ErrOutsideBoundary = errors.New("reading data outside boundary")

	// ErrSymbolsCountTooHigh is returned when the declared symbol count
	// exceeds the configured maximum.
	ErrSymbolsCountTooHigh = errors.New("symbols count is absurdly high")

	// ErrInvalidKind is returned when a symbol's packed kind nibble is not a
	// defined Kind value.
	ErrInvalidKind = errors.New("invalid symbol kind code")

	// ErrMissingData is returned when a Float/Int/CharString symbol is built
	// without its data payload.
	ErrMissingData = errors.New("symbol data payload missing")

	// ErrUnknownOperator is returned when decoding hits an operator byte with
	// no entry in the instruction table.
	ErrUnknownOperator = errors.New("unknown operator byte")

	// ErrSymbolNotFound is returned when a name lookup misses.
	ErrSymbolNotFound = errors.New("symbol not found")

	// ErrIndexOutOfBounds is returned when a symbol index lies outside the
	// table.
	ErrIndexOutOfBounds = errors.New("symbol index out of bounds")

	// ErrFunctionNotFound is returned when no function symbol is registered
	// at the requested code address.
	ErrFunctionNotFound = errors.New("no function at address")

	// ErrNoAddress is returned when a Func/Prototype/Instance symbol carries
	// no code address.
	ErrNoAddress = errors.New("symbol address is not specified")

	// ErrNoCurrentInstance is reported when an operation requires a current
	// instance and none is set.
	ErrNoCurrentInstance = errors.New("no current instance set")

	// ErrNoSpaceLeft is returned when an object pool is exhausted.
	ErrNoSpaceLeft = errors.New("no space left")

	// ErrNoInventory is returned when an NPC handle owns no inventory.
	ErrNoInventory = errors.New("npc has no inventory")
)

// win1252 decodes the single-byte codepage Daedalus scripts are written in.
var win1252 = charmap.Windows1252

// ReadUint32 read a uint32 from the image.
func (f *File) ReadUint32(offset uint32) (uint32, error) {
	if f.size < 4 || offset > f.size-4 {
		return 0, ErrOutsideBoundary
	}

	return binary.LittleEndian.Uint32(f.data[offset:]), nil
}

// ReadUint16 read a uint16 from the image.
func (f *File) ReadUint16(offset uint32) (uint16, error) {
	if f.size < 2 || offset > f.size-2 {
		return 0, ErrOutsideBoundary
	}

	return binary.LittleEndian.Uint16(f.data[offset:]), nil
}

// ReadUint8 read a uint8 from the image.
func (f *File) ReadUint8(offset uint32) (uint8, error) {
	if offset+1 > f.size {
		return 0, ErrOutsideBoundary
	}

	return f.data[offset], nil
}

// ReadFloat32 read a float32 from the image.
func (f *File) ReadFloat32(offset uint32) (float32, error) {
	bits, err := f.ReadUint32(offset)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(bits), nil
}

// ReadBytesAtOffset returns a byte array from offset.
func (f *File) ReadBytesAtOffset(offset, size uint32) ([]byte, error) {
	// Boundary check
	totalSize := offset + size

	// Integer overflow
	if (totalSize > offset) != (size > 0) {
		return nil, ErrOutsideBoundary
	}

	if offset >= f.size || totalSize > f.size {
		return nil, ErrOutsideBoundary
	}

	return f.data[offset : offset+size], nil
}

// cursor is a seekable little-endian reader over the mapped image. The symbol
// records are field-packed with no alignment, so every read advances by the
// exact number of bytes consumed.
type cursor struct {
	f   *File
	pos uint32
}

func (c *cursor) seek(pos uint32) {
	c.pos = pos
}

func (c *cursor) u8() (uint8, error) {
	v, err := c.f.ReadUint8(c.pos)
	if err != nil {
		return 0, err
	}
	c.pos++
	return v, nil
}

func (c *cursor) u32() (uint32, error) {
	v, err := c.f.ReadUint32(c.pos)
	if err != nil {
		return 0, err
	}
	c.pos += 4
	return v, nil
}

func (c *cursor) i32() (int32, error) {
	v, err := c.u32()
	return int32(v), err
}

func (c *cursor) f32() (float32, error) {
	v, err := c.f.ReadFloat32(c.pos)
	if err != nil {
		return 0, err
	}
	c.pos += 4
	return v, nil
}

// readString accumulates characters until the 0x0A terminator, dropping any
// 0xFF byte, and decodes the sequence from Windows-1252.
func (c *cursor) readString() (string, error) {
	raw := make([]byte, 0, 16)
	for {
		b, err := c.u8()
		if err != nil {
			return "", err
		}
		if b == stringTerminator {
			break
		}
		if b == stringSkipByte {
			continue
		}
		raw = append(raw, b)
	}

	decoded, err := win1252.NewDecoder().Bytes(raw)
	if err != nil {
		return string(raw), nil
	}
	return string(decoded), nil
}

// intInSlice checks weather an int exists in a slice of int.
func intInSlice(a int, list []int) bool {
	for _, b := range list {
		if b == a {
			return true
		}
	}
	return false
}

// Copyright 2022 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package dat

import (
	"fmt"
	"os"

	mmap "github.com/edsrzf/mmap-go"
	"github.com/go-kratos/kratos/v2/log"
)

// A File represents an open compiled Daedalus script file.
type File struct {
	// Version is the toolchain version byte from the header.
	Version uint8

	// SymTable is the symbol catalog reconstructed from the file.
	SymTable *SymbolTable

	// Code addresses the raw instruction stream after the symbol records.
	Code CodeSegment

	data   mmap.MMap
	size   uint32
	f      *os.File
	opts   *Options
	logger *log.Helper
}

// Options for parsing.
type Options struct {

	// Maximum number of symbols to parse, by default (MaxDefaultSymbolsCount).
	MaxSymbolsCount uint32

	// A custom logger.
	Logger log.Logger
}

// New instantiates a file instance with options given a file name.
func New(name string, opts *Options) (*File, error) {

	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}

	// Memory map the file instead of using read/write.
	data, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, err
	}

	file := File{}
	if opts != nil {
		file.opts = opts
	} else {
		file.opts = &Options{}
	}

	if file.opts.MaxSymbolsCount == 0 {
		file.opts.MaxSymbolsCount = MaxDefaultSymbolsCount
	}

	var logger log.Logger
	if file.opts.Logger == nil {
		logger = log.NewStdLogger(os.Stdout)
		file.logger = log.NewHelper(log.NewFilter(logger,
			log.FilterLevel(log.LevelError)))
	} else {
		file.logger = log.NewHelper(file.opts.Logger)
	}

	file.data = data
	file.size = uint32(len(file.data))
	file.f = f
	return &file, nil
}

// NewBytes instantiates a file instance with options given a memory buffer.
func NewBytes(data []byte, opts *Options) (*File, error) {

	file := File{}
	if opts != nil {
		file.opts = opts
	} else {
		file.opts = &Options{}
	}

	if file.opts.MaxSymbolsCount == 0 {
		file.opts.MaxSymbolsCount = MaxDefaultSymbolsCount
	}

	var logger log.Logger
	if file.opts.Logger == nil {
		logger = log.NewStdLogger(os.Stdout)
		file.logger = log.NewHelper(log.NewFilter(logger,
			log.FilterLevel(log.LevelError)))
	} else {
		file.logger = log.NewHelper(file.opts.Logger)
	}

	file.data = data
	file.size = uint32(len(file.data))
	return &file, nil
}

// Close closes the File.
func (f *File) Close() error {
	if f.f != nil {
		_ = f.data.Unmap()
		return f.f.Close()
	}
	return nil
}

// Parse reads the header, reconstructs the symbol table and records the code
// segment. The instruction bytes stay in place for on-demand decode.
func (f *File) Parse() error {

	// Check for the smallest possible DAT size.
	if len(f.data) < TinyDATSize {
		return ErrInvalidDATSize
	}

	cur := cursor{f: f}

	version, err := cur.u8()
	if err != nil {
		return err
	}
	f.Version = version

	count, err := cur.u32()
	if err != nil {
		return err
	}
	if count > f.opts.MaxSymbolsCount {
		return ErrSymbolsCountTooHigh
	}

	symTable := NewSymbolTableWithCapacity(int(count))

	// The sort table is an alphabetic ordering hint; it is stored verbatim
	// and carries no semantics during execution.
	sortTable := make([]uint32, count)
	for i := range sortTable {
		if sortTable[i], err = cur.u32(); err != nil {
			return fmt.Errorf("sort table entry %d: %w", i, err)
		}
	}
	symTable.WriteSortTable(sortTable)

	for i := uint32(0); i < count; i++ {
		recordOffset := cur.pos
		sym, err := f.parseSymbolRecord(&cur)
		if err != nil {
			return fmt.Errorf("symbol %d at offset %#x: %w", i, recordOffset,
				err)
		}
		if sym.name != "" && symTable.HasName(sym.name) {
			f.logger.Warnf("duplicate symbol name %q, last writer wins",
				sym.name)
		}
		symTable.Insert(symTable.Len(), sym)
	}

	codeSize, err := cur.i32()
	if err != nil {
		return err
	}
	if codeSize < 0 || cur.pos+uint32(codeSize) > f.size {
		return fmt.Errorf("code segment of %d bytes at offset %#x: %w",
			codeSize, cur.pos, ErrOutsideBoundary)
	}

	f.SymTable = symTable
	f.Code = CodeSegment{f: f, Offset: cur.pos, Size: uint32(codeSize)}
	return nil
}

// parseSymbolRecord reads one field-packed symbol record at the cursor.
func (f *File) parseSymbolRecord(cur *cursor) (*Symbol, error) {

	hasName, err := cur.u32()
	if err != nil {
		return nil, err
	}
	name := ""
	if hasName != 0 {
		if name, err = cur.readString(); err != nil {
			return nil, err
		}
	}
	builder := NewSymbolBuilder(name)

	offClsRet, err := cur.i32()
	if err != nil {
		return nil, err
	}
	var packed [5]uint32
	element, err := cur.u32()
	if err != nil {
		return nil, err
	}
	for i := range packed {
		if packed[i], err = cur.u32(); err != nil {
			return nil, err
		}
	}
	props, err := NewSymbolProperties(offClsRet, element, packed[0], packed[1],
		packed[2], packed[3], packed[4])
	if err != nil {
		return nil, err
	}
	builder.WithProperties(props)

	// Class member variables store their values inside the instance record,
	// so only free-standing symbols carry a payload.
	if props.IsNotFlag(SymbolFlagClassVar) {
		switch props.Kind() {
		case KindFloat:
			data := make([]float32, props.Count())
			for i := range data {
				if data[i], err = cur.f32(); err != nil {
					return nil, err
				}
			}
			builder.WithFloatData(data)
		case KindInt:
			data := make([]int32, props.Count())
			for i := range data {
				if data[i], err = cur.i32(); err != nil {
					return nil, err
				}
			}
			builder.WithIntData(data)
		case KindCharString:
			data := make([]string, props.Count())
			for i := range data {
				if data[i], err = cur.readString(); err != nil {
					return nil, err
				}
			}
			builder.WithStringData(data)
		case KindClass:
			offset, err := cur.i32()
			if err != nil {
				return nil, err
			}
			builder.WithClassOffset(offset)
		case KindFunc, KindPrototype, KindInstance:
			address, err := cur.u32()
			if err != nil {
				return nil, err
			}
			builder.WithAddress(address)
		}
	}

	parent, err := cur.u32()
	if err != nil {
		return nil, err
	}
	builder.WithParent(parent)

	return builder.Build()
}

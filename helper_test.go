// Copyright 2022 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package dat

import (
	"errors"
	"testing"
)

func TestBoundedReads(t *testing.T) {
	f, err := NewBytes([]byte{0x01, 0x02, 0x03, 0x04, 0x05}, &Options{})
	if err != nil {
		t.Fatalf("NewBytes failed, reason: %v", err)
	}

	v32, err := f.ReadUint32(0)
	if err != nil || v32 != 0x04030201 {
		t.Errorf("ReadUint32 assertion failed, got: %#x (%v)", v32, err)
	}
	if _, err := f.ReadUint32(2); !errors.Is(err, ErrOutsideBoundary) {
		t.Errorf("error assertion failed, want: %v, got: %v",
			ErrOutsideBoundary, err)
	}

	v16, err := f.ReadUint16(3)
	if err != nil || v16 != 0x0504 {
		t.Errorf("ReadUint16 assertion failed, got: %#x (%v)", v16, err)
	}

	v8, err := f.ReadUint8(4)
	if err != nil || v8 != 0x05 {
		t.Errorf("ReadUint8 assertion failed, got: %#x (%v)", v8, err)
	}
	if _, err := f.ReadUint8(5); !errors.Is(err, ErrOutsideBoundary) {
		t.Errorf("error assertion failed, want: %v, got: %v",
			ErrOutsideBoundary, err)
	}

	if _, err := f.ReadBytesAtOffset(3, 4); !errors.Is(err,
		ErrOutsideBoundary) {
		t.Errorf("error assertion failed, want: %v, got: %v",
			ErrOutsideBoundary, err)
	}
	b, err := f.ReadBytesAtOffset(1, 3)
	if err != nil || len(b) != 3 || b[0] != 0x02 {
		t.Errorf("ReadBytesAtOffset assertion failed: %v (%v)", b, err)
	}
}

func TestReadString(t *testing.T) {
	// "STRASSE" with an embedded CP-1252 sharp s and a filtered 0xFF byte.
	data := []byte{'S', 'T', 'R', 'A', 0xFF, 0xDF, 'E', stringTerminator,
		'X'}
	f, _ := NewBytes(data, &Options{})
	cur := cursor{f: f}

	s, err := cur.readString()
	if err != nil {
		t.Fatalf("readString failed, reason: %v", err)
	}
	if s != "STRAßE" {
		t.Errorf("string decode assertion failed, got: %q", s)
	}
	if cur.pos != 8 {
		t.Errorf("cursor position assertion failed, want: 8, got: %d",
			cur.pos)
	}

	// An unterminated string runs into the boundary.
	cur.seek(8)
	if _, err := cur.readString(); !errors.Is(err, ErrOutsideBoundary) {
		t.Errorf("error assertion failed, want: %v, got: %v",
			ErrOutsideBoundary, err)
	}
}

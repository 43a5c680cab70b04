// Copyright 2022 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package dat

func Fuzz(data []byte) int {
	f, err := NewBytes(data, &Options{})
	if err != nil {
		return 0
	}
	if err := f.Parse(); err != nil {
		return 0
	}
	var pc uint32
	for pc < f.Code.Size {
		op, err := f.Code.InstructionAt(pc)
		if err != nil || op.Size == 0 {
			break
		}
		pc += op.Size
	}
	return 1
}

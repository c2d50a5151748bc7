// Copyright 2026 The pmulib Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pmu

import (
	"fmt"
	"unsafe"
)

// cpuid executes the CPUID instruction for the specified leaf and
// subleaf.
func cpuid(leaf, subleaf uint32) (eax, ebx, ecx, edx uint32)

func cpuString() (string, error) {
	// Leaf 0: the vendor string, laid out across EBX, EDX, ECX.
	_, ebx, ecx, edx := cpuid(0, 0)
	regs := [3]uint32{ebx, edx, ecx}
	vendor := string((*[12]byte)(unsafe.Pointer(&regs[0]))[:])

	// Leaf 1: family, model and stepping, with the extended fields
	// folded in per the SDM.
	eax, _, _, _ := cpuid(1, 0)
	stepping := eax & 0xF
	model := (eax >> 4) & 0xF
	family := (eax >> 8) & 0xF
	if family == 0xF {
		family += (eax >> 20) & 0xFF
	}
	if family == 0xF || family == 0x6 {
		model += ((eax >> 16) & 0xF) << 4
	}
	return fmt.Sprintf("%s-%X-%X-%X", vendor, family, model, stepping), nil
}

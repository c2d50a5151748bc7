// Copyright 2026 The pmulib Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pmu

import (
	"fmt"
	"os"
	"unsafe"
)

// Model specific registers of general interest.
const (
	MSRPlatformInfo    = 0xCE
	MSRTurboRatioLimit = 0x1AD
	MSRPkgEnergyStatus = 0x611
	MSRRaplPowerUnit   = 0x606
)

// An MSR reads and writes the model specific registers of one CPU
// through the msr driver (/dev/cpu/N/msr). Opening requires the msr
// module to be loaded and, typically, root.
type MSR struct {
	f *os.File
}

// OpenMSR opens the model specific register device for the given CPU.
func OpenMSR(cpu int) (*MSR, error) {
	path := fmt.Sprintf("/dev/cpu/%d/msr", cpu)
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}
	return &MSR{f: f}, nil
}

// Read reads the register at the specified address.
func (m *MSR) Read(reg uint32) (uint64, error) {
	var buf [8]byte
	if _, err := m.f.ReadAt(buf[:], int64(reg)); err != nil {
		return 0, fmt.Errorf("msr read %#x: %w", reg, err)
	}
	return *(*uint64)(unsafe.Pointer(&buf[0])), nil
}

// Write writes value to the register at the specified address.
func (m *MSR) Write(reg uint32, value uint64) error {
	var buf [8]byte
	*(*uint64)(unsafe.Pointer(&buf[0])) = value
	if _, err := m.f.WriteAt(buf[:], int64(reg)); err != nil {
		return fmt.Errorf("msr write %#x: %w", reg, err)
	}
	return nil
}

// Close closes the register device.
func (m *MSR) Close() error {
	return m.f.Close()
}

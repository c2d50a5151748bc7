// Copyright 2026 The pmulib Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pmu

import (
	"fmt"
	"os"
)

// A PCIConfig reads the configuration space of a PCI device through
// sysfs. Uncore PMUs on some processors are programmed this way.
type PCIConfig struct {
	f *os.File
}

// OpenPCIConfig opens the configuration space of the device at the
// specified domain/bus/device/function address.
func OpenPCIConfig(domain, bus, device, function uint) (*PCIConfig, error) {
	path := fmt.Sprintf("/sys/bus/pci/devices/%04x:%02x:%02x.%x/config",
		domain, bus, device, function)
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}
	return &PCIConfig{f: f}, nil
}

// ReadAt reads len(p) bytes of configuration space at the specified
// offset. Reads past the 64 byte standard header require root.
func (c *PCIConfig) ReadAt(p []byte, off int64) (int, error) {
	return c.f.ReadAt(p, off)
}

// WriteAt writes len(p) bytes of configuration space at the specified
// offset.
func (c *PCIConfig) WriteAt(p []byte, off int64) (int, error) {
	return c.f.WriteAt(p, off)
}

// Close closes the configuration space file.
func (c *PCIConfig) Close() error {
	return c.f.Close()
}

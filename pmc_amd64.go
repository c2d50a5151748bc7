// Copyright 2026 The pmulib Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pmu

// rdpmc reads the specified hardware performance counter register.
// Counter numbering is hardware level: callers translate the metadata
// page index by subtracting one. Executing it for a counter the kernel
// has not granted access to raises SIGSEGV, so it must only be called
// after the capability check in NewDirectReader.
func rdpmc(counter uint32) uint64

// rdtsc reads the time stamp counter.
func rdtsc() uint64

// Copyright 2026 The pmulib Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build !amd64

package pmu

func cpuString() (string, error) {
	return cpuStringFromProc()
}

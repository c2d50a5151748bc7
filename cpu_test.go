// Copyright 2026 The pmulib Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pmu

import (
	"strings"
	"testing"
)

const sampleCPUInfo = `processor	: 0
vendor_id	: GenuineIntel
cpu family	: 6
model		: 85
model name	: Intel(R) Xeon(R) Platinum 8124M CPU @ 3.00GHz
stepping	: 4
microcode	: 0x2f
cpu MHz		: 3000.000
cache size	: 25344 KB
`

func TestParseCPUInfo(t *testing.T) {
	got, err := parseCPUInfo(strings.NewReader(sampleCPUInfo))
	if err != nil {
		t.Fatal(err)
	}
	if want := "GenuineIntel-6-55-4"; got != want {
		t.Errorf("parseCPUInfo = %q, want %q", got, want)
	}
}

func TestParseCPUInfoAMD(t *testing.T) {
	const info = `vendor_id	: AuthenticAMD
cpu family	: 25
model		: 33
stepping	: 0
`
	got, err := parseCPUInfo(strings.NewReader(info))
	if err != nil {
		t.Fatal(err)
	}
	if want := "AuthenticAMD-19-21-0"; got != want {
		t.Errorf("parseCPUInfo = %q, want %q", got, want)
	}
}

func TestParseCPUInfoIncomplete(t *testing.T) {
	const info = `processor	: 0
model name	: some cpu
`
	if _, err := parseCPUInfo(strings.NewReader(info)); err == nil {
		t.Error("expected error for cpuinfo without identification fields")
	}
}

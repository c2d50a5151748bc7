// Copyright 2026 The pmulib Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pmu

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// CPUString returns the identification string for the running CPU, in
// the form "Vendor-Family-Model-Stepping" with the numeric parts in
// uppercase hex, for example "GenuineIntel-6-55-4". This is the key
// event databases are indexed by.
func CPUString() (string, error) {
	return cpuString()
}

// parseCPUInfo extracts the identification string from /proc/cpuinfo
// content. Used on architectures without a user space CPU
// identification instruction.
func parseCPUInfo(r io.Reader) (string, error) {
	var vendor string
	family, model, stepping := -1, -1, -1
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		key, value, ok := strings.Cut(sc.Text(), ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		switch key {
		case "vendor_id":
			vendor = value
		case "cpu family":
			family, _ = strconv.Atoi(value)
		case "model":
			model, _ = strconv.Atoi(value)
		case "stepping":
			stepping, _ = strconv.Atoi(value)
		}
		if vendor != "" && family >= 0 && model >= 0 && stepping >= 0 {
			break
		}
	}
	if err := sc.Err(); err != nil {
		return "", err
	}
	if vendor == "" || family < 0 || model < 0 || stepping < 0 {
		return "", fmt.Errorf("pmu: cannot identify CPU from /proc/cpuinfo")
	}
	return fmt.Sprintf("%s-%X-%X-%X", vendor, family, model, stepping), nil
}

func cpuStringFromProc() (string, error) {
	f, err := os.Open("/proc/cpuinfo")
	if err != nil {
		return "", err
	}
	defer f.Close()
	return parseCPUInfo(f)
}

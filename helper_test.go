// Copyright 2026 The pmulib Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pmu_test

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/pmulib/pmu"
)

// pmuTestEnv holds and caches information about the testing environment
// for package pmu.
type pmuTestEnv struct {
	paranoid struct {
		sync.Once
		value int
	}

	pmus struct {
		sync.Mutex
		ok      map[string]struct{}
		missing map[string]error
	}
}

func (env *pmuTestEnv) paranoidLevel() int {
	env.paranoid.Once.Do(env.initParanoid)
	return env.paranoid.value
}

func (env *pmuTestEnv) initParanoid() {
	content, err := os.ReadFile("/proc/sys/kernel/perf_event_paranoid")
	if err != nil {
		env.paranoid.value = 3
		return
	}
	nr := strings.TrimSpace(string(content))
	paranoid, err := strconv.ParseInt(nr, 10, 32)
	if err != nil {
		env.paranoid.value = 3
		return
	}
	env.paranoid.value = int(paranoid)
}

func (env *pmuTestEnv) havePMU(u string) (bool, error) {
	env.pmus.Lock()
	defer env.pmus.Unlock()

	if env.pmus.ok == nil {
		env.pmus.ok = map[string]struct{}{}
	}
	if env.pmus.missing == nil {
		env.pmus.missing = map[string]error{}
	}

	if _, ok := env.pmus.ok[u]; ok {
		return true, nil
	}
	if err, ok := env.pmus.missing[u]; ok {
		return false, err
	}

	_, err := pmu.ProbePMU(u)
	if err != nil {
		env.pmus.missing[u] = err
		return false, err
	}

	env.pmus.ok[u] = struct{}{}
	return true, nil
}

var testenv pmuTestEnv

// paranoid specifies a perf_event_paranoid level requirement for a test.
//
// For example, a value of 1 for paranoid means that the test requires a
// perf_event_paranoid level of 1 or less.
type paranoid int

func (p paranoid) Evaluate() error {
	want, have := int(p), testenv.paranoidLevel()
	if have > want {
		return fmt.Errorf("want perf_event_paranoid <= %d, have %d", want, have)
	}
	return nil
}

// pmureq specifies a PMU requirement for a test.
type pmureq string

var (
	hardwarePMU = pmureq("hardware")
	softwarePMU = pmureq("software")
)

func (u pmureq) Evaluate() error {
	device := string(u)
	if device == "hardware" {
		device = "cpu"
	}
	if ok, err := testenv.havePMU(device); !ok {
		return fmt.Errorf("%s PMU not supported: %v", device, err)
	}
	return nil
}

// supportedreq requires a kernel with perf_event_open.
type supportedreq struct{}

func (supportedreq) Evaluate() error {
	if !pmu.Supported() {
		return errors.New("perf_event_open not supported")
	}
	return nil
}

var supported = supportedreq{}

// rdpmcreq requires user space counter reads to be enabled.
type rdpmcreq struct{}

func (rdpmcreq) Evaluate() error {
	content, err := os.ReadFile("/sys/bus/event_source/devices/cpu/rdpmc")
	if err != nil {
		return fmt.Errorf("cannot determine rdpmc setting: %v", err)
	}
	if strings.TrimSpace(string(content)) == "0" {
		return errors.New("user space rdpmc is disabled")
	}
	return nil
}

var rdpmc = rdpmcreq{}

type testRequirement interface {
	Evaluate() error
}

func requires(t *testing.T, reqs ...testRequirement) {
	t.Helper()

	sb := new(strings.Builder)
	unmet := 0

	for _, req := range reqs {
		if err := req.Evaluate(); err != nil {
			if unmet > 0 {
				sb.WriteString("; ")
			}
			fmt.Fprint(sb, err)
			unmet++
		}
	}

	switch unmet {
	case 0:
		return
	case 1:
		t.Skipf("unmet requirement: %s", sb.String())
	default:
		t.Skipf("unmet requirements: %s", sb.String())
	}
}

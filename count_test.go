// Copyright 2026 The pmulib Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pmu_test

import (
	"runtime"
	"testing"
	"time"

	"github.com/pmulib/pmu"
)

func TestCount(t *testing.T) {
	t.Run("Hardware", testHardwareCounters)
	t.Run("Software", testSoftwareCounters)
	t.Run("IoctlAndValueIDsMatch", testIoctlAndValueIDsMatch)
}

func testHardwareCounters(t *testing.T) {
	requires(t, supported, paranoid(1), hardwarePMU)

	t.Run("IPC", testIPC)
}

func testIPC(t *testing.T) {
	g := pmu.Group{
		CountFormat: pmu.CountFormat{
			ID: true,
		},
	}
	g.Add(pmu.Instructions, pmu.CPUCycles)

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	hw, err := g.Open(pmu.CallingThread, pmu.AnyCPU)
	if err != nil {
		t.Fatal(err)
	}
	defer hw.Close()

	var sum int64
	gv, err := hw.MeasureGroup(func() {
		for i := int64(0); i < 1000000; i++ {
			sum += i
		}
	})
	if err != nil {
		t.Fatal(err)
	}
	labels := g.Labels()
	for i, v := range gv.Values {
		if v.Value == 0 {
			t.Fatalf("didn't count %q", labels[i])
		}
	}
	insns := gv.Values[0].Value
	cycles := gv.Values[1].Value
	ipc := float64(insns) / float64(cycles)
	t.Logf("got %d instructions, %d cycles: %f IPC", insns, cycles, ipc)
}

func testSoftwareCounters(t *testing.T) {
	requires(t, supported, paranoid(1), softwarePMU)

	t.Run("PageFaults", testPageFaults)
}

var fault []byte

func testPageFaults(t *testing.T) {
	pfa := &pmu.Attr{
		CountFormat: pmu.CountFormat{
			TotalTimeEnabled: true,
			TotalTimeRunning: true,
		},
	}
	pmu.PageFaults.Configure(pfa)

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	faults, err := pmu.Open(pfa, pmu.CallingThread, pmu.AnyCPU, nil, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer faults.Close()

	runtime.GC()

	v, err := faults.Measure(func() {
		fault = make([]byte, 64*1024*1024)
		fault[0] = 1
		fault[63*1024*1024] = 1
	})
	if err != nil {
		t.Fatal(err)
	}
	if v.Value == 0 {
		t.Fatal("didn't see a page fault")
	}
	t.Logf("saw %d faults: enabled: %v, running: %v",
		v.Value, time.Duration(v.TimeEnabled), time.Duration(v.TimeRunning))
}

func testIoctlAndValueIDsMatch(t *testing.T) {
	requires(t, supported, paranoid(1), softwarePMU)

	pfa := new(pmu.Attr)
	pmu.PageFaults.Configure(pfa)
	pfa.CountFormat.ID = true

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	faults, err := pmu.Open(pfa, pmu.CallingThread, pmu.AnyCPU, nil, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer faults.Close()

	runtime.GC()

	v, err := faults.Measure(func() {
		fault = make([]byte, 64*1024*1024)
		fault[0] = 1
		fault[63*1024*1024] = 1
	})
	if err != nil {
		t.Fatal(err)
	}
	if v.Value == 0 {
		t.Fatal("didn't see a page fault")
	}
	id, err := faults.ID()
	if err != nil {
		t.Fatal(err)
	}
	if id != v.ID {
		t.Fatalf("got ID %d from ioctl, but %d from the read", id, v.ID)
	}
}

func TestDirectReadLive(t *testing.T) {
	requires(t, supported, paranoid(1), hardwarePMU, rdpmc)

	attr := new(pmu.Attr)
	pmu.CPUCycles.Configure(attr)

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	ev, err := pmu.Open(attr, pmu.CallingThread, pmu.AnyCPU, nil, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer ev.Close()
	if err := ev.MapRing(1); err != nil {
		t.Fatal(err)
	}

	d, err := pmu.NewDirectReader(ev)
	if err != nil {
		t.Skipf("no direct counter access: %v", err)
	}

	before := d.Read()
	sum := 0
	for i := 0; i < 1000000; i++ {
		sum += i
	}
	after := d.Read()
	if after.Value <= before.Value {
		t.Fatalf("counter did not advance: before %d, after %d", before.Value, after.Value)
	}
	t.Logf("counted %d cycles without a syscall (sum %d)", after.Value-before.Value, sum)
}

func TestSampleRing(t *testing.T) {
	requires(t, supported, paranoid(1), softwarePMU)

	attr := new(pmu.Attr)
	pmu.CPUClock.Configure(attr)
	attr.ConfigureSampled()
	attr.SetSampleFreq(1000)
	attr.SetWakeupEvents(1)
	attr.Options.Disabled = true

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	ev, err := pmu.Open(attr, pmu.CallingThread, pmu.AnyCPU, nil, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer ev.Close()
	if err := ev.MapRing(8); err != nil {
		t.Fatal(err)
	}
	if err := ev.Enable(); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	evattr := ev.Attr()
	samples := 0
	for samples == 0 && time.Now().Before(deadline) {
		ready, err := ev.WaitRecords(time.Until(deadline))
		if err != nil {
			t.Fatal(err)
		}
		if !ready {
			break
		}
		rb := ev.Ring()
		it := rb.Events()
		for it.Next() {
			rec, err := it.Record().Decode(&evattr)
			if err != nil {
				t.Fatal(err)
			}
			if _, ok := rec.(*pmu.SampleRecord); ok {
				samples++
			}
		}
		if err := it.Err(); err != nil {
			t.Fatal(err)
		}
		rb.AdvanceAll()
	}
	if samples == 0 {
		t.Fatal("saw no samples")
	}
	t.Logf("decoded %d samples", samples)
}

// Copyright 2026 The pmulib Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pmu

// PerfEventValue is a single measurement of a counter.
//
// Value is always present. TimeEnabled and TimeRunning are populated if
// CountFormat.TotalTimeEnabled / CountFormat.TotalTimeRunning were set on
// the event, and ID if CountFormat.ID was set. For direct hardware reads
// the time fields are populated whenever the kernel grants time scaling.
type PerfEventValue struct {
	Value       uint64
	TimeEnabled uint64
	TimeRunning uint64
	ID          uint64
}

// Scaled returns the measurement weighted by the fraction of time the
// counter was actually on hardware: Value * TimeRunning / TimeEnabled.
//
// The two times differ only when the kernel multiplexes more counters
// than the CPU has physical slots; the weighted value then reflects
// what the counter observed while it was scheduled. A zero TimeEnabled
// means times were not requested, and the raw value is returned
// unchanged.
func (v PerfEventValue) Scaled() uint64 {
	if v.TimeEnabled == 0 || v.TimeEnabled == v.TimeRunning {
		return v.Value
	}
	val := float64(v.Value)
	run := float64(v.TimeRunning)
	ena := float64(v.TimeEnabled)
	return uint64(val * run / ena)
}

// Equal reports whether two measurements saw the same raw count.
// Time fields and IDs are deliberately ignored.
func (v PerfEventValue) Equal(other PerfEventValue) bool {
	return v.Value == other.Value
}

// GroupValue is a set of measurements taken from an event group in a
// single read. Values appear in the order the events were added to the
// group, leader first.
type GroupValue struct {
	TimeEnabled uint64
	TimeRunning uint64
	Values      []struct {
		Value uint64
		ID    uint64
	}
}

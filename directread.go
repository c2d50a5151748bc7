// Copyright 2026 The pmulib Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pmu

import (
	"errors"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// ErrNoDirectAccess is returned by NewDirectReader when the kernel does
// not grant user space direct counter reads for the event. This happens
// when the hardware lacks an unprivileged counter-read instruction, or
// when it is disabled, for example via
// /sys/bus/event_source/devices/cpu/rdpmc.
var ErrNoDirectAccess = errors.New("pmu: direct counter access not available")

// Capability bits in the metadata page.
const (
	capUserRdpmc = 1 << 2
	capUserTime  = 1 << 3
)

// A DirectReader reads the current value of a hardware counter straight
// from the CPU, without entering the kernel. It combines the counter
// read instruction (RDPMC on x86) with the per-event state the kernel
// publishes on the ring buffer metadata page, under the page's seqlock.
//
// A DirectReader is only meaningful on the CPU the event is bound to,
// or while the monitored thread is running: reads from unrelated CPUs
// observe an index for some other event, or none at all. It is valid
// for the lifetime of the event's ring buffer mapping.
type DirectReader struct {
	page *unix.PerfEventMmapPage

	// Instruction wrappers, swappable for tests.
	readPMC func(counter uint32) uint64
	readTSC func() uint64
}

// NewDirectReader returns a DirectReader for ev. The event must have
// its ring buffer mapped (see Event.MapRing): the kernel publishes the
// counter state on the mapping's metadata page. If the kernel does not
// allow user space reads of the counter, NewDirectReader returns
// ErrNoDirectAccess.
func NewDirectReader(ev *Event) (*DirectReader, error) {
	if err := ev.ok(); err != nil {
		return nil, err
	}
	if ev.ring == nil {
		return nil, errors.New("pmu: direct reads require a mapped ring buffer")
	}
	return newDirectReader(ev.ring.meta)
}

func newDirectReader(page *unix.PerfEventMmapPage) (*DirectReader, error) {
	if page.Capabilities&capUserRdpmc == 0 {
		return nil, ErrNoDirectAccess
	}
	return &DirectReader{
		page:    page,
		readPMC: rdpmc,
		readTSC: rdtsc,
	}, nil
}

// Read reads the current counter value.
//
// The metadata page fields are sampled under the page's sequence lock:
// if the kernel updates the page mid-read (because of a context switch,
// counter rescheduling or multiplexing), the read is retried until a
// consistent snapshot is observed. There is no bound on retries, but in
// practice a second pass is already rare.
//
// When the kernel publishes time information for the event
// (cap_user_time) and the counter is multiplexed, the returned times
// are extrapolated to the moment of the read: the enabled time always
// advances, the running time only while the counter is on hardware.
// This keeps Scaled accurate between kernel updates, including for a
// counter that is currently scheduled out.
func (d *DirectReader) Read() PerfEventValue {
	p := d.page
	for {
		// Pairs with the kernel's increment-update-increment on
		// Lock. An odd or changed value means we raced an update.
		seq := atomic.LoadUint32(&p.Lock)

		enabled := p.Time_enabled
		running := p.Time_running
		idx := p.Index
		count := p.Offset

		if p.Capabilities&capUserTime != 0 && enabled != running {
			// The counter is multiplexed: extrapolate both
			// times from the TSC so the scaling ratio reflects
			// now, not the last kernel update.
			cyc := d.readTSC()
			quot := cyc >> p.Time_shift
			rem := cyc & (1<<p.Time_shift - 1)
			delta := p.Time_offset + quot*uint64(p.Time_mult) +
				(rem*uint64(p.Time_mult))>>p.Time_shift
			enabled += delta
			if idx != 0 {
				running += delta
			}
		}

		if idx != 0 {
			// Index is the hardware counter number plus one;
			// zero means the event is not currently on the CPU
			// and Offset alone holds the saved count.
			pmc := d.readPMC(idx - 1)
			count += signExtend(pmc, p.Pmc_width)
		}

		if seq&1 == 0 && atomic.LoadUint32(&p.Lock) == seq {
			return PerfEventValue{
				Value:       uint64(count),
				TimeEnabled: enabled,
				TimeRunning: running,
			}
		}
	}
}

// signExtend interprets the low width bits of v as a signed quantity.
// Hardware counters are narrower than 64 bits and the kernel programs
// them relative to a midpoint, so the raw register value is signed.
func signExtend(v uint64, width uint16) int64 {
	shift := 64 - width
	return int64(v<<shift) >> shift
}

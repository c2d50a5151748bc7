// Copyright 2026 The pmulib Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package pmu provides low-overhead access to CPU performance monitoring
// counters through the Linux perf_event subsystem: opening and configuring
// events, reading counts synchronously, consuming sampled records from the
// kernel's memory mapped ring buffer, and reading live counter values
// directly from hardware without a system call.
package pmu

import (
	"errors"
	"fmt"
	"os"
	"unicode/utf8"
	"unsafe"
)

// Supported reports whether the running kernel supports perf_event_open.
func Supported() bool {
	_, err := os.Stat("/proc/sys/kernel/perf_event_paranoid")
	return err == nil
}

// ErrMalformedRecord is returned (wrapped) when a ring buffer record
// cannot be decoded: a declared size smaller than the record header, a
// wrapped record larger than MaxRecordSize, or a trailing string that is
// not valid UTF-8.
var ErrMalformedRecord = errors.New("pmu: malformed record")

// fields decodes a span of 32-bit and 64-bit fields in native byte order.
// Decoding errors are sticky: after the first failure all subsequent
// reads are no-ops and err() reports the failure.
type fields struct {
	buf  []byte
	fail error
}

func (f *fields) err() error { return f.fail }

func (f *fields) short(n int) bool {
	if f.fail != nil {
		return true
	}
	if len(f.buf) < n {
		f.fail = fmt.Errorf("%w: truncated field: have %d bytes, need %d", ErrMalformedRecord, len(f.buf), n)
		return true
	}
	return false
}

// uint64 decodes the next 64 bit field into v.
func (f *fields) uint64(v *uint64) {
	if f.short(8) {
		return
	}
	*v = *(*uint64)(unsafe.Pointer(&f.buf[0]))
	f.advance(8)
}

// uint64If decodes the next 64 bit field into v, if cond is true.
func (f *fields) uint64If(cond bool, v *uint64) {
	if cond {
		f.uint64(v)
	}
}

// int64 decodes the next 64 bit field into v.
func (f *fields) int64(v *int64) {
	if f.short(8) {
		return
	}
	*v = *(*int64)(unsafe.Pointer(&f.buf[0]))
	f.advance(8)
}

// uint32 decodes a pair of uint32s into a and b.
func (f *fields) uint32(a, b *uint32) {
	if f.short(8) {
		return
	}
	*a = *(*uint32)(unsafe.Pointer(&f.buf[0]))
	*b = *(*uint32)(unsafe.Pointer(&f.buf[4]))
	f.advance(8)
}

// uint32If decodes a pair of uint32s into a and b, if cond is true.
func (f *fields) uint32If(cond bool, a, b *uint32) {
	if cond {
		f.uint32(a, b)
	}
}

// string decodes a NUL-terminated string into s. The string field is
// padded to an 8 byte multiple, so its extent is known only from the
// outside: trailer is the number of bytes that follow the field in the
// record (the trailing RecordID, if any), and the field occupies
// everything up to there. The string must be valid UTF-8.
func (f *fields) string(s *string, trailer int) {
	if f.short(trailer) {
		return
	}
	span := len(f.buf) - trailer
	raw := f.buf[:span]
	for i := 0; i < len(raw); i++ {
		if raw[i] == 0 {
			raw = raw[:i]
			break
		}
	}
	if !utf8.Valid(raw) {
		f.fail = fmt.Errorf("%w: string field is not valid UTF-8", ErrMalformedRecord)
		return
	}
	*s = string(raw)
	f.advance(span)
}

// uint32sizeBytes decodes a byte slice prefixed by its 32 bit size.
func (f *fields) uint32sizeBytes(b *[]byte) {
	if f.short(4) {
		return
	}
	size := *(*uint32)(unsafe.Pointer(&f.buf[0]))
	f.advance(4)
	if f.short(int(size)) {
		return
	}
	*b = f.buf[:size]
	f.advance(int(size))
}

// value decodes a PerfEventValue laid out per the specified CountFormat.
func (f *fields) value(v *PerfEventValue, cf CountFormat) {
	f.uint64(&v.Value)
	f.uint64If(cf.TotalTimeEnabled, &v.TimeEnabled)
	f.uint64If(cf.TotalTimeRunning, &v.TimeRunning)
	f.uint64If(cf.ID, &v.ID)
}

// sampleIDSize returns the size in bytes of the trailing RecordID on
// non-sample records, per the attributes the event was configured with.
func sampleIDSize(attr *Attr) int {
	if !attr.Options.RecordIDAll {
		return 0
	}
	rf := attr.RecordFormat
	size := 0
	for _, present := range []bool{rf.Tid, rf.Time, rf.ID, rf.StreamID, rf.CPU, rf.Identifier} {
		if present {
			size += 8
		}
	}
	return size
}

// id decodes a trailing RecordID per the RecordFormat attr was
// configured with. It applies only when Options.RecordIDAll is set.
func (f *fields) id(id *RecordID, attr *Attr) {
	if !attr.Options.RecordIDAll {
		return
	}
	f.uint32If(attr.RecordFormat.Tid, &id.Pid, &id.Tid)
	f.uint64If(attr.RecordFormat.Time, &id.Time)
	f.uint64If(attr.RecordFormat.ID, &id.ID)
	f.uint64If(attr.RecordFormat.StreamID, &id.StreamID)
	f.uint32If(attr.RecordFormat.CPU, &id.CPU, &id.Res)
	f.uint64If(attr.RecordFormat.Identifier, &id.Identifier)
}

// advance advances through the fields by n bytes.
func (f *fields) advance(n int) {
	f.buf = f.buf[n:]
}

// marshalBitwiseUint64 marshals a set of bitwise flags into a
// uint64, LSB first.
func marshalBitwiseUint64(fields []bool) uint64 {
	var res uint64
	for shift, set := range fields {
		if set {
			res |= 1 << uint(shift)
		}
	}
	return res
}

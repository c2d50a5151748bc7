// Copyright 2026 The pmulib Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pmu

import (
	"errors"
	"testing"
	"unsafe"

	"golang.org/x/sys/unix"
)

// testRing builds a RingBuffer over process memory instead of a kernel
// mapping, so the consumer protocol can be driven from both sides.
func testRing(dataSize int) *RingBuffer {
	return &RingBuffer{
		meta: new(unix.PerfEventMmapPage),
		data: make([]byte, dataSize),
	}
}

// produce appends a record to the ring the way the kernel does: payload
// first, then the head moves past it. The payload length must make the
// total record size a multiple of 8.
func produce(rb *RingBuffer, typ RecordType, payload []byte) {
	size := int(unsafe.Sizeof(RecordHeader{})) + len(payload)
	if size%8 != 0 {
		panic("record size must be a multiple of 8")
	}
	var rec []byte
	rec = append(rec, (*[8]byte)(unsafe.Pointer(&RecordHeader{
		Type: typ,
		Size: uint16(size),
	}))[:]...)
	rec = append(rec, payload...)
	head := rb.meta.Data_head
	for i, b := range rec {
		rb.data[(head+uint64(i))%uint64(len(rb.data))] = b
	}
	rb.meta.Data_head = head + uint64(size)
}

func TestRingEmpty(t *testing.T) {
	rb := testRing(512)
	if rb.EventsPending() {
		t.Error("EventsPending() = true on empty ring")
	}
	it := rb.Events()
	if it.Next() {
		t.Error("Next() = true on empty ring")
	}
	if err := it.Err(); err != nil {
		t.Errorf("Err() = %v on empty ring", err)
	}
}

func TestRingIterateDoesNotConsume(t *testing.T) {
	rb := testRing(512)
	payload := make([]byte, 16)
	produce(rb, RecordTypeSample, payload)
	produce(rb, RecordTypeLost, payload)
	produce(rb, RecordTypeComm, payload)

	want := []RecordType{RecordTypeSample, RecordTypeLost, RecordTypeComm}
	for round := 0; round < 2; round++ {
		it := rb.Events()
		var got []RecordType
		for it.Next() {
			got = append(got, it.Record().Header.Type)
		}
		if err := it.Err(); err != nil {
			t.Fatalf("round %d: Err() = %v", round, err)
		}
		if len(got) != len(want) {
			t.Fatalf("round %d: got %d records, want %d", round, len(got), len(want))
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("round %d: record %d: got type %d, want %d", round, i, got[i], want[i])
			}
		}
	}
	if rb.meta.Data_tail != 0 {
		t.Errorf("iteration moved the tail to %d", rb.meta.Data_tail)
	}
}

func TestRingAdvance(t *testing.T) {
	rb := testRing(512)
	payload := make([]byte, 16)
	for i := 0; i < 3; i++ {
		produce(rb, RecordTypeSample, payload)
	}
	recSize := uint64(8 + len(payload))

	rb.Advance(2)
	if got, want := rb.meta.Data_tail, 2*recSize; got != want {
		t.Errorf("after Advance(2): tail = %d, want %d", got, want)
	}
	if !rb.EventsPending() {
		t.Error("EventsPending() = false with one record left")
	}

	// Advancing past the producer stops at the producer.
	rb.Advance(10)
	if got, want := rb.meta.Data_tail, 3*recSize; got != want {
		t.Errorf("after Advance(10): tail = %d, want %d", got, want)
	}
	if rb.EventsPending() {
		t.Error("EventsPending() = true on drained ring")
	}
}

func TestRingAdvanceAll(t *testing.T) {
	rb := testRing(512)
	payload := make([]byte, 24)
	for i := 0; i < 4; i++ {
		produce(rb, RecordTypeSample, payload)
	}
	rb.AdvanceAll()
	if rb.meta.Data_tail != rb.meta.Data_head {
		t.Errorf("tail = %d, head = %d; want equal", rb.meta.Data_tail, rb.meta.Data_head)
	}
	if it := rb.Events(); it.Next() {
		t.Error("records still visible after AdvanceAll")
	}
}

func TestRingBoundedByHead(t *testing.T) {
	rb := testRing(512)
	payload := make([]byte, 16)
	produce(rb, RecordTypeSample, payload)

	it := rb.Events()
	// A record published after the iterator was created is not
	// visible to it.
	produce(rb, RecordTypeLost, payload)

	var n int
	for it.Next() {
		n++
	}
	if n != 1 {
		t.Errorf("iterator saw %d records, want 1", n)
	}
	if it := rb.Events(); !it.Next() || it.Record().Header.Type != RecordTypeSample {
		t.Error("fresh iterator does not start at the first record")
	}
}

func TestRingWrappedRecord(t *testing.T) {
	rb := testRing(128)

	// Park the consumer and producer near the end of the data area,
	// then produce a record that crosses it.
	filler := make([]byte, 96)
	produce(rb, RecordTypeSample, filler)
	rb.AdvanceAll()

	payload := make([]byte, 40)
	for i := range payload {
		payload[i] = byte(i + 1)
	}
	produce(rb, RecordTypeComm, payload)

	it := rb.Events()
	if !it.Next() {
		t.Fatalf("Next() = false, Err() = %v", it.Err())
	}
	raw := it.Record()
	if raw.Header.Type != RecordTypeComm {
		t.Errorf("got type %d, want %d", raw.Header.Type, RecordTypeComm)
	}
	if len(raw.Data) != len(payload) {
		t.Fatalf("got %d payload bytes, want %d", len(raw.Data), len(payload))
	}
	for i := range payload {
		if raw.Data[i] != payload[i] {
			t.Fatalf("payload byte %d: got %#x, want %#x", i, raw.Data[i], payload[i])
		}
	}
	if it.Next() {
		t.Error("unexpected extra record")
	}
}

func TestRingWrappedRecordTooLarge(t *testing.T) {
	rb := testRing(1024)

	filler := make([]byte, 1008)
	produce(rb, RecordTypeSample, filler)
	rb.AdvanceAll()

	// This record wraps and exceeds the staging buffer.
	produce(rb, RecordTypeSample, make([]byte, MaxRecordSize))

	it := rb.Events()
	if it.Next() {
		t.Fatal("Next() = true for oversized wrapped record")
	}
	if !errors.Is(it.Err(), ErrMalformedRecord) {
		t.Errorf("Err() = %v, want ErrMalformedRecord", it.Err())
	}
}

func TestRingCorruptHeader(t *testing.T) {
	rb := testRing(512)
	// A header that claims more bytes than the producer published.
	hdr := RecordHeader{Type: RecordTypeSample, Size: 64}
	copy(rb.data, (*[8]byte)(unsafe.Pointer(&hdr))[:])
	rb.meta.Data_head = 8

	it := rb.Events()
	if it.Next() {
		t.Fatal("Next() = true for truncated record")
	}
	if !errors.Is(it.Err(), ErrMalformedRecord) {
		t.Errorf("Err() = %v, want ErrMalformedRecord", it.Err())
	}
}

func TestRingBadPages(t *testing.T) {
	for _, npages := range []int{0, -1, 3, 12, 100} {
		_, err := newRingBuffer(-1, npages)
		if !errors.Is(err, ErrBadRingPages) {
			t.Errorf("newRingBuffer(npages=%d): err = %v, want ErrBadRingPages", npages, err)
		}
	}
}

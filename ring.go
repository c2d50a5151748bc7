// Copyright 2026 The pmulib Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pmu

import (
	"errors"
	"fmt"
	"os"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"
)

// MaxRecordSize is the size of the staging buffer used for records that
// wrap around the end of the ring buffer data area. Records produced by
// the kernel are far smaller than this in practice; a wrapped record
// exceeding it is treated as malformed.
const MaxRecordSize = 256

// ErrBadRingPages is returned by Event.MapRing when the requested number
// of data pages is not a power of two, which the kernel requires.
var ErrBadRingPages = errors.New("pmu: ring buffer data pages must be a power of two")

// A RingBuffer is the memory mapped channel through which the kernel
// delivers sampled records for an event: one metadata page, followed by
// a power-of-two number of data pages the kernel treats as a circular
// buffer.
//
// The kernel is the producer and the RingBuffer is the single consumer.
// The consumer side is split in two so that records can be inspected
// without copying: Events returns an iterator over the records between
// the consumer position and the producer position observed at call
// time, and Advance releases consumed records back to the kernel.
// Record payloads returned by the iterator point into the shared
// mapping (or into an internal staging buffer, for records that wrap
// around the end of the data area) and are valid only until the
// corresponding Advance call.
//
// A RingBuffer must not be used concurrently from multiple goroutines.
type RingBuffer struct {
	// mapping is the entire memory mapping: meta page plus data.
	mapping []byte

	// meta is the metadata page: &mapping[0].
	meta *unix.PerfEventMmapPage

	// data is the record data area of the mapping.
	data []byte

	// totalRead counts all bytes ever consumed. Head and tail only
	// ever grow; this value becomes Data_tail on Advance.
	totalRead uint64

	// scratch stages records that wrap around the end of the data
	// area into contiguous memory. Reused across records: a staged
	// record is overwritten when the iterator next encounters a
	// wrapped record.
	scratch [MaxRecordSize]byte

	closed bool
}

// newRingBuffer maps the ring buffer for fd, with 1+npages pages.
func newRingBuffer(fd int, npages int) (*RingBuffer, error) {
	if npages <= 0 || npages&(npages-1) != 0 {
		return nil, ErrBadRingPages
	}
	size := (1 + npages) * unix.Getpagesize()
	mapping, err := unix.Mmap(fd, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, os.NewSyscallError("mmap", err)
	}
	meta := (*unix.PerfEventMmapPage)(unsafe.Pointer(&mapping[0]))
	return &RingBuffer{
		mapping: mapping,
		meta:    meta,
		data:    mapping[meta.Data_offset : uint64(meta.Data_offset)+meta.Data_size],
	}, nil
}

// Events returns an iterator over the records currently pending in the
// ring buffer. The iterator is bounded by the producer position sampled
// once, at the time of the call: records the kernel publishes afterwards
// are picked up by the next Events call.
//
// Iterating does not consume the records. They remain pending, and are
// returned again by subsequent Events calls, until they are released
// with Advance or AdvanceAll.
func (rb *RingBuffer) Events() *RecordIter {
	// The acquire load of the head pairs with the kernel's release
	// store: everything up to head is visible after this.
	head := atomic.LoadUint64(&rb.meta.Data_head)
	return &RecordIter{
		rb:   rb,
		next: rb.totalRead,
		head: head,
	}
}

// EventsPending reports whether any records are waiting in the ring
// buffer. It is advisory: the kernel may publish more records
// immediately after it returns.
func (rb *RingBuffer) EventsPending() bool {
	head := atomic.LoadUint64(&rb.meta.Data_head)
	return head != rb.totalRead
}

// Advance releases the first n pending records back to the kernel,
// allowing it to overwrite their storage. If fewer than n records are
// pending, all pending records are released. Record payloads obtained
// from iterators before the call must no longer be touched.
func (rb *RingBuffer) Advance(n int) {
	head := atomic.LoadUint64(&rb.meta.Data_head)
	read := rb.totalRead
	for i := 0; i < n && read < head; i++ {
		start := read % uint64(len(rb.data))
		hdr := (*RecordHeader)(unsafe.Pointer(&rb.data[start]))
		size := uint64(hdr.Size)
		if size < uint64(unsafe.Sizeof(RecordHeader{})) {
			// A corrupt header would make the walk spin in
			// place. Drop everything up to the producer
			// position instead.
			read = head
			break
		}
		read += size
	}
	if read > head {
		read = head
	}
	rb.totalRead = read
	// Release store: the kernel may reuse the space only after it
	// observes the new tail.
	atomic.StoreUint64(&rb.meta.Data_tail, rb.totalRead)
}

// AdvanceAll releases every record visible to the most recent Events
// call (and any published since) back to the kernel.
func (rb *RingBuffer) AdvanceAll() {
	head := atomic.LoadUint64(&rb.meta.Data_head)
	rb.totalRead = head
	atomic.StoreUint64(&rb.meta.Data_tail, rb.totalRead)
}

// Close releases all pending records and unmaps the ring buffer.
// Close is idempotent.
func (rb *RingBuffer) Close() error {
	if rb.closed {
		return nil
	}
	rb.closed = true
	rb.AdvanceAll()
	rb.meta = nil
	rb.data = nil
	return os.NewSyscallError("munmap", unix.Munmap(rb.mapping))
}

// A RecordIter iterates over the raw records pending in a ring buffer,
// in the bufio.Scanner style:
//
//	it := rb.Events()
//	for it.Next() {
//		raw := it.Record()
//		...
//	}
//	if err := it.Err(); err != nil {
//		...
//	}
//	rb.AdvanceAll()
//
// The iterator does not consume records; see RingBuffer.Advance.
type RecordIter struct {
	rb   *RingBuffer
	next uint64 // position of the next record
	head uint64 // producer position observed by Events
	raw  RawRecord
	err  error
}

// Next advances the iterator to the next pending record. It returns
// false when the records visible to Events are exhausted, or when a
// malformed record is encountered (see Err).
func (it *RecordIter) Next() bool {
	if it.err != nil || it.next >= it.head {
		return false
	}
	data := it.rb.data
	start := it.next % uint64(len(data))
	hdr := (*RecordHeader)(unsafe.Pointer(&data[start]))
	size := uint64(hdr.Size)
	hdrSize := uint64(unsafe.Sizeof(RecordHeader{}))
	if size < hdrSize || it.next+size > it.head {
		it.err = fmt.Errorf("%w: header declares %d byte record, %d pending",
			ErrMalformedRecord, size, it.head-it.next)
		return false
	}
	var rec []byte
	if start+size > uint64(len(data)) {
		// The record wraps around the end of the data area: stage
		// it into the scratch buffer so the payload is contiguous.
		if size > MaxRecordSize {
			it.err = fmt.Errorf("%w: wrapped record of %d bytes exceeds %d byte staging buffer",
				ErrMalformedRecord, size, MaxRecordSize)
			return false
		}
		n := copy(it.rb.scratch[:size], data[start:])
		copy(it.rb.scratch[n:size], data[:size-uint64(n)])
		rec = it.rb.scratch[:size]
	} else {
		rec = data[start : start+size]
	}
	it.raw.Header = *(*RecordHeader)(unsafe.Pointer(&rec[0]))
	it.raw.Data = rec[hdrSize:]
	it.next += size
	return true
}

// Record returns the current raw record. The returned value and its
// Data payload are valid only until the next call to Next, or until the
// record is released with Advance.
func (it *RecordIter) Record() *RawRecord {
	return &it.raw
}

// Err returns the first malformed-record error encountered by Next.
func (it *RecordIter) Err() error {
	return it.err
}

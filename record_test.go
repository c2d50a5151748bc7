// Copyright 2026 The pmulib Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pmu

import (
	"errors"
	"testing"
	"unsafe"

	"github.com/google/go-cmp/cmp"
)

// payload builds record payloads field by field, in native byte order,
// mirroring what the kernel writes after the record header.
type payload struct {
	buf []byte
}

func (p *payload) u64(v uint64) *payload {
	p.buf = append(p.buf, (*[8]byte)(unsafe.Pointer(&v))[:]...)
	return p
}

func (p *payload) u32(a, b uint32) *payload {
	p.buf = append(p.buf, (*[4]byte)(unsafe.Pointer(&a))[:]...)
	p.buf = append(p.buf, (*[4]byte)(unsafe.Pointer(&b))[:]...)
	return p
}

// str appends a NUL-terminated string padded to an 8 byte multiple.
func (p *payload) str(s string) *payload {
	p.buf = append(p.buf, s...)
	for pad := 8 - len(s)%8; pad > 0; pad-- {
		p.buf = append(p.buf, 0)
	}
	return p
}

func (p *payload) raw(header RecordHeader) *RawRecord {
	header.Size = uint16(8 + len(p.buf))
	return &RawRecord{Header: header, Data: p.buf}
}

func TestDecodeSample(t *testing.T) {
	attr := &Attr{
		RecordFormat: RecordFormat{
			IP:     true,
			Tid:    true,
			Time:   true,
			CPU:    true,
			Period: true,
			Value:  true,
		},
		CountFormat: CountFormat{
			TotalTimeEnabled: true,
			TotalTimeRunning: true,
			ID:               true,
		},
	}
	raw := new(payload).
		u64(0xfeedface). // IP
		u32(100, 101).   // Pid, Tid
		u64(999).        // Time
		u32(3, 0).       // CPU, Res
		u64(4000).       // Period
		u64(1234).       // Value
		u64(2000).       // TimeEnabled
		u64(1000).       // TimeRunning
		u64(77).         // ID
		raw(RecordHeader{Type: RecordTypeSample})

	rec, err := raw.Decode(attr)
	if err != nil {
		t.Fatal(err)
	}
	sr, ok := rec.(*SampleRecord)
	if !ok {
		t.Fatalf("got %T, want *SampleRecord", rec)
	}
	want := &SampleRecord{
		RecordHeader: raw.Header,
		IP:           0xfeedface,
		Pid:          100,
		Tid:          101,
		Time:         999,
		CPU:          3,
		Period:       4000,
		Value: PerfEventValue{
			Value:       1234,
			TimeEnabled: 2000,
			TimeRunning: 1000,
			ID:          77,
		},
	}
	if diff := cmp.Diff(want, sr); diff != "" {
		t.Errorf("sample mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeSampleCallchain(t *testing.T) {
	attr := &Attr{RecordFormat: RecordFormat{Callchain: true}}
	raw := new(payload).
		u64(3).
		u64(0x1000).u64(0x2000).u64(0x3000).
		raw(RecordHeader{Type: RecordTypeSample})

	rec, err := raw.Decode(attr)
	if err != nil {
		t.Fatal(err)
	}
	sr := rec.(*SampleRecord)
	want := []uint64{0x1000, 0x2000, 0x3000}
	if diff := cmp.Diff(want, sr.Callchain); diff != "" {
		t.Errorf("callchain mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeComm(t *testing.T) {
	attr := &Attr{
		RecordFormat: RecordFormat{Tid: true, Time: true},
		Options:      Options{RecordIDAll: true},
	}
	raw := new(payload).
		u32(42, 43).
		str("go-worker").
		u32(42, 43). // RecordID Pid, Tid
		u64(5555).   // RecordID Time
		raw(RecordHeader{Type: RecordTypeComm, Misc: commExecBit})

	rec, err := raw.Decode(attr)
	if err != nil {
		t.Fatal(err)
	}
	cr, ok := rec.(*CommRecord)
	if !ok {
		t.Fatalf("got %T, want *CommRecord", rec)
	}
	if cr.NewName != "go-worker" {
		t.Errorf("NewName = %q, want %q", cr.NewName, "go-worker")
	}
	if !cr.WasExec() {
		t.Error("WasExec() = false, want true")
	}
	if cr.RecordID.Pid != 42 || cr.RecordID.Time != 5555 {
		t.Errorf("RecordID = %+v", cr.RecordID)
	}
}

func TestDecodeMmapTrailingID(t *testing.T) {
	// The filename field is NUL padded, so the decoder must bound it
	// by the size of the trailing RecordID rather than scan to the
	// end of the record.
	attr := &Attr{
		RecordFormat: RecordFormat{
			Tid:        true,
			Time:       true,
			CPU:        true,
			Identifier: true,
		},
		Options: Options{RecordIDAll: true},
	}
	raw := new(payload).
		u32(70, 71).
		u64(0x400000).
		u64(0x2000).
		u64(0).
		str("/bin/true").
		u32(70, 71). // RecordID Pid, Tid
		u64(8888).   // RecordID Time
		u32(2, 0).   // RecordID CPU, Res
		u64(31).     // RecordID Identifier
		raw(RecordHeader{Type: RecordTypeMmap})

	rec, err := raw.Decode(attr)
	if err != nil {
		t.Fatal(err)
	}
	mr, ok := rec.(*MmapRecord)
	if !ok {
		t.Fatalf("got %T, want *MmapRecord", rec)
	}
	if mr.Filename != "/bin/true" {
		t.Errorf("Filename = %q, want %q", mr.Filename, "/bin/true")
	}
	id := mr.RecordID
	if id.Pid != 70 || id.Time != 8888 || id.CPU != 2 || id.Identifier != 31 {
		t.Errorf("RecordID = %+v", id)
	}
}

func TestDecodeCommBadUTF8(t *testing.T) {
	attr := new(Attr)
	p := new(payload).u32(1, 1)
	p.buf = append(p.buf, 0xff, 0xfe, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00)
	raw := p.raw(RecordHeader{Type: RecordTypeComm})

	_, err := raw.Decode(attr)
	if !errors.Is(err, ErrMalformedRecord) {
		t.Errorf("err = %v, want ErrMalformedRecord", err)
	}
}

func TestDecodeMmap2(t *testing.T) {
	attr := new(Attr)
	raw := new(payload).
		u32(7, 8).
		u64(0x7f0000000000).
		u64(0x1000).
		u64(0).
		u32(8, 1).
		u64(123456).
		u64(1).
		u32(5, 2).
		str("/usr/lib/libc.so.6").
		raw(RecordHeader{Type: RecordTypeMmap2})

	rec, err := raw.Decode(attr)
	if err != nil {
		t.Fatal(err)
	}
	mr, ok := rec.(*Mmap2Record)
	if !ok {
		t.Fatalf("got %T, want *Mmap2Record", rec)
	}
	if mr.Filename != "/usr/lib/libc.so.6" {
		t.Errorf("Filename = %q", mr.Filename)
	}
	if mr.Addr != 0x7f0000000000 || mr.Len != 0x1000 || mr.Inode != 123456 {
		t.Errorf("decoded fields: %+v", mr)
	}
}

func TestDecodeForkExit(t *testing.T) {
	attr := new(Attr)
	for _, typ := range []RecordType{RecordTypeFork, RecordTypeExit} {
		raw := new(payload).
			u32(10, 9).
			u32(11, 12).
			u64(777).
			raw(RecordHeader{Type: typ})
		rec, err := raw.Decode(attr)
		if err != nil {
			t.Fatal(err)
		}
		switch r := rec.(type) {
		case *ForkRecord:
			if r.Pid != 10 || r.Ppid != 9 || r.Tid != 11 || r.Time != 777 {
				t.Errorf("fork: %+v", r)
			}
		case *ExitRecord:
			if r.Pid != 10 || r.Ppid != 9 || r.Tid != 11 || r.Time != 777 {
				t.Errorf("exit: %+v", r)
			}
		default:
			t.Errorf("got %T", rec)
		}
	}
}

func TestDecodeSwitch(t *testing.T) {
	attr := new(Attr)
	tests := []struct {
		misc uint16
		want SwitchKind
	}{
		{0, SwitchIn},
		{switchOutBit, SwitchOutIdle},
		{switchOutBit | switchOutPreemptBit, SwitchOutRunning},
	}
	for _, tt := range tests {
		raw := new(payload).raw(RecordHeader{Type: RecordTypeSwitch, Misc: tt.misc})
		rec, err := raw.Decode(attr)
		if err != nil {
			t.Fatal(err)
		}
		sr := rec.(*SwitchRecord)
		if sr.Kind != tt.want {
			t.Errorf("misc %#x: Kind = %v, want %v", tt.misc, sr.Kind, tt.want)
		}
	}

	// The CPU-wide variant carries the peer pid/tid.
	raw := new(payload).u32(55, 56).raw(RecordHeader{
		Type: RecordTypeSwitchCPUWide,
		Misc: switchOutBit,
	})
	rec, err := raw.Decode(attr)
	if err != nil {
		t.Fatal(err)
	}
	sr := rec.(*SwitchRecord)
	if sr.Pid != 55 || sr.Tid != 56 || sr.Kind != SwitchOutIdle {
		t.Errorf("cpu-wide switch: %+v", sr)
	}
}

func TestDecodeLost(t *testing.T) {
	attr := new(Attr)
	raw := new(payload).u64(9).u64(250).raw(RecordHeader{Type: RecordTypeLost})
	rec, err := raw.Decode(attr)
	if err != nil {
		t.Fatal(err)
	}
	lr := rec.(*LostRecord)
	if lr.ID != 9 || lr.Lost != 250 {
		t.Errorf("lost: %+v", lr)
	}
}

func TestDecodeThrottle(t *testing.T) {
	attr := new(Attr)
	raw := new(payload).u64(100).u64(1).u64(2).raw(RecordHeader{Type: RecordTypeThrottle})
	rec, err := raw.Decode(attr)
	if err != nil {
		t.Fatal(err)
	}
	tr := rec.(*ThrottleRecord)
	if tr.Time != 100 || tr.ID != 1 || tr.StreamID != 2 {
		t.Errorf("throttle: %+v", tr)
	}
}

func TestDecodeUnknownType(t *testing.T) {
	attr := new(Attr)
	raw := new(payload).u64(0xdead).raw(RecordHeader{Type: RecordType(1000)})
	rec, err := raw.Decode(attr)
	if err != nil {
		t.Fatal(err)
	}
	ur, ok := rec.(*UnknownRecord)
	if !ok {
		t.Fatalf("got %T, want *UnknownRecord", rec)
	}
	if len(ur.Data) != 8 {
		t.Errorf("Data length = %d, want 8", len(ur.Data))
	}
}

func TestDecodeTruncated(t *testing.T) {
	attr := &Attr{RecordFormat: RecordFormat{IP: true, Time: true}}
	// Only one of the two 8 byte fields is present.
	raw := new(payload).u64(1).raw(RecordHeader{Type: RecordTypeSample})
	_, err := raw.Decode(attr)
	if !errors.Is(err, ErrMalformedRecord) {
		t.Errorf("err = %v, want ErrMalformedRecord", err)
	}
}

func TestMarshalRecordFormat(t *testing.T) {
	f := RecordFormat{
		IP:         true,
		Tid:        true,
		Time:       true,
		CPU:        true,
		Period:     true,
		Identifier: true,
	}
	// PERF_SAMPLE_IP | TID | TIME | CPU | PERIOD | IDENTIFIER
	want := uint64(1<<0 | 1<<1 | 1<<2 | 1<<7 | 1<<8 | 1<<16)
	if got := f.marshal(); got != want {
		t.Errorf("marshal() = %#x, want %#x", got, want)
	}
}

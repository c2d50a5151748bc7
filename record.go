// Copyright 2026 The pmulib Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pmu

import (
	"golang.org/x/sys/unix"
)

// RecordType is the type of an overflow record.
type RecordType uint32

// Known record types.
const (
	RecordTypeMmap          RecordType = unix.PERF_RECORD_MMAP
	RecordTypeLost          RecordType = unix.PERF_RECORD_LOST
	RecordTypeComm          RecordType = unix.PERF_RECORD_COMM
	RecordTypeExit          RecordType = unix.PERF_RECORD_EXIT
	RecordTypeThrottle      RecordType = unix.PERF_RECORD_THROTTLE
	RecordTypeUnthrottle    RecordType = unix.PERF_RECORD_UNTHROTTLE
	RecordTypeFork          RecordType = unix.PERF_RECORD_FORK
	RecordTypeSample        RecordType = unix.PERF_RECORD_SAMPLE
	RecordTypeMmap2         RecordType = unix.PERF_RECORD_MMAP2
	RecordTypeLostSamples   RecordType = unix.PERF_RECORD_LOST_SAMPLES
	RecordTypeSwitch        RecordType = unix.PERF_RECORD_SWITCH
	RecordTypeSwitchCPUWide RecordType = unix.PERF_RECORD_SWITCH_CPU_WIDE
)

// RecordHeader is the header present in every overflow record.
type RecordHeader struct {
	Type RecordType
	Misc uint16
	Size uint16
}

// Header returns rh itself, so that types which embed a RecordHeader
// automatically implement a part of the Record interface.
func (rh RecordHeader) Header() RecordHeader { return rh }

// CPUMode returns the CPU mode in use when the sample happened.
func (rh RecordHeader) CPUMode() CPUMode {
	return CPUMode(rh.Misc & cpuModeMask)
}

// CPUMode is a CPU operation mode.
type CPUMode uint8

const cpuModeMask = 7

// Known CPU modes.
const (
	UnknownMode     CPUMode = 0
	KernelMode      CPUMode = 1
	UserMode        CPUMode = 2
	HypervisorMode  CPUMode = 3
	GuestKernelMode CPUMode = 4
	GuestUserMode   CPUMode = 5
)

// RawRecord is a raw overflow record, read from the memory mapped ring
// buffer associated with an Event.
//
// Header is the 8 byte record header. Data contains the rest of the
// record. Data points into the shared ring buffer mapping (or the
// iterator's staging buffer) and must not be retained past the
// corresponding RingBuffer.Advance call; Decode the record, or copy
// the payload, to keep it.
type RawRecord struct {
	Header RecordHeader
	Data   []byte
}

func (raw *RawRecord) fields() fields { return fields{buf: raw.Data} }

// Decode decodes the raw record into a typed Record, interpreting
// conditional fields per attr, the attributes of the event the record
// was collected on. Record types this package does not know decode to
// *UnknownRecord.
func (raw *RawRecord) Decode(attr *Attr) (Record, error) {
	var rec Record
	switch raw.Header.Type {
	case RecordTypeMmap:
		rec = &MmapRecord{}
	case RecordTypeLost:
		rec = &LostRecord{}
	case RecordTypeComm:
		rec = &CommRecord{}
	case RecordTypeExit:
		rec = &ExitRecord{}
	case RecordTypeThrottle:
		rec = &ThrottleRecord{}
	case RecordTypeUnthrottle:
		rec = &UnthrottleRecord{}
	case RecordTypeFork:
		rec = &ForkRecord{}
	case RecordTypeSample:
		rec = &SampleRecord{}
	case RecordTypeMmap2:
		rec = &Mmap2Record{}
	case RecordTypeLostSamples:
		rec = &LostSamplesRecord{}
	case RecordTypeSwitch, RecordTypeSwitchCPUWide:
		rec = &SwitchRecord{}
	default:
		rec = &UnknownRecord{}
	}
	if err := rec.DecodeFrom(raw, attr); err != nil {
		return nil, err
	}
	return rec, nil
}

// RecordID contains identifiers for when and where a record was
// collected.
//
// A RecordID is included with a Record if Options.RecordIDAll is set on
// the associated event. Fields are present based on RecordFormat
// options.
type RecordID struct {
	Pid        uint32
	Tid        uint32
	Time       uint64
	ID         uint64
	StreamID   uint64
	CPU        uint32
	Res        uint32
	Identifier uint64
}

// Record is the interface implemented by all record types.
type Record interface {
	Header() RecordHeader
	DecodeFrom(*RawRecord, *Attr) error
}

// mmapDataBit is PERF_RECORD_MISC_MMAP_DATA
const mmapDataBit = 1 << 13

// MmapRecord (PERF_RECORD_MMAP) records PROT_EXEC mappings such that
// user-space IPs can be correlated to code.
type MmapRecord struct {
	RecordHeader
	Pid        uint32 // process ID
	Tid        uint32 // thread ID
	Addr       uint64 // address of the allocated memory
	Len        uint64 // length of the allocated memory
	PageOffset uint64 // page offset of the allocated memory
	Filename   string // describes backing of allocated memory
	RecordID
}

func (mr *MmapRecord) DecodeFrom(raw *RawRecord, attr *Attr) error {
	mr.RecordHeader = raw.Header
	f := raw.fields()
	f.uint32(&mr.Pid, &mr.Tid)
	f.uint64(&mr.Addr)
	f.uint64(&mr.Len)
	f.uint64(&mr.PageOffset)
	f.string(&mr.Filename, sampleIDSize(attr))
	f.id(&mr.RecordID, attr)
	return f.err()
}

// Executable returns a boolean indicating whether the mapping is
// executable.
func (mr *MmapRecord) Executable() bool {
	// The data bit is set when the mapping is _not_ executable.
	return mr.RecordHeader.Misc&mmapDataBit == 0
}

// Mmap2Record (PERF_RECORD_MMAP2) includes extended information on
// mmap(2) calls. It is similar to MmapRecord, but includes extra values
// that allow unique identification of shared mappings.
type Mmap2Record struct {
	RecordHeader
	Pid             uint32 // process ID
	Tid             uint32 // thread ID
	Addr            uint64 // address of the allocated memory
	Len             uint64 // length of the allocated memory
	PageOffset      uint64 // page offset of the allocated memory
	MajorID         uint32 // major ID of the underlying device
	MinorID         uint32 // minor ID of the underlying device
	Inode           uint64 // inode number
	InodeGeneration uint64 // inode generation
	Prot            uint32 // protection information
	Flags           uint32 // flags information
	Filename        string // describes the backing of the allocated memory
	RecordID
}

func (mr *Mmap2Record) DecodeFrom(raw *RawRecord, attr *Attr) error {
	mr.RecordHeader = raw.Header
	f := raw.fields()
	f.uint32(&mr.Pid, &mr.Tid)
	f.uint64(&mr.Addr)
	f.uint64(&mr.Len)
	f.uint64(&mr.PageOffset)
	f.uint32(&mr.MajorID, &mr.MinorID)
	f.uint64(&mr.Inode)
	f.uint64(&mr.InodeGeneration)
	f.uint32(&mr.Prot, &mr.Flags)
	f.string(&mr.Filename, sampleIDSize(attr))
	f.id(&mr.RecordID, attr)
	return f.err()
}

// Executable returns a boolean indicating whether the mapping is
// executable.
func (mr *Mmap2Record) Executable() bool {
	return mr.RecordHeader.Misc&mmapDataBit == 0
}

// LostRecord (PERF_RECORD_LOST) indicates when events are lost.
type LostRecord struct {
	RecordHeader
	ID   uint64 // the unique ID for the lost events
	Lost uint64 // the number of lost events
	RecordID
}

func (lr *LostRecord) DecodeFrom(raw *RawRecord, attr *Attr) error {
	lr.RecordHeader = raw.Header
	f := raw.fields()
	f.uint64(&lr.ID)
	f.uint64(&lr.Lost)
	f.id(&lr.RecordID, attr)
	return f.err()
}

// LostSamplesRecord (PERF_RECORD_LOST_SAMPLES) indicates some number of
// samples that may have been lost, when using hardware sampling such as
// Intel PEBS.
type LostSamplesRecord struct {
	RecordHeader
	Lost uint64 // the number of potentially lost samples
	RecordID
}

func (lr *LostSamplesRecord) DecodeFrom(raw *RawRecord, attr *Attr) error {
	lr.RecordHeader = raw.Header
	f := raw.fields()
	f.uint64(&lr.Lost)
	f.id(&lr.RecordID, attr)
	return f.err()
}

// CommRecord (PERF_RECORD_COMM) indicates a change in the process name.
type CommRecord struct {
	RecordHeader
	Pid     uint32 // process ID
	Tid     uint32 // thread ID
	NewName string // the new name of the process
	RecordID
}

func (cr *CommRecord) DecodeFrom(raw *RawRecord, attr *Attr) error {
	cr.RecordHeader = raw.Header
	f := raw.fields()
	f.uint32(&cr.Pid, &cr.Tid)
	f.string(&cr.NewName, sampleIDSize(attr))
	f.id(&cr.RecordID, attr)
	return f.err()
}

// commExecBit is PERF_RECORD_MISC_COMM_EXEC
const commExecBit = 1 << 13

// WasExec returns a boolean indicating whether a process name change
// was caused by an exec(2) system call.
func (cr *CommRecord) WasExec() bool {
	return cr.RecordHeader.Misc&commExecBit != 0
}

// ExitRecord (PERF_RECORD_EXIT) indicates a process exit event.
type ExitRecord struct {
	RecordHeader
	Pid  uint32 // process ID
	Ppid uint32 // parent process ID
	Tid  uint32 // thread ID
	Ptid uint32 // parent thread ID
	Time uint64 // time when the process exited
	RecordID
}

func (er *ExitRecord) DecodeFrom(raw *RawRecord, attr *Attr) error {
	er.RecordHeader = raw.Header
	f := raw.fields()
	f.uint32(&er.Pid, &er.Ppid)
	f.uint32(&er.Tid, &er.Ptid)
	f.uint64(&er.Time)
	f.id(&er.RecordID, attr)
	return f.err()
}

// ForkRecord (PERF_RECORD_FORK) indicates a fork event.
type ForkRecord struct {
	RecordHeader
	Pid  uint32 // process ID
	Ppid uint32 // parent process ID
	Tid  uint32 // thread ID
	Ptid uint32 // parent thread ID
	Time uint64 // time when the fork occurred
	RecordID
}

func (fr *ForkRecord) DecodeFrom(raw *RawRecord, attr *Attr) error {
	fr.RecordHeader = raw.Header
	f := raw.fields()
	f.uint32(&fr.Pid, &fr.Ppid)
	f.uint32(&fr.Tid, &fr.Ptid)
	f.uint64(&fr.Time)
	f.id(&fr.RecordID, attr)
	return f.err()
}

// ThrottleRecord (PERF_RECORD_THROTTLE) indicates that the kernel began
// throttling interrupt delivery for the event.
type ThrottleRecord struct {
	RecordHeader
	Time     uint64
	ID       uint64
	StreamID uint64
	RecordID
}

func (tr *ThrottleRecord) DecodeFrom(raw *RawRecord, attr *Attr) error {
	tr.RecordHeader = raw.Header
	f := raw.fields()
	f.uint64(&tr.Time)
	f.uint64(&tr.ID)
	f.uint64(&tr.StreamID)
	f.id(&tr.RecordID, attr)
	return f.err()
}

// UnthrottleRecord (PERF_RECORD_UNTHROTTLE) indicates that the kernel
// stopped throttling interrupt delivery for the event.
type UnthrottleRecord struct {
	RecordHeader
	Time     uint64
	ID       uint64
	StreamID uint64
	RecordID
}

func (ur *UnthrottleRecord) DecodeFrom(raw *RawRecord, attr *Attr) error {
	ur.RecordHeader = raw.Header
	f := raw.fields()
	f.uint64(&ur.Time)
	f.uint64(&ur.ID)
	f.uint64(&ur.StreamID)
	f.id(&ur.RecordID, attr)
	return f.err()
}

// SampleRecord (PERF_RECORD_SAMPLE) indicates a sample.
//
// Fields are set according to the RecordFormat the event was configured
// with: a boolean flag in RecordFormat enables the homonymous field in
// SampleRecord. Value is decoded per the event's CountFormat when
// RecordFormat.Value is set.
type SampleRecord struct {
	RecordHeader
	Identifier uint64
	IP         uint64
	Pid        uint32
	Tid        uint32
	Time       uint64
	Addr       uint64
	ID         uint64
	StreamID   uint64
	CPU        uint32
	Res        uint32
	Period     uint64
	Value      PerfEventValue
	Callchain  []uint64
	Raw        []byte
}

func (sr *SampleRecord) DecodeFrom(raw *RawRecord, attr *Attr) error {
	sr.RecordHeader = raw.Header
	f := raw.fields()
	f.uint64If(attr.RecordFormat.Identifier, &sr.Identifier)
	f.uint64If(attr.RecordFormat.IP, &sr.IP)
	f.uint32If(attr.RecordFormat.Tid, &sr.Pid, &sr.Tid)
	f.uint64If(attr.RecordFormat.Time, &sr.Time)
	f.uint64If(attr.RecordFormat.Addr, &sr.Addr)
	f.uint64If(attr.RecordFormat.ID, &sr.ID)
	f.uint64If(attr.RecordFormat.StreamID, &sr.StreamID)
	f.uint32If(attr.RecordFormat.CPU, &sr.CPU, &sr.Res)
	f.uint64If(attr.RecordFormat.Period, &sr.Period)
	if attr.RecordFormat.Value {
		f.value(&sr.Value, attr.CountFormat)
	}
	if attr.RecordFormat.Callchain {
		var nr uint64
		f.uint64(&nr)
		if f.err() != nil {
			return f.err()
		}
		sr.Callchain = make([]uint64, nr)
		for i := range sr.Callchain {
			f.uint64(&sr.Callchain[i])
		}
	}
	if attr.RecordFormat.Raw {
		f.uint32sizeBytes(&sr.Raw)
	}
	return f.err()
}

// exactIPBit is PERF_RECORD_MISC_EXACT_IP
const exactIPBit = 1 << 14

// ExactIP indicates that sr.IP points to the actual instruction that
// triggered the event.
func (sr *SampleRecord) ExactIP() bool {
	return sr.RecordHeader.Misc&exactIPBit != 0
}

// switchOutBit is PERF_RECORD_MISC_SWITCH_OUT
const switchOutBit = 1 << 13

// switchOutPreemptBit is PERF_RECORD_MISC_SWITCH_OUT_PREEMPT
const switchOutPreemptBit = 1 << 14

// SwitchKind describes the direction of a context switch.
type SwitchKind uint8

// Context switch directions.
const (
	// SwitchIn is a context switch into the monitored process.
	SwitchIn SwitchKind = iota

	// SwitchOutIdle is a context switch out of the monitored process
	// while it was blocked.
	SwitchOutIdle

	// SwitchOutRunning is a context switch out of the monitored
	// process while it was preempted in a runnable state.
	SwitchOutRunning
)

func (k SwitchKind) String() string {
	switch k {
	case SwitchIn:
		return "in"
	case SwitchOutIdle:
		return "out-idle"
	case SwitchOutRunning:
		return "out-running"
	}
	return "unknown"
}

// SwitchRecord (PERF_RECORD_SWITCH or PERF_RECORD_SWITCH_CPU_WIDE)
// indicates that a context switch happened. Pid and Tid describe the
// process being switched in or out, and are only present for CPU-wide
// records (check the header Type).
type SwitchRecord struct {
	RecordHeader
	Kind SwitchKind
	Pid  uint32
	Tid  uint32
	RecordID
}

func (sr *SwitchRecord) DecodeFrom(raw *RawRecord, attr *Attr) error {
	sr.RecordHeader = raw.Header
	switch {
	case raw.Header.Misc&switchOutPreemptBit != 0:
		sr.Kind = SwitchOutRunning
	case raw.Header.Misc&switchOutBit != 0:
		sr.Kind = SwitchOutIdle
	default:
		sr.Kind = SwitchIn
	}
	f := raw.fields()
	if raw.Header.Type == RecordTypeSwitchCPUWide {
		f.uint32(&sr.Pid, &sr.Tid)
	}
	f.id(&sr.RecordID, attr)
	return f.err()
}

// UnknownRecord holds a record of a type this package does not know how
// to decode. Data aliases the raw record payload and follows its
// lifetime rules.
type UnknownRecord struct {
	RecordHeader
	Data []byte
}

func (ur *UnknownRecord) DecodeFrom(raw *RawRecord, _ *Attr) error {
	ur.RecordHeader = raw.Header
	ur.Data = raw.Data
	return nil
}

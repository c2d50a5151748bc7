// Copyright 2026 The pmulib Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pmu

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Special pid values for Open.
const (
	// CallingThread configures the event to measure the calling thread.
	CallingThread = 0

	// AllThreads configures the event to measure all threads on the
	// specified CPU.
	AllThreads = -1
)

// AnyCPU configures the specified process/thread to be measured on any CPU.
const AnyCPU = -1

// Flag is a set of flags for Open. Values are or-ed together.
type Flag int

// Flags for calls to Open.
const (
	// NoGroup configures the event to ignore the group parameter
	// except for the purpose of setting up output redirection using
	// the FDOutput flag.
	NoGroup Flag = unix.PERF_FLAG_FD_NO_GROUP

	// FDOutput re-routes the event's sampled output to be included in the
	// memory mapped buffer of the event specified by the group parameter.
	FDOutput Flag = unix.PERF_FLAG_FD_OUTPUT

	// PidCGroup activates per-container system-wide monitoring. In this
	// case, a file descriptor opened on /dev/cgroup/<x> must be passed
	// as the pid parameter.
	PidCGroup Flag = unix.PERF_FLAG_PID_CGROUP

	// cloexec configures the event file descriptor to be opened in
	// close-on-exec mode. Package pmu sets this flag by default on
	// all file descriptors.
	cloexec Flag = unix.PERF_FLAG_FD_CLOEXEC
)

// Event states.
const (
	eventStateUninitialized = 0
	eventStateOK            = 1
	eventStateClosed        = 2
)

// An Event is an opened measurement channel: a perf event file
// descriptor, the attributes it was configured with, and, once MapRing
// has been called, the shared ring buffer the kernel appends sampled
// records to.
type Event struct {
	// state is the state of the event. See eventState* constants.
	state int32

	// fd is the event file descriptor.
	fd int

	// attr is the set of attributes the Event was configured with.
	// It is a clone of the original.
	attr *Attr

	// ring is the mapped ring buffer; nil until MapRing is called.
	ring *RingBuffer

	// owned contains events opened as part of the group led by this
	// Event through a Group; they are closed together with the leader.
	owned []*Event
}

// Open opens the event configured by attr.
//
// The pid and cpu parameters specify which thread and CPU to monitor:
//
//   - if pid == CallingThread and cpu == AnyCPU, the event measures
//     the calling thread on any CPU
//
//   - if pid == CallingThread and cpu >= 0, the event measures
//     the calling thread only when running on the specified CPU
//
//   - if pid > 0 and cpu == AnyCPU, the event measures the specified
//     thread on any CPU
//
//   - if pid > 0 and cpu >= 0, the event measures the specified thread
//     only when running on the specified CPU
//
//   - if pid == AllThreads and cpu >= 0, the event measures all threads
//     on the specified CPU
//
//   - finally, the pid == AllThreads and cpu == AnyCPU setting is invalid
//
// If group is non-nil, the returned Event is made part of the group
// associated with the specified group Event, and the group leader
// controls when the entire group is enabled.
func Open(attr *Attr, pid, cpu int, group *Event, flags Flag) (*Event, error) {
	groupfd := -1
	if group != nil {
		if err := group.ok(); err != nil {
			return nil, err
		}
		groupfd = group.fd
	}
	flags |= cloexec
	fd, err := unix.PerfEventOpen(attr.sysAttr(), pid, cpu, groupfd, int(flags))
	if err != nil {
		return nil, os.NewSyscallError("perf_event_open", err)
	}
	attrClone := new(Attr)
	*attrClone = *attr // ok to copy since no slices
	return &Event{
		state: eventStateOK,
		fd:    fd,
		attr:  attrClone,
	}, nil
}

func (ev *Event) ok() error {
	if ev == nil {
		return os.ErrInvalid
	}
	switch ev.state {
	case eventStateUninitialized:
		return os.ErrInvalid
	case eventStateOK:
		return nil
	default: // eventStateClosed
		return os.ErrClosed
	}
}

// Attr returns a copy of the attributes the event was opened with.
func (ev *Event) Attr() Attr {
	return *ev.attr
}

// MapRing maps the record ring buffer for the event: one metadata page
// followed by npages of record data. npages must be a power of two.
// The mapping also enables direct hardware reads via NewDirectReader,
// if the kernel grants them.
func (ev *Event) MapRing(npages int) error {
	if err := ev.ok(); err != nil {
		return err
	}
	if ev.ring != nil {
		return errors.New("pmu: ring buffer already mapped")
	}
	rb, err := newRingBuffer(ev.fd, npages)
	if err != nil {
		return err
	}
	ev.ring = rb
	return nil
}

// Ring returns the mapped ring buffer, or nil if MapRing has not been
// called.
func (ev *Event) Ring() *RingBuffer {
	return ev.ring
}

// WaitRecords blocks until the kernel signals that sampled records are
// available on the event, or until the timeout expires. A negative
// timeout blocks indefinitely; a zero timeout polls without blocking.
// WaitRecords returns true if records are ready to be consumed.
func (ev *Event) WaitRecords(timeout time.Duration) (bool, error) {
	if err := ev.ok(); err != nil {
		return false, err
	}
	var systimeout *unix.Timespec
	if timeout >= 0 {
		sec := timeout / time.Second
		nsec := timeout - sec*time.Second
		systimeout = &unix.Timespec{
			Sec:  int64(sec),
			Nsec: int64(nsec),
		}
	}
	pollfds := []unix.PollFd{{Fd: int32(ev.fd), Events: unix.POLLIN}}
again:
	_, err := unix.Ppoll(pollfds, systimeout, nil)
	if err == unix.EINTR {
		goto again
	}
	if err != nil {
		return false, os.NewSyscallError("ppoll", err)
	}
	return pollfds[0].Revents&unix.POLLIN != 0, nil
}

// Measure disables the event, resets it, enables it, runs f, disables it
// again, then reads the value associated with the event.
func (ev *Event) Measure(f func()) (PerfEventValue, error) {
	if err := ev.Disable(); err != nil {
		return PerfEventValue{}, err
	}
	if err := ev.Reset(); err != nil {
		return PerfEventValue{}, err
	}
	if err := ev.Enable(); err != nil {
		return PerfEventValue{}, err
	}
	f()
	if err := ev.Disable(); err != nil {
		return PerfEventValue{}, err
	}
	return ev.ReadValue()
}

// MeasureGroup is like Measure, but for event groups.
func (ev *Event) MeasureGroup(f func()) (GroupValue, error) {
	if err := ev.Disable(); err != nil {
		return GroupValue{}, err
	}
	if err := ev.Reset(); err != nil {
		return GroupValue{}, err
	}
	if err := ev.Enable(); err != nil {
		return GroupValue{}, err
	}
	f()
	if err := ev.Disable(); err != nil {
		return GroupValue{}, err
	}
	return ev.ReadGroupValue()
}

// Enable enables the event.
func (ev *Event) Enable() error {
	if err := ev.ok(); err != nil {
		return err
	}
	return ioctlEnable(ev.fd)
}

// Disable disables the event.
func (ev *Event) Disable() error {
	if err := ev.ok(); err != nil {
		return err
	}
	return ioctlDisable(ev.fd)
}

// Reset resets the counters associated with the event.
func (ev *Event) Reset() error {
	if err := ev.ok(); err != nil {
		return err
	}
	return ioctlReset(ev.fd)
}

// UpdatePeriod updates the overflow period for the event. On older
// kernels, the new period does not take effect until after the next
// overflow.
func (ev *Event) UpdatePeriod(p uint64) error {
	if err := ev.ok(); err != nil {
		return err
	}
	return ioctlPeriod(ev.fd, &p)
}

// SetOutput tells the kernel to report event notifications to the
// specified target Event rather than ev. ev and target must be on the
// same CPU.
//
// If target is nil, output from ev is ignored.
func (ev *Event) SetOutput(target *Event) error {
	if err := ev.ok(); err != nil {
		return err
	}
	if target == nil {
		return ioctlSetOutput(ev.fd, -1)
	}
	if err := target.ok(); err != nil {
		return err
	}
	return ioctlSetOutput(ev.fd, target.fd)
}

// ID returns the unique event ID value for ev.
func (ev *Event) ID() (uint64, error) {
	if err := ev.ok(); err != nil {
		return 0, err
	}
	var val uint64
	err := ioctlID(ev.fd, &val)
	return val, err
}

// PauseOutput pauses record output from ev.
func (ev *Event) PauseOutput() error {
	if err := ev.ok(); err != nil {
		return err
	}
	return ioctlPauseOutput(ev.fd, 1)
}

// ResumeOutput resumes record output from ev.
func (ev *Event) ResumeOutput() error {
	if err := ev.ok(); err != nil {
		return err
	}
	return ioctlPauseOutput(ev.fd, 0)
}

// ReadValue reads the measurement associated with ev using the read(2)
// system call. If the Event was configured with CountFormat.Group,
// ReadValue returns an error.
func (ev *Event) ReadValue() (PerfEventValue, error) {
	var v PerfEventValue
	if err := ev.ok(); err != nil {
		return v, err
	}
	if ev.attr.CountFormat.Group {
		return v, errors.New("pmu: calling ReadValue on group Event")
	}
	buf := make([]byte, ev.attr.CountFormat.readSize())
	_, err := unix.Read(ev.fd, buf)
	if err != nil {
		return v, os.NewSyscallError("read", err)
	}
	f := fields{buf: buf}
	f.value(&v, ev.attr.CountFormat)
	return v, f.err()
}

// ReadGroupValue reads the measurements associated with ev. If the
// Event was not configured with CountFormat.Group, ReadGroupValue
// returns an error.
func (ev *Event) ReadGroupValue() (GroupValue, error) {
	var gv GroupValue
	if err := ev.ok(); err != nil {
		return gv, err
	}
	if !ev.attr.CountFormat.Group {
		return gv, errors.New("pmu: calling ReadGroupValue on non-group Event")
	}
	cf := ev.attr.CountFormat
	headerSize := cf.groupReadHeaderSize()
	countsSize := (1 + len(ev.owned)) * cf.groupReadCountSize()
	buf := make([]byte, headerSize+countsSize)
	_, err := unix.Read(ev.fd, buf)
	if err != nil {
		return gv, os.NewSyscallError("read", err)
	}
	f := fields{buf: buf}
	var nr uint64
	f.uint64(&nr)
	f.uint64If(cf.TotalTimeEnabled, &gv.TimeEnabled)
	f.uint64If(cf.TotalTimeRunning, &gv.TimeRunning)
	if f.err() != nil {
		return gv, f.err()
	}
	gv.Values = make([]struct{ Value, ID uint64 }, nr)
	for i := range gv.Values {
		f.uint64(&gv.Values[i].Value)
		f.uint64If(cf.ID, &gv.Values[i].ID)
	}
	return gv, f.err()
}

// Close closes the event, unmapping the ring buffer if one was mapped.
// Close must not be called concurrently with any other method on the
// Event.
func (ev *Event) Close() error {
	if err := ev.ok(); err != nil {
		return err
	}
	ev.state = eventStateClosed
	for _, owned := range ev.owned {
		owned.Close()
	}
	var ringerr error
	if ev.ring != nil {
		ringerr = ev.ring.Close()
		ev.ring = nil
	}
	cerr := os.NewSyscallError("close", unix.Close(ev.fd))
	if ringerr != nil {
		return ringerr
	}
	return cerr
}

// Attr configures a perf event.
type Attr struct {
	// Label is a human readable label for the event, used by tools
	// when printing values. It is not passed to the kernel.
	Label string

	// Type is the major type of the event.
	Type EventType

	// Config is the type-specific event configuration.
	Config uint64

	// Sample configures the sample period or sample frequency for
	// overflow packets, based on Options.Freq: if Options.Freq is set,
	// Sample is interpreted as "sample frequency", otherwise it is
	// interpreted as "sample period".
	Sample uint64

	// RecordFormat configures the format for overflow packets read from
	// the ring buffer associated with the event.
	RecordFormat RecordFormat

	// CountFormat specifies the format of values read from the Event
	// using ReadValue or ReadGroupValue.
	CountFormat CountFormat

	// Options contains more fine grained event configuration.
	Options Options

	// Wakeup configures event wakeup. If Options.Watermark is set,
	// Wakeup is interpreted as the number of bytes before wakeup.
	// Otherwise, it is interpreted as "wake up every n events".
	Wakeup uint32

	// Config1 is used for events that need an extra register or
	// otherwise do not fit in the regular config field, such as the
	// offcore response and load latency MSR values.
	Config1 uint64

	// Config2 is a further extension of the Config1 field.
	Config2 uint64

	// ClockID is the clock ID to use with samples, if Options.UseClockID
	// is set.
	ClockID int32
}

func (a Attr) sysAttr() *unix.PerfEventAttr {
	return &unix.PerfEventAttr{
		Type:        uint32(a.Type),
		Size:        uint32(unsafe.Sizeof(unix.PerfEventAttr{})),
		Config:      a.Config,
		Sample:      a.Sample,
		Sample_type: a.RecordFormat.marshal(),
		Read_format: a.CountFormat.marshal(),
		Bits:        a.Options.marshal(),
		Wakeup:      a.Wakeup,
		Ext1:        a.Config1,
		Ext2:        a.Config2,
		Clockid:     a.ClockID,
	}
}

// Configure implements the Configurator interface, so *Attr values can
// be added to a Group directly.
func (a *Attr) Configure(target *Attr) error {
	*target = *a
	return nil
}

// SetSamplePeriod configures the sampling period for the event.
//
// It sets attr.Sample to p and attr.Options.Freq to false.
func (a *Attr) SetSamplePeriod(p uint64) {
	a.Sample = p
	a.Options.Freq = false
}

// SetSampleFreq configures the sampling frequency for the event.
//
// It sets attr.Sample to f and enables attr.Options.Freq.
func (a *Attr) SetSampleFreq(f uint64) {
	a.Sample = f
	a.Options.Freq = true
}

// SetWakeupEvents configures the event to wake up poll(2) waiters
// every n overflow events.
func (a *Attr) SetWakeupEvents(n uint32) {
	a.Wakeup = n
	a.Options.Watermark = false
}

// SetWakeupWatermark configures the event to wake up poll(2) waiters
// every n bytes of ring buffer output.
func (a *Attr) SetWakeupWatermark(n uint32) {
	a.Wakeup = n
	a.Options.Watermark = true
}

// ConfigureSampled configures the canonical sampled pipeline shape:
// instruction pointer, pid/tid, timestamp, CPU and period on each
// sample, the counter value with enabled and running times, and
// identifiers on non-sample records.
func (a *Attr) ConfigureSampled() {
	a.RecordFormat = RecordFormat{
		IP:     true,
		Tid:    true,
		Time:   true,
		CPU:    true,
		Period: true,
		Value:  true,
	}
	a.CountFormat = CountFormat{
		TotalTimeEnabled: true,
		TotalTimeRunning: true,
		ID:               true,
	}
	a.Options.RecordIDAll = true
}

// EventType is the overall type of a performance event.
type EventType uint32

// Supported event types.
const (
	HardwareEvent      EventType = unix.PERF_TYPE_HARDWARE
	SoftwareEvent      EventType = unix.PERF_TYPE_SOFTWARE
	TracepointEvent    EventType = unix.PERF_TYPE_TRACEPOINT
	HardwareCacheEvent EventType = unix.PERF_TYPE_HW_CACHE
	RawEvent           EventType = unix.PERF_TYPE_RAW
	BreakpointEvent    EventType = unix.PERF_TYPE_BREAKPOINT
)

// ProbePMU probes /sys/bus/event_source/devices/<name>/type for the
// EventType value associated with the specified PMU.
func ProbePMU(name string) (EventType, error) {
	p := filepath.Join("/sys/bus/event_source/devices", name, "type")
	content, err := os.ReadFile(p)
	if err != nil {
		return 0, err
	}
	nr := strings.TrimSpace(string(content)) // remove trailing newline
	et, err := strconv.ParseUint(nr, 10, 32)
	if err != nil {
		return 0, err
	}
	return EventType(et), nil
}

// HardwareCounter is a hardware performance counter.
type HardwareCounter uint64

// Hardware performance counters.
const (
	CPUCycles             HardwareCounter = unix.PERF_COUNT_HW_CPU_CYCLES
	Instructions          HardwareCounter = unix.PERF_COUNT_HW_INSTRUCTIONS
	CacheReferences       HardwareCounter = unix.PERF_COUNT_HW_CACHE_REFERENCES
	CacheMisses           HardwareCounter = unix.PERF_COUNT_HW_CACHE_MISSES
	BranchInstructions    HardwareCounter = unix.PERF_COUNT_HW_BRANCH_INSTRUCTIONS
	BranchMisses          HardwareCounter = unix.PERF_COUNT_HW_BRANCH_MISSES
	BusCycles             HardwareCounter = unix.PERF_COUNT_HW_BUS_CYCLES
	StalledCyclesFrontend HardwareCounter = unix.PERF_COUNT_HW_STALLED_CYCLES_FRONTEND
	StalledCyclesBackend  HardwareCounter = unix.PERF_COUNT_HW_STALLED_CYCLES_BACKEND
	RefCPUCycles          HardwareCounter = unix.PERF_COUNT_HW_REF_CPU_CYCLES
)

var hardwareLabels = map[HardwareCounter]string{
	CPUCycles:             "cpu-cycles",
	Instructions:          "instructions",
	CacheReferences:       "cache-references",
	CacheMisses:           "cache-misses",
	BranchInstructions:    "branches",
	BranchMisses:          "branch-misses",
	BusCycles:             "bus-cycles",
	StalledCyclesFrontend: "stalled-cycles-frontend",
	StalledCyclesBackend:  "stalled-cycles-backend",
	RefCPUCycles:          "ref-cycles",
}

// Label returns the perf tool style name for the counter.
func (hwc HardwareCounter) Label() string {
	return hardwareLabels[hwc]
}

// Configure implements the Configurator interface.
func (hwc HardwareCounter) Configure(attr *Attr) error {
	attr.Label = hwc.Label()
	attr.Type = HardwareEvent
	attr.Config = uint64(hwc)
	return nil
}

// AllHardwareCounters returns a slice of all known hardware counters.
func AllHardwareCounters() []HardwareCounter {
	return []HardwareCounter{
		CPUCycles,
		Instructions,
		CacheReferences,
		CacheMisses,
		BranchInstructions,
		BranchMisses,
		BusCycles,
		StalledCyclesFrontend,
		StalledCyclesBackend,
		RefCPUCycles,
	}
}

// SoftwareCounter is a software performance counter.
type SoftwareCounter uint64

// Software performance counters.
const (
	CPUClock        SoftwareCounter = unix.PERF_COUNT_SW_CPU_CLOCK
	TaskClock       SoftwareCounter = unix.PERF_COUNT_SW_TASK_CLOCK
	PageFaults      SoftwareCounter = unix.PERF_COUNT_SW_PAGE_FAULTS
	ContextSwitches SoftwareCounter = unix.PERF_COUNT_SW_CONTEXT_SWITCHES
	CPUMigrations   SoftwareCounter = unix.PERF_COUNT_SW_CPU_MIGRATIONS
	MinorPageFaults SoftwareCounter = unix.PERF_COUNT_SW_PAGE_FAULTS_MIN
	MajorPageFaults SoftwareCounter = unix.PERF_COUNT_SW_PAGE_FAULTS_MAJ
	AlignmentFaults SoftwareCounter = unix.PERF_COUNT_SW_ALIGNMENT_FAULTS
	EmulationFaults SoftwareCounter = unix.PERF_COUNT_SW_EMULATION_FAULTS
	Dummy           SoftwareCounter = unix.PERF_COUNT_SW_DUMMY
)

var softwareLabels = map[SoftwareCounter]string{
	CPUClock:        "cpu-clock",
	TaskClock:       "task-clock",
	PageFaults:      "page-faults",
	ContextSwitches: "context-switches",
	CPUMigrations:   "cpu-migrations",
	MinorPageFaults: "minor-faults",
	MajorPageFaults: "major-faults",
	AlignmentFaults: "alignment-faults",
	EmulationFaults: "emulation-faults",
	Dummy:           "dummy",
}

// Label returns the perf tool style name for the counter.
func (swc SoftwareCounter) Label() string {
	return softwareLabels[swc]
}

// Configure implements the Configurator interface.
func (swc SoftwareCounter) Configure(attr *Attr) error {
	attr.Label = swc.Label()
	attr.Type = SoftwareEvent
	attr.Config = uint64(swc)
	return nil
}

// AllSoftwareCounters returns a slice of all known software counters.
func AllSoftwareCounters() []SoftwareCounter {
	return []SoftwareCounter{
		CPUClock,
		TaskClock,
		PageFaults,
		ContextSwitches,
		CPUMigrations,
		MinorPageFaults,
		MajorPageFaults,
		AlignmentFaults,
		EmulationFaults,
		Dummy,
	}
}

// Cache identifies a cache.
type Cache uint64

// Caches.
const (
	L1D  Cache = unix.PERF_COUNT_HW_CACHE_L1D
	L1I  Cache = unix.PERF_COUNT_HW_CACHE_L1I
	LL   Cache = unix.PERF_COUNT_HW_CACHE_LL
	DTLB Cache = unix.PERF_COUNT_HW_CACHE_DTLB
	ITLB Cache = unix.PERF_COUNT_HW_CACHE_ITLB
	BPU  Cache = unix.PERF_COUNT_HW_CACHE_BPU
	NODE Cache = unix.PERF_COUNT_HW_CACHE_NODE
)

// AllCaches returns a slice of all known cache types.
func AllCaches() []Cache {
	return []Cache{L1D, L1I, LL, DTLB, ITLB, BPU, NODE}
}

// CacheOp is a cache operation.
type CacheOp uint64

// Cache operations.
const (
	Read     CacheOp = unix.PERF_COUNT_HW_CACHE_OP_READ
	Write    CacheOp = unix.PERF_COUNT_HW_CACHE_OP_WRITE
	Prefetch CacheOp = unix.PERF_COUNT_HW_CACHE_OP_PREFETCH
)

// AllCacheOps returns a slice of all known cache operations.
func AllCacheOps() []CacheOp {
	return []CacheOp{Read, Write, Prefetch}
}

// CacheOpResult is the result of a cache operation.
type CacheOpResult uint64

// Cache operation results.
const (
	Access CacheOpResult = unix.PERF_COUNT_HW_CACHE_RESULT_ACCESS
	Miss   CacheOpResult = unix.PERF_COUNT_HW_CACHE_RESULT_MISS
)

// AllCacheOpResults returns a slice of all known cache operation results.
func AllCacheOpResults() []CacheOpResult {
	return []CacheOpResult{Access, Miss}
}

// A HardwareCacheCounter groups a cache, a cache operation, and an
// operation result.
type HardwareCacheCounter struct {
	Cache  Cache
	Op     CacheOp
	Result CacheOpResult
}

// Configure implements the Configurator interface.
func (hwcc HardwareCacheCounter) Configure(attr *Attr) error {
	attr.Type = HardwareCacheEvent
	attr.Config = uint64(hwcc.Cache) | uint64(hwcc.Op)<<8 | uint64(hwcc.Result)<<16
	return nil
}

// HardwareCacheCounters returns cache counters which measure the
// cartesian product of the specified caches, operations and results.
func HardwareCacheCounters(caches []Cache, ops []CacheOp, results []CacheOpResult) []HardwareCacheCounter {
	counters := make([]HardwareCacheCounter, 0, len(caches)*len(ops)*len(results))
	for _, cache := range caches {
		for _, op := range ops {
			for _, result := range results {
				c := HardwareCacheCounter{
					Cache:  cache,
					Op:     op,
					Result: result,
				}
				counters = append(counters, c)
			}
		}
	}
	return counters
}

// Tracepoint returns a Configurator for the specified tracepoint. It
// probes /sys/kernel/debug/tracing/events/<category>/<event>/id for
// the tracepoint config value.
func Tracepoint(category, event string) Configurator {
	return configuratorFunc(func(attr *Attr) error {
		f := filepath.Join("/sys/kernel/debug/tracing/events", category, event, "id")
		content, err := os.ReadFile(f)
		if err != nil {
			return err
		}
		nr := strings.TrimSpace(string(content)) // remove trailing newline
		config, err := strconv.ParseUint(nr, 10, 64)
		if err != nil {
			return err
		}
		attr.Label = category + ":" + event
		attr.Type = TracepointEvent
		attr.Config = config
		return nil
	})
}

// CountFormat configures the format of single or group measurements.
//
// TotalTimeEnabled and TotalTimeRunning configure the Event to include
// time enabled and time running measurements in the values. Usually,
// these two values are equal; they differ when the kernel multiplexes
// more events than the CPU has counter slots.
//
// If ID is set, a unique ID is assigned to the associated event.
//
// If Group is set, callers must use ReadGroupValue on the associated
// Event. Otherwise, they must use ReadValue.
type CountFormat struct {
	TotalTimeEnabled bool
	TotalTimeRunning bool
	ID               bool
	Group            bool
}

func (f CountFormat) readSize() int {
	size := 8 // value is always set
	if f.TotalTimeEnabled {
		size += 8
	}
	if f.TotalTimeRunning {
		size += 8
	}
	if f.ID {
		size += 8
	}
	return size
}

func (f CountFormat) groupReadHeaderSize() int {
	size := 8 // number of events is always set
	if f.TotalTimeEnabled {
		size += 8
	}
	if f.TotalTimeRunning {
		size += 8
	}
	return size
}

func (f CountFormat) groupReadCountSize() int {
	size := 8 // value is always set
	if f.ID {
		size += 8
	}
	return size
}

// marshal marshals the CountFormat into a uint64.
func (f CountFormat) marshal() uint64 {
	// Always keep this in sync with the type definition above.
	fields := []bool{
		f.TotalTimeEnabled,
		f.TotalTimeRunning,
		f.ID,
		f.Group,
	}
	return marshalBitwiseUint64(fields)
}

// RecordFormat configures information requested in overflow packets.
type RecordFormat struct {
	IP         bool
	Tid        bool
	Time       bool
	Addr       bool
	Value      bool
	Callchain  bool
	ID         bool
	CPU        bool
	Period     bool
	StreamID   bool
	Raw        bool
	Identifier bool
}

// marshal packs the RecordFormat into a sample_type word.
func (f RecordFormat) marshal() uint64 {
	// Always keep this in sync with the type definition above.
	fields := []bool{
		f.IP,
		f.Tid,
		f.Time,
		f.Addr,
		f.Value,
		f.Callchain,
		f.ID,
		f.CPU,
		f.Period,
		f.StreamID,
		f.Raw,
		false, // branch stack
		false, // user registers
		false, // user stack
		false, // weight
		false, // data source
		f.Identifier,
	}
	return marshalBitwiseUint64(fields)
}

// Options contains low level event options.
type Options struct {
	// Disabled disables the event by default. If the event is in a
	// group, but not a group leader, this option has no effect, since
	// the group leader controls when events are enabled or disabled.
	Disabled bool

	// Inherit specifies that this counter should count events of child
	// tasks as well as the specified task. This only applies to new
	// children, not to any existing children at the time the counter
	// is created.
	Inherit bool

	// Pinned specifies that the counter should always be on the CPU if
	// possible. This bit applies only to hardware counters, and only
	// to group leaders. If a pinned counter cannot be put onto the CPU,
	// then the counter goes into an error state, where reads return
	// EOF, until it is subsequently enabled or disabled.
	Pinned bool

	// Exclusive specifies that when this counter's group is on the CPU,
	// it should be the only group using the CPU's counters.
	Exclusive bool

	// ExcludeUser excludes events that happen in user space.
	ExcludeUser bool

	// ExcludeKernel excludes events that happen in kernel space.
	ExcludeKernel bool

	// ExcludeHypervisor excludes events that happen in the hypervisor.
	ExcludeHypervisor bool

	// ExcludeIdle disables counting while the CPU is idle.
	ExcludeIdle bool

	// Mmap enables generation of mmap records for every mmap(2) call
	// that has PROT_EXEC set.
	Mmap bool

	// Comm enables tracking of process command name, as modified by
	// exec(2), prctl(PR_SET_NAME), as well as writing to
	// /proc/self/comm.
	Comm bool

	// Freq configures the event to use sample frequency, rather than
	// sample period. See also Attr.Sample.
	Freq bool

	// InheritStat enables saving of event counts on context switch for
	// inherited tasks. Only meaningful if Inherit is also set.
	InheritStat bool

	// EnableOnExec configures the counter to be enabled automatically
	// after a call to exec(2).
	EnableOnExec bool

	// Task configures the event to include fork/exit notifications in
	// the ring buffer.
	Task bool

	// Watermark configures the ring buffer to issue an overflow
	// notification when the Wakeup boundary is crossed. If not set,
	// notifications happen after Wakeup samples. See also Attr.Wakeup.
	Watermark bool

	// MmapData is the counterpart to Mmap. It enables generation of
	// mmap records for mmap(2) calls that do not have PROT_EXEC set.
	MmapData bool

	// RecordIDAll configures Tid, Time, ID, StreamID and CPU fields to
	// be included in non-Sample records.
	RecordIDAll bool

	// ExcludeHost configures only events happening inside a guest
	// instance (one that has executed a KVM_RUN ioctl) to be measured.
	ExcludeHost bool

	// ExcludeGuest is the opposite of ExcludeHost: it configures only
	// events outside a guest instance to be measured.
	ExcludeGuest bool

	// Mmap2 configures mmap records to include inode data.
	Mmap2 bool

	// CommExec allows the distinction between process renaming via
	// exec(2) or via other means. See also Comm and
	// (*CommRecord).WasExec.
	CommExec bool

	// UseClockID allows selecting which internal linux clock to use
	// when generating timestamps via the ClockID field.
	UseClockID bool

	// ContextSwitch enables the generation of SwitchRecord records.
	ContextSwitch bool
}

func (opt Options) marshal() uint64 {
	fields := []bool{
		opt.Disabled,
		opt.Inherit,
		opt.Pinned,
		opt.Exclusive,
		opt.ExcludeUser,
		opt.ExcludeKernel,
		opt.ExcludeHypervisor,
		opt.ExcludeIdle,
		opt.Mmap,
		opt.Comm,
		opt.Freq,
		opt.InheritStat,
		opt.EnableOnExec,
		opt.Task,
		opt.Watermark,
		false, false, // 2 bits for the skid constraint
		opt.MmapData,
		opt.RecordIDAll,
		opt.ExcludeHost,
		opt.ExcludeGuest,
		false, // exclude kernel callchains
		false, // exclude user callchains
		opt.Mmap2,
		opt.CommExec,
		opt.UseClockID,
		opt.ContextSwitch,
	}
	return marshalBitwiseUint64(fields)
}

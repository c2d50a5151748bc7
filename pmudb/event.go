// Copyright 2026 The pmulib Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pmudb

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pmulib/pmu"
	"github.com/pmulib/pmu/metric"
)

// An Event is one entry of the event database: either a hardware event
// with the register fields needed to program it, or a derived metric
// with a formula over other events.
//
// The database files carry events as flat string-to-string objects;
// Attrs preserves every field of the original entry, and the accessors
// interpret the ones this package understands.
type Event struct {
	// Attrs holds the raw fields of the database entry.
	Attrs map[string]string

	// Topic is the name of the file the event was loaded from, for
	// example "pipeline" or "cache".
	Topic string

	// Formula is the parsed metric expression, set only for metric
	// events (see IsMetric).
	Formula *metric.Expr
}

// Name returns the event or metric name.
func (e *Event) Name() string {
	if n := e.Attrs["EventName"]; n != "" {
		return n
	}
	return e.Attrs["MetricName"]
}

// IsMetric reports whether the entry is a derived metric rather than a
// hardware event.
func (e *Event) IsMetric() bool {
	return e.Attrs["MetricExpr"] != ""
}

// BriefDescription returns the one line description of the event.
func (e *Event) BriefDescription() string {
	return e.Attrs["BriefDescription"]
}

// MetricGroup returns the metric group names, for metric events.
func (e *Event) MetricGroup() []string {
	g := e.Attrs["MetricGroup"]
	if g == "" {
		return nil
	}
	parts := strings.Split(g, ";")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// EventCode returns the event select code. Codes listed as a pair
// ("0x01,0x02") are combined, the second value becoming the extended
// select bits.
func (e *Event) EventCode() (uint64, error) {
	raw := e.Attrs["EventCode"]
	if raw == "" {
		return 0, nil
	}
	first, second, pair := strings.Cut(raw, ",")
	code, err := parseNumber(first)
	if err != nil {
		return 0, fmt.Errorf("event %s: bad EventCode: %w", e.Name(), err)
	}
	if pair {
		ext, err := parseNumber(second)
		if err != nil {
			return 0, fmt.Errorf("event %s: bad EventCode: %w", e.Name(), err)
		}
		code |= ext << 8
	}
	return code, nil
}

// UMask returns the unit mask.
func (e *Event) UMask() (uint64, error) {
	return e.numberField("UMask")
}

// CounterMask returns the counter mask (cmask) threshold.
func (e *Event) CounterMask() (uint64, error) {
	return e.numberField("CounterMask")
}

// EdgeDetect reports whether edge detection is enabled.
func (e *Event) EdgeDetect() (bool, error) {
	return e.boolField("EdgeDetect")
}

// Invert reports whether the counter mask comparison is inverted.
func (e *Event) Invert() (bool, error) {
	return e.boolField("Invert")
}

// AnyThread reports whether the event counts on all hardware threads
// of the core.
func (e *Event) AnyThread() (bool, error) {
	return e.boolField("AnyThread")
}

// MSRIndex returns the auxiliary MSR numbers the event needs, such as
// the offcore response registers. Entries may list zero, one or two.
func (e *Event) MSRIndex() ([]uint64, error) {
	raw := e.Attrs["MSRIndex"]
	if raw == "" || raw == "0" {
		return nil, nil
	}
	var msrs []uint64
	for _, part := range strings.Split(raw, ",") {
		n, err := parseNumber(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("event %s: bad MSRIndex: %w", e.Name(), err)
		}
		msrs = append(msrs, n)
	}
	return msrs, nil
}

// MSRValue returns the value for the event's auxiliary MSR.
func (e *Event) MSRValue() (uint64, error) {
	return e.numberField("MSRValue")
}

// PEBS reports whether the event supports precise sampling.
func (e *Event) PEBS() bool {
	n, err := e.numberField("PEBS")
	return err == nil && n > 0
}

func (e *Event) numberField(key string) (uint64, error) {
	raw := e.Attrs[key]
	if raw == "" {
		return 0, nil
	}
	n, err := parseNumber(raw)
	if err != nil {
		return 0, fmt.Errorf("event %s: bad %s: %w", e.Name(), key, err)
	}
	return n, nil
}

func (e *Event) boolField(key string) (bool, error) {
	n, err := e.numberField(key)
	return n != 0, err
}

// ToAttr translates the database entry into attributes for the raw PMU
// event type. Auxiliary MSR values (offcore response, load latency)
// are carried in Config1.
func (e *Event) ToAttr() (pmu.Attr, error) {
	if e.IsMetric() {
		return pmu.Attr{}, fmt.Errorf("pmudb: %s is a metric, not a hardware event", e.Name())
	}
	code, err := e.EventCode()
	if err != nil {
		return pmu.Attr{}, err
	}
	umask, err := e.UMask()
	if err != nil {
		return pmu.Attr{}, err
	}
	cmask, err := e.CounterMask()
	if err != nil {
		return pmu.Attr{}, err
	}
	edge, err := e.EdgeDetect()
	if err != nil {
		return pmu.Attr{}, err
	}
	inv, err := e.Invert()
	if err != nil {
		return pmu.Attr{}, err
	}
	any, err := e.AnyThread()
	if err != nil {
		return pmu.Attr{}, err
	}
	attr := pmu.Attr{
		Label:  e.Name(),
		Type:   pmu.RawEvent,
		Config: PackConfig(code, umask, cmask, edge, inv, any),
	}
	if msrval, err := e.MSRValue(); err != nil {
		return pmu.Attr{}, err
	} else if msrval != 0 {
		attr.Config1 = msrval
	}
	return attr, nil
}

// PackConfig packs the event select fields into a raw config word, in
// the layout of the x86 performance event select register:
//
//	bits  0-7   event select (low byte)
//	bits  8-15  unit mask
//	bit   18    edge detect
//	bit   21    any thread
//	bit   23    invert
//	bits 24-31  counter mask
//
// Extended event select bits, if any, arrive already shifted into bits
// 8+ of code (see EventCode) and land in the high config bits used by
// PMUs with wide event codes.
func PackConfig(code, umask, cmask uint64, edge, inv, anyThread bool) uint64 {
	config := code&0xFF | (code>>8)<<32&0xF00000000
	config |= (umask & 0xFF) << 8
	config |= (cmask & 0xFF) << 24
	if edge {
		config |= 1 << 18
	}
	if anyThread {
		config |= 1 << 21
	}
	if inv {
		config |= 1 << 23
	}
	return config
}

// parseNumber parses a database numeric field: hex with an 0x prefix,
// decimal otherwise. Some fields carry trailing annotations after the
// number; they are ignored.
func parseNumber(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty number")
	}
	base := 10
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s = s[2:]
		base = 16
	}
	// Cut anything after the numeric prefix ("0x0F (must combine
	// with umask ...)" style annotations).
	end := 0
	for end < len(s) && isBaseDigit(s[end], base) {
		end++
	}
	if end == 0 {
		return 0, fmt.Errorf("bad number %q", s)
	}
	return strconv.ParseUint(s[:end], base, 64)
}

func isBaseDigit(c byte, base int) bool {
	if '0' <= c && c <= '9' {
		return true
	}
	if base == 16 {
		return 'a' <= c && c <= 'f' || 'A' <= c && c <= 'F'
	}
	return false
}

// Copyright 2026 The pmulib Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command pmuexport exposes system-wide hardware counter rates as
// Prometheus metrics. Each configured event is opened per CPU; a
// collection cycle reads every counter and publishes both the raw
// count and the multiplexing-scaled estimate.
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/phuslu/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pmulib/pmu"
)

var logger = log.Logger{
	Level:  log.InfoLevel,
	Writer: &log.ConsoleWriter{Writer: os.Stderr, ColorOutput: false},
}

func main() {
	addr := flag.String("listen", ":9834", "metrics listen address")
	events := flag.String("events", "cpu-cycles,instructions,cache-misses,branch-misses",
		"comma separated events to export")
	flag.Parse()

	if !pmu.Supported() {
		logger.Fatal().Msg("perf events are not supported on this kernel")
	}

	coll, err := newCounterCollector(strings.Split(*events, ","))
	if err != nil {
		logger.Fatal().Err(err).Msg("opening counters")
	}
	defer coll.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		coll,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	logger.Info().Str("addr", *addr).Msg("serving metrics")
	if err := http.ListenAndServe(*addr, nil); err != nil {
		logger.Fatal().Err(err).Msg("http server failed")
	}
}

// counterCollector reads one event per (event, cpu) pair on every
// scrape.
type counterCollector struct {
	events []*openedEvent

	countDesc  *prometheus.Desc
	scaledDesc *prometheus.Desc
	ratioDesc  *prometheus.Desc
}

type openedEvent struct {
	label string
	cpu   int
	ev    *pmu.Event
}

func newCounterCollector(names []string) (*counterCollector, error) {
	c := &counterCollector{
		countDesc: prometheus.NewDesc(
			"pmu_event_count_total",
			"Raw hardware event count.",
			[]string{"event", "cpu"}, nil,
		),
		scaledDesc: prometheus.NewDesc(
			"pmu_event_scaled_total",
			"Hardware event count scaled for counter multiplexing.",
			[]string{"event", "cpu"}, nil,
		),
		ratioDesc: prometheus.NewDesc(
			"pmu_event_running_ratio",
			"Fraction of enabled time the counter was on hardware.",
			[]string{"event", "cpu"}, nil,
		),
	}
	ncpu := numCPUsOnline()
	for _, name := range names {
		name = strings.TrimSpace(name)
		cfg, err := builtinCounter(name)
		if err != nil {
			c.Close()
			return nil, err
		}
		for cpu := 0; cpu < ncpu; cpu++ {
			var attr pmu.Attr
			if err := cfg.Configure(&attr); err != nil {
				c.Close()
				return nil, err
			}
			attr.CountFormat = pmu.CountFormat{
				TotalTimeEnabled: true,
				TotalTimeRunning: true,
			}
			ev, err := pmu.Open(&attr, pmu.AllThreads, cpu, nil, 0)
			if err != nil {
				c.Close()
				return nil, err
			}
			if err := ev.Enable(); err != nil {
				ev.Close()
				c.Close()
				return nil, err
			}
			c.events = append(c.events, &openedEvent{
				label: name,
				cpu:   cpu,
				ev:    ev,
			})
		}
	}
	return c, nil
}

func builtinCounter(name string) (pmu.Configurator, error) {
	for _, hwc := range pmu.AllHardwareCounters() {
		if hwc.Label() == name {
			return hwc, nil
		}
	}
	for _, swc := range pmu.AllSoftwareCounters() {
		if swc.Label() == name {
			return swc, nil
		}
	}
	return nil, fmt.Errorf("unknown event %q", name)
}

func (c *counterCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.countDesc
	ch <- c.scaledDesc
	ch <- c.ratioDesc
}

func (c *counterCollector) Collect(ch chan<- prometheus.Metric) {
	for _, oe := range c.events {
		v, err := oe.ev.ReadValue()
		if err != nil {
			logger.Warn().Err(err).Str("event", oe.label).Int("cpu", oe.cpu).Msg("read failed")
			continue
		}
		cpu := strconv.Itoa(oe.cpu)
		ch <- prometheus.MustNewConstMetric(c.countDesc,
			prometheus.CounterValue, float64(v.Value), oe.label, cpu)
		ch <- prometheus.MustNewConstMetric(c.scaledDesc,
			prometheus.CounterValue, float64(v.Scaled()), oe.label, cpu)
		ratio := 1.0
		if v.TimeEnabled > 0 {
			ratio = float64(v.TimeRunning) / float64(v.TimeEnabled)
		}
		ch <- prometheus.MustNewConstMetric(c.ratioDesc,
			prometheus.GaugeValue, ratio, oe.label, cpu)
	}
}

func (c *counterCollector) Close() {
	for _, oe := range c.events {
		oe.ev.Close()
	}
}

func numCPUsOnline() int {
	data, err := os.ReadFile("/sys/devices/system/cpu/online")
	if err != nil {
		return 1
	}
	// "0-63" or "0,2-5" style ranges: the highest number is enough.
	max := 0
	for _, part := range strings.FieldsFunc(strings.TrimSpace(string(data)), func(r rune) bool {
		return r == ',' || r == '-'
	}) {
		if n, err := strconv.Atoi(part); err == nil && n > max {
			max = n
		}
	}
	return max + 1
}

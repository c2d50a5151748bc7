// Copyright 2026 The pmulib Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command pmustat inspects event databases and measures hardware
// counters and derived metrics.
package main

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/phuslu/log"
	"github.com/spf13/cobra"

	"github.com/pmulib/pmu"
	"github.com/pmulib/pmu/metric"
	"github.com/pmulib/pmu/pmudb"
)

var logger = log.Logger{
	Level:  log.InfoLevel,
	Writer: &log.ConsoleWriter{Writer: os.Stderr, ColorOutput: false},
}

var (
	dbDir    string
	events   []string
	pid      int
	cpu      int
	duration time.Duration
	period   uint64
	pages    int
)

func main() {
	root := &cobra.Command{
		Use:           "pmustat",
		Short:         "inspect and measure CPU performance counters",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&dbDir, "db", "", "event database directory")

	list := &cobra.Command{
		Use:   "list [pattern]",
		Short: "list events and metrics from the database",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runList,
	}

	stat := &cobra.Command{
		Use:   "stat -e event[,event...] -- command [args...]",
		Short: "run a command and count events over its execution",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runStat,
	}
	stat.Flags().StringSliceVarP(&events, "event", "e", []string{"cpu-cycles", "instructions"}, "events to count")
	stat.Flags().IntVar(&cpu, "cpu", pmu.AnyCPU, "restrict counting to one CPU")

	sample := &cobra.Command{
		Use:   "sample -e event [--pid pid | --cpu cpu]",
		Short: "stream sampled records from the ring buffer",
		RunE:  runSample,
	}
	sample.Flags().StringSliceVarP(&events, "event", "e", []string{"cpu-cycles"}, "event to sample")
	sample.Flags().IntVar(&pid, "pid", pmu.AllThreads, "process to sample")
	sample.Flags().IntVar(&cpu, "cpu", 0, "CPU to sample")
	sample.Flags().DurationVar(&duration, "duration", 5*time.Second, "how long to sample")
	sample.Flags().Uint64Var(&period, "period", 100000, "sample period")
	sample.Flags().IntVar(&pages, "pages", 128, "ring buffer data pages (power of two)")

	met := &cobra.Command{
		Use:   "metric -m name [--pid pid | --cpu cpu]",
		Short: "measure a derived metric from the database",
		RunE:  runMetric,
	}
	met.Flags().StringSliceVarP(&events, "metric", "m", nil, "metrics to compute")
	met.Flags().IntVar(&pid, "pid", pmu.AllThreads, "process to measure")
	met.Flags().IntVar(&cpu, "cpu", 0, "CPU to measure")
	met.Flags().DurationVar(&duration, "duration", 1*time.Second, "measurement window")

	root.AddCommand(list, stat, sample, met)
	if err := root.Execute(); err != nil {
		logger.Fatal().Err(err).Msg("pmustat failed")
	}
}

func loadDB() (*pmudb.DB, error) {
	if dbDir == "" {
		return nil, fmt.Errorf("no event database: set --db")
	}
	return pmudb.Load(dbDir)
}

func runList(cmd *cobra.Command, args []string) error {
	db, err := loadDB()
	if err != nil {
		return err
	}
	matches := db.Events
	if len(args) == 1 {
		matches, err = db.FindByName(args[0])
		if err != nil {
			return err
		}
	}
	for _, ev := range matches {
		kind := "event"
		if ev.IsMetric() {
			kind = "metric"
		}
		fmt.Printf("%-60s %-8s %s\n", ev.Name(), kind, ev.BriefDescription())
	}
	return nil
}

// resolve translates an event name into attributes: generalized
// counters by their perf tool label, anything else through the
// database.
func resolve(db *pmudb.DB, name string) (pmu.Configurator, error) {
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
	if db == nil {
		return nil, fmt.Errorf("unknown event %q (no database loaded)", name)
	}
	ev, ok := db.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("event %q not in database", name)
	}
	attr, err := ev.ToAttr()
	if err != nil {
		return nil, err
	}
	return &attr, nil
}

func runStat(cmd *cobra.Command, args []string) error {
	var db *pmudb.DB
	if dbDir != "" {
		var err error
		if db, err = loadDB(); err != nil {
			return err
		}
	}
	g := pmu.Group{
		CountFormat: pmu.CountFormat{
			TotalTimeEnabled: true,
			TotalTimeRunning: true,
		},
	}
	for _, name := range events {
		cfg, err := resolve(db, name)
		if err != nil {
			return err
		}
		g.Add(cfg)
	}
	child := exec.Command(args[0], args[1:]...)
	child.Stdout = os.Stdout
	child.Stderr = os.Stderr
	gv, err := g.Command(child, cpu)
	if err != nil {
		return err
	}
	labels := g.Labels()
	for i, v := range gv.Values {
		scaled := pmu.PerfEventValue{
			Value:       v.Value,
			TimeEnabled: gv.TimeEnabled,
			TimeRunning: gv.TimeRunning,
		}.Scaled()
		fmt.Printf("%20d  %s\n", scaled, labels[i])
	}
	fmt.Printf("%20s  %.6f seconds counted\n", "",
		time.Duration(gv.TimeRunning).Seconds())
	return nil
}

func runSample(cmd *cobra.Command, args []string) error {
	var db *pmudb.DB
	if dbDir != "" {
		var err error
		if db, err = loadDB(); err != nil {
			return err
		}
	}
	cfg, err := resolve(db, events[0])
	if err != nil {
		return err
	}
	var attr pmu.Attr
	if err := cfg.Configure(&attr); err != nil {
		return err
	}
	attr.Options.Disabled = true
	attr.ConfigureSampled()
	attr.SetSamplePeriod(period)
	attr.SetWakeupEvents(1)

	ev, err := pmu.Open(&attr, pid, cpu, nil, 0)
	if err != nil {
		return err
	}
	defer ev.Close()
	if err := ev.MapRing(pages); err != nil {
		return err
	}
	if err := ev.Enable(); err != nil {
		return err
	}

	rb := ev.Ring()
	evattr := ev.Attr()
	deadline := time.Now().Add(duration)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil
		}
		ready, err := ev.WaitRecords(remaining)
		if err != nil {
			return err
		}
		if !ready {
			continue
		}
		it := rb.Events()
		for it.Next() {
			rec, err := it.Record().Decode(&evattr)
			if err != nil {
				logger.Warn().Err(err).Msg("dropping undecodable record")
				continue
			}
			printRecord(rec)
		}
		if err := it.Err(); err != nil {
			return err
		}
		rb.AdvanceAll()
	}
}

func printRecord(rec pmu.Record) {
	switch r := rec.(type) {
	case *pmu.SampleRecord:
		fmt.Printf("sample cpu=%d pid=%d tid=%d ip=%#x period=%d time=%d\n",
			r.CPU, r.Pid, r.Tid, r.IP, r.Period, r.Time)
	case *pmu.LostRecord:
		fmt.Printf("lost %d records\n", r.Lost)
	case *pmu.ThrottleRecord:
		fmt.Printf("throttled at time=%d\n", r.Time)
	case *pmu.UnthrottleRecord:
		fmt.Printf("unthrottled at time=%d\n", r.Time)
	default:
		fmt.Printf("record type=%d\n", rec.Header().Type)
	}
}

func runMetric(cmd *cobra.Command, args []string) error {
	db, err := loadDB()
	if err != nil {
		return err
	}
	if len(events) == 0 {
		return fmt.Errorf("no metrics: set --metric")
	}
	for _, name := range events {
		if err := measureMetric(db, name); err != nil {
			return err
		}
	}
	return nil
}

func measureMetric(db *pmudb.DB, name string) error {
	entry, ok := db.Lookup(name)
	if !ok || !entry.IsMetric() {
		return fmt.Errorf("metric %q not in database", name)
	}
	deps := entry.Formula.Events()

	g := pmu.Group{
		CountFormat: pmu.CountFormat{
			TotalTimeEnabled: true,
			TotalTimeRunning: true,
		},
	}
	for _, dep := range deps {
		cfg, err := resolve(db, dep)
		if err != nil {
			return fmt.Errorf("metric %s: %w", name, err)
		}
		g.Add(cfg)
	}
	leader, err := g.Open(pid, cpu)
	if err != nil {
		return err
	}
	defer leader.Close()

	gv, err := leader.MeasureGroup(func() { time.Sleep(duration) })
	if err != nil {
		return err
	}

	values := make(map[string]float64, len(deps))
	for i, v := range gv.Values {
		values[deps[i]] = float64(pmu.PerfEventValue{
			Value:       v.Value,
			TimeEnabled: gv.TimeEnabled,
			TimeRunning: gv.TimeRunning,
		}.Scaled())
	}
	result, err := entry.Formula.Evaluate(func(n string) (float64, bool) {
		if v, ok := values[n]; ok {
			return v, true
		}
		return environmentFlag(n)
	})
	if err != nil {
		return err
	}
	fmt.Printf("%20.3f  %s\n", result, entry.Name())
	return nil
}

// environmentFlag resolves '#' pseudo events describing the machine.
func environmentFlag(name string) (float64, bool) {
	switch name {
	case metric.EnvSMTOn:
		data, err := os.ReadFile("/sys/devices/system/cpu/smt/active")
		if err != nil {
			return 0, true
		}
		if strings.TrimSpace(string(data)) == "1" {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

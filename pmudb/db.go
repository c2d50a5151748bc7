// Copyright 2026 The pmulib Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package pmudb loads CPU event databases: directories of JSON topic
// files describing the hardware events and derived metrics of specific
// CPU models, indexed by a mapfile keyed on the CPU identification
// string. The layout is the one used by the perf tool's pmu-events
// trees, so published vendor event lists load unmodified.
package pmudb

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/phuslu/log"

	"github.com/pmulib/pmu"
	"github.com/pmulib/pmu/metric"
)

// Logger emits warnings about database entries that fail to load.
// Malformed topic files and unparsable metric formulas are skipped, not
// fatal: one bad vendor file should not take down the rest of the
// database.
var Logger = log.Logger{Level: log.WarnLevel, Writer: &log.IOWriter{Writer: os.Stderr}}

// A DB is an event database for one CPU model.
type DB struct {
	// CPU is the identification string the database was selected by.
	CPU string

	// Events lists all entries, hardware events and metrics alike.
	Events []*Event

	byName map[string]*Event
}

// Load loads the database matching the running CPU from the specified
// directory tree.
func Load(dir string) (*DB, error) {
	cpu, err := pmu.CPUString()
	if err != nil {
		return nil, err
	}
	return LoadForCPU(dir, cpu)
}

// LoadForCPU loads the database for the specified CPU identification
// string from the directory tree rooted at dir. dir must contain a
// mapfile.csv with regex,version,path,type rows; the first row whose
// regex matches cpu selects the event list, a JSON file or directory
// of JSON topic files relative to dir.
func LoadForCPU(dir, cpu string) (*DB, error) {
	path, err := lookupMapfile(filepath.Join(dir, "mapfile.csv"), cpu)
	if err != nil {
		return nil, err
	}
	db := &DB{
		CPU:    cpu,
		byName: make(map[string]*Event),
	}
	if err := db.loadPath(filepath.Join(dir, filepath.FromSlash(path))); err != nil {
		return nil, err
	}
	return db, nil
}

// lookupMapfile returns the event list path for cpu.
func lookupMapfile(mapfile, cpu string) (string, error) {
	f, err := os.Open(mapfile)
	if err != nil {
		return "", err
	}
	defer f.Close()
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return "", fmt.Errorf("pmudb: reading %s: %w", mapfile, err)
	}
	for i, row := range rows {
		if len(row) < 4 || (i == 0 && row[0] == "Family-model") {
			continue
		}
		re, err := regexp.Compile("^" + row[0] + "$")
		if err != nil {
			Logger.Warn().Err(err).Str("pattern", row[0]).Msg("skipping bad mapfile pattern")
			continue
		}
		if re.MatchString(cpu) {
			return strings.TrimPrefix(row[2], "/"), nil
		}
	}
	return "", fmt.Errorf("pmudb: no events for CPU %q in %s", cpu, mapfile)
}

// loadPath loads a topic file, or every topic file of a directory.
func (db *DB) loadPath(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return db.loadTopicFile(path)
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		if err := db.loadTopicFile(filepath.Join(path, entry.Name())); err != nil {
			Logger.Warn().Err(err).Str("file", entry.Name()).Msg("skipping topic file")
		}
	}
	return nil
}

func (db *DB) loadTopicFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var raw []map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("pmudb: parsing %s: %w", path, err)
	}
	topic := strings.TrimSuffix(filepath.Base(path), ".json")
	for _, attrs := range raw {
		ev := &Event{Attrs: attrs, Topic: topic}
		if ev.Name() == "" {
			continue
		}
		if src := attrs["MetricExpr"]; src != "" {
			expr, err := metric.Parse(src)
			if err != nil {
				Logger.Warn().Err(err).Str("metric", ev.Name()).Msg("skipping unparsable metric")
				continue
			}
			ev.Formula = expr
		}
		db.Events = append(db.Events, ev)
		db.byName[strings.ToLower(ev.Name())] = ev
	}
	return nil
}

// Lookup returns the entry with the specified name, matched case
// insensitively.
func (db *DB) Lookup(name string) (*Event, bool) {
	ev, ok := db.byName[strings.ToLower(name)]
	return ev, ok
}

// FindByName returns the entries whose name matches the regular
// expression, in database order.
func (db *DB) FindByName(pattern string) ([]*Event, error) {
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return nil, err
	}
	var matches []*Event
	for _, ev := range db.Events {
		if re.MatchString(ev.Name()) {
			matches = append(matches, ev)
		}
	}
	return matches, nil
}

// Metrics returns the derived metric entries of the database.
func (db *DB) Metrics() []*Event {
	var metrics []*Event
	for _, ev := range db.Events {
		if ev.IsMetric() {
			metrics = append(metrics, ev)
		}
	}
	return metrics
}

// Copyright 2026 The pmulib Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pmu

import (
	"errors"
	"os/exec"
	"syscall"
)

// command runs cmd with counters attached from its first instruction.
// The child is started under ptrace, which stops it with SIGTRAP before
// it executes anything. setup then opens and enables counters against
// the stopped pid, and a detach lets the child run to completion.
func command(cmd *exec.Cmd, setup func() error) error {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = new(syscall.SysProcAttr)
	}
	cmd.SysProcAttr.Ptrace = true

	if err := cmd.Start(); err != nil {
		return err
	}

	state, err := cmd.Process.Wait()
	if err != nil {
		cmd.Process.Kill()
		return err
	}
	if state.Sys().(syscall.WaitStatus).TrapCause() == -1 {
		cmd.Process.Kill()
		cmd.Wait()
		return errors.New("pmu: child did not stop at exec")
	}

	setupErr := setup()

	// Detach and reap the child no matter how setup went: a stopped
	// tracee would outlive us otherwise.
	if err := syscall.PtraceDetach(cmd.Process.Pid); err != nil {
		cmd.Process.Kill()
		cmd.Wait()
		if setupErr != nil {
			return setupErr
		}
		return err
	}

	waitErr := cmd.Wait()
	if setupErr != nil {
		return setupErr
	}
	return waitErr
}

// Command runs cmd and measures the counter configured by a over the
// command's entire lifetime, from its first instruction to its exit.
// The measurement is otherwise like Measure.
func Command(a *Attr, cmd *exec.Cmd, cpu int, group *Event) (PerfEventValue, error) {
	var ev *Event
	err := command(cmd, func() (err error) {
		ev, err = Open(a, cmd.Process.Pid, cpu, group, 0)
		if err != nil {
			return err
		}
		return ev.Enable()
	})
	if err != nil {
		return PerfEventValue{}, err
	}
	defer ev.Close()

	return ev.ReadValue()
}

// Command runs cmd and measures the group over the command's entire
// lifetime, from its first instruction to its exit. The measurement is
// otherwise like MeasureGroup.
func (g *Group) Command(cmd *exec.Cmd, cpu int) (GroupValue, error) {
	var leader *Event
	err := command(cmd, func() (err error) {
		leader, err = g.Open(cmd.Process.Pid, cpu)
		if err != nil {
			return err
		}
		return leader.Enable()
	})
	if err != nil {
		return GroupValue{}, err
	}
	defer leader.Close()

	return leader.ReadGroupValue()
}

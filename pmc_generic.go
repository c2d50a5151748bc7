// Copyright 2026 The pmulib Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build !amd64

package pmu

// On architectures without an unprivileged counter read instruction the
// kernel never sets cap_user_rdpmc, so NewDirectReader fails before
// these can be reached.

func rdpmc(counter uint32) uint64 { return 0 }

func rdtsc() uint64 { return 0 }

// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package cpu

import (
	internalcpu "github.com/born-ml/tracejit/internal/backend/cpu"
	"github.com/born-ml/tracejit/internal/jit"
)

// Backend is the host kernel set that evaluates trace variables.
type Backend = internalcpu.CPUBackend

// New creates a CPU backend with default parallelism.
//
// Example:
//
//	b := cpu.New()
//	fmt.Println(b.Name(), b.Features())
func New() *Backend {
	return internalcpu.New()
}

// Current returns the backend of the active trace graph.
func Current() *Backend {
	return jit.CPU()
}

// Features returns the SIMD extensions reported by the host.
func Features() []string {
	return jit.CPU().Features()
}

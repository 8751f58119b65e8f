// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package cpu exposes the pure Go kernels that evaluate trace variables.
//
// # Overview
//
// Every trace variable is a flat vector. The kernels are element-wise
// with width-1 broadcasting, plus gather, scatter and sum reductions:
//   - Pure Go implementation (no CGO)
//   - Chunked parallel loops for wide operands
//   - SIMD feature detection via golang.org/x/sys/cpu
//
// # Basic Usage
//
//	import (
//	    "github.com/born-ml/tracejit/backend/cpu"
//	    "github.com/born-ml/tracejit/jit"
//	)
//
//	func main() {
//	    _ = jit.Init(jit.DefaultConfig(), nil)
//	    defer jit.Shutdown()
//	    fmt.Println(cpu.Current().Name())
//	}
//
// The configured backend name (llvm or cuda) selects how calls are
// recorded; evaluation always runs on these kernels.
package cpu

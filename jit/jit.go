// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package jit controls the process-wide trace graph.
//
// The graph holds every trace variable, the instance registries used by
// vectorized calls and the tasks deferred until evaluation. Programs
// initialize it once and shut it down when done:
//
//	cfg, err := jit.LoadConfig("tracejit.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := jit.Init(cfg, cfg.NewLogger(os.Stderr)); err != nil {
//	    log.Fatal(err)
//	}
//	defer jit.Shutdown()
//
// Without Init the graph starts lazily with DefaultConfig.
package jit

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/born-ml/tracejit/internal/ad"
	"github.com/born-ml/tracejit/internal/config"
	"github.com/born-ml/tracejit/internal/jit"
)

// Config is the runtime configuration.
type Config = config.Config

// Task is a finalizer that runs exactly once, either inline or on Eval.
type Task = jit.Task

// Errors reported by the graph and the instance registry.
var (
	ErrUninitialized   = jit.ErrUninitialized
	ErrUnknownInstance = jit.ErrUnknownInstance
)

// DefaultConfig returns the built-in configuration.
func DefaultConfig() Config {
	return config.Default()
}

// LoadConfig reads a YAML file on top of the defaults and applies
// TRACEJIT_* environment overrides. An empty path skips the file.
func LoadConfig(path string) (Config, error) {
	return config.Load(path)
}

// Init replaces the trace and AD graphs with fresh ones. A nil logger
// uses slog.Default.
func Init(cfg Config, logger *slog.Logger) error {
	if err := jit.Init(cfg, logger); err != nil {
		return err
	}
	ad.Reset()
	return nil
}

// Shutdown finalizes pending tasks and drops every remaining variable. It
// returns how many variables were still alive.
func Shutdown() (leaked int) {
	leaked = jit.Shutdown()
	ad.Reset()
	return leaked
}

// Eval finalizes every deferred task and returns how many ran.
func Eval() int {
	return jit.Eval()
}

// Pending returns the number of deferred tasks.
func Pending() int {
	return jit.Pending()
}

// Live returns the number of trace variables alive.
func Live() int {
	return jit.Live()
}

// NewTask creates a task running fn on finalization.
func NewTask(label string, fn func()) *Task {
	return jit.NewTask(label, fn)
}

// Schedule defers t until the next Eval.
func Schedule(t *Task) {
	jit.Schedule(t)
}

// Instances returns the registered ids of domain in ascending order.
func Instances(domain string) []uint32 {
	return jit.Instances(domain)
}

// Collectors returns the Prometheus collectors of the trace graph.
func Collectors() []prometheus.Collector {
	return jit.Collectors()
}

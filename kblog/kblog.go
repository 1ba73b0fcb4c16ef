// Copyright 2016 Keybase Inc. All rights reserved.
// Use of this source code is governed by a BSD
// license that can be found in the LICENSE file.

// Package kblog allows simple logging for the time that a function, or a set
// of functions, takes to execute.
//
// Logging is disabled by default. To turn it on, call kblog.Enable(). A
// typical use case would be:
//
// func search() {
//   kblog.Enable()
//   kblog.Start("search")
//
//   ... Some Work ...
//
//   kblog.Log("search")
// }
//
// Unlike the single-timer logger this is descended from, names are kept in
// a map so that concurrent callers (spec.md §5 permits concurrent Search
// calls on one Server) can each hold their own in-flight timer without
// clobbering one another's start time.
package kblog

import (
	"log"
	"sync"
	"time"
)

var (
	mu      sync.Mutex
	timers  = make(map[string]time.Time)
	enabled = false
)

// Enable turns logging on.
func Enable() {
	mu.Lock()
	defer mu.Unlock()
	enabled = true
}

// Disable turns logging off and clears any in-flight timers.
func Disable() {
	mu.Lock()
	defer mu.Unlock()
	enabled = false
	timers = make(map[string]time.Time)
}

// Enabled reports whether logging is currently on.
func Enabled() bool {
	mu.Lock()
	defer mu.Unlock()
	return enabled
}

// Start starts a timer for name. A second Start for the same name
// overwrites the first's start time.
func Start(name string) {
	mu.Lock()
	defer mu.Unlock()
	if !enabled {
		return
	}
	timers[name] = time.Now()
}

// AddTime adds duration to the elapsed time already recorded for name, as
// if that much additional time had passed.
func AddTime(name string, duration time.Duration) {
	mu.Lock()
	defer mu.Unlock()
	if !enabled {
		return
	}
	if start, found := timers[name]; found {
		timers[name] = start.Add(-duration)
	}
}

// Log logs and clears the timer for name, returning the elapsed duration.
// Returns 0 if logging is disabled or name has no in-flight timer.
func Log(name string) time.Duration {
	mu.Lock()
	start, found := timers[name]
	on := enabled
	if found {
		delete(timers, name)
	}
	mu.Unlock()

	if !on || !found {
		return 0
	}
	elapsed := time.Since(start)
	log.Printf("%s took %s", name, elapsed)
	return elapsed
}

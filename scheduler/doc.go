// SPDX-License-Identifier: EPL-2.0

// Package scheduler runs deferred work on an explicit clock.
//
// Delayed tasks wait in a min-heap keyed by wake time; per-tick tasks run on
// every Advance until they report completion. Every task carries an owner
// tag so all work for one owner can be cancelled at once. Tasks run on the
// goroutine calling Advance with no scheduler lock held, so they may
// schedule or cancel other tasks.
package scheduler

// SPDX-License-Identifier: EPL-2.0

// Package session plays sound keys on priority-arbitrated controller slots.
//
// A Manager combines a sample source, an allocator of controller IDs, a
// speaker factory and a scheduler. PlayAudio resolves the key, allocates an
// ID, creates and configures the speaker and starts playback; every later
// control call addresses the session by that ID.
//
// # Eviction and recovery
//
// When the pool is full a higher priority request evicts the lowest
// priority session. The evicted session is stopped and destroyed on the
// spot, since its ID moves to the new request. Persistent sessions leave a
// State snapshot behind, which RecoverSpeaker replays on a fresh ID.
//
// # Deferred work
//
// Fades, lifespans and queue-drain cleanup run on the scheduler. Each
// session gets a unique token; deferred tasks carry it and do nothing once
// the ID is held by someone else. Drive the clock with Tick or Run.
//
// # Errors
//
// Playback calls return InvalidID with an error wrapping one of
// ErrInvalidArgument, ErrNotFound, ErrResourceExhausted or ErrInvalidState.
// Control calls on an ID without a live session change nothing and return
// ErrNotFound. That error is informational: a caller stopping a sound that
// already ended can ignore it with errors.Is(err, session.ErrNotFound).
//
// # Events
//
// Subscribers are called after the manager lock is released, in the order
// the transitions happened.
package session

// SPDX-License-Identifier: EPL-2.0

// Package allocator arbitrates a fixed pool of byte-sized controller IDs.
//
// IDs run from 1 to the configured capacity (at most 255); 0 is never
// handed out. When the pool is full a request may evict the holder with the
// lowest priority, provided that priority is strictly lower than its own.
// Equal-priority holders are never displaced. Among several candidates with
// the same lowest priority the smallest ID is evicted.
//
// # Recoverable state
//
// Holders that allocate with Persistent set keep a state snapshot of type S.
// When such a holder is evicted, or released without forcing, the snapshot
// moves to a recoverable store keyed by the old ID. It remains readable
// through GetSpeakerState until it is force-released, deleted, or purged
// with CleanupEvictedSpeakers.
//
// The stop callback is part of the allocation request. It runs after the
// allocator lock is released and before Allocate returns, so the evicted
// holder is told to stop before the new holder sees its ID.
package allocator

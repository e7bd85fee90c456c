// SPDX-License-Identifier: EPL-2.0

package allocator

import "errors"

var (
	// ErrExhausted is returned when no slot is free and nothing is evictable.
	ErrExhausted = errors.New("no free controller id and no lower priority holder")

	ErrInvalidCapacity = errors.New("capacity must be between 1 and 255")
	ErrInvalidPriority = errors.New("invalid priority")
	ErrNotAllocated    = errors.New("controller id is not allocated")
	ErrNotPersistent   = errors.New("controller id is not persistent")
	ErrClaimed         = errors.New("allocator is owned by someone else")
)

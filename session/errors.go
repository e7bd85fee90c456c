// SPDX-License-Identifier: EPL-2.0

package session

import "errors"

var (
	// ErrInvalidArgument reports caller misuse: empty keys, out of range
	// volumes or distances, negative durations.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotFound is benign. The key has no decodable samples or the
	// controller ID has no live session; nothing was changed.
	ErrNotFound = errors.New("not found")

	ErrResourceExhausted = errors.New("no controller id available")

	// ErrInvalidState is returned when a stored snapshot cannot be
	// recovered.
	ErrInvalidState = errors.New("invalid session state")

	ErrClosed = errors.New("session manager is closed")
)

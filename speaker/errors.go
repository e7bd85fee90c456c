// SPDX-License-Identifier: EPL-2.0

package speaker

import "errors"

var (
	ErrInvalidID = errors.New("speaker needs a non-zero controller id")
	ErrClosed    = errors.New("speaker factory is closed")
)

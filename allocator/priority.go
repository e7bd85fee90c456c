// SPDX-License-Identifier: EPL-2.0

package allocator

import (
	"fmt"
	"strings"
)

// Priority orders allocation requests. Higher values win eviction.
type Priority int

const (
	Lowest Priority = iota
	Low
	Medium
	High
	Max
)

var priorityNames = [...]string{"lowest", "low", "medium", "high", "max"}

func (p Priority) Valid() bool { return p >= Lowest && p <= Max }

func (p Priority) String() string {
	if !p.Valid() {
		return fmt.Sprintf("priority(%d)", int(p))
	}
	return priorityNames[p]
}

// ParsePriority accepts the lowercase names produced by String.
func ParsePriority(s string) (Priority, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i, n := range priorityNames {
		if n == name {
			return Priority(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidPriority, s)
}

// SPDX-License-Identifier: EPL-2.0

package session

import (
	"fmt"

	"github.com/ik5/audslot/allocator"
)

// RecoverSpeaker replays the snapshot left under oldID on a newly allocated
// ID and returns it. Playback resumes at the stored offset unless reset is
// set. The snapshot is consumed on success and kept on failure.
func (m *Manager) RecoverSpeaker(oldID allocator.ID, reset bool) (allocator.ID, error) {
	m.mu.Lock()
	defer m.unlock()

	if m.closed {
		return allocator.InvalidID, ErrClosed
	}

	st, ok := m.alloc.Recoverable(oldID)
	if !ok {
		if _, live := m.sessions[oldID]; live {
			return allocator.InvalidID, fmt.Errorf("%w: controller %d is still playing", ErrInvalidState, oldID)
		}
		return allocator.InvalidID, fmt.Errorf("%w: no state for controller %d", ErrNotFound, oldID)
	}
	if !st.Persistent {
		return allocator.InvalidID, fmt.Errorf("%w: controller %d is not persistent", ErrInvalidState, oldID)
	}
	if err := st.Validate(); err != nil {
		m.logger.Warn("refusing to recover", "id", oldID, "error", err)
		return allocator.InvalidID, err
	}

	list := st.Clips()
	clips := make([][]float32, len(list))
	for i, c := range list {
		samples, ok := m.samples.Get(c.Key)
		if !ok {
			return allocator.InvalidID, fmt.Errorf("%w: audio key %q", ErrNotFound, c.Key)
		}
		clips[i] = samples
	}

	stored, _ := m.alloc.TakeState(oldID)

	if reset {
		st.Offset = 0
		st.Paused = false
	}

	s, err := m.startLocked(st, clips, st.Offset, false, true)
	if err != nil {
		m.alloc.Restore(oldID, stored)
		return allocator.InvalidID, err
	}

	m.logger.Info("session recovered", "old_id", oldID, "id", s.id, "reset", reset, "offset", st.Offset)
	return s.id, nil
}

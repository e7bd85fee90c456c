// SPDX-License-Identifier: EPL-2.0

package session

import (
	"time"

	"github.com/ik5/audslot/scheduler"
)

// fadeInLocked ramps s from silence up to its configured volume.
func (m *Manager) fadeInLocked(s *session, d time.Duration) {
	m.cancelFade(s)
	target := s.state.Volume
	if d <= 0 {
		s.spk.SetVolume(target)
		return
	}

	s.spk.SetVolume(0)
	m.startFade(s, d, 0, target, nil)
}

// fadeOutLocked captures the playback position, ramps s down to silence and
// then releases it.
func (m *Manager) fadeOutLocked(s *session, d time.Duration) {
	m.cancelFade(s)
	m.save(s)

	if d <= 0 {
		m.teardownLocked(s, false)
		return
	}

	m.startFade(s, d, s.spk.Volume(), 0, func(s *session) {
		m.teardownLocked(s, false)
	})
}

// startFade schedules a linear ramp from -> to over d, one step per tick.
// The last step lands exactly on to before done runs. Caller holds m.mu.
func (m *Manager) startFade(s *session, d time.Duration, from, to float32, done func(*session)) {
	id, token := s.id, s.token
	var elapsed time.Duration

	var task scheduler.TaskID
	tid := m.sched.Every(token, func(dt time.Duration) bool {
		m.mu.Lock()
		defer m.unlock()

		cur := m.current(id, token)
		if cur == nil || cur.fadeTask != task {
			return true
		}

		elapsed += dt
		if elapsed >= d {
			cur.spk.SetVolume(to)
			cur.fadeTask = 0
			if done != nil {
				done(cur)
			}
			return true
		}

		frac := float32(elapsed) / float32(d)
		cur.spk.SetVolume(from + (to-from)*frac)
		return false
	})
	task = tid
	s.fadeTask = tid
}

// cancelFade stops a running ramp and restores the configured volume.
func (m *Manager) cancelFade(s *session) {
	if s.fadeTask == 0 {
		return
	}
	m.sched.Cancel(s.fadeTask)
	s.fadeTask = 0
	s.spk.SetVolume(s.state.Volume)
}

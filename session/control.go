// SPDX-License-Identifier: EPL-2.0

package session

import (
	"fmt"
	"time"

	"github.com/ik5/audslot/allocator"
	"github.com/ik5/audslot/speaker"
)

// QueueStatus describes a session's play list.
type QueueStatus struct {
	Length  int
	Empty   bool
	Playing bool
	Paused  bool
	Offset  float64
	Clips   []Clip
}

// QueueAudio appends key to the play list of a live session. An unknown id
// yields ErrNotFound and changes nothing.
func (m *Manager) QueueAudio(id allocator.ID, key string, loop bool) error {
	if key == "" {
		return fmt.Errorf("%w: empty key", ErrInvalidArgument)
	}

	samples, ok := m.samples.Get(key)
	if !ok {
		return fmt.Errorf("%w: audio key %q", ErrNotFound, key)
	}

	m.mu.Lock()
	defer m.unlock()

	s, err := m.lookup(id)
	if err != nil {
		return err
	}

	idle := s.spk.IsQueueEmpty()
	s.spk.Queue(samples, loop)

	clip := Clip{Key: key, Loop: loop}
	if idle {
		s.state = s.state.withClips([]Clip{clip})
		s.state.Offset = 0
		m.emit(Event{Kind: EventStarted, ID: id, Key: key})
	} else {
		s.state.Queue = append(s.state.Queue, clip)
	}
	m.save(s)
	return nil
}

// StopAudio stops playback. Sessions with AutoCleanup are released. Like
// every control call, an id without a live session returns ErrNotFound,
// which callers may treat as a no-op.
func (m *Manager) StopAudio(id allocator.ID) error {
	m.mu.Lock()
	defer m.unlock()

	s, err := m.lookup(id)
	if err != nil {
		return err
	}

	if s.state.AutoCleanup {
		m.save(s)
		m.teardownLocked(s, false)
		return nil
	}

	m.cancelFade(s)
	m.save(s)
	s.spk.Stop()
	m.emit(Event{Kind: EventStopped, ID: id, Key: s.state.Key})
	return nil
}

// PauseAudio holds playback at its position. An unknown id yields the benign
// ErrNotFound.
func (m *Manager) PauseAudio(id allocator.ID) error {
	m.mu.Lock()
	defer m.unlock()

	s, err := m.lookup(id)
	if err != nil {
		return err
	}

	s.spk.Pause()
	m.save(s)
	m.emit(Event{Kind: EventPaused, ID: id, Key: s.state.Key})
	return nil
}

// ResumeAudio continues a paused session. An unknown id yields the benign
// ErrNotFound.
func (m *Manager) ResumeAudio(id allocator.ID) error {
	m.mu.Lock()
	defer m.unlock()

	s, err := m.lookup(id)
	if err != nil {
		return err
	}

	s.spk.Resume()
	m.save(s)
	m.emit(Event{Kind: EventResumed, ID: id, Key: s.state.Key})
	return nil
}

// SkipAudio drops count clips starting with the one playing. An unknown id
// yields the benign ErrNotFound.
func (m *Manager) SkipAudio(id allocator.ID, count int) error {
	if count < 1 {
		return fmt.Errorf("%w: skip count %d", ErrInvalidArgument, count)
	}

	m.mu.Lock()
	defer m.unlock()

	s, err := m.lookup(id)
	if err != nil {
		return err
	}

	m.snapshot(s)
	n := s.spk.Skip(count)
	clips := s.state.Clips()
	if n >= len(clips) {
		s.state.Offset = 0
	} else {
		s.state = s.state.withClips(clips[n:])
		s.state.Offset = 0
	}
	m.save(s)
	m.emit(Event{Kind: EventSkipped, ID: id, Key: s.state.Key, Count: n})
	return nil
}

// FadeInAudio ramps the volume from silence to the session's volume. A zero
// duration uses the manager default. An unknown id yields the benign
// ErrNotFound.
func (m *Manager) FadeInAudio(id allocator.ID, d time.Duration) error {
	if d < 0 {
		return fmt.Errorf("%w: negative fade %v", ErrInvalidArgument, d)
	}

	m.mu.Lock()
	defer m.unlock()

	s, err := m.lookup(id)
	if err != nil {
		return err
	}
	if d == 0 {
		d = m.fadeIn
	}
	m.fadeInLocked(s, d)
	return nil
}

// FadeOutAudio ramps the volume down, then stops the session and releases
// its ID. A zero duration uses the manager default. An unknown id yields
// the benign ErrNotFound.
func (m *Manager) FadeOutAudio(id allocator.ID, d time.Duration) error {
	if d < 0 {
		return fmt.Errorf("%w: negative fade %v", ErrInvalidArgument, d)
	}

	m.mu.Lock()
	defer m.unlock()

	s, err := m.lookup(id)
	if err != nil {
		return err
	}
	if d == 0 {
		d = m.fadeOut
	}
	m.fadeOutLocked(s, d)
	return nil
}

// SetSpeakerVolume sets the session volume and cancels a running fade. An
// unknown id yields the benign ErrNotFound.
func (m *Manager) SetSpeakerVolume(id allocator.ID, v float32) error {
	if !(v >= 0 && v <= 1) {
		return fmt.Errorf("%w: volume %v outside [0, 1]", ErrInvalidArgument, v)
	}

	m.mu.Lock()
	defer m.unlock()

	s, err := m.lookup(id)
	if err != nil {
		return err
	}

	m.cancelFade(s)
	s.state.Volume = v
	s.spk.SetVolume(v)
	m.save(s)
	return nil
}

// SetSpeakerPosition moves the speaker. An unknown id yields the benign
// ErrNotFound.
func (m *Manager) SetSpeakerPosition(id allocator.ID, pos speaker.Vec3) error {
	m.mu.Lock()
	defer m.unlock()

	s, err := m.lookup(id)
	if err != nil {
		return err
	}

	s.state.Position = pos
	s.spk.SetPosition(pos)
	m.save(s)
	return nil
}

// DestroySpeaker ends the session on id at once and releases the ID. With
// force set its stored state is removed permanently, which also applies to
// an ID that only holds a recoverable snapshot. An id with nothing to
// destroy yields the benign ErrNotFound.
func (m *Manager) DestroySpeaker(id allocator.ID, force bool) error {
	m.mu.Lock()
	defer m.unlock()

	s, ok := m.sessions[id]
	if !ok {
		if force && m.alloc.ReleaseId(id, true) == nil {
			return nil
		}
		return fmt.Errorf("%w: controller %d", ErrNotFound, id)
	}

	if !force {
		m.save(s)
	}
	m.teardownLocked(s, force)
	return nil
}

// ClearSpeakerQueue drops every queued clip behind the one playing. An
// unknown id yields the benign ErrNotFound.
func (m *Manager) ClearSpeakerQueue(id allocator.ID) error {
	m.mu.Lock()
	defer m.unlock()

	s, err := m.lookup(id)
	if err != nil {
		return err
	}

	st := m.snapshot(s)
	if len(st.Queue) == 0 || s.spk.QueueLength() <= 1 {
		s.state.Queue = nil
		m.save(s)
		return nil
	}

	samples, ok := m.samples.Get(st.Key)
	if !ok {
		return fmt.Errorf("%w: audio key %q", ErrNotFound, st.Key)
	}

	paused := s.spk.Paused()
	s.spk.Play(samples, st.Loop, st.Offset)
	if paused {
		s.spk.Pause()
	}
	s.state.Queue = nil
	m.save(s)
	return nil
}

// GetQueueStatus reports the play list of a live session.
func (m *Manager) GetQueueStatus(id allocator.ID) (QueueStatus, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return QueueStatus{}, false
	}

	st := m.snapshot(s)
	n := s.spk.QueueLength()
	clips := st.Clips()
	if n == 0 {
		clips = nil
	}
	return QueueStatus{
		Length:  n,
		Empty:   n == 0,
		Playing: s.spk.Playing(),
		Paused:  s.spk.Paused(),
		Offset:  s.spk.PlaybackOffset(),
		Clips:   clips,
	}, true
}

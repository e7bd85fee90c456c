// SPDX-License-Identifier: EPL-2.0

// Package speaker describes the playback device a controller slot drives.
//
// A Speaker plays, queues and mixes sample buffers for one controller ID.
// Host integrations implement Speaker and Factory over their own renderer.
// Speakers that can limit who hears them also implement ListenerFilterer;
// callers check for it once, right after Create.
//
// LocalFactory is a software implementation that keeps every speaker in
// memory and renders them into a float buffer. It is used by the CLI and
// by tests, and as the default when no host factory is wired in.
package speaker

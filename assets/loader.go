// SPDX-License-Identifier: EPL-2.0

package assets

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/ik5/audslot"
	"github.com/ik5/audslot/audio"
	"github.com/ik5/audslot/formats/aiff"
	"github.com/ik5/audslot/formats/mp3"
	"github.com/ik5/audslot/formats/vorbis"
	"github.com/ik5/audslot/formats/wav"
	"github.com/ik5/audslot/samplecache"
)

// DefaultSampleRate matches the rate the sample cache decodes at.
const DefaultSampleRate = 48000

// Registerer is the part of *samplecache.Cache a Loader fills.
type Registerer interface {
	Register(key string, provider samplecache.Provider) (bool, error)
}

type options struct {
	registry   *audio.Registry
	sampleRate int
	logger     *slog.Logger
}

type Option func(*options)

// WithRegistry replaces the built-in decoder set.
func WithRegistry(r *audio.Registry) Option {
	return func(o *options) { o.registry = r }
}

func WithSampleRate(rate int) Option {
	return func(o *options) { o.sampleRate = rate }
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Loader turns audio files of any registered format into canonical WAV
// streams for the sample cache.
type Loader struct {
	registry   *audio.Registry
	sampleRate int
	logger     *slog.Logger
}

// DefaultRegistry knows wav, mp3, ogg and aiff.
func DefaultRegistry() *audio.Registry {
	r := audio.NewRegistry()
	r.Register("wav", wav.Decoder{})
	r.Register("mp3", mp3.Decoder{})
	r.Register("ogg", vorbis.Decoder{})
	r.Register("aiff", aiff.Decoder{})
	r.Register("aif", aiff.Decoder{})
	return r
}

func NewLoader(opts ...Option) (*Loader, error) {
	o := options{sampleRate: DefaultSampleRate}
	for _, opt := range opts {
		opt(&o)
	}
	if o.sampleRate <= 0 {
		return nil, fmt.Errorf("%w: %d", audslot.ErrInvalidRate, o.sampleRate)
	}
	if o.registry == nil {
		o.registry = DefaultRegistry()
	}
	if o.logger == nil {
		o.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Loader{
		registry:   o.registry,
		sampleRate: o.sampleRate,
		logger:     o.logger.With("component", "assets"),
	}, nil
}

// Transcode decodes r with d and writes it to w as canonical mono 16-bit WAV.
func (l *Loader) Transcode(w io.Writer, r io.Reader, d audio.Decoder) error {
	src, err := d.Decode(r)
	if err != nil {
		return fmt.Errorf("decoding: %w", err)
	}

	pcm, err := audslot.Canonicalize(src, l.sampleRate)
	if err != nil {
		return err
	}
	return wav.WriteWAV16(w, l.sampleRate, pcm)
}

// Convert transcodes the file at in into a canonical WAV at out.
func (l *Loader) Convert(in, out string) error {
	d, err := l.registry.ForPath(in)
	if err != nil {
		return err
	}

	f, err := os.Open(in)
	if err != nil {
		return err
	}
	defer f.Close()

	var buf bytes.Buffer
	if err := l.Transcode(&buf, f, d); err != nil {
		return fmt.Errorf("%s: %w", in, err)
	}

	if err := os.WriteFile(out, buf.Bytes(), 0o644); err != nil {
		return err
	}
	l.logger.Debug("converted", "in", in, "out", out, "bytes", buf.Len())
	return nil
}

// Provider returns a cache provider that transcodes path each time it is
// called. The file is not touched until then.
func (l *Loader) Provider(path string) (samplecache.Provider, error) {
	d, err := l.registry.ForPath(path)
	if err != nil {
		return nil, err
	}

	return func() (io.Reader, error) {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()

		var buf bytes.Buffer
		if err := l.Transcode(&buf, f, d); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return &buf, nil
	}, nil
}

// Key derives the cache key for path relative to root: the slash separated
// relative path without its extension, e.g. "sfx/door_open".
func Key(root, path string) (string, error) {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return "", err
	}
	rel = strings.TrimSuffix(rel, filepath.Ext(rel))
	return filepath.ToSlash(rel), nil
}

// RegisterDir registers a provider for every file under dir whose format is
// known. Files in unknown formats are skipped. It returns the number of new
// registrations; keys already present keep their first provider.
func (l *Loader) RegisterDir(c Registerer, dir string) (int, error) {
	count := 0
	err := filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}

		provider, err := l.Provider(path)
		if errors.Is(err, audio.ErrUnknownFormat) {
			l.logger.Debug("skipping file", "path", path)
			return nil
		}
		if err != nil {
			return err
		}

		key, err := Key(dir, path)
		if err != nil {
			return err
		}

		added, err := c.Register(key, provider)
		if err != nil {
			return err
		}
		if added {
			count++
		} else {
			l.logger.Warn("duplicate asset key", "key", key, "path", path)
		}
		return nil
	})
	if err != nil {
		return count, fmt.Errorf("registering %s: %w", dir, err)
	}
	return count, nil
}

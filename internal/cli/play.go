// SPDX-License-Identifier: EPL-2.0

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"

	"github.com/ik5/audslot"
	"github.com/ik5/audslot/allocator"
	"github.com/ik5/audslot/assets"
	"github.com/ik5/audslot/formats/wav"
	"github.com/ik5/audslot/metrics"
	"github.com/ik5/audslot/samplecache"
	"github.com/ik5/audslot/session"
	"github.com/ik5/audslot/speaker"
)

var errNoFactory = errors.New("use_builtin_factory is disabled and no other speaker factory is available")

type playFlags struct {
	assetsDir string
	out       string
	duration  time.Duration
	priority  string
	volume    float32
	at        []float32
	loop      bool
	queue     bool
	global    bool
	fade      bool
	realtime  bool
	metrics   bool
}

func playCommand(e *env) *cobra.Command {
	f := &playFlags{}

	cmd := &cobra.Command{
		Use:   "play <key>...",
		Short: "Play cached assets through the built-in speaker factory",
		Long: `Registers every audio file under --assets with the sample cache, starts
one session per key and ticks the manager until all sessions end or
--duration elapses. The mix heard by the default listener can be written
to a WAV file with --out.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlay(cmd.Context(), e, f, args, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&f.assetsDir, "assets", "a", "sounds", "Directory holding the audio assets")
	cmd.Flags().StringVarP(&f.out, "out", "o", "", "Write the rendered mix to this WAV file")
	cmd.Flags().DurationVarP(&f.duration, "duration", "d", 10*time.Second, "Stop after this much playback time")
	cmd.Flags().StringVarP(&f.priority, "priority", "p", allocator.Medium.String(), "Session priority: lowest, low, medium, high or max")
	cmd.Flags().Float32Var(&f.volume, "volume", 1, "Session volume")
	cmd.Flags().Float32SliceVar(&f.at, "at", []float32{0, 0, 0}, "Speaker position x,y,z")
	cmd.Flags().BoolVar(&f.loop, "loop", false, "Loop every clip")
	cmd.Flags().BoolVar(&f.queue, "queue", false, "Play the keys back to back on one speaker")
	cmd.Flags().BoolVar(&f.global, "global", false, "Play without distance attenuation")
	cmd.Flags().BoolVar(&f.fade, "fade", false, "Fade every session in using default_fade_in")
	cmd.Flags().BoolVar(&f.realtime, "realtime", false, "Tick on the wall clock instead of as fast as possible")
	cmd.Flags().BoolVar(&f.metrics, "metrics", false, "Print Prometheus metrics when done")

	return cmd
}

// recorder keeps what the default listener hears.
type recorder struct {
	*speaker.LocalFactory

	mu  sync.Mutex
	mix []float32
}

func (r *recorder) Tick(dt time.Duration) {
	n := int(dt.Seconds() * float64(r.SampleRate()))
	if n <= 0 {
		return
	}
	buf := r.Mix(make([]float32, n))

	r.mu.Lock()
	r.mix = append(r.mix, buf...)
	r.mu.Unlock()
}

func (r *recorder) samples() []float32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mix
}

func (f *playFlags) position() (speaker.Vec3, error) {
	if len(f.at) != 3 {
		return speaker.Vec3{}, fmt.Errorf("--at needs three coordinates, got %d", len(f.at))
	}
	return speaker.Vec3{X: f.at[0], Y: f.at[1], Z: f.at[2]}, nil
}

func runPlay(ctx context.Context, e *env, f *playFlags, keys []string, out io.Writer) error {
	if !e.settings.UseBuiltinFactory {
		return errNoFactory
	}
	if ctx == nil {
		ctx = context.Background()
	}

	priority, err := allocator.ParsePriority(f.priority)
	if err != nil {
		return err
	}
	pos, err := f.position()
	if err != nil {
		return err
	}

	cache, err := samplecache.New(e.settings.CacheSize,
		samplecache.WithSampleRate(e.settings.SampleRate),
		samplecache.WithLogger(e.logger),
	)
	if err != nil {
		return err
	}

	loader, err := assets.NewLoader(
		assets.WithSampleRate(e.settings.SampleRate),
		assets.WithLogger(e.logger),
	)
	if err != nil {
		return err
	}
	n, err := loader.RegisterDir(cache, f.assetsDir)
	if err != nil {
		return err
	}
	e.logger.Info("assets registered", "dir", f.assetsDir, "count", n)

	rec := &recorder{LocalFactory: speaker.NewLocalFactory(
		speaker.WithSampleRate(e.settings.SampleRate),
		speaker.WithLogger(e.logger),
	)}

	m, err := session.New(cache, rec,
		session.WithCapacity(e.settings.Capacity),
		session.WithDefaultFades(e.settings.FadeIn(), e.settings.FadeOut()),
		session.WithTickInterval(e.settings.TickInterval),
		session.WithLogger(e.logger),
	)
	if err != nil {
		return err
	}
	defer m.Close()

	registry := prometheus.NewRegistry()
	collector, err := metrics.New(registry, m, cache)
	if err != nil {
		return err
	}
	defer m.Subscribe(collector.Observe)()
	defer m.Subscribe(func(ev session.Event) {
		e.logger.Info("session event", "kind", ev.Kind.String(), "id", ev.ID, "key", ev.Key, "evicted", ev.Evicted)
	})()

	if err := start(m, f, keys, priority, pos, out); err != nil {
		return err
	}

	if f.realtime {
		err = drive(ctx, m, f.duration)
	} else {
		simulate(ctx, m, f.duration, e.settings.TickInterval)
	}
	if err != nil {
		return err
	}

	if f.out != "" {
		if err := writeMix(f.out, e.settings.SampleRate, rec.samples()); err != nil {
			return err
		}
		fmt.Fprintf(out, "wrote %s\n", f.out)
	}

	if f.metrics {
		return printMetrics(out, registry)
	}
	return nil
}

func start(m *session.Manager, f *playFlags, keys []string, priority allocator.Priority, pos speaker.Vec3, out io.Writer) error {
	play := func(key string) (allocator.ID, error) {
		if f.global {
			g := session.DefaultGlobalParams()
			g.Volume = f.volume
			g.Loop = f.loop
			g.Priority = priority
			g.AutoCleanup = !f.loop
			return m.PlayGlobalAudio(key, g)
		}
		p := session.DefaultParams()
		p.Position = pos
		p.Volume = f.volume
		p.Loop = f.loop
		p.Priority = priority
		p.AutoCleanup = !f.loop
		return m.PlayAudio(key, p)
	}

	if f.queue {
		id, err := play(keys[0])
		if err != nil {
			return fmt.Errorf("%s: %w", keys[0], err)
		}
		for _, key := range keys[1:] {
			if err := m.QueueAudio(id, key, f.loop); err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
		}
		if f.fade {
			if err := m.FadeInAudio(id, 0); err != nil {
				return err
			}
		}
		fmt.Fprintf(out, "%d: %v\n", id, keys)
		return nil
	}

	for _, key := range keys {
		id, err := play(key)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		if f.fade {
			if err := m.FadeInAudio(id, 0); err != nil {
				return err
			}
		}
		fmt.Fprintf(out, "%d: %s\n", id, key)
	}
	return nil
}

// simulate ticks as fast as possible until every session ended or limit of
// playback time has been rendered.
func simulate(ctx context.Context, m *session.Manager, limit, step time.Duration) {
	for elapsed := time.Duration(0); elapsed < limit; elapsed += step {
		if ctx.Err() != nil || len(m.ActiveIDs()) == 0 {
			return
		}
		m.Tick(step)
	}
}

// drive runs the manager on the wall clock until every session ended, limit
// elapsed or ctx is done.
func drive(ctx context.Context, m *session.Manager, limit time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, limit)
	defer cancel()

	unsubscribe := m.Subscribe(func(ev session.Event) {
		if ev.Kind == session.EventStopped && len(m.ActiveIDs()) == 0 {
			cancel()
		}
	})
	defer unsubscribe()

	if len(m.ActiveIDs()) == 0 {
		return nil
	}

	err := m.Run(ctx)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

func writeMix(path string, rate int, mix []float32) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := wav.WriteWAV16(f, rate, audslot.ToPCM16(mix)); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func printMetrics(w io.Writer, registry *prometheus.Registry) error {
	families, err := registry.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}

// SPDX-License-Identifier: MIT
package audio

import (
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"visualizer/internal/decode"
	applog "visualizer/internal/log"
	"visualizer/internal/stream"
)

// Source is where analysis windows come from. Variants differ only in how
// their sample stream is filled: a capture callback for Microphone, a
// playback callback over decoded audio for File and Playlist.
type Source interface {
	// Get copies the next window into w. It returns false when not enough
	// audio has arrived yet, which is normal and frequent.
	Get(w *stream.Window) bool
	// Available is the number of windows Get can return without waiting.
	Available() int
	// Channels is 1 for mono audio and 2 for stereo.
	Channels() int
	// Load replaces the audio with the file at path.
	Load(path string) error
	// Release stops the driver callback and frees the driver stream. It is
	// safe to call more than once.
	Release() error
}

var (
	_ Source = (*Microphone)(nil)
	_ Source = (*File)(nil)
	_ Source = (*Playlist)(nil)
)

// Microphone captures live input into a ring buffer.
type Microphone struct {
	ring *stream.Ring
	drv  handle
	log  *applog.Logger
}

// NewMicrophone opens and starts a capture stream. Stereo capture falls back
// to mono when the device refuses two channels.
func NewMicrophone(o Options, logger *applog.Logger) (*Microphone, error) {
	if logger == nil {
		logger = applog.Discard()
	}
	m := &Microphone{log: logger.With("microphone")}

	// The ring is assigned before Start, so the callback never sees nil.
	callback := func(in []float32) { m.ring.WriteInterleaved(in) }

	channels := o.InputChannels
	if channels != 1 {
		channels = 2
	}
	drv, err := openInputStream(o, channels, callback)
	if err != nil && channels == 2 {
		m.log.Warnf("Stereo capture unavailable (%v), falling back to mono", err)
		channels = 1
		drv, err = openInputStream(o, channels, callback)
	}
	if err != nil {
		return nil, fmt.Errorf("opening input stream: %w", err)
	}

	ring, err := stream.NewRing(channels, int(o.RingSeconds*o.SampleRate), o.Framing)
	if err != nil {
		drv.Close()
		return nil, err
	}
	m.ring = ring
	m.drv.drv = drv

	if err := drv.Start(); err != nil {
		drv.Close()
		return nil, fmt.Errorf("starting input stream: %w", err)
	}
	m.log.Infof("Opened %s microphone at %.0f Hz", channelName(channels), o.SampleRate)
	return m, nil
}

func (m *Microphone) Get(w *stream.Window) bool { return m.ring.ReadWindow(w) }

func (m *Microphone) Available() int { return m.ring.Available() }

func (m *Microphone) Channels() int { return m.ring.Channels() }

// Load always fails: a live input cannot be replaced by a file.
func (m *Microphone) Load(string) error { return ErrUnsupported }

// Overruns reports captured buffers the ring had no room for.
func (m *Microphone) Overruns() (writes, samples uint64) { return m.ring.Overruns() }

func (m *Microphone) Release() error { return m.drv.release() }

// File plays decoded audio through the output device and analyses what has
// been played. Without an output device playback is paced by a clock.
type File struct {
	opts     Options
	registry *decode.Registry
	log      *applog.Logger

	track atomic.Pointer[stream.Track]
	path  atomic.Pointer[string]
	drv   handle
}

// NewFile decodes path and starts playing it.
func NewFile(path string, o Options, registry *decode.Registry, logger *applog.Logger) (*File, error) {
	f, err := newFile(o, registry, logger)
	if err != nil {
		return nil, err
	}
	if err := f.Load(path); err != nil {
		f.Release()
		return nil, err
	}
	return f, nil
}

// newFile starts an output stream with nothing loaded; it plays silence
// until Load is called.
func newFile(o Options, registry *decode.Registry, logger *applog.Logger) (*File, error) {
	if err := o.Framing.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = applog.Discard()
	}
	if registry == nil {
		registry = decode.DefaultRegistry()
	}
	f := &File{opts: o, registry: registry, log: logger.With("file")}

	drv, err := openOutputStream(o, f.fill)
	if err != nil {
		f.log.Warnf("No output device (%v), playing silently", err)
		drv = newClock(o, f.fill)
	}
	f.drv.drv = drv
	if err := drv.Start(); err != nil {
		drv.Close()
		return nil, fmt.Errorf("starting output stream: %w", err)
	}
	return f, nil
}

// fill is the output callback.
func (f *File) fill(out []float32) {
	t := f.track.Load()
	if t == nil {
		clear(out)
		return
	}
	t.Fill(out)
}

// Load decodes path and swaps it in from the start. A file that cannot be
// decoded is replaced by silence and reported as a warning; only a released
// source returns an error.
func (f *File) Load(path string) error {
	if f.drv.released.Load() {
		return ErrReleased
	}
	f.track.Store(f.decode(path))
	f.path.Store(&path)
	return nil
}

func (f *File) decode(path string) *stream.Track {
	a, err := f.registry.Load(path, int(f.opts.SampleRate))
	if err != nil {
		f.log.Warnf("Cannot play %s, substituting %.1fs of silence: %v", path, f.opts.SilenceSeconds, err)
		return f.silence()
	}

	loud := stream.Normalise(a.Channels, f.opts.TargetLevel, f.opts.MinThreshold)
	switch loud.Action() {
	case "silent":
		f.log.Warnf("Silent audio detected in %s", path)
	case "unchanged":
		f.log.Infof("Audio level OK: %.3f", loud.Peak)
	default:
		f.log.Infof("Audio %s: %.3f -> %.3f", loud.Action(), loud.Peak, f.opts.TargetLevel)
	}

	t, err := stream.NewTrack(a.Channels, f.opts.Framing)
	if err != nil {
		f.log.Warnf("Cannot play %s: %v", path, err)
		return f.silence()
	}
	f.log.Infof("Loaded %s (%s, %s)", path, channelName(t.Channels()), a.Duration())
	return t
}

// silence is the stand-in for an undecodable file: already played to the
// end, so it is complete at once.
func (f *File) silence() *stream.Track {
	s := decode.Silence(f.opts.SilenceSeconds, int(f.opts.SampleRate))
	t, _ := stream.NewTrack(s.Channels, f.opts.Framing)
	t.Advance(t.Length())
	return t
}

func (f *File) Get(w *stream.Window) bool {
	t := f.track.Load()
	if t == nil {
		return false
	}
	return t.ReadWindow(w)
}

func (f *File) Available() int {
	t := f.track.Load()
	if t == nil {
		return 0
	}
	return t.Available()
}

func (f *File) Channels() int {
	t := f.track.Load()
	if t == nil {
		return 2
	}
	return t.Channels()
}

// Complete reports whether the loaded file has been played to the end. An
// empty source is complete.
func (f *File) Complete() bool {
	t := f.track.Load()
	return t == nil || t.Complete()
}

// Path is the most recently loaded file.
func (f *File) Path() string {
	if p := f.path.Load(); p != nil {
		return *p
	}
	return ""
}

func (f *File) Release() error {
	return f.drv.release()
}

// Playlist plays an ordered list of files through one output stream.
type Playlist struct {
	*File

	mu    sync.Mutex
	paths []string
	index int
}

// NewPlaylist starts playing the first of paths. An empty playlist plays
// silence until Load is called.
func NewPlaylist(paths []string, o Options, registry *decode.Registry, logger *applog.Logger) (*Playlist, error) {
	f, err := newFile(o, registry, logger)
	if err != nil {
		return nil, err
	}
	p := &Playlist{File: f, paths: slices.Clone(paths), index: -1}
	if len(paths) > 0 {
		if err := p.play(0); err != nil {
			f.Release()
			return nil, err
		}
	}
	return p, nil
}

// Load plays path, appending it to the list when it is not already there.
func (p *Playlist) Load(path string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	i := slices.Index(p.paths, path)
	if i < 0 {
		p.paths = append(p.paths, path)
		i = len(p.paths) - 1
	}
	return p.play(i)
}

// Next plays the following entry. It returns false at the end of the list.
func (p *Playlist) Next() (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.index >= len(p.paths)-1 {
		return false, nil
	}
	return true, p.play(p.index + 1)
}

// Previous plays the preceding entry. It returns false at the start of the
// list.
func (p *Playlist) Previous() (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.index <= 0 {
		return false, nil
	}
	return true, p.play(p.index - 1)
}

// Current returns the index of the playing entry, -1 before the first load.
func (p *Playlist) Current() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.index
}

// Paths returns a copy of the list.
func (p *Playlist) Paths() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.paths)
}

func (p *Playlist) play(i int) error {
	if err := p.File.Load(p.paths[i]); err != nil {
		return err
	}
	p.index = i
	return nil
}

func channelName(channels int) string {
	if channels == 1 {
		return "mono"
	}
	return "stereo"
}

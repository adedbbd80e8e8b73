// Package audio plays the overlay's sound cues.
package audio

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/speaker"
	"github.com/gopxl/beep/v2/wav"
)

// DefaultSampleRate is the default sample rate for audio playback.
const DefaultSampleRate = beep.SampleRate(44100)

// ErrNotInitialized is returned when playing before Init.
var ErrNotInitialized = errors.New("audio not initialized")

// Manager owns the speaker and mixes cues.
type Manager struct {
	mu sync.RWMutex

	initialized bool
	sampleRate  beep.SampleRate

	// Volume settings (0.0 to 1.0)
	masterVolume float64
	cueVolume    float64

	// custom dismiss cue, decoded once
	cue *beep.Buffer

	mixer   *beep.Mixer
	playing int
}

// New creates a new audio manager.
func New() *Manager {
	return &Manager{
		masterVolume: 1.0,
		cueVolume:    0.6,
		mixer:        &beep.Mixer{},
	}
}

// Init initializes the speaker. Calling it twice is a no-op.
func (m *Manager) Init() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.initialized {
		return nil
	}

	m.sampleRate = DefaultSampleRate
	err := speaker.Init(m.sampleRate, m.sampleRate.N(time.Second/30))
	if err != nil {
		return fmt.Errorf("init speaker: %w", err)
	}

	speaker.Play(m.mixer)

	m.initialized = true
	return nil
}

// Close shuts down the audio system. The speaker is stopped after m.mu is
// released, since a draining cue may hold the speaker lock while it waits
// for m.mu in cueDone.
func (m *Manager) Close() {
	m.mu.Lock()
	if !m.initialized {
		m.mu.Unlock()
		return
	}
	m.initialized = false
	m.mu.Unlock()

	speaker.Clear()
	speaker.Close()
}

// SetMasterVolume sets the master volume (0.0 to 1.0).
func (m *Manager) SetMasterVolume(vol float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.masterVolume = clamp(vol, 0, 1)
}

// SetCueVolume sets the cue volume (0.0 to 1.0).
func (m *Manager) SetCueVolume(vol float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cueVolume = clamp(vol, 0, 1)
}

// GetMasterVolume returns the master volume.
func (m *Manager) GetMasterVolume() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.masterVolume
}

// GetCueVolume returns the cue volume.
func (m *Manager) GetCueVolume() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cueVolume
}

// Playing returns how many cues are still sounding.
func (m *Manager) Playing() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.playing
}

// LoadCue decodes a WAV file to replace the synthesised dismiss sweep.
func (m *Manager) LoadCue(data []byte) error {
	streamer, format, err := wav.Decode(io.NopCloser(bytes.NewReader(data)))
	if err != nil {
		return fmt.Errorf("decode wav: %w", err)
	}
	defer streamer.Close()

	buf := beep.NewBuffer(beep.Format{SampleRate: DefaultSampleRate, NumChannels: 2, Precision: 2})
	var src beep.Streamer = streamer
	if format.SampleRate != DefaultSampleRate {
		src = beep.Resample(4, format.SampleRate, DefaultSampleRate, streamer)
	}
	buf.Append(src)

	m.mu.Lock()
	m.cue = buf
	m.mu.Unlock()
	return nil
}

// PlayDismiss plays the dismiss cue: the loaded WAV if any, otherwise a
// falling sweep lasting d.
func (m *Manager) PlayDismiss(d time.Duration) error {
	m.mu.Lock()
	if !m.initialized {
		m.mu.Unlock()
		return ErrNotInitialized
	}

	var src beep.Streamer
	if m.cue != nil {
		src = m.cue.Streamer(0, m.cue.Len())
	} else {
		src = NewSweep(m.sampleRate, 880, 440, d)
	}

	vol := m.masterVolume * m.cueVolume
	m.playing++
	m.mu.Unlock()

	// cueDone takes m.mu from the speaker goroutine, so m.mu must not be
	// held while the speaker lock is.
	speaker.Lock()
	m.mixer.Add(beep.Seq(&effects.Volume{
		Streamer: src,
		Base:     2,
		Volume:   volumeToDb(vol),
		Silent:   vol <= 0,
	}, beep.Callback(m.cueDone)))
	speaker.Unlock()

	return nil
}

// cueDone runs on the speaker goroutine once a cue has drained.
func (m *Manager) cueDone() {
	m.mu.Lock()
	m.playing--
	m.mu.Unlock()
}

// Sweep is a sine tone gliding from one frequency to another under a linear
// decay envelope.
type Sweep struct {
	sr         beep.SampleRate
	from, to   float64
	total, pos int
	phase      float64
}

// NewSweep creates a sweep of duration d.
func NewSweep(sr beep.SampleRate, from, to float64, d time.Duration) *Sweep {
	return &Sweep{sr: sr, from: from, to: to, total: sr.N(d)}
}

// Stream implements beep.Streamer.
func (s *Sweep) Stream(samples [][2]float64) (n int, ok bool) {
	if s.pos >= s.total {
		return 0, false
	}
	for i := range samples {
		if s.pos >= s.total {
			return i, true
		}
		t := float64(s.pos) / float64(s.total)
		freq := s.from + (s.to-s.from)*t
		s.phase += 2 * math.Pi * freq / float64(s.sr)
		v := math.Sin(s.phase) * (1 - t)
		samples[i] = [2]float64{v, v}
		s.pos++
	}
	return len(samples), true
}

// Err implements beep.Streamer.
func (s *Sweep) Err() error {
	return nil
}

// volumeToDb converts a 0-1 volume to the exponent effects.Volume expects
// with Base 2 (one unit per doubling).
func volumeToDb(vol float64) float64 {
	if vol <= 0 {
		return -100 // Effectively silent
	}
	return math.Log2(vol)
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

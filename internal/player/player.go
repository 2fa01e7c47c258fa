// Package player implements the in-process audio pipeline used when a track
// routes to the internal backend. Decoding and output go through beep; the
// router drives it through the Interface and polls position itself.
package player

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/flac"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/speaker"
	"github.com/gopxl/beep/v2/vorbis"
	"github.com/gopxl/beep/v2/wav"
	"github.com/sirupsen/logrus"

	"github.com/mgoutay/chorus/internal/playlist"
)

type state int

const (
	stateStopped state = iota
	stateLoaded
	statePlaying
	statePaused
)

// The speaker is initialized once at the first track's sample rate; later
// tracks with a different rate are resampled onto it.
var (
	speakerInitialized bool
	speakerSampleRate  beep.SampleRate
)

// Player decodes one track at a time to the system audio output.
// Not safe for concurrent use; the router calls it from the event loop.
type Player struct {
	log logrus.FieldLogger

	state    state
	path     string
	file     *os.File
	streamer beep.StreamSeekCloser
	format   beep.Format
	ctrl     *beep.Ctrl
	volume   *effects.Volume

	volumeLevel float64
	onFinished  func()
}

// New creates a stopped player.
func New(log logrus.FieldLogger) *Player {
	return &Player{
		log:         log.WithField("component", "player"),
		volumeLevel: 1.0,
	}
}

// OnFinished registers the callback invoked from the audio goroutine when a
// track plays to its natural end. Register before the first LoadTrack.
func (p *Player) OnFinished(fn func()) { p.onFinished = fn }

// LoadTrack stops whatever is playing and prepares t, leaving the pipeline
// paused at position zero. Returns false when the file cannot be decoded.
func (p *Player) LoadTrack(t playlist.Track) bool {
	p.Stop()

	f, err := os.Open(t.Path)
	if err != nil {
		p.log.WithError(err).WithField("path", t.Path).Warn("open track")
		return false
	}

	var streamer beep.StreamSeekCloser
	var format beep.Format
	switch strings.ToLower(filepath.Ext(t.Path)) {
	case ".mp3":
		streamer, format, err = mp3.Decode(f)
	case ".flac":
		streamer, format, err = flac.Decode(f)
	case ".wav":
		streamer, format, err = wav.Decode(f)
	case ".ogg", ".oga":
		streamer, format, err = vorbis.Decode(f)
	default:
		f.Close()
		p.log.WithField("path", t.Path).Warn("unsupported format")
		return false
	}
	if err != nil {
		f.Close()
		p.log.WithError(err).WithField("path", t.Path).Warn("decode track")
		return false
	}

	if !speakerInitialized {
		speakerSampleRate = format.SampleRate
		if err := speaker.Init(speakerSampleRate, speakerSampleRate.N(time.Second/10)); err != nil {
			streamer.Close()
			f.Close()
			p.log.WithError(err).Error("speaker init")
			return false
		}
		speakerInitialized = true
	}

	p.file = f
	p.streamer = streamer
	p.format = format
	p.path = t.Path

	var out beep.Streamer = streamer
	if format.SampleRate != speakerSampleRate {
		out = beep.Resample(4, format.SampleRate, speakerSampleRate, streamer)
	}
	p.ctrl = &beep.Ctrl{Streamer: out, Paused: true}
	p.volume = &effects.Volume{Streamer: p.ctrl, Base: 2, Volume: levelToVolume(p.volumeLevel)}
	p.state = stateLoaded

	finished := p.onFinished
	speaker.Play(beep.Seq(p.volume, beep.Callback(func() {
		if finished != nil {
			finished()
		}
	})))
	return true
}

// Play starts or resumes the loaded track. Returns false when nothing is
// loaded.
func (p *Player) Play() bool {
	if p.ctrl == nil {
		return false
	}
	speaker.Lock()
	p.ctrl.Paused = false
	speaker.Unlock()
	p.state = statePlaying
	return true
}

// Pause pauses in place. No-op unless playing.
func (p *Player) Pause() {
	if p.state != statePlaying || p.ctrl == nil {
		return
	}
	speaker.Lock()
	p.ctrl.Paused = true
	speaker.Unlock()
	p.state = statePaused
}

// Stop tears the pipeline down and releases the file.
func (p *Player) Stop() {
	if p.state == stateStopped {
		return
	}
	speaker.Clear()
	if p.streamer != nil {
		p.streamer.Close()
		p.streamer = nil
	}
	if p.file != nil {
		p.file.Close()
		p.file = nil
	}
	p.ctrl = nil
	p.volume = nil
	p.path = ""
	p.state = stateStopped
}

// Seek moves to an absolute position in seconds, clamped to the track.
// Seeking to or past the end triggers the finished callback.
func (p *Player) Seek(seconds float64) {
	if p.streamer == nil || p.state == stateStopped {
		return
	}
	target := p.format.SampleRate.N(time.Duration(seconds * float64(time.Second)))
	target = max(target, 0)
	if target >= p.streamer.Len() {
		if p.onFinished != nil {
			p.onFinished()
		}
		return
	}
	speaker.Lock()
	err := p.streamer.Seek(target)
	speaker.Unlock()
	if err != nil {
		p.log.WithError(err).Warn("seek failed")
	}
}

// Position returns the playback position in seconds.
func (p *Player) Position() float64 {
	if p.streamer == nil {
		return 0
	}
	speaker.Lock()
	pos := p.streamer.Position()
	speaker.Unlock()
	return p.format.SampleRate.D(pos).Seconds()
}

// Duration returns the track length in seconds, 0 when nothing is loaded.
func (p *Player) Duration() float64 {
	if p.streamer == nil {
		return 0
	}
	return p.format.SampleRate.D(p.streamer.Len()).Seconds()
}

// IsPlaying reports whether audio is actively rendering.
func (p *Player) IsPlaying() bool { return p.state == statePlaying }

// CurrentPath returns the loaded track's path, "" when stopped.
func (p *Player) CurrentPath() string { return p.path }

// SetVolume sets output gain, 0.0 to 1.0.
func (p *Player) SetVolume(level float64) {
	if level < 0 {
		level = 0
	}
	if level > 1 {
		level = 1
	}
	p.volumeLevel = level
	if p.volume != nil {
		speaker.Lock()
		p.volume.Volume = levelToVolume(level)
		p.volume.Silent = level <= 0
		speaker.Unlock()
	}
}

// levelToVolume maps a linear 0..1 level onto beep's base-2 logarithmic
// scale: 1.0 -> 0, 0.5 -> -1, 0.25 -> -2.
func levelToVolume(level float64) float64 {
	if level <= 0 {
		return -10
	}
	return math.Log2(level)
}

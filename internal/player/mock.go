package player

import "github.com/mgoutay/chorus/internal/playlist"

// Mock is a test double for Player.
type Mock struct {
	playing  bool
	loaded   bool
	path     string
	position float64
	duration float64

	loadErr    bool
	loadCalls  []string
	seekCalls  []float64
	pauseCalls int
	stopCalls  int
	volume     float64
	onFinished func()
}

// NewMock creates a mock player for testing.
func NewMock() *Mock {
	return &Mock{volume: 1.0}
}

func (m *Mock) LoadTrack(t playlist.Track) bool {
	m.loadCalls = append(m.loadCalls, t.Path)
	if m.loadErr {
		return false
	}
	m.loaded = true
	m.playing = false
	m.path = t.Path
	m.position = 0
	if t.Duration > 0 {
		m.duration = t.Duration
	}
	return true
}

func (m *Mock) Play() bool {
	if !m.loaded {
		return false
	}
	m.playing = true
	return true
}

func (m *Mock) Pause() {
	m.pauseCalls++
	m.playing = false
}

func (m *Mock) Stop() {
	m.stopCalls++
	m.playing = false
	m.loaded = false
	m.path = ""
	m.position = 0
}

func (m *Mock) Seek(seconds float64) {
	m.seekCalls = append(m.seekCalls, seconds)
	m.position = seconds
}

func (m *Mock) Position() float64 { return m.position }

func (m *Mock) Duration() float64 { return m.duration }

func (m *Mock) IsPlaying() bool { return m.playing }

func (m *Mock) CurrentPath() string { return m.path }

func (m *Mock) SetVolume(level float64) { m.volume = level }

func (m *Mock) OnFinished(fn func()) { m.onFinished = fn }

// Test helpers

func (m *Mock) SetLoadError(fail bool) { m.loadErr = fail }

func (m *Mock) SetPosition(seconds float64) { m.position = seconds }

func (m *Mock) SetDuration(seconds float64) { m.duration = seconds }

func (m *Mock) LoadCalls() []string { return m.loadCalls }

func (m *Mock) SeekCalls() []float64 { return m.seekCalls }

func (m *Mock) PauseCalls() int { return m.pauseCalls }

func (m *Mock) StopCalls() int { return m.stopCalls }

func (m *Mock) Volume() float64 { return m.volume }

// SimulateFinished fires the registered finish callback, as the audio
// pipeline does when a track plays to its end.
func (m *Mock) SimulateFinished() {
	if m.onFinished != nil {
		m.onFinished()
	}
}

// Verify Mock implements Interface at compile time.
var _ Interface = (*Mock)(nil)

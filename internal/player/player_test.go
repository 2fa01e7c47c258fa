package player

import (
	"math"
	"testing"

	"github.com/mgoutay/chorus/internal/playlist"
)

func TestLevelToVolume(t *testing.T) {
	cases := []struct {
		level float64
		want  float64
	}{
		{1.0, 0},
		{0.5, -1},
		{0.25, -2},
		{0, -10},
		{-0.3, -10},
	}
	for _, tc := range cases {
		if got := levelToVolume(tc.level); math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("levelToVolume(%v) = %v, want %v", tc.level, got, tc.want)
		}
	}
}

func TestMock_LoadPlayLifecycle(t *testing.T) {
	m := NewMock()

	if m.Play() {
		t.Error("Play with nothing loaded should fail")
	}

	if !m.LoadTrack(playlist.Track{Path: "/a.mp3", Duration: 120}) {
		t.Fatal("LoadTrack failed")
	}
	if m.IsPlaying() {
		t.Error("loading should leave the pipeline paused")
	}
	if !m.Play() {
		t.Fatal("Play failed")
	}
	if !m.IsPlaying() || m.CurrentPath() != "/a.mp3" {
		t.Errorf("playing=%v path=%q", m.IsPlaying(), m.CurrentPath())
	}
	if m.Duration() != 120 {
		t.Errorf("Duration = %v, want 120", m.Duration())
	}

	m.Stop()
	if m.IsPlaying() || m.CurrentPath() != "" {
		t.Error("Stop should clear state")
	}
}

func TestMock_FinishedCallback(t *testing.T) {
	m := NewMock()
	var fired bool
	m.OnFinished(func() { fired = true })
	m.LoadTrack(playlist.Track{Path: "/a.mp3"})
	m.Play()

	m.SimulateFinished()
	if !fired {
		t.Error("finish callback not fired")
	}
}

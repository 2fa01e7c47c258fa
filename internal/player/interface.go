package player

import "github.com/mgoutay/chorus/internal/playlist"

// Interface is the contract the router programs against, for dependency
// injection and testing.
type Interface interface {
	LoadTrack(t playlist.Track) bool
	Play() bool
	Pause()
	Stop()
	Seek(seconds float64)
	Position() float64
	Duration() float64
	IsPlaying() bool
	CurrentPath() string
	SetVolume(level float64)
	OnFinished(fn func())
}

// Verify Player implements Interface at compile time.
var _ Interface = (*Player)(nil)

package router

import (
	"context"

	"github.com/mgoutay/chorus/internal/bluetooth"
	"github.com/mgoutay/chorus/internal/moc"
	"github.com/mgoutay/chorus/internal/playlist"
)

// ExternalPlayer is the slice of the external-player adapter the router
// depends on.
type ExternalPlayer interface {
	IsAvailable() bool
	EnsureServer(ctx context.Context) error
	Status(ctx context.Context, force bool) *moc.Status

	Play(ctx context.Context) error
	Resume(ctx context.Context) error
	Pause(ctx context.Context) error
	Stop(ctx context.Context) error
	Next(ctx context.Context) error
	Previous(ctx context.Context) error
	SeekRelative(ctx context.Context, seconds float64) error
	SetVolume(ctx context.Context, volume float64) error
	SetAutonext(ctx context.Context, on bool) error
	SetShuffle(ctx context.Context, on bool) error
	SetRepeat(ctx context.Context, on bool) error
	PlayFile(ctx context.Context, path string) error
	Shutdown(ctx context.Context) error

	Playlist(ctx context.Context, currentFile string) ([]playlist.Track, int, error)
	ReplacePlaylist(ctx context.Context, tracks []playlist.Track, currentIndex int, startPlayback bool) (map[int]int, error)
	AppendPath(ctx context.Context, path string) error
	PlaylistPath() string
}

// InternalPlayer is the in-process pipeline contract, polled rather than
// push-driven except for the end-of-track callback.
type InternalPlayer interface {
	LoadTrack(t playlist.Track) bool
	Play() bool
	Pause()
	Stop()
	Seek(seconds float64)
	Position() float64
	Duration() float64
	IsPlaying() bool
	CurrentPath() string
	OnFinished(fn func())
}

// Sink is the Bluetooth sink delegate.
type Sink = bluetooth.Sink

// VolumeSetter changes the system-wide output volume.
type VolumeSetter interface {
	SetVolume(ctx context.Context, level float64) error
}

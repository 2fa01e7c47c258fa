package router

// PlaybackState is the single authoritative playback state, owned by the
// router alone.
type PlaybackState int

const (
	StateStopped PlaybackState = iota
	StateLoading
	StatePaused
	StatePlaying
	StateSeeking
)

func (s PlaybackState) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateLoading:
		return "loading"
	case StatePaused:
		return "paused"
	case StatePlaying:
		return "playing"
	case StateSeeking:
		return "seeking"
	}
	return "unknown"
}

// OperationState is the orthogonal operation guard. It never gates playback
// transitions, only polling side effects: position updates are skipped while
// seeking, and sync requests re-entering during a sync are detected.
type OperationState int

const (
	OpIdle OperationState = iota
	OpSeeking
	OpSyncing
)

// Backend identifies which output is authoritative for audio. Exactly one
// is active at a time.
type Backend int

const (
	BackendNone Backend = iota
	BackendExternal
	BackendInternal
	BackendBluetooth
)

func (b Backend) String() string {
	switch b {
	case BackendExternal:
		return "external"
	case BackendInternal:
		return "internal"
	case BackendBluetooth:
		return "bt_sink"
	}
	return "none"
}

// LoopMode selects the auto-advance policy when a track finishes.
type LoopMode int

const (
	LoopForward  LoopMode = iota // advance, stop at end
	LoopTrack                    // repeat the current track
	LoopPlaylist                 // advance, wrap at end
)

func (m LoopMode) String() string {
	switch m {
	case LoopTrack:
		return "track"
	case LoopPlaylist:
		return "playlist"
	}
	return "forward"
}

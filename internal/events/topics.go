package events

// Topic identifies an event stream on the bus.
type Topic string

// Action topics carry user intents into the router.
const (
	ActionPlay            Topic = "action.play"
	ActionPause           Topic = "action.pause"
	ActionStop            Topic = "action.stop"
	ActionNext            Topic = "action.next"
	ActionPrevious        Topic = "action.previous"
	ActionSeek            Topic = "action.seek"
	ActionPlayTrack       Topic = "action.play_track"
	ActionSetShuffle      Topic = "action.set_shuffle"
	ActionSetLoopMode     Topic = "action.set_loop_mode"
	ActionSetVolume       Topic = "action.set_volume"
	ActionRefreshExternal Topic = "action.refresh_external"
	ActionSyncPlaylist    Topic = "action.sync_playlist"
	ActionAppendFolder    Topic = "action.append_folder"
)

// State topics carry state changes out of the router and playlist model.
const (
	PlaybackStarted     Topic = "playback.started"
	PlaybackPaused      Topic = "playback.paused"
	PlaybackStopped     Topic = "playback.stopped"
	TrackChanged        Topic = "track.changed"
	PositionChanged     Topic = "position.changed"
	DurationChanged     Topic = "duration.changed"
	PlaylistChanged     Topic = "playlist.changed"
	CurrentIndexChanged Topic = "playlist.current_index_changed"
	ShuffleChanged      Topic = "shuffle.changed"
	LoopModeChanged     Topic = "loop_mode.changed"
	AutonextChanged     Topic = "autonext.changed"
	BackendChanged      Topic = "active_backend.changed"
	VolumeChanged       Topic = "volume.changed"
)

// Bluetooth sink topics.
const (
	SinkEnabled         Topic = "bluetooth.sink_enabled"
	SinkDisabled        Topic = "bluetooth.sink_disabled"
	SinkDeviceConnected Topic = "bluetooth.sink_device_connected"
)

// Track is a copy of the playing track's data carried in event payloads.
// It mirrors playlist.Track without importing it, so the playlist model can
// publish to the bus without a cycle.
type Track struct {
	Path     string
	Title    string
	Artist   string
	Duration float64
}

// Payloads for action topics.
type (
	SeekAction        struct{ Position float64 }
	PlayTrackAction   struct{ Index int }
	SetShuffleAction  struct{ Enabled bool }
	SetLoopModeAction struct{ Mode int }
	SetVolumeAction   struct{ Volume float64 }
	SyncAction        struct{ StartPlayback bool }
	AppendFolder      struct{ Path string }
)

// Payloads for state topics.
type (
	StartedEvent  struct{ Track Track }
	TrackEvent    struct{ Track Track }
	PositionEvent struct{ Position, Duration float64 }
	DurationEvent struct{ Duration float64 }
	PlaylistEvent struct {
		ContentChanged bool
		Len            int
		Index          int
	}
	IndexEvent   struct{ Index, OldIndex int }
	ShuffleEvent struct{ Enabled bool }
	LoopEvent    struct{ Mode int }
	ToggleEvent  struct{ Enabled bool }
	BackendEvent struct{ Backend string }
	VolumeEvent  struct{ Volume float64 }
	DeviceEvent  struct{ Device string }
)

// Package router owns playback state, backend selection, action dispatch
// and the bidirectional synchronization protocol against the external
// player. Everything runs on the event loop; no locks, one writer.
package router

import (
	"context"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mgoutay/chorus/internal/bluetooth"
	"github.com/mgoutay/chorus/internal/config"
	"github.com/mgoutay/chorus/internal/events"
	"github.com/mgoutay/chorus/internal/moc"
	"github.com/mgoutay/chorus/internal/playlist"
)

// Router routes playback actions to the authoritative backend and keeps the
// logical playlist converged with the external player.
type Router struct {
	log logrus.FieldLogger
	cfg *config.Config
	bus *events.Bus
	ctx context.Context

	model    *playlist.Model
	external ExternalPlayer
	internal InternalPlayer
	sink     Sink
	sysvol   VolumeSetter
	rng      *rand.Rand
	now      func() time.Time

	useExternal bool

	state    PlaybackState
	op       OperationState
	backend  Backend
	loopMode LoopMode
	shuffle  bool
	autonext bool
	volume   float64

	position float64
	duration float64

	// External reconciliation state.
	lastExternalFile  string
	userActionAt      time.Time
	lastExternalWrite time.Time
	startedServer     bool

	// Sync intent flags (§ coalescing). Private to the router.
	loadingFromExternal bool
	suppressSync        bool
	syncScheduled       bool
	syncInFlight        bool
	dirtyDuringSync     bool
	startAfterSync      bool

	// Absolute position to apply once a paused external resume happens.
	// Negative means none pending.
	pendingSeek    float64
	stateBeforeOps PlaybackState

	stopPolls []func()
}

// New wires a router onto the bus. Call Start to begin polling.
func New(
	cfg *config.Config,
	bus *events.Bus,
	model *playlist.Model,
	external ExternalPlayer,
	internal InternalPlayer,
	sink Sink,
	sysvol VolumeSetter,
	log logrus.FieldLogger,
) *Router {
	r := &Router{
		log:         log.WithField("component", "router"),
		cfg:         cfg,
		bus:         bus,
		ctx:         context.Background(),
		model:       model,
		external:    external,
		internal:    internal,
		sink:        sink,
		sysvol:      sysvol,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
		now:         time.Now,
		useExternal: external != nil && external.IsAvailable(),
		autonext:    true,
		volume:      1.0,
		pendingSeek: -1,
	}

	bus.Subscribe(events.ActionPlay, func(any) { r.onPlay() })
	bus.Subscribe(events.ActionPause, func(any) { r.onPause() })
	bus.Subscribe(events.ActionStop, func(any) { r.onStop() })
	bus.Subscribe(events.ActionNext, func(any) { r.onNext() })
	bus.Subscribe(events.ActionPrevious, func(any) { r.onPrevious() })
	bus.Subscribe(events.ActionSeek, func(data any) {
		if a, ok := data.(events.SeekAction); ok {
			r.onSeek(a.Position)
		}
	})
	bus.Subscribe(events.ActionPlayTrack, func(data any) {
		if a, ok := data.(events.PlayTrackAction); ok {
			r.onPlayTrack(a.Index)
		}
	})
	bus.Subscribe(events.ActionSetShuffle, func(data any) {
		if a, ok := data.(events.SetShuffleAction); ok {
			r.onSetShuffle(a.Enabled)
		}
	})
	bus.Subscribe(events.ActionSetLoopMode, func(data any) {
		if a, ok := data.(events.SetLoopModeAction); ok {
			r.onSetLoopMode(LoopMode(a.Mode))
		}
	})
	bus.Subscribe(events.ActionSetVolume, func(data any) {
		if a, ok := data.(events.SetVolumeAction); ok {
			r.onSetVolume(a.Volume)
		}
	})
	bus.Subscribe(events.ActionRefreshExternal, func(any) { r.onRefreshExternal() })
	bus.Subscribe(events.ActionSyncPlaylist, func(data any) {
		if a, ok := data.(events.SyncAction); ok {
			r.requestSync(a.StartPlayback)
		}
	})
	bus.Subscribe(events.ActionAppendFolder, func(data any) {
		if a, ok := data.(events.AppendFolder); ok {
			r.onAppendFolder(a.Path)
		}
	})

	bus.Subscribe(events.PlaylistChanged, func(data any) {
		if ev, ok := data.(events.PlaylistEvent); ok {
			r.onPlaylistChanged(ev)
		}
	})

	bus.Subscribe(events.SinkEnabled, func(any) { r.onSinkEnabled() })
	bus.Subscribe(events.SinkDisabled, func(any) { r.onSinkDisabled() })
	bus.Subscribe(events.SinkDeviceConnected, func(any) { r.onSinkDeviceConnected() })

	return r
}

// Start begins the poll timers and the external bootstrap. Kept out of New
// so tests can drive the router tick by tick.
func (r *Router) Start() {
	r.internal.OnFinished(func() {
		r.bus.Defer(r.onInternalFinished)
	})

	if r.useExternal {
		r.bus.After(r.cfg.BootstrapDelay, r.bootstrapExternal)
		r.stopPolls = append(r.stopPolls,
			r.bus.Every(r.cfg.ExternalPollInterval, r.pollExternal))
	}
	r.stopPolls = append(r.stopPolls,
		r.bus.Every(r.cfg.InternalPollInterval, r.pollInternal))
}

// Close stops polling and all backends, and shuts the external server down
// if this process started it.
func (r *Router) Close() {
	for _, stop := range r.stopPolls {
		stop()
	}
	r.internal.Stop()
	if r.useExternal && r.startedServer {
		if err := r.external.Shutdown(r.ctx); err != nil {
			r.log.WithError(err).Debug("external shutdown")
		}
	}
}

// ExternalAvailable reports whether the external backend can be used.
func (r *Router) ExternalAvailable() bool { return r.useExternal }

// SetAutonext toggles automatic advance when a track finishes.
func (r *Router) SetAutonext(enabled bool) {
	if r.autonext == enabled {
		return
	}
	r.autonext = enabled
	r.bus.Publish(events.AutonextChanged, events.ToggleEvent{Enabled: enabled})
}

func (r *Router) sinkAuthoritative() bool {
	if r.sink == nil || !r.sink.IsEnabled() {
		return false
	}
	_, connected := r.sink.ConnectedDevice()
	return connected
}

func (r *Router) markUserAction() { r.userActionAt = r.now() }

// ----------------------------------------------------------------------
// Action handlers
// ----------------------------------------------------------------------

func (r *Router) onPlay() {
	if r.sinkAuthoritative() {
		if err := r.sink.ControlPlayback(bluetooth.CmdPlay); err != nil {
			r.log.WithError(err).Warn("bt play")
		}
		return
	}

	t := r.model.CurrentTrack()
	if t == nil && r.model.Len() > 0 {
		r.model.SetCurrentIndex(0)
		t = r.model.CurrentTrack()
	}
	if t == nil {
		r.log.Debug("play with empty playlist")
		return
	}
	if info, err := os.Stat(t.Path); err != nil || info.IsDir() {
		r.log.WithField("path", t.Path).Warn("cannot play, file missing")
		return
	}

	r.markUserAction()

	// Already playing this exact track: nothing to do, no reload and no
	// duplicate started event.
	if r.state == StatePlaying && r.currentlyLoaded(t.Path) {
		return
	}

	// Same track merely paused: resume in place instead of reloading.
	if r.effectivelyPaused() && r.currentlyLoaded(t.Path) {
		r.resumeActive()
		return
	}

	target := r.targetBackend(t.Path)
	r.stopOtherBackends(target)
	if target == BackendExternal {
		r.playExternal(*t)
	} else {
		r.playInternal(*t)
	}
}

// effectivelyPaused treats a seek issued while paused as still paused: the
// transient Seeking state must not turn the following Play into a reload.
func (r *Router) effectivelyPaused() bool {
	return r.state == StatePaused ||
		(r.state == StateSeeking && r.stateBeforeOps == StatePaused)
}

// currentlyLoaded reports whether path is what the active backend has
// loaded right now.
func (r *Router) currentlyLoaded(path string) bool {
	switch r.backend {
	case BackendExternal:
		return filepath.Clean(path) == r.lastExternalFile
	case BackendInternal:
		return filepath.Clean(path) == filepath.Clean(r.internal.CurrentPath())
	}
	return false
}

func (r *Router) resumeActive() {
	switch r.backend {
	case BackendExternal:
		if err := r.external.Resume(r.ctx); err != nil {
			r.log.WithError(err).Warn("external resume")
			return
		}
		r.setState(StatePlaying)
		r.applyPendingSeekSoon()
	case BackendInternal:
		if r.internal.Play() {
			r.setState(StatePlaying)
		}
	}
}

// targetBackend picks the backend for a file: video containers always go
// internal, everything else prefers the external player when available.
func (r *Router) targetBackend(path string) Backend {
	if !r.useExternal || r.cfg.IsVideoFile(path) {
		return BackendInternal
	}
	return BackendExternal
}

func (r *Router) playExternal(t playlist.Track) {
	// Remember the file before issuing play so finished/changed detection
	// compares against the right path from the first poll.
	r.lastExternalFile = filepath.Clean(t.Path)

	r.setBackend(BackendExternal)
	r.bus.Publish(events.TrackChanged, events.TrackEvent{Track: t.Event()})
	r.setState(StateLoading)

	if err := r.external.PlayFile(r.ctx, t.Path); err != nil {
		r.log.WithError(err).Warn("external play")
		r.setState(StateStopped)
		return
	}
	r.setState(StatePlaying)
	if t.Duration > 0 {
		r.setDuration(t.Duration)
	}
}

func (r *Router) playInternal(t playlist.Track) {
	r.setState(StateLoading)
	if !r.internal.LoadTrack(t) {
		r.log.WithField("path", t.Path).Warn("internal load failed")
		r.setState(StateStopped)
		return
	}
	r.setBackend(BackendInternal)
	r.bus.Publish(events.TrackChanged, events.TrackEvent{Track: t.Event()})
	if !r.internal.Play() {
		return
	}
	r.setState(StatePlaying)
	if d := r.internal.Duration(); d > 0 {
		r.setDuration(d)
	} else if t.Duration > 0 {
		r.setDuration(t.Duration)
	}
}

func (r *Router) onPause() {
	if r.sinkAuthoritative() {
		if err := r.sink.ControlPlayback(bluetooth.CmdPause); err != nil {
			r.log.WithError(err).Warn("bt pause")
		}
		return
	}
	r.markUserAction()
	switch r.backend {
	case BackendExternal:
		if err := r.external.Pause(r.ctx); err != nil {
			r.log.WithError(err).Warn("external pause")
			return
		}
		r.setState(StatePaused)
	case BackendInternal:
		r.internal.Pause()
		r.setState(StatePaused)
	}
}

// onStop publishes in the fixed order backend, cursor, playback state,
// timeline so listeners never see a partially stopped frame.
func (r *Router) onStop() {
	if r.sinkAuthoritative() {
		if err := r.sink.ControlPlayback(bluetooth.CmdStop); err != nil {
			r.log.WithError(err).Warn("bt stop")
		}
		return
	}
	r.markUserAction()
	switch r.backend {
	case BackendExternal:
		if err := r.external.Stop(r.ctx); err != nil {
			r.log.WithError(err).Debug("external stop")
		}
	case BackendInternal:
		r.internal.Stop()
	}

	r.setBackend(BackendNone)
	r.model.SetCurrentIndex(-1)
	r.setState(StateStopped)
	r.setTimeline(0, 0)
	r.lastExternalFile = ""
	r.pendingSeek = -1
}

func (r *Router) onNext() {
	if r.sinkAuthoritative() {
		if err := r.sink.ControlPlayback(bluetooth.CmdNext); err != nil {
			r.log.WithError(err).Warn("bt next")
		}
		return
	}
	if next := r.model.NextIndex(); next >= 0 {
		r.markUserAction()
		r.model.SetCurrentIndex(next)
		r.onPlay()
	}
}

func (r *Router) onPrevious() {
	if r.sinkAuthoritative() {
		if err := r.sink.ControlPlayback(bluetooth.CmdPrevious); err != nil {
			r.log.WithError(err).Warn("bt previous")
		}
		return
	}
	if prev := r.model.PreviousIndex(); prev >= 0 {
		r.markUserAction()
		r.model.SetCurrentIndex(prev)
		r.onPlay()
	}
}

func (r *Router) onPlayTrack(index int) {
	r.markUserAction()
	r.model.SetCurrentIndex(index)
	r.onPlay()
}

func (r *Router) onSeek(position float64) {
	if r.sinkAuthoritative() {
		return // the sink cannot seek
	}
	if r.backend == BackendNone {
		return
	}

	// Echo the clamped target immediately so a UI drag is reflected before
	// any backend confirms it.
	if r.duration > 0 {
		position = min(max(position, 0), r.duration)
	} else {
		position = max(position, 0)
	}

	r.markUserAction()
	if r.op != OpSeeking {
		r.stateBeforeOps = r.state
	}
	r.op = OpSeeking
	r.state = StateSeeking
	r.setPosition(position)

	switch r.backend {
	case BackendExternal:
		r.seekExternal(position)
	case BackendInternal:
		r.internal.Seek(position)
		r.bus.After(r.cfg.SeekSettleDelay/2, r.resetSeekState)
	}
}

// seekExternal translates an absolute target into the relative-only seek
// the external player understands. While paused the player ignores seeks,
// so the target is parked and applied after the next resume.
func (r *Router) seekExternal(position float64) {
	defer r.bus.After(r.cfg.SeekSettleDelay, r.resetSeekState)

	st := r.external.Status(r.ctx, true)
	if st == nil {
		return
	}
	if st.State == moc.StatePause {
		r.pendingSeek = position
		return
	}
	delta := position - st.Position
	if delta < r.cfg.SeekEpsilon && delta > -r.cfg.SeekEpsilon {
		return
	}
	if err := r.external.SeekRelative(r.ctx, delta); err != nil {
		r.log.WithError(err).Warn("external seek")
	}
}

// applyPendingSeekSoon schedules the parked seek shortly after a resume,
// giving the external process time to actually leave pause.
func (r *Router) applyPendingSeekSoon() {
	if r.pendingSeek < 0 {
		return
	}
	r.bus.After(r.cfg.SeekApplyDelay, func() {
		target := r.pendingSeek
		r.pendingSeek = -1
		if target < 0 || r.backend != BackendExternal {
			return
		}
		st := r.external.Status(r.ctx, true)
		if st == nil {
			return
		}
		delta := target - st.Position
		if delta >= r.cfg.SeekEpsilon || delta <= -r.cfg.SeekEpsilon {
			if err := r.external.SeekRelative(r.ctx, delta); err != nil {
				r.log.WithError(err).Warn("pending seek")
				return
			}
		}
		r.setPosition(target)
	})
}

func (r *Router) resetSeekState() {
	if r.op != OpSeeking {
		return
	}
	r.op = OpIdle
	if r.state == StateSeeking {
		r.state = r.stateBeforeOps
	}
}

func (r *Router) onSetShuffle(enabled bool) {
	if r.shuffle == enabled {
		return
	}
	r.shuffle = enabled
	r.bus.Publish(events.ShuffleChanged, events.ShuffleEvent{Enabled: enabled})

	// Shuffling physically reorders the playlist so sequential lookahead
	// stays correct by construction.
	if enabled {
		r.model.Shuffle(r.rng)
	}

	// Mirror best-effort into the external player; its own report is
	// advisory only, local state stays authoritative.
	if r.useExternal {
		if err := r.external.SetShuffle(r.ctx, enabled); err != nil {
			r.log.WithError(err).Debug("external shuffle toggle")
		}
	}
}

func (r *Router) onSetLoopMode(mode LoopMode) {
	if mode < LoopForward || mode > LoopPlaylist {
		return
	}
	if r.loopMode == mode {
		return
	}
	r.loopMode = mode
	r.bus.Publish(events.LoopModeChanged, events.LoopEvent{Mode: int(mode)})

	// Track-repeat and playlist-repeat both collapse onto the external
	// player's single repeat flag. One-way, lossy.
	if r.useExternal {
		if err := r.external.SetRepeat(r.ctx, mode != LoopForward); err != nil {
			r.log.WithError(err).Debug("external repeat toggle")
		}
	}
}

func (r *Router) onSetVolume(volume float64) {
	volume = min(max(volume, 0), 1)
	r.volume = volume
	r.bus.Publish(events.VolumeChanged, events.VolumeEvent{Volume: volume})

	// Output level is system-wide; backends do not own volume.
	if r.sysvol != nil {
		if err := r.sysvol.SetVolume(r.ctx, volume); err != nil {
			r.log.WithError(err).Warn("system volume")
		}
	}
}

// ----------------------------------------------------------------------
// Bluetooth sink handoff
// ----------------------------------------------------------------------

func (r *Router) onSinkEnabled() {
	// Backend first, so stopOtherBackends knows what to spare.
	r.setBackend(BackendBluetooth)
	r.stopOtherBackends(BackendBluetooth)
}

func (r *Router) onSinkDisabled() {
	if r.backend != BackendBluetooth {
		return
	}
	// No auto-resume of a previous backend.
	r.setBackend(BackendNone)
	r.setState(StateStopped)
}

func (r *Router) onSinkDeviceConnected() {
	if r.sink != nil && r.sink.IsEnabled() {
		r.setBackend(BackendBluetooth)
		r.stopOtherBackends(BackendBluetooth)
	}
}

// stopOtherBackends silences everything except target, checked by identity
// to avoid redundant process calls.
func (r *Router) stopOtherBackends(target Backend) {
	if target != BackendInternal &&
		(r.internal.IsPlaying() || r.internal.CurrentPath() != "") {
		r.internal.Stop()
	}
	if target != BackendExternal && r.useExternal {
		if st := r.external.Status(r.ctx, false); st != nil && st.State != moc.StateStop {
			if err := r.external.Stop(r.ctx); err != nil {
				r.log.WithError(err).Debug("stop external")
			}
		}
	}
}

// ----------------------------------------------------------------------
// State publication. Order matters: backend, cursor, playback state,
// timeline.
// ----------------------------------------------------------------------

func (r *Router) setBackend(b Backend) {
	if r.backend == b {
		return
	}
	r.backend = b
	r.bus.Publish(events.BackendChanged, events.BackendEvent{Backend: b.String()})
}

func (r *Router) setState(s PlaybackState) {
	if r.state == s {
		return
	}
	old := r.state
	r.state = s
	switch {
	case s == StatePlaying:
		var track events.Track
		if t := r.model.CurrentTrack(); t != nil {
			track = t.Event()
		}
		r.bus.Publish(events.PlaybackStarted, events.StartedEvent{Track: track})
	case s == StatePaused && old == StatePlaying:
		r.bus.Publish(events.PlaybackPaused, nil)
	case s == StateStopped:
		r.bus.Publish(events.PlaybackStopped, nil)
	}
}

func (r *Router) setPosition(position float64) {
	if position == r.position {
		return
	}
	r.position = position
	r.bus.Publish(events.PositionChanged, events.PositionEvent{
		Position: position,
		Duration: r.duration,
	})
}

func (r *Router) setDuration(duration float64) {
	if duration == r.duration {
		return
	}
	r.duration = duration
	r.bus.Publish(events.DurationChanged, events.DurationEvent{Duration: duration})
	if idx := r.model.CurrentIndex(); idx >= 0 {
		r.model.SetDuration(idx, duration)
	}
}

func (r *Router) setTimeline(position, duration float64) {
	r.setDuration(duration)
	r.setPosition(position)
}

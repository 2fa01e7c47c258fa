package router

import (
	"io/fs"
	"path/filepath"
	"sort"

	"github.com/samber/lo"

	"github.com/mgoutay/chorus/internal/events"
	"github.com/mgoutay/chorus/internal/playlist"
	"github.com/mgoutay/chorus/internal/tags"
)

// onPlaylistChanged requests an external resync for content changes made
// locally. Cursor-only moves never sync; reloads originating from the
// external side never sync back (that would ping-pong).
func (r *Router) onPlaylistChanged(ev events.PlaylistEvent) {
	if !ev.ContentChanged {
		return
	}
	if !r.useExternal || r.loadingFromExternal || r.suppressSync {
		return
	}
	if r.backend != BackendExternal && r.backend != BackendNone {
		return
	}
	r.requestSync(false)
}

// requestSync coalesces sync requests: requests while one is scheduled
// collapse into it, requests while one is in flight set a dirty flag that
// triggers exactly one follow-up. The strongest start-playback intent seen
// among coalesced requests is carried forward.
func (r *Router) requestSync(startPlayback bool) {
	if !r.useExternal {
		return
	}
	r.startAfterSync = r.startAfterSync || startPlayback
	if r.syncInFlight {
		r.dirtyDuringSync = true
		return
	}
	if r.syncScheduled {
		return
	}
	r.syncScheduled = true
	r.bus.Defer(r.runSync)
}

func (r *Router) runSync() {
	r.syncScheduled = false
	if r.syncInFlight {
		r.dirtyDuringSync = true
		return
	}
	r.syncInFlight = true
	prevOp := r.op
	r.op = OpSyncing
	start := r.startAfterSync
	r.startAfterSync = false

	tracks, index := r.model.Snapshot()

	// Only start an audio file; video routes internal and is not the
	// external player's business.
	startExternal := start
	if index >= 0 && index < len(tracks) && r.cfg.IsVideoFile(tracks[index].Path) {
		startExternal = false
	}

	// Replace-with-start makes the external process audible; silence the
	// other backends first.
	if startExternal {
		r.stopOtherBackends(BackendExternal)
	}

	r.markExternalWrite()
	remap, err := r.external.ReplacePlaylist(r.ctx, tracks, index, startExternal)
	r.markExternalWrite()

	r.op = prevOp
	r.syncInFlight = false

	if err != nil {
		r.log.WithError(err).Warn("external playlist sync")
	} else {
		r.log.WithField("tracks", len(tracks)).Debug("synced playlist to external player")
		if startExternal {
			if _, kept := remap[index]; kept {
				r.markUserAction()
				r.lastExternalFile = filepath.Clean(tracks[index].Path)
				r.setBackend(BackendExternal)
				r.bus.Publish(events.TrackChanged, events.TrackEvent{Track: tracks[index].Event()})
				r.setState(StatePlaying)
			}
		}
	}

	if r.dirtyDuringSync {
		r.dirtyDuringSync = false
		r.requestSync(false)
	}

	if start && !startExternal && index >= 0 && index < len(tracks) {
		r.model.SetCurrentIndex(index)
		r.onPlay()
	}
}

func (r *Router) markExternalWrite() { r.lastExternalWrite = r.now() }

func (r *Router) recentExternalWrite() bool {
	return !r.lastExternalWrite.IsZero() &&
		r.now().Sub(r.lastExternalWrite) < r.cfg.SelfWriteWindow
}

// handleExternalTrackChange reconciles a track change that originated in
// the external player itself. The cheap path relocates the cursor by path;
// only an unknown file forces a wholesale reload of its playlist.
func (r *Router) handleExternalTrackChange(file string) {
	r.lastExternalFile = filepath.Clean(file)

	if idx := r.model.IndexOfPath(file); idx >= 0 {
		r.model.SetCurrentIndex(idx)
		return
	}

	tracks, index, err := r.external.Playlist(r.ctx, file)
	if err != nil || len(tracks) == 0 {
		r.log.WithError(err).WithField("file", file).Debug("external playlist reload failed")
		return
	}
	r.adoptExternalPlaylist(tracks, index)
}

// adoptExternalPlaylist replaces the model from the external side. The
// loadingFromExternal guard is cleared on a deferred tick so the change
// events already enqueued still observe it and do not sync back.
func (r *Router) adoptExternalPlaylist(tracks []playlist.Track, index int) {
	r.loadingFromExternal = true
	r.model.Replace(tracks, index)
	r.bus.Defer(func() { r.loadingFromExternal = false })
}

// ExternalPlaylistFileChanged is invoked (on the event loop) when the
// external playlist file was modified on disk. Self-inflicted writes inside
// the self-write window are ignored.
func (r *Router) ExternalPlaylistFileChanged() {
	if !r.useExternal || r.loadingFromExternal || r.syncInFlight {
		return
	}
	if r.recentExternalWrite() {
		r.log.Debug("ignoring self-inflicted playlist file change")
		return
	}
	tracks, index, err := r.external.Playlist(r.ctx, "")
	if err != nil {
		r.log.WithError(err).Debug("playlist file reload failed")
		return
	}
	if len(tracks) == 0 {
		r.loadingFromExternal = true
		r.model.Clear()
		r.bus.Defer(func() { r.loadingFromExternal = false })
		return
	}
	r.adoptExternalPlaylist(tracks, index)
}

// onRefreshExternal adopts the external player's playlist wholesale, with
// the cursor at whatever file it reports as current.
func (r *Router) onRefreshExternal() {
	if !r.useExternal {
		r.log.Debug("refresh requested without external player")
		return
	}

	currentFile := ""
	if st := r.external.Status(r.ctx, true); st != nil {
		currentFile = st.File
	}

	tracks, index, err := r.external.Playlist(r.ctx, currentFile)
	if err != nil {
		r.log.WithError(err).Warn("refresh from external")
		return
	}
	if len(tracks) > 0 {
		r.log.WithField("tracks", len(tracks)).Info("refreshed playlist from external player")
		r.adoptExternalPlaylist(tracks, index)
		return
	}

	// Nothing on the external side; push ours instead if we have one.
	if r.model.Len() > 0 && !r.syncInFlight {
		r.requestSync(false)
	}
}

// onAppendFolder scans a folder for playable audio, backfills metadata and
// appends to the model. Small batches additionally append to the external
// player in place; large batches let the coalesced replace sync carry them
// in one pass.
func (r *Router) onAppendFolder(path string) {
	found := r.scanFolder(path)
	if len(found) == 0 {
		r.log.WithField("path", path).Warn("no playable files in folder")
		return
	}

	if len(found) <= r.cfg.SmallPlaylistThreshold && r.useExternal {
		// Incremental path: append externally ourselves and suppress the
		// replace sync the content change would otherwise schedule.
		r.suppressSync = true
		r.model.AddMany(found, -1)
		r.bus.Defer(func() { r.suppressSync = false })

		r.markExternalWrite()
		for _, t := range found {
			if err := r.external.AppendPath(r.ctx, t.Path); err != nil {
				r.log.WithError(err).WithField("path", t.Path).Debug("external append")
			}
		}
		r.markExternalWrite()
		return
	}

	// Large batch: one content change, one coalesced sync.
	r.model.AddMany(found, -1)
	r.log.WithField("count", len(found)).Info("appended folder")
}

func (r *Router) scanFolder(path string) []playlist.Track {
	var found []playlist.Track
	err := filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // skip unreadable entries
		}
		if d.IsDir() || !r.cfg.IsAudioFile(p) {
			return nil
		}
		info := tags.Read(p)
		found = append(found, playlist.Track{
			Path:   p,
			Title:  info.Title,
			Artist: info.Artist,
		})
		return nil
	})
	if err != nil {
		r.log.WithError(err).WithField("path", path).Warn("folder scan")
		return nil
	}
	sort.Slice(found, func(i, j int) bool { return found[i].Path < found[j].Path })

	// Drop files already present so re-appending a folder is idempotent.
	return lo.Filter(found, func(t playlist.Track, _ int) bool {
		return r.model.IndexOfPath(t.Path) < 0
	})
}

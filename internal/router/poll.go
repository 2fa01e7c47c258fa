package router

import (
	"path/filepath"

	"github.com/mgoutay/chorus/internal/moc"
)

// bootstrapExternal runs once, shortly after startup: make sure the server
// is up, take over auto-advance from it, and push the local playlist if the
// external one turns out to be empty.
func (r *Router) bootstrapExternal() {
	if !r.useExternal {
		return
	}
	if err := r.external.EnsureServer(r.ctx); err != nil {
		r.log.WithError(err).Warn("external server bootstrap")
		return
	}
	r.startedServer = true

	// The router owns track navigation; the external player advancing on
	// its own would race the finished heuristics.
	if err := r.external.SetAutonext(r.ctx, false); err != nil {
		r.log.WithError(err).Debug("disable external autonext")
	}

	tracks, _, err := r.external.Playlist(r.ctx, "")
	if (err != nil || len(tracks) == 0) && r.model.Len() > 0 &&
		!r.recentExternalWrite() && !r.loadingFromExternal && !r.syncInFlight {
		r.log.WithField("tracks", r.model.Len()).Info("external playlist empty, pushing local playlist")
		r.requestSync(false)
	}
}

// pollExternal reconciles the router's view with one external status dump.
// Runs every ExternalPollInterval but only acts while the external backend
// is authoritative.
func (r *Router) pollExternal() {
	if !r.useExternal || r.backend != BackendExternal {
		return
	}
	st := r.external.Status(r.ctx, false)
	if st == nil {
		return
	}

	if r.op != OpSeeking {
		r.setPosition(st.Position)
	}
	if st.Duration > 0 {
		r.setDuration(st.Duration)
	}

	if r.op != OpSeeking {
		switch st.State {
		case moc.StatePlay:
			r.setState(StatePlaying)
		case moc.StatePause:
			r.setState(StatePaused)
		case moc.StateStop:
			r.setState(StateStopped)
		}
	}

	// The external shuffle/autonext report is unreliable; local state is
	// authoritative, the report advisory only.
	if st.Shuffle != r.shuffle {
		r.log.WithField("external", st.Shuffle).Debug("ignoring external shuffle report")
	}

	file := filepath.Clean(st.File)
	if st.File != "" && file != r.lastExternalFile {
		// A just-issued local action may not be visible in the process yet;
		// only honor a divergence after the guard window.
		if r.now().Sub(r.userActionAt) >= r.cfg.UserActionGuard {
			r.handleExternalTrackChange(st.File)
		}
	}

	if r.externalTrackFinished(st, file) {
		r.markUserAction()
		r.handleTrackFinished()
	}
}

// externalTrackFinished applies the two overlapping end-of-track
// heuristics, both gated on the file still being the one we started.
func (r *Router) externalTrackFinished(st *moc.Status, file string) bool {
	if file == "" || file != r.lastExternalFile || st.Duration <= 0 {
		return false
	}
	switch st.State {
	case moc.StateStop:
		return st.Position >= st.Duration-r.cfg.FinishEpsilonStopped
	case moc.StatePlay:
		// The process can auto-advance faster than the poll observes.
		return st.Position >= st.Duration-r.cfg.FinishEpsilonPlaying
	}
	return false
}

// pollInternal mirrors the internal pipeline's getters into router state.
func (r *Router) pollInternal() {
	if r.backend != BackendInternal {
		return
	}

	position := r.internal.Position()
	duration := r.internal.Duration()

	if r.op != OpSeeking {
		r.setPosition(position)
	}
	if duration > 0 {
		r.setDuration(duration)
	}

	if r.op == OpSeeking {
		return
	}
	switch {
	case r.internal.IsPlaying():
		r.setState(StatePlaying)
	case r.internal.CurrentPath() != "":
		r.setState(StatePaused)
	default:
		wasPlaying := r.state == StatePlaying
		r.setState(StateStopped)
		if wasPlaying && duration > 0 && position >= duration-r.cfg.FinishEpsilonStopped {
			r.markUserAction()
			r.handleTrackFinished()
		}
	}
}

// onInternalFinished handles the pipeline's end-of-track callback,
// delivered via the event loop.
func (r *Router) onInternalFinished() {
	if r.backend != BackendInternal {
		return
	}
	r.markUserAction()
	r.setState(StateStopped)
	r.handleTrackFinished()
}

// handleTrackFinished applies the auto-advance policy.
func (r *Router) handleTrackFinished() {
	if !r.autonext {
		return
	}
	r.setTimeline(0, 0)

	switch r.loopMode {
	case LoopTrack:
		r.lastExternalFile = ""
		r.onPlay()
	case LoopPlaylist:
		if next := r.model.NextIndex(); next >= 0 {
			r.model.SetCurrentIndex(next)
			r.onPlay()
		} else if r.model.Len() > 0 {
			r.model.SetCurrentIndex(0)
			r.onPlay()
		}
	default:
		if next := r.model.NextIndex(); next >= 0 {
			r.model.SetCurrentIndex(next)
			r.onPlay()
		} else {
			r.onStop()
		}
	}
}

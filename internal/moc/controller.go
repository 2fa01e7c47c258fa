// Package moc adapts the external command-line player (MOC) behind a typed
// controller. All interaction happens through short-lived mocp invocations;
// the controller layers a status cache, failure backoff and playlist-file
// synchronization on top so the router never talks to the binary directly.
package moc

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mgoutay/chorus/internal/config"
	"github.com/mgoutay/chorus/internal/playlist"
)

// Sentinel failures callers can test with errors.Is.
var (
	ErrNotAvailable = errors.New("external player unavailable")
	ErrServerDown   = errors.New("external player server not running")
)

// runner executes one external command and returns its output. Injectable
// for tests.
type runner func(ctx context.Context, name string, args ...string) (stdout, stderr string, err error)

type serverState int

const (
	serverUnknown serverState = iota
	serverUnavailable
	serverStopped
	serverRunning
)

// Controller drives the external player. Not safe for concurrent use; the
// router calls it from the event loop only.
type Controller struct {
	log logrus.FieldLogger
	cfg *config.Config

	bin       string
	available bool
	run       runner
	now       func() time.Time

	server serverState

	cached    *Status
	cachedAt  time.Time
	failures  int
	backoff   time.Duration
	retryAt   time.Time
}

// New locates the external binary and builds a controller. A missing binary
// is not an error; the controller reports unavailable and every call becomes
// a cheap no-op failure.
func New(cfg *config.Config, log logrus.FieldLogger) *Controller {
	c := &Controller{
		log:     log.WithField("component", "moc"),
		cfg:     cfg,
		run:     execRunner(cfg.CommandTimeout),
		now:     time.Now,
		backoff: cfg.BackoffMin,
	}
	if path, err := exec.LookPath(cfg.MocCommand); err == nil {
		c.bin = path
		c.available = true
	} else {
		c.server = serverUnavailable
		c.log.WithField("command", cfg.MocCommand).Warn("external player binary not found")
	}
	return c
}

func execRunner(timeout time.Duration) runner {
	return func(ctx context.Context, name string, args ...string) (string, string, error) {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		cmd := exec.CommandContext(ctx, name, args...)
		var out, errb strings.Builder
		cmd.Stdout = &out
		cmd.Stderr = &errb
		err := cmd.Run()
		return out.String(), errb.String(), err
	}
}

// IsAvailable reports whether the external binary exists on this system.
func (c *Controller) IsAvailable() bool { return c.available }

// PlaylistPath returns the playlist file the external player reads.
func (c *Controller) PlaylistPath() string { return c.cfg.MocPlaylistPath }

// EnsureServer starts the player's server process if it is not already
// running. The result is memoized until a later command reports the server
// gone.
func (c *Controller) EnsureServer(ctx context.Context) error {
	if !c.available {
		return ErrNotAvailable
	}
	if c.server == serverRunning {
		return nil
	}

	_, stderr, err := c.run(ctx, c.bin, "--server")
	if err != nil && !strings.Contains(stderr, "already running") {
		c.server = serverStopped
		return fmt.Errorf("start server: %w", err)
	}
	c.server = serverRunning
	c.log.Debug("external player server running")
	return nil
}

// Status returns the player state, serving a cached copy when the last dump
// is fresh enough. force bypasses the cache. After two consecutive failures
// the controller backs off exponentially, returning the stale cache (or nil)
// until the retry window opens.
func (c *Controller) Status(ctx context.Context, force bool) *Status {
	if !c.available {
		return nil
	}
	now := c.now()
	if !force && c.cached != nil && now.Sub(c.cachedAt) < c.cfg.StatusCacheTTL {
		return c.cached
	}
	if !force && now.Before(c.retryAt) {
		return c.cached
	}

	stdout, stderr, err := c.run(ctx, c.bin, "--info")
	if err != nil {
		c.noteFailure(stderr, err)
		return c.cached
	}

	c.failures = 0
	c.backoff = c.cfg.BackoffMin
	c.retryAt = time.Time{}
	c.server = serverRunning

	st := parseStatus(stdout)
	c.cached = &st
	c.cachedAt = now
	return c.cached
}

func (c *Controller) noteFailure(stderr string, err error) {
	if strings.Contains(stderr, "server is not running") {
		c.server = serverStopped
		c.cached = nil
	}
	c.failures++
	if c.failures >= 2 {
		c.retryAt = c.now().Add(c.backoff)
		c.backoff = min(c.backoff*2, c.cfg.BackoffMax)
	}
	c.log.WithError(err).WithField("failures", c.failures).Debug("status query failed")
}

// invalidate drops the status cache so the next query reflects a command
// just issued.
func (c *Controller) invalidate() {
	c.cached = nil
	c.cachedAt = time.Time{}
}

// command runs a mutating mocp invocation and invalidates the status cache
// on success.
func (c *Controller) command(ctx context.Context, args ...string) error {
	if !c.available {
		return ErrNotAvailable
	}
	_, stderr, err := c.run(ctx, c.bin, args...)
	if err != nil {
		if strings.Contains(stderr, "server is not running") {
			c.server = serverStopped
			c.invalidate()
			return fmt.Errorf("mocp %s: %w", strings.Join(args, " "), ErrServerDown)
		}
		return fmt.Errorf("mocp %s: %w", strings.Join(args, " "), err)
	}
	c.invalidate()
	return nil
}

// Play starts playback of whatever the server has queued.
func (c *Controller) Play(ctx context.Context) error { return c.command(ctx, "--play") }

// Resume unpauses without restarting the current file.
func (c *Controller) Resume(ctx context.Context) error { return c.command(ctx, "--unpause") }

// Pause pauses playback in place.
func (c *Controller) Pause(ctx context.Context) error { return c.command(ctx, "--pause") }

// Stop halts playback.
func (c *Controller) Stop(ctx context.Context) error { return c.command(ctx, "--stop") }

// Next advances to the next queued file.
func (c *Controller) Next(ctx context.Context) error { return c.command(ctx, "--next") }

// Previous steps back to the previous queued file.
func (c *Controller) Previous(ctx context.Context) error { return c.command(ctx, "--previous") }

// SeekRelative seeks by whole seconds from the current position, rounding
// so sub-second deltas above half a second still move. The player only
// understands relative seeks, and ignores them while paused; callers handle
// both quirks.
func (c *Controller) SeekRelative(ctx context.Context, seconds float64) error {
	delta := int(math.Round(seconds))
	if delta == 0 {
		return nil
	}
	return c.command(ctx, "--seek", fmt.Sprintf("%d", delta))
}

// SetVolume sets the output volume, 0.0 to 1.0.
func (c *Controller) SetVolume(ctx context.Context, volume float64) error {
	pct := int(clamp01(volume) * 100)
	return c.command(ctx, "--volume", fmt.Sprintf("%d", pct))
}

// SetAutonext toggles the player's own track auto-advance.
func (c *Controller) SetAutonext(ctx context.Context, on bool) error {
	return c.command(ctx, toggleFlag("autonext", on))
}

// SetShuffle toggles the player's shuffle flag.
func (c *Controller) SetShuffle(ctx context.Context, on bool) error {
	return c.command(ctx, toggleFlag("shuffle", on))
}

// SetRepeat toggles the player's repeat flag.
func (c *Controller) SetRepeat(ctx context.Context, on bool) error {
	return c.command(ctx, toggleFlag("repeat", on))
}

func toggleFlag(name string, on bool) string {
	if on {
		return "--on=" + name
	}
	return "--off=" + name
}

// PlayFile plays a specific file immediately.
func (c *Controller) PlayFile(ctx context.Context, path string) error {
	return c.command(ctx, "--playit", path)
}

// JumpTo selects the playlist entry at index and starts it.
func (c *Controller) JumpTo(ctx context.Context, index int) error {
	if err := c.command(ctx, "-j", fmt.Sprintf("%d", index)); err != nil {
		return err
	}
	return c.command(ctx, "-p")
}

// Shutdown stops the server process.
func (c *Controller) Shutdown(ctx context.Context) error {
	err := c.command(ctx, "--exit")
	if err == nil {
		c.server = serverStopped
	}
	return err
}

// Playlist reads the external playlist file, dropping entries whose files no
// longer exist, and locates currentFile among the survivors. When
// currentFile is empty the currently loaded file from Status is used.
func (c *Controller) Playlist(ctx context.Context, currentFile string) ([]playlist.Track, int, error) {
	tracks, err := readPlaylistFile(c.cfg.MocPlaylistPath)
	if err != nil {
		return nil, -1, err
	}

	kept := tracks[:0]
	for _, t := range tracks {
		if _, err := os.Stat(t.Path); err == nil {
			kept = append(kept, t)
		}
	}

	if currentFile == "" {
		if st := c.Status(ctx, false); st != nil {
			currentFile = st.File
		}
	}

	index := -1
	for i, t := range kept {
		if t.Path == currentFile {
			index = i
			break
		}
	}
	return kept, index, nil
}

// ReplacePlaylist writes tracks to the external playlist file, skipping
// files that do not exist on disk. The returned map translates original
// indices to external-file indices for the entries that survived.
//
// When startPlayback is set the current entry is started afterwards. A
// paused server already sitting on the right file is resumed instead of
// restarted.
func (c *Controller) ReplacePlaylist(ctx context.Context, tracks []playlist.Track, currentIndex int, startPlayback bool) (map[int]int, error) {
	if !c.available {
		return nil, ErrNotAvailable
	}

	remap := make(map[int]int, len(tracks))
	kept := make([]playlist.Track, 0, len(tracks))
	for i, t := range tracks {
		if _, err := os.Stat(t.Path); err != nil {
			c.log.WithField("path", t.Path).Debug("skipping missing file")
			continue
		}
		remap[i] = len(kept)
		kept = append(kept, t)
	}

	if err := writePlaylistFile(c.cfg.MocPlaylistPath, kept); err != nil {
		return nil, fmt.Errorf("write playlist: %w", err)
	}

	if !startPlayback {
		return remap, nil
	}

	extIndex, ok := remap[currentIndex]
	if !ok {
		return remap, nil
	}
	if err := c.EnsureServer(ctx); err != nil {
		return remap, err
	}

	target := kept[extIndex].Path
	if st := c.Status(ctx, true); st != nil && st.State == StatePause && st.File == target {
		return remap, c.Resume(ctx)
	}
	if err := c.PlayFile(ctx, target); err != nil {
		// Some builds lack --playit; fall back to jumping by index.
		return remap, c.JumpTo(ctx, extIndex)
	}
	return remap, nil
}

// AppendPath appends one file to the server's live playlist without
// touching playback.
func (c *Controller) AppendPath(ctx context.Context, path string) error {
	return c.command(ctx, "--append", path)
}

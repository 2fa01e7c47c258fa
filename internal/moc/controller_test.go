package moc

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mgoutay/chorus/internal/config"
	"github.com/mgoutay/chorus/internal/playlist"
)

const sampleInfo = `State: PLAY
File: /music/song.mp3
Title: Artist - Song
Artist: Artist
SongTitle: Song
CurrentTime: 01:05
CurrentSec: 65
TotalTime: 03:20
TotalSec: 200
Bitrate: 192kbps
Rate: 44kHz
Volume: 75%
Shuffle: OFF
Autonext: ON
`

func TestParseStatus(t *testing.T) {
	st := parseStatus(sampleInfo)

	if st.State != StatePlay {
		t.Errorf("State = %q, want PLAY", st.State)
	}
	if st.File != "/music/song.mp3" {
		t.Errorf("File = %q", st.File)
	}
	if st.Position != 65 {
		t.Errorf("Position = %v, want 65", st.Position)
	}
	if st.Duration != 200 {
		t.Errorf("Duration = %v, want 200", st.Duration)
	}
	if st.Volume != 0.75 {
		t.Errorf("Volume = %v, want 0.75", st.Volume)
	}
	if st.Shuffle {
		t.Error("Shuffle = true, want false")
	}
	if !st.Autonext {
		t.Error("Autonext = false, want true")
	}
}

func TestParseStatus_ClockFallback(t *testing.T) {
	st := parseStatus("State: PAUSE\nCurrentTime: 02:30\nTotalTime: 04:00\n")

	if st.State != StatePause {
		t.Errorf("State = %q, want PAUSE", st.State)
	}
	if st.Position != 150 {
		t.Errorf("Position = %v, want 150", st.Position)
	}
	if st.Duration != 240 {
		t.Errorf("Duration = %v, want 240", st.Duration)
	}
}

func TestParseStatus_StoppedDump(t *testing.T) {
	st := parseStatus("State: STOP\n")

	if st.State != StateStop {
		t.Errorf("State = %q, want STOP", st.State)
	}
	if st.File != "" || st.Position != 0 {
		t.Errorf("stopped dump should carry no file/position, got %q/%v", st.File, st.Position)
	}
}

// fakeRun scripts the external binary. Each call records args and returns
// the next queued result.
type fakeRun struct {
	calls   [][]string
	results []fakeResult
}

type fakeResult struct {
	stdout string
	stderr string
	err    error
}

func (f *fakeRun) run(_ context.Context, _ string, args ...string) (string, string, error) {
	f.calls = append(f.calls, args)
	if len(f.results) == 0 {
		return "", "", nil
	}
	r := f.results[0]
	f.results = f.results[1:]
	return r.stdout, r.stderr, r.err
}

func (f *fakeRun) queue(stdout, stderr string, err error) {
	f.results = append(f.results, fakeResult{stdout, stderr, err})
}

func newTestController(t *testing.T) (*Controller, *fakeRun, *time.Time) {
	t.Helper()
	cfg := config.Default()
	cfg.MocPlaylistPath = filepath.Join(t.TempDir(), "playlist.m3u")

	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	fr := &fakeRun{}
	clock := time.Unix(1000, 0)
	c := &Controller{
		log:       log.WithField("component", "moc"),
		cfg:       cfg,
		bin:       "mocp",
		available: true,
		run:       fr.run,
		now:       func() time.Time { return clock },
		backoff:   cfg.BackoffMin,
	}
	return c, fr, &clock
}

func TestStatus_CacheWithinTTL(t *testing.T) {
	c, fr, clock := newTestController(t)
	fr.queue(sampleInfo, "", nil)

	first := c.Status(context.Background(), false)
	if first == nil || first.State != StatePlay {
		t.Fatal("first status missing")
	}

	*clock = clock.Add(100 * time.Millisecond)
	second := c.Status(context.Background(), false)
	if second != first {
		t.Error("expected cached status within TTL")
	}
	if len(fr.calls) != 1 {
		t.Errorf("binary invoked %d times, want 1", len(fr.calls))
	}

	*clock = clock.Add(200 * time.Millisecond)
	fr.queue(sampleInfo, "", nil)
	c.Status(context.Background(), false)
	if len(fr.calls) != 2 {
		t.Errorf("binary invoked %d times after TTL expiry, want 2", len(fr.calls))
	}
}

func TestStatus_ForceBypassesCache(t *testing.T) {
	c, fr, _ := newTestController(t)
	fr.queue(sampleInfo, "", nil)
	fr.queue(sampleInfo, "", nil)

	c.Status(context.Background(), false)
	c.Status(context.Background(), true)

	if len(fr.calls) != 2 {
		t.Errorf("binary invoked %d times, want 2", len(fr.calls))
	}
}

func TestStatus_BackoffAfterTwoFailures(t *testing.T) {
	c, fr, clock := newTestController(t)

	// Seed a cache entry, then let it expire.
	fr.queue(sampleInfo, "", nil)
	cached := c.Status(context.Background(), false)
	*clock = clock.Add(time.Second)

	// One failure does not open the backoff window.
	fr.queue("", "", fmt.Errorf("exit 2"))
	if got := c.Status(context.Background(), false); got != cached {
		t.Error("single failure should return stale cache")
	}
	*clock = clock.Add(time.Second)
	fr.queue("", "", fmt.Errorf("exit 2"))
	c.Status(context.Background(), false)

	// Two consecutive failures: queries inside the window skip the binary.
	calls := len(fr.calls)
	*clock = clock.Add(500 * time.Millisecond)
	if got := c.Status(context.Background(), false); got != cached {
		t.Error("backoff should serve stale cache")
	}
	if len(fr.calls) != calls {
		t.Error("binary invoked during backoff window")
	}

	// Window open again after BackoffMin.
	*clock = clock.Add(600 * time.Millisecond)
	fr.queue(sampleInfo, "", nil)
	c.Status(context.Background(), false)
	if len(fr.calls) != calls+1 {
		t.Error("binary not invoked after backoff expiry")
	}
	if c.failures != 0 || c.backoff != c.cfg.BackoffMin {
		t.Errorf("success should reset failure state, got failures=%d backoff=%v", c.failures, c.backoff)
	}
}

func TestStatus_BackoffDoubles(t *testing.T) {
	c, fr, clock := newTestController(t)

	for range 2 {
		fr.queue("", "", fmt.Errorf("down"))
		c.Status(context.Background(), false)
		*clock = clock.Add(10 * time.Second)
	}
	if c.backoff != 2*time.Second {
		t.Errorf("backoff = %v, want 2s after first window", c.backoff)
	}

	for range 3 {
		fr.queue("", "", fmt.Errorf("down"))
		c.Status(context.Background(), false)
		*clock = clock.Add(10 * time.Second)
	}
	if c.backoff != c.cfg.BackoffMax {
		t.Errorf("backoff = %v, want capped at %v", c.backoff, c.cfg.BackoffMax)
	}
}

func TestCommand_InvalidatesCache(t *testing.T) {
	c, fr, _ := newTestController(t)
	fr.queue(sampleInfo, "", nil)
	c.Status(context.Background(), false)

	fr.queue("", "", nil)
	if err := c.Pause(context.Background()); err != nil {
		t.Fatalf("Pause: %v", err)
	}

	fr.queue(sampleInfo, "", nil)
	c.Status(context.Background(), false)
	if len(fr.calls) != 3 {
		t.Errorf("binary invoked %d times, want 3 (status, pause, fresh status)", len(fr.calls))
	}
}

func TestCommand_ServerGoneResetsState(t *testing.T) {
	c, fr, _ := newTestController(t)
	c.server = serverRunning

	fr.queue("", "FATAL_ERROR: server is not running!", fmt.Errorf("exit 2"))
	if err := c.Stop(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if c.server != serverStopped {
		t.Error("server state should drop to stopped")
	}
}

func TestSeekRelative_RoundsToWholeSeconds(t *testing.T) {
	c, fr, _ := newTestController(t)

	if err := c.SeekRelative(context.Background(), 0.4); err != nil {
		t.Fatal(err)
	}
	if len(fr.calls) != 0 {
		t.Error("near-zero seek should not invoke the binary")
	}

	// Deltas past the half-second mark must round up, not truncate away.
	fr.queue("", "", nil)
	if err := c.SeekRelative(context.Background(), 0.7); err != nil {
		t.Fatal(err)
	}
	if got := fr.calls[0]; got[0] != "--seek" || got[1] != "1" {
		t.Errorf("seek args = %v, want [--seek 1]", got)
	}

	fr.queue("", "", nil)
	if err := c.SeekRelative(context.Background(), -3.7); err != nil {
		t.Fatal(err)
	}
	if got := fr.calls[1]; got[0] != "--seek" || got[1] != "-4" {
		t.Errorf("seek args = %v, want [--seek -4]", got)
	}
}

func TestEnsureServer_Memoized(t *testing.T) {
	c, fr, _ := newTestController(t)
	fr.queue("", "", nil)

	if err := c.EnsureServer(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := c.EnsureServer(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(fr.calls) != 1 {
		t.Errorf("server started %d times, want 1", len(fr.calls))
	}
}

func TestUnavailableController(t *testing.T) {
	c, _, _ := newTestController(t)
	c.available = false

	if c.Status(context.Background(), true) != nil {
		t.Error("Status should be nil when unavailable")
	}
	if err := c.Play(context.Background()); err == nil {
		t.Error("Play should fail when unavailable")
	}
}

func writeFiles(t *testing.T, dir string, names ...string) []playlist.Track {
	t.Helper()
	out := make([]playlist.Track, len(names))
	for i, name := range names {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
		out[i] = playlist.Track{Path: path, Title: name}
	}
	return out
}

func TestReplacePlaylist_SkipsMissingAndRemaps(t *testing.T) {
	c, _, _ := newTestController(t)
	dir := t.TempDir()
	tracks := writeFiles(t, dir, "a.mp3", "b.mp3", "c.mp3")
	tracks = append(tracks[:1], append([]playlist.Track{{Path: filepath.Join(dir, "gone.mp3")}}, tracks[1:]...)...)
	// tracks: a.mp3, gone.mp3, b.mp3, c.mp3

	remap, err := c.ReplacePlaylist(context.Background(), tracks, -1, false)
	if err != nil {
		t.Fatalf("ReplacePlaylist: %v", err)
	}

	want := map[int]int{0: 0, 2: 1, 3: 2}
	if len(remap) != len(want) {
		t.Fatalf("remap = %v, want %v", remap, want)
	}
	for k, v := range want {
		if remap[k] != v {
			t.Errorf("remap[%d] = %d, want %d", k, remap[k], v)
		}
	}

	got, err := readPlaylistFile(c.cfg.MocPlaylistPath)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("playlist file has %d entries, want 3", len(got))
	}
	if got[1].Path != filepath.Join(dir, "b.mp3") {
		t.Errorf("entry 1 = %s, want b.mp3", got[1].Path)
	}
}

func TestReplacePlaylist_ResumesPausedSameFile(t *testing.T) {
	c, fr, _ := newTestController(t)
	dir := t.TempDir()
	tracks := writeFiles(t, dir, "a.mp3")
	c.server = serverRunning

	paused := fmt.Sprintf("State: PAUSE\nFile: %s\n", tracks[0].Path)
	fr.queue(paused, "", nil) // forced status
	fr.queue("", "", nil)     // --unpause

	if _, err := c.ReplacePlaylist(context.Background(), tracks, 0, true); err != nil {
		t.Fatalf("ReplacePlaylist: %v", err)
	}

	last := fr.calls[len(fr.calls)-1]
	if last[0] != "--unpause" {
		t.Errorf("final command = %v, want --unpause", last)
	}
}

func TestPlaylist_ReadsAndLocatesCurrent(t *testing.T) {
	c, _, _ := newTestController(t)
	dir := t.TempDir()
	tracks := writeFiles(t, dir, "a.mp3", "b.mp3")
	if err := writePlaylistFile(c.cfg.MocPlaylistPath, tracks); err != nil {
		t.Fatal(err)
	}

	got, idx, err := c.Playlist(context.Background(), tracks[1].Path)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d tracks, want 2", len(got))
	}
	if idx != 1 {
		t.Errorf("current index = %d, want 1", idx)
	}
}

package moc

import (
	"os"
	"path/filepath"
	"testing"
)

func TestReadPlaylistFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "playlist.m3u")
	content := `#EXTM3U
#EXTINF:215,Some Artist - Some Song
/music/song.mp3

#EXTINF:180,Plain Title
relative/other.ogg
# a comment
/music/bare.flac
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	tracks, err := readPlaylistFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(tracks) != 3 {
		t.Fatalf("got %d tracks, want 3", len(tracks))
	}

	if tracks[0].Artist != "Some Artist" || tracks[0].Title != "Some Song" {
		t.Errorf("track 0 metadata = %q/%q", tracks[0].Artist, tracks[0].Title)
	}
	if tracks[0].Duration != 215 {
		t.Errorf("track 0 duration = %v, want 215", tracks[0].Duration)
	}

	if tracks[1].Path != filepath.Join(dir, "relative/other.ogg") {
		t.Errorf("relative path not resolved: %s", tracks[1].Path)
	}
	if tracks[1].Title != "Plain Title" || tracks[1].Artist != "" {
		t.Errorf("track 1 metadata = %q/%q", tracks[1].Artist, tracks[1].Title)
	}

	// Bare entry without EXTINF falls back to the file stem.
	if tracks[2].Title != "bare" {
		t.Errorf("track 2 title = %q, want bare", tracks[2].Title)
	}
}

func TestWritePlaylistFile_Atomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "playlist.m3u")

	tracks := writeFiles(t, dir, "a.mp3")
	tracks[0].Artist = "A"
	tracks[0].Title = "Alpha"
	tracks[0].Duration = 90.7

	if err := writePlaylistFile(path, tracks); err != nil {
		t.Fatal(err)
	}

	got, err := readPlaylistFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d tracks, want 1", len(got))
	}
	if got[0].Artist != "A" || got[0].Title != "Alpha" || got[0].Duration != 90 {
		t.Errorf("round trip lost metadata: %+v", got[0])
	}

	// No temp files left behind.
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("directory has %d entries, want just the playlist", len(entries))
	}
}

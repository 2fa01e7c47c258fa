package tags

import (
	"os"
	"path/filepath"
	"testing"
)

func TestRead_FallsBackToStem(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "My Song.mp3")
	if err := os.WriteFile(path, []byte("not really audio"), 0o644); err != nil {
		t.Fatal(err)
	}

	info := Read(path)
	if info.Title != "My Song" {
		t.Errorf("Title = %q, want My Song", info.Title)
	}
	if info.Artist != "" {
		t.Errorf("Artist = %q, want empty", info.Artist)
	}
}

func TestRead_MissingFile(t *testing.T) {
	info := Read("/nowhere/track.flac")
	if info.Title != "track" {
		t.Errorf("Title = %q, want track", info.Title)
	}
}

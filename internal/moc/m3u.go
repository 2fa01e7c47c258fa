package moc

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mgoutay/chorus/internal/playlist"
)

// readPlaylistFile parses an extended m3u file into tracks. Lines starting
// with '#' other than EXTINF are skipped, as are blank lines. Relative paths
// are resolved against the playlist's directory.
func readPlaylistFile(path string) ([]playlist.Track, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dir := filepath.Dir(path)
	var out []playlist.Track
	var pending *playlist.Track

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		switch {
		case line == "":
			continue
		case strings.HasPrefix(line, "#EXTINF:"):
			t := parseExtinf(line)
			pending = &t
		case strings.HasPrefix(line, "#"):
			continue
		default:
			t := playlist.Track{Path: line}
			if !filepath.IsAbs(t.Path) {
				t.Path = filepath.Join(dir, t.Path)
			}
			if pending != nil {
				t.Title = pending.Title
				t.Artist = pending.Artist
				t.Duration = pending.Duration
				pending = nil
			}
			if t.Title == "" {
				t.Title = strings.TrimSuffix(filepath.Base(t.Path), filepath.Ext(t.Path))
			}
			out = append(out, t)
		}
	}
	return out, sc.Err()
}

// parseExtinf reads "#EXTINF:<seconds>,Artist - Title" metadata. The artist
// prefix is optional.
func parseExtinf(line string) playlist.Track {
	var t playlist.Track
	body := strings.TrimPrefix(line, "#EXTINF:")
	durPart, label, ok := strings.Cut(body, ",")
	if !ok {
		durPart = body
	}
	if d, err := strconv.ParseFloat(strings.TrimSpace(durPart), 64); err == nil && d > 0 {
		t.Duration = d
	}
	label = strings.TrimSpace(label)
	if artist, title, found := strings.Cut(label, " - "); found {
		t.Artist = strings.TrimSpace(artist)
		t.Title = strings.TrimSpace(title)
	} else {
		t.Title = label
	}
	return t
}

// writePlaylistFile writes tracks as extended m3u, atomically: the content
// goes to a temp file in the same directory and is renamed over the target.
func writePlaylistFile(path string, tracks []playlist.Track) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".playlist-*.m3u")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	fmt.Fprintln(w, "#EXTM3U")
	for _, t := range tracks {
		fmt.Fprintf(w, "#EXTINF:%d,%s\n", int(t.Duration), extinfLabel(t))
		fmt.Fprintln(w, t.Path)
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func extinfLabel(t playlist.Track) string {
	title := t.Title
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(t.Path), filepath.Ext(t.Path))
	}
	if t.Artist != "" {
		return t.Artist + " - " + title
	}
	return title
}

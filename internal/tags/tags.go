// Package tags reads embedded metadata from audio files.
package tags

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/dhowden/tag"
)

// Info is the metadata subset the playlist carries.
type Info struct {
	Title  string
	Artist string
	Album  string
}

// Read extracts metadata from the file at path. Files without readable tags
// fall back to the file stem as title; Read never fails on tag errors.
func Read(path string) Info {
	info := Info{
		Title: strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
	}

	f, err := os.Open(path)
	if err != nil {
		return info
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		return info
	}
	if t := strings.TrimSpace(m.Title()); t != "" {
		info.Title = t
	}
	info.Artist = strings.TrimSpace(m.Artist())
	info.Album = strings.TrimSpace(m.Album())
	return info
}

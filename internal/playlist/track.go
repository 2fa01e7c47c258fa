package playlist

import "github.com/mgoutay/chorus/internal/events"

// Track references a single playable file. Created by the library/metadata
// layer and passed by value; the model never mutates Path, and only
// backfills Duration once known.
type Track struct {
	Path     string // absolute file path
	Title    string
	Artist   string
	Duration float64 // seconds, 0 if unknown
}

// Event converts the track to its event-payload copy.
func (t Track) Event() events.Track {
	return events.Track{
		Path:     t.Path,
		Title:    t.Title,
		Artist:   t.Artist,
		Duration: t.Duration,
	}
}

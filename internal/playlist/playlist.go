// Package playlist holds the ordered track sequence and its cursor.
// The model is the single logical playlist shared by every backend; all
// mutation goes through its methods, and every mutation publishes a
// playlist.changed event whose ContentChanged flag tells the router whether
// an external resynchronization is needed.
package playlist

import (
	"math/rand"
	"path/filepath"

	"github.com/samber/lo"

	"github.com/mgoutay/chorus/internal/events"
)

// Model is an ordered, mutable sequence of tracks plus a current-index
// cursor (-1 means no current track). Not safe for concurrent use; it is
// mutated only from the event loop.
type Model struct {
	bus     *events.Bus
	tracks  []Track
	current int
}

// New creates an empty model publishing changes on bus.
func New(bus *events.Bus) *Model {
	return &Model{bus: bus, current: -1}
}

// Len returns the number of tracks.
func (m *Model) Len() int { return len(m.tracks) }

// CurrentIndex returns the cursor (-1 if none).
func (m *Model) CurrentIndex() int { return m.current }

// CurrentTrack returns the track under the cursor, or nil.
func (m *Model) CurrentTrack() *Track {
	if m.current < 0 || m.current >= len(m.tracks) {
		return nil
	}
	t := m.tracks[m.current]
	return &t
}

// Track returns the track at index, or nil if out of range.
func (m *Model) Track(index int) *Track {
	if index < 0 || index >= len(m.tracks) {
		return nil
	}
	t := m.tracks[index]
	return &t
}

// Snapshot returns an immutable copy of the sequence and the cursor.
func (m *Model) Snapshot() ([]Track, int) {
	out := make([]Track, len(m.tracks))
	copy(out, m.tracks)
	return out, m.current
}

// Add inserts a track at position, or appends when position is out of
// range.
func (m *Model) Add(t Track, position int) {
	m.AddMany([]Track{t}, position)
}

// AddMany inserts tracks at position (append when out of range). The
// cursor keeps pointing at the same track.
func (m *Model) AddMany(tracks []Track, position int) {
	if len(tracks) == 0 {
		return
	}
	if position < 0 || position > len(m.tracks) {
		position = len(m.tracks)
	}
	inserted := append(append([]Track{}, tracks...), m.tracks[position:]...)
	m.tracks = append(m.tracks[:position], inserted...)
	if m.current >= position {
		m.current += len(tracks)
	}
	m.publishContentChanged()
}

// Remove deletes the track at index. Removing the current track clears the
// cursor; removing an earlier track shifts it down.
func (m *Model) Remove(index int) bool {
	if index < 0 || index >= len(m.tracks) {
		return false
	}
	m.tracks = append(m.tracks[:index], m.tracks[index+1:]...)
	switch {
	case index < m.current:
		m.current--
	case index == m.current:
		m.current = -1
	}
	m.publishContentChanged()
	return true
}

// Move relocates the track at from to position to. The cursor follows the
// track it pointed at, never the stale index value.
func (m *Model) Move(from, to int) bool {
	n := len(m.tracks)
	if from < 0 || from >= n || to < 0 || to >= n {
		return false
	}
	if from == to {
		return true
	}
	t := m.tracks[from]
	m.tracks = append(m.tracks[:from], m.tracks[from+1:]...)
	m.tracks = append(m.tracks[:to], append([]Track{t}, m.tracks[to:]...)...)

	switch {
	case m.current == from:
		m.current = to
	case from < m.current && m.current <= to:
		m.current--
	case to <= m.current && m.current < from:
		m.current++
	}
	m.publishContentChanged()
	return true
}

// Clear removes every track and resets the cursor.
func (m *Model) Clear() {
	if len(m.tracks) == 0 && m.current == -1 {
		return
	}
	m.tracks = m.tracks[:0]
	m.current = -1
	m.publishContentChanged()
}

// Shuffle permutes the sequence. When a current track exists it is kept at
// position 0 and the remainder is permuted; otherwise the whole sequence is
// permuted and the cursor is cleared.
func (m *Model) Shuffle(rng *rand.Rand) {
	if len(m.tracks) < 2 {
		return
	}
	if m.current >= 0 && m.current < len(m.tracks) {
		m.tracks[0], m.tracks[m.current] = m.tracks[m.current], m.tracks[0]
		rest := m.tracks[1:]
		rng.Shuffle(len(rest), func(i, j int) {
			rest[i], rest[j] = rest[j], rest[i]
		})
		m.current = 0
	} else {
		rng.Shuffle(len(m.tracks), func(i, j int) {
			m.tracks[i], m.tracks[j] = m.tracks[j], m.tracks[i]
		})
		m.current = -1
	}
	m.publishContentChanged()
}

// SetCurrentIndex moves the cursor. -1 clears it; anything else out of
// range is a no-op. Cursor moves publish current_index_changed and
// track.changed plus a cursor-only playlist.changed, so no resync fires.
func (m *Model) SetCurrentIndex(index int) {
	if index < -1 || index >= len(m.tracks) {
		return
	}
	if index == m.current {
		return
	}
	old := m.current
	m.current = index

	m.bus.Publish(events.PlaylistChanged, events.PlaylistEvent{
		ContentChanged: false,
		Len:            len(m.tracks),
		Index:          m.current,
	})
	m.bus.Publish(events.CurrentIndexChanged, events.IndexEvent{Index: index, OldIndex: old})
	if t := m.CurrentTrack(); t != nil {
		m.bus.Publish(events.TrackChanged, events.TrackEvent{Track: t.Event()})
	} else {
		m.bus.Publish(events.TrackChanged, events.TrackEvent{})
	}
}

// NextIndex returns the sequential successor of the cursor, or -1 at the
// end. Shuffle physically reorders the sequence, so sequential lookahead
// stays correct by construction.
func (m *Model) NextIndex() int {
	if len(m.tracks) == 0 || m.current >= len(m.tracks)-1 {
		return -1
	}
	return m.current + 1
}

// PreviousIndex returns the sequential predecessor, or -1 at the start.
func (m *Model) PreviousIndex() int {
	if m.current <= 0 {
		return -1
	}
	return m.current - 1
}

// Replace swaps the whole sequence and cursor in one step, publishing a
// single content change. Used when adopting the external player's playlist
// file wholesale.
func (m *Model) Replace(tracks []Track, index int) {
	m.tracks = append(m.tracks[:0:0], tracks...)
	if index < 0 || index >= len(m.tracks) {
		index = -1
	}
	m.current = index
	m.publishContentChanged()
	if t := m.CurrentTrack(); t != nil {
		m.bus.Publish(events.TrackChanged, events.TrackEvent{Track: t.Event()})
	}
}

// SetDuration backfills the duration of the track at index once known.
func (m *Model) SetDuration(index int, seconds float64) {
	if index < 0 || index >= len(m.tracks) || seconds <= 0 {
		return
	}
	m.tracks[index].Duration = seconds
}

// IndexOfPath returns the index of the track whose cleaned path matches
// path, or -1.
func (m *Model) IndexOfPath(path string) int {
	want := filepath.Clean(path)
	_, idx, ok := lo.FindIndexOf(m.tracks, func(t Track) bool {
		return filepath.Clean(t.Path) == want
	})
	if !ok {
		return -1
	}
	return idx
}

func (m *Model) publishContentChanged() {
	m.bus.Publish(events.PlaylistChanged, events.PlaylistEvent{
		ContentChanged: true,
		Len:            len(m.tracks),
		Index:          m.current,
	})
}

package moc

import (
	"strconv"
	"strings"
)

// PlayState is the state reported by the external player.
type PlayState string

const (
	StatePlay  PlayState = "PLAY"
	StatePause PlayState = "PAUSE"
	StateStop  PlayState = "STOP"
)

// Status is the typed view of one `mocp --info` dump.
//
// Shuffle and Autonext are best-effort: the external player does not always
// report them reliably, so callers treat them as advisory.
type Status struct {
	State    PlayState
	File     string
	Position float64 // seconds
	Duration float64 // seconds
	Volume   float64 // 0.0 .. 1.0
	Shuffle  bool
	Autonext bool
}

// parseStatus turns the line-oriented `key: value` status dump into a
// Status. Unknown keys are ignored; missing numeric fields fall back to the
// MM:SS textual variants.
func parseStatus(out string) Status {
	info := map[string]string{}
	for _, line := range strings.Split(out, "\n") {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		info[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}

	st := Status{Volume: 1.0}

	switch strings.ToUpper(info["State"]) {
	case "PLAY":
		st.State = StatePlay
	case "PAUSE":
		st.State = StatePause
	default:
		st.State = StateStop
	}

	st.File = info["File"]

	st.Position = parseSeconds(info["CurrentSec"], info["CurrentTime"])
	st.Duration = parseSeconds(info["TotalSec"], info["TotalTime"])

	if vol := strings.TrimSuffix(info["Volume"], "%"); vol != "" {
		if pct, err := strconv.Atoi(strings.TrimSpace(vol)); err == nil {
			st.Volume = clamp01(float64(pct) / 100.0)
		}
	}

	st.Shuffle = strings.EqualFold(info["Shuffle"], "ON")
	st.Autonext = strings.EqualFold(info["Autonext"], "ON")

	return st
}

// parseSeconds reads a plain seconds value, falling back to an MM:SS
// rendering when the numeric field is absent or zero.
func parseSeconds(sec, clock string) float64 {
	if sec != "" {
		if v, err := strconv.ParseFloat(sec, 64); err == nil && v > 0 {
			return v
		}
	}
	mins, secs, ok := strings.Cut(clock, ":")
	if !ok {
		return 0
	}
	m, err1 := strconv.ParseFloat(strings.TrimSpace(mins), 64)
	s, err2 := strconv.ParseFloat(strings.TrimSpace(secs), 64)
	if err1 != nil || err2 != nil {
		return 0
	}
	return m*60 + s
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

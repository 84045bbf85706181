package transcript

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shabdalabs/shabda/internal/types"
)

// ParseTimestamp converts a backend "MM:SS.mmm" timestamp to seconds. The
// portion before the first colon is whole minutes; everything after is
// seconds with fraction. No hour component is assumed.
func ParseTimestamp(ts string) (float64, error) {
	mins, rest, ok := strings.Cut(strings.TrimSpace(ts), ":")
	if !ok {
		return 0, fmt.Errorf("timestamp %q: missing colon", ts)
	}
	m, err := strconv.Atoi(mins)
	if err != nil {
		return 0, fmt.Errorf("timestamp %q: minutes: %w", ts, err)
	}
	sec, err := strconv.ParseFloat(rest, 64)
	if err != nil {
		return 0, fmt.Errorf("timestamp %q: seconds: %w", ts, err)
	}
	return float64(m)*60 + sec, nil
}

// FormatTimestamp renders seconds as "MM:SS.mmm" with exactly 3 decimal
// digits, the format the backend is instructed to emit. Rounding to whole
// milliseconds happens before the minute split so a value just under a
// minute boundary rolls over instead of printing a 60.000 seconds field.
func FormatTimestamp(seconds float64) string {
	ms := int64(math.Round(seconds * 1e3))
	m := ms / 60_000
	s := float64(ms%60_000) / 1e3
	return fmt.Sprintf("%02d:%06.3f", m, s)
}

// FormatPrecise renders seconds as "H:MM:SS.mmmmmm": the persisted form with
// an always-present hour digit and exactly 6 fractional digits. Rounds to
// whole microseconds before splitting, same boundary rule as FormatTimestamp.
func FormatPrecise(seconds float64) string {
	us := int64(math.Round(seconds * 1e6))
	h := us / 3_600_000_000
	m := (us % 3_600_000_000) / 60_000_000
	s := float64(us%60_000_000) / 1e6
	return fmt.Sprintf("%d:%02d:%09.6f", h, m, s)
}

// RescaleTimestamps maps entries transcribed from rate-transformed audio back
// to original-audio time. Audio slowed to factor f plays 1/f times as long,
// so every reported timestamp is multiplied by f. Must run before the merge
// offset is applied. A factor of 1 is the identity.
func RescaleTimestamps(entries []types.WordEntry, factor float64) ([]types.WordEntry, error) {
	if factor == 1 {
		return entries, nil
	}
	out := make([]types.WordEntry, len(entries))
	for i, e := range entries {
		start, err := ParseTimestamp(e.Start)
		if err != nil {
			return nil, err
		}
		end, err := ParseTimestamp(e.End)
		if err != nil {
			return nil, err
		}
		e.Start = FormatTimestamp(start * factor)
		e.End = FormatTimestamp(end * factor)
		out[i] = e
	}
	return out, nil
}

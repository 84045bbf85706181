package transcript

import (
	"sort"

	"github.com/samber/lo"

	"github.com/shabdalabs/shabda/internal/types"
)

// MergeChunks re-offsets each chunk's entries by index*offsetSeconds and
// concatenates them in ascending chunk order. Chunks may have completed in
// any order; this is the single point where the deterministic global order is
// re-imposed. Entries inside a chunk are sorted by start before
// concatenation so backend-local disorder cannot leak into the transcript.
func MergeChunks(byIndex map[int][]types.WordEntry, offsetSeconds float64) ([]types.WordEntry, error) {
	indices := lo.Keys(byIndex)
	sort.Ints(indices)

	var merged []types.WordEntry
	for _, idx := range indices {
		offset := float64(idx) * offsetSeconds

		type timed struct {
			start, end float64
			entry      types.WordEntry
		}
		timeds := make([]timed, 0, len(byIndex[idx]))
		for _, e := range byIndex[idx] {
			start, err := ParseTimestamp(e.Start)
			if err != nil {
				return nil, err
			}
			end, err := ParseTimestamp(e.End)
			if err != nil {
				return nil, err
			}
			timeds = append(timeds, timed{start: start, end: end, entry: e})
		}
		sort.SliceStable(timeds, func(i, j int) bool { return timeds[i].start < timeds[j].start })

		for _, t := range timeds {
			e := t.entry
			e.Start = FormatTimestamp(t.start + offset)
			e.End = FormatTimestamp(t.end + offset)
			merged = append(merged, e)
		}
	}
	return merged, nil
}

package transcript

import (
	"crypto/md5"
	"encoding/hex"
	"regexp"
	"strconv"
	"strings"

	"github.com/shabdalabs/shabda/internal/types"
)

var digitRunRE = regexp.MustCompile(`\d+`)

// AssembleRecord maps a merged word-level transcript into the persisted
// record shape: timestamps reformatted to "H:MM:SS.mmmmmm", end clamped to
// the measured audio duration, word text wrapped as a one-element list, and a
// stable numeric id derived from the filename.
func AssembleRecord(filename string, entries []types.WordEntry, audioDuration float64, logf func(format string, args ...any)) types.TranscriptionRecord {
	if logf == nil {
		logf = func(string, ...any) {}
	}

	annotations := make([]types.AnnotationEntry, 0, len(entries))
	for _, e := range entries {
		start := flexSeconds(e.Start, logf)
		end := flexSeconds(e.End, logf)
		if end > audioDuration {
			end = audioDuration
		}
		annotations = append(annotations, types.AnnotationEntry{
			Start:         FormatPrecise(start),
			End:           FormatPrecise(end),
			Transcription: []string{e.Word},
		})
	}

	return types.TranscriptionRecord{
		ID:          DeriveID(filename),
		Filename:    filename,
		Annotations: annotations,
	}
}

// flexSeconds parses a timestamp defensively: 3-part H:MM:SS, 2-part MM:SS,
// or a bare seconds count. Malformed fields are logged and default to 0.0,
// never aborting assembly of an otherwise valid transcript.
func flexSeconds(ts string, logf func(string, ...any)) float64 {
	ts = strings.TrimSpace(ts)
	if !strings.Contains(ts, ":") {
		v, err := strconv.ParseFloat(ts, 64)
		if err != nil {
			logf("malformed timestamp %q, defaulting to 0.0", ts)
			return 0
		}
		return v
	}
	parts := strings.Split(ts, ":")
	vals := make([]float64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			logf("malformed timestamp %q, defaulting to 0.0", ts)
			return 0
		}
		vals[i] = v
	}
	switch len(vals) {
	case 3:
		return vals[0]*3600 + vals[1]*60 + vals[2]
	case 2:
		return vals[0]*60 + vals[1]
	default:
		logf("malformed timestamp %q, defaulting to 0.0", ts)
		return 0
	}
}

// DeriveID returns the first run of decimal digits in the filename, or a
// deterministic md5-derived fallback in [0, 100000) when no digits exist.
func DeriveID(filename string) int {
	if m := digitRunRE.FindString(filename); m != "" {
		if id, err := strconv.Atoi(m); err == nil {
			return id
		}
	}
	sum := md5.Sum([]byte(filename))
	v, _ := strconv.ParseUint(hex.EncodeToString(sum[:])[:8], 16, 64)
	return int(v % 100000)
}

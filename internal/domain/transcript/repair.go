package transcript

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/shabdalabs/shabda/internal/types"
)

// The backend is instructed to answer with one fenced JSON array, but
// adherence is probabilistic: responses arrive with missing closing fences,
// unterminated timestamp strings, trailing commas, stray control characters
// or an array cut off mid-object. This file is the authoritative gate that
// turns that free-text-adjacent output into validated entries; the prompt is
// only a request.

var (
	fencedJSONRE  = regexp.MustCompile("(?s)```json\\s*(.*?)```")
	openFenceRE   = regexp.MustCompile("(?s)```json\\s*(.*)")
	trailingComma = regexp.MustCompile(`,\s*([\]}])`)
	bareTimestamp = regexp.MustCompile(`"(start|end)":\s*"(\d+:\d+\.\d+)([,\n])`)
)

// ExtractEntries recovers the entry array from raw backend output for one
// chunk, repairing the known malformation modes in order, then validates and
// deduplicates. logf receives non-fatal warnings; any *ParseError returned is
// fatal for the chunk and therefore the asset.
func ExtractEntries(chunk int, raw string, logf func(format string, args ...any)) ([]types.WordEntry, error) {
	if logf == nil {
		logf = func(string, ...any) {}
	}

	body, err := extractFenced(raw)
	if err != nil {
		return nil, &ParseError{Chunk: chunk, Offset: -1, Preview: preview(raw), Err: err}
	}

	body = stripControl(body)
	body = salvageTruncated(body)
	if !strings.HasPrefix(body, "[") {
		body = "[" + body
	}
	if !strings.HasSuffix(body, "]") {
		body += "]"
	}
	body = trailingComma.ReplaceAllString(body, "$1")

	items, perr := parseArray(body)
	if perr != nil {
		// One more pass for the dominant failure mode: a quoted timestamp
		// whose closing quote the model dropped before a comma or newline.
		logf("chunk %d: parse failed at offset %d, attempting timestamp-quote repair", chunk, syntaxOffset(perr))
		body = bareTimestamp.ReplaceAllString(body, `"$1": "$2"$3`)
		items, perr = parseArray(body)
		if perr != nil {
			return nil, &ParseError{Chunk: chunk, Offset: syntaxOffset(perr), Preview: preview(body), Err: perr}
		}
	}

	entries := validateItems(chunk, items, logf)
	if len(entries) == 0 {
		return nil, &ParseError{Chunk: chunk, Offset: -1, Preview: preview(body), Err: errors.New("no valid entries after validation")}
	}
	return dedupeEntries(entries), nil
}

// extractFenced pulls the content of the ```json block. A missing closing
// fence (truncated generation) yields everything after the opening marker. A
// response with no fence at all but starting with JSON punctuation is taken
// as-is; the model sometimes skips the fence entirely, and a MAX_TOKENS cut
// can land before the closing marker. Prose without any JSON shape is fatal.
func extractFenced(raw string) (string, error) {
	if m := fencedJSONRE.FindStringSubmatch(raw); m != nil {
		return strings.TrimSpace(m[1]), nil
	}
	if m := openFenceRE.FindStringSubmatch(raw); m != nil {
		return strings.TrimSpace(m[1]), nil
	}
	if s := strings.TrimSpace(raw); strings.HasPrefix(s, "[") || strings.HasPrefix(s, "{") {
		return s, nil
	}
	return "", errors.New("no fenced JSON block in response")
}

func stripControl(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= 32 || r == '\n' || r == '\r' || r == '\t' {
			return r
		}
		return -1
	}, s)
}

// salvageTruncated cuts a response that stopped mid-object back to the last
// complete object boundary so the surviving entries are kept instead of
// discarding the whole chunk.
func salvageTruncated(s string) string {
	if strings.HasSuffix(s, "]") {
		return s
	}
	last := strings.LastIndex(s, "}")
	if last < 0 {
		return s
	}
	return s[:last+1] + "\n]"
}

func parseArray(body string) ([]map[string]any, error) {
	var items []map[string]any
	if err := json.Unmarshal([]byte(body), &items); err != nil {
		return nil, err
	}
	return items, nil
}

func syntaxOffset(err error) int {
	var serr *json.SyntaxError
	if errors.As(err, &serr) {
		return int(serr.Offset)
	}
	return -1
}

// validateItems enforces the schema the prompt asks for. Entries missing
// start/end are dropped with a warning; word may be synthesized from the
// legacy text/Text field names. Nothing is defaulted to an empty string.
func validateItems(chunk int, items []map[string]any, logf func(string, ...any)) []types.WordEntry {
	out := make([]types.WordEntry, 0, len(items))
	for _, item := range items {
		start, hasStart := item["start"]
		end, hasEnd := item["end"]
		if !hasStart || !hasEnd {
			logf("chunk %d: dropping entry without start/end: %v", chunk, item)
			continue
		}
		word, ok := item["word"]
		if !ok {
			if t, okt := item["Text"]; okt {
				word = t
			} else if t, okt := item["text"]; okt {
				word = t
			} else {
				logf("chunk %d: dropping entry without word field: %v", chunk, item)
				continue
			}
		}
		out = append(out, types.WordEntry{
			Start:    stringify(start),
			End:      stringify(end),
			Word:     stringify(word),
			Language: stringify(item["language"]),
		})
	}
	return out
}

// dedupeEntries collapses entries sharing an identical (start, end) pair.
// Differing texts are space-joined into the surviving entry so the merged
// transcript never carries timestamp collisions.
func dedupeEntries(entries []types.WordEntry) []types.WordEntry {
	type key struct{ start, end string }
	seen := make(map[key]int, len(entries))
	out := make([]types.WordEntry, 0, len(entries))
	for _, e := range entries {
		k := key{e.Start, e.End}
		if i, ok := seen[k]; ok {
			if out[i].Word != e.Word {
				out[i].Word += " " + e.Word
			}
			continue
		}
		seen[k] = len(out)
		out = append(out, e)
	}
	return out
}

func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}

func preview(s string) string {
	r := []rune(s)
	if len(r) <= 200 {
		return s
	}
	return string(r[:200])
}

package transcript

import (
	"errors"
	"strings"
	"testing"

	"github.com/shabdalabs/shabda/internal/types"
)

func TestExtractEntriesWellFormed(t *testing.T) {
	raw := "```json\n[\n{\"start\": \"00:05.120\", \"end\": \"00:05.450\", \"word\": \"hi\", \"language\": \"Gujarati\"}\n]\n```"
	got, err := ExtractEntries(0, raw, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []types.WordEntry{{Start: "00:05.120", End: "00:05.450", Word: "hi", Language: "Gujarati"}}
	if len(got) != 1 || got[0] != want[0] {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestExtractEntriesSalvage(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want int
	}{
		{
			// Missing closing quote before a comma AND no closing fence.
			name: "unterminated timestamp and open fence",
			raw:  "```json\n[{\"start\": \"00:05.120, \"end\": \"00:05.450\", \"word\": \"hi\"}]",
			want: 1,
		},
		{
			name: "truncated mid object",
			raw: "```json\n[\n" +
				"{\"start\": \"00:01.000\", \"end\": \"00:01.500\", \"word\": \"one\"},\n" +
				"{\"start\": \"00:02.000\", \"end\": \"00:02.500\", \"word\": \"two\"},\n" +
				"{\"start\": \"00:03.0",
			want: 2,
		},
		{
			name: "trailing comma",
			raw:  "```json\n[{\"start\": \"00:01.000\", \"end\": \"00:01.500\", \"word\": \"one\"},]\n```",
			want: 1,
		},
		{
			name: "bare object",
			raw:  "```json\n{\"start\": \"00:01.000\", \"end\": \"00:01.500\", \"word\": \"one\"}\n```",
			want: 1,
		},
		{
			name: "control characters",
			raw:  "```json\n[{\"start\": \"00:01.000\", \"end\": \"00:01.500\", \"word\": \"one\x07\"}]\n```",
			want: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractEntries(3, tt.raw, nil)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != tt.want {
				t.Fatalf("got %d entries, want %d: %+v", len(got), tt.want, got)
			}
		})
	}
}

func TestExtractEntriesSalvageExample(t *testing.T) {
	// The canonical malformation: missing closing quote before the field
	// separator, wrapped in a fence with no closing marker.
	raw := "```json\n[{\"start\": \"00:05.120, \"end\": \"00:05.450\", \"word\": \"hi\", \"language\": \"Gujarati\"}]"
	got, err := ExtractEntries(0, raw, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d entries, want 1", len(got))
	}
	if got[0].Start != "00:05.120" || got[0].End != "00:05.450" || got[0].Word != "hi" {
		t.Fatalf("unexpected entry: %+v", got[0])
	}
}

func TestExtractEntriesUnfenced(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want int
	}{
		{
			name: "bare array",
			raw:  `[{"start": "00:01.000", "end": "00:01.400", "word": "one"}]`,
			want: 1,
		},
		{
			name: "bare object",
			raw:  `{"start": "00:01.000", "end": "00:01.400", "word": "one"}`,
			want: 1,
		},
		{
			// A MAX_TOKENS cut can land before the model ever emits a fence.
			name: "bare array truncated mid object",
			raw: `[
{"start": "00:01.000", "end": "00:01.400", "word": "first"},
{"start": "00:02.000", "end": "00:02.40`,
			want: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractEntries(2, tt.raw, nil)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != tt.want {
				t.Fatalf("got %d entries, want %d: %+v", len(got), tt.want, got)
			}
		})
	}

	// Prose with no JSON shape stays fatal.
	if _, err := ExtractEntries(2, "here are your words: one two three", nil); err == nil {
		t.Fatal("expected error for prose without JSON")
	}
}

func TestExtractEntriesLegacyTextField(t *testing.T) {
	raw := "```json\n[{\"start\": \"00:01.000\", \"end\": \"00:01.500\", \"Text\": \"legacy\"}]\n```"
	got, err := ExtractEntries(0, raw, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got[0].Word != "legacy" {
		t.Fatalf("expected word synthesized from Text, got %+v", got[0])
	}
}

func TestExtractEntriesDropsInvalid(t *testing.T) {
	var warnings []string
	logf := func(format string, args ...any) { warnings = append(warnings, format) }
	raw := "```json\n[" +
		"{\"end\": \"00:01.500\", \"word\": \"nostart\"}," +
		"{\"start\": \"00:02.000\", \"end\": \"00:02.500\"}," +
		"{\"start\": \"00:03.000\", \"end\": \"00:03.500\", \"word\": \"keep\"}" +
		"]\n```"
	got, err := ExtractEntries(0, raw, logf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].Word != "keep" {
		t.Fatalf("expected only the valid entry, got %+v", got)
	}
	if len(warnings) != 2 {
		t.Fatalf("expected 2 warnings, got %d", len(warnings))
	}
}

func TestExtractEntriesFailures(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"no fence", "here are your words: one two three"},
		{"unparseable", "```json\nnot json at all\n```"},
		{"all entries invalid", "```json\n[{\"word\": \"orphan\"}]\n```"},
		{"empty array", "```json\n[]\n```"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ExtractEntries(7, tt.raw, nil)
			var perr *ParseError
			if !errors.As(err, &perr) {
				t.Fatalf("expected *ParseError, got %v", err)
			}
			if perr.Chunk != 7 {
				t.Fatalf("expected chunk 7 in error, got %d", perr.Chunk)
			}
			if !strings.Contains(perr.Error(), "chunk 7") {
				t.Fatalf("error should name the chunk: %v", perr)
			}
		})
	}
}

func TestDedupeEntries(t *testing.T) {
	in := []types.WordEntry{
		{Start: "00:01.000", End: "00:01.500", Word: "hello"},
		{Start: "00:01.000", End: "00:01.500", Word: "hello world"},
		{Start: "00:02.000", End: "00:02.500", Word: "same"},
		{Start: "00:02.000", End: "00:02.500", Word: "same"},
	}
	got := dedupeEntries(in)
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d: %+v", len(got), got)
	}
	if got[0].Word != "hello hello world" {
		t.Fatalf("expected concatenated word, got %q", got[0].Word)
	}
	if got[1].Word != "same" {
		t.Fatalf("expected single surviving entry, got %q", got[1].Word)
	}
}

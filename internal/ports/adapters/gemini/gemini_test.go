package gemini

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shabdalabs/shabda/internal/backoff"
	"github.com/shabdalabs/shabda/internal/ports"
)

func instantRetry(attempts int) backoff.Policy {
	return backoff.Policy{
		MaxAttempts:    attempts,
		BaseDelay:      time.Millisecond,
		MaxDelay:       time.Millisecond,
		JitterFraction: 0,
		Sleep:          func(context.Context, time.Duration) error { return nil },
	}
}

func writeChunk(t *testing.T, name string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte("fake-audio-bytes"), 0o644); err != nil {
		t.Fatalf("write chunk: %v", err)
	}
	return p
}

func candidateBody(text, finishReason string) string {
	resp := map[string]any{
		"candidates": []map[string]any{{
			"content":      map[string]any{"parts": []map[string]any{{"text": text}}},
			"finishReason": finishReason,
		}},
	}
	b, _ := json.Marshal(resp)
	return string(b)
}

func TestTranscribeChunkParsesFencedResponse(t *testing.T) {
	var gotReq generateRequest
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.URL.Query().Get("key")
		if !strings.Contains(r.URL.Path, "models/test-model:generateContent") {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		text := "```json\n[{\"start\": \"00:01.000\", \"end\": \"00:01.400\", \"word\": \"namaste\", \"language\": \"Gujarati\"}]\n```"
		w.Write([]byte(candidateBody(text, "STOP")))
	}))
	defer srv.Close()

	a := New("sekrit", "test-model", srv.URL, instantRetry(1), time.Minute, nil)
	entries, err := a.TranscribeChunk(context.Background(), ports.TranscribeRequest{
		Chunk:          0,
		AudioPath:      writeChunk(t, "chunk_000.wav"),
		SourceLanguage: "Gujarati",
		SourceScript:   "Gujarati",
	})
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if len(entries) != 1 || entries[0].Word != "namaste" || entries[0].Start != "00:01.000" {
		t.Fatalf("unexpected entries %+v", entries)
	}

	if gotKey != "sekrit" {
		t.Fatalf("api key not sent as query param, got %q", gotKey)
	}
	if len(gotReq.Contents) != 1 || len(gotReq.Contents[0].Parts) != 2 {
		t.Fatalf("request must carry one content with audio and prompt parts: %+v", gotReq.Contents)
	}
	audioPart := gotReq.Contents[0].Parts[0]
	if audioPart.InlineData == nil || audioPart.InlineData.MimeType != "audio/wav" {
		t.Fatalf("unexpected inline data %+v", audioPart.InlineData)
	}
	if audioPart.InlineData.Data == "" {
		t.Fatal("audio payload missing")
	}
	if !gotReq.GenerationConfig.AudioTimestamp || gotReq.GenerationConfig.MaxOutputTokens != 8192 {
		t.Fatalf("unexpected generation config %+v", gotReq.GenerationConfig)
	}
	if len(gotReq.SafetySettings) != 4 {
		t.Fatalf("expected 4 safety settings, got %d", len(gotReq.SafetySettings))
	}
}

func TestTranscribeChunkRetriesTransientErrors(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(candidateBody(`[{"start": "00:01.000", "end": "00:01.400", "word": "ok", "language": "Hindi"}]`, "STOP")))
	}))
	defer srv.Close()

	a := New("k", "", srv.URL, instantRetry(5), time.Minute, nil)
	entries, err := a.TranscribeChunk(context.Background(), ports.TranscribeRequest{
		Chunk:     3,
		AudioPath: writeChunk(t, "chunk_003.mp3"),
	})
	if err != nil {
		t.Fatalf("transcribe after retries: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected success on third attempt, got %d calls", calls)
	}
	if len(entries) != 1 || entries[0].Word != "ok" {
		t.Fatalf("unexpected entries %+v", entries)
	}
}

func TestTranscribeChunkExhaustsRetries(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"error": "overloaded, key=sekrit"}`))
	}))
	defer srv.Close()

	a := New("sekrit", "", srv.URL, instantRetry(3), time.Minute, nil)
	_, err := a.TranscribeChunk(context.Background(), ports.TranscribeRequest{
		Chunk:     7,
		AudioPath: writeChunk(t, "chunk_007.mp3"),
	})
	if err == nil {
		t.Fatal("expected error after retry exhaustion")
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
	if !strings.Contains(err.Error(), "chunk 7") {
		t.Fatalf("error should name the chunk: %v", err)
	}
	if strings.Contains(err.Error(), "sekrit") {
		t.Fatalf("api key leaked into error: %v", err)
	}
	if !strings.Contains(err.Error(), "[REDACTED]") {
		t.Fatalf("expected redaction marker in error: %v", err)
	}
}

func TestTranscribeChunkWarnsOnTruncation(t *testing.T) {
	truncated := `[
{"start": "00:01.000", "end": "00:01.400", "word": "first", "language": "Hindi"},
{"start": "00:02.000", "end": "00:02.40`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(candidateBody(truncated, "MAX_TOKENS")))
	}))
	defer srv.Close()

	var logged []string
	logf := func(format string, args ...any) {
		logged = append(logged, strings.ToLower(format))
		_ = args
	}
	a := New("k", "", srv.URL, instantRetry(1), time.Minute, logf)
	entries, err := a.TranscribeChunk(context.Background(), ports.TranscribeRequest{
		Chunk:     0,
		AudioPath: writeChunk(t, "chunk_000.mp3"),
	})
	if err != nil {
		t.Fatalf("truncation must not be fatal when salvage succeeds: %v", err)
	}
	if len(entries) != 1 || entries[0].Word != "first" {
		t.Fatalf("expected the complete entry to survive salvage, got %+v", entries)
	}
	warned := false
	for _, l := range logged {
		if strings.Contains(l, "incomplete") {
			warned = true
		}
	}
	if !warned {
		t.Fatalf("expected a truncation warning, logged: %v", logged)
	}
}

func TestMIMEType(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"a.wav", "audio/wav"},
		{"a.WAV", "audio/wav"},
		{"a.m4a", "audio/mp4"},
		{"a.ogg", "audio/ogg"},
		{"a.flac", "audio/flac"},
		{"a.aac", "audio/aac"},
		{"a.mp3", "audio/mpeg"},
		{"noext", "audio/mpeg"},
	}
	for _, tt := range tests {
		if got := MIMEType(tt.path); got != tt.want {
			t.Errorf("MIMEType(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestBuildPrompt(t *testing.T) {
	p := buildPrompt("Telugu", "Telugu", "")
	for _, want := range []string{
		"Telugu audio file",
		"Telugu script",
		"<FIL></FIL>", "<NOISE></NOISE>", "<NPS></NPS>", "<AI></AI>", "<IWP></IWP>",
		"MM:SS.mmm",
		"```json",
	} {
		if !strings.Contains(p, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
	if strings.Contains(p, "REFERENCE PASSAGE") {
		t.Error("reference section should be absent without a passage")
	}

	withRef := buildPrompt("Hindi", "Devanagari", "some known text")
	if !strings.Contains(withRef, "REFERENCE PASSAGE") || !strings.Contains(withRef, "some known text") {
		t.Error("reference section missing when a passage is supplied")
	}
	if !strings.Contains(withRef, "Devanagari script") {
		t.Error("script name not substituted")
	}
}

// Package gemini adapts a Gemini-style generateContent endpoint as the
// chunk transcription backend.
package gemini

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/shabdalabs/shabda/internal/backoff"
	"github.com/shabdalabs/shabda/internal/domain/transcript"
	"github.com/shabdalabs/shabda/internal/ports"
	"github.com/shabdalabs/shabda/internal/types"
)

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com"
	defaultModel   = "gemini-2.0-flash"
	defaultTimeout = 5 * time.Minute
)

type Adapter struct {
	key    string
	model  string
	client *resty.Client
	retry  backoff.Policy
	logf   func(format string, args ...any)
}

// New builds the backend client. The retry policy is injected so schedules
// are testable without real waits; timeout bounds each individual call (the
// backoff envelope sits above it).
func New(apiKey, model, baseURL string, retry backoff.Policy, timeout time.Duration, logf func(format string, args ...any)) *Adapter {
	if model == "" {
		model = defaultModel
	}
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logf == nil {
		logf = func(string, ...any) {}
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")
	return &Adapter{key: apiKey, model: model, client: client, retry: retry, logf: logf}
}

type generateRequest struct {
	Contents         []content       `json:"contents"`
	GenerationConfig generationCfg   `json:"generationConfig"`
	SafetySettings   []safetySetting `json:"safetySettings"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type generationCfg struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
	AudioTimestamp  bool    `json:"audioTimestamp"`
}

type safetySetting struct {
	Category  string `json:"category"`
	Threshold string `json:"threshold"`
}

// Spoken transcripts legitimately contain language every safety category can
// flag; blocking would silently hole the transcript.
var safetyOff = []safetySetting{
	{Category: "HARM_CATEGORY_HATE_SPEECH", Threshold: "BLOCK_NONE"},
	{Category: "HARM_CATEGORY_HARASSMENT", Threshold: "BLOCK_NONE"},
	{Category: "HARM_CATEGORY_SEXUALLY_EXPLICIT", Threshold: "BLOCK_NONE"},
	{Category: "HARM_CATEGORY_DANGEROUS_CONTENT", Threshold: "BLOCK_NONE"},
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
}

// TranscribeChunk issues exactly one request per attempt for the chunk,
// retries transient failures per the injected policy, then repairs and
// validates whatever text came back. A non-STOP finish reason is logged, not
// fatal: the repair layer salvages truncated arrays.
func (a *Adapter) TranscribeChunk(ctx context.Context, req ports.TranscribeRequest) ([]types.WordEntry, error) {
	audio, err := os.ReadFile(req.AudioPath)
	if err != nil {
		return nil, fmt.Errorf("read chunk audio: %w", err)
	}

	body := generateRequest{
		Contents: []content{{Parts: []part{
			{InlineData: &inlineData{
				MimeType: MIMEType(req.AudioPath),
				Data:     base64.StdEncoding.EncodeToString(audio),
			}},
			{Text: buildPrompt(req.SourceLanguage, req.SourceScript, req.ReferencePassage)},
		}}},
		GenerationConfig: generationCfg{
			Temperature:     0.1,
			MaxOutputTokens: 8192,
			AudioTimestamp:  true,
		},
		SafetySettings: safetyOff,
	}

	var out generateResponse
	call := func() error {
		resp, err := a.client.R().
			SetContext(ctx).
			SetQueryParam("key", a.key).
			SetBody(body).
			SetResult(&out).
			Post(fmt.Sprintf("/v1beta/models/%s:generateContent", a.model))
		if err != nil {
			return err
		}
		if resp.IsError() {
			return fmt.Errorf("backend status %d: %s", resp.StatusCode(), a.redact(preview(resp.String())))
		}
		if len(out.Candidates) == 0 {
			return fmt.Errorf("backend returned no candidates")
		}
		return nil
	}
	if err := a.retry.Retry(ctx, call); err != nil {
		return nil, fmt.Errorf("chunk %d: transcription call: %w", req.Chunk, err)
	}

	cand := out.Candidates[0]
	if cand.FinishReason != "" && cand.FinishReason != "STOP" {
		a.logf("chunk %d: response may be incomplete, finish reason %s", req.Chunk, cand.FinishReason)
	}

	var text strings.Builder
	for _, p := range cand.Content.Parts {
		text.WriteString(p.Text)
	}
	return transcript.ExtractEntries(req.Chunk, text.String(), a.logf)
}

func (a *Adapter) redact(s string) string {
	if a.key == "" {
		return s
	}
	return strings.ReplaceAll(s, a.key, "[REDACTED]")
}

func preview(s string) string {
	r := []rune(s)
	if len(r) <= 400 {
		return s
	}
	return string(r[:400])
}

// MIMEType maps an audio file extension to its content type, defaulting to
// audio/mpeg.
func MIMEType(path string) string {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(path), ".")) {
	case "wav":
		return "audio/wav"
	case "m4a":
		return "audio/mp4"
	case "ogg":
		return "audio/ogg"
	case "flac":
		return "audio/flac"
	case "aac":
		return "audio/aac"
	default:
		return "audio/mpeg"
	}
}

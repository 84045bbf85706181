package ffmpeg

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/shabdalabs/shabda/internal/domain/transcript"
	"github.com/shabdalabs/shabda/internal/types"
)

type Adapter struct {
	ffmpeg  string
	ffprobe string
}

func New(ffmpegPath, ffprobePath string) *Adapter {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &Adapter{ffmpeg: ffmpegPath, ffprobe: ffprobePath}
}

func (a *Adapter) Probe(ctx context.Context, path string) (types.AudioAsset, error) {
	cmd := exec.CommandContext(ctx, a.ffprobe,
		"-v", "error",
		"-select_streams", "a:0",
		"-show_entries", "stream=sample_rate",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	b, err := cmd.CombinedOutput()
	if err != nil {
		return types.AudioAsset{}, &transcript.DecodeError{Path: path, Err: fmt.Errorf("ffprobe: %w\n%s", err, string(b))}
	}
	rate, dur, err := parseProbeOutput(string(b))
	if err != nil {
		return types.AudioAsset{}, &transcript.DecodeError{Path: path, Err: err}
	}
	return types.AudioAsset{Path: path, Duration: dur, SampleRate: rate}, nil
}

// parseProbeOutput reads the two flat-format lines ffprobe prints for the
// sample_rate and format duration queries, in that order.
func parseProbeOutput(out string) (rate int, dur float64, err error) {
	lines := strings.Fields(strings.TrimSpace(out))
	if len(lines) < 2 {
		return 0, 0, fmt.Errorf("ffprobe output %q: expected sample rate and duration", out)
	}
	rate, err = strconv.Atoi(lines[0])
	if err != nil {
		return 0, 0, fmt.Errorf("parse sample rate %q: %w", lines[0], err)
	}
	dur, err = strconv.ParseFloat(lines[len(lines)-1], 64)
	if err != nil {
		return 0, 0, fmt.Errorf("parse duration %q: %w", lines[len(lines)-1], err)
	}
	return rate, dur, nil
}

func (a *Adapter) Segment(ctx context.Context, asset types.AudioAsset, chunkSeconds float64, workDir string) ([]types.Chunk, error) {
	// Identity case: one chunk, the original file, nothing rendered.
	if asset.Duration <= chunkSeconds {
		return []types.Chunk{{Index: 0, Path: asset.Path}}, nil
	}

	n := int(math.Ceil(asset.Duration / chunkSeconds))
	ext := filepath.Ext(asset.Path)
	chunks := make([]types.Chunk, 0, n)
	for i := 0; i < n; i++ {
		out := filepath.Join(workDir, fmt.Sprintf("chunk_%03d%s", i, ext))
		cmd := exec.CommandContext(ctx, a.ffmpeg,
			"-y",
			"-i", asset.Path,
			"-ss", fmtSeconds(float64(i)*chunkSeconds),
			"-t", fmtSeconds(chunkSeconds),
			"-c", "copy",
			out,
		)
		if b, err := cmd.CombinedOutput(); err != nil {
			return nil, fmt.Errorf("ffmpeg chunk %d: %w\n%s", i, err, string(b))
		}
		chunks = append(chunks, types.Chunk{Index: i, Path: out, Transient: true})
	}
	return chunks, nil
}

// SlowRate relabels the stream at a reduced sample rate (asetrate), so
// playback slows by factor without resampling the underlying samples. Pitch
// drops accordingly, which is acceptable for transcription.
func (a *Adapter) SlowRate(ctx context.Context, path string, factor float64) (string, error) {
	if factor <= 0 || factor > 1 {
		return "", fmt.Errorf("speed factor %v out of range (0, 1]", factor)
	}
	asset, err := a.Probe(ctx, path)
	if err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp("", "shabda-slow-*.mp3")
	if err != nil {
		return "", err
	}
	tmpPath := tmp.Name()
	tmp.Close()

	newRate := int(float64(asset.SampleRate) * factor)
	cmd := exec.CommandContext(ctx, a.ffmpeg,
		"-y",
		"-i", path,
		"-af", fmt.Sprintf("asetrate=%d", newRate),
		tmpPath,
	)
	if b, err := cmd.CombinedOutput(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("ffmpeg slow rate: %w\n%s", err, string(b))
	}
	return tmpPath, nil
}

func fmtSeconds(sec float64) string {
	return strconv.FormatFloat(sec, 'f', 3, 64)
}

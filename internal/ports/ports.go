package ports

import (
	"context"

	"github.com/shabdalabs/shabda/internal/types"
)

// AudioTool probes, splits and rate-transforms audio assets.
type AudioTool interface {
	// Probe measures duration and sample rate. Failure to decode is fatal
	// for the asset and is reported as a *transcript.DecodeError.
	Probe(ctx context.Context, path string) (types.AudioAsset, error)

	// Segment splits the asset into chunks of at most chunkSeconds, covering
	// it end to end with no gaps. When the asset fits in one chunk the
	// original file is returned as chunk 0 without re-rendering.
	Segment(ctx context.Context, asset types.AudioAsset, chunkSeconds float64, workDir string) ([]types.Chunk, error)

	// SlowRate renders a temporary artifact whose declared sample rate is
	// reduced by factor, slowing playback without resampling. The caller
	// owns deletion of the returned file.
	SlowRate(ctx context.Context, path string, factor float64) (string, error)
}

// TranscribeRequest carries everything needed for one chunk-level call to
// the transcription backend.
type TranscribeRequest struct {
	Chunk            int
	AudioPath        string
	SourceLanguage   string
	SourceScript     string
	TargetLanguage   string
	ReferencePassage string
}

// Transcriber issues one backend call per chunk and returns repaired,
// validated entries in chunk-local time.
type Transcriber interface {
	TranscribeChunk(ctx context.Context, req TranscribeRequest) ([]types.WordEntry, error)
}

// Store is the slice of the persistence collaborator the core depends on: a
// place to put the final record and its audio. Retrieval, listing,
// assignment and flagging live on the concrete store.
type Store interface {
	Save(ctx context.Context, audioPath string, rec types.TranscriptionRecord) (docID string, err error)
}

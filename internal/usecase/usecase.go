package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/shabdalabs/shabda/internal/domain/transcript"
	"github.com/shabdalabs/shabda/internal/ports"
	"github.com/shabdalabs/shabda/internal/types"
)

type Deps struct {
	Audio       ports.AudioTool
	Transcriber ports.Transcriber
	Store       ports.Store // optional; nil skips persistence
}

type Usecase struct{ d Deps }

func New(d Deps) Usecase { return Usecase{d: d} }

type Input struct {
	AudioPath        string
	SourceLanguage   string
	SourceScript     string
	TargetLanguage   string
	ReferencePassage string

	SlowAudio   bool
	SpeedFactor float64

	ChunkOffsetSeconds float64
	Workers            int

	// OutPath is where the record JSON is written on success. Empty skips
	// the file and only persists through the store.
	OutPath  string
	CacheDir string

	Logf func(format string, args ...any)
}

type Result struct {
	Record types.TranscriptionRecord
	DocID  string
}

// Run processes one asset end to end: probe, segment, transcribe each chunk
// through the worker pool, invert any rate transform, merge by chunk offset,
// assemble, then write and persist. Any chunk-level fatal error aborts the
// asset with no partial output.
func (u Usecase) Run(ctx context.Context, in Input) (Result, error) {
	logf := in.Logf
	if logf == nil {
		logf = func(string, ...any) {}
	}

	asset, err := u.d.Audio.Probe(ctx, in.AudioPath)
	if err != nil {
		return Result{}, err
	}
	logf("audio duration %.3fs, sample rate %d", asset.Duration, asset.SampleRate)

	chunks, err := u.d.Audio.Segment(ctx, asset, in.ChunkOffsetSeconds, in.CacheDir)
	if err != nil {
		return Result{}, err
	}
	logf("segmented into %d chunk(s)", len(chunks))

	results, err := u.transcribeAll(ctx, in, chunks, logf)
	if err != nil {
		return Result{}, err
	}

	merged, err := transcript.MergeChunks(results, in.ChunkOffsetSeconds)
	if err != nil {
		return Result{}, err
	}

	rec := transcript.AssembleRecord(filepath.Base(in.AudioPath), merged, asset.Duration, logf)

	if in.OutPath != "" {
		if err := writeRecord(in.OutPath, rec); err != nil {
			return Result{}, err
		}
		logf("record written (%d annotations): %s", len(rec.Annotations), in.OutPath)
	}

	res := Result{Record: rec}
	if u.d.Store != nil {
		docID, err := u.d.Store.Save(ctx, in.AudioPath, rec)
		if err != nil {
			return Result{}, fmt.Errorf("persist record: %w", err)
		}
		logf("persisted as document %s", docID)
		res.DocID = docID
	}
	return res, nil
}

// transcribeAll dispatches chunks to a bounded worker pool and collects
// per-chunk entries keyed by index. The default single worker is deliberate
// backpressure against the rate-limited backend; wider pools still never
// re-order the final transcript because ordering is re-imposed at merge.
func (u Usecase) transcribeAll(ctx context.Context, in Input, chunks []types.Chunk, logf func(string, ...any)) (map[int][]types.WordEntry, error) {
	workers := in.Workers
	if workers <= 0 {
		workers = 1
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		mu       sync.Mutex
		results  = make(map[int][]types.WordEntry, len(chunks))
		firstErr error
		once     sync.Once
		wg       sync.WaitGroup
	)
	jobs := make(chan types.Chunk)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for c := range jobs {
				if ctx.Err() != nil {
					// Drain without transcribing, but still clean up
					// chunk files rendered before the failure.
					if c.Transient {
						os.Remove(c.Path)
					}
					continue
				}
				entries, err := u.processChunk(ctx, in, c, logf)
				if err != nil {
					once.Do(func() {
						firstErr = err
						cancel()
					})
					continue
				}
				mu.Lock()
				results[c.Index] = entries
				mu.Unlock()
			}
		}()
	}
	for _, c := range chunks {
		jobs <- c
	}
	close(jobs)
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return results, nil
}

// processChunk runs the per-chunk leg: optional rate transform, one
// retry-wrapped backend call, then timestamp inversion. Transient artifacts
// are removed on every exit path.
func (u Usecase) processChunk(ctx context.Context, in Input, c types.Chunk, logf func(string, ...any)) ([]types.WordEntry, error) {
	if c.Transient {
		defer os.Remove(c.Path)
	}

	path := c.Path
	factor := 1.0
	if in.SlowAudio {
		logf("chunk %d: slowing audio by %gx for tighter word boundaries", c.Index, in.SpeedFactor)
		slowed, err := u.d.Audio.SlowRate(ctx, c.Path, in.SpeedFactor)
		if err != nil {
			return nil, fmt.Errorf("chunk %d: slow audio: %w", c.Index, err)
		}
		defer os.Remove(slowed)
		path = slowed
		factor = in.SpeedFactor
	}

	entries, err := u.d.Transcriber.TranscribeChunk(ctx, ports.TranscribeRequest{
		Chunk:            c.Index,
		AudioPath:        path,
		SourceLanguage:   in.SourceLanguage,
		SourceScript:     in.SourceScript,
		TargetLanguage:   in.TargetLanguage,
		ReferencePassage: in.ReferencePassage,
	})
	if err != nil {
		return nil, err
	}
	return transcript.RescaleTimestamps(entries, factor)
}

func writeRecord(path string, rec types.TranscriptionRecord) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	return os.WriteFile(path, b, 0o644)
}

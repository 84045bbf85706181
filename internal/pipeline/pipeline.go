package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shabdalabs/shabda/internal/backoff"
	"github.com/shabdalabs/shabda/internal/config"
	"github.com/shabdalabs/shabda/internal/ports"
	"github.com/shabdalabs/shabda/internal/ports/adapters/ffmpeg"
	"github.com/shabdalabs/shabda/internal/ports/adapters/gemini"
	"github.com/shabdalabs/shabda/internal/ports/adapters/store"
	"github.com/shabdalabs/shabda/internal/usecase"
)

type Config struct {
	InputAudio string
	// OutPath overrides the default transcriptions/<stem>.json location
	// next to the input.
	OutPath string

	SourceLanguage string
	TargetLanguage string
	// Reference is either literal passage text or a path to a file holding
	// it; used only as spelling/context guidance.
	Reference string

	SlowAudio   bool
	SpeedFactor float64

	ChunkOffsetSeconds float64
	Workers            int

	FFmpegPath  string
	FFprobePath string

	GeminiAPIKey   string
	GeminiModel    string
	GeminiBaseURL  string
	RequestTimeout time.Duration
	Retry          backoff.Policy

	// DBPath enables the persistence collaborator; empty disables it.
	DBPath  string
	BlobDir string

	// ScriptsFile optionally overrides the built-in language-script table.
	ScriptsFile string

	CacheDir string
	Logf     func(format string, args ...any)
}

func (c Config) Validate() error {
	if c.InputAudio == "" {
		return errors.New("input is empty")
	}
	if _, err := os.Stat(c.InputAudio); err != nil {
		return fmt.Errorf("stat input: %w", err)
	}
	if c.GeminiAPIKey == "" {
		return errors.New("GEMINI_API_KEY is required (set it in .env)")
	}
	if c.SpeedFactor <= 0 || c.SpeedFactor > 1 {
		return fmt.Errorf("speed factor must be in (0, 1], got %v", c.SpeedFactor)
	}
	if c.ChunkOffsetSeconds <= 0 {
		return errors.New("chunk offset must be > 0")
	}
	if c.Workers < 0 {
		return errors.New("workers must be >= 0")
	}
	if c.DBPath != "" && c.BlobDir == "" {
		return errors.New("blob dir is required when a database path is set")
	}
	return nil
}

func Run(ctx context.Context, cfg Config) (usecase.Result, error) {
	logf := cfg.Logf
	if logf == nil {
		logf = func(string, ...any) {}
	}

	scripts := config.DefaultScripts()
	if cfg.ScriptsFile != "" {
		var err error
		if scripts, err = config.LoadScripts(cfg.ScriptsFile); err != nil {
			return usecase.Result{}, err
		}
	}

	reference, err := resolveReference(cfg.Reference)
	if err != nil {
		return usecase.Result{}, err
	}

	retry := cfg.Retry
	if retry.MaxAttempts == 0 {
		retry = backoff.Default()
	}

	audio := ffmpeg.New(cfg.FFmpegPath, cfg.FFprobePath)
	transcriber := gemini.New(cfg.GeminiAPIKey, cfg.GeminiModel, cfg.GeminiBaseURL, retry, cfg.RequestTimeout, logf)

	var docs ports.Store
	if cfg.DBPath != "" {
		st, err := store.Open(cfg.DBPath, cfg.BlobDir)
		if err != nil {
			return usecase.Result{}, err
		}
		defer st.Close()
		docs = st
	}

	baseCache := cfg.CacheDir
	if baseCache == "" {
		baseCache = ".cache"
	}
	cacheDir := filepath.Join(baseCache, "runs", hash(cfg.InputAudio))
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return usecase.Result{}, err
	}
	logf("cache: %s", cacheDir)

	outPath := cfg.OutPath
	if outPath == "" {
		stem := strings.TrimSuffix(filepath.Base(cfg.InputAudio), filepath.Ext(cfg.InputAudio))
		outPath = filepath.Join(filepath.Dir(cfg.InputAudio), "transcriptions", stem+".json")
	}

	uc := usecase.New(usecase.Deps{
		Audio:       audio,
		Transcriber: transcriber,
		Store:       docs,
	})
	return uc.Run(ctx, usecase.Input{
		AudioPath:          cfg.InputAudio,
		SourceLanguage:     cfg.SourceLanguage,
		SourceScript:       scripts.Lookup(cfg.SourceLanguage),
		TargetLanguage:     cfg.TargetLanguage,
		ReferencePassage:   reference,
		SlowAudio:          cfg.SlowAudio,
		SpeedFactor:        cfg.SpeedFactor,
		ChunkOffsetSeconds: cfg.ChunkOffsetSeconds,
		Workers:            cfg.Workers,
		OutPath:            outPath,
		CacheDir:           cacheDir,
		Logf:               logf,
	})
}

// resolveReference treats the argument as a file path when one exists, else
// as the literal passage.
func resolveReference(ref string) (string, error) {
	if ref == "" {
		return "", nil
	}
	if st, err := os.Stat(ref); err == nil && !st.IsDir() {
		b, err := os.ReadFile(ref)
		if err != nil {
			return "", fmt.Errorf("read reference passage: %w", err)
		}
		return strings.TrimSpace(string(b)), nil
	}
	return ref, nil
}

func hash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:12]
}

// compile-time adapter checks
var (
	_ ports.AudioTool   = (*ffmpeg.Adapter)(nil)
	_ ports.Transcriber = (*gemini.Adapter)(nil)
	_ ports.Store       = (*store.Store)(nil)
)

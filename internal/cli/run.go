package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shabdalabs/shabda/internal/pipeline"
	"github.com/shabdalabs/shabda/internal/usecase"
)

var audioExtensions = map[string]bool{
	".mp3": true, ".wav": true, ".m4a": true, ".flac": true, ".aac": true, ".ogg": true,
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := configFromFlags(cmd, args[0], tail(args, 1), tail(args, 2))
	if err != nil {
		return err
	}
	if len(args) > 3 {
		cfg.Reference = args[3]
	}

	res, err := pipeline.Run(context.Background(), cfg)
	if err != nil {
		return err
	}
	printSummary(cmd.OutOrStdout(), res)
	return nil
}

func runBatch(cmd *cobra.Command, args []string) error {
	dir := args[0]
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && audioExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	if len(files) == 0 {
		return fmt.Errorf("no audio files in %s", dir)
	}

	out := cmd.OutOrStdout()
	var failed []string
	for i, f := range files {
		fmt.Fprintf(out, "[%d/%d] %s\n", i+1, len(files), filepath.Base(f))
		cfg, err := configFromFlags(cmd, f, tail(args, 1), tail(args, 2))
		if err != nil {
			return err
		}
		res, err := pipeline.Run(context.Background(), cfg)
		if err != nil {
			fmt.Fprintf(out, "  failed: %v\n", err)
			failed = append(failed, filepath.Base(f))
			continue
		}
		fmt.Fprintf(out, "  ok: %d annotations (id %d)\n", len(res.Record.Annotations), res.Record.ID)
	}

	fmt.Fprintf(out, "processed %d file(s), %d failed\n", len(files), len(failed))
	if len(failed) > 0 {
		return fmt.Errorf("failed: %s", strings.Join(failed, ", "))
	}
	return nil
}

func configFromFlags(cmd *cobra.Command, input, sourceLang, targetLang string) (pipeline.Config, error) {
	if sourceLang == "" {
		sourceLang = "Gujarati"
	}
	if targetLang == "" {
		targetLang = "English"
	}

	outPath, _ := cmd.Flags().GetString("out")
	slow, _ := cmd.Flags().GetBool("slow")
	speed, _ := cmd.Flags().GetFloat64("speed")
	chunkOffset, _ := cmd.Flags().GetFloat64("chunk-offset")
	workers, _ := cmd.Flags().GetInt("workers")
	dbPath, _ := cmd.Flags().GetString("db")
	blobDir, _ := cmd.Flags().GetString("blobs")
	scriptsFile, _ := cmd.Flags().GetString("scripts")

	if env := os.Getenv("SHABDA_WORKERS"); env != "" {
		if v, err := strconv.Atoi(env); err == nil {
			workers = v
		}
	}

	absIn, err := filepath.Abs(input)
	if err != nil {
		return pipeline.Config{}, err
	}

	cfg := pipeline.Config{
		InputAudio:         absIn,
		OutPath:            outPath,
		SourceLanguage:     sourceLang,
		TargetLanguage:     targetLang,
		SlowAudio:          slow,
		SpeedFactor:        speed,
		ChunkOffsetSeconds: chunkOffset,
		Workers:            workers,
		FFmpegPath:         "ffmpeg",
		FFprobePath:        "ffprobe",
		GeminiAPIKey:       os.Getenv("GEMINI_API_KEY"),
		GeminiModel:        getenvDefault("GEMINI_MODEL", "gemini-2.0-flash"),
		GeminiBaseURL:      os.Getenv("GEMINI_BASE_URL"),
		DBPath:             dbPath,
		BlobDir:            blobDir,
		ScriptsFile:        scriptsFile,
		Logf: func(format string, args ...any) {
			fmt.Fprintf(cmd.ErrOrStderr(), format+"\n", args...)
		},
	}
	if err := cfg.Validate(); err != nil {
		return pipeline.Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func printSummary(w io.Writer, res usecase.Result) {
	const sample = 5
	fmt.Fprintf(w, "%-22s %-22s %s\n", "Start", "End", "Transcription")
	for i, a := range res.Record.Annotations {
		if i >= sample {
			fmt.Fprintf(w, "… %d more\n", len(res.Record.Annotations)-sample)
			break
		}
		text := ""
		if len(a.Transcription) > 0 {
			text = a.Transcription[0]
		}
		fmt.Fprintf(w, "%-22s %-22s %s\n", a.Start, a.End, text)
	}
	fmt.Fprintf(w, "total annotations: %d | file id: %d | %s\n",
		len(res.Record.Annotations), res.Record.ID, res.Record.Filename)
	if res.DocID != "" {
		fmt.Fprintf(w, "document id: %s\n", res.DocID)
	}
}

func tail(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}

func getenvDefault(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

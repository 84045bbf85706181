package cli

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func Main() {
	_ = godotenv.Load() // best-effort: load .env if present

	root := &cobra.Command{
		Use:          "shabda <audio> [source_lang] [target_lang] [reference]",
		Short:        "Word-level transcription of spoken audio with disfluency tags",
		Args:         cobra.RangeArgs(1, 4),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, args)
		},
	}

	root.SetOut(os.Stdout)
	root.SetErr(os.Stderr)
	root.SilenceErrors = true

	addFlags(root)

	batch := &cobra.Command{
		Use:          "batch <dir> [source_lang] [target_lang]",
		Short:        "Process every audio file in a directory, continuing past failures",
		Args:         cobra.RangeArgs(1, 3),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd, args)
		},
	}
	addFlags(batch)
	root.AddCommand(batch)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func addFlags(cmd *cobra.Command) {
	cmd.Flags().String("out", "", "Output JSON path (default: transcriptions/<stem>.json next to input)")
	cmd.Flags().Bool("slow", false, "Slow audio before transcription for tighter word boundaries")
	cmd.Flags().Float64("speed", 0.5, "Speed factor for --slow, in (0, 1]")
	cmd.Flags().Float64("chunk-offset", 100, "Chunk duration and merge offset in seconds")
	cmd.Flags().Int("workers", 1, "Concurrent in-flight transcription calls")
	cmd.Flags().String("db", "", "SQLite path for the document store (disabled when empty)")
	cmd.Flags().String("blobs", "", "Directory for stored audio blobs (required with --db)")
	cmd.Flags().String("scripts", "", "YAML file overriding the language-script table")
}

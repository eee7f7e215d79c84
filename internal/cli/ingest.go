package cli

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"docqa/internal/adapter/fs"
	"docqa/internal/port"
	"docqa/internal/usecase"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var (
	ingestForce   bool
	ingestWorkers int
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [path...]",
	Short: "Ingest documents into the index",
	Long: `Extract, chunk and embed PDF, text and markdown files. Directories are
walked using the include/exclude globs from the config. Files unchanged since
their last ingest are skipped unless --force is given.

Examples:
  docqa ingest .                      # Ingest the current directory
  docqa ingest report.pdf notes.txt   # Ingest specific files
  docqa ingest ./docs --force -w 8    # Re-ingest everything with 8 workers`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
	ingestCmd.Flags().BoolVarP(&ingestForce, "force", "f", false, "re-ingest unchanged files")
	ingestCmd.Flags().IntVarP(&ingestWorkers, "workers", "w", 0, "concurrent files (default from config)")
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if a.migration.NeedsRebuild {
		fmt.Printf("Index rebuild required: %s\n", a.migration.Reason)
		batch, err := a.rebuild(ctx, nil)
		if err != nil {
			return fmt.Errorf("rebuild failed: %w", err)
		}
		fmt.Printf("Rebuilt %d documents.\n", batch.Indexed)
	}

	var walker port.FileWalker = fs.NewWalker(a.cfg.Ingest.Includes, a.cfg.Ingest.Excludes)
	var files []port.FileInfo
	for _, arg := range args {
		path, err := filepath.Abs(arg)
		if err != nil {
			return fmt.Errorf("invalid path: %w", err)
		}
		fmt.Printf("Scanning %s...\n", path)
		found, err := walker.Walk(path)
		if err != nil {
			return fmt.Errorf("failed to scan %s: %w", path, err)
		}
		for _, f := range found {
			if a.extractor.Supports(f.Path) {
				files = append(files, f)
			}
		}
	}
	if len(files) == 0 {
		fmt.Println("No supported documents found.")
		return nil
	}

	workers := a.cfg.Ingest.Workers
	if ingestWorkers > 0 {
		workers = ingestWorkers
	}

	bar := newProgressBar(len(files), "Ingesting")
	var (
		barMu     sync.Mutex
		processed int
		start     = time.Now()
	)
	onFile := func(path string, err error) {
		barMu.Lock()
		defer barMu.Unlock()

		processed++
		bar.Set(processed)
		elapsed := time.Since(start)
		if rate := float64(processed) / elapsed.Seconds(); rate > 0 {
			eta := time.Duration(float64(len(files)-processed)/rate) * time.Second
			bar.Describe(fmt.Sprintf("[cyan]Ingesting[reset] ETA: %s", formatDuration(eta)))
		}
	}

	batch, err := a.pipeline.Ingestion().IngestFiles(ctx, files, usecase.BatchOptions{
		Workers: workers,
		Force:   ingestForce,
		OnFile:  onFile,
	})
	bar.Finish()
	if err != nil {
		return fmt.Errorf("ingestion interrupted: %w", err)
	}

	chunks, tokens := 0, 0
	for _, r := range batch.Results {
		chunks += r.ChunksCreated
		tokens += r.TotalTokens
	}

	fmt.Printf("\nIngestion complete:\n")
	fmt.Printf("  Files ingested: %d\n", batch.Indexed)
	fmt.Printf("  Files skipped:  %d (unchanged)\n", batch.Skipped)
	fmt.Printf("  Chunks created: %d\n", chunks)
	fmt.Printf("  Tokens:         %d\n", tokens)

	var failures int
	for _, r := range batch.Results {
		failures += len(r.EmbeddingFailures)
	}
	if failures > 0 {
		fmt.Printf("  Not embedded:   %d chunks\n", failures)
	}

	if len(batch.Errors) > 0 {
		fmt.Printf("\nWarnings:\n")
		for _, e := range batch.Errors {
			fmt.Printf("  - %s\n", e)
		}
	}
	return nil
}

func newProgressBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowBytes(false),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetDescription("[cyan]"+description+"[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			fmt.Println()
		}),
	)
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return "<1s"
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm%ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh%dm", h, m)
}

package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"mediakeep/app/parser"
	"mediakeep/app/storage"
)

// FullPipelineTask runs the whole intake flow: scan the notes, register new
// links, validate them, then scrape the ones that turned out accessible.
type FullPipelineTask struct {
	Task
	runner    *Runner
	sourceDir string
	pattern   string
	recursive bool
	summary   string
}

var _ TaskInterface = (*FullPipelineTask)(nil)

func NewFullPipelineTask(runner *Runner, sourceDir, pattern string, recursive bool) *FullPipelineTask {
	return &FullPipelineTask{
		Task:      NewTask(TaskTypeFullPipeline),
		runner:    runner,
		sourceDir: sourceDir,
		pattern:   pattern,
		recursive: recursive,
	}
}

func (t *FullPipelineTask) Execute(ctx context.Context) error {
	tracker := t.runner.tracker
	tracker.SetProgress(0, "Scanning note files")

	collection, err := parser.ScanDirectory(t.sourceDir, t.pattern, t.recursive)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	var fresh []*storage.Record
	for _, link := range collection.Unique() {
		id := link.ID()
		if t.runner.store.Exists(id) {
			continue
		}
		record := &storage.Record{
			ID:            id,
			URL:           parser.Normalize(link.URL),
			Platform:      link.Platform,
			Status:        storage.StatusPending,
			SourceFile:    link.SourceFile,
			SourceContext: link.Context,
		}
		if err := t.runner.store.Save(record); err != nil {
			tracker.AppendError(fmt.Sprintf("%s: %v", id, err))
			continue
		}
		fresh = append(fresh, record)
	}

	slog.Info("Pipeline scan finished", "files", len(collection.SourceFiles()), "links", collection.Len(), "new", len(fresh))

	tracker.SetTotal(len(fresh))
	validate := NewValidateLinksTask(t.runner.store, t.runner.validator, tracker, t.runner.validateLimiter, fresh)
	if err := validate.Execute(ctx); err != nil {
		return err
	}

	var accessible []*storage.Record
	for _, record := range fresh {
		if record.Status == storage.StatusAccessible {
			accessible = append(accessible, record)
		}
	}

	tracker.SetTotal(len(accessible))
	tracker.SetProgress(0, "Scraping accessible posts")
	scrape := NewScrapeMetadataTask(t.runner.store, t.runner.scrapers, t.runner.downloader, tracker, t.runner.scrapeLimiter, accessible)
	if err := scrape.Execute(ctx); err != nil {
		return err
	}

	t.summary = fmt.Sprintf("Pipeline finished: %d new, %d accessible, %d scanned", len(fresh), len(accessible), collection.Len())
	return nil
}

// Summary describes what the pipeline did, for the tracker's final message.
func (t *FullPipelineTask) Summary() string {
	return t.summary
}

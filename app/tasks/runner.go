package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"mediakeep/app/downloader"
	"mediakeep/app/scraper"
	"mediakeep/app/storage"
	"mediakeep/app/validator"
)

// ErrTaskRunning is returned when a task is requested while another one
// holds the tracker.
var ErrTaskRunning = errors.New("another task is already running")

// Runner owns the background goroutine that executes stage tasks, one at a
// time, with per-stage courtesy pacing between items.
type Runner struct {
	store      *storage.Store
	validator  *validator.Validator
	scrapers   *scraper.Registry
	downloader *downloader.Downloader
	tracker    *Tracker

	validateLimiter *rate.Limiter
	scrapeLimiter   *rate.Limiter
	downloadLimiter *rate.Limiter

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewRunner(store *storage.Store, v *validator.Validator, scrapers *scraper.Registry, dl *downloader.Downloader, tracker *Tracker) *Runner {
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		store:           store,
		validator:       v,
		scrapers:        scrapers,
		downloader:      dl,
		tracker:         tracker,
		validateLimiter: rate.NewLimiter(rate.Every(500*time.Millisecond), 1),
		scrapeLimiter:   rate.NewLimiter(rate.Every(time.Second), 1),
		downloadLimiter: rate.NewLimiter(rate.Every(500*time.Millisecond), 1),
		ctx:             ctx,
		cancel:          cancel,
	}
}

func (r *Runner) Tracker() *Tracker {
	return r.tracker
}

// launch claims the tracker and runs the task in the background. The claim
// happens synchronously so callers can report a conflict immediately.
func (r *Runner) launch(task TaskInterface, label string, total int, doneMessage func() string) error {
	if !r.tracker.TryStart(label, total) {
		return ErrTaskRunning
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		task.Start()
		slog.Info("Task started", "type", task.GetType(), "task_id", task.GetID(), "total", total)

		err := task.Execute(r.ctx)
		message := doneMessage()
		if err != nil {
			message = fmt.Sprintf("%s failed: %v", label, err)
			slog.Error("Task failed", "type", task.GetType(), "task_id", task.GetID(), "error", err)
		} else {
			slog.Info("Task completed", "type", task.GetType(), "task_id", task.GetID(), "duration", task.GetDuration())
		}

		r.tracker.Finish(message)
	}()

	return nil
}

func (r *Runner) StartValidate(records []*storage.Record) error {
	task := NewValidateLinksTask(r.store, r.validator, r.tracker, r.validateLimiter, records)
	return r.launch(task, "validate_links", len(records), func() string {
		return fmt.Sprintf("Validated %d links", len(records))
	})
}

func (r *Runner) StartScrape(records []*storage.Record) error {
	task := NewScrapeMetadataTask(r.store, r.scrapers, r.downloader, r.tracker, r.scrapeLimiter, records)
	return r.launch(task, "scrape_metadata", len(records), func() string {
		return fmt.Sprintf("Scraped %d posts", len(records))
	})
}

func (r *Runner) StartDownload(records []*storage.Record) error {
	task := NewDownloadMediaTask(r.store, r.downloader, r.tracker, r.downloadLimiter, records)
	return r.launch(task, "download_media", len(records), func() string {
		return fmt.Sprintf("Downloaded media for %d posts", len(records))
	})
}

func (r *Runner) StartPipeline(sourceDir, pattern string, recursive bool) error {
	task := NewFullPipelineTask(r, sourceDir, pattern, recursive)
	return r.launch(task, "full_pipeline", 0, task.Summary)
}

// Stop cancels the running task and waits for its goroutine to exit.
func (r *Runner) Stop() {
	r.cancel()
	r.wg.Wait()
}

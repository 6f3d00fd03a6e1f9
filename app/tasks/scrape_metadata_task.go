package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/time/rate"

	"mediakeep/app/downloader"
	"mediakeep/app/scraper"
	"mediakeep/app/storage"
)

// ScrapeMetadataTask runs the platform scraper for each candidate record. A
// failed scrape only records the error; previously scraped fields stay so
// the dashboard keeps showing the last good data.
type ScrapeMetadataTask struct {
	Task
	store      *storage.Store
	scrapers   *scraper.Registry
	downloader *downloader.Downloader
	tracker    *Tracker
	limiter    *rate.Limiter
	records    []*storage.Record
}

var _ TaskInterface = (*ScrapeMetadataTask)(nil)

func NewScrapeMetadataTask(store *storage.Store, scrapers *scraper.Registry, dl *downloader.Downloader, tracker *Tracker, limiter *rate.Limiter, records []*storage.Record) *ScrapeMetadataTask {
	return &ScrapeMetadataTask{
		Task:       NewTask(TaskTypeScrapeMetadata),
		store:      store,
		scrapers:   scrapers,
		downloader: dl,
		tracker:    tracker,
		limiter:    limiter,
		records:    records,
	}
}

func (t *ScrapeMetadataTask) Execute(ctx context.Context) error {
	for i, record := range t.records {
		t.tracker.SetProgress(i, fmt.Sprintf("Scraping %s", record.URL))

		result := t.scrapers.Run(ctx, record.URL)
		if result.Success {
			applyScrapeResult(record, result)
			t.fetchThumbnail(ctx, record)
		} else {
			record.ErrorMessage = result.ErrorMessage
			t.tracker.AppendError(fmt.Sprintf("%s: %s", record.URL, result.ErrorMessage))
		}

		if err := t.store.Save(record); err != nil {
			t.tracker.AppendError(fmt.Sprintf("%s: %v", record.ID, err))
			slog.Warn("Failed to save scraped record", "id", record.ID, "error", err)
		} else if result.Success {
			t.tracker.PushRecent(RecentResult{
				ID:            record.ID,
				URL:           record.URL,
				Platform:      record.Platform,
				Author:        record.Author,
				Content:       record.Content,
				Views:         record.Views,
				Likes:         record.Likes,
				ThumbnailPath: record.ThumbnailPath,
			})
		}

		t.tracker.SetProgress(i+1, "")

		if err := t.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	return nil
}

func applyScrapeResult(record *storage.Record, result scraper.Result) {
	record.Author = result.Author
	record.AuthorURL = result.AuthorURL
	record.Title = result.Title
	record.Content = result.Content
	record.PostedAt = result.PostedAt
	record.ScrapedAt = &result.ScrapedAt
	record.Views = result.Views
	record.Likes = result.Likes
	record.Comments = result.Comments
	record.Shares = result.Shares
	record.ThumbnailURL = result.ThumbnailURL
	record.MediaURLs = result.MediaURLs
	record.MediaType = result.MediaType
	record.ErrorMessage = ""
}

// fetchThumbnail opportunistically grabs a preview image right after a
// successful scrape. Failures are not errors; the dashboard just shows no
// image until a media download runs.
func (t *ScrapeMetadataTask) fetchThumbnail(ctx context.Context, record *storage.Record) {
	if record.ThumbnailPath != "" {
		return
	}
	path, err := t.downloader.DownloadThumbnail(ctx, record.URL, record.ID)
	if err != nil {
		slog.Debug("Thumbnail fetch skipped", "id", record.ID, "error", err)
		return
	}
	record.ThumbnailPath = path
}

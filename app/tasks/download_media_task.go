package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/time/rate"

	"mediakeep/app/downloader"
	"mediakeep/app/storage"
)

// DownloadMediaTask fetches media files for each candidate record.
type DownloadMediaTask struct {
	Task
	store      *storage.Store
	downloader *downloader.Downloader
	tracker    *Tracker
	limiter    *rate.Limiter
	records    []*storage.Record
}

var _ TaskInterface = (*DownloadMediaTask)(nil)

func NewDownloadMediaTask(store *storage.Store, dl *downloader.Downloader, tracker *Tracker, limiter *rate.Limiter, records []*storage.Record) *DownloadMediaTask {
	return &DownloadMediaTask{
		Task:       NewTask(TaskTypeDownloadMedia),
		store:      store,
		downloader: dl,
		tracker:    tracker,
		limiter:    limiter,
		records:    records,
	}
}

func (t *DownloadMediaTask) Execute(ctx context.Context) error {
	for i, record := range t.records {
		t.tracker.SetProgress(i, fmt.Sprintf("Downloading %s", record.URL))

		outcome := t.downloader.Download(ctx, record.URL, record.ID, record.Author, record.MediaURLs)
		if outcome.Success {
			record.MediaPaths = outcome.MediaPaths
			if outcome.ThumbnailPath != "" {
				record.ThumbnailPath = outcome.ThumbnailPath
			}
			record.ErrorMessage = ""
		} else {
			record.ErrorMessage = outcome.ErrorMessage
			t.tracker.AppendError(fmt.Sprintf("%s: %s", record.URL, outcome.ErrorMessage))
		}

		if err := t.store.Save(record); err != nil {
			t.tracker.AppendError(fmt.Sprintf("%s: %v", record.ID, err))
			slog.Warn("Failed to save downloaded record", "id", record.ID, "error", err)
		}

		t.tracker.SetProgress(i+1, "")

		if err := t.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	return nil
}

package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/time/rate"

	"mediakeep/app/storage"
	"mediakeep/app/validator"
)

// ValidateLinksTask probes each candidate record's URL and folds the probe
// outcome into the record status.
type ValidateLinksTask struct {
	Task
	store     *storage.Store
	validator *validator.Validator
	tracker   *Tracker
	limiter   *rate.Limiter
	records   []*storage.Record
}

var _ TaskInterface = (*ValidateLinksTask)(nil)

func NewValidateLinksTask(store *storage.Store, v *validator.Validator, tracker *Tracker, limiter *rate.Limiter, records []*storage.Record) *ValidateLinksTask {
	return &ValidateLinksTask{
		Task:      NewTask(TaskTypeValidateLinks),
		store:     store,
		validator: v,
		tracker:   tracker,
		limiter:   limiter,
		records:   records,
	}
}

// recordStatusFor maps a probe status onto the record lifecycle.
func recordStatusFor(validationStatus string) string {
	switch validationStatus {
	case validator.StatusAccessible:
		return storage.StatusAccessible
	case validator.StatusPrivate, validator.StatusLoginRequired:
		return storage.StatusPrivate
	case validator.StatusDeleted:
		return storage.StatusDeleted
	default:
		return storage.StatusFailed
	}
}

func (t *ValidateLinksTask) Execute(ctx context.Context) error {
	for i, record := range t.records {
		t.tracker.SetProgress(i, fmt.Sprintf("Validating %s", record.URL))

		result := t.validator.Validate(ctx, record.URL)
		record.Status = recordStatusFor(result.Status)
		record.ValidatedAt = &result.ValidatedAt
		record.ErrorMessage = result.ErrorMessage

		if err := t.store.Save(record); err != nil {
			t.tracker.AppendError(fmt.Sprintf("%s: %v", record.ID, err))
			slog.Warn("Failed to save validated record", "id", record.ID, "error", err)
		} else if record.Status != storage.StatusAccessible {
			t.tracker.AppendError(fmt.Sprintf("%s: %s", record.URL, record.Status))
		}

		t.tracker.SetProgress(i+1, "")

		if err := t.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	return nil
}

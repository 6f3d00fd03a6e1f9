package tasks

import (
	"sync"
	"time"
)

const (
	maxTrackedErrors = 50
	maxRecentResults = 25
	snapshotErrors   = 10
)

// RecentResult is a freshly scraped record pushed to the dashboard while a
// task runs. The status endpoint drains the buffer.
type RecentResult struct {
	ID            string `json:"id"`
	URL           string `json:"url"`
	Platform      string `json:"platform"`
	Author        string `json:"author,omitempty"`
	Content       string `json:"content,omitempty"`
	Views         *int64 `json:"views,omitempty"`
	Likes         *int64 `json:"likes,omitempty"`
	ThumbnailPath string `json:"thumbnail_path,omitempty"`
}

// Status is a point-in-time view of the tracker.
type Status struct {
	Running   bool           `json:"running"`
	Task      string         `json:"task,omitempty"`
	Progress  int            `json:"progress"`
	Total     int            `json:"total"`
	Message   string         `json:"message,omitempty"`
	Errors    []string       `json:"errors,omitempty"`
	Recent    []RecentResult `json:"recent,omitempty"`
	StartedAt *time.Time     `json:"started_at,omitempty"`
}

// Tracker serializes background work: at most one task runs at a time, and
// its progress is observable from HTTP handlers.
type Tracker struct {
	mu        sync.Mutex
	running   bool
	task      string
	progress  int
	total     int
	message   string
	errors    []string
	recent    []RecentResult
	startedAt time.Time
}

func NewTracker() *Tracker {
	return &Tracker{}
}

// TryStart claims the tracker for a task. The check and the claim are one
// critical section, so two concurrent callers can never both win.
func (t *Tracker) TryStart(task string, total int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.running {
		return false
	}

	t.running = true
	t.task = task
	t.progress = 0
	t.total = total
	t.message = ""
	t.errors = nil
	t.recent = nil
	t.startedAt = time.Now()
	return true
}

// Finish releases the tracker, keeping the final message and error list
// visible until the next task starts.
func (t *Tracker) Finish(message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.running = false
	t.message = message
}

func (t *Tracker) SetTotal(total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.total = total
}

func (t *Tracker) SetProgress(progress int, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.progress = progress
	t.message = message
}

func (t *Tracker) AppendError(msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.errors) >= maxTrackedErrors {
		return
	}
	t.errors = append(t.errors, msg)
}

func (t *Tracker) PushRecent(result RecentResult) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.recent) >= maxRecentResults {
		t.recent = t.recent[1:]
	}
	t.recent = append(t.recent, result)
}

func (t *Tracker) IsRunning() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

// Snapshot copies the current state. With drainRecent the recent buffer is
// handed to the caller and cleared, so each poll sees new results once.
func (t *Tracker) Snapshot(drainRecent bool) Status {
	t.mu.Lock()
	defer t.mu.Unlock()

	status := Status{
		Running:  t.running,
		Task:     t.task,
		Progress: t.progress,
		Total:    t.total,
		Message:  t.message,
	}

	if !t.startedAt.IsZero() {
		startedAt := t.startedAt
		status.StartedAt = &startedAt
	}

	errs := t.errors
	if len(errs) > snapshotErrors {
		errs = errs[len(errs)-snapshotErrors:]
	}
	status.Errors = append([]string(nil), errs...)

	if drainRecent {
		status.Recent = t.recent
		t.recent = nil
	} else {
		status.Recent = append([]RecentResult(nil), t.recent...)
	}

	return status
}

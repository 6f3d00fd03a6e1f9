package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"mediakeep/app/parser"
	"mediakeep/app/storage"
	"mediakeep/app/tasks"
)

func parseListOptions(c *gin.Context) storage.ListOptions {
	opts := storage.ListOptions{
		Platforms:  c.QueryArray("platform"),
		Statuses:   c.QueryArray("status"),
		Authors:    c.QueryArray("author"),
		Tags:       c.QueryArray("tag"),
		Categories: c.QueryArray("category"),
		MediaTypes: c.QueryArray("media_type"),
		SortBy:     c.Query("sort_by"),
		SortDesc:   c.DefaultQuery("sort_desc", "true") == "true",
	}

	if v, err := strconv.Atoi(c.Query("limit")); err == nil {
		opts.Limit = v
	}
	if v, err := strconv.Atoi(c.Query("offset")); err == nil {
		opts.Offset = v
	}
	if v, err := time.Parse("2006-01-02", c.Query("posted_after")); err == nil {
		opts.PostedAfter = &v
	}
	if v, err := time.Parse("2006-01-02", c.Query("posted_before")); err == nil {
		end := v.Add(24*time.Hour - time.Nanosecond)
		opts.PostedBefore = &end
	}

	return opts
}

// ListRecords handles GET /api/records
func (h *Handler) ListRecords(c *gin.Context) {
	opts := parseListOptions(c)

	records, total, err := h.store.List(opts)
	if err != nil {
		slog.Error("Failed to list records", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list records"})
		return
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}

	c.JSON(http.StatusOK, gin.H{
		"records": records,
		"total":   total,
		"limit":   limit,
		"offset":  opts.Offset,
	})
}

// ListInaccessible handles GET /api/records/inaccessible
func (h *Handler) ListInaccessible(c *gin.Context) {
	records, total, err := h.store.List(storage.ListOptions{
		Statuses: []string{storage.StatusPrivate, storage.StatusDeleted},
		Limit:    500,
	})
	if err != nil {
		slog.Error("Failed to list inaccessible records", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list records"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"records": records, "total": total})
}

// GetRecord handles GET /api/records/:id
func (h *Handler) GetRecord(c *gin.Context) {
	record, err := h.store.Get(c.Param("id"))
	if err != nil {
		slog.Error("Failed to load record", "id", c.Param("id"), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load record"})
		return
	}
	if record == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Record not found"})
		return
	}
	c.JSON(http.StatusOK, record)
}

// DeleteRecord handles DELETE /api/records/:id
func (h *Handler) DeleteRecord(c *gin.Context) {
	id := c.Param("id")

	existed, err := h.store.Delete(id)
	if err != nil {
		slog.Error("Failed to delete record", "id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete record"})
		return
	}
	if !existed {
		c.JSON(http.StatusNotFound, gin.H{"error": "Record not found"})
		return
	}

	mediaRemoved := h.downloader.DeleteMedia(id)
	c.JSON(http.StatusOK, gin.H{"deleted": true, "media_removed": mediaRemoved})
}

// DeleteBatch handles POST /api/records/delete
func (h *Handler) DeleteBatch(c *gin.Context) {
	var req idsRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.IDs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Provide a non-empty ids list"})
		return
	}

	deleted := 0
	for _, id := range req.IDs {
		existed, err := h.store.Delete(id)
		if err != nil {
			slog.Warn("Failed to delete record", "id", id, "error", err)
			continue
		}
		if existed {
			h.downloader.DeleteMedia(id)
			deleted++
		}
	}

	c.JSON(http.StatusOK, gin.H{"deleted": deleted, "requested": len(req.IDs)})
}

func (h *Handler) updateRecord(c *gin.Context, apply func(*storage.Record)) {
	record, err := h.store.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load record"})
		return
	}
	if record == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Record not found"})
		return
	}

	apply(record)

	if err := h.store.Save(record); err != nil {
		slog.Error("Failed to save record", "id", record.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save record"})
		return
	}
	c.JSON(http.StatusOK, record)
}

// UpdateTags handles PUT /api/records/:id/tags
func (h *Handler) UpdateTags(c *gin.Context) {
	var req tagsUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	h.updateRecord(c, func(r *storage.Record) { r.Tags = req.Tags })
}

// UpdateCategory handles PUT /api/records/:id/category
func (h *Handler) UpdateCategory(c *gin.Context) {
	var req categoryUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	h.updateRecord(c, func(r *storage.Record) { r.Category = req.Category })
}

// UpdateNote handles PUT /api/records/:id/note
func (h *Handler) UpdateNote(c *gin.Context) {
	var req noteUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	h.updateRecord(c, func(r *storage.Record) { r.Note = req.Note })
}

// GetStats handles GET /api/stats
func (h *Handler) GetStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.store.Stats())
}

// GetAnalytics handles GET /api/analytics
func (h *Handler) GetAnalytics(c *gin.Context) {
	c.JSON(http.StatusOK, h.store.Analytics())
}

// GetFilterOptions handles GET /api/filters
func (h *Handler) GetFilterOptions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"platforms":  []string{"instagram", "facebook", "linkedin", "threads"},
		"statuses":   []string{storage.StatusPending, storage.StatusAccessible, storage.StatusPrivate, storage.StatusDeleted, storage.StatusFailed},
		"authors":    h.store.Authors(),
		"tags":       h.store.Tags(),
		"categories": h.store.Categories(),
	})
}

// GetThumbnail handles GET /api/records/:id/thumbnail
func (h *Handler) GetThumbnail(c *gin.Context) {
	path := h.downloader.ThumbnailPath(c.Param("id"))
	if path == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "No thumbnail for this record"})
		return
	}
	c.File(path)
}

// Scan handles POST /api/scan. The scan runs synchronously; it only reads
// note files and writes pending records, which is fast enough to answer
// inline.
func (h *Handler) Scan(c *gin.Context) {
	if h.tracker.IsRunning() {
		c.JSON(http.StatusConflict, gin.H{"error": tasks.ErrTaskRunning.Error()})
		return
	}

	var req scanRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	h.mu.Lock()
	settings := h.scan
	h.mu.Unlock()
	if req.SourceDir != "" {
		settings.SourceDir = req.SourceDir
	}
	if req.FilePattern != "" {
		settings.FilePattern = req.FilePattern
	}
	if req.Recursive != nil {
		settings.Recursive = *req.Recursive
	}

	collection, err := parser.ScanDirectory(settings.SourceDir, settings.FilePattern, settings.Recursive)
	if err != nil {
		slog.Error("Scan failed", "dir", settings.SourceDir, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Scan failed: %v", err)})
		return
	}

	unique := collection.Unique()
	newCount := 0
	for _, link := range unique {
		id := link.ID()
		if h.store.Exists(id) {
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
		if err := h.store.Save(record); err != nil {
			slog.Warn("Failed to save scanned record", "id", id, "error", err)
			continue
		}
		newCount++
	}

	duplicates := parser.DetectDuplicates(collection)
	duplicateGroups := duplicates.Groups
	if len(duplicateGroups) > 50 {
		duplicateGroups = duplicateGroups[:50]
	}

	byPlatform := make(map[string]int)
	for platform, links := range collection.ByPlatform() {
		byPlatform[platform] = len(links)
	}

	c.JSON(http.StatusOK, gin.H{
		"files_scanned":    len(collection.SourceFiles()),
		"total_urls":       collection.Len(),
		"unique_urls":      len(unique),
		"new_records":      newCount,
		"existing_records": len(unique) - newCount,
		"duplicates":       duplicates.TotalDuplicates(),
		"duplicate_groups": duplicateGroups,
		"by_platform":      byPlatform,
	})
}

func (h *Handler) startTask(c *gin.Context, records []*storage.Record, start func([]*storage.Record) error) {
	if err := start(records); err != nil {
		if errors.Is(err, tasks.ErrTaskRunning) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		slog.Error("Failed to start task", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to start task"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"started": true, "count": len(records)})
}

// recordsByIDs resolves an explicit ids body, skipping unknown ids.
func (h *Handler) recordsByIDs(ids []string) []*storage.Record {
	var records []*storage.Record
	for _, id := range ids {
		record, err := h.store.Get(id)
		if err != nil || record == nil {
			continue
		}
		records = append(records, record)
	}
	return records
}

// Validate handles POST /api/validate. Without an ids body it validates all
// pending records.
func (h *Handler) Validate(c *gin.Context) {
	var req idsRequest
	if err := c.ShouldBindJSON(&req); err == nil && len(req.IDs) > 0 {
		h.startTask(c, h.recordsByIDs(req.IDs), h.runner.StartValidate)
		return
	}

	records, _, err := h.store.List(storage.ListOptions{Statuses: []string{storage.StatusPending}, Limit: 500})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to collect records"})
		return
	}
	h.startTask(c, records, h.runner.StartValidate)
}

// Scrape handles POST /api/scrape. Without an ids body it scrapes accessible
// records that have never been scraped.
func (h *Handler) Scrape(c *gin.Context) {
	var req idsRequest
	if err := c.ShouldBindJSON(&req); err == nil && len(req.IDs) > 0 {
		h.startTask(c, h.recordsByIDs(req.IDs), h.runner.StartScrape)
		return
	}

	records, _, err := h.store.List(storage.ListOptions{Statuses: []string{storage.StatusAccessible}, Limit: 500})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to collect records"})
		return
	}

	var unscraped []*storage.Record
	for _, record := range records {
		if record.ScrapedAt == nil {
			unscraped = append(unscraped, record)
		}
	}

	h.startTask(c, unscraped, h.runner.StartScrape)
}

// DownloadOne handles POST /api/records/:id/download
func (h *Handler) DownloadOne(c *gin.Context) {
	record, err := h.store.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load record"})
		return
	}
	if record == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Record not found"})
		return
	}
	h.startTask(c, []*storage.Record{record}, h.runner.StartDownload)
}

// DownloadBatch handles POST /api/download with an ids body.
func (h *Handler) DownloadBatch(c *gin.Context) {
	var req idsRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.IDs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Provide a non-empty ids list"})
		return
	}

	h.startTask(c, h.recordsByIDs(req.IDs), h.runner.StartDownload)
}

// DownloadAll handles POST /api/download-all: every accessible record that
// has no media yet.
func (h *Handler) DownloadAll(c *gin.Context) {
	records, _, err := h.store.List(storage.ListOptions{
		Statuses: []string{storage.StatusAccessible},
		Limit:    500,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to collect records"})
		return
	}

	var missing []*storage.Record
	for _, record := range records {
		if !record.HasMedia() {
			missing = append(missing, record)
		}
	}

	h.startTask(c, missing, h.runner.StartDownload)
}

// ProcessAll handles POST /api/process-all: the full scan-validate-scrape
// pipeline.
func (h *Handler) ProcessAll(c *gin.Context) {
	h.mu.Lock()
	settings := h.scan
	h.mu.Unlock()

	err := h.runner.StartPipeline(settings.SourceDir, settings.FilePattern, settings.Recursive)
	if err != nil {
		if errors.Is(err, tasks.ErrTaskRunning) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to start pipeline"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"started": true})
}

// TaskStatus handles GET /api/tasks/status. Recent results are drained so
// each poll renders only new ones.
func (h *Handler) TaskStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.tracker.Snapshot(true))
}

// Reindex handles POST /api/reindex
func (h *Handler) Reindex(c *gin.Context) {
	if h.tracker.IsRunning() {
		c.JSON(http.StatusConflict, gin.H{"error": tasks.ErrTaskRunning.Error()})
		return
	}

	count, err := h.store.Reindex()
	if err != nil {
		slog.Error("Reindex failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Reindex failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"indexed": count})
}

// GetConfig handles GET /api/config
func (h *Handler) GetConfig(c *gin.Context) {
	h.mu.Lock()
	settings := h.scan
	h.mu.Unlock()
	cookiesFromBrowser, cookiesFile := h.ytdlp.Cookies()

	c.JSON(http.StatusOK, gin.H{
		"source_dir":           settings.SourceDir,
		"file_pattern":         settings.FilePattern,
		"recursive":            settings.Recursive,
		"cookies_from_browser": cookiesFromBrowser,
		"cookies_file":         cookiesFile,
	})
}

// UpdateConfig handles PUT /api/config
func (h *Handler) UpdateConfig(c *gin.Context) {
	var req configUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	h.mu.Lock()
	if req.SourceDir != nil {
		h.scan.SourceDir = *req.SourceDir
	}
	if req.FilePattern != nil {
		h.scan.FilePattern = *req.FilePattern
	}
	if req.Recursive != nil {
		h.scan.Recursive = *req.Recursive
	}
	h.mu.Unlock()

	if req.CookiesFromBrowser != nil || req.CookiesFile != nil {
		fromBrowser, file := h.ytdlp.Cookies()
		if req.CookiesFromBrowser != nil {
			fromBrowser = *req.CookiesFromBrowser
		}
		if req.CookiesFile != nil {
			file = *req.CookiesFile
		}
		h.ytdlp.SetCookies(fromBrowser, file)
	}

	h.GetConfig(c)
}

// Health handles GET /health
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"records":   h.store.Count(),
		"version":   h.version,
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

package storage

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// Store keeps one markdown file per record plus an in-memory index for
// filtering. A sqlite mirror of the index persists insertion order across
// restarts, and every save regenerates the dashboard data file.
type Store struct {
	recordsDir string
	exportFile string
	indexRepo  *indexRepository

	mu    sync.RWMutex
	index map[string]IndexEntry
	order map[string]int
	next  int
}

// Open prepares the data directory layout and loads the index mirror.
func Open(dataDir string) (*Store, error) {
	recordsDir := filepath.Join(dataDir, "records")
	for _, dir := range []string{dataDir, recordsDir, filepath.Join(dataDir, "media"), filepath.Join(dataDir, "thumbnails")} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	repo, err := newIndexRepository(filepath.Join(dataDir, "index.db"))
	if err != nil {
		return nil, err
	}

	store := &Store{
		recordsDir: recordsDir,
		exportFile: filepath.Join(dataDir, "data.js"),
		indexRepo:  repo,
		index:      make(map[string]IndexEntry),
		order:      make(map[string]int),
	}

	entries, err := repo.LoadAll()
	if err != nil {
		repo.Close()
		return nil, err
	}
	for _, entry := range entries {
		store.index[entry.ID] = entry
		store.order[entry.ID] = store.next
		store.next++
	}

	return store, nil
}

func (s *Store) Close() error {
	return s.indexRepo.Close()
}

func (s *Store) recordPath(id string) string {
	return filepath.Join(s.recordsDir, id+".md")
}

// Save writes the record file atomically and updates both index layers.
func (s *Store) Save(record *Record) error {
	if record.ID == "" {
		return fmt.Errorf("record has no id")
	}

	now := time.Now()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now

	data, err := EncodeRecord(record)
	if err != nil {
		return err
	}

	path := s.recordPath(record.ID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write record file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to rename record file: %w", err)
	}

	entry := entryFromRecord(record)

	s.mu.Lock()
	if _, exists := s.order[record.ID]; !exists {
		s.order[record.ID] = s.next
		s.next++
	}
	s.index[record.ID] = entry
	s.mu.Unlock()

	if err := s.indexRepo.Upsert(entry); err != nil {
		slog.Warn("Failed to update index mirror", "id", record.ID, "error", err)
	}

	if err := s.exportDashboardData(); err != nil {
		slog.Warn("Failed to export dashboard data", "error", err)
	}

	return nil
}

// Get loads a record from its file. A missing or unparsable file yields
// (nil, nil); corruption is logged, not fatal.
func (s *Store) Get(id string) (*Record, error) {
	data, err := os.ReadFile(s.recordPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read record file: %w", err)
	}

	record, err := DecodeRecord(data)
	if err != nil {
		slog.Warn("Skipping unparsable record file", "id", id, "error", err)
		return nil, nil
	}
	return record, nil
}

// Delete removes the record file and index entries. It reports whether the
// record existed.
func (s *Store) Delete(id string) (bool, error) {
	err := os.Remove(s.recordPath(id))
	existed := err == nil
	if err != nil && !os.IsNotExist(err) {
		return false, fmt.Errorf("failed to delete record file: %w", err)
	}

	s.mu.Lock()
	if _, ok := s.index[id]; ok {
		existed = true
	}
	delete(s.index, id)
	delete(s.order, id)
	s.mu.Unlock()

	if err := s.indexRepo.Delete(id); err != nil {
		slog.Warn("Failed to delete index mirror entry", "id", id, "error", err)
	}

	if existed {
		if err := s.exportDashboardData(); err != nil {
			slog.Warn("Failed to export dashboard data", "error", err)
		}
	}

	return existed, nil
}

func (s *Store) Exists(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.index[id]
	return ok
}

func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.index)
}

// Entries returns index entries matching the filters of opts, unsorted and
// unpaginated, in insertion order.
func (s *Store) Entries(opts ListOptions) []IndexEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filterLocked(opts)
}

func (s *Store) filterLocked(opts ListOptions) []IndexEntry {
	ids := make([]string, 0, len(s.index))
	for id := range s.index {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return s.order[ids[i]] < s.order[ids[j]] })

	var entries []IndexEntry
	for _, id := range ids {
		entry := s.index[id]
		if matchesFilters(entry, opts) {
			entries = append(entries, entry)
		}
	}
	return entries
}

func matchesFilters(entry IndexEntry, opts ListOptions) bool {
	if len(opts.Platforms) > 0 && !containsFold(opts.Platforms, entry.Platform) {
		return false
	}
	if len(opts.Statuses) > 0 && !containsFold(opts.Statuses, entry.Status) {
		return false
	}
	if len(opts.Authors) > 0 && !containsFold(opts.Authors, entry.Author) {
		return false
	}
	if len(opts.Categories) > 0 && !containsFold(opts.Categories, entry.Category) {
		return false
	}
	if len(opts.MediaTypes) > 0 && !containsFold(opts.MediaTypes, entry.MediaType) {
		return false
	}
	if len(opts.Tags) > 0 && !anyTagMatches(entry.Tags, opts.Tags) {
		return false
	}
	if opts.PostedAfter != nil {
		if entry.PostedAt == nil || entry.PostedAt.Before(*opts.PostedAfter) {
			return false
		}
	}
	if opts.PostedBefore != nil {
		if entry.PostedAt == nil || entry.PostedAt.After(*opts.PostedBefore) {
			return false
		}
	}
	return true
}

func containsFold(values []string, target string) bool {
	for _, v := range values {
		if strings.EqualFold(v, target) {
			return true
		}
	}
	return false
}

func anyTagMatches(tags, wanted []string) bool {
	for _, tag := range tags {
		if containsFold(wanted, tag) {
			return true
		}
	}
	return false
}

// List filters, sorts and paginates, then hydrates full records from disk.
// Records whose file vanished since indexing are skipped.
func (s *Store) List(opts ListOptions) ([]*Record, int, error) {
	if opts.SortBy == "" {
		opts.SortBy = "scraped_at"
	}
	if opts.Limit <= 0 {
		opts.Limit = 50
	}

	s.mu.RLock()
	entries := s.filterLocked(opts)
	order := make(map[string]int, len(entries))
	for _, e := range entries {
		order[e.ID] = s.order[e.ID]
	}
	s.mu.RUnlock()

	sortEntries(entries, opts.SortBy, opts.SortDesc, order)
	total := len(entries)

	if opts.Offset >= len(entries) {
		return []*Record{}, total, nil
	}
	entries = entries[opts.Offset:]
	if len(entries) > opts.Limit {
		entries = entries[:opts.Limit]
	}

	records := make([]*Record, 0, len(entries))
	for _, entry := range entries {
		record, err := s.Get(entry.ID)
		if err != nil {
			return nil, 0, err
		}
		if record == nil {
			continue
		}
		records = append(records, record)
	}

	return records, total, nil
}

// sortEntries orders entries by the named field; records missing the field
// sort lowest and ties keep insertion order.
func sortEntries(entries []IndexEntry, sortBy string, desc bool, order map[string]int) {
	timeKey := func(t *time.Time) int64 {
		if t == nil {
			return -1 << 62
		}
		return t.UnixNano()
	}
	intKey := func(n *int64) int64 {
		if n == nil {
			return -1 << 62
		}
		return *n
	}

	less := func(a, b IndexEntry) int {
		switch sortBy {
		case "posted_at":
			return compareInt64(timeKey(a.PostedAt), timeKey(b.PostedAt))
		case "views":
			return compareInt64(intKey(a.Views), intKey(b.Views))
		case "likes":
			return compareInt64(intKey(a.Likes), intKey(b.Likes))
		case "comments":
			return compareInt64(intKey(a.Comments), intKey(b.Comments))
		case "author":
			return strings.Compare(strings.ToLower(a.Author), strings.ToLower(b.Author))
		default:
			return compareInt64(timeKey(a.ScrapedAt), timeKey(b.ScrapedAt))
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		c := less(entries[i], entries[j])
		if c == 0 {
			return order[entries[i].ID] < order[entries[j].ID]
		}
		if desc {
			return c > 0
		}
		return c < 0
	})
}

func compareInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// Reindex rebuilds the in-memory index and the sqlite mirror from record
// files, skipping files that no longer parse. Returns the indexed count.
func (s *Store) Reindex() (int, error) {
	matches, err := filepath.Glob(filepath.Join(s.recordsDir, "*.md"))
	if err != nil {
		return 0, fmt.Errorf("failed to list record files: %w", err)
	}
	sort.Strings(matches)

	index := make(map[string]IndexEntry, len(matches))
	order := make(map[string]int, len(matches))
	var entries []IndexEntry
	next := 0

	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			slog.Warn("Skipping unreadable record file", "file", path, "error", err)
			continue
		}
		record, err := DecodeRecord(data)
		if err != nil {
			slog.Warn("Skipping unparsable record file", "file", path, "error", err)
			continue
		}
		entry := entryFromRecord(record)
		index[record.ID] = entry
		order[record.ID] = next
		next++
		entries = append(entries, entry)
	}

	s.mu.Lock()
	s.index = index
	s.order = order
	s.next = next
	s.mu.Unlock()

	if err := s.indexRepo.Rebuild(entries); err != nil {
		slog.Warn("Failed to rebuild index mirror", "error", err)
	}

	if err := s.exportDashboardData(); err != nil {
		slog.Warn("Failed to export dashboard data", "error", err)
	}

	return len(entries), nil
}

// Stats summarizes the collection.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Stats{
		Total:      len(s.index),
		ByStatus:   make(map[string]int),
		ByPlatform: make(map[string]int),
	}

	authorCounts := make(map[string]int)
	for _, entry := range s.index {
		stats.ByStatus[entry.Status]++
		stats.ByPlatform[entry.Platform]++
		if entry.Author != "" {
			authorCounts[entry.Author]++
		}
		if entry.HasMedia {
			stats.MediaDownloaded++
		}
		if entry.ScrapedAt != nil && (stats.LastUpdated == nil || entry.ScrapedAt.After(*stats.LastUpdated)) {
			t := *entry.ScrapedAt
			stats.LastUpdated = &t
		}
	}

	for name, count := range authorCounts {
		stats.TopAuthors = append(stats.TopAuthors, AuthorCount{Name: name, Count: count})
	}
	sort.Slice(stats.TopAuthors, func(i, j int) bool {
		if stats.TopAuthors[i].Count != stats.TopAuthors[j].Count {
			return stats.TopAuthors[i].Count > stats.TopAuthors[j].Count
		}
		return stats.TopAuthors[i].Name < stats.TopAuthors[j].Name
	})
	if len(stats.TopAuthors) > 20 {
		stats.TopAuthors = stats.TopAuthors[:20]
	}

	return stats
}

// Analytics aggregates per-author engagement and facet distributions.
func (s *Store) Analytics() Analytics {
	s.mu.RLock()
	defer s.mu.RUnlock()

	analytics := Analytics{
		PlatformCounts:  make(map[string]int),
		StatusCounts:    make(map[string]int),
		MediaTypeCounts: make(map[string]int),
	}

	byAuthor := make(map[string]*AuthorStats)
	for _, entry := range s.index {
		analytics.PlatformCounts[entry.Platform]++
		analytics.StatusCounts[entry.Status]++
		if entry.MediaType != "" {
			analytics.MediaTypeCounts[entry.MediaType]++
		}
		if entry.Author == "" {
			continue
		}
		stats, ok := byAuthor[entry.Author]
		if !ok {
			stats = &AuthorStats{Name: entry.Author}
			byAuthor[entry.Author] = stats
		}
		stats.Count++
		if entry.Likes != nil {
			stats.Likes += *entry.Likes
		}
		if entry.Comments != nil {
			stats.Comments += *entry.Comments
		}
	}

	for _, stats := range byAuthor {
		analytics.AuthorStats = append(analytics.AuthorStats, *stats)
	}
	sort.Slice(analytics.AuthorStats, func(i, j int) bool {
		if analytics.AuthorStats[i].Count != analytics.AuthorStats[j].Count {
			return analytics.AuthorStats[i].Count > analytics.AuthorStats[j].Count
		}
		return analytics.AuthorStats[i].Name < analytics.AuthorStats[j].Name
	})

	return analytics
}

// Tags returns every distinct tag in the collection, sorted.
func (s *Store) Tags() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return distinct(func(entry IndexEntry) []string { return entry.Tags }, s.index)
}

// Categories returns every distinct category, sorted.
func (s *Store) Categories() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return distinct(func(entry IndexEntry) []string {
		if entry.Category == "" {
			return nil
		}
		return []string{entry.Category}
	}, s.index)
}

// Authors returns every distinct author, sorted.
func (s *Store) Authors() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return distinct(func(entry IndexEntry) []string {
		if entry.Author == "" {
			return nil
		}
		return []string{entry.Author}
	}, s.index)
}

func distinct(extract func(IndexEntry) []string, index map[string]IndexEntry) []string {
	set := make(map[string]struct{})
	for _, entry := range index {
		for _, v := range extract(entry) {
			set[v] = struct{}{}
		}
	}
	values := make([]string, 0, len(set))
	for v := range set {
		values = append(values, v)
	}
	sort.Strings(values)
	return values
}

// exportDashboardData flattens the index into the static data file the
// dashboard page loads, newest scrapes first.
func (s *Store) exportDashboardData() error {
	s.mu.RLock()
	entries := s.filterLocked(ListOptions{})
	s.mu.RUnlock()

	if entries == nil {
		entries = []IndexEntry{}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i].ScrapedAt, entries[j].ScrapedAt
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		}
		return a.After(*b)
	})

	payload, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("failed to encode dashboard data: %w", err)
	}

	var buf []byte
	buf = append(buf, []byte("window.POSTS_DATA = ")...)
	buf = append(buf, payload...)
	buf = append(buf, []byte(";\n")...)

	tmp := s.exportFile + ".tmp"
	if err := os.WriteFile(tmp, buf, 0644); err != nil {
		return fmt.Errorf("failed to write dashboard data: %w", err)
	}
	if err := os.Rename(tmp, s.exportFile); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to rename dashboard data: %w", err)
	}
	return nil
}

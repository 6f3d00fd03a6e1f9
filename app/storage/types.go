package storage

import "time"

// IndexEntry is the denormalized projection of a record kept in memory for
// filtering and sorting without touching record files.
type IndexEntry struct {
	ID            string     `json:"id"`
	URL           string     `json:"url"`
	Platform      string     `json:"platform"`
	Author        string     `json:"author,omitempty"`
	Status        string     `json:"status"`
	Title         string     `json:"title,omitempty"`
	PostedAt      *time.Time `json:"posted_at,omitempty"`
	ScrapedAt     *time.Time `json:"scraped_at,omitempty"`
	Tags          []string   `json:"tags,omitempty"`
	Category      string     `json:"category,omitempty"`
	HasMedia      bool       `json:"has_media"`
	MediaType     string     `json:"media_type,omitempty"`
	Views         *int64     `json:"views,omitempty"`
	Likes         *int64     `json:"likes,omitempty"`
	Comments      *int64     `json:"comments,omitempty"`
	ThumbnailPath string     `json:"thumbnail_path,omitempty"`
}

func entryFromRecord(r *Record) IndexEntry {
	return IndexEntry{
		ID:            r.ID,
		URL:           r.URL,
		Platform:      r.Platform,
		Author:        r.Author,
		Status:        r.Status,
		Title:         r.Title,
		PostedAt:      r.PostedAt,
		ScrapedAt:     r.ScrapedAt,
		Tags:          r.Tags,
		Category:      r.Category,
		HasMedia:      r.HasMedia(),
		MediaType:     r.MediaType,
		Views:         r.Views,
		Likes:         r.Likes,
		Comments:      r.Comments,
		ThumbnailPath: r.ThumbnailPath,
	}
}

// ListOptions filters, sorts and paginates record listings. All filters are
// conjunctive; multi-value filters match any of their values. Date bounds
// are inclusive and independent.
type ListOptions struct {
	Platforms    []string
	Statuses     []string
	Authors      []string
	Tags         []string
	Categories   []string
	MediaTypes   []string
	PostedAfter  *time.Time
	PostedBefore *time.Time
	SortBy       string
	SortDesc     bool
	Limit        int
	Offset       int
}

// Stats summarizes the collection for the dashboard header.
type Stats struct {
	Total           int            `json:"total"`
	ByStatus        map[string]int `json:"by_status"`
	ByPlatform      map[string]int `json:"by_platform"`
	TopAuthors      []AuthorCount  `json:"top_authors"`
	MediaDownloaded int            `json:"media_downloaded"`
	LastUpdated     *time.Time     `json:"last_updated,omitempty"`
}

type AuthorCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Analytics aggregates engagement per author and distribution per facet.
type Analytics struct {
	PlatformCounts  map[string]int `json:"platform_counts"`
	StatusCounts    map[string]int `json:"status_counts"`
	MediaTypeCounts map[string]int `json:"media_type_counts"`
	AuthorStats     []AuthorStats  `json:"author_stats"`
}

type AuthorStats struct {
	Name     string `json:"name"`
	Count    int    `json:"count"`
	Likes    int64  `json:"likes"`
	Comments int64  `json:"comments"`
}

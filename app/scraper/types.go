package scraper

import (
	"context"
	"time"
)

// Result is the outcome of a metadata scrape. On failure only Success, URL,
// Platform, ScrapedAt and ErrorMessage are meaningful.
type Result struct {
	Success      bool       `json:"success"`
	URL          string     `json:"url"`
	Platform     string     `json:"platform"`
	Author       string     `json:"author,omitempty"`
	AuthorURL    string     `json:"author_url,omitempty"`
	Title        string     `json:"title,omitempty"`
	Content      string     `json:"content,omitempty"`
	PostedAt     *time.Time `json:"posted_at,omitempty"`
	Views        *int64     `json:"views,omitempty"`
	Likes        *int64     `json:"likes,omitempty"`
	Comments     *int64     `json:"comments,omitempty"`
	Shares       *int64     `json:"shares,omitempty"`
	ThumbnailURL string     `json:"thumbnail_url,omitempty"`
	MediaURLs    []string   `json:"media_urls,omitempty"`
	MediaType    string     `json:"media_type,omitempty"`
	ScrapedAt    time.Time  `json:"scraped_at"`
	ErrorMessage string     `json:"error_message,omitempty"`
}

// Strategy scrapes metadata for one platform's post URLs.
type Strategy interface {
	Platform() string
	Supports(rawURL string) bool
	Scrape(ctx context.Context, rawURL string) Result
}

// Registry dispatches a URL to the first strategy that supports it.
type Registry struct {
	strategies []Strategy
}

func NewRegistry(strategies ...Strategy) *Registry {
	return &Registry{strategies: strategies}
}

func (r *Registry) Run(ctx context.Context, rawURL string) Result {
	for _, s := range r.strategies {
		if s.Supports(rawURL) {
			return s.Scrape(ctx, rawURL)
		}
	}
	return Result{
		Success:      false,
		URL:          rawURL,
		ScrapedAt:    time.Now(),
		ErrorMessage: "no scraper available for this URL",
	}
}

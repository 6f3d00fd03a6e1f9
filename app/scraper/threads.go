package scraper

import (
	"context"
	"net/http"
	"regexp"
	"strings"
	"time"
)

var (
	threadsAuthorPattern  = regexp.MustCompile(`threads\.net/@([\w.]+)`)
	threadsLikesPattern   = regexp.MustCompile(`"likeCount":\s*(\d+)`)
	threadsRepliesPattern = regexp.MustCompile(`"replyCount":\s*(\d+)`)
)

// Threads scrapes post pages directly; yt-dlp has no extractor for them.
type Threads struct {
	client    *http.Client
	userAgent string
}

var _ Strategy = (*Threads)(nil)

func NewThreads(client *http.Client, userAgent string) *Threads {
	return &Threads{client: client, userAgent: userAgent}
}

func (s *Threads) Platform() string {
	return "threads"
}

func (s *Threads) Supports(rawURL string) bool {
	return strings.Contains(strings.ToLower(rawURL), "threads.net/")
}

func (s *Threads) Scrape(ctx context.Context, rawURL string) Result {
	result := Result{URL: rawURL, Platform: s.Platform(), ScrapedAt: time.Now()}

	page, err := fetchPage(ctx, s.client, rawURL, s.userAgent)
	if err != nil {
		result.ErrorMessage = err.Error()
		return result
	}

	tags := metaTags(page)
	result.Success = true
	result.Title = cleanText(tags["og:title"])
	result.Content = strings.TrimSpace(tags["og:description"])
	result.ThumbnailURL = tags["og:image"]

	if m := threadsAuthorPattern.FindStringSubmatch(rawURL); m != nil {
		result.Author = m[1]
		result.AuthorURL = "https://www.threads.net/@" + m[1]
	}

	if m := threadsLikesPattern.FindStringSubmatch(page); m != nil {
		result.Likes = ParseCount(m[1])
	}
	if m := threadsRepliesPattern.FindStringSubmatch(page); m != nil {
		result.Comments = ParseCount(m[1])
	}

	return result
}

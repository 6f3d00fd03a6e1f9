package scraper

import (
	"context"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/go-shiori/go-readability"
)

var (
	linkedinTitleAuthor     = regexp.MustCompile(`^(.+?) on LinkedIn`)
	linkedinLikesPattern    = regexp.MustCompile(`"numLikes":\s*(\d+)`)
	linkedinCommentsPattern = regexp.MustCompile(`"numComments":\s*(\d+)`)
)

// LinkedIn scrapes public post pages through their og: metadata; the post
// body falls back to readability extraction when og:description is missing.
type LinkedIn struct {
	client    *http.Client
	userAgent string
}

var _ Strategy = (*LinkedIn)(nil)

func NewLinkedIn(client *http.Client, userAgent string) *LinkedIn {
	return &LinkedIn{client: client, userAgent: userAgent}
}

func (s *LinkedIn) Platform() string {
	return "linkedin"
}

func (s *LinkedIn) Supports(rawURL string) bool {
	return strings.Contains(strings.ToLower(rawURL), "linkedin.com/")
}

func (s *LinkedIn) Scrape(ctx context.Context, rawURL string) Result {
	result := Result{URL: rawURL, Platform: s.Platform(), ScrapedAt: time.Now()}

	page, err := fetchPage(ctx, s.client, rawURL, s.userAgent)
	if err != nil {
		result.ErrorMessage = err.Error()
		return result
	}

	tags := metaTags(page)
	result.Success = true
	result.Title = cleanText(tags["og:title"])
	if result.Title == "" {
		result.Title = pageTitle(page)
	}
	result.Content = strings.TrimSpace(tags["og:description"])
	result.ThumbnailURL = tags["og:image"]

	if m := linkedinTitleAuthor.FindStringSubmatch(result.Title); m != nil {
		result.Author = cleanText(m[1])
	} else if author := tags["article:author"]; author != "" {
		result.Author = cleanText(author)
	}

	if m := linkedinLikesPattern.FindStringSubmatch(page); m != nil {
		result.Likes = ParseCount(m[1])
	}
	if m := linkedinCommentsPattern.FindStringSubmatch(page); m != nil {
		result.Comments = ParseCount(m[1])
	}

	if result.Content == "" {
		if article, err := readability.FromReader(strings.NewReader(page), nil); err == nil {
			result.Content = strings.TrimSpace(article.TextContent)
		}
	}

	return result
}

package scraper

import (
	"cmp"
	"context"
	"errors"
	"strings"
	"time"

	"mediakeep/app/ytdlp"
)

// MetadataSource abstracts the yt-dlp metadata call so strategies can be
// tested without the binary.
type MetadataSource interface {
	DumpJSON(ctx context.Context, rawURL string) (*ytdlp.Info, error)
}

// resultFromInfo maps a yt-dlp metadata dump onto a scrape result.
func resultFromInfo(rawURL, platform string, info *ytdlp.Info) Result {
	result := Result{
		Success:      true,
		URL:          rawURL,
		Platform:     platform,
		Author:       cmp.Or(info.Uploader, info.Channel),
		AuthorURL:    cmp.Or(info.UploaderURL, info.ChannelURL),
		Title:        cleanText(info.Title),
		Content:      strings.TrimSpace(info.Description),
		Views:        info.ViewCount,
		Likes:        info.LikeCount,
		Comments:     info.CommentCount,
		Shares:       info.RepostCount,
		ThumbnailURL: info.Thumbnail,
		ScrapedAt:    time.Now(),
	}

	if info.UploadDate != "" {
		if t, err := time.Parse("20060102", info.UploadDate); err == nil {
			result.PostedAt = &t
		}
	}
	if result.PostedAt == nil && info.Timestamp > 0 {
		t := time.Unix(info.Timestamp, 0).UTC()
		result.PostedAt = &t
	}

	if info.URL != "" {
		result.MediaURLs = []string{info.URL}
	} else if best := bestFormatURL(info); best != "" {
		result.MediaURLs = []string{best}
	}

	if info.Duration == 0 {
		result.MediaType = "image"
	} else {
		result.MediaType = "video"
	}

	return result
}

func bestFormatURL(info *ytdlp.Info) string {
	bestHeight := -1
	bestURL := ""
	for _, f := range info.Formats {
		if f.URL != "" && f.Height > bestHeight {
			bestHeight = f.Height
			bestURL = f.URL
		}
	}
	return bestURL
}

// failureFromError classifies a yt-dlp error into a user-facing message.
func failureFromError(rawURL, platform string, err error) Result {
	msg := "yt-dlp failed: " + err.Error()
	switch {
	case errors.Is(err, ytdlp.ErrNotInstalled):
		msg = "yt-dlp not installed"
	case errors.Is(err, context.DeadlineExceeded):
		msg = "scrape timed out"
	default:
		lower := strings.ToLower(err.Error())
		if strings.Contains(lower, "login") || strings.Contains(lower, "private") || strings.Contains(lower, "sign in") {
			msg = "Private or login required"
		}
	}

	return Result{
		Success:      false,
		URL:          rawURL,
		Platform:     platform,
		ScrapedAt:    time.Now(),
		ErrorMessage: msg,
	}
}

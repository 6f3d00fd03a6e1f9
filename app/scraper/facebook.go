package scraper

import (
	"context"
	"strings"
)

var facebookPaths = []string{
	"facebook.com/share/r/",
	"facebook.com/share/v/",
	"facebook.com/watch",
	"facebook.com/reel/",
	"/videos/",
	"fb.watch/",
}

type Facebook struct {
	source MetadataSource
}

var _ Strategy = (*Facebook)(nil)

func NewFacebook(source MetadataSource) *Facebook {
	return &Facebook{source: source}
}

func (s *Facebook) Platform() string {
	return "facebook"
}

func (s *Facebook) Supports(rawURL string) bool {
	lower := strings.ToLower(rawURL)
	if !strings.Contains(lower, "facebook.com") && !strings.Contains(lower, "fb.watch") {
		return false
	}
	for _, p := range facebookPaths {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

func (s *Facebook) Scrape(ctx context.Context, rawURL string) Result {
	info, err := s.source.DumpJSON(ctx, rawURL)
	if err != nil {
		return failureFromError(rawURL, s.Platform(), err)
	}
	return resultFromInfo(rawURL, s.Platform(), info)
}

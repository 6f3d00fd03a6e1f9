package scraper

import (
	"context"
	"strings"
)

var instagramPaths = []string{
	"instagram.com/p/",
	"instagram.com/reel/",
	"instagram.com/reels/",
	"instagram.com/stories/",
	"instagram.com/tv/",
}

type Instagram struct {
	source MetadataSource
}

var _ Strategy = (*Instagram)(nil)

func NewInstagram(source MetadataSource) *Instagram {
	return &Instagram{source: source}
}

func (s *Instagram) Platform() string {
	return "instagram"
}

func (s *Instagram) Supports(rawURL string) bool {
	lower := strings.ToLower(rawURL)
	for _, p := range instagramPaths {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

func (s *Instagram) Scrape(ctx context.Context, rawURL string) Result {
	info, err := s.source.DumpJSON(ctx, rawURL)
	if err != nil {
		return failureFromError(rawURL, s.Platform(), err)
	}
	return resultFromInfo(rawURL, s.Platform(), info)
}

package parser

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNormalizeStripsTrackingParams(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "instagram share token",
			input:    "https://www.instagram.com/reel/ABC123/?igsh=xyz789",
			expected: "https://www.instagram.com/reel/ABC123",
		},
		{
			name:     "facebook mibextid",
			input:    "https://www.facebook.com/share/r/AbCd/?mibextid=wwXIfr",
			expected: "https://www.facebook.com/share/r/AbCd",
		},
		{
			name:     "mixed tracking and real params",
			input:    "https://www.instagram.com/p/XYZ/?img_index=2&hl=en",
			expected: "https://www.instagram.com/p/XYZ/?hl=en",
		},
		{
			name:     "utm parameters",
			input:    "https://www.linkedin.com/posts/someone_post-activity-123?utm_source=share&utm_medium=member_desktop",
			expected: "https://www.linkedin.com/posts/someone_post-activity-123",
		},
		{
			name:     "trailing slash only",
			input:    "https://www.threads.net/@user/post/C12345/",
			expected: "https://www.threads.net/@user/post/C12345",
		},
		{
			name:     "no changes needed",
			input:    "https://www.instagram.com/p/ABC",
			expected: "https://www.instagram.com/p/ABC",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.input)
			if got != tt.expected {
				t.Errorf("Normalize(%q) = %q, expected %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	urls := []string{
		"https://www.instagram.com/reel/ABC123/?igsh=xyz789",
		"https://www.facebook.com/watch/?v=123456",
		"https://www.threads.net/@user/post/C12345/",
	}
	for _, u := range urls {
		once := Normalize(u)
		twice := Normalize(once)
		if once != twice {
			t.Errorf("Normalize not idempotent for %q: %q != %q", u, once, twice)
		}
	}
}

func TestLinkIDStableAcrossVariants(t *testing.T) {
	a := LinkID("https://www.instagram.com/reel/ABC123/?igsh=first")
	b := LinkID("https://www.instagram.com/reel/ABC123/?igsh=second")
	c := LinkID("https://www.instagram.com/reel/ABC123")

	if a != b || b != c {
		t.Errorf("expected identical ids for tracking variants, got %q %q %q", a, b, c)
	}
	if len(a) != 12 {
		t.Errorf("expected 12-character id, got %d characters", len(a))
	}

	other := LinkID("https://www.instagram.com/reel/DEF456")
	if other == a {
		t.Errorf("distinct posts must not share an id")
	}
}

func TestDetectPlatform(t *testing.T) {
	tests := []struct {
		url      string
		expected string
	}{
		{"https://www.instagram.com/p/ABC", "instagram"},
		{"https://facebook.com/watch/?v=1", "facebook"},
		{"https://www.linkedin.com/posts/x", "linkedin"},
		{"https://www.threads.net/@u/post/1", "threads"},
		{"https://example.com/page", ""},
	}
	for _, tt := range tests {
		if got := DetectPlatform(tt.url); got != tt.expected {
			t.Errorf("DetectPlatform(%q) = %q, expected %q", tt.url, got, tt.expected)
		}
	}
}

func TestParseFileSkipsFrontmatterAndTrimsPunctuation(t *testing.T) {
	content := `---
title: Saved links
tags: [social]
url: https://www.instagram.com/p/INSIDE_FRONTMATTER
---

Great cooking video:
https://www.instagram.com/reel/ABC123/.

Check this out (https://www.facebook.com/watch/?v=987654)
`
	dir := t.TempDir()
	path := filepath.Join(dir, "note.md")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}

	links, err := ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile failed: %v", err)
	}

	if len(links) != 2 {
		t.Fatalf("expected 2 links, got %d: %+v", len(links), links)
	}

	if links[0].URL != "https://www.instagram.com/reel/ABC123/" {
		t.Errorf("unexpected first URL %q", links[0].URL)
	}
	if links[0].Platform != "instagram" {
		t.Errorf("expected instagram platform, got %q", links[0].Platform)
	}
	if links[0].Context != "Great cooking video:" {
		t.Errorf("expected preceding line as context, got %q", links[0].Context)
	}
	if links[0].LineNumber != 8 {
		t.Errorf("expected line number 8, got %d", links[0].LineNumber)
	}

	if links[1].URL != "https://www.facebook.com/watch/?v=987654" {
		t.Errorf("unexpected second URL %q", links[1].URL)
	}
}

func TestScanDirectoryAndDuplicates(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "archive")
	if err := os.Mkdir(sub, 0755); err != nil {
		t.Fatalf("failed to create subdirectory: %v", err)
	}

	noteA := "A reel I liked\nhttps://www.instagram.com/reel/SAME/?igsh=aaa\n"
	noteB := "Same reel shared again\nhttps://www.instagram.com/reel/SAME/?igsh=bbb\nhttps://www.threads.net/@user/post/UNIQ\n"
	if err := os.WriteFile(filepath.Join(dir, "a.md"), []byte(noteA), 0644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}
	if err := os.WriteFile(filepath.Join(sub, "b.md"), []byte(noteB), 0644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "ignore.txt"), []byte("https://www.instagram.com/p/TXT\n"), 0644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}

	collection, err := ScanDirectory(dir, "*.md", true)
	if err != nil {
		t.Fatalf("ScanDirectory failed: %v", err)
	}

	if collection.Len() != 3 {
		t.Fatalf("expected 3 raw links, got %d", collection.Len())
	}
	if got := len(collection.Unique()); got != 2 {
		t.Errorf("expected 2 unique links, got %d", got)
	}
	if got := len(collection.SourceFiles()); got != 2 {
		t.Errorf("expected 2 source files, got %d", got)
	}

	report := DetectDuplicates(collection)
	if report.UniqueDuplicatedCount() != 1 {
		t.Fatalf("expected 1 duplicated link, got %d", report.UniqueDuplicatedCount())
	}
	if report.TotalDuplicates() != 1 {
		t.Errorf("expected 1 redundant occurrence, got %d", report.TotalDuplicates())
	}
	if len(report.Groups[0].Links) != 2 {
		t.Errorf("expected 2 occurrences in duplicate group, got %d", len(report.Groups[0].Links))
	}

	byPlatform := collection.ByPlatform()
	if len(byPlatform["instagram"]) != 2 || len(byPlatform["threads"]) != 1 {
		t.Errorf("unexpected platform grouping: %v", byPlatform)
	}

	// non-recursive scan only sees the top-level note
	flat, err := ScanDirectory(dir, "*.md", false)
	if err != nil {
		t.Fatalf("ScanDirectory failed: %v", err)
	}
	if flat.Len() != 1 {
		t.Errorf("expected 1 link in non-recursive scan, got %d", flat.Len())
	}
}

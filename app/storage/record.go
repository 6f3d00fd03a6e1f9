package storage

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	StatusPending    = "pending"
	StatusAccessible = "accessible"
	StatusPrivate    = "private"
	StatusDeleted    = "deleted"
	StatusFailed     = "failed"
)

// Record is a collected social post. Everything except Content serializes
// into the file's frontmatter block; Content is the file body.
type Record struct {
	ID            string     `yaml:"id" json:"id"`
	URL           string     `yaml:"url" json:"url"`
	Platform      string     `yaml:"platform" json:"platform"`
	Status        string     `yaml:"status" json:"status"`
	Author        string     `yaml:"author,omitempty" json:"author,omitempty"`
	AuthorURL     string     `yaml:"author_url,omitempty" json:"author_url,omitempty"`
	Title         string     `yaml:"title,omitempty" json:"title,omitempty"`
	PostedAt      *time.Time `yaml:"posted_at,omitempty" json:"posted_at,omitempty"`
	ScrapedAt     *time.Time `yaml:"scraped_at,omitempty" json:"scraped_at,omitempty"`
	ValidatedAt   *time.Time `yaml:"validated_at,omitempty" json:"validated_at,omitempty"`
	Views         *int64     `yaml:"views,omitempty" json:"views,omitempty"`
	Likes         *int64     `yaml:"likes,omitempty" json:"likes,omitempty"`
	Comments      *int64     `yaml:"comments,omitempty" json:"comments,omitempty"`
	Shares        *int64     `yaml:"shares,omitempty" json:"shares,omitempty"`
	ThumbnailURL  string     `yaml:"thumbnail_url,omitempty" json:"thumbnail_url,omitempty"`
	ThumbnailPath string     `yaml:"thumbnail_path,omitempty" json:"thumbnail_path,omitempty"`
	MediaURLs     []string   `yaml:"media_urls,omitempty" json:"media_urls,omitempty"`
	MediaPaths    []string   `yaml:"media_paths,omitempty" json:"media_paths,omitempty"`
	MediaType     string     `yaml:"media_type,omitempty" json:"media_type,omitempty"`
	Tags          []string   `yaml:"tags,omitempty" json:"tags,omitempty"`
	Category      string     `yaml:"category,omitempty" json:"category,omitempty"`
	Note          string     `yaml:"note,omitempty" json:"note,omitempty"`
	SourceFile    string     `yaml:"source_file,omitempty" json:"source_file,omitempty"`
	SourceContext string     `yaml:"source_context,omitempty" json:"source_context,omitempty"`
	ErrorMessage  string     `yaml:"error_message,omitempty" json:"error_message,omitempty"`
	CreatedAt     time.Time  `yaml:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `yaml:"updated_at" json:"updated_at"`

	Content string `yaml:"-" json:"content,omitempty"`
}

// HasMedia reports whether any media file has been downloaded.
func (r *Record) HasMedia() bool {
	return len(r.MediaPaths) > 0
}

// EncodeRecord renders a record as a frontmatter-fenced document.
func EncodeRecord(r *Record) ([]byte, error) {
	meta, err := yaml.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal record metadata: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString("---\n")
	buf.Write(meta)
	buf.WriteString("---\n\n")
	buf.WriteString(r.Content)
	if r.Content != "" && !strings.HasSuffix(r.Content, "\n") {
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

// DecodeRecord parses a frontmatter-fenced document back into a record.
func DecodeRecord(data []byte) (*Record, error) {
	text := string(data)
	if !strings.HasPrefix(text, "---\n") {
		return nil, fmt.Errorf("record file has no frontmatter block")
	}

	rest := text[len("---\n"):]
	end := strings.Index(rest, "\n---\n")
	if end < 0 {
		return nil, fmt.Errorf("record frontmatter block is not terminated")
	}

	var record Record
	if err := yaml.Unmarshal([]byte(rest[:end+1]), &record); err != nil {
		return nil, fmt.Errorf("failed to parse record metadata: %w", err)
	}
	if record.ID == "" {
		return nil, fmt.Errorf("record has no id")
	}

	record.Content = strings.TrimSpace(rest[end+len("\n---\n"):])
	return &record, nil
}

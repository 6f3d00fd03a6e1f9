package downloader

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/disintegration/imaging"
)

// Outcome reports what a media download produced.
type Outcome struct {
	Success        bool      `json:"success"`
	URL            string    `json:"url"`
	RecordID       string    `json:"record_id"`
	MediaPaths     []string  `json:"media_paths,omitempty"`
	ThumbnailPath  string    `json:"thumbnail_path,omitempty"`
	TotalSizeBytes int64     `json:"total_size_bytes"`
	ErrorMessage   string    `json:"error_message,omitempty"`
	DownloadedAt   time.Time `json:"downloaded_at"`
}

// MediaFetcher is the yt-dlp surface the downloader needs.
type MediaFetcher interface {
	Download(ctx context.Context, rawURL, outputTemplate string) error
	DownloadThumbnail(ctx context.Context, rawURL, outputTemplate string) error
}

type Downloader struct {
	fetcher   MediaFetcher
	client    *http.Client
	mediaDir  string
	thumbsDir string
	thumbSize int
}

var imageExtensions = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".webp": {},
	".png":  {},
}

func New(fetcher MediaFetcher, client *http.Client, mediaDir, thumbsDir string) *Downloader {
	return &Downloader{
		fetcher:   fetcher,
		client:    client,
		mediaDir:  mediaDir,
		thumbsDir: thumbsDir,
		thumbSize: 200,
	}
}

// Download fetches a post's media through yt-dlp into an author-scoped
// directory. Image outputs become the record thumbnail; when yt-dlp fails
// and the scrape produced direct media URLs those are fetched instead.
func (d *Downloader) Download(ctx context.Context, rawURL, id, author string, knownMediaURLs []string) Outcome {
	outcome := Outcome{URL: rawURL, RecordID: id, DownloadedAt: time.Now()}

	authorDir := filepath.Join(d.mediaDir, sanitizeAuthor(author))
	if err := os.MkdirAll(authorDir, 0755); err != nil {
		outcome.ErrorMessage = fmt.Sprintf("failed to create media directory: %v", err)
		return outcome
	}
	if err := os.MkdirAll(d.thumbsDir, 0755); err != nil {
		outcome.ErrorMessage = fmt.Sprintf("failed to create thumbnail directory: %v", err)
		return outcome
	}

	template := filepath.Join(authorDir, id+".%(ext)s")
	primaryErr := d.fetcher.Download(ctx, rawURL, template)

	files, _ := filepath.Glob(filepath.Join(authorDir, id+".*"))
	if primaryErr == nil || len(files) > 0 {
		d.collectOutputs(files, id, &outcome)
		if len(outcome.MediaPaths) > 0 || outcome.ThumbnailPath != "" {
			outcome.Success = true
			return outcome
		}
		if primaryErr == nil {
			outcome.ErrorMessage = "yt-dlp produced no output files"
			return outcome
		}
	}

	if len(knownMediaURLs) > 0 {
		if err := d.fetchDirect(ctx, knownMediaURLs, id, &outcome); err != nil {
			outcome.ErrorMessage = fmt.Sprintf("yt-dlp failed (%v); direct fetch failed: %v", primaryErr, err)
			return outcome
		}
		outcome.Success = true
		return outcome
	}

	outcome.ErrorMessage = primaryErr.Error()
	return outcome
}

// collectOutputs classifies yt-dlp output files: images become the record
// thumbnail, everything else is media.
func (d *Downloader) collectOutputs(files []string, id string, outcome *Outcome) {
	for _, file := range files {
		ext := strings.ToLower(filepath.Ext(file))
		if _, isImage := imageExtensions[ext]; isImage && outcome.ThumbnailPath == "" {
			thumbPath := filepath.Join(d.thumbsDir, id+".jpg")
			if err := d.processThumbnail(file, thumbPath); err == nil {
				outcome.ThumbnailPath = thumbPath
				continue
			}
		}
		if info, err := os.Stat(file); err == nil {
			outcome.TotalSizeBytes += info.Size()
		}
		outcome.MediaPaths = append(outcome.MediaPaths, file)
	}
}

// processThumbnail resizes src into a JPEG bounded to the thumbnail box and
// removes the original. Unreadable images are copied through unchanged.
func (d *Downloader) processThumbnail(src, dst string) error {
	img, err := imaging.Open(src)
	if err != nil {
		if copyErr := copyFile(src, dst); copyErr != nil {
			return copyErr
		}
		return os.Remove(src)
	}

	resized := imaging.Fit(img, d.thumbSize, d.thumbSize, imaging.Lanczos)
	if err := imaging.Save(resized, dst); err != nil {
		return fmt.Errorf("failed to save thumbnail: %w", err)
	}
	return os.Remove(src)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open source image: %w", err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create thumbnail file: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("failed to copy thumbnail: %w", err)
	}
	return nil
}

// fetchDirect downloads previously scraped media URLs with plain HTTP.
func (d *Downloader) fetchDirect(ctx context.Context, urls []string, id string, outcome *Outcome) error {
	for i, mediaURL := range urls {
		ext := ".jpg"
		if strings.Contains(strings.ToLower(mediaURL), "mp4") {
			ext = ".mp4"
		}
		name := id + ext
		if i > 0 {
			name = fmt.Sprintf("%s_%d%s", id, i, ext)
		}
		dst := filepath.Join(d.mediaDir, name)

		size, err := d.fetchURL(ctx, mediaURL, dst)
		if err != nil {
			return err
		}
		outcome.MediaPaths = append(outcome.MediaPaths, dst)
		outcome.TotalSizeBytes += size
	}
	return nil
}

func (d *Downloader) fetchURL(ctx context.Context, rawURL, dst string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("HTTP %d fetching media", resp.StatusCode)
	}

	f, err := os.Create(dst)
	if err != nil {
		return 0, fmt.Errorf("failed to create media file: %w", err)
	}
	defer f.Close()

	size, err := io.Copy(f, resp.Body)
	if err != nil {
		os.Remove(dst)
		return 0, fmt.Errorf("failed to write media file: %w", err)
	}
	return size, nil
}

// DownloadThumbnail fetches only a post's thumbnail image.
func (d *Downloader) DownloadThumbnail(ctx context.Context, rawURL, id string) (string, error) {
	if err := os.MkdirAll(d.thumbsDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create thumbnail directory: %w", err)
	}

	template := filepath.Join(d.thumbsDir, id+".%(ext)s")
	if err := d.fetcher.DownloadThumbnail(ctx, rawURL, template); err != nil {
		return "", err
	}

	final := filepath.Join(d.thumbsDir, id+".jpg")
	for _, ext := range []string{".jpg", ".jpeg", ".webp", ".png"} {
		candidate := filepath.Join(d.thumbsDir, id+ext)
		if _, err := os.Stat(candidate); err != nil {
			continue
		}
		if candidate == final {
			return final, nil
		}
		if err := d.processThumbnail(candidate, final); err != nil {
			return "", err
		}
		return final, nil
	}
	return "", fmt.Errorf("yt-dlp produced no thumbnail file")
}

// DeleteMedia removes every media and thumbnail file belonging to a record.
// It reports whether anything was removed.
func (d *Downloader) DeleteMedia(id string) bool {
	patterns := []string{
		filepath.Join(d.mediaDir, id+"*"),
		filepath.Join(d.mediaDir, "*", id+"*"),
		filepath.Join(d.thumbsDir, id+"*"),
	}

	removed := false
	for _, pattern := range patterns {
		matches, _ := filepath.Glob(pattern)
		for _, m := range matches {
			if err := os.Remove(m); err == nil {
				removed = true
			}
		}
	}
	return removed
}

// ThumbnailPath returns the path of a record's thumbnail if present.
func (d *Downloader) ThumbnailPath(id string) string {
	path := filepath.Join(d.thumbsDir, id+".jpg")
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}

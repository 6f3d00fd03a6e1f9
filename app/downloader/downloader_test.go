package downloader

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

type fakeFetcher struct {
	err       error
	thumbErr  error
	produce   map[string][]byte // filename relative to the template dir
	thumbName string
}

func (f *fakeFetcher) Download(ctx context.Context, rawURL, outputTemplate string) error {
	if f.err != nil {
		return f.err
	}
	dir := filepath.Dir(outputTemplate)
	for name, data := range f.produce {
		if err := os.WriteFile(filepath.Join(dir, name), data, 0644); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeFetcher) DownloadThumbnail(ctx context.Context, rawURL, outputTemplate string) error {
	if f.thumbErr != nil {
		return f.thumbErr
	}
	dir := filepath.Dir(outputTemplate)
	return os.WriteFile(filepath.Join(dir, f.thumbName), []byte("not-a-real-image"), 0644)
}

func newTestDownloader(t *testing.T, fetcher MediaFetcher) (*Downloader, string, string) {
	t.Helper()
	base := t.TempDir()
	mediaDir := filepath.Join(base, "media")
	thumbsDir := filepath.Join(base, "thumbnails")
	return New(fetcher, http.DefaultClient, mediaDir, thumbsDir), mediaDir, thumbsDir
}

func TestDownloadClassifiesOutputs(t *testing.T) {
	fetcher := &fakeFetcher{produce: map[string][]byte{
		"abc123def456.mp4": []byte("video-bytes"),
		"abc123def456.jpg": []byte("not-a-real-image"),
	}}
	d, mediaDir, thumbsDir := newTestDownloader(t, fetcher)

	outcome := d.Download(context.Background(), "https://www.instagram.com/reel/X", "abc123def456", "Chef Anna", nil)
	if !outcome.Success {
		t.Fatalf("expected success, got %q", outcome.ErrorMessage)
	}

	if len(outcome.MediaPaths) != 1 {
		t.Fatalf("expected 1 media path, got %v", outcome.MediaPaths)
	}
	expectedMedia := filepath.Join(mediaDir, "Chef_Anna", "abc123def456.mp4")
	if outcome.MediaPaths[0] != expectedMedia {
		t.Errorf("expected media in author directory, got %q", outcome.MediaPaths[0])
	}

	// the jpg is not decodable, so the thumbnail degrades to a byte copy
	expectedThumb := filepath.Join(thumbsDir, "abc123def456.jpg")
	if outcome.ThumbnailPath != expectedThumb {
		t.Errorf("expected thumbnail at %q, got %q", expectedThumb, outcome.ThumbnailPath)
	}
	if _, err := os.Stat(expectedThumb); err != nil {
		t.Errorf("thumbnail file missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(mediaDir, "Chef_Anna", "abc123def456.jpg")); !os.IsNotExist(err) {
		t.Errorf("source image should be moved out of the media directory")
	}
	if outcome.TotalSizeBytes != int64(len("video-bytes")) {
		t.Errorf("unexpected total size %d", outcome.TotalSizeBytes)
	}
}

func TestDownloadDirectFallback(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "mp4-payload")
	}))
	defer server.Close()

	fetcher := &fakeFetcher{err: errors.New("yt-dlp exited with 1: unsupported url")}
	d, mediaDir, _ := newTestDownloader(t, fetcher)
	d.client = server.Client()

	outcome := d.Download(context.Background(), "https://www.threads.net/@u/post/1", "fffaaa111222", "u", []string{server.URL + "/video.mp4"})
	if !outcome.Success {
		t.Fatalf("expected fallback success, got %q", outcome.ErrorMessage)
	}
	expected := filepath.Join(mediaDir, "fffaaa111222.mp4")
	if len(outcome.MediaPaths) != 1 || outcome.MediaPaths[0] != expected {
		t.Errorf("expected direct fetch into %q, got %v", expected, outcome.MediaPaths)
	}
	if outcome.TotalSizeBytes != int64(len("mp4-payload")) {
		t.Errorf("unexpected size %d", outcome.TotalSizeBytes)
	}
}

func TestDownloadFailureWithoutFallback(t *testing.T) {
	fetcher := &fakeFetcher{err: errors.New("yt-dlp exited with 1: login required")}
	d, _, _ := newTestDownloader(t, fetcher)

	outcome := d.Download(context.Background(), "https://www.instagram.com/p/Z", "deadbeef0000", "u", nil)
	if outcome.Success {
		t.Fatalf("expected failure")
	}
	if outcome.ErrorMessage == "" {
		t.Errorf("expected an error message")
	}
}

func TestDownloadThumbnailOnly(t *testing.T) {
	fetcher := &fakeFetcher{thumbName: "cafe00112233.webp"}
	d, _, thumbsDir := newTestDownloader(t, fetcher)

	path, err := d.DownloadThumbnail(context.Background(), "https://www.instagram.com/p/T", "cafe00112233")
	if err != nil {
		t.Fatalf("DownloadThumbnail failed: %v", err)
	}
	if path != filepath.Join(thumbsDir, "cafe00112233.jpg") {
		t.Errorf("unexpected thumbnail path %q", path)
	}
	if _, statErr := os.Stat(path); statErr != nil {
		t.Errorf("thumbnail file missing: %v", statErr)
	}
	if got := d.ThumbnailPath("cafe00112233"); got != path {
		t.Errorf("ThumbnailPath = %q, expected %q", got, path)
	}
}

func TestDeleteMedia(t *testing.T) {
	d, mediaDir, thumbsDir := newTestDownloader(t, &fakeFetcher{})
	authorDir := filepath.Join(mediaDir, "someone")
	if err := os.MkdirAll(authorDir, 0755); err != nil {
		t.Fatalf("setup failed: %v", err)
	}
	if err := os.MkdirAll(thumbsDir, 0755); err != nil {
		t.Fatalf("setup failed: %v", err)
	}
	for _, p := range []string{
		filepath.Join(authorDir, "aaa111bbb222.mp4"),
		filepath.Join(thumbsDir, "aaa111bbb222.jpg"),
	} {
		if err := os.WriteFile(p, []byte("x"), 0644); err != nil {
			t.Fatalf("setup failed: %v", err)
		}
	}

	if !d.DeleteMedia("aaa111bbb222") {
		t.Fatalf("expected DeleteMedia to report removal")
	}
	if _, err := os.Stat(filepath.Join(authorDir, "aaa111bbb222.mp4")); !os.IsNotExist(err) {
		t.Errorf("media file should be gone")
	}
	if d.DeleteMedia("aaa111bbb222") {
		t.Errorf("second delete should report nothing removed")
	}
}

func TestSanitizeAuthor(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Chef Anna", "Chef_Anna"},
		{"José García", "Jose_Garcia"},
		{"user.name_42", "user.name_42"},
		{"@@@", "unknown"},
		{"", "unknown"},
	}
	for _, tt := range tests {
		if got := sanitizeAuthor(tt.input); got != tt.expected {
			t.Errorf("sanitizeAuthor(%q) = %q, expected %q", tt.input, got, tt.expected)
		}
	}
}

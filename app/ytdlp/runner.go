package ytdlp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"
)

// ErrNotInstalled reports that the yt-dlp binary could not be found.
var ErrNotInstalled = errors.New("yt-dlp is not installed")

// Info is the subset of yt-dlp's --dump-json output the scrapers consume.
type Info struct {
	Uploader     string  `json:"uploader"`
	Channel      string  `json:"channel"`
	UploaderURL  string  `json:"uploader_url"`
	ChannelURL   string  `json:"channel_url"`
	Title        string  `json:"title"`
	Description  string  `json:"description"`
	UploadDate   string  `json:"upload_date"`
	Timestamp    int64   `json:"timestamp"`
	Duration     float64 `json:"duration"`
	ViewCount    *int64  `json:"view_count"`
	LikeCount    *int64  `json:"like_count"`
	CommentCount *int64  `json:"comment_count"`
	RepostCount  *int64  `json:"repost_count"`
	Thumbnail    string  `json:"thumbnail"`
	URL          string  `json:"url"`
	Formats      []struct {
		URL    string `json:"url"`
		Height int    `json:"height"`
	} `json:"formats"`
}

// Runner shells out to yt-dlp. Cookie settings are forwarded opaquely and
// may be changed at runtime while tasks run, so they sit behind a mutex.
type Runner struct {
	Path string

	mu                 sync.Mutex
	cookiesFromBrowser string
	cookiesFile        string
}

func NewRunner(path, cookiesFromBrowser, cookiesFile string) *Runner {
	if path == "" {
		path = "yt-dlp"
	}
	return &Runner{Path: path, cookiesFromBrowser: cookiesFromBrowser, cookiesFile: cookiesFile}
}

// SetCookies replaces the cookie passthrough settings.
func (r *Runner) SetCookies(fromBrowser, file string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cookiesFromBrowser = fromBrowser
	r.cookiesFile = file
}

// Cookies returns the current cookie passthrough settings.
func (r *Runner) Cookies() (fromBrowser, file string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cookiesFromBrowser, r.cookiesFile
}

func (r *Runner) cookieArgs() []string {
	fromBrowser, file := r.Cookies()
	if fromBrowser != "" {
		return []string{"--cookies-from-browser", fromBrowser}
	}
	if file != "" {
		return []string{"--cookies", file}
	}
	return nil
}

func (r *Runner) run(ctx context.Context, args []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, r.Path, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return nil, ErrNotInstalled
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			msg := strings.TrimSpace(stderr.String())
			if len(msg) > 200 {
				msg = msg[:200]
			}
			return nil, fmt.Errorf("yt-dlp exited with %d: %s", exitErr.ExitCode(), msg)
		}
		return nil, fmt.Errorf("failed to run yt-dlp: %w", err)
	}

	return stdout.Bytes(), nil
}

// DumpJSON fetches post metadata without downloading any media.
func (r *Runner) DumpJSON(ctx context.Context, rawURL string) (*Info, error) {
	args := []string{"--dump-json", "--no-download", "--no-warnings"}
	args = append(args, r.cookieArgs()...)
	args = append(args, rawURL)

	out, err := r.run(ctx, args)
	if err != nil {
		return nil, err
	}

	var info Info
	if err := json.Unmarshal(out, &info); err != nil {
		return nil, fmt.Errorf("failed to decode yt-dlp output: %w", err)
	}
	return &info, nil
}

// Download fetches the post media plus its thumbnail into the given output
// template.
func (r *Runner) Download(ctx context.Context, rawURL, outputTemplate string) error {
	args := []string{
		"--no-warnings", "--no-playlist",
		"-o", outputTemplate,
		"--write-thumbnail", "--convert-thumbnails", "jpg",
	}
	args = append(args, r.cookieArgs()...)
	args = append(args, rawURL)

	_, err := r.run(ctx, args)
	return err
}

// DownloadThumbnail fetches only the thumbnail image for a post.
func (r *Runner) DownloadThumbnail(ctx context.Context, rawURL, outputTemplate string) error {
	args := []string{
		"--no-warnings", "--skip-download",
		"--write-thumbnail", "--convert-thumbnails", "jpg",
		"-o", outputTemplate,
	}
	args = append(args, r.cookieArgs()...)
	args = append(args, rawURL)

	_, err := r.run(ctx, args)
	return err
}

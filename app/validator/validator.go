package validator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/doyensec/safeurl"
)

const (
	StatusAccessible    = "accessible"
	StatusPrivate       = "private"
	StatusDeleted       = "deleted"
	StatusLoginRequired = "login_required"
	StatusRateLimited   = "rate_limited"
	StatusTimeout       = "timeout"
	StatusUnknown       = "unknown"
)

// Result is the outcome of probing a single URL.
type Result struct {
	URL            string    `json:"url"`
	Status         string    `json:"status"`
	HTTPStatus     int       `json:"http_status,omitempty"`
	ErrorMessage   string    `json:"error_message,omitempty"`
	ValidatedAt    time.Time `json:"validated_at"`
	ResponseTimeMs int64     `json:"response_time_ms"`
}

type Options struct {
	UserAgent   string
	Timeout     time.Duration
	MaxRetries  int
	RetryDelay  time.Duration
	Concurrency int
	BatchDelay  time.Duration
}

func DefaultOptions() Options {
	return Options{
		Timeout:     10 * time.Second,
		MaxRetries:  3,
		RetryDelay:  time.Second,
		Concurrency: 5,
		BatchDelay:  time.Second,
	}
}

type Validator struct {
	client *http.Client
	opts   Options
}

// NewSafeClient builds an SSRF-guarded HTTP client for probing URLs that
// originate in untrusted note files.
func NewSafeClient(timeout time.Duration) *http.Client {
	config := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes("http", "https").
		SetAllowedPorts(80, 443).
		Build()
	return safeurl.Client(config).Client
}

// New builds a Validator over the given HTTP client. Tests inject an
// httptest-backed client; production wiring uses NewSafeClient.
func New(client *http.Client, opts Options) *Validator {
	if opts.MaxRetries < 1 {
		opts.MaxRetries = 1
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	return &Validator{client: client, opts: opts}
}

var statusForCode = map[int]string{
	http.StatusOK:              StatusAccessible,
	http.StatusUnauthorized:    StatusLoginRequired,
	http.StatusForbidden:       StatusPrivate,
	http.StatusNotFound:        StatusDeleted,
	http.StatusTooManyRequests: StatusRateLimited,
}

// Indicator phrases that platforms render into the body of a 200 response
// for posts that are gone or gated. Deleted indicators win over private ones.
var deletedIndicators = []string{
	"page not found",
	"this page may have been removed",
	"content has been removed",
	"no longer available",
}

var privateIndicators = []string{
	"this page isn't available",
	"sorry, this page isn't available",
	"content isn't available",
	"private account",
	"log in to see photos",
}

// Validate probes a single URL with bounded retries. Timeouts exhaust the
// retry budget before reporting; other network errors report unknown.
func (v *Validator) Validate(ctx context.Context, rawURL string) Result {
	result := Result{URL: rawURL, ValidatedAt: time.Now()}
	started := time.Now()

	for attempt := 1; attempt <= v.opts.MaxRetries; attempt++ {
		status, httpStatus, err := v.probe(ctx, rawURL)
		if err == nil {
			result.Status = status
			result.HTTPStatus = httpStatus
			result.ErrorMessage = ""
			result.ResponseTimeMs = time.Since(started).Milliseconds()
			return result
		}

		if isTimeout(err) {
			result.Status = StatusTimeout
			result.ErrorMessage = fmt.Sprintf("request timed out after %d attempts", attempt)
		} else {
			result.Status = StatusUnknown
			result.ErrorMessage = err.Error()
		}

		if attempt < v.opts.MaxRetries {
			select {
			case <-ctx.Done():
				result.Status = StatusTimeout
				result.ErrorMessage = ctx.Err().Error()
				result.ResponseTimeMs = time.Since(started).Milliseconds()
				return result
			case <-time.After(v.opts.RetryDelay):
			}
		}
	}

	result.ResponseTimeMs = time.Since(started).Milliseconds()
	return result
}

func (v *Validator) probe(ctx context.Context, rawURL string) (string, int, error) {
	reqCtx := ctx
	if v.opts.Timeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, v.opts.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", 0, fmt.Errorf("failed to build request: %w", err)
	}
	if v.opts.UserAgent != "" {
		req.Header.Set("User-Agent", v.opts.UserAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := v.client.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()

	status, known := statusForCode[resp.StatusCode]
	if !known {
		return StatusUnknown, resp.StatusCode, nil
	}

	if resp.StatusCode == http.StatusOK {
		body, err := io.ReadAll(io.LimitReader(resp.Body, 512*1024))
		if err == nil {
			if bodyStatus := analyzeContent(string(body)); bodyStatus != "" {
				return bodyStatus, resp.StatusCode, nil
			}
		}
	}

	return status, resp.StatusCode, nil
}

// analyzeContent detects soft failures that platforms serve with HTTP 200.
func analyzeContent(body string) string {
	lower := strings.ToLower(body)
	for _, indicator := range deletedIndicators {
		if strings.Contains(lower, indicator) {
			return StatusDeleted
		}
	}
	for _, indicator := range privateIndicators {
		if strings.Contains(lower, indicator) {
			return StatusPrivate
		}
	}
	return ""
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return false
}

// ValidateBatch probes URLs with bounded concurrency and returns results in
// input order. A fixed courtesy delay follows each completed probe.
func (v *Validator) ValidateBatch(ctx context.Context, urls []string) []Result {
	results := make([]Result, len(urls))
	sem := make(chan struct{}, v.opts.Concurrency)
	var wg sync.WaitGroup

	for i, u := range urls {
		wg.Add(1)
		go func(idx int, rawURL string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			results[idx] = v.Validate(ctx, rawURL)

			if v.opts.BatchDelay > 0 {
				select {
				case <-ctx.Done():
				case <-time.After(v.opts.BatchDelay):
				}
			}
		}(i, u)
	}

	wg.Wait()
	return results
}

package validator

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestValidator(handler http.Handler) (*Validator, *httptest.Server) {
	server := httptest.NewServer(handler)
	opts := DefaultOptions()
	opts.MaxRetries = 1
	opts.BatchDelay = 0
	opts.Timeout = 2 * time.Second
	return New(server.Client(), opts), server
}

func TestValidateStatusCodes(t *testing.T) {
	tests := []struct {
		name     string
		code     int
		expected string
	}{
		{"ok", http.StatusOK, StatusAccessible},
		{"unauthorized", http.StatusUnauthorized, StatusLoginRequired},
		{"forbidden", http.StatusForbidden, StatusPrivate},
		{"not found", http.StatusNotFound, StatusDeleted},
		{"rate limited", http.StatusTooManyRequests, StatusRateLimited},
		{"server error", http.StatusInternalServerError, StatusUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, server := newTestValidator(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.code)
			}))
			defer server.Close()

			result := v.Validate(context.Background(), server.URL)
			if result.Status != tt.expected {
				t.Errorf("expected status %q for HTTP %d, got %q", tt.expected, tt.code, result.Status)
			}
			if result.HTTPStatus != tt.code {
				t.Errorf("expected HTTP status %d recorded, got %d", tt.code, result.HTTPStatus)
			}
		})
	}
}

func TestValidateBodyIndicators(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		expected string
	}{
		{"gated page banner", "<html>This page isn't available</html>", StatusPrivate},
		{"gated page banner with apology", "<html>Sorry, this page isn't available.</html>", StatusPrivate},
		{"private account", "<html>This is a Private Account</html>", StatusPrivate},
		{"login wall", "<html>Log in to see photos and videos</html>", StatusPrivate},
		{"removed page", "<html>This page may have been removed</html>", StatusDeleted},
		{"not found page", "<html>Page Not Found</html>", StatusDeleted},
		{"deleted wins over private", "<html>Page not found. Log in to see photos</html>", StatusDeleted},
		{"clean body", "<html>A nice post</html>", StatusAccessible},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, server := newTestValidator(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			result := v.Validate(context.Background(), server.URL)
			if result.Status != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, result.Status)
			}
		})
	}
}

func TestValidateSendsBrowserHeaders(t *testing.T) {
	var gotUA, gotAccept string
	v, server := newTestValidator(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotAccept = r.Header.Get("Accept")
	}))
	defer server.Close()
	v.opts.UserAgent = "TestBrowser/1.0"

	v.Validate(context.Background(), server.URL)

	if gotUA != "TestBrowser/1.0" {
		t.Errorf("expected custom user agent, got %q", gotUA)
	}
	if gotAccept == "" {
		t.Errorf("expected Accept header to be set")
	}
}

func TestValidateUnreachableHost(t *testing.T) {
	opts := DefaultOptions()
	opts.MaxRetries = 2
	opts.RetryDelay = 10 * time.Millisecond
	opts.Timeout = time.Second
	v := New(&http.Client{}, opts)

	result := v.Validate(context.Background(), "http://127.0.0.1:1")
	if result.Status != StatusUnknown {
		t.Errorf("expected unknown for connection refusal, got %q", result.Status)
	}
	if result.ErrorMessage == "" {
		t.Errorf("expected an error message for failed probe")
	}
}

func TestValidateBatchPreservesOrder(t *testing.T) {
	v, server := newTestValidator(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/gone":
			w.WriteHeader(http.StatusNotFound)
		case "/gated":
			w.WriteHeader(http.StatusForbidden)
		default:
			w.Write([]byte("ok"))
		}
	}))
	defer server.Close()

	urls := []string{server.URL + "/fine", server.URL + "/gone", server.URL + "/gated"}
	results := v.ValidateBatch(context.Background(), urls)

	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	expected := []string{StatusAccessible, StatusDeleted, StatusPrivate}
	for i, want := range expected {
		if results[i].URL != urls[i] {
			t.Errorf("result %d out of order: got %q", i, results[i].URL)
		}
		if results[i].Status != want {
			t.Errorf("result %d: expected %q, got %q", i, want, results[i].Status)
		}
	}
}

package parser

import (
	"bufio"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

var linkPattern = regexp.MustCompile(`(?i)https?://(?:www\.)?(?:instagram|facebook|linkedin|threads)\.(?:com|net)/[^\s\])]+`)

// trackingParams are query parameters that vary between shares of the same
// post and never identify it.
var trackingParams = map[string]struct{}{
	"igsh":         {},
	"mibextid":     {},
	"img_index":    {},
	"fbclid":       {},
	"utm_source":   {},
	"utm_medium":   {},
	"utm_campaign": {},
}

const trailingPunctuation = `.,;:!?)'"`

// DetectPlatform returns the platform name for a social post URL, or an
// empty string when the host is not recognized.
func DetectPlatform(rawURL string) string {
	lower := strings.ToLower(rawURL)
	switch {
	case strings.Contains(lower, "instagram.com"):
		return "instagram"
	case strings.Contains(lower, "facebook.com"):
		return "facebook"
	case strings.Contains(lower, "linkedin.com"):
		return "linkedin"
	case strings.Contains(lower, "threads.net"):
		return "threads"
	}
	return ""
}

// Normalize strips tracking query parameters and the trailing slash so that
// share variants of the same post map to one canonical URL. Normalizing an
// already normalized URL is a no-op.
func Normalize(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return strings.TrimRight(rawURL, "/")
	}

	if u.RawQuery != "" {
		kept := make([]string, 0)
		for _, pair := range strings.Split(u.RawQuery, "&") {
			key := pair
			if i := strings.Index(pair, "="); i >= 0 {
				key = pair[:i]
			}
			if _, tracking := trackingParams[key]; tracking {
				continue
			}
			kept = append(kept, pair)
		}
		u.RawQuery = strings.Join(kept, "&")
	}

	return strings.TrimRight(u.String(), "/")
}

// ParseFile extracts social post links from a single note file. YAML
// frontmatter is skipped, trailing punctuation glued onto URLs by prose is
// trimmed, and each link carries the nearest preceding context line.
func ParseFile(path string) ([]Link, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open note file: %w", err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read note file: %w", err)
	}

	start := 0
	if len(lines) > 0 && strings.TrimSpace(lines[0]) == "---" {
		for i := 1; i < len(lines); i++ {
			if strings.TrimSpace(lines[i]) == "---" {
				start = i + 1
				break
			}
		}
	}

	var links []Link
	for i := start; i < len(lines); i++ {
		matches := linkPattern.FindAllString(lines[i], -1)
		if len(matches) == 0 {
			continue
		}
		context := contextFor(lines, start, i)
		for _, m := range matches {
			cleaned := strings.TrimRight(m, trailingPunctuation)
			platform := DetectPlatform(cleaned)
			if platform == "" {
				continue
			}
			links = append(links, Link{
				URL:        cleaned,
				Platform:   platform,
				SourceFile: path,
				LineNumber: i + 1,
				Context:    context,
			})
		}
	}

	return links, nil
}

// contextFor returns the nearest preceding non-blank line that is not itself
// a link line.
func contextFor(lines []string, start, idx int) string {
	for i := idx - 1; i >= start; i-- {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		if linkPattern.MatchString(line) {
			continue
		}
		return line
	}
	return ""
}

// ScanDirectory walks root for note files matching pattern and parses each
// one. A file that fails to parse is logged and skipped, never aborting the
// scan.
func ScanDirectory(root, pattern string, recursive bool) (*Collection, error) {
	var files []string

	if recursive {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			matched, err := filepath.Match(pattern, d.Name())
			if err != nil {
				return err
			}
			if matched {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to walk source directory: %w", err)
		}
	} else {
		matched, err := filepath.Glob(filepath.Join(root, pattern))
		if err != nil {
			return nil, fmt.Errorf("invalid file pattern: %w", err)
		}
		files = matched
	}

	sort.Strings(files)

	collection := NewCollection()
	for _, file := range files {
		links, err := ParseFile(file)
		if err != nil {
			slog.Warn("Skipping unreadable note file", "file", file, "error", err)
			continue
		}
		for _, link := range links {
			collection.Add(link)
		}
	}

	return collection, nil
}

// DetectDuplicates groups occurrences that normalize to the same identifier.
func DetectDuplicates(c *Collection) DuplicateReport {
	byID := make(map[string][]Link)
	var order []string
	for _, link := range c.Links {
		id := link.ID()
		if _, seen := byID[id]; !seen {
			order = append(order, id)
		}
		byID[id] = append(byID[id], link)
	}

	var report DuplicateReport
	for _, id := range order {
		if len(byID[id]) > 1 {
			report.Groups = append(report.Groups, DuplicateGroup{ID: id, Links: byID[id]})
		}
	}
	return report
}

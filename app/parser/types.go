package parser

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
)

// Link is a single social post URL occurrence found in a note file.
type Link struct {
	URL        string `json:"url"`
	Platform   string `json:"platform"`
	SourceFile string `json:"source_file"`
	LineNumber int    `json:"line_number"`
	Context    string `json:"context,omitempty"`
}

// ID returns the stable identifier derived from the normalized URL.
func (l Link) ID() string {
	return LinkID(l.URL)
}

// LinkID hashes the normalized form of rawURL so that tracking-parameter
// and trailing-slash variants of the same post share an identifier.
func LinkID(rawURL string) string {
	sum := sha256.Sum256([]byte(Normalize(rawURL)))
	return hex.EncodeToString(sum[:])[:12]
}

// Collection accumulates links across scanned files.
type Collection struct {
	Links       []Link
	sourceFiles map[string]struct{}
}

func NewCollection() *Collection {
	return &Collection{sourceFiles: make(map[string]struct{})}
}

func (c *Collection) Add(link Link) {
	c.Links = append(c.Links, link)
	c.sourceFiles[link.SourceFile] = struct{}{}
}

func (c *Collection) Len() int {
	return len(c.Links)
}

// SourceFiles returns the distinct scanned files that contributed links,
// sorted for stable output.
func (c *Collection) SourceFiles() []string {
	files := make([]string, 0, len(c.sourceFiles))
	for f := range c.sourceFiles {
		files = append(files, f)
	}
	sort.Strings(files)
	return files
}

// Unique returns the first occurrence of each link identifier, in scan order.
func (c *Collection) Unique() []Link {
	seen := make(map[string]struct{}, len(c.Links))
	unique := make([]Link, 0, len(c.Links))
	for _, link := range c.Links {
		id := link.ID()
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, link)
	}
	return unique
}

// ByPlatform groups links by platform name, preserving scan order within
// each group.
func (c *Collection) ByPlatform() map[string][]Link {
	groups := make(map[string][]Link)
	for _, link := range c.Links {
		groups[link.Platform] = append(groups[link.Platform], link)
	}
	return groups
}

// DuplicateGroup holds every occurrence of a link identifier that was seen
// more than once.
type DuplicateGroup struct {
	ID    string `json:"id"`
	Links []Link `json:"links"`
}

type DuplicateReport struct {
	Groups []DuplicateGroup `json:"groups"`
}

// TotalDuplicates counts the redundant occurrences, i.e. every occurrence
// beyond the first in each group.
func (r DuplicateReport) TotalDuplicates() int {
	total := 0
	for _, g := range r.Groups {
		total += len(g.Links) - 1
	}
	return total
}

func (r DuplicateReport) UniqueDuplicatedCount() int {
	return len(r.Groups)
}

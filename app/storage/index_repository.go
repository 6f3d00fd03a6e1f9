package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// indexRepository mirrors the in-memory index into a sqlite file so startup
// does not have to re-read every record file.
type indexRepository struct {
	db *sql.DB
}

func newIndexRepository(path string) (*indexRepository, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open index database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	return &indexRepository{db: db}, nil
}

func (r *indexRepository) Close() error {
	return r.db.Close()
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseNullTime(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, s.String)
	if err != nil {
		return nil
	}
	return &t
}

func nullInt(n *int64) any {
	if n == nil {
		return nil
	}
	return *n
}

func parseNullInt(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}

func (r *indexRepository) Upsert(entry IndexEntry) error {
	tags, err := json.Marshal(entry.Tags)
	if err != nil {
		return fmt.Errorf("failed to encode tags: %w", err)
	}

	_, err = r.db.Exec(`
		INSERT INTO index_entries (
			id, url, platform, author, status, title, posted_at, scraped_at,
			tags, category, has_media, media_type, views, likes, comments, thumbnail_path
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			url = excluded.url,
			platform = excluded.platform,
			author = excluded.author,
			status = excluded.status,
			title = excluded.title,
			posted_at = excluded.posted_at,
			scraped_at = excluded.scraped_at,
			tags = excluded.tags,
			category = excluded.category,
			has_media = excluded.has_media,
			media_type = excluded.media_type,
			views = excluded.views,
			likes = excluded.likes,
			comments = excluded.comments,
			thumbnail_path = excluded.thumbnail_path`,
		entry.ID, entry.URL, entry.Platform, entry.Author, entry.Status, entry.Title,
		nullTime(entry.PostedAt), nullTime(entry.ScrapedAt),
		string(tags), entry.Category, entry.HasMedia, entry.MediaType,
		nullInt(entry.Views), nullInt(entry.Likes), nullInt(entry.Comments),
		entry.ThumbnailPath)
	if err != nil {
		return fmt.Errorf("failed to upsert index entry: %w", err)
	}
	return nil
}

func (r *indexRepository) Delete(id string) error {
	if _, err := r.db.Exec(`DELETE FROM index_entries WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete index entry: %w", err)
	}
	return nil
}

// LoadAll returns every entry in original insertion order.
func (r *indexRepository) LoadAll() ([]IndexEntry, error) {
	rows, err := r.db.Query(`
		SELECT id, url, platform, author, status, title, posted_at, scraped_at,
			tags, category, has_media, media_type, views, likes, comments, thumbnail_path
		FROM index_entries ORDER BY ord`)
	if err != nil {
		return nil, fmt.Errorf("failed to load index entries: %w", err)
	}
	defer rows.Close()

	var entries []IndexEntry
	for rows.Next() {
		var entry IndexEntry
		var postedAt, scrapedAt sql.NullString
		var tags string
		var views, likes, comments sql.NullInt64

		err := rows.Scan(&entry.ID, &entry.URL, &entry.Platform, &entry.Author,
			&entry.Status, &entry.Title, &postedAt, &scrapedAt,
			&tags, &entry.Category, &entry.HasMedia, &entry.MediaType,
			&views, &likes, &comments, &entry.ThumbnailPath)
		if err != nil {
			return nil, fmt.Errorf("failed to scan index entry: %w", err)
		}

		entry.PostedAt = parseNullTime(postedAt)
		entry.ScrapedAt = parseNullTime(scrapedAt)
		entry.Views = parseNullInt(views)
		entry.Likes = parseNullInt(likes)
		entry.Comments = parseNullInt(comments)
		if err := json.Unmarshal([]byte(tags), &entry.Tags); err != nil {
			entry.Tags = nil
		}

		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

// Rebuild replaces the whole mirror in one transaction.
func (r *indexRepository) Rebuild(entries []IndexEntry) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin rebuild transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM index_entries`); err != nil {
		return fmt.Errorf("failed to clear index entries: %w", err)
	}

	for _, entry := range entries {
		tags, err := json.Marshal(entry.Tags)
		if err != nil {
			return fmt.Errorf("failed to encode tags: %w", err)
		}
		_, err = tx.Exec(`
			INSERT INTO index_entries (
				id, url, platform, author, status, title, posted_at, scraped_at,
				tags, category, has_media, media_type, views, likes, comments, thumbnail_path
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			entry.ID, entry.URL, entry.Platform, entry.Author, entry.Status, entry.Title,
			nullTime(entry.PostedAt), nullTime(entry.ScrapedAt),
			string(tags), entry.Category, entry.HasMedia, entry.MediaType,
			nullInt(entry.Views), nullInt(entry.Likes), nullInt(entry.Comments),
			entry.ThumbnailPath)
		if err != nil {
			return fmt.Errorf("failed to insert index entry: %w", err)
		}
	}

	return tx.Commit()
}

package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Session is one localizer run as stored in the history database.
type Session struct {
	SessionID         int64
	CreatedAt         time.Time
	SourceDir         string
	WorkDir           string
	DryRun            bool
	Status            string
	DocumentsScanned  int
	DocumentsModified int
	DocumentsFailed   int
	ImagesFound       int
	ImagesLocalized   int
	CacheHits         int
	Failures          int
	DurationSeconds   float64
}

// Document is one processed file within a session.
type Document struct {
	DocumentID      int64
	Path            string
	Status          string
	ImagesFound     int
	ImagesLocalized int
	Failures        int
	Error           string
}

// Image is one resolved image reference within a session.
type Image struct {
	ImageID     int64
	URL         string
	URLHash     string
	LocalPath   string
	ContentType string
	SizeBytes   int64
	Attempts    int
	CacheHit    bool
	Status      string
	Error       string
}

const sessionColumns = `
	session_id, created_at, source_dir, work_dir, dry_run, status,
	documents_scanned, documents_modified, documents_failed,
	images_found, images_localized, cache_hits, failures, duration_seconds`

func scanSession(row interface{ Scan(...interface{}) error }) (Session, error) {
	var s Session
	err := row.Scan(
		&s.SessionID, &s.CreatedAt, &s.SourceDir, &s.WorkDir, &s.DryRun, &s.Status,
		&s.DocumentsScanned, &s.DocumentsModified, &s.DocumentsFailed,
		&s.ImagesFound, &s.ImagesLocalized, &s.CacheHits, &s.Failures, &s.DurationSeconds,
	)
	return s, err
}

// ListSessions returns the most recent sessions, newest first.
func (db *DB) ListSessions(limit int) ([]Session, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := db.Query(`
		SELECT `+sessionColumns+`
		FROM sessions
		ORDER BY created_at DESC, session_id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// GetSessionByID returns one session.
func (db *DB) GetSessionByID(sessionID int64) (*Session, error) {
	row := db.QueryRow(`
		SELECT `+sessionColumns+`
		FROM sessions WHERE session_id = ?
	`, sessionID)

	s, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session %d not found", sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return &s, nil
}

// LatestSessionID returns the ID of the most recent session.
func (db *DB) LatestSessionID() (int64, error) {
	var id int64
	err := db.QueryRow(`SELECT session_id FROM sessions ORDER BY session_id DESC LIMIT 1`).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("no sessions found")
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get latest session: %w", err)
	}
	return id, nil
}

// GetSessionDocuments returns the documents processed in a session.
func (db *DB) GetSessionDocuments(sessionID int64) ([]Document, error) {
	rows, err := db.Query(`
		SELECT document_id, path, status, images_found, images_localized, failures,
		       COALESCE(error, '')
		FROM documents
		WHERE session_id = ?
		ORDER BY document_id
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get session documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.DocumentID, &d.Path, &d.Status, &d.ImagesFound,
			&d.ImagesLocalized, &d.Failures, &d.Error); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// GetSessionImages returns the image outcomes for a session.
func (db *DB) GetSessionImages(sessionID int64) ([]Image, error) {
	rows, err := db.Query(`
		SELECT image_id, url, url_hash,
		       COALESCE(local_path, ''), COALESCE(content_type, ''),
		       size_bytes, attempts, cache_hit, status, COALESCE(error, '')
		FROM images
		WHERE session_id = ?
		ORDER BY image_id
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get session images: %w", err)
	}
	defer rows.Close()

	var images []Image
	for rows.Next() {
		var img Image
		if err := rows.Scan(&img.ImageID, &img.URL, &img.URLHash, &img.LocalPath,
			&img.ContentType, &img.SizeBytes, &img.Attempts, &img.CacheHit,
			&img.Status, &img.Error); err != nil {
			return nil, fmt.Errorf("failed to scan image: %w", err)
		}
		images = append(images, img)
	}
	return images, rows.Err()
}

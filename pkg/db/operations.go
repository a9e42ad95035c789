package db

import (
	"fmt"
)

// Totals are the final counters for a session.
type Totals struct {
	DocumentsScanned  int
	DocumentsModified int
	DocumentsFailed   int
	ImagesFound       int
	ImagesLocalized   int
	CacheHits         int
	Failures          int
}

// CreateSession inserts a new running session and returns its ID.
func (db *DB) CreateSession(sourceDir, workDir string, dryRun bool) (int64, error) {
	result, err := db.Exec(`
		INSERT INTO sessions (source_dir, work_dir, dry_run)
		VALUES (?, ?, ?)
	`, sourceDir, workDir, dryRun)
	if err != nil {
		return 0, fmt.Errorf("failed to insert session: %w", err)
	}

	sessionID, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get session ID: %w", err)
	}
	return sessionID, nil
}

// FinishSession records the final counters and status for a session.
func (db *DB) FinishSession(sessionID int64, status string, totals Totals, durationSeconds float64) error {
	_, err := db.Exec(`
		UPDATE sessions
		SET status = ?,
		    documents_scanned = ?, documents_modified = ?, documents_failed = ?,
		    images_found = ?, images_localized = ?, cache_hits = ?, failures = ?,
		    duration_seconds = ?
		WHERE session_id = ?
	`, status,
		totals.DocumentsScanned, totals.DocumentsModified, totals.DocumentsFailed,
		totals.ImagesFound, totals.ImagesLocalized, totals.CacheHits, totals.Failures,
		durationSeconds, sessionID)
	if err != nil {
		return fmt.Errorf("failed to finish session: %w", err)
	}
	return nil
}

// InsertDocument records a document at the start of its processing.
func (db *DB) InsertDocument(sessionID int64, path string) (int64, error) {
	result, err := db.Exec(`
		INSERT INTO documents (session_id, path)
		VALUES (?, ?)
	`, sessionID, path)
	if err != nil {
		return 0, fmt.Errorf("failed to insert document: %w", err)
	}

	documentID, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get document ID: %w", err)
	}
	return documentID, nil
}

// FinishDocument records a document's outcome.
func (db *DB) FinishDocument(documentID int64, status string, imagesFound, imagesLocalized, failures int, errMsg string) error {
	_, err := db.Exec(`
		UPDATE documents
		SET status = ?, images_found = ?, images_localized = ?, failures = ?, error = ?
		WHERE document_id = ?
	`, status, imagesFound, imagesLocalized, failures, nullable(errMsg), documentID)
	if err != nil {
		return fmt.Errorf("failed to finish document: %w", err)
	}
	return nil
}

// ImageRecord is one resolved image reference.
type ImageRecord struct {
	URL         string
	URLHash     string
	LocalPath   string
	ContentType string
	ContentHash string
	SizeBytes   int64
	Attempts    int
	CacheHit    bool
	Status      string // localized, cached, failed
	Error       string
}

// RecordImage inserts an image outcome for a session/document pair.
// A zero documentID stores NULL (document row could not be created).
func (db *DB) RecordImage(sessionID, documentID int64, rec ImageRecord) error {
	var docID interface{}
	if documentID > 0 {
		docID = documentID
	}
	_, err := db.Exec(`
		INSERT INTO images
			(session_id, document_id, url, url_hash, local_path, content_type,
			 content_hash, size_bytes, attempts, cache_hit, status, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, sessionID, docID, rec.URL, rec.URLHash, nullable(rec.LocalPath),
		nullable(rec.ContentType), nullable(rec.ContentHash), rec.SizeBytes,
		rec.Attempts, rec.CacheHit, rec.Status, nullable(rec.Error))
	if err != nil {
		return fmt.Errorf("failed to record image: %w", err)
	}
	return nil
}

// nullable maps "" to NULL so empty strings don't pollute the tables.
func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

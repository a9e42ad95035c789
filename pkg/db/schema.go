package db

const schema = `
-- Performance and reliability settings
PRAGMA journal_mode = WAL;
PRAGMA synchronous = NORMAL;
PRAGMA foreign_keys = ON;

-- Sessions table: one row per localizer run
CREATE TABLE IF NOT EXISTS sessions (
    session_id INTEGER PRIMARY KEY AUTOINCREMENT,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    source_dir TEXT NOT NULL,
    work_dir TEXT NOT NULL,
    dry_run BOOLEAN NOT NULL DEFAULT 0,
    status TEXT NOT NULL DEFAULT 'running',   -- running, completed, aborted

    -- Final counters, filled in when the run is summarized
    documents_scanned INTEGER DEFAULT 0,
    documents_modified INTEGER DEFAULT 0,
    documents_failed INTEGER DEFAULT 0,
    images_found INTEGER DEFAULT 0,
    images_localized INTEGER DEFAULT 0,
    cache_hits INTEGER DEFAULT 0,
    failures INTEGER DEFAULT 0,
    duration_seconds REAL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_sessions_created ON sessions(created_at DESC);

-- Documents table: one row per markdown file touched by a session
CREATE TABLE IF NOT EXISTS documents (
    document_id INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id INTEGER NOT NULL,
    path TEXT NOT NULL,
    status TEXT NOT NULL DEFAULT 'processed', -- processed, unchanged, failed
    images_found INTEGER DEFAULT 0,
    images_localized INTEGER DEFAULT 0,
    failures INTEGER DEFAULT 0,
    error TEXT,
    FOREIGN KEY (session_id) REFERENCES sessions(session_id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_documents_session ON documents(session_id);

-- Images table: every image reference resolved during a session
CREATE TABLE IF NOT EXISTS images (
    image_id INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id INTEGER NOT NULL,
    document_id INTEGER,
    url TEXT NOT NULL,
    url_hash TEXT NOT NULL,                   -- md5 cache key of the URL
    local_path TEXT,
    content_type TEXT,
    content_hash TEXT,                        -- sha256 of the downloaded bytes
    size_bytes INTEGER DEFAULT 0,
    attempts INTEGER DEFAULT 0,
    cache_hit BOOLEAN NOT NULL DEFAULT 0,
    status TEXT NOT NULL,                     -- localized, cached, failed
    error TEXT,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (session_id) REFERENCES sessions(session_id) ON DELETE CASCADE,
    FOREIGN KEY (document_id) REFERENCES documents(document_id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_images_session ON images(session_id);
CREATE INDEX IF NOT EXISTS idx_images_hash ON images(url_hash);
`

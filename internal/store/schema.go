package store

// Schema v1 - Initial database schema.
// The UNIQUE constraint on assets.hash is the concurrency contract for the
// whole engine: racing uploaders of identical content converge on exactly
// one row via constraint violation and retry, never via locks.
const schemaV1 = `
-- Schema version tracking
CREATE TABLE IF NOT EXISTS schema_version (
  version INTEGER PRIMARY KEY,
  applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Content-addressed asset catalogue
CREATE TABLE IF NOT EXISTS assets (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  hash TEXT UNIQUE NOT NULL,
  url TEXT NOT NULL,
  mime_type TEXT,
  size_bytes INTEGER,
  parent_id INTEGER REFERENCES assets(id),
  created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_assets_hash ON assets(hash);
CREATE INDEX IF NOT EXISTS idx_assets_url ON assets(url);
CREATE INDEX IF NOT EXISTS idx_assets_parent_id ON assets(parent_id);

-- Usage edges: who referenced an asset, and in what context.
-- An asset with zero edges and zero children is orphaned.
CREATE TABLE IF NOT EXISTS usage_edges (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  asset_id INTEGER NOT NULL REFERENCES assets(id) ON DELETE CASCADE,
  subject_id TEXT NOT NULL,
  context TEXT NOT NULL,
  is_public INTEGER DEFAULT 0,
  created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_usage_edges_asset_id ON usage_edges(asset_id);
CREATE INDEX IF NOT EXISTS idx_usage_edges_subject ON usage_edges(subject_id, created_at);
`

// Schema v2 - Descriptive columns added after the initial rollout.
// These are exactly the columns the adaptive writer treats as optional:
// a deployment still on v1 silently drops them instead of failing writes.
const schemaV2 = `
ALTER TABLE assets ADD COLUMN width INTEGER;
ALTER TABLE assets ADD COLUMN height INTEGER;
ALTER TABLE usage_edges ADD COLUMN origin TEXT;

CREATE INDEX IF NOT EXISTS idx_usage_edges_context ON usage_edges(context);
`

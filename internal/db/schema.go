package db

const schemaSQL = `
-- ===========================================================================
-- SPEAKER SEEDS (user-supplied name -> network ID tables per backend)
-- ===========================================================================

CREATE TABLE IF NOT EXISTS speaker_seeds (
  backend TEXT NOT NULL,
  display_name TEXT NOT NULL,
  network_id TEXT NOT NULL,
  created_at TEXT NOT NULL DEFAULT (datetime('now')),
  updated_at TEXT NOT NULL DEFAULT (datetime('now')),
  PRIMARY KEY (backend, display_name)
);

-- ===========================================================================
-- SPEAKER RECORDS (last resolved registry state, restored on startup)
-- ===========================================================================

CREATE TABLE IF NOT EXISTS speaker_records (
  backend TEXT NOT NULL,
  display_name TEXT NOT NULL,
  resolved_id TEXT NOT NULL,
  raw_path TEXT,
  sonos_group_id TEXT,
  preferred INTEGER NOT NULL DEFAULT 0,
  updated_at TEXT NOT NULL DEFAULT (datetime('now')),
  PRIMARY KEY (backend, display_name)
);

CREATE INDEX IF NOT EXISTS idx_speaker_records_backend ON speaker_records(backend);

-- ===========================================================================
-- COMMAND AUDIT (every dispatched device command and its outcome)
-- ===========================================================================

CREATE TABLE IF NOT EXISTS command_audit (
  command_id TEXT PRIMARY KEY,
  timestamp TEXT NOT NULL,
  request_id TEXT,
  command TEXT NOT NULL,
  params TEXT NOT NULL DEFAULT '{}',
  status TEXT NOT NULL,
  error TEXT
);

CREATE INDEX IF NOT EXISTS idx_command_audit_timestamp ON command_audit(timestamp DESC);
CREATE INDEX IF NOT EXISTS idx_command_audit_command ON command_audit(command);
`

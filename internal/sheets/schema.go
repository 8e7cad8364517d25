package sheets

// Schema contains the complete DDL for the sheet registry.
const Schema = `
-- Destination sheets: user-defined buckets highlights are filed into
CREATE TABLE IF NOT EXISTS sheets (
    id         TEXT PRIMARY KEY,
    name       TEXT NOT NULL,
    created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sheets_name ON sheets(name);

-- Key-value settings (default_sheet)
CREATE TABLE IF NOT EXISTS settings (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`

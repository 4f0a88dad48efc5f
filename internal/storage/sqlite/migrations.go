package sqlite

import "database/sql"

// migrations contains the SQL statements to set up the database schema.
// These run on startup to ensure tables exist.
// IMPORTANT: groups must be created before members, and transactions before
// allocation_audit, due to foreign key constraints.
const schema = `
CREATE TABLE IF NOT EXISTS groups (
    id TEXT PRIMARY KEY,
    institution_id TEXT NOT NULL,
    name TEXT NOT NULL,
    created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS members (
    id TEXT PRIMARY KEY,
    institution_id TEXT NOT NULL,
    name TEXT NOT NULL,
    phone TEXT,
    phone_hash TEXT,
    group_id TEXT,
    balance_minor INTEGER NOT NULL DEFAULT 0,
    created_at INTEGER NOT NULL,
    FOREIGN KEY (group_id) REFERENCES groups(id) ON DELETE SET NULL
);

CREATE TABLE IF NOT EXISTS transactions (
    id TEXT PRIMARY KEY,
    institution_id TEXT NOT NULL,
    occurred_at INTEGER NOT NULL,
    amount_minor INTEGER NOT NULL,
    currency TEXT NOT NULL,
    payer_phone TEXT,
    payer_name TEXT,
    momo_ref TEXT,
    confidence REAL,
    match_key TEXT NOT NULL,
    match_type TEXT NOT NULL,
    status TEXT NOT NULL DEFAULT 'unallocated',
    member_id TEXT,
    group_id TEXT,
    allocation_note TEXT,
    allocated_by TEXT,
    allocated_at INTEGER,
    duplicate_of TEXT,
    duplicate_reason TEXT,
    created_at INTEGER NOT NULL,
    FOREIGN KEY (duplicate_of) REFERENCES transactions(id)
);

CREATE TABLE IF NOT EXISTS allocation_audit (
    seq INTEGER PRIMARY KEY AUTOINCREMENT,
    id TEXT NOT NULL UNIQUE,
    transaction_id TEXT NOT NULL,
    action TEXT NOT NULL,
    member_id TEXT NOT NULL,
    group_id TEXT,
    actor_id TEXT NOT NULL,
    note TEXT,
    created_at INTEGER NOT NULL,
    FOREIGN KEY (transaction_id) REFERENCES transactions(id)
);

CREATE TABLE IF NOT EXISTS parse_failures (
    id TEXT PRIMARY KEY,
    institution_id TEXT NOT NULL,
    received_at INTEGER NOT NULL,
    sender_phone TEXT,
    raw_text TEXT NOT NULL,
    parse_error TEXT,
    parse_status TEXT NOT NULL DEFAULT 'pending',
    resolution_status TEXT,
    resolution_note TEXT,
    transaction_id TEXT,
    attempts INTEGER NOT NULL DEFAULT 1,
    FOREIGN KEY (transaction_id) REFERENCES transactions(id)
);

CREATE TABLE IF NOT EXISTS staff_users (
    id TEXT PRIMARY KEY,
    email TEXT NOT NULL UNIQUE,
    display_name TEXT NOT NULL,
    password_hash TEXT NOT NULL,
    institution_id TEXT,
    role TEXT NOT NULL,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_transactions_institution_status ON transactions(institution_id, status);
CREATE INDEX IF NOT EXISTS idx_transactions_match_key ON transactions(match_key);
CREATE INDEX IF NOT EXISTS idx_transactions_occurred_at ON transactions(occurred_at, id);
CREATE INDEX IF NOT EXISTS idx_allocation_audit_transaction ON allocation_audit(transaction_id);
CREATE INDEX IF NOT EXISTS idx_parse_failures_institution_status ON parse_failures(institution_id, parse_status);
CREATE INDEX IF NOT EXISTS idx_members_phone_hash ON members(institution_id, phone_hash);
CREATE INDEX IF NOT EXISTS idx_members_group_id ON members(group_id);
`

// runMigrations executes the schema setup.
func runMigrations(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}

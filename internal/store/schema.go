package store

// schema is applied idempotently on every Open. Cascade deletion is performed
// by explicit routines in tx.go, not by FOREIGN KEY actions: child rows may
// reference Persons that have not been pulled yet, so referential integrity
// is deliberately not enforced at the SQL level.
const schema = `
CREATE TABLE IF NOT EXISTS profiles (
    id         TEXT PRIMARY KEY,
    user_id    TEXT NOT NULL,
    name       TEXT NOT NULL DEFAULT '',
    phone      TEXT NOT NULL DEFAULT '',
    phone_hash TEXT NOT NULL DEFAULT '',
    updated_at TEXT NOT NULL DEFAULT '',
    deleted_at TEXT
);

CREATE TABLE IF NOT EXISTS persons (
    id         TEXT PRIMARY KEY,
    owner_id   TEXT NOT NULL,
    name       TEXT NOT NULL DEFAULT '',
    phone      TEXT NOT NULL DEFAULT '',
    phone_hash TEXT NOT NULL DEFAULT '',
    profile_id TEXT,
    self       INTEGER NOT NULL DEFAULT 0,
    updated_at TEXT NOT NULL DEFAULT '',
    deleted_at TEXT
);

CREATE TABLE IF NOT EXISTS groups (
    id         TEXT PRIMARY KEY,
    owner_id   TEXT NOT NULL,
    name       TEXT NOT NULL DEFAULT '',
    updated_at TEXT NOT NULL DEFAULT '',
    deleted_at TEXT
);

CREATE TABLE IF NOT EXISTS group_members (
    group_id  TEXT NOT NULL,
    person_id TEXT NOT NULL,
    PRIMARY KEY (group_id, person_id)
);

CREATE TABLE IF NOT EXISTS transactions (
    id           TEXT PRIMARY KEY,
    owner_id     TEXT NOT NULL,
    title        TEXT NOT NULL DEFAULT '',
    amount       REAL NOT NULL DEFAULT 0,
    currency     TEXT NOT NULL DEFAULT '',
    date         TEXT NOT NULL DEFAULT '',
    notes        TEXT NOT NULL DEFAULT '',
    group_id     TEXT,
    share_status TEXT NOT NULL DEFAULT '',
    updated_at   TEXT NOT NULL DEFAULT '',
    deleted_at   TEXT
);

CREATE TABLE IF NOT EXISTS splits (
    id             TEXT PRIMARY KEY,
    transaction_id TEXT NOT NULL,
    person_id      TEXT,
    amount         REAL NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS payers (
    id             TEXT PRIMARY KEY,
    transaction_id TEXT NOT NULL,
    person_id      TEXT,
    amount         REAL NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS settlements (
    id             TEXT PRIMARY KEY,
    owner_id       TEXT NOT NULL,
    from_person_id TEXT,
    to_person_id   TEXT,
    amount         REAL NOT NULL DEFAULT 0,
    currency       TEXT NOT NULL DEFAULT '',
    date           TEXT NOT NULL DEFAULT '',
    notes          TEXT NOT NULL DEFAULT '',
    share_status   TEXT NOT NULL DEFAULT '',
    updated_at     TEXT NOT NULL DEFAULT '',
    deleted_at     TEXT
);

CREATE TABLE IF NOT EXISTS reminders (
    id           TEXT PRIMARY KEY,
    owner_id     TEXT NOT NULL,
    to_person_id TEXT,
    amount       REAL NOT NULL DEFAULT 0,
    currency     TEXT NOT NULL DEFAULT '',
    message      TEXT NOT NULL DEFAULT '',
    remind_at    TEXT NOT NULL DEFAULT '',
    share_status TEXT NOT NULL DEFAULT '',
    updated_at   TEXT NOT NULL DEFAULT '',
    deleted_at   TEXT
);

CREATE TABLE IF NOT EXISTS subscriptions (
    id           TEXT PRIMARY KEY,
    owner_id     TEXT NOT NULL,
    name         TEXT NOT NULL DEFAULT '',
    amount       REAL NOT NULL DEFAULT 0,
    currency     TEXT NOT NULL DEFAULT '',
    cycle        TEXT NOT NULL DEFAULT 'monthly',
    next_due     TEXT NOT NULL DEFAULT '',
    group_id     TEXT,
    share_status TEXT NOT NULL DEFAULT '',
    updated_at   TEXT NOT NULL DEFAULT '',
    deleted_at   TEXT
);

CREATE TABLE IF NOT EXISTS subscription_subscribers (
    subscription_id TEXT NOT NULL,
    person_id       TEXT NOT NULL,
    PRIMARY KEY (subscription_id, person_id)
);

CREATE TABLE IF NOT EXISTS subscription_payments (
    id              TEXT PRIMARY KEY,
    subscription_id TEXT NOT NULL,
    person_id       TEXT,
    amount          REAL NOT NULL DEFAULT 0,
    paid_at         TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS subscription_settlements (
    id              TEXT PRIMARY KEY,
    subscription_id TEXT NOT NULL,
    from_person_id  TEXT,
    to_person_id    TEXT,
    amount          REAL NOT NULL DEFAULT 0,
    date            TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS subscription_reminders (
    id              TEXT PRIMARY KEY,
    subscription_id TEXT NOT NULL,
    to_person_id    TEXT,
    message         TEXT NOT NULL DEFAULT '',
    remind_at       TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS messages (
    id              TEXT PRIMARY KEY,
    owner_id        TEXT NOT NULL,
    body            TEXT NOT NULL DEFAULT '',
    person_id       TEXT,
    group_id        TEXT,
    subscription_id TEXT,
    transaction_id  TEXT,
    updated_at      TEXT NOT NULL DEFAULT '',
    deleted_at      TEXT
);

CREATE TABLE IF NOT EXISTS sync_meta (
    account  TEXT PRIMARY KEY,
    cursor   TEXT NOT NULL DEFAULT '',
    migrated INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_persons_owner        ON persons (owner_id);
CREATE INDEX IF NOT EXISTS idx_persons_phone_hash   ON persons (phone_hash);
CREATE INDEX IF NOT EXISTS idx_groups_owner         ON groups (owner_id);
CREATE INDEX IF NOT EXISTS idx_transactions_owner   ON transactions (owner_id);
CREATE INDEX IF NOT EXISTS idx_splits_transaction   ON splits (transaction_id);
CREATE INDEX IF NOT EXISTS idx_payers_transaction   ON payers (transaction_id);
CREATE INDEX IF NOT EXISTS idx_settlements_owner    ON settlements (owner_id);
CREATE INDEX IF NOT EXISTS idx_reminders_owner      ON reminders (owner_id);
CREATE INDEX IF NOT EXISTS idx_subscriptions_owner  ON subscriptions (owner_id);
CREATE INDEX IF NOT EXISTS idx_sub_payments_sub     ON subscription_payments (subscription_id);
CREATE INDEX IF NOT EXISTS idx_sub_settlements_sub  ON subscription_settlements (subscription_id);
CREATE INDEX IF NOT EXISTS idx_sub_reminders_sub    ON subscription_reminders (subscription_id);
CREATE INDEX IF NOT EXISTS idx_messages_owner       ON messages (owner_id);
`

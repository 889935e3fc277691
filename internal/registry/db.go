package registry

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite" // register sqlite driver
)

// Open opens (creating if needed) the registry database at path and brings
// its schema up to date.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.ExecContext(ctx, `PRAGMA foreign_keys = ON;`); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := db.ExecContext(ctx, `PRAGMA journal_mode = WAL;`); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("set wal mode: %w", err)
	}
	if err := migrate(ctx, db); err != nil {
		_ = db.Close()

		return nil, err
	}

	return db, nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS devices (
		mac_address   TEXT PRIMARY KEY,
		product_id    INTEGER NOT NULL,
		name          TEXT NOT NULL,
		serial_number TEXT NOT NULL DEFAULT '',
		battery       TEXT NOT NULL DEFAULT '',
		device_rssi   TEXT NOT NULL DEFAULT '',
		hub_rssi      TEXT NOT NULL DEFAULT '',
		version       TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS pets (
		tag     TEXT PRIMARY KEY,
		name    TEXT NOT NULL,
		species INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS tagmap (
		mac_address TEXT NOT NULL,
		tagindex    INTEGER NOT NULL,
		tag         TEXT NOT NULL,
		profile     INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (mac_address, tagindex)
	)`,
	`CREATE TABLE IF NOT EXISTS doors (
		mac_address   TEXT PRIMARY KEY,
		lockingmode   INTEGER NOT NULL DEFAULT 0,
		curfewenabled INTEGER NOT NULL DEFAULT 0,
		curfews       TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS feeders (
		mac_address TEXT PRIMARY KEY,
		bowltype    INTEGER NOT NULL DEFAULT 0,
		bowl1       REAL NOT NULL DEFAULT 0,
		bowl2       REAL NOT NULL DEFAULT 0,
		bowltarget1 INTEGER NOT NULL DEFAULT 0,
		bowltarget2 INTEGER NOT NULL DEFAULT 0,
		close_delay INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS hubs (
		mac_address  TEXT PRIMARY KEY,
		led_mode     INTEGER NOT NULL DEFAULT 0,
		pairing_mode INTEGER NOT NULL DEFAULT 0,
		state        INTEGER NOT NULL DEFAULT 0,
		uptime       INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS petstate (
		tag         TEXT NOT NULL,
		mac_address TEXT NOT NULL,
		seen_at     INTEGER NOT NULL,
		state       INTEGER NOT NULL,
		PRIMARY KEY (tag, mac_address)
	)`,
	`CREATE TABLE IF NOT EXISTS feeds (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		mac_address TEXT NOT NULL,
		tag         TEXT NOT NULL,
		animal      TEXT NOT NULL,
		fed_at      INTEGER NOT NULL,
		seconds     INTEGER NOT NULL,
		left_delta  REAL NOT NULL,
		right_delta REAL NOT NULL,
		UNIQUE (mac_address, tag, fed_at)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_feeds_tag ON feeds(tag, fed_at)`,
	`CREATE TABLE IF NOT EXISTS devicecounter (
		mac_address TEXT PRIMARY KEY,
		send        INTEGER NOT NULL DEFAULT 0,
		receive     INTEGER NOT NULL DEFAULT 0
	)`,
}

func migrate(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range schema {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate schema: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration: %w", err)
	}
	return nil
}

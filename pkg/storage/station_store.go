package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dougsko/fmd/pkg/logging"
	_ "github.com/mattn/go-sqlite3"
)

// StationStore keeps scan results and station bookmarks in SQLite
type StationStore struct {
	db       *sql.DB
	dbPath   string
	maxScans int
}

// ScanRecord is one completed band scan
type ScanRecord struct {
	Time        time.Time
	Band        string
	Duration    time.Duration
	Frequencies []int64
}

// NewStationStore opens (or creates) the station database
func NewStationStore(dbPath string, maxScans int) (*StationStore, error) {
	store := &StationStore{
		dbPath:   dbPath,
		maxScans: maxScans,
	}

	if err := store.initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize station store: %w", err)
	}

	return store, nil
}

func (s *StationStore) initialize() error {
	if s.dbPath == "" {
		s.dbPath = "./fmd.db"
	}
	if err := os.MkdirAll(filepath.Dir(s.dbPath), 0755); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}

	connectionString := s.dbPath + "?_busy_timeout=10000&_journal_mode=WAL&_foreign_keys=on"

	db, err := sql.Open("sqlite3", connectionString)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	s.db = db

	if err := s.createTables(); err != nil {
		db.Close()
		return fmt.Errorf("failed to create tables: %w", err)
	}
	if err := s.createIndexes(); err != nil {
		db.Close()
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	logging.Infof("storage", "Station store initialized: %s (max %d scans)", s.dbPath, s.maxScans)
	return nil
}

func (s *StationStore) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS stations (
		frequency INTEGER PRIMARY KEY,
		station_name TEXT NOT NULL DEFAULT '',
		is_favorite BOOLEAN NOT NULL DEFAULT FALSE,
		seen_count INTEGER NOT NULL DEFAULT 0,
		last_rssi INTEGER,
		first_seen DATETIME,
		last_seen DATETIME,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS scans (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp DATETIME NOT NULL,
		band TEXT NOT NULL DEFAULT '',
		duration_ms INTEGER NOT NULL DEFAULT 0,
		station_count INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS scan_stations (
		scan_id INTEGER NOT NULL,
		frequency INTEGER NOT NULL,
		PRIMARY KEY (scan_id, frequency),
		FOREIGN KEY (scan_id) REFERENCES scans(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS store_stats (
		id INTEGER PRIMARY KEY,
		total_scans INTEGER NOT NULL DEFAULT 0,
		last_cleanup DATETIME
	);

	INSERT OR IGNORE INTO store_stats (id, total_scans) VALUES (1, 0);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *StationStore) createIndexes() error {
	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_stations_favorite ON stations(is_favorite)",
		"CREATE INDEX IF NOT EXISTS idx_stations_last_seen ON stations(last_seen DESC)",
		"CREATE INDEX IF NOT EXISTS idx_scans_timestamp ON scans(timestamp DESC)",
	}

	for _, indexSQL := range indexes {
		if _, err := s.db.Exec(indexSQL); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}
	return nil
}

// RecordScan stores a scan and bumps every station it found
func (s *StationStore) RecordScan(scan ScanRecord) (int64, error) {
	if scan.Time.IsZero() {
		scan.Time = time.Now()
	}
	scan.Time = scan.Time.UTC()

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(`
		INSERT INTO scans (timestamp, band, duration_ms, station_count)
		VALUES (?, ?, ?, ?)
	`, scan.Time, scan.Band, scan.Duration.Milliseconds(), len(scan.Frequencies))
	if err != nil {
		return 0, fmt.Errorf("failed to insert scan: %w", err)
	}

	scanID, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get scan ID: %w", err)
	}

	for _, khz := range scan.Frequencies {
		if _, err := tx.Exec(
			"INSERT OR IGNORE INTO scan_stations (scan_id, frequency) VALUES (?, ?)",
			scanID, khz,
		); err != nil {
			return 0, fmt.Errorf("failed to link station %d: %w", khz, err)
		}
		if err := s.upsertStation(tx, khz, scan.Time); err != nil {
			return 0, fmt.Errorf("failed to update station %d: %w", khz, err)
		}
	}

	if _, err := tx.Exec("UPDATE store_stats SET total_scans = total_scans + 1 WHERE id = 1"); err != nil {
		return 0, fmt.Errorf("failed to update stats: %w", err)
	}

	if err := s.cleanupOldScans(tx); err != nil {
		logging.Warnf("storage", "Failed to cleanup old scans: %v", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return scanID, nil
}

func (s *StationStore) upsertStation(tx *sql.Tx, khz int64, seen time.Time) error {
	_, err := tx.Exec(`
		INSERT INTO stations (frequency, seen_count, first_seen, last_seen)
		VALUES (?, 1, ?, ?)
		ON CONFLICT(frequency) DO UPDATE SET
			seen_count = seen_count + 1,
			last_seen = excluded.last_seen,
			updated_at = CURRENT_TIMESTAMP
	`, khz, seen, seen)
	return err
}

// SetFavorite marks or unmarks a station. An empty name keeps the stored one.
func (s *StationStore) SetFavorite(khz int64, name string, favorite bool) error {
	if khz <= 0 {
		return fmt.Errorf("invalid frequency %d", khz)
	}

	_, err := s.db.Exec(`
		INSERT INTO stations (frequency, station_name, is_favorite)
		VALUES (?, ?, ?)
		ON CONFLICT(frequency) DO UPDATE SET
			station_name = CASE WHEN excluded.station_name = '' THEN station_name ELSE excluded.station_name END,
			is_favorite = excluded.is_favorite,
			updated_at = CURRENT_TIMESTAMP
	`, khz, name, favorite)
	if err != nil {
		return fmt.Errorf("failed to set favorite: %w", err)
	}
	return nil
}

// UpdateSignal stores the latest RSSI seen on a known station
func (s *StationStore) UpdateSignal(khz int64, rssi int32) error {
	_, err := s.db.Exec(`
		UPDATE stations SET last_rssi = ?, updated_at = CURRENT_TIMESTAMP
		WHERE frequency = ?
	`, rssi, khz)
	return err
}

// DeleteStation forgets a station
func (s *StationStore) DeleteStation(khz int64) error {
	_, err := s.db.Exec("DELETE FROM stations WHERE frequency = ?", khz)
	return err
}

// CleanupOldScans removes scans beyond the retention limit
func (s *StationStore) CleanupOldScans() error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := s.cleanupOldScans(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *StationStore) cleanupOldScans(tx *sql.Tx) error {
	if s.maxScans <= 0 {
		return nil
	}

	var count int
	if err := tx.QueryRow("SELECT COUNT(*) FROM scans").Scan(&count); err != nil {
		return err
	}
	if count <= s.maxScans {
		return nil
	}

	_, err := tx.Exec(`
		DELETE FROM scans
		WHERE id IN (
			SELECT id FROM scans
			ORDER BY timestamp ASC, id ASC
			LIMIT ?
		)
	`, count-s.maxScans)
	if err != nil {
		return err
	}

	_, err = tx.Exec("UPDATE store_stats SET last_cleanup = ? WHERE id = 1", time.Now().UTC())
	return err
}

// Close closes the database connection
func (s *StationStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

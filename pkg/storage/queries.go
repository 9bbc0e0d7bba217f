package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotFound is returned when a station is not in the store
var ErrNotFound = errors.New("station not found")

// Station is one stored frequency
type Station struct {
	Frequency int64     `json:"frequency_khz"`
	Name      string    `json:"name,omitempty"`
	Favorite  bool      `json:"favorite"`
	SeenCount int       `json:"seen_count"`
	LastRSSI  *int32    `json:"last_rssi,omitempty"`
	FirstSeen time.Time `json:"first_seen,omitempty"`
	LastSeen  time.Time `json:"last_seen,omitempty"`
}

// Scan is a stored scan with the frequencies it found
type Scan struct {
	ID          int64     `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	Band        string    `json:"band"`
	DurationMS  int64     `json:"duration_ms"`
	Frequencies []int64   `json:"frequencies"`
}

// StationQuery filters GetStations
type StationQuery struct {
	Limit         int
	Offset        int
	FavoritesOnly bool
	MinFrequency  int64
	MaxFrequency  int64
	SeenSince     *time.Time
}

// StoreStats summarizes the database
type StoreStats struct {
	TotalScans    int       `json:"total_scans"`
	StoredScans   int       `json:"stored_scans"`
	TotalStations int       `json:"total_stations"`
	Favorites     int       `json:"favorites"`
	LastCleanup   time.Time `json:"last_cleanup"`
}

const stationColumns = `frequency, station_name, is_favorite, seen_count, last_rssi, first_seen, last_seen`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanStation(row rowScanner) (Station, error) {
	var st Station
	var rssi sql.NullInt32
	var firstSeen, lastSeen sql.NullTime

	if err := row.Scan(&st.Frequency, &st.Name, &st.Favorite, &st.SeenCount,
		&rssi, &firstSeen, &lastSeen); err != nil {
		return st, err
	}
	if rssi.Valid {
		v := rssi.Int32
		st.LastRSSI = &v
	}
	if firstSeen.Valid {
		st.FirstSeen = firstSeen.Time
	}
	if lastSeen.Valid {
		st.LastSeen = lastSeen.Time
	}
	return st, nil
}

// GetStations lists stations ordered by frequency
func (s *StationStore) GetStations(query StationQuery) ([]Station, error) {
	var args []interface{}
	var conditions []string

	if query.FavoritesOnly {
		conditions = append(conditions, "is_favorite = TRUE")
	}
	if query.MinFrequency > 0 {
		conditions = append(conditions, "frequency >= ?")
		args = append(args, query.MinFrequency)
	}
	if query.MaxFrequency > 0 {
		conditions = append(conditions, "frequency <= ?")
		args = append(args, query.MaxFrequency)
	}
	if query.SeenSince != nil {
		conditions = append(conditions, "last_seen >= ?")
		args = append(args, query.SeenSince.UTC())
	}

	sqlQuery := "SELECT " + stationColumns + " FROM stations"
	if len(conditions) > 0 {
		sqlQuery += " WHERE " + strings.Join(conditions, " AND ")
	}
	sqlQuery += " ORDER BY frequency ASC"

	if query.Limit > 0 {
		sqlQuery += " LIMIT ?"
		args = append(args, query.Limit)

		if query.Offset > 0 {
			sqlQuery += " OFFSET ?"
			args = append(args, query.Offset)
		}
	}

	rows, err := s.db.Query(sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query stations: %w", err)
	}
	defer rows.Close()

	var stations []Station
	for rows.Next() {
		st, err := scanStation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan station: %w", err)
		}
		stations = append(stations, st)
	}
	return stations, rows.Err()
}

// GetStation returns one station
func (s *StationStore) GetStation(khz int64) (*Station, error) {
	row := s.db.QueryRow("SELECT "+stationColumns+" FROM stations WHERE frequency = ?", khz)
	st, err := scanStation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%d kHz: %w", khz, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get station: %w", err)
	}
	return &st, nil
}

// GetFavorites lists favorite stations
func (s *StationStore) GetFavorites() ([]Station, error) {
	return s.GetStations(StationQuery{FavoritesOnly: true})
}

// GetScans returns the most recent scans, newest first
func (s *StationStore) GetScans(limit int) ([]Scan, error) {
	query := `
		SELECT id, timestamp, band, duration_ms
		FROM scans
		ORDER BY timestamp DESC, id DESC
	`
	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query scans: %w", err)
	}

	var scans []Scan
	for rows.Next() {
		var sc Scan
		if err := rows.Scan(&sc.ID, &sc.Timestamp, &sc.Band, &sc.DurationMS); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan scan row: %w", err)
		}
		scans = append(scans, sc)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for i := range scans {
		freqs, err := s.scanFrequencies(scans[i].ID)
		if err != nil {
			return nil, err
		}
		scans[i].Frequencies = freqs
	}
	return scans, nil
}

func (s *StationStore) scanFrequencies(scanID int64) ([]int64, error) {
	rows, err := s.db.Query(
		"SELECT frequency FROM scan_stations WHERE scan_id = ? ORDER BY frequency ASC", scanID)
	if err != nil {
		return nil, fmt.Errorf("failed to query scan stations: %w", err)
	}
	defer rows.Close()

	freqs := []int64{}
	for rows.Next() {
		var khz int64
		if err := rows.Scan(&khz); err != nil {
			return nil, err
		}
		freqs = append(freqs, khz)
	}
	return freqs, rows.Err()
}

// GetStats retrieves database statistics
func (s *StationStore) GetStats() (*StoreStats, error) {
	var stats StoreStats
	var lastCleanup sql.NullTime

	err := s.db.QueryRow(`
		SELECT total_scans, last_cleanup FROM store_stats WHERE id = 1
	`).Scan(&stats.TotalScans, &lastCleanup)
	if err != nil {
		return nil, fmt.Errorf("failed to get store stats: %w", err)
	}
	if lastCleanup.Valid {
		stats.LastCleanup = lastCleanup.Time
	}

	err = s.db.QueryRow(`
		SELECT
			(SELECT COUNT(*) FROM scans),
			(SELECT COUNT(*) FROM stations),
			(SELECT COUNT(*) FROM stations WHERE is_favorite = TRUE)
	`).Scan(&stats.StoredScans, &stats.TotalStations, &stats.Favorites)
	if err != nil {
		return nil, fmt.Errorf("failed to count stations: %w", err)
	}

	return &stats, nil
}

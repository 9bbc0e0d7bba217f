package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T, maxScans int) *StationStore {
	t.Helper()
	store, err := NewStationStore(filepath.Join(t.TempDir(), "stations.db"), maxScans)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestNewStationStore(t *testing.T) {
	tempDir := t.TempDir()

	t.Run("Valid Store Creation", func(t *testing.T) {
		dbPath := filepath.Join(tempDir, "test.db")
		store, err := NewStationStore(dbPath, 100)
		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		defer store.Close()

		if store.maxScans != 100 {
			t.Errorf("Expected maxScans 100, got %d", store.maxScans)
		}
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			t.Error("Expected database file to be created")
		}
	})

	t.Run("Nested Directory", func(t *testing.T) {
		dbPath := filepath.Join(tempDir, "nested", "dir", "test.db")
		store, err := NewStationStore(dbPath, 10)
		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		defer store.Close()

		if _, err := os.Stat(filepath.Dir(dbPath)); os.IsNotExist(err) {
			t.Error("Expected nested directory to be created")
		}
	})

	t.Run("Reopen Keeps Data", func(t *testing.T) {
		dbPath := filepath.Join(tempDir, "reopen.db")
		store, err := NewStationStore(dbPath, 10)
		if err != nil {
			t.Fatalf("Failed to create store: %v", err)
		}
		if err := store.SetFavorite(98100, "Radio One", true); err != nil {
			t.Fatalf("Failed to set favorite: %v", err)
		}
		store.Close()

		store, err = NewStationStore(dbPath, 10)
		if err != nil {
			t.Fatalf("Failed to reopen store: %v", err)
		}
		defer store.Close()

		st, err := store.GetStation(98100)
		if err != nil {
			t.Fatalf("Expected station after reopen: %v", err)
		}
		if st.Name != "Radio One" || !st.Favorite {
			t.Errorf("Unexpected station: %+v", st)
		}
	})
}

func TestRecordScan(t *testing.T) {
	store := newTestStore(t, 0)
	first := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	second := first.Add(time.Hour)

	id1, err := store.RecordScan(ScanRecord{
		Time:        first,
		Band:        "europe",
		Duration:    3 * time.Second,
		Frequencies: []int64{88100, 98100},
	})
	if err != nil {
		t.Fatalf("Failed to record scan: %v", err)
	}
	id2, err := store.RecordScan(ScanRecord{
		Time:        second,
		Band:        "europe",
		Frequencies: []int64{98100, 104900},
	})
	if err != nil {
		t.Fatalf("Failed to record scan: %v", err)
	}
	if id2 <= id1 {
		t.Errorf("Expected increasing scan IDs, got %d then %d", id1, id2)
	}

	t.Run("Stations Upserted", func(t *testing.T) {
		stations, err := store.GetStations(StationQuery{})
		if err != nil {
			t.Fatalf("Failed to get stations: %v", err)
		}
		if len(stations) != 3 {
			t.Fatalf("Expected 3 stations, got %d", len(stations))
		}
		if stations[0].Frequency != 88100 || stations[2].Frequency != 104900 {
			t.Errorf("Expected stations ordered by frequency, got %+v", stations)
		}

		st, err := store.GetStation(98100)
		if err != nil {
			t.Fatalf("Failed to get station: %v", err)
		}
		if st.SeenCount != 2 {
			t.Errorf("Expected seen count 2, got %d", st.SeenCount)
		}
		if !st.FirstSeen.Equal(first) || !st.LastSeen.Equal(second) {
			t.Errorf("Unexpected seen times: first=%v last=%v", st.FirstSeen, st.LastSeen)
		}
	})

	t.Run("Scan History", func(t *testing.T) {
		scans, err := store.GetScans(10)
		if err != nil {
			t.Fatalf("Failed to get scans: %v", err)
		}
		if len(scans) != 2 {
			t.Fatalf("Expected 2 scans, got %d", len(scans))
		}
		if scans[0].ID != id2 {
			t.Errorf("Expected newest scan first, got %d", scans[0].ID)
		}
		if len(scans[1].Frequencies) != 2 || scans[1].Frequencies[0] != 88100 {
			t.Errorf("Unexpected frequencies: %v", scans[1].Frequencies)
		}
		if scans[1].DurationMS != 3000 {
			t.Errorf("Expected duration 3000ms, got %d", scans[1].DurationMS)
		}
	})

	t.Run("Empty Scan", func(t *testing.T) {
		if _, err := store.RecordScan(ScanRecord{Band: "europe"}); err != nil {
			t.Fatalf("Expected empty scan to be recorded: %v", err)
		}
		scans, err := store.GetScans(1)
		if err != nil {
			t.Fatalf("Failed to get scans: %v", err)
		}
		if len(scans) != 1 || len(scans[0].Frequencies) != 0 {
			t.Errorf("Expected one empty scan, got %+v", scans)
		}
	})
}

func TestScanRetention(t *testing.T) {
	store := newTestStore(t, 3)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		_, err := store.RecordScan(ScanRecord{
			Time:        base.Add(time.Duration(i) * time.Minute),
			Frequencies: []int64{int64(88000 + i*100)},
		})
		if err != nil {
			t.Fatalf("Failed to record scan %d: %v", i, err)
		}
	}

	scans, err := store.GetScans(0)
	if err != nil {
		t.Fatalf("Failed to get scans: %v", err)
	}
	if len(scans) != 3 {
		t.Fatalf("Expected 3 retained scans, got %d", len(scans))
	}
	if !scans[2].Timestamp.Equal(base.Add(2 * time.Minute)) {
		t.Errorf("Expected oldest scans removed, oldest is %v", scans[2].Timestamp)
	}

	stats, err := store.GetStats()
	if err != nil {
		t.Fatalf("Failed to get stats: %v", err)
	}
	if stats.TotalScans != 5 || stats.StoredScans != 3 {
		t.Errorf("Unexpected stats: %+v", stats)
	}
	if stats.TotalStations != 5 {
		t.Errorf("Expected stations to outlive their scans, got %d", stats.TotalStations)
	}
	if stats.LastCleanup.IsZero() {
		t.Error("Expected last cleanup to be set")
	}
}

func TestFavorites(t *testing.T) {
	store := newTestStore(t, 0)

	if _, err := store.RecordScan(ScanRecord{Frequencies: []int64{91500, 94700}}); err != nil {
		t.Fatalf("Failed to record scan: %v", err)
	}

	t.Run("Mark Scanned Station", func(t *testing.T) {
		if err := store.SetFavorite(91500, "Classic", true); err != nil {
			t.Fatalf("Failed to set favorite: %v", err)
		}
		st, err := store.GetStation(91500)
		if err != nil {
			t.Fatalf("Failed to get station: %v", err)
		}
		if !st.Favorite || st.Name != "Classic" || st.SeenCount != 1 {
			t.Errorf("Unexpected station: %+v", st)
		}
	})

	t.Run("Unknown Station Created", func(t *testing.T) {
		if err := store.SetFavorite(107700, "", true); err != nil {
			t.Fatalf("Failed to set favorite: %v", err)
		}
		favs, err := store.GetFavorites()
		if err != nil {
			t.Fatalf("Failed to get favorites: %v", err)
		}
		if len(favs) != 2 {
			t.Errorf("Expected 2 favorites, got %d", len(favs))
		}
	})

	t.Run("Unmark Keeps Name", func(t *testing.T) {
		if err := store.SetFavorite(91500, "", false); err != nil {
			t.Fatalf("Failed to clear favorite: %v", err)
		}
		st, err := store.GetStation(91500)
		if err != nil {
			t.Fatalf("Failed to get station: %v", err)
		}
		if st.Favorite || st.Name != "Classic" {
			t.Errorf("Unexpected station: %+v", st)
		}
	})

	t.Run("Invalid Frequency", func(t *testing.T) {
		if err := store.SetFavorite(0, "x", true); err == nil {
			t.Error("Expected error for zero frequency")
		}
	})
}

func TestStationQueries(t *testing.T) {
	store := newTestStore(t, 0)
	old := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	recent := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	store.RecordScan(ScanRecord{Time: old, Frequencies: []int64{88100, 91500}})
	store.RecordScan(ScanRecord{Time: recent, Frequencies: []int64{98100, 104900, 107700}})

	tests := []struct {
		name  string
		query StationQuery
		want  []int64
	}{
		{"All", StationQuery{}, []int64{88100, 91500, 98100, 104900, 107700}},
		{"Limit", StationQuery{Limit: 2}, []int64{88100, 91500}},
		{"Offset", StationQuery{Limit: 2, Offset: 2}, []int64{98100, 104900}},
		{"Range", StationQuery{MinFrequency: 90000, MaxFrequency: 100000}, []int64{91500, 98100}},
		{"Seen Since", StationQuery{SeenSince: &recent}, []int64{98100, 104900, 107700}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stations, err := store.GetStations(tt.query)
			if err != nil {
				t.Fatalf("Query failed: %v", err)
			}
			if len(stations) != len(tt.want) {
				t.Fatalf("Expected %v, got %+v", tt.want, stations)
			}
			for i, khz := range tt.want {
				if stations[i].Frequency != khz {
					t.Errorf("Station %d: expected %d, got %d", i, khz, stations[i].Frequency)
				}
			}
		})
	}

	t.Run("Signal And Delete", func(t *testing.T) {
		if err := store.UpdateSignal(98100, -52); err != nil {
			t.Fatalf("Failed to update signal: %v", err)
		}
		st, err := store.GetStation(98100)
		if err != nil {
			t.Fatalf("Failed to get station: %v", err)
		}
		if st.LastRSSI == nil || *st.LastRSSI != -52 {
			t.Errorf("Expected last RSSI -52, got %v", st.LastRSSI)
		}

		if err := store.DeleteStation(98100); err != nil {
			t.Fatalf("Failed to delete station: %v", err)
		}
		if _, err := store.GetStation(98100); !errors.Is(err, ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
	})
}

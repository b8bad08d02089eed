package sqlite

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"rivermonitor/internal/apperror"
	"rivermonitor/internal/config"
	"rivermonitor/internal/model"
	"rivermonitor/internal/query"
)

// ========================================
// Test Setup Helpers
// ========================================

func setupTestDB(t *testing.T) (*DB, *ObservationRepository) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := New(config.DatabaseConfig{Path: dbPath, MaxOpenConns: 2})
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return db, NewObservationRepository(db)
}

func observationAt(ts int64, river string) *model.Observation {
	return &model.Observation{
		Timestamp: time.Unix(ts, 0),
		RiverName: river,
		EstLevel:  1.25,
		Points:    []model.Point{{X: 1.5, Y: 2.25}, {X: 3, Y: -4}},
	}
}

func mustInsert(t *testing.T, repo *ObservationRepository, obs *model.Observation) {
	t.Helper()
	if err := repo.Insert(context.Background(), obs, nil); err != nil {
		t.Fatalf("Failed to insert observation: %v", err)
	}
}

// ========================================
// Database Tests
// ========================================

func TestDatabase_Connection(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := New(config.DatabaseConfig{Path: dbPath, MaxOpenConns: 1})
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("Database file should exist")
	}
	if err := db.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestDatabase_CheckoutAfterClose(t *testing.T) {
	db, _ := setupTestDB(t)
	db.Close()

	_, err := db.Checkout(context.Background())
	if !apperror.Is(err, apperror.KindPersistence) {
		t.Errorf("expected PERSISTENCE_ERROR after close, got %v", err)
	}
}

// ========================================
// Insert Tests
// ========================================

func TestInsert_RoundTrip(t *testing.T) {
	_, repo := setupTestDB(t)
	ctx := context.Background()

	obs := observationAt(1700000000, "Thames")
	obs.CountryName = "United Kingdom"
	mustInsert(t, repo, obs)

	if obs.ID == 0 {
		t.Error("expected ID to be set after insert")
	}

	got, err := repo.GetByTimestamp(ctx, 1700000000)
	if err != nil {
		t.Fatalf("GetByTimestamp failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected stored observation")
	}
	if got.RiverName != "Thames" || got.CountryName != "United Kingdom" || got.BasinName != "" {
		t.Errorf("unexpected names: %+v", got)
	}
	if got.EstLevel != 1.25 {
		t.Errorf("EstLevel = %v, want 1.25", got.EstLevel)
	}
	if got.Unix() != 1700000000 || got.Timestamp.Location() != time.UTC {
		t.Errorf("Timestamp = %v", got.Timestamp)
	}
	if len(got.Points) != 2 || got.Points[0] != obs.Points[0] || got.Points[1] != obs.Points[1] {
		t.Errorf("Points = %v, want %v", got.Points, obs.Points)
	}
}

func TestInsert_EmptyPoints(t *testing.T) {
	_, repo := setupTestDB(t)

	obs := observationAt(100, "Rhine")
	obs.Points = nil
	mustInsert(t, repo, obs)

	got, err := repo.GetByTimestamp(context.Background(), 100)
	if err != nil || got == nil {
		t.Fatalf("GetByTimestamp = %v, %v", got, err)
	}
	if got.Points == nil || len(got.Points) != 0 {
		t.Errorf("expected empty non-nil points, got %#v", got.Points)
	}
}

func TestInsert_DuplicateTimestamp(t *testing.T) {
	_, repo := setupTestDB(t)

	mustInsert(t, repo, observationAt(500, "Thames"))
	err := repo.Insert(context.Background(), observationAt(500, "Seine"), nil)
	if !apperror.Is(err, apperror.KindPersistence) {
		t.Errorf("expected PERSISTENCE_ERROR for duplicate timestamp, got %v", err)
	}
}

func TestInsert_BeforeCommitFailureRollsBack(t *testing.T) {
	_, repo := setupTestDB(t)
	ctx := context.Background()

	hookErr := apperror.New(apperror.KindStorage, "test", errors.New("rename failed"))
	err := repo.Insert(ctx, observationAt(42, "Danube"), func() error { return hookErr })
	if !errors.Is(err, hookErr) {
		t.Fatalf("expected hook error to be returned unchanged, got %v", err)
	}

	got, err := repo.GetByTimestamp(ctx, 42)
	if err != nil {
		t.Fatalf("GetByTimestamp failed: %v", err)
	}
	if got != nil {
		t.Error("row should not exist after a failed beforeCommit")
	}
}

func TestInsert_BeforeCommitRunsOnce(t *testing.T) {
	_, repo := setupTestDB(t)

	calls := 0
	if err := repo.Insert(context.Background(), observationAt(7, "Elbe"), func() error {
		calls++
		return nil
	}); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if calls != 1 {
		t.Errorf("beforeCommit called %d times, want 1", calls)
	}
}

// ========================================
// Find Tests
// ========================================

func TestFind_Windows(t *testing.T) {
	_, repo := setupTestDB(t)
	ctx := context.Background()

	// Inserted out of time order so insertion order differs from time order.
	for _, ts := range []int64{200, 100, 300, 400} {
		mustInsert(t, repo, observationAt(ts, "Thames"))
	}

	tests := []struct {
		name   string
		window query.Window
		want   []int64
	}{
		{"latest", query.Window{}, []int64{400}},
		{"start only", query.Window{Start: query.Some[int64](200)}, []int64{200, 300, 400}},
		{"end only", query.Window{End: query.Some[int64](200)}, []int64{200, 100}},
		{"both bounds inclusive", query.Window{Start: query.Some[int64](100), End: query.Some[int64](300)}, []int64{200, 100, 300}},
		{"start zero is present", query.Window{Start: query.Some[int64](0)}, []int64{200, 100, 300, 400}},
		{"empty range", query.Window{Start: query.Some[int64](301), End: query.Some[int64](399)}, []int64{}},
		{"inverted range", query.Window{Start: query.Some[int64](300), End: query.Some[int64](100)}, []int64{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.Find(ctx, tt.window)
			if err != nil {
				t.Fatalf("Find failed: %v", err)
			}
			if got == nil {
				t.Fatal("Find should never return nil")
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d observations, want %d", len(got), len(tt.want))
			}
			for i, ts := range tt.want {
				if got[i].Unix() != ts {
					t.Errorf("result %d timestamp = %d, want %d", i, got[i].Unix(), ts)
				}
			}
		})
	}
}

func TestFind_EmptyStore(t *testing.T) {
	_, repo := setupTestDB(t)

	got, err := repo.Find(context.Background(), query.Window{})
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", got)
	}
}

func TestFind_CorruptBlob(t *testing.T) {
	db, repo := setupTestDB(t)

	if _, err := db.Conn().Exec(`
		INSERT INTO water_level (upload_time, river_name, est_level, model_points)
		VALUES (?, 'Volga', 1, ?)
	`, FormatTime(time.Unix(10, 0)), []byte{1, 2, 3}); err != nil {
		t.Fatalf("Failed to insert corrupt row: %v", err)
	}

	_, err := repo.Find(context.Background(), query.Window{Start: query.Some[int64](0)})
	if !apperror.Is(err, apperror.KindCorruptEncoding) {
		t.Errorf("expected CORRUPT_ENCODING, got %v", err)
	}
}

// ========================================
// Timestamp Tests
// ========================================

func TestLatestTimestamp(t *testing.T) {
	_, repo := setupTestDB(t)
	ctx := context.Background()

	ts, err := repo.LatestTimestamp(ctx)
	if err != nil || ts != 0 {
		t.Fatalf("LatestTimestamp on empty store = %d, %v", ts, err)
	}

	mustInsert(t, repo, observationAt(900, "Thames"))
	mustInsert(t, repo, observationAt(800, "Thames"))

	ts, err = repo.LatestTimestamp(ctx)
	if err != nil {
		t.Fatalf("LatestTimestamp failed: %v", err)
	}
	if ts != 900 {
		t.Errorf("LatestTimestamp = %d, want 900", ts)
	}
}

func TestTimestamps(t *testing.T) {
	_, repo := setupTestDB(t)

	for _, ts := range []int64{30, 10, 20} {
		mustInsert(t, repo, observationAt(ts, "Thames"))
	}

	got, err := repo.Timestamps(context.Background())
	if err != nil {
		t.Fatalf("Timestamps failed: %v", err)
	}
	want := []int64{10, 20, 30}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got %v, want %v", got, want)
			break
		}
	}
}

func TestGetByTimestamp_Missing(t *testing.T) {
	_, repo := setupTestDB(t)

	got, err := repo.GetByTimestamp(context.Background(), 12345)
	if err != nil || got != nil {
		t.Errorf("GetByTimestamp on missing = %v, %v; want nil, nil", got, err)
	}
}

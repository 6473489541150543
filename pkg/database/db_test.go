package database

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/dbehnke/convfec/pkg/logger"
	"github.com/dbehnke/convfec/pkg/sim"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	log := logger.New(logger.Config{Level: "error"})
	db, err := NewDB(Config{Path: filepath.Join(t.TempDir(), "convfec.db")}, log)
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func testRun(id string, started time.Time) *SweepRun {
	return &SweepRun{
		ID:         id,
		Code:       "K=3 rate 1/2 [111 101] depth 10",
		Generators: "111,101",
		Depth:      10,
		Metric:     "soft3",
		FrameBits:  1000,
		StartedAt:  started,
	}
}

func TestNewDB(t *testing.T) {
	db := newTestDB(t)
	if db.GetDB() == nil {
		t.Error("Expected non-nil database connection")
	}
	if !db.GetDB().Migrator().HasTable(&SweepRun{}) || !db.GetDB().Migrator().HasTable(&SweepPoint{}) {
		t.Error("Expected sweep tables to be migrated")
	}
}

func TestNewDB_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "convfec.db")
	db, err := NewDB(Config{Path: path}, nil)
	if err != nil {
		t.Fatalf("Failed to create database in nested directory: %v", err)
	}
	_ = db.Close()
}

func TestSweepRun_BeforeCreate(t *testing.T) {
	repo := NewSweepRepository(newTestDB(t).GetDB())

	run := &SweepRun{ID: "r1", Code: "c", Generators: "111,101", Depth: 5, Metric: "hard", FrameBits: 10}
	if err := repo.CreateRun(run); err != nil {
		t.Fatalf("Failed to create run: %v", err)
	}
	if run.CreatedAt.IsZero() || run.StartedAt.IsZero() {
		t.Error("Expected CreatedAt and StartedAt to be set by hook")
	}
	if got := run.GeneratorList(); len(got) != 2 || got[1] != "101" {
		t.Errorf("GeneratorList = %v", got)
	}
	if run.Finished() {
		t.Error("Expected new run to be unfinished")
	}
}

func TestSweepRepository_PointsAndFinish(t *testing.T) {
	repo := NewSweepRepository(newTestDB(t).GetDB())

	if err := repo.CreateRun(testRun("run-a", time.Now())); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	// Creating twice is a no-op
	if err := repo.CreateRun(testRun("run-a", time.Now())); err != nil {
		t.Fatalf("CreateRun (duplicate): %v", err)
	}

	for _, ebn0 := range []float64{4, 2, 3} {
		p := &SweepPoint{RunID: "run-a", EbN0: ebn0, Frames: 10, Bits: 1000, Errors: int(10 - ebn0), BER: (10 - ebn0) / 1000}
		if err := repo.AddPoint(p); err != nil {
			t.Fatalf("AddPoint(%v): %v", ebn0, err)
		}
	}
	// Remeasuring a point replaces it
	if err := repo.AddPoint(&SweepPoint{RunID: "run-a", EbN0: 3, Frames: 20, Bits: 2000, Errors: 1, BER: 5e-4}); err != nil {
		t.Fatalf("AddPoint (replace): %v", err)
	}

	finished := time.Now().UTC().Truncate(time.Second)
	if err := repo.FinishRun("run-a", finished); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}

	run, err := repo.GetRun("run-a")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if !run.Finished() || !run.FinishedAt.Equal(finished) {
		t.Errorf("Expected FinishedAt %v, got %v", finished, run.FinishedAt)
	}
	if len(run.Points) != 3 {
		t.Fatalf("Expected 3 points, got %d", len(run.Points))
	}
	for i, want := range []float64{2, 3, 4} {
		if run.Points[i].EbN0 != want {
			t.Errorf("point %d: EbN0 = %v, want %v", i, run.Points[i].EbN0, want)
		}
	}
	if run.Points[1].Frames != 20 || run.Points[1].Errors != 1 {
		t.Errorf("Expected replaced point, got %+v", run.Points[1])
	}
}

func TestSweepRepository_NotFound(t *testing.T) {
	repo := NewSweepRepository(newTestDB(t).GetDB())

	if _, err := repo.GetRun("missing"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("GetRun: expected ErrRunNotFound, got %v", err)
	}
	if err := repo.FinishRun("missing", time.Now()); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("FinishRun: expected ErrRunNotFound, got %v", err)
	}
}

func TestSweepRepository_ListRunsPaginated(t *testing.T) {
	repo := NewSweepRepository(newTestDB(t).GetDB())

	base := time.Now().Add(-time.Hour)
	ids := []string{"r0", "r1", "r2", "r3", "r4"}
	for i, id := range ids {
		if err := repo.CreateRun(testRun(id, base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("CreateRun(%s): %v", id, err)
		}
	}

	page1, total, err := repo.ListRuns(1, 2)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if total != 5 {
		t.Errorf("Expected total 5, got %d", total)
	}
	if len(page1) != 2 || page1[0].ID != "r4" || page1[1].ID != "r3" {
		t.Errorf("Expected newest first [r4 r3], got %v", runIDs(page1))
	}

	page3, _, err := repo.ListRuns(3, 2)
	if err != nil {
		t.Fatalf("ListRuns page 3: %v", err)
	}
	if len(page3) != 1 || page3[0].ID != "r0" {
		t.Errorf("Expected [r0] on last page, got %v", runIDs(page3))
	}
}

func TestSweepRepository_DeleteOlderThan(t *testing.T) {
	repo := NewSweepRepository(newTestDB(t).GetDB())

	old := time.Now().Add(-48 * time.Hour)
	_ = repo.CreateRun(testRun("old", old))
	_ = repo.CreateRun(testRun("new", time.Now()))
	_ = repo.AddPoint(&SweepPoint{RunID: "old", EbN0: 1, Frames: 1, Bits: 10})
	_ = repo.AddPoint(&SweepPoint{RunID: "new", EbN0: 1, Frames: 1, Bits: 10})

	n, err := repo.DeleteOlderThan(time.Now().Add(-24 * time.Hour))
	if err != nil {
		t.Fatalf("DeleteOlderThan: %v", err)
	}
	if n != 1 {
		t.Errorf("Expected 1 deleted run, got %d", n)
	}
	if _, err := repo.GetRun("old"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("Expected old run to be gone, got %v", err)
	}

	var orphans int64
	repo.db.Model(&SweepPoint{}).Where("run_id = ?", "old").Count(&orphans)
	if orphans != 0 {
		t.Errorf("Expected points of deleted run to be removed, found %d", orphans)
	}
	if run, err := repo.GetRun("new"); err != nil || len(run.Points) != 1 {
		t.Errorf("Expected new run with its point to survive, got %v / %v", run, err)
	}
}

func TestSweepSink_PersistsSimResults(t *testing.T) {
	repo := NewSweepRepository(newTestDB(t).GetDB())
	sink := NewSweepSink(repo)
	ctx := context.Background()

	run := sim.Run{
		ID:         "6f9d2c1e-0000-4000-8000-000000000001",
		Code:       "K=3 rate 1/2 [111 101] depth 10",
		Generators: []string{"111", "101"},
		Depth:      10,
		Metric:     "hard",
		Puncture:   "110,101",
		FrameBits:  100,
		StartedAt:  time.Now().UTC(),
	}

	var wg sync.WaitGroup
	for _, ebn0 := range []float64{0, 1, 2, 3} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p := sim.PointResult{EbN0: ebn0, Frames: 3, Bits: 300, Errors: 3, BER: 0.01, Elapsed: 1500 * time.Millisecond}
			if err := sink.PointDone(ctx, run, p); err != nil {
				t.Errorf("PointDone(%v): %v", ebn0, err)
			}
		}()
	}
	wg.Wait()

	if err := sink.RunDone(ctx, &sim.Result{Run: run, FinishedAt: time.Now().UTC()}); err != nil {
		t.Fatalf("RunDone: %v", err)
	}

	stored, err := repo.GetRun(run.ID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if len(stored.Points) != 4 {
		t.Errorf("Expected 4 stored points, got %d", len(stored.Points))
	}
	if stored.Puncture != "110,101" || stored.Metric != "hard" || !stored.Finished() {
		t.Errorf("Unexpected stored run: %+v", stored)
	}
	if stored.Points[0].ElapsedMs != 1500 {
		t.Errorf("Expected elapsed 1500ms, got %d", stored.Points[0].ElapsedMs)
	}
}

func runIDs(runs []SweepRun) []string {
	out := make([]string, len(runs))
	for i, r := range runs {
		out[i] = r.ID
	}
	return out
}

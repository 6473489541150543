package database

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrRunNotFound is returned when a sweep run ID is unknown
var ErrRunNotFound = errors.New("sweep run not found")

// SweepRepository handles sweep run database operations
type SweepRepository struct {
	db *gorm.DB
}

// NewSweepRepository creates a new sweep repository
func NewSweepRepository(db *gorm.DB) *SweepRepository {
	return &SweepRepository{db: db}
}

// CreateRun adds a run record. Creating an existing run is a no-op.
func (r *SweepRepository) CreateRun(run *SweepRun) error {
	return r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(run).Error
}

// AddPoint stores a point, replacing an earlier measurement at the same Eb/N0
func (r *SweepRepository) AddPoint(p *SweepPoint) error {
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "run_id"}, {Name: "ebn0_db"}},
		UpdateAll: true,
	}).Create(p).Error
}

// FinishRun stamps the run as complete
func (r *SweepRepository) FinishRun(id string, at time.Time) error {
	res := r.db.Model(&SweepRun{}).Where("id = ?", id).Update("finished_at", at)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrRunNotFound
	}
	return nil
}

// GetRun retrieves a run with its points ordered by Eb/N0
func (r *SweepRepository) GetRun(id string) (*SweepRun, error) {
	var run SweepRun
	err := r.db.Preload("Points", func(db *gorm.DB) *gorm.DB {
		return db.Order("ebn0_db ASC")
	}).First(&run, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// ListRuns retrieves runs, newest first, without their points
func (r *SweepRepository) ListRuns(page, perPage int) ([]SweepRun, int64, error) {
	var runs []SweepRun
	var total int64

	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 20
	}

	// Count total records
	if err := r.db.Model(&SweepRun{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * perPage
	err := r.db.Order("started_at DESC").
		Offset(offset).
		Limit(perPage).
		Find(&runs).Error

	return runs, total, err
}

// DeleteOlderThan deletes runs (and their points) started before the given time
func (r *SweepRepository) DeleteOlderThan(before time.Time) (int64, error) {
	var count int64
	err := r.db.Transaction(func(tx *gorm.DB) error {
		old := tx.Model(&SweepRun{}).Select("id").Where("started_at < ?", before)
		if err := tx.Where("run_id IN (?)", old).Delete(&SweepPoint{}).Error; err != nil {
			return err
		}
		res := tx.Where("started_at < ?", before).Delete(&SweepRun{})
		count = res.RowsAffected
		return res.Error
	})
	return count, err
}

//go:build !js && !wasm
// +build !js,!wasm

// Package storage persists detection runs and their confirmed segments in a
// local sqlite database.
package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"copyscan/pkg/models"
	"copyscan/pkg/utils"
)

const DefaultDBFile = "copyscan.sqlite3"
const errDBClientNil = "db client is nil"

type DBClient struct {
	DB *gorm.DB
	db *sql.DB
}

// DetectionRecord is one finished detection run.
type DetectionRecord struct {
	ID          string          `gorm:"primaryKey;type:varchar(36)" json:"id"`
	FileName    string          `gorm:"index:idx_file_name" json:"file_name"`
	Method      string          `json:"detection_method"`
	Copyrighted *bool           `json:"copyrighted"`
	Error       string          `json:"error,omitempty"`
	Segments    []SegmentRecord `gorm:"foreignKey:DetectionID" json:"segments"`
	CreatedAt   time.Time       `json:"created_at"`
}

// SegmentRecord is one confirmed segment belonging to a detection run.
type SegmentRecord struct {
	ID          uint    `gorm:"primaryKey;autoIncrement" json:"-"`
	DetectionID string  `gorm:"type:varchar(36);index:idx_detection" json:"-"`
	Start       float64 `json:"start"`
	End         float64 `json:"end"`
	Duration    float64 `json:"duration"`
	Title       string  `json:"title"`
	Artist      string  `json:"artist"`
	Album       string  `json:"album"`
	TrackID     string  `gorm:"index:idx_track" json:"track_id"`
}

// Stats is an aggregate view over all stored runs.
type Stats struct {
	TotalRuns       int64 `json:"total_runs"`
	CopyrightedRuns int64 `json:"copyrighted_runs"`
	FailedRuns      int64 `json:"failed_runs"`
	TotalSegments   int64 `json:"total_segments"`
	DistinctTracks  int64 `json:"distinct_tracks"`
}

func NewDBClient() (*DBClient, error) {
	dbPath := os.Getenv("COPYSCAN_DB_PATH")
	if dbPath == "" {
		dbPath = DefaultDBFile
	}
	return NewDBClientWithPath(dbPath)
}

func NewDBClientWithPath(dbPath string) (*DBClient, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil && !os.IsExist(err) {
		if filepath.Dir(dbPath) != "." {
			return nil, fmt.Errorf("creating db dir: %w", err)
		}
	}

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}

	db, err := gorm.Open(sqlite.Open(dbPath+"?_foreign_keys=on"), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql.DB from gorm: %w", err)
	}

	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&DetectionRecord{}, &SegmentRecord{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("auto migrate: %w", err)
	}

	return &DBClient{DB: db, db: sqlDB}, nil
}

func (c *DBClient) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// SaveResult stores a detection run and returns its generated id.
func (c *DBClient) SaveResult(fileName string, result models.DetectionResult) (string, error) {
	if c == nil || c.DB == nil {
		return "", errors.New(errDBClientNil)
	}

	record := DetectionRecord{
		ID:          utils.GenerateUUID(),
		FileName:    fileName,
		Method:      result.Method,
		Copyrighted: result.Copyrighted,
		Error:       result.Error,
	}
	for _, seg := range result.Segments {
		record.Segments = append(record.Segments, SegmentRecord{
			Start:    seg.Start,
			End:      seg.End,
			Duration: seg.Duration,
			Title:    seg.Track.Title,
			Artist:   seg.Track.Artist,
			Album:    seg.Track.Album,
			TrackID:  seg.Track.TrackID,
		})
	}

	if err := c.DB.Create(&record).Error; err != nil {
		return "", fmt.Errorf("creating detection record: %w", err)
	}
	return record.ID, nil
}

// GetResult loads one run with its segments. gorm.ErrRecordNotFound passes
// through for missing ids.
func (c *DBClient) GetResult(id string) (*DetectionRecord, error) {
	if c == nil || c.DB == nil {
		return nil, errors.New(errDBClientNil)
	}
	var record DetectionRecord
	if err := c.DB.Preload("Segments").First(&record, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

// ListResults returns the most recent runs, newest first.
func (c *DBClient) ListResults(limit int) ([]DetectionRecord, error) {
	if c == nil || c.DB == nil {
		return nil, errors.New(errDBClientNil)
	}
	if limit <= 0 {
		limit = 50
	}
	var records []DetectionRecord
	err := c.DB.Preload("Segments").Order("created_at DESC").Limit(limit).Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("listing detection records: %w", err)
	}
	return records, nil
}

// DeleteResult removes a run and its segments.
func (c *DBClient) DeleteResult(id string) error {
	if c == nil || c.DB == nil {
		return errors.New(errDBClientNil)
	}
	return c.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("detection_id = ?", id).Delete(&SegmentRecord{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&DetectionRecord{}).Error
	})
}

// GetStats aggregates counts across all stored runs.
func (c *DBClient) GetStats() (*Stats, error) {
	if c == nil || c.DB == nil {
		return nil, errors.New(errDBClientNil)
	}

	var stats Stats
	if err := c.DB.Model(&DetectionRecord{}).Count(&stats.TotalRuns).Error; err != nil {
		return nil, fmt.Errorf("counting runs: %w", err)
	}
	if err := c.DB.Model(&DetectionRecord{}).Where("copyrighted = ?", true).Count(&stats.CopyrightedRuns).Error; err != nil {
		return nil, fmt.Errorf("counting copyrighted runs: %w", err)
	}
	if err := c.DB.Model(&DetectionRecord{}).Where("error <> ''").Count(&stats.FailedRuns).Error; err != nil {
		return nil, fmt.Errorf("counting failed runs: %w", err)
	}
	if err := c.DB.Model(&SegmentRecord{}).Count(&stats.TotalSegments).Error; err != nil {
		return nil, fmt.Errorf("counting segments: %w", err)
	}
	if err := c.DB.Model(&SegmentRecord{}).Distinct("track_id").Count(&stats.DistinctTracks).Error; err != nil {
		return nil, fmt.Errorf("counting distinct tracks: %w", err)
	}
	return &stats, nil
}

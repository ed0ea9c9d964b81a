//go:build !js && !wasm
// +build !js,!wasm

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/himanishpuri/TubeTuner/pkg/utils"
)

const DefaultDBFile = "tubetuner.sqlite3"
const errDBClientNil = "db client is nil"

type DBClient struct {
	DB *gorm.DB
	db *sql.DB
}

// Calibration is one row of the calibration_data table.
type Calibration struct {
	ID           string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Note         string    `gorm:"type:varchar(8);not null;index:idx_calibration_note" json:"note"`
	Frequency    float64   `json:"frequency"`
	Position     float64   `gorm:"not null" json:"position"`
	Diameter     float64   `gorm:"default:8" json:"diameter"`
	TubeDiameter float64   `gorm:"not null" json:"tube_diameter"`
	TubeLength   float64   `gorm:"not null" json:"tube_length"`
	TubeMaterial string    `gorm:"type:varchar(32);index:idx_calibration_material" json:"tube_material"`
	Temperature  float64   `json:"temperature"`
	Source       string    `gorm:"type:varchar(16)" json:"source"`
	Confidence   float64   `json:"confidence"`
	IsVerified   bool      `gorm:"index:idx_calibration_verified" json:"is_verified"`
	Notes        string    `json:"notes"`
	CreatedAt    time.Time `json:"created_at"`
}

func (Calibration) TableName() string { return "calibration_data" }

func NewDBClient() (*DBClient, error) {
	dbPath := os.Getenv("TUBETUNER_DB_PATH")
	if dbPath == "" {
		dbPath = DefaultDBFile
	}
	return NewDBClientWithPath(dbPath)
}

func NewDBClientWithPath(dbPath string) (*DBClient, error) {
	if err := utils.MakeDir(filepath.Dir(dbPath)); err != nil {
		return nil, fmt.Errorf("creating db dir: %w", err)
	}

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}

	db, err := gorm.Open(sqlite.Open(dbPath+"?_pragma=busy_timeout(5000)"), gormConfig)
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

	if err := db.AutoMigrate(&Calibration{}); err != nil {
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

// SaveCalibration inserts row, assigning an ID and creation time when missing.
func (c *DBClient) SaveCalibration(ctx context.Context, row *Calibration) error {
	if c == nil || c.DB == nil {
		return errors.New(errDBClientNil)
	}
	if row.ID == "" {
		row.ID = utils.GenerateUUID()
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	if err := c.DB.WithContext(ctx).Create(row).Error; err != nil {
		return fmt.Errorf("inserting calibration: %w", err)
	}
	return nil
}

// ListCalibrations returns rows in insertion order. With verifiedOnly set,
// unverified measurements are left out.
func (c *DBClient) ListCalibrations(ctx context.Context, verifiedOnly bool) ([]Calibration, error) {
	if c == nil || c.DB == nil {
		return nil, errors.New(errDBClientNil)
	}
	q := c.DB.WithContext(ctx).Order("created_at ASC").Order("rowid ASC")
	if verifiedOnly {
		q = q.Where("is_verified = ?", true)
	}
	var rows []Calibration
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing calibrations: %w", err)
	}
	return rows, nil
}

func (c *DBClient) GetCalibration(ctx context.Context, id string) (*Calibration, error) {
	if c == nil || c.DB == nil {
		return nil, errors.New(errDBClientNil)
	}
	var row Calibration
	if err := c.DB.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// CountCalibrations returns the total and verified row counts.
func (c *DBClient) CountCalibrations(ctx context.Context) (int, int, error) {
	if c == nil || c.DB == nil {
		return 0, 0, errors.New(errDBClientNil)
	}
	var total, verified int64
	if err := c.DB.WithContext(ctx).Model(&Calibration{}).Count(&total).Error; err != nil {
		return 0, 0, fmt.Errorf("counting calibrations: %w", err)
	}
	if err := c.DB.WithContext(ctx).Model(&Calibration{}).Where("is_verified = ?", true).Count(&verified).Error; err != nil {
		return 0, 0, fmt.Errorf("counting verified calibrations: %w", err)
	}
	return int(total), int(verified), nil
}

// SeedIfEmpty inserts rows in one transaction when the table has no rows.
// It reports whether anything was written.
func (c *DBClient) SeedIfEmpty(ctx context.Context, rows []Calibration) (bool, error) {
	if c == nil || c.DB == nil {
		return false, errors.New(errDBClientNil)
	}
	seeded := false
	err := c.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&Calibration{}).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 || len(rows) == 0 {
			return nil
		}
		for i := range rows {
			if rows[i].ID == "" {
				rows[i].ID = utils.GenerateUUID()
			}
		}
		if err := tx.CreateInBatches(rows, 100).Error; err != nil {
			return err
		}
		seeded = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("seeding calibrations: %w", err)
	}
	return seeded, nil
}

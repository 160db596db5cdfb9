package db

import (
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/sirupsen/logrus"
	"github.com/tdl-smp/portal/types"
	"gorm.io/gorm"
)

// ErrNotFound is returned when the requested record does not exist
var ErrNotFound = errors.New("record not found")

// Service represents struct that deals with database level operations
type Service struct {
	db *gorm.DB
}

// Open connects to the sqlite file. A single connection is kept open so
// writes are serialised by the pool rather than by sqlite locking.
func Open(file string, log *logrus.Entry) (*gorm.DB, error) {
	gdb, err := gorm.Open(sqlite.Open(file), &gorm.Config{
		Logger: NewGormLogger(log),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", file, err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql db: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	return gdb, nil
}

// NewService create new sqlite service that handles database level operations
func NewService(db *gorm.DB) *Service {
	return &Service{
		db: db,
	}
}

// Migrate creates the appeals, reports and sessions tables if they do not
// exist
func (s *Service) Migrate() error {
	return s.db.AutoMigrate(&types.Appeal{}, &types.Report{}, &types.SessionRecord{})
}

// Ping checks for db connection
func (s *Service) Ping() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// Close releases the underlying connection
func (s *Service) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// InsertAppeal creates a new pending appeal and returns its id
func (s *Service) InsertAppeal(appeal *types.Appeal) (uint, error) {
	appeal.ID = 0
	appeal.Status = types.StatusPending
	appeal.SubmittedAt = time.Now().UTC()
	appeal.ReviewedAt = nil
	appeal.ReviewedBy = nil
	if err := s.db.Create(appeal).Error; err != nil {
		return 0, fmt.Errorf("insert appeal: %w", err)
	}
	return appeal.ID, nil
}

// InsertReport creates a new pending report and returns its id
func (s *Service) InsertReport(report *types.Report) (uint, error) {
	report.ID = 0
	report.Status = types.StatusPending
	report.SubmittedAt = time.Now().UTC()
	report.ReviewedAt = nil
	report.ReviewedBy = nil
	if err := s.db.Create(report).Error; err != nil {
		return 0, fmt.Errorf("insert report: %w", err)
	}
	return report.ID, nil
}

// ListAppeals returns every appeal, newest first
func (s *Service) ListAppeals() ([]types.Appeal, error) {
	appeals := make([]types.Appeal, 0)
	err := s.db.Order("submittedAt desc").Order("id desc").Find(&appeals).Error
	if err != nil {
		return nil, fmt.Errorf("list appeals: %w", err)
	}
	return appeals, nil
}

// GetAppeal fetches one appeal by id
func (s *Service) GetAppeal(id uint) (*types.Appeal, error) {
	var appeal types.Appeal
	err := s.db.Where("id = ?", id).First(&appeal).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get appeal %d: %w", id, err)
	}
	return &appeal, nil
}

// GetReport fetches one report by id
func (s *Service) GetReport(id uint) (*types.Report, error) {
	var report types.Report
	err := s.db.Where("id = ?", id).First(&report).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get report %d: %w", id, err)
	}
	return &report, nil
}

// UpdateAppealStatus sets the status, review time and reviewer of an appeal
// together and returns the updated row. Reviewing again overwrites.
func (s *Service) UpdateAppealStatus(id uint, status, reviewer string, at time.Time) (*types.Appeal, error) {
	result := s.db.Model(&types.Appeal{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":     status,
		"reviewedAt": at.UTC(),
		"reviewedBy": reviewer,
	})
	if result.Error != nil {
		return nil, fmt.Errorf("update appeal %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return s.GetAppeal(id)
}

// CreateSession registers a newly issued session id. Expired sessions are
// pruned on the way.
func (s *Service) CreateSession(id string, expiresAt time.Time) error {
	now := time.Now().UTC()
	if err := s.db.Where("expiresAt < ?", now).Delete(&types.SessionRecord{}).Error; err != nil {
		return fmt.Errorf("prune sessions: %w", err)
	}
	record := &types.SessionRecord{
		ID:        id,
		CreatedAt: now,
		ExpiresAt: expiresAt.UTC(),
	}
	if err := s.db.Create(record).Error; err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// SessionActive reports whether id was issued, is not revoked and has not
// expired at now
func (s *Service) SessionActive(id string, now time.Time) (bool, error) {
	var count int64
	err := s.db.Model(&types.SessionRecord{}).
		Where("id = ? AND revokedAt IS NULL AND expiresAt > ?", id, now.UTC()).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("check session: %w", err)
	}
	return count > 0, nil
}

// RevokeSession marks id revoked. Revoking an unknown or already revoked id
// is a no-op.
func (s *Service) RevokeSession(id string, at time.Time) error {
	err := s.db.Model(&types.SessionRecord{}).
		Where("id = ? AND revokedAt IS NULL", id).
		Update("revokedAt", at.UTC()).Error
	if err != nil {
		return fmt.Errorf("revoke session %s: %w", id, err)
	}
	return nil
}

package storage

import (
	"context"
	"fmt"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"fableweaver/server/internal/config"
	"fableweaver/server/internal/models"
)

// MySQLStore archives completed turns. The session itself lives in
// memory; the archive is write-mostly telemetry.
type MySQLStore struct {
	db *gorm.DB
}

func NewMySQLStore(cfg config.MySQLConfig) (*MySQLStore, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		cfg.Username,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.Database,
	)

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := db.AutoMigrate(&models.TurnRecord{}); err != nil {
		return nil, err
	}

	return &MySQLStore{db: db}, nil
}

func (s *MySQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// AppendTurn records one completed turn.
func (s *MySQLStore) AppendTurn(ctx context.Context, record *models.TurnRecord) error {
	if err := s.db.WithContext(ctx).Create(record).Error; err != nil {
		return fmt.Errorf("failed to archive turn %d of session %s: %w", record.TurnNumber, record.SessionID, err)
	}
	return nil
}

// RecentTurns returns the newest turns for a session, most recent
// first.
func (s *MySQLStore) RecentTurns(ctx context.Context, sessionID string, limit int) ([]models.TurnRecord, error) {
	var records []models.TurnRecord
	err := s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("turn_number DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load turns for session %s: %w", sessionID, err)
	}
	return records, nil
}

package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/relaychat/relay/internal/common/config"
)

// GormStore implements Store on top of gorm with sqlite, mysql or postgres.
type GormStore struct {
	logger *zap.Logger
	db     *gorm.DB
}

var _ Store = (*GormStore)(nil)

// NewGormStore opens the configured database, migrates the messages table
// and returns the store.
func NewGormStore(logger *zap.Logger, cfg *config.DatabaseConfig) (*GormStore, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "sqlite", "":
		dialector = sqlite.Open(cfg.Path)
	case "mysql":
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
			cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.DBName)
		dialector = mysql.Open(dsn)
	case "postgres":
		dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=%s",
			cfg.Host, cfg.User, cfg.Password, cfg.DBName, cfg.Port, cfg.SSLMode)
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver: %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.AutoMigrate(&Message{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &GormStore{
		logger: logger.Named("storage.gorm"),
		db:     db,
	}, nil
}

// SaveMessage implements Store.SaveMessage
func (s *GormStore) SaveMessage(ctx context.Context, from, to, content string) (*Message, error) {
	msg := &Message{
		ID:        uuid.NewString(),
		From:      from,
		To:        to,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(msg).Error; err != nil {
		return nil, fmt.Errorf("failed to save message: %w", err)
	}
	s.logger.Debug("message persisted",
		zap.String("id", msg.ID),
		zap.String("from", msg.From),
		zap.String("to", msg.To))
	return msg, nil
}

// ListHistory implements Store.ListHistory
func (s *GormStore) ListHistory(ctx context.Context, userA, userB string, page, pageSize int) ([]*Message, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 50
	}

	var messages []*Message
	err := s.db.WithContext(ctx).
		Where("(from_id = ? AND to_id = ?) OR (from_id = ? AND to_id = ?)", userA, userB, userB, userA).
		Order("created_at asc").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	return messages, nil
}

// Close implements Store.Close
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

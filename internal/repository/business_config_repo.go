package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/leadline-ai/leadline-voice-service/internal/domain"
	"gorm.io/gorm"
)

// GormBusinessConfigRepository implements BusinessConfigRepository using GORM
type GormBusinessConfigRepository struct {
	db *gorm.DB
}

// NewGormBusinessConfigRepository creates a new GORM business config repository
func NewGormBusinessConfigRepository(db *gorm.DB) *GormBusinessConfigRepository {
	return &GormBusinessConfigRepository{db: db}
}

// GetByLineNumber returns the configuration for a business line, nil when
// the line is unknown or disabled.
func (r *GormBusinessConfigRepository) GetByLineNumber(ctx context.Context, lineNumber string) (*domain.BusinessConfig, error) {
	var cfg domain.BusinessConfig
	if err := r.db.WithContext(ctx).
		Where("line_number = ? AND disabled = ?", lineNumber, false).
		First(&cfg).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get business config: %w", err)
	}
	return &cfg, nil
}

// Create registers a new business line.
func (r *GormBusinessConfigRepository) Create(ctx context.Context, cfg *domain.BusinessConfig) error {
	if cfg.LineNumber == "" {
		return fmt.Errorf("business line number cannot be empty")
	}
	if cfg.ID == "" {
		cfg.ID = uuid.New().String()
	}
	now := time.Now()
	if cfg.CreatedAt.IsZero() {
		cfg.CreatedAt = now
	}
	cfg.UpdatedAt = now

	if err := r.db.WithContext(ctx).Create(cfg).Error; err != nil {
		return fmt.Errorf("failed to create business config: %w", err)
	}
	return nil
}

// Update saves changed business settings.
func (r *GormBusinessConfigRepository) Update(ctx context.Context, cfg *domain.BusinessConfig) error {
	cfg.UpdatedAt = time.Now()
	if err := r.db.WithContext(ctx).Save(cfg).Error; err != nil {
		return fmt.Errorf("failed to update business config: %w", err)
	}
	return nil
}

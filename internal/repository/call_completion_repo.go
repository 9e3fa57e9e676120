package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/leadline-ai/leadline-voice-service/internal/domain"
	"gorm.io/gorm"
)

// GormCallCompletionRepository implements CallCompletionRepository using GORM
type GormCallCompletionRepository struct {
	db *gorm.DB
}

// NewGormCallCompletionRepository creates a new GORM call completion repository
func NewGormCallCompletionRepository(db *gorm.DB) *GormCallCompletionRepository {
	return &GormCallCompletionRepository{db: db}
}

// Create writes one audit row for a terminal webhook event.
func (r *GormCallCompletionRepository) Create(ctx context.Context, entry *domain.CallCompletion) error {
	if entry.CallSid == "" {
		return fmt.Errorf("call sid cannot be empty")
	}
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.Status == "" {
		entry.Status = domain.CompletionStatusReceived
	}
	now := time.Now()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	entry.UpdatedAt = now

	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("failed to create call completion entry: %w", err)
	}
	return nil
}

// Update saves the current processing state of an audit row.
func (r *GormCallCompletionRepository) Update(ctx context.Context, entry *domain.CallCompletion) error {
	entry.UpdatedAt = time.Now()
	if err := r.db.WithContext(ctx).Save(entry).Error; err != nil {
		return fmt.Errorf("failed to update call completion entry: %w", err)
	}
	return nil
}

// GetByCallSid returns all audit rows for a call, oldest first.
func (r *GormCallCompletionRepository) GetByCallSid(ctx context.Context, callSid string) ([]*domain.CallCompletion, error) {
	var entries []*domain.CallCompletion
	if err := r.db.WithContext(ctx).
		Where("call_sid = ?", callSid).
		Order("created_at ASC").
		Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to get call completion entries: %w", err)
	}
	return entries, nil
}

package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/leadline-ai/leadline-voice-service/internal/domain"
	"gorm.io/gorm"
)

// GormNotificationRepository implements NotificationRepository using GORM
type GormNotificationRepository struct {
	db *gorm.DB
}

// NewGormNotificationRepository creates a new GORM notification repository
func NewGormNotificationRepository(db *gorm.DB) *GormNotificationRepository {
	return &GormNotificationRepository{db: db}
}

// Create records a pending notification attempt.
func (r *GormNotificationRepository) Create(ctx context.Context, record *domain.NotificationRecord) error {
	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if record.SentStatus == "" {
		record.SentStatus = domain.NotificationStatusPending
	}
	now := time.Now()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now

	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		return fmt.Errorf("failed to create notification record: %w", err)
	}
	return nil
}

// UpdateOutcome records the result of one delivery attempt.
func (r *GormNotificationRepository) UpdateOutcome(ctx context.Context, id string, status domain.NotificationStatus, errorMessage, providerMessageID string) error {
	result := r.db.WithContext(ctx).Model(&domain.NotificationRecord{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"sent_status":         status,
			"error_message":       errorMessage,
			"provider_message_id": providerMessageID,
			"updated_at":          time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update notification record: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("notification record not found: %s", id)
	}
	return nil
}

// GetByLeadID returns all notification attempts for a lead.
func (r *GormNotificationRepository) GetByLeadID(ctx context.Context, leadID string) ([]*domain.NotificationRecord, error) {
	var records []*domain.NotificationRecord
	if err := r.db.WithContext(ctx).
		Where("lead_id = ?", leadID).
		Order("created_at ASC").
		Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to get notification records: %w", err)
	}
	return records, nil
}

package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/leadline-ai/leadline-voice-service/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormLeadRepository implements LeadRepository using GORM
type GormLeadRepository struct {
	db *gorm.DB
}

// NewGormLeadRepository creates a new GORM lead repository
func NewGormLeadRepository(db *gorm.DB) *GormLeadRepository {
	return &GormLeadRepository{db: db}
}

// CreateIfAbsent inserts the lead, relying on the unique index on call_sid
// to absorb a racing duplicate. false means another insert won.
func (r *GormLeadRepository) CreateIfAbsent(ctx context.Context, lead *domain.Lead) (bool, error) {
	if lead.CallSid == "" {
		return false, fmt.Errorf("lead call sid cannot be empty")
	}
	if lead.ID == "" {
		lead.ID = uuid.New().String()
	}
	if lead.Status == "" {
		lead.Status = domain.LeadStatusNew
	}
	now := time.Now()
	if lead.CreatedAt.IsZero() {
		lead.CreatedAt = now
	}
	lead.UpdatedAt = now

	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "call_sid"}},
			DoNothing: true,
		}).
		Create(lead)
	if result.Error != nil {
		return false, fmt.Errorf("failed to create lead: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// GetByCallSid retrieves the lead for a call, nil if none exists.
func (r *GormLeadRepository) GetByCallSid(ctx context.Context, callSid string) (*domain.Lead, error) {
	var lead domain.Lead
	if err := r.db.WithContext(ctx).Where("call_sid = ?", callSid).First(&lead).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get lead: %w", err)
	}
	return &lead, nil
}

// UpdateStatus moves a lead through the follow-up pipeline.
func (r *GormLeadRepository) UpdateStatus(ctx context.Context, id string, status domain.LeadStatus) error {
	result := r.db.WithContext(ctx).Model(&domain.Lead{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update lead status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("lead not found: %s", id)
	}
	return nil
}

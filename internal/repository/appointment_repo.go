package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/leadline-ai/leadline-voice-service/internal/domain"
	"gorm.io/gorm"
)

// GormAppointmentRepository implements AppointmentRepository using GORM
type GormAppointmentRepository struct {
	db *gorm.DB
}

// NewGormAppointmentRepository creates a new GORM appointment repository
func NewGormAppointmentRepository(db *gorm.DB) *GormAppointmentRepository {
	return &GormAppointmentRepository{db: db}
}

// Create persists an in-app booking.
func (r *GormAppointmentRepository) Create(ctx context.Context, appt *domain.Appointment) error {
	if appt.ID == "" {
		appt.ID = uuid.New().String()
	}
	now := time.Now()
	if appt.CreatedAt.IsZero() {
		appt.CreatedAt = now
	}
	appt.UpdatedAt = now

	if err := r.db.WithContext(ctx).Create(appt).Error; err != nil {
		return fmt.Errorf("failed to create appointment: %w", err)
	}
	return nil
}

// SetExternalEventID links an appointment to the event created on the
// business's external calendar.
func (r *GormAppointmentRepository) SetExternalEventID(ctx context.Context, id, externalEventID string) error {
	result := r.db.WithContext(ctx).Model(&domain.Appointment{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"external_event_id": externalEventID,
			"updated_at":        time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to set external event id: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("appointment not found: %s", id)
	}
	return nil
}

// GetByCallSid returns the bookings made during a call.
func (r *GormAppointmentRepository) GetByCallSid(ctx context.Context, callSid string) ([]*domain.Appointment, error) {
	var appts []*domain.Appointment
	if err := r.db.WithContext(ctx).
		Where("call_sid = ?", callSid).
		Order("created_at ASC").
		Find(&appts).Error; err != nil {
		return nil, fmt.Errorf("failed to get appointments: %w", err)
	}
	return appts, nil
}

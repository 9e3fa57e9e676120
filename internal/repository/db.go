package repository

import (
	"context"

	"github.com/leadline-ai/leadline-voice-service/internal/domain"
	"gorm.io/gorm"
)

// LeadRepository persists call outcomes.
type LeadRepository interface {
	// CreateIfAbsent inserts the lead unless one already exists for its
	// call SID. It reports whether a row was actually inserted, which is
	// the finalizer's duplicate guard.
	CreateIfAbsent(ctx context.Context, lead *domain.Lead) (bool, error)
	GetByCallSid(ctx context.Context, callSid string) (*domain.Lead, error)
	UpdateStatus(ctx context.Context, id string, status domain.LeadStatus) error
}

// NotificationRepository records outbound alert attempts.
type NotificationRepository interface {
	Create(ctx context.Context, record *domain.NotificationRecord) error
	UpdateOutcome(ctx context.Context, id string, status domain.NotificationStatus, errorMessage, providerMessageID string) error
	GetByLeadID(ctx context.Context, leadID string) ([]*domain.NotificationRecord, error)
}

// CallCompletionRepository records terminal webhook events.
type CallCompletionRepository interface {
	Create(ctx context.Context, entry *domain.CallCompletion) error
	Update(ctx context.Context, entry *domain.CallCompletion) error
	GetByCallSid(ctx context.Context, callSid string) ([]*domain.CallCompletion, error)
}

// AppointmentRepository persists in-app bookings.
type AppointmentRepository interface {
	Create(ctx context.Context, appt *domain.Appointment) error
	SetExternalEventID(ctx context.Context, id, externalEventID string) error
	GetByCallSid(ctx context.Context, callSid string) ([]*domain.Appointment, error)
}

// BusinessConfigRepository reads per-line business settings.
type BusinessConfigRepository interface {
	GetByLineNumber(ctx context.Context, lineNumber string) (*domain.BusinessConfig, error)
	Create(ctx context.Context, cfg *domain.BusinessConfig) error
	Update(ctx context.Context, cfg *domain.BusinessConfig) error
}

// RepositoryManager combines all repositories
type RepositoryManager interface {
	Lead() LeadRepository
	Notification() NotificationRepository
	CallCompletion() CallCompletionRepository
	Appointment() AppointmentRepository
	BusinessConfig() BusinessConfigRepository

	// Health check
	Ping(ctx context.Context) error

	// Close connection
	Close() error
}

// GormRepositoryManager implements RepositoryManager using GORM
type GormRepositoryManager struct {
	db                 *gorm.DB
	leadRepo           *GormLeadRepository
	notificationRepo   *GormNotificationRepository
	callCompletionRepo *GormCallCompletionRepository
	appointmentRepo    *GormAppointmentRepository
	businessConfigRepo *GormBusinessConfigRepository
}

// NewGormRepositoryManager creates a new GORM repository manager
func NewGormRepositoryManager(db *gorm.DB) *GormRepositoryManager {
	return &GormRepositoryManager{
		db:                 db,
		leadRepo:           NewGormLeadRepository(db),
		notificationRepo:   NewGormNotificationRepository(db),
		callCompletionRepo: NewGormCallCompletionRepository(db),
		appointmentRepo:    NewGormAppointmentRepository(db),
		businessConfigRepo: NewGormBusinessConfigRepository(db),
	}
}

// NewRepositoryManager opens the database from environment configuration,
// runs migrations and returns a ready manager.
func NewRepositoryManager() (RepositoryManager, error) {
	db, err := NewDatabaseConnection(LoadDatabaseConfigFromEnv())
	if err != nil {
		return nil, err
	}
	if err := AutoMigrate(db); err != nil {
		return nil, err
	}
	return NewGormRepositoryManager(db), nil
}

func (m *GormRepositoryManager) Lead() LeadRepository {
	return m.leadRepo
}

func (m *GormRepositoryManager) Notification() NotificationRepository {
	return m.notificationRepo
}

func (m *GormRepositoryManager) CallCompletion() CallCompletionRepository {
	return m.callCompletionRepo
}

func (m *GormRepositoryManager) Appointment() AppointmentRepository {
	return m.appointmentRepo
}

func (m *GormRepositoryManager) BusinessConfig() BusinessConfigRepository {
	return m.businessConfigRepo
}

// Ping checks the database connection
func (m *GormRepositoryManager) Ping(ctx context.Context) error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the database connection
func (m *GormRepositoryManager) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

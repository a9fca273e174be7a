package store

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"workshop-access-backend/internal/eligibility"
	"workshop-access-backend/internal/model"
)

// Store defines the interface for all database operations.
//
// Methods ending in ForUpdate take a row lock on Postgres and are meant to be
// called inside Transaction; on SQLite the single connection serializes
// writers instead.
type Store interface {
	eligibility.RequirementReader
	eligibility.ProgressReader
	eligibility.CheckoutReader

	// Transaction runs fn against a Store bound to one database transaction.
	Transaction(ctx context.Context, fn func(tx Store) error) error

	// Catalog
	GetUser(ctx context.Context, id int64) (model.User, error)
	LockUser(ctx context.Context, id int64) (model.User, error)
	GetMachine(ctx context.Context, id int64) (model.Machine, error)
	LockMachine(ctx context.Context, id int64) (model.Machine, error)
	ListMachines(ctx context.Context, includeInactive bool) ([]model.Machine, error)
	GetModule(ctx context.Context, id int64) (model.TrainingModule, error)
	ListModules(ctx context.Context, includeInactive bool) ([]model.TrainingModule, error)
	SetMachineLifecycle(ctx context.Context, id int64, l model.Lifecycle) error
	SetModuleLifecycle(ctx context.Context, id int64, l model.Lifecycle) error

	// Training
	GetProgress(ctx context.Context, userID, moduleID int64) (model.TrainingProgress, bool, error)
	GetProgressForUpdate(ctx context.Context, userID, moduleID int64) (model.TrainingProgress, bool, error)
	ListProgress(ctx context.Context, userID int64) ([]model.TrainingProgress, error)
	SaveProgress(ctx context.Context, p *model.TrainingProgress) error

	// Checkouts
	CreateCheckout(ctx context.Context, c *model.ManagerCheckout) (created bool, err error)
	DeleteCheckout(ctx context.Context, userID, machineID int64) (deleted bool, err error)

	// Reservations
	GetReservation(ctx context.Context, id int64) (model.Reservation, error)
	ListReservations(ctx context.Context, f ReservationFilter) ([]model.Reservation, error)
	OverlappingReservations(ctx context.Context, machineID int64, start, end time.Time) ([]model.Reservation, error)
	CreateReservation(ctx context.Context, r *model.Reservation) error
	UpdateReservation(ctx context.Context, r *model.Reservation) error
	ElapsedReservations(ctx context.Context, now time.Time, limit int) ([]model.Reservation, error)

	// Availability
	GetBlock(ctx context.Context, id int64) (model.CheckoutAvailabilityBlock, error)
	CreateBlock(ctx context.Context, b *model.CheckoutAvailabilityBlock) error
	ListBlocks(ctx context.Context, f BlockFilter) ([]model.CheckoutAvailabilityBlock, error)
	GetRule(ctx context.Context, id int64) (model.CheckoutAvailabilityRule, error)
	CreateRule(ctx context.Context, r *model.CheckoutAvailabilityRule) error
	ListRules(ctx context.Context, managerID int64) ([]model.CheckoutAvailabilityRule, error)
	SetBlockLifecycle(ctx context.Context, id int64, l model.Lifecycle) error
	SetRuleLifecycle(ctx context.Context, id int64, l model.Lifecycle) error

	// Appointments
	GetAppointment(ctx context.Context, id int64) (model.CheckoutAppointment, error)
	ListAppointments(ctx context.Context, f AppointmentFilter) ([]model.CheckoutAppointment, error)
	ManagerAppointments(ctx context.Context, managerID int64, from, to time.Time) ([]model.CheckoutAppointment, error)
	AppointmentsForManagers(ctx context.Context, managerIDs []int64, from, to time.Time) ([]model.CheckoutAppointment, error)
	UserAppointments(ctx context.Context, userID int64, from, to time.Time) ([]model.CheckoutAppointment, error)
	CreateAppointment(ctx context.Context, a *model.CheckoutAppointment) error
	UpdateAppointment(ctx context.Context, a *model.CheckoutAppointment) error
	ElapsedAppointments(ctx context.Context, now time.Time, limit int) ([]model.CheckoutAppointment, error)

	// Outbox
	AppendEvent(ctx context.Context, eventType string, aggregateID int64, payload any) error
	PendingEvents(ctx context.Context, limit int) ([]model.DomainEvent, error)
	MarkDispatched(ctx context.Context, ids []string, at time.Time) error
}

// ReservationFilter narrows ListReservations. Zero fields match everything.
type ReservationFilter struct {
	UserID    int64
	MachineID int64
	Statuses  []model.ReservationStatus
	From, To  time.Time
}

// BlockFilter narrows ListBlocks to blocks intersecting [From, To). Zero IDs
// match everything.
type BlockFilter struct {
	ManagerID int64
	MachineID int64
	From, To  time.Time
}

// AppointmentFilter narrows ListAppointments. Zero fields match everything.
type AppointmentFilter struct {
	UserID    int64
	ManagerID int64
	MachineID int64
	Statuses  []model.AppointmentStatus
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormStore{db: tx})
	})
}

// forUpdate adds SELECT ... FOR UPDATE where the dialect supports it.
func (s *gormStore) forUpdate(ctx context.Context) *gorm.DB {
	q := s.db.WithContext(ctx)
	if s.db.Dialector.Name() == "postgres" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return q
}

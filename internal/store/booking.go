package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"workshop-access-backend/internal/model"
)

func (s *gormStore) GetReservation(ctx context.Context, id int64) (model.Reservation, error) {
	return first[model.Reservation](s.forUpdate(ctx), "reservation", id)
}

func (s *gormStore) ListReservations(ctx context.Context, f ReservationFilter) ([]model.Reservation, error) {
	q := s.db.WithContext(ctx).Order("start_time ASC, id ASC")
	if f.UserID != 0 {
		q = q.Where("user_id = ?", f.UserID)
	}
	if f.MachineID != 0 {
		q = q.Where("machine_id = ?", f.MachineID)
	}
	if len(f.Statuses) > 0 {
		q = q.Where("status IN ?", f.Statuses)
	}
	if !f.To.IsZero() {
		q = q.Where("start_time < ?", f.To)
	}
	if !f.From.IsZero() {
		q = q.Where("end_time > ?", f.From)
	}
	var out []model.Reservation
	if err := q.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list reservations: %w", err)
	}
	return out, nil
}

// OverlappingReservations returns active reservations on the machine whose
// half-open window overlaps [start, end).
func (s *gormStore) OverlappingReservations(ctx context.Context, machineID int64, start, end time.Time) ([]model.Reservation, error) {
	var out []model.Reservation
	if err := s.db.WithContext(ctx).
		Where("machine_id = ? AND status IN ? AND start_time < ? AND end_time > ?",
			machineID, model.ActiveReservationStatuses, end, start).
		Order("start_time ASC").
		Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to check reservation overlap on machine %d: %w", machineID, err)
	}
	return out, nil
}

func (s *gormStore) CreateReservation(ctx context.Context, r *model.Reservation) error {
	if err := s.db.WithContext(ctx).Create(r).Error; err != nil {
		return mapWriteError(err, r.StartTime, r.EndTime, "failed to create reservation")
	}
	return nil
}

func (s *gormStore) UpdateReservation(ctx context.Context, r *model.Reservation) error {
	if err := s.db.WithContext(ctx).Save(r).Error; err != nil {
		return mapWriteError(err, r.StartTime, r.EndTime, fmt.Sprintf("failed to update reservation %d", r.ID))
	}
	return nil
}

// ElapsedReservations returns confirmed reservations that ended at or before now.
func (s *gormStore) ElapsedReservations(ctx context.Context, now time.Time, limit int) ([]model.Reservation, error) {
	var out []model.Reservation
	if err := s.skipLocked(ctx).
		Where("status = ? AND end_time <= ?", model.ReservationConfirmed, now).
		Order("end_time ASC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list elapsed reservations: %w", err)
	}
	return out, nil
}

func (s *gormStore) GetBlock(ctx context.Context, id int64) (model.CheckoutAvailabilityBlock, error) {
	return first[model.CheckoutAvailabilityBlock](s.db.WithContext(ctx), "availability_block", id)
}

func (s *gormStore) CreateBlock(ctx context.Context, b *model.CheckoutAvailabilityBlock) error {
	if err := s.db.WithContext(ctx).Create(b).Error; err != nil {
		return fmt.Errorf("failed to create availability block: %w", err)
	}
	return nil
}

// ListBlocks returns blocks of every lifecycle matching f.
func (s *gormStore) ListBlocks(ctx context.Context, f BlockFilter) ([]model.CheckoutAvailabilityBlock, error) {
	q := s.db.WithContext(ctx).Where("start_time < ? AND end_time > ?", f.To, f.From)
	if f.ManagerID != 0 {
		q = q.Where("manager_id = ?", f.ManagerID)
	}
	if f.MachineID != 0 {
		q = q.Where("machine_id = ?", f.MachineID)
	}
	var out []model.CheckoutAvailabilityBlock
	if err := q.Order("start_time ASC, id ASC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list availability blocks: %w", err)
	}
	return out, nil
}

func (s *gormStore) GetRule(ctx context.Context, id int64) (model.CheckoutAvailabilityRule, error) {
	return first[model.CheckoutAvailabilityRule](s.db.WithContext(ctx), "availability_rule", id)
}

func (s *gormStore) CreateRule(ctx context.Context, r *model.CheckoutAvailabilityRule) error {
	if err := s.db.WithContext(ctx).Create(r).Error; err != nil {
		return fmt.Errorf("failed to create availability rule: %w", err)
	}
	return nil
}

// ListRules returns rules of every lifecycle. A zero managerID matches all managers.
func (s *gormStore) ListRules(ctx context.Context, managerID int64) ([]model.CheckoutAvailabilityRule, error) {
	q := s.db.WithContext(ctx)
	if managerID != 0 {
		q = q.Where("manager_id = ?", managerID)
	}
	var out []model.CheckoutAvailabilityRule
	if err := q.Order("id ASC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list availability rules: %w", err)
	}
	return out, nil
}

func (s *gormStore) SetBlockLifecycle(ctx context.Context, id int64, l model.Lifecycle) error {
	if err := s.db.WithContext(ctx).Model(&model.CheckoutAvailabilityBlock{ID: id}).Update("lifecycle", l).Error; err != nil {
		return fmt.Errorf("failed to update availability block %d: %w", id, err)
	}
	return nil
}

func (s *gormStore) SetRuleLifecycle(ctx context.Context, id int64, l model.Lifecycle) error {
	if err := s.db.WithContext(ctx).Model(&model.CheckoutAvailabilityRule{ID: id}).Update("lifecycle", l).Error; err != nil {
		return fmt.Errorf("failed to update availability rule %d: %w", id, err)
	}
	return nil
}

func (s *gormStore) GetAppointment(ctx context.Context, id int64) (model.CheckoutAppointment, error) {
	return first[model.CheckoutAppointment](s.forUpdate(ctx), "appointment", id)
}

func (s *gormStore) ListAppointments(ctx context.Context, f AppointmentFilter) ([]model.CheckoutAppointment, error) {
	q := s.db.WithContext(ctx).Order("start_time ASC, id ASC")
	if f.UserID != 0 {
		q = q.Where("user_id = ?", f.UserID)
	}
	if f.ManagerID != 0 {
		q = q.Where("manager_id = ?", f.ManagerID)
	}
	if f.MachineID != 0 {
		q = q.Where("machine_id = ?", f.MachineID)
	}
	if len(f.Statuses) > 0 {
		q = q.Where("status IN ?", f.Statuses)
	}
	var out []model.CheckoutAppointment
	if err := q.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	return out, nil
}

// ManagerAppointments returns the manager's non-cancelled appointments
// intersecting [from, to).
func (s *gormStore) ManagerAppointments(ctx context.Context, managerID int64, from, to time.Time) ([]model.CheckoutAppointment, error) {
	var out []model.CheckoutAppointment
	if err := s.db.WithContext(ctx).
		Where("manager_id = ? AND status <> ? AND start_time < ? AND end_time > ?",
			managerID, model.AppointmentCancelled, to, from).
		Order("start_time ASC, id ASC").
		Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list appointments for manager %d: %w", managerID, err)
	}
	return out, nil
}

// AppointmentsForManagers is ManagerAppointments across several managers.
func (s *gormStore) AppointmentsForManagers(ctx context.Context, managerIDs []int64, from, to time.Time) ([]model.CheckoutAppointment, error) {
	if len(managerIDs) == 0 {
		return []model.CheckoutAppointment{}, nil
	}
	var out []model.CheckoutAppointment
	if err := s.db.WithContext(ctx).
		Where("manager_id IN ? AND status <> ? AND start_time < ? AND end_time > ?",
			managerIDs, model.AppointmentCancelled, to, from).
		Order("start_time ASC, id ASC").
		Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list appointments for %d managers: %w", len(managerIDs), err)
	}
	return out, nil
}

// UserAppointments returns the user's scheduled appointments intersecting [from, to).
func (s *gormStore) UserAppointments(ctx context.Context, userID int64, from, to time.Time) ([]model.CheckoutAppointment, error) {
	var out []model.CheckoutAppointment
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND status = ? AND start_time < ? AND end_time > ?",
			userID, model.AppointmentScheduled, to, from).
		Order("start_time ASC, id ASC").
		Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list appointments for user %d: %w", userID, err)
	}
	return out, nil
}

func (s *gormStore) CreateAppointment(ctx context.Context, a *model.CheckoutAppointment) error {
	if err := s.db.WithContext(ctx).Create(a).Error; err != nil {
		return mapWriteError(err, a.StartTime, a.EndTime, "failed to create appointment")
	}
	return nil
}

func (s *gormStore) UpdateAppointment(ctx context.Context, a *model.CheckoutAppointment) error {
	if err := s.db.WithContext(ctx).Save(a).Error; err != nil {
		return mapWriteError(err, a.StartTime, a.EndTime, fmt.Sprintf("failed to update appointment %d", a.ID))
	}
	return nil
}

// ElapsedAppointments returns scheduled appointments that ended at or before now.
func (s *gormStore) ElapsedAppointments(ctx context.Context, now time.Time, limit int) ([]model.CheckoutAppointment, error) {
	var out []model.CheckoutAppointment
	if err := s.skipLocked(ctx).
		Where("status = ? AND end_time <= ?", model.AppointmentScheduled, now).
		Order("end_time ASC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list elapsed appointments: %w", err)
	}
	return out, nil
}

// skipLocked is forUpdate that skips rows another transaction already holds,
// so concurrent sweeps partition the work.
func (s *gormStore) skipLocked(ctx context.Context) *gorm.DB {
	q := s.db.WithContext(ctx)
	if s.db.Dialector.Name() == "postgres" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
	}
	return q
}

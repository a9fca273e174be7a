package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"workshop-access-backend/internal/apperr"
	"workshop-access-backend/internal/model"
	"workshop-access-backend/internal/watch"
)

func newSQLiteStore(t *testing.T) (Store, *gorm.DB) {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, gdb.AutoMigrate(
		&model.User{}, &model.TrainingModule{}, &model.Machine{}, &model.MachineRequirement{},
		&model.TrainingProgress{}, &model.ManagerCheckout{}, &model.Reservation{},
		&model.CheckoutAvailabilityBlock{}, &model.CheckoutAvailabilityRule{},
		&model.CheckoutAppointment{}, &model.DomainEvent{},
	))
	return NewGormStore(gdb), gdb
}

func TestSQLite_RequirementsAndProgress(t *testing.T) {
	ctx := context.Background()
	s, gdb := newSQLiteStore(t)

	mod := model.TrainingModule{Title: "Lathe safety", VideoDurationSeconds: 600, Lifecycle: model.LifecycleActive}
	require.NoError(t, gdb.Create(&mod).Error)
	machine := model.Machine{Name: "Lathe", Lifecycle: model.LifecycleActive}
	require.NoError(t, gdb.Create(&machine).Error)
	require.NoError(t, gdb.Create(&model.MachineRequirement{MachineID: machine.ID, ModuleID: mod.ID, RequiredWatchPercent: 90}).Error)

	reqs, err := s.RequirementsByMachine(ctx, machine.ID)
	require.NoError(t, err)
	require.Len(t, reqs, 1)
	assert.Equal(t, "Lathe safety", reqs[0].Module.Title)

	p, found, err := s.GetProgress(ctx, 5, mod.ID)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, int64(5), p.UserID)

	p.WatchedRanges = []watch.Range{{Start: 0, End: 120}, {Start: 300, End: 330}}
	p.LastPosition = 330
	require.NoError(t, s.SaveProgress(ctx, &p))

	byModule, err := s.ProgressByModules(ctx, 5, []int64{mod.ID})
	require.NoError(t, err)
	require.Contains(t, byModule, mod.ID)
	assert.Equal(t, 150.0, byModule[mod.ID].WatchedSeconds())

	empty, err := s.ProgressByModules(ctx, 5, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)

	machines, err := s.ListMachines(ctx, false)
	require.NoError(t, err)
	require.Len(t, machines, 1)
	require.Len(t, machines[0].Requirements, 1)
	assert.Equal(t, mod.ID, machines[0].Requirements[0].Module.ID)
}

func TestSQLite_Checkouts(t *testing.T) {
	ctx := context.Background()
	s, _ := newSQLiteStore(t)

	created, err := s.CreateCheckout(ctx, &model.ManagerCheckout{UserID: 1, MachineID: 2, ApprovedBy: 3})
	require.NoError(t, err)
	assert.True(t, created)

	created, err = s.CreateCheckout(ctx, &model.ManagerCheckout{UserID: 1, MachineID: 2, ApprovedBy: 4})
	require.NoError(t, err)
	assert.False(t, created, "second approval is a no-op")

	has, err := s.HasCheckout(ctx, 1, 2)
	require.NoError(t, err)
	assert.True(t, has)

	deleted, err := s.DeleteCheckout(ctx, 1, 2)
	require.NoError(t, err)
	assert.True(t, deleted)

	has, err = s.HasCheckout(ctx, 1, 2)
	require.NoError(t, err)
	assert.False(t, has)
}

func TestSQLite_OverlappingReservations(t *testing.T) {
	ctx := context.Background()
	s, _ := newSQLiteStore(t)
	base := time.Date(2026, 10, 6, 9, 0, 0, 0, time.UTC)

	rows := []model.Reservation{
		{UserID: 1, MachineID: 7, StartTime: base, EndTime: base.Add(time.Hour), Status: model.ReservationApproved},
		{UserID: 2, MachineID: 7, StartTime: base.Add(2 * time.Hour), EndTime: base.Add(3 * time.Hour), Status: model.ReservationCancelled},
		{UserID: 3, MachineID: 8, StartTime: base, EndTime: base.Add(time.Hour), Status: model.ReservationPending},
	}
	for i := range rows {
		require.NoError(t, s.CreateReservation(ctx, &rows[i]))
	}

	testCases := []struct {
		name       string
		start, end time.Time
		expected   int
	}{
		{"Touching the end does not overlap", base.Add(time.Hour), base.Add(2 * time.Hour), 0},
		{"Touching the start does not overlap", base.Add(-time.Hour), base, 0},
		{"One minute inside overlaps", base.Add(59 * time.Minute), base.Add(2 * time.Hour), 1},
		{"Cancelled reservations are ignored", base.Add(2 * time.Hour), base.Add(3 * time.Hour), 0},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := s.OverlappingReservations(ctx, 7, tc.start, tc.end)
			require.NoError(t, err)
			assert.Len(t, got, tc.expected)
		})
	}
}

func TestSQLite_AppointmentsAndElapsed(t *testing.T) {
	ctx := context.Background()
	s, _ := newSQLiteStore(t)
	base := time.Date(2026, 10, 6, 9, 0, 0, 0, time.UTC)

	appts := []model.CheckoutAppointment{
		{UserID: 1, MachineID: 7, ManagerID: 2, StartTime: base, EndTime: base.Add(time.Hour), Status: model.AppointmentScheduled},
		{UserID: 3, MachineID: 7, ManagerID: 2, StartTime: base.Add(time.Hour), EndTime: base.Add(2 * time.Hour), Status: model.AppointmentCancelled},
		{UserID: 1, MachineID: 8, ManagerID: 4, StartTime: base.Add(3 * time.Hour), EndTime: base.Add(4 * time.Hour), Status: model.AppointmentScheduled},
	}
	for i := range appts {
		require.NoError(t, s.CreateAppointment(ctx, &appts[i]))
	}

	mgr, err := s.ManagerAppointments(ctx, 2, base, base.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, mgr, 1)
	assert.Equal(t, appts[0].ID, mgr[0].ID)

	both, err := s.AppointmentsForManagers(ctx, []int64{2, 4}, base, base.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, both, 2)
	assert.Equal(t, appts[0].ID, both[0].ID)
	assert.Equal(t, appts[2].ID, both[1].ID)

	none, err := s.AppointmentsForManagers(ctx, nil, base, base.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, none)

	usr, err := s.UserAppointments(ctx, 1, base, base.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Len(t, usr, 2)

	elapsed, err := s.ElapsedAppointments(ctx, base.Add(time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, elapsed, 1)
	assert.Equal(t, appts[0].ID, elapsed[0].ID)

	listed, err := s.ListAppointments(ctx, AppointmentFilter{MachineID: 7, Statuses: []model.AppointmentStatus{model.AppointmentCancelled}})
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, appts[1].ID, listed[0].ID)
}

func TestSQLite_AvailabilityLifecycle(t *testing.T) {
	ctx := context.Background()
	s, _ := newSQLiteStore(t)
	base := time.Date(2026, 10, 6, 9, 0, 0, 0, time.UTC)

	block := model.CheckoutAvailabilityBlock{MachineID: 7, ManagerID: 2, StartTime: base, EndTime: base.Add(2 * time.Hour), Lifecycle: model.LifecycleActive}
	require.NoError(t, s.CreateBlock(ctx, &block))
	rule := model.CheckoutAvailabilityRule{ManagerID: 2, DayOfWeek: 2, StartMinuteOfDay: 540, EndMinuteOfDay: 600, Timezone: "UTC", Lifecycle: model.LifecycleActive}
	require.NoError(t, s.CreateRule(ctx, &rule))

	require.NoError(t, s.SetBlockLifecycle(ctx, block.ID, model.LifecycleInactive))
	require.NoError(t, s.SetRuleLifecycle(ctx, rule.ID, model.LifecycleInactive))

	blocks, err := s.ListBlocks(ctx, BlockFilter{ManagerID: 2, From: base.Add(time.Hour), To: base.Add(5 * time.Hour)})
	require.NoError(t, err)
	require.Len(t, blocks, 1, "inactive blocks are still listed for history")
	assert.Equal(t, model.LifecycleInactive, blocks[0].Lifecycle)

	blocks, err = s.ListBlocks(ctx, BlockFilter{ManagerID: 2, From: base.Add(2 * time.Hour), To: base.Add(5 * time.Hour)})
	require.NoError(t, err)
	assert.Empty(t, blocks)

	other := model.CheckoutAvailabilityBlock{MachineID: 8, ManagerID: 2, StartTime: base, EndTime: base.Add(time.Hour), Lifecycle: model.LifecycleActive}
	require.NoError(t, s.CreateBlock(ctx, &other))
	blocks, err = s.ListBlocks(ctx, BlockFilter{MachineID: 8, From: base, To: base.Add(5 * time.Hour)})
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	assert.Equal(t, other.ID, blocks[0].ID)

	rules, err := s.ListRules(ctx, 2)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, model.LifecycleInactive, rules[0].Lifecycle)

	_, err = s.GetRule(ctx, 999)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestSQLite_OutboxAndTransaction(t *testing.T) {
	ctx := context.Background()
	s, _ := newSQLiteStore(t)

	boom := errors.New("boom")
	err := s.Transaction(ctx, func(tx Store) error {
		require.NoError(t, tx.AppendEvent(ctx, model.EventCheckoutApproved, 1, map[string]int64{"userId": 1}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	pending, err := s.PendingEvents(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending, "rolled back with the transaction")

	require.NoError(t, s.Transaction(ctx, func(tx Store) error {
		return tx.AppendEvent(ctx, model.EventCheckoutApproved, 1, map[string]int64{"userId": 1})
	}))
	pending, err = s.PendingEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, model.EventCheckoutApproved, pending[0].Type)
	assert.JSONEq(t, `{"userId":1}`, string(pending[0].Payload))

	require.NoError(t, s.MarkDispatched(ctx, []string{pending[0].ID}, time.Now().UTC()))
	pending, err = s.PendingEvents(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

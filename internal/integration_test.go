package internal

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"workshop-access-backend/config"
	"workshop-access-backend/internal/core"
	"workshop-access-backend/internal/db"
	"workshop-access-backend/internal/events"
	"workshop-access-backend/internal/lock"
	"workshop-access-backend/internal/logger"
	"workshop-access-backend/internal/model"
	"workshop-access-backend/internal/store"
	"workshop-access-backend/internal/watch"
)

type recordingPublisher struct {
	mu    sync.Mutex
	types []string
}

func (p *recordingPublisher) Publish(_ context.Context, ev model.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.types = append(p.types, ev.Type)
	return nil
}

// TestAccessLifecycle walks a member from an untrained account to a confirmed
// machine reservation, and checks the outbox relays every step.
func TestAccessLifecycle(t *testing.T) {
	// --- Test Setup ---
	testDB, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	require.NoError(t, err)
	sqlDB, err := testDB.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	defer sqlDB.Close()
	require.NoError(t, db.Migrate(testDB))

	manager := model.User{Name: "Max", Email: "max@example.com", Role: model.RoleManager, Status: model.UserActive}
	member := model.User{Name: "Mia", Email: "mia@example.com", Role: model.RoleMember, Status: model.UserActive}
	require.NoError(t, testDB.Create(&manager).Error)
	require.NoError(t, testDB.Create(&member).Error)
	module := model.TrainingModule{Title: "Laser cutter basics", VideoDurationSeconds: 60, Lifecycle: model.LifecycleActive}
	require.NoError(t, testDB.Create(&module).Error)
	machine := model.Machine{Name: "Laser", Location: "Bay 2", Lifecycle: model.LifecycleActive}
	require.NoError(t, testDB.Create(&machine).Error)
	require.NoError(t, testDB.Create(&model.MachineRequirement{MachineID: machine.ID, ModuleID: module.ID, RequiredWatchPercent: 80}).Error)

	now := time.Date(2026, 10, 5, 8, 0, 0, 0, time.UTC) // Monday
	clock := func() time.Time { return now }

	cfg := config.Default()
	st := store.NewGormStore(testDB)
	svc := core.NewService(st, lock.NewKeyedMutex(), cfg.Scheduling, logger.Nop(), core.WithClock(clock))
	ctx := context.Background()

	// --- Step 1: watch the module in plausible ticks ---
	for pos := 10.0; pos <= 60; pos += 10 {
		_, err := svc.RecordProgress(ctx, member.ID, module.ID, watch.ProgressUpdate{
			WatchedSeconds: pos, CurrentPosition: pos, SessionDuration: 10,
		})
		require.NoError(t, err, "tick at %v", pos)
	}
	view, err := svc.GetProgress(ctx, member.ID, module.ID)
	require.NoError(t, err)
	assert.True(t, view.Completed)

	elig, err := svc.CheckEligibility(ctx, member.ID, machine.ID)
	require.NoError(t, err)
	assert.False(t, elig.Eligible, "training alone is not enough")

	// --- Step 2: book and attend a checkout appraisal ---
	block, err := svc.CreateAvailabilityBlock(ctx, manager.ID, core.BlockInput{
		MachineID: machine.ID,
		Start:     now.Add(2 * time.Hour),
		End:       now.Add(4 * time.Hour),
	})
	require.NoError(t, err)
	appt, err := svc.CreateCheckoutAppointment(ctx, member.ID, machine.ID, core.SlotRef{BlockID: block.ID}, now.Add(2*time.Hour), now.Add(3*time.Hour))
	require.NoError(t, err)

	now = now.Add(3 * time.Hour)
	res, err := svc.CompleteElapsed(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Appointments)

	created, err := svc.ApproveCheckout(ctx, manager.ID, member.ID, machine.ID)
	require.NoError(t, err)
	assert.True(t, created)

	elig, err = svc.CheckEligibility(ctx, member.ID, machine.ID)
	require.NoError(t, err)
	assert.True(t, elig.Eligible)

	// --- Step 3: reserve the machine ---
	r, err := svc.CreateReservation(ctx, member.ID, machine.ID, now.Add(24*time.Hour), now.Add(26*time.Hour), "first cut")
	require.NoError(t, err)
	_, err = svc.TransitionReservation(ctx, manager.ID, r.ID, model.ReservationApproved, "")
	require.NoError(t, err)
	_, err = svc.TransitionReservation(ctx, manager.ID, r.ID, model.ReservationConfirmed, "")
	require.NoError(t, err)

	appts, err := svc.ListAppointments(ctx, member.ID, store.AppointmentFilter{})
	require.NoError(t, err)
	require.Len(t, appts, 1)
	assert.Equal(t, appt.ID, appts[0].ID)
	assert.Equal(t, model.AppointmentCompleted, appts[0].Status)

	// --- Step 4: relay the outbox ---
	evCfg := cfg.Events
	evCfg.Enabled = true
	pub := &recordingPublisher{}
	relay := events.NewRelay(evCfg, st, pub, logger.Nop())

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go relay.Run(runCtx)

	want := []string{
		model.EventTrainingCompleted,
		model.EventAppointmentCreated,
		model.EventAppointmentCompleted,
		model.EventCheckoutApproved,
		model.EventReservationCreated,
		model.EventReservationStatusChanged,
		model.EventReservationStatusChanged,
	}
	assert.Eventually(t, func() bool {
		pub.mu.Lock()
		defer pub.mu.Unlock()
		return len(pub.types) == len(want)
	}, 2*time.Second, 10*time.Millisecond)

	pub.mu.Lock()
	assert.ElementsMatch(t, want, pub.types)
	pub.mu.Unlock()

	pending, err := st.PendingEvents(ctx, 50)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

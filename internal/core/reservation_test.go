package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workshop-access-backend/config"
	"workshop-access-backend/internal/apperr"
	"workshop-access-backend/internal/eligibility"
	"workshop-access-backend/internal/lock"
	"workshop-access-backend/internal/logger"
	"workshop-access-backend/internal/model"
	"workshop-access-backend/internal/store"
)

func TestCheckEligibility(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.CheckEligibility(ctx, f.admin.ID, f.machine.ID)
	require.NoError(t, err)
	assert.True(t, res.Eligible)
	assert.True(t, res.HasCheckout)
	assert.Empty(t, res.Requirements)

	res, err = f.svc.CheckEligibility(ctx, f.member.ID, f.machine.ID)
	require.NoError(t, err)
	assert.False(t, res.Eligible)
	assert.Equal(t, []string{
		eligibility.ReasonCheckoutMissing,
		`Training "Lathe safety" not completed (0% of 90% required)`,
	}, res.Reasons)

	f.train(t, f.member.ID)
	f.checkout(t, f.member.ID)
	res, err = f.svc.CheckEligibility(ctx, f.member.ID, f.machine.ID)
	require.NoError(t, err)
	assert.True(t, res.Eligible)
	assert.Empty(t, res.Reasons)

	_, err = f.svc.CheckEligibility(ctx, f.member.ID, 999)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))

	require.NoError(t, f.db.Model(&f.machine).Update("lifecycle", model.LifecycleInactive).Error)
	_, err = f.svc.CheckEligibility(ctx, f.member.ID, f.machine.ID)
	assert.True(t, errors.Is(err, apperr.ErrInactive))
}

func TestCreateReservation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Authorization comes before conflict detection.
	_, err := f.svc.CreateReservation(ctx, f.member.ID, f.machine.ID, tuesday(9, 0), tuesday(10, 0), "")
	e, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindForbidden, e.Kind)
	assert.Equal(t, "not_eligible", e.Code)
	assert.Len(t, e.Reasons, 2)

	f.train(t, f.member.ID)
	f.checkout(t, f.member.ID)

	first, err := f.svc.CreateReservation(ctx, f.member.ID, f.machine.ID, tuesday(9, 0), tuesday(10, 0), " first ")
	require.NoError(t, err)
	assert.Equal(t, model.ReservationPending, first.Status)
	assert.Equal(t, "first", first.Note)
	assert.EqualValues(t, 1, f.events(t, model.EventReservationCreated))

	testCases := []struct {
		name       string
		start, end time.Time
		kind       apperr.Kind
		code       string
	}{
		{"Overlap conflicts on the machine", tuesday(9, 30), tuesday(10, 30), apperr.KindConflict, "machine_conflict"},
		{"Inverted window", tuesday(12, 0), tuesday(11, 0), apperr.KindValidation, "invalid_time_range"},
		{"Empty window", tuesday(12, 0), tuesday(12, 0), apperr.KindValidation, "invalid_time_range"},
		{"Longer than the maximum", tuesday(10, 0), tuesday(18, 1), apperr.KindValidation, "reservation_too_long"},
		{"Starts in the past", testNow.Add(-time.Hour), testNow.Add(time.Hour), apperr.KindValidation, "start_in_past"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.CreateReservation(ctx, f.member.ID, f.machine.ID, tc.start, tc.end, "")
			e, ok := apperr.As(err)
			require.True(t, ok, "got %v", err)
			assert.Equal(t, tc.kind, e.Kind)
			assert.Equal(t, tc.code, e.Code)
		})
	}

	_, err = f.svc.CreateReservation(ctx, f.member.ID, f.machine.ID, tuesday(9, 30), tuesday(10, 30), "")
	e, _ = apperr.As(err)
	require.NotNil(t, e.Conflict)
	assert.Equal(t, "machine", e.Conflict.Role)
	assert.Equal(t, first.ID, e.Conflict.ID)

	// Touching windows do not conflict.
	_, err = f.svc.CreateReservation(ctx, f.member.ID, f.machine.ID, tuesday(10, 0), tuesday(11, 0), "")
	require.NoError(t, err)
}

func TestCreateReservation_ConcurrentIdenticalWindow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const attempts = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	start := make(chan struct{})
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := f.svc.CreateReservation(ctx, f.admin.ID, f.machine.ID, tuesday(14, 0), tuesday(15, 0), "")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, apperr.ErrConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, attempts-1, conflicts)

	rows, err := f.svc.ListReservations(ctx, f.admin.ID, store.ReservationFilter{MachineID: f.machine.ID})
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestTransitionReservation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.train(t, f.member.ID)
	f.checkout(t, f.member.ID)

	r, err := f.svc.CreateReservation(ctx, f.member.ID, f.machine.ID, tuesday(9, 0), tuesday(10, 0), "")
	require.NoError(t, err)

	_, err = f.svc.TransitionReservation(ctx, f.member.ID, r.ID, model.ReservationApproved, "")
	assert.True(t, errors.Is(err, apperr.ErrForbidden), "owners cannot approve")

	_, err = f.svc.TransitionReservation(ctx, f.other.ID, r.ID, model.ReservationCancelled, "")
	assert.True(t, errors.Is(err, apperr.ErrForbidden), "strangers cannot cancel")

	approved, err := f.svc.TransitionReservation(ctx, f.manager.ID, r.ID, model.ReservationApproved, "see you")
	require.NoError(t, err)
	assert.Equal(t, model.ReservationApproved, approved.Status)
	require.NotNil(t, approved.ReviewedBy)
	assert.Equal(t, f.manager.ID, *approved.ReviewedBy)
	assert.Equal(t, "see you", approved.Note)

	_, err = f.svc.TransitionReservation(ctx, f.manager.ID, r.ID, model.ReservationRejected, "")
	assert.True(t, errors.Is(err, apperr.ErrValidation), "approved cannot be rejected")

	cancelled, err := f.svc.TransitionReservation(ctx, f.member.ID, r.ID, model.ReservationCancelled, "")
	require.NoError(t, err)
	assert.Equal(t, model.ReservationCancelled, cancelled.Status)
	assert.EqualValues(t, 2, f.events(t, model.EventReservationStatusChanged))

	// The freed window can be booked again.
	_, err = f.svc.CreateReservation(ctx, f.member.ID, f.machine.ID, tuesday(9, 0), tuesday(10, 0), "")
	require.NoError(t, err)

	// Members only see their own reservations.
	mine, err := f.svc.ListReservations(ctx, f.other.ID, store.ReservationFilter{})
	require.NoError(t, err)
	assert.Empty(t, mine)
}

func TestCompleteElapsed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	r, err := f.svc.CreateReservation(ctx, f.admin.ID, f.machine.ID, tuesday(9, 0), tuesday(10, 0), "")
	require.NoError(t, err)
	pending, err := f.svc.CreateReservation(ctx, f.admin.ID, f.machine.ID, tuesday(11, 0), tuesday(12, 0), "")
	require.NoError(t, err)
	_, err = f.svc.TransitionReservation(ctx, f.admin.ID, r.ID, model.ReservationApproved, "")
	require.NoError(t, err)
	_, err = f.svc.TransitionReservation(ctx, f.admin.ID, r.ID, model.ReservationConfirmed, "")
	require.NoError(t, err)

	res, err := f.svc.CompleteElapsed(ctx, tuesday(9, 59))
	require.NoError(t, err)
	assert.Equal(t, SweepResult{}, res)

	res, err = f.svc.CompleteElapsed(ctx, tuesday(13, 0))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Reservations)

	rows, err := f.svc.ListReservations(ctx, f.admin.ID, store.ReservationFilter{})
	require.NoError(t, err)
	statuses := map[int64]model.ReservationStatus{}
	for _, row := range rows {
		statuses[row.ID] = row.Status
	}
	assert.Equal(t, model.ReservationCompleted, statuses[r.ID])
	assert.Equal(t, model.ReservationPending, statuses[pending.ID], "only confirmed reservations complete")
}

func TestSweepElapsed_RequiresReviewer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.SweepElapsed(ctx, f.member.ID)
	assert.True(t, errors.Is(err, apperr.ErrForbidden))

	res, err := f.svc.SweepElapsed(ctx, f.manager.ID)
	require.NoError(t, err)
	assert.Equal(t, SweepResult{}, res)
}

func TestTransitionReservation_CompleteRequiresEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.train(t, f.member.ID)
	f.checkout(t, f.member.ID)

	r, err := f.svc.CreateReservation(ctx, f.member.ID, f.machine.ID, tuesday(9, 0), tuesday(10, 0), "")
	require.NoError(t, err)
	for _, status := range []model.ReservationStatus{model.ReservationApproved, model.ReservationConfirmed} {
		_, err = f.svc.TransitionReservation(ctx, f.manager.ID, r.ID, status, "")
		require.NoError(t, err)
	}

	_, err = f.svc.TransitionReservation(ctx, f.manager.ID, r.ID, model.ReservationCompleted, "")
	assert.True(t, errors.Is(err, &apperr.Error{Kind: apperr.KindValidation, Code: "reservation_not_ended"}), "got %v", err)

	// The window is still held.
	_, err = f.svc.CreateReservation(ctx, f.admin.ID, f.machine.ID, tuesday(9, 0), tuesday(10, 0), "")
	assert.True(t, errors.Is(err, apperr.ErrConflict), "got %v", err)

	// Once the end has passed the reviewer may close it out.
	later := NewService(store.NewGormStore(f.db), lock.NewKeyedMutex(), config.Default().Scheduling, logger.Nop(),
		WithClock(func() time.Time { return tuesday(10, 0) }))
	done, err := later.TransitionReservation(ctx, f.manager.ID, r.ID, model.ReservationCompleted, "")
	require.NoError(t, err)
	assert.Equal(t, model.ReservationCompleted, done.Status)
}

func TestCreateReservation_EligibilityCheckedUnderMachineLock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.train(t, f.member.ID)
	f.checkout(t, f.member.ID)

	// Hold the machine's critical section while the checkout is revoked.
	release, err := f.svc.locks.Lock(ctx, lockKey("machine", f.machine.ID))
	require.NoError(t, err)

	errc := make(chan error, 1)
	go func() {
		_, err := f.svc.CreateReservation(ctx, f.member.ID, f.machine.ID, tuesday(9, 0), tuesday(10, 0), "")
		errc <- err
	}()

	require.NoError(t, f.db.Where("user_id = ? AND machine_id = ?", f.member.ID, f.machine.ID).Delete(&model.ManagerCheckout{}).Error)
	release()

	select {
	case err := <-errc:
		assert.True(t, errors.Is(err, &apperr.Error{Kind: apperr.KindForbidden, Code: "not_eligible"}), "got %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("reservation did not finish after the lock was released")
	}
}

func TestRevokeCheckout_WaitsForMachineLock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.checkout(t, f.member.ID)

	release, err := f.svc.locks.Lock(ctx, lockKey("machine", f.machine.ID))
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- f.svc.RevokeCheckout(ctx, f.manager.ID, f.member.ID, f.machine.ID) }()

	select {
	case <-done:
		t.Fatal("revoke ran while the machine was locked")
	case <-time.After(50 * time.Millisecond):
	}
	release()
	require.NoError(t, <-done)
}

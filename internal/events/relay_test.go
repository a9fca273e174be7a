package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"workshop-access-backend/config"
	"workshop-access-backend/internal/db"
	"workshop-access-backend/internal/logger"
	"workshop-access-backend/internal/model"
	"workshop-access-backend/internal/store"
)

// mockPublisher is a mock implementation of the Publisher interface.
type mockPublisher struct {
	mu          sync.Mutex
	PublishFunc func(ev model.DomainEvent) error
	seen        []string
}

func (m *mockPublisher) Publish(_ context.Context, ev model.DomainEvent) error {
	m.mu.Lock()
	m.seen = append(m.seen, ev.Type)
	m.mu.Unlock()
	if m.PublishFunc == nil {
		return nil
	}
	return m.PublishFunc(ev)
}

func (m *mockPublisher) types() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.seen...)
}

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	require.NoError(t, err)
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.Migrate(gdb))
	return store.NewGormStore(gdb)
}

func testConfig() config.EventsConfig {
	cfg := config.EventsConfig{Enabled: true, Interval: 10 * time.Millisecond, BatchSize: 10}
	cfg.WorkerPool.Size = 2
	return cfg
}

func appendEvents(t *testing.T, st store.Store, types ...string) {
	t.Helper()
	ctx := context.Background()
	for i, typ := range types {
		require.NoError(t, st.Transaction(ctx, func(tx store.Store) error {
			return tx.AppendEvent(ctx, typ, int64(i+1), map[string]int{"n": i})
		}))
	}
}

func TestRelayOnce(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	t.Run("publishes and marks every event", func(t *testing.T) {
		st := newTestStore(t)
		appendEvents(t, st, model.EventReservationCreated, model.EventCheckoutApproved)

		pub := &mockPublisher{}
		r := NewRelay(testConfig(), st, pub, logger.Nop())
		r.workerPool.Start(ctx)

		n, err := r.RelayOnce(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		assert.ElementsMatch(t, []string{model.EventReservationCreated, model.EventCheckoutApproved}, pub.types())

		pending, err := st.PendingEvents(ctx, 10)
		require.NoError(t, err)
		assert.Empty(t, pending)
	})

	t.Run("failed publish stays pending", func(t *testing.T) {
		st := newTestStore(t)
		appendEvents(t, st, model.EventReservationCreated, model.EventAppointmentCancelled)

		pub := &mockPublisher{PublishFunc: func(ev model.DomainEvent) error {
			if ev.Type == model.EventAppointmentCancelled {
				return errors.New("smtp down")
			}
			return nil
		}}
		r := NewRelay(testConfig(), st, pub, logger.Nop())
		r.workerPool.Start(ctx)

		_, err := r.RelayOnce(ctx)
		require.NoError(t, err)

		pending, err := st.PendingEvents(ctx, 10)
		require.NoError(t, err)
		require.Len(t, pending, 1)
		assert.Equal(t, model.EventAppointmentCancelled, pending[0].Type)

		// Retried on the next cycle once the publisher recovers.
		pub.PublishFunc = nil
		n, err := r.RelayOnce(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		pending, err = st.PendingEvents(ctx, 10)
		require.NoError(t, err)
		assert.Empty(t, pending)
	})

	t.Run("empty outbox", func(t *testing.T) {
		st := newTestStore(t)
		pub := &mockPublisher{}
		r := NewRelay(testConfig(), st, pub, logger.Nop())
		r.workerPool.Start(ctx)

		n, err := r.RelayOnce(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)
		assert.Empty(t, pub.types())
	})
}

func TestRelay_Run(t *testing.T) {
	st := newTestStore(t)
	appendEvents(t, st, model.EventTrainingCompleted)
	pub := &mockPublisher{}
	r := NewRelay(testConfig(), st, pub, logger.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		return len(pub.types()) == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("relay did not stop after cancellation")
	}
}

func TestRelay_RunDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false
	r := NewRelay(cfg, newTestStore(t), &mockPublisher{}, logger.Nop())

	done := make(chan struct{})
	go func() {
		r.Run(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("disabled relay should return immediately")
	}
}

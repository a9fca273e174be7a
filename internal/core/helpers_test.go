package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"workshop-access-backend/config"
	"workshop-access-backend/internal/db"
	"workshop-access-backend/internal/lock"
	"workshop-access-backend/internal/logger"
	"workshop-access-backend/internal/model"
	"workshop-access-backend/internal/store"
	"workshop-access-backend/internal/watch"
)

// Monday 2026-10-05 08:00 UTC.
var testNow = time.Date(2026, 10, 5, 8, 0, 0, 0, time.UTC)

// tuesday returns an instant on Tuesday 2026-10-06.
func tuesday(hour, minute int) time.Time {
	return time.Date(2026, 10, 6, hour, minute, 0, 0, time.UTC)
}

type fixture struct {
	svc     *Service
	db      *gorm.DB
	admin   model.User
	manager model.User
	member  model.User
	other   model.User
	module  model.TrainingModule
	machine model.Machine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	require.NoError(t, err)
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.Migrate(gdb))

	f := &fixture{db: gdb}
	f.admin = model.User{Name: "Ada", Email: "ada@example.com", Role: model.RoleAdmin, Status: model.UserActive}
	f.manager = model.User{Name: "Max", Email: "max@example.com", Role: model.RoleManager, Status: model.UserActive}
	f.member = model.User{Name: "Mia", Email: "mia@example.com", Role: model.RoleMember, Status: model.UserActive}
	f.other = model.User{Name: "Ole", Email: "ole@example.com", Role: model.RoleMember, Status: model.UserActive}
	for _, u := range []*model.User{&f.admin, &f.manager, &f.member, &f.other} {
		require.NoError(t, gdb.Create(u).Error)
	}

	f.module = model.TrainingModule{Title: "Lathe safety", VideoDurationSeconds: 100, CompletionPercent: 100, Lifecycle: model.LifecycleActive}
	require.NoError(t, gdb.Create(&f.module).Error)
	f.machine = model.Machine{Name: "Lathe", Location: "Bay 1", Lifecycle: model.LifecycleActive}
	require.NoError(t, gdb.Create(&f.machine).Error)
	require.NoError(t, gdb.Create(&model.MachineRequirement{MachineID: f.machine.ID, ModuleID: f.module.ID, RequiredWatchPercent: 90}).Error)

	cfg := config.Default().Scheduling
	f.svc = NewService(store.NewGormStore(gdb), lock.NewKeyedMutex(), cfg, logger.Nop(), WithClock(func() time.Time { return testNow }))
	return f
}

// train gives the user full coverage of the fixture module.
func (f *fixture) train(t *testing.T, userID int64) {
	t.Helper()
	done := testNow
	require.NoError(t, f.db.Create(&model.TrainingProgress{
		UserID:        userID,
		ModuleID:      f.module.ID,
		WatchedRanges: []watch.Range{{Start: 0, End: 100}},
		LastPosition:  100,
		CompletedAt:   &done,
	}).Error)
}

func (f *fixture) checkout(t *testing.T, userID int64) {
	t.Helper()
	require.NoError(t, f.db.Create(&model.ManagerCheckout{
		UserID: userID, MachineID: f.machine.ID, ApprovedBy: f.manager.ID, ApprovedAt: testNow,
	}).Error)
}

func (f *fixture) events(t *testing.T, eventType string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(&model.DomainEvent{}).Where("type = ?", eventType).Count(&n).Error)
	return n
}

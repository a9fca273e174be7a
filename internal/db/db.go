package db

import (
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"workshop-access-backend/config"
	"workshop-access-backend/internal/logger"
	"workshop-access-backend/internal/model"
)

// Models lists every table the service owns, in migration order.
var Models = []any{
	&model.User{},
	&model.TrainingModule{},
	&model.Machine{},
	&model.MachineRequirement{},
	&model.TrainingProgress{},
	&model.ManagerCheckout{},
	&model.Reservation{},
	&model.CheckoutAvailabilityBlock{},
	&model.CheckoutAvailabilityRule{},
	&model.CheckoutAppointment{},
	&model.DomainEvent{},
}

// Init initializes the database connection and runs migrations.
func Init(cfg *config.DatabaseConfig, log *logger.Logger) (*gorm.DB, error) {
	dialector, err := dialectorFor(cfg)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormLevel(cfg.LogLevel)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	if cfg.Driver == "sqlite" {
		// SQLite takes one writer at a time; a single connection turns
		// concurrent transactions into a queue instead of SQLITE_BUSY errors.
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
		sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute)
	}

	log.Info("running database migrations", "driver", cfg.Driver)
	if err := Migrate(db); err != nil {
		return nil, err
	}

	if cfg.Driver == "postgres" && cfg.EnableExclusionConstraints {
		log.Info("applying exclusion constraints")
		if err := applyExclusionDDL(db); err != nil {
			log.Warn("failed to apply exclusion constraints, relying on application locks", "error", err)
		}
	}

	log.Info("database initialization complete")
	return db, nil
}

// Migrate creates or updates every table in Models.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models...); err != nil {
		return fmt.Errorf("automigrate failed: %w", err)
	}
	return nil
}

func dialectorFor(cfg *config.DatabaseConfig) (gorm.Dialector, error) {
	switch cfg.Driver {
	case "postgres", "":
		return postgres.Open(cfg.DSN), nil
	case "sqlite":
		return sqlite.Open(cfg.DSN), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

func gormLevel(level string) gormlogger.LogLevel {
	switch level {
	case "silent":
		return gormlogger.Silent
	case "error":
		return gormlogger.Error
	case "info":
		return gormlogger.Info
	default:
		return gormlogger.Warn
	}
}

// ExclusionDDL backs the application-level overlap checks with database
// constraints, so a second replica or a bypassing writer still cannot
// double-book a machine or a manager.
var ExclusionDDL = []string{
	"CREATE EXTENSION IF NOT EXISTS btree_gist;",

	"DO $$ BEGIN " +
		"ALTER TABLE reservations ADD CONSTRAINT reservations_period_valid CHECK (start_time < end_time); " +
		"EXCEPTION WHEN duplicate_object THEN NULL; END $$;",

	"DO $$ BEGIN " +
		"ALTER TABLE reservations ADD CONSTRAINT reservations_machine_no_overlap " +
		"EXCLUDE USING GIST (machine_id WITH =, tstzrange(start_time, end_time, '[)') WITH &&) " +
		"WHERE (status IN ('pending', 'approved', 'confirmed')); " +
		"EXCEPTION WHEN duplicate_object THEN NULL; END $$;",

	"DO $$ BEGIN " +
		"ALTER TABLE checkout_appointments ADD CONSTRAINT checkout_appointments_manager_no_overlap " +
		"EXCLUDE USING GIST (manager_id WITH =, tstzrange(start_time, end_time, '[)') WITH &&) " +
		"WHERE (status <> 'cancelled'); " +
		"EXCEPTION WHEN duplicate_object THEN NULL; END $$;",
}

func applyExclusionDDL(db *gorm.DB) error {
	for _, ddl := range ExclusionDDL {
		if err := db.Exec(ddl).Error; err != nil {
			return fmt.Errorf("DDL failed on %q: %w", ddl, err)
		}
	}
	return nil
}

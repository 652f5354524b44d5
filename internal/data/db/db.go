package db

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/yungbote/reconify-backend/internal/platform/envutil"
	"github.com/yungbote/reconify-backend/internal/platform/logger"
)

type Config struct {
	Driver       string
	DSN          string
	MaxOpenConns int
	MaxIdleConns int
	SlowQuery    time.Duration
}

// ConfigFromEnv reads DB_DRIVER (postgres|sqlite) and the driver specific settings.
func ConfigFromEnv() Config {
	cfg := Config{
		Driver:       strings.ToLower(envutil.String("DB_DRIVER", "postgres")),
		MaxOpenConns: envutil.Int("DB_MAX_OPEN_CONNS", 20),
		MaxIdleConns: envutil.Int("DB_MAX_IDLE_CONNS", 5),
		SlowQuery:    envutil.Duration("DB_SLOW_QUERY", time.Second),
	}
	switch cfg.Driver {
	case "sqlite":
		cfg.DSN = envutil.String("SQLITE_PATH", "reconify.db")
	default:
		cfg.DSN = fmt.Sprintf(
			"postgres://%s:%s@%s:%s/%s?sslmode=%s",
			envutil.String("POSTGRES_USER", "postgres"),
			os.Getenv("POSTGRES_PASSWORD"),
			envutil.String("POSTGRES_HOST", "localhost"),
			envutil.String("POSTGRES_PORT", "5432"),
			envutil.String("POSTGRES_NAME", "reconify"),
			envutil.String("POSTGRES_SSLMODE", "disable"),
		)
	}
	return cfg
}

// Open connects with the configured driver. TranslateError is on so unique
// violations surface as gorm.ErrDuplicatedKey on both drivers.
func Open(cfg Config, baseLog *logger.Logger) (*gorm.DB, error) {
	log := baseLog.With("component", "db", "driver", cfg.Driver)

	var dialector gorm.Dialector
	switch cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	case "postgres", "":
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.Driver)
	}

	gdb, err := gorm.Open(dialector, &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		TranslateError:                           true,
		Logger: gormLogger.New(
			stdLogger(),
			gormLogger.Config{
				SlowThreshold:             cfg.SlowQuery,
				LogLevel:                  gormLogger.Warn,
				IgnoreRecordNotFoundError: true,
				Colorful:                  false,
			},
		),
	})
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", cfg.Driver, err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("db handle: %w", err)
	}
	if cfg.Driver == "sqlite" {
		// one writer; sqlite serializes anyway and shared in-memory databases need it
		sqlDB.SetMaxOpenConns(1)
	} else {
		if cfg.MaxOpenConns > 0 {
			sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		}
		if cfg.MaxIdleConns > 0 {
			sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
		}
	}
	log.Info("Database connected")
	return gdb, nil
}

func stdLogger() *log.Logger {
	return log.New(os.Stdout, "\r\n", log.LstdFlags)
}

package app

import (
	"time"

	"github.com/yungbote/reconify-backend/internal/data/db"
	httpMW "github.com/yungbote/reconify-backend/internal/http/middleware"
	"github.com/yungbote/reconify-backend/internal/ingest"
	"github.com/yungbote/reconify-backend/internal/platform/envutil"
	"github.com/yungbote/reconify-backend/internal/platform/gcp"
	"github.com/yungbote/reconify-backend/internal/platform/locks"
	"github.com/yungbote/reconify-backend/internal/platform/logger"
	"github.com/yungbote/reconify-backend/internal/services"
)

type Config struct {
	Port        string
	Environment string
	Version     string

	DB db.Config

	JWTSecretKey string

	MaxUploadBytes         int64
	RejectDuplicateUploads bool
	GenerationRetention    int
	RulesPath              string
	StaleRunAfter          time.Duration

	Locks locks.Config

	Archive    gcp.ArchiveConfig
	ArchiveErr error

	CORSOrigins     []string
	ShutdownTimeout time.Duration
}

func LoadConfig(log *logger.Logger) Config {
	archive, archiveErr := gcp.ResolveArchiveConfigFromEnv()
	cfg := Config{
		Port:        envutil.String("PORT", "8080"),
		Environment: envutil.String("APP_ENV", "development"),
		Version:     envutil.String("APP_VERSION", "dev"),

		DB: db.ConfigFromEnv(),

		JWTSecretKey: envutil.String("JWT_SECRET_KEY", "defaultsecret"),

		MaxUploadBytes:         envutil.Int64("MAX_UPLOAD_BYTES", ingest.DefaultMaxBytes),
		RejectDuplicateUploads: envutil.Bool("REJECT_DUPLICATE_UPLOADS", true),
		GenerationRetention:    envutil.Int("PANEL_GENERATION_RETENTION", services.DefaultGenerationRetention),
		RulesPath:              envutil.String("RECON_RULES_PATH", ""),

		Locks: locks.Config{
			RedisAddr: envutil.String("REDIS_ADDR", ""),
			TTL:       envutil.Duration("PANEL_LOCK_TTL", locks.DefaultTTL),
		},

		Archive:    archive,
		ArchiveErr: archiveErr,

		CORSOrigins:     envutil.List("CORS_ORIGINS", httpMW.DefaultCORSOrigins),
		ShutdownTimeout: envutil.Duration("SHUTDOWN_TIMEOUT", 15*time.Second),
	}
	// a run reconciling longer than its lock lived has no owner left
	cfg.StaleRunAfter = envutil.Duration("RECON_STALE_AFTER", cfg.Locks.TTL)
	if cfg.JWTSecretKey == "defaultsecret" {
		log.Warn("JWT_SECRET_KEY not set; using the development default")
	}
	return cfg
}

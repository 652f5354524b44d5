package gcp

import (
	"fmt"
	"net/url"
	"os"
	"strings"
)

type ArchiveMode string

const (
	ArchiveModeOff         ArchiveMode = "off"
	ArchiveModeLocal       ArchiveMode = "local"
	ArchiveModeGCS         ArchiveMode = "gcs"
	ArchiveModeGCSEmulator ArchiveMode = "gcs_emulator"
)

const defaultArchiveDir = "data/archive"

type ArchiveConfig struct {
	Mode         ArchiveMode
	Dir          string
	Bucket       string
	EmulatorHost string
	// CompatibilityFallback is set when the emulator was picked from STORAGE_EMULATOR_HOST alone.
	CompatibilityFallback bool
}

func (cfg ArchiveConfig) IsEmulatorMode() bool { return cfg.Mode == ArchiveModeGCSEmulator }

func (cfg ArchiveConfig) ModeSource() string {
	if cfg.CompatibilityFallback {
		return "compatibility_fallback"
	}
	return "explicit_or_default"
}

type ArchiveConfigErrorCode string

const (
	ArchiveConfigErrorInvalidMode         ArchiveConfigErrorCode = "invalid_mode"
	ArchiveConfigErrorMissingBucket       ArchiveConfigErrorCode = "missing_bucket"
	ArchiveConfigErrorMissingEmulatorHost ArchiveConfigErrorCode = "missing_emulator_host"
	ArchiveConfigErrorInvalidEmulatorHost ArchiveConfigErrorCode = "invalid_emulator_host"
)

type ArchiveConfigError struct {
	Code         ArchiveConfigErrorCode
	Mode         string
	EmulatorHost string
	Cause        error
}

func (e *ArchiveConfigError) Error() string {
	if e == nil {
		return "invalid archive config"
	}
	switch e.Code {
	case ArchiveConfigErrorInvalidMode:
		return fmt.Sprintf("invalid ARCHIVE_MODE=%q (allowed: %q, %q, %q, %q)",
			e.Mode, ArchiveModeOff, ArchiveModeLocal, ArchiveModeGCS, ArchiveModeGCSEmulator)
	case ArchiveConfigErrorMissingBucket:
		return fmt.Sprintf("ARCHIVE_MODE=%q requires ARCHIVE_GCS_BUCKET to be set", e.Mode)
	case ArchiveConfigErrorMissingEmulatorHost:
		return fmt.Sprintf("ARCHIVE_MODE=%q requires STORAGE_EMULATOR_HOST to be set", ArchiveModeGCSEmulator)
	case ArchiveConfigErrorInvalidEmulatorHost:
		return fmt.Sprintf("invalid STORAGE_EMULATOR_HOST=%q; expected absolute URL like http://fake-gcs:4443", e.EmulatorHost)
	default:
		return "invalid archive config"
	}
}

func (e *ArchiveConfigError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// ResolveArchiveConfigFromEnv reads ARCHIVE_MODE, ARCHIVE_DIR, ARCHIVE_GCS_BUCKET and
// STORAGE_EMULATOR_HOST. With no mode set, a bucket selects gcs (or the emulator when
// STORAGE_EMULATOR_HOST is also set); otherwise files are archived on local disk.
func ResolveArchiveConfigFromEnv() (ArchiveConfig, error) {
	cfg := ArchiveConfig{
		Dir:          strings.TrimSpace(os.Getenv("ARCHIVE_DIR")),
		Bucket:       strings.TrimSpace(os.Getenv("ARCHIVE_GCS_BUCKET")),
		EmulatorHost: strings.TrimSpace(os.Getenv("STORAGE_EMULATOR_HOST")),
	}
	if cfg.Dir == "" {
		cfg.Dir = defaultArchiveDir
	}

	rawMode := strings.TrimSpace(os.Getenv("ARCHIVE_MODE"))
	switch mode := ArchiveMode(strings.ToLower(rawMode)); mode {
	case "":
		switch {
		case cfg.Bucket != "" && cfg.EmulatorHost != "":
			cfg.Mode = ArchiveModeGCSEmulator
			cfg.CompatibilityFallback = true
		case cfg.Bucket != "":
			cfg.Mode = ArchiveModeGCS
		default:
			cfg.Mode = ArchiveModeLocal
		}
	case ArchiveModeOff, ArchiveModeLocal, ArchiveModeGCS, ArchiveModeGCSEmulator:
		cfg.Mode = mode
	default:
		return cfg, &ArchiveConfigError{Code: ArchiveConfigErrorInvalidMode, Mode: rawMode}
	}

	if err := ValidateArchiveConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func ValidateArchiveConfig(cfg ArchiveConfig) error {
	switch cfg.Mode {
	case ArchiveModeOff, ArchiveModeLocal:
		return nil
	case ArchiveModeGCS, ArchiveModeGCSEmulator:
	default:
		return &ArchiveConfigError{Code: ArchiveConfigErrorInvalidMode, Mode: string(cfg.Mode)}
	}
	if cfg.Bucket == "" {
		return &ArchiveConfigError{Code: ArchiveConfigErrorMissingBucket, Mode: string(cfg.Mode)}
	}
	if !cfg.IsEmulatorMode() {
		return nil
	}
	if cfg.EmulatorHost == "" {
		return &ArchiveConfigError{Code: ArchiveConfigErrorMissingEmulatorHost, Mode: string(cfg.Mode)}
	}
	u, err := url.Parse(cfg.EmulatorHost)
	if err != nil || strings.TrimSpace(u.Scheme) == "" || strings.TrimSpace(u.Host) == "" {
		return &ArchiveConfigError{
			Code:         ArchiveConfigErrorInvalidEmulatorHost,
			Mode:         string(cfg.Mode),
			EmulatorHost: cfg.EmulatorHost,
			Cause:        err,
		}
	}
	return nil
}

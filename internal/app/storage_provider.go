package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/yungbote/reconify-backend/internal/platform/gcp"
	"github.com/yungbote/reconify-backend/internal/platform/logger"
)

var newObjectStore = gcp.NewObjectStore

type ArchiveBootstrapErrorCode string

const (
	ArchiveBootstrapErrorInvalidMode         ArchiveBootstrapErrorCode = "invalid_mode"
	ArchiveBootstrapErrorMissingBucket       ArchiveBootstrapErrorCode = "missing_bucket"
	ArchiveBootstrapErrorMissingEmulatorHost ArchiveBootstrapErrorCode = "missing_emulator_host"
	ArchiveBootstrapErrorInvalidEmulatorHost ArchiveBootstrapErrorCode = "invalid_emulator_host"
	ArchiveBootstrapErrorConnectFailed       ArchiveBootstrapErrorCode = "connect_failed"
)

type ArchiveBootstrapError struct {
	Code         ArchiveBootstrapErrorCode
	Mode         string
	EmulatorHost string
	Cause        error
}

func (e *ArchiveBootstrapError) Error() string {
	if e == nil {
		return "archive bootstrap failed"
	}
	return fmt.Sprintf(
		"archive bootstrap failed (code=%s mode=%q emulator_host=%q): %v",
		e.Code,
		e.Mode,
		e.EmulatorHost,
		e.Cause,
	)
}

func (e *ArchiveBootstrapError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// resolveArchiveStore opens the raw-file archive selected by cfg.Archive. A
// config error captured at load time is reported here with its code.
func resolveArchiveStore(ctx context.Context, log *logger.Logger, cfg Config) (gcp.ObjectStore, error) {
	archiveCfg := cfg.Archive
	if cfg.ArchiveErr != nil {
		err := classifyArchiveBootstrapError(archiveCfg, cfg.ArchiveErr)
		log.Error("Archive provider selection failed",
			"mode", archiveCfg.Mode,
			"error_code", archiveBootstrapErrorCode(err),
			"error", err,
		)
		return nil, err
	}

	log.Info(
		"Selecting archive provider",
		"mode", archiveCfg.Mode,
		"mode_source", archiveCfg.ModeSource(),
		"emulator_host", archiveCfg.EmulatorHost,
	)

	store, err := newObjectStore(ctx, archiveCfg, log)
	if err != nil {
		classified := classifyArchiveBootstrapError(archiveCfg, err)
		log.Error(
			"Archive provider bootstrap failed",
			"mode", archiveCfg.Mode,
			"mode_source", archiveCfg.ModeSource(),
			"emulator_host", archiveCfg.EmulatorHost,
			"error_code", archiveBootstrapErrorCode(classified),
			"error", classified,
		)
		return nil, classified
	}
	return store, nil
}

func classifyArchiveBootstrapError(archiveCfg gcp.ArchiveConfig, err error) error {
	code := ArchiveBootstrapErrorConnectFailed
	var cfgErr *gcp.ArchiveConfigError
	if errors.As(err, &cfgErr) {
		switch cfgErr.Code {
		case gcp.ArchiveConfigErrorInvalidMode:
			code = ArchiveBootstrapErrorInvalidMode
		case gcp.ArchiveConfigErrorMissingBucket:
			code = ArchiveBootstrapErrorMissingBucket
		case gcp.ArchiveConfigErrorMissingEmulatorHost:
			code = ArchiveBootstrapErrorMissingEmulatorHost
		case gcp.ArchiveConfigErrorInvalidEmulatorHost:
			code = ArchiveBootstrapErrorInvalidEmulatorHost
		}
	}
	return &ArchiveBootstrapError{
		Code:         code,
		Mode:         string(archiveCfg.Mode),
		EmulatorHost: archiveCfg.EmulatorHost,
		Cause:        err,
	}
}

func archiveBootstrapErrorCode(err error) ArchiveBootstrapErrorCode {
	var bootstrapErr *ArchiveBootstrapError
	if errors.As(err, &bootstrapErr) {
		if bootstrapErr.Code != "" {
			return bootstrapErr.Code
		}
	}
	return ArchiveBootstrapErrorConnectFailed
}

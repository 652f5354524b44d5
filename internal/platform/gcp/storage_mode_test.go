package gcp

import (
	"errors"
	"testing"
)

func TestResolveArchiveConfigFromEnvDefaultLocal(t *testing.T) {
	t.Setenv("ARCHIVE_MODE", "")
	t.Setenv("ARCHIVE_GCS_BUCKET", "")
	t.Setenv("ARCHIVE_DIR", "")
	t.Setenv("STORAGE_EMULATOR_HOST", "")

	cfg, err := ResolveArchiveConfigFromEnv()
	if err != nil {
		t.Fatalf("ResolveArchiveConfigFromEnv: %v", err)
	}
	if cfg.Mode != ArchiveModeLocal || cfg.Dir != defaultArchiveDir {
		t.Fatalf("want local mode in %q, got %+v", defaultArchiveDir, cfg)
	}
}

func TestResolveArchiveConfigFromEnvBucketSelectsGCS(t *testing.T) {
	t.Setenv("ARCHIVE_MODE", "")
	t.Setenv("ARCHIVE_GCS_BUCKET", "recon-archive")
	t.Setenv("STORAGE_EMULATOR_HOST", "")

	cfg, err := ResolveArchiveConfigFromEnv()
	if err != nil {
		t.Fatalf("ResolveArchiveConfigFromEnv: %v", err)
	}
	if cfg.Mode != ArchiveModeGCS || cfg.CompatibilityFallback {
		t.Fatalf("want gcs without fallback, got %+v", cfg)
	}
}

func TestResolveArchiveConfigFromEnvCompatibilityFallback(t *testing.T) {
	t.Setenv("ARCHIVE_MODE", "")
	t.Setenv("ARCHIVE_GCS_BUCKET", "recon-archive")
	t.Setenv("STORAGE_EMULATOR_HOST", "http://fake-gcs:4443")

	cfg, err := ResolveArchiveConfigFromEnv()
	if err != nil {
		t.Fatalf("ResolveArchiveConfigFromEnv: %v", err)
	}
	if cfg.Mode != ArchiveModeGCSEmulator || !cfg.CompatibilityFallback {
		t.Fatalf("want emulator via fallback, got %+v", cfg)
	}
	if cfg.ModeSource() != "compatibility_fallback" {
		t.Fatalf("mode source: got %q", cfg.ModeSource())
	}
}

func TestResolveArchiveConfigFromEnvErrors(t *testing.T) {
	cases := []struct {
		mode, bucket, host string
		code               ArchiveConfigErrorCode
	}{
		{"s3", "", "", ArchiveConfigErrorInvalidMode},
		{"gcs", "", "", ArchiveConfigErrorMissingBucket},
		{"gcs_emulator", "b", "", ArchiveConfigErrorMissingEmulatorHost},
		{"gcs_emulator", "b", "fake-gcs", ArchiveConfigErrorInvalidEmulatorHost},
	}
	for _, tc := range cases {
		t.Setenv("ARCHIVE_MODE", tc.mode)
		t.Setenv("ARCHIVE_GCS_BUCKET", tc.bucket)
		t.Setenv("STORAGE_EMULATOR_HOST", tc.host)

		_, err := ResolveArchiveConfigFromEnv()
		var cfgErr *ArchiveConfigError
		if !errors.As(err, &cfgErr) || cfgErr.Code != tc.code {
			t.Fatalf("mode=%q bucket=%q host=%q: want %s, got %v", tc.mode, tc.bucket, tc.host, tc.code, err)
		}
	}
}

package gcp

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/yungbote/reconify-backend/internal/platform/logger"
)

func TestLocalObjectStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	cfg := ArchiveConfig{Mode: ArchiveModeLocal, Dir: t.TempDir()}
	store, err := NewObjectStore(ctx, cfg, logger.NewNop())
	if err != nil {
		t.Fatalf("NewObjectStore: %v", err)
	}
	defer store.Close()

	if err := store.Put(ctx, "panel/okta/uploaded/D1_users.csv", strings.NewReader("email\na@x.com\n")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := store.Put(ctx, "sot/hr_data/uploaded/D2_hr.csv", strings.NewReader("x")); err != nil {
		t.Fatalf("Put: %v", err)
	}

	keys, err := store.List(ctx, "panel/")
	if err != nil || len(keys) != 1 || keys[0] != "panel/okta/uploaded/D1_users.csv" {
		t.Fatalf("List: keys=%v err=%v", keys, err)
	}

	rc, err := store.Open(ctx, keys[0])
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	body, _ := io.ReadAll(rc)
	rc.Close()
	if string(body) != "email\na@x.com\n" {
		t.Fatalf("unexpected body %q", body)
	}

	if err := store.Delete(ctx, keys[0]); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Open(ctx, keys[0]); !errors.Is(err, ErrObjectNotFound) {
		t.Fatalf("expected ErrObjectNotFound, got %v", err)
	}
	if err := store.Put(ctx, "../escape", strings.NewReader("x")); err == nil {
		t.Fatalf("expected invalid key error")
	}
}

func TestContentTypeForKey(t *testing.T) {
	if got := contentTypeForKey("a/b/c.XLSX"); !strings.Contains(got, "spreadsheetml") {
		t.Fatalf("xlsx content type: %q", got)
	}
	if got := contentTypeForKey("a/b/c"); got != "application/octet-stream" {
		t.Fatalf("default content type: %q", got)
	}
}

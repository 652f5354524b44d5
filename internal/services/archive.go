package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/yungbote/reconify-backend/internal/platform/gcp"
	"github.com/yungbote/reconify-backend/internal/platform/logger"
)

type ArchiveKind string

const (
	ArchivePanel    ArchiveKind = "panel"
	ArchiveSOT      ArchiveKind = "sot"
	ArchiveOverride ArchiveKind = "override"
)

type ArchiveStage string

const (
	StageUploaded  ArchiveStage = "uploaded"
	StageCompleted ArchiveStage = "completed"
	StageFailed    ArchiveStage = "failed"
)

// ArchiveRef identifies one archived raw file.
type ArchiveRef struct {
	Kind     ArchiveKind
	Entity   string
	DocID    string
	Filename string
}

// Key lays files out as {kind}/{entity}/{stage}/{doc_id}_{filename}.
func (r ArchiveRef) Key(stage ArchiveStage) string {
	return path.Join(string(r.Kind), safeSegment(r.Entity), string(stage), r.DocID+"_"+safeSegment(path.Base(r.Filename)))
}

// ArchiveService keeps raw uploaded files and moves them between stages as the
// upload progresses. Errors are logged, never returned: the archive is best effort.
type ArchiveService interface {
	Store(ctx context.Context, ref ArchiveRef, stage ArchiveStage, data []byte)
	Move(ctx context.Context, ref ArchiveRef, from, to ArchiveStage)
	Keys(ctx context.Context, kind ArchiveKind, entity string) ([]string, error)
}

type archiveService struct {
	log   *logger.Logger
	store gcp.ObjectStore
}

func NewArchiveService(log *logger.Logger, store gcp.ObjectStore) ArchiveService {
	return &archiveService{log: log.With("service", "ArchiveService"), store: store}
}

func (s *archiveService) Store(ctx context.Context, ref ArchiveRef, stage ArchiveStage, data []byte) {
	if s.store == nil {
		return
	}
	key := ref.Key(stage)
	if err := s.store.Put(context.WithoutCancel(ctx), key, bytes.NewReader(data)); err != nil {
		s.log.Warn("archive store failed", "key", key, "error", err)
	}
}

func (s *archiveService) Move(ctx context.Context, ref ArchiveRef, from, to ArchiveStage) {
	if s.store == nil || from == to {
		return
	}
	ctx = context.WithoutCancel(ctx)
	src, dst := ref.Key(from), ref.Key(to)
	if err := s.move(ctx, src, dst); err != nil {
		s.log.Warn("archive move failed", "from", src, "to", dst, "error", err)
	}
}

func (s *archiveService) move(ctx context.Context, src, dst string) error {
	rc, err := s.store.Open(ctx, src)
	if errors.Is(err, gcp.ErrObjectNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	defer rc.Close()
	if err := s.store.Put(ctx, dst, rc); err != nil {
		return fmt.Errorf("copy: %w", err)
	}
	return s.store.Delete(ctx, src)
}

func (s *archiveService) Keys(ctx context.Context, kind ArchiveKind, entity string) ([]string, error) {
	if s.store == nil {
		return nil, nil
	}
	return s.store.List(ctx, path.Join(string(kind), safeSegment(entity))+"/")
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

func safeSegment(s string) string {
	s = unsafeChars.ReplaceAllString(strings.TrimSpace(s), "_")
	s = strings.ReplaceAll(s, "..", "_")
	s = strings.Trim(s, "._")
	if s == "" {
		return "unnamed"
	}
	return s
}

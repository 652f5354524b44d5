package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
	"time"

	"github.com/yungbote/reconify-backend/internal/data/repos"
	types "github.com/yungbote/reconify-backend/internal/domain/recon"
	"github.com/yungbote/reconify-backend/internal/platform/dbctx"
	"github.com/yungbote/reconify-backend/internal/ingest"
	"github.com/yungbote/reconify-backend/internal/platform/locks"
)

// FileInput is an uploaded file already read into memory under the size limit.
type FileInput struct {
	Name string
	Data []byte
}

func (f FileInput) Hash() string {
	sum := sha256.Sum256(f.Data)
	return hex.EncodeToString(sum[:])
}

func panelLockKey(p *types.Panel) string { return "panel:" + p.NameKey }

// acquirePanel takes the per-panel lock or fails with Conflict.
func acquirePanel(ctx context.Context, locker locks.Locker, p *types.Panel, op string) (func(), error) {
	unlock, ok, err := locker.TryLock(ctx, panelLockKey(p))
	if err != nil {
		return nil, types.Wrap(types.CodeInternal, op, err)
	}
	if !ok {
		return nil, types.Errorf(types.CodeConflict, op, "another operation is already running for panel %q", p.Name)
	}
	return unlock, nil
}

// DefaultStaleRunAfter matches the lock TTL: a run reconciling longer than this has lost its lock.
const DefaultStaleRunAfter = locks.DefaultTTL

const abandonedRunError = "abandoned: reconciliation did not finish"

// recoverAbandonedRun fails run when it has been reconciling longer than staleAfter. Callers hold
// the panel lock, so no reconciliation in this process still owns it. Reports whether run changed.
func recoverAbandonedRun(ctx context.Context, runRepo repos.ReconRunRepo, run *types.ReconciliationRun, staleAfter time.Duration) (bool, error) {
	if run == nil || run.Status != types.RunReconciling {
		return false, nil
	}
	started := run.UpdatedAt
	if run.StartDate != nil {
		started = *run.StartDate
	}
	if time.Since(started) < staleAfter {
		return false, nil
	}
	now := time.Now().UTC()
	ok, err := runRepo.TransitionStatus(dbctx.Context{Ctx: ctx}, run.ReconID, types.RunReconciling, types.RunFailed, map[string]interface{}{
		"error":        abandonedRunError,
		"completed_at": now,
	})
	if err != nil || !ok {
		return false, err
	}
	run.Status = types.RunFailed
	run.Error = abandonedRunError
	run.CompletedAt = &now
	return true, nil
}

func staleAfterOrDefault(d time.Duration) time.Duration {
	if d <= 0 {
		return DefaultStaleRunAfter
	}
	return d
}

var sotNamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_]*$`)

// normalizeSOTName lowercases and snake-cases a SOT name ("Service Users" -> "service_users").
func normalizeSOTName(raw string) (string, error) {
	name := strings.ToLower(strings.TrimSpace(raw))
	name = strings.Join(strings.FieldsFunc(name, func(r rune) bool {
		return r == ' ' || r == '-' || r == '\t'
	}), "_")
	if name == "" {
		return "", types.NewError(types.CodeValidation, "sot.name", "SOT name is required", nil)
	}
	if !sotNamePattern.MatchString(name) {
		return "", types.Errorf(types.CodeValidation, "sot.name", "invalid SOT name %q; use letters, digits and underscores", raw)
	}
	return name, nil
}

// normalizeFields canonicalizes column names and rejects blanks and duplicates.
func normalizeFields(op string, raw []string) ([]string, error) {
	out := make([]string, 0, len(raw))
	seen := map[string]bool{}
	for _, f := range raw {
		h := ingest.NormalizeHeader(f)
		if h == "" {
			return nil, types.NewError(types.CodeValidation, op, "field names must not be blank", nil)
		}
		if seen[h] {
			return nil, types.Errorf(types.CodeValidation, op, "duplicate field %q", h)
		}
		seen[h] = true
		out = append(out, h)
	}
	return out, nil
}

// normalizeMapping canonicalizes SOT names and both field names of every pair.
func normalizeMapping(m types.KeyMapping) (types.KeyMapping, error) {
	out := types.KeyMapping{}
	for sot, pairs := range m.Normalize() {
		name, err := normalizeSOTName(sot)
		if err != nil {
			return nil, err
		}
		clean := map[string]string{}
		for pf, sf := range pairs {
			clean[ingest.NormalizeHeader(pf)] = ingest.NormalizeHeader(sf)
		}
		out[name] = clean
	}
	if err := out.Validate(); err != nil {
		return nil, err
	}
	return out, nil
}

func missingColumns(want []string, have []string) []string {
	set := make(map[string]bool, len(have))
	for _, h := range have {
		set[h] = true
	}
	var missing []string
	for _, w := range want {
		if !set[w] {
			missing = append(missing, w)
		}
	}
	return missing
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

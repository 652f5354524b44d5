package recon

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	types "github.com/yungbote/reconify-backend/internal/domain/recon"
)

const pgUniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

// mapWriteError turns unique violations into Conflict and everything else into Internal.
func mapWriteError(op, what string, err error) error {
	if err == nil {
		return nil
	}
	if isUniqueViolation(err) {
		return types.NewError(types.CodeConflict, op, fmt.Sprintf("%s already exists", what), err)
	}
	return types.Wrap(types.CodeInternal, op, err)
}

func notFound(err error) bool { return errors.Is(err, gorm.ErrRecordNotFound) }

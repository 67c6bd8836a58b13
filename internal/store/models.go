package store

import (
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrConflict reports a unique constraint violation.
	ErrConflict = errors.New("conflict")
	// ErrInvalidReference reports a row that points at a missing parent.
	ErrInvalidReference = errors.New("invalid reference")
)

// MessageFilter scopes a message listing. GroupIDs restricts to those groups
// when non-empty; From/To bound created_at as [From, To) when non-zero.
type MessageFilter struct {
	CommunityID   string
	GroupIDs      []string
	ParticipantID string
	From          time.Time
	To            time.Time
	OriginalsOnly bool
	FlaggedOnly   bool
}

func classify(err error, op string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return fmt.Errorf("%s: %w: %w", op, ErrConflict, err)
		case "23503":
			return fmt.Errorf("%s: %w: %w", op, ErrInvalidReference, err)
		}
	}
	return wrap(op, err)
}

package store

import (
	"database/sql"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestClassifyMapsConstraintViolations(t *testing.T) {
	conflict := classify(&pgconn.PgError{Code: "23505", Message: "duplicate key"}, "insert group")
	if !errors.Is(conflict, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", conflict)
	}
	var pgErr *pgconn.PgError
	if !errors.As(conflict, &pgErr) {
		t.Fatal("driver error must stay reachable")
	}

	reference := classify(&pgconn.PgError{Code: "23503"}, "insert message")
	if !errors.Is(reference, ErrInvalidReference) {
		t.Fatalf("expected ErrInvalidReference, got %v", reference)
	}

	other := classify(sql.ErrNoRows, "insert participant")
	if errors.Is(other, ErrConflict) || !errors.Is(other, sql.ErrNoRows) {
		t.Fatalf("unexpected classification: %v", other)
	}
	if other.Error() != "insert participant: sql: no rows in result set" {
		t.Fatalf("unexpected message %q", other.Error())
	}
}

package postgres

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestValidID(t *testing.T) {
	t.Parallel()

	if !validID("3f1c2a9e-8d1b-4f5e-9a59-0f5d2c6b7a10") {
		t.Fatal("expected uuid to be valid")
	}
	for _, id := range []string{"", "1", "table-1", "3f1c2a9e"} {
		if validID(id) {
			t.Fatalf("expected %q to be invalid", id)
		}
	}
}

func TestNullableID(t *testing.T) {
	t.Parallel()

	if nullableID("") != nil {
		t.Fatal("empty id must map to NULL")
	}
	if nullableID("abc") != "abc" {
		t.Fatal("non-empty id must be passed as is")
	}
}

func TestConstraintError(t *testing.T) {
	t.Parallel()

	unique := &pgconn.PgError{Code: pgUniqueViolation, ConstraintName: "uq_tables_reservation_id"}
	err := constraintError(fmt.Errorf("exec: %w", unique))
	if !strings.Contains(err.Error(), "uq_tables_reservation_id") {
		t.Fatalf("expected constraint name in error, got %v", err)
	}
	if !isUniqueViolation(err) {
		t.Fatal("wrapped error must still be a unique violation")
	}

	fk := &pgconn.PgError{Code: pgForeignKeyViolation, ConstraintName: "tables_reservation_id_fkey"}
	if !strings.Contains(constraintError(fk).Error(), "foreign key") {
		t.Fatal("expected foreign key description")
	}

	plain := errors.New("connection reset")
	if !errors.Is(constraintError(plain), plain) {
		t.Fatal("non-pg errors must be returned unchanged")
	}
}

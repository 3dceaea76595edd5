package db

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/labdesk/labdesk/internal/platform/apperr"
)

func TestTxFromContext(t *testing.T) {
	if tx := TxFromContext(context.Background()); tx != nil {
		t.Error("expected nil tx from empty context")
	}
	ctx := context.WithValue(context.Background(), DBTxKey, "not-a-tx")
	if tx := TxFromContext(ctx); tx != nil {
		t.Error("expected nil when context value is wrong type")
	}
}

func TestWithTx_NoConnection(t *testing.T) {
	_, _, err := WithTx(context.Background())
	if err == nil {
		t.Fatal("expected error when no connection in context")
	}
	if err.Error() != "no database connection in context" {
		t.Errorf("unexpected error message: %s", err.Error())
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want apperr.Kind
	}{
		{"no rows", pgx.ErrNoRows, apperr.KindNotFound},
		{"wrapped no rows", fmt.Errorf("get bill: %w", pgx.ErrNoRows), apperr.KindNotFound},
		{"unique", &pgconn.PgError{Code: "23505", ConstraintName: "tests_code_key"}, apperr.KindConflict},
		{"foreign key", &pgconn.PgError{Code: "23503"}, apperr.KindValidation},
		{"check", &pgconn.PgError{Code: "23514", ConstraintName: "settings_tax_percentage_check"}, apperr.KindValidation},
		{"other pg", &pgconn.PgError{Code: "57014"}, apperr.KindInternal},
		{"plain", errors.New("boom"), apperr.KindInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := apperr.KindOf(Classify(tt.err, "test")); got != tt.want {
				t.Errorf("Classify(%v) kind = %d, want %d", tt.err, got, tt.want)
			}
		})
	}

	if Classify(nil, "test") != nil {
		t.Error("expected nil for nil error")
	}
}

func TestClassify_Message(t *testing.T) {
	err := Classify(pgx.ErrNoRows, "bill")
	if err.Error() != "bill not found" {
		t.Errorf("unexpected message %q", err.Error())
	}
}

func TestIsUniqueViolation(t *testing.T) {
	err := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505", ConstraintName: "bills_bill_number_key"})
	if !IsUniqueViolation(err, "") {
		t.Error("expected unique violation")
	}
	if !IsUniqueViolation(err, "bills_bill_number_key") {
		t.Error("expected match on constraint name")
	}
	if IsUniqueViolation(err, "tests_code_key") {
		t.Error("expected no match for a different constraint")
	}
	if IsUniqueViolation(errors.New("x"), "") {
		t.Error("plain error is not a unique violation")
	}
}

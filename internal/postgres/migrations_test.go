package postgres

import (
	"context"
	"errors"
	"io/fs"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestApplyExecutesAllMigrations(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS orders").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS reservations").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS reservation_approvals").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS idempotency").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE OR REPLACE FUNCTION notify_row_change").WillReturnResult(sqlmock.NewResult(0, 0))

	if err := Apply(context.Background(), db); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestApplyStopsOnError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(".*").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(".*").WillReturnError(errors.New("permission denied"))

	err = Apply(context.Background(), db)
	if err == nil || !strings.Contains(err.Error(), "002_reservations.sql") {
		t.Fatalf("expected error naming the failing file, got %v", err)
	}
}

func TestTriggerCoversEveryTable(t *testing.T) {
	body, err := fs.ReadFile(migrationFS, "migrations/005_row_change_notify.sql")
	if err != nil {
		t.Fatalf("read trigger migration: %v", err)
	}
	for _, table := range []string{"ON orders", "ON reservations", "ON reservation_approvals"} {
		if !strings.Contains(string(body), table) {
			t.Fatalf("trigger missing for %q", table)
		}
	}
	if !strings.Contains(string(body), "'"+Channel+"'") {
		t.Fatalf("trigger does not notify %s", Channel)
	}
	if !strings.Contains(string(body), "octet_length(payload) >= 8000") {
		t.Fatalf("trigger must fall back to an id-only payload under the notify size limit")
	}
}

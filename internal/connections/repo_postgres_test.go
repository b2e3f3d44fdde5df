package connections

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func newRepoWithMock(t *testing.T) (*PostgresRepo, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepo(db), mock, db
}

var connCols = []string{"id", "name", "label", "account_id", "passcode", "region", "url", "deleted", "created_at"}

func TestPostgresRepo_ListAll(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	at := time.Unix(1700000000, 0).UTC()
	mock.ExpectQuery(`SELECT id, name, label, account_id, passcode, region, url, deleted, created_at\s+FROM connections\s+ORDER BY created_at, id`).
		WillReturnRows(sqlmock.NewRows(connCols).
			AddRow("c1", "Main", "[Deleted] Main", "", "", "", "", true, at).
			AddRow("c2", "Main_2", "Main", "A", "p", "US", "https://us1.api.clevertap.com/1/upload", false, at))

	got, err := repo.ListAll(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0].Live() || !got[1].Live() {
		t.Fatalf("unexpected rows: %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresRepo_GetNotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`FROM connections\s+WHERE id = \$1`).WithArgs("nope").WillReturnRows(sqlmock.NewRows(connCols))

	if _, err := repo.Get(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPostgresRepo_UpdateTombstone(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	c := Connection{ID: "c1", Name: "Main", Label: "Main", AccountID: "A", Passcode: "p", Region: "US", URL: "u"}.tombstone()
	mock.ExpectExec(`UPDATE connections`).
		WithArgs("c1", "[Deleted] Main", "", "", "", "", true).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Update(context.Background(), c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

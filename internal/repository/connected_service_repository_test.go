package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

var serviceCols = []string{"id", "application_id", "name", "created_at", "updated_at"}

func TestConnectedServiceRepoCreate(t *testing.T) {
	now := time.Now()

	t.Run("success", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM applications WHERE id = ?")).
			WithArgs(2).
			WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
		mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM connected_services WHERE application_id = ? AND name = ? LIMIT 1")).
			WithArgs(2, "stripe").
			WillReturnError(sql.ErrNoRows)
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO connected_services (id, application_id, name) VALUES (?,?,?)")).
			WithArgs(sqlmock.AnyArg(), 2, "stripe").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(regexp.QuoteMeta("FROM connected_services WHERE id = ?")).
			WithArgs(sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows(serviceCols).AddRow("svc-1", 2, "stripe", now, now))
		mock.ExpectCommit()

		svc, err := NewConnectedServiceRepo(db).Create(context.Background(), 2, "stripe")
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		if svc.Name != "stripe" || svc.ApplicationID != 2 {
			t.Fatalf("got %+v", svc)
		}
		expectMet(t, mock)
	})

	t.Run("unknown application", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM applications WHERE id = ?")).
			WithArgs(9).
			WillReturnError(sql.ErrNoRows)
		mock.ExpectRollback()

		_, err := NewConnectedServiceRepo(db).Create(context.Background(), 9, "stripe")
		if !errors.Is(err, ErrAppNotFound) {
			t.Fatalf("got %v, want ErrAppNotFound", err)
		}
		expectMet(t, mock)
	})

	t.Run("duplicate name for application", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM applications WHERE id = ?")).
			WithArgs(2).
			WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
		mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM connected_services WHERE application_id = ? AND name = ? LIMIT 1")).
			WithArgs(2, "stripe").
			WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
		mock.ExpectRollback()

		_, err := NewConnectedServiceRepo(db).Create(context.Background(), 2, "stripe")
		if !errors.Is(err, ErrServiceNameExists) {
			t.Fatalf("got %v, want ErrServiceNameExists", err)
		}
		expectMet(t, mock)
	})
}

func TestConnectedServiceRepoListByApplication(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM connected_services WHERE application_id = ? ORDER BY created_at, id")).
		WithArgs(2).
		WillReturnRows(sqlmock.NewRows(serviceCols))

	out, err := NewConnectedServiceRepo(db).ListByApplication(context.Background(), 2)
	if err != nil {
		t.Fatalf("ListByApplication: %v", err)
	}
	if out == nil || len(out) != 0 {
		t.Fatalf("no services must list as [], got %#v", out)
	}
	expectMet(t, mock)
}

func TestConnectedServiceRepoUpdateName(t *testing.T) {
	now := time.Now()

	t.Run("success", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta("SELECT application_id FROM connected_services WHERE id = ?")).
			WithArgs("svc-1").
			WillReturnRows(sqlmock.NewRows([]string{"application_id"}).AddRow(2))
		mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM connected_services WHERE application_id = ? AND name = ? AND id <> ? LIMIT 1")).
			WithArgs(2, "paypal", "svc-1").
			WillReturnError(sql.ErrNoRows)
		mock.ExpectExec(regexp.QuoteMeta("UPDATE connected_services SET name = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?")).
			WithArgs("paypal", "svc-1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(regexp.QuoteMeta("FROM connected_services WHERE id = ?")).
			WithArgs("svc-1").
			WillReturnRows(sqlmock.NewRows(serviceCols).AddRow("svc-1", 2, "paypal", now, now))
		mock.ExpectCommit()

		svc, err := NewConnectedServiceRepo(db).UpdateName(context.Background(), "svc-1", "paypal")
		if err != nil {
			t.Fatalf("UpdateName: %v", err)
		}
		if svc.Name != "paypal" {
			t.Fatalf("got %+v", svc)
		}
		expectMet(t, mock)
	})

	t.Run("sibling name collision", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta("SELECT application_id FROM connected_services WHERE id = ?")).
			WithArgs("svc-1").
			WillReturnRows(sqlmock.NewRows([]string{"application_id"}).AddRow(2))
		mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM connected_services WHERE application_id = ? AND name = ? AND id <> ? LIMIT 1")).
			WithArgs(2, "taken", "svc-1").
			WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
		mock.ExpectRollback()

		_, err := NewConnectedServiceRepo(db).UpdateName(context.Background(), "svc-1", "taken")
		if !errors.Is(err, ErrServiceNameExists) {
			t.Fatalf("got %v, want ErrServiceNameExists", err)
		}
		expectMet(t, mock)
	})
}

func TestConnectedServiceRepoDeleteByID(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectExec(regexp.QuoteMeta("DELETE FROM connected_services WHERE id = ?")).
			WithArgs("svc-1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		if err := NewConnectedServiceRepo(db).DeleteByID(context.Background(), "svc-1"); err != nil {
			t.Fatalf("DeleteByID: %v", err)
		}
		expectMet(t, mock)
	})

	t.Run("unknown id", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectExec(regexp.QuoteMeta("DELETE FROM connected_services WHERE id = ?")).
			WithArgs("ghost").
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := NewConnectedServiceRepo(db).DeleteByID(context.Background(), "ghost")
		if !errors.Is(err, ErrServiceNotFound) {
			t.Fatalf("got %v, want ErrServiceNotFound", err)
		}
		expectMet(t, mock)
	})
}

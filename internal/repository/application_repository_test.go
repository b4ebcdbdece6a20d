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

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func expectMet(t *testing.T, mock sqlmock.Sqlmock) {
	t.Helper()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

var (
	appCols   = []string{"id", "name", "created_at", "updated_at"}
	phaseCols = []string{"id", "application_id", "name", "completion_date", "description", "status", "sort_order", "created_at", "updated_at"}
)

func TestApplicationRepoCreate(t *testing.T) {
	now := time.Now()

	t.Run("success", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM applications WHERE BINARY name = ? AND id <> ? LIMIT 1")).
			WithArgs("billing", 0).
			WillReturnError(sql.ErrNoRows)
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO applications (name) VALUES (?)")).
			WithArgs("billing").
			WillReturnResult(sqlmock.NewResult(5, 1))
		mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, created_at, updated_at FROM applications WHERE id = ?")).
			WithArgs(5).
			WillReturnRows(sqlmock.NewRows(appCols).AddRow(5, "billing", now, now))
		mock.ExpectQuery(regexp.QuoteMeta("FROM phases WHERE application_id = ?")).
			WithArgs(5).
			WillReturnRows(sqlmock.NewRows(phaseCols))

		a, err := NewApplicationRepo(db).Create(context.Background(), "billing")
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		if a.ID != 5 || a.Name != "billing" {
			t.Fatalf("got %+v", a)
		}
		if a.Phases == nil || len(a.Phases) != 0 {
			t.Fatalf("new application must start with an empty phase list, got %#v", a.Phases)
		}
		expectMet(t, mock)
	})

	t.Run("name conflict", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM applications WHERE BINARY name = ? AND id <> ? LIMIT 1")).
			WithArgs("billing", 0).
			WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))

		_, err := NewApplicationRepo(db).Create(context.Background(), "billing")
		if !errors.Is(err, ErrAppNameExists) {
			t.Fatalf("got %v, want ErrAppNameExists", err)
		}
		expectMet(t, mock)
	})
}

func TestApplicationRepoUpdateName(t *testing.T) {
	t.Run("unknown id", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM applications WHERE BINARY name = ?")).
			WithArgs("renamed", 99).
			WillReturnError(sql.ErrNoRows)
		mock.ExpectExec(regexp.QuoteMeta("UPDATE applications SET name = ?")).
			WithArgs("renamed", 99).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := NewApplicationRepo(db).UpdateName(context.Background(), 99, "renamed")
		if !errors.Is(err, ErrAppNotFound) {
			t.Fatalf("got %v, want ErrAppNotFound", err)
		}
		expectMet(t, mock)
	})

	t.Run("name held by another application", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM applications WHERE BINARY name = ?")).
			WithArgs("taken", 3).
			WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))

		err := NewApplicationRepo(db).UpdateName(context.Background(), 3, "taken")
		if !errors.Is(err, ErrAppNameExists) {
			t.Fatalf("got %v, want ErrAppNameExists", err)
		}
		expectMet(t, mock)
	})
}

func TestApplicationRepoDeleteByID(t *testing.T) {
	t.Run("cascades phases and services", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM applications WHERE id = ?")).
			WithArgs(4).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(4))
		mock.ExpectExec(regexp.QuoteMeta("DELETE FROM phases WHERE application_id = ?")).
			WithArgs(4).
			WillReturnResult(sqlmock.NewResult(0, 2))
		mock.ExpectExec(regexp.QuoteMeta("DELETE FROM connected_services WHERE application_id = ?")).
			WithArgs(4).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(regexp.QuoteMeta("DELETE FROM applications WHERE id = ?")).
			WithArgs(4).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		if err := NewApplicationRepo(db).DeleteByID(context.Background(), 4); err != nil {
			t.Fatalf("DeleteByID: %v", err)
		}
		expectMet(t, mock)
	})

	t.Run("unknown id rolls back", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM applications WHERE id = ?")).
			WithArgs(404).
			WillReturnError(sql.ErrNoRows)
		mock.ExpectRollback()

		err := NewApplicationRepo(db).DeleteByID(context.Background(), 404)
		if !errors.Is(err, ErrAppNotFound) {
			t.Fatalf("got %v, want ErrAppNotFound", err)
		}
		expectMet(t, mock)
	})
}

func TestApplicationRepoGetByID(t *testing.T) {
	now := time.Now()
	db, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, created_at, updated_at FROM applications WHERE id = ?")).
		WithArgs(2).
		WillReturnRows(sqlmock.NewRows(appCols).AddRow(2, "crm", now, now))
	mock.ExpectQuery(regexp.QuoteMeta("FROM phases WHERE application_id = ?")).
		WithArgs(2).
		WillReturnRows(sqlmock.NewRows(phaseCols).
			AddRow("p1", 2, "design", now, "wireframes", "completed", 1, now, now).
			AddRow("p2", 2, "build", now, nil, "in-progress", 2, now, now))

	a, err := NewApplicationRepo(db).GetByID(context.Background(), 2)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if len(a.Phases) != 2 {
		t.Fatalf("got %d phases, want 2", len(a.Phases))
	}
	if a.Phases[0].Name != "design" || a.Phases[1].Name != "build" {
		t.Fatalf("phases out of order: %q, %q", a.Phases[0].Name, a.Phases[1].Name)
	}
	if a.Phases[1].Description != "" {
		t.Fatalf("NULL description should scan as empty, got %q", a.Phases[1].Description)
	}
	expectMet(t, mock)
}

func TestApplicationRepoListAll(t *testing.T) {
	now := time.Now()
	db, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM applications ORDER BY created_at, id")).
		WillReturnRows(sqlmock.NewRows(appCols).
			AddRow(1, "crm", now, now).
			AddRow(2, "billing", now, now))
	mock.ExpectQuery(regexp.QuoteMeta("FROM phases ORDER BY sort_order, created_at, id")).
		WillReturnRows(sqlmock.NewRows(phaseCols).
			AddRow("p1", 2, "design", now, nil, "pending", 0, now, now).
			AddRow("p2", 1, "kickoff", now, nil, "completed", 0, now, now))

	apps, err := NewApplicationRepo(db).ListAll(context.Background())
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	if len(apps) != 2 {
		t.Fatalf("got %d applications, want 2", len(apps))
	}
	if len(apps[0].Phases) != 1 || apps[0].Phases[0].Name != "kickoff" {
		t.Fatalf("phases not grouped onto the right application: %+v", apps[0].Phases)
	}
	if len(apps[1].Phases) != 1 || apps[1].Phases[0].Name != "design" {
		t.Fatalf("phases not grouped onto the right application: %+v", apps[1].Phases)
	}
	expectMet(t, mock)
}

func TestApplicationRepoListAllEmpty(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM applications ORDER BY created_at, id")).
		WillReturnRows(sqlmock.NewRows(appCols))

	apps, err := NewApplicationRepo(db).ListAll(context.Background())
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	if apps == nil || len(apps) != 0 {
		t.Fatalf("empty registry must list as [], got %#v", apps)
	}
	expectMet(t, mock)
}

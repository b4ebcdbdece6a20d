package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/itportfolio/apptrack/internal/model"
)

// ConnectedServiceRepo stores the registry of external systems linked to
// applications. Records are independent entities referencing an application
// by id; the uniqueness of a service name is scoped to that application.
type ConnectedServiceRepo struct {
	db *sql.DB
}

func NewConnectedServiceRepo(db *sql.DB) *ConnectedServiceRepo {
	return &ConnectedServiceRepo{db: db}
}

const serviceColumns = "id, application_id, name, created_at, updated_at"

// Create links a service to an application. A missing application yields
// ErrAppNotFound, a per-application name collision ErrServiceNameExists.
func (r *ConnectedServiceRepo) Create(ctx context.Context, appID uint64, name string) (*model.ConnectedService, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		} else {
			_ = tx.Commit()
		}
	}()

	var one int
	if err = tx.QueryRowContext(ctx, "SELECT 1 FROM applications WHERE id = ?", appID).Scan(&one); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = ErrAppNotFound
		}
		return nil, err
	}
	err = tx.QueryRowContext(ctx,
		"SELECT 1 FROM connected_services WHERE application_id = ? AND name = ? LIMIT 1", appID, name).Scan(&one)
	if err == nil {
		err = ErrServiceNameExists
		return nil, err
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	id := uuid.New().String()
	if _, err = tx.ExecContext(ctx,
		"INSERT INTO connected_services (id, application_id, name) VALUES (?,?,?)", id, appID, name); err != nil {
		return nil, err
	}

	var svc model.ConnectedService
	err = tx.QueryRowContext(ctx, "SELECT "+serviceColumns+" FROM connected_services WHERE id = ?", id).
		Scan(&svc.ID, &svc.ApplicationID, &svc.Name, &svc.CreatedAt, &svc.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &svc, nil
}

// ListByApplication returns every service referencing the application,
// ordered by creation time ascending. An application without services gets
// an empty list, not an error.
func (r *ConnectedServiceRepo) ListByApplication(ctx context.Context, appID uint64) ([]*model.ConnectedService, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+serviceColumns+" FROM connected_services WHERE application_id = ? ORDER BY created_at, id", appID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*model.ConnectedService{}
	for rows.Next() {
		var svc model.ConnectedService
		if err := rows.Scan(&svc.ID, &svc.ApplicationID, &svc.Name, &svc.CreatedAt, &svc.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, &svc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// GetByID fetches a single service record.
func (r *ConnectedServiceRepo) GetByID(ctx context.Context, id string) (*model.ConnectedService, error) {
	var svc model.ConnectedService
	err := r.db.QueryRowContext(ctx, "SELECT "+serviceColumns+" FROM connected_services WHERE id = ?", id).
		Scan(&svc.ID, &svc.ApplicationID, &svc.Name, &svc.CreatedAt, &svc.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrServiceNotFound
		}
		return nil, err
	}
	return &svc, nil
}

// UpdateName renames a service, re-checking the name against its siblings
// under the same owning application.
func (r *ConnectedServiceRepo) UpdateName(ctx context.Context, id, name string) (*model.ConnectedService, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		} else {
			_ = tx.Commit()
		}
	}()

	var appID uint64
	if err = tx.QueryRowContext(ctx, "SELECT application_id FROM connected_services WHERE id = ?", id).Scan(&appID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = ErrServiceNotFound
		}
		return nil, err
	}
	var one int
	err = tx.QueryRowContext(ctx,
		"SELECT 1 FROM connected_services WHERE application_id = ? AND name = ? AND id <> ? LIMIT 1",
		appID, name, id).Scan(&one)
	if err == nil {
		err = ErrServiceNameExists
		return nil, err
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if _, err = tx.ExecContext(ctx,
		"UPDATE connected_services SET name = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?", name, id); err != nil {
		return nil, err
	}

	var svc model.ConnectedService
	err = tx.QueryRowContext(ctx, "SELECT "+serviceColumns+" FROM connected_services WHERE id = ?", id).
		Scan(&svc.ID, &svc.ApplicationID, &svc.Name, &svc.CreatedAt, &svc.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &svc, nil
}

// DeleteByID removes a service record. ErrServiceNotFound is returned when
// no row was deleted.
func (r *ConnectedServiceRepo) DeleteByID(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM connected_services WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrServiceNotFound
	}
	return nil
}

package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/itportfolio/apptrack/internal/model"
)

// ApplicationRepo encapsulates all database queries for the application
// aggregate. Reads return the aggregate with its embedded phases loaded;
// phase mutation lives in PhaseRepo, which addresses rows directly so that
// concurrent writers never overwrite each other's changes.
type ApplicationRepo struct {
	db *sql.DB
}

// NewApplicationRepo constructs an ApplicationRepo with the provided DB
// handle, allowing injection of the database in tests and at startup.
func NewApplicationRepo(db *sql.DB) *ApplicationRepo {
	return &ApplicationRepo{db: db}
}

// Create inserts a new application with an empty phase sequence. The
// registry-wide name invariant is checked at write time with an exact,
// case-sensitive match; a collision yields ErrAppNameExists.
func (r *ApplicationRepo) Create(ctx context.Context, name string) (*model.Application, error) {
	taken, err := r.nameTaken(ctx, name, 0)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrAppNameExists
	}
	res, err := r.db.ExecContext(ctx, "INSERT INTO applications (name) VALUES (?)", name)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, uint64(id))
}

// GetByID fetches an application together with its embedded phases. It
// returns ErrAppNotFound when the id does not resolve.
func (r *ApplicationRepo) GetByID(ctx context.Context, id uint64) (*model.Application, error) {
	const q = "SELECT id, name, created_at, updated_at FROM applications WHERE id = ?"
	var a model.Application
	if err := r.db.QueryRowContext(ctx, q, id).Scan(&a.ID, &a.Name, &a.CreatedAt, &a.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAppNotFound
		}
		return nil, err
	}
	phases, err := r.phasesFor(ctx, a.ID)
	if err != nil {
		return nil, err
	}
	a.Phases = phases
	return &a, nil
}

// ListAll returns every application ordered by creation time ascending,
// each with its phases loaded. The registry is small by design, so there is
// no pagination.
func (r *ApplicationRepo) ListAll(ctx context.Context) ([]*model.Application, error) {
	const q = "SELECT id, name, created_at, updated_at FROM applications ORDER BY created_at, id"
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*model.Application{}
	byID := map[uint64]*model.Application{}
	for rows.Next() {
		a := &model.Application{Phases: []*model.Phase{}}
		if err := rows.Scan(&a.ID, &a.Name, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
		byID[a.ID] = a
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return out, nil
	}

	// One pass over all phases instead of a query per application.
	const pq = "SELECT id, application_id, name, completion_date, description, status, sort_order, created_at, updated_at FROM phases ORDER BY sort_order, created_at, id"
	prows, err := r.db.QueryContext(ctx, pq)
	if err != nil {
		return nil, err
	}
	defer prows.Close()
	for prows.Next() {
		p, err := scanPhase(prows)
		if err != nil {
			return nil, err
		}
		if a, ok := byID[p.ApplicationID]; ok {
			a.Phases = append(a.Phases, p)
		}
	}
	if err := prows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateName renames an application. The new name is assumed trimmed and
// non-empty (the handler validates input); a name held by a different
// application yields ErrAppNameExists and an unresolved id ErrAppNotFound.
func (r *ApplicationRepo) UpdateName(ctx context.Context, id uint64, name string) error {
	taken, err := r.nameTaken(ctx, name, id)
	if err != nil {
		return err
	}
	if taken {
		return ErrAppNameExists
	}
	res, err := r.db.ExecContext(ctx,
		"UPDATE applications SET name = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?", name, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrAppNotFound
	}
	return nil
}

// DeleteByID removes an application, its embedded phases and every
// connected service referencing it inside one transaction, so the aggregate
// and its dependents disappear atomically.
func (r *ApplicationRepo) DeleteByID(ctx context.Context, id uint64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		} else {
			_ = tx.Commit()
		}
	}()

	var exists uint64
	if err = tx.QueryRowContext(ctx, "SELECT id FROM applications WHERE id = ?", id).Scan(&exists); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = ErrAppNotFound
		}
		return err
	}
	if _, err = tx.ExecContext(ctx, "DELETE FROM phases WHERE application_id = ?", id); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, "DELETE FROM connected_services WHERE application_id = ?", id); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, "DELETE FROM applications WHERE id = ?", id); err != nil {
		return err
	}
	return nil
}

// Exists reports whether an application row exists for the id.
func (r *ApplicationRepo) Exists(ctx context.Context, id uint64) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, "SELECT 1 FROM applications WHERE id = ?", id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// nameTaken checks the case-sensitive name invariant. excludeID skips the
// application being renamed; 0 excludes nothing.
func (r *ApplicationRepo) nameTaken(ctx context.Context, name string, excludeID uint64) (bool, error) {
	// BINARY forces a case-sensitive comparison regardless of collation.
	var one int
	err := r.db.QueryRowContext(ctx,
		"SELECT 1 FROM applications WHERE BINARY name = ? AND id <> ? LIMIT 1", name, excludeID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// phasesFor loads the ordered phase sequence of one application.
func (r *ApplicationRepo) phasesFor(ctx context.Context, appID uint64) ([]*model.Phase, error) {
	const q = "SELECT id, application_id, name, completion_date, description, status, sort_order, created_at, updated_at FROM phases WHERE application_id = ? ORDER BY sort_order, created_at, id"
	rows, err := r.db.QueryContext(ctx, q, appID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*model.Phase{}
	for rows.Next() {
		p, err := scanPhase(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

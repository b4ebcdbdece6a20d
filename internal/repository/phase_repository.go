package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/itportfolio/apptrack/internal/model"
)

// PhaseRepo mutates the embedded phase collection of an application. Every
// mutation is a targeted statement against the phases table rather than a
// load-whole-aggregate/save round trip, so two writers touching different
// phases of the same application can never overwrite each other.
type PhaseRepo struct {
	db *sql.DB
}

func NewPhaseRepo(db *sql.DB) *PhaseRepo { return &PhaseRepo{db: db} }

const phaseColumns = "id, application_id, name, completion_date, description, status, sort_order, created_at, updated_at"

// PhaseUpdate carries the optional fields of a phase update. Nil pointers
// leave the stored value untouched.
type PhaseUpdate struct {
	Name           *string
	CompletionDate *time.Time
	Description    *string
	Status         *model.PhaseStatus
	SortOrder      *int
}

// Add appends a phase to the application's embedded sequence. The phase id
// is generated here and is stable thereafter. A duplicate name within the
// same application yields ErrPhaseNameExists; a missing application
// ErrAppNotFound. The existence and uniqueness checks run in the same
// transaction as the insert.
func (r *PhaseRepo) Add(ctx context.Context, appID uint64, name string, completionDate time.Time, description string, status model.PhaseStatus, sortOrder int) (*model.Phase, error) {
	if status == "" {
		status = model.PhaseStatusPending
	}
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
		"SELECT 1 FROM phases WHERE application_id = ? AND name = ? LIMIT 1", appID, name).Scan(&one)
	if err == nil {
		err = ErrPhaseNameExists
		return nil, err
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	id := uuid.New().String()
	var desc sql.NullString
	if description != "" {
		desc = sql.NullString{String: description, Valid: true}
	}
	_, err = tx.ExecContext(ctx,
		"INSERT INTO phases (id, application_id, name, completion_date, description, status, sort_order) VALUES (?,?,?,?,?,?,?)",
		id, appID, name, completionDate, desc, string(status), sortOrder)
	if err != nil {
		return nil, err
	}

	var p *model.Phase
	p, err = scanPhaseRow(tx.QueryRowContext(ctx, "SELECT "+phaseColumns+" FROM phases WHERE id = ?", id))
	if err != nil {
		return nil, err
	}
	return p, nil
}

// UpdateByID patches a phase located by its id alone; the owning
// application is discovered from the row, so callers never need to know the
// parent. Only the supplied fields are written, in a single targeted
// UPDATE. It returns the owning application id so callers can reload the
// aggregate.
func (r *PhaseRepo) UpdateByID(ctx context.Context, phaseID string, upd PhaseUpdate) (uint64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		} else {
			_ = tx.Commit()
		}
	}()

	var appID uint64
	if err = tx.QueryRowContext(ctx, "SELECT application_id FROM phases WHERE id = ?", phaseID).Scan(&appID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = ErrPhaseNotFound
		}
		return 0, err
	}

	if upd.Name != nil {
		var one int
		err = tx.QueryRowContext(ctx,
			"SELECT 1 FROM phases WHERE application_id = ? AND name = ? AND id <> ? LIMIT 1",
			appID, *upd.Name, phaseID).Scan(&one)
		if err == nil {
			err = ErrPhaseNameExists
			return 0, err
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return 0, err
		}
		err = nil
	}

	q := "UPDATE phases SET updated_at = CURRENT_TIMESTAMP"
	args := []interface{}{}
	if upd.Name != nil {
		q += ", name = ?"
		args = append(args, *upd.Name)
	}
	if upd.CompletionDate != nil {
		q += ", completion_date = ?"
		args = append(args, *upd.CompletionDate)
	}
	if upd.Description != nil {
		q += ", description = ?"
		args = append(args, *upd.Description)
	}
	if upd.Status != nil {
		q += ", status = ?"
		args = append(args, string(*upd.Status))
	}
	if upd.SortOrder != nil {
		q += ", sort_order = ?"
		args = append(args, *upd.SortOrder)
	}
	q += " WHERE id = ?"
	args = append(args, phaseID)

	if _, err = tx.ExecContext(ctx, q, args...); err != nil {
		return 0, err
	}
	return appID, nil
}

// DeleteByID detaches a phase from its parent with an atomic single-row
// DELETE, leaving sibling phases untouched. It returns the owning
// application id, or ErrPhaseNotFound when no application contains the
// phase.
func (r *PhaseRepo) DeleteByID(ctx context.Context, phaseID string) (uint64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		} else {
			_ = tx.Commit()
		}
	}()

	var appID uint64
	if err = tx.QueryRowContext(ctx, "SELECT application_id FROM phases WHERE id = ?", phaseID).Scan(&appID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = ErrPhaseNotFound
		}
		return 0, err
	}
	if _, err = tx.ExecContext(ctx, "DELETE FROM phases WHERE id = ?", phaseID); err != nil {
		return 0, err
	}
	return appID, nil
}

// ListByApplication returns the phases of one application sorted by the
// order field ascending; phases with equal (typically unset) order fall
// back to insertion order. A missing application yields ErrAppNotFound.
func (r *PhaseRepo) ListByApplication(ctx context.Context, appID uint64) ([]*model.Phase, error) {
	var one int
	err := r.db.QueryRowContext(ctx, "SELECT 1 FROM applications WHERE id = ?", appID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAppNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx,
		"SELECT "+phaseColumns+" FROM phases WHERE application_id = ? ORDER BY sort_order, created_at, id", appID)
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

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPhaseInto(s rowScanner) (*model.Phase, error) {
	var p model.Phase
	var desc sql.NullString
	var status string
	if err := s.Scan(&p.ID, &p.ApplicationID, &p.Name, &p.CompletionDate, &desc, &status, &p.SortOrder, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.Description = desc.String
	p.Status = model.PhaseStatus(status)
	return &p, nil
}

func scanPhase(rows *sql.Rows) (*model.Phase, error)  { return scanPhaseInto(rows) }
func scanPhaseRow(row *sql.Row) (*model.Phase, error) { return scanPhaseInto(row) }

package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/itportfolio/apptrack/internal/model"
	"github.com/itportfolio/apptrack/internal/utils"
)

// ErrEmailExists is returned when registering an email that is already
// taken by another account.
var ErrEmailExists = errors.New("email already exists")

const userColumns = "id,full_name,email,password_hash,avatar_url,created_at,updated_at"

// UserRepo encapsulates all database access for operator accounts.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

// Create hashes the password, inserts the account and returns the stored
// record. The duplicate-email unique index surfaces as ErrEmailExists.
func (r *UserRepo) Create(ctx context.Context, fullName, email, password string, cost int) (*model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return nil, err
	}
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (full_name, email, password_hash, avatar_url) VALUES (?,?,?,?)",
		strings.TrimSpace(fullName), email, hash, model.DefaultAvatarURL)
	if err != nil {
		// MySQL duplicate-key error code
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return nil, ErrEmailExists
		}
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, uint64(id))
}

// GetByEmail fetches an account by normalized email. sql.ErrNoRows is
// propagated so callers can distinguish unknown emails.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	var u model.User
	err := r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", email).
		Scan(&u.ID, &u.FullName, &u.Email, &u.PasswordHash, &u.AvatarURL, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByID fetches an account by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (*model.User, error) {
	var u model.User
	err := r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id).
		Scan(&u.ID, &u.FullName, &u.Email, &u.PasswordHash, &u.AvatarURL, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// UpdateProfile overwrites the name and email and, when the corresponding
// pointer is non-nil, the password hash and avatar URL. Fields whose
// pointers are nil keep their stored values, matching the deliberately
// permissive profile-update contract.
func (r *UserRepo) UpdateProfile(ctx context.Context, id uint64, fullName, email string, passwordHash, avatarURL *string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	q := "UPDATE users SET full_name=?, email=?"
	args := []interface{}{strings.TrimSpace(fullName), email}
	if passwordHash != nil {
		q += ", password_hash=?"
		args = append(args, *passwordHash)
	}
	if avatarURL != nil {
		q += ", avatar_url=?"
		args = append(args, *avatarURL)
	}
	q += ", updated_at=CURRENT_TIMESTAMP WHERE id=?"
	args = append(args, id)

	res, err := r.DB.ExecContext(ctx, q, args...)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return ErrEmailExists
		}
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

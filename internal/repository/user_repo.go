package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"user-accounts/internal/domain"
)

// UserRepository define el contrato de persistencia para usuarios.
type UserRepository interface {
	Create(ctx context.Context, user domain.User) (domain.User, error)
	GetByID(ctx context.Context, id int64) (domain.User, error)
	GetByEmail(ctx context.Context, email string) (domain.User, error)
	GetByUsername(ctx context.Context, username string) (domain.User, error)
	MarkVerified(ctx context.Context, id int64) error
}

// DBTX es el subconjunto de pgxpool.Pool (y pgx.Tx) que usa el repositorio.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PgUserRepository implementa UserRepository usando pgx.
type PgUserRepository struct {
	db DBTX
}

func NewPgUserRepository(db DBTX) *PgUserRepository {
	return &PgUserRepository{db: db}
}

const selectUserColumns = `
		SELECT id, firstname, middlename, lastname, username, email,
		       password_hash, registered_on, verified
		FROM users
`

func (r *PgUserRepository) Create(ctx context.Context, user domain.User) (domain.User, error) {
	const query = `
		INSERT INTO users (firstname, middlename, lastname, username, email, password_hash, registered_on, verified)
		VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7, now()), $8)
		RETURNING id, registered_on
	`
	var registeredOn any
	if !user.RegisteredOn.IsZero() {
		registeredOn = user.RegisteredOn
	}
	err := r.db.QueryRow(ctx, query,
		user.Firstname,
		nullable(user.Middlename),
		user.Lastname,
		nullable(user.Username),
		user.Email,
		user.PasswordHash,
		registeredOn,
		user.Verified,
	).Scan(&user.ID, &user.RegisteredOn)
	if err != nil {
		if dup, ok := asUniqueViolation(err); ok {
			return domain.User{}, dup
		}
		return domain.User{}, fmt.Errorf("insert user: %w", err)
	}
	return user, nil
}

func (r *PgUserRepository) GetByID(ctx context.Context, id int64) (domain.User, error) {
	return r.getOne(ctx, selectUserColumns+`WHERE id = $1`, id)
}

func (r *PgUserRepository) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	return r.getOne(ctx, selectUserColumns+`WHERE email = $1`, email)
}

func (r *PgUserRepository) GetByUsername(ctx context.Context, username string) (domain.User, error) {
	return r.getOne(ctx, selectUserColumns+`WHERE username = $1`, username)
}

// MarkVerified marca al usuario como verificado. Nunca revierte el flag.
func (r *PgUserRepository) MarkVerified(ctx context.Context, id int64) error {
	const query = `UPDATE users SET verified = TRUE WHERE id = $1`
	tag, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("mark verified: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PgUserRepository) getOne(ctx context.Context, query string, arg any) (domain.User, error) {
	var (
		u          domain.User
		middlename *string
		username   *string
	)
	err := r.db.QueryRow(ctx, query, arg).Scan(
		&u.ID,
		&u.Firstname,
		&middlename,
		&u.Lastname,
		&username,
		&u.Email,
		&u.PasswordHash,
		&u.RegisteredOn,
		&u.Verified,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, ErrNotFound
		}
		return domain.User{}, fmt.Errorf("select user: %w", err)
	}
	if middlename != nil {
		u.Middlename = *middlename
	}
	if username != nil {
		u.Username = *username
	}
	return u, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

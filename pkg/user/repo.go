package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgconn"
	_ "github.com/jackc/pgx/v4/stdlib"
)

// SQLSTATE for unique constraint violations.
const pgUniqueViolation = "23505"

type UserRepo struct {
	db *sql.DB
}

func NewUserRepo(db *sql.DB) *UserRepo {
	return &UserRepo{
		db: db,
	}
}

func (r *UserRepo) Add(ctx context.Context, u *User) error {
	row := r.db.QueryRowContext(ctx,
		"INSERT INTO users(username, email, password) VALUES($1, $2, $3) RETURNING id, created_at, updated_at",
		u.Username, u.Email, u.Password)
	if err := row.Scan(&u.Id, &u.Created, &u.Updated); err != nil {
		return fmt.Errorf("user/repo: user wasn't added: %w", err)
	}
	return nil
}

// DuplicateField reports which unique column an insert collided on.
// Returns "" when err is not a unique constraint violation.
func DuplicateField(err error) string {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgUniqueViolation {
		return ``
	}
	if strings.Contains(pgErr.ConstraintName, "email") {
		return "email"
	}
	return "username"
}

func (r *UserRepo) GetById(ctx context.Context, id int64) (*User, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT id, username, email, password, created_at, updated_at FROM users WHERE id=$1", id)
	return scanUser(row)
}

func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*User, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT id, username, email, password, created_at, updated_at FROM users WHERE username=$1", username)
	return scanUser(row)
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*User, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT id, username, email, password, created_at, updated_at FROM users WHERE email=$1", email)
	return scanUser(row)
}

// GetByIds is the loader's batch fetch. Row order is whatever the
// database returns; callers reorder by id themselves.
func (r *UserRepo) GetByIds(ctx context.Context, ids []int64) ([]*User, error) {
	if len(ids) == 0 {
		return []*User{}, nil
	}

	placeholders := make([]string, 0, len(ids))
	args := make([]interface{}, 0, len(ids))
	for i, id := range ids {
		placeholders = append(placeholders, "$"+strconv.Itoa(i+1))
		args = append(args, id)
	}

	query := "SELECT id, username, email, password, created_at, updated_at FROM users WHERE id IN (" +
		strings.Join(placeholders, ", ") + ")"
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("user/repo: failed querying users batch: %w", err)
	}
	defer rows.Close()

	users := []*User{}
	for rows.Next() {
		u := new(User)
		if err := rows.Scan(&u.Id, &u.Username, &u.Email, &u.Password, &u.Created, &u.Updated); err != nil {
			return nil, fmt.Errorf("user/repo: could not scan row: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("user/repo: rows iteration failed: %w", err)
	}
	return users, nil
}

func (r *UserRepo) UpdatePassword(ctx context.Context, id int64, hashed []byte) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE users SET password=$1, updated_at=now() WHERE id=$2", hashed, id)
	if err != nil {
		return fmt.Errorf("user/repo: failed updating password: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("user/repo: failed updating password: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("user/repo: password wasn't updated, no user with id %d", id)
	}
	return nil
}

// Returns all users. Used only for seeding the DB.
func (r *UserRepo) GetAll(ctx context.Context) ([]*User, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, username, email, password, created_at, updated_at FROM users")
	if err != nil {
		return nil, fmt.Errorf("user/repo: failed querying all users: %w", err)
	}
	defer rows.Close()

	users := []*User{}
	for rows.Next() {
		u := new(User)
		if err := rows.Scan(&u.Id, &u.Username, &u.Email, &u.Password, &u.Created, &u.Updated); err != nil {
			return nil, fmt.Errorf("user/repo: could not scan row: %w", err)
		}
		users = append(users, u)
	}
	return users, nil
}

func scanUser(row *sql.Row) (*User, error) {
	u := new(User)
	err := row.Scan(&u.Id, &u.Username, &u.Email, &u.Password, &u.Created, &u.Updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("user/repo: row scan failed: %w", err)
	}
	return u, nil
}

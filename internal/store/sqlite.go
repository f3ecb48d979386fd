package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	email TEXT NOT NULL UNIQUE,
	full_name TEXT NOT NULL,
	hashed_password TEXT NOT NULL,
	is_active INTEGER NOT NULL DEFAULT 1,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP
);
CREATE TABLE IF NOT EXISTS items (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	title TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	owner_id INTEGER NOT NULL,
	is_active INTEGER NOT NULL DEFAULT 1,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP
);
`

// SQLite is the default embedded backend.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (and migrates) a sqlite database at path.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// modernc sqlite does not tolerate concurrent writers on one file
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate sqlite schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Close() error { return s.db.Close() }

func (s *SQLite) GetUser(ctx context.Context, id int64) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, email, full_name, hashed_password, is_active, created_at, updated_at FROM users WHERE id = ?`, id)
	return scanUser(row)
}

func (s *SQLite) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, email, full_name, hashed_password, is_active, created_at, updated_at FROM users WHERE email = ?`, email)
	return scanUser(row)
}

func (s *SQLite) ListUsers(ctx context.Context, skip, limit int) ([]User, error) {
	skip, limit = normalizePage(skip, limit)
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, email, full_name, hashed_password, is_active, created_at, updated_at FROM users ORDER BY id LIMIT ? OFFSET ?`,
		limit, skip)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

func (s *SQLite) CreateUser(ctx context.Context, in UserCreate) (*User, error) {
	hashed, err := HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO users (email, full_name, hashed_password, is_active, created_at) VALUES (?, ?, ?, 1, ?)`,
		in.Email, in.FullName, hashed, now)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return s.GetUser(ctx, id)
}

func (s *SQLite) UpdateUser(ctx context.Context, id int64, in UserUpdate) (*User, error) {
	sets := []string{}
	args := []any{}
	if in.Email != nil {
		sets, args = append(sets, "email = ?"), append(args, *in.Email)
	}
	if in.FullName != nil {
		sets, args = append(sets, "full_name = ?"), append(args, *in.FullName)
	}
	if in.Password != nil {
		hashed, err := HashPassword(*in.Password)
		if err != nil {
			return nil, err
		}
		sets, args = append(sets, "hashed_password = ?"), append(args, hashed)
	}
	if in.IsActive != nil {
		sets, args = append(sets, "is_active = ?"), append(args, *in.IsActive)
	}
	if len(sets) == 0 {
		return s.GetUser(ctx, id)
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, time.Now().UTC(), id)

	res, err := s.db.ExecContext(ctx,
		"UPDATE users SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrNotFound
	}
	return s.GetUser(ctx, id)
}

func (s *SQLite) DeleteUser(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLite) GetItem(ctx context.Context, id int64) (*Item, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, title, description, owner_id, is_active, created_at, updated_at FROM items WHERE id = ?`, id)
	return scanItem(row)
}

func (s *SQLite) ListItems(ctx context.Context, skip, limit int) ([]Item, error) {
	skip, limit = normalizePage(skip, limit)
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, description, owner_id, is_active, created_at, updated_at FROM items ORDER BY id LIMIT ? OFFSET ?`,
		limit, skip)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []Item{}
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *it)
	}
	return items, rows.Err()
}

func (s *SQLite) CreateItem(ctx context.Context, in ItemCreate) (*Item, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO items (title, description, owner_id, is_active, created_at) VALUES (?, ?, ?, 1, ?)`,
		in.Title, in.Description, in.OwnerID, now)
	if err != nil {
		return nil, fmt.Errorf("create item: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return s.GetItem(ctx, id)
}

func (s *SQLite) UpdateItem(ctx context.Context, id int64, in ItemUpdate) (*Item, error) {
	sets := []string{}
	args := []any{}
	if in.Title != nil {
		sets, args = append(sets, "title = ?"), append(args, *in.Title)
	}
	if in.Description != nil {
		sets, args = append(sets, "description = ?"), append(args, *in.Description)
	}
	if in.IsActive != nil {
		sets, args = append(sets, "is_active = ?"), append(args, *in.IsActive)
	}
	if len(sets) == 0 {
		return s.GetItem(ctx, id)
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, time.Now().UTC(), id)

	res, err := s.db.ExecContext(ctx,
		"UPDATE items SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return nil, fmt.Errorf("update item: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrNotFound
	}
	return s.GetItem(ctx, id)
}

func (s *SQLite) DeleteItem(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*User, error) {
	var u User
	var updated sql.NullTime
	err := row.Scan(&u.ID, &u.Email, &u.FullName, &u.HashedPassword, &u.IsActive, &u.CreatedAt, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if updated.Valid {
		u.UpdatedAt = &updated.Time
	}
	return &u, nil
}

func scanItem(row rowScanner) (*Item, error) {
	var it Item
	var updated sql.NullTime
	err := row.Scan(&it.ID, &it.Title, &it.Description, &it.OwnerID, &it.IsActive, &it.CreatedAt, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if updated.Valid {
		it.UpdatedAt = &updated.Time
	}
	return &it, nil
}

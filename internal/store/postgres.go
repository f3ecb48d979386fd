package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS users (
	id BIGSERIAL PRIMARY KEY,
	email TEXT NOT NULL UNIQUE,
	full_name TEXT NOT NULL,
	hashed_password TEXT NOT NULL,
	is_active BOOLEAN NOT NULL DEFAULT TRUE,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ
);
CREATE TABLE IF NOT EXISTS items (
	id BIGSERIAL PRIMARY KEY,
	title TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	owner_id BIGINT NOT NULL,
	is_active BOOLEAN NOT NULL DEFAULT TRUE,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ
);
`

// Postgres backs the store with a pgx connection pool.
type Postgres struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects to dsn and ensures the schema exists.
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate postgres schema: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

const pgUserCols = "id, email, full_name, hashed_password, is_active, created_at, updated_at"
const pgItemCols = "id, title, description, owner_id, is_active, created_at, updated_at"

func (p *Postgres) GetUser(ctx context.Context, id int64) (*User, error) {
	row := p.pool.QueryRow(ctx, "SELECT "+pgUserCols+" FROM users WHERE id = $1", id)
	return scanPGUser(row)
}

func (p *Postgres) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	row := p.pool.QueryRow(ctx, "SELECT "+pgUserCols+" FROM users WHERE email = $1", email)
	return scanPGUser(row)
}

func (p *Postgres) ListUsers(ctx context.Context, skip, limit int) ([]User, error) {
	skip, limit = normalizePage(skip, limit)
	rows, err := p.pool.Query(ctx,
		"SELECT "+pgUserCols+" FROM users ORDER BY id LIMIT $1 OFFSET $2", limit, skip)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []User{}
	for rows.Next() {
		u, err := scanPGUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

func (p *Postgres) CreateUser(ctx context.Context, in UserCreate) (*User, error) {
	hashed, err := HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	row := p.pool.QueryRow(ctx,
		"INSERT INTO users (email, full_name, hashed_password, is_active, created_at) VALUES ($1, $2, $3, TRUE, $4) RETURNING "+pgUserCols,
		in.Email, in.FullName, hashed, time.Now().UTC())
	return scanPGUser(row)
}

func (p *Postgres) UpdateUser(ctx context.Context, id int64, in UserUpdate) (*User, error) {
	sets := []string{}
	args := []any{}
	add := func(col string, val any) {
		args = append(args, val)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if in.Email != nil {
		add("email", *in.Email)
	}
	if in.FullName != nil {
		add("full_name", *in.FullName)
	}
	if in.Password != nil {
		hashed, err := HashPassword(*in.Password)
		if err != nil {
			return nil, err
		}
		add("hashed_password", hashed)
	}
	if in.IsActive != nil {
		add("is_active", *in.IsActive)
	}
	if len(sets) == 0 {
		return p.GetUser(ctx, id)
	}
	add("updated_at", time.Now().UTC())
	args = append(args, id)

	row := p.pool.QueryRow(ctx,
		fmt.Sprintf("UPDATE users SET %s WHERE id = $%d RETURNING %s", strings.Join(sets, ", "), len(args), pgUserCols),
		args...)
	return scanPGUser(row)
}

func (p *Postgres) DeleteUser(ctx context.Context, id int64) error {
	tag, err := p.pool.Exec(ctx, "DELETE FROM users WHERE id = $1", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) GetItem(ctx context.Context, id int64) (*Item, error) {
	row := p.pool.QueryRow(ctx, "SELECT "+pgItemCols+" FROM items WHERE id = $1", id)
	return scanPGItem(row)
}

func (p *Postgres) ListItems(ctx context.Context, skip, limit int) ([]Item, error) {
	skip, limit = normalizePage(skip, limit)
	rows, err := p.pool.Query(ctx,
		"SELECT "+pgItemCols+" FROM items ORDER BY id LIMIT $1 OFFSET $2", limit, skip)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []Item{}
	for rows.Next() {
		it, err := scanPGItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *it)
	}
	return items, rows.Err()
}

func (p *Postgres) CreateItem(ctx context.Context, in ItemCreate) (*Item, error) {
	row := p.pool.QueryRow(ctx,
		"INSERT INTO items (title, description, owner_id, is_active, created_at) VALUES ($1, $2, $3, TRUE, $4) RETURNING "+pgItemCols,
		in.Title, in.Description, in.OwnerID, time.Now().UTC())
	return scanPGItem(row)
}

func (p *Postgres) UpdateItem(ctx context.Context, id int64, in ItemUpdate) (*Item, error) {
	sets := []string{}
	args := []any{}
	add := func(col string, val any) {
		args = append(args, val)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if in.Title != nil {
		add("title", *in.Title)
	}
	if in.Description != nil {
		add("description", *in.Description)
	}
	if in.IsActive != nil {
		add("is_active", *in.IsActive)
	}
	if len(sets) == 0 {
		return p.GetItem(ctx, id)
	}
	add("updated_at", time.Now().UTC())
	args = append(args, id)

	row := p.pool.QueryRow(ctx,
		fmt.Sprintf("UPDATE items SET %s WHERE id = $%d RETURNING %s", strings.Join(sets, ", "), len(args), pgItemCols),
		args...)
	return scanPGItem(row)
}

func (p *Postgres) DeleteItem(ctx context.Context, id int64) error {
	tag, err := p.pool.Exec(ctx, "DELETE FROM items WHERE id = $1", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanPGUser(row pgx.Row) (*User, error) {
	var u User
	var updated *time.Time
	err := row.Scan(&u.ID, &u.Email, &u.FullName, &u.HashedPassword, &u.IsActive, &u.CreatedAt, &updated)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	u.UpdatedAt = updated
	return &u, nil
}

func scanPGItem(row pgx.Row) (*Item, error) {
	var it Item
	var updated *time.Time
	err := row.Scan(&it.ID, &it.Title, &it.Description, &it.OwnerID, &it.IsActive, &it.CreatedAt, &updated)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	it.UpdatedAt = updated
	return &it, nil
}

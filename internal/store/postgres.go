package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ayush/bookshelf/backend/internal/models"
)

// PostgresStore handles users, books and display names in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate creates the tables if they don't exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS users (
			id         UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			email      VARCHAR(255) UNIQUE NOT NULL,
			password   VARCHAR(255) NOT NULL,
			created_at TIMESTAMPTZ  NOT NULL DEFAULT NOW()
		);
		CREATE TABLE IF NOT EXISTS user_names (
			user_id UUID PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
			name    TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS books (
			id                  BIGSERIAL PRIMARY KEY,
			user_id             UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			title               TEXT,
			author              TEXT,
			genre               TEXT,
			description         TEXT,
			cover_image         TEXT,
			rating              DOUBLE PRECISION,
			started_reading_on  DATE,
			finished_reading_on DATE,
			created_at          TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS books_user_id_idx ON books (user_id);
	`)
	return err
}

func (s *PostgresStore) CreateUser(ctx context.Context, email, hashedPassword string) (*models.User, error) {
	var u models.User
	err := s.pool.QueryRow(ctx,
		`INSERT INTO users (email, password)
		 VALUES ($1, $2)
		 RETURNING id, email, created_at`,
		email, hashedPassword,
	).Scan(&u.ID, &u.Email, &u.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return &u, nil
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	err := s.pool.QueryRow(ctx,
		`SELECT id, email, password, created_at FROM users WHERE email = $1`, email,
	).Scan(&u.ID, &u.Email, &u.Password, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// DeleteUser removes an account; its books and name go with it.
func (s *PostgresStore) DeleteUser(ctx context.Context, id string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListBooks(ctx context.Context, userID string) ([]models.Book, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+bookColumns+` FROM books WHERE user_id = $1 ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	defer rows.Close()

	books := []models.Book{}
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, fmt.Errorf("scan book: %w", err)
		}
		books = append(books, b)
	}
	return books, rows.Err()
}

func (s *PostgresStore) GetBook(ctx context.Context, userID string, id int64) (*models.Book, error) {
	b, err := scanBook(s.pool.QueryRow(ctx,
		`SELECT `+bookColumns+` FROM books WHERE id = $1 AND user_id = $2`, id, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get book: %w", err)
	}
	return &b, nil
}

func (s *PostgresStore) CreateBook(ctx context.Context, userID string, in models.NewBook) (*models.Book, error) {
	b, err := scanBook(s.pool.QueryRow(ctx,
		`INSERT INTO books (user_id, title, author, genre, description, rating, started_reading_on, finished_reading_on)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING `+bookColumns,
		userID, in.Title, in.Author, in.Genre, in.Description, in.Rating, in.StartedReadingOn, in.FinishedReadingOn))
	if err != nil {
		return nil, fmt.Errorf("create book: %w", err)
	}
	return &b, nil
}

func (s *PostgresStore) UpdateBook(ctx context.Context, userID string, id int64, upd models.BookUpdate) (int, error) {
	query, args, err := buildUpdate(upd, userID, id, func(i int) string { return fmt.Sprintf("$%d", i) })
	if err != nil {
		return 0, err
	}
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("update book: %w", err)
	}
	return statusFor(tag.RowsAffected()), nil
}

func (s *PostgresStore) DeleteBook(ctx context.Context, userID string, id int64) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM books WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return 0, fmt.Errorf("delete book: %w", err)
	}
	return statusFor(tag.RowsAffected()), nil
}

func (s *PostgresStore) GetName(ctx context.Context, userID string) (string, error) {
	var name string
	err := s.pool.QueryRow(ctx, `SELECT name FROM user_names WHERE user_id = $1`, userID).Scan(&name)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	return name, err
}

func (s *PostgresStore) SetName(ctx context.Context, userID, name string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO user_names (user_id, name) VALUES ($1, $2)
		 ON CONFLICT (user_id) DO UPDATE SET name = EXCLUDED.name`, userID, name)
	return err
}

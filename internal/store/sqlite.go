package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/ayush/bookshelf/backend/internal/models"
)

// SQLiteStore is the single-file counterpart of PostgresStore, used for
// local runs and tests.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path. Use ":memory:" for
// a throwaway database.
func OpenSQLite(path string) (*SQLiteStore, error) {
	dsn := ":memory:"
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create db dir: %w", err)
			}
		}
		dsn = fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=1", path)
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// An in-memory database lives per connection.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS users (
			id         TEXT PRIMARY KEY,
			email      TEXT UNIQUE NOT NULL,
			password   TEXT NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE TABLE IF NOT EXISTS user_names (
			user_id TEXT PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
			name    TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS books (
			id                  INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id             TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			title               TEXT,
			author              TEXT,
			genre               TEXT,
			description         TEXT,
			cover_image         TEXT,
			rating              REAL,
			started_reading_on  DATE,
			finished_reading_on DATE,
			created_at          DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS books_user_id_idx ON books (user_id);
	`)
	return err
}

func (s *SQLiteStore) CreateUser(ctx context.Context, email, hashedPassword string) (*models.User, error) {
	u := models.User{ID: uuid.NewString(), Email: email, CreatedAt: time.Now().UTC()}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, email, password, created_at) VALUES (?, ?, ?, ?)`,
		u.ID, u.Email, hashedPassword, u.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return &u, nil
}

func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, password, created_at FROM users WHERE email = ?`, email,
	).Scan(&u.ID, &u.Email, &u.Password, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// DeleteUser removes an account; its books and name go with it.
func (s *SQLiteStore) DeleteUser(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListBooks(ctx context.Context, userID string) ([]models.Book, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+bookColumns+` FROM books WHERE user_id = ? ORDER BY id`, userID)
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

func (s *SQLiteStore) GetBook(ctx context.Context, userID string, id int64) (*models.Book, error) {
	b, err := scanBook(s.db.QueryRowContext(ctx,
		`SELECT `+bookColumns+` FROM books WHERE id = ? AND user_id = ?`, id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get book: %w", err)
	}
	return &b, nil
}

func (s *SQLiteStore) CreateBook(ctx context.Context, userID string, in models.NewBook) (*models.Book, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO books (user_id, title, author, genre, description, rating, started_reading_on, finished_reading_on, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		userID, in.Title, in.Author, in.Genre, in.Description, in.Rating, in.StartedReadingOn, in.FinishedReadingOn, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("create book: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("create book: %w", err)
	}
	return s.GetBook(ctx, userID, id)
}

func (s *SQLiteStore) UpdateBook(ctx context.Context, userID string, id int64, upd models.BookUpdate) (int, error) {
	query, args, err := buildUpdate(upd, userID, id, func(int) string { return "?" })
	if err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("update book: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("update book: %w", err)
	}
	return statusFor(n), nil
}

func (s *SQLiteStore) DeleteBook(ctx context.Context, userID string, id int64) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM books WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return 0, fmt.Errorf("delete book: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete book: %w", err)
	}
	return statusFor(n), nil
}

func (s *SQLiteStore) GetName(ctx context.Context, userID string) (string, error) {
	var name string
	err := s.db.QueryRowContext(ctx, `SELECT name FROM user_names WHERE user_id = ?`, userID).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	return name, err
}

func (s *SQLiteStore) SetName(ctx context.Context, userID, name string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO user_names (user_id, name) VALUES (?, ?)
		 ON CONFLICT (user_id) DO UPDATE SET name = excluded.name`, userID, name)
	return err
}

package shelf

import (
	"context"
	"io"

	"github.com/ayush/bookshelf/backend/internal/models"
)

// BookStore is the books table, filtered by owner. Writes return an
// HTTP-style status; only http.StatusNoContent confirms a change.
type BookStore interface {
	ListBooks(ctx context.Context, userID string) ([]models.Book, error)
	GetBook(ctx context.Context, userID string, id int64) (*models.Book, error)
	CreateBook(ctx context.Context, userID string, in models.NewBook) (*models.Book, error)
	UpdateBook(ctx context.Context, userID string, id int64, upd models.BookUpdate) (int, error)
	DeleteBook(ctx context.Context, userID string, id int64) (int, error)
}

// NameStore is the user_names table.
type NameStore interface {
	GetName(ctx context.Context, userID string) (string, error)
}

// CoverStore is the object bucket for cover images.
type CoverStore interface {
	Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	PublicURL(key string) string
	Remove(ctx context.Context, key string) error
}

// SignOuter ends a session with the auth backend.
type SignOuter interface {
	SignOut(ctx context.Context, sessionID string) error
}

// Client is the handle through which a UserState reaches the backend.
type Client struct {
	Books  BookStore
	Names  NameStore
	Covers CoverStore
	Auth   SignOuter
}

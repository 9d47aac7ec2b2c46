package shelf

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"

	"github.com/ayush/bookshelf/backend/internal/models"
)

// fakeBooks is an in-memory BookStore whose hooks can override results.
type fakeBooks struct {
	mu      sync.Mutex
	books   []models.Book
	updates []models.BookUpdate

	listFn   func(ctx context.Context, userID string) ([]models.Book, error)
	updateFn func(id int64, upd models.BookUpdate) (int, error)
	deleteFn func(id int64) (int, error)
}

func (f *fakeBooks) ListBooks(ctx context.Context, userID string) ([]models.Book, error) {
	if f.listFn != nil {
		return f.listFn(ctx, userID)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Book, len(f.books))
	copy(out, f.books)
	return out, nil
}

func (f *fakeBooks) GetBook(ctx context.Context, userID string, id int64) (*models.Book, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range f.books {
		if b.ID == id && b.UserID == userID {
			return &b, nil
		}
	}
	return nil, errors.New("not found")
}

func (f *fakeBooks) CreateBook(ctx context.Context, userID string, in models.NewBook) (*models.Book, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b := models.Book{ID: int64(len(f.books) + 100), UserID: userID, Title: in.Title, Rating: in.Rating}
	f.books = append(f.books, b)
	return &b, nil
}

func (f *fakeBooks) UpdateBook(ctx context.Context, userID string, id int64, upd models.BookUpdate) (int, error) {
	f.mu.Lock()
	f.updates = append(f.updates, upd)
	f.mu.Unlock()
	if f.updateFn != nil {
		return f.updateFn(id, upd)
	}
	return http.StatusNoContent, nil
}

func (f *fakeBooks) DeleteBook(ctx context.Context, userID string, id int64) (int, error) {
	if f.deleteFn != nil {
		return f.deleteFn(id)
	}
	return http.StatusNoContent, nil
}

type fakeNames struct {
	name string
	err  error
}

func (f *fakeNames) GetName(ctx context.Context, userID string) (string, error) {
	return f.name, f.err
}

type fakeCovers struct {
	keys    []string
	data    []string
	removed []string
	err     error
}

func (f *fakeCovers) Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	if f.err != nil {
		return f.err
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.keys = append(f.keys, key)
	f.data = append(f.data, string(b))
	return nil
}

func (f *fakeCovers) PublicURL(key string) string {
	return "https://covers.test/bookcovers/" + key
}

func (f *fakeCovers) Remove(ctx context.Context, key string) error {
	f.removed = append(f.removed, key)
	return nil
}

type fakeAuth struct {
	signedOut []string
	err       error
}

func (f *fakeAuth) SignOut(ctx context.Context, sessionID string) error {
	f.signedOut = append(f.signedOut, sessionID)
	return f.err
}

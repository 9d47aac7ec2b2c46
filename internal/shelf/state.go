// Package shelf holds the per-session view of a user's books: a cache of
// the books table refreshed from the backend and patched after confirmed
// writes.
package shelf

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/ayush/bookshelf/backend/internal/models"
)

// Navigation targets returned by operations that end on another page.
const (
	DashboardPath = "/private/dashboard"
	LoginPath     = "/login"
)

// HighestRatedLimit caps HighestRated.
const HighestRatedLimit = 5

var (
	ErrNoUser       = errors.New("no authenticated user")
	ErrNoClient     = errors.New("no backend client")
	ErrNotConfirmed = errors.New("backend did not confirm the write")
)

// Options tune a UserState.
type Options struct {
	// StayOnFailedDelete makes DeleteBook return no redirect when the
	// backend does not confirm the delete. By default the dashboard is
	// returned either way.
	StayOnFailedDelete bool
	// Now is the clock used for cover object keys.
	Now func() time.Time
}

// Upload is a file received from the client.
type Upload struct {
	Name        string
	Size        int64
	ContentType string
	Body        io.Reader
}

// UserState is the view of one session. It is safe for concurrent use.
type UserState struct {
	opts   Options
	logger *log.Logger

	mu       sync.Mutex
	session  *models.Session
	client   *Client
	user     *models.User
	books    []models.Book
	userName *string
	// refreshSeq is bumped by every UpdateState; a refresh only applies
	// its result if no newer one started meanwhile.
	refreshSeq uint64
}

// New returns an empty UserState. Call UpdateState to attach a session.
func New(opts Options, logger *log.Logger) *UserState {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if logger == nil {
		logger = log.Default()
	}
	return &UserState{opts: opts, logger: logger}
}

// UpdateState replaces the identity fields and reloads the books and
// display name. On failure the previous cache is kept.
func (s *UserState) UpdateState(ctx context.Context, session *models.Session, client *Client, user *models.User) error {
	s.mu.Lock()
	s.session = session
	s.client = client
	s.user = user
	s.refreshSeq++
	seq := s.refreshSeq
	s.mu.Unlock()

	return s.refresh(ctx, seq)
}

func (s *UserState) refresh(ctx context.Context, seq uint64) error {
	client, user, err := s.identity()
	if err != nil {
		return err
	}

	var (
		books []models.Book
		name  string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		books, err = client.Books.ListBooks(gctx, user.ID)
		if err != nil {
			return fmt.Errorf("fetch books: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		name, err = client.Names.GetName(gctx, user.ID)
		if err != nil {
			return fmt.Errorf("fetch user name: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		s.logger.Error("error while fetching the user's data", "user_id", user.ID, "err", err)
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if seq != s.refreshSeq {
		s.logger.Debug("discarding stale refresh", "user_id", user.ID, "seq", seq, "latest", s.refreshSeq)
		return nil
	}
	s.books = books
	s.userName = &name
	return nil
}

func (s *UserState) identity() (*Client, *models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return nil, nil, ErrNoUser
	}
	if s.client == nil {
		return nil, nil, ErrNoClient
	}
	return s.client, s.user, nil
}

// Session returns the current session, or nil.
func (s *UserState) Session() *models.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session
}

// User returns the current user, or nil.
func (s *UserState) User() *models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

// UserName returns the display name, and false before the first
// successful refresh.
func (s *UserState) UserName() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.userName == nil {
		return "", false
	}
	return *s.userName, true
}

// Books returns a copy of the cached books in fetch order.
func (s *UserState) Books() []models.Book {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.books)
}

// HighestRated returns up to five rated books, best first. Books with
// equal ratings keep their fetch order.
func (s *UserState) HighestRated() []models.Book {
	rated := []models.Book{}
	for _, b := range s.Books() {
		if b.Rated() {
			rated = append(rated, b)
		}
	}
	slices.SortStableFunc(rated, func(a, z models.Book) int {
		switch {
		case *a.Rating > *z.Rating:
			return -1
		case *a.Rating < *z.Rating:
			return 1
		}
		return 0
	})
	if len(rated) > HighestRatedLimit {
		rated = rated[:HighestRatedLimit]
	}
	return rated
}

// Unread returns the books with no start date.
func (s *UserState) Unread() []models.Book {
	unread := []models.Book{}
	for _, b := range s.Books() {
		if b.StartedReadingOn == nil {
			unread = append(unread, b)
		}
	}
	return unread
}

// AddBook creates a book and appends it to the cache.
func (s *UserState) AddBook(ctx context.Context, in models.NewBook) (*models.Book, error) {
	client, user, err := s.identity()
	if err != nil {
		return nil, err
	}
	b, err := client.Books.CreateBook(ctx, user.ID, in)
	if err != nil {
		s.logger.Error("create book failed", "user_id", user.ID, "err", err)
		return nil, err
	}

	s.mu.Lock()
	s.books = append(s.books, *b)
	s.mu.Unlock()
	return b, nil
}

// UpdateBook sends a partial update for one book. The cached copy is
// patched only once the backend confirms with 204.
func (s *UserState) UpdateBook(ctx context.Context, id int64, upd models.BookUpdate) error {
	client, user, err := s.identity()
	if err != nil {
		return err
	}
	status, err := client.Books.UpdateBook(ctx, user.ID, id, upd)
	if err != nil {
		s.logger.Error("update book failed", "user_id", user.ID, "book_id", id, "err", err)
		return err
	}
	if status != http.StatusNoContent {
		s.logger.Warn("update book not confirmed", "user_id", user.ID, "book_id", id, "status", status)
		return fmt.Errorf("%w: status %d", ErrNotConfirmed, status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i, b := range s.books {
		if b.ID == id {
			s.books[i] = upd.Apply(b)
		}
	}
	return nil
}

// CoverKey is the object key of an uploaded cover: namespaced by user
// and upload time in milliseconds.
func CoverKey(userID string, at time.Time, fileName string) string {
	return fmt.Sprintf("%s/%d_%s", userID, at.UnixMilli(), path.Base(fileName))
}

// UploadBookCover stores the file and points the book's cover at its
// public URL. The book is left untouched if the upload fails, and the
// object is removed again if the book update fails.
func (s *UserState) UploadBookCover(ctx context.Context, file Upload, bookID int64) (string, error) {
	client, user, err := s.identity()
	if err != nil {
		return "", err
	}
	if client.Covers == nil {
		return "", ErrNoClient
	}
	key := CoverKey(user.ID, s.opts.Now(), file.Name)
	if err := client.Covers.Upload(ctx, key, file.Body, file.Size, file.ContentType); err != nil {
		s.logger.Error("cover upload failed", "user_id", user.ID, "book_id", bookID, "key", key, "err", err)
		return "", err
	}

	publicURL := client.Covers.PublicURL(key)
	if err := s.UpdateBook(ctx, bookID, models.BookUpdate{CoverImage: models.SetTo(publicURL)}); err != nil {
		if rerr := client.Covers.Remove(context.WithoutCancel(ctx), key); rerr != nil {
			s.logger.Warn("orphaned cover not removed", "user_id", user.ID, "book_id", bookID, "key", key, "err", rerr)
		}
		return "", err
	}
	return publicURL, nil
}

// DeleteBook removes a book and returns where to send the user. The cache
// entry is dropped only on a confirmed delete. Unless StayOnFailedDelete
// is set the dashboard is returned even when the delete failed.
func (s *UserState) DeleteBook(ctx context.Context, id int64) (string, error) {
	err := s.deleteBook(ctx, id)
	if err != nil && s.opts.StayOnFailedDelete {
		return "", err
	}
	return DashboardPath, err
}

func (s *UserState) deleteBook(ctx context.Context, id int64) error {
	client, user, err := s.identity()
	if err != nil {
		return err
	}
	status, err := client.Books.DeleteBook(ctx, user.ID, id)
	if err != nil {
		s.logger.Error("delete book failed", "user_id", user.ID, "book_id", id, "err", err)
		return err
	}
	if status != http.StatusNoContent {
		s.logger.Warn("delete book not confirmed", "user_id", user.ID, "book_id", id, "status", status)
		return fmt.Errorf("%w: status %d", ErrNotConfirmed, status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.books = slices.DeleteFunc(s.books, func(b models.Book) bool { return b.ID == id })
	return nil
}

// Logout ends the session with the backend when one is attached and
// always returns the login page.
func (s *UserState) Logout(ctx context.Context) (string, error) {
	s.mu.Lock()
	client, session := s.client, s.session
	s.mu.Unlock()

	if client == nil || client.Auth == nil || session == nil {
		return LoginPath, nil
	}
	if err := client.Auth.SignOut(ctx, session.ID); err != nil {
		s.logger.Warn("sign out failed", "user_id", session.UserID, "err", err)
		return LoginPath, err
	}
	return LoginPath, nil
}

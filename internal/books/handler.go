// Package books serves the private book pages: the dashboard, the single
// book loader and the write actions that go through the session's
// UserState.
package books

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"

	"github.com/ayush/bookshelf/backend/internal/models"
	"github.com/ayush/bookshelf/backend/internal/shelf"
	"github.com/ayush/bookshelf/backend/internal/store"
)

// maxCoverSize bounds a cover upload.
const maxCoverSize = 10 << 20

// ErrNotFound is returned by Load when no book matches.
var ErrNotFound = errors.New("book not found")

// BookReader fetches a single book.
type BookReader interface {
	GetBook(ctx context.Context, userID string, id int64) (*models.Book, error)
}

// Load fetches one book of the user by its path id. An id that does not
// parse matches nothing.
func Load(ctx context.Context, books BookReader, userID, rawID string) (*models.Book, error) {
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		return nil, ErrNotFound
	}
	b, err := books.GetBook(ctx, userID, id)
	if errors.Is(err, store.ErrNotFound) || (err == nil && b == nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// Handler holds book HTTP handlers.
type Handler struct {
	books  BookReader
	logger *log.Logger
}

func NewHandler(books BookReader, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{books: books, logger: logger}
}

// Routes mounts the handlers on r; the caller provides authentication.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/dashboard", h.Dashboard)
	r.Post("/books", h.Create)
	r.Get("/books/{bookId}", h.Get)
	r.Patch("/books/{bookId}", h.Update)
	r.Delete("/books/{bookId}", h.Delete)
	r.Post("/books/{bookId}/cover", h.UploadCover)
}

func userState(w http.ResponseWriter, r *http.Request) (*shelf.UserState, bool) {
	st, ok := shelf.FromContext(r.Context())
	if !ok {
		http.Error(w, `{"error":"not authenticated"}`, http.StatusUnauthorized)
	}
	return st, ok
}

func bookID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "bookId"), 10, 64)
	if err != nil {
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
		return 0, false
	}
	return id, true
}

// writeErr maps a UserState error to a status.
func writeErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shelf.ErrNoUser), errors.Is(err, shelf.ErrNoClient):
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": err.Error()})
	case errors.Is(err, models.ErrEmptyUpdate):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, shelf.ErrNotConfirmed):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	default:
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "backend request failed"})
	}
}

type dashboard struct {
	UserName     string        `json:"user_name"`
	Books        []models.Book `json:"books"`
	HighestRated []models.Book `json:"highest_rated"`
	Unread       []models.Book `json:"unread"`
}

// Dashboard returns the session's cached books and derived lists.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	st, ok := userState(w, r)
	if !ok {
		return
	}
	name, _ := st.UserName()
	books := st.Books()
	if books == nil {
		books = []models.Book{}
	}
	writeJSON(w, http.StatusOK, dashboard{
		UserName:     name,
		Books:        books,
		HighestRated: st.HighestRated(),
		Unread:       st.Unread(),
	})
}

// Create adds a book to the user's shelf.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	st, ok := userState(w, r)
	if !ok {
		return
	}
	var in models.NewBook
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
		return
	}
	b, err := st.AddBook(r.Context(), in)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

// Get is the single book loader.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	st, ok := userState(w, r)
	if !ok {
		return
	}
	user := st.User()
	if user == nil {
		writeErr(w, shelf.ErrNoUser)
		return
	}
	b, err := Load(r.Context(), h.books, user.ID, chi.URLParam(r, "bookId"))
	if errors.Is(err, ErrNotFound) {
		http.Error(w, `{"error":"Book not found"}`, http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.Error("load book failed", "book_id", chi.URLParam(r, "bookId"), "err", err)
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]*models.Book{"book": b})
}

// Update applies a partial update from the JSON body.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	st, ok := userState(w, r)
	if !ok {
		return
	}
	id, ok := bookID(w, r)
	if !ok {
		return
	}
	var upd models.BookUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
		return
	}
	if err := st.UpdateBook(r.Context(), id, upd); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Delete removes a book and redirects where the UserState says.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	st, ok := userState(w, r)
	if !ok {
		return
	}
	id, ok := bookID(w, r)
	if !ok {
		return
	}
	to, err := st.DeleteBook(r.Context(), id)
	if to != "" {
		http.Redirect(w, r, to, http.StatusSeeOther)
		return
	}
	writeErr(w, err)
}

// UploadCover stores a multipart "file" as the book's cover.
func (h *Handler) UploadCover(w http.ResponseWriter, r *http.Request) {
	st, ok := userState(w, r)
	if !ok {
		return
	}
	id, ok := bookID(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxCoverSize)
	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, `{"error":"file is required"}`, http.StatusBadRequest)
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	if !strings.HasPrefix(contentType, "image/") {
		http.Error(w, `{"error":"cover must be an image"}`, http.StatusBadRequest)
		return
	}

	url, err := st.UploadBookCover(r.Context(), shelf.Upload{
		Name:        header.Filename,
		Size:        header.Size,
		ContentType: contentType,
		Body:        file,
	}, id)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"cover_image": url})
}

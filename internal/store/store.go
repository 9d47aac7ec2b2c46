// Package store holds the backends behind the book tracker: relational
// rows (Postgres or SQLite), display names (Mongo or SQL), cover objects
// (MinIO) and the Redis client used for sessions.
package store

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/ayush/bookshelf/backend/internal/models"
)

// ErrNotFound is returned when a filtered read matches no row.
var ErrNotFound = errors.New("not found")

// Write operations report an HTTP-style status alongside any error:
// StatusNoContent when a row changed, StatusNotFound when the filter
// matched nothing.
const (
	StatusNoContent = http.StatusNoContent
	StatusNotFound  = http.StatusNotFound
)

func statusFor(rowsAffected int64) int {
	if rowsAffected == 0 {
		return StatusNotFound
	}
	return StatusNoContent
}

// buildUpdate renders the SET clause of a books update. placeholder maps
// a 1-based argument index to the driver's bind syntax.
func buildUpdate(upd models.BookUpdate, userID string, id int64, placeholder func(int) string) (string, []any, error) {
	cols := upd.Columns()
	if len(cols) == 0 {
		return "", nil, models.ErrEmptyUpdate
	}
	sets := make([]string, 0, len(cols))
	args := make([]any, 0, len(cols)+2)
	for i, c := range cols {
		sets = append(sets, fmt.Sprintf("%s = %s", c.Name, placeholder(i+1)))
		args = append(args, c.Value)
	}
	n := len(cols)
	query := fmt.Sprintf("UPDATE books SET %s WHERE id = %s AND user_id = %s",
		strings.Join(sets, ", "), placeholder(n+1), placeholder(n+2))
	args = append(args, id, userID)
	return query, args, nil
}

const bookColumns = `id, user_id, title, author, genre, description, cover_image,
	rating, started_reading_on, finished_reading_on, created_at`

// rowScanner is satisfied by pgx.Row, pgx.Rows, *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanBook(row rowScanner) (models.Book, error) {
	var b models.Book
	err := row.Scan(&b.ID, &b.UserID, &b.Title, &b.Author, &b.Genre, &b.Description,
		&b.CoverImage, &b.Rating, &b.StartedReadingOn, &b.FinishedReadingOn, &b.CreatedAt)
	return b, err
}

package models

import (
	"errors"
	"time"
)

// ErrEmptyUpdate is returned when a partial update carries no fields.
var ErrEmptyUpdate = errors.New("update has no fields")

// Book is one row of the books table, owned by a single user.
type Book struct {
	ID                int64     `json:"id"`
	UserID            string    `json:"user_id"`
	Title             *string   `json:"title"`
	Author            *string   `json:"author"`
	Genre             *string   `json:"genre"`
	Description       *string   `json:"description"`
	CoverImage        *string   `json:"cover_image"`
	Rating            *float64  `json:"rating"`
	StartedReadingOn  *Date     `json:"started_reading_on"`
	FinishedReadingOn *Date     `json:"finished_reading_on"`
	CreatedAt         time.Time `json:"created_at"`
}

// Rated reports whether the book carries a usable rating. A zero rating
// counts as unrated.
func (b Book) Rated() bool {
	return b.Rating != nil && *b.Rating != 0
}

// NewBook is the JSON body for POST /private/books.
type NewBook struct {
	Title             *string  `json:"title"`
	Author            *string  `json:"author"`
	Genre             *string  `json:"genre"`
	Description       *string  `json:"description"`
	Rating            *float64 `json:"rating"`
	StartedReadingOn  *Date    `json:"started_reading_on"`
	FinishedReadingOn *Date    `json:"finished_reading_on"`
}

// BookUpdate holds the fields a client may change. Identity, ownership and
// creation time have no representation here and so can never be sent.
type BookUpdate struct {
	Title             Patch[string]  `json:"title"`
	Author            Patch[string]  `json:"author"`
	Genre             Patch[string]  `json:"genre"`
	Description       Patch[string]  `json:"description"`
	CoverImage        Patch[string]  `json:"cover_image"`
	Rating            Patch[float64] `json:"rating"`
	StartedReadingOn  Patch[Date]    `json:"started_reading_on"`
	FinishedReadingOn Patch[Date]    `json:"finished_reading_on"`
}

// Column is one assignment of an outgoing update.
type Column struct {
	Name  string
	Value any
}

// Columns lists the assignments of u in a fixed order.
func (u BookUpdate) Columns() []Column {
	var cols []Column
	add := func(name string, set bool, v any) {
		if set {
			cols = append(cols, Column{Name: name, Value: v})
		}
	}
	add("title", u.Title.Set, u.Title.value())
	add("author", u.Author.Set, u.Author.value())
	add("genre", u.Genre.Set, u.Genre.value())
	add("description", u.Description.Set, u.Description.value())
	add("cover_image", u.CoverImage.Set, u.CoverImage.value())
	add("rating", u.Rating.Set, u.Rating.value())
	add("started_reading_on", u.StartedReadingOn.Set, u.StartedReadingOn.value())
	add("finished_reading_on", u.FinishedReadingOn.Set, u.FinishedReadingOn.value())
	return cols
}

// Empty reports whether u changes nothing.
func (u BookUpdate) Empty() bool {
	return len(u.Columns()) == 0
}

// Apply returns b with the set fields of u merged in.
func (u BookUpdate) Apply(b Book) Book {
	u.Title.apply(&b.Title)
	u.Author.apply(&b.Author)
	u.Genre.apply(&b.Genre)
	u.Description.apply(&b.Description)
	u.CoverImage.apply(&b.CoverImage)
	u.Rating.apply(&b.Rating)
	u.StartedReadingOn.apply(&b.StartedReadingOn)
	u.FinishedReadingOn.apply(&b.FinishedReadingOn)
	return b
}

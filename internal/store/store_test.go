package store

import (
	"context"
	"errors"
	"testing"

	"github.com/ayush/bookshelf/backend/internal/models"
)

// setupTestStore creates an in-memory SQLite store with migrations applied
func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	s, err := OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}
	return s
}

func mustCreateUser(t *testing.T, s *SQLiteStore, email string) *models.User {
	t.Helper()
	u, err := s.CreateUser(context.Background(), email, "hash")
	if err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	return u
}

func strPtr(s string) *string { return &s }

func TestUsers(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)

	u := mustCreateUser(t, s, "reader@example.com")
	if u.ID == "" {
		t.Fatal("user ID should be set after creation")
	}

	got, err := s.GetUserByEmail(ctx, "reader@example.com")
	if err != nil {
		t.Fatalf("failed to get user: %v", err)
	}
	if got.ID != u.ID || got.Password != "hash" {
		t.Errorf("unexpected user %+v", got)
	}

	if _, err := s.GetUserByEmail(ctx, "nobody@example.com"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	if _, err := s.CreateUser(ctx, "reader@example.com", "other"); err == nil {
		t.Error("expected duplicate email to fail")
	}

	if err := s.SetName(ctx, u.ID, "Reader"); err != nil {
		t.Fatalf("failed to set name: %v", err)
	}
	if err := s.DeleteUser(ctx, u.ID); err != nil {
		t.Fatalf("failed to delete user: %v", err)
	}
	if _, err := s.GetUserByEmail(ctx, "reader@example.com"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if _, err := s.GetName(ctx, u.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected name removed with the user, got %v", err)
	}
	if _, err := s.CreateUser(ctx, "reader@example.com", "again"); err != nil {
		t.Errorf("email should be free after delete: %v", err)
	}
}

func TestBooks(t *testing.T) {
	ctx := context.Background()

	t.Run("Create and list in insertion order", func(t *testing.T) {
		s := setupTestStore(t)
		u := mustCreateUser(t, s, "a@example.com")
		other := mustCreateUser(t, s, "b@example.com")

		rating := 4.5
		start := models.NewDate(2024, 2, 1)
		for _, title := range []string{"First", "Second"} {
			if _, err := s.CreateBook(ctx, u.ID, models.NewBook{Title: strPtr(title), Rating: &rating, StartedReadingOn: &start}); err != nil {
				t.Fatalf("failed to create book: %v", err)
			}
		}
		if _, err := s.CreateBook(ctx, other.ID, models.NewBook{Title: strPtr("Theirs")}); err != nil {
			t.Fatalf("failed to create book: %v", err)
		}

		books, err := s.ListBooks(ctx, u.ID)
		if err != nil {
			t.Fatalf("failed to list books: %v", err)
		}
		if len(books) != 2 {
			t.Fatalf("expected 2 books, got %d", len(books))
		}
		if *books[0].Title != "First" || *books[1].Title != "Second" {
			t.Errorf("unexpected order: %s, %s", *books[0].Title, *books[1].Title)
		}
		if books[0].Rating == nil || *books[0].Rating != 4.5 {
			t.Errorf("expected rating 4.5, got %v", books[0].Rating)
		}
		if books[0].StartedReadingOn == nil || books[0].StartedReadingOn.String() != "2024-02-01" {
			t.Errorf("expected start 2024-02-01, got %v", books[0].StartedReadingOn)
		}
		if books[0].Author != nil || books[0].FinishedReadingOn != nil {
			t.Error("unset columns should scan as nil")
		}
	})

	t.Run("Get is scoped to the owner", func(t *testing.T) {
		s := setupTestStore(t)
		u := mustCreateUser(t, s, "a@example.com")
		other := mustCreateUser(t, s, "b@example.com")

		b, err := s.CreateBook(ctx, u.ID, models.NewBook{Title: strPtr("Mine")})
		if err != nil {
			t.Fatalf("failed to create book: %v", err)
		}

		if _, err := s.GetBook(ctx, u.ID, b.ID); err != nil {
			t.Errorf("owner should see the book: %v", err)
		}
		if _, err := s.GetBook(ctx, other.ID, b.ID); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound for another user, got %v", err)
		}
		if _, err := s.GetBook(ctx, u.ID, b.ID+100); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound for missing id, got %v", err)
		}
	})

	t.Run("Update reports status", func(t *testing.T) {
		s := setupTestStore(t)
		u := mustCreateUser(t, s, "a@example.com")
		b, err := s.CreateBook(ctx, u.ID, models.NewBook{Title: strPtr("Draft"), Genre: strPtr("fantasy")})
		if err != nil {
			t.Fatalf("failed to create book: %v", err)
		}

		status, err := s.UpdateBook(ctx, u.ID, b.ID, models.BookUpdate{
			Title: models.SetTo("Final"),
			Genre: models.Clear[string](),
		})
		if err != nil {
			t.Fatalf("failed to update book: %v", err)
		}
		if status != StatusNoContent {
			t.Errorf("expected %d, got %d", StatusNoContent, status)
		}

		got, err := s.GetBook(ctx, u.ID, b.ID)
		if err != nil {
			t.Fatalf("failed to get book: %v", err)
		}
		if *got.Title != "Final" || got.Genre != nil {
			t.Errorf("unexpected book after update: %+v", got)
		}
		if !got.CreatedAt.Equal(b.CreatedAt) {
			t.Error("created_at must not change")
		}

		status, err = s.UpdateBook(ctx, u.ID, b.ID+1, models.BookUpdate{Title: models.SetTo("x")})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if status != StatusNotFound {
			t.Errorf("expected %d for missing row, got %d", StatusNotFound, status)
		}

		if _, err := s.UpdateBook(ctx, u.ID, b.ID, models.BookUpdate{}); !errors.Is(err, models.ErrEmptyUpdate) {
			t.Errorf("expected ErrEmptyUpdate, got %v", err)
		}
	})

	t.Run("Delete reports status", func(t *testing.T) {
		s := setupTestStore(t)
		u := mustCreateUser(t, s, "a@example.com")
		b, err := s.CreateBook(ctx, u.ID, models.NewBook{Title: strPtr("Gone")})
		if err != nil {
			t.Fatalf("failed to create book: %v", err)
		}

		status, err := s.DeleteBook(ctx, u.ID, b.ID)
		if err != nil || status != StatusNoContent {
			t.Fatalf("expected %d, got %d (%v)", StatusNoContent, status, err)
		}
		status, err = s.DeleteBook(ctx, u.ID, b.ID)
		if err != nil || status != StatusNotFound {
			t.Errorf("expected %d on second delete, got %d (%v)", StatusNotFound, status, err)
		}
	})
}

func TestNames(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)
	u := mustCreateUser(t, s, "a@example.com")

	if _, err := s.GetName(ctx, u.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound before set, got %v", err)
	}
	if err := s.SetName(ctx, u.ID, "Ada"); err != nil {
		t.Fatalf("failed to set name: %v", err)
	}
	if err := s.SetName(ctx, u.ID, "Ada L."); err != nil {
		t.Fatalf("failed to overwrite name: %v", err)
	}
	name, err := s.GetName(ctx, u.ID)
	if err != nil {
		t.Fatalf("failed to get name: %v", err)
	}
	if name != "Ada L." {
		t.Errorf("expected 'Ada L.', got %q", name)
	}
}

func TestBuildUpdate(t *testing.T) {
	query, args, err := buildUpdate(models.BookUpdate{
		Author: models.SetTo("Le Guin"),
		Rating: models.Clear[float64](),
	}, "u-1", 9, func(i int) string { return "?" })
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := "UPDATE books SET author = ?, rating = ? WHERE id = ? AND user_id = ?"
	if query != expected {
		t.Errorf("expected %q, got %q", expected, query)
	}
	if len(args) != 4 || args[0] != "Le Guin" || args[1] != nil || args[2] != int64(9) || args[3] != "u-1" {
		t.Errorf("unexpected args %v", args)
	}
}

func TestMinioPublicURL(t *testing.T) {
	s := &MinioStore{bucket: "bookcovers", publicBase: publicBase("http://localhost:9000/", "bookcovers")}

	got := s.PublicURL("user-1/1700000000000_my cover.png")
	expected := "http://localhost:9000/bookcovers/user-1/1700000000000_my%20cover.png"
	if got != expected {
		t.Errorf("expected %s, got %s", expected, got)
	}
}

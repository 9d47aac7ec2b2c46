package shelf

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ayush/bookshelf/backend/internal/models"
)

func TestRegistry(t *testing.T) {
	newClient := func() *Client {
		return &Client{
			Books: &fakeBooks{books: []models.Book{{ID: 1, UserID: "user-1"}}},
			Names: &fakeNames{name: "Reader"},
		}
	}

	t.Run("Same session shares one state", func(t *testing.T) {
		r := NewRegistry(Options{}, nil)
		client := newClient()
		sess := &models.Session{ID: "s1", UserID: "user-1"}

		var wg sync.WaitGroup
		states := make([]*UserState, 8)
		for i := range states {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				st, err := r.Acquire(context.Background(), sess, client)
				if err != nil {
					t.Errorf("acquire failed: %v", err)
					return
				}
				states[i] = st
			}(i)
		}
		wg.Wait()

		for _, st := range states[1:] {
			if st != states[0] {
				t.Fatal("expected the same UserState for one session")
			}
		}
		if len(states[0].Books()) != 1 {
			t.Errorf("expected loaded books, got %d", len(states[0].Books()))
		}
		if u := states[0].User(); u == nil || u.ID != "user-1" {
			t.Errorf("unexpected user %+v", u)
		}
	})

	t.Run("Different sessions get different states", func(t *testing.T) {
		r := NewRegistry(Options{}, nil)
		client := newClient()

		a, _ := r.Acquire(context.Background(), &models.Session{ID: "a", UserID: "user-1"}, client)
		b, _ := r.Acquire(context.Background(), &models.Session{ID: "b", UserID: "user-1"}, client)
		if a == b {
			t.Error("expected distinct states")
		}
		if r.Len() != 2 {
			t.Errorf("expected 2 entries, got %d", r.Len())
		}

		r.Drop("a")
		if r.Len() != 1 {
			t.Errorf("expected 1 entry after drop, got %d", r.Len())
		}
	})

	t.Run("Sweep removes idle states", func(t *testing.T) {
		r := NewRegistry(Options{}, nil)
		if _, err := r.Acquire(context.Background(), &models.Session{ID: "a", UserID: "user-1"}, newClient()); err != nil {
			t.Fatalf("acquire failed: %v", err)
		}

		if n := r.Sweep(time.Hour); n != 0 {
			t.Errorf("expected nothing swept, got %d", n)
		}
		if n := r.Sweep(-time.Second); n != 1 {
			t.Errorf("expected 1 swept, got %d", n)
		}
	})

	t.Run("Failed first load is retried", func(t *testing.T) {
		r := NewRegistry(Options{}, nil)
		names := &fakeNames{err: errors.New("names backend down")}
		client := &Client{
			Books: &fakeBooks{books: []models.Book{{ID: 1, UserID: "user-1"}}},
			Names: names,
		}
		sess := &models.Session{ID: "s1", UserID: "user-1"}

		first, err := r.Acquire(context.Background(), sess, client)
		if err != nil {
			t.Fatalf("acquire failed: %v", err)
		}
		if _, ok := first.UserName(); ok {
			t.Fatal("name should not be loaded while the backend is down")
		}

		names.err = nil
		names.name = "Reader"
		second, err := r.Acquire(context.Background(), sess, client)
		if err != nil {
			t.Fatalf("acquire failed: %v", err)
		}
		if second != first {
			t.Error("expected the same state for the session")
		}
		if name, ok := second.UserName(); !ok || name != "Reader" {
			t.Errorf("expected name Reader after recovery, got %q %v", name, ok)
		}
		if len(second.Books()) != 1 {
			t.Errorf("expected 1 book after recovery, got %d", len(second.Books()))
		}
	})

	t.Run("Loaded state is not reloaded", func(t *testing.T) {
		r := NewRegistry(Options{}, nil)
		calls := 0
		client := &Client{
			Books: &fakeBooks{listFn: func(context.Context, string) ([]models.Book, error) {
				calls++
				return nil, nil
			}},
			Names: &fakeNames{name: "Reader"},
		}
		sess := &models.Session{ID: "s1", UserID: "user-1"}
		for i := 0; i < 3; i++ {
			if _, err := r.Acquire(context.Background(), sess, client); err != nil {
				t.Fatalf("acquire failed: %v", err)
			}
		}
		if calls != 1 {
			t.Errorf("expected a single load, got %d", calls)
		}
	})

	t.Run("Cancelled request still loads", func(t *testing.T) {
		r := NewRegistry(Options{}, nil)
		client := &Client{
			Books: &fakeBooks{listFn: func(ctx context.Context, _ string) ([]models.Book, error) {
				if err := ctx.Err(); err != nil {
					return nil, err
				}
				return []models.Book{{ID: 1, UserID: "user-1"}}, nil
			}},
			Names: &fakeNames{name: "Reader"},
		}
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		st, err := r.Acquire(ctx, &models.Session{ID: "s1", UserID: "user-1"}, client)
		if err != nil {
			t.Fatalf("acquire failed: %v", err)
		}
		if len(st.Books()) != 1 {
			t.Errorf("expected the load to ignore cancellation, got %d books", len(st.Books()))
		}
	})

	t.Run("Context round trip", func(t *testing.T) {
		st := New(Options{}, nil)
		got, ok := FromContext(NewContext(context.Background(), st))
		if !ok || got != st {
			t.Error("expected the stored state")
		}
		if _, ok := FromContext(context.Background()); ok {
			t.Error("expected no state on a bare context")
		}
	})
}

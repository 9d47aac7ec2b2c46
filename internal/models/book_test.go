package models

import (
	"encoding/json"
	"testing"
)

func TestBookUpdate(t *testing.T) {
	t.Run("Columns never carry identity fields", func(t *testing.T) {
		bodies := []string{
			`{}`,
			`{"title":"Dune"}`,
			`{"id":7,"user_id":"u-2","created_at":"2024-01-01T00:00:00Z","rating":4}`,
			`{"title":null,"author":"Herbert","genre":"sf","description":"d","cover_image":"x","rating":5,"started_reading_on":"2024-03-01","finished_reading_on":null}`,
		}
		for _, body := range bodies {
			var u BookUpdate
			if err := json.Unmarshal([]byte(body), &u); err != nil {
				t.Fatalf("unmarshal %s: %v", body, err)
			}
			for _, c := range u.Columns() {
				switch c.Name {
				case "id", "user_id", "created_at":
					t.Errorf("body %s produced forbidden column %q", body, c.Name)
				}
			}
		}
	})

	t.Run("Absent keys are untouched and null clears", func(t *testing.T) {
		var u BookUpdate
		if err := json.Unmarshal([]byte(`{"title":null,"rating":3.5}`), &u); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}

		cols := u.Columns()
		if len(cols) != 2 {
			t.Fatalf("expected 2 columns, got %d", len(cols))
		}
		if cols[0].Name != "title" || cols[0].Value != nil {
			t.Errorf("expected title cleared, got %+v", cols[0])
		}
		if cols[1].Name != "rating" || cols[1].Value != 3.5 {
			t.Errorf("expected rating 3.5, got %+v", cols[1])
		}
	})

	t.Run("Apply merges only set fields", func(t *testing.T) {
		title := "Old"
		author := "Someone"
		book := Book{ID: 1, UserID: "u-1", Title: &title, Author: &author}

		u := BookUpdate{
			Title:            SetTo("New"),
			Author:           Clear[string](),
			StartedReadingOn: SetTo(NewDate(2024, 5, 1)),
		}
		got := u.Apply(book)

		if got.ID != 1 || got.UserID != "u-1" {
			t.Errorf("identity changed: %+v", got)
		}
		if got.Title == nil || *got.Title != "New" {
			t.Errorf("expected title New, got %v", got.Title)
		}
		if got.Author != nil {
			t.Errorf("expected author cleared, got %v", *got.Author)
		}
		if got.StartedReadingOn == nil || got.StartedReadingOn.String() != "2024-05-01" {
			t.Errorf("expected start date 2024-05-01, got %v", got.StartedReadingOn)
		}
		if *book.Title != "Old" {
			t.Error("Apply must not mutate its argument")
		}
	})

	t.Run("Empty", func(t *testing.T) {
		if !(BookUpdate{}).Empty() {
			t.Error("zero update should be empty")
		}
		if (BookUpdate{Genre: Clear[string]()}).Empty() {
			t.Error("clearing a field is not empty")
		}
	})
}

func TestBookRated(t *testing.T) {
	zero, four := 0.0, 4.0
	tests := []struct {
		name   string
		rating *float64
		want   bool
	}{
		{"nil", nil, false},
		{"zero", &zero, false},
		{"four", &four, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := (Book{Rating: tt.rating}).Rated(); got != tt.want {
				t.Errorf("Rated() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDate(t *testing.T) {
	t.Run("JSON", func(t *testing.T) {
		var d Date
		if err := json.Unmarshal([]byte(`"2023-11-05"`), &d); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		out, err := json.Marshal(d)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		if string(out) != `"2023-11-05"` {
			t.Errorf("expected \"2023-11-05\", got %s", out)
		}
		if err := json.Unmarshal([]byte(`"05/11/2023"`), &d); err == nil {
			t.Error("expected error for non-ISO date")
		}
	})

	t.Run("Scan", func(t *testing.T) {
		var d Date
		if err := d.Scan("2021-02-03 00:00:00+00:00"); err != nil {
			t.Fatalf("scan text: %v", err)
		}
		if d.String() != "2021-02-03" {
			t.Errorf("expected 2021-02-03, got %s", d)
		}
		if err := d.Scan(42); err == nil {
			t.Error("expected error scanning an int")
		}
	})
}

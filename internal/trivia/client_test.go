package trivia

import (
	"context"
	"errors"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := New(Config{BaseURL: srv.URL, Difficulty: "easy", Timeout: 5 * time.Second}, zerolog.Nop())
	return c.WithRand(rand.New(rand.NewPCG(1, 2)))
}

func TestFetchMapsItems(t *testing.T) {
	var gotQuery map[string]string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		gotQuery = map[string]string{
			"amount":     q.Get("amount"),
			"type":       q.Get("type"),
			"difficulty": q.Get("difficulty"),
			"category":   q.Get("category"),
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"response_code":0,"results":[
			{"category":"Science &amp; Nature","question":"What is H&#039;2O?","correct_answer":"Water","incorrect_answers":["Fire","Air","Earth"]},
			{"category":"History","question":"Year?","correct_answer":"1066","incorrect_answers":["1065","1067","1068"]}
		]}`))
	})

	qs, err := c.Fetch(context.Background(), 2, "17")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if gotQuery["amount"] != "2" || gotQuery["type"] != "multiple" || gotQuery["difficulty"] != "easy" || gotQuery["category"] != "17" {
		t.Fatalf("unexpected query %v", gotQuery)
	}
	if len(qs) != 2 {
		t.Fatalf("got %d questions, want 2", len(qs))
	}

	q := qs[0]
	if q.Text != "What is H'2O?" {
		t.Fatalf("text not unescaped: %q", q.Text)
	}
	if q.Category != "Science & Nature" {
		t.Fatalf("category not unescaped: %q", q.Category)
	}
	if len(q.Options) != 4 {
		t.Fatalf("options = %v", q.Options)
	}
	if q.Options[q.CorrectAnswer] != "Water" {
		t.Fatalf("correct answer index %d points at %q", q.CorrectAnswer, q.Options[q.CorrectAnswer])
	}
	if qs[1].Options[qs[1].CorrectAnswer] != "1066" {
		t.Fatalf("second question misplaced its answer: %v", qs[1])
	}
	if q.ID == "" || q.ID == qs[1].ID {
		t.Fatal("questions need distinct IDs")
	}
}

func TestFetchOmitsEmptyCategory(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Has("category") {
			t.Errorf("category should be omitted, got %q", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`{"response_code":0,"results":[]}`))
	})
	qs, err := c.Fetch(context.Background(), 1, "")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(qs) != 0 {
		t.Fatalf("got %d questions", len(qs))
	}
}

func TestFetchRejectsNonZeroResponseCode(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"response_code":1,"results":[]}`))
	})
	_, err := c.Fetch(context.Background(), 5, "")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Code != 1 {
		t.Fatalf("err = %v, want APIError code 1", err)
	}
}

func TestFetchHTTPError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	})
	if _, err := c.Fetch(context.Background(), 5, ""); err == nil {
		t.Fatal("expected error for 502")
	}
}

func TestFetchAmountBounds(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})
	for _, n := range []int{0, 51} {
		if _, err := c.Fetch(context.Background(), n, ""); err == nil {
			t.Fatalf("amount %d should be rejected", n)
		}
	}
}

func TestArrangeCoversEveryPosition(t *testing.T) {
	c := New(Config{}, zerolog.Nop()).WithRand(rand.New(rand.NewPCG(7, 7)))
	seen := map[int]bool{}
	for i := 0; i < 200; i++ {
		opts, idx := c.arrange("right", []string{"w1", "w2", "w3"})
		if opts[idx] != "right" || len(opts) != 4 {
			t.Fatalf("arrange = %v, %d", opts, idx)
		}
		seen[idx] = true
	}
	if len(seen) != 4 {
		t.Fatalf("correct answer only landed at %v", seen)
	}
}

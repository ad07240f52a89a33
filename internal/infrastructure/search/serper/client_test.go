package serper

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kirillkom/grounded-answer/internal/core/domain"
)

func TestSearchPostsQueryAndCapsResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/search" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("X-API-KEY") != "secret" {
			t.Errorf("missing api key header")
		}
		var req searchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Query != "migraine" || req.Num != 2 || req.GL != "us" {
			t.Errorf("unexpected payload: %+v", req)
		}
		_, _ = w.Write([]byte(`{"organic":[
			{"title":"A","link":"https://a.example"},
			{"title":"B","link":"https://b.example"},
			{"title":"C","link":"https://c.example"}
		]}`))
	}))
	defer server.Close()

	client := New("secret", server.URL, nil)
	hits, err := client.Search(context.Background(), "migraine", "US", 2)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(hits) != 2 || hits[1].Link != "https://b.example" {
		t.Fatalf("unexpected hits: %+v", hits)
	}
}

func TestSearchWithoutKeyIsUnauthorized(t *testing.T) {
	_, err := New("", "", nil).Search(context.Background(), "q", "", 5)
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

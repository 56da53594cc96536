package websearch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

const serperFixture = `{
	"knowledgeGraph": {"title": "Go", "website": "https://go.dev", "description": "A programming language"},
	"organic": [
		{"title": "r1", "link": "https://a/1", "snippet": "s1"},
		{"title": "r2", "link": "https://a/2"},
		{"title": "r3", "link": "https://a/3"},
		{"title": "r4", "link": "https://a/4"},
		{"title": "r5", "link": "https://a/5"},
		{"title": "r6", "link": "https://a/6"}
	],
	"peopleAlsoAsk": [
		{"question": "q1"}, {"question": "q2"}, {"question": "q3"}
	]
}`

func newTestSearcher(t *testing.T, handler http.HandlerFunc) *Searcher {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewSearcher(Config{APIKey: "serper-key", Endpoint: srv.URL}, srv.Client())
}

func TestSearch_Normalizes(t *testing.T) {
	var calls atomic.Int32
	s := newTestSearcher(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if got := r.Header.Get("X-API-KEY"); got != "serper-key" {
			t.Errorf("X-API-KEY = %q", got)
		}
		var body serperRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if body.Q != "golang" || body.GL != "il" || body.HL != "he" {
			t.Errorf("body = %+v", body)
		}
		fmt.Fprint(w, serperFixture)
	})

	resp, err := s.Search(context.Background(), "golang", 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	// knowledge graph + 5 organic + 2 related
	if resp.ResultsCount != 8 || len(resp.Results) != 8 {
		t.Fatalf("results = %d", resp.ResultsCount)
	}
	if resp.Results[0].Type != TypeKnowledgeGraph || resp.Results[0].URL != "https://go.dev" {
		t.Errorf("first = %+v", resp.Results[0])
	}
	if resp.Results[7].Type != TypeRelatedQuestion || resp.Results[7].Title != "q2" {
		t.Errorf("last = %+v", resp.Results[7])
	}
	if resp.Source != Source {
		t.Errorf("source = %q", resp.Source)
	}

	if _, err := s.Search(context.Background(), "GoLang", 0); err != nil {
		t.Fatalf("second Search: %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("upstream calls = %d, want 1 (second call cached)", calls.Load())
	}
}

func TestSearchTool(t *testing.T) {
	tests := []struct {
		name    string
		apiKey  string
		status  int
		wantOK  bool
		wantErr string
	}{
		{"ok", "k", http.StatusOK, true, ""},
		{"missing key", "", http.StatusOK, false, "Missing Serper API key"},
		{"upstream failure", "k", http.StatusForbidden, false, "Serper API error: 403"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, serperFixture)
			}))
			defer srv.Close()

			tool := New(NewSearcher(Config{APIKey: tt.apiKey, Endpoint: srv.URL}, srv.Client()))
			res, err := tool.Execute(context.Background(), nil, json.RawMessage(`{"query":"go","num":2}`))
			if err != nil {
				t.Fatalf("Execute: %v", err)
			}
			if res.Success != tt.wantOK {
				t.Fatalf("success = %v (%s)", res.Success, res.Error)
			}
			if tt.wantErr != "" && !strings.Contains(res.Error, tt.wantErr) {
				t.Errorf("error = %q, want %q", res.Error, tt.wantErr)
			}
			if tt.wantOK {
				if n := res.Data.(*SearchResponse).ResultsCount; n != 5 {
					t.Errorf("results = %d, want 5", n)
				}
			}
		})
	}
}

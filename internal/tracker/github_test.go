package tracker

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
)

func newTestGitHub(t *testing.T, mux *http.ServeMux) *GitHubBackend {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	g, err := NewGitHubBackend("token", "acme/widgets", srv.Client())
	if err != nil {
		t.Fatalf("backend: %v", err)
	}
	base, _ := url.Parse(srv.URL + "/")
	g.client.BaseURL = base
	return g
}

func TestGitHubListOpenTickets(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/widgets/issues", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("state") != "open" || q.Get("sort") != "created" || q.Get("direction") != "desc" || q.Get("per_page") != "50" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		if r.Header.Get("Authorization") != "Bearer token" {
			t.Errorf("missing auth header")
		}
		_ = json.NewEncoder(w).Encode([]map[string]any{
			{"number": 12, "title": "[Bug Report] x", "body": "> x", "html_url": "https://github.com/acme/widgets/issues/12"},
			{"number": 11, "title": "a pr", "body": "> x", "pull_request": map[string]any{"url": "https://api.github.com/pr"}},
		})
	})
	g := newTestGitHub(t, mux)

	tickets, err := g.ListOpenTickets(context.Background(), 50)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(tickets) != 1 || tickets[0].ID != "12" || tickets[0].Body != "> x" {
		t.Fatalf("unexpected tickets %+v", tickets)
	}
}

func TestGitHubCreateTicket(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/widgets/issues", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		var req struct {
			Title  string   `json:"title"`
			Body   string   `json:"body"`
			Labels []string `json:"labels"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Title != "[Bug Report] crash" || len(req.Labels) != 2 {
			t.Errorf("unexpected request %+v", req)
		}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"number": 13, "title": req.Title, "body": req.Body, "html_url": "https://github.com/acme/widgets/issues/13",
		})
	})
	g := newTestGitHub(t, mux)

	ticket, err := g.CreateTicket(context.Background(), "[Bug Report] crash", "> crash", []string{"bug", "needs-triage"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if ticket.ID != "13" || ticket.URL != "https://github.com/acme/widgets/issues/13" {
		t.Fatalf("unexpected ticket %+v", ticket)
	}
}

func TestGitHubLabels(t *testing.T) {
	var created []string
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/widgets/labels", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			_ = json.NewEncoder(w).Encode([]map[string]any{{"name": "bug"}, {"name": "support"}})
		case http.MethodPost:
			var l struct {
				Name  string `json:"name"`
				Color string `json:"color"`
			}
			_ = json.NewDecoder(r.Body).Decode(&l)
			created = append(created, l.Name+":"+l.Color)
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(l)
		}
	})
	g := newTestGitHub(t, mux)

	names, err := g.ListLabels(context.Background())
	if err != nil || len(names) != 2 {
		t.Fatalf("list labels: %v %v", names, err)
	}
	if err := g.CreateLabel(context.Background(), "needs-triage", "7057ff"); err != nil {
		t.Fatalf("create label: %v", err)
	}
	if len(created) != 1 || created[0] != "needs-triage:7057ff" {
		t.Fatalf("unexpected created labels %v", created)
	}
}

func TestSplitRepo(t *testing.T) {
	for _, bad := range []string{"", "acme", "acme/", "/widgets", "a/b/c"} {
		if _, _, err := splitRepo(bad); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
	owner, repo, err := splitRepo("acme/widgets")
	if err != nil || owner != "acme" || repo != "widgets" {
		t.Fatalf("unexpected split %s %s %v", owner, repo, err)
	}
}

package publish

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"feedposter/internal/logger"
)

func TestMain(m *testing.M) {
	logger.Init()
	os.Exit(m.Run())
}

func newTestClient(handler http.HandlerFunc) (*Client, *httptest.Server) {
	srv := httptest.NewServer(handler)
	return NewClient(srv.URL, 5*time.Second), srv
}

func TestSubmitSuccess(t *testing.T) {
	var gotAuth string
	var gotReq submitRequest
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/submit" {
			t.Errorf("path = %s, want /api/submit", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&gotReq)
		json.NewEncoder(w).Encode(apiResponse{URL: "https://pub.example/posts/1"})
	})
	defer srv.Close()

	url, err := c.Submit(context.Background(), "tok", "gamingnews", "Title", "https://example.com/a", "flair-1")
	if err != nil {
		t.Fatalf("Submit error: %v", err)
	}
	if url != "https://pub.example/posts/1" {
		t.Errorf("url = %q", url)
	}
	if gotAuth != "Bearer tok" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotReq.Destination != "gamingnews" || gotReq.Link != "https://example.com/a" || gotReq.FlairID != "flair-1" {
		t.Errorf("request = %+v", gotReq)
	}
}

func TestSubmitDuplicateSignal(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(apiResponse{Error: "ALREADY_SUB", Message: "that link has already been submitted"})
	})
	defer srv.Close()

	_, err := c.Submit(context.Background(), "tok", "dest", "t", "l", "")
	if !errors.Is(err, ErrAlreadySubmitted) {
		t.Fatalf("err = %v, want ErrAlreadySubmitted", err)
	}
}

func TestSubmitGenericRejection(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(apiResponse{Error: "RATELIMIT", Message: "slow down"})
	})
	defer srv.Close()

	_, err := c.Submit(context.Background(), "tok", "dest", "t", "l", "")
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, ErrAlreadySubmitted) {
		t.Fatal("generic rejection must not look like a duplicate")
	}
}

func TestSubmitUnauthorized(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	defer srv.Close()

	_, err := c.Submit(context.Background(), "expired", "dest", "t", "l", "")
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("err = %v, want ErrUnauthorized", err)
	}
}

func TestFetchFlairOptions(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string][]FlairOption{
			"flairs": {{ID: "f1", Text: "News"}, {ID: "f2", Text: "Rumor"}},
		})
	})
	defer srv.Close()

	flairs, err := c.FetchFlairOptions(context.Background(), "tok", "dest")
	if err != nil {
		t.Fatalf("FetchFlairOptions error: %v", err)
	}
	if len(flairs) != 2 || flairs[0].ID != "f1" {
		t.Errorf("flairs = %+v", flairs)
	}
}

func TestValidateDestination(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("name") == "missing" {
			json.NewEncoder(w).Encode(apiResponse{Error: "NOT_FOUND"})
			return
		}
		json.NewEncoder(w).Encode(apiResponse{})
	})
	defer srv.Close()

	if err := c.ValidateDestination(context.Background(), "tok", "exists"); err != nil {
		t.Errorf("valid destination rejected: %v", err)
	}
	if err := c.ValidateDestination(context.Background(), "tok", "missing"); err == nil {
		t.Error("missing destination accepted")
	}
}

func TestAuthenticate(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"token": "session-token"})
	})
	defer srv.Close()

	token, err := c.Authenticate(context.Background(), "user", "pass")
	if err != nil {
		t.Fatalf("Authenticate error: %v", err)
	}
	if token != "session-token" {
		t.Errorf("token = %q", token)
	}
}

package httpc

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"
)

func TestGetJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("q"); got != "pinehurst" {
			t.Errorf("query q = %q, want pinehurst", got)
		}
		if got := r.Header.Get("Authorization"); got != "Key abc" {
			t.Errorf("Authorization = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"name":"ok","count":3}`)
	}))
	defer srv.Close()

	var out struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}
	h := http.Header{}
	h.Set("Authorization", "Key abc")
	err := GetJSON(context.Background(), nil, srv.URL, url.Values{"q": {"pinehurst"}}, h, &out)
	if err != nil {
		t.Fatalf("GetJSON: %v", err)
	}
	if out.Name != "ok" || out.Count != 3 {
		t.Errorf("decoded %+v", out)
	}
}

func TestGetJSONStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	}))
	defer srv.Close()

	err := GetJSON(context.Background(), nil, srv.URL, nil, nil, nil)
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if se.StatusCode != http.StatusUnauthorized {
		t.Errorf("StatusCode = %d", se.StatusCode)
	}
	if se.Body != "nope" {
		t.Errorf("Body = %q", se.Body)
	}
}

func TestGetJSONTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	err := GetJSON(context.Background(), NewClient(50*time.Millisecond), srv.URL, nil, nil, nil)
	if err == nil {
		t.Fatal("expected timeout error")
	}
}

func TestPostSendsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		if string(b) != `{"a":1}` {
			t.Errorf("body = %q", b)
		}
	}))
	defer srv.Close()

	resp, err := Post(srv.URL, "application/json", []byte(`{"a":1}`))
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	resp.Body.Close()
}

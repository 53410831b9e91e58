package credentials

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/dharmasatrya/flightquery/internal/cache"
)

func TestOAuthProviderCachesToken(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if r.Form.Get("grant_type") != "client_credentials" || r.Form.Get("client_id") != "id" {
			t.Errorf("unexpected form: %v", r.Form)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"abc","token_type":"Bearer","expires_in":1799}`))
	}))
	defer srv.Close()

	p := NewOAuthProvider(srv.URL, "id", "secret", cache.NewMemoryTokenCache())
	for i := 0; i < 3; i++ {
		tok, err := p.Token(context.Background())
		if err != nil {
			t.Fatalf("Token error: %v", err)
		}
		if tok != "abc" {
			t.Fatalf("token = %q", tok)
		}
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("expected 1 token request, got %d", calls)
	}

	p.Invalidate(context.Background())
	if _, err := p.Token(context.Background()); err != nil {
		t.Fatalf("Token error: %v", err)
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("expected refetch after invalidate, got %d calls", calls)
	}
}

func TestOAuthProviderFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"invalid_client"}`))
	}))
	defer srv.Close()

	p := NewOAuthProvider(srv.URL, "id", "wrong", nil)
	if _, err := p.Token(context.Background()); !errors.Is(err, ErrTokenRequest) {
		t.Fatalf("expected ErrTokenRequest, got %v", err)
	}
}

func TestOAuthProviderNotConfigured(t *testing.T) {
	p := NewOAuthProvider("http://unused", "", "", nil)
	if _, err := p.Token(context.Background()); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

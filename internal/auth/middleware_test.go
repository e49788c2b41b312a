package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/daftar-erp/daftar-erp/internal/shared"
)

func callerEcho(t *testing.T, got **shared.Caller) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*got = shared.CallerFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestRequireRejectsMissingToken(t *testing.T) {
	repo, _ := seedUser(t, "s3cret", true)
	mw := NewMiddleware(NewService(repo, "signing-key", time.Hour), "")

	for _, header := range []string{"", "Bearer ", "Token abc"} {
		req := httptest.NewRequest(http.MethodGet, "/journals", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		var got *shared.Caller
		mw.Require(callerEcho(t, &got)).ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("header %q: status = %d, want 401", header, rec.Code)
		}
	}
}

func TestRequireAcceptsUserToken(t *testing.T) {
	repo, user := seedUser(t, "s3cret", true)
	svc := NewService(repo, "signing-key", time.Hour)
	mw := NewMiddleware(svc, "")

	token, _, err := svc.IssueToken(user)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/journals", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	var got *shared.Caller
	mw.Require(callerEcho(t, &got)).ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if got == nil || got.ID != user.ID || got.Subject != user.Email || got.Service {
		t.Fatalf("caller = %+v", got)
	}
}

func TestRequireAcceptsServiceToken(t *testing.T) {
	repo, _ := seedUser(t, "s3cret", true)
	svc := NewService(repo, "signing-key", time.Hour)
	hash, err := bcrypt.GenerateFromPassword([]byte("worker-token"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	mw := NewMiddleware(svc, string(hash))

	req := httptest.NewRequest(http.MethodGet, "/journals", nil)
	req.Header.Set("Authorization", "Bearer worker-token")
	rec := httptest.NewRecorder()
	var got *shared.Caller
	mw.Require(callerEcho(t, &got)).ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if got == nil || !got.Service || got.Subject != "service" {
		t.Fatalf("caller = %+v", got)
	}
}

func TestRequireRejectsGarbageToken(t *testing.T) {
	repo, _ := seedUser(t, "s3cret", true)
	mw := NewMiddleware(NewService(repo, "signing-key", time.Hour), "")

	req := httptest.NewRequest(http.MethodGet, "/journals", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	rec := httptest.NewRecorder()
	var got *shared.Caller
	mw.Require(callerEcho(t, &got)).ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

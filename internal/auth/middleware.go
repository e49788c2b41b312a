package auth

import (
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/daftar-erp/daftar-erp/internal/platform/httpx"
	"github.com/daftar-erp/daftar-erp/internal/shared"
)

// Middleware authenticates requests and stores the caller in context.
type Middleware struct {
	service *Service
	// serviceTokenHash is a bcrypt hash of the shared worker token.
	// Empty disables service-token access.
	serviceTokenHash string
}

// NewMiddleware constructs the auth middleware.
func NewMiddleware(service *Service, serviceTokenHash string) *Middleware {
	return &Middleware{service: service, serviceTokenHash: serviceTokenHash}
}

// Require rejects requests without a valid bearer token.
func (m *Middleware) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing bearer token")
			return
		}
		if caller, ok := m.serviceCaller(token); ok {
			next.ServeHTTP(w, r.WithContext(shared.ContextWithCaller(r.Context(), caller)))
			return
		}
		claims, err := m.service.VerifyToken(token)
		if err != nil {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "invalid token")
			return
		}
		caller := &shared.Caller{ID: claims.UserID, Subject: claims.Email}
		next.ServeHTTP(w, r.WithContext(shared.ContextWithCaller(r.Context(), caller)))
	})
}

func (m *Middleware) serviceCaller(token string) (*shared.Caller, bool) {
	if m.serviceTokenHash == "" {
		return nil, false
	}
	if err := bcrypt.CompareHashAndPassword([]byte(m.serviceTokenHash), []byte(token)); err != nil {
		return nil, false
	}
	return &shared.Caller{Subject: "service", Service: true}, true
}

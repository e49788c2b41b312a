package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
)

type memUsers struct {
	byEmail map[string]*User
}

func (m *memUsers) FindByEmail(ctx context.Context, email string) (*User, error) {
	if u, ok := m.byEmail[email]; ok {
		return u, nil
	}
	return nil, errors.New("no rows")
}

func (m *memUsers) FindByID(ctx context.Context, id int64) (*User, error) {
	for _, u := range m.byEmail {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, errors.New("no rows")
}

func seedUser(t *testing.T, password string, active bool) (*memUsers, *User) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	user := &User{ID: 7, Email: "clerk@example.com", Name: "Clerk", PasswordHash: string(hash), IsActive: active}
	return &memUsers{byEmail: map[string]*User{user.Email: user}}, user
}

func TestAuthenticate(t *testing.T) {
	repo, want := seedUser(t, "s3cret", true)
	svc := NewService(repo, "signing-key", time.Hour)

	user, err := svc.Authenticate(context.Background(), want.Email, "s3cret")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if user.ID != want.ID {
		t.Fatalf("user id = %d, want %d", user.ID, want.ID)
	}

	if _, err := svc.Authenticate(context.Background(), want.Email, "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("bad password err = %v, want ErrInvalidCredentials", err)
	}
	if _, err := svc.Authenticate(context.Background(), "nobody@example.com", "s3cret"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown email err = %v, want ErrInvalidCredentials", err)
	}
}

func TestAuthenticateInactiveUser(t *testing.T) {
	repo, user := seedUser(t, "s3cret", false)
	svc := NewService(repo, "signing-key", time.Hour)

	if _, err := svc.Authenticate(context.Background(), user.Email, "s3cret"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("err = %v, want ErrInvalidCredentials", err)
	}
}

func TestTokenRoundTrip(t *testing.T) {
	repo, user := seedUser(t, "s3cret", true)
	svc := NewService(repo, "signing-key", time.Hour)
	issued := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	svc.WithNow(func() time.Time { return issued })

	token, expiresAt, err := svc.IssueToken(user)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if !expiresAt.Equal(issued.Add(time.Hour)) {
		t.Fatalf("expires = %v, want %v", expiresAt, issued.Add(time.Hour))
	}

	claims, err := svc.VerifyToken(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.UserID != user.ID || claims.Email != user.Email {
		t.Fatalf("claims = %+v", claims)
	}
	if claims.ID == "" {
		t.Fatal("token should carry a jti")
	}
}

func TestVerifyTokenExpired(t *testing.T) {
	repo, user := seedUser(t, "s3cret", true)
	svc := NewService(repo, "signing-key", time.Hour)
	issued := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	svc.WithNow(func() time.Time { return issued })

	token, _, err := svc.IssueToken(user)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	svc.WithNow(func() time.Time { return issued.Add(2 * time.Hour) })
	if _, err := svc.VerifyToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("err = %v, want ErrInvalidToken", err)
	}
}

func TestVerifyTokenWrongSecret(t *testing.T) {
	repo, user := seedUser(t, "s3cret", true)
	svc := NewService(repo, "signing-key", time.Hour)
	token, _, err := svc.IssueToken(user)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	other := NewService(repo, "different-key", time.Hour)
	if _, err := other.VerifyToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("err = %v, want ErrInvalidToken", err)
	}
}

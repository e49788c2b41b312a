package settings

import (
	"context"
	"errors"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type mockStore struct {
	settings map[string]Setting
	getCalls int
	upserts  int
}

func (m *mockStore) Get(ctx context.Context, name string) (Setting, error) {
	m.getCalls++
	s, ok := m.settings[name]
	if !ok {
		return Setting{}, ErrNotFound
	}
	return s, nil
}

func (m *mockStore) Upsert(ctx context.Context, name string, value *string, codeID *int64) error {
	m.upserts++
	if m.settings == nil {
		m.settings = map[string]Setting{}
	}
	m.settings[name] = Setting{Name: name, Value: value, CodeID: codeID}
	return nil
}

func newTestService(t *testing.T, store Store) (*Service, func()) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	svc := NewService(store, client)
	return svc, func() {
		_ = client.Close()
		mr.Close()
	}
}

func strptr(s string) *string { return &s }

func TestGetCachesReads(t *testing.T) {
	store := &mockStore{settings: map[string]Setting{
		"posting.cash_code": {ID: 1, Name: "posting.cash_code", CodeID: ptr(int64(11))},
	}}
	svc, cleanup := newTestService(t, store)
	defer cleanup()

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		s, err := svc.Get(ctx, "posting.cash_code")
		if err != nil {
			t.Fatalf("get %d: %v", i, err)
		}
		if s.CodeID == nil || *s.CodeID != 11 {
			t.Fatalf("get %d: setting = %+v", i, s)
		}
	}
	if store.getCalls != 1 {
		t.Fatalf("store gets = %d, want 1 (cache should absorb repeats)", store.getCalls)
	}
}

func TestGetMissingPassesThrough(t *testing.T) {
	store := &mockStore{}
	svc, cleanup := newTestService(t, store)
	defer cleanup()

	if _, err := svc.Get(context.Background(), "absent"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	// Misses are not cached.
	if _, err := svc.Get(context.Background(), "absent"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if store.getCalls != 2 {
		t.Fatalf("store gets = %d, want 2", store.getCalls)
	}
}

func TestSetInvalidatesCache(t *testing.T) {
	store := &mockStore{settings: map[string]Setting{
		"treasury.bank_account_code_offset": {Name: "treasury.bank_account_code_offset", Value: strptr("1200")},
	}}
	svc, cleanup := newTestService(t, store)
	defer cleanup()

	ctx := context.Background()
	if got := svc.Int64(ctx, "treasury.bank_account_code_offset", 0); got != 1200 {
		t.Fatalf("offset = %d, want 1200", got)
	}
	if err := svc.Set(ctx, "treasury.bank_account_code_offset", strptr("1400"), nil); err != nil {
		t.Fatalf("set: %v", err)
	}
	if got := svc.Int64(ctx, "treasury.bank_account_code_offset", 0); got != 1400 {
		t.Fatalf("offset = %d after set, want 1400", got)
	}
}

func TestInt64Fallbacks(t *testing.T) {
	store := &mockStore{settings: map[string]Setting{
		"malformed": {Name: "malformed", Value: strptr("12x0")},
		"no-value":  {Name: "no-value", CodeID: ptr(int64(5))},
	}}
	svc, cleanup := newTestService(t, store)
	defer cleanup()

	ctx := context.Background()
	if got := svc.Int64(ctx, "missing", 1300); got != 1300 {
		t.Fatalf("missing = %d, want fallback 1300", got)
	}
	if got := svc.Int64(ctx, "malformed", 7); got != 7 {
		t.Fatalf("malformed = %d, want fallback 7", got)
	}
	if got := svc.Int64(ctx, "no-value", 9); got != 9 {
		t.Fatalf("no-value = %d, want fallback 9", got)
	}
}

func TestNameRequired(t *testing.T) {
	svc := NewService(&mockStore{}, nil)
	if _, err := svc.Get(context.Background(), ""); err == nil {
		t.Fatal("Get with empty name should fail")
	}
	if err := svc.Set(context.Background(), "", nil, nil); err == nil {
		t.Fatal("Set with empty name should fail")
	}
}

func ptr[T any](v T) *T { return &v }

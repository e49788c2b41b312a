// Package settings stores named configuration records: raw values and
// references into the chart of accounts. The posting engine's code
// resolution chain and the detail numbering offsets read from here.
package settings

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/daftar-erp/daftar-erp/internal/shared"
)

// ErrNotFound indicates the named setting does not exist.
var ErrNotFound = shared.NotFound("settings: not found")

// Setting is a named configuration record. Either Value or CodeID is set;
// CodeID points into the chart of accounts and is verified by consumers.
type Setting struct {
	ID        int64   `json:"id"`
	Name      string  `json:"name"`
	Value     *string `json:"value,omitempty"`
	CodeID    *int64  `json:"code_id,omitempty"`
	UpdatedAt time.Time
}

// Repository persists settings.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Get fetches a setting by name.
func (r *Repository) Get(ctx context.Context, name string) (Setting, error) {
	var s Setting
	err := r.pool.QueryRow(ctx, `SELECT id, name, value, code_id, updated_at FROM settings WHERE name=$1`, name).
		Scan(&s.ID, &s.Name, &s.Value, &s.CodeID, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Setting{}, ErrNotFound
	}
	return s, err
}

// Upsert stores a setting by name.
func (r *Repository) Upsert(ctx context.Context, name string, value *string, codeID *int64) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO settings (name, value, code_id)
VALUES ($1,$2,$3)
ON CONFLICT (name) DO UPDATE SET value=EXCLUDED.value, code_id=EXCLUDED.code_id, updated_at=NOW()`, name, value, codeID)
	return err
}

const cacheTTL = time.Minute

// Store is the persistence surface the service reads and writes.
type Store interface {
	Get(ctx context.Context, name string) (Setting, error)
	Upsert(ctx context.Context, name string, value *string, codeID *int64) error
}

// Service serves settings with a redis read-through cache. Resolution
// chain lookups hit the same few names on every posting, so the cache
// keeps the hot path off the database.
type Service struct {
	repo  Store
	redis *redis.Client
}

// NewService constructs the settings service. The redis client is
// optional; without it every read goes to the database.
func NewService(repo Store, client *redis.Client) *Service {
	return &Service{repo: repo, redis: client}
}

func cacheKey(name string) string {
	return "settings:" + name
}

// Get returns the named setting, consulting the cache first.
func (s *Service) Get(ctx context.Context, name string) (Setting, error) {
	if name == "" {
		return Setting{}, shared.Validation("settings: name required")
	}
	if s.redis != nil {
		if raw, err := s.redis.Get(ctx, cacheKey(name)).Bytes(); err == nil {
			var cached Setting
			if err := json.Unmarshal(raw, &cached); err == nil {
				return cached, nil
			}
		}
	}
	setting, err := s.repo.Get(ctx, name)
	if err != nil {
		return Setting{}, err
	}
	if s.redis != nil {
		if raw, err := json.Marshal(setting); err == nil {
			_ = s.redis.Set(ctx, cacheKey(name), raw, cacheTTL).Err()
		}
	}
	return setting, nil
}

// Set stores the setting and drops the cached copy.
func (s *Service) Set(ctx context.Context, name string, value *string, codeID *int64) error {
	if name == "" {
		return shared.Validation("settings: name required")
	}
	if err := s.repo.Upsert(ctx, name, value, codeID); err != nil {
		return err
	}
	if s.redis != nil {
		_ = s.redis.Del(ctx, cacheKey(name)).Err()
	}
	return nil
}

// Int64 reads a numeric setting, falling back when missing or malformed.
func (s *Service) Int64(ctx context.Context, name string, fallback int64) int64 {
	setting, err := s.Get(ctx, name)
	if err != nil || setting.Value == nil {
		return fallback
	}
	parsed, err := strconv.ParseInt(*setting.Value, 10, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
)

// Tokens is the pair of credentials that make up an authenticated session: an access
// token sent as a bearer token, and the CSRF token the API requires alongside it
type Tokens struct {
	AccessToken string `json:"token"`
	CSRFToken   string `json:"csrfToken"`
}

// Complete reports whether both tokens are present; a session with only one of them
// counts as not authenticated
func (t Tokens) Complete() bool {
	return t.AccessToken != "" && t.CSRFToken != ""
}

// Store persists the current token pair. Writes are last-write-wins.
type Store interface {
	Load(ctx context.Context) (Tokens, error)
	Save(ctx context.Context, tokens Tokens) error
	SetCSRFToken(ctx context.Context, csrfToken string) error
	Clear(ctx context.Context) error
}

// MemoryStore keeps tokens in process memory, for tests and for short-lived processes
// that receive their tokens from elsewhere
type MemoryStore struct {
	mu     sync.Mutex
	tokens Tokens
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns a store pre-populated with the given tokens
func NewMemoryStore(tokens Tokens) *MemoryStore {
	return &MemoryStore{tokens: tokens}
}

func (s *MemoryStore) Load(ctx context.Context) (Tokens, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tokens, nil
}

func (s *MemoryStore) Save(ctx context.Context, tokens Tokens) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = tokens
	return nil
}

func (s *MemoryStore) SetCSRFToken(ctx context.Context, csrfToken string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens.CSRFToken = csrfToken
	return nil
}

func (s *MemoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = Tokens{}
	return nil
}

// TokenExpiry returns the expiry time embedded in a JWT access token, or the zero time
// if the token is opaque or carries no exp claim. The signature is not verified: only
// the API can do that, and we only use the result to discard stale tokens early.
func TokenExpiry(accessToken string) time.Time {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, &claims); err != nil {
		return time.Time{}
	}
	if claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}

// sessionFile is the on-disk format of a FileStore
type sessionFile struct {
	Tokens
	ExpiresAt time.Time `json:"expiresAt,omitempty"`
}

// FileStore keeps tokens in a JSON file under a per-user config directory, so that
// successive hubctl invocations share a session
type FileStore struct {
	mu  sync.Mutex
	dir string
	now func() time.Time
}

var _ Store = (*FileStore)(nil)

// NewFileStore returns a store that reads and writes session.json in dir. An empty dir
// resolves to $XDG_CONFIG_HOME/acer-hub, falling back to ~/.config/acer-hub.
func NewFileStore(dir string) *FileStore {
	if dir == "" {
		dir = DefaultSessionDir()
	}
	return &FileStore{dir: dir, now: time.Now}
}

// DefaultSessionDir resolves the directory used by a FileStore when none is configured
func DefaultSessionDir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "acer-hub")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "acer-hub")
}

func (s *FileStore) path() string { return filepath.Join(s.dir, "session.json") }

func (s *FileStore) Load(ctx context.Context) (Tokens, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.read()
	if err != nil {
		return Tokens{}, err
	}
	if !f.ExpiresAt.IsZero() && s.now().After(f.ExpiresAt) {
		return Tokens{}, nil
	}
	return f.Tokens, nil
}

func (s *FileStore) Save(ctx context.Context, tokens Tokens) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.write(sessionFile{Tokens: tokens, ExpiresAt: TokenExpiry(tokens.AccessToken)})
}

func (s *FileStore) SetCSRFToken(ctx context.Context, csrfToken string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.read()
	if err != nil {
		return err
	}
	f.CSRFToken = csrfToken
	return s.write(f)
}

func (s *FileStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (s *FileStore) read() (sessionFile, error) {
	var f sessionFile
	data, err := os.ReadFile(s.path())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return f, nil
		}
		return f, err
	}
	if err := json.Unmarshal(data, &f); err != nil {
		return f, fmt.Errorf("failed to parse %s: %w", s.path(), err)
	}
	return f, nil
}

func (s *FileStore) write(f sessionFile) error {
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path(), data, 0o600)
}

// RedisClient is the subset of the go-redis API used by RedisStore
type RedisClient interface {
	HSet(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	ExpireAt(ctx context.Context, key string, tm time.Time) *redis.BoolCmd
}

// RedisStore keeps tokens in a Redis hash, so that several shell processes on one
// machine (or a kiosk fleet) can share a session
type RedisStore struct {
	client RedisClient
	key    string
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore connects to the Redis server at the given URL (e.g.
// redis://localhost:6379/0) and stores tokens in the hash named by key
func NewRedisStore(url string, key string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	return NewRedisStoreWithClient(redis.NewClient(opts), key), nil
}

// NewRedisStoreWithClient wraps an existing client
func NewRedisStoreWithClient(client RedisClient, key string) *RedisStore {
	return &RedisStore{client: client, key: key}
}

func (s *RedisStore) Load(ctx context.Context) (Tokens, error) {
	values, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return Tokens{}, err
	}
	return Tokens{
		AccessToken: values["token"],
		CSRFToken:   values["csrfToken"],
	}, nil
}

func (s *RedisStore) Save(ctx context.Context, tokens Tokens) error {
	if err := s.client.HSet(ctx, s.key, "token", tokens.AccessToken, "csrfToken", tokens.CSRFToken).Err(); err != nil {
		return err
	}
	if expiresAt := TokenExpiry(tokens.AccessToken); !expiresAt.IsZero() {
		return s.client.ExpireAt(ctx, s.key, expiresAt).Err()
	}
	return nil
}

func (s *RedisStore) SetCSRFToken(ctx context.Context, csrfToken string) error {
	return s.client.HSet(ctx, s.key, "csrfToken", csrfToken).Err()
}

func (s *RedisStore) Clear(ctx context.Context) error {
	return s.client.Del(ctx, s.key).Err()
}

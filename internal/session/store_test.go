package session

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, expiresAt time.Time) string {
	claims := jwt.RegisteredClaims{Subject: "user-1"}
	if !expiresAt.IsZero() {
		claims.ExpiresAt = jwt.NewNumericDate(expiresAt)
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-key"))
	require.NoError(t, err)
	return s
}

func Test_TokenExpiry(t *testing.T) {
	exp := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)
	assert.True(t, exp.Equal(TokenExpiry(signedToken(t, exp))))
	assert.True(t, TokenExpiry(signedToken(t, time.Time{})).IsZero())
	assert.True(t, TokenExpiry("opaque-token").IsZero())
}

func Test_MemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(Tokens{})

	tokens, err := s.Load(ctx)
	assert.NoError(t, err)
	assert.False(t, tokens.Complete())

	assert.NoError(t, s.Save(ctx, validTokens))
	assert.NoError(t, s.SetCSRFToken(ctx, "csrf-2"))
	tokens, _ = s.Load(ctx)
	assert.Equal(t, Tokens{AccessToken: "access-1", CSRFToken: "csrf-2"}, tokens)
	assert.True(t, tokens.Complete())

	assert.NoError(t, s.Clear(ctx))
	tokens, _ = s.Load(ctx)
	assert.Equal(t, Tokens{}, tokens)
}

func Test_FileStore(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "acer-hub")
	s := NewFileStore(dir)

	tokens, err := s.Load(ctx)
	assert.NoError(t, err)
	assert.Equal(t, Tokens{}, tokens)

	access := signedToken(t, time.Now().Add(time.Hour))
	require.NoError(t, s.Save(ctx, Tokens{AccessToken: access, CSRFToken: "csrf-1"}))
	require.NoError(t, s.SetCSRFToken(ctx, "csrf-2"))

	// A second store over the same directory sees the same session
	tokens, err = NewFileStore(dir).Load(ctx)
	assert.NoError(t, err)
	assert.Equal(t, Tokens{AccessToken: access, CSRFToken: "csrf-2"}, tokens)

	info, err := os.Stat(filepath.Join(dir, "session.json"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	require.NoError(t, s.Clear(ctx))
	require.NoError(t, s.Clear(ctx))
	tokens, _ = s.Load(ctx)
	assert.Equal(t, Tokens{}, tokens)
}

func Test_FileStore_DiscardsExpiredTokens(t *testing.T) {
	ctx := context.Background()
	s := NewFileStore(t.TempDir())

	access := signedToken(t, time.Now().Add(time.Minute))
	require.NoError(t, s.Save(ctx, Tokens{AccessToken: access, CSRFToken: "csrf-1"}))

	s.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	tokens, err := s.Load(ctx)
	assert.NoError(t, err)
	assert.Equal(t, Tokens{}, tokens)
}

func Test_FileStore_OpaqueTokensDoNotExpire(t *testing.T) {
	ctx := context.Background()
	s := NewFileStore(t.TempDir())
	require.NoError(t, s.Save(ctx, validTokens))

	s.now = func() time.Time { return time.Now().Add(24 * 365 * time.Hour) }
	tokens, err := s.Load(ctx)
	assert.NoError(t, err)
	assert.Equal(t, validTokens, tokens)
}

func Test_FileStore_CorruptFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "session.json"), []byte("{not json"), 0o600))

	_, err := NewFileStore(dir).Load(context.Background())
	assert.Error(t, err)
}

// fakeRedis implements RedisClient over a map of hashes
type fakeRedis struct {
	hashes  map[string]map[string]string
	expires map[string]time.Time
}

var _ RedisClient = (*fakeRedis)(nil)

func newFakeRedis() *fakeRedis {
	return &fakeRedis{
		hashes:  make(map[string]map[string]string),
		expires: make(map[string]time.Time),
	}
}

func (f *fakeRedis) HSet(ctx context.Context, key string, values ...interface{}) *redis.IntCmd {
	h, ok := f.hashes[key]
	if !ok {
		h = make(map[string]string)
		f.hashes[key] = h
	}
	added := int64(0)
	for i := 0; i+1 < len(values); i += 2 {
		field := values[i].(string)
		if _, exists := h[field]; !exists {
			added++
		}
		h[field] = values[i+1].(string)
	}
	return redis.NewIntResult(added, nil)
}

func (f *fakeRedis) HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd {
	out := make(map[string]string)
	for k, v := range f.hashes[key] {
		out[k] = v
	}
	return redis.NewMapStringStringResult(out, nil)
}

func (f *fakeRedis) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	deleted := int64(0)
	for _, key := range keys {
		if _, ok := f.hashes[key]; ok {
			delete(f.hashes, key)
			delete(f.expires, key)
			deleted++
		}
	}
	return redis.NewIntResult(deleted, nil)
}

func (f *fakeRedis) ExpireAt(ctx context.Context, key string, tm time.Time) *redis.BoolCmd {
	_, ok := f.hashes[key]
	if ok {
		f.expires[key] = tm
	}
	return redis.NewBoolResult(ok, nil)
}

func Test_RedisStore(t *testing.T) {
	ctx := context.Background()
	client := newFakeRedis()
	s := NewRedisStoreWithClient(client, "hub:session")

	tokens, err := s.Load(ctx)
	assert.NoError(t, err)
	assert.Equal(t, Tokens{}, tokens)

	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	access := signedToken(t, exp)
	require.NoError(t, s.Save(ctx, Tokens{AccessToken: access, CSRFToken: "csrf-1"}))
	assert.True(t, exp.Equal(client.expires["hub:session"]))

	require.NoError(t, s.SetCSRFToken(ctx, "csrf-2"))
	tokens, err = s.Load(ctx)
	assert.NoError(t, err)
	assert.Equal(t, Tokens{AccessToken: access, CSRFToken: "csrf-2"}, tokens)
	assert.Equal(t, map[string]string{"token": access, "csrfToken": "csrf-2"}, client.hashes["hub:session"])

	require.NoError(t, s.Clear(ctx))
	tokens, _ = s.Load(ctx)
	assert.Equal(t, Tokens{}, tokens)
}

func Test_NewRedisStore_InvalidURL(t *testing.T) {
	_, err := NewRedisStore("not-a-redis-url", "hub:session")
	assert.Error(t, err)
}

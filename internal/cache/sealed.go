package cache

import (
	"context"
	"time"

	"github.com/example/studentkit/internal/crypto"
)

// SealedCache encrypts values before handing them to another Cache, so student data
// kept in a shared Redis is unreadable without the key.
type SealedCache struct {
	inner  Cache
	sealer *crypto.Sealer
}

func NewSealedCache(inner Cache, sealer *crypto.Sealer) *SealedCache {
	return &SealedCache{inner: inner, sealer: sealer}
}

// Get reports a value that cannot be opened, e.g. after a key rotation, as a miss.
func (s *SealedCache) Get(ctx context.Context, key string) (string, bool, error) {
	sealed, ok, err := s.inner.Get(ctx, key)
	if err != nil || !ok {
		return "", false, err
	}
	plain, err := s.sealer.Open(sealed)
	if err != nil {
		return "", false, nil
	}
	return plain, true, nil
}

func (s *SealedCache) Set(ctx context.Context, key, value string, expiration time.Duration) error {
	sealed, err := s.sealer.Seal(value)
	if err != nil {
		return err
	}
	return s.inner.Set(ctx, key, sealed, expiration)
}

func (s *SealedCache) Delete(ctx context.Context, key string) error { return s.inner.Delete(ctx, key) }

func (s *SealedCache) Close() error { return s.inner.Close() }

package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable wraps transport failures from the Redis backend.
var ErrRedisUnavailable = errors.New("redis unavailable")

// RedisCredentialStore persists device credentials under <prefix>:cred:<deviceID>.
type RedisCredentialStore struct {
	redis  redis.UniversalClient
	prefix string
	sealer *sealer
}

// NewRedisCredentialStore builds a Redis-backed [CredentialStore]. A non-empty
// sealKey (32 bytes) enables at-rest encryption.
func NewRedisCredentialStore(client redis.UniversalClient, prefix string, sealKey []byte) (*RedisCredentialStore, error) {
	if client == nil {
		return nil, errors.New("redis client required")
	}
	if prefix == "" {
		prefix = "hyphae"
	}
	s, err := newSealer(sealKey)
	if err != nil {
		return nil, err
	}
	return &RedisCredentialStore{
		redis:  client,
		prefix: prefix,
		sealer: s,
	}, nil
}

func (r *RedisCredentialStore) key(deviceID string) string {
	return r.prefix + ":cred:" + deviceID
}

func (r *RedisCredentialStore) Save(ctx context.Context, cred *Credential, ttl time.Duration) error {
	if cred == nil || cred.DeviceID == "" {
		return errors.New("credential device id required")
	}
	blob, err := Encode(cred)
	if err != nil {
		return err
	}
	blob, err = r.sealer.seal(cred.DeviceID, blob)
	if err != nil {
		return err
	}
	if ttl < 0 {
		ttl = 0
	}
	if err := r.redis.Set(ctx, r.key(cred.DeviceID), blob, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func (r *RedisCredentialStore) Load(ctx context.Context, deviceID string) (*Credential, error) {
	blob, err := r.redis.Get(ctx, r.key(deviceID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCredentialNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	plain, err := r.sealer.open(deviceID, blob)
	if err != nil {
		return nil, errors.Join(ErrCredentialCorrupt, err)
	}
	cred, err := Decode(plain)
	if err != nil {
		return nil, errors.Join(ErrCredentialCorrupt, err)
	}
	if cred.DeviceID != deviceID {
		return nil, ErrCredentialCorrupt
	}
	return cred, nil
}

func (r *RedisCredentialStore) Delete(ctx context.Context, deviceID string) error {
	if err := r.redis.Del(ctx, r.key(deviceID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

package redisstore

import (
	"context"
	"fmt"
	"time"

	"github.com/estatehub/session-service/internal/storage"
)

// Blacklist помечает jti отозванным на срок ttl.
// Запись исчезает только по TTL; явного удаления нет.
func (s *Store) Blacklist(ctx context.Context, jti string, ttl time.Duration) error {
	const op = "storage.redisstore.Blacklist"

	if err := s.rdb.Set(ctx, blacklistKey(jti), "1", ttl).Err(); err != nil {
		return fmt.Errorf("%s: %w: %w", op, storage.ErrUnavailable, err)
	}

	return nil
}

// IsBlacklisted проверяет наличие jti в чёрном списке.
func (s *Store) IsBlacklisted(ctx context.Context, jti string) (bool, error) {
	const op = "storage.redisstore.IsBlacklisted"

	n, err := s.rdb.Exists(ctx, blacklistKey(jti)).Result()
	if err != nil {
		return false, fmt.Errorf("%s: %w: %w", op, storage.ErrUnavailable, err)
	}

	return n > 0, nil
}

// redisstore реализует контракт storage.Storage поверх Redis.
//
// Раскладка ключей:
//   - session:<familyId>  -> hash {uid, gen}, TTL = срок жизни refresh-токена;
//   - blacklist:<jti>     -> маркер, TTL = остаточный срок жизни access-токена.
//
// Все мутации состояния поколения выполняются одним server-side скриптом —
// никаких read-modify-write в два запроса.
package redisstore

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/estatehub/session-service/internal/storage"
)

const (
	sessionPrefix   = "session:"
	blacklistPrefix = "blacklist:"
)

type Store struct {
	rdb *redis.Client
}

// New создает клиент Redis из URL (например, redis://:pass@host:6379/0)
// с fail-fast проверкой соединения.
func New(ctx context.Context, redisURL string) (*Store, error) {
	const op = "storage.redisstore.New"

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	rdb := redis.NewClient(opt)

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Store{rdb: rdb}, nil
}

// Close закрывает клиент Redis.
func (s *Store) Close() error {
	return s.rdb.Close()
}

// Client отдаёт низкоуровневый клиент Redis — его переиспользует пакет lock,
// чтобы блокировки жили в том же инстансе, что и сессии.
func (s *Store) Client() *redis.Client {
	return s.rdb
}

func sessionKey(familyID string) string { return sessionPrefix + familyID }
func blacklistKey(jti string) string    { return blacklistPrefix + jti }

// Проверка на соответствие интерфейсу Storage.
var _ storage.Storage = (*Store)(nil)

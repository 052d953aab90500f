package redisstore

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/estatehub/session-service/internal/models"
	"github.com/estatehub/session-service/internal/storage"
)

// rotateScript — неделимый шаг ротации: сверка поколения, инкремент и сдвиг
// TTL в одном обращении к Redis. Коды возврата:
//
//	>= 1 — новое поколение (успех);
//	  -1 — ключ отсутствует (семейство отозвано/истекло);
//	  -2 — поколение не совпало; семейство удалено этим же вызовом.
//
// Единственный арбитр "кто ротировал первым" — сам Redis: из двух
// конкурентов с одинаковым валидным поколением выигрывает ровно один.
var rotateScript = redis.NewScript(`
local gen = redis.call('HGET', KEYS[1], 'gen')
if gen == false then
  return -1
end
if gen ~= ARGV[1] then
  redis.call('DEL', KEYS[1])
  return -2
end
local new = redis.call('HINCRBY', KEYS[1], 'gen', 1)
redis.call('PEXPIRE', KEYS[1], ARGV[2])
return new
`)

// CreateFamily записывает новое семейство с заданным TTL.
func (s *Store) CreateFamily(ctx context.Context, family *models.SessionFamily, ttl time.Duration) error {
	const op = "storage.redisstore.CreateFamily"

	key := sessionKey(family.ID)
	kv := map[string]string{
		"uid": family.UserID.String(),
		"gen": strconv.FormatUint(family.Generation, 10),
	}

	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, key, kv)
	pipe.PExpire(ctx, key, ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%s: %w: %w", op, storage.ErrUnavailable, err)
	}

	return nil
}

// RotateFamily атомарно сверяет поколение, увеличивает его на 1 и сдвигает TTL.
func (s *Store) RotateFamily(ctx context.Context, familyID string, generation uint64, ttl time.Duration) (uint64, error) {
	const op = "storage.redisstore.RotateFamily"

	res, err := rotateScript.Run(ctx, s.rdb,
		[]string{sessionKey(familyID)},
		strconv.FormatUint(generation, 10),
		ttl.Milliseconds(),
	).Int64()
	if err != nil {
		return 0, fmt.Errorf("%s: %w: %w", op, storage.ErrUnavailable, err)
	}

	switch {
	case res == -1:
		return 0, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	case res == -2:
		return 0, fmt.Errorf("%s: %w", op, storage.ErrGenerationMismatch)
	case res < 1:
		// скрипт не возвращает других кодов; защищаемся от рассинхрона версий.
		return 0, fmt.Errorf("%s: unexpected script result %d", op, res)
	}

	return uint64(res), nil
}

// RevokeFamily безусловно удаляет семейство. Удаление отсутствующего
// ключа ошибкой не считается.
func (s *Store) RevokeFamily(ctx context.Context, familyID string) error {
	const op = "storage.redisstore.RevokeFamily"

	if err := s.rdb.Del(ctx, sessionKey(familyID)).Err(); err != nil {
		return fmt.Errorf("%s: %w: %w", op, storage.ErrUnavailable, err)
	}

	return nil
}

// CountFamilies возвращает число активных семейств через SCAN по префиксу.
func (s *Store) CountFamilies(ctx context.Context) (int64, error) {
	const op = "storage.redisstore.CountFamilies"

	var (
		cursor uint64
		total  int64
	)

	for {
		keys, next, err := s.rdb.Scan(ctx, cursor, sessionPrefix+"*", 512).Result()
		if err != nil {
			return 0, fmt.Errorf("%s: %w: %w", op, storage.ErrUnavailable, err)
		}

		total += int64(len(keys))
		cursor = next
		if cursor == 0 {
			return total, nil
		}
	}
}

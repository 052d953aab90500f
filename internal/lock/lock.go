// lock реализует распределённую блокировку поверх Redis для сериализации
// периодических заданий между конкурентными воркерами.
//
// Свойства:
//   - захват — атомарный SET NX с TTL и случайным owner-токеном;
//   - освобождение — compare-and-delete одним server-side скриптом:
//     чужую (перехваченную после истечения TTL) блокировку снять нельзя;
//   - ожидания и ретраев нет: занятая блокировка — немедленный отказ.
//
// TTL — страховка на случай падения держателя, а не полноценный мьютекс
// для долгой работы: тело должно укладываться в TTL с запасом.
package lock

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	logctx "github.com/estatehub/session-service/internal/pkg/log"
)

const lockPrefix = "lock:"

// releaseScript удаляет ключ, только если его значение равно owner-токену.
var releaseScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
  return redis.call('DEL', KEYS[1])
end
return 0
`)

// Locker — фабрика блокировок на общем клиенте Redis.
type Locker struct {
	rdb *redis.Client
}

// New создаёт Locker поверх готового клиента Redis.
func New(rdb *redis.Client) *Locker {
	return &Locker{rdb: rdb}
}

func lockKey(name string) string { return lockPrefix + name }

// Acquire пытается захватить блокировку name на срок ttl.
// Возвращает owner-токен и true при успехе; "" и false — если блокировка
// уже занята. Ошибка хранилища трактуется как неуспех захвата.
func (l *Locker) Acquire(ctx context.Context, name string, ttl time.Duration) (string, bool, error) {
	const op = "lock.Acquire"

	owner := uuid.NewString()

	ok, err := l.rdb.SetNX(ctx, lockKey(name), owner, ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		return "", false, nil
	}

	return owner, true, nil
}

// Release снимает блокировку name, если она всё ещё принадлежит owner.
// Чужая или отсутствующая блокировка — тихий no-op.
func (l *Locker) Release(ctx context.Context, name, owner string) error {
	const op = "lock.Release"

	if err := releaseScript.Run(ctx, l.rdb, []string{lockKey(name)}, owner).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// WithLock выполняет fn под блокировкой name.
//
// Если блокировка занята (или хранилище недоступно при захвате) — fn не
// запускается и возвращается (false, nil): для вызывающего это неотличимо
// от "держит кто-то другой". Освобождение отложено через defer и происходит
// на любом пути выхода из fn, включая ошибку.
func (l *Locker) WithLock(ctx context.Context, name string, ttl time.Duration, fn func(ctx context.Context) error) (bool, error) {
	owner, ok, err := l.Acquire(ctx, name, ttl)
	if err != nil {
		logctx.From(ctx).Warn("lock_acquire_failed",
			slog.String("lock", name),
			slog.String("err", err.Error()),
		)
		return false, nil
	}
	if !ok {
		return false, nil
	}

	defer func() {
		// отдельный контекст: блокировку надо снять и при отменённом ctx.
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()

		if err := l.Release(releaseCtx, name, owner); err != nil {
			logctx.From(ctx).Warn("lock_release_failed",
				slog.String("lock", name),
				slog.String("err", err.Error()),
			)
		}
	}()

	return true, fn(ctx)
}

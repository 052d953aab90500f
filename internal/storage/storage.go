package storage

import (
	"context"
	"errors"
	"time"

	"github.com/estatehub/session-service/internal/models"
)

var (
	// ErrNotFound — запись не найдена (семейство отозвано либо истёк TTL).
	ErrNotFound = errors.New("not found")
	// ErrGenerationMismatch — предъявленное поколение не совпало с текущим;
	// хранилище уже удалило семейство как скомпрометированное.
	ErrGenerationMismatch = errors.New("generation mismatch")
	// ErrUnavailable — хранилище недоступно (сеть/таймаут).
	ErrUnavailable = errors.New("storage unavailable")
)

// SessionStore выполняет операции над семействами сессий.
//
// RotateFamily обязан быть одной неделимой операцией на стороне хранилища:
// двухшаговое "прочитать поколение, сравнить в приложении, записать новое"
// здесь недопустимо — два конкурентных вызова с одним и тем же валидным
// поколением оба бы выиграли.
type SessionStore interface {
	// CreateFamily записывает новое семейство с заданным TTL.
	CreateFamily(ctx context.Context, family *models.SessionFamily, ttl time.Duration) error
	// RotateFamily атомарно сверяет поколение и увеличивает его на 1,
	// сдвигая TTL. Возвращает новое поколение.
	// Ошибки: ErrNotFound — семейство отсутствует; ErrGenerationMismatch —
	// поколение не совпало (семейство удалено как побочный эффект).
	RotateFamily(ctx context.Context, familyID string, generation uint64, ttl time.Duration) (uint64, error)
	// RevokeFamily безусловно удаляет семейство. Идемпотентна.
	RevokeFamily(ctx context.Context, familyID string) error
	// CountFamilies возвращает число активных семейств (для метрик).
	CountFamilies(ctx context.Context) (int64, error)
}

// BlacklistStore ведёт чёрный список access-токенов по jti.
type BlacklistStore interface {
	// Blacklist помечает jti отозванным на срок ttl.
	Blacklist(ctx context.Context, jti string, ttl time.Duration) error
	// IsBlacklisted проверяет наличие jti в чёрном списке.
	IsBlacklisted(ctx context.Context, jti string) (bool, error)
}

// Storage задает контракт работы с хранилищем.
type Storage interface {
	SessionStore
	BlacklistStore
	Close() error
}

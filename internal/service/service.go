// service содержит ядро жизненного цикла сессионных токенов:
// выпуск/ротацию/отзыв пар токенов, чёрный список access-токенов
// и работу с хранилищем через интерфейсы из пакета storage.
//
// Основные аспекты:
//   - Пакет не хранит состояние сессий внутри Service; единственный
//     разделяемый ресурс — внешнее хранилище, вся координация идёт через
//     его атомарные операции. Экземпляр Service безопасен для конкурентного
//     использования из разных горутин.
//   - Ошибки возвращаются и далее маппятся
//     транспортом на HTTP-статусы (см. комментарии к переменным ошибок ниже).
package service

import (
	"errors"

	"github.com/estatehub/session-service/internal/config"
	"github.com/estatehub/session-service/internal/storage"
)

var (
	// ErrInvalidToken — токен (access/refresh) некорректен по формату/подписи.
	// Транспорт: HTTP 401.
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenExpired — срок действия самого токена истёк.
	// Транспорт: HTTP 401.
	ErrTokenExpired = errors.New("token expired")

	// ErrSessionExpired — семейство сессии отсутствует в хранилище
	// (отозвано либо истёк TTL). Транспорт: HTTP 401.
	ErrSessionExpired = errors.New("session expired")

	// ErrReuseDetected — предъявлен уже ротированный refresh-токен;
	// семейство отозвано как побочный эффект. Событие безопасности,
	// логируется на уровне Warn. Транспорт: HTTP 401 — наружу неотличим
	// от ErrSessionExpired, различие только для внутреннего аудита.
	ErrReuseDetected = errors.New("refresh token reuse detected")

	// ErrTokenRevoked — access-токен находится в чёрном списке.
	// Транспорт: HTTP 401.
	ErrTokenRevoked = errors.New("token revoked")

	// ErrStoreUnavailable — хранилище недоступно; на путях issue/rotate
	// отказываем (fail-closed). Транспорт: HTTP 503.
	ErrStoreUnavailable = errors.New("session store unavailable")
)

// Service описывает ядро управления сессиями.
type Service struct {
	storage storage.Storage
	cfg     config.AuthConfig
}

// New создаёт новый экземпляр Service.
func New(storage storage.Storage, cfg config.AuthConfig) *Service {
	return &Service{
		storage: storage,
		cfg:     cfg,
	}
}

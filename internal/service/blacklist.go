package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/estatehub/session-service/internal/models"
	"github.com/estatehub/session-service/internal/pkg/log"
)

// BlacklistStatus — трёхзначный результат проверки чёрного списка.
type BlacklistStatus int

const (
	// NotBlacklisted — jti отсутствует в чёрном списке.
	NotBlacklisted BlacklistStatus = iota
	// Blacklisted — jti отозван.
	Blacklisted
	// StatusUnknown — хранилище недоступно, ответ неизвестен.
	StatusUnknown
)

// BlacklistAccessToken помещает jti в чёрный список на остаток срока жизни
// токена. Неположительный ttl означает, что токен фактически уже истёк, —
// вызов превращается в no-op.
func (s *Service) BlacklistAccessToken(ctx context.Context, jti string, ttl time.Duration) error {
	const op = "service.blacklist.BlacklistAccessToken"

	if ttl <= 0 {
		return nil
	}

	if err := s.storage.Blacklist(ctx, jti, ttl); err != nil {
		log.From(ctx).Error("blacklist_write_failed",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)
		return fmt.Errorf("%s: %w", op, ErrStoreUnavailable)
	}

	return nil
}

// CheckBlacklist — трёхзначная проверка jti. Недоступность хранилища
// (включая таймаут) не превращается в ошибку: вызывающий сам решает,
// как трактовать StatusUnknown.
func (s *Service) CheckBlacklist(ctx context.Context, jti string) BlacklistStatus {
	const op = "service.blacklist.CheckBlacklist"

	blacklisted, err := s.storage.IsBlacklisted(ctx, jti)
	if err != nil {
		log.From(ctx).Warn("blacklist_check_degraded",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)
		return StatusUnknown
	}

	if blacklisted {
		return Blacklisted
	}

	return NotBlacklisted
}

// IsBlacklisted — булева обёртка над CheckBlacklist с политикой fail-open:
// при недоступном хранилище токен считается не отозванным, чтобы не ронять
// путь запроса. Это осознанный компромисс в пользу доступности — в отличие
// от fail-closed на путях issue/rotate.
func (s *Service) IsBlacklisted(ctx context.Context, jti string) bool {
	return s.CheckBlacklist(ctx, jti) == Blacklisted
}

// IntrospectAccessToken проверяет access-токен целиком: подпись/срок и
// чёрный список (fail-open). На успех возвращает принципала из claims.
func (s *Service) IntrospectAccessToken(ctx context.Context, accessToken string) (*models.Principal, error) {
	const op = "service.blacklist.IntrospectAccessToken"

	claims, err := s.parseAccessToken(accessToken)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if s.IsBlacklisted(ctx, claims.ID) {
		return nil, fmt.Errorf("%s: %w", op, ErrTokenRevoked)
	}

	principal, err := principalFromClaims(claims.UserID, claims.Email, claims.Role)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	return principal, nil
}

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/estatehub/session-service/internal/models"
	"github.com/estatehub/session-service/internal/pkg/log"
	"github.com/estatehub/session-service/internal/pkg/redact"
	"github.com/estatehub/session-service/internal/storage"
)

// IssueTokens выпускает пару токенов для доверенного принципала.
//
// Создаёт новое семейство с поколением 0 и TTL, равным сроку жизни
// refresh-токена. Никакое прежнее состояние не читается: повторный логин
// всегда даёт новое семейство.
func (s *Service) IssueTokens(ctx context.Context, principal *models.Principal) (*models.TokenPair, error) {
	const op = "service.session.IssueTokens"

	family := &models.SessionFamily{
		ID:         uuid.NewString(),
		UserID:     principal.UserID,
		Generation: 0,
	}

	if err := s.storage.CreateFamily(ctx, family, s.cfg.RefreshTokenTTL); err != nil {
		log.From(ctx).Error("session_family_create_failed",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)
		return nil, fmt.Errorf("%s: %w", op, ErrStoreUnavailable)
	}

	log.From(ctx).Info("session_family_created",
		slog.String("user_id", principal.UserID.String()),
		slog.String("family_id", family.ID),
		slog.String("email", redact.Email(principal.Email)),
	)

	pair, err := s.mintPair(principal, family.ID, 0)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return pair, nil
}

// RotateTokens обменивает валидный refresh-токен на новую пару.
//
// Сверка и продвижение поколения — одна неделимая операция хранилища:
// из N конкурентных вызовов с одним и тем же токеном выигрывает ровно один,
// остальные получают ErrReuseDetected либо ErrSessionExpired.
// Несовпадение поколения — сигнал кражи: всё семейство отзывается,
// включая токены, выпущенные позже предъявленного.
func (s *Service) RotateTokens(ctx context.Context, refreshToken string) (*models.TokenPair, error) {
	const op = "service.session.RotateTokens"

	lg := log.From(ctx)

	claims, err := s.parseRefreshToken(refreshToken)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	newGen, err := s.storage.RotateFamily(ctx, claims.FamilyID, claims.Generation, s.cfg.RefreshTokenTTL)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrNotFound):
			lg.Warn("session_family_gone",
				slog.String("op", op),
				slog.String("user_id", claims.UserID),
				slog.String("family_id", claims.FamilyID),
			)
			return nil, fmt.Errorf("%s: %w", op, ErrSessionExpired)

		case errors.Is(err, storage.ErrGenerationMismatch):
			lg.Warn("refresh_reuse_detected",
				slog.String("op", op),
				slog.String("user_id", claims.UserID),
				slog.String("family_id", claims.FamilyID),
				slog.Uint64("presented_gen", claims.Generation),
			)
			return nil, fmt.Errorf("%s: %w", op, ErrReuseDetected)
		}

		lg.Error("session_rotate_failed",
			slog.String("op", op),
			slog.String("family_id", claims.FamilyID),
			slog.String("err", err.Error()),
		)
		return nil, fmt.Errorf("%s: %w", op, ErrStoreUnavailable)
	}

	principal, err := principalFromClaims(claims.UserID, claims.Email, claims.Role)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	pair, err := s.mintPair(principal, claims.FamilyID, newGen)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return pair, nil
}

// RevokeFamily безусловно отзывает семейство. Идемпотентна: отзыв
// отсутствующего семейства ошибкой не считается.
func (s *Service) RevokeFamily(ctx context.Context, familyID string) error {
	const op = "service.session.RevokeFamily"

	if err := s.storage.RevokeFamily(ctx, familyID); err != nil {
		log.From(ctx).Error("session_family_revoke_failed",
			slog.String("op", op),
			slog.String("family_id", familyID),
			slog.String("err", err.Error()),
		)
		return fmt.Errorf("%s: %w", op, ErrStoreUnavailable)
	}

	return nil
}

// Logout завершает сессию: отзывает семейство refresh-токена и помещает
// предъявленный access-токен в чёрный список до его естественного истечения.
//
// Запросы, успевшие прочитать access-токен до записи в чёрный список,
// могут завершиться с ним — это принятая ограниченная гонка; все
// последующие запросы гарантированно отклоняются.
func (s *Service) Logout(ctx context.Context, accessToken, refreshToken string) error {
	const op = "service.session.Logout"

	claims, err := s.parseRefreshToken(refreshToken)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := s.RevokeFamily(ctx, claims.FamilyID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	access, err := s.parseAccessToken(accessToken)
	if err != nil {
		if errors.Is(err, ErrTokenExpired) {
			// истёкший access-токен уже не опасен — в чёрный список не кладём.
			return nil
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	remaining := time.Until(access.ExpiresAt.Time)
	if err := s.BlacklistAccessToken(ctx, access.ID, remaining); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	log.From(ctx).Info("session_logout",
		slog.String("user_id", claims.UserID),
		slog.String("family_id", claims.FamilyID),
	)

	return nil
}

// mintPair выпускает пару access+refresh для существующего семейства.
func (s *Service) mintPair(principal *models.Principal, familyID string, generation uint64) (*models.TokenPair, error) {
	const op = "service.session.mintPair"

	now := time.Now().UTC()

	accessToken, err := s.signAccessToken(principal, uuid.NewString(), now)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	refreshToken, err := s.signRefreshToken(principal, familyID, generation, uuid.NewString(), now)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &models.TokenPair{
		AccessToken:     accessToken,
		RefreshToken:    refreshToken,
		AccessExpiresAt: now.Add(s.cfg.AccessTokenTTL),
	}, nil
}

func principalFromClaims(userID, email, role string) (*models.Principal, error) {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return nil, err
	}

	return &models.Principal{
		UserID: uid,
		Email:  email,
		Role:   role,
	}, nil
}

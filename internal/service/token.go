package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/estatehub/session-service/internal/models"
)

// Значения claim "typ". Токены подписаны одним секретом, поэтому без
// явного типа refresh-токен прошёл бы валидацию как access: его claims —
// надмножество access-claims. Тип проверяется при разборе строго.
const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

// accessClaims — самодостаточный набор claims access-токена.
// jti (RegisteredClaims.ID) выпускается заново при каждой выдаче и нигде
// не сохраняется, пока токен не попадёт в чёрный список.
type accessClaims struct {
	UserID    string `json:"uid"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	TokenType string `json:"typ"`
	jwt.RegisteredClaims
}

// refreshClaims дополняют access-claims привязкой к семейству:
// токен действителен, только пока его поколение равно текущему в хранилище.
type refreshClaims struct {
	UserID     string `json:"uid"`
	Email      string `json:"email"`
	Role       string `json:"role"`
	TokenType  string `json:"typ"`
	FamilyID   string `json:"fid"`
	Generation uint64 `json:"gen"`
	jwt.RegisteredClaims
}

// signAccessToken подписывает access-токен для принципала.
func (s *Service) signAccessToken(principal *models.Principal, jti string, now time.Time) (string, error) {
	const op = "service.token.signAccessToken"

	claims := accessClaims{
		UserID:           principal.UserID.String(),
		Email:            principal.Email,
		Role:             principal.Role,
		TokenType:        tokenTypeAccess,
		RegisteredClaims: s.registeredClaims(principal, jti, now, s.cfg.AccessTokenTTL),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return signed, nil
}

// signRefreshToken подписывает refresh-токен семейства familyID с поколением generation.
func (s *Service) signRefreshToken(principal *models.Principal, familyID string, generation uint64, jti string, now time.Time) (string, error) {
	const op = "service.token.signRefreshToken"

	claims := refreshClaims{
		UserID:           principal.UserID.String(),
		Email:            principal.Email,
		Role:             principal.Role,
		TokenType:        tokenTypeRefresh,
		FamilyID:         familyID,
		Generation:       generation,
		RegisteredClaims: s.registeredClaims(principal, jti, now, s.cfg.RefreshTokenTTL),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return signed, nil
}

func (s *Service) registeredClaims(principal *models.Principal, jti string, now time.Time, ttl time.Duration) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		ID:        jti,
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		IssuedAt:  jwt.NewNumericDate(now),
		Issuer:    s.cfg.Issuer,
		Subject:   principal.UserID.String(),
		Audience:  jwt.ClaimStrings(s.cfg.Audience),
	}
}

// parseAccessToken валидирует access-токен и возвращает его claims.
func (s *Service) parseAccessToken(tokenStr string) (*accessClaims, error) {
	const op = "service.token.parseAccessToken"

	var claims accessClaims
	if err := s.parseInto(tokenStr, &claims); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if claims.TokenType != tokenTypeAccess {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}
	if _, err := uuid.Parse(claims.UserID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	return &claims, nil
}

// parseRefreshToken валидирует refresh-токен и возвращает его claims.
func (s *Service) parseRefreshToken(tokenStr string) (*refreshClaims, error) {
	const op = "service.token.parseRefreshToken"

	var claims refreshClaims
	if err := s.parseInto(tokenStr, &claims); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if claims.TokenType != tokenTypeRefresh {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}
	if _, err := uuid.Parse(claims.UserID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}
	if claims.FamilyID == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	return &claims, nil
}

// parseInto — общая часть разбора: подпись, алгоритм, issuer/audience, срок.
// Битый формат и неверная подпись неразличимы для вызывающего — оба случая
// дают ErrInvalidToken; истечение срока даёт ErrTokenExpired.
func (s *Service) parseInto(tokenStr string, claims jwt.Claims) error {
	token, err := jwt.ParseWithClaims(tokenStr, claims,
		func(t *jwt.Token) (interface{}, error) {
			if t.Method != jwt.SigningMethodHS256 {
				return nil, ErrInvalidToken
			}

			return []byte(s.cfg.JWTSecret), nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(5*time.Second),
		jwt.WithIssuer(s.cfg.Issuer),
		jwt.WithAudience(s.cfg.Audience...),
	)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrTokenExpired
		}

		return ErrInvalidToken
	}

	if !token.Valid {
		return ErrInvalidToken
	}

	return nil
}

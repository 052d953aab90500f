package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/estatehub/session-service/internal/config"
	"github.com/estatehub/session-service/internal/models"
	"github.com/estatehub/session-service/mocks"

	"github.com/golang/mock/gomock"
)

func testAuthCfg() config.AuthConfig {
	return config.AuthConfig{
		JWTSecret:       "unit-test-secret",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 24 * time.Hour,
		Issuer:          "session-service",
		Audience:        []string{"api-gateway"},
	}
}

func newServiceWithMock(t *testing.T) (*Service, *mocks.MockStorage, *gomock.Controller) {
	t.Helper()
	ctrl := gomock.NewController(t)
	mockSt := mocks.NewMockStorage(ctrl)
	svc := New(mockSt, testAuthCfg())
	return svc, mockSt, ctrl
}

func testPrincipal() *models.Principal {
	return &models.Principal{
		UserID: uuid.New(),
		Email:  "user@example.com",
		Role:   "manager",
	}
}

func TestSignAccessToken_AndParse_OK(t *testing.T) {
	svc, _, ctrl := newServiceWithMock(t)
	defer ctrl.Finish()

	p := testPrincipal()
	jti := uuid.NewString()
	now := time.Now().UTC()

	at, err := svc.signAccessToken(p, jti, now)
	require.NoError(t, err)

	claims, err := svc.parseAccessToken(at)
	require.NoError(t, err)
	require.Equal(t, p.UserID.String(), claims.UserID)
	require.Equal(t, p.Email, claims.Email)
	require.Equal(t, p.Role, claims.Role)
	require.Equal(t, jti, claims.ID)
}

func TestSignRefreshToken_CarriesFamilyAndGeneration(t *testing.T) {
	svc, _, ctrl := newServiceWithMock(t)
	defer ctrl.Finish()

	p := testPrincipal()
	familyID := uuid.NewString()
	now := time.Now().UTC()

	rt, err := svc.signRefreshToken(p, familyID, 7, uuid.NewString(), now)
	require.NoError(t, err)

	claims, err := svc.parseRefreshToken(rt)
	require.NoError(t, err)
	require.Equal(t, familyID, claims.FamilyID)
	require.Equal(t, uint64(7), claims.Generation)
	require.Equal(t, p.UserID.String(), claims.UserID)

	// срок жизни refresh-токена, а не access.
	require.WithinDuration(t, now.Add(svc.cfg.RefreshTokenTTL), claims.ExpiresAt.Time, time.Second)
}

func TestParseAccessToken_WrongAlg_WrongIssuer_WrongAudience(t *testing.T) {
	svc, _, ctrl := newServiceWithMock(t)
	defer ctrl.Finish()

	secret := []byte(testAuthCfg().JWTSecret)
	uid := uuid.New()
	now := time.Now().UTC()

	baseClaims := func() jwt.MapClaims {
		return jwt.MapClaims{
			"uid":   uid.String(),
			"email": "a@b.c",
			"role":  "tenant",
			"typ":   "access",
			"iss":   testAuthCfg().Issuer,
			"sub":   uid.String(),
			"aud":   testAuthCfg().Audience,
			"jti":   uuid.NewString(),
			"exp":   now.Add(testAuthCfg().AccessTokenTTL).Unix(),
			"iat":   now.Unix(),
		}
	}

	t.Run("wrong alg", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodHS512, baseClaims())
		signed, err := token.SignedString(secret)
		require.NoError(t, err)

		_, err = svc.parseAccessToken(signed)
		require.Error(t, err)
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		claims := baseClaims()
		claims["iss"] = "another-issuer"
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
		signed, err := token.SignedString(secret)
		require.NoError(t, err)

		_, err = svc.parseAccessToken(signed)
		require.Error(t, err)
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong audience", func(t *testing.T) {
		claims := baseClaims()
		claims["aud"] = []string{"unexpected-aud"}
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
		signed, err := token.SignedString(secret)
		require.NoError(t, err)

		_, err = svc.parseAccessToken(signed)
		require.Error(t, err)
		require.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestParseAccessToken_Expired(t *testing.T) {
	svc, _, ctrl := newServiceWithMock(t)
	defer ctrl.Finish()

	cfg := testAuthCfg()
	cfg.AccessTokenTTL = -10 * time.Second
	svc.cfg = cfg

	at, err := svc.signAccessToken(testPrincipal(), uuid.NewString(), time.Now().UTC())
	require.NoError(t, err)

	_, err = svc.parseAccessToken(at)
	require.Error(t, err)
	require.ErrorIs(t, err, ErrTokenExpired)
}

func TestParseAccessToken_Malformed(t *testing.T) {
	svc, _, ctrl := newServiceWithMock(t)
	defer ctrl.Finish()

	_, err := svc.parseAccessToken("definitely-not-a-jwt")
	require.Error(t, err)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseAccessToken_TamperedSignature(t *testing.T) {
	svc, _, ctrl := newServiceWithMock(t)
	defer ctrl.Finish()

	at, err := svc.signAccessToken(testPrincipal(), uuid.NewString(), time.Now().UTC())
	require.NoError(t, err)

	// портим последний символ подписи.
	last := "A"
	if at[len(at)-1] == 'A' {
		last = "B"
	}
	tampered := at[:len(at)-1] + last

	_, err = svc.parseAccessToken(tampered)
	require.Error(t, err)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseAccessToken_InvalidUIDClaim(t *testing.T) {
	svc, _, ctrl := newServiceWithMock(t)
	defer ctrl.Finish()

	secret := []byte(testAuthCfg().JWTSecret)
	now := time.Now().UTC()

	claims := jwt.MapClaims{
		"uid":   "not-a-uuid",
		"email": "a@b.c",
		"role":  "tenant",
		"typ":   "access",
		"iss":   testAuthCfg().Issuer,
		"sub":   "not-a-uuid",
		"aud":   testAuthCfg().Audience,
		"exp":   now.Add(testAuthCfg().AccessTokenTTL).Unix(),
		"iat":   now.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	require.NoError(t, err)

	_, err = svc.parseAccessToken(signed)
	require.Error(t, err)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRefreshToken_MissingFamily(t *testing.T) {
	svc, _, ctrl := newServiceWithMock(t)
	defer ctrl.Finish()

	secret := []byte(testAuthCfg().JWTSecret)
	uid := uuid.New()
	now := time.Now().UTC()

	// корректно подписанный refresh без fid невалиден.
	claims := jwt.MapClaims{
		"uid":   uid.String(),
		"email": "a@b.c",
		"role":  "tenant",
		"typ":   "refresh",
		"gen":   3,
		"iss":   testAuthCfg().Issuer,
		"sub":   uid.String(),
		"aud":   testAuthCfg().Audience,
		"jti":   uuid.NewString(),
		"exp":   now.Add(testAuthCfg().RefreshTokenTTL).Unix(),
		"iat":   now.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	require.NoError(t, err)

	_, err = svc.parseRefreshToken(signed)
	require.Error(t, err)
	require.ErrorIs(t, err, ErrInvalidToken)
}

// Оба вида токенов подписаны одним секретом и совпадают по iss/aud,
// поэтому разбор обязан отличать их по claim "typ": подмена вида токена —
// это ErrInvalidToken в обе стороны.
func TestParse_RejectsCrossTokenType(t *testing.T) {
	svc, _, ctrl := newServiceWithMock(t)
	defer ctrl.Finish()

	p := testPrincipal()
	now := time.Now().UTC()

	rt, err := svc.signRefreshToken(p, uuid.NewString(), 0, uuid.NewString(), now)
	require.NoError(t, err)
	at, err := svc.signAccessToken(p, uuid.NewString(), now)
	require.NoError(t, err)

	t.Run("refresh as access", func(t *testing.T) {
		_, err := svc.parseAccessToken(rt)
		require.Error(t, err)
		require.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("access as refresh", func(t *testing.T) {
		_, err := svc.parseRefreshToken(at)
		require.Error(t, err)
		require.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestMintPair_FreshJTIPerIssue(t *testing.T) {
	svc, _, ctrl := newServiceWithMock(t)
	defer ctrl.Finish()

	p := testPrincipal()
	familyID := uuid.NewString()

	pair1, err := svc.mintPair(p, familyID, 1)
	require.NoError(t, err)
	pair2, err := svc.mintPair(p, familyID, 1)
	require.NoError(t, err)

	c1, err := svc.parseAccessToken(pair1.AccessToken)
	require.NoError(t, err)
	c2, err := svc.parseAccessToken(pair2.AccessToken)
	require.NoError(t, err)

	require.NotEqual(t, c1.ID, c2.ID)
}

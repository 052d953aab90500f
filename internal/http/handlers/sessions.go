package handlers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/estatehub/session-service/internal/http/httperr"
	"github.com/estatehub/session-service/internal/http/middleware"
	"github.com/estatehub/session-service/internal/models"
)

// createSessionRequest — тело POST /sessions. Принципал уже доверенный:
// проверку учётных данных выполнил вызывающий сервис.
type createSessionRequest struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type logoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type introspectRequest struct {
	AccessToken string `json:"access_token"`
}

type tokenPairResponse struct {
	AccessToken     string    `json:"access_token"`
	RefreshToken    string    `json:"refresh_token"`
	AccessExpiresAt time.Time `json:"access_expires_at"`
}

type introspectResponse struct {
	Active bool   `json:"active"`
	UserID string `json:"user_id,omitempty"`
	Email  string `json:"email,omitempty"`
	Role   string `json:"role,omitempty"`
}

func pairResponse(pair *models.TokenPair) tokenPairResponse {
	return tokenPairResponse{
		AccessToken:     pair.AccessToken,
		RefreshToken:    pair.RefreshToken,
		AccessExpiresAt: pair.AccessExpiresAt,
	}
}

// CreateSession выпускает новую пару токенов для доверенного принципала.
func (h *Handlers) CreateSession(w http.ResponseWriter, r *http.Request) {
	var in createSessionRequest
	if err := decodeStrict(r, &in); err != nil {
		httperr.WriteError(w, r, httperr.ErrBadRequest)
		return
	}

	uid, err := uuid.Parse(in.UserID)
	if err != nil || in.Email == "" {
		httperr.WriteError(w, r, httperr.ErrBadRequest)
		return
	}

	pair, err := h.svc.IssueTokens(r.Context(), &models.Principal{
		UserID: uid,
		Email:  in.Email,
		Role:   in.Role,
	})
	if err != nil {
		httperr.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, pairResponse(pair))
}

// RefreshSession обменивает refresh-токен на новую пару.
func (h *Handlers) RefreshSession(w http.ResponseWriter, r *http.Request) {
	var in refreshRequest
	if err := decodeStrict(r, &in); err != nil || in.RefreshToken == "" {
		httperr.WriteError(w, r, httperr.ErrBadRequest)
		return
	}

	pair, err := h.svc.RotateTokens(r.Context(), in.RefreshToken)
	if err != nil {
		httperr.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, pairResponse(pair))
}

// Logout отзывает семейство сессии и гасит предъявленный access-токен.
// Access-токен берётся из Authorization: Bearer.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	var in logoutRequest
	if err := decodeStrict(r, &in); err != nil || in.RefreshToken == "" {
		httperr.WriteError(w, r, httperr.ErrBadRequest)
		return
	}

	accessToken, ok := middleware.BearerToken(r.Context())
	if !ok {
		httperr.WriteError(w, r, httperr.ErrBadRequest)
		return
	}

	if err := h.svc.Logout(r.Context(), accessToken, in.RefreshToken); err != nil {
		httperr.WriteError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Introspect проверяет access-токен (подпись, срок, чёрный список) и
// возвращает принципала. Невалидный токен — это не ошибка запроса,
// а ответ {active:false}.
func (h *Handlers) Introspect(w http.ResponseWriter, r *http.Request) {
	var in introspectRequest
	if err := decodeStrict(r, &in); err != nil || in.AccessToken == "" {
		httperr.WriteError(w, r, httperr.ErrBadRequest)
		return
	}

	principal, err := h.svc.IntrospectAccessToken(r.Context(), in.AccessToken)
	if err != nil {
		writeJSON(w, http.StatusOK, introspectResponse{Active: false})
		return
	}

	writeJSON(w, http.StatusOK, introspectResponse{
		Active: true,
		UserID: principal.UserID.String(),
		Email:  principal.Email,
		Role:   principal.Role,
	})
}

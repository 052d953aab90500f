// httperr стандартизирует ответы об ошибках HTTP-слоя.
// На вход принимает доменную ошибку пакета service, на выход даёт:
//   - корректный HTTP-статус;
//   - краткое безопасное message без утечки деталей.
//
// ВАЖНО: все отказы refresh-пути (битый токен, истёкший, отозванное
// семейство, детект повторного использования) наружу выглядят одинаково —
// 401 с одним и тем же телом. Различие между "истёк" и "украден и пойман"
// существует только во внутренних логах и не должно помогать атакующему.
package httperr

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/estatehub/session-service/internal/service"
)

// APIError — единый формат ошибки для клиента.
// Code — короткий стабильный код для машиночитаемой обработки.
// Message — безопасное человекочитаемое описание.
// RequestID — прокидывается из X-Request-Id, если есть (для трассировки).
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// ErrorResponse — корневой объект в ответе.
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// ErrBadRequest — локальная ошибка разбора запроса (битый JSON и т.п.).
var ErrBadRequest = errors.New("bad request")

// ToHTTP конвертирует доменную ошибку в HTTP-статус и унифицированный ответ.
//
// err == nil — это программная ошибка вызова: возвращаем 500/internal,
// чтобы не послать "200 OK" с телом ошибки и не маскировать баг.
func ToHTTP(err error) (int, ErrorResponse) {
	switch {
	case err == nil:
		return http.StatusInternalServerError, envelope("internal", "internal error")

	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest, envelope("invalid_argument", "invalid argument")

	case errors.Is(err, service.ErrInvalidToken),
		errors.Is(err, service.ErrTokenExpired),
		errors.Is(err, service.ErrSessionExpired),
		errors.Is(err, service.ErrReuseDetected),
		errors.Is(err, service.ErrTokenRevoked):
		return http.StatusUnauthorized, envelope("unauthorized", "unauthorized, please log in again")

	case errors.Is(err, service.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, envelope("unavailable", "service temporarily unavailable")
	}

	return http.StatusInternalServerError, envelope("internal", "internal error")
}

// WriteError — хелпер для HTTP-хендлеров.
// Пишет корректный статус/тело, добавляет request_id из заголовка, если он есть.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status, resp := ToHTTP(err)

	if rid := r.Header.Get("X-Request-Id"); rid != "" {
		resp.Error.RequestID = rid
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

func envelope(code, msg string) ErrorResponse {
	return ErrorResponse{Error: APIError{Code: code, Message: msg}}
}

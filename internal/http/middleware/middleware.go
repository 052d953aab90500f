package middleware

import (
	"context"
	"net/http"
)

// Middleware — стандартный net/http мидлвар.
type Middleware func(http.Handler) http.Handler

type ctxKey int

const (
	ctxRequestID ctxKey = iota
	ctxAuthToken
)

// BearerToken возвращает "сырой" Bearer-токен, положенный AuthBearer.
func BearerToken(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(ctxAuthToken).(string)
	return v, ok && v != ""
}

// RequestIDFrom возвращает request id, положенный RequestID.
func RequestIDFrom(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(ctxRequestID).(string)
	return v, ok && v != ""
}

// statusWriter оборачивает ResponseWriter, чтобы перехватить статус и размер.
type statusWriter struct {
	http.ResponseWriter
	status int
	count  int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}

	count, err := w.ResponseWriter.Write(p)
	w.count += count
	return count, err
}

func newStatusWriter(w http.ResponseWriter) *statusWriter {
	return &statusWriter{ResponseWriter: w}
}

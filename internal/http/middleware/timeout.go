package middleware

import (
	"context"
	"net/http"
	"time"
)

// Timeout гарантирует запросу deadline: если контекст пришёл без него,
// навешивает свой длиной d. Уже установленный (даже более длинный)
// deadline не трогаем — им управляет вызывающий. При d <= 0 цепочка
// остаётся как есть.
func Timeout(d time.Duration) Middleware {
	if d <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := r.Context().Deadline(); ok {
				next.ServeHTTP(w, r)
				return
			}

			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

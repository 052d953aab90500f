// log связывает request-scoped slog.Logger с контекстом запроса:
// middleware кладёт логгер через Into, нижние слои берут его через From.
package log

import (
	"context"
	"log/slog"
)

type ctxKey struct{}

// Into возвращает контекст с привязанным логгером l.
func Into(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// From возвращает логгер запроса; если в контексте его нет — slog.Default(),
// чтобы вызывающему не приходилось проверять nil.
func From(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok && l != nil {
		return l
	}

	return slog.Default()
}

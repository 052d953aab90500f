package models

import "github.com/google/uuid"

// Principal — доверенный субъект, от имени которого выпускаются токены.
//
// Проверка учётных данных (пароль/хэш) выполняется выше по стеку;
// сюда принципал приходит уже аутентифицированным.
type Principal struct {
	// UserID — идентификатор пользователя.
	UserID uuid.UUID
	// Email — e-mail пользователя (денормализуется в claims токенов).
	Email string
	// Role — роль пользователя в системе (денормализуется в claims токенов).
	Role string
}

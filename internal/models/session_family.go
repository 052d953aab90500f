package models

import "github.com/google/uuid"

// SessionFamily — единица отзыва для цепочки ротаций refresh-токена.
//
// Семейство создаётся при логине с поколением 0. Каждая успешная ротация
// увеличивает поколение ровно на 1 и сдвигает TTL записи в хранилище.
// Отсутствие записи означает "отозвано либо истекло" — отдельного
// признака-тумбстоуна нет.
type SessionFamily struct {
	// ID — идентификатор семейства, выдаётся при логине.
	ID string
	// UserID — владелец семейства.
	UserID uuid.UUID
	// Generation — текущее действительное поколение refresh-токена.
	Generation uint64
}

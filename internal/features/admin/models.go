// Package admin реализует вход администратора по паролю.
// models.go описывает структуры сессий и попыток входа.
package admin

import "time"

// SessionTTL — сколько живёт сессия после входа.
const SessionTTL = 24 * time.Hour

// Лимит неудачных попыток: MaxAttempts за AttemptWindow блокируют вход.
const (
	MaxAttempts   = 3
	AttemptWindow = time.Hour
)

// Session — активная сессия администратора.
type Session struct {
	ID              int64     `db:"id"`
	UserID          string    `db:"user_id"`
	SessionToken    string    `db:"session_token"`
	AuthenticatedAt time.Time `db:"authenticated_at"`
	ExpiresAt       time.Time `db:"expires_at"`
	LastActivity    time.Time `db:"last_activity"`
	IsActive        bool      `db:"is_active"`
}

// LoginAttempt — попытка входа (для защиты от brute-force).
type LoginAttempt struct {
	ID          int64     `db:"id"`
	UserID      string    `db:"user_id"`
	AttemptTime time.Time `db:"attempt_time"`
	Success     bool      `db:"success"`
}

// Package common — errors.go определяет пользовательские ошибки,
// которые используются во всех модулях бота.
// Эти ошибки позволяют обработчикам различать типы проблем
// и отправлять пользователю понятные сообщения.
package common

import "errors"

// Ошибки экономики (GP, списания, начисления)
var (
	// ErrInsufficientFunds — недостаточно GP на счёте
	ErrInsufficientFunds = errors.New("insufficient GP balance")
	// ErrInvalidAmount — некорректная сумма (ноль или отрицательная)
	ErrInvalidAmount = errors.New("amount must be positive")
	// ErrNotFound — базовая ошибка «не найдено», на неё ссылаются все остальные
	ErrNotFound = errors.New("not found")
	// ErrUserNotFound — пользователь не зарегистрирован
	ErrUserNotFound = wrapNotFound("user not registered")
	// ErrAlreadyRegistered — пользователь уже зарегистрирован
	ErrAlreadyRegistered = errors.New("user already registered")
)

// Ошибки арены
var (
	// ErrChallengeNotFound — челлендж с таким ID не найден
	ErrChallengeNotFound = wrapNotFound("challenge not found")
	// ErrSelfChallenge — нельзя вызвать самого себя
	ErrSelfChallenge = errors.New("you cannot challenge yourself")
	// ErrNotChallenged — принять/отклонить может только вызванный игрок
	ErrNotChallenged = errors.New("only the challenged player can respond to this challenge")
	// ErrNotOpenChallenge — присоединиться можно только к открытому челленджу
	ErrNotOpenChallenge = errors.New("only open challenges can be joined")
	// ErrAlreadyParticipant — игрок уже участвует
	ErrAlreadyParticipant = errors.New("you are already a participant")
	// ErrAlreadyBet — ставка на этот челлендж уже сделана
	ErrAlreadyBet = errors.New("you have already placed a bet on this challenge")
	// ErrSelfBet — участники не могут ставить на свой челлендж
	ErrSelfBet = errors.New("participants cannot bet on their own challenge")
	// ErrInvalidBetTarget — ставить можно только на участника
	ErrInvalidBetTarget = errors.New("bet target is not a participant")
	// ErrBettingClosed — приём ставок закрыт
	ErrBettingClosed = errors.New("betting is closed for this challenge")
	// ErrChallengeEnded — челлендж уже закончился по времени
	ErrChallengeEnded = errors.New("challenge has already ended")
	// ErrChallengeExpired — вызов не приняли вовремя
	ErrChallengeExpired = errors.New("this challenge was not accepted in time and has expired")
	// ErrAlreadyProcessed — выплаты по челленджу уже проведены
	ErrAlreadyProcessed = errors.New("challenge already processed")
	// ErrInvalidDuration — длительность не распознана или больше максимума
	ErrInvalidDuration = errors.New("invalid challenge duration")
	// ErrWagerOutOfRange — ставка участника вне допустимых границ
	ErrWagerOutOfRange = errors.New("wager is outside the allowed range")
	// ErrBetOutOfRange — ставка зрителя вне допустимых границ
	ErrBetOutOfRange = errors.New("bet is outside the allowed range")
	// ErrArenaDisabled — арена отключена в настройках
	ErrArenaDisabled = errors.New("the arena is currently disabled")
)

// Ошибки админки
var (
	// ErrNotAdmin — пользователь не является администратором
	ErrNotAdmin = errors.New("you do not have admin rights")
	// ErrWrongPassword — неверный пароль
	ErrWrongPassword = errors.New("wrong password")
	// ErrTooManyAttempts — слишком много неудачных попыток входа
	ErrTooManyAttempts = errors.New("too many attempts, try again in an hour")
	// ErrSessionExpired — сессии нет или она истекла
	ErrSessionExpired = errors.New("admin session expired, use /adminlogin again")
)

// notFoundError позволяет проверять конкретные ошибки и через errors.Is(err, ErrNotFound).
type notFoundError struct {
	msg string
}

func (e *notFoundError) Error() string { return e.msg }

func (e *notFoundError) Is(target error) bool { return target == ErrNotFound }

func wrapNotFound(msg string) error {
	return &notFoundError{msg: msg}
}

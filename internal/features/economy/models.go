// Package economy управляет виртуальной валютой GP.
// models.go описывает структуры для балансов и журнала транзакций.
package economy

import "time"

// Account представляет счёт пользователя.
// Каждый зарегистрированный участник имеет ровно одну запись в таблице balances.
type Account struct {
	UserID      string    `db:"user_id"`      // Discord user ID
	Balance     int64     `db:"balance"`      // Текущий баланс, никогда не отрицательный
	TotalEarned int64     `db:"total_earned"` // Сколько всего начислено
	TotalSpent  int64     `db:"total_spent"`  // Сколько всего списано
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

// Transaction — одна запись журнала. Журнал только дописывается.
// Инвариант: BalanceAfter == BalanceBefore + Amount.
type Transaction struct {
	ID            int64     `db:"id"`
	UserID        string    `db:"user_id"`
	Amount        int64     `db:"amount"`  // Со знаком: + начисление, - списание
	Reason        string    `db:"reason"`  // Тег причины, см. Reason*
	Context       string    `db:"context"` // "challenge:<id>" или свободный текст
	Detail        string    `db:"detail"`  // Описание для истории
	BalanceBefore int64     `db:"balance_before"`
	BalanceAfter  int64     `db:"balance_after"`
	CreatedAt     time.Time `db:"created_at"`
}

// Теги причин движения GP
const (
	ReasonArenaWager     = "arena_wager"      // Ставка участника челленджа
	ReasonArenaWin       = "arena_win"        // Выигрыш банка челленджа
	ReasonArenaRefund    = "arena_refund"     // Возврат ставки участника
	ReasonArenaBet       = "arena_bet"        // Ставка зрителя
	ReasonArenaBetWin    = "arena_bet_win"    // Выплата по выигравшей ставке
	ReasonArenaBetRefund = "arena_bet_refund" // Возврат ставки зрителя
	ReasonRegistration   = "registration_bonus"
	ReasonAdminGive      = "admin_give"
	ReasonAdminTake      = "admin_take"
)

// IsRefund сообщает, что запись — возврат, а не выигрыш.
func (t *Transaction) IsRefund() bool {
	return t.Reason == ReasonArenaRefund || t.Reason == ReasonArenaBetRefund
}

// Package arena реализует PvP-челленджи на GP: прямые вызовы 1 на 1 и открытые
// челленджи, ставки зрителей и расчёт выплат по итогам лидерборда.
// models.go описывает все структуры данных арены.
package arena

import (
	"time"

	"github.com/samber/lo"
)

// Type — вид челленджа.
type Type string

const (
	TypeDirect Type = "direct" // Вызов конкретного игрока, ждёт принятия
	TypeOpen   Type = "open"   // Открытый: присоединиться может любой
)

// TieUsername — значение WinnerUsername, когда победителя нет.
const TieUsername = "Tie"

// Challenge — запись челленджа вместе с участниками и ставками.
type Challenge struct {
	ID            string `db:"id"`
	Type          Type   `db:"type"`
	Status        Status `db:"status"`
	CreatorID     string `db:"creator_id"`
	OpponentID    string `db:"opponent_id"` // Только для прямых; у открытых пусто
	GameID        int    `db:"game_id"`
	LeaderboardID int    `db:"leaderboard_id"`
	GameTitle     string `db:"game_title"`
	Description   string `db:"description"`
	// Wager — ставка каждого участника
	Wager    int64         `db:"wager"`
	Duration time.Duration `db:"duration"`

	Participants []Participant
	Bets         []Bet

	WinnerID       string `db:"winner_id"` // Пусто — победителя нет
	WinnerUsername string `db:"winner_username"`
	CancelReason   string `db:"cancel_reason"`

	CreatedAt       time.Time  `db:"created_at"`
	StartedAt       *time.Time `db:"started_at"`
	EndedAt         *time.Time `db:"ended_at"`          // Дедлайн результата
	BettingClosedAt *time.Time `db:"betting_closed_at"` // После этого ставки не принимаются
	CompletedAt     *time.Time `db:"completed_at"`
	Processed       bool       `db:"processed"`
	ProcessedAt     *time.Time `db:"processed_at"`
}

// Participant — игрок, внёсший ставку за участие.
type Participant struct {
	UserID   string    `db:"user_id"`
	Username string    `db:"username"` // Ник RetroAchievements на момент вступления
	Wager    int64     `db:"wager"`
	JoinedAt time.Time `db:"joined_at"`
	// Итоговое место; заполняется при расчёте
	Rank  int    `db:"final_rank"`
	Score string `db:"final_score"`
}

// Bet — ставка зрителя на победу участника.
type Bet struct {
	ID                int64     `db:"id"`
	UserID            string    `db:"user_id"`
	Username          string    `db:"username"`
	TargetUserID      string    `db:"target_user_id"`
	Amount            int64     `db:"amount"`
	PlacedAt          time.Time `db:"placed_at"`
	Paid              bool      `db:"paid"`
	Payout            int64     `db:"payout"`
	HouseContribution int64     `db:"house_contribution"`
}

// Stats — статистика арены пользователя.
type Stats struct {
	UserID      string    `db:"user_id"`
	Wins        int       `db:"wins"`
	Losses      int       `db:"losses"`
	Ties        int       `db:"ties"`
	GPWagered   int64     `db:"gp_wagered"`
	GPWon       int64     `db:"gp_won"`
	BetsPlaced  int       `db:"bets_placed"`
	BetsWon     int       `db:"bets_won"`
	BetWinnings int64     `db:"bet_winnings"`
	UpdatedAt   time.Time `db:"updated_at"`
}

// Played — сколько челленджей сыграно.
func (s *Stats) Played() int { return s.Wins + s.Losses + s.Ties }

// IsParticipant проверяет, участвует ли пользователь.
func (c *Challenge) IsParticipant(userID string) bool {
	return lo.ContainsBy(c.Participants, func(p Participant) bool { return p.UserID == userID })
}

// Participant возвращает участника по ID.
func (c *Challenge) Participant(userID string) (Participant, bool) {
	return lo.Find(c.Participants, func(p Participant) bool { return p.UserID == userID })
}

// BetBy возвращает ставку пользователя, если она есть.
func (c *Challenge) BetBy(userID string) (Bet, bool) {
	return lo.Find(c.Bets, func(b Bet) bool { return b.UserID == userID })
}

// Pot — сумма ставок участников (банк победителя).
func (c *Challenge) Pot() int64 {
	return lo.SumBy(c.Participants, func(p Participant) int64 { return p.Wager })
}

// BetPool — сумма ставок зрителей.
func (c *Challenge) BetPool() int64 {
	return lo.SumBy(c.Bets, func(b Bet) int64 { return b.Amount })
}

// Usernames — ники RA участников в порядке вступления.
func (c *Challenge) Usernames() []string {
	return lo.Map(c.Participants, func(p Participant, _ int) string { return p.Username })
}

// HasEnded сообщает, наступил ли дедлайн.
func (c *Challenge) HasEnded(now time.Time) bool {
	return c.EndedAt != nil && !now.Before(*c.EndedAt)
}

// BettingOpen сообщает, принимаются ли ставки в момент now.
func (c *Challenge) BettingOpen(now time.Time) bool {
	return c.Status == StatusActive && c.BettingClosedAt != nil && now.Before(*c.BettingClosedAt)
}

// ShortID — первые 8 символов UUID, для сообщений.
func (c *Challenge) ShortID() string {
	if len(c.ID) > 8 {
		return c.ID[:8]
	}
	return c.ID
}

package arena

import (
	"context"
	"time"
)

// Store — хранилище челленджей. Все изменения идут через InTx.
type Store interface {
	Get(ctx context.Context, id string) (*Challenge, error)
	// List возвращает челленджи в указанных статусах, новые сверху.
	List(ctx context.Context, statuses []Status, limit int) ([]*Challenge, error)
	// ListDue — активные необработанные челленджи с ended_at <= now.
	ListDue(ctx context.Context, now time.Time) ([]*Challenge, error)
	// ListExpiredPending — вызовы, ожидающие ответа с created_at <= cutoff.
	ListExpiredPending(ctx context.Context, cutoff time.Time) ([]*Challenge, error)
	Stats(ctx context.Context, userID string) (*Stats, error)
	InTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx — операции внутри одной транзакции. Любая ошибка fn откатывает их все,
// включая движения GP.
type Tx interface {
	Insert(ctx context.Context, ch *Challenge) error
	// Lock читает челлендж с блокировкой строки до конца транзакции.
	Lock(ctx context.Context, id string) (*Challenge, error)
	// Claim атомарно ставит processed=true. false — челлендж уже обработан.
	Claim(ctx context.Context, id string, at time.Time) (bool, error)
	// Update сохраняет статус, время, победителя и причину отмены.
	Update(ctx context.Context, ch *Challenge) error
	AddParticipant(ctx context.Context, challengeID string, p Participant) error
	// AddBet сохраняет ставку и заполняет b.ID.
	AddBet(ctx context.Context, challengeID string, b *Bet) error
	SaveStandings(ctx context.Context, challengeID string, standings []Participant) error
	SettleBet(ctx context.Context, r BetResult) error
	AddStats(ctx context.Context, delta Stats) error

	Award(ctx context.Context, c Credit, challengeID string) error
	Deduct(ctx context.Context, userID string, amount int64, reason, detail, challengeID string) error
}

// Package arena — repository.go хранит челленджи в PostgreSQL.
// Таблицы: arena_challenges, arena_participants, arena_bets, arena_stats.
// Движения GP выполняются через economy.Repository в той же транзакции.
package arena

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/marquessam/select-start-bot2-sub000/internal/common"
	"github.com/marquessam/select-start-bot2-sub000/internal/db/postgres"
	"github.com/marquessam/select-start-bot2-sub000/internal/features/economy"
)

// Имена уникальных индексов, которые превращаются в пользовательские ошибки.
const (
	participantsPKey  = "arena_participants_pkey"
	betsChallengeUser = "arena_bets_challenge_user_key"
)

const challengeColumns = `
	id, type, status, creator_id, opponent_id, game_id, leaderboard_id, game_title, description,
	wager, duration_seconds, winner_id, winner_username, cancel_reason,
	created_at, started_at, ended_at, betting_closed_at, completed_at, processed, processed_at`

// Repository — реализация Store на pgx.
type Repository struct {
	db     *pgxpool.Pool
	ledger *economy.Repository
}

// NewRepository создаёт репозиторий арены.
func NewRepository(db *pgxpool.Pool, ledger *economy.Repository) *Repository {
	return &Repository{db: db, ledger: ledger}
}

var _ Store = (*Repository)(nil)

// Get возвращает челлендж без блокировки.
func (r *Repository) Get(ctx context.Context, id string) (*Challenge, error) {
	return loadChallenge(ctx, r.db, id, false)
}

// List возвращает челленджи в указанных статусах, новые сверху.
func (r *Repository) List(ctx context.Context, statuses []Status, limit int) ([]*Challenge, error) {
	names := make([]string, len(statuses))
	for i, st := range statuses {
		names[i] = string(st)
	}
	return r.queryChallenges(ctx, `
		SELECT `+challengeColumns+`
		FROM arena_challenges
		WHERE status = ANY($1)
		ORDER BY created_at DESC
		LIMIT $2
	`, names, limit)
}

// ListDue возвращает активные необработанные челленджи с наступившим дедлайном.
func (r *Repository) ListDue(ctx context.Context, now time.Time) ([]*Challenge, error) {
	return r.queryChallenges(ctx, `
		SELECT `+challengeColumns+`
		FROM arena_challenges
		WHERE status = 'active' AND processed = false AND ended_at <= $1
		ORDER BY ended_at
	`, now)
}

// ListExpiredPending возвращает вызовы, ожидающие ответа дольше cutoff.
func (r *Repository) ListExpiredPending(ctx context.Context, cutoff time.Time) ([]*Challenge, error) {
	return r.queryChallenges(ctx, `
		SELECT `+challengeColumns+`
		FROM arena_challenges
		WHERE status = 'pending' AND processed = false AND created_at <= $1
		ORDER BY created_at
	`, cutoff)
}

// Stats возвращает статистику арены пользователя.
func (r *Repository) Stats(ctx context.Context, userID string) (*Stats, error) {
	var st Stats
	err := r.db.QueryRow(ctx, `
		SELECT user_id, wins, losses, ties, gp_wagered, gp_won, bets_placed, bets_won, bet_winnings, updated_at
		FROM arena_stats
		WHERE user_id = $1
	`, userID).Scan(
		&st.UserID, &st.Wins, &st.Losses, &st.Ties, &st.GPWagered, &st.GPWon,
		&st.BetsPlaced, &st.BetsWon, &st.BetWinnings, &st.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка получения статистики арены: %w", err)
	}
	return &st, nil
}

// InTx выполняет fn в транзакции; откат отменяет и записи арены, и движения GP.
func (r *Repository) InTx(ctx context.Context, fn func(tx Tx) error) error {
	return postgres.InTx(ctx, r.db, func(tx pgx.Tx) error {
		return fn(&pgTx{tx: tx, ledger: r.ledger})
	})
}

func (r *Repository) queryChallenges(ctx context.Context, query string, args ...any) ([]*Challenge, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения челленджей: %w", err)
	}
	challenges, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*Challenge, error) {
		return scanChallenge(row)
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка сканирования челленджей: %w", err)
	}
	for _, ch := range challenges {
		if err := loadChildren(ctx, r.db, ch); err != nil {
			return nil, err
		}
	}
	return challenges, nil
}

func scanChallenge(row pgx.Row) (*Challenge, error) {
	var (
		ch      Challenge
		seconds int64
	)
	err := row.Scan(
		&ch.ID, &ch.Type, &ch.Status, &ch.CreatorID, &ch.OpponentID, &ch.GameID, &ch.LeaderboardID,
		&ch.GameTitle, &ch.Description, &ch.Wager, &seconds, &ch.WinnerID, &ch.WinnerUsername,
		&ch.CancelReason, &ch.CreatedAt, &ch.StartedAt, &ch.EndedAt, &ch.BettingClosedAt,
		&ch.CompletedAt, &ch.Processed, &ch.ProcessedAt,
	)
	if err != nil {
		return nil, err
	}
	ch.Duration = time.Duration(seconds) * time.Second
	return &ch, nil
}

func loadChallenge(ctx context.Context, db postgres.DBTX, id string, forUpdate bool) (*Challenge, error) {
	query := `SELECT ` + challengeColumns + ` FROM arena_challenges WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	ch, err := scanChallenge(db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrChallengeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка получения челленджа: %w", err)
	}
	if err := loadChildren(ctx, db, ch); err != nil {
		return nil, err
	}
	return ch, nil
}

// loadChildren подгружает участников и ставки.
func loadChildren(ctx context.Context, db postgres.DBTX, ch *Challenge) error {
	rows, err := db.Query(ctx, `
		SELECT user_id, username, wager, joined_at, final_rank, final_score
		FROM arena_participants
		WHERE challenge_id = $1
		ORDER BY joined_at, user_id
	`, ch.ID)
	if err != nil {
		return fmt.Errorf("ошибка получения участников: %w", err)
	}
	ch.Participants, err = pgx.CollectRows(rows, pgx.RowToStructByName[Participant])
	if err != nil {
		return fmt.Errorf("ошибка сканирования участников: %w", err)
	}

	rows, err = db.Query(ctx, `
		SELECT id, user_id, username, target_user_id, amount, placed_at, paid, payout, house_contribution
		FROM arena_bets
		WHERE challenge_id = $1
		ORDER BY id
	`, ch.ID)
	if err != nil {
		return fmt.Errorf("ошибка получения ставок: %w", err)
	}
	ch.Bets, err = pgx.CollectRows(rows, pgx.RowToStructByName[Bet])
	if err != nil {
		return fmt.Errorf("ошибка сканирования ставок: %w", err)
	}
	return nil
}

// pgTx — Tx поверх pgx.Tx.
type pgTx struct {
	tx     pgx.Tx
	ledger *economy.Repository
}

func (t *pgTx) Insert(ctx context.Context, ch *Challenge) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO arena_challenges (`+challengeColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
	`,
		ch.ID, ch.Type, ch.Status, ch.CreatorID, ch.OpponentID, ch.GameID, ch.LeaderboardID,
		ch.GameTitle, ch.Description, ch.Wager, int64(ch.Duration/time.Second), ch.WinnerID, ch.WinnerUsername,
		ch.CancelReason, ch.CreatedAt, ch.StartedAt, ch.EndedAt, ch.BettingClosedAt,
		ch.CompletedAt, ch.Processed, ch.ProcessedAt,
	)
	if err != nil {
		return fmt.Errorf("ошибка создания челленджа: %w", err)
	}
	for _, p := range ch.Participants {
		if err := t.AddParticipant(ctx, ch.ID, p); err != nil {
			return err
		}
	}
	return nil
}

func (t *pgTx) Lock(ctx context.Context, id string) (*Challenge, error) {
	return loadChallenge(ctx, t.tx, id, true)
}

func (t *pgTx) Claim(ctx context.Context, id string, at time.Time) (bool, error) {
	tag, err := t.tx.Exec(ctx, `
		UPDATE arena_challenges
		SET processed = true, processed_at = $2
		WHERE id = $1 AND processed = false
	`, id, at)
	if err != nil {
		return false, fmt.Errorf("ошибка захвата челленджа: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (t *pgTx) Update(ctx context.Context, ch *Challenge) error {
	_, err := t.tx.Exec(ctx, `
		UPDATE arena_challenges
		SET status = $2, started_at = $3, ended_at = $4, betting_closed_at = $5, completed_at = $6,
		    winner_id = $7, winner_username = $8, cancel_reason = $9, processed = $10, processed_at = $11
		WHERE id = $1
	`,
		ch.ID, ch.Status, ch.StartedAt, ch.EndedAt, ch.BettingClosedAt, ch.CompletedAt,
		ch.WinnerID, ch.WinnerUsername, ch.CancelReason, ch.Processed, ch.ProcessedAt,
	)
	if err != nil {
		return fmt.Errorf("ошибка обновления челленджа: %w", err)
	}
	return nil
}

func (t *pgTx) AddParticipant(ctx context.Context, challengeID string, p Participant) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO arena_participants (challenge_id, user_id, username, wager, joined_at)
		VALUES ($1, $2, $3, $4, $5)
	`, challengeID, p.UserID, p.Username, p.Wager, p.JoinedAt)
	if postgres.IsUniqueViolation(err, participantsPKey) {
		return common.ErrAlreadyParticipant
	}
	if err != nil {
		return fmt.Errorf("ошибка добавления участника: %w", err)
	}
	return nil
}

func (t *pgTx) AddBet(ctx context.Context, challengeID string, b *Bet) error {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO arena_bets (challenge_id, user_id, username, target_user_id, amount, placed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, challengeID, b.UserID, b.Username, b.TargetUserID, b.Amount, b.PlacedAt).Scan(&b.ID)
	if postgres.IsUniqueViolation(err, betsChallengeUser) {
		return common.ErrAlreadyBet
	}
	if err != nil {
		return fmt.Errorf("ошибка сохранения ставки: %w", err)
	}
	return nil
}

func (t *pgTx) SaveStandings(ctx context.Context, challengeID string, standings []Participant) error {
	batch := &pgx.Batch{}
	for _, p := range standings {
		batch.Queue(`
			UPDATE arena_participants SET final_rank = $3, final_score = $4
			WHERE challenge_id = $1 AND user_id = $2
		`, challengeID, p.UserID, p.Rank, p.Score)
	}
	if err := t.tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("ошибка сохранения итоговых мест: %w", err)
	}
	return nil
}

func (t *pgTx) SettleBet(ctx context.Context, r BetResult) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE arena_bets SET paid = true, payout = $2, house_contribution = $3
		WHERE id = $1 AND paid = false
	`, r.BetID, r.Payout, r.HouseContribution)
	if err != nil {
		return fmt.Errorf("ошибка отметки ставки: %w", err)
	}
	if tag.RowsAffected() != 1 {
		return fmt.Errorf("ставка %d уже рассчитана", r.BetID)
	}
	return nil
}

// AddStats прибавляет приращения к статистике (upsert).
func (t *pgTx) AddStats(ctx context.Context, d Stats) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO arena_stats (user_id, wins, losses, ties, gp_wagered, gp_won, bets_placed, bets_won, bet_winnings)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (user_id) DO UPDATE SET
			wins = arena_stats.wins + EXCLUDED.wins,
			losses = arena_stats.losses + EXCLUDED.losses,
			ties = arena_stats.ties + EXCLUDED.ties,
			gp_wagered = arena_stats.gp_wagered + EXCLUDED.gp_wagered,
			gp_won = arena_stats.gp_won + EXCLUDED.gp_won,
			bets_placed = arena_stats.bets_placed + EXCLUDED.bets_placed,
			bets_won = arena_stats.bets_won + EXCLUDED.bets_won,
			bet_winnings = arena_stats.bet_winnings + EXCLUDED.bet_winnings,
			updated_at = NOW()
	`, d.UserID, d.Wins, d.Losses, d.Ties, d.GPWagered, d.GPWon, d.BetsPlaced, d.BetsWon, d.BetWinnings)
	if err != nil {
		return fmt.Errorf("ошибка обновления статистики арены: %w", err)
	}
	return nil
}

func (t *pgTx) Award(ctx context.Context, c Credit, challengeID string) error {
	_, err := t.ledger.Award(ctx, t.tx, c.UserID, c.Amount, c.Reason, c.Detail, common.ChallengeContext(challengeID))
	return err
}

func (t *pgTx) Deduct(ctx context.Context, userID string, amount int64, reason, detail, challengeID string) error {
	_, err := t.ledger.Deduct(ctx, t.tx, userID, amount, reason, detail, common.ChallengeContext(challengeID))
	return err
}

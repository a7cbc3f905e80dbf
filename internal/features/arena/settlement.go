// Package arena — settlement.go рассчитывает завершившиеся челленджи.
//
// Расчёт одного челленджа — одна транзакция: блокировка строки, захват
// processed=false→true, выплата банка, расчёт ставок, статистика и смена статуса.
// Любая ошибка откатывает всё целиком, после чего в отдельной транзакции
// выполняется полный возврат. Повторный расчёт невозможен: захват processed
// атомарен, а откат не оставляет частично выплаченных челленджей.
package arena

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/marquessam/select-start-bot2-sub000/internal/common"
	"github.com/marquessam/select-start-bot2-sub000/internal/db/postgres"
	"github.com/marquessam/select-start-bot2-sub000/internal/features/economy"
)

// ErrSettlementDeferred — лидерборд недоступен или транзакция упала на
// конфликте блокировок; расчёт перенесён на следующий тик.
var ErrSettlementDeferred = errors.New("settlement deferred")

// Settlement — штатный итог расчёта.
type Settlement struct {
	Challenge *Challenge
	Outcome   Outcome
	Wagers    []Credit
	Bets      BetSplit
}

// Result — итог попытки расчёта: ровно одно из Settlement и Refund не nil.
type Result struct {
	Settlement *Settlement
	Refund     *Refund
	// Cause — ошибка, из-за которой вместо расчёта сделан возврат
	Cause error
}

// Refunded сообщает, что челлендж был возвращён.
func (r *Result) Refunded() bool { return r.Refund != nil }

// SweepResult — итог одного прохода планировщика.
type SweepResult struct {
	Due      int
	Settled  int
	Refunded int
	Deferred int
	Skipped  int
	Failed   int
}

// CheckCompletedChallenges рассчитывает все челленджи, у которых наступил дедлайн.
// Ошибка одного челленджа логируется и не мешает остальным.
func (s *Service) CheckCompletedChallenges(ctx context.Context) (SweepResult, error) {
	due, err := s.store.ListDue(ctx, s.now())
	if err != nil {
		return SweepResult{}, fmt.Errorf("ошибка получения завершившихся челленджей: %w", err)
	}

	res := SweepResult{Due: len(due)}
	if len(due) == 0 {
		return res, nil
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(max(s.cfg.ArenaSettleConcurrency, 1))
	for _, ch := range due {
		g.Go(func() error {
			r, err := s.settle(ctx, ch, false)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil && r.Refunded():
				res.Refunded++
			case err == nil:
				res.Settled++
			case errors.Is(err, ErrSettlementDeferred):
				res.Deferred++
			case isSkippable(err):
				res.Skipped++
			default:
				res.Failed++
				log.WithError(err).WithField("challenge_id", ch.ID).Error("Челлендж не рассчитан и не возвращён")
			}
			return nil
		})
	}
	_ = g.Wait()

	log.WithFields(log.Fields{
		"due":      res.Due,
		"settled":  res.Settled,
		"refunded": res.Refunded,
		"deferred": res.Deferred,
		"skipped":  res.Skipped,
		"failed":   res.Failed,
	}).Info("Проверка завершившихся челленджей выполнена")
	return res, nil
}

// ForceComplete — досрочный расчёт администратором. Ошибка лидерборда
// возвращается как есть, без возврата ставок: админ может повторить или отменить.
func (s *Service) ForceComplete(ctx context.Context, challengeID string) (*Result, error) {
	ch, err := s.store.Get(ctx, challengeID)
	if err != nil {
		return nil, err
	}
	if ch.Processed {
		return nil, common.ErrAlreadyProcessed
	}
	if _, err := Transition(ch.Status, EventComplete); err != nil {
		return nil, err
	}
	return s.settle(ctx, ch, true)
}

func (s *Service) settle(ctx context.Context, ch *Challenge, force bool) (*Result, error) {
	if len(ch.Participants) < 2 {
		ref, err := s.RefundChallenge(ctx, ch.ID, ReasonNoContest)
		if err != nil {
			return nil, err
		}
		return &Result{Refund: ref}, nil
	}

	entries, err := s.lookup.Ranks(ctx, ch.GameID, ch.LeaderboardID, ch.Usernames())
	if err != nil {
		perr := processingErr(ch.ID, StageLeaderboard, err)
		if force {
			return nil, perr
		}
		if ch.EndedAt != nil && s.now().Before(ch.EndedAt.Add(s.cfg.ArenaSettleGrace)) {
			log.WithError(err).WithField("challenge_id", ch.ID).Warn("Лидерборд недоступен, повторим позже")
			return nil, fmt.Errorf("%w: %v", ErrSettlementDeferred, err)
		}
		return s.fallback(ctx, ch.ID, perr)
	}

	outcome := DetermineWinner(ch.Participants, entries)
	st, err := s.ProcessPayouts(ctx, ch.ID, outcome)
	if err == nil {
		return &Result{Settlement: st}, nil
	}
	if isSkippable(err) {
		return nil, err
	}
	if postgres.IsRetryable(err) {
		// Транзакция откатилась целиком, челлендж не захвачен
		log.WithError(err).WithField("challenge_id", ch.ID).Warn("Конфликт блокировок при расчёте, повторим позже")
		return nil, fmt.Errorf("%w: %v", ErrSettlementDeferred, err)
	}
	return s.fallback(ctx, ch.ID, err)
}

// fallback возвращает ставки после неудачного расчёта.
func (s *Service) fallback(ctx context.Context, challengeID string, cause error) (*Result, error) {
	entry := log.WithError(cause).WithField("challenge_id", challengeID)
	var perr *ProcessingError
	if errors.As(cause, &perr) {
		entry = entry.WithField("stage", perr.Stage)
	}
	entry.Error("Ошибка расчёта челленджа, возвращаем ставки")

	reason := ReasonSettleFailed
	if perr != nil && perr.Stage == StageLeaderboard {
		reason = ReasonLeaderboard
	}
	ref, err := s.RefundChallenge(ctx, challengeID, reason)
	if err != nil {
		return nil, fmt.Errorf("возврат после ошибки расчёта: %w (причина: %v)", err, cause)
	}
	return &Result{Refund: ref, Cause: cause}, nil
}

// ProcessPayouts проводит выплаты по известному итогу. Выполняется не более
// одного раза на челлендж: повторный вызов вернёт common.ErrAlreadyProcessed.
func (s *Service) ProcessPayouts(ctx context.Context, challengeID string, outcome Outcome) (*Settlement, error) {
	var st *Settlement
	err := s.store.InTx(ctx, func(tx Tx) error {
		ch, err := tx.Lock(ctx, challengeID)
		if err != nil {
			return err
		}
		if ch.Processed {
			return common.ErrAlreadyProcessed
		}
		next, err := Transition(ch.Status, EventComplete)
		if err != nil {
			return err
		}
		now := s.now()
		ok, err := tx.Claim(ctx, ch.ID, now)
		if err != nil {
			return processingErr(ch.ID, StageClaim, err)
		}
		if !ok {
			return common.ErrAlreadyProcessed
		}

		credits, err := WagerCredits(ch, outcome)
		if err != nil {
			return processingErr(ch.ID, StageWagers, err)
		}
		split := SplitBets(ch.Bets, outcome.WinnerID)
		if split.HouseSurplus < 0 {
			return processingErr(ch.ID, StageBets, fmt.Errorf("выплаты по ставкам превышают пул на %d", -split.HouseSurplus))
		}

		ledger := make([]Credit, 0, len(credits)+len(split.Results))
		ledger = append(ledger, credits...)
		for _, r := range split.Results {
			if c, ok := r.Credit(ch.GameTitle); ok {
				ledger = append(ledger, c)
			}
		}
		for _, c := range byUser(ledger) {
			if err := tx.Award(ctx, c, ch.ID); err != nil {
				stage := StageWagers
				if c.Reason == economy.ReasonArenaBetWin || c.Reason == economy.ReasonArenaBetRefund {
					stage = StageBets
				}
				return processingErr(ch.ID, stage, err)
			}
		}
		for i, r := range split.Results {
			if err := tx.SettleBet(ctx, r); err != nil {
				return processingErr(ch.ID, StageBets, err)
			}
			ch.Bets[i].Paid = true
			ch.Bets[i].Payout = r.Payout
			ch.Bets[i].HouseContribution = r.HouseContribution
		}

		if len(outcome.Standings) == len(ch.Participants) {
			if err := tx.SaveStandings(ctx, ch.ID, outcome.Standings); err != nil {
				return processingErr(ch.ID, StagePersist, err)
			}
			ch.Participants = outcome.Standings
		}

		for _, d := range statsDeltas(ch, outcome, split) {
			if err := tx.AddStats(ctx, d); err != nil {
				return processingErr(ch.ID, StageStats, err)
			}
		}

		ch.Status = next
		ch.WinnerID = outcome.WinnerID
		ch.WinnerUsername = outcome.DisplayWinner()
		ch.CompletedAt = &now
		ch.Processed = true
		ch.ProcessedAt = &now
		if err := tx.Update(ctx, ch); err != nil {
			return processingErr(ch.ID, StagePersist, err)
		}

		st = &Settlement{Challenge: ch, Outcome: outcome, Wagers: credits, Bets: split}
		return nil
	})
	if err != nil {
		return nil, err
	}

	pot := st.Challenge.Pot()
	log.WithFields(log.Fields{
		"challenge_id":  challengeID,
		"winner":        outcome.DisplayWinner(),
		"pot":           pot,
		"bets_paid":     st.Bets.PaidOut,
		"house_surplus": st.Bets.HouseSurplus,
		"bets_refunded": st.Bets.Refunded,
	}).Info("Челлендж рассчитан")

	s.notifier.ChallengeCompleted(ctx, CompletedEvent{Challenge: st.Challenge, Outcome: outcome, Pot: pot, Bets: st.Bets})
	return st, nil
}

// statsDeltas — приращения статистики участников и ставивших.
func statsDeltas(ch *Challenge, outcome Outcome, split BetSplit) []Stats {
	deltas := make([]Stats, 0, len(ch.Participants)+len(split.Results))
	pot := ch.Pot()
	for _, p := range ch.Participants {
		d := Stats{UserID: p.UserID, GPWagered: p.Wager}
		switch {
		case !outcome.HasWinner():
			d.Ties = 1
		case p.UserID == outcome.WinnerID:
			d.Wins = 1
			d.GPWon = pot
		default:
			d.Losses = 1
		}
		deltas = append(deltas, d)
	}
	for _, r := range split.Results {
		if r.Kind == BetRefunded {
			continue
		}
		d := Stats{UserID: r.UserID, BetsPlaced: 1}
		if r.Kind == BetWon {
			d.BetsWon = 1
			d.BetWinnings = r.Payout - r.Amount
		}
		deltas = append(deltas, d)
	}
	return byUserStats(deltas)
}

// byUser упорядочивает начисления по user_id: параллельные расчёты
// берут блокировки строк balances в одном и том же порядке.
func byUser(credits []Credit) []Credit {
	slices.SortStableFunc(credits, func(a, b Credit) int { return strings.Compare(a.UserID, b.UserID) })
	return credits
}

func byUserStats(deltas []Stats) []Stats {
	slices.SortStableFunc(deltas, func(a, b Stats) int { return strings.Compare(a.UserID, b.UserID) })
	return deltas
}

// isSkippable — челлендж уже обработан или отменён параллельно; это не ошибка.
func isSkippable(err error) bool {
	var te *TransitionError
	return errors.Is(err, common.ErrAlreadyProcessed) || errors.As(err, &te)
}

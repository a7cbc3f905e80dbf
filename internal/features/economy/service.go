// Package economy — service.go содержит бизнес-логику экономики.
// AwardGP и DeductGP — единственные способы изменить баланс; всё остальное
// (арена, регистрация, админка) выражено через них.
package economy

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	log "github.com/sirupsen/logrus"

	"github.com/marquessam/select-start-bot2-sub000/internal/common"
)

// HistoryLimit — сколько записей показывает /gp history.
const HistoryLimit = 10

// Service управляет экономикой бота (GP).
type Service struct {
	repo *Repository
}

// NewService создаёт новый сервис экономики.
func NewService(repo *Repository) *Service {
	return &Service{repo: repo}
}

// Repository отдаёт репозиторий — арена вызывает Award/Deduct в своей транзакции.
func (s *Service) Repository() *Repository {
	return s.repo
}

// GetBalance возвращает текущий баланс пользователя.
func (s *Service) GetBalance(ctx context.Context, userID string) (int64, error) {
	return s.repo.GetBalance(ctx, userID)
}

// GetAccount возвращает счёт с итогами начислений и списаний.
func (s *Service) GetAccount(ctx context.Context, userID string) (*Account, error) {
	return s.repo.GetAccount(ctx, userID)
}

// AwardGP начисляет GP и пишет запись журнала.
// challengeID может быть пустым — тогда context берётся из detail.
func (s *Service) AwardGP(ctx context.Context, userID string, amount int64, reason, detail, challengeID string) (*Transaction, error) {
	if amount <= 0 {
		return nil, common.ErrInvalidAmount
	}
	var t *Transaction
	err := s.repo.InTx(ctx, func(tx pgx.Tx) error {
		var err error
		t, err = s.repo.Award(ctx, tx, userID, amount, reason, detail, txContext(detail, challengeID))
		return err
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"user_id": userID,
		"amount":  amount,
		"reason":  reason,
		"balance": t.BalanceAfter,
	}).Info("GP начислены")
	return t, nil
}

// DeductGP списывает GP. Не хватает средств → common.ErrInsufficientFunds.
func (s *Service) DeductGP(ctx context.Context, userID string, amount int64, reason, detail, challengeID string) (*Transaction, error) {
	if amount <= 0 {
		return nil, common.ErrInvalidAmount
	}
	var t *Transaction
	err := s.repo.InTx(ctx, func(tx pgx.Tx) error {
		var err error
		t, err = s.repo.Deduct(ctx, tx, userID, amount, reason, detail, txContext(detail, challengeID))
		return err
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"user_id": userID,
		"amount":  amount,
		"reason":  reason,
		"balance": t.BalanceAfter,
	}).Info("GP списаны")
	return t, nil
}

// OpenAccount создаёт счёт новому участнику и начисляет стартовый бонус.
// Повторный вызов для существующего счёта ничего не начисляет.
func (s *Service) OpenAccount(ctx context.Context, userID string, startingBalance int64) error {
	return s.repo.InTx(ctx, func(tx pgx.Tx) error {
		created, err := s.repo.CreateAccount(ctx, tx, userID)
		if err != nil {
			return err
		}
		if !created || startingBalance <= 0 {
			return nil
		}
		_, err = s.repo.Award(ctx, tx, userID, startingBalance, ReasonRegistration, "Welcome bonus", "registration")
		return err
	})
}

// History возвращает последние записи журнала пользователя (новые сверху).
func (s *Service) History(ctx context.Context, userID string) ([]*Transaction, error) {
	return s.repo.GetTransactions(ctx, userID, HistoryLimit)
}

// ChallengeLedger возвращает все движения GP по челленджу — для сверки в CLI.
func (s *Service) ChallengeLedger(ctx context.Context, challengeID string) ([]*Transaction, error) {
	return s.repo.GetTransactionsByContext(ctx, common.ChallengeContext(challengeID))
}

// Adjust — ручная корректировка администратором: amount > 0 начисляет, < 0 списывает.
func (s *Service) Adjust(ctx context.Context, userID string, amount int64, note string) (*Transaction, error) {
	switch {
	case amount > 0:
		return s.AwardGP(ctx, userID, amount, ReasonAdminGive, note, "")
	case amount < 0:
		return s.DeductGP(ctx, userID, -amount, ReasonAdminTake, note, "")
	default:
		return nil, fmt.Errorf("корректировка на 0: %w", common.ErrInvalidAmount)
	}
}

// txContext: при наличии челленджа — "challenge:<id>", иначе описание.
func txContext(detail, challengeID string) string {
	if challengeID != "" {
		return common.ChallengeContext(challengeID)
	}
	return detail
}

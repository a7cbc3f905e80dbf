// Package arena — service.go содержит жизненный цикл челленджа:
// создание, принятие, вступление, ставки и возвраты.
// Каждая операция выполняется в одной транзакции хранилища: блокировка строки,
// проверка перехода автомата, движение GP и запись состояния.
package arena

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/xhit/go-str2duration/v2"

	"github.com/marquessam/select-start-bot2-sub000/internal/common"
	"github.com/marquessam/select-start-bot2-sub000/internal/config"
	"github.com/marquessam/select-start-bot2-sub000/internal/features/economy"
	"github.com/marquessam/select-start-bot2-sub000/internal/features/leaderboard"
)

// ListLimit — сколько челленджей показывает /arena list.
const ListLimit = 10

// Причины отмены, которые видят пользователи.
const (
	ReasonDeclined     = "declined"
	ReasonNotAccepted  = "not accepted in time"
	ReasonNoContest    = "not enough participants"
	ReasonAdminCancel  = "cancelled by an admin"
	ReasonLeaderboard  = "leaderboard unavailable"
	ReasonSettleFailed = "settlement error"
)

// Service управляет челленджами арены.
type Service struct {
	store    Store
	lookup   leaderboard.Lookup
	notifier Notifier
	cfg      *config.Config
	now      func() time.Time
}

// NewService создаёт сервис арены. notifier может быть nil — тогда события только логируются.
func NewService(store Store, lookup leaderboard.Lookup, notifier Notifier, cfg *config.Config) *Service {
	if notifier == nil {
		notifier = LogNotifier{}
	}
	return &Service{
		store:    store,
		lookup:   lookup,
		notifier: notifier,
		cfg:      cfg,
		now:      time.Now,
	}
}

// SetClock подменяет источник времени.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// SetNotifier подменяет получателя событий (бот подключается после создания сервиса).
func (s *Service) SetNotifier(n Notifier) {
	if n != nil {
		s.notifier = n
	}
}

// CreateRequest — параметры нового челленджа.
type CreateRequest struct {
	CreatorID     string
	CreatorName   string // Ник RA создателя
	OpponentID    string // Только для прямого вызова
	GameID        int
	LeaderboardID int
	GameTitle     string
	Description   string
	Wager         int64
	Duration      time.Duration // 0 — длительность по умолчанию
}

// ParseDuration разбирает длительность вида "3d", "1w", "36h". Пустая строка — 0.
func ParseDuration(raw string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}
	d, err := str2duration.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%w: %q", common.ErrInvalidDuration, raw)
	}
	return d, nil
}

func (s *Service) validateCreate(req *CreateRequest) error {
	if !s.cfg.FeatureArenaEnabled {
		return common.ErrArenaDisabled
	}
	if req.Wager < s.cfg.ArenaMinWager || req.Wager > s.cfg.ArenaMaxWager {
		return fmt.Errorf("%w (%s–%s)", common.ErrWagerOutOfRange,
			common.FormatGP(s.cfg.ArenaMinWager), common.FormatGP(s.cfg.ArenaMaxWager))
	}
	if req.Duration == 0 {
		req.Duration = s.cfg.ArenaDefaultDuration
	}
	if req.Duration < 0 || req.Duration > s.cfg.ArenaMaxDuration {
		return fmt.Errorf("%w: max %s", common.ErrInvalidDuration, s.cfg.ArenaMaxDuration)
	}
	if req.GameID <= 0 || req.LeaderboardID <= 0 {
		return fmt.Errorf("game and leaderboard ids must be positive")
	}
	return nil
}

// CreateDirect создаёт прямой вызов. Ставка создателя списывается сразу,
// челлендж ждёт ответа соперника в статусе pending.
func (s *Service) CreateDirect(ctx context.Context, req CreateRequest) (*Challenge, error) {
	if req.OpponentID == req.CreatorID {
		return nil, common.ErrSelfChallenge
	}
	if err := s.validateCreate(&req); err != nil {
		return nil, err
	}
	ch := s.newChallenge(req, TypeDirect)
	if err := s.create(ctx, ch); err != nil {
		return nil, err
	}
	return ch, nil
}

// CreateOpen создаёт открытый челлендж; он активен сразу.
func (s *Service) CreateOpen(ctx context.Context, req CreateRequest) (*Challenge, error) {
	req.OpponentID = ""
	if err := s.validateCreate(&req); err != nil {
		return nil, err
	}
	ch := s.newChallenge(req, TypeOpen)
	ch.Status = StatusActive
	s.schedule(ch, ch.CreatedAt)
	if err := s.create(ctx, ch); err != nil {
		return nil, err
	}
	return ch, nil
}

func (s *Service) newChallenge(req CreateRequest, typ Type) *Challenge {
	now := s.now()
	return &Challenge{
		ID:            uuid.NewString(),
		Type:          typ,
		Status:        StatusPending,
		CreatorID:     req.CreatorID,
		OpponentID:    req.OpponentID,
		GameID:        req.GameID,
		LeaderboardID: req.LeaderboardID,
		GameTitle:     req.GameTitle,
		Description:   req.Description,
		Wager:         req.Wager,
		Duration:      req.Duration,
		Participants: []Participant{{
			UserID:   req.CreatorID,
			Username: req.CreatorName,
			Wager:    req.Wager,
			JoinedAt: now,
		}},
		CreatedAt: now,
	}
}

func (s *Service) create(ctx context.Context, ch *Challenge) error {
	err := s.store.InTx(ctx, func(tx Tx) error {
		if err := tx.Insert(ctx, ch); err != nil {
			return err
		}
		return tx.Deduct(ctx, ch.CreatorID, ch.Wager, economy.ReasonArenaWager, "Arena wager: "+ch.GameTitle, ch.ID)
	})
	if err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"challenge_id": ch.ID,
		"type":         ch.Type,
		"creator":      ch.CreatorID,
		"opponent":     ch.OpponentID,
		"wager":        ch.Wager,
		"game_id":      ch.GameID,
	}).Info("Челлендж создан")
	return nil
}

// schedule выставляет старт, конец и закрытие ставок.
func (s *Service) schedule(ch *Challenge, now time.Time) {
	end := now.Add(ch.Duration)
	closeAt := now.Add(s.cfg.ArenaBettingWindow)
	if closeAt.After(end) {
		closeAt = end
	}
	ch.StartedAt = &now
	ch.EndedAt = &end
	ch.BettingClosedAt = &closeAt
}

// Accept — вызванный игрок принимает челлендж; его ставка списывается, отсчёт начинается.
func (s *Service) Accept(ctx context.Context, challengeID, userID, username string) (*Challenge, error) {
	var ch *Challenge
	err := s.store.InTx(ctx, func(tx Tx) error {
		var err error
		if ch, err = tx.Lock(ctx, challengeID); err != nil {
			return err
		}
		if userID == ch.CreatorID {
			return common.ErrSelfChallenge
		}
		if ch.Type != TypeDirect || userID != ch.OpponentID {
			return common.ErrNotChallenged
		}
		next, err := Transition(ch.Status, EventAccept)
		if err != nil {
			return err
		}
		now := s.now()
		// Тот же срок, что и у CheckTimeouts: просроченный вызов ждёт отмены
		if s.acceptExpired(ch, now) {
			return common.ErrChallengeExpired
		}

		if err := tx.Deduct(ctx, userID, ch.Wager, economy.ReasonArenaWager, "Arena wager: "+ch.GameTitle, ch.ID); err != nil {
			return err
		}
		p := Participant{UserID: userID, Username: username, Wager: ch.Wager, JoinedAt: now}
		if err := tx.AddParticipant(ctx, ch.ID, p); err != nil {
			return err
		}
		ch.Participants = append(ch.Participants, p)
		ch.Status = next
		s.schedule(ch, now)
		return tx.Update(ctx, ch)
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{"challenge_id": ch.ID, "user_id": userID}).Info("Челлендж принят")
	return ch, nil
}

// acceptExpired: вызов ждёт ответа не меньше ArenaAcceptTimeout.
func (s *Service) acceptExpired(ch *Challenge, now time.Time) bool {
	return !now.Before(ch.CreatedAt.Add(s.cfg.ArenaAcceptTimeout))
}

// Decline — вызванный игрок отказывается (или создатель отзывает вызов).
// Ставка создателя возвращается.
func (s *Service) Decline(ctx context.Context, challengeID, userID string) (*Refund, error) {
	return s.refund(ctx, challengeID, EventDecline, ReasonDeclined, func(ch *Challenge) error {
		if ch.Type != TypeDirect || (userID != ch.OpponentID && userID != ch.CreatorID) {
			return common.ErrNotChallenged
		}
		return nil
	})
}

// Join добавляет участника в открытый челлендж и списывает его ставку.
func (s *Service) Join(ctx context.Context, challengeID, userID, username string) (*Challenge, error) {
	var ch *Challenge
	err := s.store.InTx(ctx, func(tx Tx) error {
		var err error
		if ch, err = tx.Lock(ctx, challengeID); err != nil {
			return err
		}
		if ch.Type != TypeOpen {
			return common.ErrNotOpenChallenge
		}
		if _, err := Transition(ch.Status, EventJoin); err != nil {
			return err
		}
		now := s.now()
		if ch.HasEnded(now) {
			return common.ErrChallengeEnded
		}
		if ch.IsParticipant(userID) {
			return common.ErrAlreadyParticipant
		}
		if _, ok := ch.BetBy(userID); ok {
			return common.ErrSelfBet
		}

		if err := tx.Deduct(ctx, userID, ch.Wager, economy.ReasonArenaWager, "Arena wager: "+ch.GameTitle, ch.ID); err != nil {
			return err
		}
		p := Participant{UserID: userID, Username: username, Wager: ch.Wager, JoinedAt: now}
		if err := tx.AddParticipant(ctx, ch.ID, p); err != nil {
			return err
		}
		ch.Participants = append(ch.Participants, p)
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"challenge_id": ch.ID,
		"user_id":      userID,
		"participants": len(ch.Participants),
	}).Info("Игрок присоединился к челленджу")
	return ch, nil
}

// BetRequest — ставка зрителя.
type BetRequest struct {
	ChallengeID string
	UserID      string
	Username    string
	TargetID    string
	Amount      int64
}

// PlaceBet принимает ставку зрителя на участника.
func (s *Service) PlaceBet(ctx context.Context, req BetRequest) (*Bet, *Challenge, error) {
	if !s.cfg.FeatureArenaEnabled || !s.cfg.FeatureBettingEnabled {
		return nil, nil, common.ErrArenaDisabled
	}
	if req.Amount < s.cfg.ArenaMinBet || req.Amount > s.cfg.ArenaMaxBet {
		return nil, nil, fmt.Errorf("%w (%s–%s)", common.ErrBetOutOfRange,
			common.FormatGP(s.cfg.ArenaMinBet), common.FormatGP(s.cfg.ArenaMaxBet))
	}

	var (
		ch  *Challenge
		bet *Bet
	)
	err := s.store.InTx(ctx, func(tx Tx) error {
		var err error
		if ch, err = tx.Lock(ctx, req.ChallengeID); err != nil {
			return err
		}
		if _, err := Transition(ch.Status, EventBet); err != nil {
			return err
		}
		now := s.now()
		if !ch.BettingOpen(now) {
			return common.ErrBettingClosed
		}
		if ch.IsParticipant(req.UserID) {
			return common.ErrSelfBet
		}
		if !ch.IsParticipant(req.TargetID) {
			return common.ErrInvalidBetTarget
		}
		if _, ok := ch.BetBy(req.UserID); ok {
			return common.ErrAlreadyBet
		}

		if err := tx.Deduct(ctx, req.UserID, req.Amount, economy.ReasonArenaBet, "Arena bet: "+ch.GameTitle, ch.ID); err != nil {
			return err
		}
		bet = &Bet{
			UserID:       req.UserID,
			Username:     req.Username,
			TargetUserID: req.TargetID,
			Amount:       req.Amount,
			PlacedAt:     now,
		}
		if err := tx.AddBet(ctx, ch.ID, bet); err != nil {
			return err
		}
		ch.Bets = append(ch.Bets, *bet)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	log.WithFields(log.Fields{
		"challenge_id": ch.ID,
		"user_id":      req.UserID,
		"target":       req.TargetID,
		"amount":       req.Amount,
	}).Info("Ставка принята")
	return bet, ch, nil
}

// Get возвращает челлендж с участниками и ставками.
func (s *Service) Get(ctx context.Context, challengeID string) (*Challenge, error) {
	return s.store.Get(ctx, challengeID)
}

// Open возвращает ожидающие и активные челленджи.
func (s *Service) Open(ctx context.Context) ([]*Challenge, error) {
	return s.store.List(ctx, []Status{StatusPending, StatusActive}, ListLimit)
}

// Stats возвращает статистику арены пользователя (нулевую, если он не играл).
func (s *Service) Stats(ctx context.Context, userID string) (*Stats, error) {
	st, err := s.store.Stats(ctx, userID)
	if errors.Is(err, common.ErrNotFound) {
		return &Stats{UserID: userID}, nil
	}
	return st, err
}

// Refund — итог возврата.
type Refund struct {
	Challenge *Challenge
	Reason    string
	Amount    int64 // Всего возвращено
}

// RefundChallenge отменяет челлендж и возвращает все ставки участников и зрителей.
func (s *Service) RefundChallenge(ctx context.Context, challengeID, reason string) (*Refund, error) {
	return s.refund(ctx, challengeID, EventCancel, reason, nil)
}

// CheckTimeouts отменяет прямые вызовы, которые не приняли вовремя.
// Возвращает количество отменённых.
func (s *Service) CheckTimeouts(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.cfg.ArenaAcceptTimeout)
	expired, err := s.store.ListExpiredPending(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("ошибка получения просроченных вызовов: %w", err)
	}

	cancelled := 0
	for _, ch := range expired {
		if _, err := s.refund(ctx, ch.ID, EventTimeout, ReasonNotAccepted, nil); err != nil {
			var te *TransitionError
			if errors.As(err, &te) || errors.Is(err, common.ErrAlreadyProcessed) {
				continue
			}
			log.WithError(err).WithField("challenge_id", ch.ID).Error("Ошибка отмены просроченного вызова")
			continue
		}
		cancelled++
	}
	return cancelled, nil
}

// refund — общий путь возврата: блокировка, проверка перехода, захват processed,
// возврат ставок участников и невыплаченных ставок зрителей.
func (s *Service) refund(ctx context.Context, challengeID string, ev Event, reason string, guard func(*Challenge) error) (*Refund, error) {
	var ch *Challenge
	var total int64
	err := s.store.InTx(ctx, func(tx Tx) error {
		var err error
		if ch, err = tx.Lock(ctx, challengeID); err != nil {
			return err
		}
		if guard != nil {
			if err := guard(ch); err != nil {
				return err
			}
		}
		if ch.Processed {
			return common.ErrAlreadyProcessed
		}
		next, err := Transition(ch.Status, ev)
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

		credits := RefundCredits(ch.Participants, "Arena refund: "+reason)
		var refunds []BetResult
		for _, b := range ch.Bets {
			if b.Paid {
				continue
			}
			r := BetResult{BetID: b.ID, UserID: b.UserID, Amount: b.Amount, Payout: b.Amount, Kind: BetRefunded}
			if c, ok := r.Credit(ch.GameTitle); ok {
				credits = append(credits, c)
			}
			refunds = append(refunds, r)
		}
		for _, c := range byUser(credits) {
			if err := tx.Award(ctx, c, ch.ID); err != nil {
				return processingErr(ch.ID, StageRefund, err)
			}
			total += c.Amount
		}
		for _, r := range refunds {
			if err := tx.SettleBet(ctx, r); err != nil {
				return processingErr(ch.ID, StageRefund, err)
			}
		}
		for i := range ch.Bets {
			if !ch.Bets[i].Paid {
				ch.Bets[i].Paid, ch.Bets[i].Payout = true, ch.Bets[i].Amount
			}
		}

		ch.Status = next
		ch.CancelReason = reason
		ch.Processed = true
		ch.ProcessedAt = &now
		return tx.Update(ctx, ch)
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"challenge_id": ch.ID,
		"event":        ev,
		"reason":       reason,
		"refunded":     total,
	}).Info("Челлендж отменён")

	res := &Refund{Challenge: ch, Reason: reason, Amount: total}
	s.notifier.ChallengeRefunded(ctx, RefundedEvent{Challenge: ch, Reason: reason, Refunded: total})
	return res, nil
}

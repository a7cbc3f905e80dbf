package arena

import (
	"context"

	log "github.com/sirupsen/logrus"
)

// CompletedEvent — челлендж рассчитан.
type CompletedEvent struct {
	Challenge *Challenge
	Outcome   Outcome
	Pot       int64
	Bets      BetSplit
}

// RefundedEvent — челлендж отменён, ставки возвращены.
type RefundedEvent struct {
	Challenge *Challenge
	Reason    string
	Refunded  int64 // Всего возвращено GP (участникам и ставившим)
}

// Notifier получает события после коммита. Ошибки уведомлений на расчёт не влияют.
type Notifier interface {
	ChallengeCompleted(ctx context.Context, ev CompletedEvent)
	ChallengeRefunded(ctx context.Context, ev RefundedEvent)
}

// LogNotifier пишет события в лог; используется CLI и когда канал арены не задан.
type LogNotifier struct{}

func (LogNotifier) ChallengeCompleted(_ context.Context, ev CompletedEvent) {
	log.WithFields(log.Fields{
		"challenge_id": ev.Challenge.ID,
		"winner":       ev.Outcome.DisplayWinner(),
		"pot":          ev.Pot,
		"bets_paid":    ev.Bets.PaidOut,
	}).Info("Челлендж завершён")
}

func (LogNotifier) ChallengeRefunded(_ context.Context, ev RefundedEvent) {
	log.WithFields(log.Fields{
		"challenge_id": ev.Challenge.ID,
		"reason":       ev.Reason,
		"refunded":     ev.Refunded,
	}).Info("Челлендж отменён, GP возвращены")
}

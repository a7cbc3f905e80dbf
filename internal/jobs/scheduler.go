// Package jobs управляет фоновыми задачами (cron).
// scheduler.go настраивает расписание: расчёт завершившихся челленджей
// и отмену непринятых вызовов.
package jobs

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"github.com/marquessam/select-start-bot2-sub000/internal/features/arena"
)

// ArenaSweeper — фоновые операции арены (arena.Service).
type ArenaSweeper interface {
	CheckCompletedChallenges(ctx context.Context) (arena.SweepResult, error)
	CheckTimeouts(ctx context.Context) (int, error)
}

// Scheduler управляет фоновыми задачами.
type Scheduler struct {
	cron  *cron.Cron
	arena ArenaSweeper

	checkSpec   string
	timeoutSpec string
}

// NewScheduler создаёт планировщик. Задачи работают в UTC; следующий запуск
// задачи не начинается, пока не закончился предыдущий.
func NewScheduler(sweeper ArenaSweeper, checkSpec, timeoutSpec string) *Scheduler {
	logger := cron.PrintfLogger(log.StandardLogger())
	c := cron.New(cron.WithChain(
		cron.Recover(logger),
		cron.SkipIfStillRunning(logger),
	))

	return &Scheduler{
		cron:        c,
		arena:       sweeper,
		checkSpec:   checkSpec,
		timeoutSpec: timeoutSpec,
	}
}

// Start регистрирует задачи и запускает cron.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.checkSpec, func() { s.runSettlement(ctx) }); err != nil {
		return fmt.Errorf("некорректное расписание ARENA_CHECK_SPEC %q: %w", s.checkSpec, err)
	}
	if _, err := s.cron.AddFunc(s.timeoutSpec, func() { s.runTimeouts(ctx) }); err != nil {
		return fmt.Errorf("некорректное расписание ARENA_TIMEOUT_SPEC %q: %w", s.timeoutSpec, err)
	}

	s.cron.Start()
	log.WithFields(log.Fields{
		"check":   s.checkSpec,
		"timeout": s.timeoutSpec,
	}).Info("Планировщик задач запущен")
	return nil
}

func (s *Scheduler) runSettlement(ctx context.Context) {
	res, err := s.arena.CheckCompletedChallenges(ctx)
	if err != nil {
		log.WithError(err).Error("[CRON] Ошибка расчёта челленджей")
		return
	}
	if res.Due == 0 {
		log.Debug("[CRON] Нет челленджей к расчёту")
		return
	}
	log.WithFields(log.Fields{
		"due":      res.Due,
		"settled":  res.Settled,
		"refunded": res.Refunded,
		"deferred": res.Deferred,
		"skipped":  res.Skipped,
		"failed":   res.Failed,
	}).Info("[CRON] Расчёт челленджей")
}

func (s *Scheduler) runTimeouts(ctx context.Context) {
	n, err := s.arena.CheckTimeouts(ctx)
	if err != nil {
		log.WithError(err).Error("[CRON] Ошибка отмены просроченных вызовов")
		return
	}
	if n > 0 {
		log.WithField("cancelled", n).Info("[CRON] Просроченные вызовы отменены")
	}
}

// Stop останавливает планировщик и ждёт текущие задачи.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Info("Планировщик задач остановлен")
}

// Package app инициализирует все компоненты приложения.
// app.go — точка сборки: создаёт БД-пул, репозитории, сервисы, обработчики
// и собирает всё в один объект Bot. CLI использует ту же сборку без Discord.
package app

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"

	"github.com/marquessam/select-start-bot2-sub000/internal/bot"
	"github.com/marquessam/select-start-bot2-sub000/internal/config"
	"github.com/marquessam/select-start-bot2-sub000/internal/db/postgres"
	"github.com/marquessam/select-start-bot2-sub000/internal/features/admin"
	"github.com/marquessam/select-start-bot2-sub000/internal/features/arena"
	"github.com/marquessam/select-start-bot2-sub000/internal/features/economy"
	"github.com/marquessam/select-start-bot2-sub000/internal/features/leaderboard"
	"github.com/marquessam/select-start-bot2-sub000/internal/features/members"
	"github.com/marquessam/select-start-bot2-sub000/internal/jobs"
)

// Services — доменные сервисы без транспорта.
type Services struct {
	DB          *pgxpool.Pool
	Members     *members.Service
	Economy     *economy.Service
	Arena       *arena.Service
	Admin       *admin.Service
	Leaderboard *leaderboard.Client
}

// App содержит все компоненты бота.
type App struct {
	*Services
	Bot       *bot.Bot
	Scheduler *jobs.Scheduler
	Session   *discordgo.Session
}

// NewServices подключается к БД, применяет миграции и создаёт сервисы.
// Уведомления арены пишутся в лог, пока их не заменит SetNotifier.
func NewServices(ctx context.Context, cfg *config.Config) (*Services, error) {
	// === 1. База данных ===
	pool, err := postgres.NewPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к БД: %w", err)
	}

	if err := runMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ошибка миграций: %w", err)
	}

	// === 2. Репозитории ===
	memberRepo := members.NewRepository(pool)
	economyRepo := economy.NewRepository(pool)
	arenaRepo := arena.NewRepository(pool, economyRepo)
	adminRepo := admin.NewRepository(pool)

	// === 3. Сервисы ===
	lb := leaderboard.NewClient(cfg.RABaseURL, cfg.RAAPIUser, cfg.RAAPIKey, cfg.RATimeout)
	economyService := economy.NewService(economyRepo)
	memberService := members.NewService(memberRepo, economyService, cfg.EconomyStartingBalance)

	return &Services{
		DB:          pool,
		Members:     memberService,
		Economy:     economyService,
		Arena:       arena.NewService(arenaRepo, lb, nil, cfg),
		Admin:       admin.NewService(adminRepo, memberService, cfg),
		Leaderboard: lb,
	}, nil
}

// New собирает полноценного бота: сервисы, Discord-сессию, обработчики и cron.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	if err := cfg.RequireDiscord(); err != nil {
		return nil, err
	}

	svc, err := NewServices(ctx, cfg)
	if err != nil {
		return nil, err
	}

	// === 4. Discord ===
	session, err := discordgo.New("Bot " + cfg.DiscordBotToken)
	if err != nil {
		svc.DB.Close()
		return nil, fmt.Errorf("ошибка создания Discord-сессии: %w", err)
	}
	svc.Arena.SetNotifier(bot.NewChannelNotifier(session, cfg.ArenaChannelID))

	// === 5. Обработчики ===
	memberHandler := members.NewHandler(svc.Members)
	economyHandler := economy.NewHandler(svc.Economy)
	arenaHandler := arena.NewHandler(svc.Arena, svc.Members, svc.Leaderboard, svc.Admin)
	adminHandler := admin.NewHandler(svc.Admin)

	// === 6. Собираем бота ===
	b := bot.New(session, cfg, svc.Members, memberHandler, economyHandler, arenaHandler, adminHandler)

	// === 7. Планировщик задач ===
	scheduler := jobs.NewScheduler(svc.Arena, cfg.ArenaCheckSpec, cfg.ArenaTimeoutSpec)

	log.WithField("arena_channel", cfg.ArenaChannelID).Info("Приложение собрано")
	return &App{
		Services:  svc,
		Bot:       b,
		Scheduler: scheduler,
		Session:   session,
	}, nil
}

// Close освобождает пул соединений.
func (s *Services) Close() {
	s.DB.Close()
}

// runMigrations выполняет все SQL-миграции.
func runMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	return postgres.WithMigrationLock(ctx, pool, func() error {
		if err := postgres.PrepareMigrations(ctx, pool); err != nil {
			return err
		}
		for _, m := range migrations {
			applied, err := postgres.ExecMigrationSQL(ctx, pool, m.version, m.sql)
			if err != nil {
				return fmt.Errorf("миграция %d (%s): %w", m.version, m.name, err)
			}
			if applied {
				log.Infof("Миграция %d (%s) применена", m.version, m.name)
			}
		}
		return nil
	})
}

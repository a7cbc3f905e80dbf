// Package postgres управляет подключением к PostgreSQL и учётом миграций.
// Один pgxpool на процесс; бот и arenactl могут стартовать одновременно,
// поэтому миграции выполняются под advisory-блокировкой.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"

	"github.com/marquessam/select-start-bot2-sub000/internal/config"
)

// migrationLockKey — ключ pg_advisory_lock для миграций.
const migrationLockKey int64 = 0x5e1ec7

// NewPool создаёт пул и ждёт, пока база станет доступна (не дольше DB_CONNECT_TIMEOUT).
// В docker-compose бот часто поднимается раньше postgres.
func NewPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseDSN())
	if err != nil {
		return nil, fmt.Errorf("ошибка парсинга DSN: %w", err)
	}

	poolConfig.MaxConns = cfg.DBMaxConns
	poolConfig.MinConns = cfg.DBMinConns
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute
	// Все времена арены — TIMESTAMPTZ, сравниваем в UTC
	poolConfig.ConnConfig.RuntimeParams["timezone"] = "UTC"
	poolConfig.ConnConfig.RuntimeParams["application_name"] = "select-start-arena"

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания пула: %w", err)
	}

	if err := waitReady(ctx, pool, cfg.DBConnectTimeout); err != nil {
		pool.Close()
		return nil, err
	}

	log.WithFields(log.Fields{
		"host":      cfg.DBHost,
		"db":        cfg.DBName,
		"max_conns": cfg.DBMaxConns,
	}).Info("Подключение к PostgreSQL установлено")
	return pool, nil
}

// waitReady пингует базу с растущей паузой, пока не истечёт timeout.
func waitReady(ctx context.Context, pool *pgxpool.Pool, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	delay := 500 * time.Millisecond
	for attempt := 1; ; attempt++ {
		err := pool.Ping(ctx)
		if err == nil {
			return nil
		}
		log.WithError(err).WithField("attempt", attempt).Warn("База данных пока недоступна")

		select {
		case <-ctx.Done():
			return fmt.Errorf("база данных недоступна: %w", err)
		case <-time.After(delay):
		}
		delay = min(delay*2, 5*time.Second)
	}
}

// PrepareMigrations создаёт таблицу schema_migrations, в которой
// ExecMigrationSQL отмечает применённые версии.
func PrepareMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("ошибка создания таблицы миграций: %w", err)
	}
	return nil
}

// WithMigrationLock выполняет fn, удерживая сессионную advisory-блокировку.
// Второй процесс ждёт, пока первый закончит миграции.
func WithMigrationLock(ctx context.Context, pool *pgxpool.Pool, fn func() error) error {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("не удалось получить соединение: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, `SELECT pg_advisory_lock($1)`, migrationLockKey); err != nil {
		return fmt.Errorf("не удалось взять блокировку миграций: %w", err)
	}
	defer func() {
		// ctx может быть уже отменён, снимаем блокировку отдельным контекстом
		unlockCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if _, err := conn.Exec(unlockCtx, `SELECT pg_advisory_unlock($1)`, migrationLockKey); err != nil {
			log.WithError(err).Warn("Не удалось снять блокировку миграций")
		}
	}()

	return fn()
}

// Package members — repository.go отвечает за все операции с таблицей members в БД.
// Каждая функция выполняет один SQL-запрос и возвращает результат или ошибку.
package members

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/marquessam/select-start-bot2-sub000/internal/common"
	"github.com/marquessam/select-start-bot2-sub000/internal/db/postgres"
)

const memberColumns = `id, discord_id, username, ra_username, is_admin, is_banned, joined_at, created_at, updated_at`

type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Create добавляет нового участника.
// Занятый ник RA → common.ErrAlreadyRegistered.
func (r *Repository) Create(ctx context.Context, m *Member) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO members (discord_id, username, ra_username, is_admin, is_banned)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, joined_at, created_at, updated_at
	`, m.DiscordID, m.Username, m.RAUsername, m.IsAdmin, m.IsBanned,
	).Scan(&m.ID, &m.JoinedAt, &m.CreatedAt, &m.UpdatedAt)
	if postgres.IsUniqueViolation(err, "") {
		return common.ErrAlreadyRegistered
	}
	if err != nil {
		return fmt.Errorf("ошибка создания участника: %w", err)
	}
	return nil
}

// GetByDiscordID: если не найден — common.ErrUserNotFound.
func (r *Repository) GetByDiscordID(ctx context.Context, discordID string) (*Member, error) {
	return r.queryOne(ctx, `SELECT `+memberColumns+` FROM members WHERE discord_id = $1`, discordID)
}

// GetByRAUsername ищет по нику RetroAchievements без учёта регистра.
func (r *Repository) GetByRAUsername(ctx context.Context, raUsername string) (*Member, error) {
	return r.queryOne(ctx, `SELECT `+memberColumns+` FROM members WHERE LOWER(ra_username) = LOWER($1)`, raUsername)
}

// GetMany возвращает участников по списку Discord ID (порядок не гарантирован).
func (r *Repository) GetMany(ctx context.Context, discordIDs []string) ([]*Member, error) {
	return r.queryMembers(ctx, `SELECT `+memberColumns+` FROM members WHERE discord_id = ANY($1)`, discordIDs)
}

func (r *Repository) Exists(ctx context.Context, discordID string) (bool, error) {
	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM members WHERE discord_id = $1)`, discordID).Scan(&exists); err != nil {
		return false, fmt.Errorf("ошибка проверки существования: %w", err)
	}
	return exists, nil
}

// UpdateUsername обновляет имя в Discord, если оно изменилось.
func (r *Repository) UpdateUsername(ctx context.Context, discordID, username string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE members SET username = $2, updated_at = NOW()
		WHERE discord_id = $1 AND username IS DISTINCT FROM $2
	`, discordID, username)
	if err != nil {
		return fmt.Errorf("ошибка обновления имени участника: %w", err)
	}
	return nil
}

// SetAdmin выдаёт или снимает права администратора.
func (r *Repository) SetAdmin(ctx context.Context, discordID string, isAdmin bool) error {
	tag, err := r.db.Exec(ctx, `UPDATE members SET is_admin = $2, updated_at = NOW() WHERE discord_id = $1`, discordID, isAdmin)
	if err != nil {
		return fmt.Errorf("ошибка обновления флага админа: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return common.ErrUserNotFound
	}
	return nil
}

func (r *Repository) queryOne(ctx context.Context, query string, args ...any) (*Member, error) {
	var m Member
	err := r.db.QueryRow(ctx, query, args...).Scan(
		&m.ID, &m.DiscordID, &m.Username, &m.RAUsername, &m.IsAdmin, &m.IsBanned,
		&m.JoinedAt, &m.CreatedAt, &m.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения участника: %w", err)
	}
	return &m, nil
}

func (r *Repository) queryMembers(ctx context.Context, query string, args ...any) ([]*Member, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса участников: %w", err)
	}
	defer rows.Close()

	var out []*Member
	for rows.Next() {
		var m Member
		if err := rows.Scan(
			&m.ID, &m.DiscordID, &m.Username, &m.RAUsername, &m.IsAdmin, &m.IsBanned,
			&m.JoinedAt, &m.CreatedAt, &m.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("ошибка сканирования строки: %w", err)
		}
		out = append(out, &m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка чтения строк: %w", err)
	}
	return out, nil
}

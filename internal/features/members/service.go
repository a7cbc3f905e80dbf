// Package members — service.go содержит бизнес-логику управления участниками.
// Сервис координирует регистрацию, проверку членства и обновление информации.
package members

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/marquessam/select-start-bot2-sub000/internal/common"
)

// raUsernamePattern — допустимый ник RetroAchievements.
var raUsernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]{2,20}$`)

// ErrInvalidRAUsername — ник RA не проходит проверку формата.
var ErrInvalidRAUsername = errors.New("RetroAchievements username must be 2-20 letters, digits or underscores")

// AccountOpener открывает GP-счёт новому участнику (economy.Service).
type AccountOpener interface {
	OpenAccount(ctx context.Context, userID string, startingBalance int64) error
}

// Service управляет участниками сервера.
type Service struct {
	repo            *Repository
	accounts        AccountOpener
	startingBalance int64
}

// NewService создаёт новый сервис участников.
func NewService(repo *Repository, accounts AccountOpener, startingBalance int64) *Service {
	return &Service{repo: repo, accounts: accounts, startingBalance: startingBalance}
}

// Register регистрирует участника и открывает ему счёт со стартовым балансом.
//
// Параметры:
//   - discordID: Discord user ID
//   - username: имя в Discord
//   - raUsername: ник на RetroAchievements, по нему ищутся места в лидербордах
func (s *Service) Register(ctx context.Context, discordID, username, raUsername string) (*Member, error) {
	raUsername, err := NormalizeRAUsername(raUsername)
	if err != nil {
		return nil, err
	}

	exists, err := s.repo.Exists(ctx, discordID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, common.ErrAlreadyRegistered
	}

	member := &Member{
		DiscordID:  discordID,
		Username:   username,
		RAUsername: raUsername,
	}
	if err := s.repo.Create(ctx, member); err != nil {
		return nil, err
	}

	if err := s.accounts.OpenAccount(ctx, discordID, s.startingBalance); err != nil {
		return nil, fmt.Errorf("ошибка открытия счёта: %w", err)
	}

	log.WithFields(log.Fields{
		"user_id":     discordID,
		"ra_username": raUsername,
	}).Info("Новый участник зарегистрирован")

	return member, nil
}

// IsMember проверяет, зарегистрирован ли пользователь.
func (s *Service) IsMember(ctx context.Context, discordID string) (bool, error) {
	return s.repo.Exists(ctx, discordID)
}

// GetByDiscordID возвращает участника по Discord ID.
func (s *Service) GetByDiscordID(ctx context.Context, discordID string) (*Member, error) {
	return s.repo.GetByDiscordID(ctx, discordID)
}

// GetMany возвращает участников по списку ID в виде map.
func (s *Service) GetMany(ctx context.Context, discordIDs []string) (map[string]*Member, error) {
	list, err := s.repo.GetMany(ctx, discordIDs)
	if err != nil {
		return nil, err
	}
	out := make(map[string]*Member, len(list))
	for _, m := range list {
		out[m.DiscordID] = m
	}
	return out, nil
}

// Touch обновляет имя в Discord. Ошибки только логируются.
func (s *Service) Touch(ctx context.Context, discordID, username string) {
	if err := s.repo.UpdateUsername(ctx, discordID, username); err != nil {
		log.WithError(err).WithField("user_id", discordID).Warn("Не удалось обновить имя участника")
	}
}

// SetAdmin выдаёт или снимает права администратора (используется из CLI).
func (s *Service) SetAdmin(ctx context.Context, discordID string, isAdmin bool) error {
	return s.repo.SetAdmin(ctx, discordID, isAdmin)
}

// NormalizeRAUsername обрезает пробелы и проверяет формат ника.
func NormalizeRAUsername(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if !raUsernamePattern.MatchString(name) {
		return "", ErrInvalidRAUsername
	}
	return name, nil
}

// Package admin — service.go содержит вход по паролю и проверку сессий.
// Администратор — участник с флагом is_admin, который вошёл через /adminlogin
// не более SessionTTL назад.
package admin

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/argon2"

	"github.com/marquessam/select-start-bot2-sub000/internal/common"
	"github.com/marquessam/select-start-bot2-sub000/internal/config"
	"github.com/marquessam/select-start-bot2-sub000/internal/features/members"
)

// sessionStore — то, что сервису нужно от Repository.
type sessionStore interface {
	CreateSession(ctx context.Context, session *Session) error
	GetActiveSession(ctx context.Context, userID string) (*Session, error)
	DeactivateSession(ctx context.Context, userID string) error
	UpdateActivity(ctx context.Context, userID string) error
	LogAttempt(ctx context.Context, userID string, success bool) error
	GetRecentAttempts(ctx context.Context, userID string, period time.Duration) (int, error)
}

// MemberLookup ищет участника по Discord ID.
type MemberLookup interface {
	GetByDiscordID(ctx context.Context, discordID string) (*members.Member, error)
}

// Service управляет входом администраторов.
type Service struct {
	repo    sessionStore
	members MemberLookup
	cfg     *config.Config
}

// NewService создаёт сервис админки.
func NewService(repo *Repository, members MemberLookup, cfg *config.Config) *Service {
	return &Service{repo: repo, members: members, cfg: cfg}
}

// Login проверяет пароль администратора и открывает сессию на SessionTTL.
// Защита от brute-force: MaxAttempts неудачных попыток за AttemptWindow блокируют вход.
func (s *Service) Login(ctx context.Context, userID, password string) error {
	if err := s.requireAdminFlag(ctx, userID); err != nil {
		return err
	}

	attempts, err := s.repo.GetRecentAttempts(ctx, userID, AttemptWindow)
	if err != nil {
		return fmt.Errorf("ошибка проверки попыток входа: %w", err)
	}
	if attempts >= MaxAttempts {
		return common.ErrTooManyAttempts
	}

	match := s.cfg.AdminPasswordHash != "" && verifyArgon2id(password, s.cfg.AdminPasswordHash)
	if err := s.repo.LogAttempt(ctx, userID, match); err != nil {
		log.WithError(err).WithField("user_id", userID).Warn("Не удалось записать попытку входа")
	}
	if !match {
		log.WithField("user_id", userID).Warn("Неверный пароль администратора")
		return common.ErrWrongPassword
	}

	session := &Session{
		UserID:       userID,
		SessionToken: generateSecureToken(),
		ExpiresAt:    time.Now().Add(SessionTTL),
	}
	if err := s.repo.CreateSession(ctx, session); err != nil {
		return err
	}

	log.WithField("user_id", userID).Info("Администратор вошёл")
	return nil
}

// Logout закрывает сессию.
func (s *Service) Logout(ctx context.Context, userID string) error {
	return s.repo.DeactivateSession(ctx, userID)
}

// RequireAdmin возвращает nil, если у пользователя есть флаг администратора и живая сессия.
func (s *Service) RequireAdmin(ctx context.Context, userID string) error {
	if err := s.requireAdminFlag(ctx, userID); err != nil {
		return err
	}
	if _, err := s.repo.GetActiveSession(ctx, userID); err != nil {
		return err
	}
	if err := s.repo.UpdateActivity(ctx, userID); err != nil {
		log.WithError(err).WithField("user_id", userID).Warn("Не удалось обновить активность сессии")
	}
	return nil
}

func (s *Service) requireAdminFlag(ctx context.Context, userID string) error {
	m, err := s.members.GetByDiscordID(ctx, userID)
	if errors.Is(err, common.ErrNotFound) {
		return common.ErrNotAdmin
	}
	if err != nil {
		return err
	}
	if !m.IsAdmin {
		return common.ErrNotAdmin
	}
	return nil
}

// --- Криптографические утилиты ---

// Параметры Argon2id для новых хешей
const (
	argonMemory      uint32 = 64 * 1024 // 64 MB
	argonIterations  uint32 = 3
	argonParallelism uint8  = 2
	argonKeyLength   uint32 = 32
)

// HashPassword возвращает хеш в формате $argon2id$v=19$m=...,t=...,p=...$<salt>$<hash>.
func HashPassword(password string) (string, error) {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("ошибка генерации соли: %w", err)
	}
	hash := argon2.IDKey([]byte(password), salt, argonIterations, argonMemory, argonParallelism, argonKeyLength)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, argonMemory, argonIterations, argonParallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	), nil
}

// verifyArgon2id проверяет пароль по хешу Argon2id.
func verifyArgon2id(password, encodedHash string) bool {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		log.Error("Некорректный формат хеша Argon2id")
		return false
	}

	var (
		memory      uint32
		iterations  uint32
		parallelism uint8
	)
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &parallelism); err != nil {
		log.WithError(err).Error("Ошибка парсинга параметров Argon2id")
		return false
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		log.WithError(err).Error("Ошибка декодирования соли")
		return false
	}
	expectedHash, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		log.WithError(err).Error("Ошибка декодирования хеша")
		return false
	}

	computedHash := argon2.IDKey([]byte(password), salt, iterations, memory, parallelism, uint32(len(expectedHash)))

	// Сравнение в постоянном времени
	return subtle.ConstantTimeCompare(computedHash, expectedHash) == 1
}

// generateSecureToken генерирует криптографически безопасный токен сессии.
func generateSecureToken() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("fallback-%d", time.Now().UnixNano())
	}
	return base64.URLEncoding.EncodeToString(b)
}

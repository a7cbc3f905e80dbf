// Package config загружает конфигурацию бота из переменных окружения.
// Используется envconfig для маппинга переменных окружения на поля структуры.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config содержит ВСЕ настройки приложения.
type Config struct {
	// --- Discord ---
	DiscordBotToken string `envconfig:"DISCORD_BOT_TOKEN"`
	// Гильдия, в которой регистрируются slash-команды. Пусто — глобальная регистрация.
	DiscordGuildID string `envconfig:"DISCORD_GUILD_ID"`
	// Канал для объявлений арены (итоги, возвраты)
	ArenaChannelID string `envconfig:"ARENA_CHANNEL_ID"`

	// --- Database ---
	// В Docker внутри контейнера "localhost" почти всегда неправильно.
	// Дефолт ставим "postgres" (имя сервиса в docker-compose), а для локалки переопределяй DB_HOST=localhost.
	DBHost     string `envconfig:"DB_HOST" default:"postgres"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" default:"botuser"`
	DBPassword string `envconfig:"DB_PASSWORD" required:"true"`
	DBName     string `envconfig:"DB_NAME" default:"select_start"`
	DBSSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
	DBMaxConns int32  `envconfig:"DB_MAX_CONNS" default:"25"`
	DBMinConns int32  `envconfig:"DB_MIN_CONNS" default:"5"`
	// Сколько ждать, пока postgres поднимется
	DBConnectTimeout time.Duration `envconfig:"DB_CONNECT_TIMEOUT" default:"30s"`

	// --- Application ---
	AppEnv      string `envconfig:"APP_ENV" default:"development"`
	AppLogLevel string `envconfig:"APP_LOG_LEVEL" default:"debug"`

	// --- Admin ---
	AdminPasswordHash string `envconfig:"ADMIN_PASSWORD_HASH"`

	// --- RetroAchievements ---
	RAAPIUser string        `envconfig:"RA_API_USER"`
	RAAPIKey  string        `envconfig:"RA_API_KEY" required:"true"`
	RABaseURL string        `envconfig:"RA_BASE_URL" default:"https://retroachievements.org/API"`
	RATimeout time.Duration `envconfig:"RA_TIMEOUT" default:"15s"`

	// --- Economy ---
	EconomyStartingBalance int64  `envconfig:"ECONOMY_STARTING_BALANCE" default:"1000"`
	EconomyCurrencyName    string `envconfig:"ECONOMY_CURRENCY_NAME" default:"GP"`

	// --- Arena ---
	ArenaMinWager int64 `envconfig:"ARENA_MIN_WAGER" default:"10"`
	ArenaMaxWager int64 `envconfig:"ARENA_MAX_WAGER" default:"10000"`
	ArenaMinBet   int64 `envconfig:"ARENA_MIN_BET" default:"10"`
	ArenaMaxBet   int64 `envconfig:"ARENA_MAX_BET" default:"100"`
	// Длительность челленджа по умолчанию и максимум
	ArenaDefaultDuration time.Duration `envconfig:"ARENA_DEFAULT_DURATION" default:"168h"`
	ArenaMaxDuration     time.Duration `envconfig:"ARENA_MAX_DURATION" default:"720h"`
	// Ставки принимаются столько времени после старта (но не позже конца)
	ArenaBettingWindow time.Duration `envconfig:"ARENA_BETTING_WINDOW" default:"72h"`
	// Непринятый прямой вызов отменяется через это время
	ArenaAcceptTimeout time.Duration `envconfig:"ARENA_ACCEPT_TIMEOUT" default:"24h"`
	// Сколько ждать лидерборд после окончания, прежде чем вернуть ставки
	ArenaSettleGrace time.Duration `envconfig:"ARENA_SETTLE_GRACE" default:"24h"`
	// Сколько челленджей рассчитываем параллельно за один тик
	ArenaSettleConcurrency int `envconfig:"ARENA_SETTLE_CONCURRENCY" default:"4"`
	// Cron-расписания
	ArenaCheckSpec   string `envconfig:"ARENA_CHECK_SPEC" default:"@every 5m"`
	ArenaTimeoutSpec string `envconfig:"ARENA_TIMEOUT_SPEC" default:"@every 15m"`

	// --- Rate Limiting ---
	RateLimitPerMinute int `envconfig:"RATE_LIMIT_PER_MINUTE" default:"20"`
	RateLimitBurst     int `envconfig:"RATE_LIMIT_BURST" default:"5"`

	// --- Feature Flags ---
	FeatureArenaEnabled   bool `envconfig:"FEATURE_ARENA_ENABLED" default:"true"`
	FeatureBettingEnabled bool `envconfig:"FEATURE_BETTING_ENABLED" default:"true"`
}

// DatabaseDSN возвращает строку подключения к PostgreSQL в формате DSN.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
}

// Validate проверяет согласованность значений, которые envconfig проверить не может.
func (c *Config) Validate() error {
	if c.DBMaxConns <= 0 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("некорректные DB_MIN_CONNS/DB_MAX_CONNS")
	}
	if c.DBConnectTimeout <= 0 {
		return fmt.Errorf("DB_CONNECT_TIMEOUT должен быть > 0")
	}
	if c.ArenaMinWager <= 0 || c.ArenaMinWager > c.ArenaMaxWager {
		return fmt.Errorf("некорректные ARENA_MIN_WAGER/ARENA_MAX_WAGER")
	}
	if c.ArenaMinBet <= 0 || c.ArenaMinBet > c.ArenaMaxBet {
		return fmt.Errorf("некорректные ARENA_MIN_BET/ARENA_MAX_BET")
	}
	if c.ArenaDefaultDuration <= 0 || c.ArenaDefaultDuration > c.ArenaMaxDuration {
		return fmt.Errorf("ARENA_DEFAULT_DURATION должен быть > 0 и <= ARENA_MAX_DURATION")
	}
	if c.ArenaBettingWindow <= 0 || c.ArenaAcceptTimeout <= 0 {
		return fmt.Errorf("ARENA_BETTING_WINDOW и ARENA_ACCEPT_TIMEOUT должны быть > 0")
	}
	if c.ArenaSettleConcurrency <= 0 {
		return fmt.Errorf("ARENA_SETTLE_CONCURRENCY должен быть > 0")
	}
	if c.EconomyStartingBalance < 0 {
		return fmt.Errorf("ECONOMY_STARTING_BALANCE не может быть отрицательным")
	}
	if c.RateLimitPerMinute <= 0 || c.RateLimitBurst <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE и RATE_LIMIT_BURST должны быть > 0")
	}
	return nil
}

// RequireDiscord проверяет настройки, без которых не стартует сам бот
// (CLI их не требует).
func (c *Config) RequireDiscord() error {
	if c.DiscordBotToken == "" {
		return fmt.Errorf("DISCORD_BOT_TOKEN не задан")
	}
	return nil
}

// Load читает переменные окружения и заполняет структуру Config.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("не удалось загрузить конфигурацию: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

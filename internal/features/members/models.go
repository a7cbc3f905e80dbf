// Package members управляет зарегистрированными участниками сервера.
// models.go описывает структуры данных для работы с таблицей members.
package members

import "time"

// Member представляет участника в базе данных.
// Запись создаётся командой /register: без неё нельзя ни держать GP,
// ни участвовать в арене.
type Member struct {
	ID         int64     `db:"id"`          // Автоинкрементный ID записи в БД
	DiscordID  string    `db:"discord_id"`  // Discord user ID (snowflake, уникальный)
	Username   string    `db:"username"`    // Имя в Discord на момент последнего обновления
	RAUsername string    `db:"ra_username"` // Ник на RetroAchievements (уникальный без учёта регистра)
	IsAdmin    bool      `db:"is_admin"`    // Флаг администратора
	IsBanned   bool      `db:"is_banned"`   // Флаг бана
	JoinedAt   time.Time `db:"joined_at"`   // Когда зарегистрировался
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

// DisplayName возвращает отображаемое имя: ник RA, если есть, иначе имя в Discord.
func (m *Member) DisplayName() string {
	if m.RAUsername != "" {
		return m.RAUsername
	}
	return m.Username
}

// Mention — упоминание участника в сообщении Discord.
func (m *Member) Mention() string {
	return "<@" + m.DiscordID + ">"
}

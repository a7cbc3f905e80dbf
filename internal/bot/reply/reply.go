// Package reply — общие утилиты ответа на interaction'ы Discord.
// Ими пользуются обработчики всех фич, поэтому пакет не зависит от internal/bot.
package reply

import (
	"time"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"
)

// Цвета embed'ов
const (
	ColorInfo    = 0x5865F2
	ColorSuccess = 0x57F287
	ColorWarning = 0xFEE75C
	ColorError   = 0xED4245
	ColorArena   = 0xE67E22
)

// Text отвечает текстом. ephemeral — видно только автору команды.
func Text(s *discordgo.Session, i *discordgo.InteractionCreate, content string, ephemeral bool) {
	data := &discordgo.InteractionResponseData{Content: content}
	if ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	respond(s, i, data)
}

// Error отвечает эфемерным сообщением об ошибке.
func Error(s *discordgo.Session, i *discordgo.InteractionCreate, msg string) {
	Text(s, i, "❌ "+msg, true)
}

// Embed отвечает одним embed'ом.
func Embed(s *discordgo.Session, i *discordgo.InteractionCreate, embed *discordgo.MessageEmbed, ephemeral bool) {
	if embed.Timestamp == "" {
		embed.Timestamp = time.Now().Format(time.RFC3339)
	}
	data := &discordgo.InteractionResponseData{Embeds: []*discordgo.MessageEmbed{embed}}
	if ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	respond(s, i, data)
}

func respond(s *discordgo.Session, i *discordgo.InteractionCreate, data *discordgo.InteractionResponseData) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: data,
	})
	if err != nil {
		log.WithError(err).WithField("interaction_id", i.ID).Error("Ошибка ответа на interaction")
	}
}

// Defer подтверждает interaction, если ответ займёт больше 3 секунд.
func Defer(s *discordgo.Session, i *discordgo.InteractionCreate, ephemeral bool) {
	data := &discordgo.InteractionResponseData{}
	if ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: data,
	})
	if err != nil {
		log.WithError(err).WithField("interaction_id", i.ID).Error("Ошибка defer interaction")
	}
}

// EditText заменяет отложенный ответ текстом.
func EditText(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	if _, err := s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{Content: &content}); err != nil {
		log.WithError(err).WithField("interaction_id", i.ID).Error("Ошибка редактирования ответа")
	}
}

// User возвращает автора interaction'а (в гильдии — Member.User, в DM — User).
func User(i *discordgo.InteractionCreate) *discordgo.User {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User
	}
	return i.User
}

// Options собирает опции команды (или подкоманды) в map по имени.
func Options(opts []*discordgo.ApplicationCommandInteractionDataOption) map[string]*discordgo.ApplicationCommandInteractionDataOption {
	m := make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(opts))
	for _, opt := range opts {
		m[opt.Name] = opt
	}
	return m
}

// Subcommand возвращает имя подкоманды и её опции.
func Subcommand(i *discordgo.InteractionCreate) (string, map[string]*discordgo.ApplicationCommandInteractionDataOption) {
	data := i.ApplicationCommandData()
	if len(data.Options) == 0 {
		return "", nil
	}
	sub := data.Options[0]
	if sub.Type != discordgo.ApplicationCommandOptionSubCommand {
		return "", Options(data.Options)
	}
	return sub.Name, Options(sub.Options)
}

// EditEmbed заменяет отложенный ответ embed'ом.
func EditEmbed(s *discordgo.Session, i *discordgo.InteractionCreate, embed *discordgo.MessageEmbed, components ...discordgo.MessageComponent) {
	if embed.Timestamp == "" {
		embed.Timestamp = time.Now().Format(time.RFC3339)
	}
	edit := &discordgo.WebhookEdit{Embeds: &[]*discordgo.MessageEmbed{embed}}
	if len(components) > 0 {
		edit.Components = &components
	}
	if _, err := s.InteractionResponseEdit(i.Interaction, edit); err != nil {
		log.WithError(err).WithField("interaction_id", i.ID).Error("Ошибка редактирования ответа")
	}
}

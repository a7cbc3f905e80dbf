// Package middleware содержит промежуточные обработчики interaction'ов:
// логирование, восстановление после паники и rate-limiting.
package middleware

import (
	"strings"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"
)

// InteractionFields собирает поля лога для interaction'а.
func InteractionFields(i *discordgo.InteractionCreate) log.Fields {
	fields := log.Fields{
		"interaction_id": i.ID,
		"guild_id":       i.GuildID,
		"channel_id":     i.ChannelID,
	}
	if u := interactionUser(i); u != nil {
		fields["user_id"] = u.ID
		fields["username"] = u.Username
	}

	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		fields["command"] = CommandPath(i.ApplicationCommandData())
	case discordgo.InteractionMessageComponent:
		fields["custom_id"] = i.MessageComponentData().CustomID
	}
	return fields
}

// LogInteraction логирует входящий interaction.
func LogInteraction(i *discordgo.InteractionCreate) {
	log.WithFields(InteractionFields(i)).Debug("Входящий interaction")
}

// CommandPath возвращает "arena bet" для /arena bet.
func CommandPath(data discordgo.ApplicationCommandInteractionData) string {
	parts := []string{data.Name}
	opts := data.Options
	for len(opts) > 0 {
		o := opts[0]
		if o.Type != discordgo.ApplicationCommandOptionSubCommand &&
			o.Type != discordgo.ApplicationCommandOptionSubCommandGroup {
			break
		}
		parts = append(parts, o.Name)
		opts = o.Options
	}
	return strings.Join(parts, " ")
}

func interactionUser(i *discordgo.InteractionCreate) *discordgo.User {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User
	}
	return i.User
}

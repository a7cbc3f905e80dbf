// Package filters решает, обслуживать ли interaction вообще.
package filters

import (
	"context"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"
)

// MemberChecker проверяет регистрацию участника.
type MemberChecker interface {
	IsMember(ctx context.Context, discordID string) (bool, error)
}

// GuildFilter пропускает interaction'ы из своей гильдии и личные сообщения
// зарегистрированных участников. Пустой guildID разрешает любую гильдию.
type GuildFilter struct {
	guildID string
	members MemberChecker
}

func NewGuildFilter(guildID string, members MemberChecker) *GuildFilter {
	return &GuildFilter{guildID: guildID, members: members}
}

// CheckAccess возвращает false, если interaction нужно проигнорировать.
func (f *GuildFilter) CheckAccess(ctx context.Context, i *discordgo.InteractionCreate) bool {
	logger := log.WithFields(log.Fields{
		"component": "GuildFilter",
		"guild_id":  i.GuildID,
		"channel":   i.ChannelID,
	})

	// 1) Гильдия
	if i.GuildID != "" {
		if f.guildID == "" || i.GuildID == f.guildID {
			return true
		}
		logger.Info("deny: foreign guild")
		return false
	}

	// 2) Личка: только участники из БД
	if i.User == nil {
		logger.Warn("nil user in DM interaction")
		return false
	}
	isMember, err := f.members.IsMember(ctx, i.User.ID)
	if err != nil {
		logger.WithError(err).Error("member check failed (db)")
		return false
	}
	if !isMember {
		logger.WithField("user_id", i.User.ID).Debug("deny: DM from unregistered user")
	}
	return isMember
}

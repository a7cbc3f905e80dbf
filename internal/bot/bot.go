// Package bot содержит главный модуль бота — подключение к Discord,
// регистрацию slash-команд и маршрутизацию interaction'ов.
package bot

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"

	"github.com/marquessam/select-start-bot2-sub000/internal/bot/filters"
	"github.com/marquessam/select-start-bot2-sub000/internal/bot/middleware"
	"github.com/marquessam/select-start-bot2-sub000/internal/bot/reply"
	"github.com/marquessam/select-start-bot2-sub000/internal/config"
	"github.com/marquessam/select-start-bot2-sub000/internal/features/admin"
	"github.com/marquessam/select-start-bot2-sub000/internal/features/arena"
	"github.com/marquessam/select-start-bot2-sub000/internal/features/economy"
	"github.com/marquessam/select-start-bot2-sub000/internal/features/members"
)

// HandlerFunc обрабатывает один interaction.
type HandlerFunc func(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate)

// Bot — главная структура бота, объединяющая все компоненты.
type Bot struct {
	session *discordgo.Session
	cfg     *config.Config

	guildFilter   *filters.GuildFilter
	rateLimiter   *middleware.RateLimiter
	memberService *members.Service

	commands   []*discordgo.ApplicationCommand
	routes     map[string]HandlerFunc // по имени команды
	components map[string]HandlerFunc // по префиксу CustomID

	// ограничитель параллелизма обработки interaction'ов
	inflight chan struct{}
}

// New создаёт бота и собирает таблицу команд.
func New(
	session *discordgo.Session,
	cfg *config.Config,
	memberService *members.Service,
	memberHandler *members.Handler,
	economyHandler *economy.Handler,
	arenaHandler *arena.Handler,
	adminHandler *admin.Handler,
) *Bot {
	b := &Bot{
		session:       session,
		cfg:           cfg,
		guildFilter:   filters.NewGuildFilter(cfg.DiscordGuildID, memberService),
		rateLimiter:   middleware.NewRateLimiter(cfg.RateLimitPerMinute, cfg.RateLimitBurst),
		memberService: memberService,
		routes:        make(map[string]HandlerFunc),
		components:    make(map[string]HandlerFunc),
		inflight:      make(chan struct{}, 64),
	}

	b.command(memberHandler.Command(), memberHandler.HandleRegister)
	b.command(economyHandler.Command(), economyHandler.HandleGP)

	adminCmds := adminHandler.Commands()
	b.command(adminCmds[0], adminHandler.HandleLogin)
	b.command(adminCmds[1], adminHandler.HandleLogout)

	if cfg.FeatureArenaEnabled {
		for _, cmd := range arenaHandler.Commands() {
			switch cmd.Name {
			case "arena":
				b.command(cmd, arenaHandler.HandleArena)
			case "arenaadmin":
				b.command(cmd, arenaHandler.HandleArenaAdmin)
			}
		}
		b.components[arena.ComponentPrefix] = arenaHandler.HandleComponent
	}

	return b
}

func (b *Bot) command(cmd *discordgo.ApplicationCommand, h HandlerFunc) {
	b.commands = append(b.commands, cmd)
	b.routes[cmd.Name] = h
}

// Commands возвращает описания всех зарегистрированных команд.
func (b *Bot) Commands() []*discordgo.ApplicationCommand {
	return b.commands
}

// Start открывает gateway, регистрирует команды и блокируется до отмены ctx.
func (b *Bot) Start(ctx context.Context) error {
	b.session.Identify.Intents = discordgo.IntentsGuilds
	b.session.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		log.Infof("Авторизован как %s#%s", r.User.Username, r.User.Discriminator)
	})
	b.session.AddHandler(func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		// лимит параллелизма
		b.inflight <- struct{}{}
		go func() {
			defer func() { <-b.inflight }()
			b.handleInteraction(ctx, s, i)
		}()
	})

	if err := b.session.Open(); err != nil {
		return fmt.Errorf("ошибка подключения к Discord: %w", err)
	}
	defer b.session.Close()
	defer b.rateLimiter.Close()

	registered, err := b.session.ApplicationCommandBulkOverwrite(b.session.State.User.ID, b.cfg.DiscordGuildID, b.commands)
	if err != nil {
		return fmt.Errorf("ошибка регистрации команд: %w", err)
	}
	log.WithFields(log.Fields{
		"commands": len(registered),
		"guild_id": b.cfg.DiscordGuildID,
	}).Info("Бот запущен и ожидает команды...")

	<-ctx.Done()
	log.Info("Бот останавливается (ctx done)...")
	return nil
}

// handleInteraction обрабатывает один interaction от Discord.
func (b *Bot) handleInteraction(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	fields := middleware.InteractionFields(i)
	defer middleware.RecoverFromPanic(fields, func(any) {
		reply.Error(s, i, "Something went wrong, try again later.")
	})

	handler := b.route(i)
	if handler == nil {
		log.WithFields(fields).Debug("Нет обработчика для interaction")
		return
	}
	middleware.LogInteraction(i)

	// Проверяем доступ (своя гильдия или DM участника)
	if !b.guildFilter.CheckAccess(ctx, i) {
		return
	}

	user := reply.User(i)
	if user == nil {
		return
	}
	if !b.rateLimiter.Allow(user.ID) {
		log.WithField("user_id", user.ID).Debug("rate limited")
		reply.Error(s, i, "Slow down a little and try again in a moment.")
		return
	}

	if m, err := b.memberService.GetByDiscordID(ctx, user.ID); err == nil {
		if m.IsBanned {
			reply.Error(s, i, "You are banned from using this bot.")
			return
		}
		b.memberService.Touch(ctx, user.ID, user.Username)
	}

	handler(ctx, s, i)
}

// route находит обработчик: команды по имени, кнопки по префиксу CustomID.
func (b *Bot) route(i *discordgo.InteractionCreate) HandlerFunc {
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		return b.routes[i.ApplicationCommandData().Name]
	case discordgo.InteractionMessageComponent:
		customID := i.MessageComponentData().CustomID
		for prefix, h := range b.components {
			if strings.HasPrefix(customID, prefix) {
				return h
			}
		}
	}
	return nil
}

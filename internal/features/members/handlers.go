// Package members — handlers.go обрабатывает команду /register.
package members

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"

	"github.com/marquessam/select-start-bot2-sub000/internal/bot/reply"
	"github.com/marquessam/select-start-bot2-sub000/internal/common"
)

// Handler обрабатывает команды участников.
type Handler struct {
	service *Service
}

// NewHandler создаёт новый обработчик команд участников.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Command — описание slash-команды /register.
func (h *Handler) Command() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        "register",
		Description: "Register for the arena and receive your starting GP",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "ra_username",
				Description: "Your RetroAchievements username",
				Required:    true,
			},
		},
	}
}

// HandleRegister обрабатывает /register ra_username.
func (h *Handler) HandleRegister(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	user := reply.User(i)
	opts := reply.Options(i.ApplicationCommandData().Options)
	raName := ""
	if opt, ok := opts["ra_username"]; ok {
		raName = opt.StringValue()
	}

	member, err := h.service.Register(ctx, user.ID, user.Username, raName)
	switch {
	case errors.Is(err, ErrInvalidRAUsername):
		reply.Error(s, i, err.Error())
		return
	case errors.Is(err, common.ErrAlreadyRegistered):
		reply.Error(s, i, "You are already registered (or that RetroAchievements name is taken).")
		return
	case err != nil:
		log.WithError(err).WithField("user_id", user.ID).Error("Ошибка регистрации")
		reply.Error(s, i, "Registration failed, please try again later.")
		return
	}

	reply.Embed(s, i, &discordgo.MessageEmbed{
		Title:       "✅ Registered",
		Description: fmt.Sprintf("Welcome, **%s**! Your arena account is ready.", member.DisplayName()),
		Color:       reply.ColorSuccess,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Starting balance", Value: common.FormatGP(h.service.startingBalance), Inline: true},
		},
	}, true)
}

// Package admin — handlers.go обрабатывает /adminlogin и /adminlogout.
// Пароль вводится опцией slash-команды, ответы эфемерные.
package admin

import (
	"context"
	"errors"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"

	"github.com/marquessam/select-start-bot2-sub000/internal/bot/reply"
	"github.com/marquessam/select-start-bot2-sub000/internal/common"
)

// Handler обрабатывает админ-команды.
type Handler struct {
	service *Service
}

// NewHandler создаёт обработчик админки.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Commands — описания команд входа и выхода.
func (h *Handler) Commands() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{
			Name:        "adminlogin",
			Description: "Open an admin session",
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionString, Name: "password", Description: "Admin password", Required: true},
			},
		},
		{Name: "adminlogout", Description: "Close your admin session"},
	}
}

// HandleLogin обрабатывает /adminlogin password.
func (h *Handler) HandleLogin(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	user := reply.User(i)
	opts := reply.Options(i.ApplicationCommandData().Options)
	password := ""
	if opt, ok := opts["password"]; ok {
		password = opt.StringValue()
	}

	err := h.service.Login(ctx, user.ID, password)
	switch {
	case err == nil:
		reply.Text(s, i, "🔓 Admin session open for 24 hours.", true)
	case errors.Is(err, common.ErrNotAdmin),
		errors.Is(err, common.ErrWrongPassword),
		errors.Is(err, common.ErrTooManyAttempts):
		reply.Error(s, i, err.Error())
	default:
		log.WithError(err).WithField("user_id", user.ID).Error("Ошибка входа администратора")
		reply.Error(s, i, "Login failed, try again later.")
	}
}

// HandleLogout обрабатывает /adminlogout.
func (h *Handler) HandleLogout(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	user := reply.User(i)
	if err := h.service.Logout(ctx, user.ID); err != nil {
		log.WithError(err).WithField("user_id", user.ID).Error("Ошибка выхода администратора")
		reply.Error(s, i, "Logout failed.")
		return
	}
	reply.Text(s, i, "🔒 Admin session closed.", true)
}

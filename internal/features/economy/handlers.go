// Package economy — handlers.go обрабатывает команду /gp (баланс и история).
package economy

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"

	"github.com/marquessam/select-start-bot2-sub000/internal/bot/reply"
	"github.com/marquessam/select-start-bot2-sub000/internal/common"
)

// Handler обрабатывает команды экономики.
type Handler struct {
	service *Service
}

// NewHandler создаёт новый обработчик команд экономики.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Command — описание /gp.
func (h *Handler) Command() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        "gp",
		Description: "Your GP balance and history",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "balance",
				Description: "Show a GP balance",
				Options: []*discordgo.ApplicationCommandOption{
					{Type: discordgo.ApplicationCommandOptionUser, Name: "user", Description: "Whose balance (default: you)"},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "history",
				Description: "Your last GP transactions",
			},
		},
	}
}

// HandleGP маршрутизирует подкоманды /gp.
func (h *Handler) HandleGP(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	sub, opts := reply.Subcommand(i)
	switch sub {
	case "balance":
		target := reply.User(i)
		if opt, ok := opts["user"]; ok {
			target = opt.UserValue(nil)
		}
		h.handleBalance(ctx, s, i, target)
	case "history":
		h.handleHistory(ctx, s, i)
	default:
		reply.Error(s, i, "Unknown subcommand.")
	}
}

func (h *Handler) handleBalance(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, target *discordgo.User) {
	acc, err := h.service.GetAccount(ctx, target.ID)
	if errors.Is(err, common.ErrUserNotFound) {
		reply.Error(s, i, fmt.Sprintf("%s has no GP account yet (/register).", target.Mention()))
		return
	}
	if err != nil {
		log.WithError(err).WithField("user_id", target.ID).Error("Ошибка получения счёта")
		reply.Error(s, i, "Could not load the balance, try again later.")
		return
	}

	reply.Embed(s, i, &discordgo.MessageEmbed{
		Title: "💰 " + common.CurrencyName + " balance",
		Color: reply.ColorInfo,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Player", Value: target.Mention()},
			{Name: "Balance", Value: common.FormatGP(acc.Balance), Inline: true},
			{Name: "Earned", Value: common.FormatGP(acc.TotalEarned), Inline: true},
			{Name: "Spent", Value: common.FormatGP(acc.TotalSpent), Inline: true},
		},
	}, false)
}

func (h *Handler) handleHistory(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	user := reply.User(i)
	txs, err := h.service.History(ctx, user.ID)
	if err != nil {
		log.WithError(err).WithField("user_id", user.ID).Error("Ошибка получения истории")
		reply.Error(s, i, "Could not load your history, try again later.")
		return
	}
	if len(txs) == 0 {
		reply.Text(s, i, "No transactions yet.", true)
		return
	}

	var b strings.Builder
	for _, t := range txs {
		fmt.Fprintf(&b, "%s `%s` %s → %s\n",
			common.DiscordTimestamp(t.CreatedAt, "d"),
			common.FormatSignedGP(t.Amount),
			t.Detail,
			common.FormatGP(t.BalanceAfter),
		)
	}
	reply.Embed(s, i, &discordgo.MessageEmbed{
		Title:       "📜 Last transactions",
		Description: b.String(),
		Color:       reply.ColorInfo,
	}, true)
}

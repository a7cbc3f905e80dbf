package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"

	"github.com/marquessam/select-start-bot2-sub000/internal/bot/reply"
	"github.com/marquessam/select-start-bot2-sub000/internal/common"
	"github.com/marquessam/select-start-bot2-sub000/internal/features/arena"
)

// embedSender — часть discordgo.Session, которой хватает для объявлений.
type embedSender interface {
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// ChannelNotifier публикует итоги арены в канал. Событие всегда пишется в лог,
// даже если Discord недоступен.
type ChannelNotifier struct {
	sender    embedSender
	channelID string
	fallback  arena.LogNotifier
}

// NewChannelNotifier возвращает arena.LogNotifier, если канал не задан.
func NewChannelNotifier(sender embedSender, channelID string) arena.Notifier {
	if channelID == "" {
		return arena.LogNotifier{}
	}
	return &ChannelNotifier{sender: sender, channelID: channelID}
}

func (n *ChannelNotifier) ChallengeCompleted(ctx context.Context, ev arena.CompletedEvent) {
	n.fallback.ChallengeCompleted(ctx, ev)
	n.send(ev.Challenge.ID, completedEmbed(ev))
}

func (n *ChannelNotifier) ChallengeRefunded(ctx context.Context, ev arena.RefundedEvent) {
	n.fallback.ChallengeRefunded(ctx, ev)
	n.send(ev.Challenge.ID, refundedEmbed(ev))
}

func (n *ChannelNotifier) send(challengeID string, embed *discordgo.MessageEmbed) {
	if _, err := n.sender.ChannelMessageSendEmbed(n.channelID, embed); err != nil {
		log.WithError(err).WithFields(log.Fields{
			"challenge_id": challengeID,
			"channel_id":   n.channelID,
		}).Warn("Не удалось отправить объявление арены")
	}
}

func challengeTitle(ch *arena.Challenge) string {
	if ch.GameTitle != "" {
		return ch.GameTitle
	}
	return fmt.Sprintf("Game #%d", ch.GameID)
}

func completedEmbed(ev arena.CompletedEvent) *discordgo.MessageEmbed {
	ch := ev.Challenge
	standings := lo.Map(ev.Outcome.Standings, func(p arena.Participant, _ int) string {
		place := "unranked"
		if p.Rank > 0 {
			place = common.Ordinal(p.Rank)
			if p.Score != "" {
				place += " · " + p.Score
			}
		}
		return fmt.Sprintf("<@%s> (%s) — %s", p.UserID, p.Username, place)
	})

	winner := arena.TieUsername + ", wagers returned"
	if ev.Outcome.HasWinner() {
		winner = fmt.Sprintf("<@%s> (%s) takes %s", ev.Outcome.WinnerID, ev.Outcome.WinnerUsername, common.FormatGP(ev.Pot))
	}

	fields := []*discordgo.MessageEmbedField{
		{Name: "Winner", Value: winner},
		{Name: "Standings", Value: strings.Join(standings, "\n")},
	}
	if len(ev.Bets.Results) > 0 {
		bets := fmt.Sprintf("Pool %s · paid out %s", common.FormatGP(ev.Bets.WinningTotal+ev.Bets.LosingTotal), common.FormatGP(ev.Bets.PaidOut))
		if ev.Bets.Refunded {
			bets += " · refunded (nobody backed the winner)"
		}
		if ev.Bets.HouseContribution > 0 {
			bets += " · house added " + common.FormatGP(ev.Bets.HouseContribution)
		}
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Bets", Value: bets})
	}

	return &discordgo.MessageEmbed{
		Title:     "🏆 Arena result: " + challengeTitle(ch),
		Color:     reply.ColorSuccess,
		Fields:    fields,
		Footer:    &discordgo.MessageEmbedFooter{Text: "ID: " + ch.ID},
		Timestamp: time.Now().Format(time.RFC3339),
	}
}

func refundedEmbed(ev arena.RefundedEvent) *discordgo.MessageEmbed {
	ch := ev.Challenge
	players := lo.Map(ch.Participants, func(p arena.Participant, _ int) string { return "<@" + p.UserID + ">" })
	return &discordgo.MessageEmbed{
		Title: "↩️ Arena cancelled: " + challengeTitle(ch),
		Color: reply.ColorWarning,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Reason", Value: ev.Reason},
			{Name: "Refunded", Value: common.FormatGP(ev.Refunded), Inline: true},
			{Name: "Participants", Value: strings.Join(players, " "), Inline: true},
		},
		Footer:    &discordgo.MessageEmbedFooter{Text: "ID: " + ch.ID},
		Timestamp: time.Now().Format(time.RFC3339),
	}
}

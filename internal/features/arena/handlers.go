// Package arena — handlers.go обрабатывает команды /arena и /arenaadmin
// и кнопки под сообщениями челленджей.
package arena

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"

	"github.com/marquessam/select-start-bot2-sub000/internal/bot/reply"
	"github.com/marquessam/select-start-bot2-sub000/internal/common"
	"github.com/marquessam/select-start-bot2-sub000/internal/features/leaderboard"
	"github.com/marquessam/select-start-bot2-sub000/internal/features/members"
)

// ComponentPrefix — префикс CustomID кнопок арены.
const ComponentPrefix = "arena:"

// MemberDirectory ищет зарегистрированных участников.
type MemberDirectory interface {
	GetByDiscordID(ctx context.Context, discordID string) (*members.Member, error)
}

// GameCatalog возвращает название игры по ID.
type GameCatalog interface {
	Game(ctx context.Context, gameID int) (*leaderboard.Game, error)
}

// AdminGuard проверяет права администратора.
type AdminGuard interface {
	RequireAdmin(ctx context.Context, userID string) error
}

// Handler обрабатывает команды арены.
type Handler struct {
	service *Service
	members MemberDirectory
	games   GameCatalog
	admins  AdminGuard
}

// NewHandler создаёт обработчик. games может быть nil — тогда название игры не подтягивается.
func NewHandler(service *Service, members MemberDirectory, games GameCatalog, admins AdminGuard) *Handler {
	return &Handler{service: service, members: members, games: games, admins: admins}
}

func idOption(desc string) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type: discordgo.ApplicationCommandOptionString, Name: "id", Description: desc, Required: true,
	}
}

func challengeOptions() []*discordgo.ApplicationCommandOption {
	minWager := 1.0
	return []*discordgo.ApplicationCommandOption{
		{Type: discordgo.ApplicationCommandOptionInteger, Name: "wager", Description: "GP each participant stakes", Required: true, MinValue: &minWager},
		{Type: discordgo.ApplicationCommandOptionInteger, Name: "game_id", Description: "RetroAchievements game id", Required: true},
		{Type: discordgo.ApplicationCommandOptionInteger, Name: "leaderboard_id", Description: "RetroAchievements leaderboard id", Required: true},
		{Type: discordgo.ApplicationCommandOptionString, Name: "duration", Description: "How long it runs, e.g. 3d, 1w, 36h (default 1w)"},
		{Type: discordgo.ApplicationCommandOptionString, Name: "description", Description: "Optional rules or notes"},
	}
}

// Commands — описания /arena и /arenaadmin.
func (h *Handler) Commands() []*discordgo.ApplicationCommand {
	var adminPerms int64 = discordgo.PermissionAdministrator
	direct := append([]*discordgo.ApplicationCommandOption{{
		Type: discordgo.ApplicationCommandOptionUser, Name: "opponent", Description: "Who you are challenging", Required: true,
	}}, challengeOptions()...)

	return []*discordgo.ApplicationCommand{
		{
			Name:        "arena",
			Description: "GP challenges on RetroAchievements leaderboards",
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "challenge", Description: "Challenge a player 1v1", Options: direct},
				{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "open", Description: "Start a challenge anyone can join", Options: challengeOptions()},
				{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "accept", Description: "Accept a challenge", Options: []*discordgo.ApplicationCommandOption{idOption("Challenge id")}},
				{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "decline", Description: "Decline or withdraw a challenge", Options: []*discordgo.ApplicationCommandOption{idOption("Challenge id")}},
				{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "join", Description: "Join an open challenge", Options: []*discordgo.ApplicationCommandOption{idOption("Challenge id")}},
				{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "bet", Description: "Bet GP on a participant", Options: []*discordgo.ApplicationCommandOption{
					idOption("Challenge id"),
					{Type: discordgo.ApplicationCommandOptionUser, Name: "player", Description: "Participant you back", Required: true},
					{Type: discordgo.ApplicationCommandOptionInteger, Name: "amount", Description: "GP to bet", Required: true},
				}},
				{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "info", Description: "Show a challenge", Options: []*discordgo.ApplicationCommandOption{idOption("Challenge id")}},
				{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "list", Description: "List pending and active challenges"},
				{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "stats", Description: "Arena record", Options: []*discordgo.ApplicationCommandOption{
					{Type: discordgo.ApplicationCommandOptionUser, Name: "user", Description: "Whose stats (default: you)"},
				}},
			},
		},
		{
			Name:                     "arenaadmin",
			Description:              "Arena administration",
			DefaultMemberPermissions: &adminPerms,
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "complete", Description: "Settle a challenge now", Options: []*discordgo.ApplicationCommandOption{idOption("Challenge id")}},
				{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "cancel", Description: "Cancel and refund a challenge", Options: []*discordgo.ApplicationCommandOption{
					idOption("Challenge id"),
					{Type: discordgo.ApplicationCommandOptionString, Name: "reason", Description: "Shown to participants"},
				}},
			},
		},
	}
}

// HandleArena маршрутизирует подкоманды /arena.
func (h *Handler) HandleArena(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	sub, opts := reply.Subcommand(i)
	switch sub {
	case "challenge", "open":
		h.handleCreate(ctx, s, i, sub == "challenge", opts)
	case "accept":
		h.handleAccept(ctx, s, i, stringOpt(opts, "id"))
	case "decline":
		h.handleDecline(ctx, s, i, stringOpt(opts, "id"))
	case "join":
		h.handleJoin(ctx, s, i, stringOpt(opts, "id"))
	case "bet":
		h.handleBet(ctx, s, i, opts)
	case "info":
		h.handleInfo(ctx, s, i, stringOpt(opts, "id"))
	case "list":
		h.handleList(ctx, s, i)
	case "stats":
		h.handleStats(ctx, s, i, opts)
	default:
		reply.Error(s, i, "Unknown subcommand.")
	}
}

// HandleComponent обрабатывает кнопки "arena:<action>:<id>".
func (h *Handler) HandleComponent(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	parts := strings.SplitN(strings.TrimPrefix(i.MessageComponentData().CustomID, ComponentPrefix), ":", 2)
	if len(parts) != 2 {
		reply.Error(s, i, "Unknown button.")
		return
	}
	switch parts[0] {
	case "accept":
		h.handleAccept(ctx, s, i, parts[1])
	case "decline":
		h.handleDecline(ctx, s, i, parts[1])
	case "join":
		h.handleJoin(ctx, s, i, parts[1])
	default:
		reply.Error(s, i, "Unknown button.")
	}
}

// HandleArenaAdmin обрабатывает /arenaadmin.
func (h *Handler) HandleArenaAdmin(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	user := reply.User(i)
	if err := h.admins.RequireAdmin(ctx, user.ID); err != nil {
		reply.Error(s, i, err.Error())
		return
	}

	sub, opts := reply.Subcommand(i)
	id := stringOpt(opts, "id")
	logger := log.WithFields(log.Fields{"admin_id": user.ID, "challenge_id": id, "action": sub})

	switch sub {
	case "complete":
		reply.Defer(s, i, true)
		res, err := h.service.ForceComplete(ctx, id)
		if err != nil {
			logger.WithError(err).Warn("Досрочный расчёт не выполнен")
			reply.EditText(s, i, "❌ "+h.userMessage(err))
			return
		}
		logger.Info("Челлендж рассчитан администратором")
		if res.Refunded() {
			reply.EditText(s, i, fmt.Sprintf("Challenge `%s` was refunded: %s", id, res.Refund.Reason))
			return
		}
		reply.EditText(s, i, fmt.Sprintf("Challenge `%s` settled. Winner: **%s**", id, res.Settlement.Outcome.DisplayWinner()))
	case "cancel":
		reason := stringOpt(opts, "reason")
		if reason == "" {
			reason = ReasonAdminCancel
		}
		ref, err := h.service.RefundChallenge(ctx, id, reason)
		if err != nil {
			reply.Error(s, i, h.userMessage(err))
			return
		}
		logger.WithField("refunded", ref.Amount).Info("Челлендж отменён администратором")
		reply.Text(s, i, fmt.Sprintf("Challenge `%s` cancelled, %s refunded.", id, common.FormatGP(ref.Amount)), true)
	default:
		reply.Error(s, i, "Unknown subcommand.")
	}
}

func (h *Handler) handleCreate(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, direct bool, opts map[string]*discordgo.ApplicationCommandInteractionDataOption) {
	user := reply.User(i)
	creator, ok := h.registered(ctx, s, i, user.ID)
	if !ok {
		return
	}

	duration, err := ParseDuration(stringOpt(opts, "duration"))
	if err != nil {
		reply.Error(s, i, "Duration must look like 3d, 1w or 36h.")
		return
	}
	req := CreateRequest{
		CreatorID:     user.ID,
		CreatorName:   creator.RAUsername,
		GameID:        int(intOpt(opts, "game_id")),
		LeaderboardID: int(intOpt(opts, "leaderboard_id")),
		Description:   stringOpt(opts, "description"),
		Wager:         intOpt(opts, "wager"),
		Duration:      duration,
	}

	var opponent *members.Member
	if direct {
		opt, ok := opts["opponent"]
		if !ok {
			reply.Error(s, i, "Pick an opponent.")
			return
		}
		req.OpponentID = opt.UserValue(nil).ID
		if req.OpponentID == user.ID {
			reply.Error(s, i, common.ErrSelfChallenge.Error())
			return
		}
		if opponent, err = h.members.GetByDiscordID(ctx, req.OpponentID); err != nil {
			reply.Error(s, i, "Your opponent has not registered yet (/register).")
			return
		}
	}

	// Название игры тянется из API, ответ откладываем
	reply.Defer(s, i, false)
	req.GameTitle = h.gameTitle(ctx, req.GameID)

	var ch *Challenge
	if direct {
		ch, err = h.service.CreateDirect(ctx, req)
	} else {
		ch, err = h.service.CreateOpen(ctx, req)
	}
	if err != nil {
		reply.EditText(s, i, "❌ "+h.userMessage(err))
		return
	}

	embed := h.challengeEmbed(ch)
	if direct {
		embed.Description = fmt.Sprintf("%s challenges %s! %s\n%s",
			user.Mention(), opponent.Mention(), embed.Description,
			fmt.Sprintf("Respond %s.", common.DiscordTimestamp(ch.CreatedAt.Add(h.service.cfg.ArenaAcceptTimeout), "R")))
		reply.EditEmbed(s, i, embed, buttons(ch.ID, "accept", "decline"))
		return
	}
	reply.EditEmbed(s, i, embed, buttons(ch.ID, "join"))
}

func (h *Handler) handleAccept(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, id string) {
	user := reply.User(i)
	m, ok := h.registered(ctx, s, i, user.ID)
	if !ok {
		return
	}
	ch, err := h.service.Accept(ctx, id, user.ID, m.RAUsername)
	if err != nil {
		reply.Error(s, i, h.userMessage(err))
		return
	}
	embed := h.challengeEmbed(ch)
	embed.Description = fmt.Sprintf("%s accepted! Ends %s.", user.Mention(), common.DiscordTimestamp(*ch.EndedAt, "R"))
	reply.Embed(s, i, embed, false)
}

func (h *Handler) handleDecline(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, id string) {
	user := reply.User(i)
	ref, err := h.service.Decline(ctx, id, user.ID)
	if err != nil {
		reply.Error(s, i, h.userMessage(err))
		return
	}
	reply.Text(s, i, fmt.Sprintf("Challenge `%s` declined, %s returned to the creator.", ref.Challenge.ShortID(), common.FormatGP(ref.Amount)), false)
}

func (h *Handler) handleJoin(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, id string) {
	user := reply.User(i)
	m, ok := h.registered(ctx, s, i, user.ID)
	if !ok {
		return
	}
	ch, err := h.service.Join(ctx, id, user.ID, m.RAUsername)
	if err != nil {
		reply.Error(s, i, h.userMessage(err))
		return
	}
	reply.Text(s, i, fmt.Sprintf("%s joined **%s** (%d players, pot %s).",
		user.Mention(), ch.GameTitle, len(ch.Participants), common.FormatGP(ch.Pot())), false)
}

func (h *Handler) handleBet(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, opts map[string]*discordgo.ApplicationCommandInteractionDataOption) {
	user := reply.User(i)
	m, ok := h.registered(ctx, s, i, user.ID)
	if !ok {
		return
	}
	target, ok := opts["player"]
	if !ok {
		reply.Error(s, i, "Pick a participant.")
		return
	}
	targetID := target.UserValue(nil).ID

	bet, ch, err := h.service.PlaceBet(ctx, BetRequest{
		ChallengeID: stringOpt(opts, "id"),
		UserID:      user.ID,
		Username:    m.DisplayName(),
		TargetID:    targetID,
		Amount:      intOpt(opts, "amount"),
	})
	if err != nil {
		reply.Error(s, i, h.userMessage(err))
		return
	}
	p, _ := ch.Participant(targetID)
	odds, _ := lo.Find(ImpliedOdds(ch), func(o Odds) bool { return o.UserID == targetID })
	reply.Text(s, i, fmt.Sprintf("%s bet %s on **%s** (odds now %s).",
		user.Mention(), common.FormatGP(bet.Amount), p.Username, odds), false)
}

func (h *Handler) handleInfo(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, id string) {
	ch, err := h.service.Get(ctx, id)
	if err != nil {
		reply.Error(s, i, h.userMessage(err))
		return
	}
	reply.Embed(s, i, h.challengeEmbed(ch), false)
}

func (h *Handler) handleList(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	list, err := h.service.Open(ctx)
	if err != nil {
		log.WithError(err).Error("Ошибка получения списка челленджей")
		reply.Error(s, i, "Could not load challenges, try again later.")
		return
	}
	if len(list) == 0 {
		reply.Text(s, i, "No pending or active challenges. Start one with `/arena challenge` or `/arena open`.", true)
		return
	}

	lines := lo.Map(list, func(ch *Challenge, _ int) string {
		when := "awaiting response"
		if ch.EndedAt != nil {
			when = "ends " + common.DiscordTimestamp(*ch.EndedAt, "R")
		}
		return fmt.Sprintf("`%s` **%s** · %s · %d players · pot %s · %s",
			ch.ID, ch.GameTitle, ch.Type, len(ch.Participants), common.FormatGP(ch.Pot()), when)
	})
	reply.Embed(s, i, &discordgo.MessageEmbed{
		Title:       "⚔️ Arena challenges",
		Description: strings.Join(lines, "\n"),
		Color:       reply.ColorArena,
	}, false)
}

func (h *Handler) handleStats(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, opts map[string]*discordgo.ApplicationCommandInteractionDataOption) {
	target := reply.User(i)
	if opt, ok := opts["user"]; ok {
		target = opt.UserValue(nil)
	}
	st, err := h.service.Stats(ctx, target.ID)
	if err != nil {
		log.WithError(err).WithField("user_id", target.ID).Error("Ошибка получения статистики арены")
		reply.Error(s, i, "Could not load stats, try again later.")
		return
	}
	reply.Embed(s, i, &discordgo.MessageEmbed{
		Title: "📊 Arena stats",
		Color: reply.ColorInfo,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Player", Value: target.Mention()},
			{Name: "Record", Value: fmt.Sprintf("%dW / %dL / %dT", st.Wins, st.Losses, st.Ties), Inline: true},
			{Name: "Wagered", Value: common.FormatGP(st.GPWagered), Inline: true},
			{Name: "Won", Value: common.FormatGP(st.GPWon), Inline: true},
			{Name: "Bets", Value: fmt.Sprintf("%d placed, %d won", st.BetsPlaced, st.BetsWon), Inline: true},
			{Name: "Bet winnings", Value: common.FormatGP(st.BetWinnings), Inline: true},
		},
	}, false)
}

// challengeEmbed — карточка челленджа.
func (h *Handler) challengeEmbed(ch *Challenge) *discordgo.MessageEmbed {
	title := ch.GameTitle
	if title == "" {
		title = fmt.Sprintf("Game #%d", ch.GameID)
	}
	fields := []*discordgo.MessageEmbedField{
		{Name: "Status", Value: string(ch.Status), Inline: true},
		{Name: "Wager", Value: common.FormatGP(ch.Wager), Inline: true},
		{Name: "Pot", Value: common.FormatGP(ch.Pot()), Inline: true},
		{Name: "Leaderboard", Value: fmt.Sprintf("[#%d](https://retroachievements.org/leaderboardinfo.php?i=%d)", ch.LeaderboardID, ch.LeaderboardID), Inline: true},
	}
	if ch.EndedAt != nil {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Ends", Value: common.DiscordTimestamp(*ch.EndedAt, "R"), Inline: true})
	}
	if ch.BettingOpen(h.service.now()) {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Betting closes", Value: common.DiscordTimestamp(*ch.BettingClosedAt, "R"), Inline: true})
	}

	odds := ImpliedOdds(ch)
	players := lo.Map(ch.Participants, func(p Participant, idx int) string {
		line := fmt.Sprintf("<@%s> (%s) · backed %s · %s", p.UserID, p.Username, common.FormatGP(odds[idx].Backing), odds[idx])
		if p.Rank > 0 {
			line += fmt.Sprintf(" · %s place", common.Ordinal(p.Rank))
		}
		return line
	})
	fields = append(fields, &discordgo.MessageEmbedField{Name: "Participants", Value: strings.Join(players, "\n")})

	switch ch.Status {
	case StatusCompleted:
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Winner", Value: ch.WinnerUsername})
	case StatusCancelled:
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Cancelled", Value: ch.CancelReason})
	}

	return &discordgo.MessageEmbed{
		Title:       "⚔️ " + title,
		Description: ch.Description,
		Color:       reply.ColorArena,
		Fields:      fields,
		Footer:      &discordgo.MessageEmbedFooter{Text: "ID: " + ch.ID},
	}
}

func buttons(id string, actions ...string) discordgo.MessageComponent {
	styles := map[string]discordgo.ButtonStyle{
		"accept":  discordgo.SuccessButton,
		"decline": discordgo.DangerButton,
		"join":    discordgo.PrimaryButton,
	}
	return discordgo.ActionsRow{Components: lo.Map(actions, func(a string, _ int) discordgo.MessageComponent {
		return discordgo.Button{Label: strings.ToUpper(a[:1]) + a[1:], Style: styles[a], CustomID: ComponentPrefix + a + ":" + id}
	})}
}

func (h *Handler) registered(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate, userID string) (*members.Member, bool) {
	m, err := h.members.GetByDiscordID(ctx, userID)
	if errors.Is(err, common.ErrNotFound) {
		reply.Error(s, i, "You need to /register first.")
		return nil, false
	}
	if err != nil {
		log.WithError(err).WithField("user_id", userID).Error("Ошибка получения участника")
		reply.Error(s, i, "Something went wrong, try again later.")
		return nil, false
	}
	if m.IsBanned {
		reply.Error(s, i, "You are banned from the arena.")
		return nil, false
	}
	return m, true
}

func (h *Handler) gameTitle(ctx context.Context, gameID int) string {
	fallback := fmt.Sprintf("Game #%d", gameID)
	if h.games == nil {
		return fallback
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	g, err := h.games.Game(ctx, gameID)
	if err != nil {
		log.WithError(err).WithField("game_id", gameID).Warn("Не удалось получить название игры")
		return fallback
	}
	return g.Title
}

// userMessage превращает ошибку в текст для пользователя; неожиданные ошибки логируются.
func (h *Handler) userMessage(err error) string {
	var te *TransitionError
	switch {
	case errors.As(err, &te):
		return te.Error()
	case errors.Is(err, common.ErrChallengeNotFound), errors.Is(err, common.ErrNotFound):
		return "Challenge not found. Use the full id from /arena list."
	case errors.Is(err, common.ErrInsufficientFunds):
		return "You don't have enough GP for that."
	case errors.Is(err, common.ErrUserNotFound):
		return "You need to /register first."
	}
	for _, known := range []error{
		common.ErrSelfChallenge, common.ErrNotChallenged, common.ErrNotOpenChallenge, common.ErrAlreadyParticipant,
		common.ErrAlreadyBet, common.ErrSelfBet, common.ErrInvalidBetTarget, common.ErrBettingClosed,
		common.ErrChallengeEnded, common.ErrChallengeExpired, common.ErrAlreadyProcessed, common.ErrWagerOutOfRange, common.ErrBetOutOfRange,
		common.ErrArenaDisabled, common.ErrInvalidDuration,
	} {
		if errors.Is(err, known) {
			return err.Error()
		}
	}
	log.WithError(err).Error("Необработанная ошибка арены")
	return "Something went wrong, try again later."
}

func stringOpt(opts map[string]*discordgo.ApplicationCommandInteractionDataOption, name string) string {
	if opt, ok := opts[name]; ok {
		return strings.TrimSpace(opt.StringValue())
	}
	return ""
}

func intOpt(opts map[string]*discordgo.ApplicationCommandInteractionDataOption, name string) int64 {
	if opt, ok := opts[name]; ok {
		return opt.IntValue()
	}
	return 0
}

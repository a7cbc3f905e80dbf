package arena

import (
	"fmt"

	"github.com/samber/lo"

	"github.com/marquessam/select-start-bot2-sub000/internal/features/economy"
)

// Credit — одно начисление при расчёте или возврате.
type Credit struct {
	UserID string
	Amount int64
	Reason string
	Detail string
}

// WagerCredits считает начисления участникам.
// Есть победитель — он получает весь банк; нет — каждому возвращается его ставка.
func WagerCredits(ch *Challenge, outcome Outcome) ([]Credit, error) {
	if !outcome.HasWinner() {
		return RefundCredits(ch.Participants, "Arena refund: no winner"), nil
	}
	if !ch.IsParticipant(outcome.WinnerID) {
		return nil, fmt.Errorf("победитель %s не участник челленджа %s", outcome.WinnerID, ch.ID)
	}

	pot := ch.Pot()
	if pot == 0 {
		return nil, nil
	}
	return []Credit{{
		UserID: outcome.WinnerID,
		Amount: pot,
		Reason: economy.ReasonArenaWin,
		Detail: fmt.Sprintf("Arena win: %s", ch.GameTitle),
	}}, nil
}

// RefundCredits возвращает каждому участнику его ставку.
func RefundCredits(participants []Participant, detail string) []Credit {
	refunds := lo.Filter(participants, func(p Participant, _ int) bool { return p.Wager > 0 })
	return lo.Map(refunds, func(p Participant, _ int) Credit {
		return Credit{UserID: p.UserID, Amount: p.Wager, Reason: economy.ReasonArenaRefund, Detail: detail}
	})
}

// BetResultKind — чем закончилась ставка.
type BetResultKind string

const (
	BetWon      BetResultKind = "won"
	BetLost     BetResultKind = "lost"
	BetRefunded BetResultKind = "refunded"
)

// BetResult — расчёт одной ставки. Payout включает возвращённую сумму ставки.
type BetResult struct {
	BetID             int64
	UserID            string
	Amount            int64
	Payout            int64
	HouseContribution int64
	Kind              BetResultKind
}

// Credit — начисление по ставке; ok=false, если платить нечего.
func (r BetResult) Credit(gameTitle string) (Credit, bool) {
	switch {
	case r.Payout <= 0:
		return Credit{}, false
	case r.Kind == BetRefunded:
		return Credit{UserID: r.UserID, Amount: r.Payout, Reason: economy.ReasonArenaBetRefund, Detail: "Arena bet refund: " + gameTitle}, true
	default:
		return Credit{UserID: r.UserID, Amount: r.Payout, Reason: economy.ReasonArenaBetWin, Detail: "Arena bet win: " + gameTitle}, true
	}
}

// BetSplit — итог расчёта всех ставок челленджа.
type BetSplit struct {
	Results      []BetResult
	Refunded     bool
	WinningTotal int64
	LosingTotal  int64
	PaidOut      int64
	// HouseSurplus — остаток от округления вниз, остаётся у дома. Никогда не отрицателен.
	HouseSurplus int64
	// HouseContribution — сколько дом доплатил сверх пропорциональной доли.
	HouseContribution int64
}

// SplitBets делит пул ставок. Победившие ставки получают свою сумму плюс долю
// проигравшего пула amount*L/W (с округлением вниз); единственная победившая
// ставка получает не меньше половины проигравшего пула. Если победителя нет
// или на него никто не ставил, все ставки возвращаются.
func SplitBets(bets []Bet, winnerID string) BetSplit {
	winning, losing := lo.FilterReject(bets, func(b Bet, _ int) bool {
		return winnerID != "" && b.TargetUserID == winnerID
	})

	split := BetSplit{
		WinningTotal: lo.SumBy(winning, func(b Bet) int64 { return b.Amount }),
		LosingTotal:  lo.SumBy(losing, func(b Bet) int64 { return b.Amount }),
	}

	if len(winning) == 0 {
		split.Refunded = true
		split.Results = lo.Map(bets, func(b Bet, _ int) BetResult {
			return BetResult{BetID: b.ID, UserID: b.UserID, Amount: b.Amount, Payout: b.Amount, Kind: BetRefunded}
		})
		split.PaidOut = split.WinningTotal + split.LosingTotal
		return split
	}

	for _, b := range bets {
		r := BetResult{BetID: b.ID, UserID: b.UserID, Amount: b.Amount, Kind: BetLost}
		if b.TargetUserID == winnerID {
			share := b.Amount * split.LosingTotal / split.WinningTotal
			if len(winning) == 1 {
				if guaranteed := split.LosingTotal / 2; guaranteed > share {
					r.HouseContribution = guaranteed - share
					share = guaranteed
				}
			}
			r.Kind = BetWon
			r.Payout = b.Amount + share
		}
		split.PaidOut += r.Payout
		split.HouseContribution += r.HouseContribution
		split.Results = append(split.Results, r)
	}
	split.HouseSurplus = split.WinningTotal + split.LosingTotal - split.PaidOut
	return split
}

package arena

import (
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// Odds — коэффициент на участника по текущему пулу ставок.
type Odds struct {
	UserID   string
	Username string
	Backing  int64           // Сколько поставлено на участника
	Ratio    decimal.Decimal // Весь пул / Backing; ноль, если ставок нет
}

// String — «x2.50» или «—», если на участника никто не ставил.
func (o Odds) String() string {
	if o.Ratio.IsZero() {
		return "—"
	}
	return "x" + o.Ratio.StringFixed(2)
}

// ImpliedOdds считает коэффициенты для всех участников в порядке вступления.
func ImpliedOdds(ch *Challenge) []Odds {
	pool := decimal.NewFromInt(ch.BetPool())
	return lo.Map(ch.Participants, func(p Participant, _ int) Odds {
		backing := lo.SumBy(ch.Bets, func(b Bet) int64 {
			if b.TargetUserID == p.UserID {
				return b.Amount
			}
			return 0
		})
		o := Odds{UserID: p.UserID, Username: p.Username, Backing: backing}
		if backing > 0 {
			o.Ratio = pool.Div(decimal.NewFromInt(backing)).Round(2)
		}
		return o
	})
}

// PotentialPayout — сколько получит ставка amount на targetID, если он победит
// и больше ставок не будет. Учитывает гарантию для единственной победившей ставки.
func PotentialPayout(ch *Challenge, targetID string, amount int64) int64 {
	bets := append(append([]Bet(nil), ch.Bets...), Bet{UserID: "\x00preview", TargetUserID: targetID, Amount: amount})
	split := SplitBets(bets, targetID)
	last := split.Results[len(split.Results)-1]
	return last.Payout
}

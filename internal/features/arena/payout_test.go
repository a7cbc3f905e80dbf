package arena

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marquessam/select-start-bot2-sub000/internal/features/economy"
)

func TestWagerCreditsWinnerTakesAll(t *testing.T) {
	ch := &Challenge{ID: "c1", GameTitle: "Tetris", Participants: []Participant{
		{UserID: "a", Wager: 100}, {UserID: "b", Wager: 100}, {UserID: "c", Wager: 100},
	}}
	credits, err := WagerCredits(ch, Outcome{WinnerID: "b"})
	require.NoError(t, err)
	require.Len(t, credits, 1)
	assert.Equal(t, Credit{UserID: "b", Amount: 300, Reason: economy.ReasonArenaWin, Detail: "Arena win: Tetris"}, credits[0])
}

func TestWagerCreditsRefundOnTie(t *testing.T) {
	ch := &Challenge{Participants: []Participant{{UserID: "a", Wager: 100}, {UserID: "b", Wager: 150}}}
	credits, err := WagerCredits(ch, Outcome{})
	require.NoError(t, err)
	require.Len(t, credits, 2)
	for i, c := range credits {
		assert.Equal(t, ch.Participants[i].Wager, c.Amount)
		assert.Equal(t, economy.ReasonArenaRefund, c.Reason)
	}
}

func TestWagerCreditsRejectsUnknownWinner(t *testing.T) {
	ch := &Challenge{Participants: []Participant{{UserID: "a", Wager: 100}}}
	_, err := WagerCredits(ch, Outcome{WinnerID: "zed"})
	assert.Error(t, err)
}

func TestSplitBetsProportional(t *testing.T) {
	bets := []Bet{
		{ID: 1, UserID: "x", TargetUserID: "a", Amount: 40},
		{ID: 2, UserID: "y", TargetUserID: "b", Amount: 10},
	}
	split := SplitBets(bets, "a")

	assert.False(t, split.Refunded)
	assert.Equal(t, int64(40), split.WinningTotal)
	assert.Equal(t, int64(10), split.LosingTotal)
	assert.Equal(t, BetResult{BetID: 1, UserID: "x", Amount: 40, Payout: 50, Kind: BetWon}, split.Results[0])
	assert.Equal(t, BetResult{BetID: 2, UserID: "y", Amount: 10, Payout: 0, Kind: BetLost}, split.Results[1])
	assert.Zero(t, split.HouseSurplus)
}

func TestSplitBetsFloorsShares(t *testing.T) {
	bets := []Bet{
		{ID: 1, UserID: "x", TargetUserID: "a", Amount: 10},
		{ID: 2, UserID: "y", TargetUserID: "a", Amount: 20},
		{ID: 3, UserID: "z", TargetUserID: "b", Amount: 10},
	}
	split := SplitBets(bets, "a")

	// 10*10/30 = 3.33 → 3; 20*10/30 = 6.67 → 6
	assert.Equal(t, int64(13), split.Results[0].Payout)
	assert.Equal(t, int64(26), split.Results[1].Payout)
	assert.Equal(t, int64(1), split.HouseSurplus)
	assert.Equal(t, int64(39), split.PaidOut)
}

// Единственная победившая ставка забирает весь проигравший пул,
// поэтому гарантия половины пула на неё не влияет.
func TestSplitBetsSingleWinnerFloorNeverBinds(t *testing.T) {
	for _, tc := range []struct {
		winner int64
		losers []int64
	}{
		{1, []int64{100}},
		{5, []int64{99, 1}},
		{100, []int64{3}},
		{7, nil},
	} {
		bets := []Bet{{ID: 1, UserID: "w", TargetUserID: "a", Amount: tc.winner}}
		var losing int64
		for i, amt := range tc.losers {
			bets = append(bets, Bet{ID: int64(i + 2), UserID: "l", TargetUserID: "b", Amount: amt})
			losing += amt
		}
		split := SplitBets(bets, "a")
		assert.Equal(t, tc.winner+losing, split.Results[0].Payout)
		assert.Zero(t, split.Results[0].HouseContribution)
		assert.Zero(t, split.HouseSurplus)
	}
}

func TestSplitBetsRefundsWithoutWinner(t *testing.T) {
	bets := []Bet{
		{ID: 1, UserID: "x", TargetUserID: "a", Amount: 40},
		{ID: 2, UserID: "y", TargetUserID: "b", Amount: 10},
	}
	for _, winner := range []string{"", "c"} {
		split := SplitBets(bets, winner)
		assert.True(t, split.Refunded)
		for i, r := range split.Results {
			assert.Equal(t, BetRefunded, r.Kind)
			assert.Equal(t, bets[i].Amount, r.Payout)
		}
		assert.Zero(t, split.HouseSurplus)
	}
}

func TestSplitBetsNeverPaysMoreThanPool(t *testing.T) {
	amounts := []int64{10, 13, 17, 29, 31, 47, 53, 71, 97, 100}
	for n := 1; n < len(amounts); n++ {
		var bets []Bet
		for i, amt := range amounts {
			target := "b"
			if i < n {
				target = "a"
			}
			bets = append(bets, Bet{ID: int64(i + 1), UserID: "u", TargetUserID: target, Amount: amt})
		}
		split := SplitBets(bets, "a")
		assert.GreaterOrEqual(t, split.HouseSurplus, int64(0))
		assert.Less(t, split.HouseSurplus, int64(n)+1)
	}
}

func TestBetResultCredit(t *testing.T) {
	_, ok := BetResult{Kind: BetLost}.Credit("Tetris")
	assert.False(t, ok)

	c, ok := BetResult{UserID: "x", Payout: 30, Kind: BetRefunded}.Credit("Tetris")
	require.True(t, ok)
	assert.Equal(t, economy.ReasonArenaBetRefund, c.Reason)

	c, ok = BetResult{UserID: "x", Payout: 50, Kind: BetWon}.Credit("Tetris")
	require.True(t, ok)
	assert.Equal(t, economy.ReasonArenaBetWin, c.Reason)
	assert.Equal(t, int64(50), c.Amount)
}

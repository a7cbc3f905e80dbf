package arena

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marquessam/select-start-bot2-sub000/internal/common"
	"github.com/marquessam/select-start-bot2-sub000/internal/config"
	"github.com/marquessam/select-start-bot2-sub000/internal/features/economy"
)

type harness struct {
	svc      *Service
	store    *memStore
	lookup   *fakeLookup
	notifier *recordingNotifier
	now      time.Time
}

func testConfig() *config.Config {
	return &config.Config{
		ArenaMinWager:          10,
		ArenaMaxWager:          10000,
		ArenaMinBet:            10,
		ArenaMaxBet:            100,
		ArenaDefaultDuration:   7 * 24 * time.Hour,
		ArenaMaxDuration:       30 * 24 * time.Hour,
		ArenaBettingWindow:     72 * time.Hour,
		ArenaAcceptTimeout:     24 * time.Hour,
		ArenaSettleGrace:       24 * time.Hour,
		ArenaSettleConcurrency: 4,
		FeatureArenaEnabled:    true,
		FeatureBettingEnabled:  true,
	}
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		store: newMemStore(map[string]int64{
			"alice": 1000, "bob": 1000, "carol": 1000, "dave": 1000, "erin": 1000, "poor": 5,
		}),
		lookup:   &fakeLookup{ranks: map[string]int{}},
		notifier: &recordingNotifier{},
		now:      time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	h.svc = NewService(h.store, h.lookup, h.notifier, testConfig())
	h.svc.SetClock(func() time.Time { return h.now })
	return h
}

func (h *harness) advance(d time.Duration) { h.now = h.now.Add(d) }

// direct создаёт принятый прямой вызов alice против bob.
func (h *harness) direct(t *testing.T, wager int64) *Challenge {
	t.Helper()
	ctx := context.Background()
	ch, err := h.svc.CreateDirect(ctx, CreateRequest{
		CreatorID: "alice", CreatorName: "Alice", OpponentID: "bob",
		GameID: 1, LeaderboardID: 10, GameTitle: "Tetris", Wager: wager, Duration: 48 * time.Hour,
	})
	require.NoError(t, err)
	ch, err = h.svc.Accept(ctx, ch.ID, "bob", "Bob")
	require.NoError(t, err)
	return ch
}

func (h *harness) bet(t *testing.T, id, user, target string, amount int64) {
	t.Helper()
	_, _, err := h.svc.PlaceBet(context.Background(), BetRequest{
		ChallengeID: id, UserID: user, Username: user, TargetID: target, Amount: amount,
	})
	require.NoError(t, err)
}

func TestDirectChallengeWinnerTakesPot(t *testing.T) {
	h := newHarness(t)
	ch := h.direct(t, 100)
	assert.Equal(t, StatusActive, ch.Status)
	assert.Equal(t, int64(900), h.store.balance("alice"))
	assert.Equal(t, int64(900), h.store.balance("bob"))

	h.lookup.ranks = map[string]int{"Alice": 1, "Bob": 2}
	h.advance(49 * time.Hour)

	res, err := h.svc.CheckCompletedChallenges(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SweepResult{Due: 1, Settled: 1}, res)

	assert.Equal(t, int64(1100), h.store.balance("alice"))
	assert.Equal(t, int64(900), h.store.balance("bob"))

	got := h.store.challenge(ch.ID)
	assert.Equal(t, StatusCompleted, got.Status)
	assert.Equal(t, "alice", got.WinnerID)
	assert.Equal(t, "Alice", got.WinnerUsername)
	assert.True(t, got.Processed)
	assert.Equal(t, 1, got.Participants[0].Rank)

	require.Len(t, h.notifier.completed, 1)
	assert.Equal(t, int64(200), h.notifier.completed[0].Pot)

	st, err := h.svc.Stats(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, st.Wins)
	assert.Equal(t, int64(200), st.GPWon)
}

func TestTieRefundsBothWagers(t *testing.T) {
	h := newHarness(t)
	ch := h.direct(t, 100)
	h.advance(49 * time.Hour)

	res, err := h.svc.CheckCompletedChallenges(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Settled)

	assert.Equal(t, int64(1000), h.store.balance("alice"))
	assert.Equal(t, int64(1000), h.store.balance("bob"))

	got := h.store.challenge(ch.ID)
	assert.Equal(t, StatusCompleted, got.Status)
	assert.Equal(t, TieUsername, got.WinnerUsername)
	assert.Empty(t, got.WinnerID)

	refunds := h.store.entries(economy.ReasonArenaRefund)
	require.Len(t, refunds, 2)
	for _, e := range refunds {
		assert.Equal(t, int64(100), e.Amount)
	}
	assert.Empty(t, h.store.entries(economy.ReasonArenaWin))
}

func TestBetPayoutSplit(t *testing.T) {
	h := newHarness(t)
	ch := h.direct(t, 100)
	h.bet(t, ch.ID, "carol", "alice", 40)
	h.bet(t, ch.ID, "dave", "bob", 10)

	h.lookup.ranks = map[string]int{"Alice": 1, "Bob": 3}
	h.advance(49 * time.Hour)
	_, err := h.svc.CheckCompletedChallenges(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(1010), h.store.balance("carol"))
	assert.Equal(t, int64(990), h.store.balance("dave"))

	got := h.store.challenge(ch.ID)
	for _, b := range got.Bets {
		assert.True(t, b.Paid)
	}
	carol, _ := got.BetBy("carol")
	assert.Equal(t, int64(50), carol.Payout)
	dave, _ := got.BetBy("dave")
	assert.Zero(t, dave.Payout)
}

func TestBetsRefundedWhenNobodyBackedWinner(t *testing.T) {
	h := newHarness(t)
	ch := h.direct(t, 100)
	h.bet(t, ch.ID, "carol", "bob", 30)
	h.bet(t, ch.ID, "dave", "bob", 20)

	h.lookup.ranks = map[string]int{"Alice": 1}
	h.advance(49 * time.Hour)
	_, err := h.svc.CheckCompletedChallenges(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(1000), h.store.balance("carol"))
	assert.Equal(t, int64(1000), h.store.balance("dave"))
	assert.Len(t, h.store.entries(economy.ReasonArenaBetRefund), 2)
	assert.Equal(t, int64(1100), h.store.balance("alice"))
}

func TestSettlementIsAtMostOnce(t *testing.T) {
	h := newHarness(t)
	ch := h.direct(t, 100)
	h.bet(t, ch.ID, "carol", "alice", 50)
	h.lookup.ranks = map[string]int{"Alice": 1, "Bob": 2}
	h.advance(49 * time.Hour)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = h.svc.CheckCompletedChallenges(context.Background())
		}()
	}
	wg.Wait()

	assert.Len(t, h.store.entries(economy.ReasonArenaWin), 1)
	assert.Len(t, h.store.entries(economy.ReasonArenaBetWin), 1)
	assert.Equal(t, int64(1100), h.store.balance("alice"))

	outcome := Outcome{WinnerID: "alice", WinnerUsername: "Alice"}
	_, err := h.svc.ProcessPayouts(context.Background(), ch.ID, outcome)
	assert.ErrorIs(t, err, common.ErrAlreadyProcessed)
	_, err = h.svc.RefundChallenge(context.Background(), ch.ID, "again")
	assert.ErrorIs(t, err, common.ErrAlreadyProcessed)
	assert.Equal(t, int64(1100), h.store.balance("alice"))
}

func TestPayoutFailureRefundsEverything(t *testing.T) {
	h := newHarness(t)
	ch := h.direct(t, 100)
	h.bet(t, ch.ID, "carol", "alice", 40)
	h.bet(t, ch.ID, "dave", "bob", 60)
	before := h.store.total()

	// Банк выплачивается, падает выплата по ставке: всё откатывается
	h.store.failAward = func(c Credit) error {
		if c.Reason == economy.ReasonArenaBetWin {
			return errBoom
		}
		return nil
	}
	h.lookup.ranks = map[string]int{"Alice": 1, "Bob": 2}
	h.advance(49 * time.Hour)

	res, err := h.svc.CheckCompletedChallenges(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Refunded)

	for _, user := range []string{"alice", "bob", "carol", "dave"} {
		assert.Equal(t, int64(1000), h.store.balance(user), user)
	}
	assert.Equal(t, before+300, h.store.total())
	assert.Empty(t, h.store.entries(economy.ReasonArenaWin))

	got := h.store.challenge(ch.ID)
	assert.Equal(t, StatusCancelled, got.Status)
	assert.Equal(t, ReasonSettleFailed, got.CancelReason)
	assert.True(t, got.Processed)
	for _, b := range got.Bets {
		assert.True(t, b.Paid)
		assert.Equal(t, b.Amount, b.Payout)
	}
	require.Len(t, h.notifier.refunded, 1)
	assert.Empty(t, h.notifier.completed)
}

func TestPayoutsAppliedInUserOrder(t *testing.T) {
	h := newHarness(t)
	ch := h.direct(t, 100)
	h.bet(t, ch.ID, "erin", "bob", 30)
	h.bet(t, ch.ID, "carol", "bob", 20)
	h.bet(t, ch.ID, "dave", "alice", 50)

	h.lookup.ranks = map[string]int{"Alice": 2, "Bob": 1}
	h.advance(49 * time.Hour)
	mark := len(h.store.ledger)
	res, err := h.svc.CheckCompletedChallenges(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, res.Settled)

	// Банк и выплаты по ставкам начисляются одним проходом по user_id,
	// иначе два параллельных расчёта могут заблокировать друг друга
	var credited []string
	for _, e := range h.store.ledger[mark:] {
		credited = append(credited, e.UserID)
	}
	assert.Equal(t, []string{"bob", "carol", "erin"}, credited)
	assert.Equal(t, []string{"alice", "bob", "carol", "dave", "erin"}, h.store.statsOrder)
	assert.Equal(t, "bob", h.store.challenge(ch.ID).WinnerID)
}

func TestLockConflictDefersInsteadOfRefund(t *testing.T) {
	h := newHarness(t)
	ch := h.direct(t, 100)
	h.bet(t, ch.ID, "carol", "alice", 40)
	h.bet(t, ch.ID, "dave", "bob", 10)

	conflicts := 0
	h.store.failAward = func(Credit) error {
		conflicts++
		return &pgconn.PgError{Code: "40P01", Message: "deadlock detected"}
	}
	h.lookup.ranks = map[string]int{"Alice": 1, "Bob": 2}
	h.advance(49 * time.Hour)

	res, err := h.svc.CheckCompletedChallenges(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Deferred)
	assert.Zero(t, res.Refunded)
	assert.Equal(t, 1, conflicts)

	got := h.store.challenge(ch.ID)
	assert.Equal(t, StatusActive, got.Status)
	assert.False(t, got.Processed)
	assert.Empty(t, h.store.entries(economy.ReasonArenaRefund))
	assert.Empty(t, h.notifier.refunded)

	// Следующий тик рассчитывает челлендж штатно
	h.store.failAward = nil
	res, err = h.svc.CheckCompletedChallenges(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Settled)
	assert.Equal(t, int64(1100), h.store.balance("alice"))
	assert.Equal(t, int64(1010), h.store.balance("carol"))
	assert.Equal(t, StatusCompleted, h.store.challenge(ch.ID).Status)
}

func TestLeaderboardOutageDefersThenRefunds(t *testing.T) {
	h := newHarness(t)
	ch := h.direct(t, 100)
	h.lookup.err = errBoom
	h.advance(49 * time.Hour)

	res, err := h.svc.CheckCompletedChallenges(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Deferred)
	assert.Equal(t, StatusActive, h.store.challenge(ch.ID).Status)

	h.advance(25 * time.Hour)
	res, err = h.svc.CheckCompletedChallenges(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Refunded)

	got := h.store.challenge(ch.ID)
	assert.Equal(t, StatusCancelled, got.Status)
	assert.Equal(t, ReasonLeaderboard, got.CancelReason)
	assert.Equal(t, int64(1000), h.store.balance("alice"))
	assert.Equal(t, int64(1000), h.store.balance("bob"))
}

func TestTimeoutRefundsCreatorOnly(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ch, err := h.svc.CreateDirect(ctx, CreateRequest{
		CreatorID: "alice", CreatorName: "Alice", OpponentID: "bob",
		GameID: 1, LeaderboardID: 10, Wager: 100,
	})
	require.NoError(t, err)
	assert.Equal(t, StatusPending, ch.Status)
	assert.Equal(t, int64(900), h.store.balance("alice"))

	h.advance(23 * time.Hour)
	n, err := h.svc.CheckTimeouts(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	h.advance(2 * time.Hour)
	n, err = h.svc.CheckTimeouts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got := h.store.challenge(ch.ID)
	assert.Equal(t, StatusCancelled, got.Status)
	assert.Equal(t, ReasonNotAccepted, got.CancelReason)
	assert.Equal(t, int64(1000), h.store.balance("alice"))
	assert.Equal(t, int64(1000), h.store.balance("bob"))
	assert.Len(t, h.store.entries(economy.ReasonArenaRefund), 1)

	_, err = h.svc.Accept(ctx, ch.ID, "bob", "Bob")
	var te *TransitionError
	assert.ErrorAs(t, err, &te)
}

func TestAcceptAfterDeadlineIsRejected(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ch, err := h.svc.CreateDirect(ctx, CreateRequest{
		CreatorID: "alice", CreatorName: "Alice", OpponentID: "bob",
		GameID: 1, LeaderboardID: 10, Wager: 100,
	})
	require.NoError(t, err)

	// Sweep has not run yet; the deadline alone must stop the accept.
	h.advance(30 * time.Hour)
	_, err = h.svc.Accept(ctx, ch.ID, "bob", "Bob")
	assert.ErrorIs(t, err, common.ErrChallengeExpired)
	assert.Equal(t, int64(1000), h.store.balance("bob"), "acceptor is not charged")
	assert.Equal(t, StatusPending, h.store.challenge(ch.ID).Status)

	n, err := h.svc.CheckTimeouts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	got := h.store.challenge(ch.ID)
	assert.Equal(t, StatusCancelled, got.Status)
	assert.Equal(t, int64(1000), h.store.balance("alice"))
}

func TestAcceptJustBeforeDeadline(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ch, err := h.svc.CreateDirect(ctx, CreateRequest{
		CreatorID: "alice", CreatorName: "Alice", OpponentID: "bob",
		GameID: 1, LeaderboardID: 10, Wager: 100,
	})
	require.NoError(t, err)

	h.advance(24*time.Hour - time.Minute)
	got, err := h.svc.Accept(ctx, ch.ID, "bob", "Bob")
	require.NoError(t, err)
	assert.Equal(t, StatusActive, got.Status)
}

func TestAcceptRules(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ch, err := h.svc.CreateDirect(ctx, CreateRequest{
		CreatorID: "alice", CreatorName: "Alice", OpponentID: "poor",
		GameID: 1, LeaderboardID: 10, Wager: 100,
	})
	require.NoError(t, err)

	_, err = h.svc.Accept(ctx, ch.ID, "alice", "Alice")
	assert.ErrorIs(t, err, common.ErrSelfChallenge)
	_, err = h.svc.Accept(ctx, ch.ID, "carol", "Carol")
	assert.ErrorIs(t, err, common.ErrNotChallenged)
	_, err = h.svc.Accept(ctx, ch.ID, "poor", "Poor")
	assert.ErrorIs(t, err, common.ErrInsufficientFunds)

	got := h.store.challenge(ch.ID)
	assert.Equal(t, StatusPending, got.Status)
	assert.Len(t, got.Participants, 1)
	assert.Equal(t, int64(5), h.store.balance("poor"))

	_, err = h.svc.Accept(ctx, "missing", "poor", "Poor")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestCreateValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	base := CreateRequest{CreatorID: "alice", CreatorName: "Alice", OpponentID: "bob", GameID: 1, LeaderboardID: 1, Wager: 100}

	req := base
	req.OpponentID = "alice"
	_, err := h.svc.CreateDirect(ctx, req)
	assert.ErrorIs(t, err, common.ErrSelfChallenge)

	req = base
	req.Wager = 5
	_, err = h.svc.CreateDirect(ctx, req)
	assert.ErrorIs(t, err, common.ErrWagerOutOfRange)

	req = base
	req.Duration = 31 * 24 * time.Hour
	_, err = h.svc.CreateDirect(ctx, req)
	assert.ErrorIs(t, err, common.ErrInvalidDuration)

	req = base
	req.CreatorID = "poor"
	_, err = h.svc.CreateDirect(ctx, req)
	assert.ErrorIs(t, err, common.ErrInsufficientFunds)

	open, err := h.svc.Open(ctx)
	require.NoError(t, err)
	assert.Empty(t, open)
}

func TestDeclineRefundsCreator(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ch, err := h.svc.CreateDirect(ctx, CreateRequest{
		CreatorID: "alice", CreatorName: "Alice", OpponentID: "bob", GameID: 1, LeaderboardID: 1, Wager: 250,
	})
	require.NoError(t, err)

	_, err = h.svc.Decline(ctx, ch.ID, "carol")
	assert.ErrorIs(t, err, common.ErrNotChallenged)

	ref, err := h.svc.Decline(ctx, ch.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, int64(250), ref.Amount)
	assert.Equal(t, StatusCancelled, ref.Challenge.Status)
	assert.Equal(t, int64(1000), h.store.balance("alice"))
}

func TestOpenChallengeLifecycle(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ch, err := h.svc.CreateOpen(ctx, CreateRequest{
		CreatorID: "alice", CreatorName: "Alice", GameID: 1, LeaderboardID: 1, Wager: 50, Duration: 24 * time.Hour,
	})
	require.NoError(t, err)
	assert.Equal(t, StatusActive, ch.Status)
	// Окно ставок не длиннее самого челленджа
	assert.Equal(t, *ch.EndedAt, *ch.BettingClosedAt)

	_, err = h.svc.Join(ctx, ch.ID, "alice", "Alice")
	assert.ErrorIs(t, err, common.ErrAlreadyParticipant)
	_, err = h.svc.Join(ctx, ch.ID, "poor", "Poor")
	assert.ErrorIs(t, err, common.ErrInsufficientFunds)

	for _, u := range []string{"bob", "carol"} {
		_, err = h.svc.Join(ctx, ch.ID, u, u)
		require.NoError(t, err)
	}
	h.bet(t, ch.ID, "dave", "carol", 30)

	_, err = h.svc.Join(ctx, ch.ID, "dave", "dave")
	assert.ErrorIs(t, err, common.ErrSelfBet)

	h.advance(25 * time.Hour)
	_, err = h.svc.Join(ctx, ch.ID, "erin", "erin")
	assert.ErrorIs(t, err, common.ErrChallengeEnded)

	h.lookup.ranks = map[string]int{"Alice": 4, "bob": 9, "carol": 2}
	res, err := h.svc.CheckCompletedChallenges(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Settled)

	assert.Equal(t, int64(1100), h.store.balance("carol"))
	assert.Equal(t, int64(950), h.store.balance("alice"))
	assert.Equal(t, int64(950), h.store.balance("bob"))
	// Единственная ставка без проигравших ставок: возвращается только сумма
	assert.Equal(t, int64(1000), h.store.balance("dave"))
}

func TestOpenChallengeWithoutOpponentIsRefunded(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ch, err := h.svc.CreateOpen(ctx, CreateRequest{
		CreatorID: "alice", CreatorName: "Alice", GameID: 1, LeaderboardID: 1, Wager: 50, Duration: time.Hour,
	})
	require.NoError(t, err)

	h.advance(2 * time.Hour)
	res, err := h.svc.CheckCompletedChallenges(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Refunded)
	assert.Zero(t, h.lookup.calls)

	got := h.store.challenge(ch.ID)
	assert.Equal(t, StatusCancelled, got.Status)
	assert.Equal(t, ReasonNoContest, got.CancelReason)
	assert.Equal(t, int64(1000), h.store.balance("alice"))
}

func TestBetRules(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ch := h.direct(t, 100)

	place := func(user, target string, amount int64) error {
		_, _, err := h.svc.PlaceBet(ctx, BetRequest{ChallengeID: ch.ID, UserID: user, TargetID: target, Amount: amount})
		return err
	}

	assert.ErrorIs(t, place("alice", "bob", 20), common.ErrSelfBet)
	assert.ErrorIs(t, place("carol", "erin", 20), common.ErrInvalidBetTarget)
	assert.ErrorIs(t, place("carol", "bob", 5), common.ErrBetOutOfRange)
	assert.ErrorIs(t, place("carol", "bob", 500), common.ErrBetOutOfRange)
	assert.ErrorIs(t, place("poor", "bob", 20), common.ErrInsufficientFunds)

	require.NoError(t, place("carol", "bob", 20))
	assert.ErrorIs(t, place("carol", "alice", 20), common.ErrAlreadyBet)
	assert.Equal(t, int64(980), h.store.balance("carol"))

	h.advance(47 * time.Hour)
	require.NoError(t, place("dave", "alice", 20))

	h.advance(2 * time.Hour)
	assert.ErrorIs(t, place("erin", "alice", 20), common.ErrBettingClosed)
}

func TestBettingDisabled(t *testing.T) {
	h := newHarness(t)
	h.svc.cfg.FeatureBettingEnabled = false
	ch := h.direct(t, 100)
	_, _, err := h.svc.PlaceBet(context.Background(), BetRequest{ChallengeID: ch.ID, UserID: "carol", TargetID: "bob", Amount: 20})
	assert.ErrorIs(t, err, common.ErrArenaDisabled)
}

func TestForceCompleteAndAdminCancel(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	pending, err := h.svc.CreateDirect(ctx, CreateRequest{
		CreatorID: "carol", CreatorName: "Carol", OpponentID: "dave", GameID: 1, LeaderboardID: 1, Wager: 100,
	})
	require.NoError(t, err)
	_, err = h.svc.ForceComplete(ctx, pending.ID)
	var te *TransitionError
	assert.ErrorAs(t, err, &te)

	ch := h.direct(t, 100)
	h.lookup.err = errBoom
	_, err = h.svc.ForceComplete(ctx, ch.ID)
	var perr *ProcessingError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, StageLeaderboard, perr.Stage)
	assert.Equal(t, StatusActive, h.store.challenge(ch.ID).Status)

	h.lookup.err = nil
	h.lookup.ranks = map[string]int{"Bob": 1}
	res, err := h.svc.ForceComplete(ctx, ch.ID)
	require.NoError(t, err)
	require.NotNil(t, res.Settlement)
	assert.Equal(t, "bob", res.Settlement.Outcome.WinnerID)
	assert.Equal(t, int64(1100), h.store.balance("bob"))

	ref, err := h.svc.RefundChallenge(ctx, pending.ID, ReasonAdminCancel)
	require.NoError(t, err)
	assert.Equal(t, int64(100), ref.Amount)
	assert.Equal(t, int64(1000), h.store.balance("carol"))
}

// Сколько бы ни было участников и ставок, GP не создаются:
// сумма балансов после расчёта = до создания минус остаток дома.
func TestSettlementConservesGP(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	before := h.store.total()

	ch, err := h.svc.CreateOpen(ctx, CreateRequest{
		CreatorID: "alice", CreatorName: "Alice", GameID: 1, LeaderboardID: 1, Wager: 77, Duration: 96 * time.Hour,
	})
	require.NoError(t, err)
	_, err = h.svc.Join(ctx, ch.ID, "bob", "Bob")
	require.NoError(t, err)
	h.bet(t, ch.ID, "carol", "alice", 33)
	h.bet(t, ch.ID, "dave", "alice", 17)
	h.bet(t, ch.ID, "erin", "bob", 100)

	h.lookup.ranks = map[string]int{"Alice": 3, "Bob": 8}
	h.advance(97 * time.Hour)
	_, err = h.svc.CheckCompletedChallenges(ctx)
	require.NoError(t, err)

	got := h.store.challenge(ch.ID)
	split := SplitBets(got.Bets, "alice")
	assert.GreaterOrEqual(t, split.HouseSurplus, int64(0))
	assert.Equal(t, before-split.HouseSurplus, h.store.total())

	// 33*100/50 = 66, 17*100/50 = 34
	assert.Equal(t, int64(1066), h.store.balance("carol"))
	assert.Equal(t, int64(1034), h.store.balance("dave"))
	assert.Equal(t, int64(1077), h.store.balance("alice"))
}

package arena

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/marquessam/select-start-bot2-sub000/internal/common"
	"github.com/marquessam/select-start-bot2-sub000/internal/features/leaderboard"
)

// memStore — Store в памяти. Транзакции сериализуются мьютексом,
// ошибка fn восстанавливает снимок, как откат в PostgreSQL.
type memStore struct {
	mu         sync.Mutex
	challenges map[string]*Challenge
	balances   map[string]int64
	ledger     []ledgerEntry
	stats      map[string]Stats
	nextBetID  int64

	// failAward, если задан, может вернуть ошибку для начисления
	failAward func(c Credit) error
	// statsOrder — user_id в порядке вызовов AddStats
	statsOrder []string
}

type ledgerEntry struct {
	UserID      string
	Amount      int64
	Reason      string
	ChallengeID string
}

func newMemStore(balances map[string]int64) *memStore {
	return &memStore{
		challenges: make(map[string]*Challenge),
		balances:   balances,
		stats:      make(map[string]Stats),
	}
}

func cloneChallenge(ch *Challenge) *Challenge {
	c := *ch
	c.Participants = append([]Participant(nil), ch.Participants...)
	c.Bets = append([]Bet(nil), ch.Bets...)
	return &c
}

type memSnapshot struct {
	challenges map[string]*Challenge
	balances   map[string]int64
	ledger     []ledgerEntry
	stats      map[string]Stats
	nextBetID  int64
}

func (m *memStore) snapshot() memSnapshot {
	s := memSnapshot{
		challenges: make(map[string]*Challenge, len(m.challenges)),
		balances:   make(map[string]int64, len(m.balances)),
		ledger:     append([]ledgerEntry(nil), m.ledger...),
		stats:      make(map[string]Stats, len(m.stats)),
		nextBetID:  m.nextBetID,
	}
	for k, v := range m.challenges {
		s.challenges[k] = cloneChallenge(v)
	}
	for k, v := range m.balances {
		s.balances[k] = v
	}
	for k, v := range m.stats {
		s.stats[k] = v
	}
	return s
}

func (m *memStore) restore(s memSnapshot) {
	m.challenges, m.balances, m.ledger, m.stats, m.nextBetID = s.challenges, s.balances, s.ledger, s.stats, s.nextBetID
}

func (m *memStore) Get(_ context.Context, id string) (*Challenge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, ok := m.challenges[id]
	if !ok {
		return nil, common.ErrChallengeNotFound
	}
	return cloneChallenge(ch), nil
}

func (m *memStore) filter(keep func(*Challenge) bool) []*Challenge {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Challenge
	for _, ch := range m.challenges {
		if keep(ch) {
			out = append(out, cloneChallenge(ch))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (m *memStore) List(_ context.Context, statuses []Status, limit int) ([]*Challenge, error) {
	out := m.filter(func(ch *Challenge) bool {
		for _, st := range statuses {
			if ch.Status == st {
				return true
			}
		}
		return false
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) ListDue(_ context.Context, now time.Time) ([]*Challenge, error) {
	return m.filter(func(ch *Challenge) bool {
		return ch.Status == StatusActive && !ch.Processed && ch.HasEnded(now)
	}), nil
}

func (m *memStore) ListExpiredPending(_ context.Context, cutoff time.Time) ([]*Challenge, error) {
	return m.filter(func(ch *Challenge) bool {
		return ch.Status == StatusPending && !ch.Processed && !ch.CreatedAt.After(cutoff)
	}), nil
}

func (m *memStore) Stats(_ context.Context, userID string) (*Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.stats[userID]
	if !ok {
		return nil, common.ErrNotFound
	}
	return &st, nil
}

func (m *memStore) InTx(_ context.Context, fn func(tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := m.snapshot()
	if err := fn(&memTx{m: m}); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

func (m *memStore) balance(userID string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[userID]
}

func (m *memStore) challenge(id string) *Challenge {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneChallenge(m.challenges[id])
}

func (m *memStore) entries(reason string) []ledgerEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []ledgerEntry
	for _, e := range m.ledger {
		if e.Reason == reason {
			out = append(out, e)
		}
	}
	return out
}

func (m *memStore) total() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	var sum int64
	for _, b := range m.balances {
		sum += b
	}
	return sum
}

type memTx struct{ m *memStore }

func (t *memTx) stored(id string) (*Challenge, error) {
	ch, ok := t.m.challenges[id]
	if !ok {
		return nil, common.ErrChallengeNotFound
	}
	return ch, nil
}

func (t *memTx) Insert(_ context.Context, ch *Challenge) error {
	if _, ok := t.m.challenges[ch.ID]; ok {
		return fmt.Errorf("duplicate challenge %s", ch.ID)
	}
	t.m.challenges[ch.ID] = cloneChallenge(ch)
	return nil
}

func (t *memTx) Lock(_ context.Context, id string) (*Challenge, error) {
	ch, err := t.stored(id)
	if err != nil {
		return nil, err
	}
	return cloneChallenge(ch), nil
}

func (t *memTx) Claim(_ context.Context, id string, at time.Time) (bool, error) {
	ch, err := t.stored(id)
	if err != nil {
		return false, err
	}
	if ch.Processed {
		return false, nil
	}
	ch.Processed, ch.ProcessedAt = true, &at
	return true, nil
}

func (t *memTx) Update(_ context.Context, ch *Challenge) error {
	cur, err := t.stored(ch.ID)
	if err != nil {
		return err
	}
	cur.Status, cur.StartedAt, cur.EndedAt, cur.BettingClosedAt, cur.CompletedAt = ch.Status, ch.StartedAt, ch.EndedAt, ch.BettingClosedAt, ch.CompletedAt
	cur.WinnerID, cur.WinnerUsername, cur.CancelReason = ch.WinnerID, ch.WinnerUsername, ch.CancelReason
	cur.Processed, cur.ProcessedAt = ch.Processed, ch.ProcessedAt
	return nil
}

func (t *memTx) AddParticipant(_ context.Context, id string, p Participant) error {
	ch, err := t.stored(id)
	if err != nil {
		return err
	}
	if ch.IsParticipant(p.UserID) {
		return common.ErrAlreadyParticipant
	}
	ch.Participants = append(ch.Participants, p)
	return nil
}

func (t *memTx) AddBet(_ context.Context, id string, b *Bet) error {
	ch, err := t.stored(id)
	if err != nil {
		return err
	}
	if _, ok := ch.BetBy(b.UserID); ok {
		return common.ErrAlreadyBet
	}
	t.m.nextBetID++
	b.ID = t.m.nextBetID
	ch.Bets = append(ch.Bets, *b)
	return nil
}

func (t *memTx) SaveStandings(_ context.Context, id string, standings []Participant) error {
	ch, err := t.stored(id)
	if err != nil {
		return err
	}
	for _, s := range standings {
		for i := range ch.Participants {
			if ch.Participants[i].UserID == s.UserID {
				ch.Participants[i].Rank, ch.Participants[i].Score = s.Rank, s.Score
			}
		}
	}
	return nil
}

func (t *memTx) SettleBet(_ context.Context, r BetResult) error {
	for _, ch := range t.m.challenges {
		for i := range ch.Bets {
			if ch.Bets[i].ID != r.BetID {
				continue
			}
			if ch.Bets[i].Paid {
				return fmt.Errorf("bet %d already settled", r.BetID)
			}
			ch.Bets[i].Paid, ch.Bets[i].Payout, ch.Bets[i].HouseContribution = true, r.Payout, r.HouseContribution
			return nil
		}
	}
	return fmt.Errorf("bet %d not found", r.BetID)
}

func (t *memTx) AddStats(_ context.Context, d Stats) error {
	t.m.statsOrder = append(t.m.statsOrder, d.UserID)
	st := t.m.stats[d.UserID]
	st.UserID = d.UserID
	st.Wins += d.Wins
	st.Losses += d.Losses
	st.Ties += d.Ties
	st.GPWagered += d.GPWagered
	st.GPWon += d.GPWon
	st.BetsPlaced += d.BetsPlaced
	st.BetsWon += d.BetsWon
	st.BetWinnings += d.BetWinnings
	t.m.stats[d.UserID] = st
	return nil
}

func (t *memTx) Award(_ context.Context, c Credit, challengeID string) error {
	if c.Amount <= 0 {
		return common.ErrInvalidAmount
	}
	if t.m.failAward != nil {
		if err := t.m.failAward(c); err != nil {
			return err
		}
	}
	if _, ok := t.m.balances[c.UserID]; !ok {
		return common.ErrUserNotFound
	}
	t.m.balances[c.UserID] += c.Amount
	t.m.ledger = append(t.m.ledger, ledgerEntry{UserID: c.UserID, Amount: c.Amount, Reason: c.Reason, ChallengeID: challengeID})
	return nil
}

func (t *memTx) Deduct(_ context.Context, userID string, amount int64, reason, _, challengeID string) error {
	if amount <= 0 {
		return common.ErrInvalidAmount
	}
	bal, ok := t.m.balances[userID]
	if !ok {
		return common.ErrUserNotFound
	}
	if bal < amount {
		return common.ErrInsufficientFunds
	}
	t.m.balances[userID] = bal - amount
	t.m.ledger = append(t.m.ledger, ledgerEntry{UserID: userID, Amount: -amount, Reason: reason, ChallengeID: challengeID})
	return nil
}

// fakeLookup отдаёт места по нику.
type fakeLookup struct {
	mu    sync.Mutex
	ranks map[string]int
	err   error
	calls int
}

func (f *fakeLookup) Ranks(_ context.Context, _, _ int, usernames []string) ([]leaderboard.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([]leaderboard.Entry, len(usernames))
	for i, name := range usernames {
		rank := f.ranks[name]
		out[i] = leaderboard.Entry{Username: name, Rank: rank, FormattedScore: fmt.Sprintf("#%d", rank)}
	}
	return out, nil
}

// recordingNotifier запоминает события.
type recordingNotifier struct {
	mu        sync.Mutex
	completed []CompletedEvent
	refunded  []RefundedEvent
}

func (n *recordingNotifier) ChallengeCompleted(_ context.Context, ev CompletedEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.completed = append(n.completed, ev)
}

func (n *recordingNotifier) ChallengeRefunded(_ context.Context, ev RefundedEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.refunded = append(n.refunded, ev)
}

var errBoom = errors.New("boom")

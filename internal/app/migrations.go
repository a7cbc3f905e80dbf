package app

// SQL-миграции встроены в код для упрощения деплоя.
// Версии только добавляются; применённую миграцию не редактировать.
var migrations = []struct {
	version int
	name    string
	sql     string
}{
	{1, "members", migration001Members},
	{2, "economy", migration002Economy},
	{3, "arena", migration003Arena},
	{4, "arena_stats", migration004ArenaStats},
	{5, "admin", migration005Admin},
}

var migration001Members = `
CREATE TABLE IF NOT EXISTS members (
    id BIGSERIAL PRIMARY KEY,
    discord_id TEXT UNIQUE NOT NULL,
    username TEXT NOT NULL DEFAULT '',
    ra_username TEXT NOT NULL,
    is_admin BOOLEAN NOT NULL DEFAULT FALSE,
    is_banned BOOLEAN NOT NULL DEFAULT FALSE,
    joined_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_members_ra_username ON members(LOWER(ra_username));
`

var migration002Economy = `
CREATE TABLE IF NOT EXISTS balances (
    user_id TEXT PRIMARY KEY REFERENCES members(discord_id),
    balance BIGINT NOT NULL DEFAULT 0 CHECK (balance >= 0),
    total_earned BIGINT NOT NULL DEFAULT 0,
    total_spent BIGINT NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS transactions (
    id BIGSERIAL PRIMARY KEY,
    user_id TEXT NOT NULL REFERENCES balances(user_id),
    amount BIGINT NOT NULL,
    reason VARCHAR(50) NOT NULL,
    context TEXT NOT NULL DEFAULT '',
    detail TEXT NOT NULL DEFAULT '',
    balance_before BIGINT NOT NULL,
    balance_after BIGINT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_transactions_user ON transactions(user_id, id DESC);
CREATE INDEX IF NOT EXISTS idx_transactions_context ON transactions(context) WHERE context <> '';
`

var migration003Arena = `
CREATE TABLE IF NOT EXISTS arena_challenges (
    id TEXT PRIMARY KEY,
    type VARCHAR(16) NOT NULL,
    status VARCHAR(16) NOT NULL,
    creator_id TEXT NOT NULL REFERENCES members(discord_id),
    opponent_id TEXT NOT NULL DEFAULT '',
    game_id INTEGER NOT NULL,
    leaderboard_id INTEGER NOT NULL,
    game_title TEXT NOT NULL DEFAULT '',
    description TEXT NOT NULL DEFAULT '',
    wager BIGINT NOT NULL CHECK (wager > 0),
    duration_seconds BIGINT NOT NULL,
    winner_id TEXT NOT NULL DEFAULT '',
    winner_username TEXT NOT NULL DEFAULT '',
    cancel_reason TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    started_at TIMESTAMPTZ,
    ended_at TIMESTAMPTZ,
    betting_closed_at TIMESTAMPTZ,
    completed_at TIMESTAMPTZ,
    processed BOOLEAN NOT NULL DEFAULT FALSE,
    processed_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_arena_challenges_due ON arena_challenges(ended_at)
    WHERE status = 'active' AND processed = FALSE;
CREATE INDEX IF NOT EXISTS idx_arena_challenges_pending ON arena_challenges(created_at)
    WHERE status = 'pending';

CREATE TABLE IF NOT EXISTS arena_participants (
    challenge_id TEXT NOT NULL REFERENCES arena_challenges(id),
    user_id TEXT NOT NULL REFERENCES members(discord_id),
    username TEXT NOT NULL,
    wager BIGINT NOT NULL,
    joined_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    final_rank INTEGER NOT NULL DEFAULT 0,
    final_score TEXT NOT NULL DEFAULT '',
    CONSTRAINT arena_participants_pkey PRIMARY KEY (challenge_id, user_id)
);

CREATE TABLE IF NOT EXISTS arena_bets (
    id BIGSERIAL PRIMARY KEY,
    challenge_id TEXT NOT NULL REFERENCES arena_challenges(id),
    user_id TEXT NOT NULL REFERENCES members(discord_id),
    username TEXT NOT NULL,
    target_user_id TEXT NOT NULL,
    amount BIGINT NOT NULL CHECK (amount > 0),
    placed_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    paid BOOLEAN NOT NULL DEFAULT FALSE,
    payout BIGINT NOT NULL DEFAULT 0,
    house_contribution BIGINT NOT NULL DEFAULT 0,
    CONSTRAINT arena_bets_challenge_user_key UNIQUE (challenge_id, user_id)
);
`

var migration004ArenaStats = `
CREATE TABLE IF NOT EXISTS arena_stats (
    user_id TEXT PRIMARY KEY REFERENCES members(discord_id),
    wins INTEGER NOT NULL DEFAULT 0,
    losses INTEGER NOT NULL DEFAULT 0,
    ties INTEGER NOT NULL DEFAULT 0,
    gp_wagered BIGINT NOT NULL DEFAULT 0,
    gp_won BIGINT NOT NULL DEFAULT 0,
    bets_placed INTEGER NOT NULL DEFAULT 0,
    bets_won INTEGER NOT NULL DEFAULT 0,
    bet_winnings BIGINT NOT NULL DEFAULT 0,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

var migration005Admin = `
CREATE TABLE IF NOT EXISTS admin_sessions (
    id BIGSERIAL PRIMARY KEY,
    user_id TEXT NOT NULL REFERENCES members(discord_id),
    session_token VARCHAR(255) UNIQUE NOT NULL,
    authenticated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    expires_at TIMESTAMPTZ NOT NULL,
    last_activity TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    is_active BOOLEAN NOT NULL DEFAULT TRUE
);
CREATE INDEX IF NOT EXISTS idx_admin_sessions_user_id ON admin_sessions(user_id) WHERE is_active;
CREATE TABLE IF NOT EXISTS admin_login_attempts (
    id BIGSERIAL PRIMARY KEY,
    user_id TEXT NOT NULL,
    attempt_time TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    success BOOLEAN NOT NULL DEFAULT FALSE
);
CREATE INDEX IF NOT EXISTS idx_admin_login_attempts_user ON admin_login_attempts(user_id, attempt_time DESC);
`

package ledger

// Schema aplicado no boot do serviço (idempotente).
const Schema = `
CREATE TABLE IF NOT EXISTS users (
    id         TEXT PRIMARY KEY,
    wallet     DOUBLE PRECISION NOT NULL DEFAULT 0,
    pnl        DOUBLE PRECISION NOT NULL DEFAULT 0,
    trade_ids  TEXT[] NOT NULL DEFAULT '{}',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS events (
    id           TEXT PRIMARY KEY,
    sport        TEXT NOT NULL,
    kind         TEXT NOT NULL, -- two_way | three_way
    home_team    TEXT NOT NULL DEFAULT '',
    away_team    TEXT NOT NULL DEFAULT '',
    scheduled_at TIMESTAMPTZ NOT NULL,
    status       TEXT NOT NULL DEFAULT 'scheduled',
    home_score   INTEGER NOT NULL DEFAULT 0,
    away_score   INTEGER NOT NULL DEFAULT 0,
    result       TEXT NOT NULL DEFAULT '',
    home_odds    DOUBLE PRECISION NOT NULL DEFAULT 0,
    away_odds    DOUBLE PRECISION NOT NULL DEFAULT 0,
    draw_odds    DOUBLE PRECISION NOT NULL DEFAULT 0,
    prior_home   DOUBLE PRECISION NOT NULL DEFAULT 0,
    prior_away   DOUBLE PRECISION NOT NULL DEFAULT 0,
    prior_draw   DOUBLE PRECISION NOT NULL DEFAULT 0,
    pool_home    DOUBLE PRECISION NOT NULL DEFAULT 0,
    pool_away    DOUBLE PRECISION NOT NULL DEFAULT 0,
    pool_draw    DOUBLE PRECISION NOT NULL DEFAULT 0,
    alpha        DOUBLE PRECISION NOT NULL DEFAULT 0.5,
    trade_ids    TEXT[] NOT NULL DEFAULT '{}',
    updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS trades (
    id                TEXT PRIMARY KEY,
    user_id           TEXT NOT NULL REFERENCES users(id),
    event_id          TEXT NOT NULL REFERENCES events(id),
    amount            DOUBLE PRECISION NOT NULL,
    outcome           TEXT NOT NULL, -- home | away | draw
    odds_at_placement DOUBLE PRECISION NOT NULL,
    expected_payout   DOUBLE PRECISION NOT NULL,
    stake_value       DOUBLE PRECISION NOT NULL,
    status            TEXT NOT NULL DEFAULT 'pending',
    for_sale          BOOLEAN NOT NULL DEFAULT FALSE,
    sale_price        DOUBLE PRECISION NOT NULL DEFAULT 0,
    sold_by           TEXT NOT NULL DEFAULT '',
    credit_applied    BOOLEAN NOT NULL DEFAULT FALSE,
    created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS odds_history (
    id         BIGSERIAL PRIMARY KEY,
    event_id   TEXT NOT NULL,
    home_odds  DOUBLE PRECISION NOT NULL,
    away_odds  DOUBLE PRECISION NOT NULL,
    draw_odds  DOUBLE PRECISION NOT NULL,
    source     TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_trades_event_status ON trades(event_id, status);
CREATE INDEX IF NOT EXISTS idx_trades_user         ON trades(user_id);
CREATE INDEX IF NOT EXISTS idx_trades_unapplied    ON trades(credit_applied) WHERE status IN ('won','lost') AND credit_applied = FALSE;
CREATE INDEX IF NOT EXISTS idx_odds_history_event  ON odds_history(event_id, created_at DESC);
`

package postgres

// GetMigrations returns all embedded migrations in version order.
func GetMigrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "create_core_tables",
			UpSQL:   migration001Up,
			DownSQL: migration001Down,
		},
	}
}

const migration001Up = `
CREATE TABLE competitions (
	id          BIGSERIAL PRIMARY KEY,
	channel_ref BIGINT NOT NULL UNIQUE,
	name        TEXT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE challenges (
	id             BIGSERIAL PRIMARY KEY,
	competition_id BIGINT NOT NULL REFERENCES competitions(id),
	name           TEXT NOT NULL,
	category       INTEGER NOT NULL,
	discussion_ref BIGINT,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (competition_id, name)
);

CREATE TABLE users (
	id          BIGINT PRIMARY KEY,
	email       TEXT,
	points      BIGINT NOT NULL DEFAULT 0,
	cached_rank INTEGER,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE solves (
	id                   BIGSERIAL PRIMARY KEY,
	challenge_id         BIGINT NOT NULL REFERENCES challenges(id),
	decision_message_ref BIGINT NOT NULL UNIQUE,
	flag                 TEXT NOT NULL,
	approval_status      INTEGER NOT NULL DEFAULT 0,
	created_at           TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE user_solves (
	user_id  BIGINT NOT NULL REFERENCES users(id),
	solve_id BIGINT NOT NULL REFERENCES solves(id),
	PRIMARY KEY (user_id, solve_id)
);

CREATE INDEX idx_solves_challenge ON solves(challenge_id);
CREATE INDEX idx_user_solves_solve ON user_solves(solve_id);
CREATE INDEX idx_users_points ON users(points DESC, id ASC);
`

const migration001Down = `
DROP TABLE IF EXISTS user_solves;
DROP TABLE IF EXISTS solves;
DROP TABLE IF EXISTS users;
DROP TABLE IF EXISTS challenges;
DROP TABLE IF EXISTS competitions;
`

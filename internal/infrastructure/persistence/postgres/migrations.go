package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATIONS
// Embedded schema migrations applied at startup. The unique constraints on
// user_activity_progress, day_finalizations and achievements are load-bearing:
// they are the at-most-once award mechanism, not just data hygiene.
// ══════════════════════════════════════════════════════════════════════════════

// Migration represents a database migration.
type Migration struct {
	Version   int
	Name      string
	UpSQL     string
	DownSQL   string
	AppliedAt time.Time
	IsApplied bool
}

// Migrator handles database migrations.
type Migrator struct {
	conn       *Connection
	migrations []Migration
	tableName  string
}

// NewMigrator creates a new migrator with embedded migrations.
func NewMigrator(conn *Connection) *Migrator {
	return &Migrator{
		conn:       conn,
		migrations: GetMigrations(),
		tableName:  "schema_migrations",
	}
}

// EnsureMigrationTable creates the migration tracking table if it doesn't exist.
func (m *Migrator) EnsureMigrationTable(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)
	`, m.tableName)

	if _, err := m.conn.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}
	return nil
}

// GetAppliedMigrations returns all applied migrations.
func (m *Migrator) GetAppliedMigrations(ctx context.Context) (map[int]time.Time, error) {
	query := fmt.Sprintf("SELECT version, applied_at FROM %s ORDER BY version", m.tableName)

	rows, err := m.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]time.Time)
	for rows.Next() {
		var version int
		var appliedAt time.Time
		if err := rows.Scan(&version, &appliedAt); err != nil {
			return nil, fmt.Errorf("failed to scan migration row: %w", err)
		}
		applied[version] = appliedAt
	}
	return applied, rows.Err()
}

// Migrate applies all pending migrations.
func (m *Migrator) Migrate(ctx context.Context) error {
	if err := m.EnsureMigrationTable(ctx); err != nil {
		return err
	}

	applied, err := m.GetAppliedMigrations(ctx)
	if err != nil {
		return err
	}

	for _, mig := range m.migrations {
		if _, isApplied := applied[mig.Version]; isApplied {
			continue
		}
		if mig.UpSQL == "" {
			return fmt.Errorf("%w: missing up SQL for migration %d", ErrMigrationFailed, mig.Version)
		}

		err := m.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, mig.UpSQL); err != nil {
				return fmt.Errorf("failed to execute migration %d: %w", mig.Version, err)
			}
			insertQuery := fmt.Sprintf("INSERT INTO %s (version, name) VALUES ($1, $2)", m.tableName)
			_, err := tx.Exec(ctx, insertQuery, mig.Version, mig.Name)
			return err
		})
		if err != nil {
			return fmt.Errorf("%w: version %d: %v", ErrMigrationFailed, mig.Version, err)
		}
	}
	return nil
}

// GetMigrations returns all embedded migrations.
func GetMigrations() []Migration {
	return []Migration{
		{Version: 1, Name: "create_progress", UpSQL: migration001Up, DownSQL: migration001Down},
		{Version: 2, Name: "create_awards", UpSQL: migration002Up, DownSQL: migration002Down},
		{Version: 3, Name: "create_content", UpSQL: migration003Up, DownSQL: migration003Down},
	}
}

const migration001Up = `
CREATE TABLE IF NOT EXISTS user_track_progress (
	user_id          TEXT NOT NULL,
	track_slug       TEXT NOT NULL,
	current_day      INTEGER NOT NULL DEFAULT 1 CHECK (current_day >= 1),
	total_points     INTEGER NOT NULL DEFAULT 0 CHECK (total_points >= 0),
	streak_days      INTEGER NOT NULL DEFAULT 0 CHECK (streak_days >= 0),
	level_number     INTEGER NOT NULL DEFAULT 1 CHECK (level_number >= 1),
	last_activity_at TIMESTAMP WITH TIME ZONE,
	is_active        BOOLEAN NOT NULL DEFAULT TRUE,
	started_at       TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
	created_at       TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
	updated_at       TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
	PRIMARY KEY (user_id, track_slug)
);

CREATE INDEX IF NOT EXISTS idx_progress_user ON user_track_progress (user_id);
`

const migration001Down = `
DROP TABLE IF EXISTS user_track_progress;
`

const migration002Up = `
CREATE TABLE IF NOT EXISTS user_activity_progress (
	id             UUID PRIMARY KEY,
	user_id        TEXT NOT NULL,
	track_slug     TEXT NOT NULL,
	day_number     INTEGER NOT NULL CHECK (day_number >= 1),
	activity_index INTEGER NOT NULL CHECK (activity_index >= 0),
	points_earned  INTEGER NOT NULL DEFAULT 0 CHECK (points_earned >= 0),
	completed_at   TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
	UNIQUE (user_id, track_slug, day_number, activity_index)
);

CREATE INDEX IF NOT EXISTS idx_activity_user_track
	ON user_activity_progress (user_id, track_slug);

CREATE TABLE IF NOT EXISTS day_finalizations (
	user_id      TEXT NOT NULL,
	track_slug   TEXT NOT NULL,
	day_number   INTEGER NOT NULL CHECK (day_number >= 1),
	bonus_points INTEGER NOT NULL DEFAULT 0 CHECK (bonus_points >= 0),
	finalized_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
	PRIMARY KEY (user_id, track_slug, day_number)
);

CREATE TABLE IF NOT EXISTS achievements (
	id               UUID PRIMARY KEY,
	user_id          TEXT NOT NULL,
	achievement_type TEXT NOT NULL,
	track_slug       TEXT NOT NULL DEFAULT '',
	points_awarded   INTEGER NOT NULL DEFAULT 0,
	earned_at        TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
	UNIQUE (user_id, achievement_type, track_slug)
);

CREATE INDEX IF NOT EXISTS idx_achievements_user ON achievements (user_id);
`

const migration002Down = `
DROP TABLE IF EXISTS achievements;
DROP TABLE IF EXISTS day_finalizations;
DROP TABLE IF EXISTS user_activity_progress;
`

const migration003Up = `
CREATE TABLE IF NOT EXISTS daily_templates (
	track_slug         TEXT NOT NULL,
	day_number         INTEGER NOT NULL CHECK (day_number >= 1),
	title              TEXT NOT NULL DEFAULT '',
	objective          TEXT NOT NULL DEFAULT '',
	devotional         TEXT NOT NULL DEFAULT '',
	main_activity      TEXT NOT NULL DEFAULT '',
	challenge_activity TEXT NOT NULL DEFAULT '',
	bonus_activity     TEXT NOT NULL DEFAULT '',
	max_points         INTEGER NOT NULL DEFAULT 0 CHECK (max_points >= 0),
	activities         JSONB NOT NULL DEFAULT '[]',
	updated_at         TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
	PRIMARY KEY (track_slug, day_number)
);

CREATE TABLE IF NOT EXISTS personalization_rules (
	id         TEXT PRIMARY KEY,
	track_slug TEXT NOT NULL,
	day_number INTEGER NOT NULL CHECK (day_number >= 1),
	condition  JSONB NOT NULL,
	priority   INTEGER NOT NULL DEFAULT 0,
	overrides  JSONB NOT NULL DEFAULT '{}',
	updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_rules_track_day
	ON personalization_rules (track_slug, day_number);
`

const migration003Down = `
DROP TABLE IF EXISTS personalization_rules;
DROP TABLE IF EXISTS daily_templates;
`

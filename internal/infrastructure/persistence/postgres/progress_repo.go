package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/equilibrio-app/equilibrio-engine/internal/domain/progress"
	"github.com/equilibrio-app/equilibrio-engine/internal/domain/shared"
	"github.com/equilibrio-app/equilibrio-engine/internal/domain/track"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS REPOSITORY IMPLEMENTATION
// Award paths (RecordCompletion, FinalizeDay, InsertAchievement) run as a
// single transaction around an INSERT ... ON CONFLICT DO NOTHING. The insert
// either lands and its point arithmetic applies, or conflicts and nothing
// changes; total_points is only ever moved together with its award row, so
// the total stays equal to the completion log plus applied day bonuses.
// ══════════════════════════════════════════════════════════════════════════════

// ProgressRepository implements progress.Repository for PostgreSQL.
type ProgressRepository struct {
	conn *Connection
}

// NewProgressRepository creates a new ProgressRepository.
func NewProgressRepository(conn *Connection) *ProgressRepository {
	return &ProgressRepository{conn: conn}
}

// storageErr classifies infrastructure failures as retryable unavailability.
func storageErr(op string, err error) error {
	return shared.WrapError("progress_store", op, shared.ErrServiceUnavailable,
		"storage operation failed", err)
}

// ─────────────────────────────────────────────────────────────────────────────
// Progress aggregate
// ─────────────────────────────────────────────────────────────────────────────

// CreateProgress creates a new (user, track) aggregate.
func (r *ProgressRepository) CreateProgress(ctx context.Context, p *progress.UserTrackProgress) error {
	query := `
		INSERT INTO user_track_progress (
			user_id, track_slug, current_day, total_points, streak_days,
			level_number, last_activity_at, is_active, started_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	var lastActivity interface{}
	if !p.LastActivityAt.IsZero() {
		lastActivity = p.LastActivityAt
	}

	_, err := r.conn.Exec(ctx, query,
		p.UserID,
		p.TrackSlug.String(),
		p.CurrentDay,
		p.TotalPoints,
		p.StreakDays,
		p.LevelNumber,
		lastActivity,
		p.IsActive,
		p.StartedAt,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return progress.ErrAlreadyEnrolled
		}
		return storageErr("CreateProgress", err)
	}
	return nil
}

// GetProgress returns the aggregate for (user, track).
func (r *ProgressRepository) GetProgress(ctx context.Context, userID string, slug track.Slug) (*progress.UserTrackProgress, error) {
	row := r.conn.QueryRow(ctx, selectProgressSQL+` WHERE user_id = $1 AND track_slug = $2`,
		userID, slug.String())
	return scanProgress(row)
}

// SetActive toggles the is_active flag.
func (r *ProgressRepository) SetActive(ctx context.Context, userID string, slug track.Slug, active bool) error {
	tag, err := r.conn.Exec(ctx, `
		UPDATE user_track_progress
		SET is_active = $3, updated_at = NOW()
		WHERE user_id = $1 AND track_slug = $2
	`, userID, slug.String(), active)
	if err != nil {
		return storageErr("SetActive", err)
	}
	if tag.RowsAffected() == 0 {
		return progress.ErrProgressNotFound
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Activity completions
// ─────────────────────────────────────────────────────────────────────────────

// RecordCompletion inserts the completion row and applies its points in one
// transaction. A conflicting key leaves all state untouched and reports the
// prior row.
func (r *ProgressRepository) RecordCompletion(ctx context.Context, c *progress.ActivityCompletion, quantum int) (*progress.CompletionOutcome, error) {
	if quantum <= 0 {
		quantum = progress.DefaultLevelPointQuantum
	}

	outcome := &progress.CompletionOutcome{}
	err := r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			INSERT INTO user_activity_progress (
				id, user_id, track_slug, day_number, activity_index, points_earned, completed_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (user_id, track_slug, day_number, activity_index) DO NOTHING
		`, c.ID, c.UserID, c.TrackSlug.String(), c.DayNumber, c.ActivityIndex, c.PointsEarned, c.CompletedAt)
		if err != nil {
			return storageErr("RecordCompletion", err)
		}

		outcome.Accepted = tag.RowsAffected() == 1
		if outcome.Accepted {
			updTag, err := tx.Exec(ctx, `
				UPDATE user_track_progress
				SET total_points = total_points + $3,
				    level_number = ((total_points + $3) / $4) + 1,
				    last_activity_at = $5,
				    updated_at = $5
				WHERE user_id = $1 AND track_slug = $2
			`, c.UserID, c.TrackSlug.String(), c.PointsEarned, quantum, c.CompletedAt)
			if err != nil {
				return storageErr("RecordCompletion", err)
			}
			if updTag.RowsAffected() == 0 {
				return progress.ErrProgressNotFound
			}
			stored := *c
			outcome.Completion = &stored
		} else {
			prior, err := scanCompletionRow(tx.QueryRow(ctx, selectCompletionSQL+`
				WHERE user_id = $1 AND track_slug = $2 AND day_number = $3 AND activity_index = $4
			`, c.UserID, c.TrackSlug.String(), c.DayNumber, c.ActivityIndex))
			if err != nil {
				return err
			}
			outcome.Completion = prior
		}

		prog, err := scanProgress(tx.QueryRow(ctx, selectProgressSQL+`
			WHERE user_id = $1 AND track_slug = $2`, c.UserID, c.TrackSlug.String()))
		if err != nil {
			return err
		}
		outcome.Progress = prog
		return nil
	})
	if err != nil {
		return nil, err
	}
	return outcome, nil
}

// ReverseCompletion deletes the completion row and claws back its points.
func (r *ProgressRepository) ReverseCompletion(ctx context.Context, key progress.CompletionKey, quantum int) error {
	if quantum <= 0 {
		quantum = progress.DefaultLevelPointQuantum
	}

	return r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		var finalized bool
		err := tx.QueryRow(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM day_finalizations
				WHERE user_id = $1 AND track_slug = $2 AND day_number = $3
			)
		`, key.UserID, key.TrackSlug.String(), key.DayNumber).Scan(&finalized)
		if err != nil {
			return storageErr("ReverseCompletion", err)
		}
		if finalized {
			return progress.ErrDayFinalized
		}

		var points int
		err = tx.QueryRow(ctx, `
			DELETE FROM user_activity_progress
			WHERE user_id = $1 AND track_slug = $2 AND day_number = $3 AND activity_index = $4
			RETURNING points_earned
		`, key.UserID, key.TrackSlug.String(), key.DayNumber, key.ActivityIndex).Scan(&points)
		if err != nil {
			if IsNoRows(err) {
				return progress.ErrCompletionNotFound
			}
			return storageErr("ReverseCompletion", err)
		}

		_, err = tx.Exec(ctx, `
			UPDATE user_track_progress
			SET total_points = GREATEST(total_points - $3, 0),
			    level_number = (GREATEST(total_points - $3, 0) / $4) + 1,
			    updated_at = NOW()
			WHERE user_id = $1 AND track_slug = $2
		`, key.UserID, key.TrackSlug.String(), points, quantum)
		if err != nil {
			return storageErr("ReverseCompletion", err)
		}
		return nil
	})
}

// ListDayCompletions returns all completion rows for one day.
func (r *ProgressRepository) ListDayCompletions(ctx context.Context, userID string, slug track.Slug, day int) ([]progress.ActivityCompletion, error) {
	rows, err := r.conn.Query(ctx, selectCompletionSQL+`
		WHERE user_id = $1 AND track_slug = $2 AND day_number = $3
		ORDER BY activity_index
	`, userID, slug.String(), day)
	if err != nil {
		return nil, storageErr("ListDayCompletions", err)
	}
	defer rows.Close()
	return scanCompletions(rows)
}

// ListCompletions returns all completion rows for one user/track.
func (r *ProgressRepository) ListCompletions(ctx context.Context, userID string, slug track.Slug) ([]progress.ActivityCompletion, error) {
	rows, err := r.conn.Query(ctx, selectCompletionSQL+`
		WHERE user_id = $1 AND track_slug = $2
		ORDER BY day_number, activity_index
	`, userID, slug.String())
	if err != nil {
		return nil, storageErr("ListCompletions", err)
	}
	defer rows.Close()
	return scanCompletions(rows)
}

// ─────────────────────────────────────────────────────────────────────────────
// Day finalization
// ─────────────────────────────────────────────────────────────────────────────

// FinalizeDay inserts the finalization marker and applies the day's effects
// in one transaction. A conflicting marker leaves all state untouched.
func (r *ProgressRepository) FinalizeDay(ctx context.Context, f *progress.DayFinalization, newStreak, newCurrentDay, quantum int) (*progress.FinalizeOutcome, error) {
	if quantum <= 0 {
		quantum = progress.DefaultLevelPointQuantum
	}

	outcome := &progress.FinalizeOutcome{}
	err := r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			INSERT INTO day_finalizations (user_id, track_slug, day_number, bonus_points, finalized_at)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (user_id, track_slug, day_number) DO NOTHING
		`, f.UserID, f.TrackSlug.String(), f.DayNumber, f.BonusPoints, f.FinalizedAt)
		if err != nil {
			return storageErr("FinalizeDay", err)
		}

		outcome.Applied = tag.RowsAffected() == 1
		if outcome.Applied {
			updTag, err := tx.Exec(ctx, `
				UPDATE user_track_progress
				SET total_points = total_points + $3,
				    level_number = ((total_points + $3) / $4) + 1,
				    streak_days = $5,
				    current_day = GREATEST(current_day, $6),
				    last_activity_at = $7,
				    updated_at = $7
				WHERE user_id = $1 AND track_slug = $2
			`, f.UserID, f.TrackSlug.String(), f.BonusPoints, quantum, newStreak, newCurrentDay, f.FinalizedAt)
			if err != nil {
				return storageErr("FinalizeDay", err)
			}
			if updTag.RowsAffected() == 0 {
				return progress.ErrProgressNotFound
			}
		}

		prog, err := scanProgress(tx.QueryRow(ctx, selectProgressSQL+`
			WHERE user_id = $1 AND track_slug = $2`, f.UserID, f.TrackSlug.String()))
		if err != nil {
			return err
		}
		outcome.Progress = prog
		return nil
	})
	if err != nil {
		return nil, err
	}
	return outcome, nil
}

// IsDayFinalized reports whether the finalization marker exists.
func (r *ProgressRepository) IsDayFinalized(ctx context.Context, userID string, slug track.Slug, day int) (bool, error) {
	var exists bool
	err := r.conn.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM day_finalizations
			WHERE user_id = $1 AND track_slug = $2 AND day_number = $3
		)
	`, userID, slug.String(), day).Scan(&exists)
	if err != nil {
		return false, storageErr("IsDayFinalized", err)
	}
	return exists, nil
}

// ListFinalizations returns all finalization markers for one user/track.
func (r *ProgressRepository) ListFinalizations(ctx context.Context, userID string, slug track.Slug) ([]progress.DayFinalization, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT user_id, track_slug, day_number, bonus_points, finalized_at
		FROM day_finalizations
		WHERE user_id = $1 AND track_slug = $2
		ORDER BY day_number
	`, userID, slug.String())
	if err != nil {
		return nil, storageErr("ListFinalizations", err)
	}
	defer rows.Close()

	var out []progress.DayFinalization
	for rows.Next() {
		var f progress.DayFinalization
		var slugStr string
		if err := rows.Scan(&f.UserID, &slugStr, &f.DayNumber, &f.BonusPoints, &f.FinalizedAt); err != nil {
			return nil, fmt.Errorf("failed to scan finalization: %w", err)
		}
		f.TrackSlug = track.Slug(slugStr)
		out = append(out, f)
	}
	return out, rows.Err()
}

// ─────────────────────────────────────────────────────────────────────────────
// Achievements
// ─────────────────────────────────────────────────────────────────────────────

// InsertAchievement grants the badge if absent. Returns false on duplicate.
func (r *ProgressRepository) InsertAchievement(ctx context.Context, a *progress.Achievement) (bool, error) {
	tag, err := r.conn.Exec(ctx, `
		INSERT INTO achievements (id, user_id, achievement_type, track_slug, points_awarded, earned_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, achievement_type, track_slug) DO NOTHING
	`, a.ID, a.UserID, string(a.Type), a.TrackSlug.String(), a.PointsAwarded, a.EarnedAt)
	if err != nil {
		return false, storageErr("InsertAchievement", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ListAchievements returns all badges earned by a user.
func (r *ProgressRepository) ListAchievements(ctx context.Context, userID string) ([]progress.Achievement, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT id, user_id, achievement_type, track_slug, points_awarded, earned_at
		FROM achievements
		WHERE user_id = $1
		ORDER BY earned_at
	`, userID)
	if err != nil {
		return nil, storageErr("ListAchievements", err)
	}
	defer rows.Close()

	var out []progress.Achievement
	for rows.Next() {
		var a progress.Achievement
		var typ, slugStr string
		if err := rows.Scan(&a.ID, &a.UserID, &typ, &slugStr, &a.PointsAwarded, &a.EarnedAt); err != nil {
			return nil, fmt.Errorf("failed to scan achievement: %w", err)
		}
		a.Type = progress.AchievementType(typ)
		a.TrackSlug = track.Slug(slugStr)
		out = append(out, a)
	}
	return out, rows.Err()
}

// HasAchievement reports whether the badge exists.
func (r *ProgressRepository) HasAchievement(ctx context.Context, userID string, t progress.AchievementType, slug track.Slug) (bool, error) {
	var exists bool
	err := r.conn.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM achievements
			WHERE user_id = $1 AND achievement_type = $2 AND track_slug = $3
		)
	`, userID, string(t), slug.String()).Scan(&exists)
	if err != nil {
		return false, storageErr("HasAchievement", err)
	}
	return exists, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Row scanning
// ─────────────────────────────────────────────────────────────────────────────

const selectProgressSQL = `
	SELECT user_id, track_slug, current_day, total_points, streak_days,
	       level_number, last_activity_at, is_active, started_at, created_at, updated_at
	FROM user_track_progress
`

const selectCompletionSQL = `
	SELECT id, user_id, track_slug, day_number, activity_index, points_earned, completed_at
	FROM user_activity_progress
`

func scanProgress(row pgx.Row) (*progress.UserTrackProgress, error) {
	var p progress.UserTrackProgress
	var slugStr string
	var lastActivity *time.Time

	err := row.Scan(
		&p.UserID, &slugStr, &p.CurrentDay, &p.TotalPoints, &p.StreakDays,
		&p.LevelNumber, &lastActivity, &p.IsActive, &p.StartedAt, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, progress.ErrProgressNotFound
		}
		return nil, storageErr("GetProgress", err)
	}

	p.TrackSlug = track.Slug(slugStr)
	if lastActivity != nil {
		p.LastActivityAt = *lastActivity
	}
	return &p, nil
}

func scanCompletionRow(row pgx.Row) (*progress.ActivityCompletion, error) {
	var c progress.ActivityCompletion
	var slugStr string

	err := row.Scan(&c.ID, &c.UserID, &slugStr, &c.DayNumber, &c.ActivityIndex, &c.PointsEarned, &c.CompletedAt)
	if err != nil {
		if IsNoRows(err) {
			return nil, progress.ErrCompletionNotFound
		}
		return nil, storageErr("GetCompletion", err)
	}

	c.TrackSlug = track.Slug(slugStr)
	return &c, nil
}

func scanCompletions(rows pgx.Rows) ([]progress.ActivityCompletion, error) {
	var out []progress.ActivityCompletion
	for rows.Next() {
		var c progress.ActivityCompletion
		var slugStr string
		if err := rows.Scan(&c.ID, &c.UserID, &slugStr, &c.DayNumber, &c.ActivityIndex, &c.PointsEarned, &c.CompletedAt); err != nil {
			return nil, fmt.Errorf("failed to scan completion: %w", err)
		}
		c.TrackSlug = track.Slug(slugStr)
		out = append(out, c)
	}
	return out, rows.Err()
}

package services

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"utopai/internal/config"
	"utopai/internal/models"
	"utopai/internal/observability"
	contextutils "utopai/internal/utils"

	"go.opentelemetry.io/otel/attribute"
)

// DefaultLeaderboardSize caps the leaderboard at the top five learners
const DefaultLeaderboardSize = 5

// GamificationServiceInterface manages points, badges and the leaderboard
type GamificationServiceInterface interface {
	AwardPoints(ctx context.Context, userID, points int) error
	CheckAndAwardBadges(ctx context.Context, userID int) ([]models.Badge, error)
	GetUserBadges(ctx context.Context, userID int) ([]models.Badge, error)
	GetAllBadges(ctx context.Context) ([]models.Badge, error)
	Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error)
	GetUserStats(ctx context.Context, userID int) (*models.UserStats, error)
}

// GamificationService awards points and badges. Badge awarding is
// monotonic: once earned, never revoked and never duplicated.
type GamificationService struct {
	db     *sql.DB
	cfg    *config.Config
	logger *observability.Logger
}

var _ GamificationServiceInterface = (*GamificationService)(nil)

const badgeSelectFields = `id, name, description, icon, requirement_type, requirement_value, requirement_kind, points`

// NewGamificationServiceWithLogger creates a new GamificationService instance
func NewGamificationServiceWithLogger(db *sql.DB, cfg *config.Config, logger *observability.Logger) *GamificationService {
	return &GamificationService{db: db, cfg: cfg, logger: logger}
}

func scanBadge(scanner interface{ Scan(dest ...interface{}) error }) (*models.Badge, error) {
	badge := &models.Badge{}
	err := scanner.Scan(
		&badge.ID, &badge.Name, &badge.Description, &badge.Icon,
		&badge.RequirementType, &badge.RequirementValue, &badge.RequirementKind, &badge.Points,
	)
	if err != nil {
		return nil, err
	}
	return badge, nil
}

// AwardPoints adds points to a user's total. Negative deltas are ignored;
// totals never decrease.
func (s *GamificationService) AwardPoints(ctx context.Context, userID, points int) (err error) {
	ctx, span := observability.TraceGamificationFunction(ctx, "award_points",
		observability.AttributeUserID(userID),
		attribute.Int("points", points),
	)
	defer observability.FinishSpan(span, &err)

	if points <= 0 {
		return nil
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE users SET total_points = total_points + $1, updated_at = $2 WHERE id = $3`,
		points, time.Now(), userID)
	return err
}

// GetAllBadges lists the badge catalog
func (s *GamificationService) GetAllBadges(ctx context.Context) (result0 []models.Badge, err error) {
	ctx, span := observability.TraceGamificationFunction(ctx, "get_all_badges")
	defer observability.FinishSpan(span, &err)

	return s.queryBadges(ctx, `SELECT `+badgeSelectFields+` FROM badges ORDER BY id`)
}

// GetUserBadges lists the badges a user has earned
func (s *GamificationService) GetUserBadges(ctx context.Context, userID int) (result0 []models.Badge, err error) {
	ctx, span := observability.TraceGamificationFunction(ctx, "get_user_badges", observability.AttributeUserID(userID))
	defer observability.FinishSpan(span, &err)

	query := `SELECT b.id, b.name, b.description, b.icon, b.requirement_type, b.requirement_value, b.requirement_kind, b.points
		FROM badges b
		JOIN user_badges ub ON ub.badge_id = b.id
		WHERE ub.user_id = $1
		ORDER BY ub.earned_at`
	return s.queryBadges(ctx, query, userID)
}

func (s *GamificationService) queryBadges(ctx context.Context, query string, args ...interface{}) ([]models.Badge, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Warn(ctx, "Failed to close rows", map[string]interface{}{"error": closeErr.Error()})
		}
	}()

	var badges []models.Badge
	for rows.Next() {
		badge, scanErr := scanBadge(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		badges = append(badges, *badge)
	}
	return badges, rows.Err()
}

// CheckAndAwardBadges evaluates every badge requirement against the
// user's current state and awards the ones newly met. Returns only the
// badges awarded by this call.
func (s *GamificationService) CheckAndAwardBadges(ctx context.Context, userID int) (result0 []models.Badge, err error) {
	ctx, span := observability.TraceGamificationFunction(ctx, "check_and_award_badges", observability.AttributeUserID(userID))
	defer observability.FinishSpan(span, &err)

	badges, err := s.GetAllBadges(ctx)
	if err != nil {
		return nil, err
	}

	var awarded []models.Badge
	for _, badge := range badges {
		met, checkErr := s.requirementMet(ctx, userID, badge)
		if checkErr != nil {
			return nil, checkErr
		}
		if !met {
			continue
		}

		inserted, insertErr := s.insertBadge(ctx, userID, badge.ID)
		if insertErr != nil {
			return nil, insertErr
		}
		if !inserted {
			continue // already earned
		}

		if badge.Points > 0 {
			if err = s.AwardPoints(ctx, userID, badge.Points); err != nil {
				return nil, err
			}
		}
		s.logger.Info(ctx, "Badge awarded", map[string]interface{}{
			"user_id": userID,
			"badge":   badge.Name,
		})
		awarded = append(awarded, badge)
	}

	span.SetAttributes(attribute.Int("badges.awarded", len(awarded)))
	return awarded, nil
}

// insertBadge records the award; the unique constraint makes awarding
// idempotent. Returns whether a new row was inserted.
func (s *GamificationService) insertBadge(ctx context.Context, userID, badgeID int) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO user_badges (user_id, badge_id, earned_at) VALUES ($1, $2, $3)
		ON CONFLICT (user_id, badge_id) DO NOTHING`,
		userID, badgeID, time.Now())
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// requirementMet evaluates one badge requirement
func (s *GamificationService) requirementMet(ctx context.Context, userID int, badge models.Badge) (bool, error) {
	switch badge.RequirementType {
	case models.RequirementPoints:
		var points int
		err := s.db.QueryRowContext(ctx, `SELECT total_points FROM users WHERE id = $1`, userID).Scan(&points)
		if err != nil {
			return false, err
		}
		return points >= badge.RequirementValue, nil

	case models.RequirementActivityCount:
		var count int
		err := s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM user_progress WHERE user_id = $1 AND status = $2`,
			userID, models.StatusCompleted).Scan(&count)
		if err != nil {
			return false, err
		}
		return count >= badge.RequirementValue, nil

	case models.RequirementActivityKind:
		if !badge.RequirementKind.Valid {
			return false, nil
		}
		var count int
		err := s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM user_progress up
			JOIN activities a ON a.id = up.activity_id
			WHERE up.user_id = $1 AND up.status = $2 AND a.kind = $3`,
			userID, models.StatusCompleted, badge.RequirementKind.String).Scan(&count)
		if err != nil {
			return false, err
		}
		return count >= badge.RequirementValue, nil

	case models.RequirementIslandComplete:
		var remaining int
		err := s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM activities a
			WHERE a.island_id = $1 AND NOT EXISTS (
				SELECT 1 FROM user_progress up
				WHERE up.activity_id = a.id AND up.user_id = $2 AND up.status = $3
			)`,
			badge.RequirementValue, userID, models.StatusCompleted).Scan(&remaining)
		if err != nil {
			return false, err
		}
		return remaining == 0, nil

	case models.RequirementThemeSelection:
		// The stored theme always has a value; only a deliberate selection counts
		var selected bool
		err := s.db.QueryRowContext(ctx, `SELECT theme_selected FROM users WHERE id = $1`, userID).Scan(&selected)
		if err != nil {
			return false, err
		}
		return selected, nil

	case models.RequirementStreak:
		var streak int
		err := s.db.QueryRowContext(ctx, `SELECT streak_days FROM users WHERE id = $1`, userID).Scan(&streak)
		if err != nil {
			return false, err
		}
		return streak >= badge.RequirementValue, nil

	case models.RequirementPromptQuality:
		var best sql.NullInt64
		err := s.db.QueryRowContext(ctx,
			`SELECT MAX(up.score) FROM user_progress up
			JOIN activities a ON a.id = up.activity_id
			WHERE up.user_id = $1 AND a.kind IN ($2, $3)`,
			userID, models.KindPromptBuilder, models.KindCreative).Scan(&best)
		if err != nil {
			return false, err
		}
		return best.Valid && int(best.Int64) >= badge.RequirementValue, nil

	default:
		s.logger.Warn(ctx, "Unknown badge requirement type", map[string]interface{}{
			"badge": badge.Name,
			"type":  string(badge.RequirementType),
		})
		return false, nil
	}
}

// Leaderboard returns the top learners by total points. Ties break on
// username for a stable order.
func (s *GamificationService) Leaderboard(ctx context.Context, limit int) (result0 []models.LeaderboardEntry, err error) {
	ctx, span := observability.TraceGamificationFunction(ctx, "leaderboard", observability.AttributeLimit(limit))
	defer observability.FinishSpan(span, &err)

	if limit <= 0 || limit > DefaultLeaderboardSize {
		limit = DefaultLeaderboardSize
	}

	query := `SELECT u.id, u.username, u.total_points,
			(SELECT COUNT(*) FROM user_badges ub WHERE ub.user_id = u.id) AS badge_count,
			COALESCE((SELECT COUNT(*) FILTER (WHERE up.status = $1) * 100.0 / NULLIF(COUNT(*), 0)
				FROM user_progress up WHERE up.user_id = u.id), 0) AS completion_percent
		FROM users u
		ORDER BY u.total_points DESC, u.username
		LIMIT $2`
	rows, err := s.db.QueryContext(ctx, query, models.StatusCompleted, limit)
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Warn(ctx, "Failed to close rows", map[string]interface{}{"error": closeErr.Error()})
		}
	}()

	var entries []models.LeaderboardEntry
	rank := 1
	for rows.Next() {
		var entry models.LeaderboardEntry
		if err = rows.Scan(&entry.UserID, &entry.Username, &entry.TotalPoints, &entry.BadgeCount, &entry.CompletionPercent); err != nil {
			return nil, err
		}
		entry.Rank = rank
		rank++
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// GetUserStats aggregates a user's standing
func (s *GamificationService) GetUserStats(ctx context.Context, userID int) (result0 *models.UserStats, err error) {
	ctx, span := observability.TraceGamificationFunction(ctx, "get_user_stats", observability.AttributeUserID(userID))
	defer observability.FinishSpan(span, &err)

	stats := &models.UserStats{}
	err = s.db.QueryRowContext(ctx,
		`SELECT total_points, streak_days FROM users WHERE id = $1`, userID,
	).Scan(&stats.TotalPoints, &stats.StreakDays)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, contextutils.ErrRecordNotFound
		}
		return nil, err
	}

	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FILTER (WHERE status = $1), (SELECT COUNT(*) FROM activities)
		FROM user_progress WHERE user_id = $2`,
		models.StatusCompleted, userID,
	).Scan(&stats.CompletedActivities, &stats.TotalActivities)
	if err != nil {
		return nil, err
	}

	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM user_badges WHERE user_id = $1`, userID,
	).Scan(&stats.BadgeCount)
	if err != nil {
		return nil, err
	}

	return stats, nil
}

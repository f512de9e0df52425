package services

import (
	"context"
	"database/sql"
	"errors"

	"utopai/internal/config"
	"utopai/internal/models"
	"utopai/internal/observability"
	contextutils "utopai/internal/utils"
)

// ActivityServiceInterface exposes the island map and its activities.
// Activity rows are seeded; this service only reads them.
type ActivityServiceInterface interface {
	GetActivityByID(ctx context.Context, id int) (*models.Activity, error)
	GetActivitiesForIsland(ctx context.Context, islandID int) ([]models.Activity, error)
	GetIslandByID(ctx context.Context, id int) (*models.Island, error)
	ListIslandsForUser(ctx context.Context, user *models.User) ([]models.IslandListing, error)
	IsIslandUnlocked(ctx context.Context, user *models.User, islandID int) (bool, error)
}

// ActivityService reads islands and activities and computes lock state
type ActivityService struct {
	db     *sql.DB
	cfg    *config.Config
	logger *observability.Logger
}

var _ ActivityServiceInterface = (*ActivityService)(nil)

const activitySelectFields = `id, island_id, name, description, kind, difficulty, points, position, steps`

// NewActivityServiceWithLogger creates a new ActivityService instance
func NewActivityServiceWithLogger(db *sql.DB, cfg *config.Config, logger *observability.Logger) *ActivityService {
	return &ActivityService{db: db, cfg: cfg, logger: logger}
}

func scanActivity(scanner interface{ Scan(dest ...interface{}) error }) (*models.Activity, error) {
	activity := &models.Activity{}
	err := scanner.Scan(
		&activity.ID, &activity.IslandID, &activity.Name, &activity.Description,
		&activity.Kind, &activity.Difficulty, &activity.Points, &activity.Position, &activity.Steps,
	)
	if err != nil {
		return nil, err
	}
	return activity, nil
}

// GetActivityByID retrieves one activity
func (s *ActivityService) GetActivityByID(ctx context.Context, id int) (result0 *models.Activity, err error) {
	ctx, span := observability.TraceActivityFunction(ctx, "get_activity_by_id", observability.AttributeActivityID(id))
	defer observability.FinishSpan(span, &err)

	query := `SELECT ` + activitySelectFields + ` FROM activities WHERE id = $1`
	activity, err := scanActivity(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, contextutils.ErrActivityNotFound
		}
		return nil, err
	}
	return activity, nil
}

// GetActivitiesForIsland lists an island's activities in position order
func (s *ActivityService) GetActivitiesForIsland(ctx context.Context, islandID int) (result0 []models.Activity, err error) {
	ctx, span := observability.TraceActivityFunction(ctx, "get_activities_for_island")
	defer observability.FinishSpan(span, &err)

	query := `SELECT ` + activitySelectFields + ` FROM activities WHERE island_id = $1 ORDER BY position`
	rows, err := s.db.QueryContext(ctx, query, islandID)
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Warn(ctx, "Failed to close rows", map[string]interface{}{"error": closeErr.Error()})
		}
	}()

	var activities []models.Activity
	for rows.Next() {
		activity, scanErr := scanActivity(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		activities = append(activities, *activity)
	}
	return activities, rows.Err()
}

// GetIslandByID retrieves one island
func (s *ActivityService) GetIslandByID(ctx context.Context, id int) (result0 *models.Island, err error) {
	ctx, span := observability.TraceActivityFunction(ctx, "get_island_by_id")
	defer observability.FinishSpan(span, &err)

	island := &models.Island{}
	err = s.db.QueryRowContext(ctx,
		`SELECT id, name, description, position, unlock_requirement, created_at FROM islands WHERE id = $1`, id,
	).Scan(&island.ID, &island.Name, &island.Description, &island.Position, &island.UnlockRequirement, &island.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, contextutils.ErrRecordNotFound
		}
		return nil, err
	}
	return island, nil
}

// IsIslandUnlocked reports whether the user meets the island's points
// requirement. The first island is always open.
func (s *ActivityService) IsIslandUnlocked(ctx context.Context, user *models.User, islandID int) (result0 bool, err error) {
	island, err := s.GetIslandByID(ctx, islandID)
	if err != nil {
		return false, err
	}
	if island.Position <= 1 {
		return true, nil
	}
	return user.TotalPoints >= island.UnlockRequirement, nil
}

// ListIslandsForUser builds the island map: every island with its lock
// state and per-activity progress for the requesting user
func (s *ActivityService) ListIslandsForUser(ctx context.Context, user *models.User) (result0 []models.IslandListing, err error) {
	ctx, span := observability.TraceActivityFunction(ctx, "list_islands_for_user", observability.AttributeUserID(user.ID))
	defer observability.FinishSpan(span, &err)

	islandRows, err := s.db.QueryContext(ctx,
		`SELECT id, name, description, position, unlock_requirement, created_at FROM islands ORDER BY position`)
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := islandRows.Close(); closeErr != nil {
			s.logger.Warn(ctx, "Failed to close rows", map[string]interface{}{"error": closeErr.Error()})
		}
	}()

	var islands []models.Island
	for islandRows.Next() {
		var island models.Island
		if err = islandRows.Scan(&island.ID, &island.Name, &island.Description, &island.Position, &island.UnlockRequirement, &island.CreatedAt); err != nil {
			return nil, err
		}
		islands = append(islands, island)
	}
	if err = islandRows.Err(); err != nil {
		return nil, err
	}

	progress, err := s.progressByActivity(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	listings := make([]models.IslandListing, 0, len(islands))
	for _, island := range islands {
		activities, actErr := s.GetActivitiesForIsland(ctx, island.ID)
		if actErr != nil {
			return nil, actErr
		}

		listing := models.IslandListing{
			Island: island,
			Locked: island.Position > 1 && user.TotalPoints < island.UnlockRequirement,
		}
		for _, activity := range activities {
			entry := models.ActivityListing{Activity: activity, Status: models.StatusNotStarted}
			if p, ok := progress[activity.ID]; ok {
				entry.Status = p.Status
				entry.Score = p.Score
				entry.Attempts = p.Attempts
			}
			listing.Activities = append(listing.Activities, entry)
		}
		listings = append(listings, listing)
	}
	return listings, nil
}

// progressByActivity loads all of a user's progress rows keyed by activity
func (s *ActivityService) progressByActivity(ctx context.Context, userID int) (map[int]models.UserProgress, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT activity_id, status, attempts, score FROM user_progress WHERE user_id = $1`, userID)
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Warn(ctx, "Failed to close rows", map[string]interface{}{"error": closeErr.Error()})
		}
	}()

	progress := make(map[int]models.UserProgress)
	for rows.Next() {
		var p models.UserProgress
		if err := rows.Scan(&p.ActivityID, &p.Status, &p.Attempts, &p.Score); err != nil {
			return nil, err
		}
		progress[p.ActivityID] = p
	}
	return progress, rows.Err()
}

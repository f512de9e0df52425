package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"math"
	"time"

	"utopai/internal/config"
	"utopai/internal/models"
	"utopai/internal/observability"
	contextutils "utopai/internal/utils"

	"go.opentelemetry.io/otel/attribute"
)

// StepCompletionBonus is credited once when the final step of a
// multi-step activity completes, guarded by completion_bonus_awarded
const StepCompletionBonus = 50

// ProgressServiceInterface tracks activity progress and credits points
// and badges on completion
type ProgressServiceInterface interface {
	StartActivity(ctx context.Context, user *models.User, activityID int) (*models.UserProgress, error)
	GetProgress(ctx context.Context, userID, activityID int) (*models.UserProgress, error)
	RecordSubmission(ctx context.Context, user *models.User, activity *models.Activity, eval models.EvaluationResult) (*models.SubmissionOutcome, error)
	RecordStepResult(ctx context.Context, user *models.User, activity *models.Activity, step, score int) (*models.SubmissionOutcome, error)
	SaveGeneratedContent(ctx context.Context, userID, activityID int, content models.GeneratedContent) error
	GetGeneratedContent(ctx context.Context, userID, activityID int) (models.GeneratedContent, error)
}

// ProgressService persists user_progress rows and delegates rewards to
// the gamification service
type ProgressService struct {
	db           *sql.DB
	cfg          *config.Config
	logger       *observability.Logger
	activities   ActivityServiceInterface
	gamification GamificationServiceInterface
}

var _ ProgressServiceInterface = (*ProgressService)(nil)

const progressSelectFields = `id, user_id, activity_id, status, attempts, score, step_data, completion_bonus_awarded, started_at, completed_at, updated_at`

// NewProgressServiceWithLogger creates a new ProgressService instance
func NewProgressServiceWithLogger(db *sql.DB, cfg *config.Config, logger *observability.Logger, activities ActivityServiceInterface, gamification GamificationServiceInterface) *ProgressService {
	return &ProgressService{
		db:           db,
		cfg:          cfg,
		logger:       logger,
		activities:   activities,
		gamification: gamification,
	}
}

func scanProgress(scanner interface{ Scan(dest ...interface{}) error }) (*models.UserProgress, error) {
	progress := &models.UserProgress{}
	var stepData []byte
	err := scanner.Scan(
		&progress.ID, &progress.UserID, &progress.ActivityID, &progress.Status,
		&progress.Attempts, &progress.Score, &stepData, &progress.CompletionBonusAwarded,
		&progress.StartedAt, &progress.CompletedAt, &progress.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	progress.StepData = models.StepData{}
	if len(stepData) > 0 {
		if err := json.Unmarshal(stepData, &progress.StepData); err != nil {
			return nil, contextutils.WrapError(err, "failed to decode step data")
		}
	}
	return progress, nil
}

// GetProgress returns the progress row for (user, activity), or nil if
// the activity was never started
func (s *ProgressService) GetProgress(ctx context.Context, userID, activityID int) (result0 *models.UserProgress, err error) {
	ctx, span := observability.TraceProgressFunction(ctx, "get_progress",
		observability.AttributeUserID(userID),
		observability.AttributeActivityID(activityID),
	)
	defer observability.FinishSpan(span, &err)

	query := `SELECT ` + progressSelectFields + ` FROM user_progress WHERE user_id = $1 AND activity_id = $2`
	progress, err := scanProgress(s.db.QueryRowContext(ctx, query, userID, activityID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return progress, nil
}

// StartActivity opens an activity for a user. Starting an already
// completed activity is rejected; restarting one in progress is a no-op
// and returns the existing row.
func (s *ProgressService) StartActivity(ctx context.Context, user *models.User, activityID int) (result0 *models.UserProgress, err error) {
	ctx, span := observability.TraceProgressFunction(ctx, "start_activity",
		observability.AttributeUserID(user.ID),
		observability.AttributeActivityID(activityID),
	)
	defer observability.FinishSpan(span, &err)

	activity, err := s.activities.GetActivityByID(ctx, activityID)
	if err != nil {
		return nil, err
	}

	unlocked, err := s.activities.IsIslandUnlocked(ctx, user, activity.IslandID)
	if err != nil {
		return nil, err
	}
	if !unlocked {
		return nil, contextutils.ErrIslandLocked
	}

	existing, err := s.GetProgress(ctx, user.ID, activityID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if existing.Status == models.StatusCompleted {
			return nil, contextutils.ErrActivityCompleted
		}
		return existing, nil
	}

	now := time.Now()
	query := `INSERT INTO user_progress (user_id, activity_id, status, attempts, score, step_data, completion_bonus_awarded, started_at, updated_at)
		VALUES ($1, $2, $3, 0, 0, '{}', false, $4, $4)
		RETURNING ` + progressSelectFields
	progress, err := scanProgress(s.db.QueryRowContext(ctx, query, user.ID, activityID, models.StatusInProgress, now))
	if err != nil {
		return nil, err
	}
	return progress, nil
}

// RecordSubmission stores the evaluation of a whole-activity submission.
// Attempts increment on every call; the stored score never decreases.
// The activity completes when the evaluation says so, successful or not
// (a quiz at its attempt ceiling), and points and badges are credited.
func (s *ProgressService) RecordSubmission(ctx context.Context, user *models.User, activity *models.Activity, eval models.EvaluationResult) (result0 *models.SubmissionOutcome, err error) {
	ctx, span := observability.TraceProgressFunction(ctx, "record_submission",
		observability.AttributeUserID(user.ID),
		observability.AttributeActivityID(activity.ID),
		attribute.Int("evaluation.score", eval.Score),
	)
	defer observability.FinishSpan(span, &err)

	progress, err := s.GetProgress(ctx, user.ID, activity.ID)
	if err != nil {
		return nil, err
	}
	if progress == nil {
		return nil, contextutils.ErrActivityNotStarted
	}
	if progress.Status == models.StatusCompleted {
		return nil, contextutils.ErrActivityCompleted
	}

	progress.Attempts++
	if eval.Score > progress.Score {
		progress.Score = eval.Score
	}

	now := time.Now()
	completed := eval.Success || eval.Completed
	if completed {
		progress.Status = models.StatusCompleted
		progress.CompletedAt = sql.NullTime{Time: now, Valid: true}
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE user_progress SET status = $1, attempts = $2, score = $3, completed_at = $4, updated_at = $5
		WHERE user_id = $6 AND activity_id = $7`,
		progress.Status, progress.Attempts, progress.Score, progress.CompletedAt, now, user.ID, activity.ID)
	if err != nil {
		return nil, err
	}

	outcome := &models.SubmissionOutcome{
		Progress: *progress,
		Score:    eval.Score,
		Feedback: eval.Feedback,
		Success:  eval.Success,
	}

	if completed {
		outcome.PointsEarned = activityPoints(activity.Points, eval.Score)
		if err = s.creditRewards(ctx, user.ID, outcome); err != nil {
			return nil, err
		}
	}
	return outcome, nil
}

// RecordStepResult marks one step of a multi-step activity complete.
// When the last step closes, the activity completes with the average
// step score plus a one-time completion bonus.
func (s *ProgressService) RecordStepResult(ctx context.Context, user *models.User, activity *models.Activity, step, score int) (result0 *models.SubmissionOutcome, err error) {
	ctx, span := observability.TraceProgressFunction(ctx, "record_step_result",
		observability.AttributeUserID(user.ID),
		observability.AttributeActivityID(activity.ID),
		observability.AttributeStep(step),
	)
	defer observability.FinishSpan(span, &err)

	if activity.Steps <= 1 {
		return nil, contextutils.WrapErrorf(contextutils.ErrInvalidStep, "activity %d has no steps", activity.ID)
	}
	if step < 1 || step > activity.Steps {
		return nil, contextutils.WrapErrorf(contextutils.ErrInvalidStep, "step %d out of range 1..%d", step, activity.Steps)
	}

	progress, err := s.GetProgress(ctx, user.ID, activity.ID)
	if err != nil {
		return nil, err
	}
	if progress == nil {
		return nil, contextutils.ErrActivityNotStarted
	}
	if progress.Status == models.StatusCompleted {
		return nil, contextutils.ErrActivityCompleted
	}

	progress.StepData[models.StepKey(step)] = models.StepResult{Completed: true, Score: score}

	now := time.Now()
	allDone := progress.StepData.AllComplete(activity.Steps)
	awardBonus := false
	if allDone {
		progress.Status = models.StatusCompleted
		progress.CompletedAt = sql.NullTime{Time: now, Valid: true}
		progress.Score = averageStepScore(progress.StepData)
		if !progress.CompletionBonusAwarded {
			progress.CompletionBonusAwarded = true
			awardBonus = true
		}
	}

	stepData, err := json.Marshal(progress.StepData)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to encode step data")
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE user_progress SET status = $1, score = $2, step_data = $3, completion_bonus_awarded = $4, completed_at = $5, updated_at = $6
		WHERE user_id = $7 AND activity_id = $8`,
		progress.Status, progress.Score, stepData, progress.CompletionBonusAwarded, progress.CompletedAt, now, user.ID, activity.ID)
	if err != nil {
		return nil, err
	}

	outcome := &models.SubmissionOutcome{
		Progress: *progress,
		Score:    score,
		Success:  allDone,
	}

	if allDone {
		outcome.PointsEarned = activityPoints(activity.Points, progress.Score)
		if awardBonus {
			outcome.PointsEarned += StepCompletionBonus
		}
		if err = s.creditRewards(ctx, user.ID, outcome); err != nil {
			return nil, err
		}
	}
	return outcome, nil
}

// creditRewards applies points and runs the badge check
func (s *ProgressService) creditRewards(ctx context.Context, userID int, outcome *models.SubmissionOutcome) error {
	if err := s.gamification.AwardPoints(ctx, userID, outcome.PointsEarned); err != nil {
		return err
	}
	badges, err := s.gamification.CheckAndAwardBadges(ctx, userID)
	if err != nil {
		return err
	}
	outcome.NewBadges = badges
	return nil
}

// SaveGeneratedContent stores the content most recently rendered for
// (user, activity), so submissions can be checked against what the user
// actually saw
func (s *ProgressService) SaveGeneratedContent(ctx context.Context, userID, activityID int, content models.GeneratedContent) (err error) {
	ctx, span := observability.TraceProgressFunction(ctx, "save_generated_content",
		observability.AttributeUserID(userID),
		observability.AttributeActivityID(activityID),
	)
	defer observability.FinishSpan(span, &err)

	payload, err := json.Marshal(content)
	if err != nil {
		return contextutils.WrapError(err, "failed to encode generated content")
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE user_progress SET content = $1, updated_at = $2 WHERE user_id = $3 AND activity_id = $4`,
		payload, time.Now(), userID, activityID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return contextutils.ErrActivityNotStarted
	}
	return nil
}

// GetGeneratedContent loads the stored content for (user, activity);
// nil when none was stored
func (s *ProgressService) GetGeneratedContent(ctx context.Context, userID, activityID int) (result0 models.GeneratedContent, err error) {
	ctx, span := observability.TraceProgressFunction(ctx, "get_generated_content",
		observability.AttributeUserID(userID),
		observability.AttributeActivityID(activityID),
	)
	defer observability.FinishSpan(span, &err)

	var payload []byte
	err = s.db.QueryRowContext(ctx,
		`SELECT content FROM user_progress WHERE user_id = $1 AND activity_id = $2`,
		userID, activityID).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if len(payload) == 0 {
		return nil, nil
	}

	var content models.GeneratedContent
	if err = json.Unmarshal(payload, &content); err != nil {
		return nil, contextutils.WrapError(err, "failed to decode generated content")
	}
	return content, nil
}

// activityPoints converts an evaluation percent into points for an
// activity's point value
func activityPoints(activityPoints, percent int) int {
	return int(math.Round(float64(activityPoints) * float64(percent) / 100.0))
}

// averageStepScore averages completed step scores on the 0-100 scale
func averageStepScore(steps models.StepData) int {
	if len(steps) == 0 {
		return 0
	}
	total := 0
	for _, step := range steps {
		total += step.Score
	}
	return total / len(steps)
}

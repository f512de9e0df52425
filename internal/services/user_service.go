package services

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"utopai/internal/config"
	"utopai/internal/models"
	"utopai/internal/observability"
	contextutils "utopai/internal/utils"

	"github.com/lib/pq"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/crypto/bcrypt"
)

// UserServiceInterface defines the interface for user-related operations.
// This allows for easier mocking in tests.
type UserServiceInterface interface {
	RegisterChild(ctx context.Context, username, password string, age int, theme string) (*models.User, error)
	RegisterChildWithParent(ctx context.Context, username, password string, age int, theme, parentUsername, parentEmail, parentPassword string) (*models.User, *models.Parent, error)
	AuthenticateUser(ctx context.Context, username, password string) (*models.User, error)
	AuthenticateParent(ctx context.Context, username, password string) (*models.Parent, error)
	GetUserByID(ctx context.Context, id int) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetParentByUsername(ctx context.Context, username string) (*models.Parent, error)
	GetChildrenForParent(ctx context.Context, parentID int) ([]models.User, error)
	SelectTheme(ctx context.Context, userID int, themeID string) error
	UpdateLastActive(ctx context.Context, userID int) error
	GetDB() *sql.DB
}

// UserService provides methods for user and parent account management
type UserService struct {
	db     *sql.DB
	cfg    *config.Config
	logger *observability.Logger
	themes *ThemeCatalog
}

var _ UserServiceInterface = (*UserService)(nil)

const userSelectFields = `id, username, password_hash, age, theme, theme_selected, total_points, current_island, streak_days, last_active, created_at, updated_at`

// NewUserServiceWithLogger creates a new UserService instance with logger
func NewUserServiceWithLogger(db *sql.DB, cfg *config.Config, logger *observability.Logger, themes *ThemeCatalog) *UserService {
	return &UserService{
		db:     db,
		cfg:    cfg,
		logger: logger,
		themes: themes,
	}
}

// scanUserFromRow scans a database row into a models.User struct
func scanUser(scanner interface{ Scan(dest ...interface{}) error }) (result0 *models.User, err error) {
	user := &models.User{}
	err = scanner.Scan(
		&user.ID, &user.Username, &user.PasswordHash, &user.Age, &user.Theme,
		&user.ThemeSelected, &user.TotalPoints, &user.CurrentIsland, &user.StreakDays,
		&user.LastActive, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// getUserByQuery is a shared method for getting a user by any query
func (s *UserService) getUserByQuery(ctx context.Context, query string, args ...interface{}) (result0 *models.User, err error) {
	row := s.db.QueryRowContext(ctx, query, args...)
	var user *models.User
	user, err = scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // User not found is not an error here
		}
		return nil, err
	}
	return user, nil
}

// GetUserByID retrieves a user by their ID
func (s *UserService) GetUserByID(ctx context.Context, id int) (result0 *models.User, err error) {
	ctx, span := observability.TraceUserFunction(ctx, "get_user_by_id", observability.AttributeUserID(id))
	defer observability.FinishSpan(span, &err)

	query := `SELECT ` + userSelectFields + ` FROM users WHERE id = $1`
	return s.getUserByQuery(ctx, query, id)
}

// GetUserByUsername retrieves a user by their username
func (s *UserService) GetUserByUsername(ctx context.Context, username string) (result0 *models.User, err error) {
	ctx, span := observability.TraceUserFunction(ctx, "get_user_by_username", attribute.String("user.username", username))
	defer observability.FinishSpan(span, &err)

	query := `SELECT ` + userSelectFields + ` FROM users WHERE username = $1`
	return s.getUserByQuery(ctx, query, username)
}

// RegisterChild creates a child account with a hashed password. The theme
// is resolved through the catalog; unknown ids land on the default theme.
func (s *UserService) RegisterChild(ctx context.Context, username, password string, age int, theme string) (result0 *models.User, err error) {
	ctx, span := observability.TraceUserFunction(ctx, "register_child", attribute.String("user.username", username))
	defer observability.FinishSpan(span, &err)

	if err = validateNewCredentials(username, password); err != nil {
		return nil, err
	}

	var hashedPassword []byte
	hashedPassword, err = bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	profile := s.themes.Lookup(theme)

	// theme_selected stays false until the user picks a theme deliberately
	query := `INSERT INTO users (username, password_hash, age, theme, theme_selected, total_points, current_island, streak_days, last_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, FALSE, 0, 1, 1, $5, $6, $7) RETURNING id`
	now := time.Now()
	var id int
	err = s.db.QueryRowContext(ctx, query, username, string(hashedPassword), age, profile.ID, now, now, now).Scan(&id)
	if err != nil {
		if isDuplicateKeyError(err) {
			return nil, contextutils.ErrRecordExists
		}
		return nil, err
	}

	user, err := s.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, contextutils.WrapError(contextutils.ErrDatabaseQuery, "user was created but could not be retrieved from database")
	}
	return user, nil
}

// RegisterChildWithParent creates the parent account, the child account and
// their relation in a single transaction. If the parent username already
// exists the existing parent is linked instead of created.
func (s *UserService) RegisterChildWithParent(ctx context.Context, username, password string, age int, theme, parentUsername, parentEmail, parentPassword string) (result0 *models.User, result1 *models.Parent, err error) {
	ctx, span := observability.TraceUserFunction(ctx, "register_child_with_parent",
		attribute.String("user.username", username),
		attribute.String("parent.username", parentUsername),
	)
	defer observability.FinishSpan(span, &err)

	if err = validateNewCredentials(username, password); err != nil {
		return nil, nil, err
	}
	if parentUsername == "" {
		return nil, nil, contextutils.WrapError(contextutils.ErrInvalidInput, "parent username cannot be empty")
	}
	if parentEmail != "" && !contextutils.IsValidEmail(parentEmail) {
		return nil, nil, contextutils.WrapError(contextutils.ErrInvalidFormat, "parent email is not valid")
	}

	var childHash, parentHash []byte
	childHash, err = bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, nil, err
	}
	parentHash, err = bcrypt.GenerateFromPassword([]byte(parentPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, nil, err
	}

	profile := s.themes.Lookup(theme)
	now := time.Now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, contextutils.WrapError(contextutils.ErrDatabaseTransaction, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				s.logger.Warn(ctx, "Failed to rollback registration transaction", map[string]interface{}{"error": rbErr.Error()})
			}
		}
	}()

	var parentID int
	err = tx.QueryRowContext(ctx, `SELECT id FROM parents WHERE username = $1`, parentUsername).Scan(&parentID)
	if errors.Is(err, sql.ErrNoRows) {
		err = tx.QueryRowContext(ctx,
			`INSERT INTO parents (username, email, password_hash, created_at) VALUES ($1, $2, $3, $4) RETURNING id`,
			parentUsername, sql.NullString{String: parentEmail, Valid: parentEmail != ""}, string(parentHash), now,
		).Scan(&parentID)
	}
	if err != nil {
		return nil, nil, err
	}

	var childID int
	err = tx.QueryRowContext(ctx,
		`INSERT INTO users (username, password_hash, age, theme, theme_selected, total_points, current_island, streak_days, last_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, FALSE, 0, 1, 1, $5, $6, $7) RETURNING id`,
		username, string(childHash), age, profile.ID, now, now, now,
	).Scan(&childID)
	if err != nil {
		if isDuplicateKeyError(err) {
			err = contextutils.ErrRecordExists
		}
		return nil, nil, err
	}

	_, err = tx.ExecContext(ctx, `INSERT INTO parent_children (parent_id, user_id) VALUES ($1, $2)`, parentID, childID)
	if err != nil {
		return nil, nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, nil, contextutils.WrapError(contextutils.ErrDatabaseTransaction, "failed to commit registration transaction")
	}

	user, err := s.GetUserByID(ctx, childID)
	if err != nil {
		return nil, nil, err
	}
	parent, err := s.getParentByID(ctx, parentID)
	if err != nil {
		return nil, nil, err
	}
	return user, parent, nil
}

// AuthenticateUser verifies child credentials and returns the user if valid
func (s *UserService) AuthenticateUser(ctx context.Context, username, password string) (result0 *models.User, err error) {
	ctx, span := observability.TraceUserFunction(ctx, "authenticate_user", attribute.String("user.username", username))
	defer observability.FinishSpan(span, &err)

	var user *models.User
	user, err = s.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if user == nil || !user.PasswordHash.Valid {
		return nil, contextutils.ErrInvalidCredentials
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash.String), []byte(password)) != nil {
		return nil, contextutils.ErrInvalidCredentials
	}
	return user, nil
}

// AuthenticateParent verifies parent credentials
func (s *UserService) AuthenticateParent(ctx context.Context, username, password string) (result0 *models.Parent, err error) {
	ctx, span := observability.TraceUserFunction(ctx, "authenticate_parent", attribute.String("parent.username", username))
	defer observability.FinishSpan(span, &err)

	var parent *models.Parent
	parent, err = s.GetParentByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if parent == nil || !parent.PasswordHash.Valid {
		return nil, contextutils.ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(parent.PasswordHash.String), []byte(password)) != nil {
		return nil, contextutils.ErrInvalidCredentials
	}
	return parent, nil
}

// GetParentByUsername retrieves a parent account by username
func (s *UserService) GetParentByUsername(ctx context.Context, username string) (result0 *models.Parent, err error) {
	ctx, span := observability.TraceUserFunction(ctx, "get_parent_by_username", attribute.String("parent.username", username))
	defer observability.FinishSpan(span, &err)

	parent := &models.Parent{}
	err = s.db.QueryRowContext(ctx,
		`SELECT id, username, email, password_hash, created_at FROM parents WHERE username = $1`, username,
	).Scan(&parent.ID, &parent.Username, &parent.Email, &parent.PasswordHash, &parent.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return parent, nil
}

func (s *UserService) getParentByID(ctx context.Context, id int) (*models.Parent, error) {
	parent := &models.Parent{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, username, email, password_hash, created_at FROM parents WHERE id = $1`, id,
	).Scan(&parent.ID, &parent.Username, &parent.Email, &parent.PasswordHash, &parent.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return parent, nil
}

// GetChildrenForParent lists the child accounts linked to a parent
func (s *UserService) GetChildrenForParent(ctx context.Context, parentID int) (result0 []models.User, err error) {
	ctx, span := observability.TraceUserFunction(ctx, "get_children_for_parent", attribute.Int("parent.id", parentID))
	defer observability.FinishSpan(span, &err)

	query := `SELECT u.id, u.username, u.password_hash, u.age, u.theme, u.theme_selected, u.total_points, u.current_island, u.streak_days, u.last_active, u.created_at, u.updated_at
		FROM users u
		JOIN parent_children pc ON pc.user_id = u.id
		WHERE pc.parent_id = $1
		ORDER BY u.username`
	rows, err := s.db.QueryContext(ctx, query, parentID)
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Warn(ctx, "Failed to close rows", map[string]interface{}{"error": closeErr.Error()})
		}
	}()

	var children []models.User
	for rows.Next() {
		user, scanErr := scanUser(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		children = append(children, *user)
	}
	return children, rows.Err()
}

// SelectTheme sets the user's theme and marks it explicitly selected.
// Unknown theme ids are rejected here, unlike content rendering where
// they silently fall back.
func (s *UserService) SelectTheme(ctx context.Context, userID int, themeID string) (err error) {
	ctx, span := observability.TraceUserFunction(ctx, "select_theme",
		observability.AttributeUserID(userID),
		observability.AttributeTheme(themeID),
	)
	defer observability.FinishSpan(span, &err)

	if !s.themes.IsKnown(themeID) {
		return contextutils.WrapErrorf(contextutils.ErrUnknownTheme, "theme %q is not available", themeID)
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE users SET theme = $1, theme_selected = TRUE, updated_at = $2 WHERE id = $3`, themeID, time.Now(), userID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return contextutils.ErrRecordNotFound
	}
	return nil
}

// UpdateLastActive stamps activity time and maintains the daily streak:
// consecutive calendar days extend it, a gap resets it to 1.
func (s *UserService) UpdateLastActive(ctx context.Context, userID int) (err error) {
	ctx, span := observability.TraceUserFunction(ctx, "update_last_active", observability.AttributeUserID(userID))
	defer observability.FinishSpan(span, &err)

	user, err := s.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if user == nil {
		return contextutils.ErrRecordNotFound
	}

	now := time.Now()
	streak := user.StreakDays
	if user.LastActive.Valid {
		last := user.LastActive.Time
		switch daysBetween(last, now) {
		case 0:
			// same day, streak unchanged
		case 1:
			streak++
		default:
			streak = 1
		}
	} else {
		streak = 1
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE users SET last_active = $1, streak_days = $2, updated_at = $1 WHERE id = $3`,
		now, streak, userID)
	return err
}

// daysBetween counts calendar-day boundaries between two times
func daysBetween(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	aDay := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	bDay := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(bDay.Sub(aDay).Hours() / 24)
}

// GetDB returns the database connection
func (s *UserService) GetDB() *sql.DB {
	return s.db
}

// isDuplicateKeyError checks if the error is a duplicate key constraint violation
func isDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}

	if pqErr, ok := err.(*pq.Error); ok {
		// PostgreSQL error code 23505 is for unique constraint violations
		if pqErr.Code == "23505" {
			return true
		}
	}

	return false
}

func validateNewCredentials(username, password string) error {
	if strings.TrimSpace(username) == "" {
		return contextutils.WrapError(contextutils.ErrInvalidInput, "username cannot be empty")
	}
	if !contextutils.IsValidUsername(username) {
		return contextutils.WrapError(contextutils.ErrInvalidFormat, "username must be 3-30 characters of letters, digits or underscore")
	}
	if len(password) < 6 {
		return contextutils.WrapError(contextutils.ErrInvalidInput, "password must be at least 6 characters")
	}
	return nil
}

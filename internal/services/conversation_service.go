package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"utopai/internal/config"
	"utopai/internal/models"
	"utopai/internal/observability"
	contextutils "utopai/internal/utils"

	"go.opentelemetry.io/otel/attribute"
)

// maxConversationMessages bounds the stored history; the oldest
// messages drop off first
const maxConversationMessages = 50

// ConversationServiceInterface persists mentor chat history per
// (user, activity)
type ConversationServiceInterface interface {
	AppendMessage(ctx context.Context, userID, activityID int, role, content string) ([]models.ChatMessage, error)
	GetHistory(ctx context.Context, userID, activityID int) ([]models.ChatMessage, error)
	Reset(ctx context.Context, userID, activityID int) error
}

// ConversationService stores conversations as a JSONB message array
type ConversationService struct {
	db     *sql.DB
	cfg    *config.Config
	logger *observability.Logger
}

var _ ConversationServiceInterface = (*ConversationService)(nil)

// NewConversationServiceWithLogger creates a new ConversationService instance
func NewConversationServiceWithLogger(db *sql.DB, cfg *config.Config, logger *observability.Logger) *ConversationService {
	return &ConversationService{db: db, cfg: cfg, logger: logger}
}

// GetHistory returns the stored messages for (user, activity); empty
// when no conversation exists yet
func (s *ConversationService) GetHistory(ctx context.Context, userID, activityID int) (result0 []models.ChatMessage, err error) {
	ctx, span := observability.TraceConversationFunction(ctx, "get_history",
		observability.AttributeUserID(userID),
		observability.AttributeActivityID(activityID),
	)
	defer observability.FinishSpan(span, &err)

	var payload []byte
	err = s.db.QueryRowContext(ctx,
		`SELECT messages FROM conversations WHERE user_id = $1 AND activity_id = $2`,
		userID, activityID).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	var messages []models.ChatMessage
	if len(payload) > 0 {
		if err = json.Unmarshal(payload, &messages); err != nil {
			return nil, contextutils.WrapError(err, "failed to decode conversation messages")
		}
	}
	return messages, nil
}

// AppendMessage adds a message and returns the full updated history.
// The first append creates the conversation row.
func (s *ConversationService) AppendMessage(ctx context.Context, userID, activityID int, role, content string) (result0 []models.ChatMessage, err error) {
	ctx, span := observability.TraceConversationFunction(ctx, "append_message",
		observability.AttributeUserID(userID),
		observability.AttributeActivityID(activityID),
		attribute.String("chat.role", role),
	)
	defer observability.FinishSpan(span, &err)

	if role != "user" && role != "assistant" {
		return nil, contextutils.WrapErrorf(contextutils.ErrInvalidInput, "unknown message role %q", role)
	}
	if strings.TrimSpace(content) == "" {
		return nil, contextutils.WrapError(contextutils.ErrInvalidInput, "message content cannot be empty")
	}

	messages, err := s.GetHistory(ctx, userID, activityID)
	if err != nil {
		return nil, err
	}

	messages = append(messages, models.ChatMessage{Role: role, Content: content})
	if len(messages) > maxConversationMessages {
		messages = messages[len(messages)-maxConversationMessages:]
	}

	payload, err := json.Marshal(messages)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to encode conversation messages")
	}

	now := time.Now()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO conversations (user_id, activity_id, messages, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (user_id, activity_id) DO UPDATE SET messages = $3, updated_at = $4`,
		userID, activityID, payload, now)
	if err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.Int("chat.message_count", len(messages)))
	return messages, nil
}

// Reset clears the conversation so the activity can start fresh
func (s *ConversationService) Reset(ctx context.Context, userID, activityID int) (err error) {
	ctx, span := observability.TraceConversationFunction(ctx, "reset",
		observability.AttributeUserID(userID),
		observability.AttributeActivityID(activityID),
	)
	defer observability.FinishSpan(span, &err)

	_, err = s.db.ExecContext(ctx,
		`DELETE FROM conversations WHERE user_id = $1 AND activity_id = $2`,
		userID, activityID)
	return err
}

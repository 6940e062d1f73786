package repository

import (
	"context"
	"database/sql"

	"github.com/Abhilash-226/studysphere-sub001/internal/models"
)

type ConversationRepository struct {
	db DBTX
}

func NewConversationRepository(db DBTX) *ConversationRepository {
	return &ConversationRepository{db: db}
}

// CreateOrGet returns the one conversation for the unordered user pair,
// creating it on first contact. The unique constraint on the normalized
// (user_a_id, user_b_id) pair makes concurrent calls converge on one row.
func (r *ConversationRepository) CreateOrGet(
	ctx context.Context,
	userA int64,
	userB int64,
) (*models.Conversation, error) {
	if userA > userB {
		userA, userB = userB, userA
	}

	query := `
		INSERT INTO conversations (user_a_id, user_b_id)
		VALUES ($1, $2)
		ON CONFLICT (user_a_id, user_b_id)
		DO UPDATE SET updated_at = conversations.updated_at
		RETURNING id, user_a_id, user_b_id, last_message_at, created_at, updated_at
	`

	var conversation models.Conversation
	err := r.db.QueryRow(ctx, query, userA, userB).Scan(
		&conversation.ID,
		&conversation.UserAID,
		&conversation.UserBID,
		&conversation.LastMessageAt,
		&conversation.CreatedAt,
		&conversation.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &conversation, nil
}

func (r *ConversationRepository) GetByID(ctx context.Context, conversationID int64) (*models.Conversation, error) {
	query := `
		SELECT id, user_a_id, user_b_id, last_message_at, created_at, updated_at
		FROM conversations
		WHERE id = $1
	`

	var conversation models.Conversation
	err := r.db.QueryRow(ctx, query, conversationID).Scan(
		&conversation.ID,
		&conversation.UserAID,
		&conversation.UserBID,
		&conversation.LastMessageAt,
		&conversation.CreatedAt,
		&conversation.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &conversation, nil
}

func (r *ConversationRepository) GetByIDForParticipant(
	ctx context.Context,
	conversationID int64,
	participantID int64,
) (*models.Conversation, error) {
	query := `
		SELECT id, user_a_id, user_b_id, last_message_at, created_at, updated_at
		FROM conversations
		WHERE id = $1 AND (user_a_id = $2 OR user_b_id = $2)
	`

	var conversation models.Conversation
	err := r.db.QueryRow(ctx, query, conversationID, participantID).Scan(
		&conversation.ID,
		&conversation.UserAID,
		&conversation.UserBID,
		&conversation.LastMessageAt,
		&conversation.CreatedAt,
		&conversation.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &conversation, nil
}

func (r *ConversationRepository) ListForParticipant(
	ctx context.Context,
	participantID int64,
) ([]models.ConversationSummary, error) {
	query := `
		SELECT
			c.id,
			c.user_a_id,
			c.user_b_id,
			c.last_message_at,
			c.created_at,
			c.updated_at,
			lm.id,
			lm.conversation_id,
			lm.sender_id,
			lm.content,
			lm.read_at,
			lm.created_at,
			COALESCE(uc.unread_count, 0)
		FROM conversations c
		LEFT JOIN LATERAL (
			SELECT id, conversation_id, sender_id, content, read_at, created_at
			FROM messages
			WHERE conversation_id = c.id
			ORDER BY created_at DESC, id DESC
			LIMIT 1
		) lm ON TRUE
		LEFT JOIN LATERAL (
			SELECT COUNT(*) AS unread_count
			FROM messages
			WHERE conversation_id = c.id
			  AND sender_id <> $1
			  AND read_at IS NULL
		) uc ON TRUE
		WHERE c.user_a_id = $1 OR c.user_b_id = $1
		ORDER BY COALESCE(lm.created_at, c.updated_at, c.created_at) DESC, c.id DESC
	`

	rows, err := r.db.Query(ctx, query, participantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summaries := make([]models.ConversationSummary, 0)
	for rows.Next() {
		var summary models.ConversationSummary
		var messageID sql.NullInt64
		var messageConversationID sql.NullInt64
		var messageSenderID sql.NullInt64
		var messageContent sql.NullString
		var messageReadAt sql.NullTime
		var messageCreatedAt sql.NullTime

		if err := rows.Scan(
			&summary.ID,
			&summary.UserAID,
			&summary.UserBID,
			&summary.LastMessageAt,
			&summary.CreatedAt,
			&summary.UpdatedAt,
			&messageID,
			&messageConversationID,
			&messageSenderID,
			&messageContent,
			&messageReadAt,
			&messageCreatedAt,
			&summary.UnreadCount,
		); err != nil {
			return nil, err
		}

		if messageID.Valid {
			message := &models.Message{
				ID:             messageID.Int64,
				ConversationID: messageConversationID.Int64,
				SenderID:       messageSenderID.Int64,
				Content:        messageContent.String,
				CreatedAt:      messageCreatedAt.Time,
			}
			if messageReadAt.Valid {
				readAt := messageReadAt.Time
				message.ReadAt = &readAt
			}
			summary.LastMessage = message
		}

		summaries = append(summaries, summary)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return summaries, nil
}

func (r *ConversationRepository) TouchLastMessage(ctx context.Context, conversationID int64) error {
	_, err := r.db.Exec(ctx, `
		UPDATE conversations
		SET last_message_at = NOW(), updated_at = NOW()
		WHERE id = $1
	`, conversationID)
	return err
}

package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Abhilash-226/studysphere-sub001/internal/models"
	"github.com/Abhilash-226/studysphere-sub001/internal/repository"
)

var (
	ErrNotParticipant = errors.New("not a conversation participant")
	ErrEmptyContent   = errors.New("message content must not be empty")
	ErrUserNotFound   = errors.New("user not found")
)

type ChatService struct {
	db               *pgxpool.Pool
	conversationRepo *repository.ConversationRepository
	messageRepo      *repository.MessageRepository
	userRepo         userReader
}

type ChatDelivery struct {
	Conversation *models.Conversation
	Message      *models.Message
	RecipientID  int64
}

func NewChatService(
	db *pgxpool.Pool,
	conversationRepo *repository.ConversationRepository,
	messageRepo *repository.MessageRepository,
	userRepo userReader,
) *ChatService {
	return &ChatService{
		db:               db,
		conversationRepo: conversationRepo,
		messageRepo:      messageRepo,
		userRepo:         userRepo,
	}
}

func (s *ChatService) ListConversations(
	ctx context.Context,
	actorID int64,
) ([]models.ConversationSummary, error) {
	return s.conversationRepo.ListForParticipant(ctx, actorID)
}

// GetOrCreateConversation returns the single conversation for the unordered
// {actor, other} pair. The repository's upsert keeps concurrent calls for
// the same pair, in either argument order, on one row.
func (s *ChatService) GetOrCreateConversation(
	ctx context.Context,
	actorID int64,
	otherID int64,
) (*models.Conversation, error) {
	if otherID <= 0 || otherID == actorID {
		return nil, ErrValidation
	}

	if _, err := s.userRepo.GetByID(ctx, otherID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	return s.conversationRepo.CreateOrGet(ctx, actorID, otherID)
}

// GetConversationForParticipant loads a conversation only when the actor is
// one of its two participants.
func (s *ChatService) GetConversationForParticipant(
	ctx context.Context,
	actorID int64,
	conversationID int64,
) (*models.Conversation, error) {
	if conversationID <= 0 {
		return nil, ErrValidation
	}
	conversation, err := s.conversationRepo.GetByIDForParticipant(ctx, conversationID, actorID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotParticipant
		}
		return nil, err
	}
	return conversation, nil
}

func (s *ChatService) ListMessages(
	ctx context.Context,
	actorID int64,
	conversationID int64,
	page int,
	limit int,
) ([]models.Message, int, error) {
	if conversationID <= 0 || page <= 0 || limit <= 0 {
		return nil, 0, ErrValidation
	}

	if _, err := s.conversationRepo.GetByIDForParticipant(ctx, conversationID, actorID); err != nil {
		return nil, 0, err
	}

	return s.messageRepo.ListByConversation(ctx, conversationID, limit, (page-1)*limit)
}

// SendMessage appends one message. The append and the conversation's
// last-message stamp commit together or not at all.
func (s *ChatService) SendMessage(
	ctx context.Context,
	actorID int64,
	conversationID int64,
	content string,
) (*ChatDelivery, error) {
	if conversationID <= 0 {
		return nil, ErrValidation
	}

	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return nil, ErrEmptyContent
	}

	conversation, err := s.conversationRepo.GetByIDForParticipant(ctx, conversationID, actorID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotParticipant
		}
		return nil, err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	txMessageRepo := repository.NewMessageRepository(tx)
	txConversationRepo := repository.NewConversationRepository(tx)

	message, err := txMessageRepo.Create(ctx, conversationID, actorID, trimmed)
	if err != nil {
		return nil, err
	}

	if err := txConversationRepo.TouchLastMessage(ctx, conversationID); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return &ChatDelivery{
		Conversation: conversation,
		Message:      message,
		RecipientID:  conversation.OtherParticipant(actorID),
	}, nil
}

// MarkRead stamps every unread message from the counterparty. Idempotent.
func (s *ChatService) MarkRead(
	ctx context.Context,
	actorID int64,
	conversationID int64,
) error {
	if conversationID <= 0 {
		return ErrValidation
	}

	if _, err := s.conversationRepo.GetByIDForParticipant(ctx, conversationID, actorID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotParticipant
		}
		return err
	}

	return s.messageRepo.MarkConversationRead(ctx, conversationID, actorID)
}

func FormatChatTimestamp(ts time.Time) string {
	return ts.UTC().Format(time.RFC3339)
}

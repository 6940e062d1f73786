package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Abhilash-226/studysphere-sub001/internal/repository"
)

func newIntegrationChatService(pool *pgxpool.Pool) *ChatService {
	return NewChatService(
		pool,
		repository.NewConversationRepository(pool),
		repository.NewMessageRepository(pool),
		repository.NewUserRepository(pool),
	)
}

func TestChatServiceKeepsOneConversationPerPair(t *testing.T) {
	ctx := context.Background()
	pool := integrationTestPool(t)
	service := newIntegrationChatService(pool)

	studentID := createTestAccount(t, ctx, pool, "student", 0)
	tutorID := createTestAccount(t, ctx, pool, "tutor", 40)
	t.Cleanup(func() { cleanupTestUsers(t, ctx, pool, studentID, tutorID) })

	first, err := service.GetOrCreateConversation(ctx, studentID, tutorID)
	if err != nil {
		t.Fatalf("GetOrCreateConversation: %v", err)
	}

	// The reverse argument order lands on the same row.
	second, err := service.GetOrCreateConversation(ctx, tutorID, studentID)
	if err != nil {
		t.Fatalf("GetOrCreateConversation reversed: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected one conversation per pair, got %d and %d", first.ID, second.ID)
	}
	if first.UserAID >= first.UserBID {
		t.Fatalf("expected normalized pair, got %d/%d", first.UserAID, first.UserBID)
	}
}

func TestChatServiceMessageFlowAndUnreadCounts(t *testing.T) {
	ctx := context.Background()
	pool := integrationTestPool(t)
	service := newIntegrationChatService(pool)

	studentID := createTestAccount(t, ctx, pool, "student", 0)
	tutorID := createTestAccount(t, ctx, pool, "tutor", 40)
	t.Cleanup(func() { cleanupTestUsers(t, ctx, pool, studentID, tutorID) })

	conversation, err := service.GetOrCreateConversation(ctx, studentID, tutorID)
	if err != nil {
		t.Fatalf("GetOrCreateConversation: %v", err)
	}

	for i := 1; i <= 3; i++ {
		delivery, err := service.SendMessage(ctx, studentID, conversation.ID, fmt.Sprintf("question %d", i))
		if err != nil {
			t.Fatalf("SendMessage %d: %v", i, err)
		}
		if delivery.RecipientID != tutorID {
			t.Fatalf("expected recipient %d, got %d", tutorID, delivery.RecipientID)
		}
	}

	summaries, err := service.ListConversations(ctx, tutorID)
	if err != nil {
		t.Fatalf("ListConversations: %v", err)
	}
	if len(summaries) != 1 {
		t.Fatalf("expected 1 conversation, got %d", len(summaries))
	}
	if summaries[0].UnreadCount != 3 {
		t.Fatalf("expected 3 unread, got %d", summaries[0].UnreadCount)
	}
	if summaries[0].LastMessage == nil || summaries[0].LastMessage.Content != "question 3" {
		t.Fatalf("expected last message question 3, got %+v", summaries[0].LastMessage)
	}

	messages, total, err := service.ListMessages(ctx, tutorID, conversation.ID, 1, 2)
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if total != 3 || len(messages) != 2 {
		t.Fatalf("expected total 3 page of 2, got total %d len %d", total, len(messages))
	}
	// Newest first.
	if messages[0].Content != "question 3" || messages[1].Content != "question 2" {
		t.Fatalf("unexpected page order: %q, %q", messages[0].Content, messages[1].Content)
	}

	if err := service.MarkRead(ctx, tutorID, conversation.ID); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	summaries, err = service.ListConversations(ctx, tutorID)
	if err != nil {
		t.Fatalf("ListConversations after read: %v", err)
	}
	if summaries[0].UnreadCount != 0 {
		t.Fatalf("expected 0 unread after mark read, got %d", summaries[0].UnreadCount)
	}

	// The sender's own messages never count as unread for the sender.
	senderSide, err := service.ListConversations(ctx, studentID)
	if err != nil {
		t.Fatalf("ListConversations sender: %v", err)
	}
	if senderSide[0].UnreadCount != 0 {
		t.Fatalf("expected 0 unread for sender, got %d", senderSide[0].UnreadCount)
	}
}

func TestChatServiceRejectsOutsiders(t *testing.T) {
	ctx := context.Background()
	pool := integrationTestPool(t)
	service := newIntegrationChatService(pool)

	studentID := createTestAccount(t, ctx, pool, "student", 0)
	tutorID := createTestAccount(t, ctx, pool, "tutor", 40)
	outsiderID := createTestAccount(t, ctx, pool, "student", 0)
	t.Cleanup(func() { cleanupTestUsers(t, ctx, pool, studentID, tutorID, outsiderID) })

	conversation, err := service.GetOrCreateConversation(ctx, studentID, tutorID)
	if err != nil {
		t.Fatalf("GetOrCreateConversation: %v", err)
	}

	if _, err := service.SendMessage(ctx, outsiderID, conversation.ID, "let me in"); !errors.Is(err, ErrNotParticipant) {
		t.Fatalf("expected ErrNotParticipant, got %v", err)
	}
	if _, _, err := service.ListMessages(ctx, outsiderID, conversation.ID, 1, 10); !errors.Is(err, pgx.ErrNoRows) && !errors.Is(err, ErrNotParticipant) {
		t.Fatalf("expected participant gate, got %v", err)
	}
	if _, err := service.SendMessage(ctx, studentID, conversation.ID, "   "); !errors.Is(err, ErrEmptyContent) {
		t.Fatalf("expected ErrEmptyContent, got %v", err)
	}
}

package routes

import (
	"log"

	websocket "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Abhilash-226/studysphere-sub001/internal/config"
	"github.com/Abhilash-226/studysphere-sub001/internal/handlers"
	"github.com/Abhilash-226/studysphere-sub001/internal/middleware"
	"github.com/Abhilash-226/studysphere-sub001/internal/presence"
	"github.com/Abhilash-226/studysphere-sub001/internal/repository"
	"github.com/Abhilash-226/studysphere-sub001/internal/services"
)

func RegisterRoutes(app *fiber.App, cfg *config.Config, db *pgxpool.Pool) {
	userRepo := repository.NewUserRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	conversationRepo := repository.NewConversationRepository(db)
	messageRepo := repository.NewMessageRepository(db)

	hub := presence.NewHub()
	if cfg.RedisURL != "" {
		bridge, err := presence.NewRedisBridge(cfg.RedisURL, hub)
		if err != nil {
			log.Printf("presence bridge disabled: %v", err)
		} else {
			hub.SetBridge(bridge)
		}
	}

	notifier := services.NewLogNotifier()
	gateway := services.NewPlaceholderGateway()

	sessionService := services.NewSessionService(
		db,
		sessionRepo,
		paymentRepo,
		userRepo,
		gateway,
		notifier,
		cfg.PayBeforeBook,
	)
	chatService := services.NewChatService(db, conversationRepo, messageRepo, userRepo)
	classroomService := services.NewClassroomService(sessionRepo, hub, cfg.ClassroomEarlyStart)

	authHandler := handlers.NewAuthHandler(userRepo, cfg.JWTSecret)
	sessionHandler := handlers.NewSessionHandler(sessionService)
	chatHandler := handlers.NewChatHandler(chatService, classroomService, hub, cfg.JWTSecret)
	classroomHandler := handlers.NewClassroomHandler(classroomService)

	api := app.Group("/api")

	auth := api.Group("/auth")
	auth.Post("/register", authHandler.Register)
	auth.Post("/login", authHandler.Login)
	auth.Get("/me", middleware.AuthRequired(cfg.JWTSecret), authHandler.Me)

	authProtected := api.Group("/v1", middleware.AuthRequired(cfg.JWTSecret))

	sessions := authProtected.Group("/sessions")
	sessions.Post("/book", sessionHandler.BookSession)
	sessions.Get("", sessionHandler.ListSessions)
	sessions.Get("/:id", sessionHandler.GetSession)
	sessions.Post("/:id/cancel", sessionHandler.Cancel)
	sessions.Post("/:id/request-completion", sessionHandler.RequestCompletion)
	sessions.Post("/:id/approve-completion", sessionHandler.ApproveCompletion)
	sessions.Post("/:id/reschedule", sessionHandler.Reschedule)
	sessions.Post("/:id/review", sessionHandler.Review)
	sessions.Post("/:id/pay", sessionHandler.Pay)

	conversations := authProtected.Group("/conversations")
	conversations.Get("", chatHandler.ListConversations)
	conversations.Post("", chatHandler.CreateConversation)
	conversations.Get("/:id/messages", chatHandler.GetMessages)
	conversations.Post("/:id/messages", chatHandler.SendMessage)
	conversations.Post("/:id/read", chatHandler.MarkRead)

	classroom := authProtected.Group("/classroom")
	classroom.Get("/:id", classroomHandler.Status)
	classroom.Post("/:id/start", classroomHandler.Start)
	classroom.Post("/:id/join", classroomHandler.Join)
	classroom.Post("/:id/end", classroomHandler.End)

	api.Use("/v1/ws", chatHandler.WebSocketAuth)
	api.Get("/v1/ws", websocket.New(chatHandler.HandleWebSocket))
}

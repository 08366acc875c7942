package http

import (
	"time"

	"github.com/gin-gonic/gin"

	"pharmgpt/internal/ai"
	appsvc "pharmgpt/internal/app"
	"pharmgpt/internal/bootstrap"
	"pharmgpt/internal/cache"
	"pharmgpt/internal/platform/rabbitmq"
	"pharmgpt/internal/ratelimit"
	"pharmgpt/internal/repository"
	"pharmgpt/internal/transport/http/handler"
	"pharmgpt/internal/transport/http/middleware"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	healthHandler := handler.NewHealthHandler(app)
	router.GET("/healthz", healthHandler.Check)

	userRepo := repository.NewUserRepository(app.Postgres)
	sessionRepo := repository.NewSessionRepository(app.Postgres)
	convRepo := repository.NewConversationRepository(app.Postgres)
	messageRepo := repository.NewMessageRepository(app.Postgres)
	docRepo := repository.NewDocumentRepository(app.Postgres)
	chunkRepo := repository.NewChunkRepository(app.Postgres)

	llmClient := ai.NewOpenAICompatibleClient()
	embConfig := ai.EmbeddingConfig{
		BaseURL:   app.Config.Embedding.BaseURL,
		APIKey:    app.Config.Embedding.APIKey,
		Model:     app.Config.Embedding.Model,
		Dimension: app.Config.Embedding.Dimension,
	}
	resolveMode := func(name string) (ai.ChatConfig, error) {
		mode, err := app.Config.Mode(name)
		if err != nil {
			return ai.ChatConfig{}, err
		}
		return ai.ChatConfig{
			BaseURL: mode.BaseURL,
			APIKey:  mode.APIKey,
			Model:   mode.Model,
		}, nil
	}

	publisher := rabbitmq.NewMessagePublisher(app.MQConn, app.Config.RabbitMQ.MessagePersistQueue)
	historyCache := cache.NewHistoryCache(
		app.Redis,
		time.Duration(app.Config.Redis.HistoryTTLSeconds)*time.Second,
		time.Duration(app.Config.Redis.HistoryDirtyTTLSeconds)*time.Second,
	)
	uploadLimiter := ratelimit.NewUploadLimiter(app.Redis, app.Config.RAG.UploadLimitPerDay)

	authService := appsvc.NewAuthService(
		userRepo,
		sessionRepo,
		app.Config.Auth.JWTSecret,
		time.Duration(app.Config.Auth.SessionTimeoutHours)*time.Hour,
	)
	docService := appsvc.NewDocumentService(
		docRepo,
		chunkRepo,
		convRepo,
		llmClient,
		embConfig,
		uploadLimiter,
		appsvc.DocumentServiceConfig{
			ChunkSize:         app.Config.RAG.ChunkSize,
			ChunkOverlap:      app.Config.RAG.ChunkOverlap,
			TopK:              app.Config.RAG.TopK,
			MinSimilarity:     app.Config.RAG.MinSimilarity,
			ContextCharBudget: app.Config.RAG.ContextCharBudget,
			MaxFileSizeMB:     app.Config.RAG.MaxFileSizeMB,
		},
	)
	convService := appsvc.NewConversationService(
		convRepo,
		messageRepo,
		publisher,
		historyCache,
		docService,
		llmClient,
		resolveMode,
		app.Config.LLM.MaxContextMessages,
	)
	convService.SetDocumentCleanup(docService)

	authHandler := handler.NewAuthHandler(authService)
	convHandler := handler.NewConversationHandler(convService)
	docHandler := handler.NewDocumentHandler(docService)

	auth := middleware.Auth(authService)

	v1 := router.Group("/api/v1")

	authGroup := v1.Group("/auth")
	authGroup.POST("/register", authHandler.Register)
	authGroup.POST("/login", authHandler.Login)
	authGroup.POST("/logout", auth, authHandler.Logout)
	authGroup.GET("/me", auth, authHandler.Me)
	authGroup.POST("/password", auth, authHandler.ChangePassword)

	convGroup := v1.Group("/conversations")
	convGroup.Use(auth)
	convGroup.POST("", convHandler.Create)
	convGroup.GET("", convHandler.List)
	convGroup.GET("/:id", convHandler.Get)
	convGroup.PUT("/:id/title", convHandler.Rename)
	convGroup.PUT("/:id/archive", convHandler.SetArchived)
	convGroup.POST("/:id/duplicate", convHandler.Duplicate)
	convGroup.DELETE("/:id", convHandler.Delete)
	convGroup.GET("/:id/messages", convHandler.GetHistory)
	convGroup.POST("/:id/messages", convHandler.SendMessage)
	convGroup.POST("/:id/messages/stream", convHandler.StreamMessage)
	convGroup.GET("/:id/export", convHandler.Export)
	convGroup.POST("/:id/documents", docHandler.Upload)
	convGroup.POST("/:id/documents/search", docHandler.Search)

	docGroup := v1.Group("/documents")
	docGroup.Use(auth)
	docGroup.GET("", docHandler.List)
	docGroup.GET("/stats", docHandler.Stats)
	docGroup.POST("/search", docHandler.SearchAll)
	docGroup.DELETE("/:id", docHandler.Delete)

	return router
}

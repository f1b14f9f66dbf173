package router

import (
	"context"
	"fmt"
	"net/http"
	"slices"

	"github.com/bigyann/lumina/backend/internal/events"
	"github.com/bigyann/lumina/backend/internal/handlers"
	"github.com/bigyann/lumina/backend/internal/middleware"
	"github.com/bigyann/lumina/backend/internal/models"
	"github.com/bigyann/lumina/backend/internal/realtime"
	"github.com/bigyann/lumina/backend/internal/repositories"
	"github.com/bigyann/lumina/backend/internal/services"
	"github.com/bigyann/lumina/backend/pkg/config"
	"github.com/bigyann/lumina/backend/pkg/firebase"
	"github.com/bigyann/lumina/backend/pkg/metrics"
	"github.com/bigyann/lumina/backend/pkg/storage"
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Infra is the external plumbing the application is assembled on.
type Infra struct {
	Postgres  *gorm.DB
	Mongo     *mongo.Database
	Firebase  firebase.TokenVerifier // nil disables Firebase sign-in
	Hub       *realtime.Hub
	Publisher events.Publisher
	Store     storage.BlobStore
	Metrics   *metrics.Metrics
}

// Repositories groups the storage implementations.
type Repositories struct {
	Users         repositories.UserRepository
	Friendships   repositories.FriendshipRepository
	Messages      repositories.MessageRepository
	Calls         repositories.CallRepository
	Posts         repositories.PostRepository
	Categories    repositories.CategoryRepository
	Comments      repositories.CommentRepository
	Reviews       repositories.ReviewRepository
	Likes         repositories.LikeRepository
	Notifications repositories.NotificationRepository
	Polls         repositories.PollRepository
	LiveLinks     repositories.LiveLinkRepository
	Marketplace   repositories.MarketplaceRepository
}

// Services groups the domain services.
type Services struct {
	Tokens      *services.TokenService
	Profiles    *services.ProfileService
	Friends     *services.FriendService
	Messages    *services.MessageService
	Calls       *services.CallService
	Posts       *services.PostService
	Polls       *services.PollService
	Marketplace *services.MarketplaceService
	Uploads     *services.UploadService
	Sitemap     *services.SitemapService
}

// App is the assembled backend.
type App struct {
	Repos    Repositories
	Services Services
	infra    Infra
}

// NewRepositories runs the PostgreSQL migrations and Mongo index setup and
// returns the database-backed repositories.
func NewRepositories(ctx context.Context, infra Infra, log *zap.Logger) (Repositories, error) {
	err := infra.Postgres.AutoMigrate(
		&models.User{},
		&models.FriendRequest{},
		&models.Comment{},
		&models.Review{},
		&models.Like{},
		&models.Notification{},
	)
	if err != nil {
		return Repositories{}, fmt.Errorf("auto migrate: %w", err)
	}
	log.Info("PostgreSQL auto-migrations completed")

	if err := repositories.EnsureIndexes(ctx, infra.Mongo); err != nil {
		return Repositories{}, fmt.Errorf("ensure indexes: %w", err)
	}
	log.Info("MongoDB indexes ensured")

	return Repositories{
		Users:         repositories.NewPostgresUserRepository(infra.Postgres),
		Friendships:   repositories.NewPostgresFriendshipRepository(infra.Postgres),
		Messages:      repositories.NewMongoMessageRepository(infra.Mongo),
		Calls:         repositories.NewMongoCallRepository(infra.Mongo),
		Posts:         repositories.NewMongoPostRepository(infra.Mongo),
		Categories:    repositories.NewMongoCategoryRepository(infra.Mongo),
		Comments:      repositories.NewPostgresCommentRepository(infra.Postgres),
		Reviews:       repositories.NewPostgresReviewRepository(infra.Postgres),
		Likes:         repositories.NewPostgresLikeRepository(infra.Postgres),
		Notifications: repositories.NewPostgresNotificationRepository(infra.Postgres),
		Polls:         repositories.NewMongoPollRepository(infra.Mongo),
		LiveLinks:     repositories.NewMongoLiveLinkRepository(infra.Mongo),
		Marketplace:   repositories.NewMongoMarketplaceRepository(infra.Mongo),
	}, nil
}

// NewApp wires the services on top of repos.
func NewApp(cfg *config.Config, infra Infra, repos Repositories, log *zap.Logger) *App {
	hub, pub, m := infra.Hub, infra.Publisher, infra.Metrics

	return &App{
		Repos: repos,
		Services: Services{
			Tokens:   services.NewTokenService(cfg.JWTSecret, cfg.JWTTTL),
			Profiles: services.NewProfileService(repos.Users, cfg.AdminEmails, log),
			Friends:  services.NewFriendService(repos.Friendships, repos.Users, repos.Notifications, hub, pub, log),
			Messages: services.NewMessageService(repos.Messages, repos.Users, hub, pub, m, log,
				services.WithPageSize(cfg.MessagePageSize),
				services.WithWarmup(cfg.NotificationWarmup),
			),
			Calls: services.NewCallService(repos.Calls, repos.Users, repos.Notifications, hub, pub, m, log,
				services.WithRingTimeout(cfg.CallRingTimeout),
				services.WithICEServers(cfg.STUNServers),
			),
			Posts:       services.NewPostService(repos.Posts, repos.Categories, repos.Comments, repos.Reviews, repos.Likes, repos.Notifications, log),
			Polls:       services.NewPollService(repos.Polls, pub, log),
			Marketplace: services.NewMarketplaceService(repos.Marketplace, repos.Notifications, pub, log),
			Uploads:     services.NewUploadService(infra.Store, m, cfg.UploadMaxBytes, cfg.ImageMaxDimension, log),
			Sitemap:     services.NewSitemapService(repos.Posts, repos.Polls, infra.Store, cfg.SiteURL, log),
		},
		infra: infra,
	}
}

// originChecker accepts WebSocket upgrades from the configured CORS origins.
func originChecker(origins []string) func(*http.Request) bool {
	if len(origins) == 0 || slices.Contains(origins, "*") {
		return nil
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || slices.Contains(origins, origin)
	}
}

// SetupRoutes mounts every handler on e.
func SetupRoutes(e *echo.Echo, cfg *config.Config, app *App, log *zap.Logger) {
	repos, svc := app.Repos, app.Services

	e.GET("/health", handlers.HealthCheck)
	e.GET("/metrics", echo.WrapHandler(app.infra.Metrics.Handler()))
	e.GET("/sitemap.xml", handlers.NewSitemapHandler(svc.Sitemap).GetSitemap)
	if mem, ok := app.infra.Store.(*storage.MemoryStore); ok {
		e.GET("/files/*", handlers.ServeMemoryFiles(mem))
	}

	// --- Unprotected routes for authentication ---
	authGroup := e.Group("/api/v1/auth")
	authHandler := handlers.NewAuthHandler(svc.Profiles, svc.Tokens, app.infra.Firebase, log)
	authHandler.RegisterAuthRoutes(authGroup)
	if app.infra.Firebase != nil {
		authGroup.POST("/firebase-session", authHandler.FirebaseSession, middleware.FirebaseAuthMiddleware(app.infra.Firebase))
	}
	log.Info("Auth routes configured.")

	// Readable anonymously; a valid token still identifies the caller.
	public := e.Group("/api/v1", middleware.OptionalJWT(svc.Tokens))

	// --- Protected routes (require JWT authentication) ---
	api := e.Group("/api/v1", middleware.JWTAuthMiddleware(svc.Tokens))

	admin := e.Group("/api/v1", middleware.JWTAuthMiddleware(svc.Tokens), middleware.RequireRole(models.RoleAdmin))

	// The WebSocket endpoint authenticates from its query string.
	ws := handlers.NewWSHandler(svc.Tokens, svc.Calls, svc.Messages, app.infra.Metrics, originChecker(cfg.CORSOrigins), log)
	ws.RegisterWSRoutes(e.Group("/api/v1"))
	log.Info("WebSocket routes configured.")

	handlers.NewUserHandler(repos.Users, svc.Profiles).RegisterUserRoutes(api)
	log.Info("User profile routes configured.")

	handlers.NewFriendshipHandler(svc.Friends).RegisterFriendshipRoutes(api)
	log.Info("Friendship routes configured.")

	handlers.NewMessageHandler(svc.Messages).RegisterMessageRoutes(api)
	log.Info("Message routes configured.")

	handlers.NewCallHandler(svc.Calls).RegisterCallRoutes(api)
	log.Info("Call routes configured.")

	postHandler := handlers.NewPostHandler(svc.Posts, repos.Users)
	postHandler.RegisterPublicPostRoutes(public)
	postHandler.RegisterPostRoutes(api)
	log.Info("Post routes configured.")

	categoryHandler := handlers.NewCategoryHandler(repos.Categories)
	categoryHandler.RegisterPublicCategoryRoutes(public)
	categoryHandler.RegisterAdminCategoryRoutes(admin)
	log.Info("Category routes configured.")

	commentHandler := handlers.NewCommentHandler(svc.Posts, repos.Users)
	commentHandler.RegisterPublicCommentRoutes(public)
	commentHandler.RegisterCommentRoutes(api)
	log.Info("Comment routes configured.")

	handlers.NewLikeHandler(svc.Posts, repos.Likes).RegisterLikeRoutes(api)
	log.Info("Like routes configured.")

	pollHandler := handlers.NewPollHandler(svc.Polls)
	pollHandler.RegisterPublicPollRoutes(public)
	pollHandler.RegisterPollRoutes(api)
	pollHandler.RegisterAdminPollRoutes(admin)
	log.Info("Poll routes configured.")

	liveHandler := handlers.NewLiveLinkHandler(repos.LiveLinks)
	liveHandler.RegisterPublicLiveLinkRoutes(public)
	liveHandler.RegisterAdminLiveLinkRoutes(admin)
	log.Info("Live link routes configured.")

	marketHandler := handlers.NewMarketplaceHandler(svc.Marketplace, repos.Users)
	marketHandler.RegisterPublicMarketplaceRoutes(public)
	marketHandler.RegisterMarketplaceRoutes(api)
	log.Info("Marketplace routes configured.")

	handlers.NewNotificationHandler(repos.Notifications, repos.Users).RegisterNotificationRoutes(api)
	log.Info("Notification routes configured.")

	handlers.NewUploadHandler(svc.Uploads).RegisterUploadRoutes(api)
	log.Info("Upload routes configured.")

	handlers.NewAdminHandler(svc.Posts, svc.Marketplace, repos.Users, repos.Posts, repos.Polls, repos.Calls, repos.Marketplace).RegisterAdminRoutes(admin)
	log.Info("Admin routes configured.")

	log.Info("All routes configured.")
}

// Package server contains HTTP and WebSocket handlers for the forum API.
package server

import (
	"context"
	"fmt"
	"log"
	"time"

	_ "qaforum/docs" // swagger docs
	"qaforum/internal/assistant"
	"qaforum/internal/cache"
	"qaforum/internal/config"
	"qaforum/internal/database"
	"qaforum/internal/email"
	"qaforum/internal/featureflags"
	"qaforum/internal/middleware"
	"qaforum/internal/models"
	"qaforum/internal/notifications"
	"qaforum/internal/repository"
	"qaforum/internal/service"
	"qaforum/internal/storage"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc

	userRepo     repository.UserRepository
	hub          *notifications.Hub
	notifier     *notifications.Notifier
	broadcaster  *notifications.Broadcaster
	publisher    notifications.Publisher
	featureFlags *featureflags.Manager
	store        storage.FileStore
	mail         email.Sender
	generator    assistant.Generator

	authService         *service.AuthService
	questionService     *service.QuestionService
	answerService       *service.AnswerService
	voteService         *service.VoteService
	moderationService   *service.ModerationService
	notificationService *service.NotificationService
	materialService     *service.MaterialService
	userService         *service.UserService
	adminService        *service.AdminService
	assistantService    *service.AssistantService
}

// Option overrides a dependency NewServerWithDeps would otherwise build
// from configuration.
type Option func(*Server)

// WithPublisher replaces the broadcaster as the services' event sink.
func WithPublisher(p notifications.Publisher) Option {
	return func(s *Server) { s.publisher = p }
}

// WithEmailSender replaces the configured email provider.
func WithEmailSender(m email.Sender) Option {
	return func(s *Server) { s.mail = m }
}

// WithFileStore replaces the configured storage provider.
func WithFileStore(fs storage.FileStore) Option {
	return func(s *Server) { s.store = fs }
}

// WithGenerator replaces the configured study assistant model.
func WithGenerator(g assistant.Generator) Option {
	return func(s *Server) { s.generator = g }
}

// NewServer connects to the database and Redis and builds a Server.
func NewServer(cfg *config.Config) (*Server, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	cache.InitRedis(cfg.RedisURL)
	return NewServerWithDeps(cfg, db, cache.GetClient())
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// A nil Redis client disables cross-instance fan-out, token revocation and
// websocket tickets.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client, opts ...Option) (*Server, error) {
	s := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics("qaforum-api"),
		featureFlags:   featureflags.NewManager(cfg.FeatureFlags),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.store == nil {
		store, err := storage.New(cfg)
		if err != nil {
			return nil, fmt.Errorf("file storage: %w", err)
		}
		s.store = store
	}
	if s.mail == nil {
		mail, err := email.NewSender(cfg)
		if err != nil {
			return nil, fmt.Errorf("email sender: %w", err)
		}
		s.mail = mail
	}
	if s.generator == nil {
		s.generator = assistant.NewGenerator(cfg)
	}

	s.hub = notifications.NewHub()
	if redisClient != nil {
		s.notifier = notifications.NewNotifier(redisClient)
	}
	s.broadcaster = notifications.NewBroadcaster(s.hub, s.notifier, notifications.BroadcasterConfig{
		QueueSize: cfg.BroadcastQueueSize,
		Workers:   cfg.BroadcastWorkers,
	})
	if s.publisher == nil {
		s.publisher = s.broadcaster
	}

	s.initServices()
	return s, nil
}

func (s *Server) initServices() {
	users := repository.NewUserRepository(s.db)
	questions := repository.NewQuestionRepository(s.db)
	answers := repository.NewAnswerRepository(s.db)
	votes := repository.NewVoteRepository(s.db)
	reports := repository.NewReportRepository(s.db)
	notes := repository.NewNotificationRepository(s.db)
	materials := repository.NewMaterialRepository(s.db)
	s.userRepo = users

	images := service.NewImageService(s.store, s.config)
	s.notificationService = service.NewNotificationService(notes, s.publisher)
	s.questionService = service.NewQuestionService(questions, answers, votes, users, images, s.publisher)
	s.answerService = service.NewAnswerService(answers, questions, users, s.notificationService, images, s.publisher)
	s.voteService = service.NewVoteService(votes, questions, answers, s.publisher, service.ParseVotePolicy(s.config.VotePolicy))
	s.moderationService = service.NewModerationService(reports, questions, answers, users, s.notificationService, s.mail, s.publisher,
		service.ModerationConfig{
			AllowReopen:         s.config.ModerationAllowReopen,
			ModeratorsCanReview: s.config.ModerationModeratorsCanReview,
		})
	s.materialService = service.NewMaterialService(materials, users, s.store, s.publisher)
	s.authService = service.NewAuthService(users, s.redis, s.mail, s.config)
	s.userService = service.NewUserService(users, questions, answers, votes, materials, images)
	s.adminService = service.NewAdminService(users)
	s.assistantService = service.NewAssistantService(s.generator)
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.TracingMiddleware())

	// Propagates request, user and trace ids into the request context.
	app.Use(middleware.ContextMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	app.Use(helmet.New(helmet.Config{CrossOriginResourcePolicy: "cross-origin"}))
	app.Use(middleware.StructuredLogger())

	// CORS runs before the limiter so rejected responses still carry CORS headers.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowCredentials: origins != "*",
		MaxAge:           86400,
	}))

	// 100 requests per minute per IP
	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests, please try again later.",
			})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	api := app.Group("/api")

	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	api.Get("/", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}
	api.Get("/metrics/dashboard", monitor.New(monitor.Config{Title: "QA Forum Metrics"}))
	api.Get("/swagger/*", swagger.HandlerDefault)

	if disk, ok := s.store.(*storage.DiskStore); ok {
		app.Static(disk.PublicPath(), disk.Root(), fiber.Static{ByteRange: true})
	}

	// Auth
	auth := api.Group("/auth")
	auth.Post("/signup", middleware.RateLimit(s.redis, middleware.RuleSignup), s.Signup)
	auth.Post("/login", middleware.RateLimit(s.redis, middleware.RuleLogin), s.Login)
	auth.Post("/forgot-password", middleware.RateLimit(s.redis, middleware.RuleForgotPassword), s.ForgotPassword)
	auth.Post("/reset-password", middleware.RateLimit(s.redis, middleware.RuleResetPassword), s.ResetPassword)
	auth.Post("/logout", s.AuthRequired(), s.Logout)
	api.Post("/ws/ticket", s.AuthRequired(), s.IssueWSTicket)

	// Anonymous viewers may watch question groups; a ticket signs the
	// connection in.
	api.Get("/ws", s.WebsocketUpgrade(), s.WebsocketHandler())

	// Public reads. They must be registered before the protected group,
	// whose auth middleware applies to every route added after it.
	api.Get("/tags", s.GetTags)
	api.Get("/questions", s.ListQuestions)
	api.Get("/questions/:id<int>", s.GetQuestion)
	api.Get("/materials", s.ListMaterials)
	api.Get("/materials/:id<int>", s.GetMaterial)
	api.Get("/users/:id<int>", s.GetUserProfile)

	protected := api.Group("", s.AuthRequired())

	protected.Get("/users/me", s.GetMyProfile)
	protected.Put("/users/me", s.UpdateMyProfile)
	protected.Post("/users/me/password", middleware.RateLimit(s.redis, middleware.RuleChangePassword), s.ChangePassword)

	questions := protected.Group("/questions")
	questions.Post("/", middleware.RateLimit(s.redis, middleware.RuleAskQuestion), s.CreateQuestion)
	questions.Post("/:id/answers", middleware.RateLimit(s.redis, middleware.RulePostAnswer), s.PostAnswer)
	questions.Post("/:id/vote", middleware.RateLimit(s.redis, middleware.RuleVote, middleware.RuleVoteTarget), s.VoteQuestion)
	questions.Post("/:id/report", middleware.RateLimit(s.redis, middleware.RuleReport), s.ReportQuestion)
	questions.Put("/:id", s.UpdateQuestion)
	questions.Delete("/:id", s.DeleteQuestion)

	answers := protected.Group("/answers")
	answers.Post("/:id/vote", middleware.RateLimit(s.redis, middleware.RuleVote, middleware.RuleVoteTarget), s.VoteAnswer)
	answers.Post("/:id/report", middleware.RateLimit(s.redis, middleware.RuleReport), s.ReportAnswer)
	answers.Put("/:id", s.UpdateAnswer)
	answers.Delete("/:id", s.DeleteAnswer)

	notes := protected.Group("/notifications")
	notes.Get("/", s.GetNotifications)
	notes.Get("/summary", s.GetNotificationSummary)
	notes.Post("/bulk", s.BulkMarkNotifications)
	notes.Post("/:id/read", s.MarkNotificationRead)
	notes.Post("/:id/unread", s.MarkNotificationUnread)
	notes.Delete("/", s.DeleteNotifications)

	materials := protected.Group("/materials")
	materials.Post("/", s.FeatureRequired(featureflags.Materials),
		middleware.RateLimit(s.redis, middleware.RuleAddMaterial), s.AddMaterial)
	materials.Get("/:id/download", s.DownloadMaterial)
	materials.Delete("/:id", s.DeleteMaterial)

	protected.Post("/assistant/generate", s.FeatureRequired(featureflags.Assistant),
		middleware.RateLimit(s.redis, middleware.RuleAssistant), s.GenerateAssistant)

	// Reviewer rights for reports are checked by the moderation service,
	// which lets moderators in when configured to.
	admin := protected.Group("/admin")
	admin.Get("/reports", s.ListReports)
	admin.Put("/reports/:id/status", s.ChangeReportStatus)
	admin.Delete("/reports/:id", s.CancelReport)
	admin.Get("/users", s.AdminRequired(), s.ListUsers)
	admin.Post("/users/:id/lock", s.AdminRequired(), s.LockUser)
	admin.Post("/users/:id/unlock", s.AdminRequired(), s.UnlockUser)
	admin.Put("/users/:id/roles", s.AdminRequired(), s.SetUserRoles)
	admin.Get("/feature-flags", s.AdminRequired(), s.GetFeatureFlags)
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness probe requests
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	sqlDB, err := s.db.DB()
	if err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "healthy"
	if s.redis != nil {
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	} else {
		redisStatus = "unavailable"
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus == "unhealthy" || redisStatus != "healthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"pending_broadcasts": s.broadcaster.Pending(),
		"time":               time.Now(),
	})
}

func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	if fe, ok := err.(*fiber.Error); ok {
		return c.Status(fe.Code).JSON(models.ErrorResponse{Error: fe.Message})
	}
	middleware.Logger.ErrorContext(c.UserContext(), "unhandled error", "error", err.Error())
	return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
}

// App builds the Fiber application once and returns it.
func (s *Server) App() *fiber.App {
	if s.app != nil {
		return s.app
	}
	limit := s.config.MaxUploadBytes()
	if limit < service.MaxMaterialSizeBytes {
		limit = service.MaxMaterialSizeBytes
	}
	app := fiber.New(fiber.Config{
		AppName:      "QA Forum API",
		BodyLimit:    int(limit) + 1<<20,
		ErrorHandler: s.errorHandler,
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	s.app = app
	return app
}

// Start starts the broadcaster, the Redis wiring and the HTTP listener.
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	app := s.App()
	s.broadcaster.Start(ctx)

	if s.notifier != nil {
		go func() {
			if err := s.hub.StartWiring(s.shutdownCtx, s.notifier); err != nil {
				log.Printf("failed to start %s wiring: %v", s.hub.Name(), err)
			}
		}()
	}

	log.Printf("Server starting on port %s...", s.config.Port)
	return app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			log.Printf("error shutting down HTTP server: %v", err)
		}
	}

	// Flush queued events before the sockets close.
	s.broadcaster.Close()
	if err := s.hub.Shutdown(ctx); err != nil {
		log.Printf("error shutting down %s: %v", s.hub.Name(), err)
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			log.Printf("error closing sql DB: %v", cerr)
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			log.Printf("error closing redis: %v", rerr)
		}
	}

	log.Println("Server shutdown complete")
	return nil
}

package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/clubhub/backend/internal/config"
	"github.com/clubhub/backend/internal/database"
	"github.com/clubhub/backend/internal/handlers"
	"github.com/clubhub/backend/internal/middleware"
	"github.com/clubhub/backend/internal/services"
	"github.com/clubhub/backend/internal/storage"
	"github.com/clubhub/backend/pkg/logger"
	"github.com/clubhub/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

func main() {
	logger.Init()

	cfg := config.Load()
	utils.ConfigureJWT(cfg.JWT.Secret, cfg.JWT.ExpirationHours)

	db, err := database.Connect(cfg.DB)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}

	storageClient, err := storage.NewMinIOClient(cfg.MinIO)
	if err != nil {
		log.Fatalf("minio initialization failed: %v", err)
	}
	if err := storageClient.EnsureBucket(context.Background()); err != nil {
		log.Fatalf("failed ensuring minio bucket: %v", err)
	}

	guardService := services.NewGuardService(db)
	notifyService := services.NewNotifyService(db, cfg.Notify.QueueBufferSize)
	defer notifyService.Close()

	authHandler := handlers.NewAuthHandler(db)
	usersHandler := handlers.NewUsersHandler(db)
	clubsHandler := handlers.NewClubsHandler(db, guardService, storageClient)
	membershipsHandler := handlers.NewMembershipsHandler(db, guardService, notifyService)
	eventsHandler := handlers.NewEventsHandler(db, guardService, notifyService, storageClient)
	announcementsHandler := handlers.NewAnnouncementsHandler(db, guardService, notifyService)
	notificationsHandler := handlers.NewNotificationsHandler(db)
	messagesHandler := handlers.NewMessagesHandler(db, notifyService)

	authMiddleware := middleware.NewAuthMiddleware(db)

	app := fiber.New(fiber.Config{BodyLimit: 10 * 1024 * 1024})
	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	app.Use(middleware.CORS(cfg.Server.AllowedOrigins))
	app.Use(middleware.RequestLogger())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api")

	authRoutes := api.Group("/auth")
	authRoutes.Post("/register", authHandler.Register)
	authRoutes.Post("/login", authHandler.Login)
	authRoutes.Get("/me", authMiddleware.RequireAuth, authHandler.Me)
	authRoutes.Put("/me", authMiddleware.RequireAuth, authHandler.UpdateMe)
	authRoutes.Put("/password", authMiddleware.RequireAuth, authHandler.ChangePassword)

	userRoutes := api.Group("/users", authMiddleware.RequireAuth, middleware.AdminOnly)
	userRoutes.Get("/", usersHandler.List)
	userRoutes.Get("/:id", usersHandler.Get)
	userRoutes.Put("/:id", usersHandler.Update)
	userRoutes.Delete("/:id", usersHandler.Deactivate)

	clubRoutes := api.Group("/clubs", authMiddleware.RequireAuth)
	clubRoutes.Post("/", clubsHandler.Create)
	clubRoutes.Get("/", clubsHandler.List)
	clubRoutes.Get("/:id", clubsHandler.Get)
	clubRoutes.Put("/:id", clubsHandler.Update)
	clubRoutes.Delete("/:id", middleware.AdminOnly, clubsHandler.Delete)
	clubRoutes.Post("/:id/logo", clubsHandler.UploadLogo)
	clubRoutes.Post("/:id/events", eventsHandler.Create)
	clubRoutes.Post("/:id/announcements", announcementsHandler.Create)
	clubRoutes.Get("/:id/announcements", announcementsHandler.List)

	membershipRoutes := api.Group("/memberships", authMiddleware.RequireAuth)
	membershipRoutes.Post("/join/:clubId", membershipsHandler.Join)
	membershipRoutes.Patch("/:membershipId/status", membershipsHandler.UpdateStatus)
	membershipRoutes.Delete("/leave/:clubId", membershipsHandler.Leave)
	membershipRoutes.Delete("/remove/:membershipId", membershipsHandler.Remove)
	membershipRoutes.Get("/my-memberships", membershipsHandler.MyMemberships)
	membershipRoutes.Get("/check/:clubId", membershipsHandler.Check)
	membershipRoutes.Get("/club/:clubId", membershipsHandler.ClubMembers)
	membershipRoutes.Get("/club/:clubId/stats", membershipsHandler.ClubStats)

	eventRoutes := api.Group("/events", authMiddleware.RequireAuth)
	eventRoutes.Get("/", eventsHandler.List)
	eventRoutes.Get("/:id", eventsHandler.Get)
	eventRoutes.Put("/:id", eventsHandler.Update)
	eventRoutes.Delete("/:id", eventsHandler.Delete)
	eventRoutes.Post("/:id/rsvp", eventsHandler.RSVP)
	eventRoutes.Get("/:id/rsvps", eventsHandler.ListRSVPs)
	eventRoutes.Post("/:id/banner", eventsHandler.UploadBanner)

	announcementRoutes := api.Group("/announcements", authMiddleware.RequireAuth)
	announcementRoutes.Put("/:id", announcementsHandler.Update)
	announcementRoutes.Delete("/:id", announcementsHandler.Delete)

	notificationRoutes := api.Group("/notifications", authMiddleware.RequireAuth)
	notificationRoutes.Get("/", notificationsHandler.List)
	notificationRoutes.Get("/unread-count", notificationsHandler.UnreadCount)
	notificationRoutes.Put("/read-all", notificationsHandler.MarkAllRead)
	notificationRoutes.Put("/:id/read", notificationsHandler.MarkRead)
	notificationRoutes.Delete("/:id", notificationsHandler.Delete)

	messageRoutes := api.Group("/messages", authMiddleware.RequireAuth)
	messageRoutes.Post("/", messagesHandler.Send)
	messageRoutes.Get("/conversations", messagesHandler.Conversations)
	messageRoutes.Get("/:userId", messagesHandler.Thread)

	listenAddr := fmt.Sprintf(":%s", cfg.Server.Port)

	logger.Info("server_starting", map[string]interface{}{
		"port":    cfg.Server.Port,
		"address": listenAddr,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Listen(listenAddr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Printf("shutting down server due to signal: %s", sig)
		shutdownDone := make(chan struct{})
		go func() {
			_ = app.Shutdown()
			close(shutdownDone)
		}()
		select {
		case <-shutdownDone:
		case <-time.After(10 * time.Second):
			log.Print("forced shutdown timeout reached")
		}
	case err := <-errCh:
		if err != nil {
			log.Fatalf("server error: %v", err)
		}
	}
}

package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/clubhub/backend/internal/database"
	"github.com/clubhub/backend/internal/middleware"
	"github.com/clubhub/backend/internal/models"
	"github.com/clubhub/backend/internal/services"
	"github.com/clubhub/backend/pkg/logger"
	"github.com/clubhub/backend/pkg/utils"
	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"gorm.io/gorm"
)

type testEnv struct {
	app    *fiber.App
	db     *gorm.DB
	notify *services.NotifyService
}

var testSetupOnce sync.Once

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	testSetupOnce.Do(func() {
		logger.Init()
		utils.ConfigureJWT("test-secret", 24)
	})

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed opening in-memory sqlite database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed getting sql.DB from gorm: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	if err := database.Migrate(db); err != nil {
		t.Fatalf("failed automigrating models: %v", err)
	}

	guardService := services.NewGuardService(db)
	notifyService := services.NewNotifyService(db, 64)
	t.Cleanup(notifyService.Close)

	authHandler := NewAuthHandler(db)
	usersHandler := NewUsersHandler(db)
	clubsHandler := NewClubsHandler(db, guardService, nil)
	membershipsHandler := NewMembershipsHandler(db, guardService, notifyService)
	eventsHandler := NewEventsHandler(db, guardService, notifyService, nil)
	announcementsHandler := NewAnnouncementsHandler(db, guardService, notifyService)
	notificationsHandler := NewNotificationsHandler(db)
	messagesHandler := NewMessagesHandler(db, notifyService)
	authMiddleware := middleware.NewAuthMiddleware(db)

	app := fiber.New(fiber.Config{BodyLimit: 10 * 1024 * 1024})
	app.Use(recover.New(recover.Config{EnableStackTrace: true}))

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

	return &testEnv{app: app, db: db, notify: notifyService}
}

// flushNotifications waits for the notify worker to drain before the
// test asserts on notification rows.
func (env *testEnv) flushNotifications() {
	env.notify.Flush(5 * time.Second)
}

func createTestUser(t *testing.T, db *gorm.DB, email, password string, role models.UserRole) (*models.User, string) {
	t.Helper()

	hash, err := utils.HashPassword(password)
	if err != nil {
		t.Fatalf("failed hashing password: %v", err)
	}

	user := &models.User{
		Email:        email,
		PasswordHash: hash,
		FirstName:    "Test",
		LastName:     "User",
		Role:         role,
		IsActive:     true,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed creating test user: %v", err)
	}

	token, err := utils.GenerateToken(user)
	if err != nil {
		t.Fatalf("failed generating auth token: %v", err)
	}

	return user, token
}

// createTestClub sets up a club with its leader the way the club-create
// endpoint would: leader promoted, affiliated, and holding an approved
// membership.
func createTestClub(t *testing.T, db *gorm.DB, leader *models.User, name string, status models.ClubStatus) *models.Club {
	t.Helper()

	club := &models.Club{
		Name:     name,
		Category: "academic",
		Status:   status,
		LeaderID: leader.ID,
	}
	if err := db.Create(club).Error; err != nil {
		t.Fatalf("failed creating test club: %v", err)
	}

	now := time.Now().UTC()
	membership := &models.Membership{
		UserID:   leader.ID,
		ClubID:   club.ID,
		Status:   models.MembershipStatusApproved,
		JoinedAt: &now,
	}
	if err := db.Create(membership).Error; err != nil {
		t.Fatalf("failed creating leader membership: %v", err)
	}

	updates := map[string]interface{}{"club_id": club.ID}
	if leader.Role == models.UserRoleMember {
		updates["role"] = models.UserRoleClubLeader
	}
	if err := db.Model(&models.User{}).Where("id = ?", leader.ID).Updates(updates).Error; err != nil {
		t.Fatalf("failed promoting leader: %v", err)
	}
	leader.ClubID = &club.ID
	if leader.Role == models.UserRoleMember {
		leader.Role = models.UserRoleClubLeader
	}

	return club
}

func createTestMembership(t *testing.T, db *gorm.DB, user *models.User, club *models.Club, status models.MembershipStatus) *models.Membership {
	t.Helper()

	membership := &models.Membership{
		UserID: user.ID,
		ClubID: club.ID,
		Status: status,
	}
	if status == models.MembershipStatusApproved {
		now := time.Now().UTC()
		membership.JoinedAt = &now
	}
	if err := db.Create(membership).Error; err != nil {
		t.Fatalf("failed creating test membership: %v", err)
	}

	return membership
}

func authHeaders(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func performRequest(t *testing.T, app *fiber.App, method, path string, body io.Reader, headers map[string]string) *http.Response {
	t.Helper()

	req := httptest.NewRequest(method, path, body)
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := app.Test(req, int((10 * time.Second).Milliseconds()))
	if err != nil {
		t.Fatalf("request %s %s failed: %v", method, path, err)
	}

	return resp
}

func performJSONRequest(t *testing.T, app *fiber.App, method, path string, payload any, headers map[string]string) *http.Response {
	t.Helper()

	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("failed to marshal payload: %v", err)
		}
		body = bytes.NewReader(encoded)
	}

	requestHeaders := map[string]string{}
	for key, value := range headers {
		requestHeaders[key] = value
	}
	if payload != nil {
		requestHeaders["Content-Type"] = "application/json"
	}

	return performRequest(t, app, method, path, body, requestHeaders)
}

func decodeJSONMap(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed reading response body: %v", err)
	}

	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		t.Fatalf("failed decoding JSON response: %v body=%q", err, string(raw))
	}

	return payload
}

func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Fatalf("expected status %d, got %d", expected, resp.StatusCode)
	}
}

func assertEnvelopeError(t *testing.T, body map[string]any, expected string) {
	t.Helper()
	if success, _ := body["success"].(bool); success {
		t.Fatalf("expected success=false, got %+v", body)
	}
	if got, _ := body["error"].(string); got != expected {
		t.Fatalf("expected error %q, got %q", expected, got)
	}
}

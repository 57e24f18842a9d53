package handlers

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/clubhub/backend/internal/middleware"
	"github.com/clubhub/backend/internal/models"
	"github.com/clubhub/backend/internal/services"
	"github.com/clubhub/backend/internal/storage"
	"github.com/clubhub/backend/pkg/logger"
	"github.com/clubhub/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type EventsHandler struct {
	DB      *gorm.DB
	Guard   *services.GuardService
	Notify  *services.NotifyService
	Storage *storage.MinIOClient
}

func NewEventsHandler(db *gorm.DB, guard *services.GuardService, notify *services.NotifyService, storageClient *storage.MinIOClient) *EventsHandler {
	return &EventsHandler{DB: db, Guard: guard, Notify: notify, Storage: storageClient}
}

type createEventRequest struct {
	Title       string    `json:"title"`
	Description *string   `json:"description"`
	Location    string    `json:"location"`
	StartsAt    time.Time `json:"startsAt"`
	EndsAt      time.Time `json:"endsAt"`
	Capacity    int       `json:"capacity"`
}

func (h *EventsHandler) Create(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	clubID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid club id")
	}

	if _, err := h.Guard.ClubForManage(clubID, currentUser); err != nil {
		return guardError(c, err, "club not found")
	}

	var req createEventRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	req.Title = strings.TrimSpace(req.Title)
	req.Location = strings.TrimSpace(req.Location)
	if req.Title == "" {
		return utils.Error(c, fiber.StatusBadRequest, "title is required")
	}
	if req.Location == "" {
		return utils.Error(c, fiber.StatusBadRequest, "location is required")
	}
	if req.StartsAt.IsZero() || req.EndsAt.IsZero() || !req.EndsAt.After(req.StartsAt) {
		return utils.Error(c, fiber.StatusBadRequest, "event must end after it starts")
	}
	if req.Capacity < 0 {
		return utils.Error(c, fiber.StatusBadRequest, "capacity cannot be negative")
	}

	event := models.Event{
		ClubID:      clubID,
		Title:       req.Title,
		Description: req.Description,
		Location:    req.Location,
		StartsAt:    req.StartsAt,
		EndsAt:      req.EndsAt,
		Capacity:    req.Capacity,
		Status:      models.EventStatusUpcoming,
	}

	if err := h.DB.Create(&event).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed creating event")
	}

	logger.InfoWithUser(currentUser.ID.String(), "event_created", map[string]interface{}{
		"event_id": event.ID.String(),
		"club_id":  clubID.String(),
	})

	return utils.Success(c, fiber.StatusCreated, event)
}

func (h *EventsHandler) List(c *fiber.Ctx) error {
	p := utils.ParsePagination(c)

	query := h.DB.Model(&models.Event{}).Preload("Club")
	if clubParam := c.Query("clubId"); clubParam != "" {
		clubID, err := parseUUID(clubParam)
		if err != nil {
			return utils.Error(c, fiber.StatusBadRequest, "invalid club id")
		}
		query = query.Where("club_id = ?", clubID)
	}
	if status := strings.TrimSpace(c.Query("status")); status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed counting events")
	}

	var events []models.Event
	if err := utils.ApplyPagination(query.Order("starts_at ASC"), p).Find(&events).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed listing events")
	}

	return utils.Paginated(c, events, p.Page, p.Limit, total)
}

func (h *EventsHandler) Get(c *fiber.Ctx) error {
	eventID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid event id")
	}

	event, err := h.Guard.Event(eventID)
	if err != nil {
		return guardError(c, err, "event not found")
	}

	var goingCount int64
	if err := h.DB.Model(&models.EventRSVP{}).
		Where("event_id = ? AND status = ?", eventID, models.RSVPStatusGoing).
		Count(&goingCount).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed counting rsvps")
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{
		"event":      event,
		"goingCount": goingCount,
	})
}

type updateEventRequest struct {
	Title       *string             `json:"title"`
	Description *string             `json:"description"`
	Location    *string             `json:"location"`
	StartsAt    *time.Time          `json:"startsAt"`
	EndsAt      *time.Time          `json:"endsAt"`
	Capacity    *int                `json:"capacity"`
	Status      *models.EventStatus `json:"status"`
}

func (h *EventsHandler) Update(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	eventID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid event id")
	}

	event, err := h.Guard.EventForManage(eventID, currentUser)
	if err != nil {
		return guardError(c, err, "event not found")
	}

	var req updateEventRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	updates := map[string]interface{}{}
	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return utils.Error(c, fiber.StatusBadRequest, "title cannot be empty")
		}
		updates["title"] = title
	}
	if req.Description != nil {
		trimmed := strings.TrimSpace(*req.Description)
		if trimmed == "" {
			updates["description"] = nil
		} else {
			updates["description"] = trimmed
		}
	}
	if req.Location != nil {
		location := strings.TrimSpace(*req.Location)
		if location == "" {
			return utils.Error(c, fiber.StatusBadRequest, "location cannot be empty")
		}
		updates["location"] = location
	}

	startsAt := event.StartsAt
	endsAt := event.EndsAt
	if req.StartsAt != nil {
		startsAt = *req.StartsAt
		updates["starts_at"] = startsAt
	}
	if req.EndsAt != nil {
		endsAt = *req.EndsAt
		updates["ends_at"] = endsAt
	}
	if !endsAt.After(startsAt) {
		return utils.Error(c, fiber.StatusBadRequest, "event must end after it starts")
	}

	if req.Capacity != nil {
		if *req.Capacity < 0 {
			return utils.Error(c, fiber.StatusBadRequest, "capacity cannot be negative")
		}
		updates["capacity"] = *req.Capacity
	}

	cancelled := false
	if req.Status != nil {
		switch *req.Status {
		case models.EventStatusUpcoming, models.EventStatusCancelled, models.EventStatusCompleted:
			updates["status"] = *req.Status
			cancelled = *req.Status == models.EventStatusCancelled && event.Status != models.EventStatusCancelled
		default:
			return utils.Error(c, fiber.StatusBadRequest, "invalid status")
		}
	}

	if len(updates) == 0 {
		return utils.Error(c, fiber.StatusBadRequest, "no valid fields to update")
	}

	if err := h.DB.Model(&models.Event{}).Where("id = ?", eventID).Updates(updates).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed updating event")
	}

	if cancelled {
		h.notifyCancellation(event)
	}

	var updated models.Event
	if err := h.DB.Preload("Club").First(&updated, "id = ?", eventID).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading updated event")
	}

	return utils.Success(c, fiber.StatusOK, updated)
}

func (h *EventsHandler) notifyCancellation(event *models.Event) {
	var userIDs []uuid.UUID
	err := h.DB.Model(&models.EventRSVP{}).
		Where("event_id = ? AND status = ?", event.ID, models.RSVPStatusGoing).
		Pluck("user_id", &userIDs).Error
	if err != nil {
		logger.Error("event_cancel_fanout_failed", err, map[string]interface{}{
			"event_id": event.ID.String(),
		})
		return
	}

	link := "/events/" + event.ID.String()
	for _, userID := range userIDs {
		h.Notify.Enqueue(
			userID,
			"Event Cancelled",
			fmt.Sprintf("%s has been cancelled", event.Title),
			models.NotificationTypeEvent,
			&link,
		)
	}
}

func (h *EventsHandler) Delete(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	eventID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid event id")
	}

	if _, err := h.Guard.EventForManage(eventID, currentUser); err != nil {
		return guardError(c, err, "event not found")
	}

	err = h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("event_id = ?", eventID).Delete(&models.EventRSVP{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Event{}, "id = ?", eventID).Error
	})
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed deleting event")
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{"message": "event deleted"})
}

type rsvpRequest struct {
	Status models.RSVPStatus `json:"status"`
}

// RSVP upserts on the (event, user) unique pair: changing your answer
// mutates the existing row.
func (h *EventsHandler) RSVP(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	eventID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid event id")
	}

	event, err := h.Guard.Event(eventID)
	if err != nil {
		return guardError(c, err, "event not found")
	}
	if event.Status != models.EventStatusUpcoming {
		return utils.Error(c, fiber.StatusBadRequest, "event is not open for rsvps")
	}

	approved, err := h.Guard.IsApprovedMember(event.ClubID, currentUser.ID)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed checking membership")
	}
	if !approved {
		return utils.Error(c, fiber.StatusForbidden, "club members only")
	}

	var req rsvpRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	if req.Status != models.RSVPStatusGoing && req.Status != models.RSVPStatusNotGoing {
		return utils.Error(c, fiber.StatusBadRequest, "invalid rsvp status")
	}

	if req.Status == models.RSVPStatusGoing && event.Capacity > 0 {
		var goingCount int64
		err := h.DB.Model(&models.EventRSVP{}).
			Where("event_id = ? AND status = ? AND user_id <> ?", eventID, models.RSVPStatusGoing, currentUser.ID).
			Count(&goingCount).Error
		if err != nil {
			return utils.Error(c, fiber.StatusInternalServerError, "failed counting rsvps")
		}
		if goingCount >= int64(event.Capacity) {
			return utils.Error(c, fiber.StatusConflict, "event is full")
		}
	}

	var rsvp models.EventRSVP
	err = h.DB.First(&rsvp, "event_id = ? AND user_id = ?", eventID, currentUser.ID).Error
	if err == nil {
		if err := h.DB.Model(&models.EventRSVP{}).Where("id = ?", rsvp.ID).Update("status", req.Status).Error; err != nil {
			return utils.Error(c, fiber.StatusInternalServerError, "failed updating rsvp")
		}
		rsvp.Status = req.Status
		return utils.Success(c, fiber.StatusOK, rsvp)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading rsvp")
	}

	rsvp = models.EventRSVP{
		EventID: eventID,
		UserID:  currentUser.ID,
		Status:  req.Status,
	}
	if err := h.DB.Create(&rsvp).Error; err != nil {
		return utils.Error(c, fiber.StatusConflict, "rsvp already recorded")
	}

	return utils.Success(c, fiber.StatusCreated, rsvp)
}

func (h *EventsHandler) ListRSVPs(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	eventID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid event id")
	}

	if _, err := h.Guard.EventForManage(eventID, currentUser); err != nil {
		return guardError(c, err, "event not found")
	}

	query := h.DB.Preload("User").Where("event_id = ?", eventID)
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var rsvps []models.EventRSVP
	if err := query.Order("created_at ASC").Find(&rsvps).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed listing rsvps")
	}

	return utils.Success(c, fiber.StatusOK, rsvps)
}

func (h *EventsHandler) UploadBanner(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	eventID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid event id")
	}

	event, err := h.Guard.EventForManage(eventID, currentUser)
	if err != nil {
		return guardError(c, err, "event not found")
	}

	if h.Storage == nil {
		return utils.Error(c, fiber.StatusServiceUnavailable, "object storage not configured")
	}

	fileHeader, err := c.FormFile("banner")
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "banner file is required")
	}

	contentType := fileHeader.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		return utils.Error(c, fiber.StatusBadRequest, "banner must be an image")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed reading upload")
	}
	defer file.Close()

	objectName := fmt.Sprintf("events/%s/banner-%s", eventID, uuid.NewString())
	if err := h.Storage.Upload(c.Context(), objectName, file, fileHeader.Size, contentType); err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed storing banner")
	}

	if event.BannerURL != nil && *event.BannerURL != "" {
		_ = h.Storage.Delete(c.Context(), *event.BannerURL)
	}

	if err := h.DB.Model(&models.Event{}).Where("id = ?", eventID).Update("banner_url", objectName).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed updating event")
	}

	url, err := h.Storage.PresignedGetURL(c.Context(), objectName, 24*time.Hour)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed generating banner url")
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{"bannerURL": url})
}

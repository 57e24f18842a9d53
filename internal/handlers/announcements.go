package handlers

import (
	"fmt"
	"strings"

	"github.com/clubhub/backend/internal/middleware"
	"github.com/clubhub/backend/internal/models"
	"github.com/clubhub/backend/internal/services"
	"github.com/clubhub/backend/pkg/logger"
	"github.com/clubhub/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AnnouncementsHandler struct {
	DB     *gorm.DB
	Guard  *services.GuardService
	Notify *services.NotifyService
}

func NewAnnouncementsHandler(db *gorm.DB, guard *services.GuardService, notify *services.NotifyService) *AnnouncementsHandler {
	return &AnnouncementsHandler{DB: db, Guard: guard, Notify: notify}
}

type createAnnouncementRequest struct {
	Title  string `json:"title"`
	Body   string `json:"body"`
	Pinned bool   `json:"pinned"`
}

func (h *AnnouncementsHandler) Create(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	clubID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid club id")
	}

	club, err := h.Guard.ClubForManage(clubID, currentUser)
	if err != nil {
		return guardError(c, err, "club not found")
	}

	var req createAnnouncementRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	req.Title = strings.TrimSpace(req.Title)
	req.Body = strings.TrimSpace(req.Body)
	if req.Title == "" {
		return utils.Error(c, fiber.StatusBadRequest, "title is required")
	}
	if req.Body == "" {
		return utils.Error(c, fiber.StatusBadRequest, "body is required")
	}

	announcement := models.Announcement{
		ClubID:   clubID,
		AuthorID: currentUser.ID,
		Title:    req.Title,
		Body:     req.Body,
		Pinned:   req.Pinned,
	}

	if err := h.DB.Create(&announcement).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed creating announcement")
	}

	logger.InfoWithUser(currentUser.ID.String(), "announcement_created", map[string]interface{}{
		"announcement_id": announcement.ID.String(),
		"club_id":         clubID.String(),
	})

	h.fanOutToMembers(club, &announcement, currentUser.ID)

	return utils.Success(c, fiber.StatusCreated, announcement)
}

// fanOutToMembers notifies every approved member except the author.
func (h *AnnouncementsHandler) fanOutToMembers(club *models.Club, announcement *models.Announcement, authorID uuid.UUID) {
	var userIDs []uuid.UUID
	err := h.DB.Model(&models.Membership{}).
		Where("club_id = ? AND status = ? AND user_id <> ?", club.ID, models.MembershipStatusApproved, authorID).
		Pluck("user_id", &userIDs).Error
	if err != nil {
		logger.Error("announcement_fanout_failed", err, map[string]interface{}{
			"announcement_id": announcement.ID.String(),
		})
		return
	}

	link := "/clubs/" + club.ID.String() + "/announcements"
	for _, userID := range userIDs {
		h.Notify.Enqueue(
			userID,
			fmt.Sprintf("%s: %s", club.Name, announcement.Title),
			announcement.Body,
			models.NotificationTypeAnnouncement,
			&link,
		)
	}
}

// List is readable by approved members, the leader, and admins.
func (h *AnnouncementsHandler) List(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	clubID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid club id")
	}

	club, err := h.Guard.Club(clubID)
	if err != nil {
		return guardError(c, err, "club not found")
	}

	allowed := currentUser.Role == models.UserRoleAdmin || club.LeaderID == currentUser.ID
	if !allowed {
		approved, err := h.Guard.IsApprovedMember(clubID, currentUser.ID)
		if err != nil {
			return utils.Error(c, fiber.StatusInternalServerError, "failed checking membership")
		}
		allowed = approved
	}
	if !allowed {
		return utils.Error(c, fiber.StatusForbidden, "club members only")
	}

	p := utils.ParsePagination(c)
	query := h.DB.Model(&models.Announcement{}).Where("club_id = ?", clubID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed counting announcements")
	}

	var announcements []models.Announcement
	err = utils.ApplyPagination(query.Preload("Author").Order("pinned DESC, created_at DESC"), p).
		Find(&announcements).Error
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed listing announcements")
	}

	return utils.Paginated(c, announcements, p.Page, p.Limit, total)
}

type updateAnnouncementRequest struct {
	Title  *string `json:"title"`
	Body   *string `json:"body"`
	Pinned *bool   `json:"pinned"`
}

func (h *AnnouncementsHandler) Update(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	announcementID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid announcement id")
	}

	announcement, err := h.Guard.AnnouncementForManage(announcementID, currentUser)
	if err != nil {
		return guardError(c, err, "announcement not found")
	}

	var req updateAnnouncementRequest
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
	if req.Body != nil {
		body := strings.TrimSpace(*req.Body)
		if body == "" {
			return utils.Error(c, fiber.StatusBadRequest, "body cannot be empty")
		}
		updates["body"] = body
	}
	if req.Pinned != nil {
		updates["pinned"] = *req.Pinned
	}

	if len(updates) == 0 {
		return utils.Error(c, fiber.StatusBadRequest, "no valid fields to update")
	}

	if err := h.DB.Model(&models.Announcement{}).Where("id = ?", announcement.ID).Updates(updates).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed updating announcement")
	}

	var updated models.Announcement
	if err := h.DB.First(&updated, "id = ?", announcement.ID).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading updated announcement")
	}

	return utils.Success(c, fiber.StatusOK, updated)
}

func (h *AnnouncementsHandler) Delete(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	announcementID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid announcement id")
	}

	announcement, err := h.Guard.AnnouncementForManage(announcementID, currentUser)
	if err != nil {
		return guardError(c, err, "announcement not found")
	}

	if err := h.DB.Delete(&models.Announcement{}, "id = ?", announcement.ID).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed deleting announcement")
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{"message": "announcement deleted"})
}

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

type ClubsHandler struct {
	DB      *gorm.DB
	Guard   *services.GuardService
	Storage *storage.MinIOClient
}

func NewClubsHandler(db *gorm.DB, guard *services.GuardService, storageClient *storage.MinIOClient) *ClubsHandler {
	return &ClubsHandler{DB: db, Guard: guard, Storage: storageClient}
}

type createClubRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
	Category    string  `json:"category"`
}

// Create makes the caller the club's leader: their role is promoted from
// member to club_leader, their affiliation is set, and they get an
// approved membership row, all in one transaction.
func (h *ClubsHandler) Create(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	if currentUser.Role == models.UserRoleClubLeader {
		return utils.Error(c, fiber.StatusBadRequest, "you already lead a club")
	}

	var req createClubRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Category = strings.TrimSpace(req.Category)
	if req.Name == "" {
		return utils.Error(c, fiber.StatusBadRequest, "name is required")
	}
	if req.Category == "" {
		return utils.Error(c, fiber.StatusBadRequest, "category is required")
	}

	var existing int64
	if err := h.DB.Model(&models.Club{}).Where("LOWER(name) = ?", strings.ToLower(req.Name)).Count(&existing).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed checking club name")
	}
	if existing > 0 {
		return utils.Error(c, fiber.StatusConflict, "a club with this name already exists")
	}

	club := models.Club{
		Name:        req.Name,
		Description: req.Description,
		Category:    req.Category,
		Status:      models.ClubStatusActive,
		LeaderID:    currentUser.ID,
	}

	err := h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&club).Error; err != nil {
			return err
		}

		now := time.Now().UTC()
		membership := models.Membership{
			UserID:   currentUser.ID,
			ClubID:   club.ID,
			Status:   models.MembershipStatusApproved,
			JoinedAt: &now,
		}
		if err := tx.Create(&membership).Error; err != nil {
			return err
		}

		userUpdates := map[string]interface{}{"club_id": club.ID}
		if currentUser.Role == models.UserRoleMember {
			userUpdates["role"] = models.UserRoleClubLeader
		}
		return tx.Model(&models.User{}).Where("id = ?", currentUser.ID).Updates(userUpdates).Error
	})
	if err != nil {
		return utils.Error(c, fiber.StatusConflict, "a club with this name already exists")
	}

	logger.InfoWithUser(currentUser.ID.String(), "club_created", map[string]interface{}{
		"club_id":   club.ID.String(),
		"club_name": club.Name,
	})

	return utils.Success(c, fiber.StatusCreated, club)
}

func (h *ClubsHandler) List(c *fiber.Ctx) error {
	p := utils.ParsePagination(c)

	query := h.DB.Model(&models.Club{}).Preload("Leader")
	if search := strings.TrimSpace(c.Query("search")); search != "" {
		searchValue := "%" + strings.ToLower(search) + "%"
		query = query.Where("LOWER(name) LIKE ? OR LOWER(description) LIKE ?", searchValue, searchValue)
	}
	if category := strings.TrimSpace(c.Query("category")); category != "" {
		query = query.Where("category = ?", category)
	}
	if status := strings.TrimSpace(c.Query("status")); status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed counting clubs")
	}

	var clubs []models.Club
	if err := utils.ApplyPagination(query.Order("created_at DESC"), p).Find(&clubs).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed listing clubs")
	}

	return utils.Paginated(c, clubs, p.Page, p.Limit, total)
}

func (h *ClubsHandler) Get(c *fiber.Ctx) error {
	clubID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid club id")
	}

	var club models.Club
	if err := h.DB.Preload("Leader").First(&club, "id = ?", clubID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.Error(c, fiber.StatusNotFound, "club not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading club")
	}

	var memberCount int64
	if err := h.DB.Model(&models.Membership{}).
		Where("club_id = ? AND status = ?", clubID, models.MembershipStatusApproved).
		Count(&memberCount).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed counting members")
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{
		"club":        club,
		"memberCount": memberCount,
	})
}

type updateClubRequest struct {
	Name        *string            `json:"name"`
	Description *string            `json:"description"`
	Category    *string            `json:"category"`
	Status      *models.ClubStatus `json:"status"`
}

func (h *ClubsHandler) Update(c *fiber.Ctx) error {
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

	var req updateClubRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return utils.Error(c, fiber.StatusBadRequest, "name cannot be empty")
		}
		updates["name"] = name
	}
	if req.Description != nil {
		trimmed := strings.TrimSpace(*req.Description)
		if trimmed == "" {
			updates["description"] = nil
		} else {
			updates["description"] = trimmed
		}
	}
	if req.Category != nil {
		category := strings.TrimSpace(*req.Category)
		if category == "" {
			return utils.Error(c, fiber.StatusBadRequest, "category cannot be empty")
		}
		updates["category"] = category
	}
	if req.Status != nil {
		if currentUser.Role != models.UserRoleAdmin {
			return utils.Error(c, fiber.StatusForbidden, "only admins can change club status")
		}
		switch *req.Status {
		case models.ClubStatusActive, models.ClubStatusInactive, models.ClubStatusSuspended:
			updates["status"] = *req.Status
		default:
			return utils.Error(c, fiber.StatusBadRequest, "invalid status")
		}
	}

	if len(updates) == 0 {
		return utils.Error(c, fiber.StatusBadRequest, "no valid fields to update")
	}

	if err := h.DB.Model(&models.Club{}).Where("id = ?", clubID).Updates(updates).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed updating club")
	}

	var updated models.Club
	if err := h.DB.Preload("Leader").First(&updated, "id = ?", clubID).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading updated club")
	}

	return utils.Success(c, fiber.StatusOK, updated)
}

// Delete cascades over the club's memberships, events, RSVPs and
// announcements, then demotes the leader back to plain member.
func (h *ClubsHandler) Delete(c *fiber.Ctx) error {
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

	err = h.DB.Transaction(func(tx *gorm.DB) error {
		var eventIDs []uuid.UUID
		if err := tx.Model(&models.Event{}).Where("club_id = ?", clubID).Pluck("id", &eventIDs).Error; err != nil {
			return err
		}
		if len(eventIDs) > 0 {
			if err := tx.Where("event_id IN ?", eventIDs).Delete(&models.EventRSVP{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("club_id = ?", clubID).Delete(&models.Event{}).Error; err != nil {
			return err
		}
		if err := tx.Where("club_id = ?", clubID).Delete(&models.Announcement{}).Error; err != nil {
			return err
		}
		if err := tx.Where("club_id = ?", clubID).Delete(&models.Membership{}).Error; err != nil {
			return err
		}

		leaderUpdates := map[string]interface{}{"club_id": nil}
		if err := tx.Model(&models.User{}).
			Where("id = ? AND role = ?", club.LeaderID, models.UserRoleClubLeader).
			Update("role", models.UserRoleMember).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.User{}).Where("id = ?", club.LeaderID).Updates(leaderUpdates).Error; err != nil {
			return err
		}

		return tx.Delete(&models.Club{}, "id = ?", clubID).Error
	})
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed deleting club")
	}

	logger.InfoWithUser(currentUser.ID.String(), "club_deleted", map[string]interface{}{
		"club_id": clubID.String(),
	})

	return utils.Success(c, fiber.StatusOK, fiber.Map{"message": "club deleted"})
}

func (h *ClubsHandler) UploadLogo(c *fiber.Ctx) error {
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

	if h.Storage == nil {
		return utils.Error(c, fiber.StatusServiceUnavailable, "object storage not configured")
	}

	fileHeader, err := c.FormFile("logo")
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "logo file is required")
	}

	contentType := fileHeader.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		return utils.Error(c, fiber.StatusBadRequest, "logo must be an image")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed reading upload")
	}
	defer file.Close()

	objectName := fmt.Sprintf("clubs/%s/logo-%s", clubID, uuid.NewString())
	if err := h.Storage.Upload(c.Context(), objectName, file, fileHeader.Size, contentType); err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed storing logo")
	}

	if club.LogoURL != nil && *club.LogoURL != "" {
		// Best effort; a stale object is not worth failing the request.
		_ = h.Storage.Delete(c.Context(), *club.LogoURL)
	}

	if err := h.DB.Model(&models.Club{}).Where("id = ?", clubID).Update("logo_url", objectName).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed updating club")
	}

	url, err := h.Storage.PresignedGetURL(c.Context(), objectName, 24*time.Hour)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed generating logo url")
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{"logoURL": url})
}

package handlers

import (
	"errors"
	"fmt"
	"time"

	"github.com/clubhub/backend/internal/middleware"
	"github.com/clubhub/backend/internal/models"
	"github.com/clubhub/backend/internal/services"
	"github.com/clubhub/backend/pkg/logger"
	"github.com/clubhub/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type MembershipsHandler struct {
	DB     *gorm.DB
	Guard  *services.GuardService
	Notify *services.NotifyService
}

func NewMembershipsHandler(db *gorm.DB, guard *services.GuardService, notify *services.NotifyService) *MembershipsHandler {
	return &MembershipsHandler{DB: db, Guard: guard, Notify: notify}
}

// Join handles NONE->PENDING and REJECTED->PENDING. A row in pending or
// approved state blocks the request; a rejected row is flipped back to
// pending instead of inserting a second one.
func (h *MembershipsHandler) Join(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	clubID, err := parseUUID(c.Params("clubId"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid club id")
	}

	club, err := h.Guard.Club(clubID)
	if err != nil {
		return guardError(c, err, "club not found")
	}
	if club.Status != models.ClubStatusActive {
		return utils.Error(c, fiber.StatusBadRequest, "club is not accepting new members")
	}

	var membership models.Membership
	err = h.DB.First(&membership, "club_id = ? AND user_id = ?", clubID, currentUser.ID).Error
	if err == nil {
		switch membership.Status {
		case models.MembershipStatusApproved:
			return utils.Error(c, fiber.StatusConflict, "already a member of this club")
		case models.MembershipStatusPending:
			return utils.Error(c, fiber.StatusConflict, "join request already pending")
		case models.MembershipStatusRejected:
			updates := map[string]interface{}{
				"status":    models.MembershipStatusPending,
				"joined_at": nil,
			}
			if err := h.DB.Model(&models.Membership{}).Where("id = ?", membership.ID).Updates(updates).Error; err != nil {
				return utils.Error(c, fiber.StatusInternalServerError, "failed updating membership")
			}
			membership.Status = models.MembershipStatusPending
			membership.JoinedAt = nil

			h.notifyJoinRequest(club, currentUser)
			return utils.Success(c, fiber.StatusOK, membership)
		}
	}
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading membership")
	}

	membership = models.Membership{
		UserID: currentUser.ID,
		ClubID: clubID,
		Status: models.MembershipStatusPending,
	}
	if err := h.DB.Create(&membership).Error; err != nil {
		// Two concurrent joins race on the (user, club) unique index; the
		// loser lands here.
		return utils.Error(c, fiber.StatusConflict, "join request already pending")
	}

	logger.InfoWithUser(currentUser.ID.String(), "membership_requested", map[string]interface{}{
		"club_id": clubID.String(),
	})

	h.notifyJoinRequest(club, currentUser)
	return utils.Success(c, fiber.StatusCreated, membership)
}

func (h *MembershipsHandler) notifyJoinRequest(club *models.Club, requester *models.User) {
	link := "/clubs/" + club.ID.String() + "/members"
	h.Notify.Enqueue(
		club.LeaderID,
		"New Join Request",
		fmt.Sprintf("%s %s requested to join %s", requester.FirstName, requester.LastName, club.Name),
		models.NotificationTypeMembership,
		&link,
	)
}

type updateMembershipStatusRequest struct {
	Status models.MembershipStatus `json:"status"`
}

// UpdateStatus handles PENDING->APPROVED and PENDING->REJECTED. Approving
// an already approved row is a no-op apart from resetting joined_at.
func (h *MembershipsHandler) UpdateStatus(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	membershipID, err := parseUUID(c.Params("membershipId"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid membership id")
	}

	membership, err := h.Guard.MembershipForManage(membershipID, currentUser)
	if err != nil {
		return guardError(c, err, "membership not found")
	}

	var req updateMembershipStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	if req.Status != models.MembershipStatusApproved && req.Status != models.MembershipStatusRejected {
		return utils.Error(c, fiber.StatusBadRequest, "invalid status")
	}

	updates := map[string]interface{}{"status": req.Status}
	var joinedAt *time.Time
	if req.Status == models.MembershipStatusApproved {
		now := time.Now().UTC()
		joinedAt = &now
		updates["joined_at"] = now
	} else {
		updates["joined_at"] = nil
	}

	if err := h.DB.Model(&models.Membership{}).Where("id = ?", membership.ID).Updates(updates).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed updating membership")
	}
	membership.Status = req.Status
	membership.JoinedAt = joinedAt

	logger.InfoWithUser(currentUser.ID.String(), "membership_status_updated", map[string]interface{}{
		"membership_id": membership.ID.String(),
		"club_id":       membership.ClubID.String(),
		"status":        string(req.Status),
	})

	link := "/clubs/" + membership.ClubID.String()
	if req.Status == models.MembershipStatusApproved {
		h.Notify.Enqueue(
			membership.UserID,
			"Membership Approved",
			fmt.Sprintf("Your request to join %s was approved", membership.Club.Name),
			models.NotificationTypeMembership,
			&link,
		)
	} else {
		h.Notify.Enqueue(
			membership.UserID,
			"Membership Rejected",
			fmt.Sprintf("Your request to join %s was rejected", membership.Club.Name),
			models.NotificationTypeMembership,
			&link,
		)
	}

	return utils.Success(c, fiber.StatusOK, membership)
}

// Leave is self-initiated, so it sends no notification. The club leader
// cannot leave through this path; leadership must be handed over first.
func (h *MembershipsHandler) Leave(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	clubID, err := parseUUID(c.Params("clubId"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid club id")
	}

	club, err := h.Guard.Club(clubID)
	if err != nil {
		return guardError(c, err, "club not found")
	}
	if club.LeaderID == currentUser.ID {
		return utils.Error(c, fiber.StatusBadRequest, "club leader cannot leave their own club")
	}

	result := h.DB.Delete(&models.Membership{}, "club_id = ? AND user_id = ?", clubID, currentUser.ID)
	if result.Error != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed leaving club")
	}
	if result.RowsAffected == 0 {
		return utils.Error(c, fiber.StatusNotFound, "membership not found")
	}

	logger.InfoWithUser(currentUser.ID.String(), "membership_left", map[string]interface{}{
		"club_id": clubID.String(),
	})

	return utils.Success(c, fiber.StatusOK, fiber.Map{"message": "left club"})
}

func (h *MembershipsHandler) Remove(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	membershipID, err := parseUUID(c.Params("membershipId"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid membership id")
	}

	membership, err := h.Guard.MembershipForManage(membershipID, currentUser)
	if err != nil {
		return guardError(c, err, "membership not found")
	}

	// The leader's own membership is not removable, not even by an admin.
	if membership.UserID == membership.Club.LeaderID {
		return utils.Error(c, fiber.StatusBadRequest, "cannot remove the club leader")
	}

	if err := h.DB.Delete(&models.Membership{}, "id = ?", membership.ID).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed removing member")
	}

	logger.InfoWithUser(currentUser.ID.String(), "membership_removed", map[string]interface{}{
		"membership_id": membership.ID.String(),
		"club_id":       membership.ClubID.String(),
	})

	link := "/clubs/" + membership.ClubID.String()
	h.Notify.Enqueue(
		membership.UserID,
		"Removed from Club",
		fmt.Sprintf("You were removed from %s", membership.Club.Name),
		models.NotificationTypeMembership,
		&link,
	)

	return utils.Success(c, fiber.StatusOK, fiber.Map{"message": "member removed"})
}

func (h *MembershipsHandler) MyMemberships(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var memberships []models.Membership
	err := h.DB.Preload("Club").
		Where("user_id = ?", currentUser.ID).
		Order("created_at DESC").
		Find(&memberships).Error
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed listing memberships")
	}

	return utils.Success(c, fiber.StatusOK, memberships)
}

func (h *MembershipsHandler) Check(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	clubID, err := parseUUID(c.Params("clubId"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid club id")
	}

	var membership models.Membership
	err = h.DB.First(&membership, "club_id = ? AND user_id = ?", clubID, currentUser.ID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.Success(c, fiber.StatusOK, fiber.Map{"isMember": false, "status": nil})
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed checking membership")
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{
		"isMember": membership.Status == models.MembershipStatusApproved,
		"status":   membership.Status,
	})
}

func (h *MembershipsHandler) ClubMembers(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	clubID, err := parseUUID(c.Params("clubId"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid club id")
	}

	if _, err := h.Guard.ClubForManage(clubID, currentUser); err != nil {
		return guardError(c, err, "club not found")
	}

	query := h.DB.Preload("User").Where("club_id = ?", clubID)
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var memberships []models.Membership
	if err := query.Order("created_at ASC").Find(&memberships).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed listing members")
	}

	return utils.Success(c, fiber.StatusOK, memberships)
}

// ClubStats returns the dashboard counters per membership status.
func (h *MembershipsHandler) ClubStats(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	clubID, err := parseUUID(c.Params("clubId"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid club id")
	}

	if _, err := h.Guard.ClubForManage(clubID, currentUser); err != nil {
		return guardError(c, err, "club not found")
	}

	stats := fiber.Map{}
	for _, status := range []models.MembershipStatus{
		models.MembershipStatusApproved,
		models.MembershipStatusPending,
		models.MembershipStatusRejected,
	} {
		var count int64
		if err := h.DB.Model(&models.Membership{}).
			Where("club_id = ? AND status = ?", clubID, status).
			Count(&count).Error; err != nil {
			return utils.Error(c, fiber.StatusInternalServerError, "failed counting memberships")
		}
		stats[string(status)] = count
	}

	return utils.Success(c, fiber.StatusOK, stats)
}

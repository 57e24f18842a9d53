package handlers

import (
	"errors"
	"fmt"
	"strings"

	"github.com/clubhub/backend/internal/middleware"
	"github.com/clubhub/backend/internal/models"
	"github.com/clubhub/backend/internal/services"
	"github.com/clubhub/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type MessagesHandler struct {
	DB     *gorm.DB
	Notify *services.NotifyService
}

func NewMessagesHandler(db *gorm.DB, notify *services.NotifyService) *MessagesHandler {
	return &MessagesHandler{DB: db, Notify: notify}
}

type sendMessageRequest struct {
	RecipientID uuid.UUID `json:"recipientID"`
	Body        string    `json:"body"`
}

func (h *MessagesHandler) Send(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var req sendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	req.Body = strings.TrimSpace(req.Body)
	if req.Body == "" {
		return utils.Error(c, fiber.StatusBadRequest, "message body is required")
	}
	if req.RecipientID == uuid.Nil {
		return utils.Error(c, fiber.StatusBadRequest, "recipientID is required")
	}
	if req.RecipientID == currentUser.ID {
		return utils.Error(c, fiber.StatusBadRequest, "cannot message yourself")
	}

	var recipient models.User
	if err := h.DB.First(&recipient, "id = ? AND is_active = ?", req.RecipientID, true).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.Error(c, fiber.StatusNotFound, "recipient not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading recipient")
	}

	message := models.Message{
		SenderID:    currentUser.ID,
		RecipientID: recipient.ID,
		Body:        req.Body,
	}
	if err := h.DB.Create(&message).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed sending message")
	}

	link := "/messages/" + currentUser.ID.String()
	h.Notify.Enqueue(
		recipient.ID,
		"New Message",
		fmt.Sprintf("%s %s sent you a message", currentUser.FirstName, currentUser.LastName),
		models.NotificationTypeMessage,
		&link,
	)

	return utils.Success(c, fiber.StatusCreated, message)
}

type conversationSummary struct {
	PeerID      uuid.UUID      `json:"peerID"`
	Peer        models.User    `json:"peer"`
	LastMessage models.Message `json:"lastMessage"`
	UnreadCount int64          `json:"unreadCount"`
}

// Conversations returns the most recent message per peer, newest first.
func (h *MessagesHandler) Conversations(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var messages []models.Message
	err := h.DB.Preload("Sender").Preload("Recipient").
		Where("sender_id = ? OR recipient_id = ?", currentUser.ID, currentUser.ID).
		Order("created_at DESC").
		Limit(500).
		Find(&messages).Error
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed listing conversations")
	}

	seen := map[uuid.UUID]bool{}
	summaries := []conversationSummary{}
	for _, message := range messages {
		peerID := message.SenderID
		peer := message.Sender
		if peerID == currentUser.ID {
			peerID = message.RecipientID
			peer = message.Recipient
		}
		if seen[peerID] {
			continue
		}
		seen[peerID] = true

		var unread int64
		err := h.DB.Model(&models.Message{}).
			Where("sender_id = ? AND recipient_id = ? AND is_read = ?", peerID, currentUser.ID, false).
			Count(&unread).Error
		if err != nil {
			return utils.Error(c, fiber.StatusInternalServerError, "failed counting unread messages")
		}

		summaries = append(summaries, conversationSummary{
			PeerID:      peerID,
			Peer:        peer,
			LastMessage: message,
			UnreadCount: unread,
		})
	}

	return utils.Success(c, fiber.StatusOK, summaries)
}

// Thread returns the two-way history with one peer and marks the
// incoming side as read.
func (h *MessagesHandler) Thread(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	peerID, err := parseUUID(c.Params("userId"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid user id")
	}

	p := utils.ParsePagination(c)
	query := h.DB.Model(&models.Message{}).Where(
		"(sender_id = ? AND recipient_id = ?) OR (sender_id = ? AND recipient_id = ?)",
		currentUser.ID, peerID, peerID, currentUser.ID,
	)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed counting messages")
	}

	var messages []models.Message
	if err := utils.ApplyPagination(query.Order("created_at DESC"), p).Find(&messages).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed listing messages")
	}

	err = h.DB.Model(&models.Message{}).
		Where("sender_id = ? AND recipient_id = ? AND is_read = ?", peerID, currentUser.ID, false).
		Update("is_read", true).Error
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed marking messages read")
	}

	return utils.Paginated(c, messages, p.Page, p.Limit, total)
}

package services

import (
	"sync/atomic"
	"time"

	"github.com/clubhub/backend/internal/models"
	"github.com/clubhub/backend/pkg/logger"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// NotifyService writes notification rows off the request path. Delivery
// is best effort: Enqueue never blocks and never returns an error, and a
// failed insert must not affect the workflow that triggered it.
type NotifyService struct {
	DB      *gorm.DB
	queue   chan models.Notification
	done    chan struct{}
	closed  atomic.Bool
	pending atomic.Int32
}

func NewNotifyService(db *gorm.DB, bufferSize int) *NotifyService {
	if bufferSize <= 0 {
		bufferSize = 1000
	}
	s := &NotifyService{
		DB:    db,
		queue: make(chan models.Notification, bufferSize),
		done:  make(chan struct{}),
	}
	go s.processQueue()
	return s
}

func (s *NotifyService) Enqueue(userID uuid.UUID, title, message string, notificationType models.NotificationType, link *string) {
	if s.closed.Load() {
		return
	}

	row := models.Notification{
		UserID:  userID,
		Title:   title,
		Message: message,
		Type:    notificationType,
		Link:    link,
	}

	s.pending.Add(1)
	select {
	case s.queue <- row:
	default:
		s.pending.Add(-1)
		logger.Warn("notify_queue_full", map[string]interface{}{
			"user_id": userID.String(),
			"type":    string(notificationType),
			"dropped": true,
		})
	}
}

func (s *NotifyService) processQueue() {
	defer close(s.done)
	for row := range s.queue {
		if err := s.DB.Create(&row).Error; err != nil {
			logger.Error("notification_insert_failed", err, map[string]interface{}{
				"user_id": row.UserID.String(),
				"type":    string(row.Type),
			})
		}
		s.pending.Add(-1)
	}
}

// Flush blocks until the queue has drained or the timeout elapses. Used
// by tests that assert on rows written by the worker.
func (s *NotifyService) Flush(timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for s.pending.Load() > 0 {
		if time.Now().After(deadline) {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
}

// Close stops accepting new notifications and waits for the worker to
// finish the remaining queue.
func (s *NotifyService) Close() {
	if s.closed.Swap(true) {
		return
	}
	close(s.queue)
	<-s.done
}

package services

import (
	"testing"
	"time"

	"github.com/clubhub/backend/internal/models"
)

func TestNotifyEnqueueWritesRow(t *testing.T) {
	db := openTestDB(t)
	notify := NewNotifyService(db, 16)
	t.Cleanup(notify.Close)

	user := seedUser(t, db, "notify-user@test.com", models.UserRoleMember)

	link := "/clubs/somewhere"
	notify.Enqueue(user.ID, "Hello", "something happened", models.NotificationTypeMembership, &link)
	notify.Flush(5 * time.Second)

	var row models.Notification
	if err := db.First(&row, "user_id = ?", user.ID).Error; err != nil {
		t.Fatalf("expected notification row: %v", err)
	}
	if row.Title != "Hello" || row.Type != models.NotificationTypeMembership {
		t.Fatalf("unexpected row %+v", row)
	}
	if row.Link == nil || *row.Link != link {
		t.Fatalf("expected link persisted")
	}
	if row.IsRead {
		t.Fatalf("new notification must start unread")
	}
}

// Enqueue is fire and forget: a full queue drops instead of blocking the
// caller, and inserts that fail never surface.
func TestNotifyQueueOverflowDoesNotBlock(t *testing.T) {
	db := openTestDB(t)
	notify := NewNotifyService(db, 1)
	user := seedUser(t, db, "notify-burst@test.com", models.UserRoleMember)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 500; i++ {
			notify.Enqueue(user.ID, "Burst", "flood", models.NotificationTypeEvent, nil)
		}
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Enqueue blocked on a full queue")
	}

	notify.Flush(5 * time.Second)
	notify.Close()
}

func TestNotifyInsertFailureDoesNotAffectCaller(t *testing.T) {
	db := openTestDB(t)
	notify := NewNotifyService(db, 16)
	t.Cleanup(notify.Close)

	user := seedUser(t, db, "notify-broken@test.com", models.UserRoleMember)

	// Drop the table out from under the worker; the insert fails but the
	// caller never sees it.
	if err := db.Migrator().DropTable(&models.Notification{}); err != nil {
		t.Fatalf("failed dropping table: %v", err)
	}

	notify.Enqueue(user.ID, "Doomed", "this insert fails", models.NotificationTypeMessage, nil)
	notify.Flush(5 * time.Second)
}

func TestNotifyEnqueueAfterCloseIsNoop(t *testing.T) {
	db := openTestDB(t)
	notify := NewNotifyService(db, 16)
	user := seedUser(t, db, "notify-closed@test.com", models.UserRoleMember)

	notify.Close()
	notify.Enqueue(user.ID, "Too Late", "queue is closed", models.NotificationTypeMembership, nil)

	var count int64
	db.Model(&models.Notification{}).Where("user_id = ?", user.ID).Count(&count)
	if count != 0 {
		t.Fatalf("expected no rows after close, got %d", count)
	}
}

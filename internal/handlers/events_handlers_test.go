package handlers

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/clubhub/backend/internal/models"
)

func futureEventTimes() (time.Time, time.Time) {
	start := time.Now().UTC().Add(48 * time.Hour).Truncate(time.Second)
	return start, start.Add(2 * time.Hour)
}

func createTestEvent(t *testing.T, env *testEnv, token string, club *models.Club, title string) *models.Event {
	t.Helper()

	start, end := futureEventTimes()
	resp := performJSONRequest(t, env.app, http.MethodPost, "/api/clubs/"+club.ID.String()+"/events", map[string]any{
		"title":    title,
		"location": "Main Hall",
		"startsAt": start.Format(time.RFC3339),
		"endsAt":   end.Format(time.RFC3339),
	}, authHeaders(token))
	if resp.StatusCode != http.StatusCreated {
		body := decodeJSONMap(t, resp)
		t.Fatalf("failed creating event: %+v", body)
	}
	resp.Body.Close()

	var event models.Event
	if err := env.db.First(&event, "title = ? AND club_id = ?", title, club.ID).Error; err != nil {
		t.Fatalf("failed loading created event: %v", err)
	}
	return &event
}

func TestCreateEvent(t *testing.T) {
	env := setupTestEnv(t)
	leader, leaderToken := createTestUser(t, env.db, "event-leader@test.com", "password123", models.UserRoleMember)
	club := createTestClub(t, env.db, leader, "Events Club", models.ClubStatusActive)
	_, memberToken := createTestUser(t, env.db, "event-member@test.com", "password123", models.UserRoleMember)

	t.Run("leader creates event", func(t *testing.T) {
		event := createTestEvent(t, env, leaderToken, club, "Kickoff Meeting")
		if event.Status != models.EventStatusUpcoming {
			t.Fatalf("expected upcoming status, got %s", event.Status)
		}
	})

	t.Run("non-leader forbidden", func(t *testing.T) {
		start, end := futureEventTimes()
		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/clubs/"+club.ID.String()+"/events", map[string]any{
			"title":    "Rogue Event",
			"location": "Main Hall",
			"startsAt": start.Format(time.RFC3339),
			"endsAt":   end.Format(time.RFC3339),
		}, authHeaders(memberToken))
		assertStatus(t, resp, http.StatusForbidden)
	})

	t.Run("end before start rejected", func(t *testing.T) {
		start, end := futureEventTimes()
		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/clubs/"+club.ID.String()+"/events", map[string]any{
			"title":    "Backwards Event",
			"location": "Main Hall",
			"startsAt": end.Format(time.RFC3339),
			"endsAt":   start.Format(time.RFC3339),
		}, authHeaders(leaderToken))
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusBadRequest)
		assertEnvelopeError(t, body, "event must end after it starts")
	})
}

func TestRSVP(t *testing.T) {
	env := setupTestEnv(t)
	leader, leaderToken := createTestUser(t, env.db, "rsvp-leader@test.com", "password123", models.UserRoleMember)
	club := createTestClub(t, env.db, leader, "RSVP Club", models.ClubStatusActive)
	event := createTestEvent(t, env, leaderToken, club, "Game Night")

	member, memberToken := createTestUser(t, env.db, "rsvp-member@test.com", "password123", models.UserRoleMember)
	createTestMembership(t, env.db, member, club, models.MembershipStatusApproved)
	_, outsiderToken := createTestUser(t, env.db, "rsvp-outsider@test.com", "password123", models.UserRoleMember)

	t.Run("approved member rsvps going", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/events/"+event.ID.String()+"/rsvp", map[string]any{
			"status": "going",
		}, authHeaders(memberToken))
		assertStatus(t, resp, http.StatusCreated)
	})

	t.Run("changing answer mutates the same row", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/events/"+event.ID.String()+"/rsvp", map[string]any{
			"status": "not_going",
		}, authHeaders(memberToken))
		assertStatus(t, resp, http.StatusOK)

		var count int64
		env.db.Model(&models.EventRSVP{}).Where("event_id = ? AND user_id = ?", event.ID, member.ID).Count(&count)
		if count != 1 {
			t.Fatalf("expected one rsvp row, got %d", count)
		}

		var rsvp models.EventRSVP
		env.db.First(&rsvp, "event_id = ? AND user_id = ?", event.ID, member.ID)
		if rsvp.Status != models.RSVPStatusNotGoing {
			t.Fatalf("expected not_going, got %s", rsvp.Status)
		}
	})

	t.Run("non-member forbidden", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/events/"+event.ID.String()+"/rsvp", map[string]any{
			"status": "going",
		}, authHeaders(outsiderToken))
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusForbidden)
		assertEnvelopeError(t, body, "club members only")
	})

	t.Run("invalid rsvp status 400", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/events/"+event.ID.String()+"/rsvp", map[string]any{
			"status": "maybe",
		}, authHeaders(memberToken))
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusBadRequest)
		assertEnvelopeError(t, body, "invalid rsvp status")
	})

	t.Run("capacity limit fills up", func(t *testing.T) {
		limited := createTestEvent(t, env, leaderToken, club, "Tiny Workshop")
		env.db.Model(&models.Event{}).Where("id = ?", limited.ID).Update("capacity", 1)

		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/events/"+limited.ID.String()+"/rsvp", map[string]any{
			"status": "going",
		}, authHeaders(memberToken))
		assertStatus(t, resp, http.StatusCreated)

		second, secondToken := createTestUser(t, env.db, "rsvp-second@test.com", "password123", models.UserRoleMember)
		createTestMembership(t, env.db, second, club, models.MembershipStatusApproved)

		resp = performJSONRequest(t, env.app, http.MethodPost, "/api/events/"+limited.ID.String()+"/rsvp", map[string]any{
			"status": "going",
		}, authHeaders(secondToken))
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusConflict)
		assertEnvelopeError(t, body, "event is full")
	})

	t.Run("cancelled event closed for rsvps", func(t *testing.T) {
		cancelled := createTestEvent(t, env, leaderToken, club, "Cancelled Meetup")
		env.db.Model(&models.Event{}).Where("id = ?", cancelled.ID).Update("status", models.EventStatusCancelled)

		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/events/"+cancelled.ID.String()+"/rsvp", map[string]any{
			"status": "going",
		}, authHeaders(memberToken))
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusBadRequest)
		assertEnvelopeError(t, body, "event is not open for rsvps")
	})
}

func TestCancelEventNotifiesAttendees(t *testing.T) {
	env := setupTestEnv(t)
	leader, leaderToken := createTestUser(t, env.db, "cancel-leader@test.com", "password123", models.UserRoleMember)
	club := createTestClub(t, env.db, leader, "Cancel Club", models.ClubStatusActive)
	event := createTestEvent(t, env, leaderToken, club, "Doomed Event")

	var attendees []*models.User
	for i := 0; i < 3; i++ {
		attendee, token := createTestUser(t, env.db, fmt.Sprintf("cancel-attendee%d@test.com", i), "password123", models.UserRoleMember)
		createTestMembership(t, env.db, attendee, club, models.MembershipStatusApproved)
		attendees = append(attendees, attendee)

		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/events/"+event.ID.String()+"/rsvp", map[string]any{
			"status": "going",
		}, authHeaders(token))
		assertStatus(t, resp, http.StatusCreated)
	}

	resp := performJSONRequest(t, env.app, http.MethodPut, "/api/events/"+event.ID.String(), map[string]any{
		"status": "cancelled",
	}, authHeaders(leaderToken))
	assertStatus(t, resp, http.StatusOK)

	env.flushNotifications()
	for _, attendee := range attendees {
		var count int64
		env.db.Model(&models.Notification{}).
			Where("user_id = ? AND title = ?", attendee.ID, "Event Cancelled").
			Count(&count)
		if count != 1 {
			t.Fatalf("expected one cancellation notification for %s, got %d", attendee.Email, count)
		}
	}
}

func TestDeleteEvent(t *testing.T) {
	env := setupTestEnv(t)
	leader, leaderToken := createTestUser(t, env.db, "evdel-leader@test.com", "password123", models.UserRoleMember)
	club := createTestClub(t, env.db, leader, "Delete Events Club", models.ClubStatusActive)
	event := createTestEvent(t, env, leaderToken, club, "Short Lived")

	member, memberToken := createTestUser(t, env.db, "evdel-member@test.com", "password123", models.UserRoleMember)
	createTestMembership(t, env.db, member, club, models.MembershipStatusApproved)
	resp := performJSONRequest(t, env.app, http.MethodPost, "/api/events/"+event.ID.String()+"/rsvp", map[string]any{
		"status": "going",
	}, authHeaders(memberToken))
	assertStatus(t, resp, http.StatusCreated)

	resp = performRequest(t, env.app, http.MethodDelete, "/api/events/"+event.ID.String(), nil, authHeaders(leaderToken))
	assertStatus(t, resp, http.StatusOK)

	var eventCount, rsvpCount int64
	env.db.Model(&models.Event{}).Where("id = ?", event.ID).Count(&eventCount)
	env.db.Model(&models.EventRSVP{}).Where("event_id = ?", event.ID).Count(&rsvpCount)
	if eventCount != 0 || rsvpCount != 0 {
		t.Fatalf("expected event and rsvps gone, got events=%d rsvps=%d", eventCount, rsvpCount)
	}
}

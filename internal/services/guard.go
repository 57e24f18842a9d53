package services

import (
	"errors"

	"github.com/clubhub/backend/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Guard errors are sentinel values so handlers can map them to HTTP
// statuses without inspecting gorm errors themselves.
var (
	ErrNotFound  = errors.New("not found")
	ErrForbidden = errors.New("forbidden")
)

// GuardService centralizes role and ownership checks for club-scoped
// resources. Every resolver loads the target row before comparing roles,
// so a missing resource always surfaces as ErrNotFound, never as
// ErrForbidden.
type GuardService struct {
	DB *gorm.DB
}

func NewGuardService(db *gorm.DB) *GuardService {
	return &GuardService{DB: db}
}

// Club loads a club without any authorization check.
func (g *GuardService) Club(clubID uuid.UUID) (*models.Club, error) {
	var club models.Club
	if err := g.DB.First(&club, "id = ?", clubID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &club, nil
}

// ClubForManage loads a club and verifies the actor may manage it:
// admins always, club leaders only for their own club.
func (g *GuardService) ClubForManage(clubID uuid.UUID, actor *models.User) (*models.Club, error) {
	club, err := g.Club(clubID)
	if err != nil {
		return nil, err
	}
	if !g.canManage(club, actor) {
		return nil, ErrForbidden
	}
	return club, nil
}

// MembershipForManage loads a membership together with its club and
// verifies the actor may act on it.
func (g *GuardService) MembershipForManage(membershipID uuid.UUID, actor *models.User) (*models.Membership, error) {
	var membership models.Membership
	err := g.DB.Preload("Club").Preload("User").First(&membership, "id = ?", membershipID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if !g.canManage(&membership.Club, actor) {
		return nil, ErrForbidden
	}
	return &membership, nil
}

// EventForManage loads an event and verifies the actor may manage its club.
func (g *GuardService) EventForManage(eventID uuid.UUID, actor *models.User) (*models.Event, error) {
	event, err := g.Event(eventID)
	if err != nil {
		return nil, err
	}
	if !g.canManage(&event.Club, actor) {
		return nil, ErrForbidden
	}
	return event, nil
}

func (g *GuardService) Event(eventID uuid.UUID) (*models.Event, error) {
	var event models.Event
	if err := g.DB.Preload("Club").First(&event, "id = ?", eventID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &event, nil
}

// AnnouncementForManage loads an announcement and verifies club ownership.
func (g *GuardService) AnnouncementForManage(announcementID uuid.UUID, actor *models.User) (*models.Announcement, error) {
	var announcement models.Announcement
	err := g.DB.Preload("Club").First(&announcement, "id = ?", announcementID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if !g.canManage(&announcement.Club, actor) {
		return nil, ErrForbidden
	}
	return &announcement, nil
}

// IsApprovedMember reports whether the user holds an approved membership
// in the club.
func (g *GuardService) IsApprovedMember(clubID, userID uuid.UUID) (bool, error) {
	var count int64
	err := g.DB.Model(&models.Membership{}).
		Where("club_id = ? AND user_id = ? AND status = ?", clubID, userID, models.MembershipStatusApproved).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (g *GuardService) canManage(club *models.Club, actor *models.User) bool {
	if actor == nil {
		return false
	}
	if actor.Role == models.UserRoleAdmin {
		return true
	}
	return actor.Role == models.UserRoleClubLeader && club.LeaderID == actor.ID
}

package db

import (
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/sagekit/sagekit/pkg/models"
)

var ErrProfileNotFound = errors.New("user profile not found")

// UserProfile is a cached snapshot of a user's host-side profile, keyed by
// user id. The snapshot is opaque to everything but the auth service.
type UserProfile struct {
	UserID    string    `json:"user_id" gorm:"primaryKey;size:64"`
	Snapshot  string    `json:"snapshot" gorm:"type:text"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (UserProfile) TableName() string {
	return "user_profiles"
}

// ProfileStore reads and writes cached user profiles.
type ProfileStore struct {
	db *gorm.DB
}

func NewProfileStore(db *gorm.DB) *ProfileStore {
	return &ProfileStore{db: db}
}

// Put writes through the latest profile snapshot for its user id.
func (s *ProfileStore) Put(info *models.UserInfo) error {
	b, err := json.Marshal(info)
	if err != nil {
		return err
	}
	row := UserProfile{UserID: info.ID, Snapshot: string(b), UpdatedAt: time.Now()}
	return s.db.Save(&row).Error
}

// Get returns the cached snapshot for a user id.
func (s *ProfileStore) Get(userID string) (*models.UserInfo, error) {
	var row UserProfile
	if err := s.db.First(&row, "user_id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, err
	}

	var info models.UserInfo
	if err := json.Unmarshal([]byte(row.Snapshot), &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// Delete removes the cached snapshot for a user id.
func (s *ProfileStore) Delete(userID string) error {
	return s.db.Delete(&UserProfile{}, "user_id = ?", userID).Error
}

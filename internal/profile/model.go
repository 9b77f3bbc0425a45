package profile

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// StudyPreferences captures when and how a user likes to study
type StudyPreferences struct {
	TimeOfDay string `json:"time_of_day,omitempty"`
	GroupSize string `json:"group_size,omitempty"`
}

// Profile is the public face of a user
type Profile struct {
	ID               uuid.UUID         `json:"id"`
	Name             string            `json:"name"`
	Email            string            `json:"email"`
	Avatar           *string           `json:"avatar,omitempty"`
	AcademicLevel    *string           `json:"academic_level,omitempty"`
	Bio              *string           `json:"bio,omitempty"`
	SubjectInterests []string          `json:"subject_interests"`
	StudyPreferences *StudyPreferences `json:"study_preferences,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

func decodePreferences(raw []byte) (*StudyPreferences, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var prefs StudyPreferences
	if err := json.Unmarshal(raw, &prefs); err != nil {
		return nil, err
	}
	return &prefs, nil
}

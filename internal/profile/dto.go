package profile

// UpdateProfileRequest represents the request body for editing one's own profile.
// Nil fields are left unchanged.
type UpdateProfileRequest struct {
	Name             *string           `json:"name,omitempty" validate:"omitempty,min=1,max=100"`
	Avatar           *string           `json:"avatar,omitempty"`
	AcademicLevel    *string           `json:"academic_level,omitempty"`
	Bio              *string           `json:"bio,omitempty"`
	SubjectInterests []string          `json:"subject_interests,omitempty"`
	StudyPreferences *StudyPreferences `json:"study_preferences,omitempty"`
}

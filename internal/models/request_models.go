package models

import "time"

// CreateProfileRequest represents the request body for creating a new profile.
type CreateProfileRequest struct {
	Name string `json:"name" binding:"required"`
}

// RenameProfileRequest represents the request body for renaming a profile.
type RenameProfileRequest struct {
	Name string `json:"name" binding:"required"`
}

// SaveProfileRequest carries a full profile rewrite. Version must echo the version the
// client last read; a mismatch is reported as a conflict.
type SaveProfileRequest struct {
	Name        string       `json:"name" binding:"required"`
	Semesters   []Semester   `json:"semesters"`
	StudentInfo *StudentInfo `json:"studentInfo,omitempty"`
	Version     int64        `json:"version"`
}

// SemesterRequest represents the request body for adding a semester.
type SemesterRequest struct {
	Name string `json:"name"`
}

// SubjectRequest adds or replaces one subject. An empty ID adds a new subject.
type SubjectRequest struct {
	ID          string  `json:"id,omitempty"`
	SubjectName string  `json:"subjectName" binding:"required"`
	Grade       float64 `json:"grade" binding:"gte=0,lte=10"`
	Credit      float64 `json:"credit" binding:"gte=0"`
}

// ShareProfileRequest creates a public share link.
// Pointers distinguish "not provided" (defaults apply) from an explicit false.
type ShareProfileRequest struct {
	ProfileID string     `json:"profileId" binding:"required"`
	AllowCopy *bool      `json:"allowCopy,omitempty"`
	AllowView *bool      `json:"allowView,omitempty"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
	Password  string     `json:"password,omitempty"`
}

// CopySharedProfileRequest copies a public share into the caller's profiles.
type CopySharedProfileRequest struct {
	Password string `json:"password,omitempty"`
	Name     string `json:"name,omitempty"`
}

// ShareWithUserRequest shares a profile with another registered user.
type ShareWithUserRequest struct {
	ProfileID   string `json:"profileId" binding:"required"`
	TargetEmail string `json:"targetEmail" binding:"required,email"`
	Permission  string `json:"permission" binding:"required"`
	AllowCopy   *bool  `json:"allowCopy,omitempty"`
}

// UpdateSharePermissionRequest changes the permission of an outgoing share.
type UpdateSharePermissionRequest struct {
	Permission string `json:"permission" binding:"required"`
}

// UpdateSemestersRequest rewrites the semesters of a shared or collaborative profile.
type UpdateSemestersRequest struct {
	Semesters []Semester `json:"semesters" binding:"required"`
	Version   int64      `json:"version"`
}

// CreateCollaborativeProfileRequest turns one of the caller's profiles into a collaborative one.
type CreateCollaborativeProfileRequest struct {
	ProfileID string `json:"profileId" binding:"required"`
	Name      string `json:"name,omitempty"`
}

// AddCollaboratorRequest grants edit access to a collaborative profile.
type AddCollaboratorRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// SignUpRequest creates an account with email and password.
type SignUpRequest struct {
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required,min=6"`
	DisplayName string `json:"displayName,omitempty"`
}

// ChangePasswordRequest sets a new password for the signed-in user.
type ChangePasswordRequest struct {
	NewPassword string `json:"newPassword" binding:"required,min=6"`
}

// UpdatePreferencesRequest updates the stored user preferences.
type UpdatePreferencesRequest struct {
	Theme           *string `json:"theme,omitempty"`
	ActiveProfileID *string `json:"activeProfileId,omitempty"`
}

// UMSImportRequest triggers an import from the university portal.
type UMSImportRequest struct {
	SessionCookie string   `json:"sessionCookie" binding:"required"`
	ProfileID     string   `json:"profileId,omitempty"` // empty creates a new profile
	ProfileName   string   `json:"profileName,omitempty"`
	TermIDs       []string `json:"termIds,omitempty"` // empty imports every term
}

// LegacyStorage is a dump of the browser local-storage keys the web client used before
// profiles moved to the server. Values are the raw strings stored under each key.
type LegacyStorage struct {
	GPAProfiles      string `json:"gpaProfiles"`
	ActiveGPAProfile string `json:"activeGpaProfile,omitempty"`
	UMSTermIDs       string `json:"umsTermIds,omitempty"`
	Theme            string `json:"theme,omitempty"`
}

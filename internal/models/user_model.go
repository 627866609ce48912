package models

import "time"

// User represents a user in the system.
type User struct {
	ID          string      `json:"uid" firestore:"uid"` // Firebase Auth UID, also the document ID
	Email       string      `json:"email" firestore:"email"`
	DisplayName string      `json:"displayName,omitempty" firestore:"displayName,omitempty"`
	Preferences Preferences `json:"preferences" firestore:"preferences"`
	CreatedAt   time.Time   `json:"createdAt" firestore:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt" firestore:"updatedAt"`
}

// Preferences holds the per-user settings the web client used to keep in local storage.
type Preferences struct {
	Theme           string   `json:"theme,omitempty" firestore:"theme,omitempty"` // "light" or "dark"
	ActiveProfileID string   `json:"activeProfileId,omitempty" firestore:"activeProfileId,omitempty"`
	UMSTermIDs      []string `json:"umsTermIds,omitempty" firestore:"umsTermIds,omitempty"`
}

// Theme values accepted by UpdatePreferences.
const (
	ThemeLight = "light"
	ThemeDark  = "dark"
)

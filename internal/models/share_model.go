package models

import "time"

// Share permission levels for per-user shares and collaborative profiles.
const (
	PermissionRead  = "read"
	PermissionEdit  = "edit"
	PermissionOwner = "owner"
)

// ShareOptions controls what holders of a public share link can do.
type ShareOptions struct {
	AllowCopy bool       `json:"allowCopy" firestore:"allowCopy"`
	AllowView bool       `json:"allowView" firestore:"allowView"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty" firestore:"expiresAt,omitempty"`
	// Password is a bcrypt hash. Services clear it before returning a share to callers.
	Password          string `json:"password,omitempty" firestore:"password,omitempty"`
	PasswordProtected bool   `json:"passwordProtected" firestore:"passwordProtected"`
}

// SharedProfile is the legacy public copy of a profile, stored at sharedProfiles/{shareId}.
// Anyone holding the share id may read it until it expires.
type SharedProfile struct {
	ShareID      string       `json:"shareId" firestore:"shareId"`
	OwnerID      string       `json:"ownerId" firestore:"ownerId"`
	OwnerName    string       `json:"ownerName,omitempty" firestore:"ownerName,omitempty"`
	ProfileID    string       `json:"profileId" firestore:"profileId"`
	ProfileName  string       `json:"profileName" firestore:"profileName"`
	Semesters    []Semester   `json:"semesters" firestore:"semesters"`
	ShareOptions ShareOptions `json:"shareOptions" firestore:"shareOptions"`
	ViewCount    int64        `json:"viewCount" firestore:"viewCount"`
	CreatedAt    time.Time    `json:"createdAt" firestore:"createdAt"`
}

// Expired reports whether the link expired at the given instant.
func (s *SharedProfile) Expired(now time.Time) bool {
	return s.ShareOptions.ExpiresAt != nil && !now.Before(*s.ShareOptions.ExpiresAt)
}

// SharedProfileRef is the owner's pointer to a public share, at users/{uid}/sharedProfiles/{shareId}.
type SharedProfileRef struct {
	ShareID     string    `json:"shareId" firestore:"shareId"`
	ProfileID   string    `json:"profileId" firestore:"profileId"`
	ProfileName string    `json:"profileName" firestore:"profileName"`
	CreatedAt   time.Time `json:"createdAt" firestore:"createdAt"`
}

// UserShare links an owner's profile to one target user. The same record is written
// to userShares/{owner}/outgoing/{shareId} and userShares/{target}/incoming/{shareId}.
type UserShare struct {
	ShareID         string    `json:"shareId" firestore:"shareId"`
	OwnerID         string    `json:"ownerId" firestore:"ownerId"`
	OwnerEmail      string    `json:"ownerEmail,omitempty" firestore:"ownerEmail,omitempty"`
	ProfileID       string    `json:"profileId" firestore:"profileId"`
	ProfileName     string    `json:"profileName" firestore:"profileName"`
	TargetUserID    string    `json:"targetUserId" firestore:"targetUserId"`
	TargetUserEmail string    `json:"targetUserEmail" firestore:"targetUserEmail"`
	Permission      string    `json:"permission" firestore:"permission"`
	AllowCopy       *bool     `json:"allowCopy,omitempty" firestore:"allowCopy,omitempty"`
	IsActive        bool      `json:"isActive" firestore:"isActive"`
	CreatedAt       time.Time `json:"createdAt" firestore:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt" firestore:"updatedAt"`
}

// CopyAllowed reports whether the target may copy the profile. Shares saved without
// the flag allow copying.
func (s *UserShare) CopyAllowed() bool {
	return s.AllowCopy == nil || *s.AllowCopy
}

// UserSharesRoot is the parent document at userShares/{uid}.
type UserSharesRoot struct {
	UserID    string    `json:"uid" firestore:"uid"`
	UpdatedAt time.Time `json:"updatedAt" firestore:"updatedAt"`
}

// Share event types published to the notification queue.
const (
	EventUserShareCreated  = "user_share.created"
	EventUserShareRevoked  = "user_share.revoked"
	EventCollaboratorAdded = "collaborator.added"
)

// ShareEvent tells a user that something was shared with them.
type ShareEvent struct {
	Type         string    `json:"type"`
	ShareID      string    `json:"shareId"`
	OwnerID      string    `json:"ownerId"`
	OwnerEmail   string    `json:"ownerEmail,omitempty"`
	TargetUserID string    `json:"targetUserId"`
	TargetEmail  string    `json:"targetEmail"`
	ProfileName  string    `json:"profileName"`
	Permission   string    `json:"permission"`
	OccurredAt   time.Time `json:"occurredAt"`
}

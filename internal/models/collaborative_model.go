package models

import "time"

// CollaborativeProfile is a profile edited by several users, at collaborativeProfiles/{id}.
// Permissions maps uid to "owner" or "edit"; Collaborators lists every uid with access
// (owner included) so membership can be queried with array-contains.
type CollaborativeProfile struct {
	ID            string            `json:"id" firestore:"id"`
	Name          string            `json:"name" firestore:"name"`
	OwnerID       string            `json:"ownerId" firestore:"ownerId"`
	Permissions   map[string]string `json:"permissions" firestore:"permissions"`
	Collaborators []string          `json:"collaborators" firestore:"collaborators"`
	Semesters     []Semester        `json:"semesters" firestore:"semesters"`
	Version       int64             `json:"version" firestore:"version"`
	CreatedAt     time.Time         `json:"createdAt" firestore:"createdAt"`
	UpdatedAt     time.Time         `json:"updatedAt" firestore:"updatedAt"`
}

// CanEdit reports whether uid may rewrite the semesters.
func (c *CollaborativeProfile) CanEdit(uid string) bool {
	p := c.Permissions[uid]
	return p == PermissionOwner || p == PermissionEdit
}

// IsMember reports whether uid has any access.
func (c *CollaborativeProfile) IsMember(uid string) bool {
	for _, id := range c.Collaborators {
		if id == uid {
			return true
		}
	}
	_, ok := c.Permissions[uid]
	return ok
}

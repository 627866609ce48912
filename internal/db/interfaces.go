package db

import (
	"context"

	"github.com/example/studentkit/internal/models"
)

// ProfileRepository stores the profiles of one user under users/{uid}/profiles.
type ProfileRepository interface {
	List(ctx context.Context, userID string) ([]*models.Profile, error)
	Get(ctx context.Context, userID, profileID string) (*models.Profile, error)
	// Mutate loads every profile of the user inside a transaction, lets fn edit the set
	// and writes back only what fn changed. Returning an error from fn aborts the writes.
	Mutate(ctx context.Context, userID string, fn func(set *ProfileSet) error) error
	Watch(ctx context.Context, userID string, fn func([]*models.Profile)) error
	// WatchOne calls fn with nil once the profile is deleted.
	WatchOne(ctx context.Context, userID, profileID string, fn func(*models.Profile)) error
}

// SharedProfileRepository stores legacy public share links and the owner's refs to them.
type SharedProfileRepository interface {
	Create(ctx context.Context, share *models.SharedProfile) error
	Get(ctx context.Context, shareID string) (*models.SharedProfile, error)
	// RecordView increments the view counter and returns the updated share.
	RecordView(ctx context.Context, shareID string) (*models.SharedProfile, error)
	Delete(ctx context.Context, ownerID, shareID string) error
	ListRefs(ctx context.Context, userID string) ([]*models.SharedProfileRef, error)
	WatchRefs(ctx context.Context, userID string, fn func([]*models.SharedProfileRef)) error
	ListByOwner(ctx context.Context, ownerID string) ([]*models.SharedProfile, error)
}

// UserShareRepository stores per-user shares. Every share exists twice: in the owner's
// outgoing collection and in the target's incoming collection.
type UserShareRepository interface {
	Save(ctx context.Context, share *models.UserShare) error
	GetOutgoing(ctx context.Context, ownerID, shareID string) (*models.UserShare, error)
	GetIncoming(ctx context.Context, targetID, shareID string) (*models.UserShare, error)
	ListOutgoing(ctx context.Context, ownerID string) ([]*models.UserShare, error)
	ListIncoming(ctx context.Context, targetID string) ([]*models.UserShare, error)
	// IncomingOwnedBy finds incoming records in any user's collection whose owner is ownerID.
	IncomingOwnedBy(ctx context.Context, ownerID string) ([]Document, error)
	// OutgoingTargeting finds outgoing records in any user's collection whose target is targetID.
	OutgoingTargeting(ctx context.Context, targetID string) ([]Document, error)
}

// CollaborativeRepository stores collaborativeProfiles/{id}.
type CollaborativeRepository interface {
	Create(ctx context.Context, profile *models.CollaborativeProfile) error
	Get(ctx context.Context, id string) (*models.CollaborativeProfile, error)
	// Mutate reads the profile in a transaction and writes fn's changes back.
	// When fn returns remove=true the document is deleted instead.
	Mutate(ctx context.Context, id string, fn func(p *models.CollaborativeProfile) (remove bool, err error)) (*models.CollaborativeProfile, error)
	ListForMember(ctx context.Context, userID string) ([]*models.CollaborativeProfile, error)
	Watch(ctx context.Context, id string, fn func(*models.CollaborativeProfile)) error
}

// UserRepository stores users/{uid}.
type UserRepository interface {
	GetByID(ctx context.Context, userID string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Save(ctx context.Context, user *models.User) error
}

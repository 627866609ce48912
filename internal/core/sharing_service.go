package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/example/studentkit/internal/db"
	"github.com/example/studentkit/internal/models"
)

// Custom errors for the SharingService
var (
	ErrUserNotFound           = errors.New("user not found")
	ErrShareTargetNotFound    = errors.New("no registered user with this email")
	ErrCannotShareWithSelf    = errors.New("cannot share a profile with yourself")
	ErrInvalidPermissionLevel = errors.New("permission must be 'read' or 'edit'")
	ErrAlreadyShared          = errors.New("this profile is already shared with that user")
	ErrReadOnlyShare          = errors.New("this profile was shared read-only")
)

type sharingService struct {
	profiles db.ProfileRepository
	shares   db.UserShareRepository
	users    db.UserRepository
	notifier Notifier
	logger   *zap.Logger
	now      func() time.Time
}

// NewSharingService creates a new SharingService instance. A nil notifier disables
// share notifications.
func NewSharingService(
	pr db.ProfileRepository,
	sr db.UserShareRepository,
	ur db.UserRepository,
	notifier Notifier,
	logger *zap.Logger,
) SharingService {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &sharingService{
		profiles: pr,
		shares:   sr,
		users:    ur,
		notifier: notifier,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func validPermission(p string) bool {
	return p == models.PermissionRead || p == models.PermissionEdit
}

func (s *sharingService) ShareWithUser(ctx context.Context, owner Identity, req models.ShareWithUserRequest) (*models.UserShare, error) {
	if !validPermission(req.Permission) {
		return nil, ErrInvalidPermissionLevel
	}
	profile, err := s.profiles.Get(ctx, owner.UID, req.ProfileID)
	if errors.Is(err, db.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrProfileNotFound, req.ProfileID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load profile '%s': %w", req.ProfileID, err)
	}

	target, err := s.users.GetByEmail(ctx, req.TargetEmail)
	if errors.Is(err, db.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrShareTargetNotFound, req.TargetEmail)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up share target: %w", err)
	}
	if target.ID == owner.UID {
		return nil, ErrCannotShareWithSelf
	}

	existing, err := s.shares.ListOutgoing(ctx, owner.UID)
	if err != nil {
		return nil, fmt.Errorf("failed to list outgoing shares: %w", err)
	}
	for _, sh := range existing {
		if sh.IsActive && sh.ProfileID == profile.ID && sh.TargetUserID == target.ID {
			return nil, ErrAlreadyShared
		}
	}

	now := s.now()
	share := &models.UserShare{
		ShareID:         newID(),
		OwnerID:         owner.UID,
		OwnerEmail:      strings.ToLower(owner.Email),
		ProfileID:       profile.ID,
		ProfileName:     profile.Name,
		TargetUserID:    target.ID,
		TargetUserEmail: target.Email,
		Permission:      req.Permission,
		AllowCopy:       req.AllowCopy,
		IsActive:        true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.shares.Save(ctx, share); err != nil {
		return nil, fmt.Errorf("failed to save share: %w", err)
	}
	s.notify(ctx, models.EventUserShareCreated, share)
	return share, nil
}

func (s *sharingService) notify(ctx context.Context, eventType string, share *models.UserShare) {
	event := models.ShareEvent{
		Type:         eventType,
		ShareID:      share.ShareID,
		OwnerID:      share.OwnerID,
		OwnerEmail:   share.OwnerEmail,
		TargetUserID: share.TargetUserID,
		TargetEmail:  share.TargetUserEmail,
		ProfileName:  share.ProfileName,
		Permission:   share.Permission,
		OccurredAt:   s.now(),
	}
	if err := s.notifier.Notify(ctx, event); err != nil {
		s.logger.Warn("Failed to publish share event",
			zap.String("type", eventType), zap.String("shareID", share.ShareID), zap.Error(err))
	}
}

func (s *sharingService) ListOutgoingShares(ctx context.Context, ownerID string) ([]*models.UserShare, error) {
	shares, err := s.shares.ListOutgoing(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list outgoing shares: %w", err)
	}
	return activeOnly(shares), nil
}

func (s *sharingService) ListIncomingShares(ctx context.Context, userID string) ([]*models.UserShare, error) {
	shares, err := s.shares.ListIncoming(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list incoming shares: %w", err)
	}
	return activeOnly(shares), nil
}

func activeOnly(shares []*models.UserShare) []*models.UserShare {
	out := shares[:0]
	for _, sh := range shares {
		if sh.IsActive {
			out = append(out, sh)
		}
	}
	return out
}

func (s *sharingService) outgoing(ctx context.Context, ownerID, shareID string) (*models.UserShare, error) {
	share, err := s.shares.GetOutgoing(ctx, ownerID, shareID)
	if errors.Is(err, db.ErrNotFound) || (err == nil && !share.IsActive) {
		return nil, ErrShareNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load share '%s': %w", shareID, err)
	}
	return share, nil
}

func (s *sharingService) incoming(ctx context.Context, userID, shareID string) (*models.UserShare, error) {
	share, err := s.shares.GetIncoming(ctx, userID, shareID)
	if errors.Is(err, db.ErrNotFound) || (err == nil && !share.IsActive) {
		return nil, ErrShareNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load share '%s': %w", shareID, err)
	}
	return share, nil
}

func (s *sharingService) UpdateSharePermission(ctx context.Context, ownerID, shareID, permission string) (*models.UserShare, error) {
	if !validPermission(permission) {
		return nil, ErrInvalidPermissionLevel
	}
	share, err := s.outgoing(ctx, ownerID, shareID)
	if err != nil {
		return nil, err
	}
	share.Permission = permission
	share.UpdatedAt = s.now()
	if err := s.shares.Save(ctx, share); err != nil {
		return nil, fmt.Errorf("failed to update share '%s': %w", shareID, err)
	}
	return share, nil
}

// RevokeShare deactivates both copies of the share. Records are kept so the target's
// client can tell a revoked share from one that never existed.
func (s *sharingService) RevokeShare(ctx context.Context, ownerID, shareID string) error {
	share, err := s.outgoing(ctx, ownerID, shareID)
	if err != nil {
		return err
	}
	share.IsActive = false
	share.UpdatedAt = s.now()
	if err := s.shares.Save(ctx, share); err != nil {
		return fmt.Errorf("failed to revoke share '%s': %w", shareID, err)
	}
	s.notify(ctx, models.EventUserShareRevoked, share)
	return nil
}

func (s *sharingService) GetIncomingProfile(ctx context.Context, userID, shareID string) (*models.Profile, *models.UserShare, error) {
	share, err := s.incoming(ctx, userID, shareID)
	if err != nil {
		return nil, nil, err
	}
	profile, err := s.profiles.Get(ctx, share.OwnerID, share.ProfileID)
	if errors.Is(err, db.ErrNotFound) {
		return nil, nil, fmt.Errorf("%w: %s", ErrProfileNotFound, share.ProfileID)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load shared profile: %w", err)
	}
	return profile, share, nil
}

func (s *sharingService) UpdateIncomingProfile(ctx context.Context, userID, shareID string, req models.UpdateSemestersRequest) (*models.Profile, error) {
	share, err := s.incoming(ctx, userID, shareID)
	if err != nil {
		return nil, err
	}
	if share.Permission != models.PermissionEdit {
		return nil, ErrReadOnlyShare
	}
	semesters, err := prepareSemesters(req.Semesters)
	if err != nil {
		return nil, err
	}

	var out *models.Profile
	now := s.now()
	err = s.profiles.Mutate(ctx, share.OwnerID, func(set *db.ProfileSet) error {
		current := set.Get(share.ProfileID)
		if current == nil {
			return fmt.Errorf("%w: %s", ErrProfileNotFound, share.ProfileID)
		}
		if req.Version != current.Version {
			return fmt.Errorf("%w: have version %d, stored version %d", ErrVersionConflict, req.Version, current.Version)
		}
		p := current.Clone()
		p.Semesters = semesters
		touch(p, now)
		set.Put(p)
		out = p.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *sharingService) CopyIncomingProfile(ctx context.Context, userID, shareID, name string) (*models.Profile, error) {
	profile, share, err := s.GetIncomingProfile(ctx, userID, shareID)
	if err != nil {
		return nil, err
	}
	if !share.CopyAllowed() {
		return nil, ErrCopyNotAllowed
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = profile.Name
	}
	var out *models.Profile
	now := s.now()
	err = s.profiles.Mutate(ctx, userID, func(set *db.ProfileSet) error {
		out = addProfileCopy(set, userID, name, profile.Semesters, now).Clone()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to copy shared profile: %w", err)
	}
	return out, nil
}

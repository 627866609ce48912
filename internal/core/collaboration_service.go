package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/example/studentkit/internal/db"
	"github.com/example/studentkit/internal/metrics"
	"github.com/example/studentkit/internal/models"
)

// Custom errors for the CollaborationService
var (
	ErrCollaborativeProfileNotFound = errors.New("collaborative profile not found")
	ErrNotCollaborationOwner        = errors.New("only the owner can do this")
	ErrCollaborationForbidden       = errors.New("you are not a collaborator on this profile")
	ErrCollaborationReadOnly        = errors.New("you cannot edit this profile")
	ErrAlreadyCollaborator          = errors.New("user is already a collaborator")
	ErrNotCollaborator              = errors.New("user is not a collaborator")
	ErrOwnerCannotLeave             = errors.New("the owner cannot leave; delete the profile instead")
)

type collaborationService struct {
	collab   db.CollaborativeRepository
	profiles db.ProfileRepository
	users    db.UserRepository
	notifier Notifier
	subs     *subscriptions
	logger   *zap.Logger
	now      func() time.Time
}

// NewCollaborationService creates a new CollaborationService instance.
func NewCollaborationService(
	cr db.CollaborativeRepository,
	pr db.ProfileRepository,
	ur db.UserRepository,
	notifier Notifier,
	logger *zap.Logger,
	m *metrics.Metrics,
) CollaborationService {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &collaborationService{
		collab:   cr,
		profiles: pr,
		users:    ur,
		notifier: notifier,
		subs:     newSubscriptions(logger, m),
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *collaborationService) CreateCollaborativeProfile(ctx context.Context, ownerID string, req models.CreateCollaborativeProfileRequest) (*models.CollaborativeProfile, error) {
	source, err := s.profiles.Get(ctx, ownerID, req.ProfileID)
	if errors.Is(err, db.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrProfileNotFound, req.ProfileID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load profile '%s': %w", req.ProfileID, err)
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = source.Name
	}
	semesters := models.CloneSemesters(source.Semesters)
	if len(semesters) == 0 {
		semesters = []models.Semester{emptySemester(firstSemesterName)}
	}
	now := s.now()
	p := &models.CollaborativeProfile{
		ID:            newID(),
		Name:          name,
		OwnerID:       ownerID,
		Permissions:   map[string]string{ownerID: models.PermissionOwner},
		Collaborators: []string{ownerID},
		Semesters:     semesters,
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.collab.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *collaborationService) AddCollaborator(ctx context.Context, owner Identity, profileID, email string) (*models.CollaborativeProfile, error) {
	target, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, db.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrShareTargetNotFound, email)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up collaborator: %w", err)
	}
	if target.ID == owner.UID {
		return nil, ErrCannotShareWithSelf
	}

	p, err := s.mutate(ctx, profileID, func(p *models.CollaborativeProfile) (bool, error) {
		if p.OwnerID != owner.UID {
			return false, ErrNotCollaborationOwner
		}
		if p.IsMember(target.ID) {
			return false, ErrAlreadyCollaborator
		}
		if p.Permissions == nil {
			p.Permissions = map[string]string{}
		}
		p.Permissions[target.ID] = models.PermissionEdit
		p.Collaborators = append(p.Collaborators, target.ID)
		p.UpdatedAt = s.now()
		return false, nil
	})
	if err != nil {
		return nil, err
	}

	event := models.ShareEvent{
		Type:         models.EventCollaboratorAdded,
		ShareID:      p.ID,
		OwnerID:      owner.UID,
		OwnerEmail:   owner.Email,
		TargetUserID: target.ID,
		TargetEmail:  target.Email,
		ProfileName:  p.Name,
		Permission:   models.PermissionEdit,
		OccurredAt:   s.now(),
	}
	if err := s.notifier.Notify(ctx, event); err != nil {
		s.logger.Warn("Failed to publish collaborator event", zap.String("profileID", p.ID), zap.Error(err))
	}
	return p, nil
}

func (s *collaborationService) RemoveCollaborator(ctx context.Context, ownerID, profileID, collaboratorID string) (*models.CollaborativeProfile, error) {
	return s.mutate(ctx, profileID, func(p *models.CollaborativeProfile) (bool, error) {
		if p.OwnerID != ownerID {
			return false, ErrNotCollaborationOwner
		}
		if collaboratorID == p.OwnerID {
			return false, ErrOwnerCannotLeave
		}
		if !p.IsMember(collaboratorID) {
			return false, ErrNotCollaborator
		}
		dropMember(p, collaboratorID)
		p.UpdatedAt = s.now()
		return false, nil
	})
}

func (s *collaborationService) LeaveCollaboration(ctx context.Context, userID, profileID string) error {
	_, err := s.mutate(ctx, profileID, func(p *models.CollaborativeProfile) (bool, error) {
		if !p.IsMember(userID) {
			return false, ErrCollaborationForbidden
		}
		if p.OwnerID == userID {
			return false, ErrOwnerCannotLeave
		}
		dropMember(p, userID)
		p.UpdatedAt = s.now()
		return false, nil
	})
	return err
}

func dropMember(p *models.CollaborativeProfile, uid string) {
	delete(p.Permissions, uid)
	kept := p.Collaborators[:0]
	for _, id := range p.Collaborators {
		if id != uid {
			kept = append(kept, id)
		}
	}
	p.Collaborators = kept
}

func (s *collaborationService) ListCollaborativeProfiles(ctx context.Context, userID string) ([]*models.CollaborativeProfile, error) {
	profiles, err := s.collab.ListForMember(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list collaborative profiles: %w", err)
	}
	return profiles, nil
}

func (s *collaborationService) GetCollaborativeProfile(ctx context.Context, userID, profileID string) (*models.CollaborativeProfile, error) {
	p, err := s.collab.Get(ctx, profileID)
	if errors.Is(err, db.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrCollaborativeProfileNotFound, profileID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load collaborative profile '%s': %w", profileID, err)
	}
	if !p.IsMember(userID) {
		return nil, ErrCollaborationForbidden
	}
	return p, nil
}

// UpdateCollaborativeSemesters replaces the semesters if req.Version matches the stored
// version, so two editors cannot silently overwrite each other.
func (s *collaborationService) UpdateCollaborativeSemesters(ctx context.Context, userID, profileID string, req models.UpdateSemestersRequest) (*models.CollaborativeProfile, error) {
	semesters, err := prepareSemesters(req.Semesters)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, profileID, func(p *models.CollaborativeProfile) (bool, error) {
		if !p.IsMember(userID) {
			return false, ErrCollaborationForbidden
		}
		if !p.CanEdit(userID) {
			return false, ErrCollaborationReadOnly
		}
		if req.Version != p.Version {
			return false, fmt.Errorf("%w: have version %d, stored version %d", ErrVersionConflict, req.Version, p.Version)
		}
		p.Semesters = semesters
		p.Version++
		p.UpdatedAt = s.now()
		return false, nil
	})
}

func (s *collaborationService) DeleteCollaborativeProfile(ctx context.Context, userID, profileID string) error {
	_, err := s.mutate(ctx, profileID, func(p *models.CollaborativeProfile) (bool, error) {
		if p.OwnerID != userID {
			return false, ErrNotCollaborationOwner
		}
		return true, nil
	})
	return err
}

// OnCollaborativeProfileChange streams the profile to a member. fn receives nil once the
// profile is deleted or the user loses access.
func (s *collaborationService) OnCollaborativeProfileChange(ctx context.Context, userID, profileID string, fn func(*models.CollaborativeProfile)) (Unsubscribe, error) {
	if _, err := s.GetCollaborativeProfile(ctx, userID, profileID); err != nil {
		return nil, err
	}
	return s.subs.start(ctx, "collaborativeProfile", func(ctx context.Context, l *listener) error {
		return s.collab.Watch(ctx, profileID, func(p *models.CollaborativeProfile) {
			if p != nil && !p.IsMember(userID) {
				p = nil
			}
			l.deliver(func() { fn(p) })
		})
	})
}

func (s *collaborationService) Close() {
	s.subs.close()
}

func (s *collaborationService) mutate(ctx context.Context, profileID string, fn func(p *models.CollaborativeProfile) (bool, error)) (*models.CollaborativeProfile, error) {
	p, err := s.collab.Mutate(ctx, profileID, fn)
	if errors.Is(err, db.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrCollaborativeProfileNotFound, profileID)
	}
	return p, err
}

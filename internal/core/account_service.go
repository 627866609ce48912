package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/example/studentkit/internal/db"
	"github.com/example/studentkit/internal/metrics"
	"github.com/example/studentkit/internal/models"
)

// Custom errors for the AccountService
var (
	ErrRecentLoginRequired = errors.New("please sign in again before doing this")
	ErrWeakPassword        = errors.New("password must be at least 6 characters")
	ErrInvalidTheme        = errors.New("theme must be 'light' or 'dark'")
	ErrDeletionInProgress  = errors.New("account deletion is already in progress")
	ErrDeletionFailed      = errors.New("account deletion failed")
	ErrEmailInUse          = errors.New("an account with this email already exists")
)

const minPasswordLength = 6

// DeletionState is the per-user state of DeleteAccount.
type DeletionState string

const (
	DeletionIdle     DeletionState = "idle"
	DeletionDeleting DeletionState = "deleting"
	DeletionDone     DeletionState = "done"
	DeletionFailed   DeletionState = "failed"
)

// AccountServiceOptions configures the AccountService.
type AccountServiceOptions struct {
	// RecentLoginWindow is how old the caller's sign-in may be for sensitive operations.
	RecentLoginWindow time.Duration
	// DeletionStatusTTL is how long a finished deletion stays visible in DeletionStatus.
	DeletionStatusTTL time.Duration
}

type deletionEntry struct {
	state      DeletionState
	finishedAt time.Time
}

type accountService struct {
	auth     AuthProvider
	store    db.Store
	users    db.UserRepository
	profiles db.ProfileRepository
	shared   db.SharedProfileRepository
	shares   db.UserShareRepository
	collab   db.CollaborativeRepository
	profileS ProfileService
	logger   *zap.Logger
	metrics  *metrics.Metrics
	opts     AccountServiceOptions
	now      func() time.Time

	mu        sync.Mutex
	deletions map[string]deletionEntry
}

// NewAccountService creates a new AccountService instance.
func NewAccountService(
	auth AuthProvider,
	store db.Store,
	profileService ProfileService,
	logger *zap.Logger,
	m *metrics.Metrics,
	opts AccountServiceOptions,
) AccountService {
	if opts.RecentLoginWindow <= 0 {
		opts.RecentLoginWindow = 5 * time.Minute
	}
	if opts.DeletionStatusTTL <= 0 {
		opts.DeletionStatusTTL = 15 * time.Minute
	}
	return &accountService{
		auth:      auth,
		store:     store,
		users:     db.NewUserRepository(store),
		profiles:  db.NewProfileRepository(store),
		shared:    db.NewSharedProfileRepository(store),
		shares:    db.NewUserShareRepository(store),
		collab:    db.NewCollaborativeRepository(store),
		profileS:  profileService,
		logger:    logger,
		metrics:   m,
		opts:      opts,
		now:       func() time.Time { return time.Now().UTC() },
		deletions: map[string]deletionEntry{},
	}
}

func (s *accountService) SignUp(ctx context.Context, req models.SignUpRequest) (*models.User, error) {
	if len(req.Password) < minPasswordLength {
		return nil, ErrWeakPassword
	}
	au, err := s.auth.CreateUser(ctx, strings.TrimSpace(req.Email), req.Password, strings.TrimSpace(req.DisplayName))
	if err != nil {
		return nil, fmt.Errorf("failed to create auth user: %w", err)
	}
	user, _, err := s.EnsureUser(ctx, Identity{UID: au.UID, Email: au.Email}, au.DisplayName)
	if err != nil {
		// Without a user document the account is unusable; undo the Auth side.
		if delErr := s.auth.DeleteUser(ctx, au.UID); delErr != nil {
			s.logger.Error("Failed to roll back auth user after sign-up error",
				zap.String("userID", au.UID), zap.Error(delErr))
		}
		return nil, err
	}
	return user, nil
}

func (s *accountService) EnsureUser(ctx context.Context, id Identity, displayName string) (*models.User, bool, error) {
	user, err := s.users.GetByID(ctx, id.UID)
	if err == nil {
		return user, false, nil
	}
	if !errors.Is(err, db.ErrNotFound) {
		return nil, false, fmt.Errorf("failed to get user '%s': %w", id.UID, err)
	}

	now := s.now()
	user = &models.User{
		ID:          id.UID,
		Email:       id.Email,
		DisplayName: displayName,
		Preferences: models.Preferences{Theme: models.ThemeLight},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.users.Save(ctx, user); err != nil {
		return nil, false, err
	}
	if _, err := s.profileS.Init(ctx, id.UID); err != nil {
		return nil, false, fmt.Errorf("failed to create default profile: %w", err)
	}
	s.logger.Info("Created user", zap.String("userID", id.UID))
	return user, true, nil
}

func (s *accountService) GetUser(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, db.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, userID)
	}
	return user, err
}

func (s *accountService) SignOut(ctx context.Context, userID string) error {
	if err := s.auth.RevokeSessions(ctx, userID); err != nil {
		return fmt.Errorf("failed to revoke sessions: %w", err)
	}
	return nil
}

func (s *accountService) recentLogin(id Identity) bool {
	if id.AuthTime.IsZero() {
		return false
	}
	return s.now().Sub(id.AuthTime) <= s.opts.RecentLoginWindow
}

func (s *accountService) ChangePassword(ctx context.Context, id Identity, newPassword string) error {
	if len(newPassword) < minPasswordLength {
		return ErrWeakPassword
	}
	if !s.recentLogin(id) {
		return ErrRecentLoginRequired
	}
	if err := s.auth.UpdatePassword(ctx, id.UID, newPassword); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	return nil
}

func (s *accountService) LinkedProviders(ctx context.Context, userID string) ([]string, error) {
	au, err := s.auth.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get auth user: %w", err)
	}
	return au.Providers, nil
}

func (s *accountService) UpdatePreferences(ctx context.Context, userID string, req models.UpdatePreferencesRequest) (*models.User, error) {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if req.Theme != nil {
		if *req.Theme != models.ThemeLight && *req.Theme != models.ThemeDark {
			return nil, ErrInvalidTheme
		}
		user.Preferences.Theme = *req.Theme
	}
	if req.ActiveProfileID != nil {
		if *req.ActiveProfileID != "" {
			if _, err := s.profiles.Get(ctx, userID, *req.ActiveProfileID); errors.Is(err, db.ErrNotFound) {
				return nil, fmt.Errorf("%w: %s", ErrProfileNotFound, *req.ActiveProfileID)
			} else if err != nil {
				return nil, err
			}
		}
		user.Preferences.ActiveProfileID = *req.ActiveProfileID
	}
	user.UpdatedAt = s.now()
	if err := s.users.Save(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *accountService) DeletionStatus(userID string) DeletionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneDeletions()
	if e, ok := s.deletions[userID]; ok {
		return e.state
	}
	return DeletionIdle
}

// pruneDeletions drops finished entries older than DeletionStatusTTL. Callers hold s.mu.
func (s *accountService) pruneDeletions() {
	cutoff := s.now().Add(-s.opts.DeletionStatusTTL)
	for uid, e := range s.deletions {
		if e.state != DeletionDeleting && e.finishedAt.Before(cutoff) {
			delete(s.deletions, uid)
		}
	}
}

// beginDeletion moves the user to deleting unless a deletion is already running.
func (s *accountService) beginDeletion(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneDeletions()
	if s.deletions[userID].state == DeletionDeleting {
		return false
	}
	s.deletions[userID] = deletionEntry{state: DeletionDeleting}
	return true
}

func (s *accountService) finishDeletion(userID string, state DeletionState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if state == DeletionIdle {
		delete(s.deletions, userID)
		return
	}
	s.deletions[userID] = deletionEntry{state: state, finishedAt: s.now()}
}

package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/example/studentkit/internal/calculator"
	"github.com/example/studentkit/internal/db"
	"github.com/example/studentkit/internal/metrics"
	"github.com/example/studentkit/internal/models"
)

// Custom errors for the ProfileService
var (
	ErrProfileNotFound      = errors.New("profile not found")
	ErrProfileNameRequired  = errors.New("profile name is required")
	ErrDuplicateProfileName = errors.New("a profile with this name already exists")
	ErrLastProfile          = errors.New("cannot delete the only profile")
	ErrDefaultProfile       = errors.New("cannot delete the default profile")
	ErrNoSemesters          = errors.New("a profile must keep at least one semester")
	ErrSemesterNotFound     = errors.New("semester not found")
	ErrSubjectNotFound      = errors.New("subject not found")
	ErrInvalidSubject       = errors.New("invalid subject")
	ErrVersionConflict      = errors.New("the profile was changed by someone else; reload and retry")

	ErrShareNotFound          = errors.New("shared profile not found")
	ErrShareExpired           = errors.New("this share link has expired")
	ErrShareNotViewable       = errors.New("the owner disabled viewing for this share")
	ErrCopyNotAllowed         = errors.New("the owner does not allow copying this profile")
	ErrSharePasswordRequired  = errors.New("this share is password protected")
	ErrInvalidSharePassword   = errors.New("incorrect share password")
	ErrNotShareOwner          = errors.New("only the owner can remove this share")
	ErrInvalidShareExpiration = errors.New("share expiration must be in the future")
)

// ProfileServiceOptions tunes Init.
type ProfileServiceOptions struct {
	// LoadAttempts is how many times Init reads the profiles before giving up.
	LoadAttempts int
	RetryDelay   time.Duration
}

type profileService struct {
	profiles db.ProfileRepository
	shared   db.SharedProfileRepository
	users    db.UserRepository
	subs     *subscriptions
	logger   *zap.Logger
	metrics  *metrics.Metrics
	opts     ProfileServiceOptions
	now      func() time.Time
}

// NewProfileService creates a new ProfileService instance.
func NewProfileService(
	pr db.ProfileRepository,
	sr db.SharedProfileRepository,
	ur db.UserRepository,
	logger *zap.Logger,
	m *metrics.Metrics,
	opts ProfileServiceOptions,
) ProfileService {
	if opts.LoadAttempts < 1 {
		opts.LoadAttempts = 3
	}
	return &profileService{
		profiles: pr,
		shared:   sr,
		users:    ur,
		subs:     newSubscriptions(logger, m),
		logger:   logger,
		metrics:  m,
		opts:     opts,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *profileService) Init(ctx context.Context, userID string) ([]*models.Profile, error) {
	if err := s.loadWithRetry(ctx, userID); err != nil {
		return nil, err
	}

	now := s.now()
	err := s.profiles.Mutate(ctx, userID, func(set *db.ProfileSet) error {
		if set.Len() == 0 {
			p := newProfile(userID, DefaultProfileName, now)
			p.IsDefault = true
			set.Put(p)
			s.logger.Info("Created default profile", zap.String("userID", userID), zap.String("profileID", p.ID))
			return nil
		}
		removed := dedupeNames(set)
		if len(removed) > 0 {
			s.logger.Info("Removed duplicate profiles", zap.String("userID", userID), zap.Strings("profileIDs", removed))
		}
		for _, p := range set.Profiles() {
			if len(p.Semesters) == 0 {
				p.Semesters = []models.Semester{emptySemester(firstSemesterName)}
				touch(p, now)
				set.Put(p)
			}
		}
		ensureOneDefault(set, now)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize profiles for user '%s': %w", userID, err)
	}
	return s.GetProfiles(ctx, userID)
}

// loadWithRetry reads the profiles up to LoadAttempts times with a fixed delay, which
// rides out a store that is briefly unavailable right after sign-up or migration.
func (s *profileService) loadWithRetry(ctx context.Context, userID string) error {
	var err error
	for attempt := 1; attempt <= s.opts.LoadAttempts; attempt++ {
		if _, err = s.profiles.List(ctx, userID); err == nil {
			return nil
		}
		s.logger.Warn("Loading profiles failed",
			zap.String("userID", userID), zap.Int("attempt", attempt), zap.Error(err))
		if attempt == s.opts.LoadAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.opts.RetryDelay):
		}
	}
	return fmt.Errorf("failed to load profiles for user '%s' after %d attempts: %w", userID, s.opts.LoadAttempts, err)
}

// dedupeNames keeps one profile per name: the one with the most subjects, oldest on ties.
// A removed default passes its flag to the kept profile.
func dedupeNames(set *db.ProfileSet) []string {
	groups := map[string][]*models.Profile{}
	var order []string
	for _, p := range set.Profiles() {
		key := nameKey(p.Name)
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], p)
	}
	var removed []string
	for _, key := range order {
		group := groups[key]
		if len(group) < 2 {
			continue
		}
		keep := group[0]
		for _, p := range group[1:] {
			if p.SubjectCount() > keep.SubjectCount() {
				keep = p
			}
		}
		for _, p := range group {
			if p == keep {
				continue
			}
			if p.IsDefault && !keep.IsDefault {
				keep.IsDefault = true
				keep.Version++
				set.Put(keep)
			}
			set.Delete(p.ID)
			removed = append(removed, p.ID)
		}
	}
	return removed
}

func (s *profileService) SaveProfile(ctx context.Context, userID string, profile *models.Profile) (*models.Profile, error) {
	if profile == nil {
		return nil, errors.New("profile cannot be nil")
	}
	name := strings.TrimSpace(profile.Name)
	if name == "" {
		return nil, ErrProfileNameRequired
	}
	semesters, err := prepareSemesters(profile.Semesters)
	if err != nil {
		return nil, err
	}

	var saved *models.Profile
	now := s.now()
	err = s.profiles.Mutate(ctx, userID, func(set *db.ProfileSet) error {
		p := profile.Clone()
		p.Name = name
		p.Semesters = semesters
		p.UserID = userID
		p.UpdatedAt = now
		if p.ID == "" {
			p.ID = newID()
		}
		if nameTaken(set, name, p.ID) {
			return fmt.Errorf("%w: %q", ErrDuplicateProfileName, name)
		}

		if existing := set.Get(p.ID); existing != nil {
			if profile.Version != existing.Version {
				return fmt.Errorf("%w: have version %d, stored version %d", ErrVersionConflict, profile.Version, existing.Version)
			}
			p.CreatedAt = existing.CreatedAt
			p.IsDefault = existing.IsDefault
			p.Version = existing.Version + 1
			// UMS fields are only written by an import.
			p.UMSVerified = existing.UMSVerified
			p.LastUMSSync = existing.LastUMSSync
			if p.StudentInfo == nil {
				p.StudentInfo = existing.StudentInfo
			}
		} else {
			p.CreatedAt = now
			p.IsDefault = set.Len() == 0
			p.Version = 1
		}
		set.Put(p)
		saved = p.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

func (s *profileService) CreateProfile(ctx context.Context, userID, name string) (*models.Profile, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrProfileNameRequired
	}
	p := newProfile(userID, name, s.now())
	p.ID = ""
	p.Version = 0
	return s.SaveProfile(ctx, userID, p)
}

func (s *profileService) GetProfiles(ctx context.Context, userID string) ([]*models.Profile, error) {
	profiles, err := s.profiles.List(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get profiles for user '%s': %w", userID, err)
	}
	sortProfiles(profiles)
	return profiles, nil
}

func (s *profileService) GetProfile(ctx context.Context, userID, profileID string) (*models.Profile, error) {
	p, err := s.profiles.Get(ctx, userID, profileID)
	if errors.Is(err, db.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrProfileNotFound, profileID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile '%s': %w", profileID, err)
	}
	return p, nil
}

func (s *profileService) DeleteProfile(ctx context.Context, userID, profileID string) error {
	return s.profiles.Mutate(ctx, userID, func(set *db.ProfileSet) error {
		p := set.Get(profileID)
		switch {
		case p == nil:
			return fmt.Errorf("%w: %s", ErrProfileNotFound, profileID)
		case set.Len() == 1:
			return ErrLastProfile
		case p.IsDefault:
			return ErrDefaultProfile
		}
		set.Delete(profileID)
		return nil
	})
}

func (s *profileService) SetDefaultProfile(ctx context.Context, userID, profileID string) (*models.Profile, error) {
	var out *models.Profile
	now := s.now()
	err := s.profiles.Mutate(ctx, userID, func(set *db.ProfileSet) error {
		target := set.Get(profileID)
		if target == nil {
			return fmt.Errorf("%w: %s", ErrProfileNotFound, profileID)
		}
		for _, p := range set.Profiles() {
			want := p.ID == profileID
			if p.IsDefault != want {
				p.IsDefault = want
				touch(p, now)
				set.Put(p)
			}
		}
		out = target.Clone()
		return nil
	})
	return out, err
}

func (s *profileService) RenameProfile(ctx context.Context, userID, profileID, name string) (*models.Profile, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrProfileNameRequired
	}
	return s.edit(ctx, userID, profileID, func(set *db.ProfileSet, p *models.Profile) error {
		if nameTaken(set, name, p.ID) {
			return fmt.Errorf("%w: %q", ErrDuplicateProfileName, name)
		}
		p.Name = name
		return nil
	})
}

func (s *profileService) AddSemester(ctx context.Context, userID, profileID, name string) (*models.Profile, error) {
	return s.edit(ctx, userID, profileID, func(_ *db.ProfileSet, p *models.Profile) error {
		name = strings.TrimSpace(name)
		if name == "" {
			name = fmt.Sprintf("Semester %d", len(p.Semesters)+1)
		}
		p.Semesters = append(p.Semesters, emptySemester(name))
		return nil
	})
}

func (s *profileService) RemoveSemester(ctx context.Context, userID, profileID, semesterID string) (*models.Profile, error) {
	return s.edit(ctx, userID, profileID, func(_ *db.ProfileSet, p *models.Profile) error {
		i := semesterIndex(p, semesterID)
		if i < 0 {
			return fmt.Errorf("%w: %s", ErrSemesterNotFound, semesterID)
		}
		if len(p.Semesters) == 1 {
			return ErrNoSemesters
		}
		p.Semesters = append(p.Semesters[:i], p.Semesters[i+1:]...)
		return nil
	})
}

func (s *profileService) UpsertSubject(ctx context.Context, userID, profileID, semesterID string, subject models.Subject) (*models.Profile, error) {
	subject.SubjectName = strings.TrimSpace(subject.SubjectName)
	if err := validateSubject(subject); err != nil {
		return nil, err
	}
	return s.edit(ctx, userID, profileID, func(_ *db.ProfileSet, p *models.Profile) error {
		i := semesterIndex(p, semesterID)
		if i < 0 {
			return fmt.Errorf("%w: %s", ErrSemesterNotFound, semesterID)
		}
		sem := &p.Semesters[i]
		if subject.ID == "" {
			subject.ID = newID()
			sem.Subjects = append(sem.Subjects, subject)
			return nil
		}
		for j := range sem.Subjects {
			if sem.Subjects[j].ID == subject.ID {
				sem.Subjects[j] = subject
				return nil
			}
		}
		return fmt.Errorf("%w: %s", ErrSubjectNotFound, subject.ID)
	})
}

func (s *profileService) RemoveSubject(ctx context.Context, userID, profileID, semesterID, subjectID string) (*models.Profile, error) {
	return s.edit(ctx, userID, profileID, func(_ *db.ProfileSet, p *models.Profile) error {
		i := semesterIndex(p, semesterID)
		if i < 0 {
			return fmt.Errorf("%w: %s", ErrSemesterNotFound, semesterID)
		}
		subjects := p.Semesters[i].Subjects
		for j := range subjects {
			if subjects[j].ID == subjectID {
				p.Semesters[i].Subjects = append(subjects[:j], subjects[j+1:]...)
				return nil
			}
		}
		return fmt.Errorf("%w: %s", ErrSubjectNotFound, subjectID)
	})
}

func (s *profileService) ProfileSummary(ctx context.Context, userID, profileID string) (*ProfileSummary, error) {
	p, err := s.GetProfile(ctx, userID, profileID)
	if err != nil {
		return nil, err
	}
	return summarize(p), nil
}

// edit applies fn to one profile inside a transaction and bumps its version.
func (s *profileService) edit(ctx context.Context, userID, profileID string, fn func(set *db.ProfileSet, p *models.Profile) error) (*models.Profile, error) {
	var out *models.Profile
	now := s.now()
	err := s.profiles.Mutate(ctx, userID, func(set *db.ProfileSet) error {
		current := set.Get(profileID)
		if current == nil {
			return fmt.Errorf("%w: %s", ErrProfileNotFound, profileID)
		}
		p := current.Clone()
		if err := fn(set, p); err != nil {
			return err
		}
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

func semesterIndex(p *models.Profile, semesterID string) int {
	for i := range p.Semesters {
		if p.Semesters[i].ID == semesterID {
			return i
		}
	}
	return -1
}

func validateSubject(subject models.Subject) error {
	if subject.SubjectName == "" {
		return fmt.Errorf("%w: subject name is required", ErrInvalidSubject)
	}
	if err := calculator.ValidateSubject(subject); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSubject, err)
	}
	return nil
}

func (s *profileService) OnProfilesChange(ctx context.Context, userID string, fn func([]*models.Profile)) (Unsubscribe, error) {
	return s.subs.start(ctx, "profiles", func(ctx context.Context, l *listener) error {
		return s.profiles.Watch(ctx, userID, func(profiles []*models.Profile) {
			sortProfiles(profiles)
			l.deliver(func() { fn(profiles) })
		})
	})
}

func (s *profileService) OnProfileChange(ctx context.Context, userID, profileID string, fn func(*models.Profile)) (Unsubscribe, error) {
	return s.subs.start(ctx, "profile", func(ctx context.Context, l *listener) error {
		return s.profiles.WatchOne(ctx, userID, profileID, func(p *models.Profile) {
			l.deliver(func() { fn(p) })
		})
	})
}

func (s *profileService) OnSharedProfilesChange(ctx context.Context, userID string, fn func([]*models.SharedProfileRef)) (Unsubscribe, error) {
	return s.subs.start(ctx, "sharedProfiles", func(ctx context.Context, l *listener) error {
		return s.shared.WatchRefs(ctx, userID, func(refs []*models.SharedProfileRef) {
			l.deliver(func() { fn(refs) })
		})
	})
}

func (s *profileService) Close() {
	s.subs.close()
}

func (s *profileService) ShareProfile(ctx context.Context, userID string, req models.ShareProfileRequest) (*models.SharedProfile, error) {
	profile, err := s.GetProfile(ctx, userID, req.ProfileID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	opts := models.ShareOptions{AllowCopy: true, AllowView: true}
	if req.AllowCopy != nil {
		opts.AllowCopy = *req.AllowCopy
	}
	if req.AllowView != nil {
		opts.AllowView = *req.AllowView
	}
	if req.ExpiresAt != nil {
		if !req.ExpiresAt.After(now) {
			return nil, ErrInvalidShareExpiration
		}
		exp := req.ExpiresAt.UTC()
		opts.ExpiresAt = &exp
	}
	if req.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash share password: %w", err)
		}
		opts.Password = string(hash)
		opts.PasswordProtected = true
	}

	share := &models.SharedProfile{
		ShareID:      newID(),
		OwnerID:      userID,
		ProfileID:    profile.ID,
		ProfileName:  profile.Name,
		Semesters:    models.CloneSemesters(profile.Semesters),
		ShareOptions: opts,
		CreatedAt:    now,
	}
	if user, err := s.users.GetByID(ctx, userID); err == nil {
		share.OwnerName = user.DisplayName
	} else if !errors.Is(err, db.ErrNotFound) {
		s.logger.Warn("Could not load owner name for share", zap.String("userID", userID), zap.Error(err))
	}

	if err := s.shared.Create(ctx, share); err != nil {
		return nil, fmt.Errorf("failed to share profile '%s': %w", profile.ID, err)
	}
	return publicShare(share), nil
}

func (s *profileService) GetSharedProfile(ctx context.Context, shareID, password string) (*models.SharedProfile, error) {
	share, err := s.openShare(ctx, shareID, password)
	if err != nil {
		return nil, err
	}
	if !share.ShareOptions.AllowView {
		return nil, ErrShareNotViewable
	}
	viewed, err := s.shared.RecordView(ctx, shareID)
	if err != nil {
		// The share itself was readable; a lost view count is not worth failing the read.
		s.logger.Warn("Failed to record share view", zap.String("shareID", shareID), zap.Error(err))
		viewed = share
	}
	s.metrics.ShareViewed()
	return publicShare(viewed), nil
}

func (s *profileService) CopySharedProfile(ctx context.Context, userID, shareID string, req models.CopySharedProfileRequest) (*models.Profile, error) {
	share, err := s.openShare(ctx, shareID, req.Password)
	if err != nil {
		return nil, err
	}
	if !share.ShareOptions.AllowCopy {
		return nil, ErrCopyNotAllowed
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = share.ProfileName
	}

	var out *models.Profile
	now := s.now()
	err = s.profiles.Mutate(ctx, userID, func(set *db.ProfileSet) error {
		out = addProfileCopy(set, userID, name, share.Semesters, now).Clone()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to copy shared profile '%s': %w", shareID, err)
	}
	return out, nil
}

// openShare loads a share and checks expiry and password.
func (s *profileService) openShare(ctx context.Context, shareID, password string) (*models.SharedProfile, error) {
	share, err := s.shared.Get(ctx, shareID)
	if errors.Is(err, db.ErrNotFound) {
		return nil, ErrShareNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load share '%s': %w", shareID, err)
	}
	if share.Expired(s.now()) {
		return nil, ErrShareExpired
	}
	if share.ShareOptions.Password != "" {
		if password == "" {
			return nil, ErrSharePasswordRequired
		}
		if bcrypt.CompareHashAndPassword([]byte(share.ShareOptions.Password), []byte(password)) != nil {
			return nil, ErrInvalidSharePassword
		}
	}
	return share, nil
}

func (s *profileService) UnshareProfile(ctx context.Context, userID, shareID string) error {
	share, err := s.shared.Get(ctx, shareID)
	if errors.Is(err, db.ErrNotFound) {
		return ErrShareNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to load share '%s': %w", shareID, err)
	}
	if share.OwnerID != userID {
		return ErrNotShareOwner
	}
	if err := s.shared.Delete(ctx, userID, shareID); err != nil {
		return fmt.Errorf("failed to unshare '%s': %w", shareID, err)
	}
	return nil
}

func (s *profileService) ListSharedProfiles(ctx context.Context, userID string) ([]*models.SharedProfileRef, error) {
	refs, err := s.shared.ListRefs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list shared profiles: %w", err)
	}
	return refs, nil
}

// publicShare strips the password hash.
func publicShare(share *models.SharedProfile) *models.SharedProfile {
	out := *share
	out.ShareOptions.Password = ""
	out.Semesters = models.CloneSemesters(share.Semesters)
	return &out
}

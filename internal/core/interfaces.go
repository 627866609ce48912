package core

import (
	"context"
	"time"

	"github.com/example/studentkit/internal/models"
	"github.com/example/studentkit/internal/ums"
)

// Unsubscribe stops a real-time listener and waits for its goroutine to exit. It may be
// called from inside the listener's own callback, and calling it more than once is safe.
type Unsubscribe func()

// Identity is the verified caller of a request.
type Identity struct {
	UID   string
	Email string
	// AuthTime is when the user last signed in, taken from the ID token.
	AuthTime time.Time
}

// ProfileService manages the GPA profiles of one user at a time.
type ProfileService interface {
	// Init loads the user's profiles, creating the default profile for a new user and
	// repairing duplicate names or default flags left by older clients.
	Init(ctx context.Context, userID string) ([]*models.Profile, error)
	SaveProfile(ctx context.Context, userID string, profile *models.Profile) (*models.Profile, error)
	CreateProfile(ctx context.Context, userID, name string) (*models.Profile, error)
	GetProfiles(ctx context.Context, userID string) ([]*models.Profile, error)
	GetProfile(ctx context.Context, userID, profileID string) (*models.Profile, error)
	DeleteProfile(ctx context.Context, userID, profileID string) error
	SetDefaultProfile(ctx context.Context, userID, profileID string) (*models.Profile, error)
	RenameProfile(ctx context.Context, userID, profileID, name string) (*models.Profile, error)

	AddSemester(ctx context.Context, userID, profileID, name string) (*models.Profile, error)
	RemoveSemester(ctx context.Context, userID, profileID, semesterID string) (*models.Profile, error)
	UpsertSubject(ctx context.Context, userID, profileID, semesterID string, subject models.Subject) (*models.Profile, error)
	RemoveSubject(ctx context.Context, userID, profileID, semesterID, subjectID string) (*models.Profile, error)
	ProfileSummary(ctx context.Context, userID, profileID string) (*ProfileSummary, error)

	OnProfilesChange(ctx context.Context, userID string, fn func([]*models.Profile)) (Unsubscribe, error)
	OnProfileChange(ctx context.Context, userID, profileID string, fn func(*models.Profile)) (Unsubscribe, error)
	OnSharedProfilesChange(ctx context.Context, userID string, fn func([]*models.SharedProfileRef)) (Unsubscribe, error)

	ShareProfile(ctx context.Context, userID string, req models.ShareProfileRequest) (*models.SharedProfile, error)
	GetSharedProfile(ctx context.Context, shareID, password string) (*models.SharedProfile, error)
	CopySharedProfile(ctx context.Context, userID, shareID string, req models.CopySharedProfileRequest) (*models.Profile, error)
	UnshareProfile(ctx context.Context, userID, shareID string) error
	ListSharedProfiles(ctx context.Context, userID string) ([]*models.SharedProfileRef, error)

	MigrateFromLocalStorage(ctx context.Context, userID string, legacy models.LegacyStorage) (*MigrationResult, error)

	// Close stops every listener still open.
	Close()
}

// SharingService manages per-user shares.
type SharingService interface {
	ShareWithUser(ctx context.Context, owner Identity, req models.ShareWithUserRequest) (*models.UserShare, error)
	ListOutgoingShares(ctx context.Context, ownerID string) ([]*models.UserShare, error)
	ListIncomingShares(ctx context.Context, userID string) ([]*models.UserShare, error)
	UpdateSharePermission(ctx context.Context, ownerID, shareID, permission string) (*models.UserShare, error)
	RevokeShare(ctx context.Context, ownerID, shareID string) error
	GetIncomingProfile(ctx context.Context, userID, shareID string) (*models.Profile, *models.UserShare, error)
	UpdateIncomingProfile(ctx context.Context, userID, shareID string, req models.UpdateSemestersRequest) (*models.Profile, error)
	CopyIncomingProfile(ctx context.Context, userID, shareID, name string) (*models.Profile, error)
}

// CollaborationService manages profiles edited by several users.
type CollaborationService interface {
	CreateCollaborativeProfile(ctx context.Context, ownerID string, req models.CreateCollaborativeProfileRequest) (*models.CollaborativeProfile, error)
	AddCollaborator(ctx context.Context, owner Identity, profileID, email string) (*models.CollaborativeProfile, error)
	RemoveCollaborator(ctx context.Context, ownerID, profileID, collaboratorID string) (*models.CollaborativeProfile, error)
	LeaveCollaboration(ctx context.Context, userID, profileID string) error
	ListCollaborativeProfiles(ctx context.Context, userID string) ([]*models.CollaborativeProfile, error)
	GetCollaborativeProfile(ctx context.Context, userID, profileID string) (*models.CollaborativeProfile, error)
	UpdateCollaborativeSemesters(ctx context.Context, userID, profileID string, req models.UpdateSemestersRequest) (*models.CollaborativeProfile, error)
	DeleteCollaborativeProfile(ctx context.Context, userID, profileID string) error
	OnCollaborativeProfileChange(ctx context.Context, userID, profileID string, fn func(*models.CollaborativeProfile)) (Unsubscribe, error)
	Close()
}

// AccountService owns sign-up, account settings and cascading account deletion.
type AccountService interface {
	SignUp(ctx context.Context, req models.SignUpRequest) (*models.User, error)
	// EnsureUser creates the user document and default profile after a client-side sign-in.
	EnsureUser(ctx context.Context, id Identity, displayName string) (*models.User, bool, error)
	GetUser(ctx context.Context, userID string) (*models.User, error)
	SignOut(ctx context.Context, userID string) error
	ChangePassword(ctx context.Context, id Identity, newPassword string) error
	LinkedProviders(ctx context.Context, userID string) ([]string, error)
	UpdatePreferences(ctx context.Context, userID string, req models.UpdatePreferencesRequest) (*models.User, error)
	DeleteAccount(ctx context.Context, id Identity) (*DeletionReport, error)
	DeletionStatus(userID string) DeletionState
}

// UMSImportService turns university portal grades into a profile.
type UMSImportService interface {
	Test(ctx context.Context, sessionCookie string) error
	Import(ctx context.Context, userID string, req models.UMSImportRequest) (*UMSImportResult, error)
}

// AuthUser is the subset of an Auth account the services need.
type AuthUser struct {
	UID         string
	Email       string
	DisplayName string
	Providers   []string
}

// AuthProvider is the external identity provider.
type AuthProvider interface {
	CreateUser(ctx context.Context, email, password, displayName string) (*AuthUser, error)
	GetUser(ctx context.Context, uid string) (*AuthUser, error)
	UpdatePassword(ctx context.Context, uid, password string) error
	RevokeSessions(ctx context.Context, uid string) error
	DeleteUser(ctx context.Context, uid string) error
}

// Notifier delivers share events to their target users. Delivery is best-effort.
type Notifier interface {
	Notify(ctx context.Context, event models.ShareEvent) error
}

// UMSClient is the university portal API.
type UMSClient interface {
	Test(ctx context.Context, sessionCookie string) error
	BasicInfo(ctx context.Context, sessionCookie string) (*ums.BasicInfo, error)
	Terms(ctx context.Context, sessionCookie string) ([]ums.Term, error)
	Grades(ctx context.Context, sessionCookie string) ([]ums.CourseGrade, error)
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, models.ShareEvent) error { return nil }

package core

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/example/studentkit/internal/db"
	"github.com/example/studentkit/internal/models"
)

type testEnv struct {
	store    *db.SQLiteStore
	profiles ProfileService
	sharing  SharingService
	collab   CollaborationService
	accounts AccountService
	auth     *fakeAuth
	notifier *recordingNotifier
}

func newTestStore(t *testing.T) *db.SQLiteStore {
	t.Helper()
	s, err := db.NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "core.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := newTestStore(t)
	logger := zap.NewNop()
	pr := db.NewProfileRepository(store)
	sr := db.NewSharedProfileRepository(store)
	ur := db.NewUserRepository(store)
	env := &testEnv{
		store:    store,
		auth:     newFakeAuth(),
		notifier: &recordingNotifier{},
	}
	env.profiles = NewProfileService(pr, sr, ur, logger, nil, ProfileServiceOptions{RetryDelay: time.Millisecond})
	env.sharing = NewSharingService(pr, db.NewUserShareRepository(store), ur, env.notifier, logger)
	env.collab = NewCollaborationService(db.NewCollaborativeRepository(store), pr, ur, env.notifier, logger, nil)
	env.accounts = NewAccountService(env.auth, store, env.profiles, logger, nil, AccountServiceOptions{RecentLoginWindow: time.Minute})
	t.Cleanup(func() {
		env.profiles.Close()
		env.collab.Close()
	})
	return env
}

// signUp registers a user through the account service and returns a fresh identity.
func (e *testEnv) signUp(t *testing.T, email string) Identity {
	t.Helper()
	user, err := e.accounts.SignUp(context.Background(), models.SignUpRequest{Email: email, Password: "secret123"})
	require.NoError(t, err)
	return Identity{UID: user.ID, Email: user.Email, AuthTime: time.Now().UTC()}
}

// leakOptions ignores the connection opener of the store, which lives until t.Cleanup.
func leakOptions() []goleak.Option {
	return []goleak.Option{
		goleak.IgnoreCurrent(),
		goleak.IgnoreTopFunction("database/sql.(*DB).connectionOpener"),
	}
}

type fakeAuth struct {
	mu      sync.Mutex
	users   map[string]*AuthUser
	next    int
	revoked []string
	// failDelete makes DeleteUser fail.
	failDelete bool
}

func newFakeAuth() *fakeAuth { return &fakeAuth{users: map[string]*AuthUser{}} }

func (f *fakeAuth) CreateUser(_ context.Context, email, _, displayName string) (*AuthUser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			return nil, errors.New("email already exists")
		}
	}
	f.next++
	u := &AuthUser{UID: fmt.Sprintf("uid%03d", f.next), Email: email, DisplayName: displayName, Providers: []string{"password"}}
	f.users[u.UID] = u
	return u, nil
}

func (f *fakeAuth) GetUser(_ context.Context, uid string) (*AuthUser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[uid]
	if !ok {
		return nil, errors.New("no such auth user")
	}
	return u, nil
}

func (f *fakeAuth) UpdatePassword(_ context.Context, uid, _ string) error {
	_, err := f.GetUser(context.Background(), uid)
	return err
}

func (f *fakeAuth) RevokeSessions(_ context.Context, uid string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revoked = append(f.revoked, uid)
	return nil
}

func (f *fakeAuth) DeleteUser(_ context.Context, uid string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failDelete {
		return errors.New("auth backend unavailable")
	}
	delete(f.users, uid)
	return nil
}

func (f *fakeAuth) exists(uid string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.users[uid]
	return ok
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []models.ShareEvent
}

func (r *recordingNotifier) Notify(_ context.Context, e models.ShareEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recordingNotifier) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

func subjects(pairs ...float64) []models.Subject {
	var out []models.Subject
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, models.Subject{SubjectName: "Subject", Grade: pairs[i], Credit: pairs[i+1]})
	}
	return out
}

func defaultProfile(t *testing.T, profiles []*models.Profile) *models.Profile {
	t.Helper()
	var found *models.Profile
	for _, p := range profiles {
		if p.IsDefault {
			require.Nil(t, found, "more than one default profile")
			found = p
		}
	}
	require.NotNil(t, found, "no default profile")
	return found
}

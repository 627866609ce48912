package core

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/example/studentkit/internal/db"
	"github.com/example/studentkit/internal/models"
)

func TestInitCreatesDefaultProfile(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	profiles, err := env.profiles.Init(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, profiles, 1)
	p := profiles[0]
	assert.Equal(t, DefaultProfileName, p.Name)
	assert.True(t, p.IsDefault)
	assert.Equal(t, "u1", p.UserID)
	require.Len(t, p.Semesters, 1)
	assert.Equal(t, "Semester 1", p.Semesters[0].Name)

	// Init is idempotent.
	again, err := env.profiles.Init(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, again, 1)
	assert.Equal(t, p.ID, again[0].ID)
}

func TestInitRepairsDuplicatesAndDefaults(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	now := time.Now().UTC()

	write := func(p *models.Profile) {
		require.NoError(t, env.store.Set(ctx, db.ProfilePath("u1", p.ID), p))
	}
	empty := newProfile("u1", "Main", now)
	empty.ID = "a"
	full := newProfile("u1", "main ", now.Add(time.Second))
	full.ID = "b"
	full.Semesters[0].Subjects = subjects(8, 4)
	other := newProfile("u1", "Other", now.Add(2*time.Second))
	other.ID = "c"
	other.IsDefault = true
	other2 := newProfile("u1", "Another", now.Add(3*time.Second))
	other2.ID = "d"
	other2.IsDefault = true
	for _, p := range []*models.Profile{empty, full, other, other2} {
		write(p)
	}

	profiles, err := env.profiles.Init(ctx, "u1")
	require.NoError(t, err)

	var ids []string
	for _, p := range profiles {
		ids = append(ids, p.ID)
	}
	assert.ElementsMatch(t, []string{"b", "c", "d"}, ids, "the empty duplicate is removed")
	assert.Equal(t, "c", defaultProfile(t, profiles).ID, "the oldest existing default wins")
	assert.Equal(t, "c", profiles[0].ID, "default sorts first")
}

func TestSaveProfileVersioning(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	_, err := env.profiles.Init(ctx, "u1")
	require.NoError(t, err)

	p, err := env.profiles.CreateProfile(ctx, "u1", "Second")
	require.NoError(t, err)
	assert.False(t, p.IsDefault)
	assert.EqualValues(t, 1, p.Version)

	edit := p.Clone()
	edit.Semesters[0].Subjects = subjects(9, 3)
	saved, err := env.profiles.SaveProfile(ctx, "u1", edit)
	require.NoError(t, err)
	assert.EqualValues(t, 2, saved.Version)
	assert.NotEmpty(t, saved.Semesters[0].Subjects[0].ID)

	// A second writer still holding version 1 loses.
	stale := p.Clone()
	stale.Name = "Stale"
	_, err = env.profiles.SaveProfile(ctx, "u1", stale)
	assert.ErrorIs(t, err, ErrVersionConflict)

	_, err = env.profiles.CreateProfile(ctx, "u1", " second ")
	assert.ErrorIs(t, err, ErrDuplicateProfileName)
	_, err = env.profiles.CreateProfile(ctx, "u1", "  ")
	assert.ErrorIs(t, err, ErrProfileNameRequired)

	bad := saved.Clone()
	bad.Semesters[0].Subjects[0].Grade = 11
	_, err = env.profiles.SaveProfile(ctx, "u1", bad)
	assert.ErrorIs(t, err, ErrInvalidSubject)

	bad = saved.Clone()
	bad.Semesters = nil
	_, err = env.profiles.SaveProfile(ctx, "u1", bad)
	assert.ErrorIs(t, err, ErrNoSemesters)
}

func TestSaveProfileKeepsUMSFields(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	p, err := env.profiles.CreateProfile(ctx, "u1", "Imported")
	require.NoError(t, err)

	synced := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	info := &models.StudentInfo{Name: "Asha", RegistrationNumber: "12100001"}
	require.NoError(t, db.NewProfileRepository(env.store).Mutate(ctx, "u1", func(set *db.ProfileSet) error {
		stored := set.Get(p.ID)
		stored.UMSVerified = true
		stored.LastUMSSync = &synced
		stored.StudentInfo = info
		set.Put(stored)
		return nil
	}))

	// The body a client sends on PUT /profiles/:id carries none of the UMS fields.
	edit := &models.Profile{ID: p.ID, Name: "Renamed", Semesters: p.Semesters, Version: p.Version}
	saved, err := env.profiles.SaveProfile(ctx, "u1", edit)
	require.NoError(t, err)
	assert.True(t, saved.UMSVerified)
	require.NotNil(t, saved.LastUMSSync)
	assert.True(t, synced.Equal(*saved.LastUMSSync))
	assert.Equal(t, info, saved.StudentInfo)

	edit = saved.Clone()
	edit.UMSVerified = false
	edit.StudentInfo = &models.StudentInfo{Name: "Asha K"}
	saved, err = env.profiles.SaveProfile(ctx, "u1", edit)
	require.NoError(t, err)
	assert.True(t, saved.UMSVerified, "only an import changes the verified flag")
	assert.Equal(t, "Asha K", saved.StudentInfo.Name)

	stored, err := env.profiles.GetProfile(ctx, "u1", p.ID)
	require.NoError(t, err)
	assert.True(t, stored.UMSVerified)
	assert.Equal(t, "Renamed", stored.Name)
}

func TestDefaultProfileRules(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	profiles, err := env.profiles.Init(ctx, "u1")
	require.NoError(t, err)
	first := profiles[0]

	assert.ErrorIs(t, env.profiles.DeleteProfile(ctx, "u1", first.ID), ErrLastProfile)

	second, err := env.profiles.CreateProfile(ctx, "u1", "Second")
	require.NoError(t, err)
	assert.ErrorIs(t, env.profiles.DeleteProfile(ctx, "u1", first.ID), ErrDefaultProfile)

	_, err = env.profiles.SetDefaultProfile(ctx, "u1", second.ID)
	require.NoError(t, err)
	profiles, err = env.profiles.GetProfiles(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, second.ID, defaultProfile(t, profiles).ID)

	require.NoError(t, env.profiles.DeleteProfile(ctx, "u1", first.ID))
	assert.ErrorIs(t, env.profiles.DeleteProfile(ctx, "u1", "missing"), ErrProfileNotFound)

	renamed, err := env.profiles.RenameProfile(ctx, "u1", second.ID, "Renamed")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", renamed.Name)
	assert.True(t, renamed.IsDefault)
}

func TestSemesterAndSubjectEditing(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	profiles, err := env.profiles.Init(ctx, "u1")
	require.NoError(t, err)
	p := profiles[0]
	sem1 := p.Semesters[0].ID

	p, err = env.profiles.UpsertSubject(ctx, "u1", p.ID, sem1, models.Subject{SubjectName: "Maths", Grade: 8, Credit: 4})
	require.NoError(t, err)
	summary, err := env.profiles.ProfileSummary(ctx, "u1", p.ID)
	require.NoError(t, err)
	assert.Equal(t, "8.00", summary.CGPA)

	p, err = env.profiles.UpsertSubject(ctx, "u1", p.ID, sem1, models.Subject{SubjectName: "Physics", Grade: 6, Credit: 2})
	require.NoError(t, err)
	summary, err = env.profiles.ProfileSummary(ctx, "u1", p.ID)
	require.NoError(t, err)
	assert.Equal(t, "7.33", summary.CGPA)
	assert.Equal(t, "7.33", summary.Semesters[0].GPA)
	assert.Equal(t, 6.0, summary.TotalCredits)

	physics := p.Semesters[0].Subjects[1]
	physics.Grade = 8
	p, err = env.profiles.UpsertSubject(ctx, "u1", p.ID, sem1, physics)
	require.NoError(t, err)
	summary, _ = env.profiles.ProfileSummary(ctx, "u1", p.ID)
	assert.Equal(t, "8.00", summary.CGPA)

	p, err = env.profiles.AddSemester(ctx, "u1", p.ID, "")
	require.NoError(t, err)
	require.Len(t, p.Semesters, 2)
	assert.Equal(t, "Semester 2", p.Semesters[1].Name)
	summary, _ = env.profiles.ProfileSummary(ctx, "u1", p.ID)
	assert.Equal(t, "0.00", summary.Semesters[1].GPA)

	p, err = env.profiles.RemoveSubject(ctx, "u1", p.ID, sem1, physics.ID)
	require.NoError(t, err)
	assert.Len(t, p.Semesters[0].Subjects, 1)
	_, err = env.profiles.RemoveSubject(ctx, "u1", p.ID, sem1, physics.ID)
	assert.ErrorIs(t, err, ErrSubjectNotFound)

	p, err = env.profiles.RemoveSemester(ctx, "u1", p.ID, p.Semesters[1].ID)
	require.NoError(t, err)
	_, err = env.profiles.RemoveSemester(ctx, "u1", p.ID, sem1)
	assert.ErrorIs(t, err, ErrNoSemesters)

	_, err = env.profiles.UpsertSubject(ctx, "u1", p.ID, "missing", models.Subject{SubjectName: "X", Grade: 5, Credit: 1})
	assert.ErrorIs(t, err, ErrSemesterNotFound)
	_, err = env.profiles.UpsertSubject(ctx, "u1", p.ID, sem1, models.Subject{SubjectName: "X", Grade: 5, Credit: -1})
	assert.ErrorIs(t, err, ErrInvalidSubject)
}

func TestPublicShareCopy(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	profiles, err := env.profiles.Init(ctx, "owner")
	require.NoError(t, err)
	src, err := env.profiles.UpsertSubject(ctx, "owner", profiles[0].ID, profiles[0].Semesters[0].ID,
		models.Subject{SubjectName: "Maths", Grade: 9, Credit: 4})
	require.NoError(t, err)

	noCopy := false
	locked, err := env.profiles.ShareProfile(ctx, "owner", models.ShareProfileRequest{ProfileID: src.ID, AllowCopy: &noCopy})
	require.NoError(t, err)
	_, err = env.profiles.CopySharedProfile(ctx, "reader", locked.ShareID, models.CopySharedProfileRequest{})
	assert.ErrorIs(t, err, ErrCopyNotAllowed)

	share, err := env.profiles.ShareProfile(ctx, "owner", models.ShareProfileRequest{ProfileID: src.ID, Password: "pw"})
	require.NoError(t, err)
	assert.Empty(t, share.ShareOptions.Password, "hash is never returned")
	assert.True(t, share.ShareOptions.PasswordProtected)

	_, err = env.profiles.GetSharedProfile(ctx, share.ShareID, "")
	assert.ErrorIs(t, err, ErrSharePasswordRequired)
	_, err = env.profiles.GetSharedProfile(ctx, share.ShareID, "nope")
	assert.ErrorIs(t, err, ErrInvalidSharePassword)

	viewed, err := env.profiles.GetSharedProfile(ctx, share.ShareID, "pw")
	require.NoError(t, err)
	assert.EqualValues(t, 1, viewed.ViewCount)

	_, err = env.profiles.Init(ctx, "reader")
	require.NoError(t, err)
	cp, err := env.profiles.CopySharedProfile(ctx, "reader", share.ShareID, models.CopySharedProfileRequest{Password: "pw"})
	require.NoError(t, err)
	assert.NotEqual(t, src.ID, cp.ID)
	assert.Equal(t, "reader", cp.UserID)
	assert.Equal(t, "Default Profile (Copy)", cp.Name)
	assert.False(t, cp.IsDefault)
	if diff := cmp.Diff(src.Semesters, cp.Semesters); diff != "" {
		t.Errorf("copied semesters differ (-src +copy):\n%s", diff)
	}

	refs, err := env.profiles.ListSharedProfiles(ctx, "owner")
	require.NoError(t, err)
	assert.Len(t, refs, 2)

	assert.ErrorIs(t, env.profiles.UnshareProfile(ctx, "reader", share.ShareID), ErrNotShareOwner)
	require.NoError(t, env.profiles.UnshareProfile(ctx, "owner", share.ShareID))
	_, err = env.profiles.GetSharedProfile(ctx, share.ShareID, "pw")
	assert.ErrorIs(t, err, ErrShareNotFound)
}

func TestShareExpiration(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	profiles, err := env.profiles.Init(ctx, "owner")
	require.NoError(t, err)

	past := time.Now().Add(-time.Hour)
	_, err = env.profiles.ShareProfile(ctx, "owner", models.ShareProfileRequest{ProfileID: profiles[0].ID, ExpiresAt: &past})
	assert.ErrorIs(t, err, ErrInvalidShareExpiration)

	soon := time.Now().Add(time.Hour)
	share, err := env.profiles.ShareProfile(ctx, "owner", models.ShareProfileRequest{ProfileID: profiles[0].ID, ExpiresAt: &soon})
	require.NoError(t, err)

	svc := env.profiles.(*profileService)
	svc.now = func() time.Time { return soon.Add(time.Minute) }
	_, err = env.profiles.GetSharedProfile(ctx, share.ShareID, "")
	assert.ErrorIs(t, err, ErrShareExpired)
}

type profileRecorder struct {
	mu   sync.Mutex
	seen [][]*models.Profile
	ch   chan struct{}
}

func newProfileRecorder() *profileRecorder { return &profileRecorder{ch: make(chan struct{}, 16)} }

func (r *profileRecorder) record(p []*models.Profile) {
	r.mu.Lock()
	r.seen = append(r.seen, p)
	r.mu.Unlock()
	r.ch <- struct{}{}
}

func (r *profileRecorder) wait(t *testing.T) []*models.Profile {
	t.Helper()
	select {
	case <-r.ch:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for profile update")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.seen[len(r.seen)-1]
}

func TestOnProfilesChange(t *testing.T) {
	defer goleak.VerifyNone(t, leakOptions()...)
	ctx := context.Background()
	env := newTestEnv(t)
	_, err := env.profiles.Init(ctx, "u1")
	require.NoError(t, err)

	rec := newProfileRecorder()
	unsubscribe, err := env.profiles.OnProfilesChange(ctx, "u1", rec.record)
	require.NoError(t, err)
	assert.Len(t, rec.wait(t), 1)

	_, err = env.profiles.CreateProfile(ctx, "u1", "Next")
	require.NoError(t, err)
	got := rec.wait(t)
	require.Len(t, got, 2)
	assert.True(t, got[0].IsDefault)

	unsubscribe()
	unsubscribe()
	assert.Equal(t, 0, env.profiles.(*profileService).subs.count())
}

func TestUnsubscribeFromCallback(t *testing.T) {
	defer goleak.VerifyNone(t, leakOptions()...)
	ctx := context.Background()
	env := newTestEnv(t)
	_, err := env.profiles.Init(ctx, "u1")
	require.NoError(t, err)

	unsubCh := make(chan Unsubscribe, 1)
	returned := make(chan struct{})
	calls := 0
	unsubscribe, err := env.profiles.OnProfilesChange(ctx, "u1", func([]*models.Profile) {
		calls++
		unsub := <-unsubCh
		unsub()
		close(returned)
	})
	require.NoError(t, err)
	unsubCh <- unsubscribe

	select {
	case <-returned:
	case <-time.After(5 * time.Second):
		t.Fatal("unsubscribe from inside the callback did not return")
	}
	unsubscribe()

	_, err = env.profiles.CreateProfile(ctx, "u1", "After")
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return env.profiles.(*profileService).subs.count() == 0
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, calls)
}

func TestCloseStopsListeners(t *testing.T) {
	defer goleak.VerifyNone(t, leakOptions()...)
	ctx := context.Background()
	env := newTestEnv(t)
	profiles, err := env.profiles.Init(ctx, "u1")
	require.NoError(t, err)

	rec := newProfileRecorder()
	_, err = env.profiles.OnProfilesChange(ctx, "u1", rec.record)
	require.NoError(t, err)
	_, err = env.profiles.OnProfileChange(ctx, "u1", profiles[0].ID, func(*models.Profile) {})
	require.NoError(t, err)
	rec.wait(t)

	env.profiles.Close()
	assert.Equal(t, 0, env.profiles.(*profileService).subs.count())
	_, err = env.profiles.OnProfilesChange(ctx, "u1", rec.record)
	assert.ErrorIs(t, err, ErrServiceClosed)
}

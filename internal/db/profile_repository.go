package db

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/example/studentkit/internal/models"
)

type profileRepository struct {
	store Store
}

// NewProfileRepository creates a ProfileRepository backed by store.
func NewProfileRepository(store Store) ProfileRepository {
	return &profileRepository{store: store}
}

func (r *profileRepository) List(ctx context.Context, userID string) ([]*models.Profile, error) {
	if userID == "" {
		return nil, errors.New("userID cannot be empty")
	}
	docs, err := r.store.Query(ctx, Query{Collection: ProfilesPath(userID)})
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles of %s: %w", userID, err)
	}
	profiles, err := decodeProfiles(docs)
	if err != nil {
		return nil, err
	}
	sortByCreation(profiles)
	return profiles, nil
}

func (r *profileRepository) Get(ctx context.Context, userID, profileID string) (*models.Profile, error) {
	var p models.Profile
	if err := r.store.Get(ctx, ProfilePath(userID, profileID), &p); err != nil {
		return nil, err
	}
	p.ID = profileID
	return &p, nil
}

func (r *profileRepository) Mutate(ctx context.Context, userID string, fn func(set *ProfileSet) error) error {
	if userID == "" {
		return errors.New("userID cannot be empty")
	}
	return r.store.RunTransaction(ctx, func(ctx context.Context, tx Tx) error {
		docs, err := tx.Query(ctx, Query{Collection: ProfilesPath(userID)})
		if err != nil {
			return err
		}
		profiles, err := decodeProfiles(docs)
		if err != nil {
			return err
		}
		set := newProfileSet(profiles)
		if err := fn(set); err != nil {
			return err
		}
		for _, id := range set.deleted() {
			if err := tx.Delete(ProfilePath(userID, id)); err != nil {
				return err
			}
		}
		for _, p := range set.changed() {
			p.UserID = userID
			if err := tx.Set(ProfilePath(userID, p.ID), p); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *profileRepository) Watch(ctx context.Context, userID string, fn func([]*models.Profile)) error {
	return r.store.WatchQuery(ctx, Query{Collection: ProfilesPath(userID)}, func(docs []Document) {
		profiles, err := decodeProfiles(docs)
		if err != nil {
			return
		}
		sortByCreation(profiles)
		fn(profiles)
	})
}

func (r *profileRepository) WatchOne(ctx context.Context, userID, profileID string, fn func(*models.Profile)) error {
	return r.store.WatchDocument(ctx, ProfilePath(userID, profileID), func(doc *Document) {
		if doc == nil {
			fn(nil)
			return
		}
		var p models.Profile
		if err := doc.DataTo(&p); err != nil {
			return
		}
		p.ID = doc.ID
		fn(&p)
	})
}

func decodeProfiles(docs []Document) ([]*models.Profile, error) {
	profiles, err := decodeAll[models.Profile](docs)
	if err != nil {
		return nil, err
	}
	for i, p := range profiles {
		p.ID = docs[i].ID
	}
	return profiles, nil
}

func sortByCreation(profiles []*models.Profile) {
	sort.SliceStable(profiles, func(i, j int) bool {
		if !profiles[i].CreatedAt.Equal(profiles[j].CreatedAt) {
			return profiles[i].CreatedAt.Before(profiles[j].CreatedAt)
		}
		return profiles[i].ID < profiles[j].ID
	})
}

// ProfileSet is the working copy of a user's profiles inside ProfileRepository.Mutate.
type ProfileSet struct {
	byID    map[string]*models.Profile
	dirty   map[string]bool
	removed map[string]bool
}

func newProfileSet(profiles []*models.Profile) *ProfileSet {
	s := &ProfileSet{
		byID:    make(map[string]*models.Profile, len(profiles)),
		dirty:   map[string]bool{},
		removed: map[string]bool{},
	}
	for _, p := range profiles {
		s.byID[p.ID] = p
	}
	return s
}

// Profiles returns the current profiles, oldest first.
func (s *ProfileSet) Profiles() []*models.Profile {
	out := make([]*models.Profile, 0, len(s.byID))
	for _, p := range s.byID {
		out = append(out, p)
	}
	sortByCreation(out)
	return out
}

// Get returns the profile with id, or nil.
func (s *ProfileSet) Get(id string) *models.Profile { return s.byID[id] }

// Len is the number of profiles currently in the set.
func (s *ProfileSet) Len() int { return len(s.byID) }

// Put adds or replaces a profile and marks it for writing.
func (s *ProfileSet) Put(p *models.Profile) {
	s.byID[p.ID] = p
	s.dirty[p.ID] = true
	delete(s.removed, p.ID)
}

// Delete removes a profile from the set.
func (s *ProfileSet) Delete(id string) {
	if _, ok := s.byID[id]; !ok {
		return
	}
	delete(s.byID, id)
	delete(s.dirty, id)
	s.removed[id] = true
}

func (s *ProfileSet) changed() []*models.Profile {
	out := make([]*models.Profile, 0, len(s.dirty))
	for id := range s.dirty {
		out = append(out, s.byID[id])
	}
	sortByCreation(out)
	return out
}

func (s *ProfileSet) deleted() []string {
	out := make([]string, 0, len(s.removed))
	for id := range s.removed {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

package db

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/example/studentkit/internal/models"
)

type collaborativeRepository struct {
	store Store
}

// NewCollaborativeRepository creates a CollaborativeRepository backed by store.
func NewCollaborativeRepository(store Store) CollaborativeRepository {
	return &collaborativeRepository{store: store}
}

func (r *collaborativeRepository) Create(ctx context.Context, p *models.CollaborativeProfile) error {
	if p.ID == "" {
		return errors.New("collaborative profile ID cannot be empty")
	}
	if err := r.store.Set(ctx, CollaborativeProfilePath(p.ID), p); err != nil {
		return fmt.Errorf("failed to create collaborative profile %s: %w", p.ID, err)
	}
	return nil
}

func (r *collaborativeRepository) Get(ctx context.Context, id string) (*models.CollaborativeProfile, error) {
	var p models.CollaborativeProfile
	if err := r.store.Get(ctx, CollaborativeProfilePath(id), &p); err != nil {
		return nil, err
	}
	p.ID = id
	return &p, nil
}

func (r *collaborativeRepository) Mutate(ctx context.Context, id string, fn func(p *models.CollaborativeProfile) (bool, error)) (*models.CollaborativeProfile, error) {
	var out *models.CollaborativeProfile
	err := r.store.RunTransaction(ctx, func(ctx context.Context, tx Tx) error {
		var p models.CollaborativeProfile
		if err := tx.Get(ctx, CollaborativeProfilePath(id), &p); err != nil {
			return err
		}
		p.ID = id
		remove, err := fn(&p)
		if err != nil {
			return err
		}
		if remove {
			out = nil
			return tx.Delete(CollaborativeProfilePath(id))
		}
		out = &p
		return tx.Set(CollaborativeProfilePath(id), &p)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *collaborativeRepository) ListForMember(ctx context.Context, userID string) ([]*models.CollaborativeProfile, error) {
	q := Query{Collection: CollaborativeProfilesCollection}.Where("collaborators", OpArrayContains, userID)
	docs, err := r.store.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to list collaborative profiles of %s: %w", userID, err)
	}
	profiles, err := decodeAll[models.CollaborativeProfile](docs)
	if err != nil {
		return nil, err
	}
	for i, p := range profiles {
		p.ID = docs[i].ID
	}
	sort.SliceStable(profiles, func(i, j int) bool { return profiles[i].UpdatedAt.After(profiles[j].UpdatedAt) })
	return profiles, nil
}

func (r *collaborativeRepository) Watch(ctx context.Context, id string, fn func(*models.CollaborativeProfile)) error {
	return r.store.WatchDocument(ctx, CollaborativeProfilePath(id), func(doc *Document) {
		if doc == nil {
			fn(nil)
			return
		}
		var p models.CollaborativeProfile
		if err := doc.DataTo(&p); err != nil {
			return
		}
		p.ID = doc.ID
		fn(&p)
	})
}

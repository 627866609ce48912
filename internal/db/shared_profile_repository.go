package db

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/example/studentkit/internal/models"
)

type sharedProfileRepository struct {
	store Store
}

// NewSharedProfileRepository creates a SharedProfileRepository backed by store.
func NewSharedProfileRepository(store Store) SharedProfileRepository {
	return &sharedProfileRepository{store: store}
}

// Create writes the public share and the owner's ref in one transaction.
func (r *sharedProfileRepository) Create(ctx context.Context, share *models.SharedProfile) error {
	if share.ShareID == "" || share.OwnerID == "" {
		return errors.New("share ID and owner ID cannot be empty")
	}
	ref := &models.SharedProfileRef{
		ShareID:     share.ShareID,
		ProfileID:   share.ProfileID,
		ProfileName: share.ProfileName,
		CreatedAt:   share.CreatedAt,
	}
	return r.store.RunTransaction(ctx, func(ctx context.Context, tx Tx) error {
		if err := tx.Set(SharedProfilePath(share.ShareID), share); err != nil {
			return fmt.Errorf("failed to create share %s: %w", share.ShareID, err)
		}
		return tx.Set(SharedProfileRefPath(share.OwnerID, share.ShareID), ref)
	})
}

func (r *sharedProfileRepository) Get(ctx context.Context, shareID string) (*models.SharedProfile, error) {
	var s models.SharedProfile
	if err := r.store.Get(ctx, SharedProfilePath(shareID), &s); err != nil {
		return nil, err
	}
	s.ShareID = shareID
	return &s, nil
}

func (r *sharedProfileRepository) RecordView(ctx context.Context, shareID string) (*models.SharedProfile, error) {
	var out *models.SharedProfile
	err := r.store.RunTransaction(ctx, func(ctx context.Context, tx Tx) error {
		var s models.SharedProfile
		if err := tx.Get(ctx, SharedProfilePath(shareID), &s); err != nil {
			return err
		}
		s.ShareID = shareID
		s.ViewCount++
		out = &s
		return tx.Set(SharedProfilePath(shareID), &s)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *sharedProfileRepository) Delete(ctx context.Context, ownerID, shareID string) error {
	return r.store.Apply(ctx, []Mutation{
		DeleteDoc(SharedProfilePath(shareID)),
		DeleteDoc(SharedProfileRefPath(ownerID, shareID)),
	})
}

func (r *sharedProfileRepository) ListRefs(ctx context.Context, userID string) ([]*models.SharedProfileRef, error) {
	docs, err := r.store.Query(ctx, Query{Collection: SharedProfileRefsPath(userID)})
	if err != nil {
		return nil, fmt.Errorf("failed to list shared profiles of %s: %w", userID, err)
	}
	return decodeRefs(docs)
}

func (r *sharedProfileRepository) WatchRefs(ctx context.Context, userID string, fn func([]*models.SharedProfileRef)) error {
	return r.store.WatchQuery(ctx, Query{Collection: SharedProfileRefsPath(userID)}, func(docs []Document) {
		refs, err := decodeRefs(docs)
		if err != nil {
			return
		}
		fn(refs)
	})
}

func (r *sharedProfileRepository) ListByOwner(ctx context.Context, ownerID string) ([]*models.SharedProfile, error) {
	q := Query{Collection: SharedProfilesCollection}.Where("ownerId", OpEqual, ownerID)
	docs, err := r.store.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to query shares owned by %s: %w", ownerID, err)
	}
	shares, err := decodeAll[models.SharedProfile](docs)
	if err != nil {
		return nil, err
	}
	for i, s := range shares {
		s.ShareID = docs[i].ID
	}
	return shares, nil
}

// decodeRefs returns refs newest first.
func decodeRefs(docs []Document) ([]*models.SharedProfileRef, error) {
	refs, err := decodeAll[models.SharedProfileRef](docs)
	if err != nil {
		return nil, err
	}
	for i, ref := range refs {
		ref.ShareID = docs[i].ID
	}
	sort.SliceStable(refs, func(i, j int) bool { return refs[i].CreatedAt.After(refs[j].CreatedAt) })
	return refs, nil
}

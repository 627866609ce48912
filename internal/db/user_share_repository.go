package db

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/example/studentkit/internal/models"
)

type userShareRepository struct {
	store Store
}

// NewUserShareRepository creates a UserShareRepository backed by store.
func NewUserShareRepository(store Store) UserShareRepository {
	return &userShareRepository{store: store}
}

// Save writes both copies of the share and touches both userShares parent documents.
func (r *userShareRepository) Save(ctx context.Context, share *models.UserShare) error {
	if share.ShareID == "" || share.OwnerID == "" || share.TargetUserID == "" {
		return errors.New("share ID, owner ID and target user ID cannot be empty")
	}
	return r.store.RunTransaction(ctx, func(ctx context.Context, tx Tx) error {
		for _, uid := range []string{share.OwnerID, share.TargetUserID} {
			root := &models.UserSharesRoot{UserID: uid, UpdatedAt: share.UpdatedAt}
			if err := tx.Set(UserSharesPath(uid), root); err != nil {
				return err
			}
		}
		if err := tx.Set(OutgoingSharePath(share.OwnerID, share.ShareID), share); err != nil {
			return fmt.Errorf("failed to write outgoing share %s: %w", share.ShareID, err)
		}
		if err := tx.Set(IncomingSharePath(share.TargetUserID, share.ShareID), share); err != nil {
			return fmt.Errorf("failed to write incoming share %s: %w", share.ShareID, err)
		}
		return nil
	})
}

func (r *userShareRepository) GetOutgoing(ctx context.Context, ownerID, shareID string) (*models.UserShare, error) {
	return r.get(ctx, OutgoingSharePath(ownerID, shareID))
}

func (r *userShareRepository) GetIncoming(ctx context.Context, targetID, shareID string) (*models.UserShare, error) {
	return r.get(ctx, IncomingSharePath(targetID, shareID))
}

func (r *userShareRepository) get(ctx context.Context, path string) (*models.UserShare, error) {
	var s models.UserShare
	if err := r.store.Get(ctx, path, &s); err != nil {
		return nil, err
	}
	_, s.ShareID = splitPath(path)
	return &s, nil
}

func (r *userShareRepository) ListOutgoing(ctx context.Context, ownerID string) ([]*models.UserShare, error) {
	return r.list(ctx, OutgoingSharesPath(ownerID))
}

func (r *userShareRepository) ListIncoming(ctx context.Context, targetID string) ([]*models.UserShare, error) {
	return r.list(ctx, IncomingSharesPath(targetID))
}

func (r *userShareRepository) list(ctx context.Context, collection string) ([]*models.UserShare, error) {
	docs, err := r.store.Query(ctx, Query{Collection: collection})
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", collection, err)
	}
	shares, err := decodeAll[models.UserShare](docs)
	if err != nil {
		return nil, err
	}
	for i, s := range shares {
		s.ShareID = docs[i].ID
	}
	sort.SliceStable(shares, func(i, j int) bool { return shares[i].CreatedAt.After(shares[j].CreatedAt) })
	return shares, nil
}

func (r *userShareRepository) IncomingOwnedBy(ctx context.Context, ownerID string) ([]Document, error) {
	return r.store.Query(ctx, Query{Group: IncomingCollection}.Where("ownerId", OpEqual, ownerID))
}

func (r *userShareRepository) OutgoingTargeting(ctx context.Context, targetID string) ([]Document, error) {
	return r.store.Query(ctx, Query{Group: OutgoingCollection}.Where("targetUserId", OpEqual, targetID))
}

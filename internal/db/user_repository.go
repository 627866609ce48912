package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/example/studentkit/internal/models"
)

type userRepository struct {
	store Store
}

// NewUserRepository creates a UserRepository backed by store.
func NewUserRepository(store Store) UserRepository {
	return &userRepository{store: store}
}

// GetByID retrieves a user document by its Firebase Auth UID.
func (r *userRepository) GetByID(ctx context.Context, userID string) (*models.User, error) {
	if userID == "" {
		return nil, errors.New("userID cannot be empty for GetByID operation")
	}
	var u models.User
	if err := r.store.Get(ctx, UserPath(userID), &u); err != nil {
		return nil, err
	}
	u.ID = userID
	return &u, nil
}

// GetByEmail looks the user up by the lower-cased email stored on sign-up.
func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	docs, err := r.store.Query(ctx, Query{Collection: UsersCollection}.Where("email", OpEqual, email))
	if err != nil {
		return nil, fmt.Errorf("failed to look up user by email: %w", err)
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("user with email %q: %w", email, ErrNotFound)
	}
	var u models.User
	if err := docs[0].DataTo(&u); err != nil {
		return nil, fmt.Errorf("failed to decode user %s: %w", docs[0].ID, err)
	}
	u.ID = docs[0].ID
	return &u, nil
}

// Save writes the full user document.
func (r *userRepository) Save(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		return errors.New("user ID cannot be empty for Save operation")
	}
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	if err := r.store.Set(ctx, UserPath(user.ID), user); err != nil {
		return fmt.Errorf("failed to save user with ID '%s': %w", user.ID, err)
	}
	return nil
}

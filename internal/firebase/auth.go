// Package firebase adapts the Firebase Admin Auth client to the services and middleware.
package firebase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"firebase.google.com/go/v4/auth"

	"github.com/example/studentkit/internal/core"
)

// Auth wraps the Firebase Auth admin client.
type Auth struct {
	client *auth.Client
}

func NewAuth(client *auth.Client) *Auth {
	return &Auth{client: client}
}

// Verify checks a Firebase ID token and returns the caller.
func (a *Auth) Verify(ctx context.Context, idToken string) (core.Identity, error) {
	token, err := a.client.VerifyIDToken(ctx, idToken)
	if err != nil {
		return core.Identity{}, err
	}
	id := core.Identity{UID: token.UID}
	if email, ok := token.Claims["email"].(string); ok {
		id.Email = email
	}
	if token.AuthTime > 0 {
		id.AuthTime = time.Unix(token.AuthTime, 0).UTC()
	}
	return id, nil
}

func (a *Auth) CreateUser(ctx context.Context, email, password, displayName string) (*core.AuthUser, error) {
	params := (&auth.UserToCreate{}).Email(email).Password(password)
	if displayName != "" {
		params = params.DisplayName(displayName)
	}
	rec, err := a.client.CreateUser(ctx, params)
	if auth.IsEmailAlreadyExists(err) {
		return nil, fmt.Errorf("%w: %s", core.ErrEmailInUse, email)
	}
	if err != nil {
		return nil, err
	}
	return toAuthUser(rec), nil
}

func (a *Auth) GetUser(ctx context.Context, uid string) (*core.AuthUser, error) {
	rec, err := a.client.GetUser(ctx, uid)
	if auth.IsUserNotFound(err) {
		return nil, fmt.Errorf("%w: %s", core.ErrUserNotFound, uid)
	}
	if err != nil {
		return nil, err
	}
	return toAuthUser(rec), nil
}

func (a *Auth) UpdatePassword(ctx context.Context, uid, password string) error {
	_, err := a.client.UpdateUser(ctx, uid, (&auth.UserToUpdate{}).Password(password))
	return err
}

func (a *Auth) RevokeSessions(ctx context.Context, uid string) error {
	return a.client.RevokeRefreshTokens(ctx, uid)
}

// DeleteUser treats an already deleted user as success.
func (a *Auth) DeleteUser(ctx context.Context, uid string) error {
	err := a.client.DeleteUser(ctx, uid)
	if auth.IsUserNotFound(err) {
		return nil
	}
	return err
}

func toAuthUser(rec *auth.UserRecord) *core.AuthUser {
	u := &core.AuthUser{}
	if rec.UserInfo != nil {
		u.UID = rec.UID
		u.Email = rec.Email
		u.DisplayName = rec.DisplayName
	}
	for _, p := range rec.ProviderUserInfo {
		if p != nil {
			u.Providers = append(u.Providers, p.ProviderID)
		}
	}
	return u
}

var errNoClient = errors.New("firebase auth client is not configured")

// Disabled stands in for Auth when the server runs without Firebase, e.g. against the
// SQLite store in development. Every call fails.
type Disabled struct{}

func (Disabled) Verify(context.Context, string) (core.Identity, error) {
	return core.Identity{}, errNoClient
}
func (Disabled) CreateUser(context.Context, string, string, string) (*core.AuthUser, error) {
	return nil, errNoClient
}
func (Disabled) GetUser(context.Context, string) (*core.AuthUser, error) { return nil, errNoClient }
func (Disabled) UpdatePassword(context.Context, string, string) error    { return errNoClient }
func (Disabled) RevokeSessions(context.Context, string) error            { return errNoClient }
func (Disabled) DeleteUser(context.Context, string) error                { return errNoClient }

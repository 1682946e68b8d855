package firebase

import (
	"context"
	"fmt"

	"firebase.google.com/go/v4/auth"

	"luna-backend/internal/core"
)

// UserGetter is the part of *auth.Client used by IdentityProvider.
type UserGetter interface {
	GetUser(ctx context.Context, uid string) (*auth.UserRecord, error)
}

// IdentityProvider resolves Firebase Auth users.
type IdentityProvider struct {
	users UserGetter
}

// NewIdentityProvider wraps a Firebase Auth client.
func NewIdentityProvider(users UserGetter) *IdentityProvider {
	return &IdentityProvider{users: users}
}

// LookupEmail returns the email of uid. Unknown users yield core.ErrNotFound.
func (p *IdentityProvider) LookupEmail(ctx context.Context, uid string) (string, error) {
	u, err := p.users.GetUser(ctx, uid)
	if err != nil {
		if auth.IsUserNotFound(err) {
			return "", fmt.Errorf("%w: no identity for user '%s'", core.ErrNotFound, uid)
		}
		return "", fmt.Errorf("auth.GetUser %s: %w", uid, err)
	}
	if u.UserInfo == nil {
		return "", nil
	}
	return u.Email, nil
}

// OfflineIdentityProvider accepts any user id without an email. It backs
// STORAGE_BACKEND=memory, where no Firebase project is configured.
type OfflineIdentityProvider struct{}

func (OfflineIdentityProvider) LookupEmail(context.Context, string) (string, error) {
	return "", nil
}

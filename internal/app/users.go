package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/ovstage/stagehub/internal/domain"
	"github.com/ovstage/stagehub/internal/store"
)

// EnsureUser upserts the account document for an externally authenticated
// identity. The id comes from the credential, not from us.
func (e *Engine) EnsureUser(ctx context.Context, userID domain.UserID, displayName, avatarURL string) (*domain.User, error) {
	user, err := e.store.Users.Get(ctx, string(userID))
	switch {
	case err == nil:
		if (displayName != "" && displayName != user.DisplayName) || (avatarURL != "" && avatarURL != user.AvatarURL) {
			user, err = e.store.Users.Update(ctx, string(userID), func(u *domain.User) {
				if displayName != "" {
					u.DisplayName = displayName
				}
				if avatarURL != "" {
					u.AvatarURL = avatarURL
				}
			})
			if err != nil {
				return nil, fmt.Errorf("ensure user: update: %w", err)
			}
		}
		return &user, nil
	case errors.Is(err, store.ErrNotFound):
		fresh := domain.User{ID: userID, DisplayName: displayName, AvatarURL: avatarURL}
		if fresh.DisplayName == "" {
			fresh.DisplayName = "guest"
		}
		if err := e.store.Users.Create(ctx, fresh); err != nil {
			return nil, fmt.Errorf("ensure user: create: %w", err)
		}
		return &fresh, nil
	default:
		return nil, fmt.Errorf("ensure user: %w", err)
	}
}

// GetUser loads one account.
func (e *Engine) GetUser(ctx context.Context, userID domain.UserID) (*domain.User, error) {
	user, err := e.store.Users.Get(ctx, string(userID))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

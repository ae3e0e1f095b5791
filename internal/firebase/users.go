package firebase

import (
	"context"
	"fmt"

	"firebase.google.com/go/v4/auth"
)

type userGetter interface {
	GetUser(ctx context.Context, uid string) (*auth.UserRecord, error)
}

// UserDirectory resolves account emails from Firebase Authentication.
type UserDirectory struct {
	users userGetter
}

func NewUserDirectory(client *auth.Client) *UserDirectory {
	return &UserDirectory{users: client}
}

// EmailForUser returns "" without error when the user does not exist.
func (d *UserDirectory) EmailForUser(ctx context.Context, userID string) (string, error) {
	user, err := d.users.GetUser(ctx, userID)
	if err != nil {
		if auth.IsUserNotFound(err) {
			return "", nil
		}
		return "", fmt.Errorf("failed to look up user '%s': %w", userID, err)
	}
	return user.Email, nil
}

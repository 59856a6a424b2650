package firebase

import (
	"context"

	"firebase.google.com/go/v4/auth"
)

// FirebaseAuthClient wraps the auth provider: it owns actor identity
// (stable uid) and the profile basics the directory mirrors.
type FirebaseAuthClient struct {
	client *auth.Client
}

func NewFirebaseAuthClient(client *auth.Client) *FirebaseAuthClient {
	return &FirebaseAuthClient{
		client: client,
	}
}

func (f *FirebaseAuthClient) VerifyToken(ctx context.Context, token string) (string, error) {
	result, err := f.client.VerifyIDToken(ctx, token)
	if err != nil {
		return "", err
	}

	return result.UID, nil
}

// GetProfile returns the provider-side display name and avatar for a uid.
func (f *FirebaseAuthClient) GetProfile(ctx context.Context, uid string) (displayName, photoURL string, err error) {
	user, err := f.client.GetUser(ctx, uid)
	if err != nil {
		return "", "", err
	}

	return user.DisplayName, user.PhotoURL, nil
}

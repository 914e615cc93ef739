package auth

import (
	"context"
	"errors"

	"google.golang.org/api/idtoken"
)

// GoogleVerifier validates Google ID tokens for a configured OAuth client id.
type GoogleVerifier struct {
	audience string
	validate func(ctx context.Context, token, audience string) (*idtoken.Payload, error)
}

func NewGoogleVerifier(clientID string) *GoogleVerifier {
	return &GoogleVerifier{audience: clientID, validate: idtoken.Validate}
}

func (g *GoogleVerifier) Provider() string { return ProviderGoogle }

func (g *GoogleVerifier) Verify(ctx context.Context, token string) (FederatedClaims, error) {
	if token == "" {
		return FederatedClaims{}, errors.New("id token is required")
	}
	payload, err := g.validate(ctx, token, g.audience)
	if err != nil {
		return FederatedClaims{}, err
	}
	fc := FederatedClaims{Subject: payload.Subject}
	if v, ok := payload.Claims["email"].(string); ok {
		fc.Email = v
	}
	if verified, ok := payload.Claims["email_verified"].(bool); ok && !verified {
		return FederatedClaims{}, errors.New("email not verified")
	}
	if v, ok := payload.Claims["name"].(string); ok {
		fc.DisplayName = v
	}
	if v, ok := payload.Claims["picture"].(string); ok {
		fc.AvatarURL = v
	}
	return fc, nil
}

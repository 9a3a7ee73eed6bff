package usecase

import (
	accountdomain "pixeltrace/internal/account/domain"
	accountdto "pixeltrace/internal/account/dto"
)

// Identity is what the external token verifier vouches for.
type Identity struct {
	ExternalID string
	Email      string
	Name       string
}

// TokenVerifier validates a third-party id token and returns the
// identity it asserts. Verification failures are returned as errors.
type TokenVerifier interface {
	Verify(idToken string) (*Identity, error)
}

// AuthUsecase defines the interface for account/session operations.
type AuthUsecase interface {
	// SignIn verifies an external id token, upserts the account and
	// mints a session token.
	SignIn(req *accountdto.SignInRequest) (*accountdto.TokenResponse, error)
	// ValidateToken resolves a session token to its account.
	ValidateToken(tokenString string) (*accountdomain.Account, error)
	// ResolveExternalID maps an external identity to its account.
	// Returns (nil, nil) when no account is provisioned yet.
	ResolveExternalID(externalID string) (*accountdomain.Account, error)
}

package usecase

import (
	"errors"
	"time"

	accountdomain "pixeltrace/internal/account/domain"
	accountdto "pixeltrace/internal/account/dto"
	"pixeltrace/internal/account/repository"
	"pixeltrace/pkg/config"

	"github.com/golang-jwt/jwt/v5"
)

// authUsecase implements AuthUsecase interface
type authUsecase struct {
	accountRepo repository.AccountRepository
	verifier    TokenVerifier
	config      *config.Config
}

// NewAuthUsecase creates a new instance of authUsecase
func NewAuthUsecase(accountRepo repository.AccountRepository, verifier TokenVerifier, cfg *config.Config) AuthUsecase {
	return &authUsecase{
		accountRepo: accountRepo,
		verifier:    verifier,
		config:      cfg,
	}
}

func (u *authUsecase) SignIn(req *accountdto.SignInRequest) (*accountdto.TokenResponse, error) {
	identity, err := u.verifier.Verify(req.Token)
	if err != nil {
		return nil, err
	}

	account, err := u.accountRepo.Upsert(&accountdomain.Account{
		ExternalID: identity.ExternalID,
		Email:      identity.Email,
		Name:       identity.Name,
	})
	if err != nil {
		return nil, err
	}

	accessToken, err := u.generateAccessToken(account)
	if err != nil {
		return nil, err
	}

	return &accountdto.TokenResponse{
		AccessToken: accessToken,
		Account:     account,
	}, nil
}

func (u *authUsecase) ValidateToken(tokenString string) (*accountdomain.Account, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		return []byte(u.config.JWTSecret), nil
	})

	if err != nil || !token.Valid {
		return nil, errors.New("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("invalid token claims")
	}

	accountID, ok := claims["account_id"].(string)
	if !ok {
		return nil, errors.New("invalid token claims")
	}

	account, err := u.accountRepo.FindByID(accountID)
	if err != nil {
		return nil, err
	}

	if account == nil {
		return nil, errors.New("account not found")
	}

	return account, nil
}

func (u *authUsecase) ResolveExternalID(externalID string) (*accountdomain.Account, error) {
	return u.accountRepo.FindByExternalID(externalID)
}

func (u *authUsecase) generateAccessToken(account *accountdomain.Account) (string, error) {
	claims := jwt.MapClaims{
		"account_id":  account.ID,
		"external_id": account.ExternalID,
		"email":       account.Email,
		"exp":         time.Now().Add(u.config.JWTAccessExpiry).Unix(),
		"iat":         time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(u.config.JWTSecret))
}

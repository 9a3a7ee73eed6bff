package dto

import accountdomain "pixeltrace/internal/account/domain"

type SignInRequest struct {
	Token string `json:"token" binding:"required"`
}

type TokenResponse struct {
	AccessToken string                 `json:"access_token"`
	Account     *accountdomain.Account `json:"account"`
}

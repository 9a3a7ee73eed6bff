package usecase

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// googleTokenInfo represents the response from Google's tokeninfo endpoint
type googleTokenInfo struct {
	Email         string `json:"email"`
	Name          string `json:"name"`
	EmailVerified string `json:"email_verified"` // Google returns this as string "true" or "false"
	Sub           string `json:"sub"`
	Audience      string `json:"aud"`
}

// googleVerifier validates Google id tokens against the tokeninfo
// endpoint, the same check the sign-in flow performs server-side.
type googleVerifier struct {
	clientID string
	endpoint string
	client   *http.Client
}

// NewGoogleVerifier creates a TokenVerifier backed by Google's tokeninfo
// endpoint. clientID, when set, is checked against the token audience.
func NewGoogleVerifier(clientID string) TokenVerifier {
	return &googleVerifier{
		clientID: clientID,
		endpoint: "https://oauth2.googleapis.com/tokeninfo",
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (v *googleVerifier) Verify(idToken string) (*Identity, error) {
	url := fmt.Sprintf("%s?id_token=%s", v.endpoint, idToken)

	resp, err := v.client.Get(url)
	if err != nil {
		return nil, errors.New("failed to verify token: " + err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("failed to verify token: status %d, body: %s", resp.StatusCode, string(body))
	}

	var tokenInfo googleTokenInfo
	if err := json.NewDecoder(resp.Body).Decode(&tokenInfo); err != nil {
		return nil, errors.New("failed to decode token info: " + err.Error())
	}

	if tokenInfo.EmailVerified != "true" {
		return nil, errors.New("email is not verified")
	}
	if v.clientID != "" && tokenInfo.Audience != v.clientID {
		return nil, errors.New("token audience mismatch")
	}

	return &Identity{
		ExternalID: tokenInfo.Sub,
		Email:      tokenInfo.Email,
		Name:       tokenInfo.Name,
	}, nil
}

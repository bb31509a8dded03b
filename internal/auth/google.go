package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

const DefaultGoogleUserInfoURL = "https://www.googleapis.com/oauth2/v1/userinfo"

type GoogleUser struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

// IdentityProvider resolves a federated access token to the user behind it.
type IdentityProvider interface {
	UserInfo(ctx context.Context, accessToken string) (GoogleUser, error)
}

// GoogleClient calls Google's userinfo endpoint with an OAuth access token.
type GoogleClient struct {
	client *resty.Client
	url    string
}

func NewGoogleClient(userInfoURL string, timeout time.Duration) *GoogleClient {
	if userInfoURL == "" {
		userInfoURL = DefaultGoogleUserInfoURL
	}
	return &GoogleClient{
		client: resty.New().SetTimeout(timeout),
		url:    userInfoURL,
	}
}

func (c *GoogleClient) UserInfo(ctx context.Context, accessToken string) (GoogleUser, error) {
	if accessToken == "" {
		return GoogleUser{}, errors.New("access token is required")
	}
	var out GoogleUser
	resp, err := c.client.R().
		SetContext(ctx).
		SetAuthToken(accessToken).
		SetQueryParam("access_token", accessToken).
		SetResult(&out).
		Get(c.url)
	if err != nil {
		return GoogleUser{}, fmt.Errorf("userinfo request failed: %w", err)
	}
	if resp.IsError() {
		return GoogleUser{}, fmt.Errorf("userinfo request failed with status %d", resp.StatusCode())
	}
	if out.Email == "" {
		return GoogleUser{}, errors.New("userinfo response has no email")
	}
	return out, nil
}

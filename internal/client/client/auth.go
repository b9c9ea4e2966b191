package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/snapclient/internal/client/models"
)

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RegisterRequest struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"-"`
	Location        string `json:"location,omitempty"`
	Interests       string `json:"interests,omitempty"`
}

type confirmRequest struct {
	Email string `json:"email"`
	Pin   string `json:"pin"`
}

type googleRequest struct {
	IDToken string `json:"id_token"`
}

// ProfileUpdate carries the editable profile fields; nil leaves a field as is.
type ProfileUpdate struct {
	Username   *string            `json:"username,omitempty"`
	Location   *string            `json:"location,omitempty"`
	Interests  *string            `json:"interests,omitempty"`
	Visibility *models.Visibility `json:"visibility,omitempty"`
}

type authResponse struct {
	Token string          `json:"token"`
	User  *models.Profile `json:"user"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// AuthClient talks to the auth/profile service.
type AuthClient struct {
	rest rest
}

func NewAuthClient(baseURL string, timeout time.Duration, token TokenSource) *AuthClient {
	return &AuthClient{rest: newRest(baseURL, timeout, token)}
}

// Login exchanges email/password for a Credential.
func (c *AuthClient) Login(ctx context.Context, req LoginRequest) (*models.Credential, error) {
	if err := ValidateLogin(req); err != nil {
		return nil, err
	}
	var resp authResponse
	if err := c.rest.call(ctx, http.MethodPost, "/users/login", nil, req, &resp, false); err != nil {
		return nil, err
	}
	return credentialFrom(resp, models.AuthProviderPassword)
}

// Register starts a sign-up. The service mails a PIN that must be passed to
// ConfirmRegistration; the returned text is the server's instruction.
func (c *AuthClient) Register(ctx context.Context, req RegisterRequest) (string, error) {
	if err := ValidateRegistration(req); err != nil {
		return "", err
	}
	var resp messageResponse
	if err := c.rest.call(ctx, http.MethodPost, "/users/register", nil, req, &resp, false); err != nil {
		return "", err
	}
	return resp.Message, nil
}

// ConfirmRegistration completes sign-up with the mailed PIN.
func (c *AuthClient) ConfirmRegistration(ctx context.Context, email, pin string) (*models.Credential, error) {
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	if err := ValidatePin(pin); err != nil {
		return nil, err
	}
	var resp authResponse
	req := confirmRequest{Email: email, Pin: strings.TrimSpace(pin)}
	if err := c.rest.call(ctx, http.MethodPost, "/users/register/confirm", nil, req, &resp, false); err != nil {
		return nil, err
	}
	return credentialFrom(resp, models.AuthProviderPassword)
}

// GoogleLogin signs in with a federated identity token.
func (c *AuthClient) GoogleLogin(ctx context.Context, idToken string) (*models.Credential, error) {
	if strings.TrimSpace(idToken) == "" {
		return nil, invalid("identity token is required")
	}
	var resp authResponse
	if err := c.rest.call(ctx, http.MethodPost, "/users/google", nil, googleRequest{IDToken: idToken}, &resp, false); err != nil {
		return nil, err
	}
	return credentialFrom(resp, models.AuthProviderFederated)
}

func (c *AuthClient) Profile(ctx context.Context) (*models.Profile, error) {
	var p models.Profile
	if err := c.rest.call(ctx, http.MethodGet, "/users/profile", nil, nil, &p, true); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *AuthClient) UpdateProfile(ctx context.Context, upd ProfileUpdate) (*models.Profile, error) {
	if upd.Username != nil && strings.TrimSpace(*upd.Username) == "" {
		return nil, invalid("username cannot be empty")
	}
	var p models.Profile
	if err := c.rest.call(ctx, http.MethodPut, "/users/profile", nil, upd, &p, true); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *AuthClient) SearchUsers(ctx context.Context, username string) ([]models.Profile, error) {
	if strings.TrimSpace(username) == "" {
		return nil, invalid("search text is required")
	}
	var out []models.Profile
	q := url.Values{"username": {username}}
	if err := c.rest.call(ctx, http.MethodGet, "/users/search", q, nil, &out, true); err != nil {
		return nil, err
	}
	return out, nil
}

// UsersByIDs resolves profiles for ids in one round trip.
func (c *AuthClient) UsersByIDs(ctx context.Context, ids []int64) ([]models.Profile, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	var out []models.Profile
	q := url.Values{"ids": {strings.Join(parts, ",")}}
	if err := c.rest.call(ctx, http.MethodGet, "/users/users", q, nil, &out, true); err != nil {
		return nil, err
	}
	return out, nil
}

// RequestVerification asks for the account to be verified.
func (c *AuthClient) RequestVerification(ctx context.Context) (string, error) {
	var resp messageResponse
	if err := c.rest.call(ctx, http.MethodPost, "/users/verify", nil, nil, &resp, true); err != nil {
		return "", err
	}
	return resp.Message, nil
}

func credentialFrom(resp authResponse, provider models.AuthProvider) (*models.Credential, error) {
	cred := &models.Credential{Token: resp.Token, User: resp.User, AuthProvider: provider}
	if err := cred.Validate(); err != nil {
		return nil, err
	}
	return cred, nil
}

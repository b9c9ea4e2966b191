package client

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/snapclient/internal/client/models"
	"github.com/dmitrijs2005/snapclient/internal/common"
)

type fakeAuthService struct {
	lastLogin    LoginRequest
	lastRegister map[string]any
	lastConfirm  confirmRequest
	lastIDs      string
	lastSearch   string
	lastAuth     string
}

func (f *fakeAuthService) router() chi.Router {
	r := chi.NewRouter()
	r.Post("/users/login", func(w http.ResponseWriter, req *http.Request) {
		_ = json.NewDecoder(req.Body).Decode(&f.lastLogin)
		if f.lastLogin.Password != "secret" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "invalid credentials"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"token": "tok-1", "user": map[string]any{"id": 1, "username": "ana"}})
	})
	r.Post("/users/register", func(w http.ResponseWriter, req *http.Request) {
		_ = json.NewDecoder(req.Body).Decode(&f.lastRegister)
		writeJSON(w, http.StatusOK, map[string]string{"message": "pin sent"})
	})
	r.Post("/users/register/confirm", func(w http.ResponseWriter, req *http.Request) {
		_ = json.NewDecoder(req.Body).Decode(&f.lastConfirm)
		writeJSON(w, http.StatusOK, map[string]any{"token": "tok-2", "user": map[string]any{"id": 2, "username": "bo"}})
	})
	r.Post("/users/google", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"token": "tok-g", "user": map[string]any{"id": 3}})
	})
	r.Get("/users/profile", func(w http.ResponseWriter, req *http.Request) {
		f.lastAuth = req.Header.Get("Authorization")
		writeJSON(w, http.StatusOK, map[string]any{"id": 1, "username": "ana", "verification": "pending"})
	})
	r.Put("/users/profile", func(w http.ResponseWriter, req *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(req.Body).Decode(&body)
		writeJSON(w, http.StatusOK, map[string]any{"id": 1, "username": body["username"]})
	})
	r.Get("/users/users", func(w http.ResponseWriter, req *http.Request) {
		f.lastIDs = req.URL.Query().Get("ids")
		writeJSON(w, http.StatusOK, []map[string]any{{"id": 1, "username": "ana"}, {"id": 2, "username": "bo"}})
	})
	r.Get("/users/search", func(w http.ResponseWriter, req *http.Request) {
		f.lastSearch = req.URL.Query().Get("username")
		writeJSON(w, http.StatusOK, []map[string]any{{"id": 2, "username": "bo"}})
	})
	r.Post("/users/verify", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"message": "verification requested"})
	})
	return r
}

func newAuthClient(t *testing.T) (*AuthClient, *fakeAuthService) {
	t.Helper()
	f := &fakeAuthService{}
	srv := newServer(t, f.router())
	return NewAuthClient(srv.URL, time.Second, func() string { return "tok-1" }), f
}

func TestAuthClient_Login(t *testing.T) {
	c, f := newAuthClient(t)

	cred, err := c.Login(context.Background(), LoginRequest{Email: "ana@example.com", Password: "secret"})
	require.NoError(t, err)
	assert.Equal(t, "tok-1", cred.Token)
	assert.Equal(t, int64(1), cred.User.ID)
	assert.Equal(t, models.AuthProviderPassword, cred.AuthProvider)
	assert.Equal(t, "ana@example.com", f.lastLogin.Email)

	_, err = c.Login(context.Background(), LoginRequest{Email: "ana@example.com", Password: "nope"})
	require.ErrorIs(t, err, common.ErrorUnauthorized)
	assert.Equal(t, "invalid credentials", MessageOf(err))
}

func TestAuthClient_Login_ValidationSkipsNetwork(t *testing.T) {
	c, f := newAuthClient(t)

	_, err := c.Login(context.Background(), LoginRequest{Email: "not-an-email", Password: "x"})
	require.ErrorIs(t, err, common.ErrorValidation)
	assert.Empty(t, f.lastLogin.Email)
}

func TestAuthClient_RegisterAndConfirm(t *testing.T) {
	c, f := newAuthClient(t)
	ctx := context.Background()

	msg, err := c.Register(ctx, RegisterRequest{
		Username: "bo", Email: "bo@example.com", Password: "hunter22", ConfirmPassword: "hunter22",
	})
	require.NoError(t, err)
	assert.Equal(t, "pin sent", msg)
	assert.Equal(t, "bo", f.lastRegister["username"])
	_, leaked := f.lastRegister["ConfirmPassword"]
	assert.False(t, leaked, "confirmation stays client-side")

	cred, err := c.ConfirmRegistration(ctx, "bo@example.com", " 1234 ")
	require.NoError(t, err)
	assert.Equal(t, "tok-2", cred.Token)
	assert.Equal(t, "1234", f.lastConfirm.Pin)

	_, err = c.ConfirmRegistration(ctx, "bo@example.com", "12a4")
	require.ErrorIs(t, err, common.ErrorValidation)
}

func TestAuthClient_GoogleLoginIsFederated(t *testing.T) {
	c, _ := newAuthClient(t)

	cred, err := c.GoogleLogin(context.Background(), "id-token")
	require.NoError(t, err)
	assert.Equal(t, models.AuthProviderFederated, cred.AuthProvider)

	_, err = c.GoogleLogin(context.Background(), "")
	require.ErrorIs(t, err, common.ErrorValidation)
}

func TestAuthClient_ProfileCalls(t *testing.T) {
	c, f := newAuthClient(t)
	ctx := context.Background()

	p, err := c.Profile(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.VerificationPending, p.Verification)
	assert.Equal(t, "Bearer tok-1", f.lastAuth)

	name := "ana2"
	p, err = c.UpdateProfile(ctx, ProfileUpdate{Username: &name})
	require.NoError(t, err)
	assert.Equal(t, "ana2", p.Username)

	empty := " "
	_, err = c.UpdateProfile(ctx, ProfileUpdate{Username: &empty})
	require.ErrorIs(t, err, common.ErrorValidation)

	users, err := c.UsersByIDs(ctx, []int64{1, 2})
	require.NoError(t, err)
	assert.Len(t, users, 2)
	assert.Equal(t, "1,2", f.lastIDs)

	none, err := c.UsersByIDs(ctx, nil)
	require.NoError(t, err)
	assert.Nil(t, none)

	found, err := c.SearchUsers(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, "bo", found[0].Username)
	assert.Equal(t, "b", f.lastSearch)

	msg, err := c.RequestVerification(ctx)
	require.NoError(t, err)
	assert.Equal(t, "verification requested", msg)
}

func TestValidateRegistration(t *testing.T) {
	ok := RegisterRequest{Username: "u", Email: "u@x.io", Password: "abcdef", ConfirmPassword: "abcdef"}
	require.NoError(t, ValidateRegistration(ok))

	cases := map[string]func(r *RegisterRequest){
		"no username":    func(r *RegisterRequest) { r.Username = "" },
		"bad email":      func(r *RegisterRequest) { r.Email = "u@x" },
		"short password": func(r *RegisterRequest) { r.Password, r.ConfirmPassword = "abc", "abc" },
		"mismatch":       func(r *RegisterRequest) { r.ConfirmPassword = "abcdeg" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			r := ok
			mutate(&r)
			require.ErrorIs(t, ValidateRegistration(r), common.ErrorValidation)
		})
	}
}

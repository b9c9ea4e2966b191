package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/snapclient/internal/client/client"
	"github.com/dmitrijs2005/snapclient/internal/client/models"
	"github.com/dmitrijs2005/snapclient/internal/common"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
// They point to interactive input helpers and can be swapped in tests.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

// Register collects the sign-up form, submits it and completes the flow
// with the PIN the auth service mails out. A confirmed registration signs
// the user in.
func (a *App) Register(ctx context.Context) error {
	var req client.RegisterRequest
	var err error

	if req.Username, err = getSimpleText(a.reader, "Username", a.out); err != nil {
		return err
	}
	if req.Email, err = getSimpleText(a.reader, "Email", a.out); err != nil {
		return err
	}
	if req.Password, err = getPassword("Password", a.out); err != nil {
		return err
	}
	if req.ConfirmPassword, err = getPassword("Confirm password", a.out); err != nil {
		return err
	}
	if req.Location, err = getSimpleText(a.reader, "Location (optional)", a.out); err != nil {
		return err
	}
	if req.Interests, err = getSimpleText(a.reader, "Interests, comma separated (optional)", a.out); err != nil {
		return err
	}

	msg, err := a.auth.Register(ctx, req)
	if err != nil {
		return err
	}
	if msg != "" {
		fmt.Fprintln(a.out, msg)
	}

	pin, err := getSimpleText(a.reader, "Enter the PIN from your email", a.out)
	if err != nil {
		return err
	}
	cred, err := a.auth.ConfirmRegistration(ctx, req.Email, pin)
	if err != nil {
		return rejected(err)
	}
	return a.signIn(ctx, cred)
}

// Login signs in with email and password, or with a federated identity
// token when called as "login google <token>".
func (a *App) Login(ctx context.Context, args []string) error {
	if len(args) > 0 && args[0] == "google" {
		if len(args) != 2 {
			return usage("login google <id-token>")
		}
		cred, err := a.auth.GoogleLogin(ctx, args[1])
		if err != nil {
			return rejected(err)
		}
		return a.signIn(ctx, cred)
	}

	email, err := getSimpleText(a.reader, "Email", a.out)
	if err != nil {
		return err
	}
	password, err := getPassword("Password", a.out)
	if err != nil {
		return err
	}

	cred, err := a.auth.Login(ctx, client.LoginRequest{Email: email, Password: password})
	if err != nil {
		return rejected(err)
	}
	return a.signIn(ctx, cred)
}

func (a *App) signIn(ctx context.Context, cred *models.Credential) error {
	if err := a.sessions.Login(ctx, cred); err != nil {
		return err
	}
	a.log.Info(ctx, "signed in", "user", cred.User.ID, "provider", cred.AuthProvider)
	fmt.Fprintf(a.out, "Signed in as @%s.\n", cred.User.Username)
	a.warnOffline()
	return nil
}

func (a *App) Logout(ctx context.Context) error {
	if !a.isLoggedIn() {
		fmt.Fprintln(a.out, "Not signed in.")
		return nil
	}
	if err := a.sessions.Logout(ctx); err != nil {
		return err
	}
	a.mu.Lock()
	a.page = nil
	a.mu.Unlock()
	fmt.Fprintln(a.out, "Signed out.")
	return nil
}

func (a *App) WhoAmI(ctx context.Context) error {
	cred, err := a.credential()
	if err != nil {
		return err
	}
	u := cred.User
	fmt.Fprintf(a.out, "@%s (id %d, %s, signed in with %s)\n", u.Username, u.ID, u.Email, cred.AuthProvider)
	return nil
}

// Profile shows the freshly fetched profile, or with "set <field> <value>"
// edits one field, or with "verify" requests account verification.
func (a *App) Profile(ctx context.Context, args []string) error {
	if _, err := a.credential(); err != nil {
		return err
	}

	switch {
	case len(args) == 0:
		p, err := a.runtime.RefreshProfile(ctx)
		if err != nil {
			return err
		}
		printProfile(a.out, p)
		return nil

	case args[0] == "verify":
		msg, err := a.auth.RequestVerification(ctx)
		if err != nil {
			return err
		}
		if msg == "" {
			msg = "Verification requested."
		}
		fmt.Fprintln(a.out, msg)
		return nil

	case args[0] == "set" && len(args) >= 3:
		upd, err := profileUpdate(args[1], strings.Join(args[2:], " "))
		if err != nil {
			return err
		}
		p, err := a.auth.UpdateProfile(ctx, upd)
		if err != nil {
			return err
		}
		if err := a.sessions.UpdateProfile(ctx, p); err != nil {
			return err
		}
		fmt.Fprintln(a.out, "Profile updated.")
		return nil
	}
	return usage("profile [set username|location|interests|visibility <value> | verify]")
}

func profileUpdate(field, value string) (client.ProfileUpdate, error) {
	var upd client.ProfileUpdate
	switch field {
	case "username":
		upd.Username = &value
	case "location":
		upd.Location = &value
	case "interests":
		upd.Interests = &value
	case "visibility":
		v := models.Visibility(value)
		if v != models.VisibilityPublic && v != models.VisibilityPrivate {
			return upd, fmt.Errorf("%w: visibility must be %q or %q", common.ErrorValidation, models.VisibilityPublic, models.VisibilityPrivate)
		}
		upd.Visibility = &v
	default:
		return upd, fmt.Errorf("%w: unknown profile field %q", common.ErrorValidation, field)
	}
	return upd, nil
}

func usage(s string) error {
	return fmt.Errorf("%w: usage: %s", common.ErrorValidation, s)
}

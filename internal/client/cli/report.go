package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/snapclient/internal/client/client"
	"github.com/dmitrijs2005/snapclient/internal/common"
)

// signInError is a credential the auth service refused. It does not unwrap
// to common.ErrorUnauthorized, so a failed attempt leaves the current
// session alone.
type signInError struct {
	err error
}

func (e *signInError) Error() string { return "sign in: " + e.err.Error() }

// rejected wraps an unauthorized sign-in reply.
func rejected(err error) error {
	if errors.Is(err, common.ErrorUnauthorized) {
		return &signInError{err: err}
	}
	return err
}

// Report renders err by category after the runtime has reacted to it.
func (a *App) Report(ctx context.Context, err error) {
	err = a.runtime.HandleError(ctx, err)
	a.log.Debug(ctx, "command failed", "error", err)
	fmt.Fprintln(a.out, describe(err))
}

// describe turns err into the line shown to the user.
func describe(err error) string {
	var signIn *signInError
	if errors.As(err, &signIn) {
		return "Sign-in failed: " + client.MessageOf(signIn.err)
	}

	switch common.Category(err) {
	case common.CategoryNone:
		return ""
	case common.CategorySession:
		if errors.Is(err, common.ErrorNoSession) {
			return "Please log in first."
		}
		return "Your session has expired. Please log in again."
	case common.CategoryValidation:
		msg := client.MessageOf(err)
		for _, sentinel := range []error{common.ErrorValidation, common.ErrorInvalidIdentifier} {
			if i := strings.Index(msg, sentinel.Error()+": "); i >= 0 {
				msg = msg[i+len(sentinel.Error())+2:]
			}
		}
		return "Invalid input: " + msg
	case common.CategoryTransport:
		return "Service unavailable, try again later."
	default:
		return "Error: " + client.MessageOf(err)
	}
}

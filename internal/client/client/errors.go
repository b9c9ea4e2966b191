package client

import (
	"fmt"
	"net/http"

	"github.com/dmitrijs2005/snapclient/internal/common"
)

// APIError is a non-2xx REST response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("http %d", e.Status)
	}
	return fmt.Sprintf("http %d: %s", e.Status, e.Message)
}

// Unwrap exposes the sentinel matching the status class. Only 401 means the
// credential is gone; a 403 is an ordinary refusal shown to the user.
func (e *APIError) Unwrap() error {
	switch {
	case e.Status == http.StatusUnauthorized:
		return common.ErrorUnauthorized
	case e.Status == http.StatusNotFound:
		return common.ErrorNotFound
	case e.Status >= 500:
		return common.ErrorUnavailable
	case e.Status == http.StatusBadRequest, e.Status == http.StatusUnprocessableEntity:
		return common.ErrorValidation
	default:
		return nil
	}
}

package http

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrProviderHTTPError reports a provider answering with a non 2xx status code.
var ErrProviderHTTPError = errors.New("provider returned non 2xx HTTP status code")

// EnsureHTTPSuccess returns an error if the status code is not a 2xx
// successful status code.
func EnsureHTTPSuccess(statusCode int) error {
	if statusCode < http.StatusOK || statusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("%w: %d", ErrProviderHTTPError, statusCode)
	}
	return nil
}

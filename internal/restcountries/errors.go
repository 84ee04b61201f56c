package restcountries

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// APIError is returned for non-2xx responses. Message is human readable.
type APIError struct {
	Status  int
	Path    string
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

const maxErrorBody = 64 << 10

// newAPIError reads the message from a JSON error body when present.
func newAPIError(resp *http.Response, path string) *APIError {
	apiErr := &APIError{
		Status:  resp.StatusCode,
		Path:    path,
		Message: fmt.Sprintf("API request failed with status %d", resp.StatusCode),
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil || len(body) == 0 {
		return apiErr
	}
	var payload struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &payload) == nil {
		if msg := strings.TrimSpace(payload.Message); msg != "" {
			apiErr.Message = msg
		}
	}
	return apiErr
}

package apierr

import (
	"errors"
	"net/http"
	"testing"
)

func TestErrorMessageFallbacks(t *testing.T) {
	cause := errors.New("name is required")
	e := BadRequest("invalid_request", cause)
	if e.Status != http.StatusBadRequest || e.Error() != "name is required" || !errors.Is(e, cause) {
		t.Fatalf("unexpected error: %+v", e)
	}
	if got := New(http.StatusTeapot, "", nil).Error(); got != "api error (418)" {
		t.Fatalf("status fallback = %q", got)
	}
	if got := TooLarge(nil).Error(); got != "payload_too_large" {
		t.Fatalf("code fallback = %q", got)
	}
	var nilErr *Error
	if nilErr.Error() != "" {
		t.Fatalf("nil error should render empty")
	}
}

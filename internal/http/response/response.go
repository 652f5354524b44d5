package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	types "github.com/yungbote/reconify-backend/internal/domain/recon"
	"github.com/yungbote/reconify-backend/internal/platform/apierr"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

// RespondErr maps a handler or domain error onto its HTTP status. Anything
// unclassified is reported as internal without leaking the cause.
func RespondErr(c *gin.Context, err error) {
	var ae *apierr.Error
	if errors.As(err, &ae) {
		RespondError(c, ae.Status, ae.Code, ae)
		return
	}
	var de *types.Error
	if !errors.As(err, &de) {
		RespondError(c, http.StatusInternalServerError, string(types.CodeInternal), errors.New("internal error"))
		return
	}
	status := StatusFor(de.Code)
	if status == http.StatusInternalServerError {
		RespondError(c, status, string(types.CodeInternal), errors.New(de.Message))
		return
	}
	RespondError(c, status, string(de.Code), de)
}

func StatusFor(code types.ErrorCode) int {
	switch code {
	case types.CodeValidation, types.CodeUnsupportedFormat, types.CodeEmptyFile, types.CodeMalformedFile:
		return http.StatusBadRequest
	case types.CodePayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	case types.CodeConflict:
		return http.StatusConflict
	case types.CodeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

func RespondCreated(c *gin.Context, payload any) {
	c.JSON(http.StatusCreated, payload)
}

package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/reconify-backend/internal/ingest"
	"github.com/yungbote/reconify-backend/internal/platform/apierr"
	"github.com/yungbote/reconify-backend/internal/services"
)

type messageResponse struct {
	Message string `json:"message"`
}

// readUpload pulls the "file" part and reads it under the parser's size cap.
// Call it before any c.PostForm so a truncated body is reported as such.
func readUpload(c *gin.Context, parser *ingest.Parser) (services.FileInput, error) {
	fh, err := c.FormFile("file")
	if err != nil {
		return services.FileInput{}, classifyFormError(err)
	}
	f, err := fh.Open()
	if err != nil {
		return services.FileInput{}, apierr.BadRequest("invalid_multipart_form", err)
	}
	defer f.Close()
	data, err := parser.ReadAll(f)
	if err != nil {
		return services.FileInput{}, err
	}
	return services.FileInput{Name: fh.Filename, Data: data}, nil
}

func classifyFormError(err error) error {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return apierr.TooLarge(errors.New("request body exceeds the upload limit"))
	case errors.Is(err, http.ErrMissingFile):
		return apierr.BadRequest("missing_file", errors.New("file is required"))
	default:
		return apierr.BadRequest("invalid_multipart_form", err)
	}
}

// panelNameParam accepts panel_name from form, query or JSON body.
func panelNameParam(c *gin.Context) (string, error) {
	name := strings.TrimSpace(c.PostForm("panel_name"))
	if name == "" {
		name = strings.TrimSpace(c.Query("panel_name"))
	}
	if name == "" && strings.HasPrefix(c.ContentType(), "application/json") {
		var body struct {
			PanelName string `json:"panel_name"`
		}
		if err := c.ShouldBindJSON(&body); err == nil {
			name = strings.TrimSpace(body.PanelName)
		}
	}
	if name == "" {
		return "", apierr.BadRequest("missing_panel_name", errors.New("panel_name is required"))
	}
	return name, nil
}

func bindJSON(c *gin.Context, dst any) error {
	if err := c.ShouldBindJSON(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apierr.TooLarge(errors.New("request body exceeds the upload limit"))
		}
		return apierr.BadRequest("invalid_request", err)
	}
	return nil
}

func queryInt(c *gin.Context, key string, def int) (int, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, apierr.BadRequest("invalid_query", errors.New(key+" must be a non-negative integer"))
	}
	return n, nil
}

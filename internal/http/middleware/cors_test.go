package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func preflight(r *gin.Engine, origin string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodOptions, "/recon/process", nil)
	req.Header.Set("Origin", origin)
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestCORSAllowsDefaultDevOrigins(t *testing.T) {
	t.Parallel()
	gin.SetMode(gin.TestMode)

	for _, origin := range []string{"http://localhost:5173", "http://127.0.0.1:3000"} {
		origin := origin
		t.Run(origin, func(t *testing.T) {
			t.Parallel()
			r := gin.New()
			r.Use(CORS(nil))
			r.POST("/recon/process", func(c *gin.Context) { c.Status(http.StatusOK) })

			rec := preflight(r, origin)
			if rec.Code != http.StatusNoContent {
				t.Fatalf("unexpected status: got=%d want=%d", rec.Code, http.StatusNoContent)
			}
			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != origin {
				t.Fatalf("unexpected allow-origin header: got=%q want=%q", got, origin)
			}
		})
	}
}

func TestCORSConfiguredOriginsReplaceDefaults(t *testing.T) {
	t.Parallel()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORS([]string{"https://recon.corp.com"}))
	r.POST("/recon/process", func(c *gin.Context) { c.Status(http.StatusOK) })

	if got := preflight(r, "https://recon.corp.com").Header().Get("Access-Control-Allow-Origin"); got != "https://recon.corp.com" {
		t.Fatalf("configured origin not allowed: %q", got)
	}
	if got := preflight(r, "http://localhost:5173").Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("default origin should be dropped, got %q", got)
	}
}

package cors

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func serve(r *gin.Engine, method, origin string, preflight bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	if preflight {
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func newRouter(origins []string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(New(origins))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func TestCORSAllowedOrigins(t *testing.T) {
	r := newRouter([]string{"https://routine.example.edu/", "https://*.campus.example.edu"})

	rec := serve(r, http.MethodGet, "https://routine.example.edu", false)
	assert.Equal(t, "https://routine.example.edu", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
	assert.Contains(t, rec.Header().Get("Access-Control-Expose-Headers"), "Content-Disposition")

	rec = serve(r, http.MethodGet, "https://cst.campus.example.edu", false)
	assert.Equal(t, "https://cst.campus.example.edu", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = serve(r, http.MethodGet, "https://campus.example.edu.evil.com", false)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	rec = serve(r, http.MethodGet, "https://evil.example.com", false)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	r := newRouter([]string{"https://routine.example.edu"})

	rec := serve(r, http.MethodOptions, "https://routine.example.edu", true)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "DELETE")

	rec = serve(r, http.MethodOptions, "https://evil.example.com", true)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCORSAllowAllOmitsCredentials(t *testing.T) {
	r := newRouter(nil)

	rec := serve(r, http.MethodGet, "https://anywhere.example", false)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Credentials"))
}

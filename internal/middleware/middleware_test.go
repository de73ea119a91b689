package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func newTestEngine(mw ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(mw...)
	r.GET("/ping", func(c *gin.Context) {
		id, _ := c.Get("request_id")
		c.String(http.StatusOK, "%v", id)
	})
	return r
}

func TestRequestID_GeneratesAndEchoes(t *testing.T) {
	r := newTestEngine(RequestID())

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/ping", nil))
	generated := resp.Header().Get(RequestIDHeader)
	require.NotEmpty(t, generated)
	require.Equal(t, generated, resp.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(RequestIDHeader, "abc")
	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	require.Equal(t, "abc", resp.Header().Get(RequestIDHeader))
	require.Equal(t, "abc", resp.Body.String())
}

func TestCORS_Allowlist(t *testing.T) {
	r := newTestEngine(CORS([]string{"https://console.example.com", " "}))

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Origin", "https://console.example.com")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	require.Equal(t, "https://console.example.com", resp.Header().Get("Access-Control-Allow-Origin"))
	require.Equal(t, "Origin", resp.Header().Get("Vary"))

	req = httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	require.Empty(t, resp.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORS_AllowAllAndPreflight(t *testing.T) {
	r := newTestEngine(CORS(nil))

	req := httptest.NewRequest(http.MethodOptions, "/ping", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	require.Equal(t, http.StatusNoContent, resp.Code)
	require.Equal(t, "*", resp.Header().Get("Access-Control-Allow-Origin"))
}

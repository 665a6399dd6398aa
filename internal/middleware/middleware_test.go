package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "middleware-test-secret"

func init() { gin.SetMode(gin.TestMode) }

func signToken(t *testing.T, role, station string, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"cashier_id": "c-1",
		"username":   "maria",
		"role":       role,
		"station_id": station,
		"exp":        exp.Unix(),
		"iat":        time.Now().Unix(),
	})
	s, err := tok.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return s
}

func newAuthEngine() *gin.Engine {
	r := gin.New()
	r.Use(RequestID(), Recovery(), ErrorHandler())
	g := r.Group("/", JWTAuth(testSecret))
	g.GET("/me", func(c *gin.Context) {
		cl := GetClaims(c)
		c.JSON(http.StatusOK, gin.H{"station": cl.StationID, "role": cl.Role})
	})
	g.GET("/admin", RequireRole("admin"), func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/panic", func(c *gin.Context) { panic("boom") })
	r.GET("/fail", func(c *gin.Context) { _ = c.Error(assert.AnError) })
	return r
}

func get(r *gin.Engine, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestJWTAuth(t *testing.T) {
	r := newAuthEngine()

	assert.Equal(t, http.StatusUnauthorized, get(r, "/me", "").Code)
	assert.Equal(t, http.StatusUnauthorized, get(r, "/me", "garbage").Code)
	expired := signToken(t, "cashier", "Station_1", time.Now().Add(-time.Minute))
	assert.Equal(t, http.StatusUnauthorized, get(r, "/me", expired).Code)

	w := get(r, "/me", signToken(t, "cashier", "Station_1", time.Now().Add(time.Hour)))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"station":"Station_1"`)
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))
}

func TestRequireRole(t *testing.T) {
	r := newAuthEngine()
	assert.Equal(t, http.StatusForbidden, get(r, "/admin", signToken(t, "cashier", "", time.Now().Add(time.Hour))).Code)
	assert.Equal(t, http.StatusOK, get(r, "/admin", signToken(t, "admin", "", time.Now().Add(time.Hour))).Code)
}

func TestRecoveryAndErrorHandler(t *testing.T) {
	r := newAuthEngine()

	w := get(r, "/panic", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "boom")

	w = get(r, "/fail", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"detail":"internal server error"}`, w.Body.String())
}

func TestRequestID_ReusesIncoming(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(RequestIDKey)) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Body.String())
	assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))
}

func TestRateLimiter(t *testing.T) {
	l := NewRateLimiter("test", 2, time.Minute)
	clock := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return clock }

	ok, _ := l.Allow("1.2.3.4")
	assert.True(t, ok)
	ok, _ = l.Allow("1.2.3.4")
	assert.True(t, ok)
	ok, _ = l.Allow("1.2.3.4")
	assert.False(t, ok)
	ok, _ = l.Allow("5.6.7.8")
	assert.True(t, ok, "keys are independent")

	clock = clock.Add(time.Minute + time.Second)
	assert.Equal(t, 2, l.Purge())
	ok, _ = l.Allow("1.2.3.4")
	assert.True(t, ok)
}

func TestRateLimiter_Middleware(t *testing.T) {
	l := NewRateLimiter("login", 1, time.Minute)
	r := gin.New()
	r.Use(l.Middleware())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, get(r, "/", "").Code)
	w := get(r, "/", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
}

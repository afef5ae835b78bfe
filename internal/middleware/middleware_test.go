package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"sacs-telemedicina-hub/internal/config"
	"sacs-telemedicina-hub/internal/metrics"
	"sacs-telemedicina-hub/internal/models"
	"sacs-telemedicina-hub/internal/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testConfig() *config.Config {
	return &config.Config{JWTSecret: "s", JWTRefreshSecret: "r", JWTExpirationMinutes: 5, JWTRefreshExpirationHours: 1}
}

func tokenFor(t *testing.T, cfg *config.Config, role models.Role) string {
	t.Helper()
	u := &models.User{Role: role, CenterID: "c1"}
	u.ID = "u-" + string(role)
	access, _, err := utils.GenerateTokens(u, cfg)
	require.NoError(t, err)
	return access
}

func TestAuthAndRoleMiddleware(t *testing.T) {
	cfg := testConfig()
	r := gin.New()
	r.GET("/doctors-only", AuthMiddleware(cfg), RoleAuthMiddleware(models.RoleDoctor), func(c *gin.Context) {
		id, _ := GetUserIDFromContext(c)
		center, _ := GetCenterIDFromContext(c)
		c.String(http.StatusOK, id+"@"+center)
	})

	tests := []struct {
		name   string
		header string
		want   int
		body   string
	}{
		{"missing header", "", http.StatusUnauthorized, ""},
		{"bad scheme", "Token abc", http.StatusUnauthorized, ""},
		{"bad token", "Bearer abc", http.StatusUnauthorized, ""},
		{"wrong role", "Bearer " + tokenFor(t, cfg, models.RolePatient), http.StatusForbidden, ""},
		{"doctor", "Bearer " + tokenFor(t, cfg, models.RoleDoctor), http.StatusOK, "u-doctor@c1"},
		{"super admin", "Bearer " + tokenFor(t, cfg, models.RoleSuperAdmin), http.StatusOK, "u-super_admin@c1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/doctors-only", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
			if tt.body != "" {
				assert.Equal(t, tt.body, rec.Body.String())
			}
		})
	}
}

func TestRequestLogger(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	collector := metrics.NewCollector("sacs")
	r := gin.New()
	r.Use(RequestLogger(zap.New(core), collector))
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "req-1")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, "req-1", rec.Header().Get(RequestIDHeader))
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "req-1", logs.All()[0].ContextMap()["request_id"])
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.RequestsTotal.WithLabelValues("GET", "/health", "200")))
}

func TestRateLimiter(t *testing.T) {
	limiter := NewRateLimiter(2)
	r := gin.New()
	r.POST("/login", limiter.Middleware(), func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/login", nil))
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
	assert.True(t, limiter.Allow("10.0.0.9"), "other clients have their own bucket")
}

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"hospital-booking-server/internal/config"
	"hospital-booking-server/internal/models"
	"hospital-booking-server/internal/utils"
)

func testRouter(cfg *config.Config, roles ...models.Role) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	group := router.Group("/")
	group.Use(AuthMiddleware(cfg))
	if len(roles) > 0 {
		group.Use(RoleAuthMiddleware(roles...))
	}
	group.GET("/protected", func(c *gin.Context) {
		userID, _ := GetUserIDFromContext(c)
		role, _ := GetUserRoleFromContext(c)
		c.JSON(http.StatusOK, gin.H{"userId": userID, "role": role})
	})
	return router
}

func issueToken(t *testing.T, cfg *config.Config, userID uint, role models.Role) string {
	t.Helper()
	user := &models.User{Role: role}
	user.ID = userID
	token, err := utils.GenerateToken(user, cfg)
	if err != nil {
		t.Fatalf("token generation failed: %v", err)
	}
	return token
}

func TestAuthMiddleware_RejectsMissingAndMalformedHeaders(t *testing.T) {
	cfg := &config.Config{JWTSecret: "test-secret", JWTExpirationMinutes: 60}
	router := testRouter(cfg)

	cases := []struct {
		name   string
		header string
	}{
		{"no header", ""},
		{"not bearer", "Basic abc123"},
		{"missing token", "Bearer"},
		{"garbage token", "Bearer not.a.token"},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("%s: expected 401, got %d", tc.name, w.Code)
		}
	}
}

func TestAuthMiddleware_AcceptsValidToken(t *testing.T) {
	cfg := &config.Config{JWTSecret: "test-secret", JWTExpirationMinutes: 60}
	router := testRouter(cfg)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+issueToken(t, cfg, 42, models.RolePatient))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestRoleAuthMiddleware(t *testing.T) {
	cfg := &config.Config{JWTSecret: "test-secret", JWTExpirationMinutes: 60}
	router := testRouter(cfg, models.RoleAdmin)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+issueToken(t, cfg, 1, models.RolePatient))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Errorf("patient on admin route: expected 403, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+issueToken(t, cfg, 1, models.RoleAdmin))
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("admin on admin route: expected 200, got %d", w.Code)
	}
}

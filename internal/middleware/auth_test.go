package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"mediastore/internal/pkg/jwt"
)

func newAuthRouter(t *testing.T, secret string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(JWTAuth(jwt.New(secret, time.Hour)))
	router.GET("/protected", func(c *gin.Context) {
		orgID := MustOrgID(c)
		if orgID == 0 {
			return
		}
		c.JSON(http.StatusOK, gin.H{"org_id": orgID, "user_id": UserID(c)})
	})
	return router
}

func TestJWTAuthAcceptsValidToken(t *testing.T) {
	router := newAuthRouter(t, "secret")
	token, err := jwt.New("secret", time.Hour).GenerateToken(42, 7, "admin")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestJWTAuthRejectsMissingHeader(t *testing.T) {
	router := newAuthRouter(t, "secret")

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestJWTAuthRejectsForeignSignature(t *testing.T) {
	router := newAuthRouter(t, "secret")
	token, err := jwt.New("other-secret", time.Hour).GenerateToken(42, 7, "admin")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestJWTAuthRequiresOrganization(t *testing.T) {
	router := newAuthRouter(t, "secret")
	token, err := jwt.New("secret", time.Hour).GenerateToken(42, 0, "admin")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
}

func TestJWTAuthRejectsMalformedScheme(t *testing.T) {
	router := newAuthRouter(t, "secret")

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Token abc")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

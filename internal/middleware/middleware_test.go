package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/aura-webinar/workshop-access/internal/auth"
	"github.com/aura-webinar/workshop-access/internal/models"
)

func init() { gin.SetMode(gin.TestMode) }

func newRouter(svc *auth.JWTService) *gin.Engine {
	r := gin.New()
	r.GET("/me", JWT(svc), func(c *gin.Context) {
		c.JSON(http.StatusOK, IdentityFrom(c))
	})
	r.GET("/admin", JWT(svc), RequireRole(models.RoleAdmin), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func do(r http.Handler, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestJWTRequiresHeader(t *testing.T) {
	r := newRouter(auth.NewJWTService("s", 1))
	if rec := do(r, "/me", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec := do(r, "/me", "garbage"); rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestRequireRole(t *testing.T) {
	svc := auth.NewJWTService("s", 1)
	r := newRouter(svc)

	student, _ := svc.Generate(uuid.New(), "S", string(models.RoleStudent))
	if rec := do(r, "/admin", student); rec.Code != http.StatusForbidden {
		t.Fatalf("student status = %d, want 403", rec.Code)
	}
	admin, _ := svc.Generate(uuid.New(), "A", string(models.RoleAdmin))
	if rec := do(r, "/admin", admin); rec.Code != http.StatusNoContent {
		t.Fatalf("admin status = %d, want 204", rec.Code)
	}
}

package rbac

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"clevertap-sync/internal/auth"
)

func serveAs(role string, p Permission) int {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.GET("/x", func(c *gin.Context) {
		ctx := auth.WithIdentity(c.Request.Context(), auth.Identity{Subject: "svc", Role: role})
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}, Require(p), func(c *gin.Context) {
		c.Status(200)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	return w.Code
}

func TestRequire_SuperAdminBypasses(t *testing.T) {
	for _, p := range []Permission{PermSync, PermReadEvents, PermAdmin} {
		if code := serveAs(RoleSuperAdmin, p); code != 200 {
			t.Fatalf("%s: expected 200, got %d", p, code)
		}
	}
}

func TestRequire_GrantedPermission(t *testing.T) {
	if code := serveAs(RoleAuditor, PermReadEvents); code != 200 {
		t.Fatalf("expected 200, got %d", code)
	}
	if code := serveAs(RoleAdmin, PermSync); code != 200 {
		t.Fatalf("expected admin to sync, got %d", code)
	}
}

func TestRequire_MissingPermissionForbidden(t *testing.T) {
	if code := serveAs(RoleIntegrator, PermAdmin); code != 403 {
		t.Fatalf("expected 403, got %d", code)
	}
	if code := serveAs("root", PermSync); code != 403 {
		t.Fatalf("expected unknown role to be forbidden, got %d", code)
	}
}

func TestRequire_MissingRole(t *testing.T) {
	if code := serveAs("", PermAdmin); code != 401 {
		t.Fatalf("expected 401, got %d", code)
	}
}

func TestAllows_GrantTable(t *testing.T) {
	cases := []struct {
		role string
		perm Permission
		want bool
	}{
		{RoleIntegrator, PermSync, true},
		{RoleIntegrator, PermReadEvents, false},
		{RoleAuditor, PermSync, false},
		{RoleAuditor, PermAdmin, false},
		{RoleAdmin, PermAdmin, true},
		{"", PermSync, false},
	}
	for _, tc := range cases {
		if got := Allows(tc.role, tc.perm); got != tc.want {
			t.Fatalf("Allows(%q, %q) = %v, want %v", tc.role, tc.perm, got, tc.want)
		}
	}
	if !Known(RoleSuperAdmin) || Known("root") {
		t.Fatalf("unexpected Known result")
	}
}
